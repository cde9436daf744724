// internal/server/server.go
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/AlverezYari/suscam/pkg/camera"
)

// Config describes the simulated camera.
type Config struct {
	Port   string
	Bounds camera.Bounds
	// Step is how many degrees one movement verb turns the head.
	Step   int
	Width  int
	Height int
}

func (c *Config) setDefaults() {
	if c.Bounds == (camera.Bounds{}) {
		c.Bounds = camera.DefaultBounds
	}
	if c.Step <= 0 {
		c.Step = 1
	}
	if c.Width <= 0 {
		c.Width = 320
	}
	if c.Height <= 0 {
		c.Height = 240
	}
}

// Status is broadcast to every client after the camera state changes. The
// event field keeps it distinct from query replies.
type Status struct {
	Event    string          `json:"event"`
	Position camera.Position `json:"position"`
	Light    bool            `json:"light"`
}

type clientCount struct {
	Clients int `json:"clients"`
}

type peer struct {
	id      string
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (p *peer) write(messageType int, data []byte) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if err := p.conn.SetWriteDeadline(time.Now().Add(2 * time.Second)); err != nil {
		return err
	}
	return p.conn.WriteMessage(messageType, data)
}

// Server is a websocket camera simulator speaking the SUSCam wire protocol.
type Server struct {
	cfg       Config
	logger    *zap.SugaredLogger
	server    *http.Server
	isRunning bool
	upgrader  websocket.Upgrader

	peersMu sync.RWMutex
	peers   map[*peer]bool

	stateMu sync.Mutex
	pos     camera.Position
	light   bool

	muted atomic.Bool
}

func New(cfg Config, logger *zap.SugaredLogger) *Server {
	cfg.setDefaults()
	return &Server{
		cfg:    cfg,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		peers: make(map[*peer]bool),
		pos:   cfg.Bounds.Center(),
	}
}

// Handler serves the camera endpoint at /ws.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "SUSCam simulator")
	})
	return mux
}

func (s *Server) Start() error {
	if s.isRunning {
		return fmt.Errorf("server is already running on port %s", s.cfg.Port)
	}

	s.server = &http.Server{
		Addr:    ":" + s.cfg.Port,
		Handler: s.Handler(),
	}

	go func() {
		s.logger.Infow("starting simulator", "port", s.cfg.Port)
		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Errorw("HTTP server error", "error", err)
		}
	}()

	s.isRunning = true
	return nil
}

func (s *Server) Stop() error {
	if !s.isRunning {
		return fmt.Errorf("server is not running")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := s.server.Shutdown(ctx)
	// Shutdown does not touch hijacked connections.
	err = multierr.Append(err, s.DisconnectAll())

	s.isRunning = false
	if err != nil {
		return errors.Wrap(err, "server shutdown error")
	}
	s.logger.Info("simulator stopped")
	return nil
}

func (s *Server) IsRunning() bool {
	return s.isRunning
}

func (s *Server) Port() string {
	return s.cfg.Port
}

// SetMute makes the simulator ignore queries, for exercising timeouts.
func (s *Server) SetMute(muted bool) {
	s.muted.Store(muted)
}

// Position returns the simulated head position.
func (s *Server) Position() camera.Position {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.pos
}

// Light reports whether the simulated light is on.
func (s *Server) Light() bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.light
}

// ClientCount returns the number of connected websocket clients.
func (s *Server) ClientCount() int {
	s.peersMu.RLock()
	defer s.peersMu.RUnlock()
	return len(s.peers)
}

// DisconnectAll drops every connected client.
func (s *Server) DisconnectAll() error {
	s.peersMu.Lock()
	defer s.peersMu.Unlock()

	var err error
	for p := range s.peers {
		err = multierr.Append(err, p.conn.Close())
		delete(s.peers, p)
	}
	return err
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorw("error upgrading websocket connection", "remote", r.RemoteAddr, "error", err)
		return
	}

	p := &peer{id: uuid.NewString(), conn: conn}
	logger := s.logger.With("client", p.id, "remote", r.RemoteAddr)
	logger.Info("websocket connection established")

	s.peersMu.Lock()
	s.peers[p] = true
	s.peersMu.Unlock()

	defer func() {
		conn.Close()
		s.peersMu.Lock()
		delete(s.peers, p)
		s.peersMu.Unlock()
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Info("client disconnected")
			} else {
				logger.Debugw("error reading message from websocket", "error", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		if err := s.handleCommand(p, string(data)); err != nil {
			logger.Warnw("error handling command", "command", string(data), "error", err)
		}
	}
}

func (s *Server) handleCommand(p *peer, text string) error {
	text = strings.TrimSpace(text)
	step := s.cfg.Step

	switch text {
	case "up":
		s.move(0, -step)
	case "down":
		s.move(0, step)
	case "left":
		s.move(-step, 0)
	case "right":
		s.move(step, 0)
	case "center":
		s.setPosition(s.cfg.Bounds.Center())
	case "light_on", "light_off":
		s.stateMu.Lock()
		s.light = text == "light_on"
		s.stateMu.Unlock()
	case "get_pos":
		return s.reply(p, s.Position())
	case "get_limits":
		return s.reply(p, s.cfg.Bounds)
	case "client_count":
		return s.reply(p, clientCount{Clients: s.ClientCount()})
	default:
		var target struct {
			X *int `json:"x"`
			Y *int `json:"y"`
		}
		if err := json.Unmarshal([]byte(text), &target); err != nil || target.X == nil || target.Y == nil {
			return s.reply(p, map[string]string{"error": "unknown command"})
		}
		s.setPosition(camera.Position{X: *target.X, Y: *target.Y})
	}

	s.broadcastStatus()
	return nil
}

func (s *Server) reply(p *peer, v any) error {
	if s.muted.Load() {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return p.write(websocket.TextMessage, data)
}

func (s *Server) move(dx, dy int) {
	s.stateMu.Lock()
	s.pos = s.cfg.Bounds.Clamp(camera.Position{X: s.pos.X + dx, Y: s.pos.Y + dy})
	s.stateMu.Unlock()
}

func (s *Server) setPosition(p camera.Position) {
	s.stateMu.Lock()
	s.pos = s.cfg.Bounds.Clamp(p)
	s.stateMu.Unlock()
}

func (s *Server) broadcastStatus() {
	s.stateMu.Lock()
	status := Status{Event: "status", Position: s.pos, Light: s.light}
	s.stateMu.Unlock()

	data, err := json.Marshal(status)
	if err != nil {
		s.logger.Errorw("error marshalling status", "error", err)
		return
	}
	s.broadcast(websocket.TextMessage, data)
}

// BroadcastFrame sends encoded image bytes to every client.
func (s *Server) BroadcastFrame(frameBytes []byte) {
	s.broadcast(websocket.BinaryMessage, frameBytes)
}

// BroadcastText sends a text frame to every client.
func (s *Server) BroadcastText(text string) {
	s.broadcast(websocket.TextMessage, []byte(text))
}

func (s *Server) broadcast(messageType int, data []byte) {
	s.peersMu.RLock()
	peers := make([]*peer, 0, len(s.peers))
	for p := range s.peers {
		peers = append(peers, p)
	}
	s.peersMu.RUnlock()

	for _, p := range peers {
		if err := p.write(messageType, data); err != nil {
			s.logger.Debugw("error writing message to websocket", "client", p.id, "error", err)
			p.conn.Close()
		}
	}
}

// StreamFrames broadcasts test-card frames at fps until ctx is done.
func (s *Server) StreamFrames(ctx context.Context, fps int) {
	if fps <= 0 {
		fps = 20
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		frame, err := s.RenderFrame()
		if err != nil {
			s.logger.Errorw("failed to encode frame", "error", err)
			continue
		}
		s.BroadcastFrame(frame)
	}
}

// RenderFrame draws the current head position as a marker on a plain card
// and encodes it as JPEG.
func (s *Server) RenderFrame() ([]byte, error) {
	pos := s.Position()
	b := s.cfg.Bounds
	w, h := s.cfg.Width, s.cfg.Height

	card := imaging.New(w, h, color.NRGBA{R: 32, G: 48, B: 64, A: 255})
	if s.Light() {
		card = imaging.AdjustBrightness(card, 40)
	}

	const size = 12
	mx := scale(pos.X, b.XMin, b.XMax, w-size)
	my := scale(pos.Y, b.YMin, b.YMax, h-size)
	marker := imaging.New(size, size, color.NRGBA{R: 255, G: 200, B: 0, A: 255})
	card = imaging.Paste(card, marker, image.Pt(mx, my))

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, card, imaging.JPEG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func scale(v, lo, hi, span int) int {
	if hi <= lo {
		return 0
	}
	return (v - lo) * span / (hi - lo)
}
