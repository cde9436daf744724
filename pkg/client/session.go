// Package client drives a remote pan/tilt camera over a websocket and falls
// back to a local capture device when the camera cannot be reached.
//
// A Session owns exactly one link at a time: the websocket in ModeConnected
// or the local device in ModeFallback. A background loop reads that link and
// hands decoded frames and text messages to the registered handlers, while
// the command methods (Up, GetPos, SetPosition, ...) drive the camera.
package client

import (
	"context"
	"fmt"
	"image"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/AlverezYari/suscam/pkg/camera"
)

// Mode is the link a Session currently uses.
type Mode int

const (
	ModeIdle Mode = iota
	ModeConnected
	ModeFallback
	ModeClosed
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeConnected:
		return "connected"
	case ModeFallback:
		return "fallback"
	case ModeClosed:
		return "closed"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// LoopState is the state of the background dispatch loop.
type LoopState int

const (
	LoopIdle LoopState = iota
	LoopRunning
	LoopStopped
)

func (l LoopState) String() string {
	switch l {
	case LoopIdle:
		return "idle"
	case LoopRunning:
		return "running"
	}
	return "stopped"
}

// ImageHandler receives every decoded frame.
type ImageHandler func(img image.Image, s *Session)

// MessageHandler receives every text unit that is not a query reply.
type MessageHandler func(msg Message, s *Session)

// Stats counts what the dispatch loop has done.
type Stats struct {
	FramesDelivered   int64
	FramesDropped     int64
	MessagesDelivered int64
	RepliesCorrelated int64
}

// deliveryBuffer is how many units may wait for a slow handler before the
// loop stops reading.
const deliveryBuffer = 16

type event struct {
	img image.Image
	msg Message
}

// Session is a client for one camera.
type Session struct {
	address string
	url     string
	logger  *zap.SugaredLogger

	dial           Dialer
	clock          clock.Clock
	openDevice     func() (camera.Device, error)
	bounds         camera.Bounds
	connectTimeout time.Duration
	queryTimeout   time.Duration
	frameInterval  time.Duration
	forceFallback  bool

	position *positionModel
	pending  *pendingQueries

	// ctx is cancelled by Close and stops every loop.
	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	mode         Mode
	connecting   bool
	closed       bool
	transport    Transport
	device       camera.Device
	loopState    LoopState
	loopDone     chan struct{}
	remoteLimits *camera.Bounds
	onImage      ImageHandler
	onMessage    MessageHandler
	frameWaiters []chan image.Image

	done     chan struct{}
	doneOnce sync.Once

	framesDelivered   atomic.Int64
	framesDropped     atomic.Int64
	messagesDelivered atomic.Int64
	repliesCorrelated atomic.Int64
}

// New creates a Session for the camera at address (host or host:port).
// Nothing is dialled until Connect.
func New(address string, opts ...Option) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		address:        address,
		url:            websocketURL(address),
		logger:         zap.NewNop().Sugar(),
		dial:           DialWebsocket,
		clock:          clock.New(),
		bounds:         camera.DefaultBounds,
		connectTimeout: DefaultConnectTimeout,
		queryTimeout:   DefaultQueryTimeout,
		frameInterval:  DefaultFrameInterval,
		pending:        newPendingQueries(),
		ctx:            ctx,
		cancel:         cancel,
		done:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("session", uuid.NewString(), "address", address)
	s.position = newPositionModel(s.bounds)
	return s
}

func websocketURL(address string) string {
	if strings.HasPrefix(address, "ws://") || strings.HasPrefix(address, "wss://") {
		return address
	}
	return fmt.Sprintf("ws://%s/ws", address)
}

// Address returns the address given to New.
func (s *Session) Address() string {
	return s.address
}

// Mode returns the current mode.
func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// IsFallback reports whether the session runs against the local device.
func (s *Session) IsFallback() bool {
	return s.Mode() == ModeFallback
}

// LoopState returns the state of the dispatch loop.
func (s *Session) LoopState() LoopState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loopState
}

// Done is closed once the session reaches ModeClosed, either through Close
// or because the camera dropped the connection.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// RemoteLimits returns the limits last reported by the camera.
func (s *Session) RemoteLimits() (camera.Bounds, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.remoteLimits == nil {
		return camera.Bounds{}, false
	}
	return *s.remoteLimits, true
}

// SetImageHandler replaces the image handler. nil disables it.
func (s *Session) SetImageHandler(h ImageHandler) {
	s.mu.Lock()
	s.onImage = h
	s.mu.Unlock()
}

// SetMessageHandler replaces the message handler. nil disables it.
func (s *Session) SetMessageHandler(h MessageHandler) {
	s.mu.Lock()
	s.onMessage = h
	s.mu.Unlock()
}

// Stats returns a snapshot of the dispatch counters.
func (s *Session) Stats() Stats {
	return Stats{
		FramesDelivered:   s.framesDelivered.Load(),
		FramesDropped:     s.framesDropped.Load(),
		MessagesDelivered: s.messagesDelivered.Load(),
		RepliesCorrelated: s.repliesCorrelated.Load(),
	}
}

// Connect dials the camera and performs the handshake. If either fails the
// session switches to fallback instead; that is not an error. Connect only
// fails when the session was already connected or closed.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return ErrSessionClosed
	case s.connecting || s.mode != ModeIdle:
		s.mu.Unlock()
		return ErrAlreadyConnected
	}
	s.connecting = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.connecting = false
		s.mu.Unlock()
	}()

	if s.forceFallback {
		s.logger.Info("fallback mode forced, no websocket connection")
		return s.startFallback()
	}

	s.logger.Infow("connecting", "url", s.url)
	err := s.connectRemote(ctx)
	if err == nil {
		return nil
	}
	if s.isClosed() {
		return ErrSessionClosed
	}
	s.logger.Warnw("websocket connection failed, switching to fallback", "error", err)
	return s.startFallback()
}

func (s *Session) connectRemote(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.connectTimeout)
	defer cancel()

	t, err := s.dial(ctx, s.url)
	if err != nil {
		if errors.Is(err, ErrConnectFailure) {
			return err
		}
		return errors.Wrapf(ErrConnectFailure, "dial %s: %v", s.url, err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return multierr.Append(ErrSessionClosed, t.Close())
	}
	s.transport = t
	s.loopState = LoopRunning
	s.loopDone = make(chan struct{})
	loopDone := s.loopDone
	s.mu.Unlock()

	go s.listen(t, loopDone)

	limits, err := s.queryLimits(ctx, t)
	if err != nil {
		s.dropTransport(t, loopDone)
		return errors.Wrapf(ErrConnectFailure, "handshake get_limits: %v", err)
	}
	pos, err := s.queryPosition(ctx, t)
	if err != nil {
		s.dropTransport(t, loopDone)
		return errors.Wrapf(ErrConnectFailure, "handshake get_pos: %v", err)
	}

	s.mu.Lock()
	if s.closed || s.transport != t {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.mode = ModeConnected
	s.remoteLimits = &limits
	s.mu.Unlock()

	s.logger.Infow("websocket connection established", "limits", limits, "position", pos)
	return nil
}

// dropTransport abandons a transport whose handshake failed.
func (s *Session) dropTransport(t Transport, loopDone chan struct{}) {
	s.mu.Lock()
	if s.transport == t {
		s.transport = nil
	}
	s.mu.Unlock()

	if err := t.Close(); err != nil {
		s.logger.Debugw("error closing abandoned transport", "error", err)
	}
	<-loopDone
	s.pending.failAll(ErrConnectFailure)
}

func (s *Session) startFallback() error {
	var dev camera.Device
	if s.openDevice != nil {
		d, err := s.openDevice()
		if err != nil {
			s.logger.Warnw("local camera unavailable, fallback runs without frames", "error", err)
		} else {
			dev = d
		}
	} else {
		s.logger.Info("no local camera configured, fallback runs without frames")
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		if dev != nil {
			return multierr.Append(ErrSessionClosed, dev.Close())
		}
		return ErrSessionClosed
	}
	s.mode = ModeFallback
	s.device = dev
	s.loopState = LoopRunning
	s.loopDone = make(chan struct{})
	loopDone := s.loopDone
	// The ticker is created before the loop starts so a mock clock can
	// advance it as soon as Connect returns.
	ticker := s.clock.Ticker(s.frameInterval)
	s.mu.Unlock()

	go s.poll(dev, ticker, loopDone)

	s.logger.Infow("fallback mode active", "bounds", s.bounds, "interval", s.frameInterval)
	return nil
}

// Close stops the loop and releases the websocket or the local device.
// Calling it again is a no-op. It is safe to call from a handler.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	t, dev, loopDone := s.transport, s.device, s.loopDone
	s.transport, s.device = nil, nil
	s.markClosedLocked()
	s.mu.Unlock()

	s.cancel()

	var err error
	if t != nil {
		err = multierr.Append(err, t.Close())
	}
	if loopDone != nil {
		<-loopDone
	}
	if dev != nil {
		err = multierr.Append(err, dev.Close())
	}
	s.pending.failAll(ErrSessionClosed)

	s.logger.Info("camera session closed")
	return err
}

// Run connects, blocks until ctx is done or the session closes, then closes.
func (s *Session) Run(ctx context.Context) error {
	if err := s.Connect(ctx); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
	case <-s.done:
	}
	return s.Close()
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) markClosedLocked() {
	s.mode = ModeClosed
	s.doneOnce.Do(func() { close(s.done) })
}

// active returns the link commands should use.
func (s *Session) active() (Mode, Transport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.mode {
	case ModeConnected:
		return s.mode, s.transport, nil
	case ModeFallback:
		return s.mode, nil, nil
	case ModeClosed:
		return s.mode, nil, ErrSessionClosed
	}
	if s.closed {
		return s.mode, nil, ErrSessionClosed
	}
	return s.mode, nil, ErrNotConnected
}
