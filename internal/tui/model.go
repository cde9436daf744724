// internal/tui/model.go
package tui

import (
	"context"
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/AlverezYari/suscam/pkg/camera"
	"github.com/AlverezYari/suscam/pkg/client"
)

type tabType int

const (
	cameraTab tabType = iota
	messagesTab
	sessionTab
)

type tab struct {
	title string
	id    tabType
}

// commandTimeout bounds each command the panel issues.
const commandTimeout = 3 * time.Second

const maxMessages = 1000

// Controller is the part of a camera session the panel drives.
type Controller interface {
	Address() string
	Mode() client.Mode
	Stats() client.Stats
	Up(ctx context.Context) error
	Down(ctx context.Context) error
	Left(ctx context.Context) error
	Right(ctx context.Context) error
	Center(ctx context.Context) error
	LightOn(ctx context.Context) error
	LightOff(ctx context.Context) error
	GetPos(ctx context.Context) (camera.Position, error)
	GetLimits(ctx context.Context) (camera.Bounds, error)
	ClientCount(ctx context.Context) (int, error)
}

// Msg types
type tickMsg time.Time

// FrameMsg reports a frame the session delivered.
type FrameMsg struct {
	Width  int
	Height int
	At     time.Time
}

// MessageMsg carries a text message from the camera.
type MessageMsg struct {
	Text string
	At   time.Time
}

type positionMsg camera.Position

type limitsMsg camera.Bounds

type clientsMsg int

type lightMsg bool

type errMsg struct {
	action string
	err    error
}

// Handlers returns session handlers that forward into send, usually
// (*tea.Program).Send. They never block the session for long.
func Handlers(send func(tea.Msg)) (client.ImageHandler, client.MessageHandler) {
	onImage := func(img image.Image, _ *client.Session) {
		b := img.Bounds()
		send(FrameMsg{Width: b.Dx(), Height: b.Dy(), At: time.Now()})
	}
	onMessage := func(msg client.Message, _ *client.Session) {
		send(MessageMsg{Text: msg.Raw, At: time.Now()})
	}
	return onImage, onMessage
}

// Model holds the control panel state
type Model struct {
	ctl         Controller
	width       int
	height      int
	status      string
	currentTime time.Time
	activeTab   tabType
	tabs        []tab

	position    *camera.Position
	limits      *camera.Bounds
	clients     *int
	light       bool
	frames      int
	frameSize   image.Point
	lastFrame   time.Time
	fps         float64
	messages    []string
	logViewport viewport.Model
}

// New returns a Model driving ctl
func New(ctl Controller) Model {
	now := time.Now()
	return Model{
		ctl:         ctl,
		status:      fmt.Sprintf("Camera session %s", ctl.Mode()),
		currentTime: now,
		activeTab:   cameraTab,
		tabs: []tab{
			{title: "Camera", id: cameraTab},
			{title: "Messages", id: messagesTab},
			{title: "Session", id: sessionTab},
		},
		logViewport: func() viewport.Model {
			vp := viewport.New(0, 10)
			vp.MouseWheelEnabled = true
			return vp
		}(),
		messages: make([]string, 0),
	}
}

// Init runs any initial IO
func (m Model) Init() tea.Cmd {
	return tea.Batch(timeTickCmd(), m.queryLimits(), m.queryPosition())
}

func (m *Model) addMessage(at time.Time, text string) {
	m.messages = append(m.messages, fmt.Sprintf("%s %s", at.Format("15:04:05"), text))
	if len(m.messages) > maxMessages {
		m.messages = m.messages[1:]
	}
	m.logViewport.SetContent(strings.Join(m.messages, "\n"))
	m.logViewport.GotoBottom()
}

func (m *Model) recordFrame(f FrameMsg) {
	if !m.lastFrame.IsZero() {
		if dt := f.At.Sub(m.lastFrame).Seconds(); dt > 0 {
			// Exponential smoothing keeps the readout steady.
			m.fps = 0.9*m.fps + 0.1*(1/dt)
		}
	}
	m.frames++
	m.frameSize = image.Pt(f.Width, f.Height)
	m.lastFrame = f.At
}

func (m Model) run(action string, fn func(ctx context.Context) (tea.Msg, error)) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		msg, err := fn(ctx)
		if err != nil {
			return errMsg{action: action, err: err}
		}
		return msg
	}
}

// move issues a movement and reads the position back.
func (m Model) move(action string, fn func(ctx context.Context) error) tea.Cmd {
	return m.run(action, func(ctx context.Context) (tea.Msg, error) {
		if err := fn(ctx); err != nil {
			return nil, err
		}
		pos, err := m.ctl.GetPos(ctx)
		return positionMsg(pos), err
	})
}

func (m Model) queryPosition() tea.Cmd {
	return m.run("get_pos", func(ctx context.Context) (tea.Msg, error) {
		pos, err := m.ctl.GetPos(ctx)
		return positionMsg(pos), err
	})
}

func (m Model) queryLimits() tea.Cmd {
	return m.run("get_limits", func(ctx context.Context) (tea.Msg, error) {
		b, err := m.ctl.GetLimits(ctx)
		return limitsMsg(b), err
	})
}

func (m Model) queryClients() tea.Cmd {
	return m.run("client_count", func(ctx context.Context) (tea.Msg, error) {
		n, err := m.ctl.ClientCount(ctx)
		return clientsMsg(n), err
	})
}

func (m Model) toggleLight() tea.Cmd {
	on := !m.light
	return m.run("light", func(ctx context.Context) (tea.Msg, error) {
		if on {
			return lightMsg(true), m.ctl.LightOn(ctx)
		}
		return lightMsg(false), m.ctl.LightOff(ctx)
	})
}

// Helper command for time updates
func timeTickCmd() tea.Cmd {
	return tea.Every(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
