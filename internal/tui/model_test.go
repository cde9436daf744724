package tui

import (
	"context"
	"image"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlverezYari/suscam/pkg/camera"
	"github.com/AlverezYari/suscam/pkg/client"
)

type fakeController struct {
	mu     sync.Mutex
	pos    camera.Position
	light  bool
	calls  []string
	failOn string
}

func (f *fakeController) record(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	if name == f.failOn {
		return errors.New("camera unplugged")
	}
	return nil
}

func (f *fakeController) step(name string, dx, dy int) error {
	if err := f.record(name); err != nil {
		return err
	}
	f.mu.Lock()
	f.pos = camera.DefaultBounds.Clamp(camera.Position{X: f.pos.X + dx, Y: f.pos.Y + dy})
	f.mu.Unlock()
	return nil
}

func (f *fakeController) Address() string     { return "cam.local" }
func (f *fakeController) Mode() client.Mode   { return client.ModeFallback }
func (f *fakeController) Stats() client.Stats { return client.Stats{FramesDelivered: 7} }

func (f *fakeController) Up(context.Context) error    { return f.step("up", 0, -1) }
func (f *fakeController) Down(context.Context) error  { return f.step("down", 0, 1) }
func (f *fakeController) Left(context.Context) error  { return f.step("left", -1, 0) }
func (f *fakeController) Right(context.Context) error { return f.step("right", 1, 0) }

func (f *fakeController) Center(context.Context) error {
	if err := f.record("center"); err != nil {
		return err
	}
	f.mu.Lock()
	f.pos = camera.DefaultBounds.Center()
	f.mu.Unlock()
	return nil
}

func (f *fakeController) LightOn(context.Context) error  { return f.record("light_on") }
func (f *fakeController) LightOff(context.Context) error { return f.record("light_off") }

func (f *fakeController) GetPos(context.Context) (camera.Position, error) {
	if err := f.record("get_pos"); err != nil {
		return camera.Position{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pos, nil
}

func (f *fakeController) GetLimits(context.Context) (camera.Bounds, error) {
	return camera.DefaultBounds, f.record("get_limits")
}

func (f *fakeController) ClientCount(context.Context) (int, error) {
	return 1, f.record("client_count")
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// press feeds a key and runs the resulting command back through Update.
func press(t *testing.T, m Model, key tea.KeyMsg) Model {
	t.Helper()
	next, cmd := m.Update(key)
	m = next.(Model)
	if cmd != nil {
		next, _ = m.Update(cmd())
		m = next.(Model)
	}
	return m
}

func TestMovementKeysRefreshPosition(t *testing.T) {
	ctl := &fakeController{pos: camera.Position{X: 90, Y: 45}}
	m := New(ctl)

	m = press(t, m, tea.KeyMsg{Type: tea.KeyRight})
	require.NotNil(t, m.position)
	assert.Equal(t, camera.Position{X: 91, Y: 45}, *m.position)

	m = press(t, m, tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, camera.Position{X: 91, Y: 44}, *m.position)

	m = press(t, m, runes("c"))
	assert.Equal(t, camera.Position{X: 90, Y: 45}, *m.position)
	assert.Equal(t, []string{"right", "get_pos", "up", "get_pos", "center", "get_pos"}, ctl.calls)
}

func TestLightToggle(t *testing.T) {
	ctl := &fakeController{}
	m := New(ctl)

	m = press(t, m, runes("l"))
	assert.True(t, m.light)
	m = press(t, m, runes("l"))
	assert.False(t, m.light)
	assert.Equal(t, []string{"light_on", "light_off"}, ctl.calls)
}

func TestQueries(t *testing.T) {
	m := New(&fakeController{})

	m = press(t, m, runes("i"))
	require.NotNil(t, m.limits)
	assert.Equal(t, camera.DefaultBounds, *m.limits)

	m = press(t, m, runes("n"))
	require.NotNil(t, m.clients)
	assert.Equal(t, 1, *m.clients)
	assert.Contains(t, m.View(), "Clients: 1")
}

func TestCommandErrorShowsInStatus(t *testing.T) {
	m := New(&fakeController{failOn: "left"})

	m = press(t, m, tea.KeyMsg{Type: tea.KeyLeft})
	assert.Contains(t, m.status, "camera unplugged")
	assert.Nil(t, m.position)
	assert.Len(t, m.messages, 1)
}

func TestFramesAndMessages(t *testing.T) {
	var sent []tea.Msg
	onImage, onMessage := Handlers(func(msg tea.Msg) { sent = append(sent, msg) })
	onImage(image.NewRGBA(image.Rect(0, 0, 64, 48)), nil)
	onMessage(client.Message{Raw: `{"event":"status"}`}, nil)
	require.Len(t, sent, 2)

	next, _ := New(&fakeController{}).Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	m := next.(Model)
	start := time.Now()
	for i := 0; i < 3; i++ {
		next, _ := m.Update(FrameMsg{Width: 64, Height: 48, At: start.Add(time.Duration(i) * 50 * time.Millisecond)})
		m = next.(Model)
	}
	assert.Equal(t, 3, m.frames)
	assert.Equal(t, image.Pt(64, 48), m.frameSize)
	assert.Greater(t, m.fps, 0.0)
	assert.Contains(t, m.View(), "Frames: 3 (64x48")

	next, _ = m.Update(sent[1])
	m = next.(Model)
	m = press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, messagesTab, m.activeTab)
	assert.Contains(t, m.View(), `{"event":"status"}`)
}

func TestTabsAndQuit(t *testing.T) {
	m := New(&fakeController{})

	m = press(t, m, runes("3"))
	assert.Equal(t, sessionTab, m.activeTab)
	assert.Contains(t, m.View(), "Frames delivered: 7")

	m = press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, cameraTab, m.activeTab)

	_, cmd := m.Update(runes("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}
