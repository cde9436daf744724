// internal/tui/update.go
package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/AlverezYari/suscam/pkg/camera"
)

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.logViewport.Width = msg.Width
		if h := msg.Height - 6; h > 3 {
			m.logViewport.Height = h
		}

	case tickMsg:
		m.currentTime = time.Time(msg)
		return m, timeTickCmd()

	case FrameMsg:
		m.recordFrame(msg)

	case MessageMsg:
		m.addMessage(msg.At, msg.Text)

	case positionMsg:
		pos := camera.Position(msg)
		m.position = &pos

	case limitsMsg:
		b := camera.Bounds(msg)
		m.limits = &b

	case clientsMsg:
		n := int(msg)
		m.clients = &n
		m.status = fmt.Sprintf("%d client(s) connected to the camera", n)

	case lightMsg:
		m.light = bool(msg)

	case errMsg:
		m.status = fmt.Sprintf("Error: %s: %v", msg.action, msg.err)
		m.addMessage(time.Now(), m.status)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "1":
		m.activeTab = cameraTab
	case "2":
		m.activeTab = messagesTab
	case "3":
		m.activeTab = sessionTab
	case "tab":
		// Cycle through tabs
		m.activeTab = (m.activeTab + 1) % tabType(len(m.tabs))

	case "up", "w":
		if m.activeTab == messagesTab {
			m.logViewport.LineUp(1)
			return m, nil
		}
		return m, m.move("up", m.ctl.Up)
	case "down", "s":
		if m.activeTab == messagesTab {
			m.logViewport.LineDown(1)
			return m, nil
		}
		return m, m.move("down", m.ctl.Down)
	case "left", "a":
		return m, m.move("left", m.ctl.Left)
	case "right", "d":
		return m, m.move("right", m.ctl.Right)
	case "c":
		return m, m.move("center", m.ctl.Center)
	case "l":
		return m, m.toggleLight()
	case "p":
		return m, m.queryPosition()
	case "i":
		return m, m.queryLimits()
	case "n":
		return m, m.queryClients()
	}
	return m, nil
}
