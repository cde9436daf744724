// internal/tui/view.go
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/AlverezYari/suscam/pkg/client"
)

// Style definitions
var (
	headerStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("62")).
			Foreground(lipgloss.Color("0")).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("237")).
			Foreground(lipgloss.Color("250")).
			Padding(0, 1)

	mainContentStyle = lipgloss.NewStyle().
				Padding(1, 0)

	tabStyle = lipgloss.NewStyle().
			Padding(0, 1)

	activeTabStyle = tabStyle.
			Background(lipgloss.Color("62")).
			Foreground(lipgloss.Color("0"))

	fallbackStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

// View renders the UI
func (m Model) View() string {
	timeStr := m.currentTime.Format("Mon Jan 2 15:04:05 2006")

	headerContent := lipgloss.JoinHorizontal(
		lipgloss.Center,
		"📷 SUSCam",
		lipgloss.NewStyle().
			Width(max(m.width-12, 0)).
			Align(lipgloss.Right).
			Render(timeStr),
	)
	header := headerStyle.Width(m.width).Render(headerContent)

	tabs := m.renderTabs()
	mainContent := mainContentStyle.Render(m.renderActiveTabContent())

	statusBar := statusBarStyle.Width(m.width).Render(
		fmt.Sprintf("Status: %s | Tab or 1-3: Switch Views | Press q to quit", m.status),
	)

	return fmt.Sprintf("%s\n%s\n%s\n%s", header, tabs, mainContent, statusBar)
}

// Helper function to render tabs
func (m Model) renderTabs() string {
	var renderedTabs []string

	for _, t := range m.tabs {
		style := tabStyle
		if t.id == m.activeTab {
			style = activeTabStyle
		}
		renderedTabs = append(renderedTabs, style.Render(t.title))
	}

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		renderedTabs...,
	)
}

// Helper function to render active tab content
func (m Model) renderActiveTabContent() string {
	switch m.activeTab {
	case cameraTab:
		return m.renderCameraTab()
	case messagesTab:
		if len(m.messages) == 0 {
			return dimStyle.Render("No messages from the camera yet")
		}
		return m.logViewport.View()
	case sessionTab:
		st := m.ctl.Stats()
		return fmt.Sprintf("Session:\n"+
			"• Address: %s\n"+
			"• Mode: %s\n"+
			"• Frames delivered: %d\n"+
			"• Frames dropped: %d\n"+
			"• Messages: %d\n"+
			"• Replies correlated: %d",
			m.ctl.Address(), m.ctl.Mode(),
			st.FramesDelivered, st.FramesDropped, st.MessagesDelivered, st.RepliesCorrelated)
	}
	return ""
}

func (m Model) renderCameraTab() string {
	var content strings.Builder

	mode := m.ctl.Mode().String()
	if m.ctl.Mode() == client.ModeFallback {
		mode = fallbackStyle.Render("fallback (local webcam)")
	}
	content.WriteString(fmt.Sprintf("Camera %s: %s\n", m.ctl.Address(), mode))

	pos := "unknown"
	if m.position != nil {
		pos = fmt.Sprintf("x=%d y=%d", m.position.X, m.position.Y)
	}
	limits := "unknown"
	if m.limits != nil {
		limits = fmt.Sprintf("x %d..%d, y %d..%d", m.limits.XMin, m.limits.XMax, m.limits.YMin, m.limits.YMax)
	}
	light := "off"
	if m.light {
		light = "on"
	}
	content.WriteString(fmt.Sprintf("• Position: %s\n• Limits: %s\n• Light: %s\n", pos, limits, light))
	if m.clients != nil {
		content.WriteString(fmt.Sprintf("• Clients: %d\n", *m.clients))
	}

	if m.frames == 0 {
		content.WriteString("• Frames: none yet\n")
	} else {
		content.WriteString(fmt.Sprintf("• Frames: %d (%dx%d, %.1f fps)\n",
			m.frames, m.frameSize.X, m.frameSize.Y, m.fps))
	}

	content.WriteString("\n")
	content.WriteString(dimStyle.Render("arrows/wasd: move • c: center • l: light • p: position • i: limits • n: clients"))
	return content.String()
}
