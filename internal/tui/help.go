package tui

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/lipgloss"
)

// HelpOverlayStyle defines the style for the help overlay container.
var HelpOverlayStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(lipgloss.Color("62")).
	Padding(1, 2).
	MarginTop(1)

// syncLegend explains the sync state shown in the header.
const syncLegend = `Moves apply immediately and are sent to GitHub in the background.
"N pending" counts moves not yet confirmed; the next sync retries them.
R drops pending moves and reloads the board from GitHub.`

// HelpModel renders the full key map and the sync legend.
type HelpModel struct {
	help   help.Model
	keymap KeyMap
}

// NewHelpModel creates a new help overlay model.
func NewHelpModel(keymap KeyMap) HelpModel {
	h := help.New()
	h.ShowAll = true

	return HelpModel{
		help:   h,
		keymap: keymap,
	}
}

// View renders the help overlay.
func (m HelpModel) View(width int) string {
	m.help.Width = width - 8 // Account for padding and border
	return HelpOverlayStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		TitleStyle.Render("Keyboard shortcuts"),
		m.help.View(m.keymap),
		HelpStyle.Render(syncLegend),
	))
}
