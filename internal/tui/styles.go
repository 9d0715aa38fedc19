package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	// TitleStyle is used for screen titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")). // Purple
			MarginBottom(1)

	// SelectedItemStyle is used for highlighted/selected items.
	SelectedItemStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("170")). // Light purple
				Bold(true)

	// NormalItemStyle is used for non-selected items.
	NormalItemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")) // Light gray

	// ErrorStyle is used for error messages.
	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")). // Red
			Bold(true)

	// HelpStyle is used for help text.
	HelpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")). // Dark gray
			MarginTop(1)
)

// optionColors maps GitHub single-select option colors to terminal colors.
var optionColors = map[string]lipgloss.Color{
	"GRAY":   lipgloss.Color("245"),
	"BLUE":   lipgloss.Color("33"),
	"GREEN":  lipgloss.Color("34"),
	"YELLOW": lipgloss.Color("220"),
	"ORANGE": lipgloss.Color("208"),
	"RED":    lipgloss.Color("196"),
	"PINK":   lipgloss.Color("205"),
	"PURPLE": lipgloss.Color("135"),
}

// columnColor returns the header color for an option color name.
func columnColor(name string) lipgloss.Color {
	if c, ok := optionColors[strings.ToUpper(name)]; ok {
		return c
	}
	return lipgloss.Color("205")
}
