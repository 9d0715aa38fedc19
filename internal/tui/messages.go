// Package tui provides the Bubble Tea models for the interactive board.
package tui

import (
	"time"

	"github.com/h0rv/ghpsync/internal/domain"
)

// ProjectSelectedMsg is emitted when the user selects a project.
type ProjectSelectedMsg struct {
	Project domain.Project
}

// ErrorMsg is emitted when an error occurs.
type ErrorMsg struct {
	Err error
}

// QuitMsg is emitted when the user requests to quit.
type QuitMsg struct{}

// Board-internal messages
type (
	boardChangedMsg struct{}
	syncDoneMsg     struct {
		err    error
		forced bool
	}
	clockTickMsg   time.Time
	openDetailMsg  struct{ item *domain.Item }
	closeDetailMsg struct{}
)
