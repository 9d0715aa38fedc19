package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/h0rv/ghpsync/internal/domain"
	"github.com/h0rv/ghpsync/internal/store"
)

// AppScreen represents the different screens in the application flow.
type AppScreen int

const (
	ScreenLoading AppScreen = iota
	ScreenProjectPicker
	ScreenBoard
	ScreenDetail
)

// Session is an opened project: its store and the manager syncing it.
type Session struct {
	Store  *store.Store
	Syncer Syncer
	// Close stops background syncing. It may be nil.
	Close func()
}

// ProjectLister lists the projects the user can open.
type ProjectLister func(ctx context.Context) ([]domain.Project, error)

// ProjectOpener loads a project's fields and starts syncing it.
type ProjectOpener func(ctx context.Context, project domain.Project) (*Session, error)

// AppModel is the root Bubble Tea model. It runs project selection, then
// the board, with the card detail view on top of the board.
type AppModel struct {
	ctx  context.Context
	list ProjectLister
	open ProjectOpener

	screen     AppScreen
	picker     ProjectPickerModel
	board      BoardModel
	detail     DetailModel
	session    *Session
	err        error
	loadingMsg string

	width  int
	height int
}

// NewAppModel starts with the project picker.
func NewAppModel(ctx context.Context, list ProjectLister, open ProjectOpener) AppModel {
	return AppModel{
		ctx:        ctx,
		list:       list,
		open:       open,
		screen:     ScreenLoading,
		loadingMsg: "Loading projects...",
	}
}

// NewBoardApp starts directly on the board of an already opened session.
func NewBoardApp(ctx context.Context, session *Session) AppModel {
	return AppModel{
		ctx:     ctx,
		screen:  ScreenBoard,
		board:   NewBoardModel(ctx, session.Store, session.Syncer),
		session: session,
	}
}

// Init initializes the app model.
func (m AppModel) Init() tea.Cmd {
	if m.screen == ScreenBoard {
		return m.board.Init()
	}
	return m.listProjects()
}

// Update handles messages and transitions between screens.
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		var cmds []tea.Cmd
		if m.session != nil {
			cmds = append(cmds, m.updateBoard(msg))
		}
		switch m.screen {
		case ScreenProjectPicker:
			cmds = append(cmds, m.updatePicker(msg))
		case ScreenDetail:
			cmds = append(cmds, m.updateDetail(msg))
		}
		return m, tea.Batch(cmds...)

	case tea.KeyMsg:
		switch m.screen {
		case ScreenBoard:
			return m, m.updateBoard(msg)
		case ScreenDetail:
			return m, m.updateDetail(msg)
		case ScreenProjectPicker:
			return m, m.updatePicker(msg)
		}
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			return m, tea.Quit
		}
		return m, nil

	case ErrorMsg:
		if m.session != nil {
			m.board.setToast(msg.Err.Error(), true)
			return m, nil
		}
		m.err = msg.Err
		return m, nil

	case QuitMsg:
		return m, tea.Quit

	case projectsLoadedMsg:
		m.screen = ScreenProjectPicker
		var cmd tea.Cmd
		m.picker, cmd = NewProjectPickerModel(msg.projects, msg.warning)
		return m, tea.Batch(m.picker.Init(), cmd)

	case ProjectSelectedMsg:
		m.screen = ScreenLoading
		m.loadingMsg = fmt.Sprintf("Opening %s...", msg.Project.Title)
		return m, m.openProject(msg.Project)

	case sessionOpenedMsg:
		m.session = msg.session
		m.board = NewBoardModel(m.ctx, msg.session.Store, msg.session.Syncer)
		m.screen = ScreenBoard
		return m, tea.Batch(m.board.Init(), tea.WindowSize())

	case openDetailMsg:
		m.detail = NewDetailModel(msg.item)
		m.screen = ScreenDetail
		return m, m.updateDetail(tea.WindowSizeMsg{Width: m.width, Height: m.height})

	case closeDetailMsg:
		m.screen = ScreenBoard
		return m, nil
	}

	// Everything else belongs to the active child. Board messages such as
	// sync results keep flowing while the detail view is open.
	switch m.screen {
	case ScreenProjectPicker:
		return m, m.updatePicker(msg)
	case ScreenDetail:
		return m, tea.Batch(m.updateBoard(msg), m.updateDetail(msg))
	case ScreenBoard:
		return m, m.updateBoard(msg)
	}
	return m, nil
}

func (m *AppModel) updateBoard(msg tea.Msg) tea.Cmd {
	if m.session == nil {
		return nil
	}
	updated, cmd := m.board.Update(msg)
	m.board = updated.(BoardModel)
	return cmd
}

func (m *AppModel) updateDetail(msg tea.Msg) tea.Cmd {
	updated, cmd := m.detail.Update(msg)
	m.detail = updated.(DetailModel)
	return cmd
}

func (m *AppModel) updatePicker(msg tea.Msg) tea.Cmd {
	updated, cmd := m.picker.Update(msg)
	m.picker = updated.(ProjectPickerModel)
	return cmd
}

// View renders the current screen.
func (m AppModel) View() string {
	if m.err != nil {
		return ErrorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.screen {
	case ScreenProjectPicker:
		return m.picker.View()
	case ScreenBoard:
		return m.board.View()
	case ScreenDetail:
		return m.detail.View()
	}
	return m.loadingMsg + "\n\nPress Ctrl+C to quit"
}

// Close releases the board subscription and stops the session.
func (m AppModel) Close() {
	if m.session == nil {
		return
	}
	m.board.Close()
	if m.session.Close != nil {
		m.session.Close()
	}
}

func (m AppModel) listProjects() tea.Cmd {
	ctx, list := m.ctx, m.list
	return func() tea.Msg {
		projects, err := list(ctx)
		if len(projects) == 0 {
			if err == nil {
				err = fmt.Errorf("no projects found")
			}
			return ErrorMsg{Err: fmt.Errorf("failed to list projects: %w", err)}
		}
		// Owners that failed are skipped; the rest stay selectable.
		return projectsLoadedMsg{projects: projects, warning: err}
	}
}

func (m AppModel) openProject(project domain.Project) tea.Cmd {
	ctx, open := m.ctx, m.open
	return func() tea.Msg {
		session, err := open(ctx, project)
		if err != nil {
			return ErrorMsg{Err: fmt.Errorf("failed to open project %s: %w", project.Title, err)}
		}
		return sessionOpenedMsg{session: session}
	}
}

// Run runs m as a full-screen program and closes it on exit.
func Run(m AppModel) error {
	final, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	if app, ok := final.(AppModel); ok {
		app.Close()
	} else {
		m.Close()
	}
	return err
}

// Custom messages for app transitions.
type (
	projectsLoadedMsg struct {
		projects []domain.Project
		warning  error
	}

	sessionOpenedMsg struct {
		session *Session
	}
)
