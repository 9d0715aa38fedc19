package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/h0rv/ghpsync/internal/domain"
)

// projectItem wraps a domain.Project for use in bubbles/list.
type projectItem struct {
	project domain.Project
}

func (i projectItem) FilterValue() string {
	return i.project.Owner + "/" + i.project.Title
}

func (i projectItem) Title() string {
	return fmt.Sprintf("%s #%d: %s", i.project.Owner, i.project.Number, i.project.Title)
}

func (i projectItem) Description() string {
	return i.project.URL
}

func newProjectDelegate() list.DefaultDelegate {
	d := list.NewDefaultDelegate()
	d.Styles.NormalTitle = NormalItemStyle.Padding(0, 0, 0, 2)
	d.Styles.NormalDesc = dimStyle.Padding(0, 0, 0, 2)
	d.Styles.SelectedTitle = SelectedItemStyle.
		Border(lipgloss.NormalBorder(), false, false, false, true).
		BorderForeground(lipgloss.Color("170")).
		Padding(0, 0, 0, 1)
	d.Styles.SelectedDesc = d.Styles.SelectedTitle.Bold(false).Foreground(lipgloss.Color("241"))
	return d
}

// ProjectPickerModel lets the user choose a project across all owners.
type ProjectPickerModel struct {
	list list.Model
}

// NewProjectPickerModel creates a picker over projects. A non-nil warning is
// shown in the status bar, e.g. when some owners could not be listed.
func NewProjectPickerModel(projects []domain.Project, warning error) (ProjectPickerModel, tea.Cmd) {
	items := make([]list.Item, len(projects))
	for i, p := range projects {
		items[i] = projectItem{project: p}
	}

	l := list.New(items, newProjectDelegate(), 80, 20)
	l.Title = "Select a Project"
	l.SetStatusBarItemName("project", "projects")
	l.SetFilteringEnabled(true)
	l.Styles.Title = TitleStyle
	l.StatusMessageLifetime = 10 * time.Second

	var cmd tea.Cmd
	if warning != nil {
		cmd = l.NewStatusMessage(ErrorStyle.Render("Some owners were skipped: " + warning.Error()))
	}
	return ProjectPickerModel{list: l}, cmd
}

// Init initializes the model.
func (m ProjectPickerModel) Init() tea.Cmd {
	return tea.WindowSize()
}

// Update handles messages and updates the model state.
func (m ProjectPickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width-2, msg.Height-2)
		return m, nil

	case tea.KeyMsg:
		// Keys belong to the filter input while the user is typing
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, func() tea.Msg { return QuitMsg{} }
		case "enter":
			if item, ok := m.list.SelectedItem().(projectItem); ok {
				return m, func() tea.Msg { return ProjectSelectedMsg{Project: item.project} }
			}
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the model.
func (m ProjectPickerModel) View() string {
	return m.list.View()
}
