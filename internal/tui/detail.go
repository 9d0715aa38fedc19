package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/muesli/reflow/wordwrap"

	"github.com/h0rv/ghpsync/internal/domain"
)

// Detail view styles
var (
	detailTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("205"))

	detailLabelStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("241")).
				Width(12)

	detailValueStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("252"))

	detailBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("205"))
)

// DetailModel shows one item's metadata, project fields and body.
type DetailModel struct {
	item     *domain.Item
	viewport viewport.Model
	now      func() time.Time

	width  int
	height int
}

// NewDetailModel creates a detail view for item.
func NewDetailModel(item *domain.Item) DetailModel {
	m := DetailModel{
		item:     item,
		viewport: viewport.New(80, 20),
		now:      time.Now,
	}
	m.updateViewportContent()
	return m
}

// Init initializes the model.
func (m DetailModel) Init() tea.Cmd {
	return tea.WindowSize()
}

// Update handles messages
func (m DetailModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		// Border takes two cells each way, header and footer a line each
		m.viewport.Width = max(msg.Width-4, 20)
		m.viewport.Height = max(msg.Height-4, 5)
		m.updateViewportContent()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "esc", "q", "enter":
			return m, func() tea.Msg { return closeDetailMsg{} }
		case "o":
			if m.item.URL != "" {
				url := m.item.URL
				return m, func() tea.Msg {
					if err := openURL(url); err != nil {
						return ErrorMsg{Err: err}
					}
					return nil
				}
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the detail pane.
func (m DetailModel) View() string {
	header := detailTitleStyle.Render(m.item.Title)
	footer := dimStyle.Render(fmt.Sprintf("esc:back o:open j/k:scroll  %3.f%%", m.viewport.ScrollPercent()*100))
	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		detailBorderStyle.Render(m.viewport.View()),
		footer,
	)
}

func (m *DetailModel) updateViewportContent() {
	m.viewport.SetContent(renderItemDetail(m.item, m.viewport.Width, m.now()))
}

// renderItemDetail lays out an item as label/value rows followed by the
// wrapped body.
func renderItemDetail(item *domain.Item, width int, now time.Time) string {
	var rows [][2]string
	add := func(label, value string) {
		if value != "" {
			rows = append(rows, [2]string{label, value})
		}
	}

	add("Type", string(item.Type))
	if item.Repo != "" {
		add("Ref", fmt.Sprintf("%s#%d", item.Repo, item.Number))
	}
	add("State", item.State)
	add("Author", item.Author)
	add("Assignees", joinLogins(item.Assignees))
	add("Labels", strings.Join(item.Labels, ", "))
	add("Milestone", item.Milestone)
	if !item.UpdatedAt.IsZero() {
		add("Updated", humanize.RelTime(item.UpdatedAt, now, "ago", "from now"))
	}
	if item.CommentCount > 0 || item.ReactionCount > 0 {
		add("Activity", fmt.Sprintf("%d comments, %d reactions", item.CommentCount, item.ReactionCount))
	}
	if pr := item.PR; pr != nil {
		add("Review", strings.ToLower(pr.ReviewDecision))
		add("Reviewers", strings.Join(pr.Reviewers, ", "))
		add("CI", strings.ToLower(pr.CIStatus))
		add("Diff", fmt.Sprintf("+%d -%d", pr.Additions, pr.Deletions))
		if pr.Draft {
			add("Draft", "yes")
		}
	}

	names := make([]string, 0, len(item.FieldValues))
	for name := range item.FieldValues {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		add(name, item.FieldValues[name].String())
	}

	var b strings.Builder
	for _, row := range rows {
		b.WriteString(detailLabelStyle.Render(row[0]))
		b.WriteString(detailValueStyle.Render(row[1]))
		b.WriteString("\n")
	}

	body := strings.TrimSpace(item.Body)
	if body == "" {
		body = dimStyle.Render("(no description)")
	}
	b.WriteString("\n")
	b.WriteString(wordwrap.String(body, max(width-2, 20)))
	return b.String()
}

func joinLogins(assignees []domain.Assignee) string {
	logins := make([]string, len(assignees))
	for i, a := range assignees {
		logins[i] = "@" + a.Login
	}
	return strings.Join(logins, ", ")
}
