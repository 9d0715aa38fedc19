package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/muesli/reflow/truncate"
	"github.com/pkg/browser"

	"github.com/h0rv/ghpsync/internal/domain"
	"github.com/h0rv/ghpsync/internal/store"
)

// Layout constants
const (
	minColumnWidth = 20
	maxColumnWidth = 35
	headerLines    = 2  // Title/status line plus hint line
	pageJumpSize   = 10 // Number of cards to jump with Ctrl+D/U
	clockInterval  = 30 * time.Second
)

// Styles for the board view - base styles without width/height (set dynamically)
var (
	cardStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	selectedCardStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("205")).
				Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("34"))

	pendingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("220"))

	titleStyle = lipgloss.NewStyle().
			Bold(true)

	moveModeStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("205")).
			Foreground(lipgloss.Color("0")).
			Padding(0, 1)
)

// openURL is swapped out in tests.
var openURL = browser.OpenURL

// Syncer is what the board needs from the sync manager.
type Syncer interface {
	Sync(ctx context.Context) error
	ForceRefresh(ctx context.Context) error
	MoveCard(itemID, columnID string) bool
	PendingUpdates() []domain.PendingUpdate
	LastSync() time.Time
}

// BoardModel is the kanban board for one project.
type BoardModel struct {
	// Dependencies
	store  *store.Store
	syncer Syncer
	ctx    context.Context
	now    func() time.Time

	// UI components
	keymap      KeyMap
	help        HelpModel
	spinner     spinner.Model
	filterInput textinput.Model

	// Store change notifications, coalesced to one pending signal
	changes     chan struct{}
	unsubscribe func()

	// Board state
	columns        []domain.Column
	visible        map[string][]*domain.Item // Column ID -> filtered cards
	selectedColumn int                       // Currently selected column
	columnOffset   int                       // First visible column index
	selectedCard   map[string]int            // Column ID -> selected card index
	scrollOffset   map[string]int            // Column ID -> scroll offset

	// View state
	width      int
	height     int
	showHelp   bool
	filterMode bool
	filterText string
	moveMode   bool
	syncing    bool
	toast      string
	toastIsErr bool
}

// NewBoardModel creates a board over s. It subscribes to store changes
// until Close is called.
func NewBoardModel(ctx context.Context, s *store.Store, syncer Syncer) BoardModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	ti := textinput.New()
	ti.Placeholder = "Filter..."
	ti.Prompt = "/ "

	changes := make(chan struct{}, 1)
	unsubscribe := s.Events().OnAnyChange(func() {
		select {
		case changes <- struct{}{}:
		default:
		}
	})

	m := BoardModel{
		store:        s,
		syncer:       syncer,
		ctx:          ctx,
		now:          time.Now,
		keymap:       DefaultKeyMap(),
		help:         NewHelpModel(DefaultKeyMap()),
		spinner:      sp,
		filterInput:  ti,
		changes:      changes,
		unsubscribe:  unsubscribe,
		visible:      make(map[string][]*domain.Item),
		selectedCard: make(map[string]int),
		scrollOffset: make(map[string]int),
	}
	m.rebuild()
	return m
}

// Close stops listening for store changes.
func (m BoardModel) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

// Init starts the first sync and the background listeners.
func (m BoardModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		tea.WindowSize(),
		m.waitForChange(),
		m.clockTick(),
		func() tea.Msg { return startSyncMsg{} },
	)
}

type startSyncMsg struct{}

// Update handles messages
func (m BoardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.adjustColumnScroll()
		return m, nil

	case boardChangedMsg:
		m.rebuild()
		return m, m.waitForChange()

	case startSyncMsg:
		return m.startSync(false)

	case syncDoneMsg:
		m.syncing = false
		switch {
		case msg.err != nil:
			m.setToast(fmt.Sprintf("Sync failed: %v", msg.err), true)
		case msg.forced:
			m.setToast("Board refreshed", false)
		}
		m.rebuild()
		return m, nil

	case clockTickMsg:
		return m, m.clockTick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	}

	return m, nil
}

func (m BoardModel) waitForChange() tea.Cmd {
	changes := m.changes
	return func() tea.Msg {
		<-changes
		return boardChangedMsg{}
	}
}

// clockTick keeps the "synced ... ago" header current.
func (m BoardModel) clockTick() tea.Cmd {
	return tea.Tick(clockInterval, func(t time.Time) tea.Msg { return clockTickMsg(t) })
}

func (m BoardModel) startSync(forced bool) (tea.Model, tea.Cmd) {
	if m.syncing {
		return m, nil
	}
	m.syncing = true

	syncer, ctx := m.syncer, m.ctx
	return m, tea.Batch(m.spinner.Tick, func() tea.Msg {
		var err error
		if forced {
			err = syncer.ForceRefresh(ctx)
		} else {
			err = syncer.Sync(ctx)
		}
		return syncDoneMsg{err: err, forced: forced}
	})
}

func (m *BoardModel) setToast(text string, isErr bool) {
	m.toast = text
	m.toastIsErr = isErr
}

// handleKeyPress processes keyboard input
func (m BoardModel) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keymap.ForceQuit) {
		return m, tea.Quit
	}

	// Help overlay
	if m.showHelp {
		if key.Matches(msg, m.keymap.Help, m.keymap.Quit, m.keymap.Cancel) {
			m.showHelp = false
		}
		return m, nil
	}

	// Filter mode
	if m.filterMode {
		switch {
		case key.Matches(msg, m.keymap.ApplyFilter):
			m.filterMode = false
			m.filterText = m.filterInput.Value()
			m.filterInput.Blur()
			m.applyFilter()
			return m, nil
		case key.Matches(msg, m.keymap.Cancel):
			m.filterMode = false
			m.filterInput.SetValue(m.filterText)
			m.filterInput.Blur()
			return m, nil
		default:
			var cmd tea.Cmd
			m.filterInput, cmd = m.filterInput.Update(msg)
			return m, cmd
		}
	}

	if m.moveMode {
		return m.handleMoveMode(msg)
	}

	m.toast = ""

	switch {
	case key.Matches(msg, m.keymap.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keymap.Help):
		m.showHelp = true
	case key.Matches(msg, m.keymap.Filter):
		m.filterMode = true
		return m, m.filterInput.Focus()
	case key.Matches(msg, m.keymap.Left):
		if m.selectedColumn > 0 {
			m.selectedColumn--
			m.adjustColumnScroll()
		}
	case key.Matches(msg, m.keymap.Right):
		if m.selectedColumn < len(m.columns)-1 {
			m.selectedColumn++
			m.adjustColumnScroll()
		}
	case key.Matches(msg, m.keymap.Down):
		m.moveCardSelection(1)
	case key.Matches(msg, m.keymap.Up):
		m.moveCardSelection(-1)
	case key.Matches(msg, m.keymap.Top):
		m.jumpToCard(0)
	case key.Matches(msg, m.keymap.Bottom):
		m.jumpToCard(-1)
	case key.Matches(msg, m.keymap.PageDown):
		m.moveCardSelection(pageJumpSize)
	case key.Matches(msg, m.keymap.PageUp):
		m.moveCardSelection(-pageJumpSize)
	case key.Matches(msg, m.keymap.Move):
		if m.selectedItem() != nil && m.store.StatusField() != nil {
			m.moveMode = true
		}
	case key.Matches(msg, m.keymap.Open):
		if item := m.selectedItem(); item != nil && item.URL != "" {
			url := item.URL
			return m, func() tea.Msg {
				if err := openURL(url); err != nil {
					return ErrorMsg{Err: err}
				}
				return nil
			}
		}
	case key.Matches(msg, m.keymap.Detail):
		if item := m.selectedItem(); item != nil {
			return m, func() tea.Msg { return openDetailMsg{item: item} }
		}
	case key.Matches(msg, m.keymap.Sync):
		return m.startSync(false)
	case key.Matches(msg, m.keymap.ForceRefresh):
		return m.startSync(true)
	}

	return m, nil
}

// handleMoveMode handles key presses in move mode
func (m BoardModel) handleMoveMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keymap.Cancel, m.keymap.Quit) {
		m.moveMode = false
		return m, nil
	}
	if msg.Type != tea.KeyRunes || len(msg.Runes) != 1 {
		return m, nil
	}
	r := msg.Runes[0]
	if r < '1' || r > '9' {
		return m, nil
	}

	m.moveMode = false
	idx := int(r - '1')
	item := m.selectedItem()
	if item == nil || idx >= len(m.columns) {
		return m, nil
	}
	target := m.columns[idx]
	if !m.syncer.MoveCard(item.ID, target.ID) {
		m.setToast(fmt.Sprintf("Cannot move to %s", target.Name), true)
		return m, nil
	}
	m.rebuild()
	return m, nil
}

// View renders the board - fills entire terminal exactly
func (m BoardModel) View() string {
	width := m.width
	height := m.height
	if width == 0 {
		width = 80
	}
	if height == 0 {
		height = 24
	}

	sections := []string{
		m.renderHeader(width),
		m.renderSecondHeader(width),
	}

	boardHeight := height - headerLines
	if m.filterMode {
		sections = append(sections, m.filterInput.View())
		boardHeight--
	}
	if m.moveMode {
		sections = append(sections, moveModeStyle.Render("MOVE")+" Press 1-9 to select column, ESC to cancel")
		boardHeight--
	}
	if boardHeight < 5 {
		boardHeight = 5
	}

	var mainContent string
	switch {
	case m.showHelp:
		helpLines := strings.Split(m.help.View(width), "\n")
		if len(helpLines) > boardHeight {
			helpLines = helpLines[:boardHeight]
		}
		mainContent = strings.Join(helpLines, "\n")
	case m.syncing && m.store.Len() == 0:
		mainContent = lipgloss.Place(width, boardHeight, lipgloss.Center, lipgloss.Center, m.spinner.View()+" Loading...")
	case len(m.columns) == 0:
		mainContent = lipgloss.Place(width, boardHeight, lipgloss.Center, lipgloss.Center, "No columns available. Press 'r' to sync.")
	default:
		mainContent = m.renderBoard(width, boardHeight)
	}
	sections = append(sections, mainContent)

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderHeader renders the title on the left and sync status on the right.
func (m BoardModel) renderHeader(width int) string {
	title := "ghpsync"
	if project := m.store.Project(); project != nil {
		title = fmt.Sprintf("%s/%d - %s", project.Owner, project.Number, project.Title)
	}

	var status []string
	if m.syncing {
		status = append(status, m.spinner.View()+"syncing")
	}

	total := 0
	for _, items := range m.visible {
		total += len(items)
	}
	status = append(status, fmt.Sprintf("%d items", total))

	if pending := len(m.syncer.PendingUpdates()); pending > 0 {
		status = append(status, pendingStyle.Render(fmt.Sprintf("%d pending", pending)))
	}

	if last := m.syncer.LastSync(); last.IsZero() {
		status = append(status, "never synced")
	} else {
		status = append(status, "synced "+humanize.RelTime(last, m.now(), "ago", "from now"))
	}

	if m.filterText != "" {
		status = append(status, "/"+m.filterText)
	}
	status = append(status, "[?]help")

	right := dimStyle.Render(strings.Join(status, " | "))
	padding := width - lipgloss.Width(title) - lipgloss.Width(right) - 2
	if padding < 1 {
		padding = 1
	}
	return titleStyle.Render(title) + strings.Repeat(" ", padding) + right
}

// renderSecondHeader renders navigation hints and either a toast or the
// cursor position.
func (m BoardModel) renderSecondHeader(width int) string {
	left := "h/l:col j/k:card m:move r:sync o:open enter:view"

	right := ""
	switch {
	case m.toast != "" && m.toastIsErr:
		right = ErrorStyle.Render(m.toast)
	case m.toast != "":
		right = noticeStyle.Render(m.toast)
	case len(m.columns) > 0:
		colID := m.columns[m.selectedColumn].ID
		right = fmt.Sprintf("col %d/%d", m.selectedColumn+1, len(m.columns))
		if cards := m.visible[colID]; len(cards) > 0 {
			right += fmt.Sprintf(" | card %d/%d", m.selectedCard[colID]+1, len(cards))
		}
	}

	padding := width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if padding < 1 {
		padding = 1
	}
	return dimStyle.Render(left) + strings.Repeat(" ", padding) + right
}

// renderBoard renders the columns that fit, scrolling horizontally around
// the selected one.
func (m BoardModel) renderBoard(totalWidth, totalHeight int) string {
	numCols := len(m.columns)
	if numCols == 0 {
		return ""
	}

	// Borders add two lines to the content height
	contentHeight := totalHeight - 2
	if contentHeight < 3 {
		contentHeight = 3
	}

	visibleCols := totalWidth / minColumnWidth
	if visibleCols < 1 {
		visibleCols = 1
	}
	if visibleCols > numCols {
		visibleCols = numCols
	}

	colWidth := totalWidth / visibleCols
	if colWidth > maxColumnWidth {
		colWidth = maxColumnWidth
	}
	if colWidth < minColumnWidth {
		colWidth = minColumnWidth
	}

	// Border and padding take four cells
	innerWidth := colWidth - 4
	if innerWidth < 10 {
		innerWidth = 10
	}

	startCol := m.columnOffset
	endCol := startCol + visibleCols
	if endCol > numCols {
		endCol = numCols
		startCol = max(endCol-visibleCols, 0)
	}

	views := make([]string, 0, visibleCols+2)
	if startCol > 0 {
		views = append(views, scrollArrow("◀", contentHeight+2))
	}
	for i := startCol; i < endCol; i++ {
		views = append(views, m.renderColumn(i, colWidth, contentHeight, innerWidth))
	}
	if endCol < numCols {
		views = append(views, scrollArrow("▶", contentHeight+2))
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, views...)
}

func scrollArrow(arrow string, height int) string {
	return lipgloss.NewStyle().
		Width(2).
		Height(height).
		Foreground(lipgloss.Color("205")).
		Align(lipgloss.Center, lipgloss.Center).
		Render(arrow)
}

// renderColumn renders one column. innerHeight excludes the border.
func (m BoardModel) renderColumn(idx, width, innerHeight, innerWidth int) string {
	col := m.columns[idx]
	cards := m.visible[col.ID]
	selected := idx == m.selectedColumn

	header := truncate.StringWithTail(fmt.Sprintf("[%d] %s (%d)", idx+1, col.Name, len(cards)), uint(innerWidth), "…")

	scrollOffset := m.scrollOffset[col.ID]
	selectedIdx := m.selectedCard[col.ID]

	// One line goes to the header
	slots := innerHeight - 1
	if scrollOffset > 0 {
		slots--
	}
	end := min(scrollOffset+slots, len(cards))
	needDown := end < len(cards)
	if needDown {
		end = min(scrollOffset+slots-1, len(cards))
	}

	lines := []string{lipgloss.NewStyle().Bold(true).Foreground(columnColor(col.Color)).Render(header)}
	if scrollOffset > 0 {
		lines = append(lines, dimStyle.Render(fmt.Sprintf("↑ %d more", scrollOffset)))
	}
	for i := scrollOffset; i < end; i++ {
		text := formatCardText(cards[i], innerWidth-2)
		if selected && i == selectedIdx {
			lines = append(lines, selectedCardStyle.Render("> "+text))
		} else {
			lines = append(lines, cardStyle.Render("  "+text))
		}
	}
	if needDown {
		lines = append(lines, dimStyle.Render(fmt.Sprintf("↓ %d more", len(cards)-end)))
	}
	if len(cards) == 0 {
		lines = append(lines, dimStyle.Render("(empty)"))
	}

	borderColor := lipgloss.Color("240")
	if selected {
		borderColor = lipgloss.Color("205")
	}

	// Do not use MaxHeight here: it cuts off the bottom border.
	return lipgloss.NewStyle().
		Width(width-2).
		Height(innerHeight).
		Padding(0, 1).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(borderColor).
		Render(strings.Join(lines, "\n"))
}

// cardSuffix is the right-aligned tag shown after a card title.
func cardSuffix(item *domain.Item) string {
	switch item.Type {
	case domain.ItemTypeIssue:
		if item.Number > 0 {
			return fmt.Sprintf("#%d", item.Number)
		}
	case domain.ItemTypePullRequest:
		if item.Number > 0 {
			return fmt.Sprintf("PR#%d", item.Number)
		}
	case domain.ItemTypeDraftIssue:
		return "(draft)"
	case domain.ItemTypePrivate:
		return "(pvt)"
	}
	return ""
}

// formatCardText fits a card title and its suffix into maxWidth cells.
func formatCardText(item *domain.Item, maxWidth int) string {
	suffix := cardSuffix(item)
	if suffix == "" {
		return truncate.StringWithTail(item.Title, uint(max(maxWidth, 1)), "…")
	}

	titleWidth := max(maxWidth-len(suffix)-1, 5)
	title := truncate.StringWithTail(item.Title, uint(titleWidth), "…")
	padding := max(maxWidth-lipgloss.Width(title)-len(suffix), 1)
	return title + strings.Repeat(" ", padding) + dimStyle.Render(suffix)
}

// rebuild re-reads columns from the store and re-applies the filter.
func (m *BoardModel) rebuild() {
	m.columns = m.store.Columns()
	if m.selectedColumn >= len(m.columns) {
		m.selectedColumn = max(len(m.columns)-1, 0)
	}
	m.applyFilter()
}

// applyFilter narrows each column to the cards matching the filter text.
func (m *BoardModel) applyFilter() {
	needle := strings.ToLower(strings.TrimSpace(m.filterText))

	m.visible = make(map[string][]*domain.Item, len(m.columns))
	for _, col := range m.columns {
		cards := make([]*domain.Item, 0, len(col.Items))
		for _, item := range col.Items {
			if needle == "" || matchesFilter(item, needle) {
				cards = append(cards, item)
			}
		}
		m.visible[col.ID] = cards

		if m.selectedCard[col.ID] >= len(cards) {
			m.selectedCard[col.ID] = max(len(cards)-1, 0)
		}
		if m.scrollOffset[col.ID] > m.selectedCard[col.ID] {
			m.scrollOffset[col.ID] = m.selectedCard[col.ID]
		}
	}
}

func matchesFilter(item *domain.Item, needle string) bool {
	if strings.Contains(strings.ToLower(item.Title), needle) ||
		strings.Contains(strings.ToLower(item.Repo), needle) {
		return true
	}
	for _, label := range item.Labels {
		if strings.Contains(strings.ToLower(label), needle) {
			return true
		}
	}
	for _, a := range item.Assignees {
		if strings.Contains(strings.ToLower(a.Login), needle) {
			return true
		}
	}
	return false
}

// moveCardSelection moves the card selection up or down by delta
func (m *BoardModel) moveCardSelection(delta int) {
	if len(m.columns) == 0 {
		return
	}
	colID := m.columns[m.selectedColumn].ID
	cards := m.visible[colID]
	if len(cards) == 0 {
		return
	}

	idx := m.selectedCard[colID] + delta
	idx = max(0, min(idx, len(cards)-1))
	m.selectedCard[colID] = idx
	m.adjustScroll(colID)
}

// jumpToCard jumps to a specific card index. Use -1 to jump to last card.
func (m *BoardModel) jumpToCard(idx int) {
	if len(m.columns) == 0 {
		return
	}
	colID := m.columns[m.selectedColumn].ID
	cards := m.visible[colID]
	if len(cards) == 0 {
		return
	}

	if idx < 0 || idx >= len(cards) {
		idx = len(cards) - 1
	}
	m.selectedCard[colID] = idx
	m.adjustScroll(colID)
}

// adjustScroll ensures the selected card is visible
func (m *BoardModel) adjustScroll(colID string) {
	selectedIdx := m.selectedCard[colID]

	// Header lines, column borders, column header and scroll indicators
	visibleCards := max(m.height-headerLines-2-3, 3)

	if selectedIdx < m.scrollOffset[colID] {
		m.scrollOffset[colID] = selectedIdx
	}
	if selectedIdx >= m.scrollOffset[colID]+visibleCards {
		m.scrollOffset[colID] = selectedIdx - visibleCards + 1
	}
}

// adjustColumnScroll ensures the selected column is visible (horizontal carousel)
func (m *BoardModel) adjustColumnScroll() {
	if len(m.columns) == 0 || m.width == 0 {
		return
	}

	visibleCols := max(m.width/minColumnWidth, 1)
	visibleCols = min(visibleCols, len(m.columns))

	if m.selectedColumn < m.columnOffset {
		m.columnOffset = m.selectedColumn
	}
	if m.selectedColumn >= m.columnOffset+visibleCols {
		m.columnOffset = m.selectedColumn - visibleCols + 1
	}
}

// selectedItem returns the currently selected card, or nil.
func (m BoardModel) selectedItem() *domain.Item {
	if len(m.columns) == 0 {
		return nil
	}
	colID := m.columns[m.selectedColumn].ID
	cards := m.visible[colID]
	if len(cards) == 0 {
		return nil
	}
	idx := m.selectedCard[colID]
	if idx >= len(cards) {
		idx = 0
	}
	return cards[idx]
}
