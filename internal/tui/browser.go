package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rshade/greenreport/internal/engine/archive"
	"github.com/rshade/greenreport/internal/report"
)

// ViewState is the screen an interactive model is showing.
type ViewState int

const (
	ViewStateList ViewState = iota
	ViewStateLoading
	ViewStateDetail
	ViewStateError
	ViewStateQuitting
)

const (
	keyQuit  = "q"
	keyCtrlC = "ctrl+c"
	keyEnter = "enter"
	keyEsc   = "esc"

	browserWidth  = 100
	browserHeight = 24
	// browserChrome is the rows taken by the title and help lines.
	browserChrome = 4
	minListHeight = 3
)

// ReportLoader fetches an archived report by ID.
type ReportLoader func(id string) (*report.Report, error)

type reportLoadedMsg struct {
	id  string
	rep *report.Report
	err error
}

// ArchiveBrowser is the Bubble Tea model behind `report list` on a
// terminal: a table of archived reports and a scrollable detail view of the
// selected one.
type ArchiveBrowser struct {
	state   ViewState
	items   []archive.Summary
	load    ReportLoader
	table   table.Model
	detail  viewport.Model
	current *report.Report
	err     error

	width  int
	height int
}

// NewArchiveBrowser builds a browser over items, newest first as given.
func NewArchiveBrowser(items []archive.Summary, load ReportLoader) *ArchiveBrowser {
	m := &ArchiveBrowser{
		state:  ViewStateList,
		items:  items,
		load:   load,
		width:  browserWidth,
		height: browserHeight,
	}
	m.table = newArchiveTable(items, m.listHeight())
	m.detail = viewport.New(m.width, m.listHeight())
	return m
}

func newArchiveTable(items []archive.Summary, height int) table.Model {
	columns := []table.Column{
		{Title: "ID", Width: 28},      //nolint:mnd // Column width.
		{Title: "Type", Width: 8},     //nolint:mnd // Column width.
		{Title: "Created", Width: 20}, //nolint:mnd // Column width.
		{Title: "Model", Width: 24},   //nolint:mnd // Column width.
		{Title: "Parsed", Width: 6},   //nolint:mnd // Column width.
	}
	rows := make([]table.Row, len(items))
	for i, s := range items {
		parsed := IconCheck
		if s.ParseFailed {
			parsed = IconCross
		}
		rows[i] = table.Row{
			s.ID,
			string(s.Kind),
			s.CreatedAt.UTC().Format(time.DateTime),
			truncate(s.ModelUsed, 24), //nolint:mnd // Column width.
			parsed,
		}
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(height),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.Foreground(ColorHeader).Bold(true)
	s.Selected = s.Selected.Foreground(ColorValue).Background(ColorBorder)
	t.SetStyles(s)
	return t
}

func (m *ArchiveBrowser) listHeight() int {
	return max(m.height-browserChrome, minListHeight)
}

// State returns the current screen.
func (m *ArchiveBrowser) State() ViewState { return m.state }

// Current returns the report shown in the detail view, if any.
func (m *ArchiveBrowser) Current() *report.Report { return m.current }

// Err returns the error that ended the session, if any.
func (m *ArchiveBrowser) Err() error { return m.err }

// Init implements tea.Model.
func (m *ArchiveBrowser) Init() tea.Cmd { return nil }

// Update implements tea.Model.
func (m *ArchiveBrowser) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.table.SetHeight(m.listHeight())
		m.detail.Width = m.width
		m.detail.Height = m.listHeight()
		if m.current != nil {
			m.detail.SetContent(RenderReport(m.current, m.width))
		}
		return m, nil
	case reportLoadedMsg:
		return m.handleLoaded(msg)
	case tea.KeyMsg:
		if k := msg.String(); k == keyCtrlC || (k == keyQuit && m.state != ViewStateLoading) {
			m.state = ViewStateQuitting
			return m, tea.Quit
		}
	}

	switch m.state {
	case ViewStateList:
		return m.handleListUpdate(msg)
	case ViewStateDetail:
		return m.handleDetailUpdate(msg)
	case ViewStateError:
		if key, ok := msg.(tea.KeyMsg); ok && key.String() == keyEsc {
			m.err = nil
			m.state = ViewStateList
		}
		return m, nil
	default:
		return m, nil
	}
}

func (m *ArchiveBrowser) handleListUpdate(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == keyEnter {
		if len(m.items) == 0 {
			return m, nil
		}
		id := m.items[m.table.Cursor()].ID
		m.state = ViewStateLoading
		load := m.load
		return m, func() tea.Msg {
			rep, err := load(id)
			return reportLoadedMsg{id: id, rep: rep, err: err}
		}
	}
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *ArchiveBrowser) handleLoaded(msg reportLoadedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.err = fmt.Errorf("loading report %s: %w", msg.id, msg.err)
		m.state = ViewStateError
		return m, nil
	}
	m.current = msg.rep
	m.detail.SetContent(RenderReport(msg.rep, m.width))
	m.detail.GotoTop()
	m.state = ViewStateDetail
	return m, nil
}

func (m *ArchiveBrowser) handleDetailUpdate(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == keyEsc {
		m.state = ViewStateList
		return m, nil
	}
	var cmd tea.Cmd
	m.detail, cmd = m.detail.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m *ArchiveBrowser) View() string {
	switch m.state {
	case ViewStateQuitting:
		return ""
	case ViewStateLoading:
		return InfoStyle.Render("Loading report...")
	case ViewStateError:
		return ErrorStyle.Render(m.err.Error()) + "\n" + SubtleStyle.Render("esc back • q quit")
	case ViewStateDetail:
		return m.detail.View() + "\n" + SubtleStyle.Render("↑/↓ scroll • esc back • q quit")
	default:
		if len(m.items) == 0 {
			return InfoStyle.Render("No archived reports.") + "\n" + SubtleStyle.Render("q quit")
		}
		title := HeaderStyle.Render(fmt.Sprintf("ARCHIVED REPORTS (%d)", len(m.items)))
		return title + "\n" + m.table.View() + "\n" + SubtleStyle.Render("↑/↓ select • enter open • q quit")
	}
}
