// Package tui is the interactive front-end of the component state dialog. It
// renders a viewer.Viewer with Bubble Tea: a filter field, a sortable table of
// state entries, entry counters and the clear-state action.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/greg-hellings/stateview/pkg/nifi"
	"github.com/greg-hellings/stateview/pkg/statetable"
	"github.com/greg-hellings/stateview/pkg/viewer"
)

const (
	defaultWidth  = 100
	defaultHeight = 24
	// lines used by everything except the table body
	chromeHeight = 12
)

type stateLoadedMsg struct {
	state *nifi.ComponentState
	err   error
}

type clearDoneMsg struct {
	req *viewer.ClearRequest
	rev *nifi.Revision
	err error
}

type copiedMsg struct {
	key string
	err error
}

// Model is the Bubble Tea model of the component state dialog.
type Model struct {
	ctx       context.Context
	viewer    *viewer.Viewer
	notices   *Notices
	component nifi.Component
	canClear  bool

	table  table.Model
	filter textinput.Model
	help   help.Model
	keys   keyMap

	sortIndex int
	sortAsc   bool

	loading  bool
	loadErr  error
	status   string
	width    int
	height   int
	quitting bool

	// timeout bounds each request round-trip; zero means no bound.
	timeout time.Duration

	// copy writes to the system clipboard; replaced in tests.
	copy func(string) error
}

// New creates the dialog model for component. notices must be the same value
// passed to the viewer as its error handler and dialog presenter.
func New(ctx context.Context, v *viewer.Viewer, notices *Notices, component nifi.Component, canClear bool) Model {
	fi := textinput.New()
	fi.Placeholder = viewer.FilterPlaceholder
	fi.Prompt = "› "
	fi.CharLimit = 256
	fi.Width = 40

	t := table.New(
		table.WithFocused(true),
		table.WithHeight(defaultHeight-chromeHeight),
	)
	t.SetStyles(tableStyles())

	m := Model{
		ctx:       ctx,
		viewer:    v,
		notices:   notices,
		component: component,
		canClear:  canClear,
		table:     t,
		filter:    fi,
		help:      help.New(),
		keys:      defaultKeyMap(),
		sortAsc:   true,
		loading:   true,
		width:     defaultWidth,
		height:    defaultHeight,
		copy:      clipboard.WriteAll,
	}
	m.syncColumns()
	return m
}

// WithTimeout returns a copy of m whose requests are bounded by d.
func (m Model) WithTimeout(d time.Duration) Model {
	m.timeout = d
	return m
}

func (m Model) requestContext() (context.Context, context.CancelFunc) {
	if m.timeout <= 0 {
		return context.WithCancel(m.ctx)
	}
	return context.WithTimeout(m.ctx, m.timeout)
}

// Init starts fetching the component's state.
func (m Model) Init() tea.Cmd {
	v, comp := m.viewer, m.component
	ctx, cancel := m.requestContext()
	return func() tea.Msg {
		defer cancel()
		state, err := v.FetchState(ctx, comp)
		return stateLoadedMsg{state: state, err: err}
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		return m, nil

	case stateLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.loadErr = msg.err
			m.notices.HandleError(msg.err)
			return m, nil
		}
		m.viewer.Opened(m.component, m.canClear, msg.state)
		m.syncRows()
		return m, nil

	case clearDoneMsg:
		m.viewer.FinishClear(msg.req, msg.rev, msg.err)
		if msg.err == nil {
			m.status = "Component state cleared"
		} else {
			m.status = ""
		}
		m.syncRows()
		return m, nil

	case copiedMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("Copy failed: %v", msg.err)
		} else {
			m.status = fmt.Sprintf("Copied value of %s", msg.key)
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// A pending notice is modal: it must be dismissed first
	if m.notices.Pending() {
		switch msg.String() {
		case "enter", "esc", " ", "q", "ctrl+c":
			m.notices.Dismiss()
			if !m.viewer.IsOpen() && !m.loading {
				return m.close()
			}
		}
		return m, nil
	}

	if !m.viewer.IsOpen() {
		if msg.String() == "q" || msg.String() == "esc" || msg.String() == "ctrl+c" {
			return m.close()
		}
		return m, nil
	}

	if m.filter.Focused() {
		if msg.String() == "enter" || msg.String() == "esc" {
			m.filter.Blur()
			m.viewer.BlurFilter()
			return m, nil
		}
		var cmd tea.Cmd
		m.filter, cmd = m.filter.Update(msg)
		if value := m.filter.Value(); value != m.viewer.FilterText() {
			m.viewer.SetFilterText(value)
			m.syncRows()
		}
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Filter):
		m.viewer.FocusFilter()
		m.filter.SetValue(m.viewer.FilterText())
		return m, m.filter.Focus()

	case key.Matches(msg, m.keys.Sort):
		m.sortIndex = (m.sortIndex + 1) % len(m.viewer.Columns())
		m.sortAsc = true
		m.applySort()
		return m, nil

	case key.Matches(msg, m.keys.Reverse):
		m.sortAsc = !m.sortAsc
		m.applySort()
		return m, nil

	case key.Matches(msg, m.keys.Clear):
		return m.clear()

	case key.Matches(msg, m.keys.Copy):
		return m, m.copySelected()

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil

	case key.Matches(msg, m.keys.Close):
		return m.close()
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) close() (tea.Model, tea.Cmd) {
	m.viewer.Close()
	m.quitting = true
	return m, tea.Quit
}

func (m Model) clear() (tea.Model, tea.Cmd) {
	req, err := m.viewer.PrepareClear()
	if err != nil {
		m.status = err.Error()
		return m, nil
	}
	if req == nil {
		if disabled, title := m.viewer.ClearDisabled(); disabled {
			m.status = title
		}
		return m, nil
	}

	m.status = "Clearing component state…"
	ctx, cancel := m.requestContext()
	return m, func() tea.Msg {
		defer cancel()
		rev, err := req.Do(ctx)
		return clearDoneMsg{req: req, rev: rev, err: err}
	}
}

func (m Model) copySelected() tea.Cmd {
	entry, ok := m.selected()
	if !ok {
		return nil
	}
	write := m.copy
	return func() tea.Msg {
		return copiedMsg{key: entry.Key, err: write(entry.Value)}
	}
}

func (m Model) selected() (statetable.Entry, bool) {
	return m.viewer.Table().View().Row(m.table.Cursor())
}

func (m *Model) applySort() {
	cols := m.viewer.Columns()
	m.viewer.SortBy(cols[m.sortIndex].ID, m.sortAsc)
	m.syncColumns()
	m.syncRows()
}

func (m *Model) layout() {
	h := m.height - chromeHeight
	if h < 3 {
		h = 3
	}
	m.table.SetHeight(h)
	m.filter.Width = max(10, m.width/3)
	m.syncColumns()
	m.syncRows()
}

// columnWidths splits the available width between key, value and scope.
func (m Model) columnWidths(n int) []int {
	avail := m.width - 2*n - 2
	if avail < 20 {
		avail = 20
	}
	if n == 3 {
		keyWidth := avail * 3 / 10
		scopeWidth := avail * 2 / 10
		return []int{keyWidth, avail - keyWidth - scopeWidth, scopeWidth}
	}
	keyWidth := avail * 35 / 100
	return []int{keyWidth, avail - keyWidth}
}

func (m *Model) syncColumns() {
	cols := m.viewer.Columns()
	widths := m.columnWidths(len(cols))
	tcols := make([]table.Column, len(cols))
	for i, c := range cols {
		title := c.Name
		if i == m.sortIndex {
			if m.sortAsc {
				title += " ▲"
			} else {
				title += " ▼"
			}
		}
		tcols[i] = table.Column{Title: title, Width: widths[i]}
	}
	m.table.SetColumns(tcols)
}

func (m *Model) syncRows() {
	cols := m.viewer.Columns()
	widths := m.columnWidths(len(cols))
	entries := m.viewer.Table().Rows()

	rows := make([]table.Row, 0, len(entries))
	for _, e := range entries {
		row := make(table.Row, len(cols))
		for i, c := range cols {
			row[i] = cell(e.Field(c.ID), widths[i])
		}
		rows = append(rows, row)
	}
	m.table.SetRows(rows)

	if c := m.table.Cursor(); c >= len(rows) {
		m.table.SetCursor(max(0, len(rows)-1))
	}
}

// cell flattens line breaks and ellipsizes s to width cells.
func cell(s string, width int) string {
	s = strings.NewReplacer("\r\n", " ", "\n", " ", "\t", " ").Replace(s)
	return runewidth.Truncate(s, width, "…")
}

// View renders the dialog.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	if m.notices.Pending() {
		return m.modal()
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Component State"))
	b.WriteString("\n\n")

	if !m.viewer.IsOpen() {
		b.WriteString(fmt.Sprintf("Loading state for %s…\n", m.component.Name))
		return b.String()
	}

	b.WriteString(nameStyle.Render(cell(m.viewer.Name(), m.width)))
	b.WriteString("\n")
	b.WriteString(descriptionStyle.Render(cell(m.viewer.Description(), m.width)))
	b.WriteString("\n\n")

	counts := countStyle.Render(fmt.Sprintf("Displaying %d of %d", m.viewer.Table().Displayed(), m.viewer.Table().Total()))
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, m.filter.View(), "   ", counts))
	b.WriteString("\n")

	b.WriteString(m.table.View())
	b.WriteString("\n")

	// Full text of the selected row, since cells are truncated
	if e, ok := m.selected(); ok {
		b.WriteString(detailStyle.Render(cell(e.Key+" = "+e.Value, m.width)))
	}
	b.WriteString("\n")

	if disabled, title := m.viewer.ClearDisabled(); disabled {
		b.WriteString(clearDisabledStyle.Render("Clear state  " + title))
	} else {
		b.WriteString(clearLinkStyle.Render("Clear state"))
	}
	if m.status != "" {
		b.WriteString("  ")
		b.WriteString(statusStyle.Render(m.status))
	}
	b.WriteString("\n")

	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) modal() string {
	style := modalStyle
	title := "Component State"
	if m.notices.Err() != nil {
		style = modalErrorStyle
		title = "Error"
	}
	body := lipgloss.JoinVertical(lipgloss.Left,
		nameStyle.Render(title),
		"",
		lipgloss.NewStyle().Width(min(60, max(20, m.width-10))).Render(m.notices.Text()),
		"",
		modalHintStyle.Render("press enter to continue"),
	)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, style.Render(body))
}

// LoadErr returns the error that prevented the dialog from opening, if any.
func (m Model) LoadErr() error {
	return m.loadErr
}

// Run shows the dialog until the user closes it. It returns the fetch error
// when the dialog could not be opened.
func Run(ctx context.Context, m Model) error {
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("component state viewer failed: %w", err)
	}
	if fm, ok := final.(Model); ok && fm.loadErr != nil {
		return fm.loadErr
	}
	return nil
}
