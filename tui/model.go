// Package tui renders a live terminal view of decoded key/value
// exchanges, adapted from the teacher's SQL traffic inspector: same
// Bubble Tea model/list/inspector/filter shape, re-keyed from SQL
// queries and row counts to document keys, sub-document paths, and
// mutation tokens. There is no analogue to a SQL transaction in this
// protocol, so the tx-grouping machinery is gone; the second view mode
// is repurposed from per-query-template analytics into per-key hot-spot
// analytics fed by the hot-key detector.
package tui

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kvtap/kvtap/agent"
	"github.com/kvtap/kvtap/clipboard"
)

const alertDuration = 1500 * time.Millisecond

type viewMode int

const (
	viewList viewMode = iota
	viewInspect
	viewHotKeys
)

type sortMode int

const (
	sortChronological sortMode = iota
	sortDuration
)

// Model is the Bubble Tea model for the kvtap TUI.
type Model struct {
	source string
	ch     <-chan agent.Event

	events []agent.Event
	rows   []int // indices into events that pass the active filter/search
	cursor int
	follow bool
	width  int
	height int
	err    error
	view   viewMode

	searchMode   bool
	searchQuery  string
	searchCursor int
	filterMode   bool
	filterQuery  string
	filterCursor int
	sortMode     sortMode

	inspectScroll int

	hotRows      []hotKeyRow
	hotCursor    int
	hotHScroll   int
	hotSortMode  hotSortMode

	alert string
}

// eventMsg carries one completed exchange read off the event channel.
type eventMsg struct{ Event agent.Event }

// errMsg carries a terminal error: the event channel closed.
type errMsg struct{ Err error }

// New creates a Model that renders events arriving on ch. source is a
// human-readable label for the connection (host:port or bucket name)
// shown in the list title.
func New(source string, ch <-chan agent.Event) Model {
	return Model{
		source: source,
		ch:     ch,
		follow: true,
	}
}

// Init starts reading from the event channel.
func (m Model) Init() tea.Cmd {
	return recvEvent(m.ch)
}

func recvEvent(ch <-chan agent.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return errMsg{Err: errors.New("event stream closed")}
		}
		return eventMsg{Event: ev}
	}
}

// Update handles incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		m.events = append(m.events, msg.Event)
		if m.view != viewList {
			return m, recvEvent(m.ch)
		}
		m.rows = m.rebuildRows()
		if m.follow {
			m.cursor = max(len(m.rows)-1, 0)
		}
		return m, recvEvent(m.ch)

	case errMsg:
		m.err = msg.Err
		return m, nil

	case clearAlertMsg:
		m.alert = ""
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case viewInspect:
			return m.updateInspect(msg)
		case viewHotKeys:
			return m.updateHotKeys(msg)
		case viewList:
			return m.updateList(msg)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	}
	return m, nil
}

// View renders the TUI.
func (m Model) View() string {
	if m.width == 0 {
		return ""
	}

	if m.err != nil {
		return friendlyError(m.err, m.width)
	}

	if len(m.events) == 0 {
		return "Waiting for operations..."
	}

	switch m.view {
	case viewInspect:
		return m.renderInspector()
	case viewHotKeys:
		return m.renderHotKeys()
	case viewList:
	}

	var footer string
	switch {
	case m.searchMode:
		footer = "  / " + renderInputWithCursor(m.searchQuery, m.searchCursor)
	case m.filterMode:
		footer = "  filter: " + renderInputWithCursor(m.filterQuery, m.filterCursor)
	default:
		items := []string{
			"q: quit", "j/k: navigate",
			"enter: inspect", "a: hot keys",
			"c/C: copy", "w/W: export", "/: search", "f: filter", "s: sort",
		}
		footer = wrapFooterItems(items, m.width)
		if m.filterQuery != "" {
			footer += "\n  " + fmt.Sprintf("[filter: %s]", describeFilter(m.filterQuery))
		}
		if m.searchQuery != "" || m.filterQuery != "" {
			footer += "  esc: clear"
		}
		if m.sortMode == sortDuration {
			footer += "  [sorted: duration]"
		}
		if m.alert != "" {
			footer += "  " + m.alert
		}
	}

	footerLines := strings.Count(footer, "\n") + 1
	listHeight := m.listHeight(footerLines)

	return strings.Join([]string{
		m.renderList(listHeight),
		m.renderPreview(),
		footer,
	}, "\n")
}

func (m Model) listHeight(footerLines int) int {
	extra := max(footerLines-1, 0)
	return max(m.height-12-extra, 3)
}

// rebuildRows recomputes the event indices passing the active filter and
// search, sorted per m.sortMode.
func (m Model) rebuildRows() []int {
	matched := matchingEventsFiltered(m.events, m.filterQuery, m.searchQuery)

	rows := make([]int, 0, len(matched))
	for i := range m.events {
		if matched[i] {
			rows = append(rows, i)
		}
	}
	if m.sortMode == sortDuration {
		sort.Slice(rows, func(a, b int) bool {
			return m.events[rows[a]].Duration > m.events[rows[b]].Duration
		})
	}
	return rows
}

// matchingEventsFiltered returns the set of event indices passing both
// the structured filter (filterQuery) and the text search (searchQuery).
// Either may be empty.
func matchingEventsFiltered(events []agent.Event, filterQuery, searchQuery string) map[int]bool {
	matched := make(map[int]bool, len(events))

	var conds []filterCondition
	if filterQuery != "" {
		conds = parseFilter(filterQuery)
	}
	searchLower := strings.ToLower(searchQuery)

	for i, ev := range events {
		if len(conds) > 0 && !matchAllConditions(ev, conds) {
			continue
		}
		if searchLower != "" &&
			!strings.Contains(strings.ToLower(ev.Key), searchLower) &&
			!strings.Contains(strings.ToLower(ev.Path), searchLower) {
			continue
		}
		matched[i] = true
	}
	return matched
}

// cursorEvent returns the event at the cursor, or nil if there are none.
func (m Model) cursorEvent() *agent.Event {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return nil
	}
	return &m.events[m.rows[m.cursor]]
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.searchMode {
		return m.updateSearch(msg)
	}
	if m.filterMode {
		return m.updateFilter(msg)
	}

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "enter":
		if len(m.rows) > 0 {
			m.view = viewInspect
			m.inspectScroll = 0
		}
		return m, nil
	case "c", "C":
		return m.copyEvent(msg.String() == "C"), nil
	case "w":
		return m.export(exportJSON)
	case "W":
		return m.export(exportMarkdown)
	case "/":
		m.searchMode = true
		m.searchQuery = ""
		m.searchCursor = 0
		return m, nil
	case "f":
		m.filterMode = true
		m.filterQuery = ""
		m.filterCursor = 0
		return m, nil
	case "s":
		return m.toggleSort(), nil
	case "a":
		return m.enterHotKeys(), nil
	case "esc":
		return m.clearFilter(), nil
	case "j", "down":
		return m.navigateCursor(msg.String()), nil
	case "k", "up":
		return m.navigateCursor(msg.String()), nil
	case "ctrl+d", "pgdown":
		return m.pageScroll(msg.String()), nil
	case "ctrl+u", "pgup":
		return m.pageScroll(msg.String()), nil
	}
	return m, nil
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.searchMode = false
		return m, nil
	case "esc":
		m.searchMode = false
		m.searchQuery = ""
		m.rows = m.rebuildRows()
		m.cursor = min(m.cursor, max(len(m.rows)-1, 0))
		return m, nil
	case "backspace":
		if m.searchCursor > 0 {
			runes := []rune(m.searchQuery)
			m.searchQuery = string(runes[:m.searchCursor-1]) + string(runes[m.searchCursor:])
			m.searchCursor--
			m.rows = m.rebuildRows()
			m.cursor = min(m.cursor, max(len(m.rows)-1, 0))
		}
		return m, nil
	case "ctrl+c":
		return m, tea.Quit
	case "left":
		if m.searchCursor > 0 {
			m.searchCursor--
		}
		return m, nil
	case "right":
		if m.searchCursor < len([]rune(m.searchQuery)) {
			m.searchCursor++
		}
		return m, nil
	case "up", "down":
		return m.navigateCursor(msg.String()), nil
	}

	r := msg.Runes
	if len(r) == 0 {
		return m, nil
	}

	runes := []rune(m.searchQuery)
	m.searchQuery = string(runes[:m.searchCursor]) + string(r) + string(runes[m.searchCursor:])
	m.searchCursor += len(r)
	m.rows = m.rebuildRows()
	m.cursor = min(m.cursor, max(len(m.rows)-1, 0))
	return m, nil
}

func (m Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.filterMode = false
		return m, nil
	case "esc":
		m.filterMode = false
		m.filterQuery = ""
		m.rows = m.rebuildRows()
		m.cursor = min(m.cursor, max(len(m.rows)-1, 0))
		return m, nil
	case "backspace":
		if m.filterCursor > 0 {
			runes := []rune(m.filterQuery)
			m.filterQuery = string(runes[:m.filterCursor-1]) + string(runes[m.filterCursor:])
			m.filterCursor--
			m.rows = m.rebuildRows()
			m.cursor = min(m.cursor, max(len(m.rows)-1, 0))
		}
		return m, nil
	case "ctrl+c":
		return m, tea.Quit
	case "left":
		if m.filterCursor > 0 {
			m.filterCursor--
		}
		return m, nil
	case "right":
		if m.filterCursor < len([]rune(m.filterQuery)) {
			m.filterCursor++
		}
		return m, nil
	case "up", "down":
		return m.navigateCursor(msg.String()), nil
	}

	r := msg.Runes
	if len(r) == 0 {
		return m, nil
	}

	runes := []rune(m.filterQuery)
	m.filterQuery = string(runes[:m.filterCursor]) + string(r) + string(runes[m.filterCursor:])
	m.filterCursor += len(r)
	m.rows = m.rebuildRows()
	m.cursor = min(m.cursor, max(len(m.rows)-1, 0))
	return m, nil
}

func (m Model) pageScroll(key string) Model {
	half := max(m.listHeight(1)/2, 1)
	switch key {
	case "ctrl+d", "pgdown":
		m.cursor = min(m.cursor+half, max(len(m.rows)-1, 0))
		if len(m.rows) > 0 && m.cursor == len(m.rows)-1 {
			m.follow = true
		}
	case "ctrl+u", "pgup":
		m.cursor = max(m.cursor-half, 0)
		m.follow = false
	}
	return m
}

func (m Model) navigateCursor(key string) Model {
	switch key {
	case "up":
		if m.cursor > 0 {
			m.cursor--
			m.follow = false
		}
	case "down":
		if len(m.rows) > 0 && m.cursor < len(m.rows)-1 {
			m.cursor++
		}
		if len(m.rows) > 0 && m.cursor == len(m.rows)-1 {
			m.follow = true
		}
	}
	return m
}

// copyEvent copies the cursor event's bucket-qualified key to the
// clipboard, including its sub-document path when withPath is true and
// the event carries one.
func (m Model) copyEvent(withPath bool) Model {
	ev := m.cursorEvent()
	if ev == nil || ev.Key == "" {
		return m
	}
	path := ""
	if withPath {
		path = ev.Path
	}
	_ = clipboard.CopyLocator(context.Background(), ev.Bucket, ev.Key, path)
	return m
}

// clearAlertMsg clears a transient status message shown in the footer.
type clearAlertMsg struct{}

// showAlert sets a transient footer message that clears itself after a
// short delay.
func (m Model) showAlert(text string) (tea.Model, tea.Cmd) {
	m.alert = text
	return m, tea.Tick(alertDuration, func(time.Time) tea.Msg { return clearAlertMsg{} })
}

// export writes the currently filtered events to a timestamped file in
// the working directory and shows the resulting path as a transient
// footer alert.
func (m Model) export(format exportFormat) (tea.Model, tea.Cmd) {
	path, err := writeExport(m.events, m.filterQuery, m.searchQuery, format, "")
	if err != nil {
		return m.showAlert("export failed: " + err.Error())
	}
	return m.showAlert("exported to " + path)
}

func (m Model) toggleSort() Model {
	switch m.sortMode {
	case sortChronological:
		m.sortMode = sortDuration
		m.follow = false
	case sortDuration:
		m.sortMode = sortChronological
	}
	m.rows = m.rebuildRows()
	m.cursor = 0
	return m
}

func (m Model) enterHotKeys() Model {
	m.hotRows = m.buildHotKeyRows()
	sortHotKeyRows(m.hotRows, m.hotSortMode)
	m.hotCursor = 0
	m.hotHScroll = 0
	m.view = viewHotKeys
	return m
}

func (m Model) clearFilter() Model {
	changed := false
	if m.searchQuery != "" {
		m.searchQuery = ""
		changed = true
	}
	if m.filterQuery != "" {
		m.filterQuery = ""
		changed = true
	}
	if changed {
		m.rows = m.rebuildRows()
		m.cursor = min(m.cursor, max(len(m.rows)-1, 0))
	}
	return m
}
