package tui

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/kvtap/kvtap/clipboard"
	"github.com/kvtap/kvtap/pathnorm"
)

type hotSortMode int

const (
	hotSortTotalDuration hotSortMode = iota
	hotSortCount
	hotSortAvgDuration
	hotSortP95Duration
)

func (s hotSortMode) String() string {
	switch s {
	case hotSortTotalDuration:
		return "total"
	case hotSortCount:
		return "count"
	case hotSortAvgDuration:
		return "avg"
	case hotSortP95Duration:
		return "p95"
	}
	return "total"
}

func (s hotSortMode) next() hotSortMode {
	switch s {
	case hotSortTotalDuration:
		return hotSortCount
	case hotSortCount:
		return hotSortAvgDuration
	case hotSortAvgDuration:
		return hotSortP95Duration
	case hotSortP95Duration:
		return hotSortTotalDuration
	}
	return hotSortTotalDuration
}

// hotKeyRow aggregates access stats for one document key (sub-document
// paths are normalized via pathnorm so differing array indices group
// together).
type hotKeyRow struct {
	key           string
	count         int
	totalDuration time.Duration
	avgDuration   time.Duration
	p95Duration   time.Duration
	maxDuration   time.Duration
	flagged       bool
}

func (m Model) buildHotKeyRows() []hotKeyRow {
	type agg struct {
		count     int
		totalDur  time.Duration
		durations []time.Duration
		flagged   bool
	}
	groups := make(map[string]*agg)

	for _, ev := range m.events {
		if ev.Key == "" {
			continue
		}
		label := ev.Key
		if ev.Path != "" {
			label = ev.Key + " " + pathnorm.Normalize(ev.Path)
		}

		g, ok := groups[label]
		if !ok {
			g = &agg{}
			groups[label] = g
		}
		g.count++
		g.totalDur += ev.Duration
		g.durations = append(g.durations, ev.Duration)
		if ev.HotKey {
			g.flagged = true
		}
	}

	rows := make([]hotKeyRow, 0, len(groups))
	for key, g := range groups {
		slices.SortFunc(g.durations, cmp.Compare)
		rows = append(rows, hotKeyRow{
			key:           key,
			count:         g.count,
			totalDuration: g.totalDur,
			avgDuration:   g.totalDur / time.Duration(g.count),
			p95Duration:   percentile(g.durations, 0.95),
			maxDuration:   g.durations[len(g.durations)-1],
			flagged:       g.flagged,
		})
	}
	return rows
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}

func sortHotKeyRows(rows []hotKeyRow, mode hotSortMode) {
	sort.Slice(rows, func(i, j int) bool {
		switch mode {
		case hotSortTotalDuration:
			return rows[i].totalDuration > rows[j].totalDuration
		case hotSortCount:
			return rows[i].count > rows[j].count
		case hotSortAvgDuration:
			return rows[i].avgDuration > rows[j].avgDuration
		case hotSortP95Duration:
			return rows[i].p95Duration > rows[j].p95Duration
		}
		return rows[i].totalDuration > rows[j].totalDuration
	})
}

func (m Model) updateHotKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "q":
		m.view = viewList
		m.rows = m.rebuildRows()
		if m.follow {
			m.cursor = max(len(m.rows)-1, 0)
		}
		return m, nil
	case "j", "down":
		if len(m.hotRows) > 0 && m.hotCursor < len(m.hotRows)-1 {
			m.hotCursor++
		}
		return m, nil
	case "k", "up":
		if m.hotCursor > 0 {
			m.hotCursor--
		}
		return m, nil
	case "h", "left":
		if m.hotHScroll > 0 {
			m.hotHScroll--
		}
		return m, nil
	case "l", "right":
		innerWidth := max(m.width-4, 20)
		maxW := m.hotKeyMaxLineWidth()
		maxHScroll := max(maxW-innerWidth, 0)
		if m.hotHScroll < maxHScroll {
			m.hotHScroll++
		}
		return m, nil
	case "ctrl+d":
		half := m.hotKeyVisibleRows() / 2
		m.hotCursor = min(m.hotCursor+half, max(len(m.hotRows)-1, 0))
		return m, nil
	case "ctrl+u":
		half := m.hotKeyVisibleRows() / 2
		m.hotCursor = max(m.hotCursor-half, 0)
		return m, nil
	case "s":
		m.hotSortMode = m.hotSortMode.next()
		sortHotKeyRows(m.hotRows, m.hotSortMode)
		m.hotCursor = 0
		return m, nil
	case "c":
		if m.hotCursor >= 0 && m.hotCursor < len(m.hotRows) {
			_ = clipboard.Copy(context.Background(), m.hotRows[m.hotCursor].key)
			return m.showAlert("copied!")
		}
		return m, nil
	}
	return m, nil
}

const (
	hotColMarker = 2  // "▶ " or "  "
	hotColCount  = 7  // "  Count" right-aligned
	hotColAvg    = 10 // "       Avg" right-aligned
	hotColP95    = 10 // "       P95" right-aligned
	hotColMax    = 10 // "       Max" right-aligned
	hotColTotal  = 10 // "     Total" right-aligned
)

func (m Model) hotKeyVisibleRows() int {
	return max(m.height-4, 3)
}

func (m Model) hotKeyMaxLineWidth() int {
	fixedCols := hotColMarker + hotColCount + hotColAvg + hotColP95 + hotColMax + hotColTotal + 6
	maxW := 0
	for _, r := range m.hotRows {
		w := fixedCols + len([]rune(r.key))
		if w > maxW {
			maxW = w
		}
	}
	return maxW
}

func (m Model) renderHotKeys() string {
	innerWidth := max(m.width-4, 20)
	visibleRows := m.hotKeyVisibleRows()

	title := fmt.Sprintf(" Hot keys (%d) [sort: %s] ", len(m.hotRows), m.hotSortMode)

	fixedWidth := hotColMarker + hotColCount + hotColAvg + hotColP95 + hotColMax + hotColTotal + 6
	colKey := max(innerWidth-fixedWidth, 10)

	header := fmt.Sprintf("  %*s %*s %*s %*s %*s  %s",
		hotColCount, "Count",
		hotColAvg, "Avg",
		hotColP95, "P95",
		hotColMax, "Max",
		hotColTotal, "Total",
		"Key",
	)

	dataRows := max(visibleRows-1, 1)

	start := 0
	if len(m.hotRows) > dataRows {
		start = max(m.hotCursor-dataRows/2, 0)
		if start+dataRows > len(m.hotRows) {
			start = len(m.hotRows) - dataRows
		}
	}
	end := min(start+dataRows, len(m.hotRows))

	var rows []string
	rows = append(rows, lipgloss.NewStyle().Bold(true).Render(header))
	for i := start; i < end; i++ {
		r := m.hotRows[i]
		marker := "  "
		if i == m.hotCursor {
			marker = "▶ "
		}

		full := strings.TrimSpace(reSpaces.ReplaceAllString(r.key, " "))
		key := ansi.Cut(full, m.hotHScroll, m.hotHScroll+colKey)
		if ansi.StringWidth(full) > m.hotHScroll+colKey {
			key = ansi.Cut(full, m.hotHScroll, m.hotHScroll+colKey-1) + "…"
		}
		if r.flagged {
			key = lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Render(key) + " 🔥"
		}

		row := fmt.Sprintf("%s%*d %*s %*s %*s %*s  %s",
			marker,
			hotColCount, r.count,
			hotColAvg, formatDurationValue(r.avgDuration),
			hotColP95, formatDurationValue(r.p95Duration),
			hotColMax, formatDurationValue(r.maxDuration),
			hotColTotal, formatDurationValue(r.totalDuration),
			key,
		)
		rows = append(rows, row)
	}

	content := strings.Join(rows, "\n")

	borderColor := lipgloss.Color("240")
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Width(innerWidth).
		BorderForeground(borderColor).
		Render(content)

	boxLines := strings.Split(box, "\n")
	if len(boxLines) > 0 {
		borderFg := lipgloss.NewStyle().Foreground(borderColor)
		titleStyle := lipgloss.NewStyle().Bold(true)
		dashes := max(innerWidth-len([]rune(title)), 0)
		boxLines[0] = borderFg.Render("╭") +
			titleStyle.Render(title) +
			borderFg.Render(strings.Repeat("─", dashes)+"╮")
	}

	if n := len(boxLines); n > 0 {
		borderFg := lipgloss.NewStyle().Foreground(borderColor)
		help := " q: back  j/k: scroll  h/l: pan  s: sort  c: copy "
		dashes := max(innerWidth-len([]rune(help)), 0)
		boxLines[n-1] = borderFg.Render("╰") +
			lipgloss.NewStyle().Faint(true).Render(help) +
			borderFg.Render(strings.Repeat("─", dashes)+"╯")
	}

	return strings.Join(boxLines, "\n")
}
