package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/kvtap/kvtap/agent"
)

func eventStatus(ev agent.Event) string {
	if ev.Error != "" {
		return lipgloss.NewStyle().
			Foreground(lipgloss.Color("1")).Render("E")
	}
	if ev.HotKey {
		return lipgloss.NewStyle().
			Foreground(lipgloss.Color("3")).Render("HOT")
	}
	return ""
}

// Column widths.
const (
	colMarker   = 2 // "▶ " or "  "
	colOp       = 9
	colDuration = 10
	colTime     = 12
	colStatus   = 4
)

func (m Model) renderList(maxRows int) string {
	innerWidth := max(m.width-4, 20)
	colKey := max(innerWidth-colMarker-colOp-colDuration-colTime-colStatus-4, 10)

	var title string
	if m.searchQuery != "" || m.filterQuery != "" {
		title = fmt.Sprintf(" %s (%d/%d ops) ", m.source, len(m.rows), len(m.events))
	} else {
		title = fmt.Sprintf(" %s (%d ops) ", m.source, len(m.events))
	}
	if m.sortMode == sortDuration {
		title += "[slow] "
	}

	border := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Width(innerWidth)

	dataRows := max(maxRows-1, 1) // -1 for header row

	start := 0
	if len(m.rows) > dataRows {
		start = max(m.cursor-dataRows/2, 0)
		if start+dataRows > len(m.rows) {
			start = len(m.rows) - dataRows
		}
	}
	end := min(start+dataRows, len(m.rows))

	header := fmt.Sprintf("  %-*s %-*s %*s %*s %-*s",
		colOp, "Op",
		colKey, "Key",
		colDuration, "Duration",
		colTime, "Time",
		colStatus, "",
	)

	var rows []string
	rows = append(rows, lipgloss.NewStyle().Bold(true).Render(header))
	for i := start; i < end; i++ {
		rows = append(rows, m.renderEventRow(i, colKey))
	}

	borderColor := lipgloss.Color("240")
	border = border.BorderForeground(borderColor)
	content := strings.Join(rows, "\n")

	box := border.Render(content)
	lines := strings.Split(box, "\n")
	if len(lines) > 0 {
		borderFg := lipgloss.NewStyle().Foreground(borderColor)
		titleStyle := lipgloss.NewStyle().Bold(true)
		dashes := max(innerWidth-len([]rune(title)), 0)
		lines[0] = borderFg.Render("╭") +
			titleStyle.Render(title) +
			borderFg.Render(strings.Repeat("─", dashes)+"╮")
		box = strings.Join(lines, "\n")
	}

	return box
}

func (m Model) renderEventRow(rowIdx int, colKey int) string {
	ev := m.events[m.rows[rowIdx]]
	marker := "  "
	if rowIdx == m.cursor {
		marker = "▶ "
	}

	dur := formatDurationValue(ev.Duration)
	t := formatTime(ev.StartTime)

	key := truncate(ev.Key, colKey)
	if key == "" {
		key = "-"
	}

	status := eventStatus(ev)

	row := fmt.Sprintf("%s%-*s %-*s %*s %*s",
		marker,
		colOp, ev.Op,
		colKey, key,
		colDuration, dur,
		colTime, t,
	) + " " + status
	if rowIdx == m.cursor {
		row = lipgloss.NewStyle().Bold(true).Render(row)
	}
	return row
}

func (m Model) renderPreview() string {
	innerWidth := max(m.width-4, 20)

	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return ""
	}

	return m.renderEventPreview(m.events[m.rows[m.cursor]], innerWidth)
}

func (m Model) renderEventPreview(ev agent.Event, innerWidth int) string {
	var lines []string
	lines = append(lines, "Op:       "+ev.Op)

	if ev.Key != "" {
		maxKeyLen := max(innerWidth-10, 20) // 10 = len("Key:      ")
		lines = append(lines, "Key:      "+truncate(ev.Key, maxKeyLen))
	}

	if ev.Path != "" {
		lines = append(lines, "Path:     "+ev.Path)
	}

	lines = append(lines, "Duration: "+formatDurationValue(ev.Duration))
	lines = append(lines, "Status:   "+ev.Status.String())

	if ev.ValuePreview != "" {
		maxValLen := max(innerWidth-10, 20)
		lines = append(lines, "Value:    "+truncate(ev.ValuePreview, maxValLen))
	}

	if ev.Error != "" {
		lines = append(lines, "Error:    "+ev.Error)
	}

	if ev.HasToken {
		lines = append(lines, fmt.Sprintf("Token:    vb=%d vbuuid=%d seqno=%d", ev.Partition, ev.Token.VbUUID, ev.Token.SeqNo))
	}

	content := strings.Join(lines, "\n")

	border := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Width(innerWidth).
		BorderForeground(lipgloss.Color("240"))

	return border.Render(content)
}
