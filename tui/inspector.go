package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kvtap/kvtap/clipboard"
	"github.com/kvtap/kvtap/highlight"
)

func (m Model) updateInspect(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
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
	case "c":
		ev := m.cursorEvent()
		if ev == nil || ev.Key == "" {
			return m, nil
		}
		_ = clipboard.CopyLocator(context.Background(), ev.Bucket, ev.Key, "")
		return m, nil
	case "C":
		ev := m.cursorEvent()
		if ev == nil || ev.Key == "" {
			return m, nil
		}
		_ = clipboard.CopyLocator(context.Background(), ev.Bucket, ev.Key, ev.Path)
		return m, nil
	case "j", "down":
		maxScroll := max(len(m.inspectLines())-m.inspectVisibleRows(), 0)
		if m.inspectScroll < maxScroll {
			m.inspectScroll++
		}
		return m, nil
	case "k", "up":
		if m.inspectScroll > 0 {
			m.inspectScroll--
		}
		return m, nil
	}
	return m, nil
}

func (m Model) inspectLines() []string {
	ev := m.cursorEvent()
	if ev == nil {
		return nil
	}

	var lines []string
	lines = append(lines, "Op:        "+ev.Op)
	lines = append(lines, "Session:   "+ev.SessionID)

	if ev.Key != "" {
		lines = append(lines, "Key:")
		lines = append(lines, "  "+ev.Key)
	}

	if ev.Path != "" {
		lines = append(lines, "Path:      "+ev.Path)
	}

	lines = append(lines, fmt.Sprintf("Partition: %d", ev.Partition))
	lines = append(lines, "Duration:  "+formatDurationValue(ev.Duration))
	lines = append(lines, "Time:      "+formatTimeFull(ev.StartTime))
	lines = append(lines, "Status:    "+ev.Status.String())

	if ev.Cas != 0 {
		lines = append(lines, fmt.Sprintf("CAS:       0x%016x", ev.Cas))
	}

	if ev.ValuePreview != "" {
		lines = append(lines, "Value:")
		for l := range strings.SplitSeq(ev.ValuePreview, "\n") {
			lines = append(lines, "  "+highlight.Value(strings.TrimSpace(l)))
		}
	}

	if ev.Error != "" {
		lines = append(lines, "Error:     "+ev.Error)
	}

	if ev.HasToken {
		lines = append(lines, fmt.Sprintf("Token:     vbuuid=%d seqno=%d", ev.Token.VbUUID, ev.Token.SeqNo))
	}

	if ev.HotKey {
		lines = append(lines, "Hot key:   yes")
	}

	return lines
}

func (m Model) inspectVisibleRows() int {
	return max(m.height-2, 3) // -2 for top/bottom border
}

func (m Model) renderInspector() string {
	innerWidth := max(m.width-4, 20)
	visibleRows := m.inspectVisibleRows()

	lines := m.inspectLines()
	if lines == nil {
		return ""
	}

	maxScroll := max(len(lines)-visibleRows, 0)
	if m.inspectScroll > maxScroll {
		m.inspectScroll = maxScroll
	}

	end := min(m.inspectScroll+visibleRows, len(lines))
	visible := lines[m.inspectScroll:end]
	content := strings.Join(visible, "\n")

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
		title := " Inspector "
		dashes := max(innerWidth-len([]rune(title)), 0)
		boxLines[0] = borderFg.Render("╭") +
			titleStyle.Render(title) +
			borderFg.Render(strings.Repeat("─", dashes)+"╮")
	}

	if n := len(boxLines); n > 0 {
		borderFg := lipgloss.NewStyle().Foreground(borderColor)
		help := " q: back  j/k: scroll  c: copy key  C: copy key+path "
		dashes := max(innerWidth-len([]rune(help)), 0)
		boxLines[n-1] = borderFg.Render("╰") +
			lipgloss.NewStyle().Faint(true).Render(help) +
			borderFg.Render(strings.Repeat("─", dashes)+"╯")
	}

	return strings.Join(boxLines, "\n")
}
