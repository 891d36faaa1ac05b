package tui

import (
	"cmp"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/kvtap/kvtap/agent"
	"github.com/kvtap/kvtap/pathnorm"
)

type exportFormat int

const (
	exportJSON exportFormat = iota
	exportMarkdown
)

func (f exportFormat) ext() string {
	if f == exportMarkdown {
		return "md"
	}
	return "json"
}

type exportHotKeyRow struct {
	Key     string  `json:"key"`
	Count   int     `json:"count"`
	TotalMs float64 `json:"total_ms"`
	AvgMs   float64 `json:"avg_ms"`
	P95Ms   float64 `json:"p95_ms"`
	MaxMs   float64 `json:"max_ms"`
}

type exportOp struct {
	Time       string `json:"time"`
	Op         string `json:"op"`
	Bucket     string `json:"bucket,omitempty"`
	Key        string `json:"key"`
	Path       string `json:"path,omitempty"`
	Value      string `json:"value,omitempty"`
	DurationMs float64 `json:"duration_ms"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
}

type exportData struct {
	Captured int    `json:"captured"`
	Exported int    `json:"exported"`
	Filter   string `json:"filter"`
	Search   string `json:"search"`
	Period   struct {
		Start string `json:"start"`
		End   string `json:"end"`
	} `json:"period"`
	Operations []exportOp        `json:"operations"`
	HotKeys    []exportHotKeyRow `json:"hot_keys"`
}

// filteredEvents returns the subset of events matching filter and search.
func filteredEvents(
	events []agent.Event, filterQuery, searchQuery string,
) []agent.Event {
	matched := matchingEventsFiltered(events, filterQuery, searchQuery)
	result := make([]agent.Event, 0, len(matched))
	for i, ev := range events {
		if matched[i] {
			result = append(result, ev)
		}
	}
	return result
}

// buildExportHotKeys aggregates per-key access stats from the given events.
// Keys carrying a sub-document path are grouped with the path normalized
// (array indices collapsed), matching the live hot-key view in hotkeys.go.
func buildExportHotKeys(events []agent.Event) []exportHotKeyRow {
	type agg struct {
		count     int
		totalDur  time.Duration
		durations []time.Duration
	}
	groups := make(map[string]*agg)
	var order []string

	for _, ev := range events {
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
			order = append(order, label)
		}
		g.count++
		g.totalDur += ev.Duration
		g.durations = append(g.durations, ev.Duration)
	}

	rows := make([]exportHotKeyRow, 0, len(groups))
	for _, key := range order {
		g := groups[key]
		slices.SortFunc(g.durations, cmp.Compare)
		totalMs := float64(g.totalDur.Microseconds()) / 1000
		avgMs := totalMs / float64(g.count)
		p95Ms := float64(percentile(g.durations, 0.95).Microseconds()) / 1000
		maxMs := float64(g.durations[len(g.durations)-1].Microseconds()) / 1000
		rows = append(rows, exportHotKeyRow{
			Key:     key,
			Count:   g.count,
			TotalMs: totalMs,
			AvgMs:   avgMs,
			P95Ms:   p95Ms,
			MaxMs:   maxMs,
		})
	}
	return rows
}

func buildExportData(
	allEvents []agent.Event, filterQuery, searchQuery string,
) exportData {
	exported := filteredEvents(allEvents, filterQuery, searchQuery)

	var d exportData
	d.Captured = len(allEvents)
	d.Exported = len(exported)
	d.Filter = filterQuery
	d.Search = searchQuery

	if len(exported) > 0 {
		first := exported[0].StartTime
		last := exported[len(exported)-1].StartTime
		//nolint:gosmopolitan // export uses local time
		d.Period.Start = first.In(time.Local).Format("15:04:05")
		//nolint:gosmopolitan // export uses local time
		d.Period.End = last.In(time.Local).Format("15:04:05")
	}

	d.Operations = make([]exportOp, 0, len(exported))
	for _, ev := range exported {
		//nolint:gosmopolitan // export uses local time
		ts := ev.StartTime.In(time.Local)
		d.Operations = append(d.Operations, exportOp{
			Time:       ts.Format("15:04:05.000"),
			Op:         ev.Op,
			Bucket:     ev.Bucket,
			Key:        ev.Key,
			Path:       ev.Path,
			Value:      ev.ValuePreview,
			DurationMs: float64(ev.Duration.Microseconds()) / 1000,
			Status:     ev.Status.String(),
			Error:      ev.Error,
		})
	}

	d.HotKeys = buildExportHotKeys(exported)
	return d
}

func renderJSON(
	allEvents []agent.Event, filterQuery, searchQuery string,
) (string, error) {
	d := buildExportData(allEvents, filterQuery, searchQuery)
	b, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal export: %w", err)
	}
	return string(b) + "\n", nil
}

func renderMarkdown(
	allEvents []agent.Event, filterQuery, searchQuery string,
) string {
	d := buildExportData(allEvents, filterQuery, searchQuery)

	var sb strings.Builder
	sb.WriteString("# kvtap export\n\n")

	fmt.Fprintf(&sb, "- Captured: %d operations\n", d.Captured)
	exportLine := fmt.Sprintf("- Exported: %d operations", d.Exported)
	if d.Filter != "" || d.Search != "" {
		var parts []string
		if d.Filter != "" {
			parts = append(parts, "filter: "+d.Filter)
		}
		if d.Search != "" {
			parts = append(parts, "search: "+d.Search)
		}
		exportLine += " (" + strings.Join(parts, ", ") + ")"
	}
	sb.WriteString(exportLine + "\n")
	if d.Period.Start != "" {
		fmt.Fprintf(&sb, "- Period: %s — %s\n", d.Period.Start, d.Period.End)
	}

	sb.WriteString("\n## Operations\n\n")
	sb.WriteString("| # | Time | Op | Bucket | Duration | Key | Status | Error |\n")
	sb.WriteString("|---|------|----|--------|----------|-----|--------|-------|\n")
	for i, o := range d.Operations {
		fmt.Fprintf(&sb, "| %d | %s | %s | %s | %s | %s | %s | %s |\n",
			i+1, o.Time, o.Op,
			escapeMarkdownPipe(o.Bucket),
			formatDurationMs(o.DurationMs),
			escapeMarkdownPipe(o.Key),
			o.Status,
			escapeMarkdownPipe(o.Error),
		)
	}

	if len(d.HotKeys) > 0 {
		sb.WriteString("\n## Hot keys\n\n")
		sb.WriteString("| Key | Count | Avg | P95 | Max | Total |\n")
		sb.WriteString("|-----|-------|-----|-----|-----|-------|\n")
		for _, a := range d.HotKeys {
			fmt.Fprintf(&sb, "| %s | %d | %s | %s | %s | %s |\n",
				escapeMarkdownPipe(a.Key),
				a.Count,
				formatDurationMs(a.AvgMs),
				formatDurationMs(a.P95Ms),
				formatDurationMs(a.MaxMs),
				formatDurationMs(a.TotalMs),
			)
		}
	}

	return sb.String()
}

func formatDurationMs(ms float64) string {
	switch {
	case ms < 1:
		return fmt.Sprintf("%.0fµs", ms*1000)
	case ms < 1000:
		return fmt.Sprintf("%.1fms", ms)
	default:
		return fmt.Sprintf("%.2fs", ms/1000)
	}
}

func escapeMarkdownPipe(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}

// writeExport writes filtered events to a file and returns the path.
// dir specifies the output directory; if empty, the current directory is used.
func writeExport(
	allEvents []agent.Event,
	filterQuery, searchQuery string,
	format exportFormat,
	dir string,
) (string, error) {
	var content string
	var err error

	switch format {
	case exportJSON:
		content, err = renderJSON(allEvents, filterQuery, searchQuery)
		if err != nil {
			return "", err
		}
	case exportMarkdown:
		content = renderMarkdown(allEvents, filterQuery, searchQuery)
	}

	filename := fmt.Sprintf("kvtap-%s.%s",
		time.Now().Format("20060102-150405"), format.ext())
	if dir != "" {
		filename = filepath.Join(dir, filename)
	}

	if err := os.WriteFile(filename, []byte(content), 0o600); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	return filename, nil
}
