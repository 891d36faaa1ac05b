package tui //nolint:testpackage // testing internal filter parsing logic

import (
	"testing"
	"time"

	"github.com/kvtap/kvtap/agent"
	"github.com/kvtap/kvtap/memd"
)

func TestParseFilter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  []filterCondition
	}{
		{
			name:  "empty",
			input: "",
			want:  nil,
		},
		{
			name:  "plain text",
			input: "user",
			want: []filterCondition{
				{kind: filterText, text: "user"},
			},
		},
		{
			name:  "duration greater than ms",
			input: "d>100ms",
			want: []filterCondition{
				{kind: filterDuration, durOp: durGT, durValue: 100 * time.Millisecond},
			},
		},
		{
			name:  "duration less than us",
			input: "d<500us",
			want: []filterCondition{
				{kind: filterDuration, durOp: durLT, durValue: 500 * time.Microsecond},
			},
		},
		{
			name:  "duration greater than s",
			input: "d>1s",
			want: []filterCondition{
				{kind: filterDuration, durOp: durGT, durValue: 1 * time.Second},
			},
		},
		{
			name:  "error keyword",
			input: "error",
			want: []filterCondition{
				{kind: filterError},
			},
		},
		{
			name:  "error keyword case insensitive",
			input: "Error",
			want: []filterCondition{
				{kind: filterError},
			},
		},
		{
			name:  "hot keyword",
			input: "hot",
			want: []filterCondition{
				{kind: filterHot},
			},
		},
		{
			name:  "op:get",
			input: "op:get",
			want: []filterCondition{
				{kind: filterOp, opPattern: "get"},
			},
		},
		{
			name:  "op:upsert",
			input: "op:upsert",
			want: []filterCondition{
				{kind: filterOp, opPattern: "upsert"},
			},
		},
		{
			name:  "combined filter",
			input: "op:get d>100ms",
			want: []filterCondition{
				{kind: filterOp, opPattern: "get"},
				{kind: filterDuration, durOp: durGT, durValue: 100 * time.Millisecond},
			},
		},
		{
			name:  "text with mixed case",
			input: "User ORDER",
			want: []filterCondition{
				{kind: filterText, text: "user"},
				{kind: filterText, text: "order"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := parseFilter(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("parseFilter(%q) returned %d conditions, want %d", tt.input, len(got), len(tt.want))
			}
			for i, g := range got {
				w := tt.want[i]
				if g.kind != w.kind {
					t.Errorf("cond[%d].kind = %d, want %d", i, g.kind, w.kind)
				}
				if g.text != w.text {
					t.Errorf("cond[%d].text = %q, want %q", i, g.text, w.text)
				}
				if g.durOp != w.durOp {
					t.Errorf("cond[%d].durOp = %d, want %d", i, g.durOp, w.durOp)
				}
				if g.durValue != w.durValue {
					t.Errorf("cond[%d].durValue = %v, want %v", i, g.durValue, w.durValue)
				}
				if g.opPattern != w.opPattern {
					t.Errorf("cond[%d].opPattern = %q, want %q", i, g.opPattern, w.opPattern)
				}
			}
		})
	}
}

func makeFilterEvent(op, key, path string, dur time.Duration, errMsg string, hot bool) agent.Event {
	return agent.Event{
		Op:       op,
		Key:      key,
		Path:     path,
		Duration: dur,
		Error:    errMsg,
		HotKey:   hot,
		Status:   memd.StatusSuccess,
	}
}

func TestMatchesEvent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cond filterCondition
		ev   agent.Event
		want bool
	}{
		{
			name: "text match on key",
			cond: filterCondition{kind: filterText, text: "user"},
			ev:   makeFilterEvent("GET", "user:42", "", 10*time.Millisecond, "", false),
			want: true,
		},
		{
			name: "text match on path",
			cond: filterCondition{kind: filterText, text: "addr"},
			ev:   makeFilterEvent("SUBDOC_GET", "user:42", "address.city", 10*time.Millisecond, "", false),
			want: true,
		},
		{
			name: "text no match",
			cond: filterCondition{kind: filterText, text: "order"},
			ev:   makeFilterEvent("GET", "user:42", "", 10*time.Millisecond, "", false),
			want: false,
		},
		{
			name: "duration GT match",
			cond: filterCondition{kind: filterDuration, durOp: durGT, durValue: 50 * time.Millisecond},
			ev:   makeFilterEvent("GET", "user:1", "", 100*time.Millisecond, "", false),
			want: true,
		},
		{
			name: "duration GT no match",
			cond: filterCondition{kind: filterDuration, durOp: durGT, durValue: 200 * time.Millisecond},
			ev:   makeFilterEvent("GET", "user:1", "", 100*time.Millisecond, "", false),
			want: false,
		},
		{
			name: "duration LT match",
			cond: filterCondition{kind: filterDuration, durOp: durLT, durValue: 200 * time.Millisecond},
			ev:   makeFilterEvent("GET", "user:1", "", 100*time.Millisecond, "", false),
			want: true,
		},
		{
			name: "duration LT no match",
			cond: filterCondition{kind: filterDuration, durOp: durLT, durValue: 50 * time.Millisecond},
			ev:   makeFilterEvent("GET", "user:1", "", 100*time.Millisecond, "", false),
			want: false,
		},
		{
			name: "error match",
			cond: filterCondition{kind: filterError},
			ev:   makeFilterEvent("GET", "user:1", "", 10*time.Millisecond, "key not found", false),
			want: true,
		},
		{
			name: "error no match",
			cond: filterCondition{kind: filterError},
			ev:   makeFilterEvent("GET", "user:1", "", 10*time.Millisecond, "", false),
			want: false,
		},
		{
			name: "hot match",
			cond: filterCondition{kind: filterHot},
			ev:   makeFilterEvent("GET", "user:1", "", 10*time.Millisecond, "", true),
			want: true,
		},
		{
			name: "hot no match",
			cond: filterCondition{kind: filterHot},
			ev:   makeFilterEvent("GET", "user:1", "", 10*time.Millisecond, "", false),
			want: false,
		},
		{
			name: "op:get match",
			cond: filterCondition{kind: filterOp, opPattern: "get"},
			ev:   makeFilterEvent("GET", "user:1", "", 10*time.Millisecond, "", false),
			want: true,
		},
		{
			name: "op:get no match (upsert)",
			cond: filterCondition{kind: filterOp, opPattern: "get"},
			ev:   makeFilterEvent("UPSERT", "user:1", "", 10*time.Millisecond, "", false),
			want: false,
		},
		{
			name: "op match is case insensitive",
			cond: filterCondition{kind: filterOp, opPattern: "subdoc_get"},
			ev:   makeFilterEvent("SUBDOC_GET", "user:1", "address.city", 10*time.Millisecond, "", false),
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := tt.cond.matchesEvent(tt.ev)
			if got != tt.want {
				t.Errorf("matchesEvent() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatchAllConditions(t *testing.T) {
	t.Parallel()

	ev := makeFilterEvent("GET", "user:1", "", 150*time.Millisecond, "", false)

	tests := []struct {
		name  string
		conds []filterCondition
		want  bool
	}{
		{
			name:  "empty conditions match everything",
			conds: nil,
			want:  true,
		},
		{
			name: "all match",
			conds: []filterCondition{
				{kind: filterOp, opPattern: "get"},
				{kind: filterDuration, durOp: durGT, durValue: 100 * time.Millisecond},
			},
			want: true,
		},
		{
			name: "one fails",
			conds: []filterCondition{
				{kind: filterOp, opPattern: "get"},
				{kind: filterDuration, durOp: durGT, durValue: 200 * time.Millisecond},
			},
			want: false,
		},
		{
			name: "text and op",
			conds: []filterCondition{
				{kind: filterOp, opPattern: "get"},
				{kind: filterText, text: "user"},
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := matchAllConditions(ev, tt.conds)
			if got != tt.want {
				t.Errorf("matchAllConditions() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWrapFooterItems(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		items []string
		width int
		want  string
	}{
		{
			name:  "all fit in one line",
			items: []string{"a: foo", "b: bar"},
			width: 80,
			want:  "  a: foo  b: bar",
		},
		{
			name:  "wrap to two lines",
			items: []string{"a: foo", "b: bar", "c: baz"},
			width: 20,
			want:  "  a: foo  b: bar\n  c: baz",
		},
		{
			name:  "each item on its own line",
			items: []string{"long-item-1", "long-item-2", "long-item-3"},
			width: 18,
			want:  "  long-item-1\n  long-item-2\n  long-item-3",
		},
		{
			name:  "zero width falls back to single line",
			items: []string{"a", "b"},
			width: 0,
			want:  "  a  b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := wrapFooterItems(tt.items, tt.width)
			if got != tt.want {
				t.Errorf("wrapFooterItems(%v, %d) =\n%q\nwant:\n%q", tt.items, tt.width, got, tt.want)
			}
		})
	}
}

func TestDescribeFilter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "op and duration",
			input: "op:get d>100ms",
			want:  "op:get d>100ms",
		},
		{
			name:  "error keyword",
			input: "error",
			want:  "error",
		},
		{
			name:  "hot keyword",
			input: "hot",
			want:  "hot",
		},
		{
			name:  "text fallback",
			input: "user",
			want:  "text:user",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := describeFilter(tt.input)
			if got != tt.want {
				t.Errorf("describeFilter(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
