package agent

import (
	"fmt"
	"time"

	"github.com/kvtap/kvtap/memd"
)

// Event is one completed request/response exchange, published to the
// broker and rendered by the TUI and web packages. It plays the role the
// teacher's proxy.Event plays for SQL traffic, re-keyed to documents,
// sub-document paths, and mutation tokens instead of queries and rows.
type Event struct {
	ID        string
	SessionID string
	Op        string
	Key       string
	Bucket    string
	Path      string
	Partition int32
	StartTime time.Time
	Duration  time.Duration
	Status    memd.Status
	Cas       uint64
	Error     string
	// ValuePreview is a best-effort, truncated textual rendering of the
	// response payload (decoded document, sub-document fragment, or stat
	// entries), for display only.
	ValuePreview string
	HasToken     bool
	Token        memd.MutationToken
	HotKey       bool
}

const valuePreviewLimit = 256

func truncatePreview(s string) string {
	if len(s) <= valuePreviewLimit {
		return s
	}
	return s[:valuePreviewLimit] + "…"
}

// buildEvent merges a pendingOp (request-side metadata recorded at
// Dispatch time) with the decoded response, producing the Event to
// publish. Per spec.md, the response itself never repeats the request's
// key or path, so the pending entry is the only place those survive.
func (a *Agent) buildEvent(p pendingOp, resp any) Event {
	ev := Event{
		ID:        p.id,
		SessionID: a.sessionID,
		Op:        p.op,
		Key:       string(p.key),
		Path:      string(p.path),
		Partition: p.partition,
		StartTime: p.start,
		Duration:  time.Since(p.start),
	}

	switch r := resp.(type) {
	case memd.GetResponse:
		ev.Status, ev.Cas, ev.Bucket = r.Status, r.Cas, r.Bucket
		if r.Value != nil {
			ev.ValuePreview = truncatePreview(string(r.Value.Bytes()))
			r.Value.Release()
		}
		if len(r.Key) > 0 {
			ev.Key = string(r.Key)
		}
		if r.Hostname != "" {
			ev.ValuePreview = fmt.Sprintf("[%s] %s", r.Hostname, ev.ValuePreview)
		}

	case memd.MutationResponse:
		ev.Status, ev.Cas, ev.Bucket = r.Status, r.Cas, r.Bucket
		ev.HasToken, ev.Token = r.HasToken, r.Token

	case memd.CounterResponse:
		ev.Status, ev.Cas, ev.Bucket = r.Status, r.Cas, r.Bucket
		ev.HasToken, ev.Token = r.HasToken, r.Token
		if r.Status.IsSuccess() {
			ev.ValuePreview = fmt.Sprintf("%d", r.Value)
		}

	case memd.UnlockResponse:
		ev.Status, ev.Bucket = r.Status, r.Bucket

	case memd.TouchResponse:
		ev.Status, ev.Cas, ev.Bucket = r.Status, r.Cas, r.Bucket

	case memd.SubdocSingleResponse:
		ev.Status, ev.Cas, ev.Bucket = r.Status, r.Cas, r.Bucket
		ev.HasToken, ev.Token = r.HasToken, r.Token
		if r.Value != nil {
			ev.ValuePreview = truncatePreview(string(r.Value.Bytes()))
			r.Value.Release()
		}

	case memd.SubdocMultiLookupResponse:
		ev.Status, ev.Cas, ev.Bucket = r.Status, r.Cas, r.Bucket
		ev.ValuePreview = truncatePreview(formatSubdocResults(r.Results))

	case memd.SubdocMultiMutationResponse:
		ev.Status, ev.Cas, ev.Bucket = r.Status, r.Cas, r.Bucket
		ev.HasToken, ev.Token = r.HasToken, r.Token
		if r.Status.IsSuccess() || r.Status == memd.StatusSubdocSuccessDeleted {
			ev.ValuePreview = truncatePreview(formatSubdocResults(r.Results))
		} else {
			ev.Error = fmt.Sprintf("command %d: %v", r.FirstErrorIndex, r.FirstErrorStatus)
		}

	case memd.StatResponse:
		ev.Status = memd.StatusSuccess
		ev.Bucket = r.Bucket
		ev.ValuePreview = truncatePreview(formatStatEntries(r.Entries))

	case memd.GetAllMutationTokensResponse:
		ev.Status, ev.Bucket = r.Status, r.Bucket
		ev.ValuePreview = truncatePreview(fmt.Sprintf("%d partitions", len(r.Records)))

	case memd.ObserveResponse:
		ev.Status, ev.Cas, ev.Bucket = r.Status, r.Cas, r.Bucket
		ev.ValuePreview = fmt.Sprintf("keystate=%d", r.KeyState)

	case memd.ObserveSeqNoResponse:
		ev.Status, ev.Bucket = r.Status, r.Bucket
		ev.ValuePreview = fmt.Sprintf("persisted=%d current=%d", r.PersistSeqNo, r.CurrentSeqNo)

	case memd.KeepAliveResponse:
		ev.Status = r.Status

	case memd.HelloResponse:
		ev.Status = r.Status
	}

	if !ev.Status.IsSuccess() && ev.Status != memd.StatusSubdocSuccessDeleted && ev.Error == "" {
		ev.Error = fmt.Sprintf("status 0x%02x", uint16(ev.Status))
	}
	return ev
}

func formatSubdocResults(results []memd.SubdocResult) string {
	s := ""
	for i, r := range results {
		if i > 0 {
			s += ", "
		}
		if r.Status.IsSuccess() && len(r.Value) > 0 {
			s += fmt.Sprintf("[%d]=%s", i, r.Value)
		} else {
			s += fmt.Sprintf("[%d]=0x%02x", i, uint16(r.Status))
		}
	}
	return s
}

func formatStatEntries(entries []memd.StatEntry) string {
	s := ""
	for i, e := range entries {
		if i > 0 {
			s += ", "
		}
		s += e.Key + "=" + e.Value
	}
	return s
}
