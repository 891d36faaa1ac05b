package codec

import "github.com/kvtap/kvtap/memd"

// statPhase models the STAT exchange as an explicit state machine per
// §9's guidance, rather than by mutating the request object in place.
type statPhase int

const (
	statIdle statPhase = iota
	statCollecting
	statTerminated
)

// statCollector accumulates STAT entries across a streamed exchange,
// finalizing on the terminating empty-key response (invariant 6).
type statCollector struct {
	phase   statPhase
	entries []memd.StatEntry
}

// Observe folds one STAT response into the collector. It returns true
// once the terminating empty-key response has been observed, at which
// point the caller should dequeue the in-flight STAT request.
func (c *statCollector) Observe(key, value []byte) bool {
	switch c.phase {
	case statIdle:
		c.phase = statCollecting
	case statTerminated:
		panic(&InvariantError{Msg: "statCollector.Observe called after termination"})
	}

	if len(key) == 0 {
		c.phase = statTerminated
		return true
	}
	c.entries = append(c.entries, memd.StatEntry{Key: string(key), Value: string(value)})
	return false
}

func (c *statCollector) Response() memd.StatResponse {
	return memd.StatResponse{Entries: c.entries}
}
