package codec

import (
	"container/list"

	"github.com/kvtap/kvtap/memd"
)

// inFlightEntry is one request awaiting its response, per §3's
// InFlightEntry entity.
type inFlightEntry struct {
	req     memd.Request
	opaque  uint32
	pending bool
}

// InFlightQueue is the single-producer, single-consumer FIFO correlator
// described in §4.2. It is not safe for concurrent use from multiple
// goroutines — per §5, the codec is strictly single-threaded per
// connection, so none is needed.
type InFlightQueue struct {
	entries *list.List
}

// NewInFlightQueue constructs an empty queue.
func NewInFlightQueue() *InFlightQueue {
	return &InFlightQueue{entries: list.New()}
}

// Enqueue records req (already assigned its opaque) as awaiting a
// response. Called on successful encode, per §4.2.
func (q *InFlightQueue) Enqueue(req memd.Request) {
	q.entries.PushBack(&inFlightEntry{req: req, opaque: opaqueOf(req), pending: true})
}

// Len reports how many requests are still awaiting a response.
func (q *InFlightQueue) Len() int {
	return q.entries.Len()
}

// Peek returns the head request without removing it, along with whether
// the queue was non-empty. The decoder must check the response's opaque
// against this before proceeding (invariant 2).
func (q *InFlightQueue) Peek() (memd.Request, bool) {
	front := q.entries.Front()
	if front == nil {
		return nil, false
	}
	return front.Value.(*inFlightEntry).req, true
}

// FinishedDecoding dequeues the head entry. For STAT requests the caller
// must defer this call until the terminating empty-key response arrives
// (invariant 6); every other variant calls it immediately after decode.
func (q *InFlightQueue) FinishedDecoding() {
	front := q.entries.Front()
	if front == nil {
		panic(&InvariantError{Msg: "FinishedDecoding called on empty in-flight queue"})
	}
	q.entries.Remove(front)
}

// CancelAll drains the queue, invoking release exactly once for each
// queued request; release decides whether that request carries a payload
// to free — the connection-close cleanup path described in §4.2 and §5.
func (q *InFlightQueue) CancelAll(release func(req memd.Request)) {
	for e := q.entries.Front(); e != nil; e = e.Next() {
		release(e.Value.(*inFlightEntry).req)
	}
	q.entries.Init()
}

func opaqueOf(req memd.Request) uint32 {
	return requestMeta(req).Opaque
}
