// Package broker is an in-process publish/subscribe fan-out of captured
// agent.Event values, authored from scratch to match the call-site
// contract implied by the teacher's cmd/sql-tapd/main.go (broker.New,
// Publish) and server/server.go (Subscribe used by a streaming handler).
package broker

import (
	"sync"

	"github.com/kvtap/kvtap/agent"
)

// Broker fans a single stream of agent.Event out to any number of
// subscribers. A slow subscriber never blocks Publish or other
// subscribers: its channel is buffered to capacity, and once full,
// further events for that subscriber are dropped rather than queued.
type Broker struct {
	capacity int

	mu   sync.Mutex
	subs map[int]chan agent.Event
	next int
}

// New creates a Broker whose per-subscriber channels are buffered to
// capacity.
func New(capacity int) *Broker {
	return &Broker{
		capacity: capacity,
		subs:     make(map[int]chan agent.Event),
	}
}

// Publish fans ev out to every current subscriber. Per subscriber, if
// its channel is full the event is dropped for that subscriber rather
// than blocking the publisher.
func (b *Broker) Publish(ev agent.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribe registers a new subscriber and returns its event channel
// along with a cancel func that must be called when the subscriber is
// done, to release the channel and stop receiving.
func (b *Broker) Subscribe() (<-chan agent.Event, func()) {
	b.mu.Lock()
	id := b.next
	b.next++
	ch := make(chan agent.Event, b.capacity)
	b.subs[id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if existing, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(existing)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// SubscriberCount reports how many subscribers are currently attached.
// Mainly useful for tests and diagnostics.
func (b *Broker) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
