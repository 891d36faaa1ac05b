package codec

import (
	"sync/atomic"
	"time"

	"github.com/kvtap/kvtap/memd"
)

// Codec is the full per-connection pipeline stage described in §2: a
// request encoder paired with an opaque allocator, an in-flight
// correlator, and a response decoder that shares feature-flag state with
// the encoder's callers. A Codec is bound to exactly one connection and
// must only be driven from that connection's single I/O goroutine (§5).
type Codec struct {
	encoder  *Encoder
	decoder  *Decoder
	inFlight *InFlightQueue
	features *FeatureState
	opaque   uint32
}

// Config controls the behavior of a new Codec.
type Config struct {
	// MutationTokensEnabled is the application environment's switch for
	// requesting mutation tokens; it gates §4.5's feature flag alongside
	// the server's own HELLO response.
	MutationTokensEnabled bool
	// RemoteHost is the connection's remote address, echoed onto
	// GET_BUCKET_CONFIG responses since the fetched configuration document
	// describes a cluster the client must resolve against, not the host it
	// was fetched from.
	RemoteHost string
}

// New constructs a Codec for a fresh connection.
func New(cfg Config) *Codec {
	features := NewFeatureState(cfg.MutationTokensEnabled)
	return &Codec{
		encoder:  NewEncoder(),
		decoder:  NewDecoder(features, cfg.RemoteHost),
		inFlight: NewInFlightQueue(),
		features: features,
	}
}

// NextOpaque allocates the next opaque value for an outgoing request.
// Per invariant 1, every outgoing request on a connection must have a
// distinct opaque; callers should use this rather than rolling their own
// counter.
func (c *Codec) NextOpaque() uint32 {
	return atomic.AddUint32(&c.opaque, 1)
}

// KeepAliveSource returns a KeepAlive generator sharing this Codec's
// opaque counter, so synthetic NOOPs never collide with application
// request opaques.
func (c *Codec) KeepAliveSource(interval time.Duration) *KeepAlive {
	return NewKeepAlive(interval, &c.opaque)
}

// Encode builds the wire frame for req and enqueues it on the in-flight
// queue. Per §4.1, an unrecognized request variant panics with
// InvariantError rather than returning an error, since it can only
// happen from a programming mistake in the caller.
func (c *Codec) Encode(req memd.Request) ([]byte, error) {
	frame, err := c.encoder.Encode(req)
	if err != nil {
		return nil, err
	}
	c.inFlight.Enqueue(req)
	return frame, nil
}

// DecodeFrame parses raw (one complete response frame) and decodes it
// against the in-flight head request. It enforces invariant 2 (opaque
// agreement) before dispatching to the decoder, and dequeues the
// in-flight entry unless decode reports the exchange is still streaming
// (STAT, mid-sequence).
func (c *Codec) DecodeFrame(raw []byte) (any, error) {
	frame, err := ParseResponseFrame(raw)
	if err != nil {
		return nil, err
	}

	head, ok := c.inFlight.Peek()
	if !ok {
		return nil, protocolErrorf("decode frame", "response with opaque %d arrived with no in-flight request", frame.Header.Opaque)
	}
	headOpaque := requestMeta(head).Opaque
	if frame.Header.Opaque != headOpaque {
		return nil, protocolErrorf("decode frame", "opaque mismatch: head request has opaque %d, response has opaque %d", headOpaque, frame.Header.Opaque)
	}

	resp, dequeue, err := c.decoder.Decode(head, frame)
	if err != nil {
		return nil, err
	}
	if !dequeue {
		// Mid-stream STAT response: accumulated but not yet published.
		return nil, nil
	}
	c.inFlight.FinishedDecoding()
	return resp, nil
}

// OnFeaturesNegotiated records the server's accepted feature set after a
// HELLO exchange, per §4.5.
func (c *Codec) OnFeaturesNegotiated(accepted memd.FeatureSet) {
	c.features.OnFeaturesNegotiated(accepted)
}

// Close cancels every remaining in-flight entry, releasing each retained
// payload exactly once, per §4.2 and §5's connection-close cleanup path.
func (c *Codec) Close() {
	c.inFlight.CancelAll(func(req memd.Request) {
		if buf := retainedPayload(req); buf != nil {
			buf.Release()
		}
	})
}

// InFlightLen reports how many requests are awaiting a response. Mainly
// useful for tests and diagnostics.
func (c *Codec) InFlightLen() int {
	return c.inFlight.Len()
}
