// Package agent is the minimal external collaborator spec.md treats as
// out of scope: a single-connection driver that owns a net.Conn, performs
// the HELLO feature handshake, dispatches typed requests through
// codec.Codec, and runs the read loop that feeds responses back. It does
// no pooling, topology resolution, or retry orchestration.
package agent

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kvtap/kvtap/codec"
	"github.com/kvtap/kvtap/memd"
)

// Agent drives one connection to a memcached-compatible server. Per
// spec.md §5, the codec it wraps must only be driven by one goroutine
// at a time; mu serializes Dispatch callers against the read loop the
// same way the teacher's conn.mu serializes pending-event access in
// proxy/mysql/conn.go and proxy/postgres/conn.go.
type Agent struct {
	conn      net.Conn
	codec     *codec.Codec
	events    chan<- Event
	sessionID string
	features  memd.FeatureSet
	bucket    string

	mu      sync.Mutex
	pending *list.List // of pendingOp, FIFO in dispatch order
}

// pendingOp is the request-side metadata Dispatch records so the
// eventual response can be turned into a full Event.
type pendingOp struct {
	id        string
	op        string
	key       []byte
	path      []byte
	partition int32
	start     time.Time
}

// New wraps conn with a fresh Codec and prepares it for use. events
// receives one Event per completed exchange; callers that don't care
// about events may pass a nil channel, in which case completed
// exchanges are simply discarded after being dequeued.
func New(conn net.Conn, cfg codec.Config, events chan<- Event) *Agent {
	if cfg.RemoteHost == "" && conn.RemoteAddr() != nil {
		cfg.RemoteHost = conn.RemoteAddr().String()
	}
	return &Agent{
		conn:      conn,
		codec:     codec.New(cfg),
		events:    events,
		sessionID: uuid.New().String(),
		pending:   list.New(),
	}
}

// SessionID identifies this Agent's connection for correlation in
// published events.
func (a *Agent) SessionID() string {
	return a.sessionID
}

// NextOpaque allocates an opaque for a new request; callers build their
// memd.Request with this value before calling Dispatch.
func (a *Agent) NextOpaque() uint32 {
	return a.codec.NextOpaque()
}

// Hello performs the feature handshake synchronously, before Run's read
// loop starts: it writes a HELLO request and reads exactly one response
// frame, rather than going through the dispatch/event-publish path,
// since no other exchange can be outstanding yet. On success it informs
// the codec of the accepted feature set (spec.md §4.5).
func (a *Agent) Hello(features []memd.HelloFeature) (memd.FeatureSet, error) {
	req := &memd.HelloRequest{
		RequestMeta: memd.RequestMeta{Opaque: a.NextOpaque(), Partition: -1},
		Features:    features,
	}

	frame, err := a.codec.Encode(req)
	if err != nil {
		return nil, fmt.Errorf("agent: hello: encode: %w", err)
	}
	if _, err := a.conn.Write(frame); err != nil {
		return nil, fmt.Errorf("agent: hello: write: %w", err)
	}

	raw, err := readFrame(a.conn)
	if err != nil {
		return nil, fmt.Errorf("agent: hello: read: %w", err)
	}
	resp, err := a.codec.DecodeFrame(raw)
	if err != nil {
		return nil, fmt.Errorf("agent: hello: decode: %w", err)
	}
	hello, ok := resp.(memd.HelloResponse)
	if !ok {
		return nil, fmt.Errorf("agent: hello: unexpected response type %T", resp)
	}

	a.codec.OnFeaturesNegotiated(hello.Accepted)
	a.features = hello.Accepted
	return hello.Accepted, nil
}

// SelectBucket switches the connection's active bucket context, the same
// way Hello negotiates features: synchronously, one request/response pair,
// before any other exchange can be outstanding on top of it. It requires
// the server to have accepted FeatureSelectBucket during Hello; callers
// that skip Hello or whose server declined the feature get an error
// instead of a SELECT_BUCKET request the server wouldn't understand.
//
// On success every subsequent Dispatch call stamps its request with this
// bucket, unless the caller already set one explicitly via
// memd.Request.SetBucket.
func (a *Agent) SelectBucket(bucket string) error {
	if !a.features.Has(memd.FeatureSelectBucket) {
		return errors.New("agent: select bucket: server did not accept FeatureSelectBucket during hello")
	}

	req := &memd.SelectBucketRequest{
		RequestMeta: memd.RequestMeta{Opaque: a.NextOpaque(), Partition: -1, Key: []byte(bucket)},
	}

	frame, err := a.codec.Encode(req)
	if err != nil {
		return fmt.Errorf("agent: select bucket: encode: %w", err)
	}
	if _, err := a.conn.Write(frame); err != nil {
		return fmt.Errorf("agent: select bucket: write: %w", err)
	}

	raw, err := readFrame(a.conn)
	if err != nil {
		return fmt.Errorf("agent: select bucket: read: %w", err)
	}
	resp, err := a.codec.DecodeFrame(raw)
	if err != nil {
		return fmt.Errorf("agent: select bucket: decode: %w", err)
	}
	sel, ok := resp.(memd.SelectBucketResponse)
	if !ok {
		return fmt.Errorf("agent: select bucket: unexpected response type %T", resp)
	}
	if !sel.Status.IsSuccess() {
		return fmt.Errorf("agent: select bucket: server returned status %s", sel.Status)
	}

	a.bucket = bucket
	return nil
}

// Dispatch encodes req, records its request-side metadata for later
// event construction, and writes the frame to the connection. It may be
// called concurrently by multiple callers; Run's read loop is the only
// other goroutine touching the codec, and mu keeps the two from
// overlapping.
func (a *Agent) Dispatch(req memd.Request) error {
	if a.bucket != "" {
		req.SetBucket(a.bucket)
	}
	p := describeRequest(req)

	a.mu.Lock()
	frame, err := a.codec.Encode(req)
	if err == nil {
		a.pending.PushBack(p)
	}
	a.mu.Unlock()
	if err != nil {
		return fmt.Errorf("agent: dispatch: encode: %w", err)
	}

	if _, err := a.conn.Write(frame); err != nil {
		return fmt.Errorf("agent: dispatch: write: %w", err)
	}
	return nil
}

// Run starts the read loop and blocks until the connection closes, ctx
// is canceled, or a protocol error occurs. Canceling ctx closes the
// connection, unblocking a pending read, mirroring the ctx.Err() check
// in the teacher's relayClientToUpstream/relayUpstreamToClient.
func (a *Agent) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- a.readLoop() }()

	select {
	case <-ctx.Done():
		_ = a.conn.Close()
		<-errCh
		return fmt.Errorf("agent: run: %w", ctx.Err())
	case err := <-errCh:
		return err
	}
}

// Close cancels every in-flight exchange and releases its retained
// payload, then closes the connection.
func (a *Agent) Close() error {
	a.mu.Lock()
	a.codec.Close()
	a.pending.Init()
	a.mu.Unlock()

	if err := a.conn.Close(); err != nil {
		return fmt.Errorf("agent: close: %w", err)
	}
	return nil
}

func (a *Agent) readLoop() error {
	for {
		raw, err := readFrame(a.conn)
		if err != nil {
			if isClosedErr(err) {
				return nil
			}
			return fmt.Errorf("agent: read loop: %w", err)
		}

		a.mu.Lock()
		resp, err := a.codec.DecodeFrame(raw)
		var p pendingOp
		var popped bool
		if err == nil && resp != nil {
			if front := a.pending.Front(); front != nil {
				p = a.pending.Remove(front).(pendingOp)
				popped = true
			}
		}
		a.mu.Unlock()

		if err != nil {
			return fmt.Errorf("agent: read loop: decode: %w", err)
		}
		if resp == nil {
			// Mid-stream STAT response: nothing to publish yet.
			continue
		}
		if !popped {
			return fmt.Errorf("agent: read loop: %w", errors.New("response arrived with no pending request metadata"))
		}

		ev := a.buildEvent(p, resp)
		if a.events != nil {
			select {
			case a.events <- ev:
			default:
			}
		}
	}
}

// describeRequest extracts the op mnemonic, key, and sub-document path
// (if any) from req for pendingOp, so Event doesn't need the response
// to repeat fields the protocol only sends once.
func describeRequest(req memd.Request) pendingOp {
	p := pendingOp{id: uuid.New().String(), start: time.Now()}

	switch r := req.(type) {
	case *memd.GetRequest:
		p.op, p.key, p.partition = r.Op.String(), r.Key, r.Partition
	case *memd.ExpiryRequest:
		p.op, p.key, p.partition = r.Op.String(), r.Key, r.Partition
	case *memd.StoreRequest:
		p.op, p.key, p.partition = r.Op.String(), r.Key, r.Partition
	case *memd.RemoveRequest:
		p.op, p.key, p.partition = memd.OpRemove.String(), r.Key, r.Partition
	case *memd.CounterRequest:
		op := memd.OpCounterIncrement
		if r.Delta < 0 {
			op = memd.OpCounterDecrement
		}
		p.op, p.key, p.partition = op.String(), r.Key, r.Partition
	case *memd.UnlockRequest:
		p.op, p.key, p.partition = memd.OpUnlock.String(), r.Key, r.Partition
	case *memd.AdjoinRequest:
		p.op, p.key, p.partition = r.Op.String(), r.Key, r.Partition
	case *memd.ObserveRequest:
		p.op, p.key, p.partition = memd.OpObserve.String(), r.Key, r.Partition
	case *memd.ObserveSeqNoRequest:
		p.op, p.partition = memd.OpObserveSeqNo.String(), r.Partition
	case *memd.GetAllMutationTokensRequest:
		p.op, p.key, p.partition = memd.OpGetAllMutationTok.String(), r.Key, r.Partition
	case *memd.SubdocRequest:
		p.op, p.key, p.path, p.partition = r.Op.String(), r.Key, r.Path, r.Partition
	case *memd.SubdocMultiLookupRequest:
		p.op, p.key, p.partition = memd.OpSubdocMultiLookup.String(), r.Key, r.Partition
		p.path = joinPaths(r.Commands)
	case *memd.SubdocMultiMutationRequest:
		p.op, p.key, p.partition = memd.OpSubdocMultiMutation.String(), r.Key, r.Partition
		p.path = joinPaths(r.Commands)
	case *memd.StatRequest:
		p.op, p.key, p.partition = memd.OpStat.String(), r.Key, r.Partition
	case *memd.NoopRequest:
		p.op, p.partition = memd.OpNoop.String(), r.Partition
	case *memd.HelloRequest:
		p.op, p.partition = memd.OpHello.String(), r.Partition
	}
	return p
}

func joinPaths(cmds []memd.SubdocCommand) []byte {
	paths := make([]string, len(cmds))
	for i, c := range cmds {
		paths[i] = string(c.Path)
	}
	return []byte(strings.Join(paths, ","))
}

func isClosedErr(err error) bool {
	if errors.Is(err, io.EOF) {
		return true
	}
	var netErr *net.OpError
	if errors.As(err, &netErr) {
		return strings.Contains(netErr.Err.Error(), "closed")
	}
	return strings.Contains(err.Error(), "closed")
}
