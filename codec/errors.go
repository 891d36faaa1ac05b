// Package codec implements the stateful, single-threaded-per-connection
// encoder/decoder pair for the memcached-derived binary protocol defined
// in package memd: request encoding with exact wire layouts, opaque-based
// in-flight correlation, and response decoding including sub-document
// multi-op result assembly.
package codec

import "fmt"

// ProtocolError marks a fatal framing violation: an opaque mismatch, a
// truncated sub-document body, an unrecognized observe-seqno format, or
// any other size/shape invariant failure. It is never a server-reported
// status — those are surfaced as ordinary typed response fields — and is
// always fatal to the connection that produced it.
type ProtocolError struct {
	Op  string
	Msg string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("codec: protocol error during %s: %s", e.Op, e.Msg)
}

func protocolErrorf(op, format string, args ...any) error {
	return &ProtocolError{Op: op, Msg: fmt.Sprintf(format, args...)}
}

// InvariantError marks a programmer error: an unknown request variant
// reaching the encoder, or an unknown in-flight request variant reaching
// the decoder. Per spec these are not runtime-recoverable conditions.
type InvariantError struct {
	Msg string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("codec: invariant violation: %s", e.Msg)
}
