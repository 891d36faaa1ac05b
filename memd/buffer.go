package memd

import "sync/atomic"

// Buffer is a reference-counted handle onto a byte payload. It exists so
// that a value read off the wire can be handed to an encoder, released on
// cancellation, or released again when a decoded response is consumed,
// without any single owner needing to know about the others.
//
// A freshly constructed Buffer starts at refcount 1, representing the
// caller's own reference. Retain adds a reference for a new owner; Release
// drops the caller's reference and frees the underlying slice once the
// count reaches zero. Calling Release more times than the buffer has been
// retained is a programming error and panics, since it is always a sign of
// a double-free that would otherwise corrupt a buffer still in use
// elsewhere.
type Buffer struct {
	data     []byte
	refs     *int32
}

// NewBuffer wraps b in a Buffer with an initial reference count of 1. It
// does not copy b.
func NewBuffer(b []byte) *Buffer {
	refs := int32(1)
	return &Buffer{data: b, refs: &refs}
}

// Bytes returns the wrapped payload. The returned slice is only valid
// while the caller holds a reference.
func (buf *Buffer) Bytes() []byte {
	return buf.data
}

// Len returns the length of the wrapped payload.
func (buf *Buffer) Len() int {
	return len(buf.data)
}

// Retain increments the reference count and returns buf, so it can be
// chained at the call site that is taking on ownership.
func (buf *Buffer) Retain() *Buffer {
	atomic.AddInt32(buf.refs, 1)
	return buf
}

// Release decrements the reference count. Once it reaches zero the
// underlying slice is dropped so it can be garbage collected; further use
// of Bytes after the last Release is a use-after-free bug in the caller.
func (buf *Buffer) Release() {
	remaining := atomic.AddInt32(buf.refs, -1)
	if remaining < 0 {
		panic("memd: Buffer released more times than retained")
	}
	if remaining == 0 {
		buf.data = nil
	}
}

// RefCount reports the current reference count. Intended for tests and
// leak detection, not for production control flow.
func (buf *Buffer) RefCount() int32 {
	return atomic.LoadInt32(buf.refs)
}
