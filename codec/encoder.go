package codec

import (
	"encoding/binary"

	"github.com/kvtap/kvtap/memd"
)

// Encoder turns a typed request variant into a wire frame. It is a total
// function from request to frame: every variant memd.Request can hold is
// handled, and an unrecognized concrete type is an InvariantError rather
// than a returned framing error, per §4.1's "unknown request variant is a
// programmer error" rule.
type Encoder struct{}

// NewEncoder constructs an Encoder. It carries no state of its own; all
// per-connection state (opaque allocation, in-flight tracking) lives in
// Codec.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Encode builds the wire frame for req. On success it also retains req's
// payload buffer, if it carries one eligible for retention (see
// retainsPayload), so the same payload can be safely re-encoded if a
// RETRY response asks for it.
func (e *Encoder) Encode(req memd.Request) ([]byte, error) {
	op, extras, key, value, cas, err := e.shape(req)
	if err != nil {
		return nil, err
	}

	meta := requestMeta(req)
	frame := assembleFrame(op, meta, extras, key, value, cas)

	if buf := retainedPayload(req); buf != nil {
		buf.Retain()
	}
	return frame, nil
}

// requestMeta extracts the common fields every request variant embeds.
func requestMeta(req memd.Request) memd.RequestMeta {
	switch r := req.(type) {
	case *memd.GetRequest:
		return r.RequestMeta
	case *memd.ExpiryRequest:
		return r.RequestMeta
	case *memd.StoreRequest:
		return r.RequestMeta
	case *memd.RemoveRequest:
		return r.RequestMeta
	case *memd.CounterRequest:
		return r.RequestMeta
	case *memd.UnlockRequest:
		return r.RequestMeta
	case *memd.AdjoinRequest:
		return r.RequestMeta
	case *memd.ObserveRequest:
		return r.RequestMeta
	case *memd.ObserveSeqNoRequest:
		return r.RequestMeta
	case *memd.GetAllMutationTokensRequest:
		return r.RequestMeta
	case *memd.SubdocRequest:
		return r.RequestMeta
	case *memd.SubdocMultiLookupRequest:
		return r.RequestMeta
	case *memd.SubdocMultiMutationRequest:
		return r.RequestMeta
	case *memd.StatRequest:
		return r.RequestMeta
	case *memd.NoopRequest:
		return r.RequestMeta
	case *memd.HelloRequest:
		return r.RequestMeta
	case *memd.SelectBucketRequest:
		return r.RequestMeta
	default:
		panic(&InvariantError{Msg: "requestMeta: unknown request variant"})
	}
}

// retainedPayload returns the payload buffer that should be retained
// across this encode, or nil if req carries none eligible. Per §4.1:
// retention applies to payload-carrying requests other than Observe and
// Observe-seqno, whose bodies are codec-owned rather than caller-owned.
func retainedPayload(req memd.Request) *memd.Buffer {
	switch r := req.(type) {
	case *memd.StoreRequest:
		return r.Payload
	case *memd.AdjoinRequest:
		return r.Payload
	default:
		return nil
	}
}

// shape computes the per-variant opcode, extras, key, value, and CAS to
// assemble into a frame.
func (e *Encoder) shape(req memd.Request) (op memd.Opcode, extras, key, value []byte, cas uint64, err error) {
	switch r := req.(type) {
	case *memd.GetRequest:
		return r.Op, nil, r.Key, nil, 0, nil

	case *memd.ExpiryRequest:
		extras := make([]byte, 4)
		binary.BigEndian.PutUint32(extras, r.Expiry)
		return r.Op, extras, r.Key, nil, 0, nil

	case *memd.StoreRequest:
		extras := make([]byte, 8)
		binary.BigEndian.PutUint32(extras[0:4], r.Flags)
		binary.BigEndian.PutUint32(extras[4:8], r.Expiry)
		cas := uint64(0)
		if r.Op == memd.OpReplace {
			cas = r.Cas
		}
		var value []byte
		if r.Payload != nil {
			value = r.Payload.Bytes()
		}
		return r.Op, extras, r.Key, value, cas, nil

	case *memd.RemoveRequest:
		return memd.OpRemove, nil, r.Key, nil, r.Cas, nil

	case *memd.CounterRequest:
		op := memd.OpCounterIncrement
		delta := r.Delta
		if delta < 0 {
			op = memd.OpCounterDecrement
			delta = -delta
		}
		extras := make([]byte, 20)
		binary.BigEndian.PutUint64(extras[0:8], uint64(delta))
		binary.BigEndian.PutUint64(extras[8:16], r.Initial)
		binary.BigEndian.PutUint32(extras[16:20], r.Expiry)
		return op, extras, r.Key, nil, 0, nil

	case *memd.UnlockRequest:
		return memd.OpUnlock, nil, r.Key, nil, r.Cas, nil

	case *memd.AdjoinRequest:
		var value []byte
		if r.Payload != nil {
			value = r.Payload.Bytes()
		}
		return r.Op, nil, r.Key, value, r.Cas, nil

	case *memd.ObserveRequest:
		body := make([]byte, 2+2+len(r.Key))
		binary.BigEndian.PutUint16(body[0:2], r.VbID)
		binary.BigEndian.PutUint16(body[2:4], uint16(len(r.Key)))
		copy(body[4:], r.Key)
		return memd.OpObserve, nil, nil, body, 0, nil

	case *memd.ObserveSeqNoRequest:
		body := make([]byte, 8)
		binary.BigEndian.PutUint64(body, uint64(r.VbUUID))
		return memd.OpObserveSeqNo, nil, nil, body, 0, nil

	case *memd.GetAllMutationTokensRequest:
		if r.Filter == memd.VbucketStateAny {
			return memd.OpGetAllMutationTok, nil, r.Key, nil, 0, nil
		}
		extras := make([]byte, 4)
		binary.BigEndian.PutUint32(extras, uint32(r.Filter))
		return memd.OpGetAllMutationTok, extras, r.Key, nil, 0, nil

	case *memd.SubdocRequest:
		return e.shapeSubdocSingle(r)

	case *memd.SubdocMultiLookupRequest:
		value := encodeLookupSpecs(r.Commands)
		return memd.OpSubdocMultiLookup, nil, r.Key, value, 0, nil

	case *memd.SubdocMultiMutationRequest:
		var extras []byte
		if r.Expiry != 0 {
			extras = make([]byte, 4)
			binary.BigEndian.PutUint32(extras, r.Expiry)
		}
		value := encodeMutationSpecs(r.Commands)
		return memd.OpSubdocMultiMutation, extras, r.Key, value, r.Cas, nil

	case *memd.StatRequest:
		return memd.OpStat, nil, r.Key, nil, 0, nil

	case *memd.NoopRequest:
		return memd.OpNoop, nil, nil, nil, 0, nil

	case *memd.HelloRequest:
		value := make([]byte, len(r.Features)*2)
		for i, f := range r.Features {
			binary.BigEndian.PutUint16(value[i*2:i*2+2], uint16(f))
		}
		return memd.OpHello, nil, r.Key, value, 0, nil

	case *memd.SelectBucketRequest:
		return memd.OpSelectBucket, nil, r.Key, nil, 0, nil

	default:
		panic(&InvariantError{Msg: "encode: unknown request variant"})
	}
}

func (e *Encoder) shapeSubdocSingle(r *memd.SubdocRequest) (memd.Opcode, []byte, []byte, []byte, uint64, error) {
	isMutation := memd.IsMutationOpcode(r.Op)
	extrasLen := 3
	if isMutation && r.Expiry != 0 {
		extrasLen = 7
	}
	extras := make([]byte, extrasLen)
	binary.BigEndian.PutUint16(extras[0:2], uint16(len(r.Path)))
	extras[2] = subdocFlagsFor(r.MkdirP)
	if extrasLen == 7 {
		binary.BigEndian.PutUint32(extras[3:7], r.Expiry)
	}

	value := make([]byte, len(r.Path)+len(r.Value))
	copy(value, r.Path)
	copy(value[len(r.Path):], r.Value)

	cas := uint64(0)
	if isMutation {
		cas = r.Cas
	}
	return r.Op, extras, r.Key, value, cas, nil
}

// subdocFlagsFor packs MkdirP into bit 0, per invariant 5.
func subdocFlagsFor(mkdirP bool) uint8 {
	if mkdirP {
		return 0x01
	}
	return 0x00
}

// encodeLookupSpecs serializes a multi-lookup command list into the
// value format expected by SUBDOC_MULTI_LOOKUP: a concatenation of
// opcode (u8) ‖ flags (u8) ‖ path-length (u16) ‖ path, one per command.
func encodeLookupSpecs(cmds []memd.SubdocCommand) []byte {
	size := 0
	for _, c := range cmds {
		size += 1 + 1 + 2 + len(c.Path)
	}
	buf := make([]byte, size)
	off := 0
	for _, c := range cmds {
		buf[off] = byte(c.Op)
		buf[off+1] = subdocFlagsFor(c.MkdirP)
		binary.BigEndian.PutUint16(buf[off+2:off+4], uint16(len(c.Path)))
		copy(buf[off+4:], c.Path)
		off += 4 + len(c.Path)
	}
	return buf
}

// encodeMutationSpecs serializes a multi-mutation command list: opcode
// (u8) ‖ flags (u8) ‖ path-length (u16) ‖ value-length (u32) ‖ path ‖
// value, one per command.
func encodeMutationSpecs(cmds []memd.SubdocCommand) []byte {
	size := 0
	for _, c := range cmds {
		size += 1 + 1 + 2 + 4 + len(c.Path) + len(c.Value)
	}
	buf := make([]byte, size)
	off := 0
	for _, c := range cmds {
		buf[off] = byte(c.Op)
		buf[off+1] = subdocFlagsFor(c.MkdirP)
		binary.BigEndian.PutUint16(buf[off+2:off+4], uint16(len(c.Path)))
		binary.BigEndian.PutUint32(buf[off+4:off+8], uint32(len(c.Value)))
		copy(buf[off+8:], c.Path)
		copy(buf[off+8+len(c.Path):], c.Value)
		off += 8 + len(c.Path) + len(c.Value)
	}
	return buf
}

// assembleFrame writes the 24-byte header followed by extras, key, and
// value, per §4.1's header-assembly rule.
func assembleFrame(op memd.Opcode, meta memd.RequestMeta, extras, key, value []byte, cas uint64) []byte {
	bodyLen := len(extras) + len(key) + len(value)
	frame := make([]byte, memd.HeaderLen+bodyLen)

	reserved := uint16(0)
	if meta.Partition >= 0 {
		reserved = uint16(meta.Partition)
	}

	memd.EncodeHeader(frame, memd.Header{
		Magic:        memd.MagicReq,
		Opcode:       op,
		KeyLen:       uint16(len(key)),
		ExtrasLen:    uint8(len(extras)),
		DataType:     0,
		StatusOrVB:   reserved,
		TotalBodyLen: uint32(bodyLen),
		Opaque:       meta.Opaque,
		CAS:          cas,
	})

	off := memd.HeaderLen
	off += copy(frame[off:], extras)
	off += copy(frame[off:], key)
	copy(frame[off:], value)

	return frame
}
