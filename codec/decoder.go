package codec

import (
	"encoding/binary"

	"github.com/kvtap/kvtap/memd"
)

// Decoder is the response decoder of §4.3. It classifies the response
// by the variant of the in-flight head request (response opcode is never
// consulted — the opaque already correlated them) and applies the
// variant-specific interpretation rules.
type Decoder struct {
	features *FeatureState
	hostname string
	stat     *statCollector
}

// NewDecoder constructs a Decoder bound to the given feature-flag state.
// hostname is the remote address of the connection this Decoder serves;
// it is only consulted to annotate GET_BUCKET_CONFIG responses (§4.3).
func NewDecoder(features *FeatureState, hostname string) *Decoder {
	return &Decoder{features: features, hostname: hostname}
}

// Decode interprets frame against head, the request it correlates with.
// It returns the typed response, whether the in-flight entry should now
// be dequeued (false only mid-STAT-stream), and a fatal error if the
// frame violates a protocol invariant.
func (d *Decoder) Decode(head memd.Request, frame ResponseFrame) (any, bool, error) {
	status := frame.Header.Status()
	meta := requestMeta(head)

	// Buffer policy (§4.3): release the request's retained payload before
	// decoding, unless the response is RETRY-classified.
	if buf := retainedPayload(head); buf != nil && !status.IsRetry() {
		buf.Release()
	}

	switch r := head.(type) {
	case *memd.GetRequest:
		resp, err := d.decodeGet(status, frame, meta, r.Op)
		return resp, true, err

	case *memd.ExpiryRequest:
		if r.Op == memd.OpTouch {
			return memd.TouchResponse{Status: status, Cas: frame.Header.CAS, Bucket: meta.Bucket}, true, nil
		}
		resp, err := d.decodeGet(status, frame, meta, r.Op)
		return resp, true, err

	case *memd.StoreRequest:
		resp, err := d.decodeMutation(status, frame, meta)
		return resp, true, err

	case *memd.RemoveRequest:
		resp, err := d.decodeMutation(status, frame, meta)
		return resp, true, err

	case *memd.AdjoinRequest:
		resp, err := d.decodeMutation(status, frame, meta)
		return resp, true, err

	case *memd.CounterRequest:
		resp, err := d.decodeCounter(status, frame, meta)
		return resp, true, err

	case *memd.UnlockRequest:
		return memd.UnlockResponse{Status: status, Bucket: meta.Bucket}, true, nil

	case *memd.ObserveRequest:
		resp, err := decodeObserve(status, frame.Value, meta)
		return resp, true, err

	case *memd.ObserveSeqNoRequest:
		resp, err := decodeObserveSeqNo(status, frame.Value, meta)
		return resp, true, err

	case *memd.GetAllMutationTokensRequest:
		resp, err := decodeGetAllMutationTokens(status, frame.Value, meta)
		return resp, true, err

	case *memd.SubdocRequest:
		resp, err := d.decodeSubdocSingle(status, frame, meta)
		return resp, true, err

	case *memd.SubdocMultiLookupRequest:
		results, err := decodeSubdocMultiLookup(status, r.Commands, frame.Value)
		if err != nil {
			return nil, true, err
		}
		return memd.SubdocMultiLookupResponse{Status: status, Cas: frame.Header.CAS, Bucket: meta.Bucket, Results: results}, true, nil

	case *memd.SubdocMultiMutationRequest:
		results, errIdx, errStatus, err := decodeSubdocMultiMutation(status, r.Commands, frame.Value)
		if err != nil {
			return nil, true, err
		}
		resp := memd.SubdocMultiMutationResponse{
			Status:           status,
			Cas:              frame.Header.CAS,
			Bucket:           meta.Bucket,
			Results:          results,
			FirstErrorIndex:  errIdx,
			FirstErrorStatus: errStatus,
		}
		succeeded := status.IsSuccess() || status == memd.StatusSubdocSuccessDeleted
		if succeeded && d.features.SeqNoOnMutation() {
			if tok, ok := memd.ExtractMutationToken(vbidOf(meta), meta.Bucket, frame.Extras); ok {
				resp.Token, resp.HasToken = tok, true
			}
		}
		return resp, true, nil

	case *memd.StatRequest:
		return d.decodeStat(frame, meta)

	case *memd.NoopRequest:
		return memd.KeepAliveResponse{Status: status}, true, nil

	case *memd.HelloRequest:
		return decodeHello(status, frame.Value), true, nil

	case *memd.SelectBucketRequest:
		return memd.SelectBucketResponse{Status: status, Bucket: string(r.Key)}, true, nil

	default:
		return nil, true, &InvariantError{Msg: "decode: unknown in-flight request variant"}
	}
}

func vbidOf(meta memd.RequestMeta) uint16 {
	if meta.Partition < 0 {
		return 0
	}
	return uint16(meta.Partition)
}

func (d *Decoder) decodeGet(status memd.Status, frame ResponseFrame, meta memd.RequestMeta, op memd.Opcode) (memd.GetResponse, error) {
	resp := memd.GetResponse{Status: status, Cas: frame.Header.CAS, Bucket: meta.Bucket}
	switch len(frame.Extras) {
	case 0:
		resp.Flags = 0
	case 4:
		resp.Flags = binary.BigEndian.Uint32(frame.Extras)
	default:
		return memd.GetResponse{}, protocolErrorf("get decode", "unexpected extras length %d, want 0 or 4", len(frame.Extras))
	}
	if status.IsSuccess() {
		resp.Value = memd.NewBuffer(append([]byte(nil), frame.Value...))
	}
	if op == memd.OpGetRandom {
		resp.Key = append([]byte(nil), frame.Key...)
	}
	if op == memd.OpGetBucketConfig {
		resp.Hostname = d.hostname
	}
	return resp, nil
}

func (d *Decoder) decodeMutation(status memd.Status, frame ResponseFrame, meta memd.RequestMeta) (memd.MutationResponse, error) {
	resp := memd.MutationResponse{Status: status, Cas: frame.Header.CAS, Bucket: meta.Bucket}
	if status.IsSuccess() && d.features.SeqNoOnMutation() {
		if tok, ok := memd.ExtractMutationToken(vbidOf(meta), meta.Bucket, frame.Extras); ok {
			resp.Token, resp.HasToken = tok, true
		}
	}
	return resp, nil
}

func (d *Decoder) decodeCounter(status memd.Status, frame ResponseFrame, meta memd.RequestMeta) (memd.CounterResponse, error) {
	resp := memd.CounterResponse{Status: status, Cas: frame.Header.CAS, Bucket: meta.Bucket}
	if status.IsSuccess() {
		if len(frame.Value) != 8 {
			return memd.CounterResponse{}, protocolErrorf("counter decode", "value length %d, want 8", len(frame.Value))
		}
		resp.Value = binary.BigEndian.Uint64(frame.Value)
		if d.features.SeqNoOnMutation() {
			if tok, ok := memd.ExtractMutationToken(vbidOf(meta), meta.Bucket, frame.Extras); ok {
				resp.Token, resp.HasToken = tok, true
			}
		}
	}
	return resp, nil
}

func (d *Decoder) decodeSubdocSingle(status memd.Status, frame ResponseFrame, meta memd.RequestMeta) (memd.SubdocSingleResponse, error) {
	resp := memd.SubdocSingleResponse{Status: status, Cas: frame.Header.CAS, Bucket: meta.Bucket}
	if status.IsSuccess() || status == memd.StatusSubdocSuccessDeleted {
		if len(frame.Value) > 0 {
			resp.Value = memd.NewBuffer(append([]byte(nil), frame.Value...))
		} else {
			resp.Value = memd.NewBuffer(nil)
		}
		if d.features.SeqNoOnMutation() {
			if tok, ok := memd.ExtractMutationToken(vbidOf(meta), meta.Bucket, frame.Extras); ok {
				resp.Token, resp.HasToken = tok, true
			}
		}
	}
	return resp, nil
}

func (d *Decoder) decodeStat(frame ResponseFrame, meta memd.RequestMeta) (memd.StatResponse, bool, error) {
	if d.stat == nil {
		d.stat = &statCollector{}
	}
	terminated := d.stat.Observe(frame.Key, frame.Value)
	if !terminated {
		return memd.StatResponse{}, false, nil
	}
	resp := d.stat.Response()
	resp.Bucket = meta.Bucket
	d.stat = nil
	return resp, true, nil
}

func decodeGetAllMutationTokens(status memd.Status, body []byte, meta memd.RequestMeta) (memd.GetAllMutationTokensResponse, error) {
	resp := memd.GetAllMutationTokensResponse{Status: status, Bucket: meta.Bucket}
	if !status.IsSuccess() {
		return resp, nil
	}
	if len(body)%10 != 0 {
		return memd.GetAllMutationTokensResponse{}, protocolErrorf("get-all-mutation-tokens decode", "body length %d is not a multiple of 10", len(body))
	}
	records := make([]memd.MutationTokenRecord, 0, len(body)/10)
	for off := 0; off < len(body); off += 10 {
		records = append(records, memd.MutationTokenRecord{
			VbID:  binary.BigEndian.Uint16(body[off : off+2]),
			SeqNo: memd.SeqNo(binary.BigEndian.Uint64(body[off+2 : off+10])),
		})
	}
	resp.Records = records
	return resp, nil
}

func decodeObserve(status memd.Status, body []byte, meta memd.RequestMeta) (memd.ObserveResponse, error) {
	resp := memd.ObserveResponse{Status: status, Bucket: meta.Bucket}
	if !status.IsSuccess() {
		return resp, nil
	}
	if len(body) < 4 {
		return memd.ObserveResponse{}, protocolErrorf("observe decode", "body too short: %d bytes", len(body))
	}
	// body = vbid(u16) ‖ keylen(u16) ‖ key ‖ keystate(u8) ‖ cas(u64), read
	// sequentially rather than by absolute offset (§9).
	off := 2
	keyLen := int(binary.BigEndian.Uint16(body[off : off+2]))
	off += 2
	want := off + keyLen + 1 + 8
	if len(body) != want {
		return memd.ObserveResponse{}, protocolErrorf("observe decode", "body length %d, want %d", len(body), want)
	}
	off += keyLen
	resp.KeyState = memd.KeyState(body[off])
	off++
	resp.Cas = binary.BigEndian.Uint64(body[off : off+8])
	return resp, nil
}

func decodeObserveSeqNo(status memd.Status, body []byte, meta memd.RequestMeta) (memd.ObserveSeqNoResponse, error) {
	resp := memd.ObserveSeqNoResponse{Status: status, Bucket: meta.Bucket}
	if !status.IsSuccess() {
		return resp, nil
	}
	if len(body) < 1 {
		return memd.ObserveSeqNoResponse{}, protocolErrorf("observe-seqno decode", "empty body")
	}
	format := body[0]
	switch format {
	case 0:
		if len(body) < 27 {
			return memd.ObserveSeqNoResponse{}, protocolErrorf("observe-seqno decode", "body too short for format 0: %d bytes", len(body))
		}
		resp.VbID = binary.BigEndian.Uint16(body[1:3])
		resp.VbUUID = memd.VbUuid(binary.BigEndian.Uint64(body[3:11]))
		resp.PersistSeqNo = memd.SeqNo(binary.BigEndian.Uint64(body[11:19]))
		resp.CurrentSeqNo = memd.SeqNo(binary.BigEndian.Uint64(body[19:27]))
		return resp, nil
	case 1:
		if len(body) < 43 {
			return memd.ObserveSeqNoResponse{}, protocolErrorf("observe-seqno decode", "body too short for format 1: %d bytes", len(body))
		}
		resp.DidFailover = true
		resp.VbID = binary.BigEndian.Uint16(body[1:3])
		resp.VbUUID = memd.VbUuid(binary.BigEndian.Uint64(body[3:11]))
		resp.PersistSeqNo = memd.SeqNo(binary.BigEndian.Uint64(body[11:19]))
		resp.CurrentSeqNo = memd.SeqNo(binary.BigEndian.Uint64(body[19:27]))
		resp.OldVbUUID = memd.VbUuid(binary.BigEndian.Uint64(body[27:35]))
		resp.LastSeqNo = memd.SeqNo(binary.BigEndian.Uint64(body[35:43]))
		return resp, nil
	default:
		return memd.ObserveSeqNoResponse{}, protocolErrorf("observe-seqno decode", "unrecognized format byte 0x%02x", format)
	}
}

func decodeHello(status memd.Status, body []byte) memd.HelloResponse {
	n := len(body) / 2
	accepted := make([]memd.HelloFeature, 0, n)
	for i := 0; i < n; i++ {
		accepted = append(accepted, memd.HelloFeature(binary.BigEndian.Uint16(body[i*2:i*2+2])))
	}
	return memd.HelloResponse{Status: status, Accepted: memd.NewFeatureSet(accepted)}
}
