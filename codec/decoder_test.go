package codec

import (
	"encoding/binary"
	"testing"

	"github.com/kvtap/kvtap/memd"
)

func TestObserveDecode(t *testing.T) {
	c := New(Config{})
	req := &memd.ObserveRequest{RequestMeta: memd.RequestMeta{Opaque: 1, Partition: -1, Key: []byte("k")}, VbID: 1}
	if _, err := c.Encode(req); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	body := make([]byte, 2+2+3+1+8)
	binary.BigEndian.PutUint16(body[2:4], 3)
	copy(body[4:7], "doc")
	body[7] = byte(memd.KeyStatePersisted)
	binary.BigEndian.PutUint64(body[8:16], 0x99)

	resp := buildResponse(t, memd.OpObserve, memd.StatusSuccess, 1, 0, nil, nil, body)
	got, err := c.DecodeFrame(resp)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	obs := got.(memd.ObserveResponse)
	if obs.KeyState != memd.KeyStatePersisted || obs.Cas != 0x99 {
		t.Fatalf("unexpected observe response: %+v", obs)
	}
}

func TestObserveSeqNoFailoverFormat(t *testing.T) {
	c := New(Config{})
	req := &memd.ObserveSeqNoRequest{RequestMeta: memd.RequestMeta{Opaque: 1, Partition: -1}, VbUUID: 5}
	if _, err := c.Encode(req); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	body := make([]byte, 43)
	body[0] = 1
	binary.BigEndian.PutUint16(body[1:3], 7)
	binary.BigEndian.PutUint64(body[3:11], 0x11)
	binary.BigEndian.PutUint64(body[11:19], 100)
	binary.BigEndian.PutUint64(body[19:27], 200)
	binary.BigEndian.PutUint64(body[27:35], 0x22)
	binary.BigEndian.PutUint64(body[35:43], 150)

	resp := buildResponse(t, memd.OpObserveSeqNo, memd.StatusSuccess, 1, 0, nil, nil, body)
	got, err := c.DecodeFrame(resp)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	seq := got.(memd.ObserveSeqNoResponse)
	if !seq.DidFailover || seq.VbID != 7 || seq.OldVbUUID != 0x22 || seq.LastSeqNo != 150 {
		t.Fatalf("unexpected observe-seqno response: %+v", seq)
	}
}

func TestObserveSeqNoUnknownFormatIsFatal(t *testing.T) {
	c := New(Config{})
	req := &memd.ObserveSeqNoRequest{RequestMeta: memd.RequestMeta{Opaque: 1, Partition: -1}}
	if _, err := c.Encode(req); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	resp := buildResponse(t, memd.OpObserveSeqNo, memd.StatusSuccess, 1, 0, nil, nil, []byte{2})
	_, err := c.DecodeFrame(resp)
	if err == nil {
		t.Fatal("expected protocol error for unknown format byte")
	}
}

func TestGetAllMutationTokensDecode(t *testing.T) {
	c := New(Config{})
	req := &memd.GetAllMutationTokensRequest{RequestMeta: memd.RequestMeta{Opaque: 1, Partition: -1}, Filter: memd.VbucketStateAny}
	if _, err := c.Encode(req); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	body := make([]byte, 20)
	binary.BigEndian.PutUint16(body[0:2], 1)
	binary.BigEndian.PutUint64(body[2:10], 111)
	binary.BigEndian.PutUint16(body[10:12], 2)
	binary.BigEndian.PutUint64(body[12:20], 222)

	resp := buildResponse(t, memd.OpGetAllMutationTok, memd.StatusSuccess, 1, 0, nil, nil, body)
	got, err := c.DecodeFrame(resp)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	tokens := got.(memd.GetAllMutationTokensResponse)
	if len(tokens.Records) != 2 || tokens.Records[0].VbID != 1 || tokens.Records[0].SeqNo != 111 || tokens.Records[1].VbID != 2 {
		t.Fatalf("unexpected tokens: %+v", tokens.Records)
	}
}

func TestKeepAliveRoundTrip(t *testing.T) {
	c := New(Config{})
	ka := c.KeepAliveSource(0)
	req := ka.Generate()
	if _, err := c.Encode(req); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	resp := buildResponse(t, memd.OpNoop, memd.StatusSuccess, req.Opaque, 0, nil, nil, nil)
	got, err := c.DecodeFrame(resp)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if _, ok := got.(memd.KeepAliveResponse); !ok {
		t.Fatalf("got %T, want memd.KeepAliveResponse", got)
	}
}

func TestHelloNegotiation(t *testing.T) {
	c := New(Config{})
	req := &memd.HelloRequest{
		RequestMeta: memd.RequestMeta{Opaque: 1, Partition: -1},
		Features:    []memd.HelloFeature{memd.FeatureSeqNo, memd.FeatureXerror},
	}
	if _, err := c.Encode(req); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	body := make([]byte, 2)
	binary.BigEndian.PutUint16(body, uint16(memd.FeatureSeqNo))
	resp := buildResponse(t, memd.OpHello, memd.StatusSuccess, 1, 0, nil, nil, body)
	got, err := c.DecodeFrame(resp)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	hello := got.(memd.HelloResponse)
	if !hello.Accepted.Has(memd.FeatureSeqNo) || hello.Accepted.Has(memd.FeatureXerror) {
		t.Fatalf("unexpected accepted features: %+v", hello.Accepted)
	}
}

func TestBucketEchoedOntoResponse(t *testing.T) {
	c := New(Config{})
	req := &memd.GetRequest{
		RequestMeta: memd.RequestMeta{Opaque: 1, Partition: -1, Key: []byte("k"), Bucket: "widgets"},
		Op:          memd.OpGet,
	}
	if _, err := c.Encode(req); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	resp := buildResponse(t, memd.OpGet, memd.StatusSuccess, 1, 0, u32be(0), nil, []byte("v"))
	got, err := c.DecodeFrame(resp)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	get := got.(memd.GetResponse)
	if get.Bucket != "widgets" {
		t.Fatalf("got bucket %q, want %q", get.Bucket, "widgets")
	}
}

func TestGetBucketConfigAnnotatesHostname(t *testing.T) {
	c := New(Config{RemoteHost: "10.0.0.1:11210"})
	req := &memd.GetRequest{
		RequestMeta: memd.RequestMeta{Opaque: 1, Partition: -1},
		Op:          memd.OpGetBucketConfig,
	}
	if _, err := c.Encode(req); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	resp := buildResponse(t, memd.OpGetBucketConfig, memd.StatusSuccess, 1, 0, nil, nil, []byte(`{"name":"widgets"}`))
	got, err := c.DecodeFrame(resp)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	get := got.(memd.GetResponse)
	if get.Hostname != "10.0.0.1:11210" {
		t.Fatalf("got hostname %q, want %q", get.Hostname, "10.0.0.1:11210")
	}
}

func TestGetNonBucketConfigHasNoHostname(t *testing.T) {
	c := New(Config{RemoteHost: "10.0.0.1:11210"})
	req := &memd.GetRequest{RequestMeta: memd.RequestMeta{Opaque: 1, Partition: -1, Key: []byte("k")}, Op: memd.OpGet}
	if _, err := c.Encode(req); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	resp := buildResponse(t, memd.OpGet, memd.StatusSuccess, 1, 0, u32be(0), nil, []byte("v"))
	got, err := c.DecodeFrame(resp)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	get := got.(memd.GetResponse)
	if get.Hostname != "" {
		t.Fatalf("plain GET got unexpected hostname %q", get.Hostname)
	}
}

func TestSubdocMultiMutationSuccessDeletedExtractsToken(t *testing.T) {
	c := New(Config{MutationTokensEnabled: true})
	c.OnFeaturesNegotiated(memd.NewFeatureSet([]memd.HelloFeature{memd.FeatureSeqNo}))
	req := &memd.SubdocMultiMutationRequest{
		RequestMeta: memd.RequestMeta{Opaque: 1, Partition: -1, Key: []byte("k")},
		Commands:    []memd.SubdocCommand{{Op: memd.OpSubdocDelete, Path: []byte("a")}},
	}
	if _, err := c.Encode(req); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	extras := make([]byte, 16)
	binary.BigEndian.PutUint64(extras[8:16], 0x42)
	resp := buildResponse(t, memd.OpSubdocMultiMutation, memd.StatusSubdocSuccessDeleted, 1, 0, extras, nil, nil)
	got, err := c.DecodeFrame(resp)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	mut := got.(memd.SubdocMultiMutationResponse)
	if !mut.HasToken || mut.Token.SeqNo != 0x42 {
		t.Fatalf("expected mutation token on SUCCESS_DELETED, got %+v", mut)
	}
}

func TestSelectBucketRoundTrip(t *testing.T) {
	c := New(Config{})
	req := &memd.SelectBucketRequest{RequestMeta: memd.RequestMeta{Opaque: 1, Partition: -1, Key: []byte("widgets")}}
	if _, err := c.Encode(req); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	resp := buildResponse(t, memd.OpSelectBucket, memd.StatusSuccess, 1, 0, nil, nil, nil)
	got, err := c.DecodeFrame(resp)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	sel := got.(memd.SelectBucketResponse)
	if sel.Bucket != "widgets" || !sel.Status.IsSuccess() {
		t.Fatalf("unexpected select-bucket response: %+v", sel)
	}
}

func TestRetryStatusKeepsPayloadRetained(t *testing.T) {
	c := New(Config{})
	payload := memd.NewBuffer([]byte("v"))
	req := &memd.StoreRequest{
		RequestMeta: memd.RequestMeta{Opaque: 1, Partition: -1, Key: []byte("k")},
		Op:          memd.OpUpsert,
		Payload:     payload,
	}
	if _, err := c.Encode(req); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if payload.RefCount() != 2 {
		t.Fatalf("refcount = %d, want 2", payload.RefCount())
	}

	resp := buildResponse(t, memd.OpUpsert, memd.StatusNotMyVBucket, 1, 0, nil, nil, nil)
	if _, err := c.DecodeFrame(resp); err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if payload.RefCount() != 2 {
		t.Fatalf("RETRY-classified response should leave payload retained: refcount = %d, want 2", payload.RefCount())
	}
}
