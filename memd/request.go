package memd

// RequestMeta holds the fields common to every request variant: the
// correlation id the response must echo, the target partition (-1 when
// the caller has no specific partition in mind), the document key, a
// CAS token (0 meaning "no CAS check"), and the bucket the key lives in
// (empty when the connection never selected one).
//
// Every concrete request type embeds RequestMeta so callers can read
// req.Opaque, req.Partition, req.Key, req.Cas, and req.Bucket directly
// regardless of which variant they're holding.
type RequestMeta struct {
	Opaque    uint32
	Partition int32
	Key       []byte
	Cas       uint64
	Bucket    string
}

// SetBucket attaches the bucket a request is scoped to, if the caller
// hasn't already set one. The decoder echoes it back onto the response
// and, where one is extracted, the mutation token.
func (m *RequestMeta) SetBucket(bucket string) {
	if m.Bucket == "" {
		m.Bucket = bucket
	}
}

// Request is the sealed set of request variants the encoder understands.
// Only types in this package implement it; a type switch over Request in
// the encoder is expected to be exhaustive, with the default case
// treated as a programmer error per §4.1's "unknown variant" failure mode.
type Request interface {
	requestVariant()
	SetBucket(string)
}

// GetRequest covers the empty-extras get family: GET, GET_REPLICA,
// GET_BUCKET_CONFIG, and GET_RANDOM. Op selects which opcode to encode.
type GetRequest struct {
	RequestMeta
	Op Opcode
}

func (*GetRequest) requestVariant() {}

// ExpiryRequest covers the single-u32-expiry-extras family:
// GET_AND_LOCK (expiry field doubles as lock duration), GAT, and TOUCH.
type ExpiryRequest struct {
	RequestMeta
	Op     Opcode
	Expiry uint32
}

func (*ExpiryRequest) requestVariant() {}

// StoreRequest covers INSERT, UPSERT, and REPLACE. Payload is retained by
// the encoder per §4.1's buffer retention rule.
type StoreRequest struct {
	RequestMeta
	Op      Opcode
	Flags   uint32
	Expiry  uint32
	Payload *Buffer
}

func (*StoreRequest) requestVariant() {}

// RemoveRequest is DELETE.
type RemoveRequest struct {
	RequestMeta
}

func (*RemoveRequest) requestVariant() {}

// CounterRequest covers INCR/DECR. The opcode is derived from the sign of
// Delta: negative encodes as DECR with the absolute value, matching
// §4.1's "opcode is DECR iff delta < 0". Initial of
// 0xFFFFFFFFFFFFFFFF is the server's "fail rather than create" sentinel.
type CounterRequest struct {
	RequestMeta
	Delta   int64
	Initial uint64
	Expiry  uint32
}

func (*CounterRequest) requestVariant() {}

// UnlockRequest is UNLOCK. Cas must be the CAS returned by the lock.
type UnlockRequest struct {
	RequestMeta
}

func (*UnlockRequest) requestVariant() {}

// AdjoinRequest covers APPEND/PREPEND.
type AdjoinRequest struct {
	RequestMeta
	Op      Opcode
	Payload *Buffer
}

func (*AdjoinRequest) requestVariant() {}

// ObserveRequest is OBSERVE. VbID is the body-level partition id (the
// body carries its own partition field independent of the header's
// reserved field, per §4.1).
type ObserveRequest struct {
	RequestMeta
	VbID uint16
}

func (*ObserveRequest) requestVariant() {}

// ObserveSeqNoRequest is OBSERVE_SEQNO.
type ObserveSeqNoRequest struct {
	RequestMeta
	VbUUID VbUuid
}

func (*ObserveSeqNoRequest) requestVariant() {}

// VbucketStateFilter selects which partition states
// GetAllMutationTokensRequest asks about.
type VbucketStateFilter uint32

const (
	VbucketStateAny    VbucketStateFilter = 0
	VbucketStateActive VbucketStateFilter = 1
	VbucketStateReplica VbucketStateFilter = 2
	VbucketStatePending VbucketStateFilter = 3
	VbucketStateDead    VbucketStateFilter = 4
)

// GetAllMutationTokensRequest is GET_ALL_MUTATION_TOKENS.
type GetAllMutationTokensRequest struct {
	RequestMeta
	Filter VbucketStateFilter
}

func (*GetAllMutationTokensRequest) requestVariant() {}

// SubdocRequest is a single-path sub-document command (SUBDOC_GET through
// SUBDOC_COUNTER). Path is mandatory; Value is nil for read-only ops.
type SubdocRequest struct {
	RequestMeta
	Op     Opcode
	Path   []byte
	Value  []byte
	MkdirP bool
	Expiry uint32
}

func (*SubdocRequest) requestVariant() {}

// SubdocMultiLookupRequest is SUBDOC_MULTI_LOOKUP.
type SubdocMultiLookupRequest struct {
	RequestMeta
	Commands []SubdocCommand
}

func (*SubdocMultiLookupRequest) requestVariant() {}

// SubdocMultiMutationRequest is SUBDOC_MULTI_MUTATION.
type SubdocMultiMutationRequest struct {
	RequestMeta
	Commands []SubdocCommand
	Expiry   uint32
}

func (*SubdocMultiMutationRequest) requestVariant() {}

// StatRequest is STAT; Key selects a stat group, or is empty for "all".
type StatRequest struct {
	RequestMeta
}

func (*StatRequest) requestVariant() {}

// NoopRequest is the keep-alive generator's synthetic NOOP, per §4.4: an
// all-zero partition and no payload.
type NoopRequest struct {
	RequestMeta
}

func (*NoopRequest) requestVariant() {}

// SelectBucketRequest is SELECT_BUCKET: switches the connection's active
// bucket context. Key carries the bucket name; there are no extras.
type SelectBucketRequest struct {
	RequestMeta
}

func (*SelectBucketRequest) requestVariant() {}

// HelloRequest negotiates the server feature set. Not part of the core
// opcode table in §4.1, but encoded the same way (see SPEC_FULL.md §4.2).
type HelloRequest struct {
	RequestMeta
	Features []HelloFeature
}

func (*HelloRequest) requestVariant() {}

// HelloFeature is a feature code offered during HELLO negotiation.
type HelloFeature uint16

const (
	FeatureDatatype      HelloFeature = 0x01
	FeatureTLS           HelloFeature = 0x02
	FeatureTCPNoDelay    HelloFeature = 0x03
	FeatureSeqNo         HelloFeature = 0x04
	FeatureTCPDelay      HelloFeature = 0x05
	FeatureXattr         HelloFeature = 0x06
	FeatureXerror        HelloFeature = 0x07
	FeatureSelectBucket  HelloFeature = 0x08
	FeatureCollections   HelloFeature = 0x09
	FeatureSnappy        HelloFeature = 0x0a
	FeatureJSON          HelloFeature = 0x0b
	FeatureDuplex        HelloFeature = 0x0c
	FeatureClusterMapNotif HelloFeature = 0x0d
	FeatureUnorderedExec HelloFeature = 0x0e
	FeatureDurations     HelloFeature = 0x0f
)
