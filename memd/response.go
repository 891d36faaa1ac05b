package memd

// GetResponse answers GetRequest (GET, GET_REPLICA, GET_BUCKET_CONFIG,
// GET_RANDOM) and ExpiryRequest (GET_AND_LOCK, GAT).
type GetResponse struct {
	Status Status
	Cas    uint64
	Flags  uint32
	Value  *Buffer
	// Key is only populated for GET_RANDOM, where the server chooses it.
	Key []byte
	// Bucket echoes the request's bucket scope.
	Bucket string
	// Hostname is only populated for GET_BUCKET_CONFIG: the remote address
	// of the server the configuration document was fetched from, since the
	// document itself describes a cluster the client must resolve against.
	Hostname string
}

// MutationResponse answers StoreRequest, RemoveRequest, and AdjoinRequest.
type MutationResponse struct {
	Status   Status
	Cas      uint64
	Bucket   string
	Token    MutationToken
	HasToken bool
}

// CounterResponse answers CounterRequest.
type CounterResponse struct {
	Status   Status
	Cas      uint64
	Value    uint64
	Bucket   string
	Token    MutationToken
	HasToken bool
}

// UnlockResponse answers UnlockRequest.
type UnlockResponse struct {
	Status Status
	Bucket string
}

// TouchResponse answers a TOUCH ExpiryRequest.
type TouchResponse struct {
	Status Status
	Cas    uint64
	Bucket string
}

// SubdocSingleResponse answers SubdocRequest.
type SubdocSingleResponse struct {
	Status   Status
	Cas      uint64
	Value    *Buffer
	Bucket   string
	Token    MutationToken
	HasToken bool
}

// SubdocMultiLookupResponse answers SubdocMultiLookupRequest.
type SubdocMultiLookupResponse struct {
	Status  Status
	Cas     uint64
	Bucket  string
	Results []SubdocResult
}

// SubdocMultiMutationResponse answers SubdocMultiMutationRequest.
type SubdocMultiMutationResponse struct {
	Status Status
	Cas    uint64
	Bucket string
	// Results is populated on SUCCESS (and SUBDOC_SUCCESS_DELETED), one
	// entry per command, in order.
	Results []SubdocResult
	// FirstErrorIndex/FirstErrorStatus are populated on
	// SUBDOC_MULTI_PATH_FAILURE instead of Results.
	FirstErrorIndex  uint8
	FirstErrorStatus Status
	Token            MutationToken
	HasToken         bool
}

// StatEntry is one key/value pair observed during a STAT exchange.
type StatEntry struct {
	Key   string
	Value string
}

// StatResponse is the accumulated result of a STAT exchange, finalized
// once the terminating empty-key response arrives (invariant 6).
type StatResponse struct {
	Bucket  string
	Entries []StatEntry
}

// MutationTokenRecord is one partition's entry in a
// GetAllMutationTokensResponse.
type MutationTokenRecord struct {
	VbID  uint16
	SeqNo SeqNo
}

// GetAllMutationTokensResponse answers GetAllMutationTokensRequest. Per
// §4.3, each 10-byte record has no vbucket-UUID field on the wire, and
// MutationTokenRecord carries none either.
type GetAllMutationTokensResponse struct {
	Status  Status
	Bucket  string
	Records []MutationTokenRecord
}

// ObserveResponse answers ObserveRequest.
type ObserveResponse struct {
	Status   Status
	KeyState KeyState
	Cas      uint64
	Bucket   string
}

// ObserveSeqNoResponse answers ObserveSeqNoRequest.
type ObserveSeqNoResponse struct {
	Status       Status
	DidFailover  bool
	VbID         uint16
	VbUUID       VbUuid
	PersistSeqNo SeqNo
	CurrentSeqNo SeqNo
	OldVbUUID    VbUuid
	LastSeqNo    SeqNo
	Bucket       string
}

// KeepAliveResponse answers NoopRequest.
type KeepAliveResponse struct {
	Status Status
}

// HelloResponse answers HelloRequest.
type HelloResponse struct {
	Status   Status
	Accepted FeatureSet
}

// SelectBucketResponse answers SelectBucketRequest.
type SelectBucketResponse struct {
	Status Status
	Bucket string
}
