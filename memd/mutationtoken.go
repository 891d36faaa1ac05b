package memd

import "encoding/binary"

// VbUuid identifies a partition's current history branch; it changes on
// failover so that a stale seqno from before a failover is never mistaken
// for a newer one on the new branch.
type VbUuid uint64

// SeqNo is a partition-local, monotonically increasing mutation sequence
// number.
type SeqNo uint64

// MutationToken locates a single mutation within a partition's history.
// It is only meaningful together with the bucket and partition it was
// produced against.
type MutationToken struct {
	VbID   uint16
	VbUUID VbUuid
	SeqNo  SeqNo
	Bucket string
}

// mutationTokenExtrasLen is the fixed size of a mutation-token extras
// block: an 8-byte partition uuid followed by an 8-byte sequence number.
const mutationTokenExtrasLen = 16

// ExtractMutationToken pulls a MutationToken out of a mutation response's
// extras field, per §4.6: a token is only present when MUTATION_SEQNO has
// been negotiated, the mutation succeeded, and extras length is at least
// 16 bytes. This function checks only the extras length; callers check
// the negotiated feature and the response status. vbID and bucket are threaded through from the originating
// request since the response extras do not repeat them.
//
// ok is false when extras is shorter than the 16-byte mutation-token
// layout, which callers should treat as "no token available", not as a
// protocol error — plenty of valid responses simply carry no extras.
func ExtractMutationToken(vbID uint16, bucket string, extras []byte) (MutationToken, bool) {
	if len(extras) < mutationTokenExtrasLen {
		return MutationToken{}, false
	}
	return MutationToken{
		VbID:   vbID,
		VbUUID: VbUuid(binary.BigEndian.Uint64(extras[0:8])),
		SeqNo:  SeqNo(binary.BigEndian.Uint64(extras[8:16])),
		Bucket: bucket,
	}, true
}
