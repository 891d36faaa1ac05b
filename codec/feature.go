package codec

import "github.com/kvtap/kvtap/memd"

// FeatureState is the feature-flag listener of §4.5. It is write-once-
// per-event, read-many: OnFeaturesNegotiated is called exactly once per
// HELLO exchange, and every mutation-response decode afterwards reads
// SeqNoOnMutation. Per §4.5 and §9, no locking is needed because the
// codec runs single-threaded per connection; a multi-threaded embedder
// must add its own release/acquire boundary at the event-delivery point.
type FeatureState struct {
	mutationTokensEnabled bool
	seqNoOnMutation       bool
}

// NewFeatureState constructs listener state for a connection.
// mutationTokensEnabled reflects the application environment's own
// configuration switch, independent of what the server negotiates.
func NewFeatureState(mutationTokensEnabled bool) *FeatureState {
	return &FeatureState{mutationTokensEnabled: mutationTokensEnabled}
}

// OnFeaturesNegotiated records the server's accepted feature set. Per
// §4.5, SeqNoOnMutation becomes true only when both the application has
// enabled mutation tokens and the server advertised MUTATION_SEQNO.
func (fs *FeatureState) OnFeaturesNegotiated(accepted memd.FeatureSet) {
	fs.seqNoOnMutation = fs.mutationTokensEnabled && accepted.Has(memd.FeatureSeqNo)
}

// SeqNoOnMutation reports whether mutation responses should be scanned
// for a mutation-token extras block.
func (fs *FeatureState) SeqNoOnMutation() bool {
	return fs.seqNoOnMutation
}
