package memd

// FeatureSet is the set of HelloFeature codes the server accepted during
// the HELLO handshake.
type FeatureSet map[HelloFeature]struct{}

// NewFeatureSet builds a FeatureSet from the accepted-feature list
// returned in a HELLO response body.
func NewFeatureSet(accepted []HelloFeature) FeatureSet {
	fs := make(FeatureSet, len(accepted))
	for _, f := range accepted {
		fs[f] = struct{}{}
	}
	return fs
}

// Has reports whether f was negotiated.
func (fs FeatureSet) Has(f HelloFeature) bool {
	_, ok := fs[f]
	return ok
}
