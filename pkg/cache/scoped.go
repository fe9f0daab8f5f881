package cache

// ScopedKeyer wraps a Keyer with a prefix so separate deployments can share
// one backend without key collisions. The API server scopes its keys under
// "api:" so server-built artifacts never shadow locally built ones when both
// point at the same Redis instance.
//
// Example usage:
//
//	keyer := cache.NewScopedKeyer(cache.NewDefaultKeyer(), "api:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// ArtifactKey generates a prefixed key for package archive caching.
func (k *ScopedKeyer) ArtifactKey(datasetHash string, opts ArtifactKeyOpts) string {
	return k.prefix + k.inner.ArtifactKey(datasetHash, opts)
}

// ReportKey generates a prefixed key for error report caching.
func (k *ScopedKeyer) ReportKey(datasetHash string, opts ArtifactKeyOpts) string {
	return k.prefix + k.inner.ReportKey(datasetHash, opts)
}

// PreviewKey generates a prefixed key for preview caching.
func (k *ScopedKeyer) PreviewKey(datasetHash string, opts PreviewKeyOpts) string {
	return k.prefix + k.inner.PreviewKey(datasetHash, opts)
}
