// Package cache provides pluggable byte caches for pipeline results.
//
// Three backends are available:
//
//   - FileCache: directory-backed, used by the CLI (~/.cache/cartwright/)
//   - RedisCache: shared cache for the API server
//   - NullCache: caching disabled
//
// Keys are produced by a Keyer so every entry point derives them the same
// way. Artifact keys hash the raw dataset bytes together with every build
// option that affects output bytes; because builds are deterministic, a key
// hit can serve the cached archive without rebuilding.
package cache

import (
	"context"
	"time"
)

// Cache TTLs per entry class. Artifacts are rebuildable from the dataset at
// any time, so expiry only bounds disk and memory usage.
const (
	// TTLArtifact is how long built package archives are kept.
	TTLArtifact = 7 * 24 * time.Hour

	// TTLPreview is how long rendered organization previews are kept.
	TTLPreview = 24 * time.Hour
)

// Cache is a byte cache with TTL-based expiry.
type Cache interface {
	// Get retrieves the value for key. The second return reports whether
	// the key was present and unexpired.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of 0 means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// ArtifactKeyOpts are the build options folded into artifact cache keys.
// Anything that changes archive bytes must appear here, otherwise two
// different builds collide on one key.
type ArtifactKeyOpts struct {
	Title          string `json:"title"`
	BaseURL        string `json:"base_url,omitempty"`
	DefaultSection string `json:"default_section,omitempty"`
	Format         string `json:"format,omitempty"`
	SchemaHash     string `json:"schema_hash,omitempty"`
	AssetsHash     string `json:"assets_hash,omitempty"`
}

// PreviewKeyOpts are the options folded into preview cache keys. The
// schema hash is included because rejected records never appear in the
// rendered tree.
type PreviewKeyOpts struct {
	Format         string `json:"format"`
	Title          string `json:"title"`
	DefaultSection string `json:"default_section,omitempty"`
	SchemaHash     string `json:"schema_hash,omitempty"`
}

// Keyer generates cache keys for the cacheable pipeline outputs.
type Keyer interface {
	// ArtifactKey keys a built package archive by dataset hash and build
	// options.
	ArtifactKey(datasetHash string, opts ArtifactKeyOpts) string

	// ReportKey keys the error report of a build. It takes the same inputs
	// as ArtifactKey since the report is determined by the same build.
	ReportKey(datasetHash string, opts ArtifactKeyOpts) string

	// PreviewKey keys a rendered organization preview by dataset hash and
	// preview options.
	PreviewKey(datasetHash string, opts PreviewKeyOpts) string
}

// DefaultKeyer generates hash-based keys with class prefixes.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard keyer.
func NewDefaultKeyer() Keyer {
	return &DefaultKeyer{}
}

// ArtifactKey generates a key for a built package archive.
func (k *DefaultKeyer) ArtifactKey(datasetHash string, opts ArtifactKeyOpts) string {
	return hashKey("artifact", datasetHash, opts)
}

// ReportKey generates a key for a build's error report.
func (k *DefaultKeyer) ReportKey(datasetHash string, opts ArtifactKeyOpts) string {
	return hashKey("report", datasetHash, opts)
}

// PreviewKey generates a key for a rendered organization preview.
func (k *DefaultKeyer) PreviewKey(datasetHash string, opts PreviewKeyOpts) string {
	return hashKey("preview", datasetHash, opts)
}
