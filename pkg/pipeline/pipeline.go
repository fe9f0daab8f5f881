// Package pipeline provides the core package-build pipeline for Cartwright.
//
// This package implements the complete load → validate → transform → build →
// package pipeline that can be used by CLI and API components. By
// centralizing this logic, we ensure consistent behavior across all entry
// points and avoid code duplication.
//
// # Architecture
//
// The pipeline consists of three stages:
//
//  1. Load: Decode the dataset into records (JSON, YAML, CSV, Rise und.js)
//  2. Records: Validate each record against the schema and transform it
//     into a content unit, over a bounded worker pool
//  3. Package: Build the manifest tree, serialize it, and zip everything
//     into a .imscc archive
//
// Per-record failures never abort a run: the offending record is skipped
// and reported, the rest of the dataset proceeds. Structural and packaging
// failures abort the run with no artifact.
//
// # Determinism
//
// A run is a pure function of the dataset bytes and the options. Identifier
// allocation, sibling order, XML emission, and archive entry order are all
// fixed by input order, and archive timestamps are pinned, so two runs over
// identical input produce byte-identical artifacts. This is what makes
// artifact caching safe: a cache hit serves exactly the bytes a rebuild
// would produce.
//
// # Usage
//
// Create a Runner and execute the pipeline:
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	opts := pipeline.Options{
//	    DatasetPath: "course.json",
//	    Title:       "Intro to Go",
//	}
//	result, err := runner.Execute(ctx, opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = packaging.Save(result.Artifact, "course.imscc")
package pipeline

import (
	"io"
	"time"

	"github.com/charmbracelet/log"

	"cartwright/pkg/cache"
	"cartwright/pkg/errors"
	"cartwright/pkg/packaging"
)

// Default values shared by CLI and API.
const (
	// DefaultWorkers is the number of goroutines validating and
	// transforming records. Output does not depend on this value; it only
	// bounds per-record parallelism.
	DefaultWorkers = 4

	// DefaultTitle is the course title used when neither the options nor
	// the dataset supply one.
	DefaultTitle = "Untitled Course"
)

// Options contains all configuration for the build pipeline.
// This struct supports JSON serialization for API requests; byte fields
// are carried out of band.
type Options struct {
	// Input options. Exactly one of DatasetPath or Dataset must be set.
	// DatasetPath may be a local file or an http(s) URL.
	DatasetPath string `json:"dataset_path,omitempty"`
	Dataset     []byte `json:"-"`
	DatasetName string `json:"dataset_name,omitempty"` // filename for format detection when Dataset is set
	Format      string `json:"format,omitempty"`       // explicit loader override ("json", "yaml", "csv", "rise")

	// Validation options
	SchemaPath string `json:"schema_path,omitempty"` // custom JSON Schema file, empty = built-in
	Schema     []byte `json:"-"`                     // custom JSON Schema bytes (API uploads)

	// Build options
	Title          string            `json:"title,omitempty"`           // course title, falls back to the dataset's
	BaseURL        string            `json:"base_url,omitempty"`        // hosted-content prefix for link records
	DefaultSection string            `json:"default_section,omitempty"` // grouping for records without a section hint
	Assets         map[string][]byte `json:"-"`                         // named blobs records may reference

	// Runtime options
	Workers int  `json:"workers,omitempty"` // per-record parallelism, default DefaultWorkers
	Refresh bool `json:"refresh,omitempty"` // bypass the artifact cache

	Logger *log.Logger `json:"-"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool `json:"-"`
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// Artifact is the built .imscc archive.
	Artifact *packaging.Artifact

	// DatasetHash is the content hash of the dataset bytes.
	DatasetHash string

	// Report lists every record that was rejected and why.
	Report Report

	// Stats contains timing and size information.
	Stats Stats

	// CacheInfo tracks whether the artifact came from cache.
	CacheInfo CacheInfo
}

// Stats contains pipeline execution statistics.
type Stats struct {
	Records     int // records in the dataset
	Completed   int // records packaged into the artifact
	Skipped     int // records rejected by validation or transform
	Resources   int // resources written, including shared assets
	LoadTime    time.Duration
	RecordsTime time.Duration
	PackageTime time.Duration
}

// CacheInfo tracks cache hits for the pipeline.
type CacheInfo struct {
	ArtifactHit bool // whether the archive and report came from cache
}

// ValidateAndSetDefaults checks required fields and applies defaults.
// This method is idempotent - calling it multiple times has the same
// effect as calling it once.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}

	if o.DatasetPath == "" && o.Dataset == nil {
		return errors.New(errors.ErrCodeInvalidInput, "dataset path or dataset bytes are required")
	}
	if o.DatasetPath != "" && o.Dataset != nil {
		return errors.New(errors.ErrCodeInvalidInput, "dataset path and dataset bytes are mutually exclusive")
	}
	if o.SchemaPath != "" && o.Schema != nil {
		return errors.New(errors.ErrCodeInvalidInput, "schema path and schema bytes are mutually exclusive")
	}
	if o.BaseURL != "" {
		if err := errors.ValidateBaseURL(o.BaseURL); err != nil {
			return err
		}
	}
	if o.Title != "" {
		if err := errors.ValidateTitle(o.Title); err != nil {
			return err
		}
	}

	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}

	o.validated = true
	return nil
}

// ArtifactKeyOpts returns the cache key options for this build. Every
// option that affects archive bytes is folded in; the dataset bytes are
// hashed separately by the runner.
func (o *Options) ArtifactKeyOpts(schemaHash, assetsHash string) cache.ArtifactKeyOpts {
	return cache.ArtifactKeyOpts{
		Title:          o.Title,
		BaseURL:        o.BaseURL,
		DefaultSection: o.DefaultSection,
		Format:         o.Format,
		SchemaHash:     schemaHash,
		AssetsHash:     assetsHash,
	}
}
