// Package pkg provides the core libraries for Cartwright package assembly.
//
// # Overview
//
// Cartwright turns flat course datasets into IMS Common Cartridge (IMSCC)
// packages that learning management systems can import. The pkg directory
// is organized into four main areas:
//
//  1. [dataset] / [schema] - Inputs (loading records, validating them)
//  2. [content] / [cartridge] - Domain logic (HTML units, manifest model)
//  3. [packaging] / [cache] - Outputs (deterministic archives, reuse)
//  4. [pipeline] - Orchestration (load → validate → transform → package)
//
// # Architecture
//
// The typical data flow through Cartwright:
//
//	JSON/YAML/CSV/Rise dataset
//	         ↓
//	    [dataset] package (load records)
//	         ↓
//	    [schema] package (validate against JSON Schema)
//	         ↓
//	    [content] package (records → HTML content units)
//	         ↓
//	    [cartridge] package (manifest model + XML serialization)
//	         ↓
//	    [packaging] package (deterministic .imscc zip)
//
// # Quick Start
//
// Build a package from a dataset file:
//
//	import (
//	    "context"
//	    "cartwright/pkg/cache"
//	    "cartwright/pkg/packaging"
//	    "cartwright/pkg/pipeline"
//	)
//
//	runner := pipeline.NewRunner(cache.NewNullCache(), nil, logger)
//	defer runner.Close()
//
//	result, err := runner.Execute(context.Background(), pipeline.Options{
//	    DatasetPath: "course.json",
//	    Title:       "Intro to Go",
//	})
//	if err != nil {
//	    return err
//	}
//	if err := packaging.Save(result.Artifact, result.Artifact.Name); err != nil {
//	    return err
//	}
//
// Identical inputs produce byte-identical archives: resource identifiers
// come from per-kind counters, the manifest field order is fixed, and zip
// entries carry pinned timestamps.
//
// # Main Packages
//
// ## Inputs
//
// [dataset] - Record loading for JSON, YAML, CSV, and Rise HTML exports.
// Each format has a Loader; Detect picks one from the filename and content.
//
// [schema] - Per-record validation against a JSON Schema (2020-12 dialect),
// with a built-in default schema and structured violation extraction.
//
// ## Domain Logic
//
// [content] - Transforms records into content units: escaped HTML pages,
// hosted iframe pages for link records, plain-text passthrough.
//
// [cartridge] - The manifest model (organizations, items, resources),
// deterministic identifier allocation, structural validation, and XML
// serialization with a fixed namespace preamble.
//
// ## Outputs
//
// [packaging] - Deterministic zip assembly: imsmanifest.xml first, pinned
// entry timestamps, collision checks, atomic save.
//
// [cache] - Artifact/report/preview caching with file, Redis, and null
// backends keyed on dataset hash plus build options.
//
// ## Orchestration
//
// [pipeline] - The build pipeline used by CLI and API alike: stage
// functions, a bounded per-record worker pool, rejection reports, and a
// caching Runner.
//
// [preview] - Organization tree rendering (text tree, DOT, SVG) without
// building an archive.
//
// ## Supporting
//
// [errors] - Structured error codes separating per-record rejections
// (SCHEMA_VIOLATION, TRANSFORM_ERROR) from run-fatal failures
// (STRUCTURAL_ERROR, PACKAGING_ERROR), plus input validators.
//
// [observability] - Swappable pipeline/cache/HTTP hooks with no-op
// defaults for embedders that want metrics.
//
// [httputil] - Remote dataset fetching with retry/backoff.
//
// [buildinfo] - Version metadata injected at build time.
//
// # Common Workflows
//
// Validate without building:
//
//	result, err := runner.Validate(ctx, opts)
//	for _, rej := range result.Report.Rejections {
//	    fmt.Printf("record %d: %s\n", rej.Record, rej.Message)
//	}
//
// Preview the organization tree:
//
//	data, err := runner.Preview(ctx, opts, preview.FormatDOT)
//
// Load a dataset directly:
//
//	ds, err := dataset.Load("course.csv")
//
// # Testing
//
// Run tests:
//
//	go test ./pkg/...          # All tests
//	go test ./pkg/cartridge    # Specific package
//
// [dataset]: https://pkg.go.dev/cartwright/pkg/dataset
// [schema]: https://pkg.go.dev/cartwright/pkg/schema
// [content]: https://pkg.go.dev/cartwright/pkg/content
// [cartridge]: https://pkg.go.dev/cartwright/pkg/cartridge
// [packaging]: https://pkg.go.dev/cartwright/pkg/packaging
// [cache]: https://pkg.go.dev/cartwright/pkg/cache
// [pipeline]: https://pkg.go.dev/cartwright/pkg/pipeline
// [preview]: https://pkg.go.dev/cartwright/pkg/preview
// [errors]: https://pkg.go.dev/cartwright/pkg/errors
// [observability]: https://pkg.go.dev/cartwright/pkg/observability
// [httputil]: https://pkg.go.dev/cartwright/pkg/httputil
// [buildinfo]: https://pkg.go.dev/cartwright/pkg/buildinfo
package pkg
