package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"cartwright/pkg/cache"
	"cartwright/pkg/content"
	"cartwright/pkg/dataset"
	"cartwright/pkg/observability"
	"cartwright/pkg/packaging"
	"cartwright/pkg/preview"
	"cartwright/pkg/schema"
)

// Runner encapsulates pipeline execution with caching.
// Both CLI and API use this to avoid duplicating caching logic.
//
// The Runner is stateless except for the cache and logger - it doesn't
// store pipeline results. Multiple goroutines can safely use the same
// Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// Execute runs the complete load → records → package pipeline with
// artifact caching. On a cache hit the archive and the report are served
// from the cache and the record and package stages are skipped; the
// result is byte-identical either way because builds are deterministic.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	result := &Result{}

	// Stage 1: Load
	ds, err := r.load(ctx, &opts, result)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}

	// The schema participates in record processing and in the cache key.
	validator, schemaBytes, err := CompileSchema(opts)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}

	keyOpts := opts.ArtifactKeyOpts(cache.Hash(schemaBytes), hashAssets(opts.Assets))
	artifactKey := r.Keyer.ArtifactKey(result.DatasetHash, keyOpts)
	reportKey := r.Keyer.ReportKey(result.DatasetHash, keyOpts)

	if !opts.Refresh {
		if cached, ok := r.fromCache(ctx, artifactKey, reportKey, opts.Title); ok {
			observability.Cache().OnCacheHit(ctx, "artifact")
			result.Artifact = cached.artifact
			result.Report = cached.report
			result.Stats.Completed = result.Stats.Records - cached.report.Skipped()
			result.Stats.Skipped = cached.report.Skipped()
			result.Stats.Resources = len(cached.artifact.Paths) - 1
			result.CacheInfo.ArtifactHit = true

			opts.Logger.Info("artifact served from cache",
				"dataset", result.DatasetHash[:12],
				"size", len(cached.artifact.Data))
			return result, nil
		}
		observability.Cache().OnCacheMiss(ctx, "artifact")
	}

	// Stage 2: Records
	units, err := r.processRecords(ctx, ds, validator, opts, result)
	if err != nil {
		return nil, fmt.Errorf("records: %w", err)
	}

	// Stage 3: Package
	if err := r.buildArtifact(ctx, units, opts, result); err != nil {
		return nil, fmt.Errorf("package: %w", err)
	}

	_ = r.Cache.Set(ctx, artifactKey, result.Artifact.Data, cache.TTLArtifact)
	if reportData, err := MarshalReport(&result.Report); err == nil {
		_ = r.Cache.Set(ctx, reportKey, reportData, cache.TTLArtifact)
	}
	observability.Cache().OnCacheSet(ctx, "artifact", len(result.Artifact.Data))

	return result, nil
}

// Validate runs the load and record stages without building an archive.
// The result carries the rejection report and stats but no artifact. A
// dataset that merely contains invalid records validates without error;
// the rejections are in the report.
func (r *Runner) Validate(ctx context.Context, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	result := &Result{}

	ds, err := r.load(ctx, &opts, result)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}

	validator, _, err := CompileSchema(opts)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}

	if _, err := r.processRecords(ctx, ds, validator, opts, result); err != nil {
		return nil, fmt.Errorf("records: %w", err)
	}
	return result, nil
}

// PreviewWithCacheInfo renders the organization tree the dataset would
// produce, in the given preview format, and reports whether the rendering
// came from cache. No archive is written.
func (r *Runner) PreviewWithCacheInfo(ctx context.Context, opts Options, format string) ([]byte, bool, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, false, fmt.Errorf("invalid options: %w", err)
	}

	result := &Result{}

	ds, err := r.load(ctx, &opts, result)
	if err != nil {
		return nil, false, fmt.Errorf("load: %w", err)
	}

	validator, schemaBytes, err := CompileSchema(opts)
	if err != nil {
		return nil, false, fmt.Errorf("load: %w", err)
	}

	key := r.Keyer.PreviewKey(result.DatasetHash, cache.PreviewKeyOpts{
		Format:         format,
		Title:          opts.Title,
		DefaultSection: opts.DefaultSection,
		SchemaHash:     cache.Hash(schemaBytes),
	})
	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
			observability.Cache().OnCacheHit(ctx, "preview")
			return data, true, nil
		}
		observability.Cache().OnCacheMiss(ctx, "preview")
	}

	units, err := r.processRecords(ctx, ds, validator, opts, result)
	if err != nil {
		return nil, false, fmt.Errorf("records: %w", err)
	}

	pkg, err := BuildPackage(units, opts)
	if err != nil {
		return nil, false, fmt.Errorf("package: %w", err)
	}

	data, err := preview.Render(ctx, pkg, format)
	if err != nil {
		return nil, false, err
	}

	_ = r.Cache.Set(ctx, key, data, cache.TTLPreview)
	observability.Cache().OnCacheSet(ctx, "preview", len(data))

	return data, false, nil
}

// Preview is a convenience wrapper that calls PreviewWithCacheInfo and
// discards the cache hit info.
func (r *Runner) Preview(ctx context.Context, opts Options, format string) ([]byte, error) {
	data, _, err := r.PreviewWithCacheInfo(ctx, opts, format)
	return data, err
}

// load runs the load stage, fills the load-related result fields, and
// resolves the options that depend on dataset content: the course title
// falls back to the dataset's, and the format records what the loader
// actually decoded so cache keys see it.
func (r *Runner) load(ctx context.Context, opts *Options, result *Result) (*dataset.Dataset, error) {
	hooks := observability.Pipeline()
	hooks.OnLoadStart(ctx, opts.Format)

	start := time.Now()
	ds, raw, err := Load(ctx, *opts)
	result.Stats.LoadTime = time.Since(start)

	format, records := opts.Format, 0
	if ds != nil {
		format, records = ds.Format, len(ds.Records)
	}
	hooks.OnLoadComplete(ctx, format, records, result.Stats.LoadTime, err)
	if err != nil {
		return nil, err
	}

	opts.Title = resolveTitle(opts.Title, ds)
	opts.Format = ds.Format
	result.DatasetHash = cache.Hash(raw)
	result.Stats.Records = len(ds.Records)

	opts.Logger.Info("loaded dataset",
		"format", ds.Format,
		"records", len(ds.Records),
		"duration", result.Stats.LoadTime)

	return ds, nil
}

// processRecords runs the record stage and fills the record-related
// result fields.
func (r *Runner) processRecords(ctx context.Context, ds *dataset.Dataset, v *schema.Validator, opts Options, result *Result) ([]*content.Unit, error) {
	hooks := observability.Pipeline()
	hooks.OnRecordsStart(ctx, len(ds.Records))

	start := time.Now()
	units, report, err := ProcessRecords(ctx, ds, v, opts)
	result.Stats.RecordsTime = time.Since(start)

	hooks.OnRecordsComplete(ctx, len(units), report.Skipped(), result.Stats.RecordsTime, err)
	if err != nil {
		return nil, err
	}

	result.Report = report
	result.Stats.Completed = len(units)
	result.Stats.Skipped = report.Skipped()

	opts.Logger.Info("processed records",
		"completed", len(units),
		"skipped", report.Skipped(),
		"duration", result.Stats.RecordsTime)

	return units, nil
}

// buildArtifact runs the package stage and fills the artifact-related
// result fields.
func (r *Runner) buildArtifact(ctx context.Context, units []*content.Unit, opts Options, result *Result) error {
	hooks := observability.Pipeline()
	hooks.OnPackageStart(ctx, opts.Title)

	start := time.Now()
	pkg, err := BuildPackage(units, opts)
	var artifact *packaging.Artifact
	if err == nil {
		artifact, err = packaging.Archive(pkg)
	}
	result.Stats.PackageTime = time.Since(start)

	size := 0
	if artifact != nil {
		size = len(artifact.Data)
	}
	hooks.OnPackageComplete(ctx, opts.Title, size, result.Stats.PackageTime, err)
	if err != nil {
		return err
	}

	result.Artifact = artifact
	result.Stats.Resources = len(pkg.Manifest.Resources)

	opts.Logger.Info("packaged cartridge",
		"name", artifact.Name,
		"resources", len(pkg.Manifest.Resources),
		"size", size,
		"duration", result.Stats.PackageTime)

	return nil
}

type cachedBuild struct {
	artifact *packaging.Artifact
	report   Report
}

// fromCache tries to serve a previous build: both the archive bytes and
// the report must be present and decodable, otherwise the build reruns.
func (r *Runner) fromCache(ctx context.Context, artifactKey, reportKey, title string) (cachedBuild, bool) {
	data, hit, err := r.Cache.Get(ctx, artifactKey)
	if err != nil || !hit {
		return cachedBuild{}, false
	}
	reportData, hit, err := r.Cache.Get(ctx, reportKey)
	if err != nil || !hit {
		return cachedBuild{}, false
	}

	report, err := UnmarshalReport(reportData)
	if err != nil {
		return cachedBuild{}, false
	}
	artifact, err := packaging.Read(packaging.Filename(title), data)
	if err != nil {
		return cachedBuild{}, false
	}
	return cachedBuild{artifact: artifact, report: *report}, true
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}
