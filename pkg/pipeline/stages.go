package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"sync"

	"cartwright/pkg/cartridge"
	"cartwright/pkg/content"
	"cartwright/pkg/dataset"
	"cartwright/pkg/errors"
	"cartwright/pkg/httputil"
	"cartwright/pkg/schema"
)

// Load decodes the dataset addressed by the options into records and
// returns the decoded dataset alongside the raw bytes it was decoded from.
// The raw bytes feed cache keys; hashing them instead of the decoded form
// keeps the key independent of loader internals.
func Load(ctx context.Context, opts Options) (*dataset.Dataset, []byte, error) {
	data, name, err := readDataset(ctx, opts)
	if err != nil {
		return nil, nil, err
	}

	ds, err := dataset.LoadBytes(data, name, opts.Format)
	if err != nil {
		return nil, nil, err
	}
	return ds, data, nil
}

// readDataset materializes the dataset bytes from whichever input the
// options carry: inline bytes, a remote URL, or a local file.
func readDataset(ctx context.Context, opts Options) (data []byte, name string, err error) {
	switch {
	case opts.Dataset != nil:
		return opts.Dataset, opts.DatasetName, nil

	case httputil.IsURL(opts.DatasetPath):
		data, err = httputil.Fetch(ctx, opts.DatasetPath)
		if err != nil {
			return nil, "", errors.Wrap(errors.ErrCodeInvalidDataset, err,
				"failed to fetch dataset %s", opts.DatasetPath)
		}
		name = opts.DatasetPath
		if u, perr := url.Parse(opts.DatasetPath); perr == nil {
			name = path.Base(u.Path)
		}
		return data, name, nil

	default:
		data, err = os.ReadFile(opts.DatasetPath)
		if err != nil {
			return nil, "", errors.Wrap(errors.ErrCodeFileNotFound, err,
				"failed to read dataset %s", opts.DatasetPath)
		}
		return data, filepath.Base(opts.DatasetPath), nil
	}
}

// CompileSchema resolves the validator for a run: explicit schema bytes,
// a schema file, or the built-in default, in that order. The returned
// bytes are the exact schema source and feed the artifact cache key, so a
// schema change always misses the cache.
func CompileSchema(opts Options) (*schema.Validator, []byte, error) {
	switch {
	case opts.Schema != nil:
		v, err := schema.Compile("schema.json", opts.Schema)
		return v, opts.Schema, err

	case opts.SchemaPath != "":
		data, err := os.ReadFile(opts.SchemaPath)
		if err != nil {
			return nil, nil, errors.Wrap(errors.ErrCodeFileNotFound, err,
				"failed to read schema %s", opts.SchemaPath)
		}
		v, err := schema.Compile(filepath.Base(opts.SchemaPath), data)
		return v, data, err

	default:
		return schema.Default(), []byte(schema.DefaultSchema), nil
	}
}

// ProcessRecords validates every record against the schema and transforms
// the valid ones into content units, over a worker pool of opts.Workers
// goroutines. Outcomes are slotted by record index, so unit order and the
// report are independent of worker scheduling. Rejected records land in
// the report; they never fail the stage.
func ProcessRecords(ctx context.Context, ds *dataset.Dataset, v *schema.Validator, opts Options) ([]*content.Unit, Report, error) {
	var report Report

	outcomes := make([]recordOutcome, len(ds.Records))
	if len(outcomes) == 0 {
		return nil, report, nil
	}

	contentOpts := content.Options{BaseURL: opts.BaseURL, Assets: opts.Assets}

	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if workers > len(ds.Records) {
		workers = len(ds.Records)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				outcomes[i] = processRecord(ds.Records[i], v, contentOpts)
			}
		}()
	}

	var cancelled error
	for i := range ds.Records {
		if cancelled = ctx.Err(); cancelled != nil {
			break
		}
		select {
		case <-ctx.Done():
			cancelled = ctx.Err()
		case jobs <- i:
			continue
		}
		break
	}
	close(jobs)
	wg.Wait()
	if cancelled != nil {
		return nil, report, cancelled
	}

	units := make([]*content.Unit, 0, len(outcomes))
	for i, out := range outcomes {
		if out.err != nil {
			report.add(i, out.err)
			continue
		}
		units = append(units, out.unit)
	}
	return units, report, nil
}

// BuildPackage assembles the manifest tree and payload files from the
// transformed units. It runs single-threaded: identifier assignment and
// sibling order need a total order over units. The title must already be
// resolved; an empty one is rejected.
func BuildPackage(units []*content.Unit, opts Options) (*cartridge.Package, error) {
	return cartridge.Build(units, cartridge.BuildOptions{
		Title:          opts.Title,
		DefaultSection: opts.DefaultSection,
		Assets:         opts.Assets,
	})
}

type recordOutcome struct {
	unit *content.Unit
	err  error
}

func processRecord(rec dataset.Record, v *schema.Validator, opts content.Options) recordOutcome {
	if err := v.Validate(rec); err != nil {
		return recordOutcome{err: err}
	}
	unit, err := content.Transform(rec, opts)
	return recordOutcome{unit: unit, err: err}
}

// resolveTitle picks the course title for a run: the explicit option wins,
// then the title the dataset carried, then the package-level default.
func resolveTitle(explicit string, ds *dataset.Dataset) string {
	if explicit != "" {
		return explicit
	}
	if ds.Title != "" {
		return ds.Title
	}
	return DefaultTitle
}

// hashAssets digests the asset set for cache keying. Names are sorted
// first so map iteration order never leaks into the hash. An empty set
// hashes to the empty string.
func hashAssets(assets map[string][]byte) string {
	if len(assets) == 0 {
		return ""
	}

	names := make([]string, 0, len(assets))
	for name := range assets {
		names = append(names, name)
	}
	sort.Strings(names)

	h := sha256.New()
	for _, name := range names {
		h.Write([]byte(name))
		h.Write([]byte{0})
		h.Write(assets[name])
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
