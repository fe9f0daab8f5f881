// Package dataset loads lesson records from the input formats the build
// pipeline accepts.
//
// # Overview
//
// A dataset is an ordered list of flat records, each describing one lesson
// or content unit. Four source formats are supported:
//
//   - JSON: an array of records, or an object carrying a lesson array
//   - YAML: the same shapes as JSON
//   - CSV: one record per row, columns become fields (requires an "id" column)
//   - Rise und.js: the JSONP-wrapped base64 course export produced by
//     Articulate Rise (extracted, decoded, then treated as JSON)
//
// # Usage
//
//	ds, err := dataset.Load("course.json")
//	if err != nil {
//	    return err
//	}
//	for _, rec := range ds.Records {
//	    fmt.Println(rec.Text("title"))
//	}
//
// Loaders only decode; they never validate. Records with missing or
// malformed fields are passed through so the schema validation stage can
// report them with their record index intact.
package dataset

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"cartwright/pkg/errors"
)

// Record is a single dataset entry: the raw field map plus its position in
// the input order. Fields is nil when the source entry was not an object;
// such records fail schema validation rather than being dropped here.
type Record struct {
	Index  int            // zero-based position in the dataset
	Fields map[string]any // raw fields as decoded from the source
}

// Text returns the named field rendered as a string. Numeric and boolean
// values are formatted; missing fields and non-scalar values return "".
func (r Record) Text(key string) string {
	if r.Fields == nil {
		return ""
	}
	switch v := r.Fields[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// Strings returns the named field as a string slice. Scalar string values
// are returned as a single-element slice; anything else yields nil.
func (r Record) Strings(key string) []string {
	if r.Fields == nil {
		return nil
	}
	switch v := r.Fields[key].(type) {
	case string:
		return []string{v}
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return append([]string(nil), v...)
	default:
		return nil
	}
}

// Has reports whether the record carries the named field.
func (r Record) Has(key string) bool {
	if r.Fields == nil {
		return false
	}
	_, ok := r.Fields[key]
	return ok
}

// Dataset is an ordered collection of records plus any course-level
// metadata the source carried.
type Dataset struct {
	Title   string   // course title from the source document, may be empty
	Format  string   // format of the loader that decoded the source
	Records []Record // records in input order
}

// Loader decodes raw dataset bytes for one source format.
type Loader interface {
	// Load decodes data into a dataset. Record order follows the source.
	Load(data []byte) (*Dataset, error)
	// Supports reports whether this loader handles the given filename.
	Supports(filename string) bool
	// Format returns the format identifier (e.g., "json", "csv").
	Format() string
}

// Loaders returns the default loader set in detection order.
func Loaders() []Loader {
	return []Loader{
		&JSONLoader{},
		&YAMLLoader{},
		&CSVLoader{},
		&RiseLoader{},
	}
}

// Detect finds a loader that supports the given file path.
// Returns an error if no loader matches.
func Detect(path string, loaders ...Loader) (Loader, error) {
	name := filepath.Base(path)
	for _, l := range loaders {
		if l.Supports(name) {
			return l, nil
		}
	}
	return nil, errors.New(errors.ErrCodeInvalidDataset, "unsupported dataset format: %s", name)
}

// ByFormat finds a loader by its format identifier.
func ByFormat(format string, loaders ...Loader) (Loader, error) {
	for _, l := range loaders {
		if strings.EqualFold(l.Format(), format) {
			return l, nil
		}
	}
	return nil, errors.New(errors.ErrCodeInvalidFormat, "unknown dataset format: %s", format)
}

// Load reads the file at path, picks a loader by filename, and decodes it.
// When the source document carries no course title, the file's base name
// (without extension) is used, matching what the records most likely
// describe.
func Load(path string) (*Dataset, error) {
	return LoadFormat(path, "")
}

// LoadFormat is Load with an explicit format override. An empty format
// falls back to filename detection.
func LoadFormat(path, format string) (*Dataset, error) {
	loader, err := pick(path, format)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "failed to read dataset %s", path)
	}
	return decode(loader, data, path)
}

// LoadBytes decodes an in-memory dataset, as uploaded to the API. The
// filename selects a loader when format is empty and provides the fallback
// course title; it does not have to name an existing file.
func LoadBytes(data []byte, filename, format string) (*Dataset, error) {
	loader, err := pick(filename, format)
	if err != nil {
		return nil, err
	}
	return decode(loader, data, filename)
}

// pick resolves a loader by explicit format, falling back to filename
// detection.
func pick(filename, format string) (Loader, error) {
	if format != "" {
		return ByFormat(format, Loaders()...)
	}
	return Detect(filename, Loaders()...)
}

func decode(loader Loader, data []byte, filename string) (*Dataset, error) {
	ds, err := loader.Load(data)
	if err != nil {
		return nil, err
	}
	ds.Format = loader.Format()
	if ds.Title == "" && filename != "" {
		base := filepath.Base(filename)
		ds.Title = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return ds, nil
}

// records wraps a decoded entry list, assigning input-order indices.
// Entries that are not objects get a nil field map.
func records(entries []any) []Record {
	recs := make([]Record, len(entries))
	for i, e := range entries {
		recs[i] = Record{Index: i}
		if m, ok := e.(map[string]any); ok {
			recs[i].Fields = m
		}
	}
	return recs
}

// lessonsFrom locates the lesson list inside a decoded document. Three
// shapes are recognized, in order: the document itself is an array, the
// document carries a "lessons" array, or some member (searched depth-first
// over sorted keys, so discovery is deterministic) is an array whose first
// element is an object with an "id" field.
func lessonsFrom(doc any) ([]any, bool) {
	switch v := doc.(type) {
	case []any:
		return v, true
	case map[string]any:
		if lessons, ok := v["lessons"].([]any); ok {
			return lessons, true
		}
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		// Arrays at this level first, nested objects after.
		for _, k := range keys {
			if arr, ok := v[k].([]any); ok && looksLikeLessons(arr) {
				return arr, true
			}
		}
		for _, k := range keys {
			if m, ok := v[k].(map[string]any); ok {
				if lessons, ok := lessonsFrom(m); ok {
					return lessons, true
				}
			}
		}
	}
	return nil, false
}

// looksLikeLessons reports whether the array's first element is an object
// carrying an "id" field.
func looksLikeLessons(arr []any) bool {
	if len(arr) == 0 {
		return false
	}
	m, ok := arr[0].(map[string]any)
	if !ok {
		return false
	}
	_, ok = m["id"]
	return ok
}

// titleFrom extracts a course title from a decoded document, if present.
func titleFrom(doc any) string {
	if m, ok := doc.(map[string]any); ok {
		if t, ok := m["title"].(string); ok {
			return t
		}
	}
	return ""
}
