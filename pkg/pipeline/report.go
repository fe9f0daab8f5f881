package pipeline

import (
	"encoding/json"
	"fmt"
	"io"

	"cartwright/pkg/errors"
	"cartwright/pkg/schema"
)

// Rejection describes one record dropped from a build and why.
type Rejection struct {
	// Record is the zero-based index of the record in the dataset.
	Record int `json:"record"`

	// Kind is the error class, SCHEMA_VIOLATION or TRANSFORM_ERROR.
	Kind errors.Code `json:"kind"`

	// Message is the human-readable failure description.
	Message string `json:"message"`

	// Violations carries the individual schema violations when Kind is
	// SCHEMA_VIOLATION, with the JSON Pointer of each offending value.
	Violations []schema.Violation `json:"violations,omitempty"`
}

// Report collects the per-record failures of a run. A non-empty report does
// not make the run a failure: the remaining records were packaged and the
// artifact is complete for them. Rejections are ordered by record index.
type Report struct {
	Rejections []Rejection `json:"rejections,omitempty"`
}

// add records a per-record failure. Fatal errors never end up here; they
// abort the run instead.
func (r *Report) add(record int, err error) {
	r.Rejections = append(r.Rejections, Rejection{
		Record:     record,
		Kind:       errors.GetCode(err),
		Message:    errors.UserMessage(err),
		Violations: schema.ViolationsOf(err),
	})
}

// Skipped returns the number of rejected records.
func (r *Report) Skipped() int {
	return len(r.Rejections)
}

// Empty reports whether every record survived.
func (r *Report) Empty() bool {
	return len(r.Rejections) == 0
}

// Summary renders the run outcome for display: "completed" when nothing was
// rejected, "completed with N of M records skipped" otherwise.
func (r *Report) Summary(total int) string {
	if r.Empty() {
		return fmt.Sprintf("completed, %d records packaged", total)
	}
	return fmt.Sprintf("completed with %d of %d records skipped", r.Skipped(), total)
}

// WriteJSON writes the report as indented JSON, the shape the API returns
// and the CLI writes next to the package when asked.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

// MarshalReport converts a report to JSON bytes for caching.
func MarshalReport(r *Report) ([]byte, error) {
	return json.Marshal(r)
}

// UnmarshalReport decodes a cached report.
func UnmarshalReport(data []byte) (*Report, error) {
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &r, nil
}
