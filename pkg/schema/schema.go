// Package schema validates dataset records against a JSON Schema document.
//
// A Validator is compiled once per run and is safe for concurrent use, so
// the pipeline can fan record validation out across workers. Violations are
// reported per record with the JSON Pointer of the offending value and the
// violated constraint keyword; a failing record never aborts the run.
package schema

import (
	"bytes"
	"os"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"cartwright/pkg/dataset"
	"cartwright/pkg/errors"
)

// DefaultSchema is the record schema used when a run supplies none. It
// accepts the flat lesson records the dataset loaders produce: a required
// title, and optional id, body, type, section, media_type, and assets
// fields. Hosted-content records ("link") additionally require an id since
// the page URL is derived from it.
const DefaultSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "id": {"type": ["string", "number"], "minLength": 1},
    "title": {"type": "string", "minLength": 1},
    "body": {"type": "string"},
    "type": {"enum": ["page", "link", "text"]},
    "section": {"type": "string"},
    "media_type": {"type": "string"},
    "assets": {"type": "array", "items": {"type": "string"}}
  },
  "required": ["title"],
  "if": {"properties": {"type": {"const": "link"}}, "required": ["type"]},
  "then": {"required": ["id"]}
}`

// Violation describes one failed constraint within a record.
type Violation struct {
	Field      string `json:"field"`      // JSON Pointer to the offending value
	Constraint string `json:"constraint"` // violated schema keyword ("required", "type", ...)
	Message    string `json:"message"`
}

// ViolationError aggregates the schema violations of a single record. It is
// carried as the cause of a SCHEMA_VIOLATION error so report builders can
// recover the individual violations.
type ViolationError struct {
	Violations []Violation
}

// Error implements the error interface.
func (e *ViolationError) Error() string {
	if len(e.Violations) == 0 {
		return "schema violation"
	}
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		field := v.Field
		if field == "" {
			field = "/"
		}
		parts[i] = field + ": " + v.Message
	}
	return strings.Join(parts, "; ")
}

// Validator checks records against a compiled JSON Schema.
type Validator struct {
	schema *jsonschema.Schema
}

// Compile builds a validator from raw schema bytes. The name identifies the
// schema in error messages and $ref resolution.
func Compile(name string, data []byte) (*Validator, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(name, bytes.NewReader(data)); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidSchema, err, "failed to load schema %s", name)
	}
	sch, err := c.Compile(name)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidSchema, err, "failed to compile schema %s", name)
	}
	return &Validator{schema: sch}, nil
}

// CompileFile builds a validator from a schema file on disk.
func CompileFile(path string) (*Validator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "failed to read schema %s", path)
	}
	return Compile(path, data)
}

// Default returns a validator for [DefaultSchema]. The built-in schema
// always compiles; failure here is a programming error.
func Default() *Validator {
	v, err := Compile("record.schema.json", []byte(DefaultSchema))
	if err != nil {
		panic(err)
	}
	return v
}

// Validate checks a single record. It returns nil for conforming records
// and a SCHEMA_VIOLATION error whose cause is a [ViolationError] otherwise.
func (v *Validator) Validate(rec dataset.Record) error {
	var instance any
	if rec.Fields != nil {
		instance = map[string]any(rec.Fields)
	}

	err := v.schema.Validate(instance)
	if err == nil {
		return nil
	}

	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return errors.Wrap(errors.ErrCodeSchemaViolation, err, "record %d failed validation", rec.Index)
	}

	cause := &ViolationError{Violations: flatten(ve)}
	return errors.Wrap(errors.ErrCodeSchemaViolation, cause, "record %d failed validation", rec.Index)
}

// ViolationsOf extracts the individual violations from a SCHEMA_VIOLATION
// error. Returns nil when err carries none.
func ViolationsOf(err error) []Violation {
	for ; err != nil; err = unwrap(err) {
		if ve, ok := err.(*ViolationError); ok {
			return ve.Violations
		}
	}
	return nil
}

func unwrap(err error) error {
	u, ok := err.(interface{ Unwrap() error })
	if !ok {
		return nil
	}
	return u.Unwrap()
}

// flatten walks the validation error tree and returns its leaves, which
// carry the concrete failed constraints.
func flatten(ve *jsonschema.ValidationError) []Violation {
	if len(ve.Causes) == 0 {
		return []Violation{{
			Field:      ve.InstanceLocation,
			Constraint: keyword(ve.KeywordLocation),
			Message:    ve.Message,
		}}
	}
	var out []Violation
	for _, c := range ve.Causes {
		out = append(out, flatten(c)...)
	}
	return out
}

// keyword extracts the violated keyword from a keyword location pointer,
// skipping array indices ("/allOf/0/required" yields "required").
func keyword(loc string) string {
	parts := strings.Split(loc, "/")
	for i := len(parts) - 1; i >= 0; i-- {
		p := parts[i]
		if p == "" {
			continue
		}
		if _, err := strconv.Atoi(p); err == nil {
			continue
		}
		return p
	}
	return ""
}
