package dataset

import (
	"encoding/base64"
	"encoding/json"
	"regexp"
	"strings"

	"cartwright/pkg/errors"
)

// Rise exports wrap the course document in a JSONP call whose second
// argument is the base64-encoded JSON. The strict pattern matches the
// "course:und" key the exporter writes; the loose pattern tolerates other
// keys seen in older exports.
var (
	risePattern      = regexp.MustCompile(`__resolveJsonp\("course:und","([^"]+)"\)`)
	riseLoosePattern = regexp.MustCompile(`__resolveJsonp\([^,]+,\s*"([^"]+)"\)`)
)

// RiseLoader extracts lesson data from an Articulate Rise und.js export.
// The file is scanned for the JSONP wrapper, its payload base64-decoded,
// and the resulting JSON treated like any other JSON dataset.
type RiseLoader struct{}

func (l *RiseLoader) Format() string { return "rise" }

func (l *RiseLoader) Supports(name string) bool {
	return strings.EqualFold(ext(name), ".js")
}

func (l *RiseLoader) Load(data []byte) (*Dataset, error) {
	payload := risePattern.FindSubmatch(data)
	if payload == nil {
		payload = riseLoosePattern.FindSubmatch(data)
	}
	if payload == nil {
		return nil, errors.New(errors.ErrCodeInvalidDataset,
			"no JSONP course payload found (expected __resolveJsonp(\"course:und\",...))")
	}

	decoded, err := base64.StdEncoding.DecodeString(string(payload[1]))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidDataset, err, "failed to decode course payload")
	}

	var doc any
	if err := json.Unmarshal(decoded, &doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidDataset, err, "course payload is not valid JSON")
	}

	return fromDocument(doc)
}
