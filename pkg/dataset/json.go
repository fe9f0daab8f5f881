package dataset

import (
	"encoding/json"
	"strings"

	"cartwright/pkg/errors"
)

// JSONLoader parses JSON lesson datasets. The document may be a bare array
// of records, an object with a "lessons" array, or an object nesting such
// an array somewhere below it.
type JSONLoader struct{}

func (l *JSONLoader) Format() string { return "json" }

func (l *JSONLoader) Supports(name string) bool {
	return strings.EqualFold(ext(name), ".json")
}

func (l *JSONLoader) Load(data []byte) (*Dataset, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidDataset, err, "invalid JSON dataset")
	}
	return fromDocument(doc)
}

// fromDocument builds a dataset from a decoded JSON-shaped document.
// Shared by the JSON, YAML, and Rise loaders.
func fromDocument(doc any) (*Dataset, error) {
	entries, ok := lessonsFrom(doc)
	if !ok {
		return nil, errors.New(errors.ErrCodeInvalidDataset, "no lesson array found in dataset")
	}
	return &Dataset{
		Title:   titleFrom(doc),
		Records: records(entries),
	}, nil
}

// ext returns the lowercase filename extension including the dot.
func ext(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return ""
	}
	return strings.ToLower(name[i:])
}
