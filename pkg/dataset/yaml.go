package dataset

import (
	"strings"

	"gopkg.in/yaml.v2"

	"cartwright/pkg/errors"
)

// YAMLLoader parses YAML lesson datasets. It accepts the same document
// shapes as the JSON loader.
type YAMLLoader struct{}

func (l *YAMLLoader) Format() string { return "yaml" }

func (l *YAMLLoader) Supports(name string) bool {
	switch ext(name) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func (l *YAMLLoader) Load(data []byte) (*Dataset, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidDataset, err, "invalid YAML dataset")
	}
	return fromDocument(normalizeYAML(doc))
}

// normalizeYAML converts the map[interface{}]interface{} values yaml.v2
// produces into the map[string]any shape the rest of the package works
// with. Non-string keys are rendered with their default formatting.
func normalizeYAML(v any) any {
	switch v := v.(type) {
	case map[any]any:
		m := make(map[string]any, len(v))
		for k, val := range v {
			m[yamlKey(k)] = normalizeYAML(val)
		}
		return m
	case map[string]any:
		m := make(map[string]any, len(v))
		for k, val := range v {
			m[k] = normalizeYAML(val)
		}
		return m
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = normalizeYAML(e)
		}
		return out
	case int:
		// Align numeric typing with encoding/json so downstream field
		// access behaves the same for both formats.
		return float64(v)
	case int64:
		return float64(v)
	default:
		return v
	}
}

func yamlKey(k any) string {
	if s, ok := k.(string); ok {
		return s
	}
	b, err := yaml.Marshal(k)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}
