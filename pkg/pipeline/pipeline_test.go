package pipeline

import (
	"testing"

	"cartwright/pkg/errors"
)

func TestOptionsDefaults(t *testing.T) {
	opts := Options{DatasetPath: "course.json"}

	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatalf("valid options should pass: %v", err)
	}

	if opts.Workers != DefaultWorkers {
		t.Errorf("Workers = %d, want %d", opts.Workers, DefaultWorkers)
	}
	if opts.Logger == nil {
		t.Error("Logger should be defaulted")
	}
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"path", Options{DatasetPath: "course.json"}, false},
		{"bytes", Options{Dataset: []byte("[]"), DatasetName: "course.json"}, false},
		{"noInput", Options{}, true},
		{"bothInputs", Options{DatasetPath: "a.json", Dataset: []byte("[]")}, true},
		{"bothSchemas", Options{DatasetPath: "a.json", SchemaPath: "s.json", Schema: []byte("{}")}, true},
		{"badBaseURL", Options{DatasetPath: "a.json", BaseURL: "ftp://host"}, true},
		{"goodBaseURL", Options{DatasetPath: "a.json", BaseURL: "https://cdn.example.com/c"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.ValidateAndSetDefaults()
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAndSetDefaults() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, errors.ErrCodeInvalidInput) {
				t.Errorf("got code %s, want INVALID_INPUT", errors.GetCode(err))
			}
		})
	}
}

func TestOptionsValidateIdempotent(t *testing.T) {
	opts := Options{DatasetPath: "course.json", Workers: 2}

	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatalf("first call failed: %v", err)
	}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatalf("second call failed: %v", err)
	}
	if opts.Workers != 2 {
		t.Errorf("Workers = %d, want 2 (explicit value overwritten)", opts.Workers)
	}
}

func TestArtifactKeyOpts(t *testing.T) {
	opts := Options{
		DatasetPath:    "course.json",
		Title:          "Go",
		BaseURL:        "https://cdn.example.com",
		DefaultSection: "Misc",
		Format:         "json",
	}

	key := opts.ArtifactKeyOpts("schemahash", "assetshash")
	if key.Title != "Go" || key.BaseURL != "https://cdn.example.com" {
		t.Errorf("build options not folded into key: %+v", key)
	}
	if key.SchemaHash != "schemahash" || key.AssetsHash != "assetshash" {
		t.Errorf("hashes not folded into key: %+v", key)
	}
	if key.Format != "json" || key.DefaultSection != "Misc" {
		t.Errorf("format/section not folded into key: %+v", key)
	}
}
