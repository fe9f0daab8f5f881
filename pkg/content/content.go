// Package content transforms dataset records into the payloads packaged
// inside a cartridge.
//
// Transformation is pure and deterministic: the same record and options
// always produce the same unit, byte for byte. No clocks, no randomness,
// no I/O. Three kinds are supported:
//
//   - page: a standalone HTML page rendering the record body as escaped text
//   - link: an HTML page framing hosted content by id (base URL + lesson id)
//   - text: the record body as a plain-text document
//
// Records choose a kind with their "type" field; records without one become
// pages when they carry a body and links otherwise.
package content

import (
	"bytes"
	"html/template"
	"strings"

	"cartwright/pkg/dataset"
	"cartwright/pkg/errors"
)

// Kind identifies the transformation applied to a record.
type Kind string

// Supported content kinds.
const (
	KindPage Kind = "page"
	KindLink Kind = "link"
	KindText Kind = "text"
)

// extByMediaType maps supported payload media types to archive file
// extensions. Unsupported media types fail the record's transform.
var extByMediaType = map[string]string{
	"text/html":  ".html",
	"text/plain": ".txt",
}

// Unit is a transformed record ready for manifest building.
type Unit struct {
	Record    int      // originating record index
	Title     string   // display title, unescaped
	Kind      Kind     // transformation that produced the payload
	MediaType string   // payload media type
	Payload   []byte   // rendered document
	Section   string   // structural hint path, may be empty
	Assets    []string // names of asset blobs this unit references
}

// Ext returns the archive file extension for the unit's media type,
// including the leading dot.
func (u *Unit) Ext() string {
	return extByMediaType[u.MediaType]
}

// Options configure record transformation.
type Options struct {
	// BaseURL is the hosted-content prefix for link records. The page URL
	// is BaseURL joined with the record id, with exactly one slash between
	// them.
	BaseURL string

	// Assets holds the named blobs records may reference. A record
	// referencing a name not present here fails its transform.
	Assets map[string][]byte
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
</head>
<body>
  <h1>{{.Title}}</h1>
  <div>{{.Body}}</div>
</body>
</html>
`))

var frameTemplate = template.Must(template.New("frame").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    body, html { margin: 0; padding: 0; height: 100%; overflow: hidden; }
    iframe { border: none; width: 100%; height: 800px; }
  </style>
</head>
<body>
  <iframe src="{{.URL}}" allowfullscreen></iframe>
</body>
</html>
`))

// Transform converts one validated record into a content unit. Failures
// are TRANSFORM_ERROR: the record is skipped and reported, the run
// continues.
func Transform(rec dataset.Record, opts Options) (*Unit, error) {
	kind, err := kindOf(rec)
	if err != nil {
		return nil, err
	}

	mediaType := rec.Text("media_type")
	if mediaType == "" {
		mediaType = defaultMediaType(kind)
	}
	if _, ok := extByMediaType[mediaType]; !ok {
		return nil, errors.New(errors.ErrCodeTransform,
			"record %d: unsupported media type %q", rec.Index, mediaType)
	}

	assets, err := assetNames(rec, opts)
	if err != nil {
		return nil, err
	}

	unit := &Unit{
		Record:    rec.Index,
		Title:     rec.Text("title"),
		Kind:      kind,
		MediaType: mediaType,
		Section:   rec.Text("section"),
		Assets:    assets,
	}

	switch kind {
	case KindPage:
		unit.Payload, err = renderPage(unit.Title, rec.Text("body"))
	case KindLink:
		unit.Payload, err = renderFrame(unit.Title, rec, opts)
	case KindText:
		unit.Payload = []byte(rec.Text("body"))
	}
	if err != nil {
		return nil, err
	}

	return unit, nil
}

// kindOf resolves the record's content kind. An explicit "type" field
// wins; otherwise records with a body become pages and the rest links.
func kindOf(rec dataset.Record) (Kind, error) {
	switch t := rec.Text("type"); t {
	case string(KindPage), string(KindLink), string(KindText):
		return Kind(t), nil
	case "":
		if rec.Has("body") {
			return KindPage, nil
		}
		return KindLink, nil
	default:
		return "", errors.New(errors.ErrCodeTransform,
			"record %d: unsupported content type %q", rec.Index, t)
	}
}

func defaultMediaType(kind Kind) string {
	if kind == KindText {
		return "text/plain"
	}
	return "text/html"
}

// assetNames collects the record's asset references in input order,
// dropping duplicates and rejecting names absent from the asset source.
func assetNames(rec dataset.Record, opts Options) ([]string, error) {
	names := rec.Strings("assets")
	if len(names) == 0 {
		return nil, nil
	}

	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		if _, ok := opts.Assets[name]; !ok {
			return nil, errors.New(errors.ErrCodeTransform,
				"record %d: unknown asset %q", rec.Index, name)
		}
		out = append(out, name)
	}
	return out, nil
}

func renderPage(title, body string) ([]byte, error) {
	var buf bytes.Buffer
	err := pageTemplate.Execute(&buf, struct{ Title, Body string }{title, body})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeTransform, err, "failed to render page")
	}
	return buf.Bytes(), nil
}

func renderFrame(title string, rec dataset.Record, opts Options) ([]byte, error) {
	id := rec.Text("id")
	if id == "" {
		return nil, errors.New(errors.ErrCodeTransform,
			"record %d: hosted content requires an id", rec.Index)
	}
	if opts.BaseURL == "" {
		return nil, errors.New(errors.ErrCodeTransform,
			"record %d: hosted content requires a base URL", rec.Index)
	}

	url := opts.BaseURL
	if !strings.HasSuffix(url, "/") {
		url += "/"
	}
	url += id

	var buf bytes.Buffer
	err := frameTemplate.Execute(&buf, struct {
		Title string
		URL   string
	}{title, url})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeTransform, err, "failed to render frame page")
	}
	return buf.Bytes(), nil
}
