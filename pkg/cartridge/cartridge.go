// Package cartridge builds IMS Common Cartridge manifest trees from
// transformed content units and serializes them to imsmanifest.xml.
//
// # Overview
//
// A cartridge manifest has three parts: course metadata, an organization
// tree (the table of contents presented by the importing LMS), and a flat
// resource list describing the packaged files. Build assembles all three
// from content units; Serialize renders the result as the XML document the
// Common Cartridge 1.1.0 profile expects.
//
// # Determinism
//
// Building is fully deterministic. Identifiers come from per-kind counters
// in unit order, sibling order follows first encounter, and serialization
// emits attributes in a fixed order. The same units and options always
// produce byte-identical XML.
package cartridge

import (
	"path/filepath"
	"strings"

	"cartwright/pkg/content"
	"cartwright/pkg/errors"
)

// Manifest schema constants for the Common Cartridge 1.1.0 profile.
const (
	SchemaName    = "IMS Common Cartridge"
	SchemaVersion = "1.1.0"

	// TypeWebContent is the resource type for packaged HTML and text files.
	TypeWebContent = "webcontent"

	// ManifestPath is the archive path of the manifest document.
	ManifestPath = "imsmanifest.xml"

	// DefaultSectionTitle groups units whose records carried no structural
	// hint. Explicit grouping keeps root items homogeneous instead of
	// mixing loose leaves with section folders.
	DefaultSectionTitle = "Ungrouped"

	// resourceDir is the archive directory holding resource payloads.
	resourceDir = "resources"

	// rootItemID wraps the organization's top-level items. The cartridge
	// profile expects a single root item inside each organization.
	rootItemID = "root"
)

// Manifest is the logical model of an imsmanifest.xml document.
type Manifest struct {
	Identifier    string
	Title         string
	Schema        string
	SchemaVersion string
	Organization  Organization
	Resources     []*Resource
}

// Organization is the hierarchical table of contents of a cartridge.
type Organization struct {
	Identifier string
	Nodes      []*Node // top-level nodes in insertion order
}

// Node is one organization tree node: a section folder when ResourceRef is
// empty, a content leaf otherwise.
type Node struct {
	Identifier  string
	Title       string
	ResourceRef string  // identifier of the referenced resource, empty for folders
	Children    []*Node // child nodes in insertion order
}

// Resource describes one packaged file and its place in the archive.
type Resource struct {
	Identifier   string
	Type         string
	Href         string   // entry-point archive path
	Files        []string // all archive paths, first is Href
	Dependencies []string // identifiers of resources this one requires
}

// File pairs an archive path with its payload and owning resource.
type File struct {
	Path     string // archive path
	Resource string // identifier of the owning resource
	Data     []byte
}

// Package is a fully built cartridge: the manifest tree plus the payload
// files, in manifest resource order.
type Package struct {
	Manifest *Manifest
	Files    []File
}

// BuildOptions configure manifest building.
type BuildOptions struct {
	// Title is the course title embedded in manifest metadata. Required.
	Title string

	// DefaultSection groups units without a structural hint. Empty means
	// [DefaultSectionTitle].
	DefaultSection string

	// Assets holds the named blobs units reference. Each referenced name
	// becomes its own webcontent resource, created on first reference and
	// shared by later ones.
	Assets map[string][]byte
}

// Build assembles a package from transformed units. Unit order fixes
// identifier assignment and sibling order, so identical input produces an
// identical package. Section hint paths ("Unit 1/Week 2") map onto nested
// organization nodes, created on first encounter.
//
// Build validates the result before returning it; a manifest that fails
// reference integrity is a STRUCTURAL_ERROR and aborts the run.
func Build(units []*content.Unit, opts BuildOptions) (*Package, error) {
	if err := errors.ValidateTitle(opts.Title); err != nil {
		return nil, err
	}
	if opts.DefaultSection == "" {
		opts.DefaultSection = DefaultSectionTitle
	}

	b := &builder{
		alloc:    NewAllocator(),
		opts:     opts,
		sections: make(map[string]*Node),
		assets:   make(map[string]string),
	}

	b.manifest = &Manifest{
		Identifier:    b.alloc.Next(KindManifest),
		Title:         opts.Title,
		Schema:        SchemaName,
		SchemaVersion: SchemaVersion,
		Organization:  Organization{Identifier: b.alloc.Next(KindOrganization)},
	}
	b.pkg = &Package{Manifest: b.manifest}

	for _, u := range units {
		if err := b.add(u); err != nil {
			return nil, err
		}
	}

	if err := b.manifest.Validate(); err != nil {
		return nil, err
	}
	return b.pkg, nil
}

type builder struct {
	alloc    *Allocator
	opts     BuildOptions
	manifest *Manifest
	pkg      *Package
	sections map[string]*Node  // hint path -> section node
	assets   map[string]string // asset name -> resource identifier
}

// add places one unit: its resource, its payload file, its leaf item, and
// any asset resources it depends on.
func (b *builder) add(u *content.Unit) error {
	section, err := b.section(u.Section)
	if err != nil {
		return err
	}

	res := &Resource{
		Identifier: b.alloc.Next(KindResource),
		Type:       TypeWebContent,
	}
	res.Href = resourceDir + "/" + res.Identifier + u.Ext()
	res.Files = []string{res.Href}
	b.manifest.Resources = append(b.manifest.Resources, res)
	b.pkg.Files = append(b.pkg.Files, File{
		Path:     res.Href,
		Resource: res.Identifier,
		Data:     u.Payload,
	})

	item := &Node{
		Identifier:  b.alloc.Next(KindItem),
		Title:       u.Title,
		ResourceRef: res.Identifier,
	}
	section.Children = append(section.Children, item)

	for _, name := range u.Assets {
		id, err := b.asset(name)
		if err != nil {
			return err
		}
		res.Dependencies = append(res.Dependencies, id)
	}
	return nil
}

// section resolves a hint path to its node, creating missing ancestors.
// Empty and slash-only paths fall back to the default section.
func (b *builder) section(path string) (*Node, error) {
	if err := errors.ValidateSectionPath(path); err != nil {
		return nil, err
	}

	segments := splitPath(path)
	if len(segments) == 0 {
		segments = []string{b.opts.DefaultSection}
	}

	var (
		node *Node
		key  string
	)
	children := &b.manifest.Organization.Nodes
	for _, seg := range segments {
		if key == "" {
			key = seg
		} else {
			key = key + "/" + seg
		}
		existing, ok := b.sections[key]
		if !ok {
			existing = &Node{
				Identifier: b.alloc.Next(KindItem),
				Title:      seg,
			}
			b.sections[key] = existing
			*children = append(*children, existing)
		}
		node = existing
		children = &existing.Children
	}
	return node, nil
}

// asset returns the resource identifier for a named asset blob, creating
// the resource and its payload file on first reference.
func (b *builder) asset(name string) (string, error) {
	if id, ok := b.assets[name]; ok {
		return id, nil
	}

	data, ok := b.opts.Assets[name]
	if !ok {
		return "", errors.New(errors.ErrCodeStructural, "asset %q is referenced but not provided", name)
	}

	res := &Resource{
		Identifier: b.alloc.Next(KindResource),
		Type:       TypeWebContent,
	}
	res.Href = resourceDir + "/" + res.Identifier + filepath.Ext(name)
	res.Files = []string{res.Href}
	b.manifest.Resources = append(b.manifest.Resources, res)
	b.pkg.Files = append(b.pkg.Files, File{
		Path:     res.Href,
		Resource: res.Identifier,
		Data:     data,
	})

	b.assets[name] = res.Identifier
	return res.Identifier, nil
}

// splitPath splits a hint path on "/" and drops empty segments, so
// "a//b/" yields ["a", "b"] and "/" yields nothing.
func splitPath(path string) []string {
	parts := strings.Split(path, "/")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
