package cartridge

import (
	"cartwright/pkg/errors"
)

// Validate checks manifest integrity and returns nil if valid.
// It verifies four constraints:
//
//  1. All identifiers (manifest, organization, items, resources) are unique
//  2. Every item reference points at an existing resource
//  3. Every resource dependency points at an existing resource
//  4. Resource hrefs are safe archive paths and unique across resources
//
// Violations are STRUCTURAL_ERROR: the manifest must not be serialized and
// the run aborts. A dangling reference is never silently dropped.
func (m *Manifest) Validate() error {
	ids := map[string]bool{
		m.Identifier:              true,
		m.Organization.Identifier: true,
		rootItemID:                true,
	}
	if m.Identifier == "" {
		return errors.New(errors.ErrCodeStructural, "manifest has no identifier")
	}

	resources := make(map[string]bool, len(m.Resources))
	hrefs := make(map[string]string, len(m.Resources))
	for _, r := range m.Resources {
		if ids[r.Identifier] {
			return errors.New(errors.ErrCodeStructural, "duplicate identifier %q", r.Identifier)
		}
		ids[r.Identifier] = true
		resources[r.Identifier] = true

		if err := errors.ValidateArchivePath(r.Href); err != nil {
			return errors.Wrap(errors.ErrCodeStructural, err, "resource %s has invalid href", r.Identifier)
		}
		if other, ok := hrefs[r.Href]; ok {
			return errors.New(errors.ErrCodeStructural,
				"resources %s and %s share archive path %q", other, r.Identifier, r.Href)
		}
		hrefs[r.Href] = r.Identifier
	}

	for _, r := range m.Resources {
		for _, dep := range r.Dependencies {
			if !resources[dep] {
				return errors.New(errors.ErrCodeStructural,
					"resource %s depends on unknown resource %q", r.Identifier, dep)
			}
		}
	}

	var walk func(nodes []*Node) error
	walk = func(nodes []*Node) error {
		for _, n := range nodes {
			if n.Identifier == "" {
				return errors.New(errors.ErrCodeStructural, "item %q has no identifier", n.Title)
			}
			if ids[n.Identifier] {
				return errors.New(errors.ErrCodeStructural, "duplicate identifier %q", n.Identifier)
			}
			ids[n.Identifier] = true

			if n.ResourceRef != "" && !resources[n.ResourceRef] {
				return errors.New(errors.ErrCodeStructural,
					"item %s references unknown resource %q", n.Identifier, n.ResourceRef)
			}
			if err := walk(n.Children); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(m.Organization.Nodes)
}
