package cartridge

import (
	"bytes"
	"testing"

	"cartwright/pkg/content"
	"cartwright/pkg/errors"
)

func pageUnit(record int, title, section string) *content.Unit {
	return &content.Unit{
		Record:    record,
		Title:     title,
		Kind:      content.KindPage,
		MediaType: "text/html",
		Payload:   []byte("<html>" + title + "</html>"),
		Section:   section,
	}
}

func TestBuildSingleUnit(t *testing.T) {
	pkg, err := Build([]*content.Unit{pageUnit(0, "Intro", "Unit1")}, BuildOptions{Title: "Course"})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	m := pkg.Manifest
	if m.Identifier != "man-0001" {
		t.Errorf("manifest identifier = %q, want %q", m.Identifier, "man-0001")
	}
	if m.Organization.Identifier != "org-0001" {
		t.Errorf("organization identifier = %q, want %q", m.Organization.Identifier, "org-0001")
	}
	if m.Schema != SchemaName || m.SchemaVersion != SchemaVersion {
		t.Errorf("schema = %q %q, want %q %q", m.Schema, m.SchemaVersion, SchemaName, SchemaVersion)
	}

	if len(m.Resources) != 1 {
		t.Fatalf("len(Resources) = %d, want 1", len(m.Resources))
	}
	res := m.Resources[0]
	if res.Identifier != "res-0001" {
		t.Errorf("resource identifier = %q, want %q", res.Identifier, "res-0001")
	}
	if res.Href != "resources/res-0001.html" {
		t.Errorf("Href = %q, want %q", res.Href, "resources/res-0001.html")
	}
	if res.Type != TypeWebContent {
		t.Errorf("Type = %q, want %q", res.Type, TypeWebContent)
	}

	if len(m.Organization.Nodes) != 1 {
		t.Fatalf("len(Nodes) = %d, want 1", len(m.Organization.Nodes))
	}
	section := m.Organization.Nodes[0]
	if section.Identifier != "item-0001" || section.Title != "Unit1" {
		t.Errorf("section = %q %q, want item-0001 Unit1", section.Identifier, section.Title)
	}
	if len(section.Children) != 1 {
		t.Fatalf("len(section.Children) = %d, want 1", len(section.Children))
	}
	leaf := section.Children[0]
	if leaf.Identifier != "item-0002" || leaf.Title != "Intro" || leaf.ResourceRef != "res-0001" {
		t.Errorf("leaf = %+v, want item-0002/Intro/res-0001", leaf)
	}

	if len(pkg.Files) != 1 {
		t.Fatalf("len(Files) = %d, want 1", len(pkg.Files))
	}
	if pkg.Files[0].Path != "resources/res-0001.html" {
		t.Errorf("Files[0].Path = %q, want %q", pkg.Files[0].Path, "resources/res-0001.html")
	}
	if pkg.Files[0].Resource != "res-0001" {
		t.Errorf("Files[0].Resource = %q, want %q", pkg.Files[0].Resource, "res-0001")
	}
}

func TestBuildNestedSections(t *testing.T) {
	units := []*content.Unit{
		pageUnit(0, "Lesson A", "Unit 1/Week 1"),
		pageUnit(1, "Lesson B", "Unit 1/Week 2"),
		pageUnit(2, "Lesson C", "Unit 1/Week 1"),
	}

	pkg, err := Build(units, BuildOptions{Title: "Course"})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	nodes := pkg.Manifest.Organization.Nodes
	if len(nodes) != 1 {
		t.Fatalf("len(root nodes) = %d, want 1", len(nodes))
	}
	unit1 := nodes[0]
	if unit1.Title != "Unit 1" {
		t.Errorf("root node title = %q, want %q", unit1.Title, "Unit 1")
	}
	if len(unit1.Children) != 2 {
		t.Fatalf("len(unit1.Children) = %d, want 2", len(unit1.Children))
	}

	// Sibling order follows first encounter.
	if unit1.Children[0].Title != "Week 1" || unit1.Children[1].Title != "Week 2" {
		t.Errorf("weeks = %q, %q, want Week 1, Week 2",
			unit1.Children[0].Title, unit1.Children[1].Title)
	}

	week1 := unit1.Children[0]
	if len(week1.Children) != 2 {
		t.Fatalf("len(week1.Children) = %d, want 2", len(week1.Children))
	}
	if week1.Children[0].Title != "Lesson A" || week1.Children[1].Title != "Lesson C" {
		t.Errorf("week1 lessons = %q, %q, want Lesson A, Lesson C",
			week1.Children[0].Title, week1.Children[1].Title)
	}
}

func TestBuildDefaultSection(t *testing.T) {
	t.Run("built-in default", func(t *testing.T) {
		pkg, err := Build([]*content.Unit{pageUnit(0, "Loose", "")}, BuildOptions{Title: "C"})
		if err != nil {
			t.Fatalf("Build failed: %v", err)
		}
		nodes := pkg.Manifest.Organization.Nodes
		if len(nodes) != 1 || nodes[0].Title != DefaultSectionTitle {
			t.Errorf("root node = %+v, want single %q section", nodes, DefaultSectionTitle)
		}
	})

	t.Run("custom default", func(t *testing.T) {
		pkg, err := Build([]*content.Unit{pageUnit(0, "Loose", "")},
			BuildOptions{Title: "C", DefaultSection: "Misc"})
		if err != nil {
			t.Fatalf("Build failed: %v", err)
		}
		if got := pkg.Manifest.Organization.Nodes[0].Title; got != "Misc" {
			t.Errorf("section title = %q, want %q", got, "Misc")
		}
	})

	t.Run("slash-only hint", func(t *testing.T) {
		pkg, err := Build([]*content.Unit{pageUnit(0, "Loose", "//")}, BuildOptions{Title: "C"})
		if err != nil {
			t.Fatalf("Build failed: %v", err)
		}
		if got := pkg.Manifest.Organization.Nodes[0].Title; got != DefaultSectionTitle {
			t.Errorf("section title = %q, want %q", got, DefaultSectionTitle)
		}
	})
}

func TestBuildSharedAssets(t *testing.T) {
	logo := []byte{0x89, 0x50, 0x4e, 0x47}
	unitA := pageUnit(0, "A", "U")
	unitA.Assets = []string{"logo.png"}
	unitB := pageUnit(1, "B", "U")
	unitB.Assets = []string{"logo.png"}

	pkg, err := Build([]*content.Unit{unitA, unitB}, BuildOptions{
		Title:  "Course",
		Assets: map[string][]byte{"logo.png": logo},
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	m := pkg.Manifest
	// res-0001 (unit A), res-0002 (logo), res-0003 (unit B)
	if len(m.Resources) != 3 {
		t.Fatalf("len(Resources) = %d, want 3", len(m.Resources))
	}

	asset := m.Resources[1]
	if asset.Identifier != "res-0002" {
		t.Errorf("asset identifier = %q, want %q", asset.Identifier, "res-0002")
	}
	if asset.Href != "resources/res-0002.png" {
		t.Errorf("asset href = %q, want %q", asset.Href, "resources/res-0002.png")
	}

	if got := m.Resources[0].Dependencies; len(got) != 1 || got[0] != "res-0002" {
		t.Errorf("unit A dependencies = %v, want [res-0002]", got)
	}
	if got := m.Resources[2].Dependencies; len(got) != 1 || got[0] != "res-0002" {
		t.Errorf("unit B dependencies = %v, want [res-0002]", got)
	}

	var assetPayload []byte
	for _, f := range pkg.Files {
		if f.Path == "resources/res-0002.png" {
			assetPayload = f.Data
		}
	}
	if !bytes.Equal(assetPayload, logo) {
		t.Errorf("asset payload = %v, want %v", assetPayload, logo)
	}
}

func TestBuildMissingAsset(t *testing.T) {
	unit := pageUnit(0, "A", "U")
	unit.Assets = []string{"ghost.png"}

	_, err := Build([]*content.Unit{unit}, BuildOptions{Title: "Course"})
	if err == nil {
		t.Fatal("Build error = nil, want structural error")
	}
	if !errors.Is(err, errors.ErrCodeStructural) {
		t.Errorf("error code = %v, want STRUCTURAL_ERROR", errors.GetCode(err))
	}
}

func TestBuildEmptyDataset(t *testing.T) {
	pkg, err := Build(nil, BuildOptions{Title: "Empty Course"})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if len(pkg.Manifest.Resources) != 0 {
		t.Errorf("len(Resources) = %d, want 0", len(pkg.Manifest.Resources))
	}
	if len(pkg.Manifest.Organization.Nodes) != 0 {
		t.Errorf("len(Nodes) = %d, want 0", len(pkg.Manifest.Organization.Nodes))
	}
	if len(pkg.Files) != 0 {
		t.Errorf("len(Files) = %d, want 0", len(pkg.Files))
	}
}

func TestBuildInvalidTitle(t *testing.T) {
	_, err := Build(nil, BuildOptions{Title: ""})
	if err == nil {
		t.Fatal("Build error = nil, want error for empty title")
	}
	if !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("error code = %v, want INVALID_INPUT", errors.GetCode(err))
	}
}

func TestBuildTextUnitExtension(t *testing.T) {
	unit := &content.Unit{
		Record:    0,
		Title:     "Notes",
		Kind:      content.KindText,
		MediaType: "text/plain",
		Payload:   []byte("plain"),
	}

	pkg, err := Build([]*content.Unit{unit}, BuildOptions{Title: "C"})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if got := pkg.Manifest.Resources[0].Href; got != "resources/res-0001.txt" {
		t.Errorf("Href = %q, want %q", got, "resources/res-0001.txt")
	}
}

func TestBuildDeterministic(t *testing.T) {
	units := func() []*content.Unit {
		a := pageUnit(0, "A", "U1/W1")
		a.Assets = []string{"x.css"}
		return []*content.Unit{a, pageUnit(1, "B", "U1"), pageUnit(2, "C", "")}
	}
	opts := BuildOptions{Title: "Course", Assets: map[string][]byte{"x.css": []byte("body{}")}}

	first, err := Build(units(), opts)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	second, err := Build(units(), opts)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	xmlA, err := Serialize(first.Manifest)
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}
	xmlB, err := Serialize(second.Manifest)
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}

	if !bytes.Equal(xmlA, xmlB) {
		t.Error("serialized manifests differ across identical builds")
	}
}

func TestSplitPath(t *testing.T) {
	tests := []struct {
		path string
		want []string
	}{
		{"a/b", []string{"a", "b"}},
		{"a//b/", []string{"a", "b"}},
		{"/", nil},
		{"", nil},
		{"  spaced  /b", []string{"spaced", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got := splitPath(tt.path)
			if len(got) != len(tt.want) {
				t.Fatalf("splitPath(%q) = %v, want %v", tt.path, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("splitPath(%q)[%d] = %q, want %q", tt.path, i, got[i], tt.want[i])
				}
			}
		})
	}
}
