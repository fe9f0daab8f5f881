// Package preview renders the organization tree a dataset would produce
// without writing a package. It consumes a built [cartridge.Package] and
// emits plain text, Graphviz DOT, or SVG, so a structure problem can be
// spotted before anything is imported into an LMS.
package preview

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"cartwright/pkg/cartridge"
	"cartwright/pkg/errors"
)

// Supported output formats.
const (
	FormatTree = "tree"
	FormatDOT  = "dot"
	FormatSVG  = "svg"
)

// Formats lists the supported output formats in display order.
var Formats = []string{FormatTree, FormatDOT, FormatSVG}

// ValidateFormat checks that format names a supported output format.
func ValidateFormat(format string) error {
	for _, f := range Formats {
		if f == format {
			return nil
		}
	}
	return errors.New(errors.ErrCodeInvalidFormat,
		"unsupported preview format %q (supported: %s)", format, strings.Join(Formats, ", "))
}

// Render renders the package's organization in the named format.
func Render(ctx context.Context, pkg *cartridge.Package, format string) ([]byte, error) {
	switch format {
	case FormatTree:
		return []byte(Tree(pkg)), nil
	case FormatDOT:
		return []byte(ToDOT(pkg)), nil
	case FormatSVG:
		return RenderSVG(ctx, ToDOT(pkg))
	default:
		return nil, ValidateFormat(format)
	}
}

// Tree renders the organization as an indented text tree. Leaves carry
// the identifier of the resource they reference.
func Tree(pkg *cartridge.Package) string {
	var buf bytes.Buffer
	buf.WriteString(pkg.Manifest.Title)
	buf.WriteByte('\n')
	writeBranch(&buf, pkg.Manifest.Organization.Nodes, "")
	return buf.String()
}

func writeBranch(buf *bytes.Buffer, nodes []*cartridge.Node, prefix string) {
	for i, n := range nodes {
		connector, childPrefix := "├── ", prefix+"│   "
		if i == len(nodes)-1 {
			connector, childPrefix = "└── ", prefix+"    "
		}

		buf.WriteString(prefix)
		buf.WriteString(connector)
		buf.WriteString(n.Title)
		if n.ResourceRef != "" {
			fmt.Fprintf(buf, " [%s]", n.ResourceRef)
		}
		buf.WriteByte('\n')

		writeBranch(buf, n.Children, childPrefix)
	}
}

// ToDOT converts the organization tree to Graphviz DOT format. The
// resulting DOT string can be rendered with [RenderSVG]. Section folders
// are filled grey to distinguish them from content leaves.
func ToDOT(pkg *cartridge.Package) string {
	m := pkg.Manifest

	var buf bytes.Buffer
	buf.WriteString("digraph organization {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.6;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	fmt.Fprintf(&buf, "  %q [label=%q, fillcolor=lightgrey];\n", m.Organization.Identifier, m.Title)
	declareNodes(&buf, m.Organization.Nodes)

	buf.WriteString("\n")
	declareEdges(&buf, m.Organization.Identifier, m.Organization.Nodes)

	buf.WriteString("}\n")
	return buf.String()
}

func declareNodes(buf *bytes.Buffer, nodes []*cartridge.Node) {
	for _, n := range nodes {
		attrs := []string{fmt.Sprintf("label=%q", n.Title)}
		if n.ResourceRef == "" {
			attrs = append(attrs, "fillcolor=lightgrey")
		}
		fmt.Fprintf(buf, "  %q [%s];\n", n.Identifier, strings.Join(attrs, ", "))
		declareNodes(buf, n.Children)
	}
}

func declareEdges(buf *bytes.Buffer, parent string, nodes []*cartridge.Node) {
	for _, n := range nodes {
		fmt.Fprintf(buf, "  %q -> %q;\n", parent, n.Identifier)
		declareEdges(buf, n.Identifier, n.Children)
	}
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "failed to init graphviz")
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "failed to parse DOT")
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "failed to render SVG")
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox rewrites the root svg element so the drawing starts at
// origin and carries explicit pixel dimensions. Graphviz emits offset
// viewBoxes and pt units, which render at inconsistent sizes in browsers.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	root := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)

	return svgTagRe.ReplaceAll(svg, []byte(root))
}
