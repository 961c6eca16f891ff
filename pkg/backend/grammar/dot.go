package grammar

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/mbaylis/slideforge/pkg/backend"
	"github.com/mbaylis/slideforge/pkg/errors"
	"github.com/mbaylis/slideforge/pkg/slide"
)

// toDOT serializes a process or comparison slide into the DOT grammar.
// Process slides become a vertical step chain; comparison slides two
// side-by-side clusters.
func toDOT(spec backend.RenderSpec) string {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString(fmt.Sprintf("  bgcolor=%q;\n", spec.Branding.Background))
	if spec.Slide.Title != "" {
		buf.WriteString(fmt.Sprintf("  label=%q;\n", spec.Slide.Title))
		buf.WriteString(fmt.Sprintf("  fontcolor=%q;\n", spec.Branding.TextColor))
		buf.WriteString("  fontsize=40;\n")
		buf.WriteString("  labelloc=\"t\";\n")
	}
	buf.WriteString(fmt.Sprintf(
		"  node [shape=box, style=\"rounded,filled\", fillcolor=%q, fontcolor=%q, fontsize=28, margin=\"0.4,0.25\"];\n",
		spec.Branding.Primary, spec.Branding.TextColor))
	buf.WriteString(fmt.Sprintf("  edge [color=%q, penwidth=2];\n", spec.Branding.Secondary))

	switch spec.Slide.Type {
	case slide.TypeComparison:
		writeComparison(&buf, spec)
	default:
		writeProcess(&buf, spec)
	}

	buf.WriteString("}\n")
	return buf.String()
}

// writeProcess emits a top-to-bottom step chain.
func writeProcess(buf *bytes.Buffer, spec backend.RenderSpec) {
	buf.WriteString("  rankdir=TB;\n  ranksep=0.6;\n")
	items := spec.Slide.Items
	if len(items) == 0 {
		items = []string{spec.Slide.Body}
	}
	for i, item := range items {
		fmt.Fprintf(buf, "  s%d [label=%q];\n", i, fmt.Sprintf("%d. %s", i+1, wrapLabel(item, 28)))
	}
	for i := 0; i+1 < len(items); i++ {
		fmt.Fprintf(buf, "  s%d -> s%d;\n", i, i+1)
	}
}

// writeComparison emits two parallel columns joined at a root.
func writeComparison(buf *bytes.Buffer, spec backend.RenderSpec) {
	buf.WriteString("  rankdir=LR;\n  ranksep=1.0;\n")
	left, right := spec.Slide.Body, spec.Slide.AltLabel
	if len(spec.Slide.Items) >= 2 {
		left, right = spec.Slide.Items[0], spec.Slide.Items[1]
	}
	fmt.Fprintf(buf, "  root [label=%q, fillcolor=%q];\n", "vs", spec.Branding.Secondary)
	fmt.Fprintf(buf, "  a [label=%q];\n", wrapLabel(left, 24))
	fmt.Fprintf(buf, "  b [label=%q];\n", wrapLabel(right, 24))
	buf.WriteString("  root -> a;\n  root -> b;\n")
}

// wrapLabel inserts line breaks so long copy stays inside a node.
func wrapLabel(s string, width int) string {
	words := strings.Fields(s)
	var lines []string
	var cur string
	for _, w := range words {
		if cur != "" && len(cur)+1+len(w) > width {
			lines = append(lines, cur)
			cur = w
			continue
		}
		if cur == "" {
			cur = w
		} else {
			cur += " " + w
		}
	}
	if cur != "" {
		lines = append(lines, cur)
	}
	return strings.Join(lines, "\n")
}

// renderDOT renders the DOT document to PNG through Graphviz.
func (b *Backend) renderDOT(ctx context.Context, spec backend.RenderSpec) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeAdapterCrash, err, "init graphviz")
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(toDOT(spec)))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "parse DOT")
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.PNG, &buf); err != nil {
		return nil, classifyExternal(ctx, err, "graphviz renderer")
	}
	return buf.Bytes(), nil
}
