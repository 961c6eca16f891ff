// Package grammar implements the declarative-grammar backend. Slides are
// serialized into a declarative specification and handed to an external
// renderer: Vega-Lite (via the vl-convert binary) for data slides, and
// Graphviz DOT for process and comparison diagrams.
//
// The raw chart output rarely matches the target canvas exactly, so the
// backend letterboxes it onto a branded background at the exact target
// dimensions before returning.
package grammar

import (
	"bytes"
	"context"
	stderr "errors"
	"image/color"
	"os/exec"

	"github.com/disintegration/imaging"

	"github.com/mbaylis/slideforge/pkg/backend"
	"github.com/mbaylis/slideforge/pkg/errors"
	"github.com/mbaylis/slideforge/pkg/slide"
)

// Backend renders chart- and diagram-shaped slides from declarative specs.
type Backend struct {
	vegaAvailable bool
}

// New creates the grammar backend. Availability of the external Vega-Lite
// renderer is probed once here, not at call time: if vl-convert is not on
// PATH, the backend simply does not declare support for data slides and
// the router falls back.
func New() *Backend {
	_, err := exec.LookPath(vegaBinary)
	return &Backend{vegaAvailable: err == nil}
}

// ID returns the backend identifier.
func (b *Backend) ID() backend.ID { return backend.Grammar }

// Supports declares the diagram-shaped slide types. Data slides need the
// external Vega-Lite renderer; process and comparison diagrams render
// in-process through Graphviz.
func (b *Backend) Supports(t slide.Type) bool {
	switch t {
	case slide.TypeData:
		return b.vegaAvailable
	case slide.TypeProcess, slide.TypeComparison:
		return true
	}
	return false
}

// Render serializes the slide to its grammar, invokes the renderer, and
// composes the result onto the exact target canvas.
func (b *Backend) Render(ctx context.Context, spec backend.RenderSpec) (*backend.Artifact, error) {
	var chart []byte
	var err error

	switch spec.Slide.Type {
	case slide.TypeData:
		chart, err = b.renderVega(ctx, spec)
	case slide.TypeProcess, slide.TypeComparison:
		chart, err = b.renderDOT(ctx, spec)
	default:
		return nil, errors.New(errors.ErrCodeUnsupported,
			"grammar backend does not serve slide type %q", spec.Slide.Type)
	}
	if err != nil {
		return nil, err
	}

	data, err := b.compose(chart, spec)
	if err != nil {
		return nil, err
	}
	return &backend.Artifact{Data: data, Backend: b.ID()}, nil
}

// compose letterboxes the chart onto a branded canvas at exactly
// spec.Width × spec.Height.
func (b *Backend) compose(chart []byte, spec backend.RenderSpec) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(chart))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "decode chart output")
	}

	bg := imaging.New(spec.Width, spec.Height, hexColor(spec.Branding.Background))
	fitted := imaging.Fit(img, int(float64(spec.Width)*0.9), int(float64(spec.Height)*0.82), imaging.Lanczos)
	out := imaging.PasteCenter(bg, fitted)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.PNG); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "encode canvas")
	}
	return buf.Bytes(), nil
}

// classifyExternal maps an external-renderer failure onto the taxonomy.
func classifyExternal(ctx context.Context, err error, what string) error {
	if stderr.Is(err, context.DeadlineExceeded) || stderr.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.Wrap(errors.ErrCodeAdapterTimeout, err, "%s exceeded its time budget", what)
	}
	return errors.Wrap(errors.ErrCodeAdapterCrash, err, "%s failed", what)
}

// hexColor parses "#RRGGBB" (or "#RGB"); unparseable input degrades to a
// dark neutral rather than failing the render.
func hexColor(s string) color.Color {
	fallback := color.NRGBA{R: 0x10, G: 0x16, B: 0x24, A: 0xFF}
	if len(s) == 0 || s[0] != '#' {
		return fallback
	}
	hex := s[1:]
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return fallback
	}
	var out [3]uint8
	for i := 0; i < 3; i++ {
		hi, ok1 := hexNibble(hex[i*2])
		lo, ok2 := hexNibble(hex[i*2+1])
		if !ok1 || !ok2 {
			return fallback
		}
		out[i] = hi<<4 | lo
	}
	return color.NRGBA{R: out[0], G: out[1], B: out[2], A: 0xFF}
}

func hexNibble(c byte) (uint8, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
