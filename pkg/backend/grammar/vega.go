package grammar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/mbaylis/slideforge/pkg/backend"
	"github.com/mbaylis/slideforge/pkg/errors"
)

// vegaBinary is the external Vega-Lite renderer.
// Install with: cargo install vl-convert, or download a release binary.
const vegaBinary = "vl-convert"

// vegaLiteSpec is the subset of the Vega-Lite grammar the backend emits.
type vegaLiteSpec struct {
	Schema      string         `json:"$schema"`
	Title       *vegaTitle     `json:"title,omitempty"`
	Width       int            `json:"width"`
	Height      int            `json:"height"`
	Background  string         `json:"background"`
	Data        vegaData       `json:"data"`
	Mark        vegaMark       `json:"mark"`
	Encoding    vegaEncoding   `json:"encoding"`
	ConfigBlock map[string]any `json:"config,omitempty"`
}

type vegaTitle struct {
	Text     string `json:"text"`
	Color    string `json:"color,omitempty"`
	FontSize int    `json:"fontSize,omitempty"`
}

type vegaData struct {
	Values []vegaRow `json:"values"`
}

type vegaRow struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

type vegaMark struct {
	Type         string `json:"type"`
	CornerRadius int    `json:"cornerRadiusEnd,omitempty"`
	Color        string `json:"color,omitempty"`
}

type vegaEncoding struct {
	X vegaChannel `json:"x"`
	Y vegaChannel `json:"y"`
}

type vegaChannel struct {
	Field string    `json:"field"`
	Type  string    `json:"type"`
	Axis  *vegaAxis `json:"axis,omitempty"`
}

type vegaAxis struct {
	LabelColor string `json:"labelColor,omitempty"`
	LabelAngle int    `json:"labelAngle"`
	Title      string `json:"title,omitempty"`
}

// buildVegaSpec serializes the slide's chart into a Vega-Lite document.
func buildVegaSpec(spec backend.RenderSpec) ([]byte, error) {
	chart := spec.Slide.Chart
	if chart == nil || len(chart.Values) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidSlide, "data slide has no chart data")
	}

	mark := "bar"
	switch chart.Kind {
	case "line":
		mark = "line"
	case "donut", "arc":
		mark = "arc"
	}

	rows := make([]vegaRow, len(chart.Values))
	for i, v := range chart.Values {
		label := fmt.Sprintf("#%d", i+1)
		if i < len(chart.Labels) {
			label = chart.Labels[i]
		}
		rows[i] = vegaRow{Label: label, Value: v}
	}

	vl := vegaLiteSpec{
		Schema:     "https://vega.github.io/schema/vega-lite/v5.json",
		Width:      spec.Width - 240,
		Height:     spec.Height / 2,
		Background: spec.Branding.Background,
		Data:       vegaData{Values: rows},
		Mark:       vegaMark{Type: mark, CornerRadius: 6, Color: spec.Branding.Primary},
		Encoding: vegaEncoding{
			X: vegaChannel{Field: "label", Type: "nominal",
				Axis: &vegaAxis{LabelColor: spec.Branding.TextColor, LabelAngle: 0}},
			Y: vegaChannel{Field: "value", Type: "quantitative",
				Axis: &vegaAxis{LabelColor: spec.Branding.TextColor, Title: spec.Slide.Chart.Unit}},
		},
	}
	if spec.Slide.Title != "" {
		vl.Title = &vegaTitle{Text: spec.Slide.Title, Color: spec.Branding.TextColor, FontSize: 40}
	}
	return json.Marshal(vl)
}

// renderVega writes the spec to a temp file and shells out to vl-convert,
// the same way the PNG/PDF export path shells out to its converter.
func (b *Backend) renderVega(ctx context.Context, spec backend.RenderSpec) ([]byte, error) {
	if _, err := exec.LookPath(vegaBinary); err != nil {
		return nil, errors.Wrap(errors.ErrCodeAdapterCrash, err,
			"data slides require %s. Install with:\n  cargo install vl-convert", vegaBinary)
	}

	doc, err := buildVegaSpec(spec)
	if err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp("", "slideforge-vega-")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "create temp dir")
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "chart.vl.json")
	out := filepath.Join(dir, "chart.png")
	if err := os.WriteFile(in, doc, 0644); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "write chart spec")
	}

	cmd := exec.CommandContext(ctx, vegaBinary, "vl2png", "--input", in, "--output", out, "--scale", "2")
	var errBuf bytes.Buffer
	cmd.Stderr = &errBuf

	if err := cmd.Run(); err != nil {
		if errBuf.Len() > 0 {
			err = fmt.Errorf("%w: %s", err, errBuf.String())
		}
		return nil, classifyExternal(ctx, err, "vega-lite renderer")
	}

	data, err := os.ReadFile(out)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeAdapterCrash, err, "vega-lite renderer produced no output")
	}
	return data, nil
}
