// Package composer implements the static-composer backend: pure-Go canvas
// rendering with no external process. It supports every slide type, which
// makes it the router's fallback of last resort, and renders at the exact
// target dimensions so no resampling step is needed.
package composer

import (
	"bytes"
	"context"
	"fmt"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"

	"github.com/mbaylis/slideforge/pkg/backend"
	"github.com/mbaylis/slideforge/pkg/errors"
	"github.com/mbaylis/slideforge/pkg/slide"
)

// Composer renders slides onto a gg canvas with a system truetype font.
// One Composer is safe for sequential reuse; each Render call builds a
// fresh drawing context, so no state crosses calls.
type Composer struct {
	font *truetype.Font
}

// New creates the composer backend, locating a system font up front so
// font problems surface at registry build time rather than mid-batch.
func New() (*Composer, error) {
	f, err := loadFont()
	if err != nil {
		return nil, fmt.Errorf("composer backend: %w", err)
	}
	return &Composer{font: f}, nil
}

// ID returns the backend identifier.
func (c *Composer) ID() backend.ID { return backend.StaticComposer }

// Supports reports support for every slide type. The composer is the
// universal fallback.
func (c *Composer) Supports(t slide.Type) bool { return t.Valid() }

// Render draws the slide and encodes it as PNG.
func (c *Composer) Render(ctx context.Context, spec backend.RenderSpec) (*backend.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeAdapterTimeout, err, "composer render cancelled")
	}

	dc := gg.NewContextForImage(c.background(spec).Image())

	c.drawChrome(dc, spec)
	switch spec.Slide.Type {
	case slide.TypeStat:
		c.drawStat(dc, spec)
	case slide.TypeData:
		c.drawData(dc, spec)
	case slide.TypeTips, slide.TypeChecklist, slide.TypeProcess:
		c.drawList(dc, spec)
	case slide.TypeComparison:
		c.drawComparison(dc, spec)
	case slide.TypeQuote:
		c.drawQuote(dc, spec)
	default:
		c.drawTitleBody(dc, spec)
	}

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeAdapterTimeout, err, "composer render cancelled")
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "encode png")
	}
	return &backend.Artifact{Data: buf.Bytes(), Backend: c.ID()}, nil
}

// background paints the branded backdrop: base color, two accent discs,
// then a blur so text stays readable on top.
func (c *Composer) background(spec backend.RenderSpec) *gg.Context {
	w, h := spec.Width, spec.Height
	dc := gg.NewContext(w, h)
	dc.SetHexColor(spec.Branding.Background)
	dc.Clear()

	dc.SetHexColor(spec.Branding.Primary)
	dc.DrawCircle(float64(w)*0.85, float64(h)*0.12, float64(w)*0.35)
	dc.Fill()
	dc.SetHexColor(spec.Branding.Secondary)
	dc.DrawCircle(float64(w)*0.08, float64(h)*0.92, float64(w)*0.28)
	dc.Fill()

	blurred := imaging.Blur(dc.Image(), 60)
	out := gg.NewContextForImage(blurred)

	// Darken for contrast
	out.SetRGBA(0, 0, 0, 0.35)
	out.DrawRectangle(0, 0, float64(w), float64(h))
	out.Fill()
	return out
}

// drawChrome draws the handle, page counter, and footer shared by all types.
func (c *Composer) drawChrome(dc *gg.Context, spec backend.RenderSpec) {
	w := float64(spec.Width)
	h := float64(spec.Height)
	margin := w * 0.06

	dc.SetFontFace(face(c.font, 30))
	dc.SetHexColor(spec.Branding.TextColor)
	dc.DrawStringAnchored(spec.Branding.Handle, margin, margin, 0, 0.5)
	dc.DrawStringAnchored(
		fmt.Sprintf("%d/%d", spec.Slide.SlideNumber, spec.Slide.TotalSlides),
		w-margin, margin, 1, 0.5)

	dc.SetFontFace(face(c.font, 24))
	dc.DrawStringAnchored(spec.Branding.Footer, w/2, h-margin*0.6, 0.5, 0.5)
}

// drawTitleBody is the generic layout for hook, myth, and cta slides.
func (c *Composer) drawTitleBody(dc *gg.Context, spec backend.RenderSpec) {
	w := float64(spec.Width)
	h := float64(spec.Height)
	margin := w * 0.1

	dc.SetHexColor(spec.Branding.TextColor)
	dc.SetFontFace(face(c.font, 72))
	dc.DrawStringWrapped(spec.Slide.Title, w/2, h*0.38, 0.5, 0.5, w-2*margin, 1.25, gg.AlignCenter)

	if spec.Slide.Body != "" {
		dc.SetFontFace(face(c.font, 40))
		dc.DrawStringWrapped(spec.Slide.Body, w/2, h*0.62, 0.5, 0.5, w-2*margin, 1.35, gg.AlignCenter)
	}
}

// drawStat renders a single oversized number with supporting copy.
func (c *Composer) drawStat(dc *gg.Context, spec backend.RenderSpec) {
	w := float64(spec.Width)
	h := float64(spec.Height)
	margin := w * 0.1

	stat := formatStat(spec.Slide.StatValue, spec.Slide.StatUnit)
	dc.SetHexColor(spec.Branding.Secondary)
	dc.SetFontFace(face(c.font, 170))
	dc.DrawStringAnchored(stat, w/2, h*0.4, 0.5, 0.5)

	dc.SetHexColor(spec.Branding.TextColor)
	dc.SetFontFace(face(c.font, 44))
	dc.DrawStringWrapped(spec.Slide.Title, w/2, h*0.6, 0.5, 0.5, w-2*margin, 1.3, gg.AlignCenter)

	if spec.Slide.Source != "" {
		dc.SetFontFace(face(c.font, 26))
		dc.DrawStringAnchored("source: "+spec.Slide.Source, w/2, h*0.78, 0.5, 0.5)
	}
}

// drawData renders the chart natively: a titled bar chart from the spec.
func (c *Composer) drawData(dc *gg.Context, spec backend.RenderSpec) {
	// Chartless data slides fall back to the plain layout, which draws
	// its own title.
	if !spec.Slide.HasChartData() {
		c.drawTitleBody(dc, spec)
		return
	}

	w := float64(spec.Width)
	h := float64(spec.Height)
	margin := w * 0.1

	dc.SetHexColor(spec.Branding.TextColor)
	dc.SetFontFace(face(c.font, 52))
	dc.DrawStringWrapped(spec.Slide.Title, w/2, h*0.16, 0.5, 0.5, w-2*margin, 1.25, gg.AlignCenter)

	chart := spec.Slide.Chart
	maxVal := chart.Values[0]
	for _, v := range chart.Values {
		if v > maxVal {
			maxVal = v
		}
	}
	if maxVal <= 0 {
		maxVal = 1
	}

	plotTop := h * 0.28
	plotBottom := h * 0.78
	plotHeight := plotBottom - plotTop
	n := len(chart.Values)
	slot := (w - 2*margin) / float64(n)
	barWidth := slot * 0.6

	dc.SetFontFace(face(c.font, 26))
	for i, v := range chart.Values {
		barH := plotHeight * (v / maxVal)
		x := margin + float64(i)*slot + (slot-barWidth)/2
		y := plotBottom - barH

		dc.SetHexColor(spec.Branding.Primary)
		dc.DrawRoundedRectangle(x, y, barWidth, barH, barWidth*0.12)
		dc.Fill()

		dc.SetHexColor(spec.Branding.TextColor)
		dc.DrawStringAnchored(formatStat(v, chart.Unit), x+barWidth/2, y-22, 0.5, 0.5)
		if i < len(chart.Labels) {
			dc.DrawStringWrapped(chart.Labels[i], x+barWidth/2, plotBottom+18, 0.5, 0, slot, 1.1, gg.AlignCenter)
		}
	}
}

// drawList renders tips, checklist, and process slides as numbered rows.
func (c *Composer) drawList(dc *gg.Context, spec backend.RenderSpec) {
	w := float64(spec.Width)
	h := float64(spec.Height)
	margin := w * 0.1

	dc.SetHexColor(spec.Branding.TextColor)
	dc.SetFontFace(face(c.font, 56))
	dc.DrawStringWrapped(spec.Slide.Title, w/2, h*0.18, 0.5, 0.5, w-2*margin, 1.25, gg.AlignCenter)

	items := spec.Slide.Items
	if len(items) == 0 && spec.Slide.Body != "" {
		items = []string{spec.Slide.Body}
	}

	marker := "•"
	if spec.Slide.Type == slide.TypeChecklist {
		marker = "✓"
	}

	y := h * 0.34
	step := (h*0.82 - y) / float64(max(len(items), 1))
	for i, item := range items {
		label := marker
		if spec.Slide.Type == slide.TypeProcess {
			label = fmt.Sprintf("%d.", i+1)
		}
		dc.SetHexColor(spec.Branding.Secondary)
		dc.SetFontFace(face(c.font, 40))
		dc.DrawStringAnchored(label, margin, y, 0, 0.5)

		dc.SetHexColor(spec.Branding.TextColor)
		dc.SetFontFace(face(c.font, 36))
		dc.DrawStringWrapped(item, margin+w*0.08, y, 0, 0.5, w-2*margin-w*0.08, 1.2, gg.AlignLeft)
		y += step
	}
}

// drawComparison splits the canvas into two labeled halves.
func (c *Composer) drawComparison(dc *gg.Context, spec backend.RenderSpec) {
	w := float64(spec.Width)
	h := float64(spec.Height)
	margin := w * 0.08

	dc.SetHexColor(spec.Branding.TextColor)
	dc.SetFontFace(face(c.font, 52))
	dc.DrawStringWrapped(spec.Slide.Title, w/2, h*0.16, 0.5, 0.5, w-2*margin, 1.25, gg.AlignCenter)

	dc.SetLineWidth(3)
	dc.SetHexColor(spec.Branding.Secondary)
	dc.DrawLine(w/2, h*0.28, w/2, h*0.8)
	dc.Stroke()

	left, right := spec.Slide.Body, spec.Slide.AltLabel
	if len(spec.Slide.Items) >= 2 {
		left, right = spec.Slide.Items[0], spec.Slide.Items[1]
	}

	colWidth := w/2 - margin - w*0.04
	dc.SetHexColor(spec.Branding.TextColor)
	dc.SetFontFace(face(c.font, 36))
	dc.DrawStringWrapped(left, margin+colWidth/2, h*0.52, 0.5, 0.5, colWidth, 1.3, gg.AlignCenter)
	dc.DrawStringWrapped(right, w/2+w*0.04+colWidth/2, h*0.52, 0.5, 0.5, colWidth, 1.3, gg.AlignCenter)
}

// drawQuote renders a large quotation mark, the quote, and attribution.
func (c *Composer) drawQuote(dc *gg.Context, spec backend.RenderSpec) {
	w := float64(spec.Width)
	h := float64(spec.Height)
	margin := w * 0.1

	dc.SetHexColor(spec.Branding.Secondary)
	dc.SetFontFace(face(c.font, 180))
	dc.DrawStringAnchored("“", margin, h*0.24, 0, 0.5)

	dc.SetHexColor(spec.Branding.TextColor)
	dc.SetFontFace(face(c.font, 48))
	dc.DrawStringWrapped(spec.Slide.Body, w/2, h*0.48, 0.5, 0.5, w-2*margin, 1.35, gg.AlignCenter)

	if spec.Slide.Source != "" {
		dc.SetFontFace(face(c.font, 32))
		dc.DrawStringAnchored("— "+spec.Slide.Source, w/2, h*0.72, 0.5, 0.5)
	}
}

// formatStat renders a stat value compactly: integers without decimals,
// everything else with one.
func formatStat(v float64, unit string) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d%s", int64(v), unit)
	}
	return fmt.Sprintf("%.1f%s", v, unit)
}
