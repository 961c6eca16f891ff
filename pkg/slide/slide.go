// Package slide defines the content model handed to the rendering
// orchestrator: individual slides, carousel jobs, templates, and branding.
//
// Slides are produced by an upstream content engine and are read-only
// inputs here. The orchestrator never mutates them; it only routes them to
// a rendering backend and records the outcome.
package slide

import (
	"fmt"

	"github.com/mbaylis/slideforge/pkg/errors"
)

// Type identifies the content shape of a slide. The set is fixed: every
// type maps to exactly one default backend at routing time.
type Type string

// Slide types produced by the content engine.
const (
	TypeHook       Type = "hook"
	TypeMyth       Type = "myth"
	TypeStat       Type = "stat"
	TypeTips       Type = "tips"
	TypeCTA        Type = "cta"
	TypeData       Type = "data"
	TypeProcess    Type = "process"
	TypeComparison Type = "comparison"
	TypeChecklist  Type = "checklist"
	TypeQuote      Type = "quote"
)

// Types lists all valid slide types in a stable order.
var Types = []Type{
	TypeHook, TypeMyth, TypeStat, TypeTips, TypeCTA,
	TypeData, TypeProcess, TypeComparison, TypeChecklist, TypeQuote,
}

// Valid reports whether t is one of the known slide types.
func (t Type) Valid() bool {
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}

// Ratio is the target pixel-dimension profile for an output image.
type Ratio string

// Supported target ratios.
const (
	RatioSquare   Ratio = "1x1" // 1080×1080, feed square
	RatioPortrait Ratio = "4x5" // 1080×1350, feed portrait
)

// Dimensions returns the exact pixel width and height for the ratio.
// Outputs must match these dimensions exactly to pass validation.
func (r Ratio) Dimensions() (width, height int) {
	switch r {
	case RatioPortrait:
		return 1080, 1350
	default:
		return 1080, 1080
	}
}

// Valid reports whether r is a supported ratio.
func (r Ratio) Valid() bool {
	return r == RatioSquare || r == RatioPortrait
}

// ParseRatio converts a CLI ratio string ("1:1", "4:5", "1x1", "4x5") to a Ratio.
func ParseRatio(s string) (Ratio, error) {
	switch s {
	case "1:1", "1x1", "square":
		return RatioSquare, nil
	case "4:5", "4x5", "portrait":
		return RatioPortrait, nil
	}
	return "", errors.New(errors.ErrCodeInvalidRatio, "invalid ratio: %q (must be 1:1 or 4:5)", s)
}

// ChartSpec describes an optional chart for data slides. The grammar
// backend serializes it into a declarative chart specification; the static
// composer draws it natively.
type ChartSpec struct {
	Kind   string    `json:"kind"` // "bar", "line", or "donut"
	Labels []string  `json:"labels"`
	Values []float64 `json:"values"`
	Unit   string    `json:"unit,omitempty"`
}

// Content is the immutable description of one slide. The field bag is
// type-specific: a stat slide fills StatValue, a tips slide fills Items,
// and so on. Unused fields stay zero.
type Content struct {
	Type Type `json:"type"`

	// Text fields
	Title    string   `json:"title,omitempty"`
	Body     string   `json:"body,omitempty"`
	Items    []string `json:"items,omitempty"` // tips/checklist/process entries
	Source   string   `json:"source,omitempty"`
	Icon     string   `json:"icon,omitempty"` // icon reference, opaque to the orchestrator
	AltLabel string   `json:"alt_label,omitempty"`

	// Numeric fields
	StatValue float64 `json:"stat_value,omitempty"`
	StatUnit  string  `json:"stat_unit,omitempty"`

	// Optional chart for data slides
	Chart *ChartSpec `json:"chart,omitempty"`

	// Position within the carousel, 1-based
	SlideNumber int `json:"slide_number"`
	TotalSlides int `json:"total_slides"`

	// BackendHint names a preferred backend. It is honored only when that
	// backend is registered and capable of this slide type.
	BackendHint string `json:"backend_hint,omitempty"`
}

// HasChartData reports whether the slide carries a usable chart spec.
func (c *Content) HasChartData() bool {
	return c.Chart != nil && len(c.Chart.Values) > 0
}

// Validate checks the structural invariants of a slide.
func (c *Content) Validate() error {
	if !c.Type.Valid() {
		return errors.New(errors.ErrCodeInvalidSlide, "unknown slide type: %q", c.Type)
	}
	if c.SlideNumber < 1 {
		return errors.New(errors.ErrCodeInvalidSlide, "slide number must be >= 1, got %d", c.SlideNumber)
	}
	if c.TotalSlides < c.SlideNumber {
		return errors.New(errors.ErrCodeInvalidSlide,
			"slide number %d exceeds total %d", c.SlideNumber, c.TotalSlides)
	}
	if c.Chart != nil && len(c.Chart.Labels) != len(c.Chart.Values) {
		return errors.New(errors.ErrCodeInvalidSlide,
			"chart has %d labels but %d values", len(c.Chart.Labels), len(c.Chart.Values))
	}
	return nil
}

// String returns a short identifier for logs, e.g. "slide 3/7 (stat)".
func (c *Content) String() string {
	return fmt.Sprintf("slide %d/%d (%s)", c.SlideNumber, c.TotalSlides, c.Type)
}
