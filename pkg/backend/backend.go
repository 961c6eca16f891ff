// Package backend defines the rendering backend contract and the
// capability registry queried by the router.
//
// A backend turns one RenderSpec into one raster Artifact. Backends are
// independent and swappable: the orchestrator only depends on the Renderer
// interface and the registry, never on a concrete implementation.
package backend

import (
	"context"

	"github.com/mbaylis/slideforge/pkg/slide"
)

// ID identifies a rendering backend in the registry and in reports.
type ID string

// Known backend IDs. The concrete implementations live in the browser,
// grammar, and composer subpackages.
const (
	Browser        ID = "browser"
	Grammar        ID = "grammar"
	StaticComposer ID = "composer"
)

// RenderSpec bundles everything a backend needs for one render call: the
// slide data, the template identifier, branding, and the exact pixel
// dimensions of the target ratio.
type RenderSpec struct {
	Slide    slide.Content
	Template string
	Branding slide.Branding
	Ratio    slide.Ratio
	Width    int
	Height   int
}

// NewRenderSpec builds a spec for a (slide, ratio) pair, resolving the
// ratio to exact pixel dimensions.
func NewRenderSpec(s slide.Content, template string, branding slide.Branding, ratio slide.Ratio) RenderSpec {
	w, h := ratio.Dimensions()
	return RenderSpec{
		Slide:    s,
		Template: template,
		Branding: branding,
		Ratio:    ratio,
		Width:    w,
		Height:   h,
	}
}

// Artifact is the raw output of one render call. The orchestrator writes
// it to disk and runs it through the validator; a backend returning bytes
// is not by itself a success.
type Artifact struct {
	Data    []byte
	Backend ID
}

// Renderer is the contract every backend satisfies.
//
// Render must be idempotent per call: no backend accumulates cross-call
// state visible to the caller. The context carries the per-render timeout;
// exceeding it must surface as an ADAPTER_TIMEOUT error, a dead external
// process as ADAPTER_CRASH (see the errors package).
type Renderer interface {
	// ID returns the backend's registry identifier.
	ID() ID

	// Supports reports whether the backend can render the given slide type.
	Supports(t slide.Type) bool

	// Render produces the raster bytes for the spec. Blocking I/O (process
	// spawn, content-ready wait) must honor ctx cancellation.
	Render(ctx context.Context, spec RenderSpec) (*Artifact, error)
}
