// Package browser implements the browser-automation backend: slides are
// rendered as an HTML document in one shared headless browser process and
// captured as raster screenshots.
//
// The process itself is owned by a Surface, acquired once per orchestrator
// run. Each Render call opens a fresh tab, injects the generated document,
// waits for the content-ready condition, and screenshots the viewport at
// the exact target dimensions.
package browser

import (
	"context"
	"encoding/base64"
	stderr "errors"

	"github.com/chromedp/chromedp"

	"github.com/mbaylis/slideforge/pkg/backend"
	"github.com/mbaylis/slideforge/pkg/errors"
	"github.com/mbaylis/slideforge/pkg/slide"
)

// readySelector is the element the renderer waits for before capturing.
// The generated document attaches it last, after fonts have settled.
const readySelector = "#slide-root"

// Backend renders slides via the shared browser surface.
type Backend struct {
	surface *Surface
}

// New creates the browser backend on top of an existing surface. The
// backend never starts or stops the surface itself; the orchestrator owns
// that lifecycle.
func New(surface *Surface) *Backend {
	return &Backend{surface: surface}
}

// ID returns the backend identifier.
func (b *Backend) ID() backend.ID { return backend.Browser }

// Supports reports support for the text-first slide types. Chart-shaped
// slides are declined outright, so even a hint cannot route them here;
// they belong to the grammar backend or the composer fallback.
func (b *Backend) Supports(t slide.Type) bool {
	return t.Valid() && t != slide.TypeData
}

// Render injects the slide document into a fresh tab and captures it.
// A dead browser process surfaces as ADAPTER_CRASH; the orchestrator
// restarts the surface before the next attempt. A missed deadline
// surfaces as ADAPTER_TIMEOUT.
func (b *Backend) Render(ctx context.Context, spec backend.RenderSpec) (*backend.Artifact, error) {
	tabCtx, cancel, err := b.surface.Tab()
	if err != nil {
		return nil, err
	}
	defer cancel()

	// Propagate the caller's render budget onto the tab context. chromedp
	// contexts must chain from the browser context, so the deadline is
	// re-applied rather than inherited.
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		tabCtx, cancelDeadline = context.WithDeadline(tabCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	doc, err := slideDocument(spec)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "build slide document")
	}
	url := "data:text/html;base64," + base64.StdEncoding.EncodeToString(doc)

	var shot []byte
	err = chromedp.Run(tabCtx,
		chromedp.EmulateViewport(int64(spec.Width), int64(spec.Height)),
		chromedp.Navigate(url),
		chromedp.WaitReady(readySelector, chromedp.ByID),
		chromedp.CaptureScreenshot(&shot),
	)
	if err != nil {
		return nil, b.classify(ctx, err)
	}

	return &backend.Artifact{Data: shot, Backend: b.ID()}, nil
}

// classify maps a chromedp failure onto the adapter error taxonomy.
func (b *Backend) classify(ctx context.Context, err error) error {
	if stderr.Is(err, context.DeadlineExceeded) || stderr.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.Wrap(errors.ErrCodeAdapterTimeout, err, "render exceeded its time budget")
	}
	if !b.surface.Healthy() {
		return errors.Wrap(errors.ErrCodeAdapterCrash, err, "browser process died mid-render")
	}
	// Navigation or capture failed with the process still alive. Treat as
	// a crash-class failure so a fresh process backs the next attempt.
	return errors.Wrap(errors.ErrCodeAdapterCrash, err, "browser render failed")
}
