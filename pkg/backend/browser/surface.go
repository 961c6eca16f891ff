package browser

import (
	"context"
	"os/exec"
	"sync"

	"github.com/chromedp/chromedp"

	"github.com/mbaylis/slideforge/pkg/errors"
)

// browserBinaries are the executables probed by Available, in order.
var browserBinaries = []string{
	"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "headless-shell",
}

// Available reports whether a supported browser binary is on PATH. The
// registry consults this once at startup so routing decisions never flip
// mid-run.
func Available() bool {
	for _, bin := range browserBinaries {
		if _, err := exec.LookPath(bin); err == nil {
			return true
		}
	}
	return false
}

// Surface owns the one headless browser process shared by every render in
// an orchestrator run. It is acquired before the first render and released
// after the last; a crashed process is detected and replaced before the
// next attempt, never silently reused.
//
// All lifecycle methods are safe for concurrent use; render tabs are
// created per call and do not share state.
type Surface struct {
	mu sync.Mutex

	allocCtx    context.Context
	allocCancel context.CancelFunc

	browserCtx    context.Context
	browserCancel context.CancelFunc

	opts []chromedp.ExecAllocatorOption
}

// NewSurface builds an unacquired surface. Call Acquire before rendering.
func NewSurface() *Surface {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("force-device-scale-factor", "1"),
		chromedp.Flag("disable-lcd-text", true),
	)
	return &Surface{opts: opts}
}

// Acquire launches the browser process. Calling Acquire on a healthy
// surface is a no-op.
func (s *Surface) Acquire(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.healthyLocked() {
		return nil
	}
	return s.startLocked(ctx)
}

// startLocked tears down any previous process and spawns a fresh one.
func (s *Surface) startLocked(ctx context.Context) error {
	s.releaseLocked()

	s.allocCtx, s.allocCancel = chromedp.NewExecAllocator(context.WithoutCancel(ctx), s.opts...)
	s.browserCtx, s.browserCancel = chromedp.NewContext(s.allocCtx)

	// Running an empty task forces the process to start now, so launch
	// failures surface at acquire time instead of on the first slide.
	if err := chromedp.Run(s.browserCtx); err != nil {
		s.releaseLocked()
		return errors.Wrap(errors.ErrCodeAdapterCrash, err, "launch browser")
	}
	return nil
}

// Healthy reports whether the browser process is still alive. chromedp
// cancels the browser context when the process exits, so a done context
// means a dead process.
func (s *Surface) Healthy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.healthyLocked()
}

func (s *Surface) healthyLocked() bool {
	return s.browserCtx != nil && s.browserCtx.Err() == nil
}

// Restart replaces a dead (or live) browser process with a fresh one.
func (s *Surface) Restart(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startLocked(ctx)
}

// Tab returns a fresh browser tab context for one render, derived from the
// shared process. The caller must invoke the returned cancel function.
func (s *Surface) Tab() (context.Context, context.CancelFunc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.healthyLocked() {
		return nil, nil, errors.New(errors.ErrCodeAdapterCrash, "browser surface is not running")
	}
	tabCtx, cancel := chromedp.NewContext(s.browserCtx)
	return tabCtx, cancel, nil
}

// Release terminates the browser process. Safe to call multiple times and
// on an unacquired surface.
func (s *Surface) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseLocked()
}

func (s *Surface) releaseLocked() {
	if s.browserCancel != nil {
		s.browserCancel()
		s.browserCancel = nil
		s.browserCtx = nil
	}
	if s.allocCancel != nil {
		s.allocCancel()
		s.allocCancel = nil
		s.allocCtx = nil
	}
}
