package batch

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/mbaylis/slideforge/pkg/backend"
	"github.com/mbaylis/slideforge/pkg/cache"
	"github.com/mbaylis/slideforge/pkg/errors"
	"github.com/mbaylis/slideforge/pkg/observability"
	"github.com/mbaylis/slideforge/pkg/slide"
)

// pngCache holds one valid noise PNG per dimension so tests don't re-encode
// a multi-megabyte image for every unit.
var (
	pngMu    sync.Mutex
	pngCache = map[string][]byte{}
)

// renderablePNG returns PNG bytes that pass the output validator for the
// given dimensions.
func renderablePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	pngMu.Lock()
	defer pngMu.Unlock()

	key := fmt.Sprintf("%dx%d", w, h)
	if data, ok := pngCache[key]; ok {
		return data
	}
	rng := rand.New(rand.NewSource(7))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	rng.Read(img.Pix)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	pngCache[key] = buf.Bytes()
	return pngCache[key]
}

// scriptedBackend renders successfully after a configurable number of
// failures, counting calls.
type scriptedBackend struct {
	id       backend.ID
	types    []slide.Type // nil means all valid types
	failures int          // initial failures before success
	failWith error        // error returned while failing
	badBytes []byte       // when set, successful calls return these instead of a valid PNG

	mu    sync.Mutex
	calls int
}

func (b *scriptedBackend) ID() backend.ID { return b.id }

func (b *scriptedBackend) Supports(t slide.Type) bool {
	if b.types == nil {
		return t.Valid()
	}
	for _, st := range b.types {
		if st == t {
			return true
		}
	}
	return false
}

func (b *scriptedBackend) Render(ctx context.Context, spec backend.RenderSpec) (*backend.Artifact, error) {
	b.mu.Lock()
	call := b.calls
	b.calls++
	b.mu.Unlock()

	if call < b.failures {
		return nil, b.failWith
	}
	if b.badBytes != nil {
		return &backend.Artifact{Data: b.badBytes, Backend: b.id}, nil
	}
	data := pngCache[fmt.Sprintf("%dx%d", spec.Width, spec.Height)]
	return &backend.Artifact{Data: data, Backend: b.id}, nil
}

func (b *scriptedBackend) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

// stubResource tracks the browser-surface lifecycle calls.
type stubResource struct {
	mu       sync.Mutex
	acquired int
	released int
	restarts int
}

func (r *stubResource) Acquire(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.acquired++
	return nil
}

func (r *stubResource) Restart(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.restarts++
	return nil
}

func (r *stubResource) Healthy() bool { return true }

func (r *stubResource) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.released++
}

func quietLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

func fastOptions(root string) Options {
	return Options{
		OutputRoot: root,
		Backoff:    []time.Duration{0, 0},
		Logger:     quietLogger(),
	}
}

func testJob(t *testing.T, topic string, ratios []slide.Ratio, slides ...slide.Content) *slide.Job {
	t.Helper()
	if len(slides) == 0 {
		slides = []slide.Content{
			{Type: slide.TypeHook, Title: topic, SlideNumber: 1, TotalSlides: 2},
			{Type: slide.TypeCTA, Title: "follow", SlideNumber: 2, TotalSlides: 2},
		}
	}
	job, err := slide.NewJob(topic, "tips_5", 1, slides, ratios)
	if err != nil {
		t.Fatal(err)
	}
	return job
}

func TestRunnerSuccess(t *testing.T) {
	renderablePNG(t, 1080, 1080)
	renderablePNG(t, 1080, 1350)

	be := &scriptedBackend{id: backend.Browser}
	res := &stubResource{}
	r := NewRunner(backend.NewRegistry(be), res, cache.NewNullCache(), quietLogger())

	root := t.TempDir()
	job := testJob(t, "sleep", []slide.Ratio{slide.RatioSquare, slide.RatioPortrait})

	report, err := r.Execute(context.Background(), []*slide.Job{job}, fastOptions(root))
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if report.SuccessCount() != 4 || report.UnitCount() != 4 {
		t.Fatalf("counts = %d/%d, want 4/4", report.SuccessCount(), report.UnitCount())
	}
	if len(report.Failed) != 0 {
		t.Errorf("Failed = %v", report.Failed)
	}
	if report.RunID == "" {
		t.Error("empty RunID")
	}

	// Output convention: batch-{timestamp}/carousel-NN/slide_NN_{ratio}.png
	wantFiles := []string{
		"slide_01_1x1.png", "slide_01_4x5.png",
		"slide_02_1x1.png", "slide_02_4x5.png",
	}
	dir := filepath.Join(report.OutputDir, "carousel-01")
	for _, name := range wantFiles {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing output %s: %v", name, err)
		}
	}

	if res.acquired != 1 || res.released != 1 {
		t.Errorf("resource acquired/released = %d/%d, want 1/1", res.acquired, res.released)
	}
}

func TestRunnerRetryThenSuccess(t *testing.T) {
	renderablePNG(t, 1080, 1080)

	be := &scriptedBackend{
		id:       backend.Browser,
		failures: 2,
		failWith: errors.New(errors.ErrCodeAdapterCrash, "browser died"),
	}
	res := &stubResource{}
	r := NewRunner(backend.NewRegistry(be), res, cache.NewNullCache(), quietLogger())

	job := testJob(t, "retry", []slide.Ratio{slide.RatioSquare},
		slide.Content{Type: slide.TypeHook, Title: "x", SlideNumber: 1, TotalSlides: 1})

	report, err := r.Execute(context.Background(), []*slide.Job{job}, fastOptions(t.TempDir()))
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}

	unit := report.Jobs[0].Results[0]
	if unit.Status != StatusSuccess {
		t.Fatalf("status = %s (%s)", unit.Status, unit.Error)
	}
	if len(unit.Attempts) != 3 {
		t.Errorf("attempts = %d, want 3", len(unit.Attempts))
	}
	if unit.ErrorKind != "" || unit.Error != "" {
		t.Errorf("success carries stale error: %s %q", unit.ErrorKind, unit.Error)
	}
	// Each crash replaces the external process before the next attempt.
	if res.restarts != 2 {
		t.Errorf("restarts = %d, want 2", res.restarts)
	}
}

func TestRunnerExhaustsAttempts(t *testing.T) {
	be := &scriptedBackend{
		id:       backend.Browser,
		failures: 99,
		failWith: errors.New(errors.ErrCodeAdapterTimeout, "render deadline exceeded"),
	}
	r := NewRunner(backend.NewRegistry(be), nil, cache.NewNullCache(), quietLogger())

	job := testJob(t, "timeout", []slide.Ratio{slide.RatioSquare},
		slide.Content{Type: slide.TypeHook, Title: "x", SlideNumber: 1, TotalSlides: 1})

	report, err := r.Execute(context.Background(), []*slide.Job{job}, fastOptions(t.TempDir()))
	if err != nil {
		t.Fatalf("unit failures must not fail the run: %v", err)
	}

	unit := report.Jobs[0].Results[0]
	if unit.Status != StatusFailed {
		t.Fatalf("status = %s", unit.Status)
	}
	if len(unit.Attempts) != DefaultMaxAttempts {
		t.Errorf("attempts = %d, want %d", len(unit.Attempts), DefaultMaxAttempts)
	}
	if be.callCount() != DefaultMaxAttempts {
		t.Errorf("backend calls = %d, want %d", be.callCount(), DefaultMaxAttempts)
	}
	if unit.ErrorKind != errors.ErrCodeAdapterTimeout {
		t.Errorf("ErrorKind = %s", unit.ErrorKind)
	}
	if len(report.Failed) != 1 {
		t.Errorf("Failed = %v", report.Failed)
	}
}

func TestRunnerValidationFailureRetried(t *testing.T) {
	// Undersized output: the adapter "succeeds" but validation fails, which
	// re-enters the retry machine exactly like a render failure.
	be := &scriptedBackend{id: backend.Browser, badBytes: []byte("tiny")}
	r := NewRunner(backend.NewRegistry(be), nil, cache.NewNullCache(), quietLogger())

	job := testJob(t, "blank", []slide.Ratio{slide.RatioSquare},
		slide.Content{Type: slide.TypeHook, Title: "x", SlideNumber: 1, TotalSlides: 1})

	report, err := r.Execute(context.Background(), []*slide.Job{job}, fastOptions(t.TempDir()))
	if err != nil {
		t.Fatal(err)
	}

	unit := report.Jobs[0].Results[0]
	if unit.Status != StatusFailed {
		t.Fatalf("status = %s", unit.Status)
	}
	if unit.ErrorKind != errors.ErrCodeValidationFailed {
		t.Errorf("ErrorKind = %s", unit.ErrorKind)
	}
	if be.callCount() != DefaultMaxAttempts {
		t.Errorf("backend calls = %d, want %d", be.callCount(), DefaultMaxAttempts)
	}
	if len(unit.Quality) == 0 {
		t.Error("validation failure should record quality reasons")
	}
	for _, att := range unit.Attempts {
		if att.Stage != "validate" {
			t.Errorf("attempt stage = %q, want validate", att.Stage)
		}
	}
}

func TestRunnerRoutingFailureNotRetried(t *testing.T) {
	renderablePNG(t, 1080, 1080)

	// The only backend cannot serve quote slides, and there is no composer
	// to fall back to: the quote unit fails closed without an attempt.
	be := &scriptedBackend{id: backend.Browser, types: []slide.Type{slide.TypeHook}}
	r := NewRunner(backend.NewRegistry(be), nil, cache.NewNullCache(), quietLogger())

	job := testJob(t, "mixed", []slide.Ratio{slide.RatioSquare},
		slide.Content{Type: slide.TypeHook, Title: "ok", SlideNumber: 1, TotalSlides: 2},
		slide.Content{Type: slide.TypeQuote, Body: "nope", SlideNumber: 2, TotalSlides: 2},
	)

	report, err := r.Execute(context.Background(), []*slide.Job{job}, fastOptions(t.TempDir()))
	if err != nil {
		t.Fatal(err)
	}

	results := report.Jobs[0].Results
	if results[0].Status != StatusSuccess {
		t.Errorf("hook unit = %s (%s)", results[0].Status, results[0].Error)
	}
	quote := results[1]
	if quote.Status != StatusFailed {
		t.Fatalf("quote unit = %s", quote.Status)
	}
	if quote.ErrorKind != errors.ErrCodeRoutingFailed {
		t.Errorf("ErrorKind = %s", quote.ErrorKind)
	}
	if len(quote.Attempts) != 0 {
		t.Errorf("routing failures must not be retried, got %d attempts", len(quote.Attempts))
	}
}

func TestRunnerPartialBatch(t *testing.T) {
	renderablePNG(t, 1080, 1080)

	// Backend that crashes on slides titled "FAIL" and renders the rest.
	be := &failByTitleBackend{}
	r := NewRunner(backend.NewRegistry(be), nil, cache.NewNullCache(), quietLogger())

	bad := testJob(t, "bad", []slide.Ratio{slide.RatioSquare},
		slide.Content{Type: slide.TypeHook, Title: "FAIL", SlideNumber: 1, TotalSlides: 1})
	good := testJob(t, "good", []slide.Ratio{slide.RatioSquare},
		slide.Content{Type: slide.TypeHook, Title: "ok", SlideNumber: 1, TotalSlides: 1})

	report, err := r.Execute(context.Background(), []*slide.Job{bad, good}, fastOptions(t.TempDir()))
	if err != nil {
		t.Fatalf("partial failure must not fail the run: %v", err)
	}

	if report.Jobs[0].Results[0].Status != StatusFailed {
		t.Error("carousel 1 should fail")
	}
	if report.Jobs[1].Results[0].Status != StatusSuccess {
		t.Error("carousel 2 should succeed despite carousel 1")
	}
	if len(report.Failed) != 1 || report.Failed[0].Carousel != 1 {
		t.Errorf("Failed = %v", report.Failed)
	}

	// The report file is written even for a partially failed batch.
	if _, err := report.Write(); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(report.OutputDir, ReportFilename)); err != nil {
		t.Errorf("report.json missing: %v", err)
	}
}

func TestRunnerAbortOnFailure(t *testing.T) {
	be := &failByTitleBackend{}
	r := NewRunner(backend.NewRegistry(be), nil, cache.NewNullCache(), quietLogger())

	bad := testJob(t, "bad", []slide.Ratio{slide.RatioSquare},
		slide.Content{Type: slide.TypeHook, Title: "FAIL", SlideNumber: 1, TotalSlides: 1})
	never := testJob(t, "never", []slide.Ratio{slide.RatioSquare},
		slide.Content{Type: slide.TypeHook, Title: "ok", SlideNumber: 1, TotalSlides: 1})

	opts := fastOptions(t.TempDir())
	opts.AbortOnFailure = true

	report, err := r.Execute(context.Background(), []*slide.Job{bad, never}, opts)
	if err != nil {
		t.Fatal(err)
	}

	skipped := report.Jobs[1].Results[0]
	if skipped.Status != StatusSkipped {
		t.Errorf("second carousel = %s, want skipped", skipped.Status)
	}
	// Skipped units still appear in the failed list: nothing is dropped.
	if len(report.Failed) != 2 {
		t.Errorf("Failed = %v, want both units recorded", report.Failed)
	}
}

func TestRunnerCacheHit(t *testing.T) {
	data := renderablePNG(t, 1080, 1080)

	// A backend that always fails: only the cache can satisfy the unit.
	be := &scriptedBackend{
		id:       backend.Browser,
		failures: 99,
		failWith: errors.New(errors.ErrCodeAdapterCrash, "no rendering today"),
	}
	store, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	r := NewRunner(backend.NewRegistry(be), nil, store, quietLogger())

	content := slide.Content{Type: slide.TypeHook, Title: "cached", SlideNumber: 1, TotalSlides: 1}
	job := testJob(t, "cached", []slide.Ratio{slide.RatioSquare}, content)

	branding, _ := slide.LoadBranding("", job.Account)
	spec := backend.NewRenderSpec(job.Slides[0], job.Template, branding, slide.RatioSquare)
	key := cache.ArtifactKey(string(backend.Browser), spec.Slide, spec.Template, spec.Branding, spec.Ratio)
	if err := store.Set(context.Background(), key, data, cache.TTLArtifact); err != nil {
		t.Fatal(err)
	}

	report, err := r.Execute(context.Background(), []*slide.Job{job}, fastOptions(t.TempDir()))
	if err != nil {
		t.Fatal(err)
	}

	unit := report.Jobs[0].Results[0]
	if unit.Status != StatusSuccess {
		t.Fatalf("status = %s (%s)", unit.Status, unit.Error)
	}
	if !unit.CacheHit {
		t.Error("CacheHit not set")
	}
	if be.callCount() != 0 {
		t.Errorf("backend called %d times on a cache hit", be.callCount())
	}
	if _, err := os.Stat(unit.Path); err != nil {
		t.Errorf("cached artifact not written to output path: %v", err)
	}
}

func TestRunnerSkipValidation(t *testing.T) {
	// With --no-quality, adapter success is final even for undersized output.
	be := &scriptedBackend{id: backend.Browser, badBytes: []byte("small but accepted")}
	r := NewRunner(backend.NewRegistry(be), nil, cache.NewNullCache(), quietLogger())

	job := testJob(t, "fast", []slide.Ratio{slide.RatioSquare},
		slide.Content{Type: slide.TypeHook, Title: "x", SlideNumber: 1, TotalSlides: 1})

	opts := fastOptions(t.TempDir())
	opts.SkipValidation = true

	report, err := r.Execute(context.Background(), []*slide.Job{job}, opts)
	if err != nil {
		t.Fatal(err)
	}
	if report.Jobs[0].Results[0].Status != StatusSuccess {
		t.Errorf("status = %s", report.Jobs[0].Results[0].Status)
	}
}

func TestRunnerFatalConfig(t *testing.T) {
	r := NewRunner(backend.NewRegistry(), nil, cache.NewNullCache(), quietLogger())
	job := testJob(t, "x", nil)

	// Empty registry is fatal: nothing can start.
	_, err := r.Execute(context.Background(), []*slide.Job{job}, fastOptions(t.TempDir()))
	if !errors.Is(err, errors.ErrCodeBatchConfig) {
		t.Errorf("empty registry: error code = %q", errors.GetCode(err))
	}

	// So is an empty job list.
	r = NewRunner(backend.NewRegistry(&scriptedBackend{id: backend.Browser}), nil,
		cache.NewNullCache(), quietLogger())
	_, err = r.Execute(context.Background(), nil, fastOptions(t.TempDir()))
	if !errors.Is(err, errors.ErrCodeBatchConfig) {
		t.Errorf("no jobs: error code = %q", errors.GetCode(err))
	}
}

func TestRunnerParallel(t *testing.T) {
	renderablePNG(t, 1080, 1080)

	be := &scriptedBackend{id: backend.Browser}
	r := NewRunner(backend.NewRegistry(be), nil, cache.NewNullCache(), quietLogger())

	var jobs []*slide.Job
	for i := 0; i < 4; i++ {
		jobs = append(jobs, testJob(t, fmt.Sprintf("topic-%d", i), []slide.Ratio{slide.RatioSquare}))
	}

	opts := fastOptions(t.TempDir())
	opts.Parallel = 3

	report, err := r.Execute(context.Background(), jobs, opts)
	if err != nil {
		t.Fatal(err)
	}
	if report.SuccessCount() != report.UnitCount() {
		t.Errorf("counts = %d/%d", report.SuccessCount(), report.UnitCount())
	}
	// Job order is preserved regardless of completion order.
	for i, jr := range report.Jobs {
		if jr.Carousel != i+1 {
			t.Errorf("job %d has carousel %d", i, jr.Carousel)
		}
	}
}

func TestVerifyRecordsDrift(t *testing.T) {
	r := NewRunner(backend.NewRegistry(&scriptedBackend{id: backend.Browser}), nil,
		cache.NewNullCache(), quietLogger())

	// A unit that claims success but whose file is gone.
	report := &Report{Jobs: []JobReport{{
		Carousel: 1,
		Results: []Result{{
			Carousel: 1, SlideNumber: 1, SlideType: slide.TypeHook,
			Ratio: slide.RatioSquare, Status: StatusSuccess,
			Path: filepath.Join(t.TempDir(), "gone.png"),
		}},
	}}}

	r.verify(report)
	if !report.Verified {
		t.Error("Verified not set")
	}
	if len(report.Drift) != 1 {
		t.Fatalf("Drift = %v", report.Drift)
	}
	if report.Drift[0].ErrorKind != errors.ErrCodeValidationFailed {
		t.Errorf("drift ErrorKind = %s", report.Drift[0].ErrorKind)
	}
}

// failByTitleBackend crashes on slides titled "FAIL" and renders the rest.
type failByTitleBackend struct{}

func (b *failByTitleBackend) ID() backend.ID             { return backend.Browser }
func (b *failByTitleBackend) Supports(t slide.Type) bool { return t.Valid() }

func (b *failByTitleBackend) Render(ctx context.Context, spec backend.RenderSpec) (*backend.Artifact, error) {
	if spec.Slide.Title == "FAIL" {
		return nil, errors.New(errors.ErrCodeAdapterCrash, "scripted failure")
	}
	data := pngCache[fmt.Sprintf("%dx%d", spec.Width, spec.Height)]
	return &backend.Artifact{Data: data, Backend: backend.Browser}, nil
}

// countingHooks tallies pipeline and cache events.
type countingHooks struct {
	observability.NoopRenderHooks
	observability.NoopCacheHooks
	started, completed, retries int
	misses, sets                int
}

func (h *countingHooks) OnUnitStart(context.Context, string, string, string) { h.started++ }
func (h *countingHooks) OnUnitComplete(_ context.Context, _, _, _ string, _ int, _ time.Duration, _ error) {
	h.completed++
}
func (h *countingHooks) OnRetry(context.Context, string, int, string) { h.retries++ }
func (h *countingHooks) OnCacheMiss(context.Context, string)          { h.misses++ }
func (h *countingHooks) OnCacheSet(context.Context, string, int)      { h.sets++ }

func TestRunnerEmitsHooks(t *testing.T) {
	renderablePNG(t, 1080, 1080)

	hooks := &countingHooks{}
	observability.SetRenderHooks(hooks)
	observability.SetCacheHooks(hooks)
	defer observability.Reset()

	be := &scriptedBackend{
		id:       backend.Browser,
		failures: 1,
		failWith: errors.New(errors.ErrCodeAdapterTimeout, "slow render"),
	}
	r := NewRunner(backend.NewRegistry(be), nil, cache.NewNullCache(), quietLogger())

	job := testJob(t, "hooks", []slide.Ratio{slide.RatioSquare},
		slide.Content{Type: slide.TypeHook, Title: "x", SlideNumber: 1, TotalSlides: 1})

	if _, err := r.Execute(context.Background(), []*slide.Job{job}, fastOptions(t.TempDir())); err != nil {
		t.Fatalf("Execute error: %v", err)
	}

	if hooks.started != 1 || hooks.completed != 1 {
		t.Errorf("unit events = %d/%d, want 1/1", hooks.started, hooks.completed)
	}
	if hooks.retries != 1 {
		t.Errorf("retries = %d, want 1", hooks.retries)
	}
	if hooks.misses != 1 || hooks.sets != 1 {
		t.Errorf("cache events = %d misses/%d sets, want 1/1", hooks.misses, hooks.sets)
	}
}
