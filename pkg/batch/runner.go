package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mbaylis/slideforge/pkg/backend"
	"github.com/mbaylis/slideforge/pkg/cache"
	"github.com/mbaylis/slideforge/pkg/errors"
	"github.com/mbaylis/slideforge/pkg/observability"
	"github.com/mbaylis/slideforge/pkg/router"
	"github.com/mbaylis/slideforge/pkg/slide"
	"github.com/mbaylis/slideforge/pkg/validate"
)

// RendererResource is the scoped external process backing a backend (the
// browser surface). The runner acquires it before the first render,
// releases it on every exit path, and restarts it after a crash so a dead
// process is never silently reused.
type RendererResource interface {
	Acquire(ctx context.Context) error
	Restart(ctx context.Context) error
	Healthy() bool
	Release()
}

// Runner executes batches. It is stateless across runs apart from the
// cache, the registry, and the managed resource; per-run bookkeeping lives
// in the Report.
type Runner struct {
	Registry *backend.Registry
	Resource RendererResource // may be nil when no browser backend is registered
	Cache    cache.Cache
	Logger   *log.Logger
}

// NewRunner creates a runner. A nil cache disables caching; a nil logger
// uses the package default.
func NewRunner(reg *backend.Registry, resource RendererResource, c cache.Cache, logger *log.Logger) *Runner {
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{Registry: reg, Resource: resource, Cache: c, Logger: logger}
}

// Close releases the cache. The renderer resource is scoped to Execute and
// does not need closing here.
func (r *Runner) Close() error {
	return r.Cache.Close()
}

// Execute renders every job and returns the finalized report. A non-nil
// error means a fatal configuration problem that prevented any work; unit
// failures are recorded in the report instead.
func (r *Runner) Execute(ctx context.Context, jobs []*slide.Job, opts Options) (*Report, error) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	if r.Registry == nil || r.Registry.Len() == 0 {
		return nil, errors.New(errors.ErrCodeBatchConfig, "no rendering backends registered")
	}
	if len(jobs) == 0 {
		return nil, errors.New(errors.ErrCodeBatchConfig, "batch has no jobs")
	}

	report := &Report{
		RunID:   uuid.NewString(),
		Started: time.Now(),
	}
	report.OutputDir = filepath.Join(opts.OutputRoot,
		"batch-"+report.Started.Format("20060102-150405"))
	if err := os.MkdirAll(report.OutputDir, 0755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeBatchConfig, err, "create output dir")
	}

	if r.Resource != nil {
		if err := r.Resource.Acquire(ctx); err != nil {
			return nil, err
		}
		defer r.Resource.Release()
	}

	report.Jobs = make([]JobReport, len(jobs))

	if opts.Parallel > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(opts.Parallel)
		for i, job := range jobs {
			g.Go(func() error {
				report.Jobs[i] = r.runJob(gctx, job, i+1, report.OutputDir, &opts)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		aborted := false
		for i, job := range jobs {
			if aborted {
				report.Jobs[i] = skippedJob(job, i+1, report.OutputDir)
				continue
			}
			report.Jobs[i] = r.runJob(ctx, job, i+1, report.OutputDir, &opts)
			if opts.AbortOnFailure && jobHasFailure(&report.Jobs[i]) {
				opts.Logger.Warn("aborting batch on first failure", "carousel", i+1)
				aborted = true
			}
		}
	}

	report.Finished = time.Now()
	report.finalize()

	if opts.Verify {
		r.verify(report)
	}

	return report, nil
}

// runJob renders one carousel: slides in ascending slide number, ratios in
// job order, each (slide, ratio) pair an independent unit.
func (r *Runner) runJob(ctx context.Context, job *slide.Job, carousel int, outputDir string, opts *Options) JobReport {
	jr := JobReport{
		Carousel: carousel,
		Topic:    job.Topic,
		Template: job.Template,
		Account:  job.Account,
		OutDir:   filepath.Join(outputDir, fmt.Sprintf("carousel-%02d", carousel)),
	}

	branding, err := slide.LoadBranding(opts.BrandingPath, job.Account)
	if err != nil {
		opts.Logger.Warn("branding config unreadable, using defaults", "err", err)
		branding = slide.DefaultBranding
	}

	if err := os.MkdirAll(jr.OutDir, 0755); err != nil {
		// Without an output directory every unit fails the same way;
		// record them all so the report stays complete.
		for _, s := range job.Slides {
			for _, ratio := range job.Ratios {
				jr.Results = append(jr.Results, Result{
					Carousel: carousel, SlideNumber: s.SlideNumber, SlideType: s.Type,
					Ratio: ratio, Status: StatusFailed,
					ErrorKind: errors.ErrCodeBatchConfig, Error: err.Error(),
				})
			}
		}
		return jr
	}

	abort := false
	for si := range job.Slides {
		for _, ratio := range job.Ratios {
			s := &job.Slides[si]
			if abort {
				jr.Results = append(jr.Results, skippedUnit(carousel, s, ratio))
				continue
			}
			res := r.renderUnit(ctx, s, job, branding, carousel, ratio, jr.OutDir, opts)
			jr.Results = append(jr.Results, res)
			if opts.AbortOnFailure && res.Status == StatusFailed {
				abort = true
			}
		}
	}
	return jr
}

// renderUnit drives one (slide, ratio) unit through the retry state
// machine to a terminal Success or Failed status.
func (r *Runner) renderUnit(ctx context.Context, s *slide.Content, job *slide.Job,
	branding slide.Branding, carousel int, ratio slide.Ratio, outDir string, opts *Options) Result {

	start := time.Now()
	res := Result{
		Carousel:    carousel,
		SlideNumber: s.SlideNumber,
		SlideType:   s.Type,
		Ratio:       ratio,
		Status:      StatusFailed,
	}
	logger := opts.Logger.With("carousel", carousel, "slide", s.SlideNumber, "ratio", ratio)

	// Routing is pure and deterministic; a failure here is configuration,
	// not a transient condition, so it terminates the unit immediately.
	id, err := router.Route(s, r.Registry)
	if err != nil {
		logger.Error("routing failed", "err", errors.UserMessage(err))
		res.ErrorKind = errors.ErrCodeRoutingFailed
		res.Error = err.Error()
		res.Elapsed = time.Since(start)
		return res
	}
	renderer, _ := r.Registry.Get(id)
	res.Backend = id
	observability.Render().OnUnitStart(ctx, string(id), string(s.Type), string(ratio))
	defer func() {
		var uerr error
		if res.Status != StatusSuccess && res.Error != "" {
			uerr = fmt.Errorf("%s", res.Error)
		}
		observability.Render().OnUnitComplete(ctx, string(id), string(s.Type), string(ratio),
			len(res.Attempts), res.Elapsed, uerr)
	}()

	spec := backend.NewRenderSpec(*s, job.Template, branding, ratio)
	res.Path = filepath.Join(outDir, fmt.Sprintf("slide_%02d_%s.png", s.SlideNumber, ratio))
	w, h := ratio.Dimensions()

	cacheKey := cache.ArtifactKey(string(id), spec.Slide, spec.Template, spec.Branding, spec.Ratio)
	if data, hit, err := r.Cache.Get(ctx, cacheKey); err == nil && hit {
		if done, out := r.acceptCached(data, res, w, h, opts); done {
			res = out
			res.Elapsed = time.Since(start)
			observability.Cache().OnCacheHit(ctx, string(id))
			logger.Info("rendered from cache", "backend", id, "bytes", len(data))
			return res
		}
		// Stale or invalid cached artifact: drop it and render fresh.
		_ = r.Cache.Delete(ctx, cacheKey)
	} else {
		observability.Cache().OnCacheMiss(ctx, string(id))
	}

	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		att := Attempt{Number: attempt, Backend: id, Start: time.Now(), Stage: "render"}

		renderCtx, cancel := context.WithTimeout(ctx, opts.RenderTimeout)
		artifact, err := renderer.Render(renderCtx, spec)
		cancel()

		if err == nil {
			err = r.settle(ctx, artifact, &res, w, h, cacheKey, opts)
			if err == nil {
				att.End = time.Now()
				res.Attempts = append(res.Attempts, att)
				res.Status = StatusSuccess
				res.ErrorKind = ""
				res.Error = ""
				res.Elapsed = time.Since(start)
				logger.Info("rendered", "backend", id, "attempt", attempt, "bytes", res.FileSize)
				return res
			}
			att.Stage = "validate"
		}

		att.End = time.Now()
		att.Error = err.Error()
		res.Attempts = append(res.Attempts, att)
		res.ErrorKind = errors.GetCode(err)
		res.Error = err.Error()

		if !errors.Retryable(err) {
			logger.Error("render failed terminally", "attempt", attempt, "err", errors.UserMessage(err))
			break
		}

		// A crashed external process is replaced before the next attempt;
		// a corrupted one is never reused.
		if errors.Is(err, errors.ErrCodeAdapterCrash) && r.Resource != nil {
			if rerr := r.Resource.Restart(ctx); rerr != nil {
				logger.Error("renderer restart failed", "err", rerr)
			} else {
				logger.Info("renderer process restarted")
			}
		}

		if attempt == opts.MaxAttempts {
			logger.Error("render failed after max attempts", "attempts", attempt, "err", errors.UserMessage(err))
			break
		}

		observability.Render().OnRetry(ctx, string(id), attempt, string(errors.GetCode(err)))
		delay := opts.backoffAfter(attempt)
		logger.Warn("render attempt failed, backing off",
			"attempt", attempt, "delay", delay, "err", errors.UserMessage(err))
		select {
		case <-ctx.Done():
			res.Elapsed = time.Since(start)
			return res
		case <-time.After(delay):
		}
	}

	res.Elapsed = time.Since(start)
	return res
}

// settle writes the artifact and runs validation. A validation failure is
// returned as a retryable VALIDATION_FAILED error so the state machine
// treats it exactly like a render-quality failure.
func (r *Runner) settle(ctx context.Context, artifact *backend.Artifact, res *Result,
	w, h int, cacheKey string, opts *Options) error {

	if err := os.WriteFile(res.Path, artifact.Data, 0644); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "write artifact %s", res.Path)
	}

	if opts.SkipValidation {
		res.FileSize = int64(len(artifact.Data))
		return nil
	}

	v := validate.File(res.Path, w, h)
	res.FileSize = v.FileSize
	res.Width = v.Width
	res.Height = v.Height
	if !v.OK {
		res.Quality = v.Reasons
		return errors.New(errors.ErrCodeValidationFailed, "artifact failed validation: %v", v.Reasons)
	}
	if opts.QualityReport {
		res.Quality = []string{"ok"}
	} else {
		res.Quality = nil
	}

	_ = r.Cache.Set(ctx, cacheKey, artifact.Data, cache.TTLArtifact)
	observability.Cache().OnCacheSet(ctx, string(res.Backend), len(artifact.Data))
	return nil
}

// acceptCached validates a cached artifact and, when sound, writes it to
// the unit's output path. Cached bytes pass through the same validator as
// fresh renders.
func (r *Runner) acceptCached(data []byte, res Result, w, h int, opts *Options) (bool, Result) {
	if !opts.SkipValidation {
		v := validate.Bytes(data, w, h)
		if !v.OK {
			return false, res
		}
		res.Width = v.Width
		res.Height = v.Height
	}
	if err := os.WriteFile(res.Path, data, 0644); err != nil {
		return false, res
	}
	res.FileSize = int64(len(data))
	res.Status = StatusSuccess
	res.CacheHit = true
	return true, res
}

// verify re-validates every successful output on disk and records drift.
func (r *Runner) verify(report *Report) {
	report.Verified = true
	for _, job := range report.Jobs {
		for _, res := range job.Results {
			if res.Status != StatusSuccess {
				continue
			}
			w, h := res.Ratio.Dimensions()
			if v := validate.File(res.Path, w, h); !v.OK {
				report.Drift = append(report.Drift, FailedUnit{
					Carousel:    res.Carousel,
					SlideNumber: res.SlideNumber,
					Ratio:       res.Ratio,
					ErrorKind:   errors.ErrCodeValidationFailed,
				})
			}
		}
	}
}

// skippedUnit records a unit that never ran because the batch aborted.
func skippedUnit(carousel int, s *slide.Content, ratio slide.Ratio) Result {
	return Result{
		Carousel:    carousel,
		SlideNumber: s.SlideNumber,
		SlideType:   s.Type,
		Ratio:       ratio,
		Status:      StatusSkipped,
		ErrorKind:   errors.ErrCodeBatchConfig,
		Error:       "skipped: batch aborted on earlier failure",
	}
}

// skippedJob records a whole carousel skipped by abort-on-failure.
func skippedJob(job *slide.Job, carousel int, outputDir string) JobReport {
	jr := JobReport{
		Carousel: carousel,
		Topic:    job.Topic,
		Template: job.Template,
		Account:  job.Account,
		OutDir:   filepath.Join(outputDir, fmt.Sprintf("carousel-%02d", carousel)),
	}
	for si := range job.Slides {
		for _, ratio := range job.Ratios {
			jr.Results = append(jr.Results, skippedUnit(carousel, &job.Slides[si], ratio))
		}
	}
	return jr
}

func jobHasFailure(jr *JobReport) bool {
	for _, res := range jr.Results {
		if res.Status == StatusFailed {
			return true
		}
	}
	return false
}
