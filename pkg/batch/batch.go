// Package batch implements the rendering orchestrator: it sequences
// carousel jobs, routes every (slide, ratio) unit to a backend, executes
// renders with bounded retries and backoff, validates outputs, and
// aggregates everything into a batch report.
//
// # Architecture
//
// The Runner walks jobs in input order and slides in ascending slide
// number. Each (slide, ratio) unit moves through an explicit lifecycle:
//
//	Pending -> Attempting -> Validating -> Success
//	Attempting -> Attempting   (adapter failed, attempts < max, backoff elapsed)
//	Attempting -> Failed       (adapter failed, attempts == max)
//	Validating -> Attempting   (validator failed, attempts < max)
//	Validating -> Failed       (validator failed, attempts == max)
//
// A failed unit never aborts the job or the batch by default: the failure
// is recorded in the report and the runner moves on. That is a deliberate
// partial-failure policy.
package batch

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/mbaylis/slideforge/pkg/errors"
	"github.com/mbaylis/slideforge/pkg/slide"
)

// Default retry policy for one render unit.
const (
	// DefaultMaxAttempts bounds renders per (slide, ratio) unit.
	DefaultMaxAttempts = 3

	// DefaultRenderTimeout is the per-attempt budget for one backend call.
	DefaultRenderTimeout = 30 * time.Second
)

// DefaultBackoff is the delay schedule between attempts. Index i is the
// wait after attempt i+1 fails. The schedule must be monotonically
// non-decreasing.
var DefaultBackoff = []time.Duration{1 * time.Second, 2 * time.Second, 3 * time.Second}

// Options configures one batch run.
type Options struct {
	// OutputRoot is the directory the batch-{timestamp} tree is created
	// under. Empty means the current directory.
	OutputRoot string

	// MaxAttempts per render unit. Zero means DefaultMaxAttempts.
	MaxAttempts int

	// Backoff delays between attempts. Nil means DefaultBackoff. Must be
	// monotonically non-decreasing and cover MaxAttempts-1 waits.
	Backoff []time.Duration

	// RenderTimeout per backend call. Zero means DefaultRenderTimeout.
	RenderTimeout time.Duration

	// SkipValidation marks units successful on adapter success alone
	// (the --no-quality fast path).
	SkipValidation bool

	// QualityReport includes measured size/dimension diagnostics for
	// successful units in the report, not just for failures.
	QualityReport bool

	// Verify re-validates all successful outputs on disk after the run.
	Verify bool

	// AbortOnFailure stops the batch at the first terminally failed unit.
	// Remaining units are recorded as skipped. Defaults to off.
	AbortOnFailure bool

	// Parallel renders up to N carousels concurrently. Slides within a
	// carousel always stay sequential and ordered. Zero or one means
	// fully sequential.
	Parallel int

	// BrandingPath is the accounts TOML file consulted per job.
	BrandingPath string

	// Logger for progress. Nil means a discard logger.
	Logger *log.Logger

	validated bool
}

// ValidateAndSetDefaults checks the options and applies defaults.
// Idempotent, like the rest of the option surface.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if o.MaxAttempts == 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.MaxAttempts < 1 {
		return errors.New(errors.ErrCodeBatchConfig, "max attempts must be >= 1, got %d", o.MaxAttempts)
	}
	if o.Backoff == nil {
		o.Backoff = DefaultBackoff
	}
	for i := 1; i < len(o.Backoff); i++ {
		if o.Backoff[i] < o.Backoff[i-1] {
			return errors.New(errors.ErrCodeBatchConfig,
				"backoff schedule must be non-decreasing (%v < %v at index %d)",
				o.Backoff[i], o.Backoff[i-1], i)
		}
	}
	if len(o.Backoff) < o.MaxAttempts-1 {
		return errors.New(errors.ErrCodeBatchConfig,
			"backoff schedule has %d delays, need %d for %d attempts",
			len(o.Backoff), o.MaxAttempts-1, o.MaxAttempts)
	}
	if o.RenderTimeout == 0 {
		o.RenderTimeout = DefaultRenderTimeout
	}
	if o.Parallel < 1 {
		o.Parallel = 1
	}
	// Abort-on-failure needs a deterministic "first" failure, which only
	// sequential execution provides.
	if o.AbortOnFailure {
		o.Parallel = 1
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	o.validated = true
	return nil
}

// backoffAfter returns the wait after the given 1-based attempt fails.
func (o *Options) backoffAfter(attempt int) time.Duration {
	idx := attempt - 1
	if idx < 0 || idx >= len(o.Backoff) {
		if len(o.Backoff) == 0 {
			return 0
		}
		return o.Backoff[len(o.Backoff)-1]
	}
	return o.Backoff[idx]
}

// Input is the batch JSON schema:
//
//	{ "carousels": [
//	  { "topic": "...", "template": "tips_5", "account": 1, "both_ratios": true }
//	] }
type Input struct {
	Carousels []InputCarousel `json:"carousels"`
}

// InputCarousel describes one requested carousel in a batch file. Slides
// may be inlined; when absent the content engine is expected to have
// produced them and they are resolved by the caller before Execute.
type InputCarousel struct {
	Topic      string          `json:"topic"`
	Template   string          `json:"template"`
	Account    int             `json:"account"`
	BothRatios bool            `json:"both_ratios"`
	Slides     []slide.Content `json:"slides,omitempty"`
}

// Ratios resolves the carousel's ratio set.
func (c *InputCarousel) Ratios() []slide.Ratio {
	if c.BothRatios {
		return []slide.Ratio{slide.RatioSquare, slide.RatioPortrait}
	}
	return []slide.Ratio{slide.RatioSquare}
}

// ParseInput reads and validates a batch input file. Malformed input is a
// BATCH_CONFIG error: fatal for the run, nothing starts.
func ParseInput(path string) (*Input, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeBatchConfig, err, "read batch file %s", path)
	}

	var in Input
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, errors.Wrap(errors.ErrCodeBatchConfig, err, "malformed batch JSON in %s", path)
	}
	if len(in.Carousels) == 0 {
		return nil, errors.New(errors.ErrCodeBatchConfig, "batch file %s lists no carousels", path)
	}
	for i := range in.Carousels {
		c := &in.Carousels[i]
		if c.Topic == "" {
			return nil, errors.New(errors.ErrCodeBatchConfig, "carousel %d has no topic", i+1)
		}
		if _, err := slide.LookupTemplate(c.Template); err != nil {
			return nil, errors.Wrap(errors.ErrCodeBatchConfig, err, "carousel %d", i+1)
		}
	}
	return &in, nil
}

// Jobs converts the parsed input into job snapshots. Carousels without
// inline slides get placeholder content derived from the template, which
// keeps dry runs and fixtures simple.
func (in *Input) Jobs() ([]*slide.Job, error) {
	jobs := make([]*slide.Job, 0, len(in.Carousels))
	for i := range in.Carousels {
		c := &in.Carousels[i]
		slides := c.Slides
		if len(slides) == 0 {
			slides = placeholderSlides(c.Topic, c.Template)
		}
		job, err := slide.NewJob(c.Topic, c.Template, c.Account, slides, c.Ratios())
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeBatchConfig, err, "carousel %d (%s)", i+1, c.Topic)
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// placeholderSlides expands a template into minimal renderable content for
// carousels that arrive without inline slides.
func placeholderSlides(topic, template string) []slide.Content {
	t, err := slide.LookupTemplate(template)
	if err != nil || len(t.SlideTypes) == 0 {
		return []slide.Content{{
			Type: slide.TypeHook, Title: topic, SlideNumber: 1, TotalSlides: 1,
		}}
	}
	total := len(t.SlideTypes)
	slides := make([]slide.Content, total)
	for i, st := range t.SlideTypes {
		slides[i] = slide.Content{
			Type:        st,
			Title:       topic,
			Body:        fmt.Sprintf("%s: %s", topic, st),
			SlideNumber: i + 1,
			TotalSlides: total,
		}
		if st == slide.TypeStat {
			slides[i].StatValue = 42
			slides[i].StatUnit = "%"
		}
	}
	return slides
}
