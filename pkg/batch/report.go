package batch

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/mbaylis/slideforge/pkg/backend"
	"github.com/mbaylis/slideforge/pkg/errors"
	"github.com/mbaylis/slideforge/pkg/slide"
)

// Status is the terminal state of a render unit or slide.
type Status string

// Unit and slide statuses.
const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped" // only under abort-on-failure

	// StatusPartial applies at slide level: a dual-ratio slide where
	// exactly one ratio succeeded. Units themselves are never partial.
	StatusPartial Status = "partial_success"
)

// Attempt records one timed try of a render unit.
type Attempt struct {
	Number  int        `json:"number"`
	Backend backend.ID `json:"backend"`
	Start   time.Time  `json:"start"`
	End     time.Time  `json:"end"`
	Stage   string     `json:"stage"` // "render" or "validate"
	Error   string     `json:"error,omitempty"`
}

// Result is the terminal outcome for a (slide, ratio) unit. Exactly one
// Result exists per requested unit: failures are recorded, never dropped.
type Result struct {
	Carousel    int         `json:"carousel"` // 1-based batch position
	SlideNumber int         `json:"slide_number"`
	SlideType   slide.Type  `json:"slide_type"`
	Ratio       slide.Ratio `json:"ratio"`

	Status    Status        `json:"status"`
	Backend   backend.ID    `json:"backend,omitempty"`
	Path      string        `json:"path,omitempty"`
	FileSize  int64         `json:"file_size,omitempty"`
	Width     int           `json:"width,omitempty"`
	Height    int           `json:"height,omitempty"`
	Elapsed   time.Duration `json:"elapsed_ns"`
	CacheHit  bool          `json:"cache_hit,omitempty"`
	Attempts  []Attempt     `json:"attempts,omitempty"`
	ErrorKind errors.Code   `json:"error_kind,omitempty"`
	Error     string        `json:"error,omitempty"`

	// Validator diagnostics; populated on failure, and on success when
	// the quality report is enabled.
	Quality []string `json:"quality,omitempty"`
}

// JobReport collects the results of one carousel.
type JobReport struct {
	Carousel int            `json:"carousel"`
	Topic    string         `json:"topic"`
	Template string         `json:"template"`
	Account  int            `json:"account"`
	OutDir   string         `json:"out_dir"`
	Results  []Result       `json:"results"`
	Slides   []SlideSummary `json:"slides"`
}

// SlideSummary resolves a slide's status across its ratios. A dual-ratio
// slide with one success and one failure is partial_success rather than
// being conflated with either extreme.
type SlideSummary struct {
	SlideNumber int        `json:"slide_number"`
	SlideType   slide.Type `json:"slide_type"`
	Status      Status     `json:"status"`
}

// FailedUnit identifies one failed (carousel, slide, ratio) triple.
type FailedUnit struct {
	Carousel    int         `json:"carousel"`
	SlideNumber int         `json:"slide_number"`
	Ratio       slide.Ratio `json:"ratio"`
	ErrorKind   errors.Code `json:"error_kind"`
}

// Timing aggregates per-unit elapsed times for the whole batch.
type Timing struct {
	Total   time.Duration `json:"total_ns"`
	Average time.Duration `json:"average_ns"`
	Min     time.Duration `json:"min_ns"`
	Max     time.Duration `json:"max_ns"`
}

// Report is the durable record of one batch run. It is finalized once and
// never mutated afterwards; the JSON file written next to the outputs is
// the source of truth for what succeeded, retried, or failed.
type Report struct {
	RunID     string       `json:"run_id"`
	Started   time.Time    `json:"started"`
	Finished  time.Time    `json:"finished"`
	OutputDir string       `json:"output_dir"`
	Jobs      []JobReport  `json:"jobs"`
	Failed    []FailedUnit `json:"failed,omitempty"`
	Timing    Timing       `json:"timing"`

	// Verified is set when --verify re-checked outputs on disk; Drift
	// lists successful units whose files no longer validate.
	Verified bool         `json:"verified,omitempty"`
	Drift    []FailedUnit `json:"drift,omitempty"`
}

// finalize computes the aggregate timing, the failed-unit list, and the
// per-slide summaries. Called once, after the last unit settles.
func (r *Report) finalize() {
	var durations []time.Duration
	for ji := range r.Jobs {
		job := &r.Jobs[ji]
		for _, res := range job.Results {
			durations = append(durations, res.Elapsed)
			if res.Status == StatusFailed || res.Status == StatusSkipped {
				r.Failed = append(r.Failed, FailedUnit{
					Carousel:    res.Carousel,
					SlideNumber: res.SlideNumber,
					Ratio:       res.Ratio,
					ErrorKind:   res.ErrorKind,
				})
			}
		}
		job.Slides = summarizeSlides(job.Results)
	}
	r.Timing = aggregate(durations)
}

// summarizeSlides folds unit results into per-slide statuses, keeping
// slide order.
func summarizeSlides(results []Result) []SlideSummary {
	type bucket struct {
		slideType slide.Type
		success   int
		failed    int
	}
	order := []int{}
	buckets := map[int]*bucket{}
	for _, res := range results {
		b, ok := buckets[res.SlideNumber]
		if !ok {
			b = &bucket{slideType: res.SlideType}
			buckets[res.SlideNumber] = b
			order = append(order, res.SlideNumber)
		}
		if res.Status == StatusSuccess {
			b.success++
		} else {
			b.failed++
		}
	}

	out := make([]SlideSummary, 0, len(order))
	for _, num := range order {
		b := buckets[num]
		status := StatusFailed
		switch {
		case b.failed == 0:
			status = StatusSuccess
		case b.success > 0:
			status = StatusPartial
		}
		out = append(out, SlideSummary{SlideNumber: num, SlideType: b.slideType, Status: status})
	}
	return out
}

func aggregate(durations []time.Duration) Timing {
	var t Timing
	if len(durations) == 0 {
		return t
	}
	t.Min = durations[0]
	for _, d := range durations {
		t.Total += d
		if d < t.Min {
			t.Min = d
		}
		if d > t.Max {
			t.Max = d
		}
	}
	t.Average = t.Total / time.Duration(len(durations))
	return t
}

// SuccessCount returns the number of fully successful units.
func (r *Report) SuccessCount() int {
	n := 0
	for _, job := range r.Jobs {
		for _, res := range job.Results {
			if res.Status == StatusSuccess {
				n++
			}
		}
	}
	return n
}

// UnitCount returns the total number of recorded units.
func (r *Report) UnitCount() int {
	n := 0
	for _, job := range r.Jobs {
		n += len(job.Results)
	}
	return n
}

// ReportFilename is the report file written into the batch directory.
const ReportFilename = "report.json"

// Write persists the report as JSON inside the batch output directory.
// The file is written even when the run contains failures.
func (r *Report) Write() (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	path := filepath.Join(r.OutputDir, ReportFilename)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}
	return path, nil
}

// ReadReport loads a previously written report, for the review server.
func ReadReport(dir string) (*Report, error) {
	data, err := os.ReadFile(filepath.Join(dir, ReportFilename))
	if err != nil {
		return nil, err
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
