package slide

import (
	"github.com/mbaylis/slideforge/pkg/errors"
)

// Job is an immutable snapshot of one carousel to render: an ordered list
// of slides sharing a template, an account reference, and the set of target
// ratios to produce. Mutating the caller's slice after submission does not
// affect an in-flight job because NewJob copies the slides.
type Job struct {
	Topic    string    `json:"topic"`
	Template string    `json:"template"`
	Account  int       `json:"account"`
	Slides   []Content `json:"slides"`
	Ratios   []Ratio   `json:"ratios"`
	OutDir   string    `json:"out_dir,omitempty"`
}

// NewJob builds a validated job snapshot. The slides slice is copied so
// later mutation by the caller cannot leak into the run.
func NewJob(topic, template string, account int, slides []Content, ratios []Ratio) (*Job, error) {
	if len(slides) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "job has no slides")
	}
	if len(ratios) == 0 {
		ratios = []Ratio{RatioSquare}
	}
	for _, r := range ratios {
		if !r.Valid() {
			return nil, errors.New(errors.ErrCodeInvalidRatio, "invalid ratio: %q", r)
		}
	}
	for i := range slides {
		if err := slides[i].Validate(); err != nil {
			return nil, err
		}
		// Output files are keyed by slide number; a duplicate would
		// silently overwrite an earlier unit's artifact.
		if i > 0 && slides[i].SlideNumber <= slides[i-1].SlideNumber {
			return nil, errors.New(errors.ErrCodeInvalidSlide,
				"slide numbers must be strictly ascending: slide %d follows slide %d",
				slides[i].SlideNumber, slides[i-1].SlideNumber)
		}
	}

	snapshot := make([]Content, len(slides))
	copy(snapshot, slides)

	return &Job{
		Topic:    topic,
		Template: template,
		Account:  account,
		Slides:   snapshot,
		Ratios:   append([]Ratio(nil), ratios...),
	}, nil
}

// UnitCount returns the number of (slide, ratio) render units in the job.
func (j *Job) UnitCount() int {
	return len(j.Slides) * len(j.Ratios)
}
