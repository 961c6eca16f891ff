package slide

import (
	"testing"

	"github.com/mbaylis/slideforge/pkg/errors"
)

func twoSlides() []Content {
	return []Content{
		{Type: TypeHook, Title: "Hook", SlideNumber: 1, TotalSlides: 2},
		{Type: TypeCTA, Title: "Follow", SlideNumber: 2, TotalSlides: 2},
	}
}

func TestNewJob(t *testing.T) {
	job, err := NewJob("sleep myths", "myth_busting", 1, twoSlides(),
		[]Ratio{RatioSquare, RatioPortrait})
	if err != nil {
		t.Fatalf("NewJob error: %v", err)
	}
	if job.UnitCount() != 4 {
		t.Errorf("UnitCount = %d, want 4", job.UnitCount())
	}
}

func TestNewJobDefaultsRatio(t *testing.T) {
	job, err := NewJob("t", "tips_5", 1, twoSlides(), nil)
	if err != nil {
		t.Fatalf("NewJob error: %v", err)
	}
	if len(job.Ratios) != 1 || job.Ratios[0] != RatioSquare {
		t.Errorf("Ratios = %v, want [1x1]", job.Ratios)
	}
}

func TestNewJobRejectsEmptySlides(t *testing.T) {
	_, err := NewJob("t", "tips_5", 1, nil, nil)
	if !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("error code = %q, want INVALID_INPUT", errors.GetCode(err))
	}
}

func TestNewJobRejectsInvalidRatio(t *testing.T) {
	_, err := NewJob("t", "tips_5", 1, twoSlides(), []Ratio{"16x9"})
	if !errors.Is(err, errors.ErrCodeInvalidRatio) {
		t.Errorf("error code = %q, want INVALID_RATIO", errors.GetCode(err))
	}
}

func TestNewJobRejectsInvalidSlide(t *testing.T) {
	slides := twoSlides()
	slides[1].SlideNumber = 9
	_, err := NewJob("t", "tips_5", 1, slides, nil)
	if !errors.Is(err, errors.ErrCodeInvalidSlide) {
		t.Errorf("error code = %q, want INVALID_SLIDE", errors.GetCode(err))
	}
}

func TestNewJobRejectsDuplicateSlideNumbers(t *testing.T) {
	// Output files are keyed by slide number; two units sharing one would
	// overwrite each other while both report success.
	slides := twoSlides()
	slides[1].SlideNumber = 1
	_, err := NewJob("t", "tips_5", 1, slides, nil)
	if !errors.Is(err, errors.ErrCodeInvalidSlide) {
		t.Errorf("error code = %q, want INVALID_SLIDE", errors.GetCode(err))
	}
}

func TestNewJobRejectsOutOfOrderSlideNumbers(t *testing.T) {
	slides := []Content{
		{Type: TypeHook, Title: "Hook", SlideNumber: 2, TotalSlides: 2},
		{Type: TypeCTA, Title: "Follow", SlideNumber: 1, TotalSlides: 2},
	}
	_, err := NewJob("t", "tips_5", 1, slides, nil)
	if !errors.Is(err, errors.ErrCodeInvalidSlide) {
		t.Errorf("error code = %q, want INVALID_SLIDE", errors.GetCode(err))
	}
}

func TestNewJobCopiesSlides(t *testing.T) {
	slides := twoSlides()
	job, err := NewJob("t", "tips_5", 1, slides, nil)
	if err != nil {
		t.Fatalf("NewJob error: %v", err)
	}

	// Mutating the caller's slice must not leak into the snapshot.
	slides[0].Title = "mutated"
	if job.Slides[0].Title != "Hook" {
		t.Errorf("job slide title = %q, snapshot leaked", job.Slides[0].Title)
	}
}
