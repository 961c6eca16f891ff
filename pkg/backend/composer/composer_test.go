package composer

import (
	"bytes"
	"context"
	"image"
	"testing"

	"github.com/mbaylis/slideforge/pkg/backend"
	"github.com/mbaylis/slideforge/pkg/slide"
)

func TestSupportsEveryType(t *testing.T) {
	c := &Composer{}
	for _, typ := range slide.Types {
		if !c.Supports(typ) {
			t.Errorf("composer must support %q as the universal fallback", typ)
		}
	}
	if c.Supports("banner") {
		t.Error("unknown types are not supported")
	}
}

func TestFormatStat(t *testing.T) {
	tests := []struct {
		v    float64
		unit string
		want string
	}{
		{73, "%", "73%"},
		{4.5, "h", "4.5h"},
		{0, "", "0"},
		{-3, "pts", "-3pts"},
	}
	for _, tt := range tests {
		if got := formatStat(tt.v, tt.unit); got != tt.want {
			t.Errorf("formatStat(%v, %q) = %q, want %q", tt.v, tt.unit, got, tt.want)
		}
	}
}

func TestRender(t *testing.T) {
	c, err := New()
	if err != nil {
		t.Skipf("no usable font on this system: %v", err)
	}

	slides := []slide.Content{
		{Type: slide.TypeHook, Title: "Why you can't focus", Body: "Three reasons.",
			SlideNumber: 1, TotalSlides: 6},
		{Type: slide.TypeStat, StatValue: 73, StatUnit: "%", Title: "check phones first",
			SlideNumber: 2, TotalSlides: 6},
		{Type: slide.TypeTips, Title: "Do this", Items: []string{"one", "two", "three"},
			SlideNumber: 3, TotalSlides: 6},
		{Type: slide.TypeData, Title: "By age",
			Chart: &slide.ChartSpec{Kind: "bar", Labels: []string{"a", "b"}, Values: []float64{3, 5}},
			SlideNumber: 4, TotalSlides: 6},
		{Type: slide.TypeComparison, Items: []string{"Coffee", "Tea"}, Title: "Pick one",
			SlideNumber: 5, TotalSlides: 6},
		{Type: slide.TypeQuote, Body: "Less is more.", Source: "Mies",
			SlideNumber: 6, TotalSlides: 6},
	}

	for _, ratio := range []slide.Ratio{slide.RatioSquare, slide.RatioPortrait} {
		wantW, wantH := ratio.Dimensions()
		for _, s := range slides {
			spec := backend.NewRenderSpec(s, "tips_5", slide.DefaultBranding, ratio)
			art, err := c.Render(context.Background(), spec)
			if err != nil {
				t.Errorf("%s %s: render error: %v", s.Type, ratio, err)
				continue
			}
			cfg, _, err := image.DecodeConfig(bytes.NewReader(art.Data))
			if err != nil {
				t.Errorf("%s %s: output not decodable: %v", s.Type, ratio, err)
				continue
			}
			if cfg.Width != wantW || cfg.Height != wantH {
				t.Errorf("%s %s: %dx%d, want %dx%d", s.Type, ratio, cfg.Width, cfg.Height, wantW, wantH)
			}
		}
	}
}

func TestRenderChartlessDataMatchesPlainLayout(t *testing.T) {
	c, err := New()
	if err != nil {
		t.Skipf("no usable font on this system: %v", err)
	}

	base := slide.Content{Title: "By age", Body: "No data yet.", SlideNumber: 1, TotalSlides: 1}
	asData := base
	asData.Type = slide.TypeData
	asHook := base
	asHook.Type = slide.TypeHook

	dataArt, err := c.Render(context.Background(),
		backend.NewRenderSpec(asData, "tips_5", slide.DefaultBranding, slide.RatioSquare))
	if err != nil {
		t.Fatal(err)
	}
	hookArt, err := c.Render(context.Background(),
		backend.NewRenderSpec(asHook, "tips_5", slide.DefaultBranding, slide.RatioSquare))
	if err != nil {
		t.Fatal(err)
	}

	// A data slide without chart data uses the plain layout unchanged; a
	// second title draw would show up as a pixel difference.
	if !bytes.Equal(dataArt.Data, hookArt.Data) {
		t.Error("chartless data slide diverges from the plain layout")
	}
}
