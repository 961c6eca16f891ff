package composer

import (
	"fmt"
	"os"

	"github.com/flopp/go-findfont"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
)

// candidate font files, tried in order. DejaVu ships with most Linux
// distributions; the rest cover macOS and Windows.
var fontCandidates = []string{
	"DejaVuSans-Bold.ttf",
	"DejaVuSans.ttf",
	"Arial Bold.ttf",
	"Arial.ttf",
	"FreeSansBold.ttf",
	"FreeSans.ttf",
	"Helvetica.ttc",
}

// loadFont locates a usable system font and parses it.
func loadFont() (*truetype.Font, error) {
	var lastErr error
	for _, name := range fontCandidates {
		path, err := findfont.Find(name)
		if err != nil {
			lastErr = err
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			lastErr = err
			continue
		}
		f, err := freetype.ParseFont(data)
		if err != nil {
			lastErr = err
			continue
		}
		return f, nil
	}
	return nil, fmt.Errorf("no usable system font found (tried %v): %w", fontCandidates, lastErr)
}

// face builds a font.Face at the given point size.
func face(f *truetype.Font, size float64) font.Face {
	return truetype.NewFace(f, &truetype.Options{Size: size})
}
