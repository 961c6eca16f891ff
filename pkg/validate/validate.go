// Package validate checks rendered artifacts against the output contract.
//
// A render only counts as a success after passing these checks; a backend
// returning bytes is not sufficient. Validation is a pure predicate plus
// diagnostic reasons for the caller to log, and never mutates the artifact.
package validate

import (
	"bytes"
	"fmt"
	"image"
	"os"

	// Registered decoders for the formats backends emit.
	_ "image/jpeg"
	_ "image/png"
)

// Size bounds for a plausible slide render. Below the floor indicates a
// corrupt or blank render; above the ceiling, unexpected bloat.
const (
	MinFileSize = 10 * 1024       // 10 KB
	MaxFileSize = 5 * 1024 * 1024 // 5 MB
)

// Result carries the validator verdict and, on failure, the reasons.
type Result struct {
	OK      bool
	Reasons []string

	// Measured properties, populated when the file was readable.
	FileSize int64
	Width    int
	Height   int
}

// File validates the artifact at path against the expected pixel
// dimensions. It returns ok=false with reasons rather than an error for
// contract violations; an error only reflects the inability to inspect
// the file at all beyond existence.
func File(path string, wantWidth, wantHeight int) Result {
	var res Result

	info, err := os.Stat(path)
	if err != nil {
		res.Reasons = append(res.Reasons, fmt.Sprintf("file missing: %v", err))
		return res
	}
	res.FileSize = info.Size()

	if info.Size() == 0 {
		res.Reasons = append(res.Reasons, "file is empty")
		return res
	}
	if info.Size() < MinFileSize {
		res.Reasons = append(res.Reasons,
			fmt.Sprintf("file too small: %d bytes (min %d), likely a blank render", info.Size(), MinFileSize))
	}
	if info.Size() > MaxFileSize {
		res.Reasons = append(res.Reasons,
			fmt.Sprintf("file too large: %d bytes (max %d)", info.Size(), MaxFileSize))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		res.Reasons = append(res.Reasons, fmt.Sprintf("unreadable: %v", err))
		return res
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		res.Reasons = append(res.Reasons, fmt.Sprintf("not a decodable image: %v", err))
		return res
	}
	res.Width = cfg.Width
	res.Height = cfg.Height
	_ = format

	if cfg.Width != wantWidth || cfg.Height != wantHeight {
		res.Reasons = append(res.Reasons,
			fmt.Sprintf("dimensions %dx%d, want exactly %dx%d", cfg.Width, cfg.Height, wantWidth, wantHeight))
	}

	res.OK = len(res.Reasons) == 0
	return res
}

// Bytes validates in-memory artifact data before it is written to disk.
// Used for cache hits, where the bytes are trusted for size and decode but
// still checked for exact dimensions.
func Bytes(data []byte, wantWidth, wantHeight int) Result {
	var res Result
	res.FileSize = int64(len(data))

	if len(data) == 0 {
		res.Reasons = append(res.Reasons, "empty artifact")
		return res
	}
	if len(data) < MinFileSize {
		res.Reasons = append(res.Reasons,
			fmt.Sprintf("artifact too small: %d bytes (min %d)", len(data), MinFileSize))
	}
	if len(data) > MaxFileSize {
		res.Reasons = append(res.Reasons,
			fmt.Sprintf("artifact too large: %d bytes (max %d)", len(data), MaxFileSize))
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		res.Reasons = append(res.Reasons, fmt.Sprintf("not a decodable image: %v", err))
		return res
	}
	res.Width = cfg.Width
	res.Height = cfg.Height

	if cfg.Width != wantWidth || cfg.Height != wantHeight {
		res.Reasons = append(res.Reasons,
			fmt.Sprintf("dimensions %dx%d, want exactly %dx%d", cfg.Width, cfg.Height, wantWidth, wantHeight))
	}

	res.OK = len(res.Reasons) == 0
	return res
}
