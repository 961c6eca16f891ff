package cli

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/mbaylis/slideforge/pkg/batch"
)

// =============================================================================
// Color Palette
// =============================================================================

var (
	colorCyan   = lipgloss.Color("36")  // Teal - primary actions
	colorGreen  = lipgloss.Color("35")  // Green - success
	colorYellow = lipgloss.Color("220") // Amber - warnings
	colorRed    = lipgloss.Color("167") // Soft red - errors
	colorBlue   = lipgloss.Color("75")  // Light blue - links
	colorWhite  = lipgloss.Color("255") // Bright white - values
	colorGray   = lipgloss.Color("245") // Gray - secondary text
	colorDim    = lipgloss.Color("240") // Dim gray - muted text
)

// =============================================================================
// Public Styles
// =============================================================================

var (
	// StyleTitle for main headings.
	StyleTitle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)

	// StyleHighlight for emphasized values.
	StyleHighlight = lipgloss.NewStyle().Foreground(colorCyan)

	// StyleLink for URLs.
	StyleLink = lipgloss.NewStyle().Foreground(colorBlue).Underline(true)

	// StyleDim for secondary/muted text.
	StyleDim = lipgloss.NewStyle().Foreground(colorDim)

	// StyleValue for data values.
	StyleValue = lipgloss.NewStyle().Foreground(colorWhite)

	// StyleSuccess for success messages.
	StyleSuccess = lipgloss.NewStyle().Foreground(colorGreen)

	// StyleWarning for warning messages.
	StyleWarning = lipgloss.NewStyle().Foreground(colorYellow)
)

// =============================================================================
// Internal Styles
// =============================================================================

var (
	styleIconSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleIconError   = lipgloss.NewStyle().Foreground(colorRed)
	styleIconWarning = lipgloss.NewStyle().Foreground(colorYellow)
	styleIconInfo    = lipgloss.NewStyle().Foreground(colorGray)

	styleStatusOK      = lipgloss.NewStyle().Foreground(colorGreen)
	styleStatusFail    = lipgloss.NewStyle().Foreground(colorRed)
	styleStatusSkip    = lipgloss.NewStyle().Foreground(colorDim)
	styleStatusPartial = lipgloss.NewStyle().Foreground(colorYellow)

	styleCommand = lipgloss.NewStyle().Foreground(colorBlue)
)

// =============================================================================
// Icons
// =============================================================================

const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconWarning = "!"
	iconInfo    = "›"
	iconArrow   = "→"
)

// =============================================================================
// Status Output
// =============================================================================

// printSuccess prints a success message.
func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconSuccess.Render(iconSuccess) + " " + msg)
}

// printError prints an error message.
func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconError.Render(iconError) + " " + msg)
}

// printWarning prints a warning message.
func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconWarning.Render(iconWarning) + " " + StyleWarning.Render(msg))
}

// printInfo prints an info/status message.
func printInfo(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconInfo.Render(iconInfo) + " " + msg)
}

// printDetail prints a detail line (indented).
func printDetail(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println("  " + StyleDim.Render(msg))
}

// printFile prints a file output line.
func printFile(path string) {
	fmt.Println("  " + StyleDim.Render(iconArrow) + " " + StyleValue.Render(path))
}

// printNextStep prints a suggested next command.
func printNextStep(description, cmd string) {
	fmt.Println(StyleDim.Render(description+":") + " " + styleCommand.Render(cmd))
}

// printNewline prints an empty line.
func printNewline() {
	fmt.Println()
}

// =============================================================================
// Batch Summary
// =============================================================================

// statusCell renders a unit status with its color.
func statusCell(s batch.Status) string {
	switch s {
	case batch.StatusSuccess:
		return styleStatusOK.Render(string(s))
	case batch.StatusFailed:
		return styleStatusFail.Render(string(s))
	case batch.StatusSkipped:
		return styleStatusSkip.Render(string(s))
	case batch.StatusPartial:
		return styleStatusPartial.Render(string(s))
	}
	return string(s)
}

// printReportSummary prints the per-unit result table and the batch totals.
// Failures are listed in full; the table itself never scrolls past what the
// report records.
func printReportSummary(r *batch.Report) {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(StyleDim).
		Headers("CAROUSEL", "SLIDE", "RATIO", "BACKEND", "STATUS", "TIME")

	for _, job := range r.Jobs {
		for _, res := range job.Results {
			t.Row(
				fmt.Sprintf("%d %s", res.Carousel, job.Topic),
				fmt.Sprintf("%02d %s", res.SlideNumber, res.SlideType),
				string(res.Ratio),
				string(res.Backend),
				statusCell(res.Status),
				res.Elapsed.Round(time.Millisecond).String(),
			)
		}
	}
	fmt.Println(t.String())

	ok, total := r.SuccessCount(), r.UnitCount()
	switch {
	case ok == total:
		printSuccess("%d/%d units rendered", ok, total)
	case ok == 0:
		printError("%d/%d units rendered", ok, total)
	default:
		printWarning("%d/%d units rendered, %d failed", ok, total, len(r.Failed))
	}
	if total > 0 {
		printDetail("total %s · avg %s · max %s",
			r.Timing.Total.Round(time.Millisecond),
			r.Timing.Average.Round(time.Millisecond),
			r.Timing.Max.Round(time.Millisecond))
	}
	for _, f := range r.Failed {
		printDetail("carousel %d slide %02d %s: %s", f.Carousel, f.SlideNumber, f.Ratio, f.ErrorKind)
	}
	for _, d := range r.Drift {
		printWarning("drift: carousel %d slide %02d %s no longer validates", d.Carousel, d.SlideNumber, d.Ratio)
	}
}
