package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mbaylis/slideforge/pkg/batch"
	"github.com/mbaylis/slideforge/pkg/errors"
	"github.com/mbaylis/slideforge/pkg/slide"
)

// renderOpts holds the command-line flags for the render command.
// Single-run flags (topic, template, ratio) and batch flags (batch, verify)
// are mutually exclusive surfaces over the same runner.
type renderOpts struct {
	topic      string // carousel topic for a single run
	template   string // template name (picker opens when empty on a TTY)
	account    int    // branding account number
	ratio      string // target ratio for a single run: "1:1" or "4:5"
	bothRatios bool   // render every slide at both ratios
	slidesPath string // optional JSON file with finished slide content

	batchPath string // batch input JSON; switches to batch mode
	verify    bool   // re-validate outputs on disk after the run

	outputDir      string // root for the batch-{timestamp} directory
	configPath     string // accounts TOML (branding)
	qualityReport  bool   // include validator diagnostics for successes
	noQuality      bool   // skip validation entirely
	abortOnFailure bool   // stop the batch at the first failed unit
	parallel       int    // carousels rendered concurrently
	timeout        int    // per-attempt render timeout in seconds
	noCache        bool   // bypass the artifact cache
	archiveURI     string // MongoDB URI for report archival
}

// renderCommand creates the render command for producing slide images.
func (c *CLI) renderCommand() *cobra.Command {
	opts := renderOpts{
		ratio:   "1:1",
		account: 1,
	}

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a carousel or a batch of carousels to PNG slides",
		Long: `Render routes each slide to a rendering backend, retries failures with
backoff, validates every output image, and writes a report.json next to
the rendered files. A batch with failed units still exits zero; only
configuration errors that prevent the run from starting are fatal.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.batchPath != "" && opts.topic != "" {
				return errors.New(errors.ErrCodeBatchConfig, "--batch and --topic are mutually exclusive")
			}
			if opts.batchPath == "" && opts.topic == "" {
				return errors.New(errors.ErrCodeBatchConfig, "either --topic or --batch is required")
			}
			return c.runRender(cmd.Context(), &opts)
		},
	}

	cmd.Flags().StringVar(&opts.topic, "topic", "", "carousel topic for a single run")
	cmd.Flags().StringVarP(&opts.template, "template", "t", "", "carousel template (interactive picker when omitted)")
	cmd.Flags().IntVar(&opts.account, "account", opts.account, "branding account number")
	cmd.Flags().StringVar(&opts.ratio, "ratio", opts.ratio, "target ratio: 1:1 or 4:5")
	cmd.Flags().BoolVar(&opts.bothRatios, "both-ratios", false, "render each slide at 1:1 and 4:5")
	cmd.Flags().StringVar(&opts.slidesPath, "slides", "", "JSON file with finished slide content")
	cmd.Flags().StringVar(&opts.batchPath, "batch", "", "batch input JSON file")
	cmd.Flags().BoolVar(&opts.verify, "verify", false, "re-validate all outputs on disk after the run")
	cmd.Flags().StringVarP(&opts.outputDir, "output-dir", "o", ".", "directory the batch output tree is created under")
	cmd.Flags().StringVar(&opts.configPath, "config", defaultConfigPath(), "accounts TOML file for branding")
	cmd.Flags().BoolVar(&opts.qualityReport, "quality-report", false, "record validator diagnostics for successful units too")
	cmd.Flags().BoolVar(&opts.noQuality, "no-quality", false, "skip output validation (adapter success is final)")
	cmd.Flags().BoolVar(&opts.abortOnFailure, "abort-on-failure", false, "stop the batch at the first failed unit")
	cmd.Flags().IntVar(&opts.parallel, "parallel", 1, "carousels rendered concurrently")
	cmd.Flags().IntVar(&opts.timeout, "timeout", 0, "per-attempt render timeout in seconds (0 = default)")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "bypass the rendered-artifact cache")
	cmd.Flags().StringVar(&opts.archiveURI, "archive-uri", "", "MongoDB URI to archive the batch report")

	return cmd
}

// runRender assembles jobs from the flags and drives one batch run.
func (c *CLI) runRender(ctx context.Context, opts *renderOpts) error {
	jobs, err := c.assembleJobs(opts)
	if err != nil {
		return err
	}

	runner, err := c.newRuntime(ctx, opts.noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	ropts := batch.Options{
		OutputRoot:     opts.outputDir,
		SkipValidation: opts.noQuality,
		QualityReport:  opts.qualityReport,
		Verify:         opts.verify,
		AbortOnFailure: opts.abortOnFailure,
		Parallel:       opts.parallel,
		BrandingPath:   opts.configPath,
		Logger:         c.Logger,
	}
	if opts.timeout > 0 {
		ropts.RenderTimeout = time.Duration(opts.timeout) * time.Second
	}

	prog := newProgress(c.Logger)
	report, err := runner.Execute(ctx, jobs, ropts)
	if err != nil {
		return err
	}
	prog.done(fmt.Sprintf("Rendered %d/%d units", report.SuccessCount(), report.UnitCount()))

	path, err := report.Write()
	if err != nil {
		return errors.Wrap(errors.ErrCodeBatchConfig, err, "write report")
	}

	printNewline()
	printReportSummary(report)
	printNewline()
	printFile(path)
	printNextStep("Review in a browser", "slideforge serve "+report.OutputDir)

	if opts.archiveURI != "" {
		if err := batch.ArchiveReport(ctx, opts.archiveURI, report); err != nil {
			c.Logger.Warn("report archive failed", "err", err)
		} else {
			printDetail("report archived")
		}
	}
	return nil
}

// assembleJobs turns the flags into job snapshots: either the parsed batch
// file or a single synthetic carousel.
func (c *CLI) assembleJobs(opts *renderOpts) ([]*slide.Job, error) {
	if opts.batchPath != "" {
		in, err := batch.ParseInput(opts.batchPath)
		if err != nil {
			return nil, err
		}
		return in.Jobs()
	}

	if opts.template == "" {
		name, err := pickTemplate()
		if err != nil {
			return nil, err
		}
		opts.template = name
	}
	if _, err := slide.LookupTemplate(opts.template); err != nil {
		return nil, errors.Wrap(errors.ErrCodeBatchConfig, err, "template")
	}
	if _, err := slide.ParseRatio(opts.ratio); err != nil {
		return nil, errors.Wrap(errors.ErrCodeBatchConfig, err, "ratio")
	}

	carousel := batch.InputCarousel{
		Topic:      opts.topic,
		Template:   opts.template,
		Account:    opts.account,
		BothRatios: opts.bothRatios,
	}
	if opts.slidesPath != "" {
		slides, err := readSlides(opts.slidesPath)
		if err != nil {
			return nil, err
		}
		carousel.Slides = slides
	}

	in := batch.Input{Carousels: []batch.InputCarousel{carousel}}
	jobs, err := in.Jobs()
	if err != nil {
		return nil, err
	}
	if !opts.bothRatios {
		ratio, _ := slide.ParseRatio(opts.ratio)
		jobs[0].Ratios = []slide.Ratio{ratio}
	}
	return jobs, nil
}

// readSlides loads finished slide content from a JSON array.
func readSlides(path string) ([]slide.Content, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeBatchConfig, err, "read slides file %s", path)
	}
	var slides []slide.Content
	if err := json.Unmarshal(data, &slides); err != nil {
		return nil, errors.Wrap(errors.ErrCodeBatchConfig, err, "malformed slides JSON in %s", path)
	}
	return slides, nil
}
