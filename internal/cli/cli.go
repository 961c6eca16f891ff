// Package cli implements the slideforge command-line interface.
//
// This package provides commands for rendering carousels (single runs and
// batches), reviewing finished batches over HTTP, and managing the
// rendered-artifact cache. The CLI is built using cobra and supports
// verbose logging via the charmbracelet/log library.
//
// # Commands
//
// The main commands are:
//   - render: Render a carousel or a batch of carousels to PNG slides
//   - serve: Serve a finished batch directory for browser review
//   - cache: Manage the rendered-artifact cache
//   - completion: Generate shell completion scripts
//
// All commands support --verbose (-v) for debug-level logging.
package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/mbaylis/slideforge/pkg/backend"
	"github.com/mbaylis/slideforge/pkg/backend/browser"
	"github.com/mbaylis/slideforge/pkg/backend/composer"
	"github.com/mbaylis/slideforge/pkg/backend/grammar"
	"github.com/mbaylis/slideforge/pkg/batch"
	"github.com/mbaylis/slideforge/pkg/buildinfo"
	"github.com/mbaylis/slideforge/pkg/cache"
	"github.com/mbaylis/slideforge/pkg/slide"
)

const (
	// appName is the application name used for directories and display.
	appName = "slideforge"

	// redisEnv selects the Redis artifact cache when set.
	redisEnv = "SLIDEFORGE_REDIS_ADDR"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: log.NewWithOptions(w, log.Options{
			ReportTimestamp: true,
			TimeFormat:      "15:04:05.00",
			Level:           level,
		}),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "slideforge",
		Short:        "Slideforge renders carousel slides to finished images",
		Long:         `Slideforge is the rendering orchestrator for social carousel content: it routes each slide to a rendering backend, retries failed renders with backoff, validates every output, and writes an aggregate batch report.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())

	root.AddCommand(c.renderCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// newRuntime assembles the backend registry, the shared browser surface,
// and the artifact cache for one run. Backend availability is decided
// here, once, so routing stays deterministic for the whole run.
func (c *CLI) newRuntime(ctx context.Context, noCache bool) (*batch.Runner, error) {
	var backends []backend.Renderer
	var resource batch.RendererResource

	if browser.Available() {
		surface := browser.NewSurface()
		backends = append(backends, browser.New(surface))
		resource = surface
	} else {
		c.Logger.Debug("no browser binary found, browser backend disabled")
	}

	g := grammar.New()
	backends = append(backends, g)
	if !g.Supports(slide.TypeData) {
		c.Logger.Debug("vl-convert not found, data slides fall back to the composer")
	}

	comp, err := composer.New()
	if err != nil {
		c.Logger.Warn("static composer disabled", "err", err)
	} else {
		backends = append(backends, comp)
	}

	store, err := newCache(ctx, noCache)
	if err != nil {
		c.Logger.Warn("artifact cache disabled", "err", err)
		store = cache.NewNullCache()
	}

	return batch.NewRunner(backend.NewRegistry(backends...), resource, store, c.Logger), nil
}

// newCache picks the artifact cache implementation: Redis when the env
// var is set, otherwise a file cache under the XDG cache directory.
func newCache(ctx context.Context, noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	if addr := os.Getenv(redisEnv); addr != "" {
		return cache.NewRedisCache(ctx, addr)
	}
	dir, err := cacheDir()
	if err != nil {
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(dir)
}

// cacheDir returns the cache directory using XDG standard (~/.cache/slideforge/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// defaultConfigPath returns the default accounts config location
// (~/.config/slideforge/accounts.toml). Missing files are fine; branding
// falls back to the built-in defaults.
func defaultConfigPath() string {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, appName, "accounts.toml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", appName, "accounts.toml")
}
