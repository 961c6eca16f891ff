package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/mbaylis/slideforge/pkg/batch"
	"github.com/mbaylis/slideforge/pkg/errors"
)

// serveCommand creates the serve command: a local review server over a
// finished batch directory.
func (c *CLI) serveCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve [batch-dir]",
		Short: "Serve a finished batch directory for browser review",
		Long: `Serve starts a local HTTP server over a batch output directory. The
index page shows every rendered slide grouped by carousel; report.json
is available under /report.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), args[0], addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8093", "listen address")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, dir, addr string) error {
	if _, err := os.Stat(filepath.Join(dir, batch.ReportFilename)); err != nil {
		return errors.Wrap(errors.ErrCodeNotFound, err, "%s is not a batch directory", dir)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.CleanPath)

	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		report, err := batch.ReadReport(dir)
		if err != nil {
			http.Error(w, "read report: "+err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := reviewTmpl.Execute(w, reviewData{Report: report}); err != nil {
			c.Logger.Error("render review page", "err", err)
		}
	})

	r.Get("/report", func(w http.ResponseWriter, req *http.Request) {
		report, err := batch.ReadReport(dir)
		if err != nil {
			http.Error(w, "read report: "+err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(report)
	})

	r.Handle("/files/*", http.StripPrefix("/files/", http.FileServer(http.Dir(dir))))

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	printInfo("Serving %s", dir)
	fmt.Println("  " + StyleLink.Render("http://"+addr))

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return ctx.Err()
}

// reviewData feeds the index template. Image URLs are derived from the
// result paths recorded in the report, relative to the batch directory.
type reviewData struct {
	Report *batch.Report
}

var reviewTmpl = template.Must(template.New("review").Funcs(template.FuncMap{
	"rel": func(base, path string) string {
		if r, err := filepath.Rel(base, path); err == nil {
			return r
		}
		return path
	},
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>slideforge · {{.Report.RunID}}</title>
<style>
  body { font-family: sans-serif; background: #1a1a2e; color: #eee; margin: 2rem; }
  h1 { font-size: 1.2rem; } h2 { font-size: 1rem; color: #9ad; }
  .grid { display: flex; flex-wrap: wrap; gap: 1rem; }
  .unit { width: 220px; }
  .unit img { width: 100%; border-radius: 6px; }
  .meta { font-size: 0.75rem; color: #aaa; }
  .failed { color: #e66; }
</style>
</head>
<body>
<h1>Batch {{.Report.RunID}}</h1>
<p class="meta">{{.Report.Started.Format "2006-01-02 15:04:05"}} · <a href="/report" style="color:#9ad">report.json</a></p>
{{$root := .Report.OutputDir}}
{{range .Report.Jobs}}
<h2>Carousel {{.Carousel}}: {{.Topic}} ({{.Template}})</h2>
<div class="grid">
  {{range .Results}}
  <div class="unit">
    {{if eq (printf "%s" .Status) "success"}}<img src="/files/{{rel $root .Path}}" alt="slide {{.SlideNumber}}">{{else}}<p class="failed">{{.Status}}: {{.ErrorKind}}</p>{{end}}
    <p class="meta">slide {{.SlideNumber}} · {{.SlideType}} · {{.Ratio}} · {{.Backend}}</p>
  </div>
  {{end}}
</div>
{{end}}
</body>
</html>`))
