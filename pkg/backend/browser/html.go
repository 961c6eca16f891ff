package browser

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/mbaylis/slideforge/pkg/backend"
	"github.com/mbaylis/slideforge/pkg/slide"
)

// slideTmpl is the document injected into the render tab. Layout is a
// fixed-size flexbox matching the viewport, so the screenshot needs no
// cropping. The #slide-root id doubles as the content-ready signal.
var slideTmpl = template.Must(template.New("slide").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
  * { margin: 0; padding: 0; box-sizing: border-box; }
  html, body { width: {{.Width}}px; height: {{.Height}}px; overflow: hidden; }
  body {
    background: linear-gradient(160deg, {{.Branding.Background}} 55%, {{.Branding.Primary}} 160%);
    color: {{.Branding.TextColor}};
    font-family: 'Helvetica Neue', Arial, sans-serif;
    display: flex; flex-direction: column;
  }
  .chrome { display: flex; justify-content: space-between;
    padding: 52px 64px 0; font-size: 30px; opacity: 0.85; }
  .content { flex: 1; display: flex; flex-direction: column;
    justify-content: center; padding: 0 104px; }
  .title { font-size: 72px; font-weight: 700; line-height: 1.2; }
  .body { font-size: 40px; line-height: 1.45; margin-top: 48px; opacity: 0.92; }
  .stat { font-size: 168px; font-weight: 800; color: {{.Branding.Secondary}}; }
  .items { list-style: none; margin-top: 56px; }
  .items li { font-size: 38px; line-height: 1.4; margin-bottom: 36px; padding-left: 64px; position: relative; }
  .items li::before { content: "{{.Marker}}"; position: absolute; left: 0; color: {{.Branding.Secondary}}; }
  .quote-mark { font-size: 180px; color: {{.Branding.Secondary}}; line-height: 0.8; }
  .source { font-size: 28px; opacity: 0.7; margin-top: 40px; }
  .footer { text-align: center; padding-bottom: 36px; font-size: 24px; opacity: 0.7; }
</style>
</head>
<body>
  <div class="chrome">
    <span>{{.Branding.Handle}}</span>
    <span>{{.Slide.SlideNumber}}/{{.Slide.TotalSlides}}</span>
  </div>
  <div class="content">
    {{if .IsQuote}}<div class="quote-mark">&ldquo;</div>{{end}}
    {{if .IsStat}}<div class="stat">{{.StatText}}</div>{{end}}
    {{if .Slide.Title}}<div class="title">{{.Slide.Title}}</div>{{end}}
    {{if .Slide.Body}}<div class="body">{{.Slide.Body}}</div>{{end}}
    {{if .Slide.Items}}
    <ul class="items">
      {{range .Slide.Items}}<li>{{.}}</li>{{end}}
    </ul>
    {{end}}
    {{if .Slide.Source}}<div class="source">&mdash; {{.Slide.Source}}</div>{{end}}
  </div>
  <div class="footer" id="slide-root">{{.Branding.Footer}}</div>
</body>
</html>`))

// docData is the template payload for one slide document.
type docData struct {
	Slide    slide.Content
	Branding slide.Branding
	Width    int
	Height   int
	Marker   string
	IsQuote  bool
	IsStat   bool
	StatText string
}

// slideDocument renders the HTML for a spec.
func slideDocument(spec backend.RenderSpec) ([]byte, error) {
	data := docData{
		Slide:    spec.Slide,
		Branding: spec.Branding,
		Width:    spec.Width,
		Height:   spec.Height,
		Marker:   "•",
		IsQuote:  spec.Slide.Type == slide.TypeQuote,
		IsStat:   spec.Slide.Type == slide.TypeStat,
	}
	switch spec.Slide.Type {
	case slide.TypeChecklist:
		data.Marker = "✓"
	case slide.TypeProcess:
		data.Marker = "→"
	}
	if data.IsStat {
		data.StatText = statText(spec.Slide.StatValue, spec.Slide.StatUnit)
	}

	var buf bytes.Buffer
	if err := slideTmpl.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// statText formats the headline stat, dropping a superfluous ".0".
func statText(v float64, unit string) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d%s", int64(v), unit)
	}
	return fmt.Sprintf("%.1f%s", v, unit)
}
