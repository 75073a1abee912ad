package handlers

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"net/http"

	"go.uber.org/zap"
)

//go:embed templates/*.html
var templatesFS embed.FS

// pages are rendered inside layout.html; partials stand alone
var (
	pageTemplates    = []string{"index.html", "movie.html"}
	partialTemplates = []string{"results.html"}
)

// Renderer handles template rendering
type Renderer struct {
	templates map[string]*template.Template
	logger    *zap.SugaredLogger
}

// NewRenderer parses every template up front. imageURL turns a TMDB poster
// path into an absolute URL.
func NewRenderer(imageURL func(string) string, logger *zap.SugaredLogger) (*Renderer, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if imageURL == nil {
		imageURL = func(string) string { return "" }
	}

	funcMap := template.FuncMap{
		"poster": imageURL,
	}

	templates := make(map[string]*template.Template, len(pageTemplates)+len(partialTemplates))

	// Each page gets its own set so their "content" blocks don't collide
	for _, name := range pageTemplates {
		tmpl, err := template.New(name).Funcs(funcMap).ParseFS(templatesFS,
			"templates/layout.html", "templates/results.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		templates[name] = tmpl
	}
	for _, name := range partialTemplates {
		tmpl, err := template.New(name).Funcs(funcMap).ParseFS(templatesFS, "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		templates[name] = tmpl
	}

	return &Renderer{
		templates: templates,
		logger:    logger,
	}, nil
}

// Render renders a template with data
func (r *Renderer) Render(w io.Writer, name string, data interface{}) error {
	tmpl, ok := r.templates[name]
	if !ok {
		return fmt.Errorf("template %s not found", name)
	}
	return tmpl.ExecuteTemplate(w, name, data)
}

// RenderPage renders a template with the given status and handles errors.
// Output is buffered so a failed render never sends a partial page.
func (r *Renderer) RenderPage(w http.ResponseWriter, status int, name string, data interface{}) {
	var buf bytes.Buffer
	if err := r.Render(&buf, name, data); err != nil {
		r.logger.Errorw("Failed to render template", "template", name, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
