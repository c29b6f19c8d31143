package server

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"time"

	"jnsite/internal/services"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = []string{"login", "dashboard", "submissions", "visits", "editor"}

type views struct {
	pages map[string]*template.Template
}

// page is the data every admin template receives
type page struct {
	Title         string
	Nav           string
	Authenticated bool
	Error         string
	Data          interface{}
}

func loadViews(locale *services.Locale) (*views, error) {
	funcs := template.FuncMap{
		"t":    locale.T,
		"date": func(t time.Time) string { return locale.FormatDate(t) },
	}

	base, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS, "templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse layout: %w", err)
	}

	v := &views{pages: make(map[string]*template.Template, len(pages))}
	for _, name := range pages {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("failed to clone layout: %w", err)
		}
		tmpl, err := clone.ParseFS(templateFS, "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s template: %w", name, err)
		}
		v.pages[name] = tmpl
	}
	return v, nil
}

// render executes the page into a buffer so a template error never leaves
// a half written response.
func (v *views) render(w http.ResponseWriter, status int, name string, p page) {
	tmpl, ok := v.pages[name]
	if !ok {
		log.Printf("[API] Unknown template %s", name)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", p); err != nil {
		log.Printf("[API] Failed to render %s: %v", name, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
