package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"

	"github.com/dmitrijs2005/accounts/internal/server/models"
	"github.com/dmitrijs2005/accounts/internal/server/validation"
)

//go:embed templates/*.html
var templateFS embed.FS

const baseTemplate = "templates/base.html"

type pages struct {
	byName map[string]*template.Template
}

// loadPages parses every page together with the base layout.
func loadPages() (*pages, error) {
	files, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	p := &pages{byName: make(map[string]*template.Template, len(files))}
	for _, f := range files {
		if f == baseTemplate {
			continue
		}
		t, err := template.ParseFS(templateFS, baseTemplate, f)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", f, err)
		}
		name := path.Base(f)
		p.byName[name[:len(name)-len(path.Ext(name))]] = t
	}
	return p, nil
}

// pageData is what every template sees.
type pageData struct {
	Title          string
	SiteName       string
	User           *models.User
	Form           map[string]string
	Errors         validation.Errors
	NonFieldErrors []string
	Message        string
	Next           string
	ValidLink      bool
}

// render executes the page into a buffer first so a template error can
// still become a 500.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data pageData) {
	t, ok := s.pages.byName[name]
	if !ok {
		s.log.Error(r.Context(), "unknown page", "page", name)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	data.SiteName = s.opts.SiteName
	if data.User == nil {
		data.User = UserFromContext(r.Context())
	}
	if data.Errors != nil {
		data.NonFieldErrors = append(data.NonFieldErrors, data.Errors[validation.NonField]...)
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "base", data); err != nil {
		s.log.Error(r.Context(), "render failed", "page", name, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
