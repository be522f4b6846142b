package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/Michael-Zapivahin/sensive-blog/internal/blog"
)

//go:embed templates/*.html
var templateFS embed.FS

const layout = "base.html"

var funcs = template.FuncMap{
	"postURL": func(slug string) string { return "/post/" + url.PathEscape(slug) },
	"tagURL":  func(title string) string { return "/tag/" + url.PathEscape(title) },
	"date":    func(t time.Time) string { return t.Format("02 January 2006") },
	"year":    func() int { return time.Now().Year() },
}

// HTMLRenderer executes embedded page templates inside the shared layout.
type HTMLRenderer struct {
	pages map[string]*template.Template
}

// NewHTMLRenderer parses every page template against the layout.
func NewHTMLRenderer() (*HTMLRenderer, error) {
	return newHTMLRenderer(templateFS, "templates")
}

func newHTMLRenderer(fsys fs.FS, dir string) (*HTMLRenderer, error) {
	files, err := fs.Glob(fsys, path.Join(dir, "*.html"))
	if err != nil {
		return nil, err
	}

	r := &HTMLRenderer{pages: make(map[string]*template.Template)}
	for _, file := range files {
		name := path.Base(file)
		if name == layout {
			continue
		}
		t, err := template.New(layout).Funcs(funcs).ParseFS(fsys, path.Join(dir, layout), file)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		r.pages[name] = t
	}
	if len(r.pages) == 0 {
		return nil, fmt.Errorf("no page templates in %s", dir)
	}
	return r, nil
}

// Has reports whether a page template is known.
func (r *HTMLRenderer) Has(name string) bool {
	_, ok := r.pages[name]
	return ok
}

func (r *HTMLRenderer) Render(w http.ResponseWriter, status int, page blog.Page) error {
	t, ok := r.pages[page.Template]
	if !ok {
		return fmt.Errorf("unknown template %q", page.Template)
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, layout, page.Context); err != nil {
		return fmt.Errorf("execute template %s: %w", page.Template, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}
