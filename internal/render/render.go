// Package render turns assembled pages into HTTP responses.
package render

import (
	"encoding/json"
	"mime"
	"net/http"
	"strings"

	"github.com/Michael-Zapivahin/sensive-blog/internal/blog"
)

// Renderer writes a page with the given status.
type Renderer interface {
	Render(w http.ResponseWriter, status int, page blog.Page) error
}

// JSONRenderer writes the page context as a JSON document.
type JSONRenderer struct{}

func (JSONRenderer) Render(w http.ResponseWriter, status int, page blog.Page) error {
	data, err := json.Marshal(page.Context)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(data)
	return err
}

// WantsJSON reports whether the client asked for JSON with ?format=json or
// an Accept header that prefers application/json over text/html.
func WantsJSON(r *http.Request) bool {
	switch strings.ToLower(r.URL.Query().Get("format")) {
	case "json":
		return true
	case "html":
		return false
	}
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		switch mediaType {
		case "application/json":
			return true
		case "text/html", "application/xhtml+xml":
			return false
		}
	}
	return false
}

// Negotiate picks the JSON renderer for JSON clients and html otherwise.
func Negotiate(r *http.Request, html, json Renderer) Renderer {
	if WantsJSON(r) {
		return json
	}
	return html
}
