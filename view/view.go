// Package view renders the dashboard shell and serves its static assets.
// Templates and assets are embedded in the binary.
package view

import (
	"bytes"
	"crypto/sha1"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"sync"
	"time"
)

//go:embed templates
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

var (
	tplCache = struct {
		sync.RWMutex
		m map[string]*template.Template
	}{m: map[string]*template.Template{}}

	assetVersions sync.Map // rel path -> version hash
)

// partials are parsed alongside every page.
var partials = []string{
	"templates/partials/stat-card.html",
	"templates/partials/chart-card.html",
}

// Funcs returns the helpers available to every template.
func Funcs() template.FuncMap {
	return template.FuncMap{
		"year":  func() int { return time.Now().Year() },
		"asset": versionedAsset,
		// dict creates a map from key-value pairs for passing to sub-templates.
		// Usage: {{ template "partial" (dict "Key1" val1 "Key2" val2) }}
		"dict": func(values ...any) map[string]any {
			if len(values)%2 != 0 {
				return nil
			}
			m := make(map[string]any, len(values)/2)
			for i := 0; i < len(values); i += 2 {
				key, ok := values[i].(string)
				if !ok {
					continue
				}
				m[key] = values[i+1]
			}
			return m
		},
	}
}

// versionedAsset returns /static/<rel>?v=<hash> for cache busting.
func versionedAsset(rel string) string {
	if strings.HasPrefix(rel, "http://") || strings.HasPrefix(rel, "https://") || strings.HasPrefix(rel, "//") {
		return rel
	}
	if v, ok := assetVersions.Load(rel); ok {
		return "/static/" + rel + "?v=" + v.(string)
	}
	b, err := staticFS.ReadFile("static/" + rel)
	if err != nil {
		return "/static/" + rel
	}
	h := sha1.Sum(b)
	v := fmt.Sprintf("%x", h[:8])
	assetVersions.Store(rel, v)
	return "/static/" + rel + "?v=" + v
}

func parse(name string) (*template.Template, error) {
	tplCache.RLock()
	t, ok := tplCache.m[name]
	tplCache.RUnlock()
	if ok {
		return t, nil
	}

	files := append([]string{"templates/layout.html", "templates/" + name}, partials...)
	t, err := template.New("layout.html").Funcs(Funcs()).ParseFS(templateFS, files...)
	if err != nil {
		return nil, err
	}
	tplCache.Lock()
	tplCache.m[name] = t
	tplCache.Unlock()
	return t, nil
}

// Render executes the page name inside the shared layout. The page is
// rendered to a buffer first so a template error leaves w untouched.
func Render(w http.ResponseWriter, name string, data map[string]any) error {
	t, err := parse(name)
	if err != nil {
		return err
	}
	if data == nil {
		data = map[string]any{}
	}
	if _, exists := data["Year"]; !exists {
		data["Year"] = time.Now().Year()
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err = buf.WriteTo(w)
	return err
}

// Static serves the embedded assets; mount it under /static/.
func Static() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}

// Dashboard serves the single-page dashboard with the API base injected.
func Dashboard(apiBase string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := Render(w, "dashboard.html", map[string]any{
			"Title":   "Invoice Analytics",
			"APIBase": apiBase,
		})
		if err != nil {
			http.Error(w, "render error", http.StatusInternalServerError)
		}
	}
}
