package web

import (
	"embed"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
)

//go:embed pages
var pagesFS embed.FS

const (
	IndexPage    = "index.html"
	SettingsPage = "settings.html"
)

// Pages returns the embedded root and settings pages.
func Pages() (*WebApp, error) {
	return NewWebApp("pages", pagesFS, "pages")
}

type WebApp struct {
	name string
	l    *slog.Logger
	fs   fs.FS
}

func NewWebApp(name string, app fs.FS, subDir string) (*WebApp, error) {
	subFS, err := fs.Sub(app, subDir)
	if err != nil {
		return nil, err
	}

	return &WebApp{
		name: name,
		fs:   subFS,
		l:    slog.Default().With(slog.String("component", name)),
	}, nil
}

// WithLogger replaces the logger used for missing files.
func (wa *WebApp) WithLogger(l *slog.Logger) *WebApp {
	wa.l = l.With(slog.String("app", wa.name), slog.String("component", "file-server"))
	return wa
}

// Has reports whether the app contains the named regular file.
func (wa *WebApp) Has(name string) bool {
	f, err := fs.Stat(wa.fs, name)
	return err == nil && !f.IsDir()
}

// Page returns a handler that always serves the named file, whatever the request path.
func (wa *WebApp) Page(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := fs.ReadFile(wa.fs, name)
		if err != nil {
			wa.l.Warn("File not found", slog.String("path", name))
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}

// ServeHTTP serves files by request path, trying the exact name, then .html, then /index.html.
func (wa *WebApp) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/")
	if path == "" {
		path = IndexPage
	}

	altSuffixes := []string{"", ".html", "/index.html"}
	for _, suffix := range altSuffixes {
		altPath := strings.TrimSuffix(path, "/") + suffix
		if !wa.Has(altPath) {
			continue
		}

		wa.Page(altPath)(w, r)

		return
	}

	wa.l.Warn("File not found", slog.String("path", path))
	http.NotFound(w, r)
}
