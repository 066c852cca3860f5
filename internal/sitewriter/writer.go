// Package sitewriter persists generated website content and serves it back
// over the app's asset server.
package sitewriter

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"sitespeak/internal/domain"
)

const (
	stylesheetLink = `<link rel="stylesheet" href="style.css">`
	scriptTag      = `<script src="script.js"></script>`
)

// Writer writes each generated site into its own directory under root and
// maps it to a URL under publicBase.
type Writer struct {
	root       string
	publicBase string
}

func New(root string, publicBase string) *Writer {
	return &Writer{root: root, publicBase: "/" + strings.Trim(publicBase, "/")}
}

// Write stores one site and returns its artifact URL. The stylesheet link
// and script tag are injected into the HTML when the content includes CSS or
// JS and the markup does not already reference them.
func (w *Writer) Write(content domain.SiteContent) (domain.GeneratedArtifact, error) {
	html := strings.TrimSpace(content.HTML)
	if html == "" {
		return domain.GeneratedArtifact{}, errors.New("site content has no html")
	}

	id := uuid.NewString()
	dir := filepath.Join(w.root, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return domain.GeneratedArtifact{}, fmt.Errorf("failed to create site directory: %w", err)
	}

	if content.CSS != "" {
		if err := os.WriteFile(filepath.Join(dir, "style.css"), []byte(content.CSS), 0o644); err != nil {
			return domain.GeneratedArtifact{}, fmt.Errorf("failed to write stylesheet: %w", err)
		}
		if !strings.Contains(html, stylesheetLink) {
			html = strings.Replace(html, "</head>", "  "+stylesheetLink+"\n</head>", 1)
		}
	}

	if content.JS != "" {
		if err := os.WriteFile(filepath.Join(dir, "script.js"), []byte(content.JS), 0o644); err != nil {
			return domain.GeneratedArtifact{}, fmt.Errorf("failed to write script: %w", err)
		}
		if !strings.Contains(html, scriptTag) {
			html = strings.Replace(html, "</body>", "  "+scriptTag+"\n</body>", 1)
		}
	}

	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte(html), 0o644); err != nil {
		return domain.GeneratedArtifact{}, fmt.Errorf("failed to write index.html: %w", err)
	}

	return domain.GeneratedArtifact{URL: w.publicBase + "/" + id + "/index.html"}, nil
}

// Handler serves written sites under publicBase. Requests outside that
// prefix are answered with 404 so the app's own assets stay untouched.
func (w *Writer) Handler() http.Handler {
	prefix := w.publicBase + "/"
	files := http.StripPrefix(prefix, http.FileServer(http.Dir(w.root)))
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, prefix) {
			http.NotFound(rw, r)
			return
		}
		files.ServeHTTP(rw, r)
	})
}
