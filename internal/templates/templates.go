// Package templates is the render/static collaborator consumed by the HTTP
// layer. The production implementation embeds its assets at build time;
// tests may inject fixtures through the Renderer interface.
package templates

import (
	"embed"
	"fmt"
	"strings"
)

//go:embed assets
var assetFS embed.FS

// Renderer is the two-operation collaborator contract: render a named page
// with variables, and look up a static asset by path suffix.
type Renderer interface {
	Render(name string, vars map[string]string) ([]byte, error)
	Static(path string) (data []byte, mimeType string, ok bool)
}

// Embedded serves the compiled-in asset collection.
type Embedded struct{}

// NewEmbedded returns the production renderer.
func NewEmbedded() *Embedded {
	return &Embedded{}
}

// Render loads assets/<name>.html and substitutes {{KEY}} placeholders.
// Unknown placeholders are left verbatim.
func (e *Embedded) Render(name string, vars map[string]string) ([]byte, error) {
	raw, err := assetFS.ReadFile("assets/" + name + ".html")
	if err != nil {
		return nil, fmt.Errorf("unknown template %q", name)
	}

	if len(vars) == 0 {
		return raw, nil
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	return []byte(strings.NewReplacer(pairs...).Replace(string(raw))), nil
}

// Static resolves an asset key such as "directory/styles.css". MIME is
// derived from the suffix; there is no filesystem lookup.
func (e *Embedded) Static(path string) ([]byte, string, bool) {
	if strings.Contains(path, "..") {
		return nil, "", false
	}
	data, err := assetFS.ReadFile("assets/static/" + path)
	if err != nil {
		return nil, "", false
	}
	return data, staticMime(path), true
}

func staticMime(path string) string {
	switch {
	case strings.HasSuffix(path, ".css"):
		return "text/css; charset=utf-8"
	case strings.HasSuffix(path, ".js"):
		return "application/javascript; charset=utf-8"
	case strings.HasSuffix(path, ".svg"):
		return "image/svg+xml"
	case strings.HasSuffix(path, ".ico"):
		return "image/x-icon"
	default:
		return "application/octet-stream"
	}
}
