// Package pages renders the HTML pages of the editor from embedded pongo2
// templates. Output is autoescaped; values marked with the safe filter must
// already be sanitized.
package pages

import (
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"sync"

	"github.com/flosch/pongo2/v6"
)

// Template names
const (
	Index  = "index.html"
	Viewer = "viewer.html"
)

//go:embed templates/*.html
var embedded embed.FS

// Context is the data handed to a template
type Context = pongo2.Context

// Engine renders named templates from a file system, caching each parsed
// template
type Engine struct {
	mu        sync.RWMutex
	set       *pongo2.TemplateSet
	templates map[string]*pongo2.Template
}

var (
	defaultOnce   sync.Once
	defaultEngine *Engine
)

// Default returns the engine over the embedded templates
func Default() *Engine {
	defaultOnce.Do(func() {
		sub, err := fs.Sub(embedded, "templates")
		if err != nil {
			panic(fmt.Sprintf("pages: embedded templates: %v", err))
		}
		defaultEngine = New(sub)
	})
	return defaultEngine
}

// New creates an engine loading templates from files
func New(files fs.FS) *Engine {
	registerFilters()
	return &Engine{
		set:       pongo2.NewSet("pdf-form-editor", pongo2.NewFSLoader(files)),
		templates: make(map[string]*pongo2.Template),
	}
}

// Render executes template name with data and writes the result to w.
// Nothing is written when execution fails.
func (e *Engine) Render(w io.Writer, name string, data Context) error {
	if e == nil || e.set == nil {
		return errors.New("pages: engine is nil")
	}

	tpl, err := e.template(name)
	if err != nil {
		return err
	}

	if err := tpl.ExecuteWriter(data, w); err != nil {
		return fmt.Errorf("pages: execute %q: %w", name, err)
	}
	return nil
}

func (e *Engine) template(name string) (*pongo2.Template, error) {
	e.mu.RLock()
	if tpl, ok := e.templates[name]; ok {
		e.mu.RUnlock()
		return tpl, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if tpl, ok := e.templates[name]; ok {
		return tpl, nil
	}

	tpl, err := e.set.FromFile(name)
	if err != nil {
		return nil, fmt.Errorf("pages: load %q: %w", name, err)
	}
	e.templates[name] = tpl
	return tpl, nil
}

// registerFilters adds the filters the templates use. Filters are global to
// pongo2, so existing registrations are kept.
func registerFilters() {
	if !pongo2.FilterExists("pathescape") {
		_ = pongo2.RegisterFilter("pathescape", filterPathEscape)
	}
}

// filterPathEscape escapes a value for use as one URL path segment
func filterPathEscape(in *pongo2.Value, _ *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	return pongo2.AsValue(url.PathEscape(in.String())), nil
}
