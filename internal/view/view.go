// Package view loads the .html views and renders them through gin.
//
// Autoescape off parses the views with text/template, so values are written
// verbatim. Autoescape on parses the same files with html/template.
package view

import (
	"fmt"
	htmltemplate "html/template"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	texttemplate "text/template"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"
	log "github.com/sirupsen/logrus"
)

const localsKey = "goatweb/locals"

// Extension of view files
const Extension = ".html"

var htmlContentType = []string{"text/html; charset=utf-8"}

// Options configures an Engine
type Options struct {
	Dir        string
	Autoescape bool
	// Marked renders markdown, exposed to views as "marked"
	Marked func(string) string
	// Funcs are extra template functions
	Funcs map[string]any
	// Reload re-parses the views on every render
	Reload bool
}

type executor interface {
	ExecuteTemplate(w io.Writer, name string, data any) error
}

// Engine renders views. It implements render.HTMLRender.
type Engine struct {
	opts  Options
	mu    sync.RWMutex
	pages map[string]executor
}

var _ render.HTMLRender = (*Engine)(nil)

// New parses all views below opts.Dir. Files whose name starts with "_" are
// partials and are available to every page, all other files are pages
// addressed by their path relative to Dir, e.g. "login.html".
func New(opts Options) (*Engine, error) {
	e := &Engine{opts: opts}
	if err := e.Load(); err != nil {
		return nil, err
	}
	return e, nil
}

// Load (re)parses all views
func (e *Engine) Load() error {
	partials, pages, err := collect(e.opts.Dir)
	if err != nil {
		return err
	}
	if len(pages) == 0 {
		return fmt.Errorf("view: no %s files in %s", Extension, e.opts.Dir)
	}

	parsed := make(map[string]executor, len(pages))
	for name, src := range pages {
		var t executor
		if e.opts.Autoescape {
			t, err = e.parseHTML(name, src, partials)
		} else {
			t, err = e.parseText(name, src, partials)
		}
		if err != nil {
			return fmt.Errorf("view: parse %s: %w", name, err)
		}
		parsed[name] = t
	}

	e.mu.Lock()
	e.pages = parsed
	e.mu.Unlock()
	log.WithFields(log.Fields{
		"dir":        e.opts.Dir,
		"pages":      len(parsed),
		"autoescape": e.opts.Autoescape,
	}).Info("Views loaded")
	return nil
}

// Autoescape reports whether output is escaped
func (e *Engine) Autoescape() bool {
	return e.opts.Autoescape
}

// Names returns the page names
func (e *Engine) Names() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.pages))
	for name := range e.pages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Instance implements render.HTMLRender
func (e *Engine) Instance(name string, data any) render.Render {
	if e.opts.Reload {
		if err := e.Load(); err != nil {
			log.WithError(err).Error("view reload failed")
		}
	}
	e.mu.RLock()
	t := e.pages[name]
	e.mu.RUnlock()
	return &pageRender{name: name, tmpl: t, data: data}
}

func (e *Engine) funcs() map[string]any {
	f := map[string]any{
		"date": func(t time.Time) string { return t.Format("2006-01-02 15:04") },
	}
	for k, v := range e.opts.Funcs {
		f[k] = v
	}
	marked := e.opts.Marked
	if marked == nil {
		marked = func(s string) string { return s }
	}
	if e.opts.Autoescape {
		f["marked"] = func(s string) htmltemplate.HTML { return htmltemplate.HTML(marked(s)) }
	} else {
		f["marked"] = marked
	}
	return f
}

func (e *Engine) parseText(name, src string, partials map[string]string) (executor, error) {
	root := texttemplate.New(name).Funcs(e.funcs())
	for pname, psrc := range partials {
		if _, err := root.New(pname).Parse(psrc); err != nil {
			return nil, fmt.Errorf("partial %s: %w", pname, err)
		}
	}
	if _, err := root.Parse(src); err != nil {
		return nil, err
	}
	return root, nil
}

func (e *Engine) parseHTML(name, src string, partials map[string]string) (executor, error) {
	root := htmltemplate.New(name).Funcs(e.funcs())
	for pname, psrc := range partials {
		if _, err := root.New(pname).Parse(psrc); err != nil {
			return nil, fmt.Errorf("partial %s: %w", pname, err)
		}
	}
	if _, err := root.Parse(src); err != nil {
		return nil, err
	}
	return root, nil
}

func collect(dir string) (partials, pages map[string]string, err error) {
	partials = map[string]string{}
	pages = map[string]string{}
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != Extension {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if strings.HasPrefix(d.Name(), "_") {
			partials[rel] = string(content)
		} else {
			pages[rel] = string(content)
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("view: read %s: %w", dir, err)
	}
	return partials, pages, nil
}

type pageRender struct {
	name string
	tmpl executor
	data any
}

// Render implements render.Render
func (r *pageRender) Render(w http.ResponseWriter) error {
	r.WriteContentType(w)
	if r.tmpl == nil {
		return fmt.Errorf("view: %q not found", r.name)
	}
	return r.tmpl.ExecuteTemplate(w, r.name, r.data)
}

// WriteContentType implements render.Render
func (r *pageRender) WriteContentType(w http.ResponseWriter) {
	header := w.Header()
	if val := header["Content-Type"]; len(val) == 0 {
		header["Content-Type"] = htmlContentType
	}
}

// LocalFunc is a local resolved when a view is rendered, not when it is set
type LocalFunc func(c *gin.Context) any

// SetLocal stores a value every view rendered for this request can read.
// A LocalFunc value is called at render time.
func SetLocal(c *gin.Context, key string, value any) {
	Locals(c)[key] = value
}

// Locals returns the request locals, creating them on first use
func Locals(c *gin.Context) gin.H {
	if v, ok := c.Get(localsKey); ok {
		return v.(gin.H)
	}
	locals := gin.H{}
	c.Set(localsKey, locals)
	return locals
}

// HTML renders the named view with the request locals merged under data
func HTML(c *gin.Context, code int, name string, data gin.H) {
	merged := gin.H{}
	for k, v := range Locals(c) {
		if fn, ok := v.(LocalFunc); ok {
			v = fn(c)
		}
		merged[k] = v
	}
	for k, v := range data {
		merged[k] = v
	}
	c.HTML(code, name, merged)
}
