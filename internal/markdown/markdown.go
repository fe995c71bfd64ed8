// Package markdown renders user supplied markdown to HTML for the views.
package markdown

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-while/go-goatweb/internal/cache"
	"github.com/microcosm-cc/bluemonday"
	log "github.com/sirupsen/logrus"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Options configures a Renderer
type Options struct {
	// Sanitize drops raw HTML from the source and runs the output through a
	// bluemonday UGC policy. Off means raw HTML passes through untouched.
	Sanitize     bool
	CacheEntries int
	CacheMaxAge  time.Duration
}

// Renderer converts markdown to HTML and caches the result
type Renderer struct {
	md       goldmark.Markdown
	policy   *bluemonday.Policy
	sanitize bool
	cache    *cache.RenderCache
}

// New returns a Renderer. Stop it to release the cache goroutine.
func New(opts Options) *Renderer {
	var rendererOpts []goldmark.Option
	if !opts.Sanitize {
		rendererOpts = append(rendererOpts, goldmark.WithRendererOptions(html.WithUnsafe()))
	}
	rendererOpts = append(rendererOpts, goldmark.WithExtensions(extension.GFM))

	r := &Renderer{
		md:       goldmark.New(rendererOpts...),
		sanitize: opts.Sanitize,
	}
	if opts.Sanitize {
		r.policy = bluemonday.UGCPolicy()
	}
	if opts.CacheEntries > 0 {
		r.cache = cache.NewRenderCache(opts.CacheEntries, opts.CacheMaxAge)
	}
	log.WithFields(log.Fields{
		"sanitize":      opts.Sanitize,
		"cache_entries": opts.CacheEntries,
	}).Debug("markdown renderer ready")
	return r
}

// Sanitizing reports whether output is sanitized
func (r *Renderer) Sanitizing() bool {
	return r.sanitize
}

// Render converts src to HTML
func (r *Renderer) Render(src string) (string, error) {
	if r.cache != nil {
		if out, ok := r.cache.Get(src); ok {
			return out, nil
		}
	}

	var buf bytes.Buffer
	if err := r.md.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("markdown: convert: %w", err)
	}
	out := buf.String()
	if r.policy != nil {
		out = r.policy.Sanitize(out)
	}

	if r.cache != nil {
		r.cache.Set(src, out)
	}
	return out, nil
}

// MustRender is Render for templates, errors are logged and yield ""
func (r *Renderer) MustRender(src string) string {
	out, err := r.Render(src)
	if err != nil {
		log.WithError(err).Warn("markdown render failed")
		return ""
	}
	return out
}

// Stats returns the cache statistics, nil without a cache
func (r *Renderer) Stats() map[string]interface{} {
	if r.cache == nil {
		return nil
	}
	return r.cache.Stats()
}

// Stop releases the cache
func (r *Renderer) Stop() {
	if r.cache != nil {
		r.cache.Stop()
	}
}
