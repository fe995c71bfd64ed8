// Package web provides the HTTP server of go-goatweb
package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-while/go-goatweb/internal/config"
	"github.com/go-while/go-goatweb/internal/csrf"
	"github.com/go-while/go-goatweb/internal/database"
	"github.com/go-while/go-goatweb/internal/markdown"
	"github.com/go-while/go-goatweb/internal/metrics"
	"github.com/go-while/go-goatweb/internal/routes"
	"github.com/go-while/go-goatweb/internal/session"
	"github.com/go-while/go-goatweb/internal/view"
	log "github.com/sirupsen/logrus"
)

// ShutdownTimeout bounds the graceful shutdown of Start
const ShutdownTimeout = 10 * time.Second

// WebServer represents the web server
type WebServer struct {
	DB        *database.Database
	Router    *gin.Engine
	Config    *config.Config
	Store     *session.Store
	Views     *view.Engine
	Markdown  *markdown.Renderer
	Metrics   *metrics.Metrics
	StartTime time.Time // set by Serve
}

// Options are optional collaborators of NewServer
type Options struct {
	Metrics *metrics.Metrics
}

// NewServer creates the web server and registers all middleware and routes.
// The database must be open; it is used for sessions and by the routes.
func NewServer(cfg *config.Config, db *database.Database, opts Options) (*WebServer, error) {
	if cfg == nil || db == nil {
		return nil, errors.New("web: config and database are required")
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	m := opts.Metrics
	if m == nil {
		m = metrics.New()
	}

	md := markdown.New(markdown.Options{
		Sanitize:     cfg.Markdown.Sanitize,
		CacheEntries: cfg.Markdown.CacheEntries,
		CacheMaxAge:  cfg.Markdown.CacheMaxAge,
	})

	views, err := view.New(view.Options{
		Dir:        cfg.Web.ViewsDir,
		Autoescape: cfg.Security.Autoescape,
		Marked:     md.MustRender,
	})
	if err != nil {
		md.Stop()
		return nil, err
	}

	store := session.NewStore(db, []byte(cfg.CookieSecret))
	store.MaxAge(int(cfg.Session.MaxAge / time.Second))
	store.Options.Secure = cfg.Security.SecureCookie

	router := gin.New()
	if err := router.SetTrustedProxies(cfg.Web.TrustedProxies); err != nil {
		md.Stop()
		return nil, fmt.Errorf("web: trusted proxies: %w", err)
	}

	s := &WebServer{
		DB:       db,
		Router:   router,
		Config:   cfg,
		Store:    store,
		Views:    views,
		Markdown: md,
		Metrics:  m,
	}
	s.setupRoutes()

	log.WithFields(log.Fields{
		"security_headers":  cfg.Security.Headers,
		"autoescape":        cfg.Security.Autoescape,
		"secure_cookie":     cfg.Security.SecureCookie,
		"https":             cfg.HTTPS.Enabled,
		"markdown_sanitize": cfg.Markdown.Sanitize,
	}).Info("Web server configured")
	return s, nil
}

// setupRoutes installs the middleware chain and hands the engine to routes.
// Favicon and static assets are served before the session middleware so
// those requests never create a session.
func (s *WebServer) setupRoutes() {
	r := s.Router
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(RequestLogger())
	r.Use(s.Metrics.Handler())

	if s.Config.Security.Headers {
		r.Use(SecurityHeaders(s.Config.HTTPS.Enabled)...)
	}

	if s.Config.Web.FaviconPath != "" {
		r.Use(Favicon(s.Config.Web.FaviconPath))
	}
	r.Use(Static(s.Config.Web.AssetsDir))

	r.Use(session.Middleware(s.Store, s.Config.Session.Name))
	r.Use(csrf.Middleware(csrf.Options{ErrorFunc: s.csrfRejected}))
	r.Use(func(c *gin.Context) {
		view.SetLocal(c, "csrftoken", view.LocalFunc(func(c *gin.Context) any { return csrf.Token(c) }))
		view.SetLocal(c, "request_id", c.GetString(RequestIDKey))
		c.Next()
	})

	r.HTMLRender = s.Views

	routes.Register(r, s.DB, routes.Deps{Metrics: s.Metrics})

	r.GET("/metrics", s.Metrics.Exposer())
}

func (s *WebServer) csrfRejected(c *gin.Context) {
	s.Metrics.CSRFRejections.Inc()
	c.String(http.StatusForbidden, csrf.ErrInvalidToken.Error())
	c.Abort()
}

// Start listens on the configured port and serves until ctx is cancelled
func (s *WebServer) Start(ctx context.Context) error {
	addr := ":" + strconv.Itoa(s.Config.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("web: listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln, over TLS when HTTPS is enabled, until ctx is
// cancelled. In-flight requests get ShutdownTimeout to finish.
func (s *WebServer) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.StartTime = time.Now()
	srv := &http.Server{
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	cleanupDone := s.StartSessionCleanup(ctx)

	errCh := make(chan error, 1)
	go func() {
		if s.Config.HTTPS.Enabled {
			if s.Config.HTTPS.CertFile == "" || s.Config.HTTPS.KeyFile == "" {
				errCh <- errors.New("HTTPS enabled but cert_file or key_file not specified in config")
				return
			}
			log.Infof("HTTPS server listening on %s", ln.Addr())
			errCh <- srv.ServeTLS(ln, s.Config.HTTPS.CertFile, s.Config.HTTPS.KeyFile)
			return
		}
		log.Infof("HTTP server listening on %s", ln.Addr())
		errCh <- srv.Serve(ln)
	}()

	var serveErr error
	select {
	case serveErr = <-errCh:
		_ = ln.Close()
	case <-ctx.Done():
		log.WithField("uptime", time.Since(s.StartTime).Round(time.Second)).Info("Shutting down web server")
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), ShutdownTimeout)
		serveErr = srv.Shutdown(shutdownCtx)
		cancelShutdown()
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) && serveErr == nil {
			serveErr = err
		}
	}
	cancel()
	<-cleanupDone

	if errors.Is(serveErr, http.ErrServerClosed) {
		return nil
	}
	return serveErr
}

// Close releases background resources. The database stays open.
func (s *WebServer) Close() {
	if stats := s.Markdown.Stats(); stats != nil {
		log.WithFields(log.Fields(stats)).Debug("markdown cache stats")
	}
	s.Markdown.Stop()
}
