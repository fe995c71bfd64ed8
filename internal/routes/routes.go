// Package routes registers the application pages on a gin engine.
package routes

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-while/go-goatweb/internal/database"
	"github.com/go-while/go-goatweb/internal/metrics"
	"github.com/go-while/go-goatweb/internal/session"
	"github.com/go-while/go-goatweb/internal/view"
	log "github.com/sirupsen/logrus"
)

// Deps are optional collaborators of the handlers
type Deps struct {
	Metrics *metrics.Metrics
}

// userKey is the gin context key of the logged in *models.User
const userKey = "user"

type handlers struct {
	db      *database.Database
	metrics *metrics.Metrics
}

// Register adds all application routes to r. Session, CSRF and view engine
// must already be installed on r.
func Register(r *gin.Engine, db *database.Database, deps Deps) {
	h := &handlers{db: db, metrics: deps.Metrics}

	r.Use(h.loadUser())

	r.GET("/", h.index)

	r.GET("/login", h.loginPage)
	r.POST("/login", h.loginSubmit)
	r.GET("/signup", h.signupPage)
	r.POST("/signup", h.signupSubmit)
	r.GET("/logout", h.logout)

	authed := r.Group("/")
	authed.Use(h.requireLogin())
	{
		authed.GET("/dashboard", h.dashboard)
		authed.GET("/memos", h.memosPage)
		authed.POST("/memos", h.memosSubmit)
	}

	r.NoRoute(h.notFound)
}

// loadUser puts the logged in user into the context and the view locals.
// A session pointing at a deleted user is logged out.
func (h *handlers) loadUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := session.UserID(c)
		if id == 0 {
			c.Next()
			return
		}
		user, err := h.db.GetUserByID(id)
		switch {
		case errors.Is(err, database.ErrNotFound):
			if err := session.Logout(c); err != nil {
				log.WithError(err).Warn("failed to drop session of deleted user")
			}
		case err != nil:
			h.renderError(c, http.StatusInternalServerError, "Database error")
			c.Abort()
			return
		default:
			c.Set(userKey, user)
			view.SetLocal(c, "user", user)
		}
		c.Next()
	}
}

func (h *handlers) requireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := c.Get(userKey); !ok {
			c.Redirect(http.StatusFound, "/login")
			c.Abort()
			return
		}
		c.Next()
	}
}

func (h *handlers) index(c *gin.Context) {
	if _, ok := c.Get(userKey); ok {
		c.Redirect(http.StatusFound, "/dashboard")
		return
	}
	c.Redirect(http.StatusFound, "/login")
}

func (h *handlers) notFound(c *gin.Context) {
	h.renderError(c, http.StatusNotFound, "Page not found")
}

// renderError renders the error page
func (h *handlers) renderError(c *gin.Context, status int, message string) {
	view.HTML(c, status, "error.html", gin.H{
		"title":   http.StatusText(status),
		"status":  status,
		"message": message,
	})
}

// flash stores a one-shot message shown on the next rendered page
func flash(c *gin.Context, msg string) {
	session.Get(c).AddFlash(msg)
}

// flashes pops the pending messages
func flashes(c *gin.Context) []string {
	var out []string
	for _, f := range session.Get(c).Flashes() {
		if s, ok := f.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
