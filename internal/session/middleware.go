package session

import (
	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
	log "github.com/sirupsen/logrus"
)

// ContextKey is the gin context key holding the *sessions.Session
const ContextKey = "goatweb/session"

// Keys of values kept in the session
const (
	UserIDKey   = "user_id"
	UsernameKey = "username"
)

// Middleware loads the session for every request and saves it before the
// response headers go out, whether or not a handler touched it.
// Register it after static assets so those never create sessions.
func Middleware(store sessions.Store, name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := store.Get(c.Request, name)
		if err != nil {
			log.WithError(err).WithField("ip", c.ClientIP()).Warn("discarding invalid session")
		}
		if sess == nil {
			sess = sessions.NewSession(store, name)
			sess.IsNew = true
		}
		c.Set(ContextKey, sess)

		w := &saveOnWriteWriter{ResponseWriter: c.Writer, save: func() {
			if err := sess.Save(c.Request, c.Writer); err != nil {
				log.WithError(err).Error("failed to save session")
			}
		}}
		c.Writer = w
		c.Next()
		// handlers that never wrote a body (bare redirects, aborts) end up here
		w.saveOnce()
	}
}

// Get returns the request session. It panics when the middleware is missing.
func Get(c *gin.Context) *sessions.Session {
	return c.MustGet(ContextKey).(*sessions.Session)
}

// UserID returns the logged in user ID, 0 when anonymous
func UserID(c *gin.Context) int64 {
	v, ok := c.Get(ContextKey)
	if !ok {
		return 0
	}
	id, _ := v.(*sessions.Session).Values[UserIDKey].(int64)
	return id
}

// Login stores the user in the session under a fresh session ID.
func Login(c *gin.Context, userID int64, username string) error {
	sess := Get(c)
	if err := Regenerate(c); err != nil {
		return err
	}
	sess.Values[UserIDKey] = userID
	sess.Values[UsernameKey] = username
	return nil
}

// Logout drops all values and rotates the session ID
func Logout(c *gin.Context) error {
	return Regenerate(c)
}

// Regenerate deletes the stored session and clears its values; the next save
// issues a new ID. This prevents session fixation across a login.
func Regenerate(c *gin.Context) error {
	sess := Get(c)
	if sess.ID != "" {
		if s, ok := sess.Store().(*Store); ok {
			if err := s.db.DeleteSession(sess.ID); err != nil {
				return err
			}
		}
	}
	sess.ID = ""
	sess.IsNew = true
	for k := range sess.Values {
		delete(sess.Values, k)
	}
	return nil
}

// saveOnWriteWriter saves the session right before the first byte or header
// is committed, express-session style.
type saveOnWriteWriter struct {
	gin.ResponseWriter
	save  func()
	saved bool
}

func (w *saveOnWriteWriter) saveOnce() {
	if w.saved {
		return
	}
	w.saved = true
	if w.ResponseWriter.Written() {
		// too late to set a cookie
		return
	}
	w.save()
}

func (w *saveOnWriteWriter) WriteHeaderNow() {
	w.saveOnce()
	w.ResponseWriter.WriteHeaderNow()
}

func (w *saveOnWriteWriter) Write(data []byte) (int, error) {
	w.saveOnce()
	return w.ResponseWriter.Write(data)
}

func (w *saveOnWriteWriter) WriteString(s string) (int, error) {
	w.saveOnce()
	return w.ResponseWriter.WriteString(s)
}

func (w *saveOnWriteWriter) Flush() {
	w.saveOnce()
	w.ResponseWriter.Flush()
}
