// Package csrf provides synchronizer token CSRF protection for gin.
//
// A random secret is kept in the user's session. Each token is a random salt
// plus a hash of salt and secret, so tokens differ per render but all verify
// against the same secret. The session middleware must run first.
package csrf

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-while/go-goatweb/internal/session"
	log "github.com/sirupsen/logrus"
)

const (
	// SecretKey is the session value holding the per-session secret
	SecretKey = "_csrf_secret"
	// FieldName is the form field and query parameter carrying the token
	FieldName = "_csrf"

	tokenContextKey = "goatweb/csrf_token"
	saltLength      = 8
	secretLength    = 18
)

// ErrInvalidToken is handed to the ErrorFunc when verification fails
var ErrInvalidToken = errors.New("invalid csrf token")

// headers checked for a token, in order
var tokenHeaders = []string{"csrf-token", "xsrf-token", "x-csrf-token", "x-xsrf-token"}

// Options configures Middleware
type Options struct {
	// IgnoreMethods are not verified. Defaults to GET, HEAD and OPTIONS.
	IgnoreMethods []string
	// ErrorFunc handles a failed verification. It must abort the request.
	ErrorFunc gin.HandlerFunc
}

// Middleware verifies the token on every request whose method is not ignored.
func Middleware(opts Options) gin.HandlerFunc {
	ignore := map[string]bool{}
	methods := opts.IgnoreMethods
	if methods == nil {
		methods = []string{http.MethodGet, http.MethodHead, http.MethodOptions}
	}
	for _, m := range methods {
		ignore[strings.ToUpper(m)] = true
	}
	onError := opts.ErrorFunc
	if onError == nil {
		onError = defaultErrorFunc
	}

	return func(c *gin.Context) {
		secret, err := ensureSecret(c)
		if err != nil {
			log.WithError(err).Error("csrf: failed to create secret")
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}

		if !ignore[c.Request.Method] && !Verify(secret, readToken(c)) {
			log.WithFields(log.Fields{
				"method": c.Request.Method,
				"path":   c.Request.URL.Path,
				"ip":     c.ClientIP(),
			}).Warn("csrf: rejected request")
			_ = c.Error(ErrInvalidToken)
			onError(c)
			c.Abort()
			return
		}
		c.Next()
	}
}

func defaultErrorFunc(c *gin.Context) {
	c.String(http.StatusForbidden, ErrInvalidToken.Error())
	c.Abort()
}

// Token returns a token for the current request, creating it on first use.
// A cached token is reissued when the session secret changed since, e.g.
// after a login regenerated the session.
func Token(c *gin.Context) string {
	secret, err := ensureSecret(c)
	if err != nil {
		log.WithError(err).Error("csrf: failed to create secret")
		return ""
	}
	if tok := c.GetString(tokenContextKey); tok != "" && Verify(secret, tok) {
		return tok
	}
	tok, err := NewToken(secret)
	if err != nil {
		log.WithError(err).Error("csrf: failed to create token")
		return ""
	}
	c.Set(tokenContextKey, tok)
	return tok
}

// NewToken creates a salted token for secret
func NewToken(secret string) (string, error) {
	salt, err := randomString(saltLength)
	if err != nil {
		return "", err
	}
	return salt + "-" + hash(salt, secret), nil
}

// Verify reports whether token was created from secret
func Verify(secret, token string) bool {
	if secret == "" || token == "" {
		return false
	}
	// salt and hash are base64url and may both contain '-', split at the fixed salt length
	if len(token) <= saltLength+1 || token[saltLength] != '-' {
		return false
	}
	salt := token[:saltLength]
	expected := salt + "-" + hash(salt, secret)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(token)) == 1
}

func hash(salt, secret string) string {
	sum := sha256.Sum256([]byte(salt + "-" + secret))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func ensureSecret(c *gin.Context) (string, error) {
	sess := session.Get(c)
	if secret, ok := sess.Values[SecretKey].(string); ok && secret != "" {
		return secret, nil
	}
	secret, err := randomString(secretLength)
	if err != nil {
		return "", err
	}
	sess.Values[SecretKey] = secret
	return secret, nil
}

// readToken looks in the form body, the query string and the usual headers
func readToken(c *gin.Context) string {
	if tok := c.PostForm(FieldName); tok != "" {
		return tok
	}
	if tok := c.Query(FieldName); tok != "" {
		return tok
	}
	for _, h := range tokenHeaders {
		if tok := c.GetHeader(h); tok != "" {
			return tok
		}
	}
	return ""
}

func randomString(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b)[:n], nil
}
