package csrf

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-while/go-goatweb/internal/database"
	"github.com/go-while/go-goatweb/internal/session"
	"github.com/gorilla/sessions"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	goleak.VerifyTestMain(m)
}

func TestVerify(t *testing.T) {
	tok, err := NewToken("s3cret")
	require.NoError(t, err)
	require.True(t, Verify("s3cret", tok))

	other, err := NewToken("s3cret")
	require.NoError(t, err)
	require.NotEqual(t, tok, other, "tokens are salted")
	require.True(t, Verify("s3cret", other))

	for name, bad := range map[string]string{
		"empty":        "",
		"no separator": "abcdefgh",
		"no hash":      "abcdefgh-",
		"no salt":      "-abc",
		"short salt":   "abc-" + hash("abc", "s3cret"),
		"tampered":     tok + "x",
	} {
		t.Run(name, func(t *testing.T) {
			require.False(t, Verify("s3cret", bad))
		})
	}
	require.False(t, Verify("other", tok))
	require.False(t, Verify("", tok))
}

func TestVerifyManyTokens(t *testing.T) {
	for i := 0; i < 5000; i++ {
		tok, err := NewToken("s3cret")
		require.NoError(t, err)
		require.True(t, Verify("s3cret", tok), "fresh token rejected: %q", tok)
	}

	// salts that contain the separator
	for _, salt := range []string{"E-cD-5DU", "--------", "abcdefg-"} {
		tok := salt + "-" + hash(salt, "s3cret")
		require.True(t, Verify("s3cret", tok), "token %q", tok)
	}
}

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	db, err := database.Open(database.DefaultDBConfig(filepath.Join(t.TempDir(), "csrf.sq3")))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	r := gin.New()
	r.Use(session.Middleware(session.NewStore(db, []byte("csrf-test-secret")), "sessionId"))
	r.Use(Middleware(Options{}))
	r.GET("/form", func(c *gin.Context) { c.String(http.StatusOK, Token(c)) })
	r.POST("/submit", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	return r
}

// fetch a token and the cookie it belongs to
func fetchToken(t *testing.T, r *gin.Engine) (string, *http.Cookie) {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/form", nil))
	require.Equal(t, http.StatusOK, w.Code)
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)
	return w.Body.String(), cookies[0]
}

func TestMiddleware(t *testing.T) {
	r := newRouter(t)
	tok, cookie := fetchToken(t, r)

	post := func(body string, header map[string]string, query string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/submit"+query, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		for k, v := range header {
			req.Header.Set(k, v)
		}
		req.AddCookie(cookie)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	t.Run("missing token", func(t *testing.T) {
		w := post("memo=hi", nil, "")
		require.Equal(t, http.StatusForbidden, w.Code)
		require.Equal(t, "invalid csrf token", w.Body.String())
	})
	t.Run("wrong token", func(t *testing.T) {
		w := post(url.Values{FieldName: {"abcdefgh-nope"}}.Encode(), nil, "")
		require.Equal(t, http.StatusForbidden, w.Code)
	})
	t.Run("form field", func(t *testing.T) {
		w := post(url.Values{FieldName: {tok}}.Encode(), nil, "")
		require.Equal(t, http.StatusOK, w.Code)
	})
	t.Run("query", func(t *testing.T) {
		w := post("", nil, "?"+url.Values{FieldName: {tok}}.Encode())
		require.Equal(t, http.StatusOK, w.Code)
	})
	for _, h := range []string{"CSRF-Token", "XSRF-Token", "X-CSRF-Token", "X-XSRF-Token"} {
		t.Run("header "+h, func(t *testing.T) {
			w := post("", map[string]string{h: tok}, "")
			require.Equal(t, http.StatusOK, w.Code)
		})
	}
}

func TestTokenFromOtherSessionIsRejected(t *testing.T) {
	r := newRouter(t)
	tokA, _ := fetchToken(t, r)
	_, cookieB := fetchToken(t, r)

	req := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader(url.Values{FieldName: {tokA}}.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(cookieB)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestTokenReissuedAfterRegenerate(t *testing.T) {
	r := newRouter(t)
	var before string
	r.POST("/login", func(c *gin.Context) {
		before = Token(c)
		require.NoError(t, session.Regenerate(c))
		after := Token(c)
		require.NotEqual(t, before, after)
		require.Equal(t, after, Token(c), "token is cached per secret")
		c.String(http.StatusOK, after)
	})

	tok, cookie := fetchToken(t, r)
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(url.Values{FieldName: {tok}}.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(cookie)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	after := w.Body.String()
	newCookie := w.Result().Cookies()[0]

	submit := func(tok string) int {
		req := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader(url.Values{FieldName: {tok}}.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.AddCookie(newCookie)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}
	require.Equal(t, http.StatusOK, submit(after))
	require.Equal(t, http.StatusForbidden, submit(before))
}

func TestCustomErrorFunc(t *testing.T) {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(session.ContextKey, newBareSession())
		c.Next()
	})
	r.Use(Middleware(Options{ErrorFunc: func(c *gin.Context) {
		c.String(http.StatusTeapot, "nope")
	}}))
	r.DELETE("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/x", nil))
	require.Equal(t, http.StatusTeapot, w.Code)
	require.Equal(t, "nope", w.Body.String())
}

func newBareSession() *sessions.Session {
	return sessions.NewSession(nil, "sessionId")
}
