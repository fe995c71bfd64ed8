package routes

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-while/go-goatweb/internal/auth"
	"github.com/go-while/go-goatweb/internal/database"
	"github.com/go-while/go-goatweb/internal/models"
	"github.com/go-while/go-goatweb/internal/session"
	"github.com/go-while/go-goatweb/internal/view"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	goleak.VerifyTestMain(m)
}

// newEngine wires routes behind sessions and views, without CSRF
func newEngine(t *testing.T) (*gin.Engine, *database.Database) {
	t.Helper()
	db, err := database.Open(database.DefaultDBConfig(filepath.Join(t.TempDir(), "routes.sq3")))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	views, err := view.New(view.Options{Dir: filepath.Join("..", "..", "app", "views")})
	require.NoError(t, err)

	r := gin.New()
	r.Use(session.Middleware(session.NewStore(db, []byte("routes-test-secret")), "sessionId"))
	r.Use(func(c *gin.Context) {
		view.SetLocal(c, "csrftoken", "")
		c.Next()
	})
	r.HTMLRender = views
	Register(r, db, Deps{})
	return r, db
}

func post(r http.Handler, path string, form url.Values, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func get(r http.Handler, path string, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func cookieOf(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == "sessionId" {
			return c
		}
	}
	t.Fatal("no session cookie")
	return nil
}

func TestSignupValidation(t *testing.T) {
	r, _ := newEngine(t)

	tests := []struct {
		name string
		form url.Values
		want string
	}{
		{"short username", url.Values{"userName": {"ab"}, "password": {"hunter22"}, "verify": {"hunter22"}}, "at least 3"},
		{"short password", url.Values{"userName": {"goat"}, "password": {"abc"}, "verify": {"abc"}}, "at least 6"},
		{"mismatch", url.Values{"userName": {"goat"}, "password": {"hunter22"}, "verify": {"hunter23"}}, "Password must match"},
		{"bad email", url.Values{"userName": {"goat"}, "password": {"hunter22"}, "verify": {"hunter22"}, "email": {"nope"}}, "invalid email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(r, "/signup", tt.form, nil)
			require.Equal(t, http.StatusBadRequest, w.Code)
			require.Contains(t, w.Body.String(), tt.want)
		})
	}
}

func TestSignupDuplicateUser(t *testing.T) {
	r, db := newEngine(t)
	hash, err := auth.HashPassword("hunter22")
	require.NoError(t, err)
	require.NoError(t, db.CreateUser(&models.User{Username: "goat", PasswordHash: hash}))

	w := post(r, "/signup", url.Values{"userName": {"goat"}, "password": {"hunter22"}, "verify": {"hunter22"}}, nil)
	require.Equal(t, http.StatusConflict, w.Code)
	require.Contains(t, w.Body.String(), msgUserTaken)
}

func TestAuthRequired(t *testing.T) {
	r, _ := newEngine(t)
	for _, path := range []string{"/dashboard", "/memos"} {
		w := get(r, path, nil)
		require.Equal(t, http.StatusFound, w.Code, path)
		require.Equal(t, "/login", w.Header().Get("Location"))
	}
	w := post(r, "/memos", url.Values{"memo": {"hi"}}, nil)
	require.Equal(t, http.StatusFound, w.Code)
}

func TestDeletedUserIsLoggedOut(t *testing.T) {
	r, db := newEngine(t)
	w := post(r, "/signup", url.Values{"userName": {"ghost"}, "password": {"hunter22"}, "verify": {"hunter22"}}, nil)
	require.Equal(t, http.StatusFound, w.Code)
	cookie := cookieOf(t, w)

	require.Equal(t, http.StatusOK, get(r, "/dashboard", cookie).Code)
	require.NoError(t, db.DeleteUser("ghost"))

	w = get(r, "/dashboard", cookie)
	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "/login", w.Header().Get("Location"))
}

func TestEmptyMemoIsRejected(t *testing.T) {
	r, db := newEngine(t)
	w := post(r, "/signup", url.Values{"userName": {"writer"}, "password": {"hunter22"}, "verify": {"hunter22"}}, nil)
	cookie := cookieOf(t, w)

	w = post(r, "/memos", url.Values{"memo": {"  \x00 "}}, cookie)
	require.Equal(t, http.StatusFound, w.Code)
	cookie = cookieOf(t, w)

	w = get(r, "/memos", cookie)
	require.Contains(t, w.Body.String(), "Memo must not be empty")
	memos, err := db.GetMemos(10)
	require.NoError(t, err)
	require.Empty(t, memos)
}

func TestIndexAndNotFound(t *testing.T) {
	r, _ := newEngine(t)
	w := get(r, "/", nil)
	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "/login", w.Header().Get("Location"))

	w = get(r, "/nope", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Contains(t, w.Body.String(), "Page not found")
}
