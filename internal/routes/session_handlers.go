package routes

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-while/go-goatweb/internal/auth"
	"github.com/go-while/go-goatweb/internal/database"
	"github.com/go-while/go-goatweb/internal/models"
	"github.com/go-while/go-goatweb/internal/session"
	"github.com/go-while/go-goatweb/internal/view"
	log "github.com/sirupsen/logrus"
)

const (
	msgInvalidLogin = "Invalid username or password"
	msgLockedOut    = "Account temporarily locked due to too many failed attempts. Try again in 15 minutes."
	msgUserTaken    = "User name already in use. Please choose another"
)

func (h *handlers) loginPage(c *gin.Context) {
	if _, ok := c.Get(userKey); ok {
		c.Redirect(http.StatusFound, "/dashboard")
		return
	}
	view.HTML(c, http.StatusOK, "login.html", gin.H{
		"title":    "Login",
		"userName": "",
		"flashes":  flashes(c),
	})
}

func (h *handlers) loginSubmit(c *gin.Context) {
	username := models.NormalizeUsername(c.PostForm("userName"))
	password := c.PostForm("password")

	if username == "" || password == "" {
		h.renderLoginError(c, username, "Username and password are required")
		return
	}

	lockedOut, err := h.db.IsUserLockedOut(username)
	if err != nil {
		log.WithError(err).Error("login: lockout check failed")
		h.renderLoginError(c, username, "Login error. Please try again.")
		return
	}
	if lockedOut {
		h.countLogin("locked")
		h.renderLoginError(c, username, msgLockedOut)
		return
	}

	user, err := h.db.GetUserByUsername(username)
	if err != nil || !auth.CheckPassword(password, user.PasswordHash) {
		if err != nil && !errors.Is(err, database.ErrNotFound) {
			log.WithError(err).Error("login: user lookup failed")
		}
		if err := h.db.IncrementLoginAttempts(username); err != nil {
			log.WithError(err).Warn("login: failed to count attempt")
		}
		h.countLogin("invalid")
		log.WithFields(log.Fields{"username": username, "ip": c.ClientIP()}).Info("login failed")
		h.renderLoginError(c, username, msgInvalidLogin)
		return
	}

	if err := h.db.ResetLoginAttempts(user.ID); err != nil {
		log.WithError(err).Warn("login: failed to reset attempts")
	}
	if err := session.Login(c, user.ID, user.Username); err != nil {
		log.WithError(err).Error("login: session regenerate failed")
		h.renderError(c, http.StatusInternalServerError, "Failed to create session")
		return
	}
	h.countLogin("success")
	log.WithFields(log.Fields{"username": username, "ip": c.ClientIP()}).Info("login succeeded")
	c.Redirect(http.StatusFound, "/dashboard")
}

func (h *handlers) renderLoginError(c *gin.Context, username, msg string) {
	view.HTML(c, http.StatusUnauthorized, "login.html", gin.H{
		"title":      "Login",
		"userName":   username,
		"loginError": msg,
	})
}

func (h *handlers) countLogin(result string) {
	if h.metrics != nil {
		h.metrics.LoginAttempts.WithLabelValues(result).Inc()
	}
}

// signupForm holds the submitted signup values and per field errors
type signupForm struct {
	UserName  string
	FirstName string
	LastName  string
	Email     string
	Password  string
	Verify    string
	Errors    map[string]string
}

func readSignupForm(c *gin.Context) *signupForm {
	return &signupForm{
		UserName:  models.NormalizeUsername(c.PostForm("userName")),
		FirstName: strings.TrimSpace(c.PostForm("firstName")),
		LastName:  strings.TrimSpace(c.PostForm("lastName")),
		Email:     strings.TrimSpace(c.PostForm("email")),
		Password:  c.PostForm("password"),
		Verify:    c.PostForm("verify"),
		Errors:    map[string]string{},
	}
}

func (f *signupForm) validate() bool {
	if err := auth.ValidateUsername(f.UserName); err != nil {
		f.Errors["userNameError"] = err.Error()
	}
	if err := auth.ValidatePassword(f.Password); err != nil {
		f.Errors["passwordError"] = err.Error()
	} else if f.Password != f.Verify {
		f.Errors["verifyError"] = "Password must match"
	}
	if err := auth.ValidateEmail(f.Email); err != nil {
		f.Errors["emailError"] = err.Error()
	}
	return len(f.Errors) == 0
}

func (f *signupForm) data() gin.H {
	data := gin.H{
		"title":     "Sign up",
		"userName":  f.UserName,
		"firstName": f.FirstName,
		"lastName":  f.LastName,
		"email":     f.Email,
	}
	for k, v := range f.Errors {
		data[k] = v
	}
	return data
}

func (h *handlers) signupPage(c *gin.Context) {
	empty := &signupForm{Errors: map[string]string{}}
	view.HTML(c, http.StatusOK, "signup.html", empty.data())
}

func (h *handlers) signupSubmit(c *gin.Context) {
	form := readSignupForm(c)
	if !form.validate() {
		view.HTML(c, http.StatusBadRequest, "signup.html", form.data())
		return
	}

	hash, err := auth.HashPassword(form.Password)
	if err != nil {
		log.WithError(err).Error("signup: hash failed")
		h.renderError(c, http.StatusInternalServerError, "Failed to create account")
		return
	}
	user := &models.User{
		Username:     form.UserName,
		FirstName:    form.FirstName,
		LastName:     form.LastName,
		Email:        form.Email,
		PasswordHash: hash,
	}
	if err := h.db.CreateUser(user); err != nil {
		if errors.Is(err, database.ErrUserExists) {
			form.Errors["userNameError"] = msgUserTaken
			view.HTML(c, http.StatusConflict, "signup.html", form.data())
			return
		}
		log.WithError(err).Error("signup: create user failed")
		h.renderError(c, http.StatusInternalServerError, "Failed to create account")
		return
	}

	if err := session.Login(c, user.ID, user.Username); err != nil {
		log.WithError(err).Error("signup: session regenerate failed")
		h.renderError(c, http.StatusInternalServerError, "Failed to create session")
		return
	}
	log.WithFields(log.Fields{"username": user.Username, "ip": c.ClientIP()}).Info("user signed up")
	c.Redirect(http.StatusFound, "/dashboard")
}

func (h *handlers) logout(c *gin.Context) {
	if err := session.Logout(c); err != nil {
		log.WithError(err).Warn("logout: failed to drop session")
	}
	flash(c, "You have been logged out")
	c.Redirect(http.StatusFound, "/login")
}
