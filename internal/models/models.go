// Package models defines core data structures for go-goatweb
package models

import (
	"time"
)

// User represents a web user account
type User struct {
	ID            int64     `json:"id" db:"id"`
	Username      string    `json:"username" db:"username"`
	FirstName     string    `json:"first_name" db:"first_name"`
	LastName      string    `json:"last_name" db:"last_name"`
	Email         string    `json:"email" db:"email"`
	PasswordHash  string    `json:"-" db:"password_hash"`
	IsAdmin       bool      `json:"is_admin" db:"is_admin"`
	LoginAttempts int       `json:"login_attempts" db:"login_attempts"` // Failed login attempts counter
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// DisplayName returns "First Last" or the username when no name is set
func (u *User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.Username
	}
}

// Memo represents a markdown note posted by a user
type Memo struct {
	ID        int64     `json:"id" db:"id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	Author    string    `json:"author" db:"-"` // joined from users.username
	Body      string    `json:"body" db:"body"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Session represents a persisted web session
type Session struct {
	ID        string    `json:"id" db:"id"`
	Data      string    `json:"-" db:"data"` // securecookie encoded values
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
}

// Expired reports whether the session is past its expiry at t
func (s *Session) Expired(t time.Time) bool {
	return !s.ExpiresAt.After(t)
}
