// Package session implements server side web sessions on top of gorilla/sessions.
//
// Session values live in the sessions table, the cookie only carries the
// session ID signed with the configured cookie secret.
package session

import (
	"encoding/gob"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-while/go-goatweb/internal/database"
	"github.com/go-while/go-goatweb/internal/models"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
)

func init() {
	// flashes are kept as []interface{}
	gob.Register([]interface{}{})
}

// Store persists gorilla sessions in the database
type Store struct {
	Codecs  []securecookie.Codec
	Options *sessions.Options // default configuration

	db *database.Database
}

var _ sessions.Store = (*Store)(nil)

// NewStore returns a Store signing cookies with keyPairs, see securecookie.CodecsFromPairs.
// Default options: Path "/", HttpOnly, MaxAge one hour, no Secure flag.
func NewStore(db *database.Database, keyPairs ...[]byte) *Store {
	s := &Store{
		Codecs: securecookie.CodecsFromPairs(keyPairs...),
		Options: &sessions.Options{
			Path:     "/",
			MaxAge:   int(time.Hour / time.Second),
			HttpOnly: true,
		},
		db: db,
	}
	s.MaxAge(s.Options.MaxAge)
	return s
}

// MaxAge sets the maximum age for the store and the underlying cookie codecs
func (s *Store) MaxAge(age int) {
	s.Options.MaxAge = age
	for _, codec := range s.Codecs {
		if sc, ok := codec.(*securecookie.SecureCookie); ok {
			sc.MaxAge(age)
		}
	}
}

// Get returns a session for the given name after adding it to the registry.
func (s *Store) Get(r *http.Request, name string) (*sessions.Session, error) {
	return sessions.GetRegistry(r).Get(s, name)
}

// New returns a session for the given name without adding it to the registry.
// A missing, expired or forged cookie yields a fresh session; forged cookies
// are reported through the returned error.
func (s *Store) New(r *http.Request, name string) (*sessions.Session, error) {
	sess := sessions.NewSession(s, name)
	opts := *s.Options
	sess.Options = &opts
	sess.IsNew = true

	c, errCookie := r.Cookie(name)
	if errCookie != nil {
		return sess, nil
	}

	var id string
	if err := securecookie.DecodeMulti(name, c.Value, &id, s.Codecs...); err != nil {
		return sess, fmt.Errorf("session cookie rejected: %w", err)
	}

	err := s.load(sess, id)
	switch {
	case errors.Is(err, database.ErrNotFound):
		// expired or cleaned up, start over with a new ID
		return sess, nil
	case err != nil:
		return sess, err
	}
	sess.ID = id
	sess.IsNew = false
	return sess, nil
}

// Save persists the session and writes the cookie. A negative MaxAge deletes both.
func (s *Store) Save(r *http.Request, w http.ResponseWriter, sess *sessions.Session) error {
	if sess.Options.MaxAge < 0 {
		if sess.ID != "" {
			if err := s.db.DeleteSession(sess.ID); err != nil {
				return err
			}
		}
		http.SetCookie(w, sessions.NewCookie(sess.Name(), "", sess.Options))
		return nil
	}

	if sess.ID == "" {
		id, err := database.GenerateSecureSessionID()
		if err != nil {
			return err
		}
		sess.ID = id
	}

	if err := s.save(sess); err != nil {
		return err
	}

	encoded, err := securecookie.EncodeMulti(sess.Name(), sess.ID, s.Codecs...)
	if err != nil {
		return fmt.Errorf("failed to encode session cookie: %w", err)
	}
	http.SetCookie(w, sessions.NewCookie(sess.Name(), encoded, sess.Options))
	return nil
}

func (s *Store) save(sess *sessions.Session) error {
	data, err := securecookie.EncodeMulti(sess.Name(), sess.Values, s.Codecs...)
	if err != nil {
		return fmt.Errorf("failed to encode session values: %w", err)
	}
	maxAge := sess.Options.MaxAge
	if maxAge == 0 {
		// browser session cookie, keep the row for the store default
		maxAge = s.Options.MaxAge
	}
	return s.db.SaveSession(&models.Session{
		ID:        sess.ID,
		Data:      data,
		ExpiresAt: time.Now().Add(time.Duration(maxAge) * time.Second),
	})
}

func (s *Store) load(sess *sessions.Session, id string) error {
	row, err := s.db.LoadSession(id)
	if err != nil {
		return err
	}
	if err := securecookie.DecodeMulti(sess.Name(), row.Data, &sess.Values, s.Codecs...); err != nil {
		return fmt.Errorf("failed to decode session values: %w", err)
	}
	return nil
}
