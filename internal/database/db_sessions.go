package database

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/go-while/go-goatweb/internal/models"
	log "github.com/sirupsen/logrus"
)

// SessionIDLength is the length of a hex session ID
const SessionIDLength = 64

// GenerateSecureSessionID creates a cryptographically secure session ID
func GenerateSecureSessionID() (string, error) {
	bytes := make([]byte, SessionIDLength/2) // hex encoding doubles the length
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate secure session ID: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// SaveSession inserts or replaces a session row
func (db *Database) SaveSession(session *models.Session) error {
	if session.ID == "" {
		return fmt.Errorf("empty session ID")
	}
	_, err := retryableExec(db.mainDB, `INSERT INTO sessions (id, data, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data, expires_at = excluded.expires_at`,
		session.ID, session.Data, session.ExpiresAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// LoadSession returns an unexpired session, ErrNotFound otherwise
func (db *Database) LoadSession(sessionID string) (*models.Session, error) {
	if sessionID == "" {
		return nil, ErrNotFound
	}
	var s models.Session
	var expiresAt int64
	err := retryableQueryRowScan(db.mainDB,
		`SELECT id, data, created_at, expires_at FROM sessions WHERE id = ? AND expires_at > ?`,
		[]interface{}{sessionID, time.Now().Unix()},
		&s.ID, &s.Data, &s.CreatedAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	s.ExpiresAt = time.Unix(expiresAt, 0)
	return &s, nil
}

// DeleteSession removes a session, deleting a missing session is not an error
func (db *Database) DeleteSession(sessionID string) error {
	_, err := retryableExec(db.mainDB, `DELETE FROM sessions WHERE id = ?`, sessionID)
	return err
}

// CleanupExpiredSessions removes expired sessions from the database
func (db *Database) CleanupExpiredSessions() (int64, error) {
	result, err := retryableExec(db.mainDB, `DELETE FROM sessions WHERE expires_at <= ?`, time.Now().Unix())
	if err != nil {
		return 0, err
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected > 0 {
		log.Infof("Cleaned up %d expired sessions", rowsAffected)
	}
	return rowsAffected, nil
}
