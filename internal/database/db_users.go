package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-while/go-goatweb/internal/models"
	"github.com/mattn/go-sqlite3"
)

// Login lockout constants
const (
	MaxLoginAttempts = 5                // Max failed login attempts
	LoginLockoutTime = 15 * time.Minute // Lockout time after max attempts
)

// ErrUserExists is returned by CreateUser for a taken username
var ErrUserExists = errors.New("user already exists")

const userColumns = `id, username, first_name, last_name, email, password_hash,
	is_admin, login_attempts, created_at, updated_at`

// userDest returns scan destinations matching userColumns
func userDest(u *models.User) []interface{} {
	return []interface{}{&u.ID, &u.Username, &u.FirstName, &u.LastName, &u.Email, &u.PasswordHash,
		&u.IsAdmin, &u.LoginAttempts, &u.CreatedAt, &u.UpdatedAt}
}

// CreateUser inserts a new user and sets its ID
func (db *Database) CreateUser(user *models.User) error {
	query := `INSERT INTO users (username, first_name, last_name, email, password_hash, is_admin)
		VALUES (?, ?, ?, ?, ?, ?)`
	result, err := retryableExec(db.mainDB, query,
		user.Username, user.FirstName, user.LastName, user.Email, user.PasswordHash, user.IsAdmin)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return fmt.Errorf("%w: %s", ErrUserExists, user.Username)
		}
		return fmt.Errorf("failed to create user %s: %w", user.Username, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get id of user %s: %w", user.Username, err)
	}
	user.ID = id
	return nil
}

// GetUserByUsername looks up a user by username
func (db *Database) GetUserByUsername(username string) (*models.User, error) {
	return db.getUser(`SELECT `+userColumns+` FROM users WHERE username = ?`, username)
}

// GetUserByID looks up a user by ID
func (db *Database) GetUserByID(id int64) (*models.User, error) {
	return db.getUser(`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (db *Database) getUser(query string, arg interface{}) (*models.User, error) {
	user := &models.User{}
	err := retryableQueryRowScan(db.mainDB, query, []interface{}{arg}, userDest(user)...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// ListUsers returns all users ordered by ID
func (db *Database) ListUsers() ([]*models.User, error) {
	rows, err := retryableQuery(db.mainDB, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u := &models.User{}
		if err := rows.Scan(userDest(u)...); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// DeleteUser removes a user and, by cascade, its memos
func (db *Database) DeleteUser(username string) error {
	result, err := retryableExec(db.mainDB, `DELETE FROM users WHERE username = ?`, username)
	if err != nil {
		return fmt.Errorf("failed to delete user %s: %w", username, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateUserPassword replaces the password hash of a user
func (db *Database) UpdateUserPassword(username, passwordHash string) error {
	result, err := retryableExec(db.mainDB, `UPDATE users SET
		password_hash = ?,
		login_attempts = 0,
		updated_at = CURRENT_TIMESTAMP
		WHERE username = ?`, passwordHash, username)
	if err != nil {
		return fmt.Errorf("failed to update password of %s: %w", username, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementLoginAttempts increases the failed login counter
func (db *Database) IncrementLoginAttempts(username string) error {
	_, err := retryableExec(db.mainDB, `UPDATE users SET
		login_attempts = login_attempts + 1,
		updated_at = CURRENT_TIMESTAMP
		WHERE username = ?`, username)
	return err
}

// ResetLoginAttempts clears the failed login counter
func (db *Database) ResetLoginAttempts(userID int64) error {
	_, err := retryableExec(db.mainDB, `UPDATE users SET
		login_attempts = 0,
		updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, userID)
	return err
}

// IsUserLockedOut checks if user is temporarily locked out due to failed attempts.
// Unknown users are never locked out.
func (db *Database) IsUserLockedOut(username string) (bool, error) {
	var attempts int
	var updatedAt time.Time
	err := retryableQueryRowScan(db.mainDB,
		`SELECT login_attempts, updated_at FROM users WHERE username = ?`,
		[]interface{}{username}, &attempts, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if attempts < MaxLoginAttempts {
		return false, nil
	}
	if time.Now().Before(updatedAt.Add(LoginLockoutTime)) {
		return true, nil
	}
	// Lockout period expired, reset attempts
	_, err = retryableExec(db.mainDB,
		`UPDATE users SET login_attempts = 0, updated_at = CURRENT_TIMESTAMP WHERE username = ?`, username)
	return false, err
}
