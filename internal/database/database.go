// Package database provides the SQLite storage layer of go-goatweb.
package database

import (
	"database/sql"
	"errors"
	"sync"
	"time"
)

// ErrNotFound is returned when a lookup matches no row
var ErrNotFound = errors.New("not found")

// Database holds the one connection pool the process uses for its lifetime.
// It is created once at startup and handed explicitly to the web layer.
type Database struct {
	mainDB *sql.DB

	dbconfig *DBConfig

	closeOnce sync.Once
}

// DBConfig represents database configuration
type DBConfig struct {
	// DSN is handed unchanged to the sqlite3 driver (path or file: URI)
	DSN string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// Performance settings
	WALMode   bool   // Write-Ahead Logging
	SyncMode  string // OFF, NORMAL, FULL
	CacheSize int    // negative values are KiB
	TempStore string // MEMORY, FILE
}

// DefaultDBConfig returns default database configuration for dsn
func DefaultDBConfig(dsn string) *DBConfig {
	return &DBConfig{
		DSN:             dsn,
		MaxOpenConns:    16,
		MaxIdleConns:    4,
		ConnMaxLifetime: 0, // SQLite connections don't need to be recycled
		WALMode:         true,
		SyncMode:        "NORMAL",
		CacheSize:       -8192, // 8 MB
		TempStore:       "MEMORY",
	}
}

// SQL returns the underlying connection pool
func (db *Database) SQL() *sql.DB {
	return db.mainDB
}

// Ping checks that the database is still reachable
func (db *Database) Ping() error {
	return db.mainDB.Ping()
}

// Close closes the connection pool. It is safe to call more than once.
func (db *Database) Close() error {
	var err error
	db.closeOnce.Do(func() {
		err = db.mainDB.Close()
	})
	return err
}
