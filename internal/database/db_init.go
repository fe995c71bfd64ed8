package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"
	log "github.com/sirupsen/logrus"
)

// Open connects to the database described by dbconfig, applies pragmas and
// runs the embedded migrations. It does not retry and does not create
// missing directories: a database that cannot be opened is an error the
// caller is expected to treat as fatal.
func Open(dbconfig *DBConfig) (*Database, error) {
	if dbconfig == nil || dbconfig.DSN == "" {
		return nil, fmt.Errorf("database connection string is empty")
	}

	db := &Database{dbconfig: dbconfig}
	if err := db.initMainDB(); err != nil {
		return nil, err
	}

	if err := db.Migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}

	log.WithField("dsn", redactDSN(dbconfig.DSN)).Info("Connected to the database")
	return db, nil
}

// initMainDB opens the connection pool and verifies it with a ping.
// Pragmas are connection scoped, so they run in the driver's ConnectHook
// for every connection the pool opens.
func (db *Database) initMainDB() error {
	drv := &sqlite3.SQLiteDriver{ConnectHook: db.applySQLitePragmas}
	mainDB := sql.OpenDB(&connector{driver: drv, dsn: db.dbconfig.DSN})

	maxOpen := db.dbconfig.MaxOpenConns
	if isMemoryDSN(db.dbconfig.DSN) {
		// every connection to :memory: is a separate database
		maxOpen = 1
	}
	mainDB.SetMaxOpenConns(maxOpen)
	mainDB.SetMaxIdleConns(db.dbconfig.MaxIdleConns)
	mainDB.SetConnMaxLifetime(db.dbconfig.ConnMaxLifetime)

	// Test connection
	if err := mainDB.Ping(); err != nil {
		if cerr := mainDB.Close(); cerr != nil {
			return fmt.Errorf("failed to ping database: %w; also failed to close: %v", err, cerr)
		}
		return fmt.Errorf("failed to ping database: %w", err)
	}

	db.mainDB = mainDB
	return nil
}

// connector hands every new pool connection to the hooked driver
type connector struct {
	driver *sqlite3.SQLiteDriver
	dsn    string
}

func (c *connector) Connect(context.Context) (driver.Conn, error) {
	return c.driver.Open(c.dsn)
}

func (c *connector) Driver() driver.Driver {
	return c.driver
}

// sqlitePragmas returns the pragmas every connection gets
func (db *Database) sqlitePragmas() []string {
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 10000", // 10 seconds
	}
	if db.dbconfig.CacheSize != 0 {
		pragmas = append(pragmas, fmt.Sprintf("PRAGMA cache_size = %d", db.dbconfig.CacheSize))
	}
	if db.dbconfig.SyncMode != "" {
		pragmas = append(pragmas, fmt.Sprintf("PRAGMA synchronous = %s", db.dbconfig.SyncMode))
	}
	if db.dbconfig.TempStore != "" {
		pragmas = append(pragmas, fmt.Sprintf("PRAGMA temp_store = %s", db.dbconfig.TempStore))
	}
	if db.dbconfig.WALMode && !isMemoryDSN(db.dbconfig.DSN) {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}
	return pragmas
}

// applySQLitePragmas applies performance and configuration pragmas to a new connection
func (db *Database) applySQLitePragmas(conn *sqlite3.SQLiteConn) error {
	for _, pragma := range db.sqlitePragmas() {
		if _, err := conn.Exec(pragma, nil); err != nil {
			return fmt.Errorf("failed to execute pragma '%s': %w", pragma, err)
		}
	}
	return nil
}

func isMemoryDSN(dsn string) bool {
	return dsn == ":memory:" || strings.Contains(dsn, "mode=memory")
}

// redactDSN strips query parameters, they may carry keys
func redactDSN(dsn string) string {
	if i := strings.IndexByte(dsn, '?'); i >= 0 {
		return dsn[:i] + "?..."
	}
	return dsn
}
