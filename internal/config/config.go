// Package config provides configuration management for go-goatweb.
package config

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

var AppVersion = "-unset-" // will be set at build time

const (
	// Session cookie defaults
	DefaultSessionName   = "sessionId"
	DefaultSessionMaxAge = 1 * time.Hour

	// Default listen port of the demo app
	DefaultListenPort = 4000

	DefaultCookieSecret = "session_cookie_secret_key_here"
)

// Config holds the main configuration for go-goatweb
type Config struct {
	// Mutex for thread-safe access
	mux sync.Mutex `mapstructure:"-"`

	// Environment name: development, test or production
	Env string `mapstructure:"env" validate:"oneof=development test production"`

	// Port the web server listens on
	Port int `mapstructure:"port" validate:"min=1,max=65535"`

	// DB is the database connection string handed to the sqlite3 driver
	DB string `mapstructure:"db" validate:"required"`

	// CookieSecret signs the session cookie
	CookieSecret string `mapstructure:"cookie_secret" validate:"required,min=8"`

	LogLevel string `mapstructure:"log_level" validate:"oneof=debug info warn error"`

	Web      WebConfig      `mapstructure:"web"`
	Session  SessionConfig  `mapstructure:"session"`
	Security SecurityConfig `mapstructure:"security"`
	HTTPS    HTTPSConfig    `mapstructure:"https"`
	Markdown MarkdownConfig `mapstructure:"markdown"`
	Database DatabaseConfig `mapstructure:"database"`

	AppVersion string `mapstructure:"-"` // Application version, set at build time
}

// WebConfig holds web interface paths
type WebConfig struct {
	ViewsDir    string `mapstructure:"views_dir" validate:"required"`
	AssetsDir   string `mapstructure:"assets_dir" validate:"required"`
	FaviconPath string `mapstructure:"favicon_path"`
	// TrustedProxies are handed to gin; empty means trust nothing
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

// SessionConfig holds session cookie settings
type SessionConfig struct {
	Name            string        `mapstructure:"name" validate:"required"`
	MaxAge          time.Duration `mapstructure:"max_age" validate:"gt=0"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" validate:"gt=0"`
}

// SecurityConfig toggles the OWASP fixes. Zero values are the vulnerable settings.
type SecurityConfig struct {
	// Headers enables frameguard, nosniff, CSP, no-cache and friends (A5)
	Headers bool `mapstructure:"headers"`
	// Autoescape enables template auto escaping (A3)
	Autoescape bool `mapstructure:"autoescape"`
	// SecureCookie sets the Secure flag on the session cookie (A6)
	SecureCookie bool `mapstructure:"secure_cookie"`
}

// HTTPSConfig holds TLS listener settings (A6)
type HTTPSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

// MarkdownConfig holds settings of the markdown renderer (A9)
type MarkdownConfig struct {
	Sanitize     bool          `mapstructure:"sanitize"`
	CacheEntries int           `mapstructure:"cache_entries" validate:"min=0"`
	CacheMaxAge  time.Duration `mapstructure:"cache_max_age"`
}

// DatabaseConfig holds connection pool settings
type DatabaseConfig struct {
	MaxOpenConns int    `mapstructure:"max_open_conns" validate:"min=1"`
	MaxIdleConns int    `mapstructure:"max_idle_conns" validate:"min=0"`
	WALMode      bool   `mapstructure:"wal_mode"`
	SyncMode     string `mapstructure:"sync_mode" validate:"oneof=OFF NORMAL FULL"`
}

// NewDefaultConfig returns a configuration with the defaults of the demo app
func NewDefaultConfig() *Config {
	cfg := &Config{
		AppVersion:   AppVersion,
		Env:          "development",
		Port:         DefaultListenPort,
		DB:           "data/goatweb.sq3",
		CookieSecret: DefaultCookieSecret,
		LogLevel:     "info",
		Web: WebConfig{
			ViewsDir:    "app/views",
			AssetsDir:   "app/assets",
			FaviconPath: "app/assets/favicon.ico",
		},
		Session: SessionConfig{
			Name:            DefaultSessionName,
			MaxAge:          DefaultSessionMaxAge,
			CleanupInterval: 15 * time.Minute,
		},
		Markdown: MarkdownConfig{
			Sanitize:     true,
			CacheEntries: 1024,
			CacheMaxAge:  30 * time.Minute,
		},
		Database: DatabaseConfig{
			MaxOpenConns: 16,
			MaxIdleConns: 4,
			WALMode:      true,
			SyncMode:     "NORMAL",
		},
	}
	cfg.mux.Lock()
	log.Debugf("Config initialized with defaults: port=%d env=%s", cfg.Port, cfg.Env)
	cfg.mux.Unlock()
	return cfg
}

// SetDefaults fills zero values left behind by a partial config file.
func (c *Config) SetDefaults() {
	def := NewDefaultConfig()
	c.mux.Lock()
	defer c.mux.Unlock()
	c.AppVersion = AppVersion
	if c.Env == "" {
		c.Env = def.Env
	}
	if c.Port == 0 {
		c.Port = def.Port
	}
	if c.DB == "" {
		c.DB = def.DB
	}
	if c.CookieSecret == "" {
		c.CookieSecret = def.CookieSecret
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.Web.ViewsDir == "" {
		c.Web.ViewsDir = def.Web.ViewsDir
	}
	if c.Web.AssetsDir == "" {
		c.Web.AssetsDir = def.Web.AssetsDir
	}
	if c.Session.Name == "" {
		c.Session.Name = def.Session.Name
	}
	if c.Session.MaxAge == 0 {
		c.Session.MaxAge = def.Session.MaxAge
	}
	if c.Session.CleanupInterval == 0 {
		c.Session.CleanupInterval = def.Session.CleanupInterval
	}
	if c.Markdown.CacheMaxAge == 0 {
		c.Markdown.CacheMaxAge = def.Markdown.CacheMaxAge
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = def.Database.MaxOpenConns
	}
	if c.Database.SyncMode == "" {
		c.Database.SyncMode = def.Database.SyncMode
	}
}

// IsProduction reports whether the app runs with production settings
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
