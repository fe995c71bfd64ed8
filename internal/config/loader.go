package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// InitViper initializes Viper with the configuration file and environment variables.
// If configFile is empty, it searches for goatweb.yaml/.yml/.json in the
// working directory and ./config.
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFileInPaths([]string{".", "config"}); found != "" {
		viper.SetConfigFile(found)
	} else {
		// ReadInConfig returns ConfigFileNotFoundError, callers treat that as "defaults only"
		viper.SetConfigName("goatweb")
		viper.SetConfigType("yaml")
	}

	// GOATWEB_SECURITY_HEADERS overrides security.headers
	viper.SetEnvPrefix("GOATWEB")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	setViperDefaults(NewDefaultConfig())
	bindEnvKeys()
}

// findConfigFileInPaths returns the first goatweb config file found in paths.
func findConfigFileInPaths(paths []string) string {
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml", ".json"} {
			path := filepath.Join(dir, "goatweb"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// setViperDefaults registers every key so AutomaticEnv and Unmarshal see it.
func setViperDefaults(def *Config) {
	viper.SetDefault("env", def.Env)
	viper.SetDefault("port", def.Port)
	viper.SetDefault("db", def.DB)
	viper.SetDefault("cookie_secret", def.CookieSecret)
	viper.SetDefault("log_level", def.LogLevel)

	viper.SetDefault("web.views_dir", def.Web.ViewsDir)
	viper.SetDefault("web.assets_dir", def.Web.AssetsDir)
	viper.SetDefault("web.favicon_path", def.Web.FaviconPath)
	viper.SetDefault("web.trusted_proxies", def.Web.TrustedProxies)

	viper.SetDefault("session.name", def.Session.Name)
	viper.SetDefault("session.max_age", def.Session.MaxAge)
	viper.SetDefault("session.cleanup_interval", def.Session.CleanupInterval)

	viper.SetDefault("security.headers", def.Security.Headers)
	viper.SetDefault("security.autoescape", def.Security.Autoescape)
	viper.SetDefault("security.secure_cookie", def.Security.SecureCookie)

	viper.SetDefault("https.enabled", def.HTTPS.Enabled)
	viper.SetDefault("https.cert_file", def.HTTPS.CertFile)
	viper.SetDefault("https.key_file", def.HTTPS.KeyFile)

	viper.SetDefault("markdown.sanitize", def.Markdown.Sanitize)
	viper.SetDefault("markdown.cache_entries", def.Markdown.CacheEntries)
	viper.SetDefault("markdown.cache_max_age", def.Markdown.CacheMaxAge)

	viper.SetDefault("database.max_open_conns", def.Database.MaxOpenConns)
	viper.SetDefault("database.max_idle_conns", def.Database.MaxIdleConns)
	viper.SetDefault("database.wal_mode", def.Database.WALMode)
	viper.SetDefault("database.sync_mode", def.Database.SyncMode)
}

// bindEnvKeys adds the short environment names the demo app has always honoured.
func bindEnvKeys() {
	_ = viper.BindEnv("port", "GOATWEB_PORT", "PORT")
	_ = viper.BindEnv("db", "GOATWEB_DB", "DB_URI")
	_ = viper.BindEnv("cookie_secret", "GOATWEB_COOKIE_SECRET", "COOKIE_SECRET")
	_ = viper.BindEnv("env", "GOATWEB_ENV", "GOATWEB_ENVIRONMENT")
}

// Load reads the configuration file, applies environment overrides,
// sets defaults and validates the result.
// Callers that apply CLI flag overrides should use LoadRaw and call Validate themselves.
func Load() (*Config, error) {
	cfg, err := LoadRaw()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// LoadRaw reads the configuration file and applies defaults but does NOT validate.
func LoadRaw() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// no config file, env vars and defaults only
	}

	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.SetDefaults()
	return cfg, nil
}

// ConfigFileUsed returns the path of the loaded config file, empty if none.
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}
