package main

import (
	"fmt"
	"os"

	"github.com/go-while/go-goatweb/internal/config"
	"github.com/go-while/go-goatweb/internal/database"
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "goatweb",
	Short: "goatweb - OWASP Top 10 demo web server",
	Long: `goatweb is a deliberately vulnerable web application for security training.

Every fix is a config switch and all of them default to the vulnerable setting:
  security.headers        hardening headers (A5)
  security.autoescape     template auto escaping (A3)
  security.secure_cookie  Secure flag on the session cookie (A6)
  https.enabled           TLS listener (A6)
  markdown.sanitize       sanitized markdown rendering (A9, on by default)

Configuration:
  Config is loaded from goatweb.yaml in the current directory or ./config.
  Environment variables override config values with the GOATWEB_ prefix,
  e.g. GOATWEB_SECURITY_HEADERS=true. PORT, DB_URI and COOKIE_SECRET are
  honoured as well.

Running goatweb without a command starts the server.`,
	SilenceUsage: true,
	RunE:         runServe,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./goatweb.yaml)")
	addServeFlags(rootCmd)
}

func initConfig() {
	config.InitViper(cfgFile)
}

// dbConfig maps the application config to the database settings
func dbConfig(cfg *config.Config) *database.DBConfig {
	dbcfg := database.DefaultDBConfig(cfg.DB)
	dbcfg.MaxOpenConns = cfg.Database.MaxOpenConns
	dbcfg.MaxIdleConns = cfg.Database.MaxIdleConns
	dbcfg.WALMode = cfg.Database.WALMode
	dbcfg.SyncMode = cfg.Database.SyncMode
	return dbcfg
}
