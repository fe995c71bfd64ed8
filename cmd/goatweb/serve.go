package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	prof "github.com/go-while/go-cpu-mem-profiler"
	"github.com/go-while/go-goatweb/internal/config"
	"github.com/go-while/go-goatweb/internal/database"
	"github.com/go-while/go-goatweb/internal/logging"
	"github.com/go-while/go-goatweb/internal/web"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// ErrDBConnect is returned by serve when the database cannot be opened
var ErrDBConnect = errors.New("Error: DB: connect")

var Prof *prof.Profiler

var (
	servePort  int
	servePprof string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the web server.

The database is opened once at startup; if that fails the process exits
with status 1. The server stops gracefully on SIGINT or SIGTERM.

Examples:
  goatweb serve
  goatweb serve --port 8080
  goatweb --config /etc/goatweb.yaml serve --pprof localhost:6060`,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	addServeFlags(serveCmd)
	rootCmd.AddCommand(serveCmd)
}

func addServeFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&servePort, "port", 0, "listen port, overrides config (default: 4000)")
	cmd.Flags().StringVar(&servePprof, "pprof", "", "serve pprof on this address, e.g. localhost:6060")
}

// loadServeConfig loads the config, applies flag overrides and validates
func loadServeConfig() (*config.Config, error) {
	cfg, err := config.LoadRaw()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if servePort > 0 {
		cfg.Port = servePort
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadServeConfig()
	if err != nil {
		return err
	}
	if err := logging.Setup(cfg.LogLevel, cfg.IsProduction()); err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"version": config.AppVersion,
		"env":     cfg.Env,
		"config":  config.ConfigFileUsed(),
	}).Info("Starting goatweb")

	if servePprof != "" {
		Prof = prof.NewProf()
		go Prof.PprofWeb(servePprof)
		log.Infof("pprof listening on %s", servePprof)
	}

	db, err := database.Open(dbConfig(cfg))
	if err != nil {
		log.Error(ErrDBConnect.Error())
		log.Error(err)
		return ErrDBConnect
	}
	defer db.Close()

	srv, err := web.NewServer(cfg, db, web.Options{})
	if err != nil {
		return err
	}
	defer srv.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.Start(ctx)
}
