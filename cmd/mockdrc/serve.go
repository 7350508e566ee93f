package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/laa-dces/mock-drc/pkg/auth"
	"github.com/laa-dces/mock-drc/pkg/config"
	"github.com/laa-dces/mock-drc/pkg/logging"
	"github.com/laa-dces/mock-drc/pkg/server"
)

const shutdownTimeout = 10 * time.Second

type serveFlags struct {
	configFile      string
	addr            string
	logLevel        string
	logFormat       string
	journalCap      int
	duplicateStatus int
	sharedIDSpace   bool
	tlsEnabled      bool
	authMode        string
}

func newServeCmd() *cobra.Command {
	flags := &serveFlags{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the mock DRC server",
		Long:  "Starts the mock DRC server and blocks until interrupted.\nFlags override the corresponding configuration-file settings.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.configFile, "config", "c", "", "path to YAML configuration file")
	cmd.Flags().StringVarP(&flags.addr, "addr", "a", "", "listen address (e.g. :8080)")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&flags.logFormat, "log-format", "", "log format (text, json)")
	cmd.Flags().IntVar(&flags.journalCap, "journal-cap", 0, "request journal retention cap")
	cmd.Flags().IntVar(&flags.duplicateStatus, "duplicate-status", 0, "status an id advances to after first success (634 or 409)")
	cmd.Flags().BoolVar(&flags.sharedIDSpace, "shared-id-space", false, "share one id space across both submission endpoints")
	cmd.Flags().BoolVar(&flags.tlsEnabled, "tls", false, "serve HTTPS (auto-generates a certificate if none configured)")
	cmd.Flags().StringVar(&flags.authMode, "auth-mode", "", "authentication mode (disabled, any, all)")

	return cmd
}

func runServe(cmd *cobra.Command, flags *serveFlags) error {
	cfg, err := loadConfig(cmd, flags)
	if err != nil {
		return err
	}

	log := logging.New(logging.Config{
		Level:  logging.ParseLevel(cfg.LogLevel),
		Format: logging.ParseFormat(cfg.LogFormat),
	})

	srv, err := server.New(cfg, server.WithLogger(log))
	if err != nil {
		return err
	}
	if err := srv.Start(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}

// loadConfig reads the configuration file (or defaults) and applies any
// flags the user explicitly set on top.
func loadConfig(cmd *cobra.Command, flags *serveFlags) (*config.Config, error) {
	cfg := config.Default()
	if flags.configFile != "" {
		loaded, err := config.LoadFromFile(flags.configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if cmd.Flags().Changed("addr") {
		cfg.Addr = flags.addr
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = flags.logLevel
	}
	if cmd.Flags().Changed("log-format") {
		cfg.LogFormat = flags.logFormat
	}
	if cmd.Flags().Changed("journal-cap") {
		cfg.JournalCap = flags.journalCap
	}
	if cmd.Flags().Changed("duplicate-status") {
		cfg.DuplicateStatus = flags.duplicateStatus
	}
	if cmd.Flags().Changed("shared-id-space") {
		cfg.SharedIDSpace = flags.sharedIDSpace
	}
	if cmd.Flags().Changed("tls") {
		cfg.TLS.Enabled = flags.tlsEnabled
		if cfg.TLS.CertFile == "" {
			cfg.TLS.AutoGenerateCert = true
		}
	}
	if cmd.Flags().Changed("auth-mode") {
		cfg.Auth.Mode = auth.Mode(flags.authMode)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
