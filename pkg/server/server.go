// Package server wires the mock DRC components together and owns the HTTP
// listener lifecycle. All state stores are constructed here and injected
// into the handlers; nothing is a package-level singleton, so tests can run
// many isolated instances in one process.
package server

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/laa-dces/mock-drc/pkg/admin"
	"github.com/laa-dces/mock-drc/pkg/auth"
	"github.com/laa-dces/mock-drc/pkg/config"
	"github.com/laa-dces/mock-drc/pkg/counters"
	"github.com/laa-dces/mock-drc/pkg/drc"
	"github.com/laa-dces/mock-drc/pkg/journal"
	"github.com/laa-dces/mock-drc/pkg/logging"
	"github.com/laa-dces/mock-drc/pkg/outcome"
	"github.com/laa-dces/mock-drc/pkg/registry"
	"github.com/laa-dces/mock-drc/pkg/tlsutil"
)

// Server is the mock DRC server: the shared state stores, the handler tree
// and the HTTP listener.
type Server struct {
	cfg      *config.Config
	log      *slog.Logger
	registry *registry.Registry
	journal  *journal.Journal
	counters *counters.Counters
	handler  http.Handler

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
	running    bool
}

// Option is a functional option for configuring a Server.
type Option func(*Server)

// WithLogger sets the operational logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// New creates a Server from the configuration. Pass nil for defaults.
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		cfg: cfg,
		log: logging.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	var regOpts []registry.Option
	if cfg.SharedIDSpace {
		regOpts = append(regOpts, registry.WithSharedIDSpace())
	}
	s.registry = registry.New(regOpts...)
	s.journal = journal.New(cfg.JournalCap)
	s.counters = counters.New(cfg.DRCIDSeed)

	for _, seed := range cfg.Seed {
		s.registry.Seed(registry.Key{Entity: registry.Entity(seed.Entity), ID: seed.ID}, seed.StatusCode)
	}

	machine := outcome.New(cfg.DuplicateStatus)

	mux := http.NewServeMux()
	drc.NewHandler(s.registry, s.journal, s.counters, machine, s.log).Register(mux)
	admin.New(s.registry, s.journal, s.counters, s.log).Register(mux)

	authenticator, err := auth.New(cfg.Auth, s.log)
	if err != nil {
		return nil, fmt.Errorf("invalid auth configuration: %w", err)
	}
	s.handler = s.accessLog(authenticator.Middleware(mux))

	return s, nil
}

// Handler returns the fully wired handler tree, including authentication.
// Exposed so tests can drive the server without a listener.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Registry returns the status registry.
func (s *Server) Registry() *registry.Registry { return s.registry }

// Journal returns the request journal.
func (s *Server) Journal() *journal.Journal { return s.journal }

// Counters returns the shared counters.
func (s *Server) Counters() *counters.Counters { return s.counters }

// Start begins listening on the configured address. It returns once the
// listener is bound; serving continues in the background until Shutdown.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("server already running")
	}

	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}

	s.httpServer = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	scheme := "http"
	if s.cfg.TLS.Enabled {
		tlsConfig, err := s.tlsConfig()
		if err != nil {
			_ = listener.Close()
			return err
		}
		listener = tls.NewListener(listener, tlsConfig)
		scheme = "https"
	}

	s.listener = listener
	s.running = true
	s.log.Info("mock DRC server listening",
		"addr", listener.Addr().String(),
		"scheme", scheme,
		"authMode", s.cfg.Auth.Mode,
		"journalCap", s.journal.Cap())

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("server stopped unexpectedly", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound listener address, e.g. "127.0.0.1:8080". Empty
// until Start succeeds.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false
	return s.httpServer.Shutdown(ctx)
}

// tlsConfig builds the listener TLS configuration: configured certificate
// files, or an auto-generated self-signed pair, plus optional client-CA
// verification.
func (s *Server) tlsConfig() (*tls.Config, error) {
	var cert tls.Certificate
	var err error

	switch {
	case s.cfg.TLS.CertFile != "" && s.cfg.TLS.KeyFile != "":
		cert, err = tls.LoadX509KeyPair(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load TLS certificate: %w", err)
		}
	case s.cfg.TLS.AutoGenerateCert:
		gen, genErr := tlsutil.GenerateSelfSigned(nil)
		if genErr != nil {
			return nil, fmt.Errorf("failed to generate TLS certificate: %w", genErr)
		}
		cert, err = gen.TLSCertificate()
		if err != nil {
			return nil, err
		}
		s.log.Warn("serving with an auto-generated self-signed certificate")
	default:
		return nil, errors.New("tls enabled but no certificate configured")
	}

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}

	if s.cfg.TLS.ClientCAFile != "" {
		caPEM, err := os.ReadFile(s.cfg.TLS.ClientCAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read client CA: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, errors.New("client CA file contains no certificates")
		}
		tlsConfig.ClientCAs = pool
		// Certificates are requested at the TLS layer but enforcement is the
		// auth middleware's job, so unauthenticated health probes still work.
		tlsConfig.ClientAuth = tls.VerifyClientCertIfGiven
	}

	return tlsConfig, nil
}
