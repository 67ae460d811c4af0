// Package server provides the signupdesk dashboard.
//
// The dashboard hosts a single client session against an activity service
// and exposes it over HTTP, both as an HTML page and as a JSON API that
// drives the same operations a user performs on the signup page.
//
// # Endpoints
//
//   - GET / - HTML dashboard
//   - GET /health - Health check, returns "ok" while the session is serving
//   - GET /api/state - Current session snapshot
//   - POST /api/refresh - Reloads the roster
//   - POST /api/signup - Signs a participant up
//   - POST /api/unregister - Removes a rendered participant
//   - POST /api/modal/open, /api/modal/close, /api/modal/click - Login modal
//   - POST /api/login - Verifies teacher credentials
//   - GET /api/logs - Captured diagnostics per operation
//   - GET /metrics - Prometheus metrics
//
// # Example
//
//	cfg, err := config.LoadConfig("/etc/signupdesk/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	srv, err := server.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/nomis52/signupdesk/buildinfo"
	"github.com/nomis52/signupdesk/clients/activityservice"
	"github.com/nomis52/signupdesk/config"
	"github.com/nomis52/signupdesk/eventloop"
	"github.com/nomis52/signupdesk/logging"
	"github.com/nomis52/signupdesk/messages"
	"github.com/nomis52/signupdesk/metrics"
	"github.com/nomis52/signupdesk/server/cron"
	"github.com/nomis52/signupdesk/server/handlers"
	"github.com/nomis52/signupdesk/session"
)

const (
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 30 * time.Second
	defaultShutdownTimeout = 5 * time.Second
)

// Server is the HTTP server for the signupdesk dashboard.
type Server struct {
	addr        string
	cfg         config.Config
	logger      *logging.Logger
	collector   *logging.LogCollector
	registry    *metrics.ScrapeRegistry
	catalog     *messages.Catalog
	loop        *eventloop.Loop
	session     *session.ActivityClient
	httpServer  *http.Server
	cronTrigger *cron.CronTrigger
	handler     http.Handler
}

// Option configures a Server.
type Option func(*options)

type options struct {
	addr      string
	logWriter io.Writer
	clock     eventloop.Clock
}

// WithListenAddr overrides the configured listen address.
func WithListenAddr(addr string) Option {
	return func(o *options) {
		o.addr = addr
	}
}

// WithLogWriter sends log output to w instead of the configured output.
func WithLogWriter(w io.Writer) Option {
	return func(o *options) {
		o.logWriter = w
	}
}

// WithClock sets the clock driving message and modal timers.
func WithClock(c eventloop.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// New creates a Server from cfg. The configuration must already have
// defaults applied and be valid, as returned by config.LoadConfig.
func New(cfg config.Config, opts ...Option) (*Server, error) {
	o := options{addr: cfg.Server.ListenAddr, clock: eventloop.RealClock()}
	for _, opt := range opts {
		opt(&o)
	}

	collector := logging.NewLogCollector(cfg.Server.LogLimit)
	logOpts := []logging.Option{logging.WithCollector(collector)}
	if o.logWriter != nil {
		logOpts = append(logOpts, logging.WithWriter(o.logWriter))
	}
	logger, err := logging.New(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Output:    cfg.Logging.Output,
		AddSource: cfg.Logging.AddSource,
	}, logOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	s := &Server{
		addr:      o.addr,
		cfg:       cfg,
		logger:    logger,
		collector: collector,
	}
	if err := s.init(o.clock); err != nil {
		logger.Close()
		return nil, err
	}
	return s, nil
}

func (s *Server) init(clock eventloop.Clock) error {
	registry, err := metrics.NewScrapeRegistry()
	if err != nil {
		return fmt.Errorf("creating metrics registry: %w", err)
	}
	s.registry = registry

	catalog, err := messages.New(s.cfg.UI.Locale, s.logger.Logger)
	if err != nil {
		return fmt.Errorf("loading messages: %w", err)
	}
	s.catalog = catalog

	client, err := activityservice.New(s.cfg.Service.URL,
		activityservice.WithLogger(s.logger.Logger),
		activityservice.WithTimeout(s.cfg.Service.Timeout),
		activityservice.WithMetricsRegistry(registry),
	)
	if err != nil {
		return fmt.Errorf("creating activity service client: %w", err)
	}

	s.loop = eventloop.New(eventloop.WithClock(clock), eventloop.WithLogger(s.logger.Logger))
	s.session, err = session.New(client, s.loop,
		session.WithLogger(s.logger.Logger),
		session.WithTranslator(catalog),
		session.WithMessageTimeout(s.cfg.UI.MessageTimeout),
		session.WithLoginHideDelay(s.cfg.UI.LoginHideDelay),
		session.WithMetricsRegistry(registry),
	)
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}

	if spec := s.cfg.UI.RefreshSchedule; spec != "" {
		trigger, err := cron.NewCronTrigger(spec, s.session.RefreshRoster, s.logger.Logger)
		if err != nil {
			return fmt.Errorf("creating cron trigger: %w", err)
		}
		s.cronTrigger = trigger
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)
	s.handler = mux
	return nil
}

// Logger returns the server's logger.
func (s *Server) Logger() *slog.Logger {
	return s.logger.Logger
}

// Session returns the hosted session.
func (s *Server) Session() *session.ActivityClient {
	return s.session
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// NextRefresh returns the next scheduled refresh, or nil if no schedule is
// configured.
func (s *Server) NextRefresh() *time.Time {
	if s.cronTrigger == nil {
		return nil
	}
	next := s.cronTrigger.NextRun()
	return &next
}

// Run starts the session's event loop, loads the roster once and serves
// HTTP until ctx is cancelled. It performs a graceful shutdown when the
// context is done.
func (s *Server) Run(ctx context.Context) error {
	defer s.logger.Close()

	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()
	go s.loop.Run(loopCtx)

	// A failed first load only shows the failure notice.
	s.session.RefreshRoster(ctx)

	if s.cronTrigger != nil {
		s.logger.Info("starting cron trigger",
			"spec", s.cronTrigger.Spec(),
			"next_run", s.cronTrigger.NextRun(),
		)
		s.cronTrigger.Start(ctx)
	}

	s.httpServer = &http.Server{
		Addr:         s.addr,
		Handler:      s.handler,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		props := buildinfo.Get()
		s.logger.Info("starting server",
			"addr", s.addr,
			"service_url", s.cfg.Service.URL,
			"version", props.Version,
			"git_commit", props.GitCommit,
		)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

// Start runs the event loop without serving HTTP, for callers that mount
// Handler themselves. The loop stops when ctx is cancelled.
func (s *Server) Start(ctx context.Context) {
	go s.loop.Run(ctx)
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	logger := s.logger.Logger
	sess := s.session

	mux.Handle("GET /health", handlers.NewHealthHandler(logger, sess))
	mux.Handle("GET /api/state", handlers.NewStateHandler(logger, sess))
	mux.Handle("POST /api/refresh", handlers.NewRefreshHandler(logger, sess, sess))
	mux.Handle("POST /api/signup", handlers.NewSignupHandler(logger, sess, sess))
	mux.Handle("POST /api/unregister", handlers.NewUnregisterHandler(logger, sess, sess))
	mux.Handle("POST /api/modal/open", handlers.NewModalHandler(logger, sess, sess, handlers.ModalOpen))
	mux.Handle("POST /api/modal/close", handlers.NewModalHandler(logger, sess, sess, handlers.ModalClose))
	mux.Handle("POST /api/modal/click", handlers.NewModalHandler(logger, sess, sess, handlers.ModalClick))
	mux.Handle("POST /api/login", handlers.NewLoginHandler(logger, sess, sess))
	mux.Handle("GET /api/logs", handlers.NewLogsHandler(s.collector))
	mux.Handle("GET /metrics", s.registry.Handler())
	mux.Handle("GET /{$}", handlers.NewPageHandler(logger, sess, s.catalog, s.catalog.Locale().String()))
}
