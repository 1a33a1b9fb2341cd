// Package api serves report generation and data queries over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/rshade/greenreport/internal/carbon"
	"github.com/rshade/greenreport/internal/engine"
	"github.com/rshade/greenreport/internal/engine/archive"
	"github.com/rshade/greenreport/internal/logging"
	"github.com/rshade/greenreport/internal/report"
	"github.com/rshade/greenreport/internal/summary"
)

const (
	defaultTimeout    = 120 * time.Second
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 15 * time.Second
)

// Service is the report pipeline the handlers drive.
type Service interface {
	Generate(ctx context.Context, req engine.Request) (*report.Report, error)
	DataSummary(ctx context.Context, months int, factor string) (*summary.DataSummary, error)
	Factors(factor string) (carbon.FactorInfo, error)
	Readings(ctx context.Context, q engine.ReadingQuery, factor string) ([]carbon.ReadingEmission, error)
	WindowSummary(ctx context.Context, q engine.WindowQuery) (*summary.WindowSummary, error)
	HourlyTrend(ctx context.Context, q engine.WindowQuery) (*summary.HourlyTrend, error)
	RecentReadings(ctx context.Context, limit int, deviceID, factor string) ([]carbon.ReadingEmission, error)
	CheckComponents(ctx context.Context) engine.ComponentReport
	Ping(ctx context.Context) error
	ModelConfigured() bool
}

// Archive serves previously generated reports.
type Archive interface {
	Get(id string) (*report.Report, error)
	List() ([]archive.Summary, error)
}

// Config holds the listener settings.
type Config struct {
	Addr        string
	CORSOrigins []string
	// Timeout is the deadline placed on each request's context, so it bounds
	// the model call and data queries a handler makes.
	Timeout time.Duration
}

// Server is the HTTP front end.
type Server struct {
	service Service
	archive Archive
	logger  zerolog.Logger
	now     func() time.Time

	handler http.Handler
	server  *http.Server
}

// Option customizes a Server.
type Option func(*Server)

// WithArchive exposes archived reports under /reports.
func WithArchive(a Archive) Option { return func(s *Server) { s.archive = a } }

// WithLogger sets the request logger.
func WithLogger(l zerolog.Logger) Option { return func(s *Server) { s.logger = l } }

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option { return func(s *Server) { s.now = now } }

// NewServer wires routes and middleware.
func NewServer(cfg Config, svc Service, opts ...Option) *Server {
	s := &Server{
		service: svc,
		logger:  logging.ComponentLogger(logging.Default(), "api"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}

	middleware := []mux.MiddlewareFunc{
		s.requestIDMiddleware,
		metricsMiddleware,
		s.loggingMiddleware,
		timeoutMiddleware(cfg.Timeout),
	}
	router := mux.NewRouter()
	router.Use(middleware...)

	router.HandleFunc("/health", s.health).Methods(http.MethodGet)
	router.HandleFunc("/generate_report", s.generateReport).Methods(http.MethodPost)
	router.HandleFunc("/data_summary", s.dataSummary).Methods(http.MethodGet)
	router.HandleFunc("/carbon_factors", s.carbonFactors).Methods(http.MethodGet)
	router.HandleFunc("/carbon/readings", s.carbonReadings).Methods(http.MethodGet)
	router.HandleFunc("/test_components", s.testComponents).Methods(http.MethodGet)
	router.HandleFunc("/api/summary", s.windowSummary).Methods(http.MethodGet)
	router.HandleFunc("/api/trend", s.hourlyTrend).Methods(http.MethodGet)
	router.HandleFunc("/api/power_data", s.powerData).Methods(http.MethodGet)
	router.HandleFunc("/reports", s.listReports).Methods(http.MethodGet)
	router.HandleFunc("/reports/{id}", s.getReport).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	// mux skips route middleware for these two.
	router.NotFoundHandler = chain(http.HandlerFunc(s.notFound), middleware)
	router.MethodNotAllowedHandler = chain(http.HandlerFunc(s.methodNotAllowed), middleware)

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
	})
	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{s.logger}),
		handlers.PrintRecoveryStack(false),
	)
	s.handler = recovery(c.Handler(router))

	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      cfg.Timeout + readHeaderTimeout,
	}
	return s
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Run listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.server.Addr).Msg("starting HTTP server")
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info().Msg("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// recoveryLogger adapts zerolog to handlers.RecoveryHandlerLogger.
type recoveryLogger struct {
	l zerolog.Logger
}

func (r recoveryLogger) Println(v ...any) {
	r.l.Error().Msg(fmt.Sprint(v...))
}
