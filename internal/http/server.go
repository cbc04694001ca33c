// Package http serves the MoneyWire web UI: full pages for navigation and
// HTMX partials for the dashboard widgets and forms.
package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"moneywire/internal/core"
	"moneywire/internal/log"
	"moneywire/internal/middleware/guard"
	"moneywire/internal/middleware/ratelimit"
	"moneywire/internal/middleware/security"
	"moneywire/internal/middleware/trace"
	"moneywire/internal/session"
	appweb "moneywire/web"
)

// Backend is the account side of the REST API.
type Backend interface {
	Balance(ctx context.Context, token string) (core.Balance, error)
	Transactions(ctx context.Context, token string) ([]core.Transaction, error)
	Transfer(ctx context.Context, token string, req core.TransferRequest) error
	Ping(ctx context.Context) error
}

// Pinger is anything /readyz should check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DropCounter reports session events that were discarded before publishing.
type DropCounter interface {
	Dropped() int64
}

// Options wires a Server.
type Options struct {
	Addr     string
	Backend  Backend
	Sessions *session.Manager
	// Storage is the session KV, checked by /readyz.
	Storage Pinger
	Logger  *log.Logger
	// Events is the session event publisher, reported by /metrics. Optional.
	Events DropCounter

	// RefreshWindow triggers a token refresh when the JWT expires within it.
	// Zero disables refresh-ahead.
	RefreshWindow      time.Duration
	RateLimitPerMinute int
	ReadyTimeout       time.Duration
}

type Server struct {
	http.Server
	templates *template.Template
	backend   Backend
	sessions  *session.Manager
	storage   Pinger
	logger    *log.Logger
	audit     *log.StructuredLogger
	events    DropCounter

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	refreshWindow time.Duration
	readyTimeout  time.Duration
	now           func() time.Time
	started       time.Time

	shutdownOnce sync.Once
}

// NewServer parses the embedded templates and mounts every route.
func NewServer(opts Options) (*Server, error) {
	if opts.Backend == nil || opts.Sessions == nil || opts.Storage == nil {
		return nil, errors.New("http: backend, sessions and storage are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.Config{Component: log.ComponentHTTP})
	}
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = 2 * time.Second
	}

	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	limitCfg := ratelimit.DefaultConfig()
	if opts.RateLimitPerMinute > 0 {
		limitCfg.RequestsPerMinute = opts.RateLimitPerMinute
	}

	detector := security.NewDetector()
	s := &Server{
		templates:     t,
		backend:       opts.Backend,
		sessions:      opts.Sessions,
		storage:       opts.Storage,
		logger:        logger,
		audit:         log.NewStructuredLogger(logger),
		events:        opts.Events,
		limiter:       ratelimit.NewLimiter(limitCfg),
		detector:      detector,
		tracer:        trace.NewMiddleware(detector.ExtractClientIP),
		refreshWindow: opts.RefreshWindow,
		readyTimeout:  opts.ReadyTimeout,
		now:           time.Now,
		started:       time.Now(),
	}
	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.tracer.Middleware)
	r.Use(log.Middleware(s.logger, func(r *http.Request) string {
		return trace.GetRequestID(r.Context())
	}))
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(s.detector.Middleware(s.logger.WithComponent(log.ComponentSecurity)))

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", s.handleMetrics)
	r.Handle("/static/*", s.staticHandler())

	limited := s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, s.detector.ExtractClientIP(r),
			log.FieldPath, r.URL.Path)
		TooManyRequestsError("Too many attempts. Please try again later.").Write(w)
	})

	r.Group(func(r chi.Router) {
		r.Use(guard.Middleware)
		r.Use(session.Middleware(s.sessions))

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, guard.DashboardPath, http.StatusSeeOther)
		})

		r.Get(guard.LoginPath, s.handleLoginPage)
		r.With(limited).Post(guard.LoginPath, s.handleLogin)
		r.Get(guard.RegisterPath, s.handleRegisterPage)
		r.With(limited).Post(guard.RegisterPath, s.handleRegister)
		r.Post("/logout", s.handleLogout)

		r.Route(guard.DashboardPath, func(r chi.Router) {
			r.Use(s.refreshAhead)
			r.Get("/", s.handleDashboard)
			r.Get("/balance", s.handleBalance)
			r.Get("/transactions", s.handleTransactions)
			r.Get("/transfer", s.handleTransferOpen)
			r.Post("/transfer", s.handleTransfer)
			r.Get("/transfer/close", s.handleTransferClose)
		})
	})

	return r
}

func (s *Server) staticHandler() http.Handler {
	sub, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		// only fails on a malformed pattern, which is a build-time constant
		panic(err)
	}
	static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
	return security.StaticAssetMiddleware(3600)(static)
}

// Shutdown stops the rate limiter and drains the HTTP server. Safe to call
// more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// render executes a template into a buffer first so a failing template never
// leaves a half-written response.
func (s *Server) render(w http.ResponseWriter, r *http.Request, b *HTMXResponseBuilder, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
			log.FieldError, err,
			log.FieldTemplate, name,
			log.FieldOperation, log.OpRender)
		InternalServerError("An error occurred").Write(w)
		return
	}
	b.BodyHTML(buf.Bytes()).Write(w)
}

// renderForm sends the form fragment to htmx and the whole page otherwise.
func (s *Server) renderForm(w http.ResponseWriter, r *http.Request, status int, page, fragment string, data any) {
	name := page
	if isHTMX(r) {
		name = fragment
	}
	s.render(w, r, NewHTMXResponse().Status(status), name, data)
}
