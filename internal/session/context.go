package session

import (
	"context"
	"net/http"
	"sync"
	"time"

	"moneywire/internal/log"
	"moneywire/internal/storage"
)

// Accessor is what handlers see of the session.
type Accessor interface {
	Snapshot() Session
	Login(ctx context.Context, email, password string) error
	Register(ctx context.Context, email, password, username string) error
	Logout(ctx context.Context) LogoutResult
	RefreshToken(ctx context.Context) RefreshResult
	Subscribe(l Listener) func()
}

type ctxKey struct{}

// NewContext returns ctx carrying a.
func NewContext(ctx context.Context, a Accessor) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

// FromContext returns the session mounted on ctx. Without one it returns a
// stand-in that is unauthenticated and whose operations fail with ErrNoSession.
func FromContext(ctx context.Context) Accessor {
	if a, ok := ctx.Value(ctxKey{}).(Accessor); ok && a != nil {
		return a
	}
	return standIn{}
}

type standIn struct{}

func (standIn) Snapshot() Session { return Session{} }

func (standIn) Login(context.Context, string, string) error { return ErrNoSession }

func (standIn) Register(context.Context, string, string, string) error { return ErrNoSession }

func (standIn) Logout(context.Context) LogoutResult { return LogoutResult{StorageErr: ErrNoSession} }

func (standIn) RefreshToken(context.Context) RefreshResult {
	return RefreshResult{Skipped: true, Err: ErrNoSession}
}

func (standIn) Subscribe(Listener) func() { return func() {} }

// ManagerConfig holds the settings shared by every opened store.
type ManagerConfig struct {
	TTL    time.Duration
	Cookie CookieConfig
}

// Manager opens request-scoped stores over the shared KV and API client.
type Manager struct {
	auth   Authenticator
	kv     storage.KV
	cfg    ManagerConfig
	logger *log.Logger

	mu        sync.RWMutex
	listeners []Listener
}

func NewManager(auth Authenticator, kv storage.KV, cfg ManagerConfig, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.New(log.Config{Component: log.ComponentSession})
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.Cookie.MaxAge == 0 {
		cfg.Cookie.MaxAge = cfg.TTL
	}
	m := &Manager{auth: auth, kv: kv, cfg: cfg, logger: logger}

	audit := log.NewStructuredLogger(logger)
	m.AddListener(func(ctx context.Context, ev Event) {
		s := ev.Session
		if ev.Kind == EventLogout {
			s = ev.Previous
		}
		username := ""
		if s.User != nil {
			username = s.User.Username
		}
		audit.LogSessionChange(ctx, string(ev.Kind), s.UserID(), username)
	})
	return m
}

// AddListener attaches l to every store opened afterwards.
func (m *Manager) AddListener(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

// Open builds a store bound to this request/response pair. It is not hydrated.
func (m *Manager) Open(w http.ResponseWriter, r *http.Request) *Store {
	m.mu.RLock()
	opts := make([]Option, 0, len(m.listeners)+1)
	opts = append(opts, WithLogger(m.logger))
	for _, l := range m.listeners {
		opts = append(opts, WithListener(l))
	}
	m.mu.RUnlock()

	p := NewHTTPPersister(m.kv, w, r, m.cfg.Cookie, m.cfg.TTL)
	return NewStore(m.auth, p, opts...)
}

// Middleware mounts a hydrated store on every request. Hydration failures are
// logged by the store and the request continues with whatever was loaded.
func Middleware(m *Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			store := m.Open(w, r)
			_ = store.Hydrate(r.Context())
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), store)))
		})
	}
}
