package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"moneywire/internal/api"
	"moneywire/internal/core"
	"moneywire/internal/log"
)

const (
	loginFallback      = "Failed to login"
	registerParseError = "Failed to parse error response"
)

// Store holds the session of one browser. Reads are served from memory and
// every change is persisted before it becomes visible.
type Store struct {
	auth    Authenticator
	persist Persister
	logger  *log.Logger
	now     func() time.Time

	mu    sync.RWMutex
	state Session

	// commitMu serializes persist+swap so storage and memory never disagree.
	commitMu sync.Mutex

	hydrateOnce sync.Once
	hydrateErr  error

	listenersMu sync.Mutex
	listeners   map[int]Listener
	nextID      int
}

type Option func(*Store)

func WithLogger(l *log.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithListener subscribes l for the lifetime of the store.
func WithListener(l Listener) Option {
	return func(s *Store) {
		s.subscribe(l)
	}
}

// WithClock overrides the time stamped on events.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithState seeds the in-memory state and marks the store as hydrated.
func WithState(st Session) Option {
	return func(s *Store) {
		s.state = st
		s.hydrateOnce.Do(func() {})
	}
}

func NewStore(auth Authenticator, p Persister, opts ...Option) *Store {
	s := &Store{
		auth:      auth,
		persist:   p,
		logger:    log.New(log.Config{Component: log.ComponentSession}),
		now:       time.Now,
		listeners: make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Hydrate loads the persisted session. Only the first call does any work;
// later calls return the first result.
func (s *Store) Hydrate(ctx context.Context) error {
	s.hydrateOnce.Do(func() {
		st, err := s.persist.Load(ctx)
		if err != nil {
			s.hydrateErr = fmt.Errorf("hydrate session: %w", err)
			s.logger.WarnContext(ctx, "Session hydration failed",
				log.FieldOperation, log.OpHydrate,
				log.FieldError, err)
		}
		// Load returns whatever it could read even on error (usually the cookie token).
		s.mu.Lock()
		s.state = st
		s.mu.Unlock()
	})
	return s.hydrateErr
}

// Snapshot returns the current state.
func (s *Store) Snapshot() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Subscribe registers l and returns a function that removes it.
func (s *Store) Subscribe(l Listener) func() {
	id := s.subscribe(l)
	return func() {
		s.listenersMu.Lock()
		delete(s.listeners, id)
		s.listenersMu.Unlock()
	}
}

func (s *Store) subscribe(l Listener) int {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	return id
}

// Login authenticates with email and password, fetches the profile and
// commits both. On any failure the state is left as it was.
func (s *Store) Login(ctx context.Context, email, password string) error {
	token, err := s.auth.Login(ctx, email, password)
	if err != nil {
		return authFailure(log.OpLogin, err, func(*api.StatusError) string { return loginFallback })
	}
	user, err := s.fetchProfile(ctx, token)
	if err != nil {
		return err
	}
	return s.commit(ctx, EventLogin, Session{Token: token, User: user})
}

// Register creates an account, fetches its profile and commits both.
func (s *Store) Register(ctx context.Context, email, password, username string) error {
	ctx = api.WithCredentials(ctx)
	token, err := s.auth.Register(ctx, email, password, username)
	if err != nil {
		return authFailure(log.OpRegister, err, func(se *api.StatusError) string {
			if !se.Parsed {
				return registerParseError
			}
			return fmt.Sprintf("Registration failed with status: %d", se.Status)
		})
	}
	user, err := s.fetchProfile(ctx, token)
	if err != nil {
		return err
	}
	return s.commit(ctx, EventRegister, Session{Token: token, User: user})
}

// Logout revokes the token remotely when one is held, then always clears
// local state. Failures are reported in the result, never returned.
func (s *Store) Logout(ctx context.Context) LogoutResult {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	prev := s.Snapshot()
	var res LogoutResult
	if prev.Token != "" {
		if err := s.auth.Logout(ctx, prev.Token); err != nil {
			res.RemoteErr = err
			s.logger.WarnContext(ctx, "Remote logout failed",
				log.FieldOperation, log.OpLogout,
				log.FieldError, err)
		}
	}

	if err := s.persist.Clear(ctx, prev.Token); err != nil {
		res.StorageErr = err
		s.logger.WarnContext(ctx, "Failed to clear persisted session",
			log.FieldOperation, log.OpLogout,
			log.FieldError, err)
	}

	s.mu.Lock()
	s.state = Session{}
	s.mu.Unlock()

	s.notify(ctx, Event{Kind: EventLogout, Previous: prev, At: s.now()})
	return res
}

// RefreshToken swaps the held token for a fresh one. Without a token it does
// nothing and makes no network call.
func (s *Store) RefreshToken(ctx context.Context) RefreshResult {
	current := s.Snapshot()
	if current.Token == "" {
		return RefreshResult{Skipped: true}
	}

	token, err := s.auth.Refresh(ctx, current.Token)
	if err != nil {
		s.logger.WarnContext(ctx, "Token refresh failed",
			log.FieldOperation, log.OpRefresh,
			log.FieldError, err)
		return RefreshResult{Err: err}
	}

	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	latest := s.Snapshot()
	if latest.Token != current.Token {
		// a login or logout landed while the refresh was in flight
		return RefreshResult{Err: errors.New("session changed during refresh")}
	}
	next := Session{Token: token, User: latest.User}
	if err := s.save(ctx, EventRefresh, latest, next); err != nil {
		s.logger.WarnContext(ctx, "Failed to persist refreshed token",
			log.FieldOperation, log.OpRefresh,
			log.FieldError, err)
		return RefreshResult{Err: err}
	}
	return RefreshResult{}
}

func (s *Store) fetchProfile(ctx context.Context, token string) (*core.User, error) {
	user, err := s.auth.Me(ctx, token)
	if err != nil {
		var netErr *core.NetworkError
		if errors.As(err, &netErr) {
			return nil, err
		}
		pe := &core.ProfileFetchError{Err: err}
		var se *api.StatusError
		if errors.As(err, &se) {
			pe.Status = se.Status
		}
		return nil, pe
	}
	if user == nil {
		return nil, &core.ProfileFetchError{Err: errors.New("empty profile")}
	}
	return user, nil
}

// commit persists next and then makes it visible. Last write wins.
func (s *Store) commit(ctx context.Context, kind EventKind, next Session) error {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()
	return s.save(ctx, kind, s.Snapshot(), next)
}

// save must be called with commitMu held.
func (s *Store) save(ctx context.Context, kind EventKind, prev, next Session) error {
	if err := s.persist.Save(ctx, next); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	s.mu.Lock()
	s.state = next
	s.mu.Unlock()

	s.notify(ctx, Event{Kind: kind, Session: next, Previous: prev, At: s.now()})
	return nil
}

func (s *Store) notify(ctx context.Context, ev Event) {
	s.listenersMu.Lock()
	ls := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		ls = append(ls, l)
	}
	s.listenersMu.Unlock()

	for _, l := range ls {
		l(ctx, ev)
	}
}

// authFailure maps a login/register error. Status errors become
// AuthenticationError with the server message or the fallback; anything else
// the backend sent that could not be used becomes UpstreamError.
func authFailure(op string, err error, fallback func(*api.StatusError) string) error {
	var netErr *core.NetworkError
	if errors.As(err, &netErr) {
		return err
	}
	var se *api.StatusError
	if errors.As(err, &se) {
		msg := se.Message
		if msg == "" {
			msg = fallback(se)
		}
		return &core.AuthenticationError{Status: se.Status, Message: msg}
	}
	if errors.Is(err, api.ErrMissingToken) {
		// 2xx without a token
		return &core.AuthenticationError{
			Status:  http.StatusOK,
			Message: fallback(&api.StatusError{Status: http.StatusOK, Parsed: true}),
		}
	}
	return &core.UpstreamError{Op: op, Err: err}
}
