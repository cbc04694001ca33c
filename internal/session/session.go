// Package session owns the authentication state of one browser session: the
// bearer token and the cached user profile.
//
// A Store is created per request by a Manager, hydrated once from the token
// cookie and the session record in the key/value store, and read by handlers
// through FromContext. Every change goes through one write path that updates
// the record and the cookie together.
package session

import (
	"context"
	"errors"
	"time"

	"moneywire/internal/core"
)

// ErrNoSession is returned by the stand-in accessor when no store was mounted
// on the request.
var ErrNoSession = errors.New("session: no session store in context")

// Session is an immutable snapshot of the authentication state.
type Session struct {
	Token string
	User  *core.User
}

// IsAuthenticated reports whether a token is held.
func (s Session) IsAuthenticated() bool {
	return s.Token != ""
}

// UserID returns the profile ID, or 0 when the profile is not loaded.
func (s Session) UserID() int64 {
	if s.User == nil {
		return 0
	}
	return s.User.ID
}

type EventKind string

const (
	EventLogin    EventKind = "login"
	EventRegister EventKind = "register"
	EventLogout   EventKind = "logout"
	EventRefresh  EventKind = "refresh"
)

// Event describes one committed state change.
type Event struct {
	Kind     EventKind
	Session  Session
	Previous Session
	At       time.Time
}

// Listener is notified after a change has been committed. It runs on the
// goroutine that made the change and must not call back into the store.
type Listener func(ctx context.Context, ev Event)

// Authenticator is the slice of the backend API the store needs.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (string, error)
	Register(ctx context.Context, email, password, username string) (string, error)
	Me(ctx context.Context, token string) (*core.User, error)
	Refresh(ctx context.Context, token string) (string, error)
	Logout(ctx context.Context, token string) error
}

// Persister loads and saves the session outside the process memory.
type Persister interface {
	Load(ctx context.Context) (Session, error)
	Save(ctx context.Context, s Session) error
	Clear(ctx context.Context, token string) error
}

// LogoutResult carries the failures logout swallows.
type LogoutResult struct {
	RemoteErr  error
	StorageErr error
}

// Complete reports whether the backend call and the local cleanup both succeeded.
func (r LogoutResult) Complete() bool {
	return r.RemoteErr == nil && r.StorageErr == nil
}

// RefreshResult reports what a refresh attempt did. Errors are not raised.
type RefreshResult struct {
	Skipped bool
	Err     error
}

// Refreshed reports whether a new token was committed.
func (r RefreshResult) Refreshed() bool {
	return !r.Skipped && r.Err == nil
}
