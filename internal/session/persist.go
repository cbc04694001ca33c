package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"moneywire/internal/api"
	"moneywire/internal/core"
	"moneywire/internal/storage"
)

const (
	// CookieName is the browser cookie that carries the bearer token. It is
	// the same cookie the backend reads on cookie-authenticated endpoints.
	CookieName = api.TokenCookie

	keyPrefix = "session:"
)

// CookieConfig controls the token cookie attributes.
type CookieConfig struct {
	Secure bool
	// MaxAge mirrors the session TTL. Zero makes a browser-session cookie.
	MaxAge time.Duration
}

// RecordKey is the KV key of the record for token. The token itself never
// appears in a key.
func RecordKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return keyPrefix + hex.EncodeToString(sum[:])
}

type record struct {
	Token string     `json:"token"`
	User  *core.User `json:"user,omitempty"`
}

// TokenFromRequest returns the token cookie value. An empty value counts as no token.
func TokenFromRequest(r *http.Request) string {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// HTTPPersister keeps the session in the token cookie plus a KV record.
// It is bound to one request/response pair.
type HTTPPersister struct {
	kv     storage.KV
	w      http.ResponseWriter
	r      *http.Request
	cookie CookieConfig
	ttl    time.Duration

	// token whose record this persister last read or wrote
	token string
}

func NewHTTPPersister(kv storage.KV, w http.ResponseWriter, r *http.Request, cookie CookieConfig, ttl time.Duration) *HTTPPersister {
	return &HTTPPersister{kv: kv, w: w, r: r, cookie: cookie, ttl: ttl}
}

// Load reads the cookie token and its record. A missing record yields a
// session with the token and no user. On KV errors the token is still returned.
func (p *HTTPPersister) Load(ctx context.Context) (Session, error) {
	token := TokenFromRequest(p.r)
	if token == "" {
		return Session{}, nil
	}
	p.token = token
	st := Session{Token: token}

	raw, ok, err := p.kv.Get(ctx, RecordKey(token))
	if err != nil {
		return st, fmt.Errorf("load session record: %w", err)
	}
	if !ok {
		return st, nil
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return st, fmt.Errorf("decode session record: %w", err)
	}
	if rec.Token != token {
		return st, errors.New("session record does not match cookie")
	}
	st.User = rec.User
	return st, nil
}

// Save writes the record and then the cookie. When the token changed the old
// record is removed.
func (p *HTTPPersister) Save(ctx context.Context, s Session) error {
	if s.Token == "" {
		return p.Clear(ctx, p.token)
	}
	raw, err := json.Marshal(record{Token: s.Token, User: s.User})
	if err != nil {
		return fmt.Errorf("encode session record: %w", err)
	}
	if err := p.kv.Set(ctx, RecordKey(s.Token), raw, p.ttl); err != nil {
		return fmt.Errorf("save session record: %w", err)
	}
	if p.token != "" && p.token != s.Token {
		// stale record expires on its own if this fails
		_ = p.kv.Delete(ctx, RecordKey(p.token))
	}
	p.token = s.Token
	http.SetCookie(p.w, p.tokenCookie(s.Token))
	return nil
}

// Clear expires the cookie unconditionally and deletes the record of token.
func (p *HTTPPersister) Clear(ctx context.Context, token string) error {
	http.SetCookie(p.w, p.expiredCookie())
	p.token = ""
	if token == "" {
		return nil
	}
	if err := p.kv.Delete(ctx, RecordKey(token)); err != nil {
		return fmt.Errorf("delete session record: %w", err)
	}
	return nil
}

func (p *HTTPPersister) tokenCookie(token string) *http.Cookie {
	c := &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   p.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if p.cookie.MaxAge > 0 {
		c.MaxAge = int(p.cookie.MaxAge / time.Second)
	}
	return c
}

func (p *HTTPPersister) expiredCookie() *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   p.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
