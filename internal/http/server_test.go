package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"moneywire/internal/core"
	"moneywire/internal/log"
	"moneywire/internal/session"
	"moneywire/internal/storage"
)

type fakeBackend struct {
	mu sync.Mutex

	balance     decimal.Decimal
	balanceErr  error
	txs         []core.Transaction
	txErr       error
	transferErr error
	pingErr     error

	tokens    []string
	transfers []core.TransferRequest
}

func (f *fakeBackend) Balance(_ context.Context, token string) (core.Balance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, token)
	return core.Balance{Amount: f.balance}, f.balanceErr
}

func (f *fakeBackend) Transactions(_ context.Context, token string) ([]core.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, token)
	return f.txs, f.txErr
}

func (f *fakeBackend) Transfer(_ context.Context, token string, req core.TransferRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, token)
	f.transfers = append(f.transfers, req)
	return f.transferErr
}

func (f *fakeBackend) Ping(context.Context) error {
	return f.pingErr
}

func (f *fakeBackend) Transfers() []core.TransferRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]core.TransferRequest(nil), f.transfers...)
}

type fakeAuth struct {
	mu sync.Mutex

	token      string
	loginErr   error
	user       *core.User
	meErr      error
	refreshTok string
	refreshErr error

	calls []string
}

func (f *fakeAuth) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeAuth) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeAuth) Login(context.Context, string, string) (string, error) {
	f.record("login")
	return f.token, f.loginErr
}

func (f *fakeAuth) Register(context.Context, string, string, string) (string, error) {
	f.record("register")
	return f.token, f.loginErr
}

func (f *fakeAuth) Me(_ context.Context, token string) (*core.User, error) {
	f.record("me:" + token)
	return f.user, f.meErr
}

func (f *fakeAuth) Refresh(_ context.Context, token string) (string, error) {
	f.record("refresh:" + token)
	return f.refreshTok, f.refreshErr
}

func (f *fakeAuth) Logout(_ context.Context, token string) error {
	f.record("logout:" + token)
	return nil
}

var alice = &core.User{ID: 7, Email: "alice@example.com", Username: "alice", Role: "user"}

type testEnv struct {
	srv     *Server
	backend *fakeBackend
	auth    *fakeAuth
	kv      storage.KV
}

func newTestEnv(t *testing.T, opts ...func(*Options)) *testEnv {
	t.Helper()
	env := &testEnv{
		backend: &fakeBackend{},
		auth:    &fakeAuth{token: "T1", user: alice},
		kv:      storage.NewMemory(100),
	}
	mgr := session.NewManager(env.auth, env.kv, session.ManagerConfig{TTL: time.Hour}, log.Discard())
	o := Options{
		Backend:       env.backend,
		Sessions:      mgr,
		Storage:       env.kv,
		Logger:        log.Discard(),
		RefreshWindow: 5 * time.Minute,
	}
	for _, fn := range opts {
		fn(&o)
	}
	srv, err := NewServer(o)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(srv.limiter.Stop)
	env.srv = srv
	return env
}

// signIn stores a session record for token so requests carrying the cookie
// are signed in as alice.
func (e *testEnv) signIn(t *testing.T, token string) {
	t.Helper()
	raw := `{"token":"` + token + `","user":{"id":7,"email":"alice@example.com","username":"alice","role":"user"}}`
	if err := e.kv.Set(context.Background(), session.RecordKey(token), []byte(raw), time.Hour); err != nil {
		t.Fatalf("seed session: %v", err)
	}
}

type reqOpt func(*http.Request)

func withToken(token string) reqOpt {
	return func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: session.CookieName, Value: token})
	}
}

func asHTMX(r *http.Request) {
	r.Header.Set("HX-Request", "true")
}

func (e *testEnv) do(method, target string, form url.Values, opts ...reqOpt) *httptest.ResponseRecorder {
	var r *http.Request
	if form != nil {
		r = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	for _, o := range opts {
		o(r)
	}
	rec := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rec, r)
	return rec
}

func responseCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	var found *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName {
			found = c
		}
	}
	return found
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("healthz = %d %q", rec.Code, rec.Body.String())
	}

	rec = env.do(http.MethodGet, "/readyz", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "ready" {
		t.Errorf("readyz = %d %q", rec.Code, rec.Body.String())
	}
}

func TestReadyReportsFailures(t *testing.T) {
	t.Run("backend down", func(t *testing.T) {
		env := newTestEnv(t)
		env.backend.pingErr = errors.New("connection refused")
		if rec := env.do(http.MethodGet, "/readyz", nil); rec.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", rec.Code)
		}
	})
	t.Run("storage closed", func(t *testing.T) {
		env := newTestEnv(t)
		env.kv.Close()
		if rec := env.do(http.MethodGet, "/readyz", nil); rec.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", rec.Code)
		}
	})
}

type fakeDrops struct{ n int64 }

func (f fakeDrops) Dropped() int64 { return f.n }

func TestMetrics(t *testing.T) {
	env := newTestEnv(t, func(o *Options) {
		o.RateLimitPerMinute = 1
		o.Events = fakeDrops{n: 3}
	})

	env.do(http.MethodGet, "/.env", nil)
	form := url.Values{"email": {""}, "password": {""}}
	env.do(http.MethodPost, "/login", form)
	if rec := env.do(http.MethodPost, "/login", form); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second login status = %d, want 429", rec.Code)
	}

	rec := env.do(http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"http_requests_total 4\n",
		"rate_limit_rejections_total 1\n",
		"active_rate_limit_clients 1\n",
		"suspicious_requests_total 1\n",
		"invalid_ip_attempts_total 0\n",
		"session_events_dropped_total 3\n",
		"# TYPE uptime_seconds gauge\n",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q:\n%s", want, body)
		}
	}
}

func TestMetricsWithoutPublisher(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodGet, "/metrics", nil)
	if !strings.Contains(rec.Body.String(), "session_events_dropped_total 0\n") {
		t.Errorf("unexpected body:\n%s", rec.Body.String())
	}
}

func TestRouting(t *testing.T) {
	env := newTestEnv(t)
	env.signIn(t, "T1")

	tests := []struct {
		name         string
		target       string
		opts         []reqOpt
		wantStatus   int
		wantLocation string
		wantHXRedir  string
	}{
		{"root goes to dashboard", "/", nil, http.StatusSeeOther, "/dashboard", ""},
		{"dashboard without token", "/dashboard", nil, http.StatusSeeOther, "/login", ""},
		{"partial without token", "/dashboard/balance", []reqOpt{asHTMX}, http.StatusOK, "", "/login"},
		{"login with token", "/login", []reqOpt{withToken("T1")}, http.StatusSeeOther, "/dashboard", ""},
		{"register with token", "/register", []reqOpt{withToken("T1")}, http.StatusSeeOther, "/dashboard", ""},
		{"login without token", "/login", nil, http.StatusOK, "", ""},
		{"dashboard with token", "/dashboard", []reqOpt{withToken("T1")}, http.StatusOK, "", ""},
		{"empty cookie is no token", "/dashboard", []reqOpt{withToken("")}, http.StatusSeeOther, "/login", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(http.MethodGet, tt.target, nil, tt.opts...)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("Location"); got != tt.wantLocation {
				t.Errorf("Location = %q, want %q", got, tt.wantLocation)
			}
			if got := rec.Header().Get("HX-Redirect"); got != tt.wantHXRedir {
				t.Errorf("HX-Redirect = %q, want %q", got, tt.wantHXRedir)
			}
		})
	}
}

func TestSecurityHeadersAndRequestID(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodGet, "/login", nil)

	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Errorf("X-Frame-Options = %q", rec.Header().Get("X-Frame-Options"))
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("no request ID on response")
	}
}

func TestStaticAssets(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/static/app.js", "/static/app.css"} {
		rec := env.do(http.MethodGet, path, nil)
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d", path, rec.Code)
		}
		if !strings.HasPrefix(rec.Header().Get("Cache-Control"), "public") {
			t.Errorf("%s Cache-Control = %q", path, rec.Header().Get("Cache-Control"))
		}
	}
}

func TestNewServerRequiresCollaborators(t *testing.T) {
	if _, err := NewServer(Options{}); err == nil {
		t.Error("expected error")
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	if err := env.srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := env.srv.Shutdown(context.Background()); err != nil {
		t.Errorf("second Shutdown: %v", err)
	}
}
