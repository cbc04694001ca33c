package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"moneywire/internal/storage"
)

func requestWithToken(token string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	if token != "" {
		r.AddCookie(&http.Cookie{Name: CookieName, Value: token})
	}
	return r
}

func tokenCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	var found *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == CookieName {
			found = c
		}
	}
	if found == nil {
		t.Fatal("no token cookie set")
	}
	return found
}

func TestRecordKeyHidesToken(t *testing.T) {
	key := RecordKey("secret-token")
	if !strings.HasPrefix(key, "session:") || strings.Contains(key, "secret-token") {
		t.Errorf("key = %q", key)
	}
	if len(key) != len("session:")+64 {
		t.Errorf("key length = %d", len(key))
	}
	if RecordKey("a") == RecordKey("b") {
		t.Error("keys collide")
	}
}

func TestSaveWritesCookieAndRecord(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory(10)
	rec := httptest.NewRecorder()
	p := NewHTTPPersister(kv, rec, requestWithToken(""), CookieConfig{Secure: true, MaxAge: time.Hour}, time.Hour)

	if err := p.Save(ctx, Session{Token: "T1", User: alice}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	c := tokenCookie(t, rec)
	if c.Value != "T1" || c.Path != "/" || !c.HttpOnly || !c.Secure || c.SameSite != http.SameSiteLaxMode || c.MaxAge != 3600 {
		t.Errorf("cookie = %+v", c)
	}
	if _, ok, _ := kv.Get(ctx, RecordKey("T1")); !ok {
		t.Error("record not written")
	}

	// a fresh request carrying the cookie sees the same session
	loaded, err := NewHTTPPersister(kv, httptest.NewRecorder(), requestWithToken("T1"), CookieConfig{}, time.Hour).Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Token != "T1" || loaded.User == nil || loaded.User.Username != "alice" {
		t.Errorf("loaded = %+v", loaded)
	}
}

func TestSaveFailureSetsNoCookie(t *testing.T) {
	kv := storage.NewMemory(10)
	kv.Close()
	rec := httptest.NewRecorder()
	p := NewHTTPPersister(kv, rec, requestWithToken(""), CookieConfig{}, time.Hour)

	if err := p.Save(context.Background(), Session{Token: "T1"}); err == nil {
		t.Fatal("expected error")
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Error("cookie set although the record was not written")
	}
}

func TestTokenChangeDropsOldRecord(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory(10)
	kv.Set(ctx, RecordKey("T1"), []byte(`{"token":"T1"}`), time.Hour)

	rec := httptest.NewRecorder()
	p := NewHTTPPersister(kv, rec, requestWithToken("T1"), CookieConfig{}, time.Hour)
	if _, err := p.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := p.Save(ctx, Session{Token: "T2"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if _, ok, _ := kv.Get(ctx, RecordKey("T1")); ok {
		t.Error("old record still present")
	}
	if _, ok, _ := kv.Get(ctx, RecordKey("T2")); !ok {
		t.Error("new record missing")
	}
	if c := tokenCookie(t, rec); c.Value != "T2" {
		t.Errorf("cookie = %q", c.Value)
	}
}

func TestLoad(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory(10)
	kv.Set(ctx, RecordKey("MISMATCH"), []byte(`{"token":"OTHER"}`), time.Hour)
	kv.Set(ctx, RecordKey("GARBAGE"), []byte(`not json`), time.Hour)

	tests := []struct {
		name    string
		token   string
		want    Session
		wantErr bool
	}{
		{"no cookie", "", Session{}, false},
		{"cookie without record", "T9", Session{Token: "T9"}, false},
		{"record for another token", "MISMATCH", Session{Token: "MISMATCH"}, true},
		{"corrupt record", "GARBAGE", Session{Token: "GARBAGE"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewHTTPPersister(kv, httptest.NewRecorder(), requestWithToken(tt.token), CookieConfig{}, time.Hour)
			got, err := p.Load(ctx)
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestEmptyCookieCountsAsAbsent(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Cookie", "token=")
	if got := TokenFromRequest(r); got != "" {
		t.Errorf("token = %q", got)
	}
}

func TestClearExpiresCookieEvenWhenStorageFails(t *testing.T) {
	kv := storage.NewMemory(10)
	kv.Close()
	rec := httptest.NewRecorder()
	p := NewHTTPPersister(kv, rec, requestWithToken("T1"), CookieConfig{}, time.Hour)

	if err := p.Clear(context.Background(), "T1"); err == nil {
		t.Error("expected storage error")
	}
	c := tokenCookie(t, rec)
	if c.Value != "" || c.MaxAge >= 0 {
		t.Errorf("cookie not expired: %+v", c)
	}
}

func TestLoginThenLogoutRoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory(10)
	auth := &fakeAuth{loginToken: "T1", user: alice}

	rec := httptest.NewRecorder()
	s := newTestStore(auth, &fakePersister{})
	s.persist = NewHTTPPersister(kv, rec, requestWithToken(""), CookieConfig{}, time.Hour)
	if err := s.Login(ctx, "alice@example.com", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, ok, _ := kv.Get(ctx, RecordKey("T1")); !ok {
		t.Fatal("record missing after login")
	}

	rec = httptest.NewRecorder()
	s2 := newTestStore(auth, &fakePersister{})
	s2.persist = NewHTTPPersister(kv, rec, requestWithToken("T1"), CookieConfig{}, time.Hour)
	s2.Hydrate(ctx)
	if s2.Snapshot().User == nil {
		t.Fatal("user not restored from record")
	}
	s2.Logout(ctx)

	if _, ok, _ := kv.Get(ctx, RecordKey("T1")); ok {
		t.Error("record survived logout")
	}
	if c := tokenCookie(t, rec); c.MaxAge >= 0 {
		t.Errorf("cookie not expired: %+v", c)
	}
}
