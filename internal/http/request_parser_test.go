package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newParser(t *testing.T, contentType, body string) *RequestBodyParser {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
	if contentType != "" {
		r.Header.Set("Content-Type", contentType)
	}
	p := NewRequestBodyParser(httptest.NewRecorder(), r)
	if err := p.Parse(); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return p
}

func TestRequestBodyParser_FormData(t *testing.T) {
	p := newParser(t, "application/x-www-form-urlencoded", "email=+alice%40example.com+&password=+secret+")

	if p.IsJSON() {
		t.Error("form body reported as JSON")
	}
	if got := p.Get("email"); got != "alice@example.com" {
		t.Errorf("Get(email) = %q", got)
	}
	if got := p.Value("password"); got != " secret " {
		t.Errorf("Value(password) = %q, want it untouched", got)
	}
	if got := p.Get("missing"); got != "" {
		t.Errorf("Get(missing) = %q", got)
	}
}

func TestRequestBodyParser_JSON(t *testing.T) {
	p := newParser(t, "application/json", `{"recipient":"bob","amount":25.5}`)

	if !p.IsJSON() {
		t.Error("JSON body not detected")
	}
	if got := p.Get("recipient"); got != "bob" {
		t.Errorf("Get(recipient) = %q", got)
	}
	if got := p.Get("amount"); got != "25.5" {
		t.Errorf("Get(amount) = %q", got)
	}
}

func TestRequestBodyParser_EmptyBody(t *testing.T) {
	p := newParser(t, "", "")
	if got := p.Get("email"); got != "" {
		t.Errorf("Get(email) = %q", got)
	}
}

func TestRequestBodyParser_RejectsOversizedBody(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader("email="+strings.Repeat("a", maxFormBytes)))
	p := NewRequestBodyParser(httptest.NewRecorder(), r)
	if err := p.Parse(); err == nil {
		t.Error("expected error for oversized body")
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  bob  ", "bob"},
		{"bo\x00b", "bob"},
		{"line\tone", "line\tone"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := sanitizeInput(tt.in); got != tt.want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
