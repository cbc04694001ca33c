// Package guard redirects requests by the presence of the token cookie.
//
// It only checks that a token exists. Signatures and expiry are the backend's
// business; a bad token surfaces as a 401 on the first API call.
package guard

import (
	"net/http"
	"strings"

	"moneywire/internal/session"
)

const (
	LoginPath     = "/login"
	RegisterPath  = "/register"
	DashboardPath = "/dashboard"
)

// Decision is the outcome of Decide. An empty Redirect means pass through.
type Decision struct {
	Redirect string
}

func (d Decision) Pass() bool {
	return d.Redirect == ""
}

// Decide applies the routing rules to a path:
//
//	/dashboard, /dashboard/*  without token -> /login
//	/login, /register         with token    -> /dashboard
//	anything else                           -> pass
func Decide(path string, hasToken bool) Decision {
	switch {
	case !hasToken && isProtected(path):
		return Decision{Redirect: LoginPath}
	case hasToken && (path == LoginPath || path == RegisterPath):
		return Decision{Redirect: DashboardPath}
	}
	return Decision{}
}

func isProtected(path string) bool {
	return path == DashboardPath || strings.HasPrefix(path, DashboardPath+"/")
}

// HasToken reports whether the request carries a non-empty token cookie, read
// the same way the session persister reads it.
func HasToken(r *http.Request) bool {
	return session.TokenFromRequest(r) != ""
}

// Middleware enforces Decide. HTMX requests get an HX-Redirect header so the
// whole page navigates instead of a fragment being swapped in.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d := Decide(r.URL.Path, HasToken(r))
		if d.Pass() {
			next.ServeHTTP(w, r)
			return
		}
		Redirect(w, r, d.Redirect)
	})
}

// Redirect sends the browser to target, HTMX-aware.
func Redirect(w http.ResponseWriter, r *http.Request, target string) {
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
