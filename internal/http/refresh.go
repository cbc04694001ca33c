package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"moneywire/internal/log"
	"moneywire/internal/session"
)

// refreshAhead renews the session token before a dashboard request when the
// token is a JWT expiring within the refresh window. The signature is not
// checked; the backend does that when it issues the new token. The outcome
// is only logged and the request always continues.
func (s *Server) refreshAhead(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.refreshWindow > 0 {
			s.maybeRefresh(r)
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) maybeRefresh(r *http.Request) {
	ctx := r.Context()
	store := session.FromContext(ctx)

	exp, ok := tokenExpiry(store.Snapshot().Token)
	if !ok || exp.Sub(s.now()) > s.refreshWindow {
		return
	}

	logger := log.FromContext(ctx)
	res := store.RefreshToken(ctx)
	switch {
	case res.Refreshed():
		logger.InfoContext(ctx, "Token refreshed", log.FieldOperation, log.OpRefresh)
	case res.Err != nil:
		logger.WarnContext(ctx, "Token refresh failed",
			log.FieldOperation, log.OpRefresh,
			log.FieldError, res.Err)
	}
}

// tokenExpiry reads the exp claim of a JWT without verifying it. Opaque
// tokens and JWTs without exp report false.
func tokenExpiry(token string) (time.Time, bool) {
	if strings.Count(token, ".") != 2 {
		return time.Time{}, false
	}
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
