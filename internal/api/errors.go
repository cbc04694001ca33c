package api

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrMissingToken is returned when an authenticated call is made without a
// token, or when the backend answers a token request without one.
var ErrMissingToken = errors.New("missing token")

// StatusError is a non-2xx answer from the backend.
type StatusError struct {
	Op     string
	Status int
	// Message is the "error" (or "message") field of the JSON body, if any.
	Message string
	// Parsed is false when the body was not JSON.
	Parsed bool
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: status %d", e.Op, e.Status)
}

// IsUnauthorized reports whether err is a 401 from the backend.
func IsUnauthorized(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == http.StatusUnauthorized
}
