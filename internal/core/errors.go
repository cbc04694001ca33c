package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidEmail  = errors.New("invalid email address")
)

// FieldError is a single failed form check.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidationErrors collects the failed checks of one form submission. It never
// leaves the form layer and never reaches the network.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, fe := range v {
		parts = append(parts, fe.Error())
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Field returns the message recorded for a field, or "".
func (v ValidationErrors) Field(name string) string {
	for _, fe := range v {
		if fe.Field == name {
			return fe.Message
		}
	}
	return ""
}

// Err returns nil when no check failed.
func (v ValidationErrors) Err() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

// AuthenticationError is returned when the backend rejects a login or a
// registration. Message is the server-provided text or a generic fallback.
type AuthenticationError struct {
	Status  int
	Message string
}

func (e *AuthenticationError) Error() string {
	return e.Message
}

// ProfileFetchError is returned when a token was issued but /users/me failed.
// The session is left unauthenticated.
type ProfileFetchError struct {
	Status int
	Err    error
}

func (e *ProfileFetchError) Error() string {
	return "Failed to get user details"
}

func (e *ProfileFetchError) Unwrap() error {
	return e.Err
}

// NetworkError wraps a transport failure talking to the backend.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// UpstreamError is a backend answer that could not be used, for example a
// 2xx whose body is not the expected JSON.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: unusable response: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// UserMessage turns an error into text that is safe to show in the UI.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var authErr *AuthenticationError
	var profileErr *ProfileFetchError
	var netErr *NetworkError
	var upErr *UpstreamError
	switch {
	case errors.As(err, &authErr):
		return authErr.Message
	case errors.As(err, &profileErr):
		return profileErr.Error()
	case errors.As(err, &netErr):
		return "Unable to reach the server, please try again"
	case errors.As(err, &upErr):
		return "The server sent an unexpected response, please try again"
	default:
		return "An error occurred"
	}
}
