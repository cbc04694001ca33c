package api

import (
	"context"
	"net/http"

	"moneywire/internal/core"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username,omitempty"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var out tokenResponse
	err := c.do(ctx, request{
		op:     "login",
		method: http.MethodPost,
		path:   "/auth/login",
		auth:   authNone,
		body:   credentials{Email: email, Password: password},
		out:    &out,
	})
	if err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", ErrMissingToken
	}
	return out.Token, nil
}

// Register creates an account and returns its token. Call it under
// WithCredentials when the follow-up profile fetch must carry the cookies the
// backend sets on registration.
func (c *Client) Register(ctx context.Context, email, password, username string) (string, error) {
	var out tokenResponse
	err := c.do(ctx, request{
		op:     "register",
		method: http.MethodPost,
		path:   "/auth/register",
		auth:   authNone,
		body:   credentials{Email: email, Password: password, Username: username},
		out:    &out,
	})
	if err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", ErrMissingToken
	}
	return out.Token, nil
}

// Me fetches the profile of the token's owner.
func (c *Client) Me(ctx context.Context, token string) (*core.User, error) {
	var u core.User
	err := c.do(ctx, request{
		op:     "users.me",
		method: http.MethodGet,
		path:   "/users/me",
		auth:   authBearer,
		token:  token,
		out:    &u,
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Refresh trades a still valid token for a fresh one.
func (c *Client) Refresh(ctx context.Context, token string) (string, error) {
	var out tokenResponse
	err := c.do(ctx, request{
		op:     "refresh",
		method: http.MethodGet,
		path:   "/auth/refresh",
		auth:   authBearer,
		token:  token,
		out:    &out,
	})
	if err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", ErrMissingToken
	}
	return out.Token, nil
}

// Logout revokes the token on the backend.
func (c *Client) Logout(ctx context.Context, token string) error {
	return c.do(ctx, request{
		op:     "logout",
		method: http.MethodPost,
		path:   "/auth/logout",
		auth:   authBearer,
		token:  token,
	})
}
