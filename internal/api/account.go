package api

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"moneywire/internal/core"
)

// Balance reads the current balance. The backend authenticates this endpoint
// with the token cookie.
func (c *Client) Balance(ctx context.Context, token string) (core.Balance, error) {
	var out struct {
		Balance decimal.Decimal `json:"balance"`
	}
	err := c.do(ctx, request{
		op:     "balance",
		method: http.MethodGet,
		path:   "/balance",
		auth:   authCookie,
		token:  token,
		out:    &out,
	})
	if err != nil {
		return core.Balance{}, err
	}
	return core.Balance{Amount: out.Balance}, nil
}

// Transactions lists the user's transfer history, newest first as the backend
// returns it. A null list comes back as an empty slice.
func (c *Client) Transactions(ctx context.Context, token string) ([]core.Transaction, error) {
	var out struct {
		Transactions []core.Transaction `json:"transactions"`
	}
	err := c.do(ctx, request{
		op:     "transactions",
		method: http.MethodGet,
		path:   "/transactions",
		auth:   authBearer,
		token:  token,
		out:    &out,
	})
	if err != nil {
		return nil, err
	}
	if out.Transactions == nil {
		return []core.Transaction{}, nil
	}
	return out.Transactions, nil
}

// Transfer sends money to another user. Cookie authenticated.
func (c *Client) Transfer(ctx context.Context, token string, req core.TransferRequest) error {
	return c.do(ctx, request{
		op:     "transfer",
		method: http.MethodPost,
		path:   "/transfer",
		auth:   authCookie,
		token:  token,
		body:   req,
	})
}
