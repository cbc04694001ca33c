package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Incoming Direction = "incoming"
	Outgoing Direction = "outgoing"
)

type (
	// Direction tells whether money entered or left the current user's account.
	Direction string

	// TransactionID accepts both "id":"t1" and "id":42 on the wire.
	TransactionID string

	// BalanceSnapshot is the optional balance block embedded in the user profile.
	BalanceSnapshot struct {
		Amount        string    `json:"amount"`
		LastUpdatedAt time.Time `json:"lastUpdatedAt"`
		UpdatedAt     time.Time `json:"updatedAt"`
		CreatedAt     time.Time `json:"createdAt"`
	}

	// User is the profile returned by /users/me. It is replaced wholesale on
	// every login or registration and never edited in place.
	User struct {
		ID       int64            `json:"id"`
		Email    string           `json:"email"`
		Username string           `json:"username"`
		Role     string           `json:"role"`
		Balance  *BalanceSnapshot `json:"balance,omitempty"`
	}

	// Balance is the current balance of the signed-in user.
	Balance struct {
		Amount decimal.Decimal
	}

	// Transaction is a single ledger row as shown in the history table.
	Transaction struct {
		ID         TransactionID   `json:"id"`
		Type       Direction       `json:"type"`
		Amount     decimal.Decimal `json:"amount"`
		OtherParty string          `json:"otherParty"`
		Timestamp  time.Time       `json:"timestamp"`
	}

	// TransferRequest is the body posted to the backend /transfer endpoint.
	TransferRequest struct {
		Recipient string
		Amount    decimal.Decimal
	}
)

var ErrInvalidDirection = errors.New("invalid transaction direction")

func (d Direction) Validate() error {
	switch d {
	case Incoming, Outgoing:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidDirection, string(d))
}

func (id *TransactionID) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*id = TransactionID(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("transaction id: %w", err)
	}
	*id = TransactionID(num.String())
	return nil
}

// IsIncoming reports whether the transaction credited the current user.
func (t Transaction) IsIncoming() bool {
	return t.Type == Incoming
}

// DisplayName prefers the username and falls back to the email.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.Username != "" {
		return u.Username
	}
	return u.Email
}

// MarshalJSON emits the amount as a JSON number, e.g. {"recipient":"bob","amount":25.5}.
func (t TransferRequest) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Recipient string      `json:"recipient"`
		Amount    json.Number `json:"amount"`
	}{
		Recipient: t.Recipient,
		Amount:    json.Number(t.Amount.String()),
	})
}
