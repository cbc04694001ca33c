package core

import (
	"regexp"
	"strings"
)

// emailPattern follows the HTML living standard definition of a valid e-mail
// address, the same check a browser applies to <input type="email">.
var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)

// ValidateEmail checks the shape of an e-mail address only.
func ValidateEmail(s string) error {
	if !emailPattern.MatchString(s) {
		return ErrInvalidEmail
	}
	return nil
}

type LoginForm struct {
	Email    string
	Password string
}

func (f LoginForm) Validate() error {
	var errs ValidationErrors
	errs = checkEmail(errs, f.Email)
	if f.Password == "" {
		errs = append(errs, FieldError{Field: "password", Message: "Password is required"})
	}
	return errs.Err()
}

type RegisterForm struct {
	Email    string
	Password string
	Username string
}

func (f RegisterForm) Validate() error {
	var errs ValidationErrors
	errs = checkEmail(errs, f.Email)
	if f.Password == "" {
		errs = append(errs, FieldError{Field: "password", Message: "Password is required"})
	}
	if strings.TrimSpace(f.Username) == "" {
		errs = append(errs, FieldError{Field: "username", Message: "Username is required"})
	}
	return errs.Err()
}

// TransferForm holds the raw values typed in the transfer dialog.
type TransferForm struct {
	Recipient string
	Amount    string
}

// Validate checks the form and, when it passes, returns the request to send.
func (f TransferForm) Validate() (TransferRequest, error) {
	var errs ValidationErrors
	recipient := strings.TrimSpace(f.Recipient)
	if recipient == "" {
		errs = append(errs, FieldError{Field: "recipient", Message: "Recipient is required"})
	}
	amount, err := ParseAmount(f.Amount)
	if err != nil {
		errs = append(errs, FieldError{Field: "amount", Message: "Amount must be a positive number"})
	}
	if len(errs) > 0 {
		return TransferRequest{}, errs
	}
	return TransferRequest{Recipient: recipient, Amount: amount}, nil
}

func checkEmail(errs ValidationErrors, email string) ValidationErrors {
	switch {
	case strings.TrimSpace(email) == "":
		return append(errs, FieldError{Field: "email", Message: "Email is required"})
	case ValidateEmail(email) != nil:
		return append(errs, FieldError{Field: "email", Message: "Enter a valid email address"})
	}
	return errs
}
