package http

import (
	"errors"
	"net/http"

	"moneywire/internal/api"
	"moneywire/internal/core"
	"moneywire/internal/log"
	"moneywire/internal/session"
)

type transferView struct {
	Recipient string
	Amount    string
	Errors    core.ValidationErrors
}

func (s *Server) handleTransferOpen(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, NewHTMXResponse(), "transfer_dialog", transferView{})
}

// handleTransferClose empties the dialog container.
func (s *Server) handleTransferClose(w http.ResponseWriter, r *http.Request) {
	NewHTMXResponse().BodyHTML(nil).Write(w)
}

// handleTransfer validates the dialog and posts exactly one transfer. On
// success the dialog closes and the dashboard widgets reload; on failure the
// dialog stays open with what the user typed.
func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		BadRequestError("Invalid request").Write(w)
		return
	}

	form := core.TransferForm{Recipient: p.Get("recipient"), Amount: p.Get("amount")}
	view := transferView{Recipient: form.Recipient, Amount: form.Amount}

	req, err := form.Validate()
	if err != nil {
		view.Errors = validationErrors(err)
		s.render(w, r, NewHTMXResponse().Status(http.StatusUnprocessableEntity), "transfer_dialog", view)
		return
	}

	snap := session.FromContext(ctx).Snapshot()
	if err := s.backend.Transfer(ctx, snap.Token, req); err != nil {
		s.logUpstreamError(r, log.OpTransfer, "Transfer failed", err)
		b := NewHTMXResponse().
			Status(upstreamStatus(err)).
			TriggerErrorNotification("Transfer failed", "Transfer failed")
		s.render(w, r, b, "transfer_dialog", view)
		return
	}

	amount := core.FormatUSD(req.Amount)
	s.audit.LogTransfer(ctx, snap.UserID(), req.Recipient, req.Amount.String())
	NewHTMXResponse().
		TriggerTransferCompleted().
		TriggerSuccessNotification("Transfer successful", amount+" sent to "+req.Recipient).
		BodyHTML(nil).
		Write(w)
}

// upstreamStatus is 422 when the backend refused the request and 502 when it
// failed or could not be reached.
func upstreamStatus(err error) int {
	var statusErr *api.StatusError
	if errors.As(err, &statusErr) && statusErr.Status >= 400 && statusErr.Status < 500 {
		return http.StatusUnprocessableEntity
	}
	return http.StatusBadGateway
}

func upstreamErrorType(err error) string {
	var netErr *core.NetworkError
	var statusErr *api.StatusError
	switch {
	case errors.As(err, &netErr):
		return log.ErrorTypeNetwork
	case errors.Is(err, api.ErrMissingToken), api.IsUnauthorized(err):
		return log.ErrorTypeAuth
	case errors.As(err, &statusErr):
		return log.ErrorTypeUpstream
	default:
		return log.ErrorTypeInternal
	}
}
