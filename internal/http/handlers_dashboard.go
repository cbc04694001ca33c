package http

import (
	"net/http"
	"time"

	"moneywire/internal/core"
	"moneywire/internal/log"
	"moneywire/internal/middleware/trace"
	"moneywire/internal/session"
)

const dateLayout = "1/2/2006"

type dashboardView struct {
	Title       string
	DisplayName string
}

type balanceView struct {
	Amount string
}

type transactionRow struct {
	Incoming   bool
	Direction  core.Direction
	Amount     string
	OtherParty string
	Date       string
	ISODate    string
}

type transactionsView struct {
	Rows []transactionRow
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	snap := session.FromContext(r.Context()).Snapshot()
	s.render(w, r, NewHTMXResponse(), "dashboard_page", dashboardView{
		Title:       "Dashboard",
		DisplayName: snap.User.DisplayName(),
	})
}

// handleBalance renders the balance card content. On failure the card shows
// a placeholder and an error notification is raised.
func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token := session.FromContext(ctx).Snapshot().Token

	bal, err := s.backend.Balance(ctx, token)
	if err != nil {
		s.logUpstreamError(r, log.OpBalance, "Balance fetch failed", err)
		b := NewHTMXResponse().TriggerErrorNotification("Error", "Failed to fetch balance")
		s.render(w, r, b, "balance_unavailable", nil)
		return
	}

	s.render(w, r, NewHTMXResponse(), "balance", balanceView{Amount: core.FormatUSD(bal.Amount)})
}

// handleTransactions renders the history table, or the empty state when the
// list is empty or could not be fetched.
func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token := session.FromContext(ctx).Snapshot().Token

	b := NewHTMXResponse()
	txs, err := s.backend.Transactions(ctx, token)
	if err != nil {
		s.logUpstreamError(r, log.OpHistory, "Transactions fetch failed", err)
		b.TriggerErrorNotification("Error", "Failed to fetch transactions")
		txs = nil
	}

	s.render(w, r, b, "transactions", transactionsView{Rows: transactionRows(txs)})
}

func transactionRows(txs []core.Transaction) []transactionRow {
	rows := make([]transactionRow, 0, len(txs))
	for _, tx := range txs {
		dir := core.Outgoing
		if tx.IsIncoming() {
			dir = core.Incoming
		}
		rows = append(rows, transactionRow{
			Incoming:   tx.IsIncoming(),
			Direction:  dir,
			Amount:     core.FormatUSD(tx.Amount),
			OtherParty: tx.OtherParty,
			Date:       tx.Timestamp.Local().Format(dateLayout),
			ISODate:    tx.Timestamp.UTC().Format(time.RFC3339),
		})
	}
	return rows
}

func (s *Server) logUpstreamError(r *http.Request, op, msg string, err error) {
	ctx := r.Context()
	fields := log.NewFields().WithRequestID(trace.GetRequestID(ctx))
	fields[log.FieldErrorType] = upstreamErrorType(err)
	s.audit.LogError(ctx, msg, err, log.ComponentAPI, op, fields)
}
