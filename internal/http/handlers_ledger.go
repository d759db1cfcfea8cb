package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"dindion/internal/core"
	"dindion/internal/log"
	"dindion/internal/services"
)

// handleListTransactions answers with the summary state for ?type= and ?month=.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	sel, err := ParseSelection(r.URL.Query())
	if err != nil {
		s.fail(w, r, err, log.OpParse, "")
		return
	}
	state, err := s.loadState(r, sel)
	if err != nil {
		s.fail(w, r, err, log.OpList, "could not load transactions")
		return
	}
	NewResponse().Body(toStateJSON(state)).Write(w)
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	state, err := s.loadState(r, Selection{Filter: core.FilterAll})
	if err != nil {
		s.fail(w, r, err, log.OpList, "could not load transactions")
		return
	}
	NewResponse().Body(latestJSON{
		Transactions:      toTransactionsJSON(state.Latest),
		TotalBalance:      state.TotalBalance,
		TotalBalanceLabel: core.FormatReais(state.TotalBalance),
	}).Write(w)
}

func (s *Server) handleAddTransaction(w http.ResponseWriter, r *http.Request) {
	var in services.TransactionInput
	if err := DecodeJSON(r, &in); err != nil {
		s.fail(w, r, err, log.OpParse, "")
		return
	}
	uid := identityFrom(r.Context()).UID
	txs, err := s.txs.Add(r.Context(), uid, in)
	if err != nil {
		s.fail(w, r, err, log.OpCreate, "could not save transaction")
		return
	}

	s.transactionsAdded.Add(int64(len(txs)))
	total := decimal.Zero
	for _, t := range txs {
		total = total.Add(t.Amount)
	}
	s.events.LogTransactionAdded(r.Context(), uid, string(in.Type), string(in.Payment), total.StringFixed(2), in.ReferenceMonth, len(txs))

	NewResponse().
		Status(http.StatusCreated).
		Body(map[string]any{"transactions": toTransactionsJSON(txs)}).
		Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.txs.Delete(r.Context(), identityFrom(r.Context()).UID, id); err != nil {
		s.fail(w, r, err, log.OpDelete, "could not delete transaction")
		return
	}
	NoContent().Write(w)
}

// handleMonthOptions lists the reference months the entry form offers.
func (s *Server) handleMonthOptions(w http.ResponseWriter, r *http.Request) {
	now := core.MonthOf(time.Now(), s.opts.Location)
	NewResponse().Body(monthOptionsJSON{
		Options: toMonthsJSON(s.opts.FormMonths),
		Default: toOptionalMonthJSON(core.DefaultFormMonth(s.opts.FormMonths, now)),
	}).Write(w)
}

func (s *Server) loadState(r *http.Request, sel Selection) (services.ViewState, error) {
	view := services.NewView(s.opts.Location, s.logger.Logger)
	return services.LoadView(r.Context(), s.tree, view, identityFrom(r.Context()).UID, sel.Filter, sel.Month)
}
