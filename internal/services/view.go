package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"dindion/internal/core"
	"dindion/internal/realtime"
)

// ViewState is everything the summary screens render. It is rebuilt from
// scratch on every change and never mutated afterwards.
type ViewState struct {
	Transactions    []core.Transaction
	Cards           []core.CreditCard
	Months          []core.YearMonth
	SelectedMonth   core.YearMonth
	Filter          core.FilterType
	Filtered        []core.Transaction
	FilteredBalance decimal.Decimal
	TotalBalance    decimal.Decimal
	Latest          []core.Transaction
}

// View derives ViewState from the latest transactions and cards snapshots
// plus the user's selection.
type View struct {
	logger *slog.Logger
	loc    *time.Location
	now    func() time.Time

	mu     sync.Mutex
	txs    []core.Transaction
	cards  []core.CreditCard
	filter core.FilterType
	month  core.YearMonth
}

func NewView(loc *time.Location, logger *slog.Logger) *View {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &View{logger: logger, loc: loc, now: time.Now, filter: core.FilterAll}
}

// ApplyTransactions replaces the transaction list with snap.
func (v *View) ApplyTransactions(snap realtime.Snapshot) ViewState {
	txs := decodeTransactions(context.Background(), v.logger, snap)
	v.mu.Lock()
	defer v.mu.Unlock()
	v.txs = txs
	return v.stateLocked()
}

// ApplyCards replaces the card list with snap.
func (v *View) ApplyCards(snap realtime.Snapshot) ViewState {
	cards := decodeCards(context.Background(), v.logger, snap)
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cards = cards
	return v.stateLocked()
}

func (v *View) SetFilter(f core.FilterType) ViewState {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.filter = f
	return v.stateLocked()
}

// SetMonth selects a reference month. A month missing from the catalog is
// replaced by the default selection on the next recompute.
func (v *View) SetMonth(m core.YearMonth) ViewState {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.month = m
	return v.stateLocked()
}

// Reset forgets both snapshots, keeping the selection.
func (v *View) Reset() ViewState {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.txs, v.cards = nil, nil
	return v.stateLocked()
}

func (v *View) State() ViewState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stateLocked()
}

func (v *View) stateLocked() ViewState {
	months := core.Catalog(v.txs)
	selected := core.SelectMonth(v.month, months, core.MonthOf(v.now(), v.loc))
	if len(months) > 0 {
		// An empty catalog keeps the requested month for when records arrive.
		v.month = selected
	}
	filtered := core.ApplyFilter(v.txs, v.filter, selected, months)
	return ViewState{
		Transactions:    append([]core.Transaction(nil), v.txs...),
		Cards:           append([]core.CreditCard(nil), v.cards...),
		Months:          months,
		SelectedMonth:   selected,
		Filter:          v.filter,
		Filtered:        filtered.Transactions,
		FilteredBalance: filtered.Balance,
		TotalBalance:    core.Balance(v.txs),
		Latest:          core.Latest(v.txs, core.LatestCount),
	}
}

// LoadView reads both collections of uid once and returns the state for the
// given selection.
func LoadView(ctx context.Context, r realtime.Reader, v *View, uid string, filter core.FilterType, month core.YearMonth) (ViewState, error) {
	txs, err := r.Read(ctx, realtime.TransactionsPath(uid))
	if err != nil {
		return ViewState{}, fmt.Errorf("read transactions: %w", err)
	}
	cards, err := r.Read(ctx, realtime.CardsPath(uid))
	if err != nil {
		return ViewState{}, fmt.Errorf("read cards: %w", err)
	}
	v.SetFilter(filter)
	v.SetMonth(month)
	v.ApplyCards(cards)
	return v.ApplyTransactions(txs), nil
}
