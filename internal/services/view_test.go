package services

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"dindion/internal/core"
	"dindion/internal/realtime"
	"dindion/internal/realtime/memory"
)

func snapshotOf(t *testing.T, txs ...core.Transaction) realtime.Snapshot {
	t.Helper()
	snap := make(realtime.Snapshot, 0, len(txs))
	for i, tx := range txs {
		data, err := core.EncodeTransaction(tx)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		snap = append(snap, realtime.Node{ID: string(rune('a' + i)), Data: data})
	}
	return snap
}

func income(desc, amount, month string) core.Transaction {
	return core.Transaction{
		Description:    desc,
		Amount:         decimal.RequireFromString(amount),
		Date:           core.NewDate(2025, 7, 1),
		ReferenceMonth: core.MustYearMonth(month),
		Entry:          core.Income{},
	}
}

func cash(desc, amount, month string) core.Transaction {
	tx := income(desc, amount, month)
	tx.Entry = core.CashExpense{}
	return tx
}

func newTestView() *View {
	v := NewView(time.UTC, quietLogger())
	v.now = fixedNow
	return v
}

func TestViewSelectsCurrentMonth(t *testing.T) {
	v := newTestView()
	state := v.ApplyTransactions(snapshotOf(t,
		income("Salário junho", "3000", "2025-06"),
		income("Salário julho", "3000", "2025-07"),
		cash("Aluguel", "-1500", "2025-07"),
		income("Bônus", "500", "2025-08"),
	))

	if state.SelectedMonth != core.MustYearMonth("2025-07") {
		t.Fatalf("expected current month selected, got %s", state.SelectedMonth)
	}
	if len(state.Months) != 3 {
		t.Fatalf("expected 3 catalog months, got %v", state.Months)
	}
	if len(state.Filtered) != 2 || !state.FilteredBalance.Equal(decimal.NewFromInt(1500)) {
		t.Fatalf("unexpected filtered view: %d records, balance %s", len(state.Filtered), state.FilteredBalance)
	}
	if !state.TotalBalance.Equal(decimal.NewFromInt(5000)) {
		t.Fatalf("expected total balance 5000, got %s", state.TotalBalance)
	}
	if state.Latest[0].Description != "Bônus" {
		t.Fatalf("latest should start with the newest record, got %q", state.Latest[0].Description)
	}
}

func TestViewKeepsSelectionAcrossSnapshots(t *testing.T) {
	v := newTestView()
	v.ApplyTransactions(snapshotOf(t, income("a", "1", "2025-05"), income("b", "2", "2025-06")))
	state := v.SetMonth(core.MustYearMonth("2025-05"))
	if state.SelectedMonth != core.MustYearMonth("2025-05") {
		t.Fatalf("expected selected 2025-05, got %s", state.SelectedMonth)
	}

	state = v.ApplyTransactions(snapshotOf(t, income("a", "1", "2025-05"), income("b", "2", "2025-06"), income("c", "3", "2025-06")))
	if state.SelectedMonth != core.MustYearMonth("2025-05") {
		t.Fatalf("selection should survive a new snapshot, got %s", state.SelectedMonth)
	}

	// 2025-05 disappears; current month is absent so the latest month wins.
	state = v.ApplyTransactions(snapshotOf(t, income("b", "2", "2025-06")))
	if state.SelectedMonth != core.MustYearMonth("2025-06") {
		t.Fatalf("expected fallback to 2025-06, got %s", state.SelectedMonth)
	}
}

func TestViewFilterAndReset(t *testing.T) {
	v := newTestView()
	v.ApplyTransactions(snapshotOf(t, income("Salário", "3000", "2025-07"), cash("Mercado", "-200", "2025-07")))

	state := v.SetFilter(core.FilterCash)
	if len(state.Filtered) != 1 || state.Filtered[0].Description != "Mercado" {
		t.Fatalf("unexpected cash filter result %+v", state.Filtered)
	}

	state = v.Reset()
	if len(state.Transactions) != 0 || !state.SelectedMonth.IsZero() || state.Filter != core.FilterCash {
		t.Fatalf("reset should clear data but keep the filter: %+v", state)
	}
}

func TestLoadView(t *testing.T) {
	tree := memory.New()
	txs := newTransactionService(tree)
	ctx := context.Background()
	cardID := addCard(t, tree, "u1", "Nubank")
	for _, in := range []TransactionInput{
		{Type: core.TypeRecipe, Description: "Salário", Amount: "3000", ReferenceMonth: "2025-06"},
		{Type: core.TypeExpense, Payment: core.PaymentCredit, Description: "Sapato", Amount: "200", ReferenceMonth: "2025-06", CardID: cardID},
	} {
		if _, err := txs.Add(ctx, "u1", in); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	state, err := LoadView(ctx, tree, newTestView(), "u1", core.FilterCredit, core.MustYearMonth("2025-06"))
	if err != nil {
		t.Fatalf("load view: %v", err)
	}
	if len(state.Cards) != 1 || len(state.Filtered) != 1 {
		t.Fatalf("unexpected state: %d cards, %d filtered", len(state.Cards), len(state.Filtered))
	}
	if !state.FilteredBalance.Equal(decimal.NewFromInt(-200)) {
		t.Fatalf("expected -200, got %s", state.FilteredBalance)
	}
}
