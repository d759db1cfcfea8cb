package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"

	"dindion/internal/auth"
	"dindion/internal/core"
	"dindion/internal/realtime"
	"dindion/internal/realtime/memory"
)

func TestTransactionServiceValidation(t *testing.T) {
	tree := memory.New()
	cardID := addCard(t, tree, "u1", "Nubank")
	svc := newTransactionService(tree)

	valid := TransactionInput{
		Type:           core.TypeExpense,
		Payment:        core.PaymentCredit,
		Description:    "Mercado",
		Amount:         "120,50",
		ReferenceMonth: "2025-07",
		CardID:         cardID,
	}

	tests := []struct {
		name   string
		modify func(*TransactionInput)
		want   error
	}{
		{"empty description", func(in *TransactionInput) { in.Description = "   " }, core.ErrEmptyDescription},
		{"missing amount", func(in *TransactionInput) { in.Amount = "" }, core.ErrInvalidAmount},
		{"negative amount", func(in *TransactionInput) { in.Amount = "-10" }, core.ErrInvalidAmount},
		{"zero amount", func(in *TransactionInput) { in.Amount = "0,00" }, core.ErrInvalidAmount},
		{"unknown type", func(in *TransactionInput) { in.Type = "transfer" }, core.ErrInvalidType},
		{"expense without payment", func(in *TransactionInput) { in.Payment = "" }, core.ErrInvalidPayment},
		{"credit without card", func(in *TransactionInput) { in.CardID = "" }, core.ErrMissingCard},
		{"unknown card", func(in *TransactionInput) { in.CardID = "nope" }, core.ErrUnknownCard},
		{"missing month", func(in *TransactionInput) { in.ReferenceMonth = "" }, core.ErrMissingReferenceMonth},
		{"malformed month", func(in *TransactionInput) { in.ReferenceMonth = "julho" }, core.ErrMissingReferenceMonth},
		{"too many installments", func(in *TransactionInput) { in.Installments = 13 }, core.ErrInvalidInstallments},
		{"negative installments", func(in *TransactionInput) { in.Installments = -1 }, core.ErrInvalidInstallments},
		{"installments on cash", func(in *TransactionInput) { in.Payment = core.PaymentCash; in.Installments = 3 }, core.ErrInstallmentsRequireCredit},
		{"installments on income", func(in *TransactionInput) { in.Type = core.TypeRecipe; in.Installments = 2 }, core.ErrInstallmentsRequireCredit},
		{"bad date", func(in *TransactionInput) { in.Date = "14/07/2025" }, core.ErrInvalidDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.modify(&in)
			_, err := svc.Add(context.Background(), "u1", in)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if !IsValidation(err) {
				t.Fatalf("expected a validation error, got %v", err)
			}
		})
	}

	if got := readTransactions(t, tree, "u1"); len(got) != 0 {
		t.Fatalf("validation failures must not write, found %d records", len(got))
	}
}

func TestTransactionServiceAddAppliesSign(t *testing.T) {
	tree := memory.New()
	svc := newTransactionService(tree)
	ctx := context.Background()

	income, err := svc.Add(ctx, "u1", TransactionInput{
		Type: core.TypeRecipe, Payment: core.PaymentCash, Description: "Salário", Amount: "5000", ReferenceMonth: "2025-07",
	})
	if err != nil {
		t.Fatalf("add income: %v", err)
	}
	cash, err := svc.Add(ctx, "u1", TransactionInput{
		Type: core.TypeExpense, Payment: core.PaymentCash, Description: "Padaria", Amount: "12.5", ReferenceMonth: "2025-07", Date: "2025-07-02",
	})
	if err != nil {
		t.Fatalf("add cash: %v", err)
	}

	if len(income) != 1 || !income[0].Amount.Equal(decimal.NewFromInt(5000)) {
		t.Fatalf("unexpected income records: %+v", income)
	}
	if _, ok := income[0].Entry.(core.Income); !ok {
		t.Fatalf("income must not carry a payment type, got %T", income[0].Entry)
	}
	if income[0].Date != core.NewDate(2025, 7, 14) {
		t.Fatalf("expected today's date, got %s", income[0].Date)
	}
	if !cash[0].Amount.Equal(decimal.RequireFromString("-12.5")) {
		t.Fatalf("expected -12.5, got %s", cash[0].Amount)
	}

	stored := readTransactions(t, tree, "u1")
	if len(stored) != 2 || stored[0].ID != income[0].ID || stored[1].ID != cash[0].ID {
		t.Fatalf("stored records do not match written ones: %+v", stored)
	}
}

func TestTransactionServiceAddInstallments(t *testing.T) {
	tree := memory.New()
	cardID := addCard(t, tree, "u1", "Nubank")
	svc := newTransactionService(tree)

	written, err := svc.Add(context.Background(), "u1", TransactionInput{
		Type:           core.TypeExpense,
		Payment:        core.PaymentCredit,
		Description:    "Geladeira",
		Amount:         "300",
		Date:           "2025-01-31",
		ReferenceMonth: "2025-02",
		CardID:         cardID,
		Installments:   3,
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if len(written) != 3 {
		t.Fatalf("expected 3 records, got %d", len(written))
	}

	wantMonths := []string{"2025-02", "2025-03", "2025-04"}
	for i, tx := range written {
		c, ok := tx.Credit()
		if !ok {
			t.Fatalf("record %d is not a credit expense", i)
		}
		if c.CardName != "Nubank" || c.CardID != cardID {
			t.Fatalf("record %d card = %q/%q", i, c.CardID, c.CardName)
		}
		if c.Installment == nil || c.Installment.Current != i+1 || c.Installment.Total != 3 {
			t.Fatalf("record %d installment = %+v", i, c.Installment)
		}
		if tx.ReferenceMonth.String() != wantMonths[i] {
			t.Fatalf("record %d month = %s, want %s", i, tx.ReferenceMonth, wantMonths[i])
		}
		if !tx.Amount.Equal(decimal.NewFromInt(-100)) {
			t.Fatalf("record %d amount = %s", i, tx.Amount)
		}
		if tx.ID == "" {
			t.Fatalf("record %d has no id", i)
		}
	}
	if written[0].Description != "Geladeira (1/3)" {
		t.Fatalf("unexpected description %q", written[0].Description)
	}
	if written[0].Date != core.NewDate(2025, 2, 28) {
		t.Fatalf("expected clamped date 2025-02-28, got %s", written[0].Date)
	}
}

func TestTransactionServicePartialWrite(t *testing.T) {
	tree := memory.New()
	cardID := addCard(t, tree, "u1", "Inter")
	store := &failingStore{Tree: tree, okAppends: 2}
	svc := newTransactionService(store)

	written, err := svc.Add(context.Background(), "u1", TransactionInput{
		Type:           core.TypeExpense,
		Payment:        core.PaymentCredit,
		Description:    "Notebook",
		Amount:         "4000",
		ReferenceMonth: "2025-07",
		CardID:         cardID,
		Installments:   4,
	})

	var partial *PartialWriteError
	if !errors.As(err, &partial) {
		t.Fatalf("expected PartialWriteError, got %v", err)
	}
	if !errors.Is(err, errStoreDown) {
		t.Fatalf("partial error must wrap the store error, got %v", err)
	}
	if len(partial.Written) != 2 || partial.Total != 4 || len(written) != 2 {
		t.Fatalf("expected 2 of 4 written, got %d of %d", len(partial.Written), partial.Total)
	}
	if store.appends != 3 {
		t.Fatalf("expected no retry after the failure, got %d appends", store.appends)
	}
	if got := readTransactions(t, tree, "u1"); len(got) != 2 {
		t.Fatalf("written records must stay, found %d", len(got))
	}
}

func TestTransactionServiceDelete(t *testing.T) {
	tree := memory.New()
	svc := newTransactionService(tree)
	ctx := context.Background()

	written, err := svc.Add(ctx, "u1", TransactionInput{
		Type: core.TypeRecipe, Description: "Freela", Amount: "800", ReferenceMonth: "2025-07",
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := svc.Delete(ctx, "u1", written[0].ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := svc.Delete(ctx, "u1", written[0].ID); !errors.Is(err, realtime.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
	txs, err := svc.List(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(txs) != 0 {
		t.Fatalf("expected empty ledger, got %d", len(txs))
	}
}

func TestListSkipsInconsistentRecords(t *testing.T) {
	tree := memory.New()
	ctx := context.Background()
	path := realtime.TransactionsPath("u1")
	if _, err := tree.Append(ctx, path, []byte(`{"description":"x","amount":"-5","date":"2025-07-01","type":"expense","paymentType":"credit","cardId":null,"cardName":null}`)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := tree.Append(ctx, path, []byte(`{"description":"ok","amount":"5","date":"2025-07-01","referenceMonth":"2025-07","type":"recipe","paymentType":null,"cardId":null,"cardName":null}`)); err != nil {
		t.Fatalf("append: %v", err)
	}

	txs, err := newTransactionService(tree).List(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(txs) != 1 || txs[0].Description != "ok" {
		t.Fatalf("expected only the consistent record, got %+v", txs)
	}
}

func TestIsValidation(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{core.ErrEmptyDescription, true},
		{fmt.Errorf("register: %w", auth.ErrInvalidEmail), true},
		{auth.ErrWeakPassword, true},
		{auth.ErrEmailTaken, false},
		{realtime.ErrNotFound, false},
		{errors.New("disk full"), false},
		{nil, false},
	}
	for _, tt := range tests {
		if got := IsValidation(tt.err); got != tt.want {
			t.Fatalf("IsValidation(%v)=%v, want %v", tt.err, got, tt.want)
		}
	}
}
