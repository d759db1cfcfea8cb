package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	FilterAll    FilterType = "all"
	FilterCash   FilterType = "cash"
	FilterCredit FilterType = "credit"
	FilterRecipe FilterType = "recipe"
)

// LatestCount is how many records the latest-transactions list shows.
const LatestCount = 5

type (
	FilterType string

	// FilteredView is the result of applying a type and month selection.
	FilteredView struct {
		Transactions []Transaction
		Balance      decimal.Decimal
	}

	// CardSummary lists a card's credit expenses and what is owed on it.
	CardSummary struct {
		Card         CreditCard
		Transactions []Transaction
		Owed         decimal.Decimal
	}
)

var ErrInvalidFilter = fmt.Errorf("%w: filter must be one of all, cash, credit, recipe", ErrValidation)

// ParseFilterType maps user input to a filter. Empty input means all.
func ParseFilterType(s string) (FilterType, error) {
	switch f := FilterType(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FilterAll, nil
	case FilterAll, FilterCash, FilterCredit, FilterRecipe:
		return f, nil
	default:
		return "", ErrInvalidFilter
	}
}

// Matches reports whether t satisfies the type part of the filter.
func (f FilterType) Matches(t Transaction) bool {
	switch f {
	case FilterAll:
		return true
	case FilterCash:
		return t.Type() == TypeExpense && t.Payment() == PaymentCash
	case FilterCredit:
		return t.Type() == TypeExpense && t.Payment() == PaymentCredit
	case FilterRecipe:
		return t.Type() == TypeRecipe
	default:
		return false
	}
}

// ApplyFilter keeps the transactions matching filter and month, preserving
// order, and sums them. When no month is selected and the catalog is empty the
// month rule is bypassed.
func ApplyFilter(txs []Transaction, filter FilterType, month YearMonth, catalog []YearMonth) FilteredView {
	view := FilteredView{Transactions: make([]Transaction, 0), Balance: decimal.Zero}
	bypass := month.IsZero() && len(catalog) == 0
	for _, t := range txs {
		if !filter.Matches(t) {
			continue
		}
		if t.ReferenceMonth != month && !bypass {
			continue
		}
		view.Transactions = append(view.Transactions, t)
		view.Balance = view.Balance.Add(t.Amount)
	}
	return view
}

// Balance is the signed sum of all amounts.
func Balance(txs []Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, t := range txs {
		total = total.Add(t.Amount)
	}
	return total
}

// CardExpenses returns the credit expenses charged to cardID, in order.
func CardExpenses(txs []Transaction, cardID string) []Transaction {
	out := make([]Transaction, 0)
	for _, t := range txs {
		if c, ok := t.Credit(); ok && cardID != "" && c.CardID == cardID {
			out = append(out, t)
		}
	}
	return out
}

// CardTotal is the amount owed on a card: the magnitude of its signed sum.
func CardTotal(txs []Transaction, cardID string) decimal.Decimal {
	return Balance(CardExpenses(txs, cardID)).Abs()
}

// SummarizeCard bundles CardExpenses and CardTotal for one card.
func SummarizeCard(txs []Transaction, card CreditCard) CardSummary {
	expenses := CardExpenses(txs, card.ID)
	return CardSummary{Card: card, Transactions: expenses, Owed: Balance(expenses).Abs()}
}

// Latest returns the last n records of txs, most recent first.
func Latest(txs []Transaction, n int) []Transaction {
	if n > len(txs) {
		n = len(txs)
	}
	out := make([]Transaction, 0, n)
	for i := len(txs) - 1; i >= len(txs)-n; i-- {
		out = append(out, txs[i])
	}
	return out
}
