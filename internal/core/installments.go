package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Purchase describes a credit purchase before it is split into records.
// Total carries the sign the records will have.
type Purchase struct {
	Description string
	Total       decimal.Decimal
	Count       int
	StartDate   Date
	StartMonth  YearMonth
	CardID      string
	CardName    string
}

// ExpandInstallments turns a purchase into its ledger records.
//
// A single installment produces one plain credit record. Otherwise each
// installment gets Total/Count (no remainder adjustment), a " (i/n)" suffix and
// consecutive reference months starting at StartMonth. Every installment keeps
// the day of StartDate, clamped to the length of its month.
func ExpandInstallments(p Purchase) ([]Transaction, error) {
	if p.Count < 1 {
		return nil, ErrInvalidInstallments
	}
	if p.Count == 1 {
		return []Transaction{{
			Description:    p.Description,
			Amount:         p.Total,
			Date:           p.StartDate,
			ReferenceMonth: p.StartMonth,
			Entry:          CreditExpense{CardID: p.CardID, CardName: p.CardName},
		}}, nil
	}

	per := p.Total.Div(decimal.NewFromInt(int64(p.Count)))
	day := p.StartDate.Day()
	month := p.StartMonth
	txs := make([]Transaction, 0, p.Count)
	for i := 1; i <= p.Count; i++ {
		txs = append(txs, Transaction{
			Description:    fmt.Sprintf("%s (%d/%d)", p.Description, i, p.Count),
			Amount:         per,
			Date:           month.Clamp(day),
			ReferenceMonth: month,
			Entry: CreditExpense{
				CardID:      p.CardID,
				CardName:    p.CardName,
				Installment: &Installment{Current: i, Total: p.Count},
			},
		})
		month = month.Next()
	}
	return txs, nil
}
