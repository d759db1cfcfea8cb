package google

import (
	"fmt"
	"strings"

	"dindion/internal/core"
)

// Column layout of the export sheet:
// ID | User | Date | Reference month | Description | Type | Payment | Card | Installment | Amount
const lastColumn = "J"

var header = []any{"ID", "User", "Date", "Reference month", "Description", "Type", "Payment", "Card", "Installment", "Amount"}

func transactionRow(uid string, tx core.Transaction) []any {
	card, installment := "", ""
	if c, ok := tx.Credit(); ok {
		card = c.CardName
		if card == "" {
			card = c.CardID
		}
		if c.Installment != nil {
			installment = fmt.Sprintf("%d/%d", c.Installment.Current, c.Installment.Total)
		}
	}
	return []any{
		tx.ID,
		uid,
		tx.Date.String(),
		tx.ReferenceMonth.String(),
		tx.Description,
		string(tx.Type()),
		string(tx.Payment()),
		card,
		installment,
		// USER_ENTERED parses plain decimal strings as numbers.
		tx.Amount.StringFixed(2),
	}
}

// findRow returns the 1-based row whose ID and User columns match, 0 if none.
func findRow(values [][]any, uid, id string) int {
	for i, row := range values {
		if len(row) < 2 {
			continue
		}
		if cell(row[0]) == id && cell(row[1]) == uid {
			return i + 1
		}
	}
	return 0
}

func cell(v any) string {
	return strings.TrimSpace(fmt.Sprint(v))
}
