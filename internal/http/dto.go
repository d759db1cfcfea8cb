package http

import (
	"github.com/shopspring/decimal"

	"dindion/internal/auth"
	"dindion/internal/core"
	"dindion/internal/services"
)

type (
	transactionJSON struct {
		ID                  string           `json:"id"`
		Description         string           `json:"description"`
		Amount              decimal.Decimal  `json:"amount"`
		AmountLabel         string           `json:"amountLabel"`
		Date                string           `json:"date"`
		ReferenceMonth      string           `json:"referenceMonth,omitempty"`
		ReferenceMonthLabel string           `json:"referenceMonthLabel,omitempty"`
		Type                string           `json:"type"`
		PaymentType         string           `json:"paymentType,omitempty"`
		CardID              string           `json:"cardId,omitempty"`
		CardName            string           `json:"cardName,omitempty"`
		Installment         *installmentJSON `json:"installment,omitempty"`
	}

	installmentJSON struct {
		Current int `json:"current"`
		Total   int `json:"total"`
	}

	cardJSON struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	monthJSON struct {
		Value string `json:"value"`
		Label string `json:"label"`
	}

	stateJSON struct {
		Filter            string            `json:"filter"`
		SelectedMonth     *monthJSON        `json:"selectedMonth"`
		Months            []monthJSON       `json:"months"`
		Transactions      []transactionJSON `json:"transactions"`
		Balance           decimal.Decimal   `json:"balance"`
		BalanceLabel      string            `json:"balanceLabel"`
		TotalBalance      decimal.Decimal   `json:"totalBalance"`
		TotalBalanceLabel string            `json:"totalBalanceLabel"`
		Latest            []transactionJSON `json:"latest"`
		Cards             []cardJSON        `json:"cards"`
	}

	latestJSON struct {
		Transactions      []transactionJSON `json:"transactions"`
		TotalBalance      decimal.Decimal   `json:"totalBalance"`
		TotalBalanceLabel string            `json:"totalBalanceLabel"`
	}

	cardSummaryJSON struct {
		Card         cardJSON          `json:"card"`
		Transactions []transactionJSON `json:"transactions"`
		Owed         decimal.Decimal   `json:"owed"`
		OwedLabel    string            `json:"owedLabel"`
	}

	monthOptionsJSON struct {
		Options []monthJSON `json:"options"`
		Default *monthJSON  `json:"default"`
	}

	identityJSON struct {
		UID   string `json:"uid"`
		Email string `json:"email"`
	}

	sessionJSON struct {
		User  identityJSON `json:"user"`
		Token string       `json:"token"`
	}

	credentialsJSON struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	newCardJSON struct {
		Name string `json:"name"`
	}
)

func toTransactionJSON(t core.Transaction) transactionJSON {
	out := transactionJSON{
		ID:                  t.ID,
		Description:         t.Description,
		Amount:              t.Amount,
		AmountLabel:         core.FormatReais(t.Amount),
		Date:                t.Date.String(),
		ReferenceMonth:      t.ReferenceMonth.String(),
		ReferenceMonthLabel: core.FormatMonthLabel(t.ReferenceMonth),
		Type:                string(t.Type()),
		PaymentType:         string(t.Payment()),
	}
	if c, ok := t.Credit(); ok {
		out.CardID = c.CardID
		out.CardName = c.CardName
		if c.Installment != nil {
			out.Installment = &installmentJSON{Current: c.Installment.Current, Total: c.Installment.Total}
		}
	}
	return out
}

func toTransactionsJSON(txs []core.Transaction) []transactionJSON {
	out := make([]transactionJSON, len(txs))
	for i, t := range txs {
		out[i] = toTransactionJSON(t)
	}
	return out
}

func toCardsJSON(cards []core.CreditCard) []cardJSON {
	out := make([]cardJSON, len(cards))
	for i, c := range cards {
		out[i] = cardJSON{ID: c.ID, Name: c.Name}
	}
	return out
}

func toMonthJSON(m core.YearMonth) monthJSON {
	return monthJSON{Value: m.String(), Label: core.FormatMonthLabel(m)}
}

// toOptionalMonthJSON maps the zero month to null.
func toOptionalMonthJSON(m core.YearMonth) *monthJSON {
	if m.IsZero() {
		return nil
	}
	j := toMonthJSON(m)
	return &j
}

func toMonthsJSON(ms []core.YearMonth) []monthJSON {
	out := make([]monthJSON, len(ms))
	for i, m := range ms {
		out[i] = toMonthJSON(m)
	}
	return out
}

func toStateJSON(s services.ViewState) stateJSON {
	return stateJSON{
		Filter:            string(s.Filter),
		SelectedMonth:     toOptionalMonthJSON(s.SelectedMonth),
		Months:            toMonthsJSON(s.Months),
		Transactions:      toTransactionsJSON(s.Filtered),
		Balance:           s.FilteredBalance,
		BalanceLabel:      core.FormatReais(s.FilteredBalance),
		TotalBalance:      s.TotalBalance,
		TotalBalanceLabel: core.FormatReais(s.TotalBalance),
		Latest:            toTransactionsJSON(s.Latest),
		Cards:             toCardsJSON(s.Cards),
	}
}

func toCardSummaryJSON(s core.CardSummary) cardSummaryJSON {
	return cardSummaryJSON{
		Card:         cardJSON{ID: s.Card.ID, Name: s.Card.Name},
		Transactions: toTransactionsJSON(s.Transactions),
		Owed:         s.Owed,
		OwedLabel:    core.FormatReais(s.Owed),
	}
}

func toIdentityJSON(id auth.Identity) identityJSON {
	return identityJSON{UID: id.UID, Email: id.Email}
}
