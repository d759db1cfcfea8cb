package core

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// TransactionRecord is the stored shape of a transaction. It is flat; the
// tags decide which optional fields are meaningful.
type TransactionRecord struct {
	Description        string          `json:"description"`
	Amount             decimal.Decimal `json:"amount"`
	Date               string          `json:"date"`
	ReferenceMonth     string          `json:"referenceMonth,omitempty"`
	Type               TransactionType `json:"type"`
	PaymentType        *PaymentType    `json:"paymentType"`
	CardID             *string         `json:"cardId"`
	CardName           *string         `json:"cardName"`
	TotalInstallments  *int            `json:"totalInstallments,omitempty"`
	CurrentInstallment *int            `json:"currentInstallment,omitempty"`
}

// CardRecord is the stored shape of a credit card.
type CardRecord struct {
	Name string `json:"name"`
}

// Record converts t to its stored shape. The ID is not part of the record.
func (t Transaction) Record() TransactionRecord {
	r := TransactionRecord{
		Description:    t.Description,
		Amount:         t.Amount,
		Date:           t.Date.String(),
		ReferenceMonth: t.ReferenceMonth.String(),
		Type:           t.Type(),
	}
	switch e := t.Entry.(type) {
	case CashExpense:
		p := PaymentCash
		r.PaymentType = &p
	case CreditExpense:
		p := PaymentCredit
		r.PaymentType = &p
		r.CardID = &e.CardID
		r.CardName = &e.CardName
		if e.Installment != nil {
			total, current := e.Installment.Total, e.Installment.Current
			r.TotalInstallments = &total
			r.CurrentInstallment = &current
		}
	}
	return r
}

// Transaction rebuilds the variant from a stored record.
func (r TransactionRecord) Transaction(id string) (Transaction, error) {
	t := Transaction{ID: id, Description: r.Description, Amount: r.Amount}

	if r.Date != "" {
		d, err := ParseDate(r.Date)
		if err != nil {
			return Transaction{}, fmt.Errorf("%w: date %q", ErrInconsistentRecord, r.Date)
		}
		t.Date = d
	}
	ym, err := ParseYearMonth(r.ReferenceMonth)
	if err != nil {
		return Transaction{}, fmt.Errorf("%w: reference month %q", ErrInconsistentRecord, r.ReferenceMonth)
	}
	t.ReferenceMonth = ym

	payment := PaymentType("")
	if r.PaymentType != nil {
		payment = *r.PaymentType
	}
	switch {
	case r.Type == TypeRecipe && payment == "":
		t.Entry = Income{}
	case r.Type == TypeExpense && payment == PaymentCash:
		t.Entry = CashExpense{}
	case r.Type == TypeExpense && payment == PaymentCredit:
		if r.CardID == nil || *r.CardID == "" {
			return Transaction{}, fmt.Errorf("%w: credit expense without card", ErrInconsistentRecord)
		}
		c := CreditExpense{CardID: *r.CardID}
		if r.CardName != nil {
			c.CardName = *r.CardName
		}
		if r.TotalInstallments != nil && r.CurrentInstallment != nil {
			c.Installment = &Installment{Current: *r.CurrentInstallment, Total: *r.TotalInstallments}
		}
		t.Entry = c
	default:
		return Transaction{}, fmt.Errorf("%w: type %q with payment %q", ErrInconsistentRecord, r.Type, payment)
	}
	return t, nil
}

// DecodeTransaction parses a stored JSON record.
func DecodeTransaction(id string, data []byte) (Transaction, error) {
	var r TransactionRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return Transaction{}, fmt.Errorf("%w: %v", ErrInconsistentRecord, err)
	}
	return r.Transaction(id)
}

// EncodeTransaction renders t as a stored JSON record.
func EncodeTransaction(t Transaction) ([]byte, error) {
	return json.Marshal(t.Record())
}

// DecodeCard parses a stored credit card record.
func DecodeCard(id string, data []byte) (CreditCard, error) {
	var r CardRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return CreditCard{}, fmt.Errorf("decode card %s: %w", id, err)
	}
	return CreditCard{ID: id, Name: r.Name}, nil
}

// EncodeCard renders c as a stored JSON record.
func EncodeCard(c CreditCard) ([]byte, error) {
	return json.Marshal(CardRecord{Name: c.Name})
}
