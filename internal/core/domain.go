package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	TypeExpense TransactionType = "expense"
	TypeRecipe  TransactionType = "recipe"

	PaymentCash   PaymentType = "cash"
	PaymentCredit PaymentType = "credit"
)

// MaxInstallments bounds the installment count accepted from user input.
// ExpandInstallments itself has no upper bound.
const MaxInstallments = 12

type (
	TransactionType string
	PaymentType     string

	Date struct {
		time.Time
	}

	// Transaction is a single ledger record. The Entry variant decides which
	// payment and card fields exist; there is no other source of truth for the type.
	Transaction struct {
		ID             string
		Description    string
		Amount         decimal.Decimal // expenses negative, income positive
		Date           Date
		ReferenceMonth YearMonth // zero when the record has none
		Entry          Entry
	}

	// Entry is implemented by Income, CashExpense and CreditExpense only.
	Entry interface {
		Type() TransactionType
		Payment() PaymentType
		isEntry()
	}

	Income      struct{}
	CashExpense struct{}

	CreditExpense struct {
		CardID      string
		CardName    string // name of the card when the record was created
		Installment *Installment
	}

	Installment struct {
		Current int
		Total   int
	}

	CreditCard struct {
		ID   string
		Name string
	}
)

var (
	// ErrValidation is the parent of every user-input validation error.
	ErrValidation = errors.New("validation failed")

	ErrEmptyDescription          = fmt.Errorf("%w: description is required", ErrValidation)
	ErrInvalidAmount             = fmt.Errorf("%w: amount must be a positive number", ErrValidation)
	ErrMissingCard               = fmt.Errorf("%w: a credit card is required for credit expenses", ErrValidation)
	ErrUnknownCard               = fmt.Errorf("%w: credit card not found", ErrValidation)
	ErrMissingReferenceMonth     = fmt.Errorf("%w: reference month is required", ErrValidation)
	ErrInvalidInstallments       = fmt.Errorf("%w: installments must be between 1 and %d", ErrValidation, MaxInstallments)
	ErrInstallmentsRequireCredit = fmt.Errorf("%w: installments are only allowed for credit expenses", ErrValidation)
	ErrEmptyCardName             = fmt.Errorf("%w: card name is required", ErrValidation)
	ErrInvalidDate               = fmt.Errorf("%w: invalid date", ErrValidation)
	ErrInvalidType               = fmt.Errorf("%w: invalid transaction type", ErrValidation)
	ErrInvalidPayment            = fmt.Errorf("%w: invalid payment type", ErrValidation)

	// ErrInconsistentRecord reports a stored record whose tags do not form a valid variant.
	ErrInconsistentRecord = errors.New("inconsistent transaction record")
)

func (Income) Type() TransactionType      { return TypeRecipe }
func (Income) Payment() PaymentType       { return "" }
func (Income) isEntry()                   {}
func (CashExpense) Type() TransactionType { return TypeExpense }
func (CashExpense) Payment() PaymentType  { return PaymentCash }
func (CashExpense) isEntry()              {}

func (CreditExpense) Type() TransactionType { return TypeExpense }
func (CreditExpense) Payment() PaymentType  { return PaymentCredit }
func (CreditExpense) isEntry()              {}

// Type returns the transaction type tag, or "" when Entry is unset.
func (t Transaction) Type() TransactionType {
	if t.Entry == nil {
		return ""
	}
	return t.Entry.Type()
}

// Payment returns the payment tag; income records have none.
func (t Transaction) Payment() PaymentType {
	if t.Entry == nil {
		return ""
	}
	return t.Entry.Payment()
}

// Credit returns the credit details when the transaction is a credit expense.
func (t Transaction) Credit() (CreditExpense, bool) {
	c, ok := t.Entry.(CreditExpense)
	return c, ok
}

func (t TransactionType) IsValid() bool {
	return t == TypeExpense || t == TypeRecipe
}

func (p PaymentType) IsValid() bool {
	return p == PaymentCash || p == PaymentCredit
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// Today returns the calendar date of now in loc.
func Today(now time.Time, loc *time.Location) Date {
	if loc != nil {
		now = now.In(loc)
	}
	return NewDate(now.Year(), int(now.Month()), now.Day())
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(time.DateOnly)
}

// YearMonth returns the calendar month containing d.
func (d Date) YearMonth() YearMonth {
	return YearMonth{Year: d.Year(), Month: d.Month()}
}

func (c CreditCard) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyCardName
	}
	return nil
}

// Validate checks the invariants of a transaction before it is written.
func (t Transaction) Validate() error {
	if strings.TrimSpace(t.Description) == "" {
		return ErrEmptyDescription
	}
	if t.Amount.IsZero() {
		return ErrInvalidAmount
	}
	if t.ReferenceMonth.IsZero() {
		return ErrMissingReferenceMonth
	}
	switch e := t.Entry.(type) {
	case Income:
		if t.Amount.IsNegative() {
			return ErrInvalidAmount
		}
	case CashExpense:
		if t.Amount.IsPositive() {
			return ErrInvalidAmount
		}
	case CreditExpense:
		if t.Amount.IsPositive() {
			return ErrInvalidAmount
		}
		if e.CardID == "" {
			return ErrMissingCard
		}
		if e.Installment != nil && (e.Installment.Total < 1 || e.Installment.Current < 1 || e.Installment.Current > e.Installment.Total) {
			return ErrInvalidInstallments
		}
	default:
		return ErrInvalidType
	}
	return nil
}
