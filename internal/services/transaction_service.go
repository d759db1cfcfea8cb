package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"dindion/internal/auth"
	"dindion/internal/core"
	"dindion/internal/realtime"
)

// Store is the part of the realtime tree the write services need.
type Store interface {
	realtime.Reader
	realtime.Writer
}

// TransactionInput is a transaction as typed into the entry form.
type TransactionInput struct {
	Type           core.TransactionType `json:"type"`
	Payment        core.PaymentType     `json:"paymentType,omitempty"`
	Description    string               `json:"description"`
	Amount         string               `json:"amount"` // positive magnitude; the sign comes from Type
	Date           string               `json:"date,omitempty"`
	ReferenceMonth string               `json:"referenceMonth"`
	CardID         string               `json:"cardId,omitempty"`
	Installments   int                  `json:"installments,omitempty"`
}

// PartialWriteError reports a multi-record write that stopped part way.
// Records in Written stay stored.
type PartialWriteError struct {
	Written []core.Transaction
	Total   int
	Err     error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("wrote %d of %d records: %v", len(e.Written), e.Total, e.Err)
}

func (e *PartialWriteError) Unwrap() error { return e.Err }

// TransactionService validates form input and writes ledger records.
type TransactionService struct {
	store  Store
	logger *slog.Logger
	loc    *time.Location
	now    func() time.Time
}

func NewTransactionService(store Store, loc *time.Location, logger *slog.Logger) *TransactionService {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &TransactionService{store: store, logger: logger, loc: loc, now: time.Now}
}

// Build validates in and returns the records it expands to, without ids.
func (s *TransactionService) Build(ctx context.Context, uid string, in TransactionInput) ([]core.Transaction, error) {
	desc := strings.TrimSpace(in.Description)
	if desc == "" {
		return nil, core.ErrEmptyDescription
	}
	magnitude, err := core.ParseAmount(in.Amount)
	if err != nil {
		return nil, err
	}
	if !in.Type.IsValid() {
		return nil, core.ErrInvalidType
	}
	credit := false
	if in.Type == core.TypeExpense {
		if !in.Payment.IsValid() {
			return nil, core.ErrInvalidPayment
		}
		credit = in.Payment == core.PaymentCredit
	}

	var card core.CreditCard
	if credit {
		if strings.TrimSpace(in.CardID) == "" {
			return nil, core.ErrMissingCard
		}
		card, err = s.lookupCard(ctx, uid, in.CardID)
		if err != nil {
			return nil, err
		}
	}

	month, err := core.ParseYearMonth(in.ReferenceMonth)
	if err != nil || month.IsZero() {
		return nil, core.ErrMissingReferenceMonth
	}

	count := in.Installments
	if count == 0 {
		count = 1
	}
	if count < 1 || count > core.MaxInstallments {
		return nil, core.ErrInvalidInstallments
	}
	if count > 1 && !credit {
		return nil, core.ErrInstallmentsRequireCredit
	}

	date := core.Today(s.now(), s.loc)
	if strings.TrimSpace(in.Date) != "" {
		if date, err = core.ParseDate(in.Date); err != nil {
			return nil, err
		}
	}

	amount := core.SignedAmount(magnitude, in.Type)
	if credit {
		return core.ExpandInstallments(core.Purchase{
			Description: desc,
			Total:       amount,
			Count:       count,
			StartDate:   date,
			StartMonth:  month,
			CardID:      card.ID,
			CardName:    card.Name,
		})
	}

	tx := core.Transaction{Description: desc, Amount: amount, Date: date, ReferenceMonth: month}
	if in.Type == core.TypeRecipe {
		tx.Entry = core.Income{}
	} else {
		tx.Entry = core.CashExpense{}
	}
	return []core.Transaction{tx}, nil
}

// Add validates in and appends its records one at a time, in order.
// The first failed append ends the loop with a *PartialWriteError.
func (s *TransactionService) Add(ctx context.Context, uid string, in TransactionInput) ([]core.Transaction, error) {
	txs, err := s.Build(ctx, uid, in)
	if err != nil {
		return nil, err
	}

	path := realtime.TransactionsPath(uid)
	written := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if err := tx.Validate(); err != nil {
			return nil, err
		}
		data, err := core.EncodeTransaction(tx)
		if err != nil {
			return nil, fmt.Errorf("encode transaction: %w", err)
		}
		id, err := s.store.Append(ctx, path, data)
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to append transaction",
				"user_id", uid,
				"written", len(written),
				"total", len(txs),
				"error", err)
			return written, &PartialWriteError{Written: written, Total: len(txs), Err: err}
		}
		tx.ID = id
		written = append(written, tx)
	}

	s.logger.DebugContext(ctx, "Transaction records appended",
		"user_id", uid,
		"type", in.Type,
		"payment", in.Payment,
		"records", len(written))
	return written, nil
}

// Delete removes one transaction record. Other installments of the same
// purchase are left alone.
func (s *TransactionService) Delete(ctx context.Context, uid, id string) error {
	if err := s.store.Delete(ctx, realtime.TransactionsPath(uid), id); err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	s.logger.InfoContext(ctx, "Transaction deleted", "user_id", uid, "id", id)
	return nil
}

// List decodes the user's transactions, skipping records that do not form a
// valid variant.
func (s *TransactionService) List(ctx context.Context, uid string) ([]core.Transaction, error) {
	snap, err := s.store.Read(ctx, realtime.TransactionsPath(uid))
	if err != nil {
		return nil, fmt.Errorf("read transactions: %w", err)
	}
	return decodeTransactions(ctx, s.logger, snap), nil
}

func (s *TransactionService) lookupCard(ctx context.Context, uid, id string) (core.CreditCard, error) {
	snap, err := s.store.Read(ctx, realtime.CardsPath(uid))
	if err != nil {
		return core.CreditCard{}, fmt.Errorf("read cards: %w", err)
	}
	for _, n := range snap {
		if n.ID != id {
			continue
		}
		card, err := core.DecodeCard(n.ID, n.Data)
		if err != nil {
			return core.CreditCard{}, fmt.Errorf("decode card %s: %w", id, err)
		}
		return card, nil
	}
	return core.CreditCard{}, core.ErrUnknownCard
}

func decodeTransactions(ctx context.Context, logger *slog.Logger, snap realtime.Snapshot) []core.Transaction {
	txs := make([]core.Transaction, 0, len(snap))
	for _, n := range snap {
		tx, err := core.DecodeTransaction(n.ID, n.Data)
		if err != nil {
			logger.WarnContext(ctx, "Skipping unreadable transaction", "id", n.ID, "error", err)
			continue
		}
		txs = append(txs, tx)
	}
	return txs
}

func decodeCards(ctx context.Context, logger *slog.Logger, snap realtime.Snapshot) []core.CreditCard {
	cards := make([]core.CreditCard, 0, len(snap))
	for _, n := range snap {
		c, err := core.DecodeCard(n.ID, n.Data)
		if err != nil {
			logger.WarnContext(ctx, "Skipping unreadable card", "id", n.ID, "error", err)
			continue
		}
		cards = append(cards, c)
	}
	return cards
}

// IsValidation reports whether err came from input validation, either of a
// ledger entry or of registration credentials.
func IsValidation(err error) bool {
	return errors.Is(err, core.ErrValidation) ||
		errors.Is(err, auth.ErrInvalidEmail) ||
		errors.Is(err, auth.ErrWeakPassword)
}
