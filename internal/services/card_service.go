package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"dindion/internal/core"
	"dindion/internal/realtime"
)

// CardService manages a user's credit cards.
type CardService struct {
	store  Store
	logger *slog.Logger
}

func NewCardService(store Store, logger *slog.Logger) *CardService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CardService{store: store, logger: logger}
}

// Add stores a card named name.
func (s *CardService) Add(ctx context.Context, uid, name string) (core.CreditCard, error) {
	card := core.CreditCard{Name: strings.TrimSpace(name)}
	if err := card.Validate(); err != nil {
		return core.CreditCard{}, err
	}
	data, err := core.EncodeCard(card)
	if err != nil {
		return core.CreditCard{}, fmt.Errorf("encode card: %w", err)
	}
	id, err := s.store.Append(ctx, realtime.CardsPath(uid), data)
	if err != nil {
		return core.CreditCard{}, fmt.Errorf("append card: %w", err)
	}
	card.ID = id
	s.logger.InfoContext(ctx, "Card added", "user_id", uid, "card_id", id)
	return card, nil
}

// List returns the user's cards in creation order.
func (s *CardService) List(ctx context.Context, uid string) ([]core.CreditCard, error) {
	snap, err := s.store.Read(ctx, realtime.CardsPath(uid))
	if err != nil {
		return nil, fmt.Errorf("read cards: %w", err)
	}
	return decodeCards(ctx, s.logger, snap), nil
}

// Remove deletes a card. Transactions charged to it keep their card id and
// snapshot name unless cascade is set, in which case they are deleted one
// by one after the card. A failed cascade delete stops the loop and leaves
// the card removed.
func (s *CardService) Remove(ctx context.Context, uid, id string, cascade bool) error {
	if err := s.store.Delete(ctx, realtime.CardsPath(uid), id); err != nil {
		return fmt.Errorf("delete card %s: %w", id, err)
	}
	s.logger.InfoContext(ctx, "Card removed", "user_id", uid, "card_id", id, "cascade", cascade)
	if !cascade {
		return nil
	}

	snap, err := s.store.Read(ctx, realtime.TransactionsPath(uid))
	if err != nil {
		return fmt.Errorf("read transactions: %w", err)
	}
	charged := core.CardExpenses(decodeTransactions(ctx, s.logger, snap), id)
	path := realtime.TransactionsPath(uid)
	for i, tx := range charged {
		if err := s.store.Delete(ctx, path, tx.ID); err != nil && !errors.Is(err, realtime.ErrNotFound) {
			return &PartialWriteError{Written: charged[:i], Total: len(charged), Err: err}
		}
	}
	s.logger.InfoContext(ctx, "Card transactions removed", "user_id", uid, "card_id", id, "count", len(charged))
	return nil
}

// Expenses summarizes the credit expenses charged to card id. A removed card
// still reports its orphaned expenses under the name they were recorded with.
func (s *CardService) Expenses(ctx context.Context, uid, id string) (core.CardSummary, error) {
	cards, err := s.List(ctx, uid)
	if err != nil {
		return core.CardSummary{}, err
	}
	snap, err := s.store.Read(ctx, realtime.TransactionsPath(uid))
	if err != nil {
		return core.CardSummary{}, fmt.Errorf("read transactions: %w", err)
	}
	txs := decodeTransactions(ctx, s.logger, snap)

	card := core.CreditCard{ID: id}
	found := false
	for _, c := range cards {
		if c.ID == id {
			card, found = c, true
			break
		}
	}
	summary := core.SummarizeCard(txs, card)
	if !found {
		if len(summary.Transactions) == 0 {
			return core.CardSummary{}, realtime.ErrNotFound
		}
		c, _ := summary.Transactions[0].Credit()
		summary.Card.Name = c.CardName
	}
	return summary, nil
}
