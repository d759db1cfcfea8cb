package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"dindion/internal/core"
	"dindion/internal/realtime"
	"dindion/internal/realtime/memory"
)

var errStoreDown = errors.New("store unavailable")

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixedNow() time.Time {
	return time.Date(2025, time.July, 14, 10, 0, 0, 0, time.UTC)
}

// failingStore wraps a memory tree and fails appends after okAppends succeed.
type failingStore struct {
	*memory.Tree
	mu        sync.Mutex
	okAppends int
	appends   int
}

func (f *failingStore) Append(ctx context.Context, path string, data []byte) (string, error) {
	f.mu.Lock()
	f.appends++
	n := f.appends
	f.mu.Unlock()
	if n > f.okAppends {
		return "", errStoreDown
	}
	return f.Tree.Append(ctx, path, data)
}

func newTransactionService(store Store) *TransactionService {
	s := NewTransactionService(store, time.UTC, quietLogger())
	s.now = fixedNow
	return s
}

func addCard(t *testing.T, tree realtime.Writer, uid, name string) string {
	t.Helper()
	data, err := core.EncodeCard(core.CreditCard{Name: name})
	if err != nil {
		t.Fatalf("encode card: %v", err)
	}
	id, err := tree.Append(context.Background(), realtime.CardsPath(uid), data)
	if err != nil {
		t.Fatalf("append card: %v", err)
	}
	return id
}

func readTransactions(t *testing.T, tree realtime.Reader, uid string) []core.Transaction {
	t.Helper()
	snap, err := tree.Read(context.Background(), realtime.TransactionsPath(uid))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return decodeTransactions(context.Background(), quietLogger(), snap)
}
