// Package realtime defines the snapshot-push tree the ledger is stored in.
//
// Records live under slash separated paths such as users/{uid}/transactions.
// Subscribers always receive the whole collection at a path, never deltas.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type (
	// Node is one child record of a collection.
	Node struct {
		ID   string
		Data json.RawMessage
	}

	// Snapshot is the full collection at a path in insertion order.
	// Snapshots are shared between listeners and must be treated as read-only.
	Snapshot []Node

	// Listener receives snapshots. It runs synchronously on the writer's
	// goroutine and must not write to the tree it is subscribed to.
	Listener func(Snapshot)

	// CancelFunc ends a subscription. It is safe to call more than once.
	CancelFunc func()

	// Op names a kind of write.
	Op string

	// Change describes one committed write.
	Change struct {
		Path string
		ID   string
		Op   Op
	}
)

const (
	OpAppend Op = "append"
	OpDelete Op = "delete"
)

// Ports implemented by the tree backends.
type (
	Reader interface {
		Read(ctx context.Context, path string) (Snapshot, error)
	}

	Writer interface {
		// Append stores data as a new child of path and returns its generated id.
		Append(ctx context.Context, path string, data []byte) (id string, err error)
		Delete(ctx context.Context, path, id string) error
	}

	Subscriber interface {
		// Subscribe calls fn with the current snapshot of path before returning,
		// then again after every change of path until cancelled.
		Subscribe(ctx context.Context, path string, fn Listener) (CancelFunc, error)
	}

	Tree interface {
		Reader
		Writer
		Subscriber
	}
)

var (
	ErrNotFound    = errors.New("node not found")
	ErrInvalidPath = errors.New("invalid path")
	ErrInvalidData = errors.New("node data must be a JSON object")
)

const (
	transactionsCollection = "transactions"
	cardsCollection        = "creditCards"
)

// TransactionsPath is the collection holding a user's transactions.
func TransactionsPath(uid string) string {
	return fmt.Sprintf("users/%s/%s", uid, transactionsCollection)
}

// CardsPath is the collection holding a user's credit cards.
func CardsPath(uid string) string {
	return fmt.Sprintf("users/%s/%s", uid, cardsCollection)
}

// ParseUserPath splits a user collection path into uid and collection name.
func ParseUserPath(path string) (uid, collection string, ok bool) {
	parts := strings.Split(path, "/")
	if len(parts) != 3 || parts[0] != "users" || parts[1] == "" || parts[2] == "" {
		return "", "", false
	}
	return parts[1], parts[2], true
}

// IsTransactionsPath reports whether path is some user's transactions collection.
func IsTransactionsPath(path string) bool {
	_, c, ok := ParseUserPath(path)
	return ok && c == transactionsCollection
}

// ValidatePath rejects empty segments and surrounding slashes.
func ValidatePath(path string) error {
	if path == "" {
		return ErrInvalidPath
	}
	for _, seg := range strings.Split(path, "/") {
		if strings.TrimSpace(seg) == "" {
			return fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	return nil
}

// ValidateData checks that data is a JSON object.
func ValidateData(data []byte) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil || obj == nil {
		return ErrInvalidData
	}
	return nil
}

// Clone copies the node slice so later writes cannot alias it.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	copy(out, s)
	return out
}
