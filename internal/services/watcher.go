package services

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"dindion/internal/auth"
	"dindion/internal/realtime"
)

// AuthSource reports identity changes. auth.Session implements it.
type AuthSource interface {
	OnAuthChange(fn func(*auth.Identity)) func()
}

// Update is one emission of a watcher.
type Update struct {
	Identity *auth.Identity // nil once signed out
	State    ViewState
}

// Watcher keeps a View in sync with the collections of whoever is signed in.
type Watcher struct {
	tree   realtime.Subscriber
	view   *View
	emit   func(Update)
	logger *slog.Logger

	gen atomic.Uint64 // bumped on every identity change; stale listeners compare against it

	mu      sync.Mutex
	cancels []realtime.CancelFunc
	unsub   func()

	emitMu   sync.Mutex
	identity *auth.Identity
}

func NewWatcher(tree realtime.Subscriber, view *View, emit func(Update), logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{tree: tree, view: view, emit: emit, logger: logger}
}

// Start follows src until Stop. emit is called once with the current state
// and again after every snapshot or identity change. Calls to emit never
// overlap.
func (w *Watcher) Start(ctx context.Context, src AuthSource) {
	unsub := src.OnAuthChange(func(id *auth.Identity) { w.onAuth(ctx, id) })
	w.mu.Lock()
	w.unsub = unsub
	w.mu.Unlock()
}

// Stop drops the auth subscription and both collection subscriptions.
func (w *Watcher) Stop() {
	w.gen.Add(1)
	w.mu.Lock()
	unsub := w.unsub
	w.unsub = nil
	w.cancelLocked()
	w.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

func (w *Watcher) onAuth(ctx context.Context, id *auth.Identity) {
	gen := w.gen.Add(1)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.cancelLocked()

	if id == nil {
		w.emitMu.Lock()
		w.identity = nil
		state := w.view.Reset()
		w.emit(Update{State: state})
		w.emitMu.Unlock()
		return
	}

	w.emitMu.Lock()
	w.identity = id
	w.emitMu.Unlock()

	subs := []struct {
		path  string
		apply func(realtime.Snapshot) ViewState
	}{
		{realtime.CardsPath(id.UID), w.view.ApplyCards},
		{realtime.TransactionsPath(id.UID), w.view.ApplyTransactions},
	}
	for _, s := range subs {
		apply := s.apply
		cancel, err := w.tree.Subscribe(ctx, s.path, func(snap realtime.Snapshot) {
			w.deliver(gen, snap, apply)
		})
		if err != nil {
			w.logger.ErrorContext(ctx, "Failed to subscribe", "path", s.path, "error", err)
			continue
		}
		w.cancels = append(w.cancels, cancel)
	}
}

func (w *Watcher) deliver(gen uint64, snap realtime.Snapshot, apply func(realtime.Snapshot) ViewState) {
	w.emitMu.Lock()
	defer w.emitMu.Unlock()
	if w.gen.Load() != gen {
		return
	}
	w.emit(Update{Identity: w.identity, State: apply(snap)})
}

// cancelLocked must be called with w.mu held.
func (w *Watcher) cancelLocked() {
	for _, c := range w.cancels {
		c()
	}
	w.cancels = nil
}
