package realtime

import (
	"sync"
	"sync/atomic"
)

// Hub fans snapshots out to the listeners of each path.
//
// Every published snapshot carries the version it was taken at. A listener
// never sees an older version after a newer one, so concurrent writers cannot
// leave a subscriber on a stale snapshot.
type Hub struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[string]map[uint64]*Subscription
}

// Subscription is one listener registered on a Hub.
type Subscription struct {
	hub  *Hub
	path string
	id   uint64
	fn   Listener

	mu     sync.Mutex
	seen   uint64
	closed atomic.Bool
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[uint64]*Subscription)}
}

// Add registers fn on path. The caller delivers the initial snapshot with Deliver.
func (h *Hub) Add(path string, fn Listener) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	s := &Subscription{hub: h, path: path, id: h.nextID, fn: fn}
	if h.subs[path] == nil {
		h.subs[path] = make(map[uint64]*Subscription)
	}
	h.subs[path][s.id] = s
	return s
}

// Publish delivers snap to every listener of path.
func (h *Hub) Publish(path string, version uint64, snap Snapshot) {
	h.mu.Lock()
	subs := make([]*Subscription, 0, len(h.subs[path]))
	for _, s := range h.subs[path] {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	for _, s := range subs {
		s.Deliver(version, snap)
	}
}

// Listeners returns the number of active subscriptions on path.
func (h *Hub) Listeners(path string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[path])
}

// Deliver calls the listener unless the subscription is closed or has
// already seen a newer version.
func (s *Subscription) Deliver(version uint64, snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() || (s.seen > 0 && version <= s.seen) {
		return
	}
	s.seen = version
	s.fn(snap)
}

// Cancel removes the subscription from its hub. It may be called from
// inside the listener.
func (s *Subscription) Cancel() {
	s.hub.mu.Lock()
	if m := s.hub.subs[s.path]; m != nil {
		delete(m, s.id)
		if len(m) == 0 {
			delete(s.hub.subs, s.path)
		}
	}
	s.hub.mu.Unlock()

	s.closed.Store(true)
}
