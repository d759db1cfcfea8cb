// Package memory is an in-process realtime tree used for development and tests.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"dindion/internal/realtime"
)

type Tree struct {
	mu       sync.Mutex
	nodes    map[string]realtime.Snapshot
	versions map[string]uint64
	hub      *realtime.Hub
	newID    func() string
}

var _ realtime.Tree = (*Tree)(nil)

func New() *Tree {
	return &Tree{
		nodes:    make(map[string]realtime.Snapshot),
		versions: make(map[string]uint64),
		hub:      realtime.NewHub(),
		newID:    uuid.NewString,
	}
}

// Read returns a copy of the collection at path.
func (t *Tree) Read(_ context.Context, path string) (realtime.Snapshot, error) {
	if err := realtime.ValidatePath(path); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.nodes[path].Clone(), nil
}

// Append stores data under a fresh id and notifies subscribers of path.
func (t *Tree) Append(_ context.Context, path string, data []byte) (string, error) {
	if err := realtime.ValidatePath(path); err != nil {
		return "", err
	}
	if err := realtime.ValidateData(data); err != nil {
		return "", err
	}
	id := t.newID()
	t.mu.Lock()
	t.nodes[path] = append(t.nodes[path].Clone(), realtime.Node{ID: id, Data: slices.Clone(data)})
	version, snap := t.bump(path)
	t.mu.Unlock()

	t.hub.Publish(path, version, snap)
	return id, nil
}

// Delete removes the child id of path.
func (t *Tree) Delete(_ context.Context, path, id string) error {
	if err := realtime.ValidatePath(path); err != nil {
		return err
	}
	t.mu.Lock()
	nodes := t.nodes[path]
	i := slices.IndexFunc(nodes, func(n realtime.Node) bool { return n.ID == id })
	if i < 0 {
		t.mu.Unlock()
		return realtime.ErrNotFound
	}
	t.nodes[path] = slices.Delete(nodes.Clone(), i, i+1)
	version, snap := t.bump(path)
	t.mu.Unlock()

	t.hub.Publish(path, version, snap)
	return nil
}

// Subscribe delivers the current snapshot of path, then every later one.
func (t *Tree) Subscribe(_ context.Context, path string, fn realtime.Listener) (realtime.CancelFunc, error) {
	if err := realtime.ValidatePath(path); err != nil {
		return nil, err
	}
	t.mu.Lock()
	sub := t.hub.Add(path, fn)
	version, snap := t.versions[path], t.nodes[path].Clone()
	t.mu.Unlock()

	sub.Deliver(version, snap)
	return sub.Cancel, nil
}

// Listeners reports how many subscriptions are open on path.
func (t *Tree) Listeners(path string) int {
	return t.hub.Listeners(path)
}

// bump must be called with t.mu held.
func (t *Tree) bump(path string) (uint64, realtime.Snapshot) {
	t.versions[path]++
	return t.versions[path], t.nodes[path].Clone()
}
