// Package storage keeps the realtime tree and user accounts in SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"dindion/internal/cache"
	"dindion/internal/realtime"

	_ "modernc.org/sqlite"
)

// ChangeNotifier is told about every committed write, e.g. to publish it on a broker.
type ChangeNotifier interface {
	NotifyChange(ctx context.Context, change realtime.Change) error
}

// PendingNode is a transaction node that has not been exported yet.
type PendingNode struct {
	Path      string
	Node      realtime.Node
	CreatedAt time.Time
}

type SQLiteTree struct {
	db        *sql.DB
	queries   *Queries
	hub       *realtime.Hub
	snapshots *cache.LRUCache[realtime.Snapshot]
	notifier  ChangeNotifier
	logger    *slog.Logger
	newID     func() string

	mu       sync.Mutex // serializes writes and version bumps
	versions map[string]uint64
}

var _ realtime.Tree = (*SQLiteTree)(nil)

// Option customizes a SQLiteTree.
type Option func(*SQLiteTree)

// WithNotifier publishes every committed change through n.
func WithNotifier(n ChangeNotifier) Option {
	return func(t *SQLiteTree) { t.notifier = n }
}

// WithSnapshotCache overrides the snapshot cache size and TTL.
func WithSnapshotCache(size int, ttl time.Duration) Option {
	return func(t *SQLiteTree) { t.snapshots = cache.NewLRUCache[realtime.Snapshot](size, ttl) }
}

func WithLogger(l *slog.Logger) Option {
	return func(t *SQLiteTree) { t.logger = l }
}

// Open opens (creating if needed) the database at dbPath and migrates it.
func Open(dbPath string, opts ...Option) (*SQLiteTree, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows one writer; a single connection also keeps reads consistent with writes.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	version, err := migrateUp(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	t := &SQLiteTree{
		db:        db,
		queries:   New(db),
		hub:       realtime.NewHub(),
		snapshots: cache.NewLRUCache[realtime.Snapshot](256, 5*time.Minute),
		logger:    slog.Default(),
		newID:     uuid.NewString,
		versions:  make(map[string]uint64),
	}
	for _, o := range opts {
		o(t)
	}
	t.logger.Debug("Database schema ready", "db_path", dbPath, "schema_version", version)
	return t, nil
}

func (t *SQLiteTree) Close() error {
	if t.db != nil {
		return t.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (t *SQLiteTree) Ping(ctx context.Context) error {
	return t.db.PingContext(ctx)
}

// Snapshots exposes the snapshot cache for cleanup registration.
func (t *SQLiteTree) Snapshots() *cache.LRUCache[realtime.Snapshot] {
	return t.snapshots
}

// Read returns the collection at path, served from cache when possible.
func (t *SQLiteTree) Read(ctx context.Context, path string) (realtime.Snapshot, error) {
	if err := realtime.ValidatePath(path); err != nil {
		return nil, err
	}
	if snap, ok := t.snapshots.Get(path); ok {
		return snap.Clone(), nil
	}
	t.mu.Lock()
	version := t.versions[path]
	t.mu.Unlock()
	snap, err := t.load(ctx, path)
	if err != nil {
		return nil, err
	}
	t.cacheSnapshot(path, version, snap)
	return snap.Clone(), nil
}

// cacheSnapshot stores snap, loaded while path was at version, unless a write
// has bumped path since. It reports whether snap was stored.
func (t *SQLiteTree) cacheSnapshot(path string, version uint64, snap realtime.Snapshot) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.versions[path] != version {
		return false
	}
	t.snapshots.Set(path, snap)
	return true
}

// Append inserts data under a new id and pushes the new snapshot to subscribers.
func (t *SQLiteTree) Append(ctx context.Context, path string, data []byte) (string, error) {
	if err := realtime.ValidatePath(path); err != nil {
		return "", err
	}
	if err := realtime.ValidateData(data); err != nil {
		return "", err
	}

	id := t.newID()
	t.mu.Lock()
	if err := t.queries.InsertNode(ctx, path, id, string(data)); err != nil {
		t.mu.Unlock()
		return "", fmt.Errorf("insert node: %w", err)
	}
	version, snap, err := t.bump(ctx, path)
	t.mu.Unlock()
	if err != nil {
		t.logger.ErrorContext(ctx, "Failed to reload snapshot after append", "path", path, "error", err)
	} else {
		t.hub.Publish(path, version, snap)
	}

	t.logger.DebugContext(ctx, "Node appended", "path", path, "id", id)
	t.notify(ctx, realtime.Change{Path: path, ID: id, Op: realtime.OpAppend})
	return id, nil
}

// Delete removes a node and pushes the new snapshot to subscribers.
func (t *SQLiteTree) Delete(ctx context.Context, path, id string) error {
	if err := realtime.ValidatePath(path); err != nil {
		return err
	}

	t.mu.Lock()
	n, err := t.queries.DeleteNode(ctx, path, id)
	if err != nil {
		t.mu.Unlock()
		return fmt.Errorf("delete node: %w", err)
	}
	if n == 0 {
		t.mu.Unlock()
		return realtime.ErrNotFound
	}
	version, snap, err := t.bump(ctx, path)
	t.mu.Unlock()
	if err != nil {
		t.logger.ErrorContext(ctx, "Failed to reload snapshot after delete", "path", path, "error", err)
	} else {
		t.hub.Publish(path, version, snap)
	}

	t.logger.DebugContext(ctx, "Node deleted", "path", path, "id", id)
	t.notify(ctx, realtime.Change{Path: path, ID: id, Op: realtime.OpDelete})
	return nil
}

// Subscribe delivers the current snapshot of path, then every later one.
// A failed initial read is logged and delivered as an empty snapshot.
func (t *SQLiteTree) Subscribe(ctx context.Context, path string, fn realtime.Listener) (realtime.CancelFunc, error) {
	if err := realtime.ValidatePath(path); err != nil {
		return nil, err
	}

	t.mu.Lock()
	sub := t.hub.Add(path, fn)
	version := t.versions[path]
	snap, ok := t.snapshots.Get(path)
	var err error
	if !ok {
		if snap, err = t.load(ctx, path); err == nil {
			t.snapshots.Set(path, snap)
		}
	}
	t.mu.Unlock()

	if err != nil {
		t.logger.ErrorContext(ctx, "Failed to read snapshot for subscriber", "path", path, "error", err)
		snap = realtime.Snapshot{}
	}
	sub.Deliver(version, snap)
	return sub.Cancel, nil
}

// Node returns a single node.
func (t *SQLiteTree) Node(ctx context.Context, path, id string) (realtime.Node, error) {
	row, err := t.queries.GetNode(ctx, path, id)
	if errors.Is(err, sql.ErrNoRows) {
		return realtime.Node{}, realtime.ErrNotFound
	}
	if err != nil {
		return realtime.Node{}, fmt.Errorf("get node: %w", err)
	}
	return realtime.Node{ID: row.ID, Data: []byte(row.Data)}, nil
}

// PendingExports returns up to limit transaction nodes that were never exported.
func (t *SQLiteTree) PendingExports(ctx context.Context, limit int) ([]PendingNode, error) {
	rows, err := t.queries.ListUnexported(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list unexported nodes: %w", err)
	}
	out := make([]PendingNode, len(rows))
	for i, r := range rows {
		out[i] = PendingNode{
			Path:      r.Path,
			Node:      realtime.Node{ID: r.ID, Data: []byte(r.Data)},
			CreatedAt: r.CreatedAt,
		}
	}
	return out, nil
}

// Exported reports whether the node was already exported.
func (t *SQLiteTree) Exported(ctx context.Context, path, id string) (bool, error) {
	row, err := t.queries.GetNode(ctx, path, id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, realtime.ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("get node: %w", err)
	}
	return row.ExportedAt.Valid, nil
}

// MarkExported records that a node reached the export target.
func (t *SQLiteTree) MarkExported(ctx context.Context, path, id string) error {
	if err := t.queries.MarkExported(ctx, path, id); err != nil {
		return fmt.Errorf("mark node exported: %w", err)
	}
	return nil
}

// load reads path from the database. Callers decide whether to cache it.
func (t *SQLiteTree) load(ctx context.Context, path string) (realtime.Snapshot, error) {
	rows, err := t.queries.ListNodes(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	snap := make(realtime.Snapshot, len(rows))
	for i, r := range rows {
		snap[i] = realtime.Node{ID: r.ID, Data: []byte(r.Data)}
	}
	return snap, nil
}

// bump must be called with t.mu held.
func (t *SQLiteTree) bump(ctx context.Context, path string) (uint64, realtime.Snapshot, error) {
	t.versions[path]++
	t.snapshots.Delete(path)
	snap, err := t.load(ctx, path)
	if err == nil {
		t.snapshots.Set(path, snap)
	}
	return t.versions[path], snap, err
}

func (t *SQLiteTree) notify(ctx context.Context, change realtime.Change) {
	if t.notifier == nil {
		return
	}
	if err := t.notifier.NotifyChange(ctx, change); err != nil {
		// The write is committed; the sweep picks up anything the broker missed.
		t.logger.WarnContext(ctx, "Failed to publish change", "path", change.Path, "id", change.ID, "op", change.Op, "error", err)
	}
}
