// Package worker mirrors ledger records into the Sheets export target.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"dindion/internal/amqp"
	"dindion/internal/core"
	"dindion/internal/realtime"
	"dindion/internal/sheets"
	"dindion/internal/storage"
)

// NodeSource is the part of the SQLite tree the mirror reads and marks.
type NodeSource interface {
	Node(ctx context.Context, path, id string) (realtime.Node, error)
	Exported(ctx context.Context, path, id string) (bool, error)
	PendingExports(ctx context.Context, limit int) ([]storage.PendingNode, error)
	MarkExported(ctx context.Context, path, id string) error
}

var errSkipped = errors.New("record skipped")

// MirrorWorker exports transaction records announced on the change queue.
type MirrorWorker struct {
	nodes     NodeSource
	exporter  sheets.TransactionExporter
	batchSize int
	logger    *slog.Logger
}

func NewMirrorWorker(nodes NodeSource, exporter sheets.TransactionExporter, batchSize int, logger *slog.Logger) *MirrorWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MirrorWorker{nodes: nodes, exporter: exporter, batchSize: batchSize, logger: logger}
}

// HandleChange processes one change message. Card changes are ignored.
// A returned error requeues the message.
func (w *MirrorWorker) HandleChange(ctx context.Context, msg *amqp.ChangeMessage) error {
	uid, collection, ok := realtime.ParseUserPath(msg.Path)
	if !ok || !realtime.IsTransactionsPath(msg.Path) {
		w.logger.DebugContext(ctx, "Ignoring change outside transactions", "path", msg.Path, "collection", collection)
		return nil
	}

	w.logger.InfoContext(ctx, "Processing change message",
		"path", msg.Path,
		"node_id", msg.NodeID,
		"op", msg.Op)

	switch msg.Op {
	case realtime.OpAppend:
		done, err := w.nodes.Exported(ctx, msg.Path, msg.NodeID)
		if errors.Is(err, realtime.ErrNotFound) {
			// Deleted before export, nothing to mirror.
			w.logger.InfoContext(ctx, "Node gone before export", "node_id", msg.NodeID)
			return nil
		}
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		node, err := w.nodes.Node(ctx, msg.Path, msg.NodeID)
		if errors.Is(err, realtime.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("load node: %w", err)
		}
		if err := w.export(ctx, uid, msg.Path, node); err != nil && !errors.Is(err, errSkipped) {
			return err
		}
		return nil

	case realtime.OpDelete:
		if err := w.exporter.Remove(ctx, uid, msg.NodeID); err != nil {
			return fmt.Errorf("remove exported row: %w", err)
		}
		w.logger.InfoContext(ctx, "Removed exported transaction", "user_id", uid, "node_id", msg.NodeID)
		return nil

	default:
		return fmt.Errorf("%w: op %q", amqp.ErrInvalidMessage, msg.Op)
	}
}

// ProcessPending exports up to one batch of records the queue never
// delivered. It returns how many were exported.
func (w *MirrorWorker) ProcessPending(ctx context.Context) (int, error) {
	return w.processPending(ctx, w.batchSize)
}

// StartupCheck runs a larger sweep to catch up after downtime.
func (w *MirrorWorker) StartupCheck(ctx context.Context) error {
	n, err := w.processPending(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup export check: %w", err)
	}
	w.logger.InfoContext(ctx, "Startup export check completed", "exported", n)
	return nil
}

func (w *MirrorWorker) processPending(ctx context.Context, limit int) (int, error) {
	pending, err := w.nodes.PendingExports(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("list pending exports: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	w.logger.InfoContext(ctx, "Processing pending exports", "count", len(pending))
	exported, failed := 0, 0
	for _, p := range pending {
		if ctx.Err() != nil {
			return exported, ctx.Err()
		}
		uid, _, _ := realtime.ParseUserPath(p.Path)
		err := w.export(ctx, uid, p.Path, p.Node)
		if errors.Is(err, errSkipped) {
			continue
		}
		if err != nil {
			w.logger.ErrorContext(ctx, "Failed to export pending node", "node_id", p.Node.ID, "error", err)
			failed++
			continue
		}
		exported++
	}
	if failed > 0 {
		w.logger.WarnContext(ctx, "Pending export sweep had failures", "exported", exported, "failed", failed)
	}
	return exported, nil
}

func (w *MirrorWorker) export(ctx context.Context, uid, path string, node realtime.Node) error {
	tx, err := core.DecodeTransaction(node.ID, node.Data)
	if errors.Is(err, core.ErrInconsistentRecord) {
		// Unreadable records are marked so the sweep stops retrying them.
		w.logger.WarnContext(ctx, "Skipping inconsistent record", "node_id", node.ID, "error", err)
		if err := w.nodes.MarkExported(ctx, path, node.ID); err != nil {
			return err
		}
		return errSkipped
	}
	if err != nil {
		return err
	}

	ref, err := w.exporter.Export(ctx, uid, tx)
	if err != nil {
		return fmt.Errorf("export transaction: %w", err)
	}
	if err := w.nodes.MarkExported(ctx, path, node.ID); err != nil {
		// The row exists; a later sweep may export it again.
		w.logger.ErrorContext(ctx, "Failed to mark node exported", "node_id", node.ID, "error", err)
	}

	w.logger.InfoContext(ctx, "Exported transaction",
		"user_id", uid,
		"node_id", node.ID,
		"sheets_ref", ref,
		"amount", tx.Amount.String())
	return nil
}
