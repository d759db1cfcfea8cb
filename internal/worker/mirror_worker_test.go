package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"dindion/internal/amqp"
	"dindion/internal/core"
	"dindion/internal/realtime"
	"dindion/internal/storage"
)

type fakeNodes struct {
	mu       sync.Mutex
	nodes    map[string]realtime.Node
	exported map[string]bool
	path     string
}

func newFakeNodes(path string) *fakeNodes {
	return &fakeNodes{path: path, nodes: make(map[string]realtime.Node), exported: make(map[string]bool)}
}

func (f *fakeNodes) add(t *testing.T, id string, tx core.Transaction) {
	t.Helper()
	data, err := core.EncodeTransaction(tx)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	f.nodes[id] = realtime.Node{ID: id, Data: data}
}

func (f *fakeNodes) Node(_ context.Context, _, id string) (realtime.Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.nodes[id]
	if !ok {
		return realtime.Node{}, realtime.ErrNotFound
	}
	return n, nil
}

func (f *fakeNodes) Exported(_ context.Context, _, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.nodes[id]; !ok {
		return false, realtime.ErrNotFound
	}
	return f.exported[id], nil
}

func (f *fakeNodes) PendingExports(_ context.Context, limit int) ([]storage.PendingNode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []storage.PendingNode
	for id, n := range f.nodes {
		if f.exported[id] || len(out) == limit {
			continue
		}
		out = append(out, storage.PendingNode{Path: f.path, Node: n})
	}
	return out, nil
}

func (f *fakeNodes) MarkExported(_ context.Context, _, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exported[id] = true
	return nil
}

type fakeExporter struct {
	mu       sync.Mutex
	exported []core.Transaction
	removed  []string
	err      error
}

func (f *fakeExporter) Export(_ context.Context, _ string, tx core.Transaction) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.exported = append(f.exported, tx)
	return "Transactions!A2:J2", nil
}

func (f *fakeExporter) Remove(_ context.Context, _, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.removed = append(f.removed, id)
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleTransaction() core.Transaction {
	return core.Transaction{
		Description:    "Mercado",
		Amount:         decimal.NewFromInt(-150),
		Date:           core.NewDate(2025, 7, 3),
		ReferenceMonth: core.MustYearMonth("2025-07"),
		Entry:          core.CashExpense{},
	}
}

func changeMsg(path, id string, op realtime.Op) *amqp.ChangeMessage {
	return &amqp.ChangeMessage{Path: path, NodeID: id, Op: op, Timestamp: time.Now()}
}

func TestHandleChangeExportsAppend(t *testing.T) {
	path := realtime.TransactionsPath("u1")
	nodes := newFakeNodes(path)
	nodes.add(t, "n1", sampleTransaction())
	exp := &fakeExporter{}
	w := NewMirrorWorker(nodes, exp, 10, quietLogger())

	if err := w.HandleChange(context.Background(), changeMsg(path, "n1", realtime.OpAppend)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(exp.exported) != 1 || exp.exported[0].ID != "n1" {
		t.Fatalf("expected n1 exported, got %+v", exp.exported)
	}
	if !nodes.exported["n1"] {
		t.Fatal("node should be marked exported")
	}

	// Redelivery does not export twice.
	if err := w.HandleChange(context.Background(), changeMsg(path, "n1", realtime.OpAppend)); err != nil {
		t.Fatalf("redeliver: %v", err)
	}
	if len(exp.exported) != 1 {
		t.Fatalf("expected a single export, got %d", len(exp.exported))
	}
}

func TestHandleChangeCases(t *testing.T) {
	path := realtime.TransactionsPath("u1")

	tests := []struct {
		name        string
		msg         *amqp.ChangeMessage
		exporterErr error
		wantErr     bool
		wantRemoved int
	}{
		{name: "card change ignored", msg: changeMsg(realtime.CardsPath("u1"), "c1", realtime.OpAppend)},
		{name: "missing node skipped", msg: changeMsg(path, "gone", realtime.OpAppend)},
		{name: "delete removes row", msg: changeMsg(path, "n1", realtime.OpDelete), wantRemoved: 1},
		{name: "delete failure requeues", msg: changeMsg(path, "n1", realtime.OpDelete), exporterErr: errors.New("quota"), wantErr: true},
		{name: "export failure requeues", msg: changeMsg(path, "n1", realtime.OpAppend), exporterErr: errors.New("quota"), wantErr: true},
		{name: "unknown op", msg: changeMsg(path, "n1", "update"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nodes := newFakeNodes(path)
			nodes.add(t, "n1", sampleTransaction())
			exp := &fakeExporter{err: tt.exporterErr}
			w := NewMirrorWorker(nodes, exp, 10, quietLogger())

			err := w.HandleChange(context.Background(), tt.msg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("wantErr=%v, got %v", tt.wantErr, err)
			}
			if len(exp.removed) != tt.wantRemoved {
				t.Fatalf("expected %d removals, got %d", tt.wantRemoved, len(exp.removed))
			}
			if tt.wantErr && nodes.exported["n1"] {
				t.Fatal("failed export must not mark the node")
			}
		})
	}
}

func TestProcessPending(t *testing.T) {
	path := realtime.TransactionsPath("u1")
	nodes := newFakeNodes(path)
	nodes.add(t, "n1", sampleTransaction())
	nodes.add(t, "n2", sampleTransaction())
	nodes.nodes["bad"] = realtime.Node{ID: "bad", Data: []byte(`{"type":"expense","paymentType":"credit","amount":"-1"}`)}
	exp := &fakeExporter{}
	w := NewMirrorWorker(nodes, exp, 10, quietLogger())

	n, err := w.ProcessPending(context.Background())
	if err != nil {
		t.Fatalf("process pending: %v", err)
	}
	if n != 2 || len(exp.exported) != 2 {
		t.Fatalf("expected 2 exports, got n=%d exported=%d", n, len(exp.exported))
	}
	if !nodes.exported["bad"] {
		t.Fatal("inconsistent record should be marked to stop retries")
	}

	n, err = w.ProcessPending(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("second sweep should be empty, got %d %v", n, err)
	}
}

func TestProcessPendingKeepsFailures(t *testing.T) {
	path := realtime.TransactionsPath("u1")
	nodes := newFakeNodes(path)
	nodes.add(t, "n1", sampleTransaction())
	exp := &fakeExporter{err: errors.New("sheets down")}
	w := NewMirrorWorker(nodes, exp, 10, quietLogger())

	if err := w.StartupCheck(context.Background()); err != nil {
		t.Fatalf("startup check: %v", err)
	}
	if nodes.exported["n1"] {
		t.Fatal("failed export must stay pending")
	}
}
