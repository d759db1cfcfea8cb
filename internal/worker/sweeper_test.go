package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestSweeperLifecycle(t *testing.T) {
	var runs atomic.Int32
	ran := make(chan struct{}, 1)
	s := NewSweeper(func(context.Context) (int, error) {
		runs.Add(1)
		select {
		case ran <- struct{}{}:
		default:
		}
		return 1, nil
	}, time.Second, quietLogger())

	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !s.IsRunning() {
		t.Fatal("sweeper should be running")
	}
	if err := s.Start(ctx); err == nil {
		t.Fatal("second start should fail")
	}

	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("sweep never ran")
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := s.Stop(stopCtx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if s.IsRunning() {
		t.Fatal("sweeper should be stopped")
	}
	if err := s.Stop(stopCtx); err != nil {
		t.Fatalf("stop twice: %v", err)
	}
}

func TestSweeperRunNowSwallowsErrors(t *testing.T) {
	var runs atomic.Int32
	s := NewSweeper(func(context.Context) (int, error) {
		runs.Add(1)
		return 0, errors.New("boom")
	}, 0, quietLogger())

	s.RunNow(context.Background())
	if runs.Load() != 1 {
		t.Fatalf("expected one run, got %d", runs.Load())
	}
}
