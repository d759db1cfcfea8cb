package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"dindion/internal/log"
)

func quietLogger() *log.Logger {
	return log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
}

func TestShutdownRunsEveryStep(t *testing.T) {
	var order []string
	boom := errors.New("boom")
	err := Shutdown(quietLogger(), time.Second,
		Step{"http", func(context.Context) error { order = append(order, "http"); return nil }},
		Step{"store", func(context.Context) error { order = append(order, "store"); return boom }},
		Step{"caches", func(context.Context) error { order = append(order, "caches"); return nil }},
	)
	if !errors.Is(err, boom) {
		t.Fatalf("err=%v, want boom", err)
	}
	if len(order) != 3 || order[0] != "http" || order[2] != "caches" {
		t.Fatalf("order=%v", order)
	}
}

func TestShutdownSharesDeadline(t *testing.T) {
	err := Shutdown(quietLogger(), 20*time.Millisecond,
		Step{"slow", func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}},
		Step{"after", func(ctx context.Context) error {
			if ctx.Err() == nil {
				t.Errorf("later steps should see the expired deadline")
			}
			return nil
		}},
	)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err=%v", err)
	}
}
