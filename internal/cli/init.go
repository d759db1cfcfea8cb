// Package cli holds the start-up and shutdown steps shared by the dindion
// binaries.
package cli

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"dindion/internal/config"
	"dindion/internal/log"
)

// ShutdownTimeout bounds the cleanup once a stop signal arrives.
const ShutdownTimeout = 30 * time.Second

// LoadEnvFile loads .env for local development. A missing file is fine.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger creates the process logger and makes it the slog default.
func SetupLogger(level slog.Level, component string) *log.Logger {
	logger := log.New(log.Config{
		Level:     level,
		Component: component,
		Handler:   slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}),
	})
	log.SetDefault(logger)
	return logger
}

// Bootstrap loads the configuration, sets up the logger at its level and
// runs validate. The process exits when validation fails.
func Bootstrap(component string, validate func(*config.Config) error) (*config.Config, *log.Logger) {
	LoadEnvFile()
	cfg := config.Load()
	logger := SetupLogger(cfg.SlogLevel(), component)
	if err := validate(cfg); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg, logger
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// Step is one shutdown action.
type Step struct {
	Name string
	Run  func(ctx context.Context) error
}

// Shutdown runs steps in order under a shared deadline. A failing step is
// logged and does not stop the ones after it.
func Shutdown(logger *log.Logger, timeout time.Duration, steps ...Step) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	for _, step := range steps {
		if err := step.Run(ctx); err != nil {
			logger.Error("Shutdown step failed",
				log.FieldOperation, log.OpShutdown,
				"step", step.Name,
				log.FieldError, err)
			errs = append(errs, err)
		}
	}
	if ctx.Err() != nil {
		logger.Warn("Shutdown timeout reached", log.FieldOperation, log.OpShutdown)
	}
	return errors.Join(errs...)
}
