package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"dindion/internal/auth"
	"dindion/internal/backend"
	"dindion/internal/cache"
	"dindion/internal/cli"
	"dindion/internal/config"
	apphttp "dindion/internal/http"
	"dindion/internal/log"
)

func main() {
	cfg, logger := cli.Bootstrap(log.ComponentApp, (*config.Config).Validate)

	ctx, stop := cli.SignalContext()
	defer stop()

	caches := cache.NewManager(logger.WithComponent(log.ComponentCache).Logger)
	caches.StartCleanup(5 * time.Minute)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend).Logger, caches).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	authSvc := auth.NewService(res.Users, auth.Config{
		Secret:     []byte(cfg.JWTSecret),
		SessionTTL: cfg.SessionTTL,
	}, logger.WithComponent(log.ComponentAuth).Logger)

	srv := apphttp.NewServer(apphttp.Options{
		Addr:               ":" + cfg.Port,
		Location:           cfg.Location(),
		FormMonths:         cfg.FormMonths(),
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		SessionTTL:         cfg.SessionTTL,
		TrustedProxies:     cfg.TrustedProxyCIDRs(),
		Ready:              res.Ready,
	}, authSvc, res.Tree, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting dindion server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"timezone", cfg.Timezone)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down", log.FieldOperation, log.OpShutdown)
		return cli.Shutdown(logger, cli.ShutdownTimeout,
			cli.Step{Name: "http", Run: srv.Shutdown},
			cli.Step{Name: "backend", Run: func(context.Context) error { return res.Cleanup() }},
			cli.Step{Name: "caches", Run: func(context.Context) error { caches.Stop(); return nil }},
		)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
