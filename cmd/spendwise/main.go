package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"spendwise/internal/aggregator"
	"spendwise/internal/auth"
	"spendwise/internal/backend"
	"spendwise/internal/cache"
	"spendwise/internal/cli"
	apphttp "spendwise/internal/http"
	"spendwise/internal/livequery"
	applog "spendwise/internal/log"
	"spendwise/internal/middleware/ratelimit"
	"spendwise/internal/receipt"
	"spendwise/internal/services"
	"spendwise/internal/session"
	"spendwise/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	logger.Info("Starting spendwise",
		applog.FieldOperation, applog.OpStartup,
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"amqp_enabled", cfg.AMQPEnabled())

	ctx, stop := cli.ShutdownContext(context.Background())
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to create backend", applog.FieldError, err)
		os.Exit(1)
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", applog.FieldError, err)
		}
	}()

	hub := livequery.NewHub(res.Store, aggregator.SnapshotLimit)

	var publisher services.Publisher
	if res.AMQP != nil {
		publisher = res.AMQP
	}
	expenses := services.NewExpenseService(res.Store, hub, publisher)

	sessions := session.NewManager(hub)
	defer sessions.Close()

	caches := cache.NewManager()
	receiptCache := cache.NewLRUCache[receipt.Result](cfg.ReceiptCacheSize, cfg.ReceiptCacheTTL)
	caches.Register("receipt", receiptCache)
	caches.StartCleanup(10 * time.Minute)
	defer caches.Stop()

	var generator receipt.Generator
	if cfg.GeminiAPIKey != "" {
		g, err := receipt.NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			logger.Warn("Receipt analysis disabled", applog.FieldError, err)
		} else {
			defer g.Close()
			generator = g
		}
	} else {
		logger.Info("GEMINI_API_KEY not set, receipt analysis will return fallback values")
	}
	analyzer := receipt.NewAnalyzer(generator, receiptCache, cfg.ReceiptTimeout)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Expenses:  expenses,
		Sessions:  sessions,
		Receipts:  analyzer,
		Verifier:  auth.NewVerifier(cfg.AuthJWTSecret),
		Logger:    logger,
		RateLimit: ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute},
		Ready:     res.Ready,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if res.AMQP != nil {
		changes := worker.NewChangeWorker(hub, res.AMQP.InstanceID())
		g.Go(func() error {
			err := changes.Run(gctx, res.AMQP)
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down", applog.FieldOperation, applog.OpShutdown)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Shutdown complete")
}
