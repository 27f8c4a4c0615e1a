package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/docanalyze/internal/api"
	"github.com/dgallion1/docanalyze/internal/chunker"
	"github.com/dgallion1/docanalyze/internal/config"
	"github.com/dgallion1/docanalyze/internal/extract"
	"github.com/dgallion1/docanalyze/internal/pathstore"
	"github.com/dgallion1/docanalyze/internal/pipeline"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	if err := config.LoadDotEnv(); err != nil {
		log.Error("load .env", "error", err)
		os.Exit(1)
	}
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	// Initialize clients.
	completer, closeCompleter, err := extract.NewCompleter(cfg.Completion())
	if err != nil {
		return err
	}
	defer closeCompleter()

	var (
		resultStore   pipeline.ResultStore
		analysisStore api.AnalysisStore
	)
	if cfg.PersistenceEnabled() {
		ps := pathstore.NewClient(cfg.PathstoreURL, cfg.PathstoreAPIKey)
		defer ps.Close()
		resultStore, analysisStore = ps, ps
	} else {
		log.Info("pathstore persistence disabled")
	}

	// Initialize pipeline.
	stats := extract.NewLLMStats(time.Hour)
	metrics := pipeline.NewMetrics()
	orch := pipeline.NewOrchestrator(completer, pipeline.Options{
		Retry: pipeline.RetryPolicy{
			MaxRetries: uint64(cfg.MaxRetries),
			BaseDelay:  cfg.RetryBaseDelay,
			MaxDelay:   cfg.RetryMaxDelay,
		},
		RollingContextChars: cfg.RollingContextChars,
		Meters:              chunker.NewMeterCache(cfg.MeterCacheSize),
		Stats:               stats,
		Metrics:             metrics,
		Logger:              log,
	})
	queue := pipeline.NewQueue(cfg, orch, resultStore, metrics, log)
	queue.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(cfg, orch, queue, analysisStore, stats, metrics, log)
	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting docanalyze", "port", cfg.Port, "provider", cfg.Provider, "model", cfg.Model)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	// Graceful shutdown.
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down...")

		queue.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
