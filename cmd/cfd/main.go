package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/AzatSkyArchLab/wind-cfd-service/internal/adapter/http"
	kafkaadapter "github.com/AzatSkyArchLab/wind-cfd-service/internal/adapter/kafka"
	"github.com/AzatSkyArchLab/wind-cfd-service/internal/config"
	"github.com/AzatSkyArchLab/wind-cfd-service/internal/domain"
	"github.com/AzatSkyArchLab/wind-cfd-service/internal/observability"
	"github.com/AzatSkyArchLab/wind-cfd-service/internal/result"
	"github.com/AzatSkyArchLab/wind-cfd-service/internal/runner"
	"github.com/AzatSkyArchLab/wind-cfd-service/internal/store"
	"github.com/jonboulle/clockwork"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	st, err := store.New(cfg.CaseRoot, clock, logger)
	if err != nil {
		logger.Error("failed to open case root", "root", cfg.CaseRoot, "error", err)
		os.Exit(1)
	}
	restored := st.Restore()
	metrics.CasesRestored.Add(float64(restored))
	logger.Info("case store ready", "root", cfg.CaseRoot, "restored", restored)

	// Run-event publishing (feature-flagged via CFD_KAFKA_BROKERS).
	var notifier runner.Notifier
	var notifierClose func() error
	if cfg.KafkaEnabled {
		n := kafkaadapter.NewNotifier(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		notifier = n
		notifierClose = n.Close
		logger.Info("run-event publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	} else {
		logger.Info("run-event publishing disabled")
	}

	base := domain.DefaultSizerConfig()
	base.CellSize = cfg.CellSize
	base.Iterations = cfg.Iterations
	base.SampleHeight = cfg.SampleHeight

	exec := runner.NewExec(logger)
	calc := runner.New(runner.Options{
		Base:      base,
		Store:     st,
		Exec:      exec,
		Extractor: result.NewExtractor(exec, cfg.GridSpacing, logger),
		Metrics:   metrics,
		Notifier:  notifier,
		Clock:     clock,
		Logger:    logger,
	})

	srv := httpadapter.NewServer(cfg.HTTPAddr, calc, st, metrics, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if notifierClose != nil {
		if err := notifierClose(); err != nil {
			logger.Error("kafka notifier close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
