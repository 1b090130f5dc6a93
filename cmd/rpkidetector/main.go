package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/bgpensemble/anomaly-pipeline/internal/config"
	"github.com/bgpensemble/anomaly-pipeline/internal/dbpool"
	"github.com/bgpensemble/anomaly-pipeline/internal/healthsrv"
	"github.com/bgpensemble/anomaly-pipeline/internal/metrics"
	"github.com/bgpensemble/anomaly-pipeline/internal/model"
	"github.com/bgpensemble/anomaly-pipeline/internal/rpkidetect"
	"github.com/bgpensemble/anomaly-pipeline/internal/store"
)

const startupProbeBudget = 60 * time.Second

func initLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zap.DebugLevel
	case "warn":
		zapLevel = zap.WarnLevel
	case "error":
		zapLevel = zap.ErrorLevel
	default:
		zapLevel = zap.InfoLevel
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(zapLevel)
	zapCfg.EncoderConfig.TimeKey = "ts"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zapCfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error initializing logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Service.LogLevel)
	defer logger.Sync()

	metrics.Register(metrics.RPKIValidatorCallsTotal, metrics.DetectionsEmittedTotal, metrics.DBWriteDuration)

	logger.Info("starting rpki detector", zap.String("validator_url", cfg.RPKI.ValidatorURL))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := dbpool.NewPool(ctx, cfg.Postgres.DSN(), cfg.Postgres.MaxConns, cfg.Postgres.MinConns)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := dbpool.EnsureSchema(ctx, pool, logger); err != nil {
		logger.Fatal("failed to ensure schema", zap.Error(err))
	}

	validator := rpkidetect.NewValidator(cfg.RPKI.ValidatorURL, logger.Named("rpkidetect.validator"))
	probeFlag := healthsrv.NewProbeFlag("rpki_validator")

	healthServer := healthsrv.NewServer(cfg.Service.HTTPListen, logger.Named("healthsrv"),
		healthsrv.DBChecker{Pool: pool}, probeFlag)
	if err := healthServer.Start(); err != nil {
		logger.Fatal("failed to start health server", zap.Error(err))
	}

	if err := rpkidetect.ProbeStartup(ctx, validator, probeFlag, startupProbeBudget, logger.Named("rpkidetect.probe")); err != nil {
		logger.Fatal("rpki validator did not become reachable within the startup budget", zap.Error(err))
	}
	logger.Info("rpki validator startup probe succeeded")

	features := store.NewFeatureStore(pool)
	detections := store.NewDetectionStore(pool)
	state := store.NewStageStateStore(pool, model.StageRPKI)
	engine := rpkidetect.NewEngine(features, detections, state, validator, logger.Named("rpkidetect.engine"))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		engine.Run(ctx, cfg.Detector.PollInterval())
	}()

	logger.Info("rpki detector started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	shutdownTimeout := time.Duration(cfg.Service.ShutdownTimeoutSeconds) * time.Second
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("health server shutdown error", zap.Error(err))
	}

	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("rpki detector stopped gracefully")
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timeout reached, validation loop may not have finished")
	}
}
