package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/cobuy/internal/api"
	"github.com/persistorai/cobuy/internal/artifact"
	"github.com/persistorai/cobuy/internal/config"
	"github.com/persistorai/cobuy/internal/db"
	"github.com/persistorai/cobuy/internal/service"
	"github.com/persistorai/cobuy/internal/ws"
)

const shutdownTimeout = 15 * time.Second

func trainerConfig(cfg *config.Config) service.TrainerConfig {
	return service.TrainerConfig{
		Dim:           cfg.EmbeddingDim,
		Epochs:        cfg.TrainEpochs,
		BatchSize:     cfg.TrainBatchSize,
		LearningRate:  cfg.LearningRate,
		NegativeRatio: cfg.NegativeRatio,
		MaxSamples:    cfg.MaxSamples,
		Timeout:       cfg.TrainTimeout,
		Seed:          cfg.TrainSeed,
	}
}

// runServer wires every component and serves until ctx is cancelled.
//
//nolint:funlen // sequential wiring reads best in one place.
func runServer(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	gin.SetMode(gin.ReleaseMode)

	log.WithFields(logrus.Fields{
		"version":      config.Version,
		"backend":      cfg.HistoryBackend,
		"artifact_dir": cfg.ArtifactDir,
	}).Info("starting cobuy")

	be, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer be.Close()

	artifacts, err := artifact.NewStore(cfg.ArtifactDir, log)
	if err != nil {
		return fmt.Errorf("opening artifact store: %w", err)
	}

	// The hub outlives ctx so it can drain clients during shutdown.
	hub := ws.NewHub(log)
	go hub.Run(context.WithoutCancel(ctx))

	locks := service.NewMerchantLocks()
	trainer := service.NewTrainer(be, artifacts, be, hub, locks, log, trainerConfig(cfg))
	recommender := service.NewRecommender(artifacts, be, log, cfg.RecommendTopN)
	modelMgr := service.NewModelManager(artifacts, locks, hub, log)

	workerCtx, stopWorkers := context.WithCancel(context.WithoutCancel(ctx))
	defer stopWorkers()

	worker := service.NewTrainWorker(trainer, log, cfg.TrainQueueSize, cfg.TrainWorkers)
	workerDone := make(chan error, 1)
	go func() { workerDone <- worker.Run(workerCtx) }()

	admin := service.NewAdminService(be, worker, log)

	if be.pool != nil && cfg.ListenSales {
		bridge := db.NewNotifyBridge(log, be.pool, worker, hub)
		if err := bridge.Start(workerCtx); err != nil {
			return fmt.Errorf("starting sales bridge: %w", err)
		}
	}

	router := api.NewRouter(ctx, &api.RouterDeps{
		Log:           log,
		Backend:       be,
		Hub:           hub,
		Trainer:       trainer,
		Recommender:   recommender,
		Models:        modelMgr,
		Queue:         worker,
		Admin:         admin,
		CORSOrigins:   cfg.CORSOrigins,
		Version:       config.Version,
		ArtifactDir:   cfg.ArtifactDir,
		SchemaVersion: be.schemaVersion,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.TrainTimeout + 30*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{
		Addr:              cfg.MetricsAddr(),
		Handler:           metricsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 2)
	go func() {
		log.WithField("addr", srv.Addr).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		log.WithField("addr", metricsSrv.Addr).Info("metrics server listening")
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case runErr = <-serveErr:
		log.WithError(runErr).Error("server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	hub.Shutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http server shutdown")
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("metrics server shutdown")
	}

	stopWorkers()
	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
		log.Warn("train workers did not stop before the shutdown deadline")
	}

	log.Info("cobuy stopped")

	return runErr
}
