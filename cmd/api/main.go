package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"report-approval-workflow/internal/api"
	"report-approval-workflow/internal/approval"
	"report-approval-workflow/internal/config"
	"report-approval-workflow/internal/logging"
	"report-approval-workflow/internal/storage"
	appTemporal "report-approval-workflow/internal/temporal"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger, err := logging.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	store, err := storage.Open(cfg)
	if err != nil {
		logger.Fatal("open store", zap.Error(err))
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := store.Ping(ctx); err != nil {
		logger.Fatal("store ping", zap.Error(err))
	}

	blob, err := storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioUseSSL, cfg.MinioBucket)
	if err != nil {
		logger.Fatal("connect minio", zap.Error(err))
	}

	temporalClient, err := client.Dial(client.Options{
		HostPort:  cfg.TemporalAddress,
		Namespace: cfg.TemporalNamespace,
	})
	if err != nil {
		logger.Fatal("connect temporal", zap.Error(err))
	}
	defer temporalClient.Close()

	reviews := &appTemporal.ReviewStarter{
		Client:         temporalClient,
		TaskQueue:      cfg.TemporalTaskQueue,
		IDPrefix:       cfg.WorkflowIDPrefix,
		ResyncInterval: cfg.ReviewResync,
	}
	svc := approval.NewService(store, logger.Named("approval"))

	// The in-memory store is only visible to this process, so local mode
	// runs the review worker here instead of in cmd/worker.
	if cfg.IsLocal() {
		w := worker.New(temporalClient, cfg.TemporalTaskQueue, worker.Options{})
		appTemporal.RegisterReview(w, &appTemporal.Activities{
			Reviews: svc,
			Archive: blob,
			Logger:  logger.Named("activities"),
		})
		if err := w.Start(); err != nil {
			logger.Fatal("start in-process worker", zap.Error(err))
		}
		defer w.Stop()
		logger.Info("in-process worker running", zap.String("task_queue", cfg.TemporalTaskQueue))
	}

	h := api.NewHandler(cfg, svc, store, blob, reviews, logger.Named("api"))
	router := api.NewRouter(h)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("api listening", zap.String("port", cfg.HTTPPort), zap.String("env", cfg.AppEnv))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
	}
}
