package main

import (
	"log"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

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

	if err := cfg.RequireSharedStore("worker"); err != nil {
		logger.Fatal("refusing to start", zap.Error(err))
	}

	store, err := storage.Open(cfg)
	if err != nil {
		logger.Fatal("open store", zap.Error(err))
	}
	defer store.Close()

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

	activities := &appTemporal.Activities{
		Reviews: approval.NewService(store, logger.Named("approval")),
		Archive: blob,
		Logger:  logger.Named("activities"),
	}

	w := worker.New(temporalClient, cfg.TemporalTaskQueue, worker.Options{})
	appTemporal.RegisterReview(w, activities)

	logger.Info("worker running", zap.String("task_queue", cfg.TemporalTaskQueue))
	if err := w.Run(worker.InterruptCh()); err != nil {
		logger.Fatal("worker stopped with error", zap.Error(err))
	}
}
