package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"report-approval-workflow/internal/config"
	"report-approval-workflow/internal/events"
	"report-approval-workflow/internal/logging"
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

	minioClient, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
	})
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

	starter := &appTemporal.ReviewStarter{
		Client:         temporalClient,
		TaskQueue:      cfg.TemporalTaskQueue,
		IDPrefix:       cfg.WorkflowIDPrefix,
		ResyncInterval: cfg.ReviewResync,
	}

	source := events.NewMinioAttachmentEventSource(minioClient, cfg.MinioBucket, "", "")
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("event-handler listening for object-created events", zap.String("bucket", cfg.MinioBucket))
	if err := source.Run(ctx, events.StartReviewOnAttachment(starter, logger.Named("events"), 15*time.Second)); err != nil {
		logger.Fatal("event-handler stopped with error", zap.Error(err))
	}
}
