package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"

	"property-workflow/internal/config"
	"property-workflow/internal/events"
	"property-workflow/internal/logging"
	appTemporal "property-workflow/internal/temporal"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("info", "text").Fatalf("load config: %v", err)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	minioClient, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		logger.Fatalf("connect minio: %v", err)
	}

	temporalClient, err := client.Dial(client.Options{
		HostPort:  cfg.TemporalAddress,
		Namespace: cfg.TemporalNamespace,
	})
	if err != nil {
		logger.Fatalf("connect temporal: %v", err)
	}
	defer temporalClient.Close()

	source := events.NewMinioDocumentEventSource(minioClient, cfg.MinioBucket, logger.WithField("component", "events"))
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Infof("event-handler listening for object-created events on bucket=%s", cfg.MinioBucket)
	err = source.Run(ctx, func(parent context.Context, event events.DocumentEvent) error {
		workflowID := "property-document-" + event.ObjectKey
		execCtx, cancel := context.WithTimeout(parent, 15*time.Second)
		defer cancel()

		entry := logger.WithField("workflow_id", workflowID).WithField("object", event.ObjectKey)
		_, startErr := temporalClient.ExecuteWorkflow(execCtx, client.StartWorkflowOptions{
			ID:        workflowID,
			TaskQueue: cfg.TemporalTaskQueue,
		}, appTemporal.DocumentReceivedWorkflowName, appTemporal.DocumentReceivedInput{
			PropertyID: event.PropertyID,
			Kind:       event.Kind,
			ObjectKey:  event.ObjectKey,
		})
		if startErr != nil {
			var alreadyStarted *serviceerror.WorkflowExecutionAlreadyStarted
			if errors.As(startErr, &alreadyStarted) {
				entry.Info("workflow already started")
				return nil
			}
			return fmt.Errorf("start workflow for object %s: %w", event.ObjectKey, startErr)
		}

		entry.Info("started document workflow")
		return nil
	})
	if err != nil {
		logger.Fatalf("event-handler stopped with error: %v", err)
	}
}
