package main

import (
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"property-workflow/internal/approval"
	"property-workflow/internal/config"
	"property-workflow/internal/logging"
	"property-workflow/internal/storage"
	appTemporal "property-workflow/internal/temporal"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("info", "text").Fatalf("load config: %v", err)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	store, err := storage.NewPostgresStore(cfg.PostgresDSN)
	if err != nil {
		logger.Fatalf("connect postgres: %v", err)
	}
	defer store.Close()

	temporalClient, err := client.Dial(client.Options{
		HostPort:  cfg.TemporalAddress,
		Namespace: cfg.TemporalNamespace,
	})
	if err != nil {
		logger.Fatalf("connect temporal: %v", err)
	}
	defer temporalClient.Close()

	activities := &appTemporal.Activities{
		Store:  store,
		Engine: approval.NewEngine(store, logger.WithField("component", "approval")),
	}

	w := worker.New(temporalClient, cfg.TemporalTaskQueue, worker.Options{})
	w.RegisterWorkflowWithOptions(appTemporal.RepairSweepWorkflow, workflow.RegisterOptions{Name: appTemporal.RepairSweepWorkflowName})
	w.RegisterWorkflowWithOptions(appTemporal.DocumentReceivedWorkflow, workflow.RegisterOptions{Name: appTemporal.DocumentReceivedWorkflowName})
	w.RegisterActivity(activities.ListPropertyIDsActivity)
	w.RegisterActivity(activities.RepairPropertyActivity)
	w.RegisterActivity(activities.RecordDocumentActivity)

	logger.Infof("worker running on task queue %s", cfg.TemporalTaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		logger.Fatalf("worker stopped with error: %v", err)
	}
}
