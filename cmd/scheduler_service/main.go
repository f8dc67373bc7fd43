package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/relayline/wabroadcast/internal/platform/config"
	"github.com/relayline/wabroadcast/internal/platform/database"
	"github.com/relayline/wabroadcast/internal/platform/logger"
	"github.com/relayline/wabroadcast/internal/platform/messagebroker"
	pgrepo "github.com/relayline/wabroadcast/internal/repository/postgres"
	"github.com/relayline/wabroadcast/internal/scheduler_service/app"
	schedpg "github.com/relayline/wabroadcast/internal/scheduler_service/repository/postgres"
)

const serviceName = "scheduler-service"

func main() {
	mainCtx, mainCancel := context.WithCancel(context.Background())
	defer mainCancel()

	cfg, err := config.Load(serviceName)
	if err != nil {
		logger.New(serviceName, "info").Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(serviceName, cfg.LogLevel)
	log.Info("Starting service...")

	dbPool, err := database.NewDBPool(mainCtx, cfg.PostgresDSN)
	if err != nil {
		log.Error("Failed to initialize database connection pool", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()
	log.Info("Database connection pool initialized")

	natsClient, err := messagebroker.NewNATSClient(cfg.NATSUrl, serviceName, log)
	if err != nil {
		log.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer natsClient.Close()
	log.Info("NATS connection initialized")

	scheduledJobRepo := schedpg.NewPgScheduledJobRepository(dbPool, log)
	campaignRepo := pgrepo.NewPgCampaignRepository(dbPool, log)

	bridge := app.NewSchedulerBridge(scheduledJobRepo, campaignRepo, log)
	if recovered, err := bridge.RecoverStranded(mainCtx); err != nil {
		log.Error("Stranded campaign recovery failed", "error", err)
	} else if recovered > 0 {
		log.Info("Stranded campaigns re-enqueued", "count", recovered)
	}

	pollerCfg := app.PollerConfig{
		PollingInterval:  cfg.SchedulerPollingInterval,
		JobBatchSize:     cfg.SchedulerJobBatchSize,
		MaxAttempts:      cfg.SchedulerMaxAttempts,
		RetryBackoffBase: cfg.SchedulerRetryBackoffBase,
	}
	jobPoller := app.NewJobPoller(scheduledJobRepo, natsClient, log, pollerCfg)

	g, groupCtx := errgroup.WithContext(mainCtx)

	g.Go(func() error {
		return jobPoller.Run(groupCtx)
	})

	g.Go(func() error {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-sigCh:
			log.Info("Shutdown signal received", "signal", sig.String())
			mainCancel()
			return nil
		case <-groupCtx.Done():
			return groupCtx.Err()
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Service exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("Service stopped gracefully")
}
