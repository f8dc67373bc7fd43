package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/relayline/wabroadcast/internal/platform/config"
	"github.com/relayline/wabroadcast/internal/platform/database"
	"github.com/relayline/wabroadcast/internal/platform/logger"
	"github.com/relayline/wabroadcast/internal/platform/messagebroker"
	pgrepo "github.com/relayline/wabroadcast/internal/repository/postgres"
	"github.com/relayline/wabroadcast/internal/webhook_processor_service/adapters/automation"
	"github.com/relayline/wabroadcast/internal/webhook_processor_service/app"
	"github.com/relayline/wabroadcast/internal/whatsapp"
)

const serviceName = "webhook-processor-service"

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

	campaignRepo := pgrepo.NewPgCampaignRepository(dbPool, log)
	contactRepo := pgrepo.NewPgContactRepository(dbPool, log)
	templateRepo := pgrepo.NewPgTemplateRepository(dbPool, log)
	messageRepo := pgrepo.NewPgMessageRepository(dbPool, log)
	responseRepo := pgrepo.NewPgResponseRepository(dbPool, log)
	notificationRepo := pgrepo.NewPgNotificationRepository(dbPool, log)

	normalizer := whatsapp.PhoneNormalizer{CountryCode: cfg.DefaultCountryCode, LocalLength: cfg.LocalNumberLength}
	forwarder := automation.NewForwarder(cfg.AutomationWebhookURL, log)

	statusProcessor := app.NewStatusProcessor(messageRepo, campaignRepo, notificationRepo, log)
	responseProcessor := app.NewResponseProcessor(contactRepo, messageRepo, responseRepo, notificationRepo, forwarder, normalizer, log)
	consumer := app.NewEventConsumer(statusProcessor, responseProcessor, templateRepo, log)

	metricsServer := &http.Server{Addr: ":9092", Handler: promhttp.Handler()}

	g, groupCtx := errgroup.WithContext(mainCtx)

	g.Go(func() error {
		log.Info("Subscribing to raw webhook events", "subject", messagebroker.SubjectWhatsAppEventsRaw, "queue_group", app.QueueGroup)
		return natsClient.SubscribeToSubjectWithQueue(groupCtx, messagebroker.SubjectWhatsAppEventsRaw, app.QueueGroup, consumer.Handler(groupCtx))
	})

	g.Go(func() error {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-sigCh:
			log.Info("Shutdown signal received", "signal", sig.String())
		case <-groupCtx.Done():
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
		mainCancel()
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Service exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("Service stopped gracefully")
}
