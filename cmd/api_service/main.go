package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	apihttp "github.com/relayline/wabroadcast/internal/api_service/transport/http"
	"github.com/relayline/wabroadcast/internal/platform/config"
	"github.com/relayline/wabroadcast/internal/platform/database"
	"github.com/relayline/wabroadcast/internal/platform/logger"
	"github.com/relayline/wabroadcast/internal/platform/messagebroker"
	pgrepo "github.com/relayline/wabroadcast/internal/repository/postgres"
	schedapp "github.com/relayline/wabroadcast/internal/scheduler_service/app"
	schedpg "github.com/relayline/wabroadcast/internal/scheduler_service/repository/postgres"
	"github.com/relayline/wabroadcast/internal/whatsapp"
)

const serviceName = "api-service"

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

	waClient, err := whatsapp.NewClient(log, cfg.WhatsAppAPIBaseURL, cfg.WhatsAppAccessToken,
		cfg.WhatsAppPhoneNumberID, cfg.WhatsAppBusinessAccountID, nil)
	if err != nil {
		log.Error("Failed to initialize WhatsApp client", "error", err)
		os.Exit(1)
	}

	campaignRepo := pgrepo.NewPgCampaignRepository(dbPool, log)
	contactRepo := pgrepo.NewPgContactRepository(dbPool, log)
	templateRepo := pgrepo.NewPgTemplateRepository(dbPool, log)
	responseRepo := pgrepo.NewPgResponseRepository(dbPool, log)
	jobRepo := schedpg.NewPgScheduledJobRepository(dbPool, log)

	bridge := schedapp.NewSchedulerBridge(jobRepo, campaignRepo, log)
	normalizer := whatsapp.PhoneNormalizer{CountryCode: cfg.DefaultCountryCode, LocalLength: cfg.LocalNumberLength}
	validate := validator.New()

	campaignHandler := apihttp.NewCampaignHandler(campaignRepo, templateRepo, contactRepo, bridge, log, validate)
	router := apihttp.NewRouter(apihttp.RouterDeps{
		Campaigns: campaignHandler,
		Webhooks:  apihttp.NewWebhookHandler(cfg.WhatsAppVerifyToken, natsClient, log),
		Responses: apihttp.NewResponseHandler(waClient, responseRepo, normalizer, log, validate),
		Calendar:  apihttp.NewCalendarHandler(campaignHandler, log, validate),
		Templates: apihttp.NewTemplateHandler(waClient, templateRepo, log),
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.APIServicePort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, groupCtx := errgroup.WithContext(mainCtx)

	g.Go(func() error {
		log.Info("HTTP server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown failed", "error", err)
		}
		mainCancel()
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Service exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("Service stopped gracefully")
}
