package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quoting/internal/api"
	"quoting/internal/cin7"
	"quoting/internal/config"
	"quoting/internal/database"
	"quoting/internal/dispatch"
	"quoting/internal/events"
	"quoting/internal/logger"
	"quoting/internal/shopify"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration: ", err)
	}

	// Initialize logger
	logger := logger.New(cfg.LogLevel)

	// Initialize database
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to connect to database: %v", err)
	}

	// Outbound request governor
	queue := dispatch.New(dispatch.Options{
		PerSecond:   cfg.RatePerSecond,
		PerMinute:   cfg.RatePerMinute,
		MaxAttempts: cfg.MaxAttempts,
		Logger:      logger,
	})
	queue.Start()

	publisher := events.NewPublisher(cfg.KafkaBrokers, logger)

	cin7Client := cin7.NewClient(cin7.ClientConfig{
		Target:         cfg.Cin7Target,
		BaseURL:        cfg.Cin7BaseURL,
		Username:       cfg.Cin7Username,
		APIKey:         cfg.Cin7APIKey,
		AccountID:      cfg.Cin7AccountID,
		ApplicationKey: cfg.Cin7ApplicationKey,
		DryRun:         cfg.DryRun,
	}, logger)

	deps := api.Dependencies{
		Cin7:      cin7Client,
		Queue:     queue,
		Publisher: publisher,
	}
	if cfg.ShopifyStoreURL != "" && cfg.ShopifyAccessToken != "" {
		shopifyClient := shopify.NewClient(cfg.ShopifyStoreURL, cfg.ShopifyAccessToken, cfg.ShopifyAPIVersion, logger)
		deps.Shopify = shopifyClient
		deps.Products = shopifyClient
	} else {
		logger.Warn("Shopify credentials not configured, draft order creation disabled")
	}

	server := api.New(cfg, logger, db, deps)

	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		logger.Error("Server shutdown: %v", err)
	}

	// Drain in-flight dispatches before closing the event stream.
	queue.Stop()
	publisher.Close()
	db.Close()
}
