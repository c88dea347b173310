package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brightreach/leadengine/internal/client"
	"github.com/brightreach/leadengine/internal/config"
	"github.com/brightreach/leadengine/internal/database"
	"github.com/brightreach/leadengine/internal/logger"
	"github.com/brightreach/leadengine/internal/queue"
	"github.com/brightreach/leadengine/internal/repository"
	"github.com/brightreach/leadengine/internal/services"
	"github.com/brightreach/leadengine/internal/worker"
)

func main() {
	// Initialize structured logger
	logger.Init()
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger.Info(ctx, "Worker starting",
		"poll_interval", cfg.Worker.PollInterval,
		"max_delivery_attempts", cfg.Worker.MaxDeliveryAttempts)

	// Initialize database connection
	dbWrapper, err := database.InitFromConfig(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer dbWrapper.Close()

	logger.Info(ctx, "Database connection established")

	// Initialize queue client
	jobQueue, err := queue.NewDBQueue(dbWrapper.DB)
	if err != nil {
		log.Fatalf("Failed to initialize queue: %v", err)
	}
	defer jobQueue.Close()

	logger.Info(ctx, "Queue initialized")

	// Initialize repositories
	leadRepo := repository.NewLeadRepository(dbWrapper.DB)
	profileRepo := repository.NewProfileRepository(dbWrapper.DB)
	sequenceRepo := repository.NewSequenceRepository(dbWrapper.DB)

	// Initialize the outbound notification client
	notifier := client.NewNotifierClient(
		cfg.Notifier.URL,
		cfg.Notifier.Token,
		cfg.Notifier.Timeout,
	)

	// Create worker processor
	processor := worker.NewProcessor(worker.ProcessorConfig{
		Queue:               jobQueue,
		LeadRepo:            leadRepo,
		ProfileRepo:         profileRepo,
		SequenceRepo:        sequenceRepo,
		Validator:           services.NewValidator(),
		Qualifier:           services.NewQualifier(),
		Notifier:            notifier,
		PollInterval:        cfg.Worker.PollInterval,
		MaxDeliveryAttempts: cfg.Worker.MaxDeliveryAttempts,
	})

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Create context for worker
	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Start worker in a goroutine
	workerErrors := make(chan error, 1)
	go func() {
		workerErrors <- processor.Start(workerCtx)
	}()

	logger.Info(ctx, "Worker started successfully")

	// Wait for shutdown signal or worker error
	select {
	case err := <-workerErrors:
		if err != nil && err != context.Canceled {
			logger.Error(ctx, "Worker error", "error", err.Error())
		}

	case sig := <-sigChan:
		logger.Info(ctx, "Received shutdown signal", "signal", sig.String())

		// Cancel worker context to trigger graceful shutdown
		cancel()

		// Wait for worker to finish with timeout
		shutdownTimeout := time.NewTimer(30 * time.Second)
		defer shutdownTimeout.Stop()

		select {
		case <-workerErrors:
			logger.Info(ctx, "Worker stopped gracefully")
		case <-shutdownTimeout.C:
			logger.Warn(ctx, "Worker shutdown timeout exceeded, forcing exit")
		}
	}

	logger.Info(ctx, "Worker shutdown complete")
}
