package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brightreach/leadengine/internal/analyzer"
	"github.com/brightreach/leadengine/internal/config"
	"github.com/brightreach/leadengine/internal/database"
	"github.com/brightreach/leadengine/internal/handlers"
	"github.com/brightreach/leadengine/internal/logger"
	"github.com/brightreach/leadengine/internal/queue"
	"github.com/brightreach/leadengine/internal/repository"
	"github.com/brightreach/leadengine/internal/services"
	"github.com/gorilla/mux"
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

	logger.Info(ctx, "API Server starting",
		"host", cfg.API.Host,
		"port", cfg.API.Port,
		"auth_enabled", cfg.Auth.Enabled,
		"analyzer_enabled", cfg.AnalyzerEnabled())

	// Initialize database connection
	dbWrapper, err := database.InitFromConfig(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer dbWrapper.Close()

	logger.Info(ctx, "Database connection established")

	// Run database migrations
	if err := database.RunMigrations(dbWrapper, "./migrations"); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	logger.Info(ctx, "Database migrations completed")

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

	// Initialize the website analyzer when configured
	var siteAnalyzer handlers.WebsiteAnalyzer
	if cfg.AnalyzerEnabled() {
		a, err := analyzer.NewAnalyzer(ctx, cfg.Analyzer.GeminiAPIKey, cfg.Analyzer.Model)
		if err != nil {
			log.Fatalf("Failed to initialize website analyzer: %v", err)
		}
		defer a.Close()
		siteAnalyzer = a
	}

	// Initialize handlers
	leadHandler := handlers.NewLeadHandler(leadRepo, jobQueue, services.NewValidator())
	eventsHandler := handlers.NewEventsHandler(profileRepo, services.NewTracker())
	sequenceHandler := handlers.NewSequenceHandler(sequenceRepo)
	analyzeHandler := handlers.NewAnalyzeHandler(siteAnalyzer)
	statsHandler := handlers.NewStatsHandler(leadRepo)

	// Initialize middleware
	authMiddleware := handlers.NewAuthMiddleware(cfg)
	recoveryMiddleware := handlers.NewRecoveryMiddleware()

	// Set up HTTP routes
	router := mux.NewRouter()

	// Intake endpoints with authentication and recovery middleware
	router.HandleFunc("/api/leads",
		recoveryMiddleware.Recover(
			authMiddleware.Authenticate(
				leadHandler.HandleLeadSubmission))).Methods(http.MethodPost)
	router.HandleFunc("/api/events",
		recoveryMiddleware.Recover(
			authMiddleware.Authenticate(
				eventsHandler.HandleEventBatch))).Methods(http.MethodPost)
	router.HandleFunc("/api/unsubscribe",
		recoveryMiddleware.Recover(
			authMiddleware.Authenticate(
				sequenceHandler.HandleUnsubscribe))).Methods(http.MethodPost)
	router.HandleFunc("/api/analyze",
		recoveryMiddleware.Recover(
			authMiddleware.Authenticate(
				analyzeHandler.HandleAnalyze))).Methods(http.MethodPost)

	// Stats endpoints
	router.HandleFunc("/api/stats/leads/counts",
		recoveryMiddleware.Recover(statsHandler.HandleLeadCounts)).Methods(http.MethodGet)
	router.HandleFunc("/api/stats/leads/recent",
		recoveryMiddleware.Recover(statsHandler.HandleRecentLeads)).Methods(http.MethodGet)
	router.HandleFunc("/api/leads/{id}",
		recoveryMiddleware.Recover(statsHandler.HandleGetLead)).Methods(http.MethodGet)

	// Health check endpoint
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods(http.MethodGet)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%s", cfg.API.Host, cfg.API.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info(ctx, "HTTP server listening", "address", addr)
		serverErrors <- server.ListenAndServe()
	}()

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal or server error
	select {
	case err := <-serverErrors:
		log.Fatalf("Server error: %v", err)

	case sig := <-sigChan:
		logger.Info(ctx, "Received shutdown signal", "signal", sig.String())

		// Create shutdown context with timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		// Attempt graceful shutdown
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error(ctx, "Server shutdown error", "error", err.Error())
			// Force close if graceful shutdown fails
			server.Close()
		}

		logger.Info(ctx, "Server shutdown complete")
	}
}
