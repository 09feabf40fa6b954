package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/genetic-risk-server/internal/api"
	"github.com/genetic-risk-server/internal/config"
	"github.com/genetic-risk-server/internal/database"
	"github.com/genetic-risk-server/internal/logging"
	"github.com/genetic-risk-server/internal/modelstore"
	"github.com/genetic-risk-server/internal/repository"
	"github.com/genetic-risk-server/internal/service"
)

func main() {
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}
	cfg := configManager.GetConfig()

	logger := logging.New(cfg.Logging)
	logger.WithField("port", cfg.Server.Port).Info("Starting genetic risk server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Catalog database
	db, err := database.NewConnection(ctx, &cfg.Database, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to catalog database")
	}
	defer db.Close()

	// Schema migrations
	runner, err := database.NewMigrationRunner(configManager.GetDatabaseURL(), cfg.Database.MigrationsPath, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create migration runner")
	}
	if err := runner.Up(); err != nil {
		logger.WithError(err).Fatal("Failed to run migrations")
	}
	if err := runner.Close(); err != nil {
		logger.WithError(err).Warn("Failed to close migration runner")
	}

	// Model and input document store
	models, err := modelstore.NewRedisModelStore(ctx, &cfg.ModelStore, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to model store")
	}
	defer models.Close()

	// Repositories and prediction pipeline
	catalog := repository.NewCatalogRepository(db.Pool, logger)
	patients := repository.NewPatientRepository(db.Pool, logger)
	predictions := repository.NewPredictionRepository(db.Pool, logger)

	builder := service.NewFeatureBuilder(catalog, logger)
	scorer := service.NewRiskScorer(models, logger)
	predictor := service.NewPredictor(catalog, patients, predictions, models, builder, scorer, logger)

	server := api.NewServer(cfg, logger, predictor, db, models)

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down")
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	logger.Info("Server stopped")
}
