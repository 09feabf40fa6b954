// Command gwas-import loads a cleaned GWAS catalog CSV into the catalog
// database. It runs the schema migrations first, so it works against an
// empty database.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/genetic-risk-server/internal/config"
	"github.com/genetic-risk-server/internal/database"
	"github.com/genetic-risk-server/internal/etl"
	"github.com/genetic-risk-server/internal/logging"
)

func main() {
	csvPath := flag.String("file", "", "path to the GWAS catalog CSV")
	flag.Parse()

	if *csvPath == "" {
		log.Fatal("usage: gwas-import -file <catalog.csv>")
	}

	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}
	cfg := configManager.GetConfig()

	logger := logging.New(cfg.Logging)

	ctx := context.Background()

	db, err := database.NewConnection(ctx, &cfg.Database, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to catalog database")
	}
	defer db.Close()

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

	f, err := os.Open(*csvPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open CSV file")
	}
	defer f.Close()

	importer := etl.NewImporter(db.Pool, logger)
	if _, err := importer.Run(ctx, f); err != nil {
		logger.WithError(err).Fatal("Import failed")
	}
}
