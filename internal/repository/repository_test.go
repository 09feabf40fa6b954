package repository

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/genetic-risk-server/internal/config"
	"github.com/genetic-risk-server/internal/database"
	"github.com/genetic-risk-server/internal/domain"
)

// generateTestPassword creates a random password for the throwaway test
// database
func generateTestPassword() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "test_fallback_password_123"
	}
	return "test_" + hex.EncodeToString(bytes)
}

func setupTestDB(t *testing.T) (*database.DB, func()) {
	ctx := context.Background()

	testPassword := generateTestPassword()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword(testPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}

	host, err := pgContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := pgContainer.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	cfg := &config.DatabaseConfig{
		Host:            host,
		Port:            port.Int(),
		Database:        "testdb",
		Username:        "testuser",
		Password:        testPassword,
		SSLMode:         "disable",
		MaxConns:        10,
		MinConns:        2,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: time.Minute * 30,
	}

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	db, err := database.NewConnection(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Failed to create database connection: %v", err)
	}

	databaseURL := "postgres://testuser:" + testPassword + "@" + host + ":" + port.Port() + "/testdb?sslmode=disable"
	migrationRunner, err := database.NewMigrationRunner(databaseURL, "../../migrations", logger)
	if err != nil {
		t.Fatalf("Failed to create migration runner: %v", err)
	}
	if err := migrationRunner.Up(); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		migrationRunner.Close()
		db.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate PostgreSQL container: %v", err)
		}
	}

	return db, cleanup
}

// seedCatalog loads a minimal reference catalog: one disease with one
// associated SNP, plus one unassociated SNP
func seedCatalog(t *testing.T, db *database.DB) (diseaseID, associatedSNP, otherSNP int64) {
	ctx := context.Background()

	err := db.Pool.QueryRow(ctx,
		`INSERT INTO disease (name, description) VALUES ($1, $2) RETURNING disease_id`,
		"type 2 diabetes", "T2D reference entry",
	).Scan(&diseaseID)
	if err != nil {
		t.Fatalf("Failed to seed disease: %v", err)
	}

	err = db.Pool.QueryRow(ctx,
		`INSERT INTO snp (rsid, chromosome, position, risk_allele, odds_ratio, risk_allele_freq, is_significant)
		 VALUES ('rs7903146', '10', 114758349, 'T', 1.37, 0.28, TRUE)
		 RETURNING snp_id`,
	).Scan(&associatedSNP)
	if err != nil {
		t.Fatalf("Failed to seed snp: %v", err)
	}

	err = db.Pool.QueryRow(ctx,
		`INSERT INTO snp (rsid, chromosome, position, risk_allele, odds_ratio, risk_allele_freq, is_significant)
		 VALUES ('rs429358', '19', 44908684, 'C', 3.68, 0.15, TRUE)
		 RETURNING snp_id`,
	).Scan(&otherSNP)
	if err != nil {
		t.Fatalf("Failed to seed second snp: %v", err)
	}

	_, err = db.Pool.Exec(ctx,
		`INSERT INTO disease_snp (disease_id, snp_id) VALUES ($1, $2)`,
		diseaseID, associatedSNP,
	)
	if err != nil {
		t.Fatalf("Failed to seed association: %v", err)
	}

	return diseaseID, associatedSNP, otherSNP
}

func TestCatalogRepository_FindVariant(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db, cleanup := setupTestDB(t)
	defer cleanup()

	seedCatalog(t, db)

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	repo := NewCatalogRepository(db.Pool, logger)
	ctx := context.Background()

	variant, err := repo.FindVariant(ctx, "rs7903146")
	if err != nil {
		t.Fatalf("Failed to find variant: %v", err)
	}
	if variant.RSID != "rs7903146" {
		t.Errorf("Expected rsid rs7903146, got %s", variant.RSID)
	}
	if variant.Chromosome != "10" {
		t.Errorf("Expected chromosome 10, got %s", variant.Chromosome)
	}
	if variant.OddsRatio == nil || *variant.OddsRatio != 1.37 {
		t.Errorf("Expected odds ratio 1.37, got %v", variant.OddsRatio)
	}

	// Repeated reads return identical data (cache hit path included)
	again, err := repo.FindVariant(ctx, "rs7903146")
	if err != nil {
		t.Fatalf("Failed to find variant again: %v", err)
	}
	if again.ID != variant.ID || again.RSID != variant.RSID {
		t.Error("Repeated lookup returned different data")
	}

	// Unknown rsid is ErrNotFound, not a default value
	_, err = repo.FindVariant(ctx, "rs_does_not_exist")
	if err == nil {
		t.Fatal("Expected error for unknown rsid")
	}
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestCatalogRepository_AssociatedVariantIDs(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db, cleanup := setupTestDB(t)
	defer cleanup()

	diseaseID, associatedSNP, otherSNP := seedCatalog(t, db)

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	repo := NewCatalogRepository(db.Pool, logger)
	ctx := context.Background()

	ids, err := repo.AssociatedVariantIDs(ctx, diseaseID)
	if err != nil {
		t.Fatalf("Failed to get associations: %v", err)
	}
	if _, ok := ids[associatedSNP]; !ok {
		t.Error("Expected associated SNP in id set")
	}
	if _, ok := ids[otherSNP]; ok {
		t.Error("Unassociated SNP must not be in id set")
	}

	// Unknown disease yields an empty set, not an error
	empty, err := repo.AssociatedVariantIDs(ctx, 99999)
	if err != nil {
		t.Fatalf("Expected no error for unknown disease: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("Expected empty set, got %d ids", len(empty))
	}
}

func TestCatalogRepository_FindDisease(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db, cleanup := setupTestDB(t)
	defer cleanup()

	diseaseID, _, _ := seedCatalog(t, db)

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	repo := NewCatalogRepository(db.Pool, logger)
	ctx := context.Background()

	disease, err := repo.FindDisease(ctx, "type 2 diabetes")
	if err != nil {
		t.Fatalf("Failed to find disease: %v", err)
	}
	if disease.ID != diseaseID {
		t.Errorf("Expected disease id %d, got %d", diseaseID, disease.ID)
	}

	// Lookup is case-sensitive
	_, err = repo.FindDisease(ctx, "Type 2 Diabetes")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for case mismatch, got %v", err)
	}
}

func TestPatientRepository_CreateAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db, cleanup := setupTestDB(t)
	defer cleanup()

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	repo := NewPatientRepository(db.Pool, logger)
	ctx := context.Background()

	patient := &domain.Patient{Name: "Jordan Doe", Age: 42, Gender: "female"}
	if err := repo.CreatePatient(ctx, patient); err != nil {
		t.Fatalf("Failed to create patient: %v", err)
	}
	if patient.ID == 0 {
		t.Fatal("Expected patient id to be assigned")
	}

	got, err := repo.GetPatient(ctx, patient.ID)
	if err != nil {
		t.Fatalf("Failed to get patient: %v", err)
	}
	if got.Name != "Jordan Doe" || got.Age != 42 || got.Gender != "female" {
		t.Errorf("Patient round trip mismatch: %+v", got)
	}
}

func TestPredictionRepository_CreateAndList(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db, cleanup := setupTestDB(t)
	defer cleanup()

	diseaseID, _, _ := seedCatalog(t, db)

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	patients := NewPatientRepository(db.Pool, logger)
	predictions := NewPredictionRepository(db.Pool, logger)
	ctx := context.Background()

	patient := &domain.Patient{Name: "Jordan Doe", Age: 42, Gender: "female"}
	if err := patients.CreatePatient(ctx, patient); err != nil {
		t.Fatalf("Failed to create patient: %v", err)
	}

	first := &domain.Prediction{
		PatientID:   patient.ID,
		DiseaseID:   diseaseID,
		Probability: 0.42,
		RiskLevel:   domain.RiskMedium,
	}
	if err := predictions.CreatePrediction(ctx, first); err != nil {
		t.Fatalf("Failed to create prediction: %v", err)
	}
	if first.ID == 0 || first.Timestamp.IsZero() {
		t.Fatal("Expected prediction id and timestamp to be assigned")
	}

	second := &domain.Prediction{
		PatientID:   patient.ID,
		DiseaseID:   diseaseID,
		Probability: 0.81,
		RiskLevel:   domain.RiskHigh,
	}
	if err := predictions.CreatePrediction(ctx, second); err != nil {
		t.Fatalf("Failed to create second prediction: %v", err)
	}

	list, err := predictions.PredictionsByPatient(ctx, patient.ID)
	if err != nil {
		t.Fatalf("Failed to list predictions: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("Expected 2 predictions, got %d", len(list))
	}
	// Newest first
	if list[0].Timestamp.Before(list[1].Timestamp) {
		t.Error("Expected predictions ordered newest first")
	}

	empty, err := predictions.PredictionsByPatient(ctx, 99999)
	if err != nil {
		t.Fatalf("Expected no error for patient without predictions: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("Expected no predictions, got %d", len(empty))
	}
}
