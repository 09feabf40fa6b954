package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/genetic-risk-server/internal/domain"
)

// PatientRepository persists patient records. One patient row is created
// per prediction request and never mutated afterward.
type PatientRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewPatientRepository creates a new patient repository
func NewPatientRepository(db *pgxpool.Pool, logger *logrus.Logger) *PatientRepository {
	return &PatientRepository{
		db:  db,
		log: logger,
	}
}

// CreatePatient inserts a new patient and assigns its id
func (r *PatientRepository) CreatePatient(ctx context.Context, patient *domain.Patient) error {
	query := `
		INSERT INTO patient (name, age, gender)
		VALUES ($1, $2, $3)
		RETURNING patient_id`

	err := r.db.QueryRow(ctx, query,
		patient.Name,
		patient.Age,
		patient.Gender,
	).Scan(&patient.ID)

	if err != nil {
		r.log.WithFields(logrus.Fields{
			"name":  patient.Name,
			"error": err,
		}).Error("Failed to create patient")
		return fmt.Errorf("creating patient: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"patient_id": patient.ID,
	}).Info("Patient created")

	return nil
}

// GetPatient retrieves a patient by id
func (r *PatientRepository) GetPatient(ctx context.Context, id int64) (*domain.Patient, error) {
	query := `SELECT patient_id, name, age, gender FROM patient WHERE patient_id = $1`

	var patient domain.Patient
	err := r.db.QueryRow(ctx, query, id).Scan(
		&patient.ID,
		&patient.Name,
		&patient.Age,
		&patient.Gender,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("patient %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("getting patient by id: %w", err)
	}

	return &patient, nil
}
