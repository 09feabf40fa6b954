package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/genetic-risk-server/internal/domain"
)

// PredictionRepository persists append-only prediction records
type PredictionRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewPredictionRepository creates a new prediction repository
func NewPredictionRepository(db *pgxpool.Pool, logger *logrus.Logger) *PredictionRepository {
	return &PredictionRepository{
		db:  db,
		log: logger,
	}
}

// CreatePrediction inserts a new prediction and assigns its id and timestamp
func (r *PredictionRepository) CreatePrediction(ctx context.Context, prediction *domain.Prediction) error {
	query := `
		INSERT INTO prediction (patient_id, disease_id, probability, risk_level)
		VALUES ($1, $2, $3, $4)
		RETURNING pred_id, timestamp`

	err := r.db.QueryRow(ctx, query,
		prediction.PatientID,
		prediction.DiseaseID,
		prediction.Probability,
		prediction.RiskLevel,
	).Scan(&prediction.ID, &prediction.Timestamp)

	if err != nil {
		r.log.WithFields(logrus.Fields{
			"patient_id": prediction.PatientID,
			"disease_id": prediction.DiseaseID,
			"error":      err,
		}).Error("Failed to create prediction")
		return fmt.Errorf("creating prediction: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"pred_id":     prediction.ID,
		"patient_id":  prediction.PatientID,
		"disease_id":  prediction.DiseaseID,
		"probability": prediction.Probability,
		"risk_level":  prediction.RiskLevel,
	}).Info("Prediction recorded")

	return nil
}

// PredictionsByPatient returns all predictions for a patient, newest first
func (r *PredictionRepository) PredictionsByPatient(ctx context.Context, patientID int64) ([]*domain.Prediction, error) {
	query := `
		SELECT pred_id, patient_id, disease_id, probability, risk_level, timestamp
		FROM prediction
		WHERE patient_id = $1
		ORDER BY timestamp DESC`

	rows, err := r.db.Query(ctx, query, patientID)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"patient_id": patientID,
			"error":      err,
		}).Error("Failed to query predictions")
		return nil, fmt.Errorf("querying predictions by patient: %w", err)
	}
	defer rows.Close()

	var predictions []*domain.Prediction
	for rows.Next() {
		var p domain.Prediction
		if err := rows.Scan(
			&p.ID,
			&p.PatientID,
			&p.DiseaseID,
			&p.Probability,
			&p.RiskLevel,
			&p.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scanning prediction row: %w", err)
		}
		predictions = append(predictions, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating prediction rows: %w", err)
	}

	return predictions, nil
}
