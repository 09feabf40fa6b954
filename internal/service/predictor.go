package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/genetic-risk-server/internal/domain"
)

// Predictor orchestrates one prediction request: validate disease, record
// patient, build features, score, persist. Each write is independently
// atomic; a failure after patient creation deliberately leaves the patient
// row in place (no compensating rollback).
type Predictor struct {
	catalog     domain.VariantCatalog
	patients    domain.PatientStore
	predictions domain.PredictionStore
	archive     domain.InputArchive
	builder     *FeatureBuilder
	scorer      *RiskScorer
	log         *logrus.Logger
}

// NewPredictor creates a new prediction orchestrator. The input archive
// may be nil; archival is best effort either way.
func NewPredictor(
	catalog domain.VariantCatalog,
	patients domain.PatientStore,
	predictions domain.PredictionStore,
	archive domain.InputArchive,
	builder *FeatureBuilder,
	scorer *RiskScorer,
	logger *logrus.Logger,
) *Predictor {
	return &Predictor{
		catalog:     catalog,
		patients:    patients,
		predictions: predictions,
		archive:     archive,
		builder:     builder,
		scorer:      scorer,
		log:         logger,
	}
}

// Predict runs the full pipeline for one request
func (p *Predictor) Predict(ctx context.Context, req *domain.PredictRequest) (*domain.PredictResponse, error) {
	disease, err := p.catalog.FindDisease(ctx, req.DiseaseName)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("disease %q: %w", req.DiseaseName, domain.ErrUnknownDisease)
		}
		return nil, fmt.Errorf("validating disease: %w", err)
	}

	patient := &domain.Patient{
		Name:   req.Patient.Name,
		Age:    req.Patient.Age,
		Gender: req.Patient.Gender,
	}
	if err := p.patients.CreatePatient(ctx, patient); err != nil {
		return nil, fmt.Errorf("recording patient: %w", err)
	}

	features, report, err := p.builder.BuildFeatureVector(ctx, disease.ID, req.SNPs)
	if err != nil {
		return nil, fmt.Errorf("building feature vector: %w", err)
	}
	if report.Included == 0 && report.Submitted > 0 {
		p.log.WithFields(logrus.Fields{
			"patient_id": patient.ID,
			"disease_id": disease.ID,
			"submitted":  report.Submitted,
		}).Warn("No submitted variants matched the disease catalog; scoring on default vector")
	}

	result, err := p.scorer.Score(ctx, disease.ID, features)
	if err != nil {
		// The patient row stays; only the prediction is withheld
		return nil, err
	}

	p.archiveInput(ctx, patient, req, features, result.Model.ID)

	prediction := &domain.Prediction{
		PatientID:   patient.ID,
		DiseaseID:   disease.ID,
		Probability: result.Probability,
		RiskLevel:   result.RiskLevel,
	}
	if err := p.predictions.CreatePrediction(ctx, prediction); err != nil {
		return nil, fmt.Errorf("persisting prediction: %w", err)
	}

	p.log.WithFields(logrus.Fields{
		"patient_id":  patient.ID,
		"disease":     disease.Name,
		"probability": result.Probability,
		"risk_level":  result.RiskLevel,
		"model_id":    result.Model.ID,
		"included":    report.Included,
		"submitted":   report.Submitted,
	}).Info("Prediction completed")

	return &domain.PredictResponse{
		PatientID:       patient.ID,
		Disease:         disease.Name,
		RiskProbability: result.Probability,
		RiskLevel:       result.RiskLevel,
		ModelID:         result.Model.ID,
	}, nil
}

// History returns a patient's predictions, newest first
func (p *Predictor) History(ctx context.Context, patientID int64) ([]*domain.Prediction, error) {
	return p.predictions.PredictionsByPatient(ctx, patientID)
}

// ModelInfo returns the latest model metadata for a disease by name, for
// the readiness probe
func (p *Predictor) ModelInfo(ctx context.Context, diseaseName string) (*domain.ModelMetadata, error) {
	disease, err := p.catalog.FindDisease(ctx, diseaseName)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("disease %q: %w", diseaseName, domain.ErrUnknownDisease)
		}
		return nil, fmt.Errorf("validating disease: %w", err)
	}

	model, err := p.scorer.models.LatestModel(ctx, disease.ID)
	if err != nil {
		return nil, err
	}
	return &model.Metadata, nil
}

// archiveInput stores the raw request document. Failures are logged and
// swallowed; the archive must never fail a prediction.
func (p *Predictor) archiveInput(ctx context.Context, patient *domain.Patient, req *domain.PredictRequest, features []float64, modelID string) {
	if p.archive == nil {
		return
	}

	rawSNPs := make(map[string]string, len(req.SNPs))
	for _, snp := range req.SNPs {
		rawSNPs[snp.RSID] = snp.Allele
	}
	derived := make(map[string]float64, len(domain.FeatureColumns))
	for i, col := range domain.FeatureColumns {
		if i < len(features) {
			derived[col] = features[i]
		}
	}

	input := &domain.GeneticInput{
		PatientID:       patient.ID,
		RawSNPs:         rawSNPs,
		DerivedFeatures: derived,
		ModelID:         modelID,
		Source:          "user_input",
	}
	if err := p.archive.ArchiveInput(ctx, input); err != nil {
		p.log.WithFields(logrus.Fields{
			"patient_id": patient.ID,
			"error":      err,
		}).Warn("Failed to archive genetic input")
	}
}
