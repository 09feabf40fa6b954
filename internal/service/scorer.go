package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/genetic-risk-server/internal/domain"
)

// ScoreResult is the outcome of scoring one feature vector
type ScoreResult struct {
	Probability float64
	RiskLevel   domain.RiskLevel
	Model       domain.ModelMetadata
}

// RiskScorer applies the latest trained classifier for a disease to a
// feature vector
type RiskScorer struct {
	models domain.ModelProvider
	log    *logrus.Logger
}

// NewRiskScorer creates a new risk scorer
func NewRiskScorer(models domain.ModelProvider, logger *logrus.Logger) *RiskScorer {
	return &RiskScorer{
		models: models,
		log:    logger,
	}
}

// Score fetches the latest model for the disease and returns the positive
// class probability and its risk band. A disease with no trained model is
// a fatal ErrModelNotFound; no fallback probability is fabricated.
func (s *RiskScorer) Score(ctx context.Context, diseaseID int64, features []float64) (*ScoreResult, error) {
	model, err := s.models.LatestModel(ctx, diseaseID)
	if err != nil {
		return nil, err
	}

	// Guards against version skew between catalog and model, not against
	// builder bugs
	if len(features) != len(model.Metadata.FeatureColumns) {
		s.log.WithFields(logrus.Fields{
			"disease_id":    diseaseID,
			"model_id":      model.Metadata.ID,
			"vector_len":    len(features),
			"model_columns": len(model.Metadata.FeatureColumns),
		}).Error("Feature vector does not match model columns")
		return nil, fmt.Errorf("model %s expects %d features, got %d: %w",
			model.Metadata.ID, len(model.Metadata.FeatureColumns), len(features),
			domain.ErrFeatureShapeMismatch)
	}

	probability, err := model.Classifier.PredictProba(features)
	if err != nil {
		if errors.Is(err, domain.ErrFeatureShapeMismatch) {
			return nil, err
		}
		return nil, fmt.Errorf("scoring feature vector: %w", err)
	}

	return &ScoreResult{
		Probability: probability,
		RiskLevel:   RiskLevelFor(probability),
		Model:       model.Metadata,
	}, nil
}

// RiskLevelFor maps a probability to its risk band. The comparisons are
// strict: 0.7 is Medium and 0.4 is Low, matching the visualization layer.
func RiskLevelFor(probability float64) domain.RiskLevel {
	switch {
	case probability > 0.7:
		return domain.RiskHigh
	case probability > 0.4:
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}
