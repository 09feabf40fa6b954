package modelstore

import (
	"fmt"
	"math"

	"github.com/genetic-risk-server/internal/domain"
)

// classifierTypeLogistic is the only artifact type currently published by
// the training side: a median imputer + standard scaler + logistic
// regression, flattened to its inference-time parameters.
const classifierTypeLogistic = "logistic_pipeline"

// LogisticPipeline is a deserialized logistic-regression classifier. It
// reproduces the training pipeline at inference time: impute missing
// channels with the training medians, standardize, then apply the logistic
// function to the linear term.
type LogisticPipeline struct {
	ImputerMedians []float64 `json:"imputer_medians"`
	ScalerMeans    []float64 `json:"scaler_means"`
	ScalerScales   []float64 `json:"scaler_scales"`
	Coefficients   []float64 `json:"coefficients"`
	Intercept      float64   `json:"intercept"`
}

// validate checks that all parameter vectors agree on the feature length
func (p *LogisticPipeline) validate() error {
	n := len(p.Coefficients)
	if n == 0 {
		return fmt.Errorf("logistic pipeline has no coefficients")
	}
	if len(p.ScalerMeans) != n || len(p.ScalerScales) != n {
		return fmt.Errorf("scaler parameters disagree with coefficient length %d", n)
	}
	if len(p.ImputerMedians) != 0 && len(p.ImputerMedians) != n {
		return fmt.Errorf("imputer medians disagree with coefficient length %d", n)
	}
	return nil
}

// PredictProba returns the probability of the positive class
func (p *LogisticPipeline) PredictProba(features []float64) (float64, error) {
	if len(features) != len(p.Coefficients) {
		return 0, fmt.Errorf("expected %d features, got %d: %w",
			len(p.Coefficients), len(features), domain.ErrFeatureShapeMismatch)
	}

	z := p.Intercept
	for i, v := range features {
		if math.IsNaN(v) && len(p.ImputerMedians) == len(p.Coefficients) {
			v = p.ImputerMedians[i]
		}
		scale := p.ScalerScales[i]
		if scale == 0 {
			// A zero-variance training column scales to the mean itself
			scale = 1
		}
		z += p.Coefficients[i] * ((v - p.ScalerMeans[i]) / scale)
	}

	return 1.0 / (1.0 + math.Exp(-z)), nil
}
