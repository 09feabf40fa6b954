package domain

import (
	"context"
)

// VariantCatalog is the read-only Reference Catalog Accessor. All lookups
// are exact-match and side-effect free; absence is ErrNotFound, never a
// default value.
type VariantCatalog interface {
	// FindVariant looks a variant up by its reference identifier (rsID).
	FindVariant(ctx context.Context, rsid string) (*Variant, error)

	// AssociatedVariantIDs returns the ids of all variants linked to the
	// disease. An empty set is not an error.
	AssociatedVariantIDs(ctx context.Context, diseaseID int64) (map[int64]struct{}, error)

	// FindDisease looks a disease up by name, case-sensitively.
	FindDisease(ctx context.Context, name string) (*Disease, error)
}

// ModelProvider returns the most recently trained classifier for a disease.
// Concurrent requests may observe different "latest" versions while a new
// model is being published; a single request always uses one version.
type ModelProvider interface {
	// LatestModel returns the newest model by creation timestamp, or
	// ErrModelNotFound when the disease has no trained model.
	LatestModel(ctx context.Context, diseaseID int64) (*TrainedModel, error)
}

// PatientStore persists patient records. Patients are created once per
// prediction request and never mutated.
type PatientStore interface {
	CreatePatient(ctx context.Context, patient *Patient) error
}

// PredictionStore persists append-only prediction records.
type PredictionStore interface {
	CreatePrediction(ctx context.Context, prediction *Prediction) error
	PredictionsByPatient(ctx context.Context, patientID int64) ([]*Prediction, error)
}

// InputArchive stores the raw submitted SNPs and derived features for a
// scored request. Archival is best effort; a failed write must not fail
// the prediction.
type InputArchive interface {
	ArchiveInput(ctx context.Context, input *GeneticInput) error
}
