package domain

import (
	"time"
)

// Core Enums and Types

// RiskLevel represents the categorical disease-risk band derived from a probability
type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

// FeatureColumns is the canonical feature order consumed by every trained
// classifier. A model whose declared columns differ in length from a built
// vector is rejected before scoring.
var FeatureColumns = []string{"odds_ratio", "risk_allele_freq", "chromosome", "position"}

// Reference Catalog Models

// Variant represents an immutable GWAS reference variant (SNP)
type Variant struct {
	ID             int64    `json:"snp_id"`
	RSID           string   `json:"rsid"`
	GeneID         *int64   `json:"gene_id,omitempty"`
	Chromosome     string   `json:"chromosome"`
	Position       *int64   `json:"position,omitempty"`
	RiskAllele     string   `json:"risk_allele"`
	OddsRatio      *float64 `json:"odds_ratio,omitempty"`
	RiskAlleleFreq *float64 `json:"risk_allele_freq,omitempty"`
	PValue         *float64 `json:"p_value,omitempty"`
	IsSignificant  bool     `json:"is_significant"`
}

// Gene represents a gene record the catalog links variants to
type Gene struct {
	ID          int64  `json:"gene_id"`
	Name        string `json:"gene_name"`
	Description string `json:"description,omitempty"`
}

// Disease represents an immutable disease reference record
type Disease struct {
	ID          int64  `json:"disease_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Patient and Prediction Models

// Patient represents a patient created once per prediction request
type Patient struct {
	ID     int64  `json:"patient_id"`
	Name   string `json:"name"`
	Age    int    `json:"age"`
	Gender string `json:"gender"`
}

// VariantObservation is a caller-submitted (rsid, allele) pair. It is
// transient input and not guaranteed to match any catalog variant. The
// observed allele is carried through and archived but does not gate a
// variant's contribution to the feature vector.
type VariantObservation struct {
	RSID   string `json:"rsid" binding:"required"`
	Allele string `json:"allele" binding:"required"`
}

// Prediction represents one append-only risk prediction record
type Prediction struct {
	ID          int64     `json:"pred_id"`
	PatientID   int64     `json:"patient_id"`
	DiseaseID   int64     `json:"disease_id"`
	Probability float64   `json:"probability"`
	RiskLevel   RiskLevel `json:"risk_level"`
	Timestamp   time.Time `json:"timestamp"`
}

// Model Provider Models

// Classifier exposes a probability function over a feature vector. The
// artifact behind it is opaque to the scoring pipeline; only the declared
// feature length is assumed.
type Classifier interface {
	// PredictProba returns the probability of the positive ("has disease
	// risk") class for the given feature vector.
	PredictProba(features []float64) (float64, error)
}

// ModelMetadata describes a stored model version
type ModelMetadata struct {
	ID             string    `json:"model_id"`
	DiseaseID      int64     `json:"disease_id"`
	FeatureColumns []string  `json:"feature_columns"`
	TrainingRows   int       `json:"training_rows,omitempty"`
	Accuracy       float64   `json:"accuracy,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// TrainedModel couples a deserialized classifier with its metadata.
// Immutable once created; the latest version by CreatedAt is authoritative.
type TrainedModel struct {
	Metadata   ModelMetadata
	Classifier Classifier
}

// GeneticInput is the raw-input archive document written alongside each
// scored request (patient SNPs as submitted plus the derived features).
type GeneticInput struct {
	ID              string             `json:"input_id"`
	PatientID       int64              `json:"patient_id"`
	UploadTime      time.Time          `json:"upload_time"`
	RawSNPs         map[string]string  `json:"raw_snps"`
	DerivedFeatures map[string]float64 `json:"derived_features"`
	ModelID         string             `json:"model_id"`
	Source          string             `json:"source"`
}

// Request/Response Models

// PatientInput carries submitted patient demographics
type PatientInput struct {
	Name   string `json:"name" binding:"required"`
	Age    int    `json:"age" binding:"required,gt=0"`
	Gender string `json:"gender" binding:"required"`
}

// PredictRequest is the inbound prediction request shape
type PredictRequest struct {
	Patient     PatientInput         `json:"patient" binding:"required"`
	DiseaseName string               `json:"disease_name" binding:"required"`
	SNPs        []VariantObservation `json:"snps"`
}

// PredictResponse is the outbound prediction response shape
type PredictResponse struct {
	PatientID       int64     `json:"patient_id"`
	Disease         string    `json:"disease"`
	RiskProbability float64   `json:"risk_probability"`
	RiskLevel       RiskLevel `json:"risk_level"`
	ModelID         string    `json:"model_id,omitempty"`
}
