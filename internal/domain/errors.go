package domain

import (
	"errors"
)

// Sentinel errors for the risk-scoring pipeline. Callers classify failures
// with errors.Is; repositories and providers wrap these with context.
var (
	// ErrNotFound signals an exact-match lookup that found nothing. The
	// caller decides whether absence is fatal.
	ErrNotFound = errors.New("not found")

	// ErrUnknownDisease rejects a request naming a disease the catalog does
	// not know. User-correctable, surfaced verbatim.
	ErrUnknownDisease = errors.New("unknown disease")

	// ErrModelNotFound signals that no trained model exists for a known
	// disease. Never substituted with a default probability.
	ErrModelNotFound = errors.New("no trained model for disease")

	// ErrFeatureShapeMismatch signals a feature vector whose length differs
	// from the model's declared feature columns. Integrity bug between
	// catalog and model versions; never retried.
	ErrFeatureShapeMismatch = errors.New("feature vector shape does not match model")
)
