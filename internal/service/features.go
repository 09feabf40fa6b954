package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/genetic-risk-server/internal/domain"
)

// MatchOutcome records why a submitted variant did or did not contribute
// to the feature vector. Exclusions are policy, not errors: a SNP the
// catalog does not know, or one unrelated to the target disease, must not
// influence its score.
type MatchOutcome string

const (
	MatchIncluded      MatchOutcome = "included"
	MatchNotInCatalog  MatchOutcome = "not_in_catalog"
	MatchNotAssociated MatchOutcome = "not_associated"
)

// VariantMatch is the per-lookup outcome for one submitted observation
type VariantMatch struct {
	RSID    string       `json:"rsid"`
	Outcome MatchOutcome `json:"outcome"`
}

// MatchReport makes the aggregation's inclusion decisions traceable
// without relying on log output
type MatchReport struct {
	Submitted int            `json:"submitted"`
	Included  int            `json:"included"`
	Matches   []VariantMatch `json:"matches"`
}

// FeatureBuilder aggregates a patient's catalog-matched, disease-associated
// variants into the fixed 4-dimensional feature vector
// [odds_ratio, risk_allele_freq, chromosome, position].
type FeatureBuilder struct {
	catalog domain.VariantCatalog
	log     *logrus.Logger
}

// NewFeatureBuilder creates a new feature builder
func NewFeatureBuilder(catalog domain.VariantCatalog, logger *logrus.Logger) *FeatureBuilder {
	return &FeatureBuilder{
		catalog: catalog,
		log:     logger,
	}
}

// defaultFeatureVector is returned when no submitted variant survives
// matching: neutral odds ratio, zeroes elsewhere.
func defaultFeatureVector() []float64 {
	return []float64{1.0, 0.0, 0.0, 0.0}
}

// BuildFeatureVector turns submitted observations into the feature vector
// for one disease. Unknown and non-associated variants are skipped
// silently; only infrastructure failures return an error. With zero
// retained variants the fixed default vector is returned.
//
// Each retained variant contributes with weight max(1.0, |OR-1.0|):
// strong-effect SNPs dominate, near-neutral SNPs are floored at 1.0 so
// they are down-weighted but never zeroed out.
func (b *FeatureBuilder) BuildFeatureVector(ctx context.Context, diseaseID int64, observations []domain.VariantObservation) ([]float64, *MatchReport, error) {
	allowed, err := b.catalog.AssociatedVariantIDs(ctx, diseaseID)
	if err != nil {
		return nil, nil, fmt.Errorf("resolving disease variant associations: %w", err)
	}

	report := &MatchReport{
		Submitted: len(observations),
		Matches:   make([]VariantMatch, 0, len(observations)),
	}

	var (
		oddsSum, freqSum, chromSum, posSum float64
		totalWeight                        float64
	)

	for _, obs := range observations {
		variant, err := b.catalog.FindVariant(ctx, obs.RSID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				report.Matches = append(report.Matches, VariantMatch{RSID: obs.RSID, Outcome: MatchNotInCatalog})
				continue
			}
			return nil, nil, fmt.Errorf("looking up submitted variant: %w", err)
		}
		if _, ok := allowed[variant.ID]; !ok {
			report.Matches = append(report.Matches, VariantMatch{RSID: obs.RSID, Outcome: MatchNotAssociated})
			continue
		}

		report.Matches = append(report.Matches, VariantMatch{RSID: obs.RSID, Outcome: MatchIncluded})
		report.Included++

		odds := 1.0
		if variant.OddsRatio != nil {
			odds = *variant.OddsRatio
		}
		freq := 0.0
		if variant.RiskAlleleFreq != nil {
			freq = *variant.RiskAlleleFreq
		}
		chrom := 0.0
		if parsed, err := strconv.ParseFloat(variant.Chromosome, 64); err == nil {
			chrom = parsed
		}
		pos := 0.0
		if variant.Position != nil {
			pos = float64(*variant.Position)
		}

		weight := math.Max(1.0, math.Abs(odds-1.0))
		oddsSum += odds * weight
		freqSum += freq * weight
		chromSum += chrom * weight
		posSum += pos * weight
		totalWeight += weight
	}

	if report.Included == 0 {
		b.log.WithFields(logrus.Fields{
			"disease_id": diseaseID,
			"submitted":  report.Submitted,
		}).Debug("No submitted variants matched; using default feature vector")
		return defaultFeatureVector(), report, nil
	}

	features := []float64{
		oddsSum / totalWeight,
		freqSum / totalWeight,
		chromSum / totalWeight,
		posSum / totalWeight,
	}

	b.log.WithFields(logrus.Fields{
		"disease_id": diseaseID,
		"submitted":  report.Submitted,
		"included":   report.Included,
	}).Debug("Feature vector built")

	return features, report, nil
}
