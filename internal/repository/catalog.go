package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/genetic-risk-server/internal/domain"
)

const (
	catalogCacheSize = 4096
	catalogCacheTTL  = 5 * time.Minute
)

// CatalogRepository is the Reference Catalog Accessor: read-only,
// exact-match lookups against the GWAS reference data. Catalog rows are
// immutable (written only by the import process), so lookups go through a
// small expiring cache without affecting read idempotency.
type CatalogRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger

	variantCache     *expirable.LRU[string, *domain.Variant]
	associationCache *expirable.LRU[int64, []int64]
}

// NewCatalogRepository creates a new catalog repository
func NewCatalogRepository(db *pgxpool.Pool, logger *logrus.Logger) *CatalogRepository {
	return &CatalogRepository{
		db:               db,
		log:              logger,
		variantCache:     expirable.NewLRU[string, *domain.Variant](catalogCacheSize, nil, catalogCacheTTL),
		associationCache: expirable.NewLRU[int64, []int64](catalogCacheSize, nil, catalogCacheTTL),
	}
}

// FindVariant retrieves a variant by its reference identifier (rsID).
// Exact match only; absence is domain.ErrNotFound.
func (r *CatalogRepository) FindVariant(ctx context.Context, rsid string) (*domain.Variant, error) {
	if cached, ok := r.variantCache.Get(rsid); ok {
		return cached, nil
	}

	query := `
		SELECT snp_id, rsid, gene_id, chromosome, position, risk_allele,
		       odds_ratio, risk_allele_freq, p_value, is_significant
		FROM snp
		WHERE rsid = $1`

	var variant domain.Variant
	err := r.db.QueryRow(ctx, query, rsid).Scan(
		&variant.ID,
		&variant.RSID,
		&variant.GeneID,
		&variant.Chromosome,
		&variant.Position,
		&variant.RiskAllele,
		&variant.OddsRatio,
		&variant.RiskAlleleFreq,
		&variant.PValue,
		&variant.IsSignificant,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("variant %q: %w", rsid, domain.ErrNotFound)
		}
		r.log.WithFields(logrus.Fields{
			"rsid":  rsid,
			"error": err,
		}).Error("Failed to look up variant")
		return nil, fmt.Errorf("looking up variant by rsid: %w", err)
	}

	r.variantCache.Add(rsid, &variant)
	return &variant, nil
}

// AssociatedVariantIDs returns the ids of all variants linked to the
// disease. An empty set is a valid result, not an error.
func (r *CatalogRepository) AssociatedVariantIDs(ctx context.Context, diseaseID int64) (map[int64]struct{}, error) {
	if cached, ok := r.associationCache.Get(diseaseID); ok {
		return idSet(cached), nil
	}

	query := `SELECT snp_id FROM disease_snp WHERE disease_id = $1`

	rows, err := r.db.Query(ctx, query, diseaseID)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"disease_id": diseaseID,
			"error":      err,
		}).Error("Failed to query disease variant associations")
		return nil, fmt.Errorf("querying disease associations: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning association row: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating association rows: %w", err)
	}

	r.associationCache.Add(diseaseID, ids)
	return idSet(ids), nil
}

// FindDisease retrieves a disease by name. Case-sensitive exact match;
// absence is domain.ErrNotFound.
func (r *CatalogRepository) FindDisease(ctx context.Context, name string) (*domain.Disease, error) {
	query := `SELECT disease_id, name, description FROM disease WHERE name = $1`

	var disease domain.Disease
	err := r.db.QueryRow(ctx, query, name).Scan(
		&disease.ID,
		&disease.Name,
		&disease.Description,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("disease %q: %w", name, domain.ErrNotFound)
		}
		r.log.WithFields(logrus.Fields{
			"disease": name,
			"error":   err,
		}).Error("Failed to look up disease")
		return nil, fmt.Errorf("looking up disease by name: %w", err)
	}

	return &disease, nil
}

// idSet copies an id slice into a set. The cache holds slices so each
// caller gets its own mutable set.
func idSet(ids []int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
