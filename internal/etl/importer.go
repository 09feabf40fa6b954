// Package etl loads a cleaned GWAS catalog CSV into the reference store.
// It is a one-time import: catalog rows are immutable afterward, and the
// whole load is idempotent (re-running it inserts nothing new).
package etl

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

const batchSize = 1000

// ImportStats summarizes one import run
type ImportStats struct {
	Rows         int
	Genes        int
	Diseases     int
	SNPs         int
	Associations int
	Skipped      int
}

// Importer bulk-loads GWAS reference rows
type Importer struct {
	db  *pgxpool.Pool
	log *logrus.Logger

	geneIDs    map[string]int64
	diseaseIDs map[string]int64
}

// NewImporter creates a new GWAS importer
func NewImporter(db *pgxpool.Pool, logger *logrus.Logger) *Importer {
	return &Importer{
		db:         db,
		log:        logger,
		geneIDs:    make(map[string]int64),
		diseaseIDs: make(map[string]int64),
	}
}

// row is one parsed CSV record
type row struct {
	RSID           string
	Gene           string
	Disease        string
	Chromosome     string
	Position       *int64
	RiskAllele     string
	OddsRatio      *float64
	RiskAlleleFreq *float64
	PValue         *float64
	IsSignificant  bool
}

// Run reads the CSV and loads genes, diseases, SNPs and disease-SNP links.
// Expected header columns: rsid, gene, disease, chromosome, position,
// risk_allele, odds_ratio, risk_allele_freq, p_value, is_significant.
func (im *Importer) Run(ctx context.Context, r io.Reader) (*ImportStats, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{"rsid", "disease"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("CSV is missing required column %q", required)
		}
	}

	stats := &ImportStats{}
	var pending []row

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV record: %w", err)
		}
		stats.Rows++

		parsed := parseRow(record, cols)
		if parsed.RSID == "" || parsed.Disease == "" {
			stats.Skipped++
			continue
		}

		pending = append(pending, parsed)
		if len(pending) >= batchSize {
			if err := im.loadBatch(ctx, pending, stats); err != nil {
				return stats, err
			}
			pending = pending[:0]
		}
	}

	if len(pending) > 0 {
		if err := im.loadBatch(ctx, pending, stats); err != nil {
			return stats, err
		}
	}

	im.log.WithFields(logrus.Fields{
		"rows":         stats.Rows,
		"genes":        stats.Genes,
		"diseases":     stats.Diseases,
		"snps":         stats.SNPs,
		"associations": stats.Associations,
		"skipped":      stats.Skipped,
	}).Info("GWAS import completed")

	return stats, nil
}

// loadBatch loads one slice of rows: genes and diseases first (so ids
// exist), then SNPs and association links in a single pgx batch each.
func (im *Importer) loadBatch(ctx context.Context, rows []row, stats *ImportStats) error {
	for _, r := range rows {
		if r.Gene != "" {
			if _, ok := im.geneIDs[r.Gene]; !ok {
				id, created, err := im.upsertGene(ctx, r.Gene)
				if err != nil {
					return err
				}
				im.geneIDs[r.Gene] = id
				if created {
					stats.Genes++
				}
			}
		}
		if _, ok := im.diseaseIDs[r.Disease]; !ok {
			id, created, err := im.upsertDisease(ctx, r.Disease)
			if err != nil {
				return err
			}
			im.diseaseIDs[r.Disease] = id
			if created {
				stats.Diseases++
			}
		}
	}

	snpBatch := &pgx.Batch{}
	for _, r := range rows {
		var geneID *int64
		if id, ok := im.geneIDs[r.Gene]; ok {
			geneID = &id
		}
		snpBatch.Queue(`
			INSERT INTO snp (rsid, gene_id, chromosome, position, risk_allele,
			                 odds_ratio, risk_allele_freq, p_value, is_significant)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (rsid) DO UPDATE SET rsid = EXCLUDED.rsid
			RETURNING snp_id, (xmax = 0) AS inserted`,
			r.RSID, geneID, r.Chromosome, r.Position, r.RiskAllele,
			r.OddsRatio, r.RiskAlleleFreq, r.PValue, r.IsSignificant,
		)
	}

	snpIDs := make([]int64, len(rows))
	results := im.db.SendBatch(ctx, snpBatch)
	for i := range rows {
		var inserted bool
		if err := results.QueryRow().Scan(&snpIDs[i], &inserted); err != nil {
			results.Close()
			return fmt.Errorf("inserting snp %q: %w", rows[i].RSID, err)
		}
		if inserted {
			stats.SNPs++
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("closing snp batch: %w", err)
	}

	linkBatch := &pgx.Batch{}
	for i, r := range rows {
		linkBatch.Queue(`
			INSERT INTO disease_snp (disease_id, snp_id)
			VALUES ($1, $2)
			ON CONFLICT (disease_id, snp_id) DO NOTHING`,
			im.diseaseIDs[r.Disease], snpIDs[i],
		)
	}

	linkResults := im.db.SendBatch(ctx, linkBatch)
	for range rows {
		tag, err := linkResults.Exec()
		if err != nil {
			linkResults.Close()
			return fmt.Errorf("linking disease and snp: %w", err)
		}
		stats.Associations += int(tag.RowsAffected())
	}
	if err := linkResults.Close(); err != nil {
		return fmt.Errorf("closing association batch: %w", err)
	}

	return nil
}

func (im *Importer) upsertGene(ctx context.Context, name string) (int64, bool, error) {
	var id int64
	var inserted bool
	err := im.db.QueryRow(ctx, `
		INSERT INTO gene (gene_name) VALUES ($1)
		ON CONFLICT (gene_name) DO UPDATE SET gene_name = EXCLUDED.gene_name
		RETURNING gene_id, (xmax = 0) AS inserted`,
		name,
	).Scan(&id, &inserted)
	if err != nil {
		return 0, false, fmt.Errorf("upserting gene %q: %w", name, err)
	}
	return id, inserted, nil
}

func (im *Importer) upsertDisease(ctx context.Context, name string) (int64, bool, error) {
	var id int64
	var inserted bool
	err := im.db.QueryRow(ctx, `
		INSERT INTO disease (name) VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING disease_id, (xmax = 0) AS inserted`,
		name,
	).Scan(&id, &inserted)
	if err != nil {
		return 0, false, fmt.Errorf("upserting disease %q: %w", name, err)
	}
	return id, inserted, nil
}

// parseRow maps a CSV record to a row, tolerating the messy values the
// source dataset is known to carry
func parseRow(record []string, cols map[string]int) row {
	get := func(name string) string {
		idx, ok := cols[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	riskAllele := strings.ToUpper(get("risk_allele"))
	if len(riskAllele) > 1 {
		riskAllele = riskAllele[:1]
	}

	return row{
		RSID:           get("rsid"),
		Gene:           get("gene"),
		Disease:        get("disease"),
		Chromosome:     get("chromosome"),
		Position:       safeInt(get("position")),
		RiskAllele:     riskAllele,
		OddsRatio:      safeFloatDefault(get("odds_ratio"), 1.0),
		RiskAlleleFreq: safeFloatDefault(get("risk_allele_freq"), 0.0),
		PValue:         safeFloat(get("p_value")),
		IsSignificant:  parseBool(get("is_significant")),
	}
}

func safeFloat(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func safeFloatDefault(s string, def float64) *float64 {
	if v := safeFloat(s); v != nil {
		return v
	}
	return &def
}

func safeInt(s string) *int64 {
	if s == "" {
		return nil
	}
	// Positions sometimes arrive in float notation
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	v := int64(f)
	return &v
}

func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "1", "true", "t", "yes":
		return true
	default:
		return false
	}
}
