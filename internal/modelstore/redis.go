// Package modelstore implements the Model Provider and the raw-input
// archive on top of a Redis document store. Model artifacts are opaque
// JSON documents; each disease has a ZSET of model ids scored by creation
// timestamp, so "latest model" is an explicit read of an
// ordered-by-timestamp collection rather than a cached singleton.
package modelstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/genetic-risk-server/internal/config"
	"github.com/genetic-risk-server/internal/domain"
)

// modelDocument is the stored JSON shape of one trained model version
type modelDocument struct {
	ModelID        string            `json:"model_id"`
	DiseaseID      int64             `json:"disease_id"`
	FeatureColumns []string          `json:"feature_columns"`
	TrainingRows   int               `json:"training_rows,omitempty"`
	Accuracy       float64           `json:"accuracy,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	ClassifierType string            `json:"classifier_type"`
	Classifier     json.RawMessage   `json:"classifier"`
	Notes          map[string]string `json:"notes,omitempty"`
}

// RedisModelStore implements domain.ModelProvider and domain.InputArchive
type RedisModelStore struct {
	client  *redis.Client
	breaker *gobreaker.CircuitBreaker
	log     *logrus.Logger
}

// NewRedisModelStore connects to the document store and verifies the
// connection. Reads go through a circuit breaker so a degraded Redis fails
// fast instead of stalling every prediction request.
func NewRedisModelStore(ctx context.Context, cfg *config.ModelStoreConfig, logger *logrus.Logger) (*RedisModelStore, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing Redis URL: %w", err)
	}
	opts.PoolSize = cfg.PoolSize
	opts.PoolTimeout = cfg.PoolTimeout
	opts.MaxRetries = cfg.MaxRetries

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to model store: %w", err)
	}

	logger.WithField("pool_size", cfg.PoolSize).Info("Model store connection established")

	return &RedisModelStore{
		client:  client,
		breaker: newModelBreaker(logger),
		log:     logger,
	}, nil
}

// newModelBreaker builds the circuit breaker guarding document-store
// reads. A disease without a trained model is an expected domain outcome,
// not a store failure, so ErrModelNotFound must not count toward tripping:
// polling an untrained disease may never blind the store for everyone else.
func newModelBreaker(logger *logrus.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "model-store",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrModelNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Model store circuit breaker state changed")
		},
	})
}

func modelKey(modelID string) string {
	return fmt.Sprintf("model:%s", modelID)
}

func diseaseIndexKey(diseaseID int64) string {
	return fmt.Sprintf("models:disease:%d", diseaseID)
}

func inputKey(inputID string) string {
	return fmt.Sprintf("input:%s", inputID)
}

// LatestModel returns the newest trained model for the disease. The two
// reads (index, then document) are plain point reads; a request holds on
// to the returned model, so concurrent publishes never split one request
// across versions.
func (s *RedisModelStore) LatestModel(ctx context.Context, diseaseID int64) (*domain.TrainedModel, error) {
	result, err := s.breaker.Execute(func() (interface{}, error) {
		ids, err := s.client.ZRevRange(ctx, diseaseIndexKey(diseaseID), 0, 0).Result()
		if err != nil {
			return nil, fmt.Errorf("reading model index: %w", err)
		}
		if len(ids) == 0 {
			return nil, fmt.Errorf("disease %d: %w", diseaseID, domain.ErrModelNotFound)
		}

		raw, err := s.client.Get(ctx, modelKey(ids[0])).Result()
		if errors.Is(err, redis.Nil) {
			// Index entry without a document is an integrity gap, not a
			// missing model
			return nil, fmt.Errorf("model document %s missing for disease %d", ids[0], diseaseID)
		}
		if err != nil {
			return nil, fmt.Errorf("reading model document: %w", err)
		}
		return []byte(raw), nil
	})
	if err != nil {
		if !errors.Is(err, domain.ErrModelNotFound) {
			s.log.WithFields(logrus.Fields{
				"disease_id": diseaseID,
				"error":      err,
			}).Error("Failed to fetch latest model")
		}
		return nil, err
	}

	model, err := decodeModel(result.([]byte))
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"disease_id": diseaseID,
			"error":      err,
		}).Error("Failed to decode model document")
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"disease_id": diseaseID,
		"model_id":   model.Metadata.ID,
		"created_at": model.Metadata.CreatedAt,
	}).Debug("Loaded latest model")

	return model, nil
}

// SaveModel stores a new model version and indexes it by creation
// timestamp. Used by the (external) training side and by tests; the
// scoring pipeline itself never writes models.
func (s *RedisModelStore) SaveModel(ctx context.Context, doc *ModelArtifact) (string, error) {
	if doc.ModelID == "" {
		doc.ModelID = uuid.New().String()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}

	stored := modelDocument{
		ModelID:        doc.ModelID,
		DiseaseID:      doc.DiseaseID,
		FeatureColumns: doc.FeatureColumns,
		TrainingRows:   doc.TrainingRows,
		Accuracy:       doc.Accuracy,
		CreatedAt:      doc.CreatedAt,
		ClassifierType: classifierTypeLogistic,
		Notes:          doc.Notes,
	}

	classifierJSON, err := json.Marshal(doc.Pipeline)
	if err != nil {
		return "", fmt.Errorf("marshaling classifier: %w", err)
	}
	stored.Classifier = classifierJSON

	data, err := json.Marshal(&stored)
	if err != nil {
		return "", fmt.Errorf("marshaling model document: %w", err)
	}

	if err := s.client.Set(ctx, modelKey(doc.ModelID), data, 0).Err(); err != nil {
		return "", fmt.Errorf("storing model document: %w", err)
	}
	if err := s.client.ZAdd(ctx, diseaseIndexKey(doc.DiseaseID), redis.Z{
		Score:  float64(doc.CreatedAt.UnixMilli()),
		Member: doc.ModelID,
	}).Err(); err != nil {
		return "", fmt.Errorf("indexing model document: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"model_id":   doc.ModelID,
		"disease_id": doc.DiseaseID,
	}).Info("Model version stored")

	return doc.ModelID, nil
}

// ArchiveInput stores the raw submitted SNPs and derived features for a
// scored request
func (s *RedisModelStore) ArchiveInput(ctx context.Context, input *domain.GeneticInput) error {
	if input.ID == "" {
		input.ID = uuid.New().String()
	}
	if input.UploadTime.IsZero() {
		input.UploadTime = time.Now().UTC()
	}

	data, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("marshaling input document: %w", err)
	}

	if err := s.client.Set(ctx, inputKey(input.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("archiving input document: %w", err)
	}

	return nil
}

// Health checks the document store connection
func (s *RedisModelStore) Health(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (s *RedisModelStore) Close() error {
	return s.client.Close()
}

// ModelArtifact is the write-side shape accepted by SaveModel
type ModelArtifact struct {
	ModelID        string
	DiseaseID      int64
	FeatureColumns []string
	TrainingRows   int
	Accuracy       float64
	CreatedAt      time.Time
	Pipeline       *LogisticPipeline
	Notes          map[string]string
}

// decodeModel deserializes a stored model document into a TrainedModel.
// The document's classifier payload stays opaque to callers; only the
// Classifier interface escapes this package.
func decodeModel(data []byte) (*domain.TrainedModel, error) {
	var doc modelDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshaling model document: %w", err)
	}

	var classifier domain.Classifier
	switch doc.ClassifierType {
	case classifierTypeLogistic:
		pipeline := &LogisticPipeline{}
		if err := json.Unmarshal(doc.Classifier, pipeline); err != nil {
			return nil, fmt.Errorf("unmarshaling logistic pipeline: %w", err)
		}
		if err := pipeline.validate(); err != nil {
			return nil, fmt.Errorf("invalid logistic pipeline: %w", err)
		}
		classifier = pipeline
	default:
		return nil, fmt.Errorf("unsupported classifier type %q", doc.ClassifierType)
	}

	return &domain.TrainedModel{
		Metadata: domain.ModelMetadata{
			ID:             doc.ModelID,
			DiseaseID:      doc.DiseaseID,
			FeatureColumns: doc.FeatureColumns,
			TrainingRows:   doc.TrainingRows,
			Accuracy:       doc.Accuracy,
			CreatedAt:      doc.CreatedAt,
		},
		Classifier: classifier,
	}, nil
}
