package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/genetic-risk-server/internal/domain"
)

// handleHealth reports liveness plus the reachability of both stores
func (s *Server) handleHealth(c *gin.Context) {
	status := http.StatusOK
	checks := gin.H{}

	if err := s.catalogDB.Health(c.Request.Context()); err != nil {
		checks["database"] = err.Error()
		status = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	if err := s.modelStore.Health(c.Request.Context()); err != nil {
		checks["model_store"] = err.Error()
		status = http.StatusServiceUnavailable
	} else {
		checks["model_store"] = "ok"
	}

	c.JSON(status, gin.H{
		"status":    map[bool]string{true: "healthy", false: "degraded"}[status == http.StatusOK],
		"checks":    checks,
		"timestamp": time.Now().UTC(),
	})
}

// handlePredict runs the prediction pipeline for one request
func (s *Server) handlePredict(c *gin.Context) {
	var req domain.PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	resp, err := s.predictor.Predict(c.Request.Context(), &req)
	if err != nil {
		s.respondPipelineError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// handlePredictionHistory lists a patient's predictions, newest first
func (s *Server) handlePredictionHistory(c *gin.Context) {
	patientID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid patient id"})
		return
	}

	predictions, err := s.predictor.History(c.Request.Context(), patientID)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"patient_id": patientID,
			"error":      err,
		}).Error("Failed to list predictions")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list predictions"})
		return
	}
	if predictions == nil {
		predictions = []*domain.Prediction{}
	}

	c.JSON(http.StatusOK, gin.H{
		"patient_id":  patientID,
		"predictions": predictions,
	})
}

// handleModelInfo returns the latest model metadata for a disease; 503
// when the disease has no trained model yet
func (s *Server) handleModelInfo(c *gin.Context) {
	metadata, err := s.predictor.ModelInfo(c.Request.Context(), c.Param("disease"))
	if err != nil {
		s.respondPipelineError(c, err)
		return
	}

	c.JSON(http.StatusOK, metadata)
}

// respondPipelineError maps pipeline sentinel errors to HTTP statuses
func (s *Server) respondPipelineError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrUnknownDisease):
		// User-correctable; surfaced verbatim
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrModelNotFound):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrFeatureShapeMismatch):
		s.log.WithFields(logrus.Fields{
			"request_id": c.GetString("request_id"),
			"error":      err,
		}).Error("Feature shape mismatch between catalog and model")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal model integrity error"})
	default:
		s.log.WithFields(logrus.Fields{
			"request_id": c.GetString("request_id"),
			"error":      err,
		}).Error("Prediction request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "prediction failed"})
	}
}
