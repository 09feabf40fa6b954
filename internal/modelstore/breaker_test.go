package modelstore

import (
	"errors"
	"fmt"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genetic-risk-server/internal/domain"
)

func breakerLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestModelBreaker_ModelNotFoundDoesNotTrip(t *testing.T) {
	breaker := newModelBreaker(breakerLogger())

	// Polling an untrained disease returns ErrModelNotFound every time;
	// well past the consecutive-failure threshold the breaker must stay
	// closed.
	for i := 0; i < 10; i++ {
		_, err := breaker.Execute(func() (interface{}, error) {
			return nil, fmt.Errorf("disease 2: %w", domain.ErrModelNotFound)
		})
		require.ErrorIs(t, err, domain.ErrModelNotFound)
	}
	assert.Equal(t, gobreaker.StateClosed, breaker.State())

	// A disease with a published model still reads through
	result, err := breaker.Execute(func() (interface{}, error) {
		return []byte(`{}`), nil
	})
	require.NoError(t, err)
	assert.Equal(t, []byte(`{}`), result)
}

func TestModelBreaker_InfrastructureFailuresTrip(t *testing.T) {
	breaker := newModelBreaker(breakerLogger())

	infraErr := errors.New("connection refused")
	for i := 0; i < 5; i++ {
		_, err := breaker.Execute(func() (interface{}, error) {
			return nil, infraErr
		})
		require.ErrorIs(t, err, infraErr)
	}

	assert.Equal(t, gobreaker.StateOpen, breaker.State())

	_, err := breaker.Execute(func() (interface{}, error) {
		return []byte(`{}`), nil
	})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}

func TestModelBreaker_NotFoundResetsFailureStreak(t *testing.T) {
	breaker := newModelBreaker(breakerLogger())

	infraErr := errors.New("i/o timeout")

	// Four infra failures, then an expected not-found, then four more infra
	// failures: the not-found counts as a success, so the consecutive
	// streak never reaches five.
	for i := 0; i < 4; i++ {
		breaker.Execute(func() (interface{}, error) { return nil, infraErr })
	}
	breaker.Execute(func() (interface{}, error) {
		return nil, fmt.Errorf("disease 9: %w", domain.ErrModelNotFound)
	})
	for i := 0; i < 4; i++ {
		breaker.Execute(func() (interface{}, error) { return nil, infraErr })
	}

	assert.Equal(t, gobreaker.StateClosed, breaker.State())
}
