package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/check-cli/internal/model"
	"github.com/sells-group/check-cli/internal/resilience"
)

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
}

func TestGuarded_StampsSourceAndClamps(t *testing.T) {
	payee := model.NewExtraction(model.Text("Jane"), 0.8, model.SourceHybrid)
	payee.Confidence = 1.4
	inner := Func{EngineName: "fake", Fn: func(_ context.Context, _ []byte) (*model.PartialFields, error) {
		return &model.PartialFields{
			Payee: &payee,
			MICR:  &model.MICR{Routing: model.FieldExtraction{Value: model.Text("021000021"), Confidence: 0.95}},
		}, nil
	}}

	g := Guard(inner, model.SourceEngineA, time.Second, nil, fastRetry())
	fields, err := g.Extract(context.Background(), []byte("img"))

	require.NoError(t, err)
	assert.Equal(t, model.SourceEngineA, fields.Payee.Source)
	assert.Equal(t, 1.0, fields.Payee.Confidence)
	assert.Equal(t, model.SourceEngineA, fields.MICR.Routing.Source)
	assert.Equal(t, "fake", g.Name())
	assert.Equal(t, model.SourceEngineA, g.Source())
}

func TestGuarded_NilResultBecomesEmpty(t *testing.T) {
	inner := Func{EngineName: "fake", Fn: func(_ context.Context, _ []byte) (*model.PartialFields, error) {
		return nil, nil
	}}
	fields, err := Guard(inner, model.SourceEngineB, 0, nil, fastRetry()).Extract(context.Background(), nil)
	require.NoError(t, err)
	require.NotNil(t, fields)
	assert.Zero(t, fields.Count())
}

func TestGuarded_Timeout(t *testing.T) {
	inner := Func{EngineName: "slow", Fn: func(ctx context.Context, _ []byte) (*model.PartialFields, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Second):
			return &model.PartialFields{}, nil
		}
	}}

	start := time.Now()
	_, err := Guard(inner, model.SourceEngineB, 20*time.Millisecond, nil, fastRetry()).Extract(context.Background(), nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestGuarded_RetriesTransient(t *testing.T) {
	var calls atomic.Int32
	inner := Func{EngineName: "flaky", Fn: func(_ context.Context, _ []byte) (*model.PartialFields, error) {
		if calls.Add(1) < 2 {
			return nil, resilience.NewTransientError(errors.New("503"), 503)
		}
		return &model.PartialFields{}, nil
	}}

	_, err := Guard(inner, model.SourceEngineB, time.Second, nil, fastRetry()).Extract(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGuarded_BreakerOpens(t *testing.T) {
	var calls atomic.Int32
	inner := Func{EngineName: "broken", Fn: func(_ context.Context, _ []byte) (*model.PartialFields, error) {
		calls.Add(1)
		return nil, errors.New("invalid api key")
	}}
	breaker := resilience.NewCircuitBreaker(resilience.NewCircuitBreakerConfig(2, 60))
	g := Guard(inner, model.SourceEngineB, time.Second, breaker, fastRetry())

	for i := 0; i < 3; i++ {
		_, err := g.Extract(context.Background(), nil)
		require.Error(t, err)
	}
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, resilience.CircuitOpen, breaker.State())

	_, err := g.Extract(context.Background(), nil)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
}
