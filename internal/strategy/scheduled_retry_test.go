package strategy_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecomarket/purchase-pipeline/internal/health"
	"github.com/ecomarket/purchase-pipeline/internal/purchase"
	"github.com/ecomarket/purchase-pipeline/internal/strategy"
)

func TestScheduledRetryWaitsBeforeTheFirstAttemptToo(t *testing.T) {
	registry := health.New()
	clock := &fakeClock{}
	s := strategy.NewScheduledRetry(registry, clock, &strategy.FixedSequence{Values: []float64{0.5}})

	outcome := s.Execute(context.Background(), purchase.Message{})
	require.Equal(t, purchase.StatusSuccess, outcome.Status)
	assert.Equal(t, 1, outcome.SuccessfulTry)
	require.Len(t, clock.waits, 1, "unlike the other retrying strategies, the ladder applies before attempt 1")
	assert.Equal(t, strategy.Duration(1000), clock.waits[0])
	assert.Equal(t, int64(1000), outcome.TotalWaitMs)
}

func TestScheduledRetryFollowsTheFixedLadder(t *testing.T) {
	registry := health.New()
	clock := &fakeClock{}
	rnd := &strategy.FixedSequence{Values: []float64{0.05}} // always connection failure
	s := strategy.NewScheduledRetry(registry, clock, rnd)

	outcome := s.Execute(context.Background(), purchase.Message{})
	require.Equal(t, purchase.StatusFailed, outcome.Status)
	assert.Equal(t, 5, outcome.AttemptsMade)

	require.Len(t, clock.waits, 5)
	expected := []strategy.Duration{1000, 2000, 4000, 8000, 16000}
	assert.Equal(t, expected, clock.waits)
}

func TestScheduledRetryAbortsOnCancellationAfterFirstWait(t *testing.T) {
	registry := health.New()
	ctx, cancel := context.WithCancel(context.Background())
	clock := newCancelAfterClock(ctx, cancel, 1)
	rnd := &strategy.FixedSequence{Values: []float64{0.05}}
	s := strategy.NewScheduledRetry(registry, clock, rnd)

	outcome := s.Execute(ctx, purchase.Message{})
	require.Equal(t, purchase.StatusFailed, outcome.Status)
	assert.Equal(t, 1, outcome.AttemptsMade)
	assert.Contains(t, outcome.Narrative, "cancelada")
}
