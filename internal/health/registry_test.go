package health_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecomarket/purchase-pipeline/internal/health"
)

func TestNewStartsAllFlagsUp(t *testing.T) {
	r := health.New()
	for _, s := range health.All {
		assert.True(t, r.Healthy(s), "flag %s should start up", s)
	}
}

func TestGateRequiresBothGeneralNetworkAndSpecificFlag(t *testing.T) {
	r := health.New()

	assert.True(t, r.Gate(health.Redis))

	_, err := r.Set(health.Redis, false)
	require.NoError(t, err)
	assert.False(t, r.Gate(health.Redis), "specific flag down closes the gate")
	assert.True(t, r.Gate(health.RabbitMQ), "other flags are unaffected")
}

func TestGeneralNetworkDownClosesEveryGateRegardlessOfSpecificFlag(t *testing.T) {
	r := health.New()

	_, err := r.Set(health.GeneralNetwork, false)
	require.NoError(t, err)

	for _, s := range []health.Service{health.HTTPDirect, health.SimpleRetry, health.ExpBackoff, health.ScheduledRetry, health.Redis, health.RabbitMQ} {
		assert.False(t, r.Gate(s), "gate for %s should be closed when general_network is down", s)
	}
}

func TestOffendingFlagPrefersGeneralNetwork(t *testing.T) {
	r := health.New()
	_, err := r.Set(health.GeneralNetwork, false)
	require.NoError(t, err)
	_, err = r.Set(health.Redis, false)
	require.NoError(t, err)

	assert.Equal(t, health.GeneralNetwork, r.OffendingFlag(health.Redis))
}

func TestOffendingFlagNamesSpecificFlagWhenNetworkIsUp(t *testing.T) {
	r := health.New()
	_, err := r.Set(health.RabbitMQ, false)
	require.NoError(t, err)

	assert.Equal(t, health.RabbitMQ, r.OffendingFlag(health.RabbitMQ))
}

func TestSetRejectsUnknownService(t *testing.T) {
	r := health.New()
	_, err := r.Set(health.Service("no_existe"), false)
	require.Error(t, err)
	var unknownErr *health.ErrUnknownService
	assert.ErrorAs(t, err, &unknownErr)
}

func TestSetAllAndReset(t *testing.T) {
	r := health.New()
	r.SetAll(false)
	for _, s := range health.All {
		assert.False(t, r.Healthy(s))
	}

	r.Reset()
	for _, s := range health.All {
		assert.True(t, r.Healthy(s))
	}
}

func TestGetAllReturnsIndependentSnapshot(t *testing.T) {
	r := health.New()
	snap := r.GetAll()
	snap[health.Redis] = false

	assert.True(t, r.Healthy(health.Redis), "mutating the snapshot must not affect the registry")
}
