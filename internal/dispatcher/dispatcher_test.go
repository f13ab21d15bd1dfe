package dispatcher_test

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecomarket/purchase-pipeline/internal/catalog"
	"github.com/ecomarket/purchase-pipeline/internal/dispatcher"
	"github.com/ecomarket/purchase-pipeline/internal/health"
	"github.com/ecomarket/purchase-pipeline/internal/purchase"
	"github.com/ecomarket/purchase-pipeline/internal/strategy"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newStoreWithStock(t *testing.T) *catalog.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "productos_data.json")
	s := catalog.New(path, discardLogger())
	require.NoError(t, s.LoadOrSeed())
	return s
}

// stubStrategy returns a fixed outcome regardless of input.
type stubStrategy struct {
	tag     purchase.StrategyTag
	flag    health.Service
	outcome purchase.Outcome
}

func (s stubStrategy) Tag() purchase.StrategyTag  { return s.tag }
func (s stubStrategy) HealthFlag() health.Service { return s.flag }
func (s stubStrategy) Execute(_ context.Context, _ purchase.Message) purchase.Outcome {
	return s.outcome
}

func strategies(ss ...stubStrategy) map[purchase.StrategyTag]strategy.Strategy {
	out := make(map[purchase.StrategyTag]strategy.Strategy, len(ss))
	for _, s := range ss {
		out[s.tag] = s
	}
	return out
}

func TestDispatchHappyPathOnRabbitMQ(t *testing.T) {
	registry := health.New()
	store := newStoreWithStock(t)
	product := store.List()[0]

	strat := stubStrategy{tag: purchase.RabbitMQ, flag: health.RabbitMQ, outcome: purchase.Outcome{
		Status: purchase.StatusSuccess, AttemptsMade: 1, SuccessfulTry: 1, Destination: "compras_ecomarket",
	}}
	d := dispatcher.New(store, registry, strategies(strat), discardLogger())

	result, reqErr := d.Dispatch(context.Background(), purchase.Request{ProductID: product.ID, Quantity: 2, Mode: purchase.RabbitMQ})
	require.Nil(t, reqErr)
	require.NotNil(t, result)
	assert.Equal(t, purchase.StatusSuccess, result.Outcome.Status)
	assert.False(t, result.ReservationRolled)
	assert.NotEmpty(t, result.CorrelationID)

	got, ok := store.Get(product.ID)
	require.True(t, ok)
	assert.Equal(t, product.Stock-2, got.Stock)
}

func TestDispatchPreGateBlocksBeforeReservation(t *testing.T) {
	registry := health.New()
	_, err := registry.Set(health.RabbitMQ, false)
	require.NoError(t, err)

	store := newStoreWithStock(t)
	product := store.List()[0]

	strat := stubStrategy{tag: purchase.RabbitMQ, flag: health.RabbitMQ}
	d := dispatcher.New(store, registry, strategies(strat), discardLogger())

	result, reqErr := d.Dispatch(context.Background(), purchase.Request{ProductID: product.ID, Quantity: 1, Mode: purchase.RabbitMQ})
	require.Nil(t, result)
	require.NotNil(t, reqErr)
	assert.Equal(t, 503, reqErr.Status)
	assert.Equal(t, dispatcher.ErrServiceDisabled, reqErr.Type)

	got, ok := store.Get(product.ID)
	require.True(t, ok)
	assert.Equal(t, product.Stock, got.Stock, "a pre-gated request must never touch stock")
}

func TestDispatchRollsBackReservationWhenSideEffectStrategyFails(t *testing.T) {
	registry := health.New()
	store := newStoreWithStock(t)
	product := store.List()[0]

	strat := stubStrategy{tag: purchase.RedisQueue, flag: health.Redis, outcome: purchase.Outcome{Status: purchase.StatusFailed}}
	d := dispatcher.New(store, registry, strategies(strat), discardLogger())

	result, reqErr := d.Dispatch(context.Background(), purchase.Request{ProductID: product.ID, Quantity: 3, Mode: purchase.RedisQueue})
	require.Nil(t, reqErr)
	require.NotNil(t, result)
	assert.True(t, result.ReservationRolled)

	got, ok := store.Get(product.ID)
	require.True(t, ok)
	assert.Equal(t, product.Stock, got.Stock, "the reservation should have been released")
}

func TestDispatchDoesNotRollBackPureRetryStrategyOnFailure(t *testing.T) {
	registry := health.New()
	store := newStoreWithStock(t)
	product := store.List()[0]

	strat := stubStrategy{tag: purchase.ReintentosSimples, flag: health.SimpleRetry, outcome: purchase.Outcome{Status: purchase.StatusFailed}}
	d := dispatcher.New(store, registry, strategies(strat), discardLogger())

	result, reqErr := d.Dispatch(context.Background(), purchase.Request{ProductID: product.ID, Quantity: 3, Mode: purchase.ReintentosSimples})
	require.Nil(t, reqErr)
	require.NotNil(t, result)
	assert.False(t, result.ReservationRolled)

	got, ok := store.Get(product.ID)
	require.True(t, ok)
	assert.Equal(t, product.Stock-3, got.Stock, "a pure retry strategy's failure still keeps the decrement")
}

func TestDispatchRejectsInvalidQuantityAndUnknownMode(t *testing.T) {
	registry := health.New()
	store := newStoreWithStock(t)
	product := store.List()[0]

	d := dispatcher.New(store, registry, strategies(), discardLogger())

	_, reqErr := d.Dispatch(context.Background(), purchase.Request{ProductID: product.ID, Quantity: 0, Mode: purchase.HTTPDirecto})
	require.NotNil(t, reqErr)
	assert.Equal(t, dispatcher.ErrValidation, reqErr.Type)

	_, reqErr = d.Dispatch(context.Background(), purchase.Request{ProductID: product.ID, Quantity: 1, Mode: purchase.StrategyTag("NO_EXISTE")})
	require.NotNil(t, reqErr)
	assert.Equal(t, dispatcher.ErrValidation, reqErr.Type)
}

func TestDispatchInsufficientStock(t *testing.T) {
	registry := health.New()
	store := newStoreWithStock(t)
	product := store.List()[0]

	strat := stubStrategy{tag: purchase.HTTPDirecto, flag: health.HTTPDirect}
	d := dispatcher.New(store, registry, strategies(strat), discardLogger())

	_, reqErr := d.Dispatch(context.Background(), purchase.Request{ProductID: product.ID, Quantity: product.Stock + 1, Mode: purchase.HTTPDirecto})
	require.NotNil(t, reqErr)
	assert.Equal(t, dispatcher.ErrInsufficientStock, reqErr.Type)
}

func TestDispatchProductNotFound(t *testing.T) {
	registry := health.New()
	store := newStoreWithStock(t)

	strat := stubStrategy{tag: purchase.HTTPDirecto, flag: health.HTTPDirect}
	d := dispatcher.New(store, registry, strategies(strat), discardLogger())

	_, reqErr := d.Dispatch(context.Background(), purchase.Request{ProductID: 999999, Quantity: 1, Mode: purchase.HTTPDirecto})
	require.NotNil(t, reqErr)
	assert.Equal(t, dispatcher.ErrNotFound, reqErr.Type)
	assert.Equal(t, 404, reqErr.Status)
}
