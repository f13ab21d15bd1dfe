package catalog_test

import (
	"encoding/json"
	"log/slog"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecomarket/purchase-pipeline/internal/catalog"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newSeededStore(t *testing.T) *catalog.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "productos_data.json")
	s := catalog.New(path, discardLogger())
	require.NoError(t, s.LoadOrSeed())
	return s
}

func TestLoadOrSeedSeedsFiveProductsWithOneUnavailable(t *testing.T) {
	s := newSeededStore(t)
	products := s.List()
	require.Len(t, products, 5)

	unavailable := 0
	for _, p := range products {
		if !p.Available {
			unavailable++
			assert.Equal(t, 0, p.Stock)
		}
	}
	assert.Equal(t, 1, unavailable)
}

func TestReserveDecrementsStockAndPersists(t *testing.T) {
	s := newSeededStore(t)
	products := s.List()
	target := products[0]

	result := s.Reserve(target.ID, 10)
	require.Equal(t, catalog.ReserveOK, result.Outcome)
	assert.Equal(t, target.Stock-10, result.Product.Stock)

	got, ok := s.Get(target.ID)
	require.True(t, ok)
	assert.Equal(t, target.Stock-10, got.Stock)
}

func TestReserveInsufficientStockReportsAvailableQuantity(t *testing.T) {
	s := newSeededStore(t)
	products := s.List()
	target := products[0]

	result := s.Reserve(target.ID, target.Stock+1)
	require.Equal(t, catalog.ReserveInsufficientStock, result.Outcome)
	assert.Equal(t, target.Stock, result.AvailableQuantity)
}

func TestReserveNotAvailableForZeroStockProduct(t *testing.T) {
	s := newSeededStore(t)
	var outOfStock catalog.Product
	for _, p := range s.List() {
		if !p.Available {
			outOfStock = p
		}
	}
	require.NotZero(t, outOfStock.ID)

	result := s.Reserve(outOfStock.ID, 1)
	assert.Equal(t, catalog.ReserveNotAvailable, result.Outcome)
}

func TestReserveNotFound(t *testing.T) {
	s := newSeededStore(t)
	result := s.Reserve(99999, 1)
	assert.Equal(t, catalog.ReserveNotFound, result.Outcome)
}

func TestReserveAtZeroStockFlipsAvailability(t *testing.T) {
	s := newSeededStore(t)
	products := s.List()
	target := products[0]

	result := s.Reserve(target.ID, target.Stock)
	require.Equal(t, catalog.ReserveOK, result.Outcome)
	assert.Equal(t, 0, result.Product.Stock)
	assert.False(t, result.Product.Available)
}

func TestReleaseRestoresStockAndAvailability(t *testing.T) {
	s := newSeededStore(t)
	products := s.List()
	target := products[0]

	reserved := s.Reserve(target.ID, target.Stock)
	require.Equal(t, catalog.ReserveOK, reserved.Outcome)
	require.False(t, reserved.Product.Available)

	require.NoError(t, s.Release(target.ID, target.Stock))

	got, ok := s.Get(target.ID)
	require.True(t, ok)
	assert.Equal(t, target.Stock, got.Stock)
	assert.True(t, got.Available)
}

func TestConcurrentReservationsAreLinearized(t *testing.T) {
	s := newSeededStore(t)
	products := s.List()
	target := products[1] // stock 200

	const workers = 50
	var wg sync.WaitGroup
	successes := make([]bool, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result := s.Reserve(target.ID, 4)
			successes[i] = result.Outcome == catalog.ReserveOK
		}(i)
	}
	wg.Wait()

	okCount := 0
	for _, ok := range successes {
		if ok {
			okCount++
		}
	}
	assert.Equal(t, workers, okCount, "every reservation should fit in 200 stock at 4 units each")

	got, ok := s.Get(target.ID)
	require.True(t, ok)
	assert.Equal(t, target.Stock-workers*4, got.Stock)
}

func TestPersistenceRoundTripsThroughTheFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "productos_data.json")
	s := catalog.New(path, discardLogger())
	require.NoError(t, s.LoadOrSeed())

	products := s.List()
	require.NoError(t, s.Release(products[0].ID, 5))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var onDisk []catalog.Product
	require.NoError(t, json.Unmarshal(data, &onDisk))
	require.Len(t, onDisk, 5)

	reopened := catalog.New(path, discardLogger())
	require.NoError(t, reopened.LoadOrSeed())
	got, ok := reopened.Get(products[0].ID)
	require.True(t, ok)
	assert.Equal(t, products[0].Stock+5, got.Stock)
}

func TestUpdateRecomputesAvailabilityWhenStockChanges(t *testing.T) {
	s := newSeededStore(t)
	products := s.List()
	var outOfStock catalog.Product
	for _, p := range products {
		if !p.Available {
			outOfStock = p
		}
	}
	require.NotZero(t, outOfStock.ID)

	newStock := 10
	updated, err := s.Update(outOfStock.ID, catalog.ProductPatch{Stock: &newStock})
	require.NoError(t, err)
	assert.True(t, updated.Available)
	assert.Equal(t, 10, updated.Stock)
}

func TestDeleteRemovesProduct(t *testing.T) {
	s := newSeededStore(t)
	products := s.List()
	target := products[0]

	require.NoError(t, s.Delete(target.ID))
	_, ok := s.Get(target.ID)
	assert.False(t, ok)
}

func TestUpdateAndDeleteUnknownIDReturnErrNotFound(t *testing.T) {
	s := newSeededStore(t)
	_, err := s.Update(99999, catalog.ProductPatch{})
	assert.ErrorIs(t, err, catalog.ErrNotFound)

	err = s.Delete(99999)
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}
