// Package dispatcher implements the whole-request purchase protocol:
// validate, pre-gate, reserve, execute the chosen strategy, compose the
// response envelope, and apply the rollback policy on strategy failure.
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ecomarket/purchase-pipeline/internal/catalog"
	"github.com/ecomarket/purchase-pipeline/internal/health"
	"github.com/ecomarket/purchase-pipeline/internal/purchase"
	"github.com/ecomarket/purchase-pipeline/internal/strategy"
)

// ErrorType enumerates the wire error codes (§6).
type ErrorType string

const (
	ErrValidation        ErrorType = "VALIDATION_ERROR"
	ErrNotFound          ErrorType = "NOT_FOUND"
	ErrServiceDisabled   ErrorType = "SERVICIO_DESACTIVADO"
	ErrNotAvailable      ErrorType = "NOT_AVAILABLE"
	ErrInsufficientStock ErrorType = "INSUFFICIENT_STOCK"
)

// RequestError is a failure surfaced before or during reservation, with
// an HTTP status already attached.
type RequestError struct {
	Status  int
	Type    ErrorType
	Message string
}

func (e *RequestError) Error() string { return e.Message }

// Result is the successful (possibly strategy-failed) outcome of
// dispatching one purchase request — the basis for the response
// envelope built by the HTTP layer.
type Result struct {
	CorrelationID     string
	Product           catalog.Product
	Quantity          int
	Total             float64
	Mode              purchase.StrategyTag
	Outcome           purchase.Outcome
	AvailableAfter    bool
	ReservationRolled bool
}

// strategyHealthFlags maps a wire strategy tag to the health flag the
// Dispatcher checks at the pre-gate stage — the same flag the strategy
// itself rechecks per attempt.
var strategyHealthFlags = map[purchase.StrategyTag]health.Service{
	purchase.HTTPDirecto:            health.HTTPDirect,
	purchase.ReintentosSimples:      health.SimpleRetry,
	purchase.BackoffExponencial:     health.ExpBackoff,
	purchase.ReintentosSofisticados: health.ScheduledRetry,
	purchase.RedisQueue:             health.Redis,
	purchase.RabbitMQ:               health.RabbitMQ,
}

// sideEffectStrategies are the ones whose failure must release the
// reservation (§4.5 rollback policy). Pure retry strategies commit the
// decrement regardless of downstream status — the documented, preserved
// source behavior (see DESIGN.md Open Questions).
var sideEffectStrategies = map[purchase.StrategyTag]bool{
	purchase.RedisQueue: true,
	purchase.RabbitMQ:   true,
}

// Dispatcher wires the Inventory Store, the Health Registry, and the
// strategy registry together.
type Dispatcher struct {
	Inventory  *catalog.Store
	Registry   *health.Registry
	Strategies map[purchase.StrategyTag]strategy.Strategy
	Log        *slog.Logger
}

func New(inventory *catalog.Store, registry *health.Registry, strategies map[purchase.StrategyTag]strategy.Strategy, log *slog.Logger) *Dispatcher {
	return &Dispatcher{Inventory: inventory, Registry: registry, Strategies: strategies, Log: log}
}

// Dispatch runs the full protocol for one purchase request.
func (d *Dispatcher) Dispatch(ctx context.Context, req purchase.Request) (*Result, *RequestError) {
	if req.Quantity <= 0 {
		return nil, &RequestError{Status: 400, Type: ErrValidation, Message: "cantidad debe ser mayor que cero"}
	}
	if !req.Mode.Valid() {
		return nil, &RequestError{Status: 400, Type: ErrValidation, Message: fmt.Sprintf("modo de procesamiento desconocido: %s", req.Mode)}
	}

	flag := strategyHealthFlags[req.Mode]
	if !d.Registry.Gate(flag) {
		offending := d.Registry.OffendingFlag(flag)
		return nil, &RequestError{
			Status:  503,
			Type:    ErrServiceDisabled,
			Message: fmt.Sprintf("servicio desactivado: %s no disponible, modo solicitado %s", offending, req.Mode),
		}
	}

	product, ok := d.Inventory.Get(req.ProductID)
	if !ok {
		return nil, &RequestError{Status: 404, Type: ErrNotFound, Message: "producto no encontrado"}
	}
	if !product.Available {
		return nil, &RequestError{Status: 400, Type: ErrNotAvailable, Message: "producto no disponible"}
	}

	reserved := d.Inventory.Reserve(req.ProductID, req.Quantity)
	switch reserved.Outcome {
	case catalog.ReserveNotFound:
		return nil, &RequestError{Status: 404, Type: ErrNotFound, Message: "producto no encontrado"}
	case catalog.ReserveNotAvailable:
		return nil, &RequestError{Status: 400, Type: ErrNotAvailable, Message: "producto no disponible"}
	case catalog.ReserveInsufficientStock:
		return nil, &RequestError{
			Status:  400,
			Type:    ErrInsufficientStock,
			Message: fmt.Sprintf("stock insuficiente: disponible %d, solicitado %d", reserved.AvailableQuantity, req.Quantity),
		}
	}

	strat, ok := d.Strategies[req.Mode]
	if !ok {
		// Unreachable once Strategies is wired for every valid tag; kept
		// so a configuration mistake fails loudly instead of panicking.
		d.Inventory.Release(req.ProductID, req.Quantity)
		return nil, &RequestError{Status: 500, Type: ErrValidation, Message: "estrategia no configurada"}
	}

	correlationID := uuid.NewString()

	msg := purchase.Message{
		CorrelationID: correlationID,
		Timestamp:     time.Now(),
		ProductID:     product.ID,
		ProductName:   product.Name,
		Category:      product.Category,
		UnitPrice:     product.Price,
		Quantity:      req.Quantity,
		Total:         product.Price * float64(req.Quantity),
		StockAfter:    reserved.Product.Stock,
		Mode:          req.Mode,
		State:         "procesando",
	}

	d.Log.Info("dispatching purchase",
		slog.String("correlation_id", correlationID),
		slog.Int("product_id", req.ProductID),
		slog.String("mode", string(req.Mode)),
	)

	outcome := strat.Execute(ctx, msg)

	// §4.5's rollback policy and §5's cancellation-cleanup path share one
	// rule: a side-effect strategy that didn't complete successfully —
	// whether it failed on its own terms or the request was cancelled
	// mid-flight — releases the reservation it never delivered on.
	rolled := false
	needsRollback := sideEffectStrategies[req.Mode] && (outcome.Status == purchase.StatusFailed || ctx.Err() != nil)
	if needsRollback {
		if err := d.Inventory.Release(req.ProductID, req.Quantity); err != nil {
			d.Log.Warn("failed to roll back reservation after strategy failure",
				slog.Int("product_id", req.ProductID), slog.String("mode", string(req.Mode)), slog.Any("error", err))
		} else {
			rolled = true
		}
	}

	finalProduct := reserved.Product
	if rolled {
		if p, ok := d.Inventory.Get(req.ProductID); ok {
			finalProduct = p
		}
	}

	return &Result{
		CorrelationID:     correlationID,
		Product:           finalProduct,
		Quantity:          req.Quantity,
		Total:             msg.Total,
		Mode:              req.Mode,
		Outcome:           outcome,
		AvailableAfter:    finalProduct.Available,
		ReservationRolled: rolled,
	}, nil
}
