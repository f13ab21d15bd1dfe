package strategy

import (
	"context"
	"fmt"

	"github.com/ecomarket/purchase-pipeline/internal/health"
	"github.com/ecomarket/purchase-pipeline/internal/purchase"
)

const simpleRetryMaxAttempts = 4

var simpleRetryBands = []band{
	{upper: 0.15, kind: purchase.ReasonConnection, msg: "error de conexión de red"},
	{upper: 0.25, kind: purchase.ReasonTimeout, msg: "timeout en la conexión"},
	{upper: 0.30, kind: purchase.ReasonServiceGeneric, msg: "servicio temporalmente no disponible"},
	{upper: 0.70}, // success
	{upper: 1.00, kind: purchase.ReasonServiceGeneric, msg: "error interno del servidor"},
}

// SimpleRetry is the simple_retry strategy: up to 4 attempts, a constant
// 1s wait before every attempt after the first, terminating on the
// first success.
type SimpleRetry struct {
	Registry *health.Registry
	Clock    Clock
	Rand     Rand
}

func NewSimpleRetry(registry *health.Registry, clock Clock, rnd Rand) *SimpleRetry {
	return &SimpleRetry{Registry: registry, Clock: clock, Rand: rnd}
}

func (s *SimpleRetry) Tag() purchase.StrategyTag  { return purchase.ReintentosSimples }
func (s *SimpleRetry) HealthFlag() health.Service { return health.SimpleRetry }

func (s *SimpleRetry) Execute(ctx context.Context, _ purchase.Message) purchase.Outcome {
	var errs []purchase.AttemptError
	var totalWait int64
	attemptsMade := 0

	for attempt := 1; attempt <= simpleRetryMaxAttempts; attempt++ {
		if ctx.Err() != nil {
			break
		}
		attemptsMade = attempt

		var waitedMs int64
		if attempt > 1 {
			waited := s.Clock.Sleep(ctx, 1000)
			waitedMs = waited.Milliseconds()
			totalWait += waitedMs
		}

		if !s.Registry.Gate(health.SimpleRetry) {
			offending := s.Registry.OffendingFlag(health.SimpleRetry)
			errs = append(errs, purchase.AttemptError{
				AttemptIndex:   attempt,
				ReasonKind:     purchase.ReasonServiceDisabled,
				Message:        fmt.Sprintf("%s no disponible", offending),
				WaitedBeforeMs: waitedMs,
			})
			continue
		}

		if ok, kind, msg := classify(s.Rand.Float64(), simpleRetryBands); ok {
			return purchase.Outcome{
				Status:        purchase.StatusSuccess,
				AttemptsMade:  attempt,
				SuccessfulTry: attempt,
				TotalWaitMs:   totalWait,
				Errors:        errs,
				Narrative:     fmt.Sprintf("procesado exitosamente en el intento %d/%d", attempt, simpleRetryMaxAttempts),
			}
		} else {
			errs = append(errs, purchase.AttemptError{
				AttemptIndex:   attempt,
				ReasonKind:     kind,
				Message:        msg,
				WaitedBeforeMs: waitedMs,
			})
		}
	}

	narrative := fmt.Sprintf("venta fallida: no se pudo procesar después de %d intentos", simpleRetryMaxAttempts)
	if ctx.Err() != nil {
		narrative = "venta cancelada antes de completar los reintentos"
	}

	return purchase.Outcome{
		Status:         purchase.StatusFailed,
		AttemptsMade:   attemptsMade,
		TotalWaitMs:    totalWait,
		Errors:         errs,
		Narrative:      narrative,
		Recommendation: "verifica tu conexión e intenta más tarde",
	}
}
