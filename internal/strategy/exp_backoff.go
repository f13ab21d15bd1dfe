package strategy

import (
	"context"
	"fmt"

	"github.com/ecomarket/purchase-pipeline/internal/health"
	"github.com/ecomarket/purchase-pipeline/internal/purchase"
)

const (
	expBackoffOpenAttempts   = 5
	expBackoffOpenCapMs      = 2000
	expBackoffClosedAttempts = 4
	expBackoffClosedCapMs    = 1500
	expBackoffBaseMs         = 500
)

var expBackoffBands = []band{
	{upper: 0.20, kind: purchase.ReasonConnection, msg: "error de conexión de red"},
	{upper: 0.30, kind: purchase.ReasonServiceGeneric, msg: "servicio temporalmente no disponible"},
	{upper: 0.35, kind: purchase.ReasonTimeout, msg: "timeout en la conexión"},
	{upper: 0.60}, // success
	{upper: 1.00, kind: purchase.ReasonServiceGeneric, msg: "error interno del servidor"},
}

// expBackoffWaitMs returns the wait, in ms, before the given attempt
// (1-indexed), capped at capMs. Attempt 1 never waits.
func expBackoffWaitMs(attempt int, capMs int64) int64 {
	if attempt <= 1 {
		return 0
	}
	wait := int64(expBackoffBaseMs)
	for i := 1; i < attempt-1; i++ {
		wait *= 2
	}
	if wait > capMs {
		return capMs
	}
	return wait
}

// ExpBackoff is the exp_backoff strategy: capped exponential backoff
// between attempts. A gate closed for the entire run is a contractual
// special case preserved from the source — it short-circuits to 4
// attempts against a 1.5s cap instead of the usual 5 attempts / 2.0s
// cap, every attempt failing with service_disabled.
type ExpBackoff struct {
	Registry *health.Registry
	Clock    Clock
	Rand     Rand
}

func NewExpBackoff(registry *health.Registry, clock Clock, rnd Rand) *ExpBackoff {
	return &ExpBackoff{Registry: registry, Clock: clock, Rand: rnd}
}

func (e *ExpBackoff) Tag() purchase.StrategyTag  { return purchase.BackoffExponencial }
func (e *ExpBackoff) HealthFlag() health.Service { return health.ExpBackoff }

func (e *ExpBackoff) Execute(ctx context.Context, _ purchase.Message) purchase.Outcome {
	closedAtStart := !e.Registry.Gate(health.ExpBackoff)

	maxAttempts := expBackoffOpenAttempts
	capMs := int64(expBackoffOpenCapMs)
	if closedAtStart {
		maxAttempts = expBackoffClosedAttempts
		capMs = expBackoffClosedCapMs
	}

	var errs []purchase.AttemptError
	var totalWait int64
	attemptsMade := 0

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if ctx.Err() != nil {
			break
		}
		attemptsMade = attempt

		waitedMs := expBackoffWaitMs(attempt, capMs)
		if waitedMs > 0 {
			waited := e.Clock.Sleep(ctx, Duration(waitedMs))
			waitedMs = waited.Milliseconds()
		}
		totalWait += waitedMs

		if !e.Registry.Gate(health.ExpBackoff) {
			offending := e.Registry.OffendingFlag(health.ExpBackoff)
			errs = append(errs, purchase.AttemptError{
				AttemptIndex:   attempt,
				ReasonKind:     purchase.ReasonServiceDisabled,
				Message:        fmt.Sprintf("%s no disponible", offending),
				WaitedBeforeMs: waitedMs,
			})
			continue
		}

		if ok, kind, msg := classify(e.Rand.Float64(), expBackoffBands); ok {
			return purchase.Outcome{
				Status:        purchase.StatusSuccess,
				AttemptsMade:  attempt,
				SuccessfulTry: attempt,
				TotalWaitMs:   totalWait,
				Errors:        errs,
				Narrative:     fmt.Sprintf("procesado exitosamente en el intento %d/%d con backoff exponencial", attempt, maxAttempts),
			}
		}

		errs = append(errs, purchase.AttemptError{
			AttemptIndex:   attempt,
			ReasonKind:     kind,
			Message:        msg,
			WaitedBeforeMs: waitedMs,
		})
	}

	narrative := fmt.Sprintf("venta fallida tras %d intentos con backoff exponencial", maxAttempts)
	if ctx.Err() != nil {
		narrative = "venta cancelada antes de completar el backoff exponencial"
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
