package strategy

import (
	"context"
	"fmt"

	"github.com/ecomarket/purchase-pipeline/internal/health"
	"github.com/ecomarket/purchase-pipeline/internal/purchase"
)

const scheduledRetryMaxAttempts = 5

// scheduledRetryWaitMs is the fixed ladder applied before every attempt,
// including the first — unlike simple_retry and exp_backoff, which take
// no wait before attempt 1.
var scheduledRetryWaitMs = [scheduledRetryMaxAttempts]int64{1000, 2000, 4000, 8000, 16000}

var scheduledRetryBands = []band{
	{upper: 0.18, kind: purchase.ReasonConnection, msg: "error de conexión de red"},
	{upper: 0.28, kind: purchase.ReasonTimeout, msg: "timeout en la conexión"},
	{upper: 0.33, kind: purchase.ReasonServiceGeneric, msg: "servicio temporalmente no disponible"},
	{upper: 0.65}, // success
	{upper: 1.00, kind: purchase.ReasonServiceGeneric, msg: "error interno del servidor"},
}

// ScheduledRetry is the scheduled_retry strategy: a fixed 5-attempt
// schedule where the ladder wait [1, 2, 4, 8, 16]s runs before every
// attempt regardless of how the previous one failed.
type ScheduledRetry struct {
	Registry *health.Registry
	Clock    Clock
	Rand     Rand
}

func NewScheduledRetry(registry *health.Registry, clock Clock, rnd Rand) *ScheduledRetry {
	return &ScheduledRetry{Registry: registry, Clock: clock, Rand: rnd}
}

func (s *ScheduledRetry) Tag() purchase.StrategyTag  { return purchase.ReintentosSofisticados }
func (s *ScheduledRetry) HealthFlag() health.Service { return health.ScheduledRetry }

func (s *ScheduledRetry) Execute(ctx context.Context, _ purchase.Message) purchase.Outcome {
	var errs []purchase.AttemptError
	var totalWait int64
	attemptsMade := 0

	for attempt := 1; attempt <= scheduledRetryMaxAttempts; attempt++ {
		if ctx.Err() != nil {
			break
		}
		attemptsMade = attempt

		waited := s.Clock.Sleep(ctx, Duration(scheduledRetryWaitMs[attempt-1]))
		waitedMs := waited.Milliseconds()
		totalWait += waitedMs

		if !s.Registry.Gate(health.ScheduledRetry) {
			offending := s.Registry.OffendingFlag(health.ScheduledRetry)
			errs = append(errs, purchase.AttemptError{
				AttemptIndex:   attempt,
				ReasonKind:     purchase.ReasonServiceDisabled,
				Message:        fmt.Sprintf("%s no disponible", offending),
				WaitedBeforeMs: waitedMs,
			})
			continue
		}

		if ok, kind, msg := classify(s.Rand.Float64(), scheduledRetryBands); ok {
			return purchase.Outcome{
				Status:        purchase.StatusSuccess,
				AttemptsMade:  attempt,
				SuccessfulTry: attempt,
				TotalWaitMs:   totalWait,
				Errors:        errs,
				Narrative:     fmt.Sprintf("procesado exitosamente en el intento %d/%d según calendario", attempt, scheduledRetryMaxAttempts),
			}
		}

		errs = append(errs, purchase.AttemptError{
			AttemptIndex:   attempt,
			ReasonKind:     kind,
			Message:        msg,
			WaitedBeforeMs: waitedMs,
		})
	}

	narrative := fmt.Sprintf("venta fallida tras %d intentos programados", scheduledRetryMaxAttempts)
	if ctx.Err() != nil {
		narrative = "venta cancelada antes de completar el calendario de reintentos"
	}

	return purchase.Outcome{
		Status:         purchase.StatusFailed,
		AttemptsMade:   attemptsMade,
		TotalWaitMs:    totalWait,
		Errors:         errs,
		Narrative:      narrative,
		Recommendation: "el servicio programado no pudo completar la compra, intenta con otro modo",
	}
}
