package strategy

import (
	"context"

	"github.com/ecomarket/purchase-pipeline/internal/health"
	"github.com/ecomarket/purchase-pipeline/internal/purchase"
)

// Direct is the http_direct strategy: exactly one attempt, no retries,
// no wait schedule. A closed gate fails immediately with
// service_disabled; otherwise ~85% of attempts succeed (§4.3 table).
type Direct struct {
	Registry *health.Registry
	Rand     Rand
}

func NewDirect(registry *health.Registry, rnd Rand) *Direct {
	return &Direct{Registry: registry, Rand: rnd}
}

func (d *Direct) Tag() purchase.StrategyTag  { return purchase.HTTPDirecto }
func (d *Direct) HealthFlag() health.Service { return health.HTTPDirect }

func (d *Direct) Execute(_ context.Context, _ purchase.Message) purchase.Outcome {
	if !d.Registry.Gate(health.HTTPDirect) {
		offending := d.Registry.OffendingFlag(health.HTTPDirect)
		return purchase.Outcome{
			Status:       purchase.StatusFailed,
			AttemptsMade: 1,
			Narrative:    "HTTP Directo no disponible: " + string(offending) + " desactivado, sin reintentos",
			Errors: []purchase.AttemptError{{
				AttemptIndex: 1,
				ReasonKind:   purchase.ReasonServiceDisabled,
				Message:      string(offending) + " desactivado",
			}},
			Recommendation: "Reactiva el servicio desde el panel de control o usa un modo con reintentos",
		}
	}

	if d.Rand.Float64() < 0.15 {
		return purchase.Outcome{
			Status:       purchase.StatusFailed,
			AttemptsMade: 1,
			Narrative:    "Fallo en procesamiento directo, sin reintentos disponibles",
			Errors: []purchase.AttemptError{{
				AttemptIndex: 1,
				ReasonKind:   purchase.ReasonConnection,
				Message:      "error de conexión en intento único",
			}},
			Recommendation: "Usa un modo con reintentos o verifica tu conexión",
		}
	}

	return purchase.Outcome{
		Status:        purchase.StatusSuccess,
		AttemptsMade:  1,
		SuccessfulTry: 1,
		Narrative:     "Procesado directamente vía HTTP, sin tolerancia a fallos",
	}
}
