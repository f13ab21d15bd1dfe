package strategy

import (
	"context"

	"github.com/ecomarket/purchase-pipeline/internal/health"
	"github.com/ecomarket/purchase-pipeline/internal/purchase"
	"github.com/ecomarket/purchase-pipeline/internal/queuebackend"
)

// QueueEnqueuer is the subset of queuebackend.InProcess a strategy needs.
type QueueEnqueuer interface {
	Enqueue(ctx context.Context, msg purchase.Message) queuebackend.EnqueueResult
}

// Queue is the in_process_queue strategy: exactly one attempt that
// delegates entirely to the queue backend. It is a side-effect
// strategy — its "success" means the in-process queue accepted the message, not
// that any retry happened internally (§4.4 forbids backend-internal
// retry).
type Queue struct {
	Registry *health.Registry
	Backend  QueueEnqueuer
}

func NewQueue(registry *health.Registry, backend QueueEnqueuer) *Queue {
	return &Queue{Registry: registry, Backend: backend}
}

func (q *Queue) Tag() purchase.StrategyTag  { return purchase.RedisQueue }
func (q *Queue) HealthFlag() health.Service { return health.Redis }

func (q *Queue) Execute(ctx context.Context, msg purchase.Message) purchase.Outcome {
	result := q.Backend.Enqueue(ctx, msg)
	if !result.OK {
		reason := purchase.ReasonServiceDisabled
		if result.FailureKind == queuebackend.FailureConnection {
			reason = purchase.ReasonConnection
		}
		return purchase.Outcome{
			Status:       purchase.StatusFailed,
			AttemptsMade: 1,
			Narrative:    "no se pudo encolar la compra",
			Errors: []purchase.AttemptError{{
				AttemptIndex: 1,
				ReasonKind:   reason,
				Message:      string(result.FailureKind),
			}},
			Recommendation: result.Recommendation,
		}
	}

	return purchase.Outcome{
		Status:        purchase.StatusSuccess,
		AttemptsMade:  1,
		SuccessfulTry: 1,
		QueueDepth:    result.QueueDepth,
		Destination:   "cola_interna",
		Narrative:     "compra encolada exitosamente",
	}
}
