package strategy

import (
	"context"

	"github.com/ecomarket/purchase-pipeline/internal/brokerbackend"
	"github.com/ecomarket/purchase-pipeline/internal/health"
	"github.com/ecomarket/purchase-pipeline/internal/purchase"
)

// BrokerPublisher is the subset of brokerbackend.Broker a strategy needs.
type BrokerPublisher interface {
	Publish(ctx context.Context, msg purchase.Message) brokerbackend.PublishResult
}

// Broker is the durable_broker strategy: exactly one publish attempt,
// no internal retry (§4.4 reserves retries to the caller).
type Broker struct {
	Registry *health.Registry
	Backend  BrokerPublisher
}

func NewBroker(registry *health.Registry, backend BrokerPublisher) *Broker {
	return &Broker{Registry: registry, Backend: backend}
}

func (b *Broker) Tag() purchase.StrategyTag  { return purchase.RabbitMQ }
func (b *Broker) HealthFlag() health.Service { return health.RabbitMQ }

func (b *Broker) Execute(ctx context.Context, msg purchase.Message) purchase.Outcome {
	result := b.Backend.Publish(ctx, msg)
	if !result.OK {
		reason := classifyBrokerFailure(result.FailureKind)
		return purchase.Outcome{
			Status:       purchase.StatusFailed,
			AttemptsMade: 1,
			Narrative:    "no se pudo publicar la compra en el broker",
			Errors: []purchase.AttemptError{{
				AttemptIndex: 1,
				ReasonKind:   reason,
				Message:      result.Detail,
			}},
			Recommendation: "verifica la conexión al broker o usa otro modo de procesamiento",
		}
	}

	return purchase.Outcome{
		Status:        purchase.StatusSuccess,
		AttemptsMade:  1,
		SuccessfulTry: 1,
		Destination:   result.Destination,
		Narrative:     "compra publicada exitosamente en el broker",
	}
}

func classifyBrokerFailure(kind brokerbackend.FailureKind) purchase.ReasonKind {
	switch kind {
	case brokerbackend.FailureConnectionDisabled:
		return purchase.ReasonServiceDisabled
	case brokerbackend.FailureConnection, brokerbackend.FailureCredential:
		return purchase.ReasonConnection
	default:
		return purchase.ReasonServiceGeneric
	}
}
