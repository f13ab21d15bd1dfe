package strategy

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/trace"

	"github.com/ecomarket/purchase-pipeline/internal/health"
	"github.com/ecomarket/purchase-pipeline/internal/purchase"
)

// TelemetryMiddleware wraps a Strategy and records a span event per
// Execute call, carrying the outcome's attempt count and status onto
// whatever span is already active on ctx.
type TelemetryMiddleware struct {
	next Strategy
}

func NewTelemetryMiddleware(next Strategy) Strategy {
	return &TelemetryMiddleware{next: next}
}

func (m *TelemetryMiddleware) Tag() purchase.StrategyTag  { return m.next.Tag() }
func (m *TelemetryMiddleware) HealthFlag() health.Service { return m.next.HealthFlag() }

func (m *TelemetryMiddleware) Execute(ctx context.Context, msg purchase.Message) purchase.Outcome {
	span := trace.SpanFromContext(ctx)
	span.AddEvent(fmt.Sprintf("Execute: mode=%s product_id=%d correlation_id=%s", m.next.Tag(), msg.ProductID, msg.CorrelationID))

	outcome := m.next.Execute(ctx, msg)

	span.AddEvent(fmt.Sprintf("Execute done: mode=%s status=%s attempts=%d", m.next.Tag(), outcome.Status, outcome.AttemptsMade))

	return outcome
}
