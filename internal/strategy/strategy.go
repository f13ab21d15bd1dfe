// Package strategy implements the six delivery strategies the
// Dispatcher chooses between. Each is a pure function of
// (message, clock, health registry, optional backend) that produces an
// AttemptOutcome — no module-level switch on a mode string, per §9.
package strategy

import (
	"context"

	"github.com/ecomarket/purchase-pipeline/internal/health"
	"github.com/ecomarket/purchase-pipeline/internal/purchase"
)

// Strategy is the contract every delivery algorithm implements.
type Strategy interface {
	Tag() purchase.StrategyTag
	HealthFlag() health.Service
	Execute(ctx context.Context, msg purchase.Message) purchase.Outcome
}

// Clock abstracts waiting so tests can fast-forward schedules (§9). A
// real clock sleeps; a fake clock advances its own counter.
type Clock interface {
	Sleep(ctx context.Context, d Duration) Duration
}

// Duration is milliseconds, kept as its own type instead of
// time.Duration so fake clocks can't accidentally do unit math wrong in
// tests.
type Duration int64

func (d Duration) Milliseconds() int64 { return int64(d) }

// Rand abstracts the outcome-classification draw so tests can pin a
// deterministic sequence (§9).
type Rand interface {
	// Float64 returns a value in [0, 1).
	Float64() float64
}
