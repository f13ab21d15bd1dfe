// Package queuebackend implements the in-process ordered queue used by
// the in_process_queue strategy. It also writes every accepted entry
// through to Redis (go-redis) for external inspection, mirroring the
// cache-aside client pattern used elsewhere in this codebase, but Redis
// is never the source of truth — the in-memory slice is.
package queuebackend

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ecomarket/purchase-pipeline/internal/health"
	"github.com/ecomarket/purchase-pipeline/internal/purchase"
)

// FailureKind classifies why enqueue failed.
type FailureKind string

const (
	FailureConnectionDisabled FailureKind = "connection_disabled"
	FailureConnection         FailureKind = "connection"
)

// EnqueueResult is the outcome of one enqueue call.
type EnqueueResult struct {
	OK             bool
	Seq            int64
	QueueDepth     int
	FailureKind    FailureKind
	Recommendation string
}

// Entry is one committed queue slot (§ QueueEntry, invariant Q1: Seq is
// strictly increasing per process).
type Entry struct {
	Seq        int64            `json:"seq"`
	EnqueuedAt time.Time        `json:"enqueued_at"`
	Payload    purchase.Message `json:"payload"`
}

const redisKeyPrefix = "ecomarket:queue:compras"

// InProcess is the FIFO queue backend. Mutation is serialized through
// mu; the Redis write-through is best-effort and never blocks a
// successful enqueue on its own failure.
type InProcess struct {
	mu       sync.Mutex
	entries  []Entry
	nextSeq  int64
	registry *health.Registry
	redis    *redis.Client
	log      *slog.Logger
}

func New(registry *health.Registry, redisClient *redis.Client, log *slog.Logger) *InProcess {
	return &InProcess{registry: registry, redis: redisClient, log: log, nextSeq: 1}
}

func (q *InProcess) Enqueue(ctx context.Context, msg purchase.Message) EnqueueResult {
	if !q.registry.Gate(health.Redis) {
		return EnqueueResult{
			FailureKind:    FailureConnectionDisabled,
			Recommendation: "el servicio de cola está desactivado, intenta más tarde o usa otro modo",
		}
	}

	if rand.Float64() < 0.10 {
		return EnqueueResult{FailureKind: FailureConnection, Recommendation: "fallo transitorio de conexión a la cola, reintenta la compra"}
	}

	q.mu.Lock()
	seq := q.nextSeq
	q.nextSeq++
	entry := Entry{Seq: seq, EnqueuedAt: time.Now(), Payload: msg}
	q.entries = append(q.entries, entry)
	depth := len(q.entries)
	q.mu.Unlock()

	q.writeThrough(ctx, entry)

	return EnqueueResult{OK: true, Seq: seq, QueueDepth: depth}
}

// writeThrough best-effort mirrors the entry into Redis for external
// inspection (e.g. an ops dashboard). Its failure never fails the
// enqueue: the in-memory queue already committed the entry.
func (q *InProcess) writeThrough(ctx context.Context, entry Entry) {
	if q.redis == nil {
		return
	}
	data, err := json.Marshal(entry)
	if err != nil {
		q.log.Warn("queue write-through marshal failed", "error", err, "seq", entry.Seq)
		return
	}
	wctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := q.redis.RPush(wctx, redisKeyPrefix, data).Err(); err != nil {
		q.log.Warn("queue write-through to redis failed", "error", err, "seq", entry.Seq)
	}
}

// Depth returns the current entry count, for the control/admin surface.
func (q *InProcess) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

func (r FailureKind) String() string { return string(r) }
