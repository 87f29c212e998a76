package portfolioAuth

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/MrEthical07/portfolioAuth/logging"
)

// auditDropReportEvery throttles drop warnings after the first one.
const auditDropReportEvery = 1000

// queuedAudit is an event plus the context of the request that raised it,
// stripped of cancellation so a sink still sees request-scoped values after
// the handler has returned.
type queuedAudit struct {
	ctx   context.Context
	event AuditEvent
}

// auditQueue hands audit events from login, renewal and guard paths to the
// sink on a single worker goroutine.
type auditQueue struct {
	sink       AuditSink
	logger     *slog.Logger
	dropIfFull bool

	pending  chan queuedAudit
	stop     chan struct{}
	worker   sync.WaitGroup
	stopOnce sync.Once
	stopping atomic.Bool
	dropped  atomic.Uint64
}

func newAuditQueue(cfg AuditConfig, sink AuditSink, logger *slog.Logger) *auditQueue {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	if logger == nil {
		logger = logging.Discard()
	}

	q := &auditQueue{
		sink:       sink,
		logger:     logger,
		dropIfFull: cfg.DropIfFull,
		pending:    make(chan queuedAudit, max(cfg.BufferSize, 1)),
		stop:       make(chan struct{}),
	}
	q.worker.Add(1)
	go q.deliver()
	return q
}

func (q *auditQueue) deliver() {
	defer q.worker.Done()
	for {
		select {
		case item := <-q.pending:
			q.sink.Emit(item.ctx, item.event)
		case <-q.stop:
			for len(q.pending) > 0 {
				item := <-q.pending
				q.sink.Emit(item.ctx, item.event)
			}
			return
		}
	}
}

// Emit queues event. With DropIfFull a full queue loses the event at once;
// otherwise Emit waits for room until ctx ends. Lost events are counted and
// reported through the engine logger.
func (q *auditQueue) Emit(ctx context.Context, event AuditEvent) {
	if q == nil || q.stopping.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	item := queuedAudit{ctx: context.WithoutCancel(ctx), event: event}

	if q.dropIfFull {
		select {
		case q.pending <- item:
		case <-q.stop:
		default:
			q.lost(ctx, event, "queue full")
		}
		return
	}

	select {
	case q.pending <- item:
	case <-q.stop:
	case <-ctx.Done():
		q.lost(ctx, event, "request ended")
	}
}

func (q *auditQueue) lost(ctx context.Context, event AuditEvent, reason string) {
	n := q.dropped.Add(1)
	if n != 1 && n%auditDropReportEvery != 0 {
		return
	}
	q.logger.LogAttrs(ctx, slog.LevelWarn, "audit event dropped",
		slog.String("event", event.EventType),
		slog.String("reason", reason),
		slog.Uint64("dropped_total", n),
		slog.Int("queue_capacity", cap(q.pending)),
	)
}

// Close stops accepting events, delivers what is already queued and waits
// for the worker.
func (q *auditQueue) Close() {
	if q == nil {
		return
	}
	q.stopOnce.Do(func() {
		q.stopping.Store(true)
		close(q.stop)
		q.worker.Wait()
		if n := q.dropped.Load(); n > 0 {
			q.logger.Warn("audit queue closed with dropped events", "dropped_total", n)
		}
	})
}

func (q *auditQueue) Dropped() uint64 {
	if q == nil {
		return 0
	}
	return q.dropped.Load()
}
