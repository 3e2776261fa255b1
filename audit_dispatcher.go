package goPortal

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// auditDispatcher hands events to the sink from a single goroutine so that a
// slow sink never holds up a callback or checkout request. Events emitted
// after Close are discarded.
type auditDispatcher struct {
	sink        AuditSink
	logger      *slog.Logger
	queue       chan AuditEvent
	stop        chan struct{}
	finished    chan struct{}
	blockOnFull bool

	dropped atomic.Uint64
	closing atomic.Bool
	once    sync.Once
}

// newAuditDispatcher returns nil when auditing is disabled; every method is
// nil-safe.
func newAuditDispatcher(cfg AuditConfig, sink AuditSink, logger *slog.Logger) *auditDispatcher {
	if !cfg.Enabled {
		return nil
	}
	size := cfg.BufferSize
	if size <= 0 {
		size = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	d := &auditDispatcher{
		sink:        sink,
		logger:      logger,
		queue:       make(chan AuditEvent, size),
		stop:        make(chan struct{}),
		finished:    make(chan struct{}),
		blockOnFull: !cfg.DropIfFull,
	}
	go d.loop()
	return d
}

func (d *auditDispatcher) loop() {
	defer close(d.finished)

	for {
		select {
		case event := <-d.queue:
			d.deliver(event)
		case <-d.stop:
			d.drain()
			return
		}
	}
}

func (d *auditDispatcher) drain() {
	for {
		select {
		case event := <-d.queue:
			d.deliver(event)
		default:
			return
		}
	}
}

// deliver isolates the loop from a panicking sink. The event is counted as
// dropped.
func (d *auditDispatcher) deliver(event AuditEvent) {
	defer func() {
		if r := recover(); r != nil {
			d.dropped.Add(1)
			d.logger.Error("audit sink panicked",
				"event_type", event.EventType,
				"request_id", event.RequestID,
				"panic", r,
			)
		}
	}()
	d.sink.Emit(context.Background(), event)
}

// Emit queues event. When the buffer is full the event is either dropped and
// counted or, with DropIfFull unset, Emit waits for room until ctx ends.
func (d *auditDispatcher) Emit(ctx context.Context, event AuditEvent) {
	if d == nil || d.closing.Load() {
		return
	}

	if !d.blockOnFull {
		select {
		case d.queue <- event:
		case <-d.stop:
		default:
			d.dropped.Add(1)
		}
		return
	}

	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case d.queue <- event:
	case <-ctx.Done():
		d.dropped.Add(1)
	case <-d.stop:
	}
}

// Close stops intake and waits until every queued event reached the sink.
func (d *auditDispatcher) Close() {
	if d == nil {
		return
	}
	d.once.Do(func() {
		d.closing.Store(true)
		close(d.stop)
		<-d.finished
	})
}

// Dropped counts events lost to a full buffer, a cancelled emitter or a
// panicking sink.
func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
