package core

import (
	"context"
	"fmt"
	"sync"
)

// ProcessFunc is the single-event processing entry point a dispatcher drives.
type ProcessFunc func(ctx context.Context, eventID string) error

// WorkerDispatcher schedules background processing of freshly created events
// through a bounded worker pool. Enqueue never blocks the submitting request:
// when the queue is full the event is handed to a one-off goroutine instead
// of waiting for a slot. Background failures are logged, never propagated to
// the request that created the event; the sweep picks the event up again.
type WorkerDispatcher struct {
	process ProcessFunc
	logger  Logger

	queue chan string

	mu     sync.Mutex
	wg     sync.WaitGroup
	closed bool
}

func NewWorkerDispatcher(process ProcessFunc, cfg DispatchConfig, logger Logger) *WorkerDispatcher {
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultConfig().Dispatch.Workers
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = DefaultConfig().Dispatch.QueueSize
	}

	d := &WorkerDispatcher{
		process: process,
		logger:  logger,
		queue:   make(chan string, queueSize),
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// Enqueue schedules eventID for background processing. The caller's context
// only guards the hand-off; the background run uses a detached context so it
// survives the creating request's response cycle.
func (d *WorkerDispatcher) Enqueue(ctx context.Context, eventID string) {
	if d == nil || d.process == nil || eventID == "" {
		return
	}
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	select {
	case d.queue <- eventID:
		d.mu.Unlock()
		return
	default:
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		d.run(eventID)
	}()
}

// Close stops accepting work and waits for in-flight processing to finish.
func (d *WorkerDispatcher) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *WorkerDispatcher) worker() {
	defer d.wg.Done()
	for eventID := range d.queue {
		d.run(eventID)
	}
}

func (d *WorkerDispatcher) run(eventID string) {
	defer func() {
		if recovered := recover(); recovered != nil {
			d.logFailure(eventID, fmt.Errorf("core: dispatch panicked: %v", recovered))
		}
	}()
	if err := d.process(context.Background(), eventID); err != nil {
		d.logFailure(eventID, err)
	}
}

func (d *WorkerDispatcher) logFailure(eventID string, err error) {
	if d == nil || d.logger == nil || err == nil {
		return
	}
	d.logger.Error("dispatch: background processing failed",
		"event_id", eventID,
		"error", err.Error(),
	)
}

var _ Dispatcher = (*WorkerDispatcher)(nil)
