package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Ross11547/Automatizacion/internal/metrics"
)

// TaskFunc is a unit of background work. ctx carries the per-task timeout.
type TaskFunc func(ctx context.Context) error

// Dispatcher runs best-effort work outside the request that triggered it.
// The caller never learns the outcome; failures are logged and counted.
type Dispatcher interface {
	Dispatch(name string, fn TaskFunc)
}

type task struct {
	name string
	fn   TaskFunc
}

// TaskQueue is a bounded queue drained by a single worker goroutine.
// Dispatch never blocks: when the queue is full the task is dropped.
type TaskQueue struct {
	tasks     chan task
	timeout   time.Duration
	logger    *slog.Logger
	metrics   *metrics.Metrics
	done      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once

	mu     sync.RWMutex
	closed bool
}

// NewTaskQueue creates a queue holding up to size pending tasks, each run
// with the given timeout. Call Start before dispatching.
func NewTaskQueue(size int, timeout time.Duration, logger *slog.Logger, m *metrics.Metrics) *TaskQueue {
	if size <= 0 {
		size = 64
	}
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &TaskQueue{
		tasks:   make(chan task, size),
		timeout: timeout,
		logger:  logger,
		metrics: m,
		done:    make(chan struct{}),
	}
}

// Start launches the worker. Calling it more than once has no effect.
func (q *TaskQueue) Start() {
	q.startOnce.Do(func() {
		q.logger.Info("starting background task queue", slog.Int("capacity", cap(q.tasks)))
		q.wg.Add(1)
		go q.worker()
	})
}

func (q *TaskQueue) Dispatch(name string, fn TaskFunc) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.logger.Warn("task dispatched after shutdown, dropping", slog.String("task", name))
		q.metrics.RecordTaskDropped()
		return
	}

	select {
	case q.tasks <- task{name: name, fn: fn}:
	default:
		q.logger.Warn("task queue full, dropping task", slog.String("task", name))
		q.metrics.RecordTaskDropped()
	}
}

// Close stops accepting tasks and waits for queued ones to finish, or for ctx
// to end.
func (q *TaskQueue) Close(ctx context.Context) error {
	q.stopOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		close(q.tasks)
		q.mu.Unlock()

		go func() {
			q.wg.Wait()
			close(q.done)
		}()
	})

	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *TaskQueue) worker() {
	defer q.wg.Done()
	for t := range q.tasks {
		q.run(t)
	}
}

func (q *TaskQueue) run(t task) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()
	runTask(ctx, t, q.logger, q.metrics)
}

func runTask(ctx context.Context, t task, logger *slog.Logger, m *metrics.Metrics) {
	start := time.Now()
	err := safeCall(ctx, t.fn)
	m.RecordTask(t.name, err)

	if err != nil {
		logger.Warn("background task failed",
			slog.String("task", t.name),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()),
		)
		return
	}
	logger.Debug("background task finished",
		slog.String("task", t.name),
		slog.Duration("duration", time.Since(start)),
	)
}

var errTaskPanicked = errors.New("task panicked")

func safeCall(ctx context.Context, fn TaskFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errTaskPanicked
		}
	}()
	return fn(ctx)
}

// InlineDispatcher runs each task synchronously in Dispatch. Tests use it so
// effects are visible as soon as the triggering call returns.
type InlineDispatcher struct {
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Timeout time.Duration
}

func (d InlineDispatcher) Dispatch(name string, fn TaskFunc) {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	runTask(ctx, task{name: name, fn: fn}, logger, d.Metrics)
}
