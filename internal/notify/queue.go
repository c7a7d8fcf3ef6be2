package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"social-chat/internal/logger"
	"social-chat/internal/observability"
)

// Job is a unit of post-commit notification work.
type Job func(ctx context.Context)

type queuedJob struct {
	ctx  context.Context
	name string
	run  Job
}

// Queue runs jobs on a fixed pool of workers. Submit never blocks: when the
// buffer is full the job is dropped.
type Queue struct {
	jobs    chan queuedJob
	workers int
	timeout time.Duration
	log     *zap.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewQueue(workers, size int, timeout time.Duration, log *zap.Logger) *Queue {
	if workers <= 0 {
		workers = 1
	}
	if size < 0 {
		size = 0
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Queue{
		jobs:    make(chan queuedJob, size),
		workers: workers,
		timeout: timeout,
		log:     log,
	}
}

// Start launches the workers.
func (q *Queue) Start() {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	q.log.Info("notification queue started", zap.Int("workers", q.workers), zap.Int("size", cap(q.jobs)))
}

// Submit enqueues job. The job runs with a context detached from ctx's
// cancellation but keeping its values, bounded by the queue timeout.
func (q *Queue) Submit(ctx context.Context, name string, job Job) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		observability.IncNotifyDropped()
		logger.FromContext(ctx, q.log).Warn("notification queue stopped, job dropped", zap.String("job", name))
		return false
	}

	select {
	case q.jobs <- queuedJob{ctx: context.WithoutCancel(ctx), name: name, run: job}:
		return true
	default:
		observability.IncNotifyDropped()
		logger.FromContext(ctx, q.log).Warn("notification queue full, job dropped", zap.String("job", name))
		return false
	}
}

// Stop rejects new jobs and waits for queued ones to finish or ctx to expire.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.log.Info("notification queue drained")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for j := range q.jobs {
		q.run(j)
	}
}

func (q *Queue) run(j queuedJob) {
	ctx := j.ctx
	if q.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			logger.FromContext(ctx, q.log).Error("notification job panicked", zap.String("job", j.name), zap.Any("panic", r))
		}
	}()
	j.run(ctx)
}
