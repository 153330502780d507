package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vibesoft/herald/internal/db"
	"github.com/vibesoft/herald/internal/metrics"
	"github.com/vibesoft/herald/internal/notify"
)

// SyncWaitTimeout is the ceiling a synchronous caller waits for a
// terminal result before being handed TIMEOUT. Processing continues in
// the background past this point.
const SyncWaitTimeout = 15 * time.Second

// ErrPoolClosed is returned by Submit after the pool has shut down.
var ErrPoolClosed = errors.New("worker pool is closed")

// ErrPoolSaturated is returned when the job queue is full. The log row
// already exists in PENDING at that point; the reaper will fail it.
var ErrPoolSaturated = errors.New("worker pool queue is full")

type job struct {
	log  *db.NotificationLog
	req  *notify.Request
	done chan notify.Result
}

// Pool runs accepted notifications through the processor on a bounded
// set of workers. Intake is synchronous (so callers get the log row
// immediately); delivery runs on the pool's own context, detached from
// the submitting request, so a caller giving up never cancels the work.
type Pool struct {
	processor   *Processor
	jobs        chan job
	workers     int
	waitTimeout time.Duration
	logger      *zap.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewPool creates a worker pool with the given concurrency and queue
// depth.
func NewPool(processor *Processor, workers, queueDepth int, logger *zap.Logger) *Pool {
	if workers <= 0 {
		workers = 8
	}
	if queueDepth <= 0 {
		queueDepth = workers * 4
	}
	return &Pool{
		processor:   processor,
		jobs:        make(chan job, queueDepth),
		workers:     workers,
		waitTimeout: SyncWaitTimeout,
		logger:      logger,
	}
}

// Start launches the workers. They run until ctx is cancelled and the
// queue drains.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	p.logger.Debug("pool worker started", zap.Int("worker", id))
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-p.jobs:
			if !ok {
				return
			}
			metrics.SetPoolDepth(len(p.jobs))
			result := p.processor.Process(ctx, j.log, j.req)
			// Buffered; never blocks on an abandoned waiter.
			j.done <- result
		}
	}
}

// Close stops accepting new jobs and waits for in-flight ones.
func (p *Pool) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Pool) enqueue(log *db.NotificationLog, req *notify.Request) (chan notify.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrPoolClosed
	}
	done := make(chan notify.Result, 1)
	select {
	case p.jobs <- job{log: log, req: req, done: done}:
	default:
		return nil, ErrPoolSaturated
	}
	metrics.SetPoolDepth(len(p.jobs))
	return done, nil
}

// Submit accepts the request and schedules delivery without waiting
// for it. Returns the created log row, or duplicate=true when the
// ledger already held the correlation id.
func (p *Pool) Submit(ctx context.Context, req *notify.Request) (*db.NotificationLog, bool, error) {
	log, duplicate, err := p.processor.Intake(ctx, req)
	if err != nil || duplicate {
		return nil, duplicate, err
	}
	if _, err := p.enqueue(log, req); err != nil {
		return nil, false, err
	}
	return log, false, nil
}

// SubmitAndWait accepts the request and waits up to the pool's wait
// ceiling (SyncWaitTimeout by default) for a terminal result. A nil
// result means the wait timed out;
// processing continues in the background and the outcome lands in the
// log and on the status topic as usual.
func (p *Pool) SubmitAndWait(ctx context.Context, req *notify.Request) (*db.NotificationLog, *notify.Result, bool, error) {
	log, duplicate, err := p.processor.Intake(ctx, req)
	if err != nil || duplicate {
		return nil, nil, duplicate, err
	}

	done, err := p.enqueue(log, req)
	if err != nil {
		return nil, nil, false, err
	}

	timer := time.NewTimer(p.waitTimeout)
	defer timer.Stop()

	select {
	case result := <-done:
		return log, &result, false, nil
	case <-timer.C:
		p.logger.Warn("synchronous wait timed out, processing continues",
			zap.String("log_id", log.ID.String()),
			zap.String("correlation_id", log.CorrelationID),
		)
		return log, nil, false, nil
	case <-ctx.Done():
		return log, nil, false, nil
	}
}
