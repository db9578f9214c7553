// Package pool provides the fixed worker set that handles accepted
// connections. The queue is bounded; a full queue blocks the producer, which
// is the accept loop's backpressure.
package pool

import (
	"sync"

	"go.uber.org/zap"

	"github.com/dev-harsh1998/irondrop/internal/logging"
	"github.com/dev-harsh1998/irondrop/internal/metrics"
)

// Job is a unit of work, one per accepted connection.
type Job func()

// Pool runs jobs on a fixed set of workers.
type Pool struct {
	jobs    chan Job
	wg      sync.WaitGroup
	closing sync.Once
}

// New starts a pool of n workers over a queue of the given capacity.
func New(workers, queueSize int) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = workers
	}
	p := &Pool{jobs: make(chan Job, queueSize)}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker(i)
	}
	return p
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for job := range p.jobs {
		metrics.WorkerQueueDepth.Set(float64(len(p.jobs)))
		p.run(id, job)
	}
}

// run executes one job with panic isolation. A panicking job loses its
// connection; the worker continues.
func (p *Pool) run(id int, job Job) {
	defer func() {
		if r := recover(); r != nil {
			metrics.WorkerPanicsTotal.Inc()
			logging.Error("worker recovered from panic",
				zap.Int("worker", id),
				zap.Any("panic", r))
		}
	}()
	job()
}

// Submit enqueues a job, blocking while the queue is full. Submitting after
// Shutdown panics; the accept loop stops before the pool does.
func (p *Pool) Submit(job Job) {
	p.jobs <- job
	metrics.WorkerQueueDepth.Set(float64(len(p.jobs)))
}

// TrySubmit enqueues a job without blocking. Returns false when the queue is
// full.
func (p *Pool) TrySubmit(job Job) bool {
	select {
	case p.jobs <- job:
		metrics.WorkerQueueDepth.Set(float64(len(p.jobs)))
		return true
	default:
		return false
	}
}

// Shutdown stops accepting jobs and waits for in-flight work to finish.
func (p *Pool) Shutdown() {
	p.closing.Do(func() {
		close(p.jobs)
	})
	p.wg.Wait()
}
