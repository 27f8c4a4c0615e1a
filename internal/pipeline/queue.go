package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/docanalyze/internal/config"
)

// cleanupInterval is how often finished jobs past their TTL are evicted.
const cleanupInterval = 5 * time.Minute

// Queue runs analysis jobs on a fixed pool of workers.
type Queue struct {
	jobs    *JobStore
	queue   chan *Job
	worker  *Worker
	log     *slog.Logger
	workers int

	mu      sync.Mutex
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewQueue creates the job queue. store may be nil to skip persistence.
func NewQueue(cfg config.Config, orch *Orchestrator, store ResultStore, metrics *Metrics, log *slog.Logger) *Queue {
	if log == nil {
		log = slog.Default()
	}
	q := &Queue{
		jobs:    NewJobStore(cfg.JobTTL),
		queue:   make(chan *Job, cfg.MaxQueueSize),
		worker:  NewWorker(orch, store, log),
		log:     log,
		workers: max(cfg.WorkerCount, 1),
	}
	metrics.WatchQueue(q.QueueDepth)
	return q
}

// Start launches worker goroutines.
func (q *Queue) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	q.mu.Lock()
	q.cancel = cancel
	q.mu.Unlock()

	for range q.workers {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-q.queue:
					if !ok {
						return
					}
					q.worker.Process(workerCtx, job)
				}
			}
		}()
	}

	// Start job store cleanup.
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				q.jobs.Cleanup()
			}
		}
	}()
}

// Stop cancels running jobs, waits for the workers, and marks jobs still
// waiting in the queue as cancelled.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	if q.cancel != nil {
		q.cancel()
	}
	close(q.queue)
	q.mu.Unlock()

	q.wg.Wait()
	for job := range q.queue {
		job.AddError("server shutting down")
		job.SetStatus(StatusCancelled, "cancelled")
	}
}

// Submit queues a new job for processing.
func (q *Queue) Submit(job *Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs.Put(job)
	if q.stopped {
		job.SetStatus(StatusCancelled, "cancelled")
		return fmt.Errorf("job queue is stopped")
	}
	select {
	case q.queue <- job:
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("job queue is full (%d)", cap(q.queue))
	}
}

// GetJob returns a job by ID.
func (q *Queue) GetJob(id string) *Job {
	return q.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (q *Queue) QueueDepth() int {
	return len(q.queue)
}
