// Package work runs fire-and-forget background jobs on a fixed set of workers.
package work

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

// Job is one unit of background work.
type Job struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Stats is a point-in-time view of the queue counters.
type Stats struct {
	Submitted int64 `json:"submitted"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Dropped   int64 `json:"dropped"`
	Pending   int   `json:"pending"`
}

// Queue is a bounded job queue. Submit never blocks: when the buffer is
// full or the queue is closed the job is dropped and counted.
type Queue struct {
	jobs       chan Job
	log        *log.Logger
	jobTimeout time.Duration

	mu     sync.RWMutex
	closed bool

	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64

	group     *errgroup.Group
	closeOnce sync.Once
}

// NewQueue starts workers goroutines reading from a buffer of capacity jobs.
func NewQueue(workers, capacity int, logger *log.Logger) *Queue {
	if workers <= 0 {
		workers = 1
	}
	if capacity <= 0 {
		capacity = 256
	}
	if logger == nil {
		logger = log.Default()
	}

	q := &Queue{
		jobs:       make(chan Job, capacity),
		log:        logger,
		jobTimeout: 30 * time.Second,
		group:      &errgroup.Group{},
	}
	for i := 0; i < workers; i++ {
		q.group.Go(q.worker)
	}
	q.log.Debug("Work queue started", "workers", workers, "capacity", capacity)
	return q
}

func (q *Queue) worker() error {
	for job := range q.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), q.jobTimeout)
		err := job.Fn(ctx)
		cancel()
		if err != nil {
			q.failed.Add(1)
			q.log.Error("Background job failed", "job", job.Name, "err", err)
			continue
		}
		q.completed.Add(1)
	}
	return nil
}

// Submit enqueues fn and reports whether it was accepted.
func (q *Queue) Submit(name string, fn func(ctx context.Context) error) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.dropped.Add(1)
		return false
	}
	select {
	case q.jobs <- Job{Name: name, Fn: fn}:
		q.submitted.Add(1)
		return true
	default:
		q.dropped.Add(1)
		q.log.Warn("Work queue full, dropping job", "job", name)
		return false
	}
}

// Close stops accepting jobs and waits for the pending ones to finish.
func (q *Queue) Close() error {
	q.closeOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		close(q.jobs)
		q.mu.Unlock()
	})
	err := q.group.Wait()
	s := q.Stats()
	q.log.Debug("Work queue drained", "completed", s.Completed, "failed", s.Failed, "dropped", s.Dropped)
	return err
}

func (q *Queue) Stats() Stats {
	return Stats{
		Submitted: q.submitted.Load(),
		Completed: q.completed.Load(),
		Failed:    q.failed.Load(),
		Dropped:   q.dropped.Load(),
		Pending:   len(q.jobs),
	}
}
