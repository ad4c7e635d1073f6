package queue

// Module: queue
// A long-lived FIFO work queue drained by a fixed-size worker pool.
// Submission is non-blocking, the pending list is unbounded and only the
// worker count caps in-flight work. The first task error aborts the queue:
// remaining pending work is discarded and Drain returns the error.
// Recoverable conditions are the task's own business - a task that returns
// nil has consumed its failure.

import (
	"errors"
	"sync"

	"github.com/apoliade/OpenTermsArchive/internal/logging"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("queue is closed")

// Task is one unit of work.
type Task func() error

// Queue coordinates a bounded worker pool over an unbounded pending list.
type Queue struct {
	name   string
	logger logging.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	pending []Task

	inflight int
	err      error
	aborted  bool
	closed   bool

	wg sync.WaitGroup
}

// New starts a queue with the given number of workers.
func New(name string, workers int, logger logging.Logger) *Queue {
	if workers < 1 {
		workers = 1
	}
	q := &Queue{name: name, logger: logger}
	q.cond = sync.NewCond(&q.mu)

	q.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go q.worker()
	}

	logger.Debug("queue started",
		logging.Field{Key: "queue", Value: name},
		logging.Field{Key: "workers", Value: workers})

	return q
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		for len(q.pending) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.pending) == 0 && q.closed {
			q.mu.Unlock()
			return
		}

		task := q.pending[0]
		q.pending = q.pending[1:]
		q.inflight++
		q.mu.Unlock()

		err := task()

		q.mu.Lock()
		q.inflight--
		if err != nil && q.err == nil {
			// First fatal error aborts the batch: drop everything queued.
			q.err = err
			q.aborted = true
			q.pending = nil
			q.logger.Error("queue aborted",
				logging.Field{Key: "queue", Value: q.name},
				logging.Field{Key: "error", Value: err.Error()})
		}
		q.cond.Broadcast()
		q.mu.Unlock()
	}
}

// Submit enqueues a task. It never blocks on workers. Tasks submitted after
// an abort (and before the next Drain) are discarded.
func (q *Queue) Submit(task Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}
	if q.aborted {
		return nil
	}

	q.pending = append(q.pending, task)
	q.cond.Signal()
	return nil
}

// Drain blocks until all pending and in-flight tasks have completed, then
// returns the first task error of the batch, resetting the queue for the
// next one.
func (q *Queue) Drain() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.pending) > 0 || q.inflight > 0 {
		q.cond.Wait()
	}

	err := q.err
	q.err = nil
	q.aborted = false
	return err
}

// Close stops the workers after the pending list empties. Submit fails
// afterwards.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()

	q.wg.Wait()
}
