package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"
)

// Job is an opaque asynchronous unit of work. It may fail; failures are
// recorded per drain cycle but never stop the queue.
type Job func(ctx context.Context) error

// Result is the outcome of one executed job within a drain cycle.
type Result struct {
	Key string
	Err error
}

// DrainFunc is invoked exactly once per drain cycle, after the queue has
// gone empty again, with the results of every job that ran in that cycle.
type DrainFunc func(results []Result)

// JobQueue runs named jobs one at a time in first-queued-first-run order.
// Appending under a key that is still pending replaces the pending body
// while keeping the key's position; appending under a key whose job is
// already executing queues a fresh entry for a later turn.
//
// All state is in-memory and lost on process restart. There is no priority
// scheduling and no cancellation of an in-flight job: a stuck job blocks
// all subsequent work.
type JobQueue struct {
	mu      sync.Mutex
	order   []string       // FIFO key order; map iteration order is never used
	pending map[string]Job // at most one pending job per key
	active  bool           // whether a drain loop is currently running
	results []Result

	ctx     context.Context
	onDrain DrainFunc
	logger  arbor.ILogger
}

// New creates a queue. Jobs receive contexts derived from ctx; onDrain may
// be nil.
func New(ctx context.Context, logger arbor.ILogger, onDrain DrainFunc) *JobQueue {
	return &JobQueue{
		pending: make(map[string]Job),
		ctx:     ctx,
		onDrain: onDrain,
		logger:  logger,
	}
}

// Append inserts or replaces the pending job under key and starts a drain
// loop if none is running. Non-blocking; the job body runs later,
// serialized with all other pending jobs.
func (q *JobQueue) Append(key string, job Job) {
	q.mu.Lock()

	if _, exists := q.pending[key]; exists {
		// Coalesce: the newer body wins, the key keeps its queue position.
		q.pending[key] = job
		q.mu.Unlock()
		if q.logger != nil {
			q.logger.Debug().Str("key", key).Msg("Coalesced pending job")
		}
		return
	}

	q.pending[key] = job
	q.order = append(q.order, key)

	start := !q.active
	if start {
		q.active = true
		q.results = nil
	}
	q.mu.Unlock()

	if start {
		go q.drain()
	}
}

// Len returns the number of pending jobs (the executing job excluded).
func (q *JobQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.order)
}

// drain repeatedly dequeues the oldest pending key and runs its job to
// completion until the queue is empty, then fires the drain callback once.
func (q *JobQueue) drain() {
	for {
		q.mu.Lock()
		if len(q.order) == 0 {
			q.active = false
			results := q.results
			q.results = nil
			q.mu.Unlock()

			if q.onDrain != nil {
				q.onDrain(results)
			}
			return
		}

		key := q.order[0]
		q.order = q.order[1:]
		job := q.pending[key]
		delete(q.pending, key)
		q.mu.Unlock()

		err := q.run(key, job)
		if err != nil && q.logger != nil {
			q.logger.Warn().Err(err).Str("key", key).Msg("Job failed")
		}

		q.mu.Lock()
		q.results = append(q.results, Result{Key: key, Err: err})
		q.mu.Unlock()
	}
}

// run executes one job body, converting panics into errors so a misbehaving
// job cannot kill the drain loop.
func (q *JobQueue) run(key string, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", key, r)
		}
	}()

	return job(q.ctx)
}
