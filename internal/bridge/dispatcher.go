package bridge

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/rs/zerolog"
)

// Job is a unit of background work.
type Job func(ctx context.Context)

type queued struct {
	name string
	run  Job
}

// Dispatcher runs fire-and-forget posts on a bounded queue drained by a fixed
// number of workers. Submit never blocks: a full queue rejects the job.
type Dispatcher struct {
	mu        sync.Mutex
	queue     chan queued
	accepting bool
	cancel    context.CancelFunc
	workers   sync.WaitGroup
	sending   sync.WaitGroup

	size    int
	workerN int
	log     zerolog.Logger
}

// NewDispatcher creates a dispatcher. Non-positive sizes fall back to 256
// queued jobs and 2 workers.
func NewDispatcher(queueSize, workers int, log zerolog.Logger) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 256
	}
	if workers <= 0 {
		workers = 2
	}
	return &Dispatcher{
		size:    queueSize,
		workerN: workers,
		log:     log,
	}
}

// Start launches the workers. It is a no-op when already running.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.queue != nil {
		return
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	d.queue = make(chan queued, d.size)
	d.cancel = cancel
	d.accepting = true

	q := d.queue
	for i := 0; i < d.workerN; i++ {
		d.workers.Add(1)
		go d.workerLoop(runCtx, q)
	}
}

// Submit enqueues job.
func (d *Dispatcher) Submit(name string, job Job) error {
	d.mu.Lock()
	if !d.accepting || d.queue == nil {
		d.mu.Unlock()
		return ErrDispatcherStopped
	}
	q := d.queue
	d.sending.Add(1)
	d.mu.Unlock()
	defer d.sending.Done()

	select {
	case q <- queued{name: name, run: job}:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrQueueFull, name)
	}
}

// Pending returns the number of queued jobs.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.queue == nil {
		return 0
	}
	return len(d.queue)
}

// Stop refuses new jobs and drains the queue until ctx is done, after which
// running jobs are cancelled.
func (d *Dispatcher) Stop(ctx context.Context) {
	d.mu.Lock()
	if d.queue == nil || !d.accepting {
		d.mu.Unlock()
		return
	}
	d.accepting = false
	q := d.queue
	cancel := d.cancel
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		d.sending.Wait()
		close(q)
		d.workers.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		d.log.Warn().Int("pending", len(q)).Msg("dispatcher stop deadline reached, cancelling posts")
		cancel()
		<-done
	}
	cancel()

	d.mu.Lock()
	d.queue = nil
	d.mu.Unlock()
}

func (d *Dispatcher) workerLoop(ctx context.Context, q <-chan queued) {
	defer d.workers.Done()
	for j := range q {
		if ctx.Err() != nil {
			continue
		}
		d.run(ctx, j)
	}
}

func (d *Dispatcher) run(ctx context.Context, j queued) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error().
				Str("job", j.name).
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("dispatcher job panicked")
		}
	}()
	j.run(ctx)
}
