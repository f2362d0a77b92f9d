package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-grader/internal/observability"
)

var (
	// ErrQueueFull is returned when no queue slot is free.
	ErrQueueFull = errors.New("worker queue is full")
	// ErrPoolStopped is returned for submissions after Stop.
	ErrPoolStopped = errors.New("worker pool stopped")
)

// Task is one unit of background work. The context is owned by the pool, not by the submitter.
type Task func(ctx context.Context)

// Pool runs tasks on a fixed number of workers fed by a bounded queue.
type Pool struct {
	name       string
	tasks      chan Task
	maxWorkers int
	logger     zerolog.Logger

	mu      sync.RWMutex
	started bool
	stopped bool
	active  int

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewPool creates a pool with maxWorkers workers and queueSize pending slots.
func NewPool(name string, maxWorkers, queueSize int, logger zerolog.Logger) *Pool {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}

	return &Pool{
		name:       name,
		tasks:      make(chan Task, queueSize),
		maxWorkers: maxWorkers,
		logger:     logger.With().Str("component", "worker_pool").Str("pool", name).Logger(),
	}
}

// Start launches the workers. Tasks run with a context derived from parent.
func (p *Pool) Start(parent context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return
	}
	p.started = true
	p.ctx, p.cancel = context.WithCancel(parent)

	for i := 0; i < p.maxWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	p.logger.Info().Int("max_workers", p.maxWorkers).Int("queue_capacity", cap(p.tasks)).Msg("worker pool started")
}

// Submit enqueues task without blocking.
func (p *Pool) Submit(task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		return ErrPoolStopped
	}

	select {
	case p.tasks <- task:
		observability.QueueDepth().WithLabelValues(p.name).Set(float64(len(p.tasks)))
		return nil
	default:
		observability.QueueRejected().WithLabelValues(p.name).Inc()
		p.logger.Warn().Msg("worker queue is full")
		return ErrQueueFull
	}
}

// Stop refuses new work, lets queued tasks finish and waits for the workers.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	close(p.tasks)
	started := p.started
	p.mu.Unlock()

	if !started {
		return nil
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		p.logger.Info().Msg("worker pool stopped")
		return nil
	case <-ctx.Done():
		p.cancel()
		return ctx.Err()
	}
}

// Stats reports the current load for health output.
func (p *Pool) Stats() map[string]interface{} {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return map[string]interface{}{
		"active_workers": p.active,
		"max_workers":    p.maxWorkers,
		"queue_length":   len(p.tasks),
		"queue_capacity": cap(p.tasks),
	}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for task := range p.tasks {
		observability.QueueDepth().WithLabelValues(p.name).Set(float64(len(p.tasks)))
		p.run(id, task)
	}
}

func (p *Pool) run(id int, task Task) {
	p.setActive(1)
	defer p.setActive(-1)

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().Int("worker_id", id).Interface("panic", r).Msg("worker recovered from panic")
		}
	}()

	task(p.ctx)
}

func (p *Pool) setActive(delta int) {
	p.mu.Lock()
	p.active += delta
	p.mu.Unlock()
	observability.WorkersActive().WithLabelValues(p.name).Add(float64(delta))
}
