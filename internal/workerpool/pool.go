// Package workerpool runs blocking media work (fetches and transcodes) on a
// fixed number of long-lived workers, independent of how many requests are
// in flight.
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"mediabot/internal/logging"
)

// ErrClosed is returned by Do after Close.
var ErrClosed = errors.New("worker pool closed")

// Task is a unit of blocking work. It receives the submitter's context.
type Task func(ctx context.Context) error

type request struct {
	ctx   context.Context
	label string
	task  Task
	done  chan error
}

// Stats is a point-in-time view of the pool.
type Stats struct {
	Workers int
	Busy    int
	Waiting int
}

// Pool owns a fixed set of workers that pull tasks from a shared queue.
type Pool struct {
	size    int
	queue   chan request
	quit    chan struct{}
	wg      sync.WaitGroup
	logger  *slog.Logger
	busy    atomic.Int32
	waiting atomic.Int32

	mu      sync.Mutex
	started bool
	closed  bool
}

// New creates a pool of size workers. Start must be called before Do.
func New(size int, logger *slog.Logger) *Pool {
	if size <= 0 {
		size = 1
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pool{
		size:   size,
		queue:  make(chan request),
		quit:   make(chan struct{}),
		logger: logging.NewComponentLogger(logger, "workerpool"),
	}
}

// Start launches the workers. It does not block.
func (p *Pool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return errors.New("cannot start an already started worker pool")
	}
	if p.closed {
		return ErrClosed
	}
	p.started = true
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.work(i)
	}
	p.logger.Debug("worker pool started", logging.Int("workers", p.size))
	return nil
}

// Do queues task and blocks until it finishes. If ctx is done or the pool
// closes while the task is still queued, Do returns without running it. Once a
// worker has taken the task, Do waits for it to return even after ctx is done,
// so callers may remove the task's files as soon as Do returns. Tasks must
// observe ctx to keep cancellation prompt.
func (p *Pool) Do(ctx context.Context, label string, task Task) error {
	if task == nil {
		return errors.New("nil task")
	}
	p.mu.Lock()
	ready := p.started && !p.closed
	p.mu.Unlock()
	if !ready {
		return ErrClosed
	}

	req := request{ctx: ctx, label: label, task: task, done: make(chan error, 1)}
	p.waiting.Add(1)
	select {
	case p.queue <- req:
		p.waiting.Add(-1)
	case <-ctx.Done():
		p.waiting.Add(-1)
		return ctx.Err()
	case <-p.quit:
		p.waiting.Add(-1)
		return ErrClosed
	}

	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		<-req.done
		return ctx.Err()
	}
}

// Stats reports the worker count and current load.
func (p *Pool) Stats() Stats {
	return Stats{
		Workers: p.size,
		Busy:    int(p.busy.Load()),
		Waiting: int(p.waiting.Load()),
	}
}

// Close stops accepting work and waits for running tasks to return.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	started := p.started
	close(p.quit)
	p.mu.Unlock()
	if started {
		p.wg.Wait()
	}
}

func (p *Pool) work(id int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.quit:
			return
		case req := <-p.queue:
			p.run(id, req)
		}
	}
}

func (p *Pool) run(id int, req request) {
	p.busy.Add(1)
	defer p.busy.Add(-1)

	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("task %s panicked: %v", req.label, r)
				p.logger.Error("worker task panicked",
					logging.Int("worker", id),
					logging.String("task", req.label),
					logging.Any("panic", r),
				)
			}
		}()
		if ctxErr := req.ctx.Err(); ctxErr != nil {
			err = ctxErr
			return
		}
		err = req.task(req.ctx)
	}()
	req.done <- err
}
