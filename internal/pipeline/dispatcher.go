package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"mediabot/internal/logging"
)

// ErrDispatcherClosed is returned by Submit after Close.
var ErrDispatcherClosed = errors.New("dispatcher closed")

// Runner executes one request.
type Runner interface {
	Run(ctx context.Context, req Request) Outcome
}

// Dispatcher runs every submitted request on its own goroutine. A new request
// from the same account never cancels an earlier one.
//
// Requests are detached from the cancellation of the context passed to
// Submit, so stopping the update listener does not abort running jobs. They
// are cancelled only when Close gives up waiting.
type Dispatcher struct {
	runner Runner
	logger *slog.Logger
	base   context.Context
	abort  context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
	active atomic.Int64
	onDone func(Outcome)
}

// NewDispatcher wraps runner. onDone, when non-nil, receives every outcome.
func NewDispatcher(runner Runner, logger *slog.Logger, onDone func(Outcome)) *Dispatcher {
	base, abort := context.WithCancel(context.Background())
	return &Dispatcher{
		runner: runner,
		logger: logging.NewComponentLogger(logger, "dispatcher"),
		base:   base,
		abort:  abort,
		onDone: onDone,
	}
}

// Submit starts req in the background. The request keeps the values of ctx
// but not its deadline or cancellation.
func (d *Dispatcher) Submit(ctx context.Context, req Request) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrDispatcherClosed
	}
	d.wg.Add(1)
	d.mu.Unlock()

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(d.base, cancel)

	d.active.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.active.Add(-1)
		defer cancel()
		defer stop()
		out := d.runner.Run(runCtx, req)
		if d.onDone != nil {
			d.onDone(out)
		}
	}()
	return nil
}

// Active returns the number of requests in flight.
func (d *Dispatcher) Active() int {
	return int(d.active.Load())
}

// Close stops accepting requests and waits for in-flight ones until ctx is
// done. Requests still running at that point are cancelled.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		d.abort()
		return nil
	case <-ctx.Done():
		d.abort()
		d.logger.Warn("dispatcher close timed out, cancelling jobs",
			logging.Int("active", d.Active()),
			logging.String(logging.FieldEventType, "dispatcher_close_timeout"),
		)
		return ctx.Err()
	}
}
