package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"mediabot/internal/config"
	"mediabot/internal/job"
	"mediabot/internal/logging"
	"mediabot/internal/notifications"
	"mediabot/internal/pipeline"
	"mediabot/internal/staging"
	"mediabot/internal/store"
	"mediabot/internal/workerpool"
)

const (
	defaultShutdownGrace = 2 * time.Minute
	sweepInterval        = time.Hour
)

// Listener is the update loop the daemon drives.
type Listener interface {
	Run(ctx context.Context) error
}

// Waiter is background work the daemon drains after the update loop stops.
type Waiter interface {
	Wait()
}

// Components are the collaborators built by the caller.
type Components struct {
	Store      *store.Store
	Pool       *workerpool.Pool
	Dispatcher *pipeline.Dispatcher
	Listener   Listener
	Notifier   notifications.Service
	Videos     Waiter
	BotName    string
}

// Option configures a Daemon.
type Option func(*Daemon)

// WithShutdownGrace bounds how long Stop waits for in-flight jobs.
func WithShutdownGrace(d time.Duration) Option {
	return func(dm *Daemon) {
		if d > 0 {
			dm.grace = d
		}
	}
}

// Daemon owns the process lifecycle and enforces single-instance execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	c      Components
	grace  time.Duration

	lockPath string
	lock     *flock.Flock

	mu        sync.Mutex
	running   atomic.Bool
	startedAt time.Time
	cancel    context.CancelFunc
	loops     sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	StartedAt    time.Time
	ActiveJobs   int
	Pool         workerpool.Stats
	DatabasePath string
	LockFilePath string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, c Components, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil || c.Store == nil || c.Pool == nil || c.Dispatcher == nil || c.Listener == nil {
		return nil, errors.New("daemon requires config, store, pool, dispatcher, and listener")
	}
	if c.Notifier == nil {
		c.Notifier = notifications.NewService(nil)
	}
	lockPath := LockPath(cfg)
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		c:        c,
		grace:    defaultShutdownGrace,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// LockPath is the flock file guarding the bot token.
func LockPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.DataDir, "mediabot.lock")
}

// Start acquires the lock, runs startup housekeeping and begins polling.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another mediabot daemon instance is already running")
	}

	if err := d.c.Pool.Start(); err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("start worker pool: %w", err)
	}

	if n, err := d.c.Store.MarkInterrupted(ctx, job.TerminalStates()); err != nil {
		logging.WarnWithContext(d.logger, "failed to mark interrupted jobs", "interrupted_jobs_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "job history may show stale in-flight entries"),
		)
	} else if n > 0 {
		d.logger.Info("marked interrupted jobs as failed", logging.Int64("count", n))
	}
	d.sweep(ctx)

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.startedAt = time.Now()
	d.running.Store(true)

	d.loops.Add(2)
	go func() {
		defer d.loops.Done()
		if err := d.c.Listener.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			logging.ErrorWithContext(d.logger, "update listener stopped", "listener_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "new messages are not processed"),
			)
		}
	}()
	go func() {
		defer d.loops.Done()
		d.sweepLoop(runCtx)
	}()

	workers := d.c.Pool.Stats().Workers
	d.publish(ctx, notifications.EventDaemonStarted, notifications.Payload{"bot": d.c.BotName, "workers": workers})
	d.logger.Info("mediabot daemon started",
		logging.String("lock", d.lockPath),
		logging.String("bot", d.c.BotName),
		logging.Int("workers", workers),
	)
	return nil
}

// Stop stops polling, drains in-flight jobs and releases the lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.loops.Wait()
	if d.c.Videos != nil {
		d.c.Videos.Wait()
	}

	active := d.c.Dispatcher.Active()
	if active > 0 {
		d.logger.Info("waiting for in-flight jobs", logging.Int("active", active), logging.Duration("grace", d.grace))
	}
	drainCtx, cancel := context.WithTimeout(context.Background(), d.grace)
	_ = d.c.Dispatcher.Close(drainCtx)
	cancel()
	d.c.Pool.Close()

	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	uptime := time.Since(d.startedAt).Round(time.Second).String()
	d.running.Store(false)
	d.publish(context.Background(), notifications.EventDaemonStopped, notifications.Payload{"uptime": uptime})
	d.logger.Info("mediabot daemon stopped", logging.String("uptime", uptime))
}

// Close stops the daemon and closes the store.
func (d *Daemon) Close() error {
	d.Stop()
	return d.c.Store.Close()
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	d.mu.Lock()
	startedAt := d.startedAt
	d.mu.Unlock()
	return Status{
		Running:      d.running.Load(),
		StartedAt:    startedAt,
		ActiveJobs:   d.c.Dispatcher.Active(),
		Pool:         d.c.Pool.Stats(),
		DatabasePath: d.c.Store.Path(),
		LockFilePath: d.lockPath,
	}
}

func (d *Daemon) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.sweep(ctx)
		}
	}
}

func (d *Daemon) sweep(ctx context.Context) {
	maxAge := time.Duration(d.cfg.Maintenance.StaleJobHours) * time.Hour
	result := staging.CleanStale(ctx, d.cfg.Paths.WorkDir, maxAge, d.logger)
	if len(result.Removed) > 0 || len(result.Errors) > 0 {
		d.logger.Info("stale job sweep finished",
			logging.Int("removed", len(result.Removed)),
			logging.Int("errors", len(result.Errors)),
		)
	}
}

func (d *Daemon) publish(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if err := d.c.Notifier.Publish(ctx, event, payload); err != nil {
		d.logger.Warn("notification failed",
			logging.String("event", string(event)),
			logging.Error(err),
			logging.String(logging.FieldEventType, "notification_failed"),
		)
	}
}
