package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"mediabot/internal/config"
	"mediabot/internal/extract"
	"mediabot/internal/job"
	"mediabot/internal/logging"
	"mediabot/internal/services"
	"mediabot/internal/textutil"
	"mediabot/internal/workerpool"
)

// Request describes one fetch for a Fetcher.
type Request struct {
	URL         string
	Dir         string
	Format      string
	MergeFormat string
	// Track must be called with every path the fetcher creates, before it
	// exists.
	Track func(path string)
}

// Fetcher transfers the payload into Request.Dir and returns the produced
// file. onProgress may be called from any goroutine but never concurrently.
type Fetcher interface {
	Fetch(ctx context.Context, req Request, onProgress func(Progress)) (string, error)
}

// Option configures the Orchestrator.
type Option func(*Orchestrator)

// WithClock overrides the time source used by the throttle.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithTickInterval sets how often a pending sample is re-offered to the
// throttle when no new sample arrives.
func WithTickInterval(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.tick = d
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Orchestrator coordinates fetches for jobs.
type Orchestrator struct {
	fetcher     Fetcher
	pool        *workerpool.Pool
	timeout     time.Duration
	mergeFormat string
	interval    time.Duration
	delta       float64
	tick        time.Duration
	now         func() time.Time
	logger      *slog.Logger
}

// New constructs an Orchestrator from the downloader and progress sections.
func New(fetcher Fetcher, pool *workerpool.Pool, dl config.Downloader, progress config.Progress, opts ...Option) *Orchestrator {
	interval := time.Duration(progress.MinIntervalSeconds * float64(time.Second))
	o := &Orchestrator{
		fetcher:     fetcher,
		pool:        pool,
		timeout:     time.Duration(dl.FetchTimeout) * time.Second,
		mergeFormat: dl.MergeFormat,
		interval:    interval,
		delta:       progress.MinDeltaPercent,
		tick:        time.Second,
		now:         time.Now,
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = logging.NewComponentLogger(o.logger, "download")
	return o
}

// Fetch downloads the job's payload with profile and returns the renamed
// artifact path. sink may be nil.
func (o *Orchestrator) Fetch(ctx context.Context, j *job.Job, profile extract.QualityProfile, sink ProgressSink) (string, error) {
	dir, err := j.EnsureDir()
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "download", "prepare", "create job directory", err)
	}

	fetchCtx := ctx
	if o.timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	samples := make(chan Progress, 1)
	done := make(chan struct{})
	var consumer sync.WaitGroup
	consumer.Add(1)
	go func() {
		defer consumer.Done()
		o.consume(ctx, j, samples, done, sink)
	}()

	push := func(p Progress) {
		select {
		case samples <- p:
			return
		default:
		}
		select {
		case <-samples:
		default:
		}
		select {
		case samples <- p:
		default:
		}
	}

	req := Request{
		URL:         j.SourceURL,
		Dir:         dir,
		Format:      profile.Format,
		MergeFormat: o.mergeFormat,
		Track:       j.Track,
	}
	if profile.AudioOnly {
		req.MergeFormat = ""
	}

	started := o.now()
	var raw string
	err = o.pool.Do(fetchCtx, "fetch "+j.ID, func(taskCtx context.Context) error {
		path, fetchErr := o.fetcher.Fetch(taskCtx, req, push)
		raw = path
		return fetchErr
	})
	close(done)
	consumer.Wait()

	if err != nil {
		return "", o.classify(fetchCtx, err)
	}
	if raw == "" {
		return "", services.Wrap(services.ErrExternalTool, "download", "fetch", "fetcher produced no file", nil)
	}
	info, statErr := os.Stat(raw)
	if statErr != nil || info.Size() == 0 {
		return "", services.Wrap(services.ErrExternalTool, "download", "fetch", "downloaded file missing or empty", statErr)
	}

	final, err := o.rename(j, raw)
	if err != nil {
		return "", err
	}
	o.logger.Info("download complete",
		logging.String(logging.FieldJobID, j.ID),
		logging.String("profile", profile.Name),
		logging.Int64("size_bytes", info.Size()),
		logging.Duration("elapsed", o.now().Sub(started)),
	)
	return final, nil
}

// consume is the single reader of samples for one job. It keeps the newest
// sample pending until the throttle admits it, re-offering it on each tick.
func (o *Orchestrator) consume(ctx context.Context, j *job.Job, samples <-chan Progress, done <-chan struct{}, sink ProgressSink) {
	throttle := NewThrottle(o.interval, o.delta)
	ticker := time.NewTicker(o.tick)
	defer ticker.Stop()

	var (
		pending    Progress
		hasPending bool
	)
	offer := func() {
		if !hasPending {
			return
		}
		now := o.now()
		if !throttle.Allow(pending, now) {
			return
		}
		hasPending = false
		j.RecordProgress(pending.Percent, now)
		if sink != nil {
			sink(ctx, pending)
		}
	}

	for {
		select {
		case p := <-samples:
			last, _ := throttle.Last()
			if p.Percent < last {
				continue
			}
			pending, hasPending = p, true
			offer()
		case <-ticker.C:
			offer()
		case <-done:
			return
		}
	}
}

func (o *Orchestrator) classify(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, "download", "fetch", fmt.Sprintf("fetch exceeded %s", o.timeout), err)
	}
	if errors.Is(err, context.Canceled) {
		return services.Wrap(services.ErrTransient, "download", "fetch", "cancelled", err)
	}
	if marker := extract.SourceMarker(err); marker != nil {
		return services.Wrap(marker, "download", "fetch", "source refused download", err)
	}
	return services.Wrap(services.ErrExternalTool, "download", "fetch", "yt-dlp failed", err)
}

func (o *Orchestrator) rename(j *job.Job, raw string) (string, error) {
	meta := j.Metadata()
	stem := textutil.SanitizeTitle(meta.Title)
	if stem == "" {
		stem = textutil.SanitizeTitle(meta.ID)
	}
	if stem == "" {
		stem = j.ID
	}
	ext := strings.ToLower(filepath.Ext(raw))
	final := filepath.Join(filepath.Dir(raw), stem+ext)
	if final == raw {
		return raw, nil
	}
	j.Track(final)
	if err := os.Rename(raw, final); err != nil {
		return "", services.Wrap(services.ErrTransient, "download", "rename", "rename artifact", err)
	}
	return final, nil
}
