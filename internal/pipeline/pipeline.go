package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"mediabot/internal/admission"
	"mediabot/internal/config"
	"mediabot/internal/delivery"
	"mediabot/internal/download"
	"mediabot/internal/extract"
	"mediabot/internal/job"
	"mediabot/internal/ledger"
	"mediabot/internal/logging"
	"mediabot/internal/messaging"
	"mediabot/internal/notifications"
	"mediabot/internal/services"
	"mediabot/internal/store"
)

// Resolver fetches item metadata without transferring the payload.
type Resolver interface {
	Resolve(ctx context.Context, rawURL string) (extract.Metadata, error)
}

// Fetcher downloads the payload for a job.
type Fetcher interface {
	Fetch(ctx context.Context, j *job.Job, profile extract.QualityProfile, sink download.ProgressSink) (string, error)
}

// PostProcessor optionally rewrites the artifact before delivery.
type PostProcessor interface {
	ShouldApply(audioOnly, entitled, admin bool) bool
	Apply(ctx context.Context, j *job.Job, src string) string
}

// Deliverer uploads the artifact.
type Deliverer interface {
	Deliver(ctx context.Context, req delivery.Request) (delivery.Result, error)
}

// History persists job rows.
type History interface {
	SaveJob(ctx context.Context, rec store.JobRecord) error
}

// Deps are the collaborators of a Pipeline. History, Notifier and Post may
// be nil.
type Deps struct {
	Ledger    *ledger.Ledger
	Admission *admission.Controller
	Resolver  Resolver
	Fetcher   Fetcher
	Post      PostProcessor
	Delivery  Deliverer
	Channel   messaging.Channel
	History   History
	Notifier  notifications.Service
}

// Request is one inbound URL.
type Request struct {
	CorrelationID string
	Chat          messaging.ChatRef
	AccountID     int64
	Username      string
	URL           string
	// Profile names a quality profile; empty selects the default.
	Profile string
	// UseBonus spends a bonus download when the daily quota is exhausted.
	UseBonus bool
}

// Outcome summarizes a finished request.
type Outcome struct {
	JobID       string
	State       job.State
	Err         error
	Reply       string
	Remaining   int
	Watermarked bool
	UsedBonus   bool
	Removed     int
	Delivery    delivery.Result
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// Pipeline runs requests.
type Pipeline struct {
	deps    Deps
	workDir string
	limit   int
	now     func() time.Time
	logger  *slog.Logger
}

// New constructs a Pipeline.
func New(deps Deps, cfg *config.Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		deps:    deps,
		workDir: cfg.Paths.WorkDir,
		limit:   cfg.Quota.DailyFreeLimit,
		now:     time.Now,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.deps.Notifier == nil {
		p.deps.Notifier = notifications.NewService(&config.Config{})
	}
	p.logger = logging.NewComponentLogger(p.logger, "pipeline")
	return p
}

// Run processes req to completion. It never panics and always removes the
// job's temporary files before returning.
func (p *Pipeline) Run(ctx context.Context, req Request) (out Outcome) {
	if req.CorrelationID == "" {
		req.CorrelationID = uuid.NewString()
	}
	ctx = services.WithRequestID(services.WithAccountID(ctx, req.AccountID), req.CorrelationID)

	j, err := job.New(p.workDir, req.AccountID, req.Chat.ID, req.URL)
	if err != nil {
		logging.ErrorWithContext(logging.WithContext(ctx, p.logger), "job creation failed", "job_create_failed", logging.Error(err))
		reply := UserMessage(err)
		_, _ = p.deps.Channel.Send(ctx, req.Chat, reply)
		return Outcome{State: job.StateFailed, Err: err, Reply: reply}
	}
	ctx = services.WithJobID(ctx, j.ID)

	r := &run{
		p:       p,
		j:       j,
		req:     req,
		logger:  logging.WithContext(ctx, p.logger),
		sampler: logging.NewProgressSampler(25),
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("pipeline panic",
				logging.String(logging.FieldEventType, "pipeline_panic"),
				logging.Any("panic", rec),
				logging.String("stack", string(debug.Stack())),
			)
			out = r.fail(ctx, fmt.Errorf("panic in %s: %v", j.State(), rec))
		}
		out.Removed = j.Cleanup(r.logger)
	}()

	return r.execute(ctx)
}

// run carries the per-request state of one Run call.
type run struct {
	p       *Pipeline
	j       *job.Job
	req     Request
	logger  *slog.Logger
	sampler *logging.ProgressSampler

	status      messaging.MessageRef
	title       string
	sizeBytes   int64
	watermarked bool
}

func (r *run) execute(ctx context.Context) Outcome {
	p := r.p
	r.logger.Info("job received", logging.String("url", r.req.URL), logging.String("profile", r.req.Profile))

	if _, _, err := p.deps.Ledger.EnsureAccount(ctx, r.req.AccountID, ledger.Profile{Username: r.req.Username}); err != nil {
		return r.fail(ctx, err)
	}
	acct, err := p.deps.Ledger.Account(ctx, r.req.AccountID)
	if err != nil {
		return r.fail(ctx, err)
	}
	now := p.now()
	admin := p.deps.Admission.IsAdmin(acct.ID)
	entitled := acct.Entitled(now)
	remaining := acct.Remaining(p.limit, now)

	if ref, err := p.deps.Channel.Send(ctx, r.req.Chat, "Checking your link..."); err == nil {
		r.status = ref
	}
	r.save(ctx, nil)

	if decision := p.deps.Admission.Admit(acct, r.req.URL, now); !decision.Allowed {
		if !r.req.UseBonus || !errors.Is(decision.Err, services.ErrQuotaExceeded) {
			return r.fail(ctx, decision.Err)
		}
		if err := p.deps.Ledger.ConsumeBonus(ctx, acct.ID); err != nil {
			return r.fail(ctx, err)
		}
		r.j.MarkBonusUsed()
		r.logger.Info("bonus download consumed")
	}

	meta, err := p.deps.Resolver.Resolve(ctx, r.req.URL)
	if err != nil {
		return r.fail(ctx, err)
	}
	r.j.SetMetadata(meta)
	r.title = meta.Title

	if err := r.advance(ctx, job.StatePolicyCheck); err != nil {
		return r.fail(ctx, err)
	}
	if decision := p.deps.Admission.CheckTitle(meta.Title); !decision.Allowed {
		return r.fail(ctx, decision.Err)
	}
	if decision := p.deps.Admission.CheckDuration(acct, admin, meta.DurationSeconds, now); !decision.Allowed {
		return r.fail(ctx, decision.Err)
	}
	profile, err := SelectProfile(meta, r.req.Profile)
	if err != nil {
		return r.fail(ctx, err)
	}
	r.j.SetProfile(profile)

	if err := r.advance(ctx, job.StateDownloading); err != nil {
		return r.fail(ctx, err)
	}
	r.edit(ctx, fmt.Sprintf("Downloading: %s", displayTitle(meta.Title)))
	path, err := p.deps.Fetcher.Fetch(ctx, r.j, profile, r.progress)
	if err != nil {
		return r.fail(ctx, err)
	}

	if err := r.advance(ctx, job.StatePostProcessing); err != nil {
		return r.fail(ctx, err)
	}
	audioOnly := meta.AudioOnly || profile.AudioOnly
	if p.deps.Post != nil && p.deps.Post.ShouldApply(audioOnly, entitled, admin) {
		r.edit(ctx, "Adding watermark...")
		out := p.deps.Post.Apply(ctx, r.j, path)
		r.watermarked = out != path
		path = out
	}

	if err := r.advance(ctx, job.StateUploading); err != nil {
		return r.fail(ctx, err)
	}
	r.edit(ctx, "Uploading...")
	result, err := p.deps.Delivery.Deliver(ctx, delivery.Request{
		JobID:           r.j.ID,
		Chat:            r.req.Chat,
		Requester:       delivery.Requester{ID: acct.ID, Username: r.req.Username},
		Path:            path,
		SourceURL:       r.req.URL,
		Title:           meta.Title,
		DurationSeconds: meta.DurationSeconds,
		AudioOnly:       audioOnly,
		Watermarked:     r.watermarked,
		Badge:           delivery.BadgeFor(acct, admin, now),
	})
	r.sizeBytes = result.SizeBytes
	if err != nil {
		return r.fail(ctx, err)
	}

	updated, err := p.deps.Ledger.RecordDownload(ctx, acct.ID)
	if err != nil {
		logging.ErrorWithContext(r.logger, "record download failed", "ledger_record_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "download was delivered but not counted"),
		)
		updated = acct
	}
	if err := r.advance(ctx, job.StateCompleted); err != nil {
		r.logger.Warn("completion transition rejected", logging.Error(err))
	}

	reply := completionText(!admin && !entitled, remaining, r.j.UsedBonus(), updated.BonusBalance)
	_ = p.deps.Channel.Delete(ctx, r.status)
	if reply != "" {
		_, _ = p.deps.Channel.Send(ctx, r.req.Chat, reply)
	}
	r.save(ctx, nil)
	r.logger.Info("job completed",
		logging.String(logging.FieldEventType, "job_completed"),
		logging.Bool("watermarked", r.watermarked),
		logging.Int64("size_bytes", r.sizeBytes),
		logging.Bool("used_bonus", r.j.UsedBonus()),
	)
	return Outcome{
		JobID:       r.j.ID,
		State:       job.StateCompleted,
		Reply:       reply,
		Remaining:   remaining,
		Watermarked: r.watermarked,
		UsedBonus:   r.j.UsedBonus(),
		Delivery:    result,
	}
}

func (r *run) advance(ctx context.Context, next job.State) error {
	if err := r.j.Transition(next); err != nil {
		return err
	}
	r.logger.Debug("job state", logging.String(logging.FieldStage, string(next)))
	r.save(ctx, nil)
	return nil
}

// failReplyTimeout bounds the refund, reply and notification sent for a failed
// job once its own context is gone.
const failReplyTimeout = 10 * time.Second

// fail moves the job to failed, refunds a consumed bonus and answers the
// user. Calling it on an already terminal job only returns the outcome.
func (r *run) fail(ctx context.Context, err error) Outcome {
	if err == nil {
		err = errors.New("job failed without an error")
	}
	kind := services.Kind(err)
	reply := UserMessage(err)
	out := Outcome{JobID: r.j.ID, State: job.StateFailed, Err: err, Reply: reply, UsedBonus: r.j.UsedBonus()}
	if !r.j.Fail() {
		return out
	}

	attrs := []logging.Attr{
		logging.String(logging.FieldErrorKind, kind),
		logging.Error(err),
	}
	switch {
	case services.IsPolicyDenial(err):
		r.logger.Info("job denied", logging.Args(attrs...)...)
	case kind == "internal" || kind == "external_tool_failure":
		logging.ErrorWithContext(r.logger, "job failed", "job_failed", attrs...)
	default:
		logging.WarnWithContext(r.logger, "job failed", "job_failed",
			append(attrs, logging.String(logging.FieldImpact, "user received a failure reply"))...)
	}

	// The job may be failing because the daemon is shutting down; the refund
	// and reply still go out.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failReplyTimeout)
	defer cancel()

	if r.j.UsedBonus() {
		if refundErr := r.p.deps.Ledger.RefundBonus(ctx, r.req.AccountID); refundErr != nil {
			logging.ErrorWithContext(r.logger, "bonus refund failed", "bonus_refund_failed",
				logging.Error(refundErr),
				logging.String(logging.FieldErrorHint, "credit the bonus manually with the accounts command"),
			)
		} else {
			r.logger.Info("bonus download refunded")
		}
	}

	if r.status.IsZero() {
		_, _ = r.p.deps.Channel.Send(ctx, r.req.Chat, reply)
	} else if editErr := r.p.deps.Channel.Edit(ctx, r.status, reply); editErr != nil {
		_, _ = r.p.deps.Channel.Send(ctx, r.req.Chat, reply)
	}

	if kind == "internal" || kind == "external_tool_failure" {
		payload := notifications.Payload{"jobID": r.j.ID, "kind": kind, "detail": err.Error(), "url": r.req.URL}
		if notifyErr := r.p.deps.Notifier.Publish(ctx, notifications.EventJobFailed, payload); notifyErr != nil {
			r.logger.Debug("failure notification not sent", logging.Error(notifyErr))
		}
	}
	r.save(ctx, err)
	return out
}

func (r *run) edit(ctx context.Context, text string) {
	if r.status.IsZero() {
		return
	}
	if err := r.p.deps.Channel.Edit(ctx, r.status, text); err != nil {
		r.logger.Debug("status edit failed", logging.Error(err))
	}
}

func (r *run) progress(ctx context.Context, pr download.Progress) {
	r.j.RecordProgress(pr.Percent, r.p.now())
	if r.sampler.ShouldLog(pr.Percent, "download") {
		r.logger.Info("download progress",
			logging.Float64("percent", pr.Percent),
			logging.Int64("downloaded_bytes", pr.DownloadedBytes),
		)
	}
	r.edit(ctx, ProgressText(r.title, pr))
}

func (r *run) save(ctx context.Context, failure error) {
	history := r.p.deps.History
	if history == nil {
		return
	}
	meta := r.j.Metadata()
	rec := store.JobRecord{
		ID:              r.j.ID,
		AccountID:       r.j.AccountID,
		SourceURL:       r.j.SourceURL,
		Title:           meta.Title,
		Extractor:       meta.Extractor,
		Profile:         r.j.Profile().Name,
		State:           string(r.j.State()),
		DurationSeconds: meta.DurationSeconds,
		SizeBytes:       r.sizeBytes,
		Watermarked:     r.watermarked,
		UsedBonus:       r.j.UsedBonus(),
		CreatedAt:       r.j.CreatedAt,
	}
	if failure != nil {
		rec.ErrorKind = services.Kind(failure)
		rec.ErrorMessage = failure.Error()
	}
	if r.j.State().Terminal() {
		finished := r.p.now().UTC()
		rec.FinishedAt = &finished
	}
	if err := history.SaveJob(context.WithoutCancel(ctx), rec); err != nil {
		r.logger.Warn("job history not saved", logging.Error(err), logging.String(logging.FieldEventType, "history_save_failed"))
	}
}

// SelectProfile picks the requested profile from meta. An empty name selects
// "best", or the first offered profile when best is missing.
func SelectProfile(meta extract.Metadata, name string) (extract.QualityProfile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = extract.ProfileBest
	}
	if profile, ok := meta.ProfileByName(name); ok {
		return profile, nil
	}
	if name == extract.ProfileBest && len(meta.Profiles) > 0 {
		return meta.Profiles[0], nil
	}
	return extract.QualityProfile{}, &ProfileUnavailableError{Requested: name, Available: meta.ProfileNames()}
}

// ProfileUnavailableError reports a quality the item does not offer.
type ProfileUnavailableError struct {
	Requested string
	Available []string
}

func (e *ProfileUnavailableError) Error() string {
	return fmt.Sprintf("profile %q unavailable (offered: %s)", e.Requested, strings.Join(e.Available, ", "))
}

func (e *ProfileUnavailableError) Unwrap() error { return services.ErrValidation }
