// Package videoinfo answers a video sent to the bot with its title,
// resolution and duration, and copies the message to the media audit
// channel.
package videoinfo

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"mediabot/internal/config"
	"mediabot/internal/logging"
	"mediabot/internal/media/ffprobe"
	"mediabot/internal/messaging"
	"mediabot/internal/textutil"
)

// MaxFetchBytes is the largest file the Bot API lets a bot download.
const MaxFetchBytes = 20 << 20

const (
	processingText = "Reading video details..."
	failedText     = "Could not read this video's details."
	titleNotFound  = "Title not found"
	replyTimeout   = 10 * time.Second
)

// Fetcher downloads a user-sent file to a local path.
type Fetcher interface {
	Fetch(ctx context.Context, fileID, dst string) error
}

// Inspector reads container metadata from a local file.
type Inspector interface {
	Inspect(ctx context.Context, path string) (ffprobe.Result, error)
}

// Request describes a video message. Dimensions and duration are the values
// Telegram reported and are used when the file cannot be read.
type Request struct {
	Message         messaging.MessageRef
	FileID          string
	FileSize        int64
	Width           int
	Height          int
	DurationSeconds int
}

// Details is what the reply shows.
type Details struct {
	Title           string
	Width           int
	Height          int
	DurationSeconds int
}

func (d Details) String() string {
	resolution := "?"
	if d.Width > 0 && d.Height > 0 {
		resolution = fmt.Sprintf("%dx%d", d.Width, d.Height)
	}
	return fmt.Sprintf("Title: %s\nResolution: %s\nDuration: %s",
		d.Title, resolution, textutil.FormatDuration(d.DurationSeconds))
}

// Option configures a Service.
type Option func(*Service)

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAuditChannel overrides the forward destination.
func WithAuditChannel(chat messaging.ChatRef) Option {
	return func(s *Service) { s.audit = chat }
}

// Service describes videos in the background.
type Service struct {
	channel   messaging.Channel
	fetcher   Fetcher
	inspector Inspector
	workDir   string
	audit     messaging.ChatRef
	logger    *slog.Logger
	wg        sync.WaitGroup
}

// New constructs a Service that stages files under paths.work_dir and
// forwards to telegram.audit_media_channel when one is configured.
func New(channel messaging.Channel, fetcher Fetcher, inspector Inspector, cfg *config.Config, opts ...Option) *Service {
	s := &Service{
		channel:   channel,
		fetcher:   fetcher,
		inspector: inspector,
		workDir:   cfg.Paths.WorkDir,
		logger:    logging.NewNop(),
	}
	s.audit, _ = messaging.ParseChatRef(cfg.Telegram.AuditMediaChannel)
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.NewComponentLogger(s.logger, "videoinfo")
	return s
}

// Start describes req on its own goroutine. Cancelling ctx aborts the
// download and inspection.
func (s *Service) Start(ctx context.Context, req Request) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_ = s.Describe(ctx, req)
	}()
}

// Wait blocks until every started description has finished.
func (s *Service) Wait() { s.wg.Wait() }

// Describe acknowledges the video, edits the acknowledgement into the
// details, then forwards the user's message to the audit channel. The
// staged copy is removed before Describe returns.
func (s *Service) Describe(ctx context.Context, req Request) error {
	logger := logging.WithContext(ctx, s.logger)
	status, err := s.channel.Send(ctx, req.Message.Chat, processingText)
	if err != nil {
		return fmt.Errorf("acknowledge video: %w", err)
	}

	details, err := s.details(ctx, req)
	if err != nil {
		logging.WarnWithContext(logger, "video details failed", "video_info_failed",
			logging.String("file_id", req.FileID),
			logging.Error(err),
			logging.String(logging.FieldImpact, "user received an error instead of video details"),
		)
		replyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), replyTimeout)
		defer cancel()
		if editErr := s.channel.Edit(replyCtx, status, failedText); editErr != nil {
			logger.Warn("video details reply failed", logging.Error(editErr))
		}
		return err
	}
	if err := s.channel.Edit(ctx, status, details.String()); err != nil {
		return fmt.Errorf("reply with video details: %w", err)
	}

	if s.audit.IsZero() {
		return nil
	}
	if _, err := s.channel.Forward(ctx, s.audit, req.Message); err != nil {
		logging.WarnWithContext(logger, "audit forward failed", "audit_forward_failed",
			logging.String("channel", s.audit.String()),
			logging.Error(err),
			logging.String(logging.FieldImpact, "media audit channel is missing a user video"),
			logging.String(logging.FieldErrorHint, "verify the bot can post to telegram.audit_media_channel"),
		)
	}
	return nil
}

func (s *Service) details(ctx context.Context, req Request) (Details, error) {
	d := Details{
		Title:           titleNotFound,
		Width:           req.Width,
		Height:          req.Height,
		DurationSeconds: req.DurationSeconds,
	}
	if req.FileSize > MaxFetchBytes {
		s.logger.Debug("video too large to read, using reported metadata",
			logging.Int64("size_bytes", req.FileSize))
		return d, nil
	}

	if err := os.MkdirAll(s.workDir, 0o755); err != nil {
		return d, fmt.Errorf("create work dir: %w", err)
	}
	dir, err := os.MkdirTemp(s.workDir, "videoinfo-")
	if err != nil {
		return d, fmt.Errorf("stage video: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "video")
	if err := s.fetcher.Fetch(ctx, req.FileID, path); err != nil {
		return d, err
	}
	result, err := s.inspector.Inspect(ctx, path)
	if err != nil {
		return d, err
	}

	if title := result.Title(); title != "" {
		d.Title = title
	}
	if w, h := result.VideoSize(); w > 0 && h > 0 {
		d.Width, d.Height = w, h
	}
	if secs := result.DurationSeconds(); secs > 0 && !math.IsNaN(secs) {
		d.DurationSeconds = int(math.Round(secs))
	}
	return d, nil
}
