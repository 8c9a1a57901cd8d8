// Package watermark overlays the operator logo on videos delivered to free
// accounts. The stage is best effort: any failure leaves the source artifact
// untouched and the caller delivers it as is.
package watermark

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mediabot/internal/config"
	"mediabot/internal/job"
	"mediabot/internal/logging"
	"mediabot/internal/media/ffprobe"
	"mediabot/internal/media/runner"
	"mediabot/internal/workerpool"
)

const margin = 10

var overlayPositions = map[string]string{
	"top_left":     fmt.Sprintf("%d:%d", margin, margin),
	"top_right":    fmt.Sprintf("W-w-%d:%d", margin, margin),
	"bottom_left":  fmt.Sprintf("%d:H-h-%d", margin, margin),
	"bottom_right": fmt.Sprintf("W-w-%d:H-h-%d", margin, margin),
}

// Option configures the Stage.
type Option func(*Stage)

// WithExecutor injects a custom executor for ffmpeg and ffprobe.
func WithExecutor(exec runner.Executor) Option {
	return func(s *Stage) {
		if exec != nil {
			s.exec = exec
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Stage) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Stage applies the watermark.
type Stage struct {
	asset      string
	position   string
	scaleWidth int
	ffmpeg     string
	ffprobe    string
	timeout    time.Duration
	pool       *workerpool.Pool
	exec       runner.Executor
	prober     *ffprobe.Prober
	logger     *slog.Logger
}

// New constructs a Stage from the watermark section.
func New(cfg config.Watermark, pool *workerpool.Pool, opts ...Option) *Stage {
	s := &Stage{
		asset:      strings.TrimSpace(cfg.AssetPath),
		position:   cfg.Position,
		scaleWidth: cfg.ScaleWidth,
		ffmpeg:     cfg.FFmpegBinary,
		ffprobe:    cfg.FFprobeBinary,
		timeout:    time.Duration(cfg.Timeout) * time.Second,
		pool:       pool,
		exec:       runner.CommandExecutor{},
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.ffmpeg == "" {
		s.ffmpeg = "ffmpeg"
	}
	if _, ok := overlayPositions[s.position]; !ok {
		s.position = "bottom_right"
	}
	if s.scaleWidth <= 0 {
		s.scaleWidth = 150
	}
	s.prober = ffprobe.New(s.ffprobe, s.exec)
	s.logger = logging.NewComponentLogger(s.logger, "watermark")
	return s
}

// AssetAvailable reports whether the configured logo exists.
func (s *Stage) AssetAvailable() bool {
	if s.asset == "" {
		return false
	}
	info, err := os.Stat(s.asset)
	return err == nil && !info.IsDir()
}

// ShouldApply is true iff the item has video, the account is neither entitled
// nor admin, and the logo asset exists.
func (s *Stage) ShouldApply(audioOnly, entitled, admin bool) bool {
	return !audioOnly && !entitled && !admin && s.AssetAvailable()
}

// OutputPath returns the watermarked copy path for src.
func OutputPath(src string) string {
	return strings.TrimSuffix(src, filepath.Ext(src)) + "_wm.mp4"
}

// Apply overlays the logo on src and returns the new artifact path. On any
// failure it logs a warning and returns src unchanged.
func (s *Stage) Apply(ctx context.Context, j *job.Job, src string) string {
	logger := s.logger.With(logging.String(logging.FieldJobID, j.ID))
	if !s.AssetAvailable() {
		s.warn(logger, "watermark asset missing", errors.New("asset not found: "+s.asset))
		return src
	}

	if probe, err := s.prober.Inspect(ctx, src); err == nil {
		if probe.VideoStreamCount() == 0 {
			logger.Info("watermark skipped", logging.String("reason", "no video stream"))
			return src
		}
	} else {
		logger.Debug("ffprobe unavailable, relying on metadata", logging.Error(err))
	}

	out := OutputPath(src)
	j.Track(out)

	runCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	started := time.Now()
	err := s.pool.Do(runCtx, "watermark "+j.ID, func(taskCtx context.Context) error {
		return s.exec.Run(taskCtx, s.ffmpeg, s.args(src, out), nil)
	})
	if err != nil {
		s.warn(logger, "ffmpeg overlay failed", err)
		_ = os.Remove(out)
		return src
	}
	info, err := os.Stat(out)
	if err != nil || info.Size() == 0 {
		s.warn(logger, "ffmpeg produced no output", err)
		return src
	}
	logger.Info("watermark applied",
		logging.String("position", s.position),
		logging.Duration("elapsed", time.Since(started)),
	)
	return out
}

func (s *Stage) args(src, out string) []string {
	filter := fmt.Sprintf("[1:v]scale=%d:-1[wm];[0:v][wm]overlay=%s[v]", s.scaleWidth, overlayPositions[s.position])
	return []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", src,
		"-i", s.asset,
		"-filter_complex", filter,
		"-map", "[v]",
		"-map", "0:a?",
		"-c:v", "libx264", "-preset", "veryfast", "-b:v", "1000k",
		"-c:a", "aac", "-b:a", "128k",
		"-movflags", "+faststart",
		out,
	}
}

func (s *Stage) warn(logger *slog.Logger, msg string, err error) {
	logging.WarnWithContext(logger, msg, "watermark_failed",
		logging.Error(err),
		logging.String(logging.FieldImpact, "original file delivered without watermark"),
		logging.String(logging.FieldErrorHint, "check watermark.asset_path and the ffmpeg binary"),
	)
}
