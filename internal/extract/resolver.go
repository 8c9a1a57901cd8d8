package extract

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"mediabot/internal/config"
	"mediabot/internal/logging"
	"mediabot/internal/media/runner"
	"mediabot/internal/services"
)

// Option configures the Resolver.
type Option func(*Resolver)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec runner.Executor) Option {
	return func(r *Resolver) {
		if exec != nil {
			r.exec = exec
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Resolver asks yt-dlp for item metadata.
type Resolver struct {
	binary        string
	timeout       time.Duration
	defaultFormat string
	exec          runner.Executor
	logger        *slog.Logger
}

// New constructs a Resolver from the downloader section.
func New(cfg config.Downloader, opts ...Option) *Resolver {
	binary := strings.TrimSpace(cfg.YTDLPBinary)
	if binary == "" {
		binary = "yt-dlp"
	}
	r := &Resolver{
		binary:        binary,
		timeout:       time.Duration(cfg.ResolveTimeout) * time.Second,
		defaultFormat: cfg.Format,
		exec:          runner.CommandExecutor{},
		logger:        logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.NewComponentLogger(r.logger, "extract")
	return r
}

// Resolve fetches metadata for rawURL without downloading the payload.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) (Metadata, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return Metadata{}, services.Wrap(services.ErrUnsupportedSource, "extract", "resolve", "empty url", nil)
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	args := []string{"--dump-single-json", "--no-playlist", "--skip-download", "--no-warnings", "--", rawURL}
	started := time.Now()
	output, err := runner.Output(ctx, r.exec, r.binary, args)
	if err != nil {
		return Metadata{}, Classify("resolve", err)
	}

	var info rawInfo
	if err := json.Unmarshal([]byte(strings.TrimSpace(output)), &info); err != nil {
		return Metadata{}, services.Wrap(services.ErrTransient, "extract", "resolve", "decode yt-dlp json", err)
	}
	if info.Type == "playlist" {
		return Metadata{}, services.Wrap(services.ErrUnsupportedSource, "extract", "resolve", "playlists are not supported", nil)
	}
	meta := info.toMetadata(r.defaultFormat)
	if meta.URL == "" {
		meta.URL = rawURL
	}
	r.logger.Debug("metadata resolved",
		logging.String("extractor", meta.Extractor),
		logging.Int("duration_seconds", meta.DurationSeconds),
		logging.Bool("audio_only", meta.AudioOnly),
		logging.Duration("elapsed", time.Since(started)),
	)
	return meta, nil
}

var formatMarkers = []string{
	"requested format is not available",
	"requested format not available",
	"no video formats found",
}

var unavailableMarkers = []string{
	"private video",
	"video unavailable",
	"this video is not available",
	"this video is unavailable",
	"content is not available",
	"has been removed",
	"was removed",
	"been terminated",
	"sign in to confirm",
	"login required",
	"members-only",
	"members only",
	"join this channel",
	"geo restriction",
	"geo-restricted",
	"available in your country",
	"http error 404",
	"http error 403",
	"this content isn't available",
}

// Classify maps a yt-dlp resolve failure to a services marker. Failures that
// SourceMarker does not recognize are reported as transient.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, "extract", op, "yt-dlp timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return services.Wrap(services.ErrTransient, "extract", op, "cancelled", err)
	}
	if marker := SourceMarker(err); marker != nil {
		return services.Wrap(marker, "extract", op, lastLine(toolText(err)), err)
	}
	return services.Wrap(services.ErrTransient, "extract", op, "yt-dlp failed", err)
}

// SourceMarker returns ErrUnsupportedSource or ErrPrivateOrUnavailable when
// the yt-dlp output in err names one of those conditions, and nil otherwise.
// A source that exists but offers no format matching the selector reports
// ErrExternalTool.
func SourceMarker(err error) error {
	if err == nil {
		return nil
	}
	lowered := strings.ToLower(toolText(err))
	switch {
	case containsAny(lowered, formatMarkers):
		return services.ErrExternalTool
	case strings.Contains(lowered, "unsupported url"):
		return services.ErrUnsupportedSource
	case containsAny(lowered, unavailableMarkers):
		return services.ErrPrivateOrUnavailable
	}
	return nil
}

func toolText(err error) string {
	var exitErr *runner.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.StderrText()
	}
	return err.Error()
}

func containsAny(text string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}

func lastLine(text string) string {
	text = strings.TrimSpace(text)
	if idx := strings.LastIndexByte(text, '\n'); idx >= 0 {
		text = text[idx+1:]
	}
	return strings.TrimPrefix(text, "ERROR: ")
}
