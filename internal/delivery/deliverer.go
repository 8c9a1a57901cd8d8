package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"unicode/utf8"

	"mediabot/internal/config"
	"mediabot/internal/logging"
	"mediabot/internal/messaging"
	"mediabot/internal/services"
	"mediabot/internal/textutil"
)

// maxCaptionRunes is the Telegram caption ceiling.
const maxCaptionRunes = 1024

// Requester identifies who asked for the artifact.
type Requester struct {
	ID       int64
	Username string
}

func (r Requester) String() string {
	if r.Username != "" {
		return fmt.Sprintf("@%s (%d)", r.Username, r.ID)
	}
	return fmt.Sprintf("%d", r.ID)
}

// Request describes one delivery.
type Request struct {
	JobID           string
	Chat            messaging.ChatRef
	Requester       Requester
	Path            string
	SourceURL       string
	Title           string
	DurationSeconds int
	AudioOnly       bool
	Watermarked     bool
	Badge           Badge
}

// Result reports what reached each destination.
type Result struct {
	Message   messaging.MessageRef
	SizeBytes int64
	Forwarded bool
	Logged    bool
}

// Option configures a Deliverer.
type Option func(*Deliverer)

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Deliverer) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// Deliverer uploads artifacts and writes audit records.
type Deliverer struct {
	channel    messaging.Channel
	maxBytes   int64
	auditText  messaging.ChatRef
	auditMedia messaging.ChatRef
	logger     *slog.Logger
}

// New constructs a Deliverer from the quota and telegram sections. Audit
// destinations left blank are skipped.
func New(channel messaging.Channel, cfg *config.Config, opts ...Option) *Deliverer {
	d := &Deliverer{
		channel:  channel,
		maxBytes: cfg.Quota.MaxPayloadBytes,
		logger:   logging.NewNop(),
	}
	d.auditText, _ = messaging.ParseChatRef(cfg.Telegram.AuditChannel)
	d.auditMedia, _ = messaging.ParseChatRef(cfg.Telegram.AuditMediaChannel)
	for _, opt := range opts {
		opt(d)
	}
	d.logger = logging.NewComponentLogger(d.logger, "delivery")
	return d
}

// Deliver checks the artifact size, uploads it to the requester and then
// copies it to the audit channels. Only size and upload failures are
// returned.
func (d *Deliverer) Deliver(ctx context.Context, req Request) (Result, error) {
	logger := logging.WithContext(ctx, d.logger)

	info, err := os.Stat(req.Path)
	if err != nil {
		return Result{}, services.Wrap(services.ErrDeliveryFailure, "delivery", "stat artifact", req.Path, err)
	}
	size := info.Size()
	if d.maxBytes > 0 && size > d.maxBytes {
		return Result{SizeBytes: size}, &services.SizeLimitError{Limit: d.maxBytes, Size: size}
	}

	media := messaging.Media{
		Kind:            messaging.MediaVideo,
		Path:            req.Path,
		Caption:         Caption(req, size),
		Title:           req.Title,
		DurationSeconds: req.DurationSeconds,
	}
	if req.AudioOnly {
		media.Kind = messaging.MediaAudio
	}

	sent, err := d.channel.SendMedia(ctx, req.Chat, media)
	if err != nil {
		return Result{SizeBytes: size}, services.Wrap(services.ErrDeliveryFailure, "delivery", "upload", media.Kind.String(), err)
	}
	logger.Info("artifact delivered",
		logging.String(logging.FieldEventType, "artifact_delivered"),
		logging.String("size", textutil.FormatSize(size)),
		logging.String("kind", media.Kind.String()),
	)

	result := Result{Message: sent, SizeBytes: size}
	result.Forwarded = d.forwardAudit(ctx, logger, sent)
	result.Logged = d.logAudit(ctx, logger, req)
	return result, nil
}

func (d *Deliverer) forwardAudit(ctx context.Context, logger *slog.Logger, sent messaging.MessageRef) bool {
	if d.auditMedia.IsZero() {
		return false
	}
	fwd, err := d.channel.Forward(ctx, d.auditMedia, sent)
	if err != nil {
		logging.WarnWithContext(logger, "audit forward failed", "audit_forward_failed",
			logging.String("channel", d.auditMedia.String()),
			logging.Error(err),
			logging.String(logging.FieldImpact, "media audit channel is missing this artifact"),
			logging.String(logging.FieldErrorHint, "verify the bot can post to telegram.audit_media_channel"),
		)
		return false
	}
	return !fwd.IsZero()
}

func (d *Deliverer) logAudit(ctx context.Context, logger *slog.Logger, req Request) bool {
	if d.auditText.IsZero() {
		return false
	}
	if _, err := d.channel.Send(ctx, d.auditText, AuditText(req)); err != nil {
		logging.WarnWithContext(logger, "audit log failed", "audit_log_failed",
			logging.String("channel", d.auditText.String()),
			logging.Error(err),
			logging.String(logging.FieldImpact, "audit channel is missing this download record"),
			logging.String(logging.FieldErrorHint, "verify the bot can post to telegram.audit_channel"),
		)
		return false
	}
	return true
}

// Caption builds the upload caption.
func Caption(req Request, size int64) string {
	badge := req.Badge
	if badge == "" {
		badge = BadgeFree
	}
	tail := fmt.Sprintf("\nDuration: %s | Size: %s\nPlan: %s",
		textutil.FormatDuration(req.DurationSeconds),
		textutil.FormatSize(size),
		badge,
	)
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = "Untitled"
	}
	budget := maxCaptionRunes - utf8.RuneCountInString(tail)
	if runes := []rune(title); len(runes) > budget {
		title = string(runes[:budget-1]) + "…"
	}
	return title + tail
}

// AuditText builds the text record posted to the audit channel.
func AuditText(req Request) string {
	var b strings.Builder
	b.WriteString("New download\n")
	fmt.Fprintf(&b, "User: %s\n", req.Requester)
	fmt.Fprintf(&b, "URL: %s\n", req.SourceURL)
	fmt.Fprintf(&b, "Title: %s", strings.TrimSpace(req.Title))
	if req.Watermarked {
		b.WriteString("\nWatermarked: yes")
	}
	if req.JobID != "" {
		fmt.Fprintf(&b, "\nJob: %s", req.JobID)
	}
	return b.String()
}
