package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"mediabot/internal/logging"
)

// BotClient is the subset of *tgbotapi.BotAPI used by Telegram.
type BotClient interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

const (
	// maxRetryAfter caps how long a flood-control reply may stall a call.
	maxRetryAfter = 30 * time.Second
	// GlobalEditsPerSecond is the bot-wide edit ceiling across all chats.
	GlobalEditsPerSecond = 30
	// chatLimiterIdle is how long an unused per-chat limiter is kept. A limiter
	// idle for longer than one refill interval is indistinguishable from a new one.
	chatLimiterIdle = time.Minute
)

var softErrorMarkers = []string{
	"message to edit not found",
	"message to delete not found",
	"message to forward not found",
	"message not found",
	"message is not modified",
	"message can't be deleted",
	"message can't be edited",
}

// Telegram implements Channel over the Telegram Bot API.
type Telegram struct {
	client    BotClient
	chatLimit rate.Limit
	global    *rate.Limiter
	logger    *slog.Logger
	now       func() time.Time

	mu    sync.Mutex
	chats map[string]*chatLimiter
}

type chatLimiter struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

// NewTelegram wraps client. Edits are limited per chat to editsPerSecond with
// a burst of one, and to GlobalEditsPerSecond across all chats. A
// non-positive rate disables the per-chat limit.
func NewTelegram(client BotClient, editsPerSecond float64, logger *slog.Logger) *Telegram {
	limit := rate.Inf
	if editsPerSecond > 0 {
		limit = rate.Limit(editsPerSecond)
	}
	return &Telegram{
		client:    client,
		chatLimit: limit,
		global:    rate.NewLimiter(GlobalEditsPerSecond, GlobalEditsPerSecond),
		logger:    logging.NewComponentLogger(logger, "telegram"),
		now:       time.Now,
		chats:     make(map[string]*chatLimiter),
	}
}

// waitEdit blocks until both the chat's limiter and the global one admit an
// edit.
func (t *Telegram) waitEdit(ctx context.Context, chat ChatRef) error {
	if err := t.chatLimiter(chat).Wait(ctx); err != nil {
		return err
	}
	return t.global.Wait(ctx)
}

func (t *Telegram) chatLimiter(chat ChatRef) *rate.Limiter {
	key := chat.String()
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()
	if entry, ok := t.chats[key]; ok {
		entry.lastUsed = now
		return entry.limiter
	}
	for k, entry := range t.chats {
		if now.Sub(entry.lastUsed) > chatLimiterIdle {
			delete(t.chats, k)
		}
	}
	entry := &chatLimiter{limiter: rate.NewLimiter(t.chatLimit, 1), lastUsed: now}
	t.chats[key] = entry
	return entry.limiter
}

// trackedChats reports how many per-chat limiters are held.
func (t *Telegram) trackedChats() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.chats)
}

// Send posts a text message.
func (t *Telegram) Send(ctx context.Context, to ChatRef, text string) (MessageRef, error) {
	msg := tgbotapi.MessageConfig{
		BaseChat:              baseChat(to),
		Text:                  text,
		DisableWebPagePreview: true,
	}
	sent, err := t.send(ctx, msg)
	if err != nil {
		return MessageRef{}, fmt.Errorf("send message to %s: %w", to, err)
	}
	return MessageRef{Chat: to, MessageID: sent.MessageID}, nil
}

// SendMedia uploads a local file.
func (t *Telegram) SendMedia(ctx context.Context, to ChatRef, media Media) (MessageRef, error) {
	file := tgbotapi.FilePath(media.Path)
	base := tgbotapi.BaseFile{BaseChat: baseChat(to), File: file}

	var cfg tgbotapi.Chattable
	switch media.Kind {
	case MediaVideo:
		cfg = tgbotapi.VideoConfig{
			BaseFile:          base,
			Caption:           media.Caption,
			Duration:          media.DurationSeconds,
			SupportsStreaming: true,
		}
	case MediaAudio:
		cfg = tgbotapi.AudioConfig{
			BaseFile: base,
			Caption:  media.Caption,
			Duration: media.DurationSeconds,
			Title:    media.Title,
		}
	default:
		cfg = tgbotapi.DocumentConfig{BaseFile: base, Caption: media.Caption}
	}

	sent, err := t.send(ctx, cfg)
	if err != nil {
		return MessageRef{}, fmt.Errorf("upload %s to %s: %w", media.Kind, to, err)
	}
	return MessageRef{Chat: to, MessageID: sent.MessageID}, nil
}

// Edit replaces the text of ref. Stale or unchanged messages are ignored.
func (t *Telegram) Edit(ctx context.Context, ref MessageRef, text string) error {
	if ref.IsZero() {
		return nil
	}
	if err := t.waitEdit(ctx, ref.Chat); err != nil {
		return err
	}
	cfg := tgbotapi.EditMessageTextConfig{
		BaseEdit: tgbotapi.BaseEdit{
			ChatID:          ref.Chat.ID,
			ChannelUsername: ref.Chat.Username,
			MessageID:       ref.MessageID,
		},
		Text:                  text,
		DisableWebPagePreview: true,
	}
	if _, err := t.request(ctx, cfg); err != nil {
		if IsSoftError(err) {
			t.logger.Debug("edit skipped", logging.Int("message_id", ref.MessageID), logging.Error(err))
			return nil
		}
		return fmt.Errorf("edit message %d: %w", ref.MessageID, err)
	}
	return nil
}

// Delete removes ref. Messages already gone are ignored.
func (t *Telegram) Delete(ctx context.Context, ref MessageRef) error {
	if ref.IsZero() {
		return nil
	}
	cfg := tgbotapi.DeleteMessageConfig{
		ChatID:          ref.Chat.ID,
		ChannelUsername: ref.Chat.Username,
		MessageID:       ref.MessageID,
	}
	if _, err := t.request(ctx, cfg); err != nil {
		if IsSoftError(err) {
			t.logger.Debug("delete skipped", logging.Int("message_id", ref.MessageID), logging.Error(err))
			return nil
		}
		return fmt.Errorf("delete message %d: %w", ref.MessageID, err)
	}
	return nil
}

// Forward copies ref into another chat. A source message that no longer
// exists yields a zero MessageRef and no error.
func (t *Telegram) Forward(ctx context.Context, to ChatRef, ref MessageRef) (MessageRef, error) {
	if ref.IsZero() {
		return MessageRef{}, nil
	}
	cfg := tgbotapi.ForwardConfig{
		BaseChat:            baseChat(to),
		FromChatID:          ref.Chat.ID,
		FromChannelUsername: ref.Chat.Username,
		MessageID:           ref.MessageID,
	}
	sent, err := t.send(ctx, cfg)
	if err != nil {
		if IsSoftError(err) {
			return MessageRef{}, nil
		}
		return MessageRef{}, fmt.Errorf("forward message %d to %s: %w", ref.MessageID, to, err)
	}
	return MessageRef{Chat: to, MessageID: sent.MessageID}, nil
}

func (t *Telegram) send(ctx context.Context, c tgbotapi.Chattable) (tgbotapi.Message, error) {
	var msg tgbotapi.Message
	err := t.withRetry(ctx, func() error {
		var err error
		msg, err = t.client.Send(c)
		return err
	})
	return msg, err
}

func (t *Telegram) request(ctx context.Context, c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	var resp *tgbotapi.APIResponse
	err := t.withRetry(ctx, func() error {
		var err error
		resp, err = t.client.Request(c)
		return err
	})
	return resp, err
}

// withRetry runs call once more after a flood-control reply, honouring the
// server's retry_after when it is short enough.
func (t *Telegram) withRetry(ctx context.Context, call func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := call()
	wait, ok := retryAfter(err)
	if !ok {
		return err
	}
	t.logger.Info("telegram flood control", logging.Duration("retry_after", wait))
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}
	return call()
}

func retryAfter(err error) (time.Duration, bool) {
	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) || apiErr.RetryAfter <= 0 {
		return 0, false
	}
	wait := time.Duration(apiErr.RetryAfter) * time.Second
	if wait > maxRetryAfter {
		return 0, false
	}
	return wait, true
}

// IsSoftError reports whether err describes a stale or unchanged message.
func IsSoftError(err error) bool {
	if err == nil {
		return false
	}
	text := strings.ToLower(err.Error())
	for _, marker := range softErrorMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

func baseChat(to ChatRef) tgbotapi.BaseChat {
	return tgbotapi.BaseChat{ChatID: to.ID, ChannelUsername: to.Username}
}
