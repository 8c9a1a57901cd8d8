package bot

import (
	"context"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"mediabot/internal/logging"
)

// UpdateSource is the long-poll side of *tgbotapi.BotAPI.
type UpdateSource interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Listener feeds updates from source into a Handler.
type Listener struct {
	source      UpdateSource
	handler     *Handler
	pollTimeout int
	logger      *slog.Logger
}

// NewListener constructs a Listener. pollTimeout is the long-poll wait in
// seconds.
func NewListener(source UpdateSource, handler *Handler, pollTimeout int, logger *slog.Logger) *Listener {
	if pollTimeout <= 0 {
		pollTimeout = 60
	}
	return &Listener{
		source:      source,
		handler:     handler,
		pollTimeout: pollTimeout,
		logger:      logging.NewComponentLogger(logger, "listener"),
	}
}

// Run handles updates until ctx is done or the source closes. Handling is
// synchronous; downloads return quickly because the Handler only submits
// them.
func (l *Listener) Run(ctx context.Context) error {
	updates := l.source.GetUpdatesChan(tgbotapi.UpdateConfig{
		Timeout:        l.pollTimeout,
		AllowedUpdates: []string{"message"},
	})
	l.logger.Info("listening for updates", logging.Int("poll_timeout", l.pollTimeout))
	for {
		select {
		case <-ctx.Done():
			l.source.StopReceivingUpdates()
			l.logger.Info("listener stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			l.handler.HandleUpdate(ctx, update)
		}
	}
}
