package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"mediabot/internal/admission"
	"mediabot/internal/bot"
	"mediabot/internal/config"
	"mediabot/internal/daemon"
	"mediabot/internal/delivery"
	"mediabot/internal/download"
	"mediabot/internal/extract"
	"mediabot/internal/ledger"
	"mediabot/internal/logging"
	"mediabot/internal/media/ffprobe"
	"mediabot/internal/messaging"
	"mediabot/internal/notifications"
	"mediabot/internal/pipeline"
	"mediabot/internal/preflight"
	"mediabot/internal/store"
	"mediabot/internal/videoinfo"
	"mediabot/internal/watermark"
	"mediabot/internal/workerpool"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the bot and blocks until SIGINT/SIGTERM or cmdCtx is done.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.RequireTelegram(); err != nil {
		return err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("mediabot-%s.log", runID))
	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
		RunID:            uuid.NewString(),
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update mediabot.log link: %v\n", err)
	}

	logDependencySnapshot(logger, cfg)
	if err := preflight.Err(preflight.RunAll(signalCtx, cfg)); err != nil {
		logging.ErrorWithContext(logger, "preflight failed", "preflight_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run mediabot status for details"),
		)
		return fmt.Errorf("preflight: %w", err)
	}

	st, err := store.Open(cfg)
	if err != nil {
		logger.Error("open store", logging.Error(err))
		return err
	}

	api, err := newBotAPI(cfg)
	if err != nil {
		st.Close()
		return fmt.Errorf("connect to telegram: %w", err)
	}
	logger.Info("telegram connected", logging.String("bot", api.Self.UserName), logging.Int64("bot_id", api.Self.ID))

	d, err := assemble(cfg, st, api, logger)
	if err != nil {
		st.Close()
		return err
	}
	defer d.Close()

	pidPath := daemon.PIDPath(cfg)
	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}
	if err := writePIDFile(pidPath); err != nil {
		logger.Warn("write pid file", logging.Error(err), logging.String("path", pidPath))
	}
	defer os.Remove(pidPath)

	<-signalCtx.Done()
	logger.Info("mediabot daemon shutting down")
	return nil
}

func assemble(cfg *config.Config, st *store.Store, api *tgbotapi.BotAPI, logger *slog.Logger) (*daemon.Daemon, error) {
	channel := messaging.NewTelegram(api, cfg.Telegram.EditsPerSecond, logger)
	accounts := ledger.New(st, ledger.SettingsFromConfig(cfg), ledger.WithLogger(logger))
	gate := admission.NewFromConfig(cfg)
	pool := workerpool.New(cfg.Downloader.Workers, logger)
	notifier := notifications.NewService(cfg)

	p := pipeline.New(pipeline.Deps{
		Ledger:    accounts,
		Admission: gate,
		Resolver:  extract.New(cfg.Downloader, extract.WithLogger(logger)),
		Fetcher: download.New(download.NewYTDLPFetcher(cfg.Downloader.YTDLPBinary), pool,
			cfg.Downloader, cfg.Progress, download.WithLogger(logger)),
		Post:     watermark.New(cfg.Watermark, pool, watermark.WithLogger(logger)),
		Delivery: delivery.New(channel, cfg, delivery.WithLogger(logger)),
		Channel:  channel,
		History:  st,
		Notifier: notifier,
	}, cfg, pipeline.WithLogger(logger))
	dispatcher := pipeline.NewDispatcher(p, logger, nil)

	videos := videoinfo.New(channel, messaging.NewFiles(api, api.Client),
		ffprobe.New(cfg.Watermark.FFprobeBinary, nil), cfg, videoinfo.WithLogger(logger))
	opts := []bot.Option{
		bot.WithBotName(api.Self.UserName),
		bot.WithLogger(logger),
		bot.WithVideoInfo(videos),
	}
	if cfg.Telegram.MirrorText {
		if chat, ok := messaging.ParseChatRef(cfg.Telegram.AuditChannel); ok {
			opts = append(opts, bot.WithTextMirror(chat))
		}
	}
	handler := bot.NewHandler(cfg, accounts, gate, dispatcher, channel, opts...)
	listener := bot.NewListener(api, handler, cfg.Telegram.APITimeout, logger)

	return daemon.New(cfg, daemon.Components{
		Store:      st,
		Pool:       pool,
		Dispatcher: dispatcher,
		Listener:   listener,
		Notifier:   notifier,
		Videos:     videos,
		BotName:    api.Self.UserName,
	}, logger)
}

// newBotAPI builds the Telegram client. Only the response header wait is
// bounded so that large uploads are not cut off mid-body.
func newBotAPI(cfg *config.Config) (*tgbotapi.BotAPI, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = time.Duration(cfg.Telegram.APITimeout+30) * time.Second
	client := &http.Client{Transport: transport}
	return tgbotapi.NewBotAPIWithClient(cfg.Telegram.Token, tgbotapi.APIEndpoint, client)
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "mediabot.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Bool("audit_channel", cfg.Telegram.AuditChannel != ""),
		logging.Bool("audit_media_channel", cfg.Telegram.AuditMediaChannel != ""),
		logging.Bool("watermark_asset", cfg.Watermark.AssetPath != ""),
		logging.Bool("ntfy", cfg.Notifications.NtfyTopic != ""),
		logging.Int("admins", len(cfg.Telegram.AdminIDs)),
	}
	for _, status := range preflight.CheckSystemDeps(cfg) {
		key := strings.ToLower(strings.ReplaceAll(status.Name, "-", ""))
		attrs = append(attrs,
			logging.Bool(key+"_available", status.Available),
			logging.String(key+"_binary", status.Command),
		)
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}
