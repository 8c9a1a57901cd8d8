package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"mediabot/internal/admission"
	"mediabot/internal/config"
	"mediabot/internal/delivery"
	"mediabot/internal/ledger"
	"mediabot/internal/logging"
	"mediabot/internal/messaging"
	"mediabot/internal/pipeline"
	"mediabot/internal/services"
	"mediabot/internal/videoinfo"
)

var urlPattern = regexp.MustCompile(`https?://\S+`)

// Submitter accepts pipeline requests.
type Submitter interface {
	Submit(ctx context.Context, req pipeline.Request) error
}

// VideoDescriber answers user-sent videos with their details.
type VideoDescriber interface {
	Start(ctx context.Context, req videoinfo.Request)
}

// Option configures a Handler.
type Option func(*Handler)

// WithBotName sets the username used in referral links.
func WithBotName(name string) Option {
	return func(h *Handler) {
		h.botName = strings.TrimPrefix(strings.TrimSpace(name), "@")
	}
}

// WithVideoInfo answers videos users send with their details.
func WithVideoInfo(v VideoDescriber) Option {
	return func(h *Handler) { h.videos = v }
}

// WithTextMirror copies plain chat messages to chat.
func WithTextMirror(chat messaging.ChatRef) Option {
	return func(h *Handler) { h.mirror = chat }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// Handler routes one message at a time.
type Handler struct {
	ledger    *ledger.Ledger
	admission *admission.Controller
	submitter Submitter
	channel   messaging.Channel
	limit     int
	bonus     int
	botName   string
	videos    VideoDescriber
	mirror    messaging.ChatRef
	now       func() time.Time
	logger    *slog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(cfg *config.Config, l *ledger.Ledger, ctrl *admission.Controller, submitter Submitter, channel messaging.Channel, opts ...Option) *Handler {
	h := &Handler{
		ledger:    l,
		admission: ctrl,
		submitter: submitter,
		channel:   channel,
		limit:     cfg.Quota.DailyFreeLimit,
		bonus:     cfg.Referral.RewardBonus,
		now:       time.Now,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = logging.NewComponentLogger(h.logger, "bot")
	return h
}

// HandleUpdate processes one update. Non-message updates are ignored.
func (h *Handler) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil || msg.From.IsBot {
		return
	}
	ctx = services.WithRequestID(ctx, fmt.Sprintf("update-%d", update.UpdateID))
	ctx = services.WithAccountID(ctx, msg.From.ID)
	h.HandleMessage(ctx, msg)
}

// HandleMessage routes msg to a command or treats it as a download request.
func (h *Handler) HandleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chat := messaging.Chat(msg.Chat.ID)
	from := msg.From
	if msg.Video != nil && h.videos != nil {
		h.videos.Start(ctx, videoinfo.Request{
			Message:         messaging.MessageRef{Chat: chat, MessageID: msg.MessageID},
			FileID:          msg.Video.FileID,
			FileSize:        int64(msg.Video.FileSize),
			Width:           msg.Video.Width,
			Height:          msg.Video.Height,
			DurationSeconds: msg.Video.Duration,
		})
		return
	}
	args := strings.Fields(msg.CommandArguments())

	var reply string
	switch msg.Command() {
	case "start":
		reply = h.start(ctx, from, args)
	case "help":
		reply = helpText
	case "status":
		reply = h.status(ctx, from)
	case "get":
		reply = h.download(ctx, msg, args, false)
	case "bonus":
		reply = h.download(ctx, msg, args, true)
	case "grant":
		reply = h.grant(ctx, from, args)
	case "":
		link := urlPattern.FindString(msg.Text)
		if link == "" {
			h.mirrorText(ctx, from, msg.Text)
			reply = "Send me a link to a video and I will download it for you. /help lists the commands."
			break
		}
		reply = h.submit(ctx, msg, pipeline.Request{URL: link})
	default:
		reply = "Unknown command. /help lists what I can do."
	}
	if reply == "" {
		return
	}
	if _, err := h.channel.Send(ctx, chat, reply); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, h.logger), "reply failed", "reply_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "user did not receive a command reply"),
		)
	}
}

func (h *Handler) mirrorText(ctx context.Context, from *tgbotapi.User, text string) {
	text = strings.TrimSpace(text)
	if h.mirror.IsZero() || text == "" {
		return
	}
	body := fmt.Sprintf("%s (%d):\n%s", displayName(from), from.ID, text)
	if _, err := h.channel.Send(ctx, h.mirror, body); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, h.logger), "text mirror failed", "text_mirror_failed",
			logging.String("channel", h.mirror.String()),
			logging.Error(err),
		)
	}
}

const helpText = `Send a link to download it.

/get <link> [best|720p|480p|360p|audio] - choose a quality
/bonus <link> - spend a bonus download when today's limit is used up
/status - plan, remaining downloads and bonus balance
/start - your referral link`

func (h *Handler) start(ctx context.Context, from *tgbotapi.User, args []string) string {
	var referrer int64
	if len(args) > 0 {
		referrer, _ = strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
	}
	acct, created, err := h.ledger.EnsureAccount(ctx, from.ID, ledger.Profile{Username: from.UserName, ReferrerID: referrer})
	if err != nil {
		return h.internalError(ctx, "start", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s! Send me a link to a video and I will download it for you.\n", displayName(from))
	if created {
		fmt.Fprintf(&b, "You start with %d bonus downloads.\n", acct.BonusBalance)
		if acct.ReferredBy != nil {
			b.WriteString("Thanks for joining through a referral.\n")
		}
	}
	fmt.Fprintf(&b, "Free accounts get %d downloads per day.", h.limit)
	if link := h.referralLink(from.ID); link != "" {
		fmt.Fprintf(&b, "\nInvite friends and earn %d bonus downloads each: %s", h.bonus, link)
	}
	return b.String()
}

func (h *Handler) status(ctx context.Context, from *tgbotapi.User) string {
	if _, _, err := h.ledger.EnsureAccount(ctx, from.ID, ledger.Profile{Username: from.UserName}); err != nil {
		return h.internalError(ctx, "status", err)
	}
	acct, err := h.ledger.Account(ctx, from.ID)
	if err != nil {
		return h.internalError(ctx, "status", err)
	}
	return StatusText(acct, h.admission.IsAdmin(from.ID), h.limit, h.now(), h.referralLink(from.ID))
}

// StatusText renders the /status reply.
func StatusText(acct ledger.Account, admin bool, limit int, now time.Time, referralLink string) string {
	var b strings.Builder
	badge := delivery.BadgeFor(acct, admin, now)
	switch {
	case admin:
		b.WriteString("Plan: ADMIN")
	case acct.LifetimeVIP:
		b.WriteString("Plan: VIP (lifetime)")
	case badge != delivery.BadgeFree && acct.SubscriptionExpiry != nil:
		fmt.Fprintf(&b, "Plan: %s until %s (%s)", badge,
			acct.SubscriptionExpiry.UTC().Format("2006-01-02"), humanize.RelTime(*acct.SubscriptionExpiry, now, "ago", "left"))
	default:
		b.WriteString("Plan: FREE")
	}

	if admin || acct.Entitled(now) {
		b.WriteString("\nDownloads today: unlimited")
	} else {
		fmt.Fprintf(&b, "\nDownloads today: %d/%d", acct.CountInWindow(now), limit)
		if reset := acct.WindowResetsAt(now); !reset.IsZero() {
			fmt.Fprintf(&b, " (resets %s)", humanize.RelTime(reset, now, "ago", "from now"))
		}
	}
	fmt.Fprintf(&b, "\nBonus downloads: %d", acct.BonusBalance)
	fmt.Fprintf(&b, "\nSuccessful referrals: %d", acct.SuccessfulReferrals)
	fmt.Fprintf(&b, "\nTotal downloads: %d", acct.LifetimeDownloads)
	if referralLink != "" {
		fmt.Fprintf(&b, "\nReferral link: %s", referralLink)
	}
	return b.String()
}

func (h *Handler) download(ctx context.Context, msg *tgbotapi.Message, args []string, useBonus bool) string {
	if len(args) == 0 || !urlPattern.MatchString(args[0]) {
		if useBonus {
			return "Usage: /bonus <link>"
		}
		return "Usage: /get <link> [best|720p|480p|360p|audio]"
	}
	req := pipeline.Request{URL: args[0], UseBonus: useBonus}
	if !useBonus && len(args) > 1 {
		req.Profile = strings.ToLower(args[1])
	}
	return h.submit(ctx, msg, req)
}

func (h *Handler) submit(ctx context.Context, msg *tgbotapi.Message, req pipeline.Request) string {
	req.Chat = messaging.Chat(msg.Chat.ID)
	req.AccountID = msg.From.ID
	req.Username = msg.From.UserName
	if id, ok := services.RequestIDFromContext(ctx); ok {
		req.CorrelationID = id
	}
	if err := h.submitter.Submit(ctx, req); err != nil {
		if errors.Is(err, pipeline.ErrDispatcherClosed) {
			return "The bot is restarting. Please send the link again in a minute."
		}
		return h.internalError(ctx, "submit", err)
	}
	return ""
}

func (h *Handler) grant(ctx context.Context, from *tgbotapi.User, args []string) string {
	if !h.admission.IsAdmin(from.ID) {
		return "This command is for administrators."
	}
	if len(args) < 2 {
		return "Usage: /grant <account id> <free|pro|vip|lifetime> [days]"
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id == 0 {
		return fmt.Sprintf("Invalid account id %q.", args[0])
	}
	if _, _, err := h.ledger.EnsureAccount(ctx, id, ledger.Profile{}); err != nil {
		return h.internalError(ctx, "grant", err)
	}

	var acct ledger.Account
	if strings.EqualFold(args[1], "lifetime") {
		acct, err = h.ledger.GrantLifetime(ctx, id)
	} else {
		plan, parseErr := ledger.ParsePlan(args[1])
		if parseErr != nil {
			return parseErr.Error()
		}
		days := 0
		if len(args) > 2 {
			n, convErr := strconv.Atoi(args[2])
			if convErr != nil || n <= 0 {
				return fmt.Sprintf("Invalid number of days %q.", args[2])
			}
			days = n
		}
		acct, err = h.ledger.GrantSubscription(ctx, id, plan, days)
	}
	if err != nil {
		return h.internalError(ctx, "grant", err)
	}
	h.logger.Info("subscription granted",
		logging.Int64("admin_id", from.ID),
		logging.Int64(logging.FieldAccountID, id),
		logging.String("plan", string(acct.Plan)),
		logging.Bool("lifetime", acct.LifetimeVIP),
	)
	return fmt.Sprintf("Account %d updated.\n%s", id, StatusText(acct, false, h.limit, h.now(), ""))
}

func (h *Handler) referralLink(id int64) string {
	if h.botName == "" {
		return ""
	}
	return fmt.Sprintf("https://t.me/%s?start=%d", h.botName, id)
}

func (h *Handler) internalError(ctx context.Context, op string, err error) string {
	logging.ErrorWithContext(logging.WithContext(ctx, h.logger), "command failed", "command_failed",
		logging.String("command", op),
		logging.Error(err),
	)
	return pipeline.UserMessage(err)
}

func displayName(u *tgbotapi.User) string {
	if name := strings.TrimSpace(u.FirstName); name != "" {
		return name
	}
	if u.UserName != "" {
		return "@" + u.UserName
	}
	return "there"
}
