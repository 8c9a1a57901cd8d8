package ledger

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"strings"
	"sync"
	"time"

	"mediabot/internal/config"
	"mediabot/internal/logging"
	"mediabot/internal/services"
)

const stripeCount = 64

// Milestone grants a subscription when an account reaches a referral count.
type Milestone struct {
	Referrals int
	Plan      Plan
	Days      int
	Lifetime  bool
}

// Settings holds the ledger rules.
type Settings struct {
	NewAccountBonus         int
	ReferralRewardAt        int
	ReferralRewardBonus     int
	Milestones              []Milestone
	DefaultSubscriptionDays int
}

// SettingsFromConfig maps the quota, referral and subscription sections.
func SettingsFromConfig(cfg *config.Config) Settings {
	settings := Settings{
		NewAccountBonus:         cfg.Quota.NewAccountBonus,
		ReferralRewardAt:        cfg.Referral.RewardAtDownloads,
		ReferralRewardBonus:     cfg.Referral.RewardBonus,
		DefaultSubscriptionDays: cfg.Subscription.DefaultDays,
	}
	for _, m := range cfg.Referral.Milestones {
		settings.Milestones = append(settings.Milestones, Milestone{
			Referrals: m.Referrals,
			Plan:      Plan(strings.ToLower(strings.TrimSpace(m.Plan))),
			Days:      m.Days,
			Lifetime:  m.Lifetime,
		})
	}
	return settings
}

// Profile carries the identity details supplied when an account is first seen.
type Profile struct {
	Username   string
	ReferrerID int64
}

// Option customizes a Ledger.
type Option func(*Ledger)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// Ledger owns every account counter mutation. Mutations of one account are
// serialized by a striped mutex keyed on the account id.
type Ledger struct {
	repo     Repository
	settings Settings
	now      func() time.Time
	logger   *slog.Logger
	stripes  [stripeCount]sync.Mutex
}

// New constructs a Ledger over repo.
func New(repo Repository, settings Settings, opts ...Option) *Ledger {
	if settings.DefaultSubscriptionDays <= 0 {
		settings.DefaultSubscriptionDays = 30
	}
	l := &Ledger{
		repo:     repo,
		settings: settings,
		now:      time.Now,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = logging.NewComponentLogger(l.logger, "ledger")
	return l
}

func (l *Ledger) lock(id int64) func() {
	h := fnv.New32a()
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(uint64(id) >> (8 * i))
	}
	_, _ = h.Write(buf[:])
	mu := &l.stripes[h.Sum32()%stripeCount]
	mu.Lock()
	return mu.Unlock
}

// EnsureAccount returns the account for id, creating it on first contact.
// The boolean reports whether the account was created by this call.
func (l *Ledger) EnsureAccount(ctx context.Context, id int64, profile Profile) (Account, bool, error) {
	unlock := l.lock(id)
	defer unlock()

	existing, err := l.repo.Get(ctx, id)
	if err == nil {
		username := strings.TrimSpace(profile.Username)
		if username == "" || username == existing.Username {
			return existing, false, nil
		}
		updated, err := l.repo.Update(ctx, id, func(a *Account) error {
			a.Username = username
			return nil
		})
		return updated, false, err
	}
	if !errors.Is(err, services.ErrNotFound) {
		return Account{}, false, err
	}

	now := l.now().UTC()
	account := Account{
		ID:           id,
		Username:     strings.TrimSpace(profile.Username),
		Plan:         PlanFree,
		BonusBalance: l.settings.NewAccountBonus,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if ref := profile.ReferrerID; ref != 0 && ref != id {
		if _, err := l.repo.Get(ctx, ref); err == nil {
			account.ReferredBy = &ref
		} else if !errors.Is(err, services.ErrNotFound) {
			return Account{}, false, err
		}
	}
	if err := l.repo.Create(ctx, account); err != nil {
		if errors.Is(err, ErrAccountExists) {
			existing, getErr := l.repo.Get(ctx, id)
			return existing, false, getErr
		}
		return Account{}, false, err
	}
	l.logger.Info("account created",
		logging.Int64(logging.FieldAccountID, id),
		logging.Int("bonus", account.BonusBalance),
		logging.Bool("referred", account.ReferredBy != nil),
	)
	return account, true, nil
}

// Account returns a snapshot of the account with lazy expiry applied: a paid
// plan whose expiry has passed is persisted as free before returning.
func (l *Ledger) Account(ctx context.Context, id int64) (Account, error) {
	account, err := l.repo.Get(ctx, id)
	if err != nil {
		return Account{}, err
	}
	now := l.now()
	if !account.lapsed(now) {
		return account, nil
	}

	unlock := l.lock(id)
	defer unlock()
	demoted, err := l.repo.Update(ctx, id, func(a *Account) error {
		if a.lapsed(now) {
			a.demote()
		}
		return nil
	})
	if err != nil {
		return Account{}, err
	}
	l.logger.Info("subscription lapsed",
		logging.Int64(logging.FieldAccountID, id),
		logging.String("previous_plan", string(account.Plan)),
	)
	return demoted, nil
}

// IsEntitled reports whether the account is exempt from quota and watermark.
func (l *Ledger) IsEntitled(ctx context.Context, id int64) (bool, error) {
	account, err := l.Account(ctx, id)
	if err != nil {
		return false, err
	}
	return account.Entitled(l.now()), nil
}

// DailyCount returns the downloads in the account's current window.
func (l *Ledger) DailyCount(ctx context.Context, id int64) (int, error) {
	account, err := l.repo.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	return account.CountInWindow(l.now()), nil
}

// RecordDownload counts one successful delivery. When the rolling window has
// elapsed the daily counter restarts at one.
func (l *Ledger) RecordDownload(ctx context.Context, id int64) (Account, error) {
	now := l.now().UTC()
	var rewardReferrer int64

	unlock := l.lock(id)
	account, err := l.repo.Update(ctx, id, func(a *Account) error {
		rewardReferrer = 0
		if a.lapsed(now) {
			a.demote()
		}
		if windowElapsed(a.LastResetAt, now) {
			a.DailyCount = 1
			a.LastResetAt = now
		} else {
			a.DailyCount++
		}
		a.LifetimeDownloads++
		if a.ReferredBy != nil && !a.ReferralRewarded && l.settings.ReferralRewardAt > 0 &&
			a.LifetimeDownloads >= l.settings.ReferralRewardAt {
			a.ReferralRewarded = true
			rewardReferrer = *a.ReferredBy
		}
		return nil
	})
	unlock()
	if err != nil {
		return Account{}, err
	}

	if rewardReferrer != 0 {
		if err := l.rewardReferrer(ctx, rewardReferrer, id); err != nil {
			logging.WarnWithContext(l.logger, "referral reward failed", "referral_reward_failed",
				logging.Int64(logging.FieldAccountID, rewardReferrer),
				logging.Int64("referred_account", id),
				logging.Error(err),
				logging.String(logging.FieldImpact, "referrer did not receive bonus"),
			)
		}
	}
	return account, nil
}

// ConsumeBonus spends one bonus download.
func (l *Ledger) ConsumeBonus(ctx context.Context, id int64) error {
	unlock := l.lock(id)
	defer unlock()
	_, err := l.repo.Update(ctx, id, func(a *Account) error {
		if a.BonusBalance <= 0 {
			return services.Wrap(services.ErrInsufficientBonus, "ledger", "consume bonus", "no bonus downloads left", nil)
		}
		a.BonusBalance--
		return nil
	})
	return err
}

// RefundBonus returns a bonus download consumed for a job that failed.
func (l *Ledger) RefundBonus(ctx context.Context, id int64) error {
	unlock := l.lock(id)
	defer unlock()
	_, err := l.repo.Update(ctx, id, func(a *Account) error {
		a.BonusBalance++
		return nil
	})
	return err
}

// GrantSubscription sets the account plan. A paid plan runs for days (the
// default subscription length when days is not positive) counted from the
// later of now and the current unexpired expiry, so back-to-back grants add
// up. PlanFree clears the subscription.
func (l *Ledger) GrantSubscription(ctx context.Context, id int64, plan Plan, days int) (Account, error) {
	unlock := l.lock(id)
	defer unlock()
	return l.repo.Update(ctx, id, func(a *Account) error {
		return l.applyGrant(a, plan, days, false)
	})
}

// GrantLifetime marks the account as lifetime VIP.
func (l *Ledger) GrantLifetime(ctx context.Context, id int64) (Account, error) {
	unlock := l.lock(id)
	defer unlock()
	return l.repo.Update(ctx, id, func(a *Account) error {
		return l.applyGrant(a, PlanVIP, 0, true)
	})
}

func (l *Ledger) applyGrant(a *Account, plan Plan, days int, lifetime bool) error {
	now := l.now().UTC()
	switch {
	case plan == PlanFree:
		a.demote()
		a.LifetimeVIP = false
		return nil
	case !plan.Paid():
		return services.Wrap(services.ErrValidation, "ledger", "grant", fmt.Sprintf("unknown plan %q", plan), nil)
	}

	if lifetime {
		a.LifetimeVIP = true
	}
	if a.Plan != plan || a.PlanStartedAt == nil || a.lapsed(now) {
		a.PlanStartedAt = &now
	}
	a.Plan = plan

	switch {
	case lifetime:
		a.SubscriptionExpiry = nil
	default:
		if days <= 0 {
			days = l.settings.DefaultSubscriptionDays
		}
		end := l.extendFrom(*a, days)
		a.SubscriptionExpiry = &end
	}
	return nil
}
