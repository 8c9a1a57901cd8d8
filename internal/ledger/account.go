package ledger

import (
	"fmt"
	"strings"
	"time"
)

// Window is the rolling quota period anchored to each account's LastResetAt.
const Window = 24 * time.Hour

// Plan is the subscription tier tag.
type Plan string

const (
	PlanFree Plan = "free"
	PlanPro  Plan = "pro"
	PlanVIP  Plan = "vip"
)

// ParsePlan accepts the plan names used by admin commands.
func ParsePlan(value string) (Plan, error) {
	switch Plan(strings.ToLower(strings.TrimSpace(value))) {
	case PlanFree:
		return PlanFree, nil
	case PlanPro:
		return PlanPro, nil
	case PlanVIP:
		return PlanVIP, nil
	default:
		return "", fmt.Errorf("unknown plan %q (want free, pro or vip)", value)
	}
}

// Paid reports whether the plan is a paid tier.
func (p Plan) Paid() bool {
	return p == PlanPro || p == PlanVIP
}

// Account is the per-user quota and subscription record. Only Ledger methods
// change counters; other packages treat it as a snapshot.
type Account struct {
	ID       int64
	Username string

	Plan               Plan
	PlanStartedAt      *time.Time
	SubscriptionExpiry *time.Time
	LifetimeVIP        bool

	DailyCount        int
	LastResetAt       time.Time
	LifetimeDownloads int

	BonusBalance int

	ReferredBy          *int64
	SuccessfulReferrals int
	ReferralRewarded    bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Subscription is the plan view of an account.
type Subscription struct {
	Plan      Plan
	StartedAt *time.Time
	Expiry    *time.Time
	Lifetime  bool
}

// Subscription returns the plan fields of the account.
func (a Account) Subscription() Subscription {
	return Subscription{
		Plan:      a.Plan,
		StartedAt: a.PlanStartedAt,
		Expiry:    a.SubscriptionExpiry,
		Lifetime:  a.LifetimeVIP,
	}
}

// Entitled reports whether the account is exempt from quota and watermark.
func (a Account) Entitled(now time.Time) bool {
	if a.LifetimeVIP {
		return true
	}
	return a.SubscriptionExpiry != nil && a.SubscriptionExpiry.After(now)
}

// CountInWindow returns the downloads counted in the current window, or 0 once
// the window has elapsed. It never mutates the account.
func (a Account) CountInWindow(now time.Time) int {
	if windowElapsed(a.LastResetAt, now) {
		return 0
	}
	return a.DailyCount
}

// Remaining returns how many free downloads are left in the current window.
func (a Account) Remaining(limit int, now time.Time) int {
	left := limit - a.CountInWindow(now)
	if left < 0 {
		return 0
	}
	return left
}

// WindowResetsAt returns when the current window ends, or the zero time when
// no window is open.
func (a Account) WindowResetsAt(now time.Time) time.Time {
	if windowElapsed(a.LastResetAt, now) {
		return time.Time{}
	}
	return a.LastResetAt.Add(Window)
}

// lapsed reports whether a paid plan has an expiry in the past.
func (a Account) lapsed(now time.Time) bool {
	if a.LifetimeVIP || a.Plan == PlanFree || a.Plan == "" {
		return false
	}
	return a.SubscriptionExpiry == nil || !a.SubscriptionExpiry.After(now)
}

func (a *Account) demote() {
	a.Plan = PlanFree
	a.PlanStartedAt = nil
	a.SubscriptionExpiry = nil
}

func windowElapsed(lastReset, now time.Time) bool {
	return lastReset.IsZero() || now.Sub(lastReset) > Window
}
