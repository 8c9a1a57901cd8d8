package ledger

import (
	"context"
	"time"

	"mediabot/internal/logging"
)

// rewardReferrer credits the referrer once a referred account reaches the
// reward threshold and applies any milestone the new referral count hits.
func (l *Ledger) rewardReferrer(ctx context.Context, referrerID, referredID int64) error {
	unlock := l.lock(referrerID)
	defer unlock()

	var reached *Milestone
	account, err := l.repo.Update(ctx, referrerID, func(a *Account) error {
		reached = nil
		a.BonusBalance += l.settings.ReferralRewardBonus
		a.SuccessfulReferrals++
		m, ok := l.milestoneFor(a.SuccessfulReferrals)
		if !ok {
			return nil
		}
		reached = &m
		return l.applyGrant(a, m.Plan, m.Days, m.Lifetime)
	})
	if err != nil {
		return err
	}

	attrs := []logging.Attr{
		logging.Int64(logging.FieldAccountID, referrerID),
		logging.Int64("referred_account", referredID),
		logging.Int("successful_referrals", account.SuccessfulReferrals),
		logging.Int("bonus", account.BonusBalance),
	}
	if reached != nil {
		attrs = append(attrs,
			logging.String("milestone_plan", string(reached.Plan)),
			logging.Bool("milestone_lifetime", reached.Lifetime),
		)
	}
	l.logger.Info("referral rewarded", logging.Args(attrs...)...)
	return nil
}

func (l *Ledger) milestoneFor(referrals int) (Milestone, bool) {
	for _, m := range l.settings.Milestones {
		if m.Referrals == referrals {
			return m, true
		}
	}
	return Milestone{}, false
}

func (l *Ledger) extendFrom(a Account, days int) time.Time {
	base := l.now().UTC()
	if a.SubscriptionExpiry != nil && a.SubscriptionExpiry.After(base) {
		base = *a.SubscriptionExpiry
	}
	return base.Add(time.Duration(days) * Window)
}
