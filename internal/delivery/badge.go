package delivery

import (
	"time"

	"mediabot/internal/ledger"
)

// Badge is the plan label shown in captions.
type Badge string

const (
	BadgeAdmin Badge = "ADMIN"
	BadgeVIP   Badge = "VIP"
	BadgePro   Badge = "PRO"
	BadgeFree  Badge = "FREE"
)

// BadgeFor picks the label for acct. Lapsed plans show as FREE.
func BadgeFor(acct ledger.Account, admin bool, now time.Time) Badge {
	switch {
	case admin:
		return BadgeAdmin
	case acct.LifetimeVIP:
		return BadgeVIP
	case !acct.Entitled(now):
		return BadgeFree
	case acct.Plan == ledger.PlanVIP:
		return BadgeVIP
	case acct.Plan == ledger.PlanPro:
		return BadgePro
	default:
		return BadgeFree
	}
}
