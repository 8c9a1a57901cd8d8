package admission

import (
	"net/url"
	"strings"
	"time"

	"mediabot/internal/config"
	"mediabot/internal/ledger"
	"mediabot/internal/services"
)

// Decision is the outcome of an admission check. Err wraps one of the
// services denial markers when Allowed is false. Limit carries the quota or
// duration ceiling that was applied, when one was.
type Decision struct {
	Allowed bool
	Err     error
	Limit   int
}

// Allow is the passing decision.
func Allow() Decision { return Decision{Allowed: true} }

// Deny builds a refusing decision.
func Deny(err error, limit int) Decision {
	return Decision{Err: err, Limit: limit}
}

// Limits are the free-tier ceilings.
type Limits struct {
	DailyFreeLimit         int
	MaxFreeDurationSeconds int
}

// Controller evaluates requests against limits and the blocked sets.
type Controller struct {
	limits   Limits
	domains  map[string]struct{}
	keywords []string
	admins   map[int64]struct{}
}

// New builds a Controller. Domains and keywords are matched case-insensitively.
func New(limits Limits, blockedDomains, blockedKeywords []string, admins []int64) *Controller {
	c := &Controller{
		limits:  limits,
		domains: make(map[string]struct{}, len(blockedDomains)),
		admins:  make(map[int64]struct{}, len(admins)),
	}
	for _, d := range blockedDomains {
		d = strings.Trim(strings.ToLower(strings.TrimSpace(d)), ".")
		if d != "" {
			c.domains[d] = struct{}{}
		}
	}
	for _, k := range blockedKeywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			c.keywords = append(c.keywords, k)
		}
	}
	for _, id := range admins {
		c.admins[id] = struct{}{}
	}
	return c
}

// NewFromConfig builds a Controller from the quota, policy and telegram sections.
func NewFromConfig(cfg *config.Config) *Controller {
	return New(
		Limits{
			DailyFreeLimit:         cfg.Quota.DailyFreeLimit,
			MaxFreeDurationSeconds: cfg.Quota.MaxFreeDurationSeconds,
		},
		cfg.Policy.BlockedDomains,
		cfg.Policy.BlockedKeywords,
		cfg.Telegram.AdminIDs,
	)
}

// IsAdmin reports whether id is an operator account.
func (c *Controller) IsAdmin(id int64) bool {
	_, ok := c.admins[id]
	return ok
}

// Limits returns the configured ceilings.
func (c *Controller) Limits() Limits {
	return c.limits
}

// Admit runs the content filter on rawURL and then the daily quota check.
// Admins and entitled accounts skip the quota.
func (c *Controller) Admit(acct ledger.Account, rawURL string, now time.Time) Decision {
	if d := c.checkURL(rawURL); !d.Allowed {
		return d
	}
	if c.IsAdmin(acct.ID) || acct.Entitled(now) {
		return Allow()
	}
	limit := c.limits.DailyFreeLimit
	if used := acct.CountInWindow(now); used >= limit {
		return Deny(&services.QuotaError{Limit: limit, Used: used}, limit)
	}
	return Allow()
}

// CheckTitle applies the keyword filter to a resolved title.
func (c *Controller) CheckTitle(title string) Decision {
	if kw, ok := c.matchKeyword(title); ok {
		return Deny(services.Wrap(services.ErrBlockedContent, "admission", "title", "matched keyword "+kw, nil), 0)
	}
	return Allow()
}

// CheckDuration denies content longer than the free ceiling for accounts that
// are neither entitled nor admin. An unknown (zero) duration passes.
func (c *Controller) CheckDuration(acct ledger.Account, isAdmin bool, seconds int, now time.Time) Decision {
	limit := c.limits.MaxFreeDurationSeconds
	if isAdmin || acct.Entitled(now) || seconds <= 0 || limit <= 0 {
		return Allow()
	}
	if seconds > limit {
		return Deny(&services.DurationLimitError{Limit: limit, Seconds: seconds}, limit)
	}
	return Allow()
}

func (c *Controller) checkURL(rawURL string) Decision {
	if host := hostOf(rawURL); host != "" {
		for candidate := host; candidate != ""; candidate = parentDomain(candidate) {
			if _, blocked := c.domains[candidate]; blocked {
				return Deny(services.Wrap(services.ErrBlockedContent, "admission", "url", "blocked domain "+candidate, nil), 0)
			}
		}
	}
	if kw, ok := c.matchKeyword(rawURL); ok {
		return Deny(services.Wrap(services.ErrBlockedContent, "admission", "url", "matched keyword "+kw, nil), 0)
	}
	return Allow()
}

func (c *Controller) matchKeyword(text string) (string, bool) {
	if len(c.keywords) == 0 || text == "" {
		return "", false
	}
	lowered := strings.ToLower(text)
	for _, kw := range c.keywords {
		if strings.Contains(lowered, kw) {
			return kw, true
		}
	}
	return "", false
}

func hostOf(rawURL string) string {
	raw := strings.TrimSpace(rawURL)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.Trim(strings.ToLower(parsed.Hostname()), ".")
}

func parentDomain(host string) string {
	idx := strings.IndexByte(host, '.')
	if idx < 0 {
		return ""
	}
	return host[idx+1:]
}
