package admission_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediabot/internal/admission"
	"mediabot/internal/ledger"
	"mediabot/internal/services"
	"mediabot/internal/testsupport"
)

var now = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func newController() *admission.Controller {
	return admission.New(
		admission.Limits{DailyFreeLimit: 5, MaxFreeDurationSeconds: 300},
		[]string{"bad.example"},
		[]string{"forbidden"},
		[]int64{1},
	)
}

func freeAccount(id int64, used int) ledger.Account {
	return ledger.Account{ID: id, Plan: ledger.PlanFree, DailyCount: used, LastResetAt: now.Add(-time.Hour)}
}

func TestAdmitQuota(t *testing.T) {
	c := newController()

	d := c.Admit(freeAccount(10, 4), "https://video.example/watch?v=1", now)
	assert.True(t, d.Allowed)

	d = c.Admit(freeAccount(10, 5), "https://video.example/watch?v=1", now)
	require.False(t, d.Allowed)
	assert.ErrorIs(t, d.Err, services.ErrQuotaExceeded)
	assert.Equal(t, 5, d.Limit)
	var qe *services.QuotaError
	require.ErrorAs(t, d.Err, &qe)
	assert.Equal(t, 5, qe.Used)
}

func TestAdmitAfterWindowElapsed(t *testing.T) {
	c := newController()
	acct := ledger.Account{ID: 10, DailyCount: 5, LastResetAt: now.Add(-25 * time.Hour)}
	assert.True(t, c.Admit(acct, "https://video.example/a", now).Allowed)
}

func TestAdmitSkipsQuotaForAdminsAndEntitled(t *testing.T) {
	c := newController()
	assert.True(t, c.Admit(freeAccount(1, 100), "https://video.example/a", now).Allowed)

	expiry := now.Add(time.Hour)
	paid := freeAccount(20, 100)
	paid.Plan = ledger.PlanPro
	paid.SubscriptionExpiry = &expiry
	assert.True(t, c.Admit(paid, "https://video.example/a", now).Allowed)

	lifetime := freeAccount(21, 100)
	lifetime.LifetimeVIP = true
	assert.True(t, c.Admit(lifetime, "https://video.example/a", now).Allowed)
}

func TestAdmitContentFilterAppliesToEveryone(t *testing.T) {
	c := newController()
	for _, raw := range []string{
		"https://bad.example/v/1",
		"https://cdn.BAD.example/v/1",
		"bad.example/v/1",
		"https://ok.example/forbidden-clip",
		"https://ok.example/FORBIDDEN",
	} {
		d := c.Admit(freeAccount(1, 0), raw, now)
		assert.False(t, d.Allowed, raw)
		assert.ErrorIs(t, d.Err, services.ErrBlockedContent, raw)
	}
	assert.True(t, c.Admit(freeAccount(1, 0), "https://notbad.example/v", now).Allowed)
}

func TestCheckTitle(t *testing.T) {
	c := newController()
	assert.True(t, c.CheckTitle("Holiday clip").Allowed)
	d := c.CheckTitle("A Forbidden Thing")
	assert.False(t, d.Allowed)
	assert.ErrorIs(t, d.Err, services.ErrBlockedContent)
}

func TestCheckDuration(t *testing.T) {
	c := newController()
	free := freeAccount(10, 0)

	assert.True(t, c.CheckDuration(free, false, 300, now).Allowed)
	assert.True(t, c.CheckDuration(free, false, 0, now).Allowed, "unknown duration passes")

	d := c.CheckDuration(free, false, 301, now)
	require.False(t, d.Allowed)
	assert.ErrorIs(t, d.Err, services.ErrDurationExceeded)
	assert.Equal(t, 300, d.Limit)
	var de *services.DurationLimitError
	require.ErrorAs(t, d.Err, &de)
	assert.Equal(t, 300, de.Limit)

	assert.True(t, c.CheckDuration(free, true, 10000, now).Allowed)

	expiry := now.Add(time.Hour)
	free.SubscriptionExpiry = &expiry
	free.Plan = ledger.PlanVIP
	assert.True(t, c.CheckDuration(free, false, 10000, now).Allowed)
}

func TestNewFromConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithAdmins(42))
	cfg.Policy.BlockedDomains = []string{"blocked.test"}
	c := admission.NewFromConfig(cfg)

	assert.True(t, c.IsAdmin(42))
	assert.False(t, c.IsAdmin(43))
	assert.Equal(t, cfg.Quota.DailyFreeLimit, c.Limits().DailyFreeLimit)
	assert.False(t, c.Admit(freeAccount(43, 0), "https://blocked.test/x", now).Allowed)
}
