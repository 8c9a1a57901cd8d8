package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"mediabot/internal/ledger"
	"mediabot/internal/services"
)

const accountColumns = "id, username, plan, plan_started_at, subscription_expiry, lifetime_vip, daily_count, last_reset_at, lifetime_downloads, bonus_balance, referred_by, successful_referrals, referral_rewarded, created_at, updated_at"

var _ ledger.Repository = (*Store)(nil)

// Get fetches an account by id.
func (s *Store) Get(ctx context.Context, id int64) (ledger.Account, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	account, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Account{}, accountNotFound(id)
	}
	if err != nil {
		return ledger.Account{}, fmt.Errorf("get account: %w", err)
	}
	return account, nil
}

// Create inserts a new account.
func (s *Store) Create(ctx context.Context, account ledger.Account) error {
	now := time.Now().UTC()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	if account.UpdatedAt.IsZero() {
		account.UpdatedAt = account.CreatedAt
	}
	if account.Plan == "" {
		account.Plan = ledger.PlanFree
	}
	_, err := s.execWithRetry(ctx,
		`INSERT INTO accounts (`+accountColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		account.ID,
		nullableString(account.Username),
		string(account.Plan),
		nullableTime(account.PlanStartedAt),
		nullableTime(account.SubscriptionExpiry),
		boolToInt(account.LifetimeVIP),
		account.DailyCount,
		nullableTime(&account.LastResetAt),
		account.LifetimeDownloads,
		account.BonusBalance,
		nullableInt64(account.ReferredBy),
		account.SuccessfulReferrals,
		boolToInt(account.ReferralRewarded),
		formatTime(account.CreatedAt),
		formatTime(account.UpdatedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") || strings.Contains(err.Error(), "PRIMARY KEY") {
			return fmt.Errorf("create account %d: %w", account.ID, ledger.ErrAccountExists)
		}
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

// Update applies mutate to the stored account inside one transaction.
func (s *Store) Update(ctx context.Context, id int64, mutate func(*ledger.Account) error) (ledger.Account, error) {
	var result ledger.Account
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
		account, err := scanAccount(row)
		if errors.Is(err, sql.ErrNoRows) {
			return accountNotFound(id)
		}
		if err != nil {
			return fmt.Errorf("load account: %w", err)
		}
		if err := mutate(&account); err != nil {
			return err
		}
		if account.BonusBalance < 0 {
			return services.Wrap(services.ErrValidation, "store", "update account", "bonus balance below zero", nil)
		}
		account.ID = id
		account.UpdatedAt = time.Now().UTC()
		if _, err := tx.ExecContext(ctx,
			`UPDATE accounts
             SET username = ?, plan = ?, plan_started_at = ?, subscription_expiry = ?, lifetime_vip = ?,
                 daily_count = ?, last_reset_at = ?, lifetime_downloads = ?, bonus_balance = ?,
                 referred_by = ?, successful_referrals = ?, referral_rewarded = ?, updated_at = ?
             WHERE id = ?`,
			nullableString(account.Username),
			string(account.Plan),
			nullableTime(account.PlanStartedAt),
			nullableTime(account.SubscriptionExpiry),
			boolToInt(account.LifetimeVIP),
			account.DailyCount,
			nullableTime(&account.LastResetAt),
			account.LifetimeDownloads,
			account.BonusBalance,
			nullableInt64(account.ReferredBy),
			account.SuccessfulReferrals,
			boolToInt(account.ReferralRewarded),
			formatTime(account.UpdatedAt),
			id,
		); err != nil {
			return fmt.Errorf("update account: %w", err)
		}
		result = account
		return nil
	})
	if err != nil {
		return ledger.Account{}, err
	}
	return result, nil
}

// ListAccounts returns accounts ordered by most recent activity.
func (s *Store) ListAccounts(ctx context.Context, limit int) ([]ledger.Account, error) {
	ctx = ensureContext(ctx)
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts ORDER BY updated_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []ledger.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

// AccountStats summarizes the accounts table.
type AccountStats struct {
	Total    int
	Paid     int
	Lifetime int
}

// AccountStats counts accounts by plan. Paid counts unexpired subscriptions.
func (s *Store) AccountStats(ctx context.Context, now time.Time) (AccountStats, error) {
	ctx = ensureContext(ctx)
	var stats AccountStats
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1),
                COALESCE(SUM(CASE WHEN plan != 'free' AND subscription_expiry > ? THEN 1 ELSE 0 END), 0),
                COALESCE(SUM(lifetime_vip), 0)
         FROM accounts`,
		formatTime(now),
	).Scan(&stats.Total, &stats.Paid, &stats.Lifetime)
	if err != nil {
		return AccountStats{}, fmt.Errorf("account stats: %w", err)
	}
	return stats, nil
}

func accountNotFound(id int64) error {
	return services.Wrap(services.ErrNotFound, "store", "get account", fmt.Sprintf("account %d", id), nil)
}

func scanAccount(scanner interface{ Scan(dest ...any) error }) (ledger.Account, error) {
	var (
		id                  int64
		username            sql.NullString
		plan                string
		planStartedRaw      sql.NullString
		expiryRaw           sql.NullString
		lifetimeVIP         int
		dailyCount          int
		lastResetRaw        sql.NullString
		lifetimeDownloads   int
		bonusBalance        int
		referredBy          sql.NullInt64
		successfulReferrals int
		referralRewarded    int
		createdRaw          string
		updatedRaw          string
	)
	if err := scanner.Scan(
		&id,
		&username,
		&plan,
		&planStartedRaw,
		&expiryRaw,
		&lifetimeVIP,
		&dailyCount,
		&lastResetRaw,
		&lifetimeDownloads,
		&bonusBalance,
		&referredBy,
		&successfulReferrals,
		&referralRewarded,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return ledger.Account{}, err
	}

	account := ledger.Account{
		ID:                  id,
		Username:            username.String,
		Plan:                ledger.Plan(plan),
		PlanStartedAt:       parseOptionalTime(planStartedRaw.String),
		SubscriptionExpiry:  parseOptionalTime(expiryRaw.String),
		LifetimeVIP:         lifetimeVIP != 0,
		DailyCount:          dailyCount,
		LifetimeDownloads:   lifetimeDownloads,
		BonusBalance:        bonusBalance,
		SuccessfulReferrals: successfulReferrals,
		ReferralRewarded:    referralRewarded != 0,
	}
	if lastReset, err := parseTimeString(lastResetRaw.String); err == nil {
		account.LastResetAt = lastReset
	}
	if referredBy.Valid {
		ref := referredBy.Int64
		account.ReferredBy = &ref
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		account.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		account.UpdatedAt = updated
	}
	return account, nil
}
