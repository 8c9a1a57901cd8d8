package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"mediabot/internal/config"
	"mediabot/internal/ledger"
	"mediabot/internal/services"
	"mediabot/internal/store"
)

func newAccountsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "accounts",
		Aliases: []string{"account"},
		Short:   "Inspect and manage user accounts",
	}
	cmd.AddCommand(newAccountsListCommand(ctx))
	cmd.AddCommand(newAccountsShowCommand(ctx))
	cmd.AddCommand(newAccountsGrantCommand(ctx))
	return cmd
}

func newAccountsListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recently active accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				accounts, err := st.ListAccounts(cmd.Context(), limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(accounts) == 0 {
					fmt.Fprintln(out, "No accounts yet")
					return nil
				}
				now := time.Now()
				rows := make([][]string, 0, len(accounts))
				for _, acct := range accounts {
					rows = append(rows, []string{
						strconv.FormatInt(acct.ID, 10),
						usernameLabel(acct.Username),
						planLabel(acct, now),
						fmt.Sprintf("%d/%d", acct.CountInWindow(now), cfg.Quota.DailyFreeLimit),
						strconv.Itoa(acct.BonusBalance),
						strconv.Itoa(acct.LifetimeDownloads),
						humanize.Time(acct.UpdatedAt),
					})
				}
				fmt.Fprint(out, renderTable(
					[]string{"ID", "Username", "Plan", "Today", "Bonus", "Downloads", "Last Active"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum number of accounts to show")
	return cmd
}

func newAccountsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseAccountID(args[0])
			if err != nil {
				return err
			}
			return ctx.withLedger(func(cfg *config.Config, _ *store.Store, l *ledger.Ledger) error {
				acct, err := l.Account(cmd.Context(), id)
				if errors.Is(err, services.ErrNotFound) {
					return fmt.Errorf("account %d not found", id)
				}
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), renderAccount(acct, cfg, time.Now()))
				return nil
			})
		},
	}
}

func newAccountsGrantCommand(ctx *commandContext) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "grant <id> <free|pro|vip|lifetime>",
		Short: "Change an account's plan",
		Long: "Grant a subscription plan for --days (default subscription.default_days), added on top of\n" +
			"any unexpired subscription. \"free\" clears the plan and \"lifetime\" grants VIP forever.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseAccountID(args[0])
			if err != nil {
				return err
			}
			if days < 0 {
				return fmt.Errorf("--days must be positive")
			}
			return ctx.withLedger(func(cfg *config.Config, _ *store.Store, l *ledger.Ledger) error {
				if _, _, err := l.EnsureAccount(cmd.Context(), id, ledger.Profile{}); err != nil {
					return err
				}
				var acct ledger.Account
				if strings.EqualFold(args[1], "lifetime") {
					acct, err = l.GrantLifetime(cmd.Context(), id)
				} else {
					plan, parseErr := ledger.ParsePlan(args[1])
					if parseErr != nil {
						return parseErr
					}
					acct, err = l.GrantSubscription(cmd.Context(), id, plan, days)
				}
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Account %d is now %s\n", id, planLabel(acct, time.Now()))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "Subscription length in days (default subscription.default_days)")
	return cmd
}

func renderAccount(acct ledger.Account, cfg *config.Config, now time.Time) string {
	expiry := "-"
	if acct.SubscriptionExpiry != nil {
		expiry = fmt.Sprintf("%s (%s)", acct.SubscriptionExpiry.Local().Format("2006-01-02 15:04"), humanize.Time(*acct.SubscriptionExpiry))
	}
	resets := "-"
	if at := acct.WindowResetsAt(now); !at.IsZero() {
		resets = humanize.Time(at)
	}
	referredBy := "-"
	if acct.ReferredBy != nil {
		referredBy = strconv.FormatInt(*acct.ReferredBy, 10)
	}
	rows := [][]string{
		{"ID", strconv.FormatInt(acct.ID, 10)},
		{"Username", usernameLabel(acct.Username)},
		{"Plan", planLabel(acct, now)},
		{"Expires", expiry},
		{"Admin", yesNo(cfg.IsAdmin(acct.ID))},
		{"Today", fmt.Sprintf("%d/%d", acct.CountInWindow(now), cfg.Quota.DailyFreeLimit)},
		{"Window resets", resets},
		{"Bonus", strconv.Itoa(acct.BonusBalance)},
		{"Downloads", strconv.Itoa(acct.LifetimeDownloads)},
		{"Referrals", strconv.Itoa(acct.SuccessfulReferrals)},
		{"Referred by", referredBy},
		{"Created", acct.CreatedAt.Local().Format("2006-01-02 15:04")},
	}
	return renderTable([]string{"Field", "Value"}, rows, nil)
}

func planLabel(acct ledger.Account, now time.Time) string {
	switch {
	case acct.LifetimeVIP:
		return "vip (lifetime)"
	case acct.Entitled(now):
		return string(acct.Plan)
	default:
		return string(ledger.PlanFree)
	}
}

func usernameLabel(name string) string {
	if strings.TrimSpace(name) == "" {
		return "-"
	}
	return "@" + name
}

func parseAccountID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid account id %q", raw)
	}
	return id, nil
}
