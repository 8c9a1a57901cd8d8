// Package ledger owns per-account quota counters, bonus balances, referral
// rewards, and subscription state.
//
// Account holds the pure read helpers (Entitled, DailyCount, Remaining) that
// admission uses without side effects. Ledger performs every mutation through
// a Repository's atomic Update while holding a per-account stripe lock, so
// concurrent requests from one account serialize without a global lock.
// Subscriptions expire lazily: a lapsed paid plan is demoted to free when the
// account is next read through the Ledger.
package ledger
