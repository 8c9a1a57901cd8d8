package testsupport

import (
	"context"
	"testing"

	"mediabot/internal/config"
	"mediabot/internal/ledger"
	"mediabot/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// MustCreateAccount inserts an account snapshot directly, bypassing the ledger.
func MustCreateAccount(t testing.TB, st *store.Store, account ledger.Account) ledger.Account {
	t.Helper()

	if account.Plan == "" {
		account.Plan = ledger.PlanFree
	}
	if err := st.Create(context.Background(), account); err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	created, err := st.Get(context.Background(), account.ID)
	if err != nil {
		t.Fatalf("store.Get: %v", err)
	}
	return created
}
