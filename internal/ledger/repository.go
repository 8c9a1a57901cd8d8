package ledger

import (
	"context"
	"errors"
)

// ErrAccountExists is returned by Repository.Create for a duplicate id.
var ErrAccountExists = errors.New("account already exists")

// Repository persists accounts. Get returns an error wrapping
// services.ErrNotFound for unknown ids. Update must apply mutate and persist
// the result atomically with respect to other Updates of the same id; a
// mutate error aborts the update and is returned unchanged.
type Repository interface {
	Get(ctx context.Context, id int64) (Account, error)
	Create(ctx context.Context, account Account) error
	Update(ctx context.Context, id int64, mutate func(*Account) error) (Account, error)
}
