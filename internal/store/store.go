// Package store defines the persistence collaborator consumed by the
// matcher and the import executor. The engine never owns ledger or account
// rows: it reads user-scoped snapshots for matching and issues writes
// through the atomic unit, which owns transactional integrity.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerscope/ledgerscope/internal/domain"
)

// ErrAccountNotFound reports an account that does not exist or is not owned
// by the requesting user. The two cases are deliberately indistinguishable.
var ErrAccountNotFound = errors.New("account not found")

// Store is the persistence collaborator interface
type Store interface {
	// FindAccount returns the account only when it exists and is owned by
	// the user; otherwise ErrAccountNotFound.
	FindAccount(ctx context.Context, accountID, userID string) (*domain.Account, error)

	// ListTransactions returns the user's ledger transactions with a
	// competence date inside [from, to], optionally scoped to one account
	// (empty accountID means all accounts). The comparison window is the
	// caller's responsibility.
	ListTransactions(ctx context.Context, userID, accountID string, from, to time.Time) ([]domain.LedgerTransaction, error)

	// Atomic runs fn inside one atomic unit: every write issued through the
	// Tx is applied in full when fn returns nil and discarded in full when
	// fn returns an error.
	Atomic(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the surface available inside an atomic unit
type Tx interface {
	// FindAccount is the in-unit counterpart of Store.FindAccount, observing
	// the unit's own staged state where the backend supports it
	FindAccount(accountID, userID string) (*domain.Account, error)

	// CreateTransaction persists a new ledger transaction
	CreateTransaction(txn *domain.LedgerTransaction) error

	// AdjustBalance applies a signed delta to both the current and
	// available balances of the account. Fails with ErrAccountNotFound when
	// the account does not exist.
	AdjustBalance(accountID string, delta decimal.Decimal) error
}
