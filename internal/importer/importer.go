// Package importer books decoded statement entries into the ledger. Every
// import runs inside one store atomic unit: either every entry in the batch
// becomes a ledger transaction with its balance effect applied, or nothing
// is written at all.
package importer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerscope/ledgerscope/internal/domain"
	"github.com/ledgerscope/ledgerscope/internal/store"
)

// Executor books statement entries into the ledger through a store
type Executor struct {
	store store.Store
	clock func() time.Time
	newID func() string
}

// Option customizes an Executor
type Option func(*Executor)

// WithClock overrides the time source, used by tests for deterministic
// creation timestamps
func WithClock(clock func() time.Time) Option {
	return func(e *Executor) { e.clock = clock }
}

// WithIDGenerator overrides the transaction ID generator
func WithIDGenerator(newID func() string) Option {
	return func(e *Executor) { e.newID = newID }
}

// New creates an import executor backed by the given store
func New(s store.Store, opts ...Option) *Executor {
	e := &Executor{
		store: s,
		clock: time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Import books each entry as a new ledger transaction on the given account
// and applies its signed amount to the account balances. The account is
// verified per entry, so a lookup failure anywhere in the batch aborts the
// whole unit and leaves the ledger untouched. Returns the created
// transaction IDs in entry order.
//
// Entries booked here are settled on creation: income entries get status
// "received", expense entries get status "paid".
func (e *Executor) Import(ctx context.Context, userID, accountID string, entries []domain.StatementEntry) ([]string, error) {
	if userID == "" {
		return nil, fmt.Errorf("user ID is required to import entries")
	}
	if accountID == "" {
		return nil, fmt.Errorf("account ID is required to import entries")
	}
	if len(entries) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(entries))

	err := e.store.Atomic(ctx, func(tx store.Tx) error {
		for i := range entries {
			entry := &entries[i]

			if _, err := tx.FindAccount(accountID, userID); err != nil {
				return fmt.Errorf("entry %d (%q): account lookup failed: %w", i+1, entry.Description(), err)
			}

			txn := &domain.LedgerTransaction{
				ID:             e.newID(),
				UserID:         userID,
				AccountID:      accountID,
				Description:    entry.Description(),
				Amount:         entry.Amount(),
				Direction:      entry.Direction(),
				CompetenceDate: entry.Date(),
				Status:         domain.SettledStatus(entry.Direction()),
				CreatedAt:      e.clock().UTC(),
			}
			if err := tx.CreateTransaction(txn); err != nil {
				return fmt.Errorf("entry %d (%q): %w", i+1, entry.Description(), err)
			}

			if err := tx.AdjustBalance(accountID, entry.SignedAmount()); err != nil {
				return fmt.Errorf("entry %d (%q): %w", i+1, entry.Description(), err)
			}

			ids = append(ids, txn.ID)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("import of %d entries aborted, no changes were written: %w", len(entries), err)
	}

	return ids, nil
}
