// Package memstore is an in-memory store implementation used by tests and
// by dry runs in the CLI. Atomicity is implemented by staging every write on
// a copy of the state and swapping the copy in only when the whole unit
// succeeds.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerscope/ledgerscope/internal/domain"
	"github.com/ledgerscope/ledgerscope/internal/store"
)

// Store holds accounts and ledger transactions in memory.
// Safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	accounts map[string]domain.Account
	txns     map[string]domain.LedgerTransaction
}

// New creates an empty in-memory store
func New() *Store {
	return &Store{
		accounts: make(map[string]domain.Account),
		txns:     make(map[string]domain.LedgerTransaction),
	}
}

// PutAccount adds or replaces an account
func (s *Store) PutAccount(acc domain.Account) error {
	if err := acc.Validate(); err != nil {
		return fmt.Errorf("invalid account: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[acc.ID] = acc
	return nil
}

// PutTransaction adds or replaces a ledger transaction, bypassing the
// atomic unit. Intended for seeding test fixtures.
func (s *Store) PutTransaction(txn domain.LedgerTransaction) error {
	if err := txn.Validate(); err != nil {
		return fmt.Errorf("invalid transaction: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txns[txn.ID] = txn
	return nil
}

// FindAccount implements store.Store
func (s *Store) FindAccount(ctx context.Context, accountID, userID string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.accounts[accountID]
	if !ok || acc.UserID != userID {
		return nil, fmt.Errorf("%w: %q for user %q", store.ErrAccountNotFound, accountID, userID)
	}
	copied := acc
	return &copied, nil
}

// ListTransactions implements store.Store
func (s *Store) ListTransactions(ctx context.Context, userID, accountID string, from, to time.Time) ([]domain.LedgerTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.LedgerTransaction
	for _, txn := range s.txns {
		if txn.UserID != userID {
			continue
		}
		if accountID != "" && txn.AccountID != accountID {
			continue
		}
		if txn.CompetenceDate.Before(from) || txn.CompetenceDate.After(to) {
			continue
		}
		out = append(out, txn)
	}

	// Deterministic order for stable reconciliation output
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CompetenceDate.Equal(out[j].CompetenceDate) {
			return out[i].CompetenceDate.Before(out[j].CompetenceDate)
		}
		return out[i].ID < out[j].ID
	})

	return out, nil
}

// Atomic implements store.Store
func (s *Store) Atomic(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Stage all writes on copies; commit by swapping the copies in
	tx := &memTx{
		accounts: make(map[string]domain.Account, len(s.accounts)),
		txns:     make(map[string]domain.LedgerTransaction, len(s.txns)),
	}
	for id, acc := range s.accounts {
		tx.accounts[id] = acc
	}
	for id, txn := range s.txns {
		tx.txns[id] = txn
	}

	if err := fn(tx); err != nil {
		return err
	}

	s.accounts = tx.accounts
	s.txns = tx.txns
	return nil
}

// memTx stages writes against copies of the store state
type memTx struct {
	accounts map[string]domain.Account
	txns     map[string]domain.LedgerTransaction
}

// FindAccount implements store.Tx against the staged state
func (t *memTx) FindAccount(accountID, userID string) (*domain.Account, error) {
	acc, ok := t.accounts[accountID]
	if !ok || acc.UserID != userID {
		return nil, fmt.Errorf("%w: %q for user %q", store.ErrAccountNotFound, accountID, userID)
	}
	copied := acc
	return &copied, nil
}

// CreateTransaction implements store.Tx
func (t *memTx) CreateTransaction(txn *domain.LedgerTransaction) error {
	if err := txn.Validate(); err != nil {
		return fmt.Errorf("invalid transaction: %w", err)
	}
	if _, exists := t.txns[txn.ID]; exists {
		return fmt.Errorf("transaction %s already exists", txn.ID)
	}
	t.txns[txn.ID] = *txn
	return nil
}

// AdjustBalance implements store.Tx
func (t *memTx) AdjustBalance(accountID string, delta decimal.Decimal) error {
	acc, ok := t.accounts[accountID]
	if !ok {
		return fmt.Errorf("%w: %q", store.ErrAccountNotFound, accountID)
	}
	acc.CurrentBalance = acc.CurrentBalance.Add(delta)
	acc.AvailableBalance = acc.AvailableBalance.Add(delta)
	t.accounts[accountID] = acc
	return nil
}
