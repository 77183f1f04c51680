// Package sqlitestore is a SQLite-backed store implementation. Amounts and
// balances are stored as decimal strings so no precision is lost crossing
// the database boundary; atomicity maps directly onto database/sql
// transactions.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/ledgerscope/ledgerscope/internal/domain"
	"github.com/ledgerscope/ledgerscope/internal/store"
)

const dateLayout = "2006-01-02"

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id                TEXT PRIMARY KEY,
	user_id           TEXT NOT NULL,
	name              TEXT NOT NULL DEFAULT '',
	current_balance   TEXT NOT NULL,
	available_balance TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS transactions (
	id              TEXT PRIMARY KEY,
	user_id         TEXT NOT NULL,
	account_id      TEXT NOT NULL,
	description     TEXT NOT NULL,
	amount          TEXT NOT NULL,
	direction       TEXT NOT NULL,
	competence_date TEXT NOT NULL,
	status          TEXT NOT NULL,
	created_at      TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_transactions_user_date
	ON transactions(user_id, competence_date);
`

// Store wraps a SQLite database with ledger operations
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) a SQLite database at path and ensures the
// schema exists. Use ":memory:" for an ephemeral database.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %q: %w", path, err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema in %q: %w", path, err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// PutAccount inserts or replaces an account
func (s *Store) PutAccount(ctx context.Context, acc domain.Account) error {
	if err := acc.Validate(); err != nil {
		return fmt.Errorf("invalid account: %w", err)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO accounts (id, user_id, name, current_balance, available_balance)
		 VALUES (?, ?, ?, ?, ?)`,
		acc.ID, acc.UserID, acc.Name, acc.CurrentBalance.String(), acc.AvailableBalance.String())
	if err != nil {
		return fmt.Errorf("failed to store account %s: %w", acc.ID, err)
	}
	return nil
}

// FindAccount implements store.Store
func (s *Store) FindAccount(ctx context.Context, accountID, userID string) (*domain.Account, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, current_balance, available_balance
		 FROM accounts WHERE id = ? AND user_id = ?`,
		accountID, userID)

	acc, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q for user %q", store.ErrAccountNotFound, accountID, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read account %s: %w", accountID, err)
	}
	return acc, nil
}

// ListTransactions implements store.Store
func (s *Store) ListTransactions(ctx context.Context, userID, accountID string, from, to time.Time) ([]domain.LedgerTransaction, error) {
	query := `SELECT id, user_id, account_id, description, amount, direction, competence_date, status, created_at
		FROM transactions
		WHERE user_id = ? AND competence_date >= ? AND competence_date <= ?`
	args := []any{userID, from.Format(dateLayout), to.Format(dateLayout)}
	if accountID != "" {
		query += ` AND account_id = ?`
		args = append(args, accountID)
	}
	query += ` ORDER BY competence_date, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions for user %s: %w", userID, err)
	}
	defer rows.Close()

	var out []domain.LedgerTransaction
	for rows.Next() {
		var (
			txn            domain.LedgerTransaction
			amountStr      string
			directionStr   string
			competenceDate string
			createdAt      string
		)
		if err := rows.Scan(&txn.ID, &txn.UserID, &txn.AccountID, &txn.Description,
			&amountStr, &directionStr, &competenceDate, &txn.Status, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction row: %w", err)
		}

		txn.Amount, err = decimal.NewFromString(amountStr)
		if err != nil {
			return nil, fmt.Errorf("transaction %s: stored amount %q is not a decimal: %w", txn.ID, amountStr, err)
		}
		txn.Direction = domain.Direction(directionStr)
		txn.CompetenceDate, err = time.ParseInLocation(dateLayout, competenceDate, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("transaction %s: stored date %q is not a date: %w", txn.ID, competenceDate, err)
		}
		if createdAt != "" {
			txn.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
			if err != nil {
				return nil, fmt.Errorf("transaction %s: stored creation time %q is not RFC 3339: %w", txn.ID, createdAt, err)
			}
		}

		out = append(out, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions for user %s: %w", userID, err)
	}

	return out, nil
}

// Atomic implements store.Store using a database transaction
func (s *Store) Atomic(ctx context.Context, fn func(tx store.Tx) error) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&sqlTx{ctx: ctx, tx: dbTx}); err != nil {
		if rbErr := dbTx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed (%v) after: %w", rbErr, err)
		}
		return err
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// sqlTx is the write surface inside one database transaction
type sqlTx struct {
	ctx context.Context
	tx  *sql.Tx
}

// FindAccount implements store.Tx inside the transaction
func (t *sqlTx) FindAccount(accountID, userID string) (*domain.Account, error) {
	row := t.tx.QueryRowContext(t.ctx,
		`SELECT id, user_id, name, current_balance, available_balance
		 FROM accounts WHERE id = ? AND user_id = ?`,
		accountID, userID)

	acc, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q for user %q", store.ErrAccountNotFound, accountID, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read account %s: %w", accountID, err)
	}
	return acc, nil
}

// CreateTransaction implements store.Tx
func (t *sqlTx) CreateTransaction(txn *domain.LedgerTransaction) error {
	if err := txn.Validate(); err != nil {
		return fmt.Errorf("invalid transaction: %w", err)
	}
	createdAt := ""
	if !txn.CreatedAt.IsZero() {
		createdAt = txn.CreatedAt.UTC().Format(time.RFC3339)
	}
	_, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO transactions (id, user_id, account_id, description, amount, direction, competence_date, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		txn.ID, txn.UserID, txn.AccountID, txn.Description,
		txn.Amount.String(), string(txn.Direction),
		txn.CompetenceDate.Format(dateLayout), txn.Status, createdAt)
	if err != nil {
		return fmt.Errorf("failed to create transaction %s: %w", txn.ID, err)
	}
	return nil
}

// AdjustBalance implements store.Tx
func (t *sqlTx) AdjustBalance(accountID string, delta decimal.Decimal) error {
	row := t.tx.QueryRowContext(t.ctx,
		`SELECT current_balance, available_balance FROM accounts WHERE id = ?`, accountID)

	var currentStr, availableStr string
	if err := row.Scan(&currentStr, &availableStr); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %q", store.ErrAccountNotFound, accountID)
		}
		return fmt.Errorf("failed to read balances for account %s: %w", accountID, err)
	}

	current, err := decimal.NewFromString(currentStr)
	if err != nil {
		return fmt.Errorf("account %s: stored current balance %q is not a decimal: %w", accountID, currentStr, err)
	}
	available, err := decimal.NewFromString(availableStr)
	if err != nil {
		return fmt.Errorf("account %s: stored available balance %q is not a decimal: %w", accountID, availableStr, err)
	}

	_, err = t.tx.ExecContext(t.ctx,
		`UPDATE accounts SET current_balance = ?, available_balance = ? WHERE id = ?`,
		current.Add(delta).String(), available.Add(delta).String(), accountID)
	if err != nil {
		return fmt.Errorf("failed to update balances for account %s: %w", accountID, err)
	}
	return nil
}

// scanAccount reads one account row
func scanAccount(row *sql.Row) (*domain.Account, error) {
	var (
		acc          domain.Account
		currentStr   string
		availableStr string
	)
	if err := row.Scan(&acc.ID, &acc.UserID, &acc.Name, &currentStr, &availableStr); err != nil {
		return nil, err
	}

	var err error
	acc.CurrentBalance, err = decimal.NewFromString(currentStr)
	if err != nil {
		return nil, fmt.Errorf("stored current balance %q is not a decimal: %w", currentStr, err)
	}
	acc.AvailableBalance, err = decimal.NewFromString(availableStr)
	if err != nil {
		return nil, fmt.Errorf("stored available balance %q is not a decimal: %w", availableStr, err)
	}
	return &acc, nil
}
