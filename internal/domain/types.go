// Package domain holds the entities shared by the decoders, the matcher and
// the import executor: the canonical statement entry every decoder produces,
// and the ledger-side transaction and account records read and written
// through the store.
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Direction classifies a transaction's effect on a balance.
// Use ValidateDirection to ensure validity before use.
type Direction string

const (
	DirectionIncome  Direction = "income"
	DirectionExpense Direction = "expense"
)

var validDirections = map[Direction]struct{}{
	DirectionIncome: {}, DirectionExpense: {},
}

// ValidateDirection checks if direction is one of the two enumerated values
func ValidateDirection(d Direction) bool {
	_, ok := validDirections[d]
	return ok
}

// Status values for ledger transactions. Entries booked by the import
// executor are settled on creation: an income entry has already been
// received and an expense entry has already been paid.
const (
	StatusReceived = "received"
	StatusPaid     = "paid"
)

// SettledStatus returns the settled status consistent with a direction
func SettledStatus(d Direction) string {
	if d == DirectionIncome {
		return StatusReceived
	}
	return StatusPaid
}

// DefaultDescription is used when the source file carries no description
const DefaultDescription = "No description"

// StatementEntry is the canonical transaction produced by every decoder.
// Amount is always a positive magnitude; the direction is carried separately.
//
// Create instances using NewStatementEntry, which enforces the invariants
// (valid date, amount > 0, valid direction). DocumentRef is optional and can
// be set after construction.
type StatementEntry struct {
	date        time.Time
	description string
	amount      decimal.Decimal
	direction   Direction
	documentRef string
}

// NewStatementEntry creates a validated statement entry. A signed amount is
// accepted and stored as its absolute value; a zero amount is rejected
// because it carries no balance effect to reconcile. A blank description is
// replaced with DefaultDescription.
func NewStatementEntry(date time.Time, description string, amount decimal.Decimal, direction Direction) (*StatementEntry, error) {
	if date.IsZero() {
		return nil, fmt.Errorf("entry date cannot be zero")
	}
	if amount.IsZero() {
		return nil, fmt.Errorf("entry amount cannot be zero")
	}
	if !ValidateDirection(direction) {
		return nil, fmt.Errorf("invalid direction %q (must be %q or %q)", direction, DirectionIncome, DirectionExpense)
	}

	description = strings.TrimSpace(description)
	if description == "" {
		description = DefaultDescription
	}

	// Truncate to a calendar day; no time component is carried.
	y, m, d := date.Date()

	return &StatementEntry{
		date:        time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		description: description,
		amount:      amount.Abs(),
		direction:   direction,
	}, nil
}

// Date returns the calendar date of the entry (UTC midnight)
func (e *StatementEntry) Date() time.Time { return e.date }

// Description returns the entry description, never empty
func (e *StatementEntry) Description() string { return e.description }

// Amount returns the positive decimal magnitude
func (e *StatementEntry) Amount() decimal.Decimal { return e.amount }

// Direction returns the entry direction
func (e *StatementEntry) Direction() Direction { return e.direction }

// DocumentRef returns the optional external identifier (check number, bank
// document id). Empty when the source format carries none.
func (e *StatementEntry) DocumentRef() string { return e.documentRef }

// SetDocumentRef sets the optional document reference
func (e *StatementEntry) SetDocumentRef(ref string) {
	e.documentRef = strings.TrimSpace(ref)
}

// SignedAmount returns the entry's effect on a balance: +amount for income,
// -amount for expense.
func (e *StatementEntry) SignedAmount() decimal.Decimal {
	if e.direction == DirectionExpense {
		return e.amount.Neg()
	}
	return e.amount
}

// LedgerTransaction is a recorded ledger entry. The engine treats it as
// opaque except for the fields needed to match and the identifiers needed to
// link results back to the ledger.
type LedgerTransaction struct {
	ID             string
	UserID         string
	AccountID      string
	Description    string
	Amount         decimal.Decimal // positive magnitude
	Direction      Direction
	CompetenceDate time.Time
	Status         string
	CreatedAt      time.Time
}

// Validate checks the fields the engine depends on
func (t *LedgerTransaction) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("ledger transaction ID is required")
	}
	if t.UserID == "" {
		return fmt.Errorf("ledger transaction user ID is required")
	}
	if t.CompetenceDate.IsZero() {
		return fmt.Errorf("ledger transaction %s: competence date cannot be zero", t.ID)
	}
	if !t.Amount.IsPositive() {
		return fmt.Errorf("ledger transaction %s: amount must be positive, got %s", t.ID, t.Amount)
	}
	if !ValidateDirection(t.Direction) {
		return fmt.Errorf("ledger transaction %s: invalid direction %q", t.ID, t.Direction)
	}
	return nil
}

// SignedAmount returns the transaction's effect on a balance
func (t *LedgerTransaction) SignedAmount() decimal.Decimal {
	if t.Direction == DirectionExpense {
		return t.Amount.Neg()
	}
	return t.Amount
}

// Account is a ledger account owned by a user. Balances are mutated only by
// the import executor, inside the store's atomic unit.
type Account struct {
	ID               string
	UserID           string
	Name             string
	CurrentBalance   decimal.Decimal
	AvailableBalance decimal.Decimal
}

// Validate checks required account fields
func (a *Account) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("account ID is required")
	}
	if a.UserID == "" {
		return fmt.Errorf("account user ID is required")
	}
	return nil
}
