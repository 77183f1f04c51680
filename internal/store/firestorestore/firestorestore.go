// Package firestorestore is a Firestore-backed store implementation.
//
// Firestore transactions require every read to happen before the first
// write, while the store's atomic unit interleaves creates and balance
// adjustments freely. The Tx therefore buffers all writes issued by the
// unit and flushes them after it returns: account reads first, then every
// document write, inside one Firestore transaction.
package firestorestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"github.com/shopspring/decimal"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ledgerscope/ledgerscope/internal/domain"
	"github.com/ledgerscope/ledgerscope/internal/store"
)

const (
	accountsCollection     = "ledger-accounts"
	transactionsCollection = "ledger-transactions"

	dateLayout = "2006-01-02"
)

// Store wraps a Firestore client with ledger operations
type Store struct {
	client    *firestore.Client
	projectID string
}

// New creates a Firestore-backed store. credsPath may be empty, in which
// case Application Default Credentials are used.
func New(ctx context.Context, projectID, credsPath string) (*Store, error) {
	conf := &firebase.Config{ProjectID: projectID}

	var opts []option.ClientOption
	if credsPath != "" {
		opts = append(opts, option.WithCredentialsFile(credsPath))
	}

	app, err := firebase.NewApp(ctx, conf, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}

	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return &Store{client: client, projectID: projectID}, nil
}

// Close closes the Firestore client
func (s *Store) Close() error {
	return s.client.Close()
}

// accountDoc is the Firestore representation of a ledger account. Balances
// are stored as decimal strings; Firestore has no exact decimal type.
type accountDoc struct {
	ID               string `firestore:"id"`
	UserID           string `firestore:"userId"`
	Name             string `firestore:"name"`
	CurrentBalance   string `firestore:"currentBalance"`
	AvailableBalance string `firestore:"availableBalance"`
}

// transactionDoc is the Firestore representation of a ledger transaction
type transactionDoc struct {
	ID             string    `firestore:"id"`
	UserID         string    `firestore:"userId"`
	AccountID      string    `firestore:"accountId"`
	Description    string    `firestore:"description"`
	Amount         string    `firestore:"amount"`
	Direction      string    `firestore:"direction"`
	CompetenceDate string    `firestore:"competenceDate"`
	Status         string    `firestore:"status"`
	CreatedAt      time.Time `firestore:"createdAt"`
}

// FindAccount implements store.Store
func (s *Store) FindAccount(ctx context.Context, accountID, userID string) (*domain.Account, error) {
	snap, err := s.client.Collection(accountsCollection).Doc(accountID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, fmt.Errorf("%w: %q for user %q", store.ErrAccountNotFound, accountID, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read account %s: %w", accountID, err)
	}

	var doc accountDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse account %s: %w", accountID, err)
	}
	if doc.UserID != userID {
		return nil, fmt.Errorf("%w: %q for user %q", store.ErrAccountNotFound, accountID, userID)
	}

	return accountFromDoc(&doc)
}

// ListTransactions implements store.Store. Competence dates are stored as
// YYYY-MM-DD strings, so range filters compare correctly.
func (s *Store) ListTransactions(ctx context.Context, userID, accountID string, from, to time.Time) ([]domain.LedgerTransaction, error) {
	query := s.client.Collection(transactionsCollection).
		Where("userId", "==", userID).
		Where("competenceDate", ">=", from.Format(dateLayout)).
		Where("competenceDate", "<=", to.Format(dateLayout))
	if accountID != "" {
		query = query.Where("accountId", "==", accountID)
	}

	iter := query.OrderBy("competenceDate", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var out []domain.LedgerTransaction
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate transactions for user %s: %w", userID, err)
		}

		var doc transactionDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("failed to parse transaction: %w", err)
		}
		txn, err := transactionFromDoc(&doc)
		if err != nil {
			return nil, err
		}
		out = append(out, *txn)
	}

	return out, nil
}

// PutAccount creates or replaces an account document
func (s *Store) PutAccount(ctx context.Context, acc domain.Account) error {
	if err := acc.Validate(); err != nil {
		return fmt.Errorf("invalid account: %w", err)
	}
	_, err := s.client.Collection(accountsCollection).Doc(acc.ID).Set(ctx, accountToDoc(&acc))
	if err != nil {
		return fmt.Errorf("failed to store account %s: %w", acc.ID, err)
	}
	return nil
}

// Atomic implements store.Store using a Firestore transaction with buffered
// writes
func (s *Store) Atomic(ctx context.Context, fn func(tx store.Tx) error) error {
	return s.client.RunTransaction(ctx, func(ctx context.Context, ft *firestore.Transaction) error {
		buf := &fsTx{
			client: s.client,
			ft:     ft,
			deltas: make(map[string]decimal.Decimal),
		}
		if err := fn(buf); err != nil {
			return err
		}
		return buf.flush()
	})
}

// fsTx buffers the unit's writes until flush. Reads issued while the unit
// runs go straight to the Firestore transaction, which is legal because no
// write happens before flush.
type fsTx struct {
	client  *firestore.Client
	ft      *firestore.Transaction
	creates []transactionDoc
	deltas  map[string]decimal.Decimal
	order   []string // account IDs in first-touch order
}

// FindAccount implements store.Tx
func (t *fsTx) FindAccount(accountID, userID string) (*domain.Account, error) {
	snap, err := t.ft.Get(t.client.Collection(accountsCollection).Doc(accountID))
	if status.Code(err) == codes.NotFound {
		return nil, fmt.Errorf("%w: %q for user %q", store.ErrAccountNotFound, accountID, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read account %s: %w", accountID, err)
	}

	var doc accountDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse account %s: %w", accountID, err)
	}
	if doc.UserID != userID {
		return nil, fmt.Errorf("%w: %q for user %q", store.ErrAccountNotFound, accountID, userID)
	}
	return accountFromDoc(&doc)
}

// CreateTransaction implements store.Tx
func (t *fsTx) CreateTransaction(txn *domain.LedgerTransaction) error {
	if err := txn.Validate(); err != nil {
		return fmt.Errorf("invalid transaction: %w", err)
	}
	t.creates = append(t.creates, *transactionToDoc(txn))
	return nil
}

// AdjustBalance implements store.Tx. The existence check is deferred to
// flush, which is still inside the same atomic unit.
func (t *fsTx) AdjustBalance(accountID string, delta decimal.Decimal) error {
	if accountID == "" {
		return fmt.Errorf("%w: empty account ID", store.ErrAccountNotFound)
	}
	if _, seen := t.deltas[accountID]; !seen {
		t.order = append(t.order, accountID)
	}
	t.deltas[accountID] = t.deltas[accountID].Add(delta)
	return nil
}

// flush performs all reads, then all writes, as Firestore requires
func (t *fsTx) flush() error {
	accounts := make(map[string]*accountDoc, len(t.order))
	for _, accountID := range t.order {
		ref := t.client.Collection(accountsCollection).Doc(accountID)
		snap, err := t.ft.Get(ref)
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("%w: %q", store.ErrAccountNotFound, accountID)
		}
		if err != nil {
			return fmt.Errorf("failed to read account %s: %w", accountID, err)
		}
		var doc accountDoc
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("failed to parse account %s: %w", accountID, err)
		}
		accounts[accountID] = &doc
	}

	for i := range t.creates {
		doc := &t.creates[i]
		ref := t.client.Collection(transactionsCollection).Doc(doc.ID)
		if err := t.ft.Create(ref, doc); err != nil {
			return fmt.Errorf("failed to create transaction %s: %w", doc.ID, err)
		}
	}

	for _, accountID := range t.order {
		doc := accounts[accountID]
		delta := t.deltas[accountID]

		current, err := decimal.NewFromString(doc.CurrentBalance)
		if err != nil {
			return fmt.Errorf("account %s: stored current balance %q is not a decimal: %w", accountID, doc.CurrentBalance, err)
		}
		available, err := decimal.NewFromString(doc.AvailableBalance)
		if err != nil {
			return fmt.Errorf("account %s: stored available balance %q is not a decimal: %w", accountID, doc.AvailableBalance, err)
		}
		doc.CurrentBalance = current.Add(delta).String()
		doc.AvailableBalance = available.Add(delta).String()

		ref := t.client.Collection(accountsCollection).Doc(accountID)
		if err := t.ft.Set(ref, doc); err != nil {
			return fmt.Errorf("failed to update balances for account %s: %w", accountID, err)
		}
	}

	return nil
}

func accountToDoc(acc *domain.Account) *accountDoc {
	return &accountDoc{
		ID:               acc.ID,
		UserID:           acc.UserID,
		Name:             acc.Name,
		CurrentBalance:   acc.CurrentBalance.String(),
		AvailableBalance: acc.AvailableBalance.String(),
	}
}

func accountFromDoc(doc *accountDoc) (*domain.Account, error) {
	current, err := decimal.NewFromString(doc.CurrentBalance)
	if err != nil {
		return nil, fmt.Errorf("account %s: stored current balance %q is not a decimal: %w", doc.ID, doc.CurrentBalance, err)
	}
	available, err := decimal.NewFromString(doc.AvailableBalance)
	if err != nil {
		return nil, fmt.Errorf("account %s: stored available balance %q is not a decimal: %w", doc.ID, doc.AvailableBalance, err)
	}
	return &domain.Account{
		ID:               doc.ID,
		UserID:           doc.UserID,
		Name:             doc.Name,
		CurrentBalance:   current,
		AvailableBalance: available,
	}, nil
}

func transactionToDoc(txn *domain.LedgerTransaction) *transactionDoc {
	return &transactionDoc{
		ID:             txn.ID,
		UserID:         txn.UserID,
		AccountID:      txn.AccountID,
		Description:    txn.Description,
		Amount:         txn.Amount.String(),
		Direction:      string(txn.Direction),
		CompetenceDate: txn.CompetenceDate.Format(dateLayout),
		Status:         txn.Status,
		CreatedAt:      txn.CreatedAt,
	}
}

func transactionFromDoc(doc *transactionDoc) (*domain.LedgerTransaction, error) {
	amount, err := decimal.NewFromString(doc.Amount)
	if err != nil {
		return nil, fmt.Errorf("transaction %s: stored amount %q is not a decimal: %w", doc.ID, doc.Amount, err)
	}
	date, err := time.ParseInLocation(dateLayout, doc.CompetenceDate, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("transaction %s: stored date %q is not a date: %w", doc.ID, doc.CompetenceDate, err)
	}
	return &domain.LedgerTransaction{
		ID:             doc.ID,
		UserID:         doc.UserID,
		AccountID:      doc.AccountID,
		Description:    doc.Description,
		Amount:         amount,
		Direction:      domain.Direction(doc.Direction),
		CompetenceDate: date,
		Status:         doc.Status,
		CreatedAt:      doc.CreatedAt,
	}, nil
}
