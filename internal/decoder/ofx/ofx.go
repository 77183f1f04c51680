// Package ofx decodes OFX/QFX financial-exchange statements
package ofx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"

	"github.com/ledgerscope/ledgerscope/internal/decoder"
	"github.com/ledgerscope/ledgerscope/internal/domain"
)

// Decoder implements OFX/QFX decoding with a stateless design. The struct
// has no fields because OFX decoding requires no configuration state, making
// it safe for concurrent use without locking.
type Decoder struct{}

var decoderInstance = &Decoder{}

// New returns the shared OFX decoder instance.
// Safe for concurrent use due to stateless design.
func New() *Decoder {
	return decoderInstance
}

// Name returns the decoder identifier
func (d *Decoder) Name() string {
	return "ofx"
}

// Decode extracts canonical entries from an OFX/QFX statement
func (d *Decoder) Decode(ctx context.Context, r io.Reader) ([]domain.StatementEntry, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX content: %w", err)
	}

	if len(bytes.TrimSpace(content)) == 0 {
		return nil, fmt.Errorf("%w: OFX content is blank", decoder.ErrEmptyInput)
	}

	// ofxgo.ParseResponse does not support context cancellation, so this
	// check only catches cancellation between the read and the parse.
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	response, err := ofxgo.ParseResponse(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse OFX content (%d bytes): %w", decoder.ErrMalformedRecord, len(content), err)
	}

	// Route to the appropriate handler based on statement type
	if len(response.Bank) > 0 {
		return d.decodeBank(response)
	}

	if len(response.CreditCard) > 0 {
		return d.decodeCreditCard(response)
	}

	return nil, fmt.Errorf("%w: no supported statement type found in OFX file. Expected a bank (BANKMSGSRSV1) or credit card (CREDITCARDMSGSRSV1) statement; the file may be malformed or empty (bank: %d, creditcard: %d, investment: %d)",
		decoder.ErrNoTransactions, len(response.Bank), len(response.CreditCard), len(response.InvStmt))
}

// decodeBank decodes a bank account statement
func (d *Decoder) decodeBank(resp *ofxgo.Response) ([]domain.StatementEntry, error) {
	stmt, ok := resp.Bank[0].(*ofxgo.StatementResponse)
	if !ok {
		return nil, fmt.Errorf("failed to type assert bank statement: expected *ofxgo.StatementResponse, got %T", resp.Bank[0])
	}

	if stmt.BankTranList == nil {
		return nil, fmt.Errorf("%w: missing transaction list in bank statement", decoder.ErrNoTransactions)
	}

	return d.decodeTransactions(stmt.BankTranList)
}

// decodeCreditCard decodes a credit card statement
func (d *Decoder) decodeCreditCard(resp *ofxgo.Response) ([]domain.StatementEntry, error) {
	stmt, ok := resp.CreditCard[0].(*ofxgo.CCStatementResponse)
	if !ok {
		return nil, fmt.Errorf("failed to type assert credit card statement: expected *ofxgo.CCStatementResponse, got %T", resp.CreditCard[0])
	}

	if stmt.BankTranList == nil {
		return nil, fmt.Errorf("%w: missing transaction list in credit card statement", decoder.ErrNoTransactions)
	}

	return d.decodeTransactions(stmt.BankTranList)
}

// decodeTransactions converts OFX transactions to canonical entries
func (d *Decoder) decodeTransactions(tranList *ofxgo.TransactionList) ([]domain.StatementEntry, error) {
	if len(tranList.Transactions) == 0 {
		return nil, fmt.Errorf("%w: transaction list is present but holds zero transactions", decoder.ErrNoTransactions)
	}

	entries := make([]domain.StatementEntry, 0, len(tranList.Transactions))
	for i, txn := range tranList.Transactions {
		entry, err := extractEntry(txn)
		if err != nil {
			return nil, fmt.Errorf("%w: transaction at index %d: %w", decoder.ErrMalformedRecord, i, err)
		}
		entries = append(entries, *entry)
	}

	return entries, nil
}

// extractEntry extracts the canonical fields from one OFX transaction
func extractEntry(txn ofxgo.Transaction) (*domain.StatementEntry, error) {
	// Use posted date; if not available, fall back to user date
	date := txn.DtPosted.Time
	if date.IsZero() {
		date = txn.DtUser.Time
	}
	if date.IsZero() {
		return nil, fmt.Errorf("transaction %s missing both posted date and user date", txn.FiTID.String())
	}

	// Use Name for description; if empty, fall back to Memo
	description := strings.TrimSpace(txn.Name.String())
	if description == "" {
		description = strings.TrimSpace(txn.Memo.String())
	}

	// TrnAmt is a big.Rat; two fractional digits keeps cents exact
	amount := decimal.NewFromBigRat(&txn.TrnAmt.Rat, 2)

	direction, conclusive := directionFromType(txn.TrnType)
	if !conclusive {
		direction = decoder.DirectionFromSign(amount)
	}

	entry, err := domain.NewStatementEntry(date, description, amount, direction)
	if err != nil {
		return nil, fmt.Errorf("transaction %s: %w", txn.FiTID.String(), err)
	}

	// Check number is the preferred document reference, then the bank's own
	// reference number
	if ref := strings.TrimSpace(txn.CheckNum.String()); ref != "" {
		entry.SetDocumentRef(ref)
	} else if ref := strings.TrimSpace(txn.RefNum.String()); ref != "" {
		entry.SetDocumentRef(ref)
	}

	return entry, nil
}

// directionFromType maps an OFX transaction type to a direction. The second
// return value is false when the type says nothing about direction (ATM, POS,
// transfers, checks and unknown types), in which case the sign of the amount
// decides.
// The parameter is typed any because ofxgo keeps its trnType type unexported;
// the switch still compares against the exported ofxgo.TrnType* constants.
func directionFromType(trnType any) (domain.Direction, bool) {
	switch trnType {
	case ofxgo.TrnTypeCredit, ofxgo.TrnTypeDep, ofxgo.TrnTypeInt, ofxgo.TrnTypeDirectDep:
		return domain.DirectionIncome, true
	case ofxgo.TrnTypeDebit, ofxgo.TrnTypeFee, ofxgo.TrnTypePayment, ofxgo.TrnTypeDirectDebit:
		return domain.DirectionExpense, true
	default:
		return "", false
	}
}
