// Package decoder defines the strategy interface shared by all statement
// format decoders and the error taxonomy they report through.
package decoder

import (
	"context"
	"errors"
	"io"

	"github.com/shopspring/decimal"

	"github.com/ledgerscope/ledgerscope/internal/domain"
)

// Format identifies a statement file format. The caller supplies it
// explicitly; the engine never sniffs file content to pick a decoder.
type Format string

const (
	// FormatOFX is the tag-delimited financial-exchange format (OFX/QFX)
	FormatOFX Format = "ofx"
	// FormatCSV is the delimited text format
	FormatCSV Format = "csv"
	// FormatXML is the generic markup format
	FormatXML Format = "xml"
	// FormatCNAB is the fixed-width batch remittance format (240 and 400
	// byte record layouts)
	FormatCNAB Format = "cnab"
)

// Decode failure sentinels. Decoders wrap these with record-level context so
// callers can classify with errors.Is while still seeing which record broke.
var (
	// ErrEmptyInput reports input with no content at all
	ErrEmptyInput = errors.New("input is empty")

	// ErrNoTransactions reports a structurally readable file from which
	// zero data records were extracted
	ErrNoTransactions = errors.New("no transactions found in input")

	// ErrMalformedRecord reports a data record that could not be fully
	// parsed. Non-data records (headers, trailers, other segments) are
	// skipped without this error; a structurally short data record aborts
	// the whole decode with it.
	ErrMalformedRecord = errors.New("malformed record")
)

// Decoder is the strategy interface for all statement format decoders.
// Implementations are stateless and safe for concurrent use.
type Decoder interface {
	// Name returns the decoder identifier (e.g., "ofx", "cnab")
	Name() string

	// Decode turns raw statement content into an ordered list of canonical
	// entries. It never returns an empty list with a nil error: zero
	// extracted data records is an ErrNoTransactions failure.
	Decode(ctx context.Context, r io.Reader) ([]domain.StatementEntry, error)
}

// DirectionFromSign is the shared fallback rule for formats whose explicit
// direction marker is absent or inconclusive: a negative amount is an
// expense, anything else an income. Flipping the sign flips the direction.
func DirectionFromSign(amount decimal.Decimal) domain.Direction {
	if amount.IsNegative() {
		return domain.DirectionExpense
	}
	return domain.DirectionIncome
}
