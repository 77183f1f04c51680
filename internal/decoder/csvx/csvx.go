// Package csvx decodes delimited-text statement exports against a
// configurable column layout.
package csvx

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerscope/ledgerscope/internal/decoder"
	"github.com/ledgerscope/ledgerscope/internal/domain"
)

// Decoder decodes delimited text using a column layout. The layout is fixed
// at construction, so a Decoder is safe for concurrent use.
type Decoder struct {
	layout Layout
}

// New creates a decoder for the given layout
func New(layout *Layout) (*Decoder, error) {
	if layout == nil {
		return nil, fmt.Errorf("layout cannot be nil")
	}
	if err := layout.Validate(); err != nil {
		return nil, fmt.Errorf("invalid layout: %w", err)
	}
	return &Decoder{layout: *layout}, nil
}

// NewDefault creates a decoder with the embedded default layout
func NewDefault() (*Decoder, error) {
	layout, err := DefaultLayout()
	if err != nil {
		return nil, err
	}
	return New(layout)
}

// Name returns the decoder identifier
func (d *Decoder) Name() string {
	return "csv"
}

// Decode extracts canonical entries from delimited text
func (d *Decoder) Decode(ctx context.Context, r io.Reader) ([]domain.StatementEntry, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	csvReader := csv.NewReader(r)
	csvReader.Comma = []rune(d.layout.Delimiter)[0]
	csvReader.LazyQuotes = true
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read delimited content: %w", decoder.ErrMalformedRecord, err)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("%w: delimited content holds no rows", decoder.ErrEmptyInput)
	}

	start := 0
	if d.layout.SkipHeader {
		start = 1
	}

	entries := make([]domain.StatementEntry, 0, len(records))
	for i, record := range records[start:] {
		// Skip blank rows
		if len(record) == 0 || (len(record) == 1 && strings.TrimSpace(record[0]) == "") {
			continue
		}

		entry, err := d.decodeRow(record)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %w", decoder.ErrMalformedRecord, start+i+1, err)
		}
		entries = append(entries, *entry)
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: %d rows read, zero data rows decoded", decoder.ErrNoTransactions, len(records))
	}

	return entries, nil
}

// decodeRow decodes one data row against the layout
func (d *Decoder) decodeRow(record []string) (*domain.StatementEntry, error) {
	if len(record) < d.layout.minColumns() {
		return nil, fmt.Errorf("row has %d fields, layout requires at least %d", len(record), d.layout.minColumns())
	}

	dateStr := strings.TrimSpace(record[d.layout.DateColumn])
	date, err := time.Parse(d.layout.DateFormat, dateStr)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q (expected format %q): %w", dateStr, d.layout.DateFormat, err)
	}

	amountStr := strings.TrimSpace(record[d.layout.AmountColumn])
	if amountStr == "" {
		return nil, fmt.Errorf("amount cannot be empty")
	}
	amount, err := parseAmount(amountStr)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amountStr, err)
	}

	description := strings.TrimSpace(record[d.layout.DescriptionColumn])

	// Explicit type marker wins; the sign of the amount is the fallback
	direction := decoder.DirectionFromSign(amount)
	if d.layout.TypeColumn >= 0 {
		marker := strings.TrimSpace(record[d.layout.TypeColumn])
		switch {
		case d.layout.isCreditMarker(marker):
			direction = domain.DirectionIncome
		case d.layout.isDebitMarker(marker):
			direction = domain.DirectionExpense
		}
	}

	entry, err := domain.NewStatementEntry(date, description, amount, direction)
	if err != nil {
		return nil, err
	}

	if d.layout.DocumentColumn >= 0 {
		entry.SetDocumentRef(record[d.layout.DocumentColumn])
	}

	return entry, nil
}

// parseAmount parses a decimal amount tolerating a comma decimal separator
// when no dot is present ("1234,56" and "1234.56" both decode).
func parseAmount(s string) (decimal.Decimal, error) {
	if strings.Contains(s, ",") && !strings.Contains(s, ".") {
		s = strings.ReplaceAll(s, ",", ".")
	}
	return decimal.NewFromString(s)
}
