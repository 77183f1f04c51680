// Package cnab decodes fixed-width batch remittance statements. Two
// historical record layouts are supported: a 240-byte layout with
// segment-qualified detail records and a 400-byte layout with a single
// detail record type. Each layout is a declarative table of field offsets,
// so adding another layout means adding a table, not code.
package cnab

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerscope/ledgerscope/internal/decoder"
	"github.com/ledgerscope/ledgerscope/internal/domain"
)

// field is a fixed-offset slice of a record line
type field struct {
	offset int
	length int
}

// end returns the exclusive end offset of the field
func (f field) end() int { return f.offset + f.length }

// read slices the field out of a line and trims surrounding blanks
func (f field) read(line string) string {
	return strings.TrimSpace(line[f.offset:f.end()])
}

// layout describes one fixed-width record layout
type layout struct {
	name          string
	lineLen       int // minimum line length for this layout
	recordTypeOff int
	recordTypeVal byte // detail record marker
	segmentOff    int  // -1 when the layout has no segment qualifier
	segmentVal    byte // transaction segment marker
	date          field
	dateFormat    string // Go reference layout for the date field
	amount        field  // digits scaled by 100 (trailing two digits are cents)
	directionOff  int
	creditMarks   []byte // marker bytes meaning credit; anything else is a debit
	description   field
	document      field
}

// layout240 has segment-qualified detail records: the record-type byte must
// be the detail marker and the segment-qualifier byte must be the
// transaction segment marker. Dates carry four-digit years.
var layout240 = layout{
	name:          "cnab240",
	lineLen:       240,
	recordTypeOff: 7,
	recordTypeVal: '3',
	segmentOff:    13,
	segmentVal:    'E',
	date:          field{142, 8},
	dateFormat:    "02012006",
	amount:        field{150, 15},
	directionOff:  165,
	creditMarks:   []byte{'C'},
	description:   field{176, 25},
	document:      field{201, 20},
}

// layout400 has a single period-detail record type. Dates carry two-digit
// years, resolved into the 2000s; '2' is the layout's alternate credit
// marker alongside 'C'.
var layout400 = layout{
	name:          "cnab400",
	lineLen:       400,
	recordTypeOff: 0,
	recordTypeVal: '1',
	segmentOff:    -1,
	date:          field{110, 6},
	dateFormat:    "020106",
	amount:        field{116, 13},
	directionOff:  129,
	creditMarks:   []byte{'C', '2'},
	description:   field{130, 30},
	document:      field{160, 10},
}

// twoDigitYearBase anchors two-digit years in the 400-byte layout. There is
// no pivot year: "23" is always 2023, which misreads genuine 19xx dates.
const twoDigitYearBase = 2000

// Decoder implements fixed-width decoding with a stateless design, safe for
// concurrent use without locking.
type Decoder struct{}

var decoderInstance = &Decoder{}

// New returns the shared fixed-width decoder instance
func New() *Decoder {
	return decoderInstance
}

// Name returns the decoder identifier
func (d *Decoder) Name() string {
	return "cnab"
}

// Decode extracts canonical entries from a fixed-width batch file. The
// layout is selected once per file from the length of its first non-blank
// line; control lines (headers, trailers, other segments) are skipped and a
// file yielding zero detail records is a decode failure.
func (d *Decoder) Decode(ctx context.Context, r io.Reader) ([]domain.StatementEntry, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024), 1024*1024)

	var (
		entries  []domain.StatementEntry
		selected *layout
		lineNo   int
	)

	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		if selected == nil {
			selected = selectLayout(len(line))
			if selected == nil {
				return nil, fmt.Errorf("%w: unrecognized record layout: line %d is %d bytes, expected at least %d (%s) or %d (%s)",
					decoder.ErrMalformedRecord, lineNo, len(line), layout240.lineLen, layout240.name, layout400.lineLen, layout400.name)
			}
		}

		entry, isDetail, err := selected.decodeLine(line)
		if err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %w", decoder.ErrMalformedRecord, selected.name, lineNo, err)
		}
		if !isDetail {
			continue
		}
		entries = append(entries, *entry)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read fixed-width content: %w", err)
	}

	if lineNo == 0 {
		return nil, fmt.Errorf("%w: fixed-width content is blank", decoder.ErrEmptyInput)
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: %d lines read with layout %s, zero detail records found", decoder.ErrNoTransactions, lineNo, selected.name)
	}

	return entries, nil
}

// selectLayout picks a layout from the total line length
func selectLayout(lineLen int) *layout {
	switch {
	case lineLen >= layout400.lineLen:
		return &layout400
	case lineLen >= layout240.lineLen:
		return &layout240
	default:
		return nil
	}
}

// decodeLine decodes one record line. A line whose record-type or segment
// byte does not qualify it as a transaction detail record returns
// isDetail=false with no error; a qualifying line that cannot be fully
// parsed returns an error that aborts the whole decode.
func (l *layout) decodeLine(line string) (entry *domain.StatementEntry, isDetail bool, err error) {
	if len(line) <= l.recordTypeOff || line[l.recordTypeOff] != l.recordTypeVal {
		return nil, false, nil
	}
	if l.segmentOff >= 0 {
		if len(line) <= l.segmentOff || line[l.segmentOff] != l.segmentVal {
			return nil, false, nil
		}
	}

	// A qualifying detail record must cover every field in the table
	if len(line) < l.lineLen {
		return nil, false, fmt.Errorf("detail record is structurally short: %d bytes, layout needs %d", len(line), l.lineLen)
	}

	dateStr := l.date.read(line)
	date, err := l.parseDate(dateStr)
	if err != nil {
		return nil, false, err
	}

	amount, err := parseScaledAmount(l.amount.read(line))
	if err != nil {
		return nil, false, fmt.Errorf("amount field at offset %d: %w", l.amount.offset, err)
	}

	direction := domain.DirectionExpense
	for _, m := range l.creditMarks {
		if line[l.directionOff] == m {
			direction = domain.DirectionIncome
			break
		}
	}

	e, err := domain.NewStatementEntry(date, l.description.read(line), amount, direction)
	if err != nil {
		return nil, false, err
	}
	e.SetDocumentRef(l.document.read(line))

	return e, true, nil
}

// parseDate converts the raw date field to a calendar date. The DDMMYY form
// is parsed by hand because time.Parse pivots two-digit years into the
// 1900s for 69-99, while this layout always offsets them into the 2000s.
func (l *layout) parseDate(s string) (time.Time, error) {
	if len(l.dateFormat) != 6 {
		t, err := time.Parse(l.dateFormat, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid date %q (expected format %s): %w", s, l.dateFormat, err)
		}
		return t, nil
	}

	if len(s) != 6 {
		return time.Time{}, fmt.Errorf("invalid date %q (expected DDMMYY)", s)
	}
	day, err1 := strconv.Atoi(s[0:2])
	month, err2 := strconv.Atoi(s[2:4])
	year, err3 := strconv.Atoi(s[4:6])
	if err1 != nil || err2 != nil || err3 != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (expected DDMMYY)", s)
	}
	year += twoDigitYearBase

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes out-of-range components; a round-trip mismatch
	// means the field named no concrete calendar date
	if t.Day() != day || int(t.Month()) != month || t.Year() != year {
		return time.Time{}, fmt.Errorf("date %q does not name a valid calendar day", s)
	}
	return t, nil
}

// parseScaledAmount parses a zero-padded numeric field whose trailing two
// digits are cents: "000000000012345" is 123.45.
func parseScaledAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Decimal{}, fmt.Errorf("amount field is blank")
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("amount %q is not numeric: %w", s, err)
	}
	if v < 0 {
		return decimal.Decimal{}, fmt.Errorf("amount %q must not be signed", s)
	}
	return decimal.New(v, -2), nil
}
