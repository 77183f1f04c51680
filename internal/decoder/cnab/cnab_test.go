package cnab

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerscope/ledgerscope/internal/decoder"
	"github.com/ledgerscope/ledgerscope/internal/domain"
)

// buildLine builds a fixed-width line of the given length with field values
// placed at their offsets
func buildLine(length int, fields map[int]string) string {
	line := []byte(strings.Repeat(" ", length))
	for off, v := range fields {
		copy(line[off:], v)
	}
	return string(line)
}

// detail240 builds a well-formed 240-byte transaction detail record
func detail240(date, amount string, direction byte, description, document string) string {
	return buildLine(240, map[int]string{
		7:   "3",
		13:  "E",
		142: date,
		150: amount,
		165: string(direction),
		176: description,
		201: document,
	})
}

// detail400 builds a well-formed 400-byte transaction detail record
func detail400(date, amount string, direction byte, description, document string) string {
	return buildLine(400, map[int]string{
		0:   "1",
		110: date,
		116: amount,
		129: string(direction),
		130: description,
		160: document,
	})
}

func TestName(t *testing.T) {
	if got := New().Name(); got != "cnab" {
		t.Errorf("Name() = %q, want %q", got, "cnab")
	}
}

func TestDecode_240AmountScaling(t *testing.T) {
	// The trailing two digits of the amount field are cents
	line := detail240("15032024", "000000000012345", 'C', "TED RECEBIDA", "DOC001")

	entries, err := New().Decode(context.Background(), strings.NewReader(line))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}

	e := entries[0]
	if !e.Amount().Equal(decimal.RequireFromString("123.45")) {
		t.Errorf("Amount() = %s, want 123.45", e.Amount())
	}
	wantDate := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	if !e.Date().Equal(wantDate) {
		t.Errorf("Date() = %v, want %v", e.Date(), wantDate)
	}
	if e.Direction() != domain.DirectionIncome {
		t.Errorf("Direction() = %q, want income", e.Direction())
	}
	if e.Description() != "TED RECEBIDA" {
		t.Errorf("Description() = %q, want %q", e.Description(), "TED RECEBIDA")
	}
	if e.DocumentRef() != "DOC001" {
		t.Errorf("DocumentRef() = %q, want %q", e.DocumentRef(), "DOC001")
	}
}

func TestDecode_240SkipsControlLines(t *testing.T) {
	header := buildLine(240, map[int]string{7: "0"})
	otherSegment := buildLine(240, map[int]string{7: "3", 13: "A"})
	trailer := buildLine(240, map[int]string{7: "9"})
	detail := detail240("15032024", "000000000010000", 'D', "PAGAMENTO BOLETO", "")

	content := strings.Join([]string{header, otherSegment, detail, trailer}, "\n")
	entries, err := New().Decode(context.Background(), strings.NewReader(content))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1 (control lines must be skipped)", len(entries))
	}
	if entries[0].Direction() != domain.DirectionExpense {
		t.Errorf("Direction() = %q, want expense", entries[0].Direction())
	}
}

func TestDecode_400TwoDigitYears(t *testing.T) {
	// Two-digit years always resolve into the 2000s, even 99
	tests := []struct {
		name string
		date string
		want time.Time
	}{
		{"23 is 2023", "150323", time.Date(2023, 3, 15, 0, 0, 0, 0, time.UTC)},
		{"99 is 2099", "150399", time.Date(2099, 3, 15, 0, 0, 0, 0, time.UTC)},
		{"00 is 2000", "150300", time.Date(2000, 3, 15, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := detail400(tt.date, "0000000005000", 'C', "DEPOSITO", "")
			entries, err := New().Decode(context.Background(), strings.NewReader(line))
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if !entries[0].Date().Equal(tt.want) {
				t.Errorf("Date() = %v, want %v", entries[0].Date(), tt.want)
			}
			if !entries[0].Amount().Equal(decimal.RequireFromString("50.00")) {
				t.Errorf("Amount() = %s, want 50.00", entries[0].Amount())
			}
		})
	}
}

func TestDecode_400DirectionMarkers(t *testing.T) {
	tests := []struct {
		name   string
		marker byte
		want   domain.Direction
	}{
		{"C is credit", 'C', domain.DirectionIncome},
		{"2 is credit", '2', domain.DirectionIncome},
		{"D is debit", 'D', domain.DirectionExpense},
		{"1 is debit", '1', domain.DirectionExpense},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := detail400("150323", "0000000005000", tt.marker, "LANCAMENTO", "")
			entries, err := New().Decode(context.Background(), strings.NewReader(line))
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if entries[0].Direction() != tt.want {
				t.Errorf("Direction() = %q, want %q", entries[0].Direction(), tt.want)
			}
		})
	}
}

func TestDecode_400SkipsControlLines(t *testing.T) {
	header := buildLine(400, map[int]string{0: "0"})
	detail := detail400("150323", "0000000005000", 'C', "DEPOSITO", "DOC9")
	trailer := buildLine(400, map[int]string{0: "9"})

	content := strings.Join([]string{header, detail, trailer}, "\n")
	entries, err := New().Decode(context.Background(), strings.NewReader(content))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].DocumentRef() != "DOC9" {
		t.Errorf("DocumentRef() = %q, want %q", entries[0].DocumentRef(), "DOC9")
	}
}

func TestDecode_EmptyInput(t *testing.T) {
	for _, content := range []string{"", "\n  \n"} {
		_, err := New().Decode(context.Background(), strings.NewReader(content))
		if !errors.Is(err, decoder.ErrEmptyInput) {
			t.Errorf("Decode(%q) error = %v, want ErrEmptyInput", content, err)
		}
	}
}

func TestDecode_NoDetailRecords(t *testing.T) {
	header := buildLine(240, map[int]string{7: "0"})
	trailer := buildLine(240, map[int]string{7: "9"})

	_, err := New().Decode(context.Background(), strings.NewReader(header+"\n"+trailer))
	if !errors.Is(err, decoder.ErrNoTransactions) {
		t.Errorf("Decode() error = %v, want ErrNoTransactions", err)
	}
}

func TestDecode_UnrecognizedLayout(t *testing.T) {
	_, err := New().Decode(context.Background(), strings.NewReader(strings.Repeat("x", 100)))
	if !errors.Is(err, decoder.ErrMalformedRecord) {
		t.Errorf("Decode() error = %v, want ErrMalformedRecord", err)
	}
}

func TestDecode_ShortDetailRecordAborts(t *testing.T) {
	header := buildLine(240, map[int]string{7: "0"})
	// Qualifies as a transaction detail record but stops short of the
	// layout's field table
	short := buildLine(150, map[int]string{7: "3", 13: "E"})

	_, err := New().Decode(context.Background(), strings.NewReader(header+"\n"+short))
	if !errors.Is(err, decoder.ErrMalformedRecord) {
		t.Errorf("Decode() error = %v, want ErrMalformedRecord", err)
	}
}

func TestDecode_BadFieldsAbort(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"non-numeric amount", detail240("15032024", "0000000ABC12345", 'C', "X", "")},
		{"blank amount", detail240("15032024", strings.Repeat(" ", 15), 'C', "X", "")},
		{"invalid calendar day", detail400("320123", "0000000005000", 'C', "X", "")},
		{"zero amount", detail240("15032024", "000000000000000", 'C', "X", "")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New().Decode(context.Background(), strings.NewReader(tt.line))
			if !errors.Is(err, decoder.ErrMalformedRecord) {
				t.Errorf("Decode() error = %v, want ErrMalformedRecord", err)
			}
		})
	}
}

func TestDecode_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().Decode(ctx, strings.NewReader(detail400("150323", "0000000005000", 'C', "X", "")))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Decode() error = %v, want context.Canceled", err)
	}
}
