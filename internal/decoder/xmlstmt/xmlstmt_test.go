package xmlstmt

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

func TestName(t *testing.T) {
	if got := New().Name(); got != "xml" {
		t.Errorf("Name() = %q, want %q", got, "xml")
	}
}

func TestDecode_EnglishTags(t *testing.T) {
	content := `<statement>
  <transaction>
    <date>15/03/2024</date>
    <description>Wire transfer</description>
    <amount>250.00</amount>
    <type>C</type>
    <document>DOC-1</document>
  </transaction>
  <transaction>
    <date>16/03/2024</date>
    <description>Utility bill</description>
    <amount>99.50</amount>
    <type>D</type>
  </transaction>
</statement>`

	entries, err := New().Decode(context.Background(), strings.NewReader(content))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}

	first := entries[0]
	wantDate := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	if !first.Date().Equal(wantDate) {
		t.Errorf("entries[0].Date() = %v, want %v", first.Date(), wantDate)
	}
	if first.Direction() != domain.DirectionIncome {
		t.Errorf("entries[0].Direction() = %q, want income", first.Direction())
	}
	if first.DocumentRef() != "DOC-1" {
		t.Errorf("entries[0].DocumentRef() = %q, want %q", first.DocumentRef(), "DOC-1")
	}
	if entries[1].Direction() != domain.DirectionExpense {
		t.Errorf("entries[1].Direction() = %q, want expense", entries[1].Direction())
	}
}

func TestDecode_PortugueseTags(t *testing.T) {
	content := `<extrato>
  <lancamento>
    <data>2024-03-15</data>
    <historico>Pagamento de boleto</historico>
    <valor>123,45</valor>
    <tipo>DEBITO</tipo>
  </lancamento>
</extrato>`

	entries, err := New().Decode(context.Background(), strings.NewReader(content))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if !entries[0].Amount().Equal(decimal.RequireFromString("123.45")) {
		t.Errorf("Amount() = %s, want 123.45 (comma separator)", entries[0].Amount())
	}
	if entries[0].Direction() != domain.DirectionExpense {
		t.Errorf("Direction() = %q, want expense", entries[0].Direction())
	}
	if entries[0].Description() != "Pagamento de boleto" {
		t.Errorf("Description() = %q, want %q", entries[0].Description(), "Pagamento de boleto")
	}
}

func TestDecode_MixedCaseTags(t *testing.T) {
	content := `<Statement>
  <Transaction>
    <Date>20240315</Date>
    <Description>Case insensitive</Description>
    <Amount>10.00</Amount>
  </Transaction>
</Statement>`

	entries, err := New().Decode(context.Background(), strings.NewReader(content))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	wantDate := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	if !entries[0].Date().Equal(wantDate) {
		t.Errorf("Date() = %v, want %v (YYYYMMDD form)", entries[0].Date(), wantDate)
	}
}

func TestDecode_SignFallback(t *testing.T) {
	// No type element: the sign of the amount decides, and flipping the
	// sign flips the direction.
	tests := []struct {
		name   string
		amount string
		want   domain.Direction
	}{
		{"negative is expense", "-80.00", domain.DirectionExpense},
		{"positive is income", "80.00", domain.DirectionIncome},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := `<stmt><entry><date>15/03/2024</date><desc>x</desc><value>` + tt.amount + `</value></entry></stmt>`
			entries, err := New().Decode(context.Background(), strings.NewReader(content))
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if entries[0].Direction() != tt.want {
				t.Errorf("Direction() = %q, want %q", entries[0].Direction(), tt.want)
			}
			if !entries[0].Amount().IsPositive() {
				t.Errorf("Amount() = %s, want positive magnitude", entries[0].Amount())
			}
		})
	}
}

func TestDecode_MissingDescription(t *testing.T) {
	content := `<stmt><transaction><date>15/03/2024</date><amount>10.00</amount></transaction></stmt>`
	entries, err := New().Decode(context.Background(), strings.NewReader(content))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if entries[0].Description() != domain.DefaultDescription {
		t.Errorf("Description() = %q, want %q", entries[0].Description(), domain.DefaultDescription)
	}
}

func TestDecode_EmptyInput(t *testing.T) {
	_, err := New().Decode(context.Background(), strings.NewReader("  \n "))
	if !errors.Is(err, decoder.ErrEmptyInput) {
		t.Errorf("Decode() error = %v, want ErrEmptyInput", err)
	}
}

func TestDecode_Garbage(t *testing.T) {
	_, err := New().Decode(context.Background(), strings.NewReader("this is not markup at all"))
	if !errors.Is(err, decoder.ErrMalformedRecord) {
		t.Errorf("Decode() error = %v, want ErrMalformedRecord", err)
	}
}

func TestDecode_NoTransactionElements(t *testing.T) {
	content := `<statement><header>empty export</header></statement>`
	_, err := New().Decode(context.Background(), strings.NewReader(content))
	if !errors.Is(err, decoder.ErrNoTransactions) {
		t.Errorf("Decode() error = %v, want ErrNoTransactions", err)
	}
}

func TestDecode_BadElementAbortsWholeDecode(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "missing amount",
			content: `<stmt>
  <transaction><date>15/03/2024</date><description>ok</description><amount>10.00</amount></transaction>
  <transaction><date>16/03/2024</date><description>broken</description></transaction>
</stmt>`,
		},
		{
			name: "unparseable date",
			content: `<stmt>
  <transaction><date>March 15</date><description>x</description><amount>10.00</amount></transaction>
</stmt>`,
		},
		{
			name: "zero amount",
			content: `<stmt>
  <transaction><date>15/03/2024</date><description>x</description><amount>0</amount></transaction>
</stmt>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New().Decode(context.Background(), strings.NewReader(tt.content))
			if !errors.Is(err, decoder.ErrMalformedRecord) {
				t.Errorf("Decode() error = %v, want ErrMalformedRecord", err)
			}
		})
	}
}

func TestDecode_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().Decode(ctx, strings.NewReader("<s><transaction/></s>"))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Decode() error = %v, want context.Canceled", err)
	}
}
