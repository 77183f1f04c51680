// Package xmlstmt decodes generic markup statement exports. Exporters
// disagree on tag spelling and casing, so every logical field is located by
// trying a prioritized list of candidate names rather than one fixed schema.
package xmlstmt

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerscope/ledgerscope/internal/decoder"
	"github.com/ledgerscope/ledgerscope/internal/domain"
)

// Decoder implements markup decoding with a stateless design, safe for
// concurrent use without locking.
type Decoder struct{}

var decoderInstance = &Decoder{}

// New returns the shared markup decoder instance
func New() *Decoder {
	return decoderInstance
}

// Name returns the decoder identifier
func (d *Decoder) Name() string {
	return "xml"
}

// Candidate spellings tried in order for each logical field. Case is ignored
// when comparing, so each entry covers all case variants of itself.
var (
	transactionNames = []string{"transaction", "transacao", "lancamento", "entry"}
	dateNames        = []string{"date", "data", "dt"}
	descriptionNames = []string{"description", "descricao", "memo", "historico", "desc"}
	amountNames      = []string{"amount", "valor", "value", "vlr"}
	typeNames        = []string{"type", "tipo", "direction"}
	documentNames    = []string{"document", "documento", "checknum", "numero"}
)

// node is a generic markup element tree
type node struct {
	XMLName  xml.Name
	Children []node `xml:",any"`
	Text     string `xml:",chardata"`
}

// Decode extracts canonical entries from a markup document
func (d *Decoder) Decode(ctx context.Context, r io.Reader) ([]domain.StatementEntry, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read markup content: %w", err)
	}

	if len(bytes.TrimSpace(content)) == 0 {
		return nil, fmt.Errorf("%w: markup content is blank", decoder.ErrEmptyInput)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var root node
	if err := xml.Unmarshal(content, &root); err != nil {
		return nil, fmt.Errorf("%w: structurally invalid markup document (%d bytes): %w", decoder.ErrMalformedRecord, len(content), err)
	}

	elements := findAll(&root, transactionNames)
	if len(elements) == 0 {
		return nil, fmt.Errorf("%w: no transaction elements found (tried tag names %v in any casing)", decoder.ErrNoTransactions, transactionNames)
	}

	entries := make([]domain.StatementEntry, 0, len(elements))
	for i, elem := range elements {
		entry, err := decodeElement(elem)
		if err != nil {
			return nil, fmt.Errorf("%w: transaction element %d: %w", decoder.ErrMalformedRecord, i+1, err)
		}
		entries = append(entries, *entry)
	}

	return entries, nil
}

// decodeElement decodes one transaction element
func decodeElement(elem *node) (*domain.StatementEntry, error) {
	dateStr, ok := findFirst(elem, dateNames)
	if !ok || dateStr == "" {
		return nil, fmt.Errorf("missing date field (tried %v)", dateNames)
	}
	date, err := parseDate(dateStr)
	if err != nil {
		return nil, err
	}

	amountStr, ok := findFirst(elem, amountNames)
	if !ok || amountStr == "" {
		return nil, fmt.Errorf("missing amount field (tried %v)", amountNames)
	}
	amount, err := parseAmount(amountStr)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amountStr, err)
	}

	description, _ := findFirst(elem, descriptionNames)

	// Explicit type marker wins; the sign of the amount is the fallback
	direction := decoder.DirectionFromSign(amount)
	if marker, ok := findFirst(elem, typeNames); ok {
		switch strings.ToUpper(marker) {
		case "C", "CREDIT", "CREDITO", "INCOME", "RECEITA":
			direction = domain.DirectionIncome
		case "D", "DEBIT", "DEBITO", "EXPENSE", "DESPESA":
			direction = domain.DirectionExpense
		}
	}

	entry, err := domain.NewStatementEntry(date, description, amount, direction)
	if err != nil {
		return nil, err
	}

	if ref, ok := findFirst(elem, documentNames); ok {
		entry.SetDocumentRef(ref)
	}

	return entry, nil
}

// findAll walks the tree and collects elements matching the first candidate
// name that yields any matches. Later candidates are only tried when earlier
// ones match nothing, so one document never mixes spellings.
func findAll(root *node, candidates []string) []*node {
	for _, name := range candidates {
		var matches []*node
		collect(root, name, &matches)
		if len(matches) > 0 {
			return matches
		}
	}
	return nil
}

// collect gathers all descendants of n whose local name matches name
func collect(n *node, name string, out *[]*node) {
	for i := range n.Children {
		child := &n.Children[i]
		if strings.EqualFold(child.XMLName.Local, name) {
			*out = append(*out, child)
			continue
		}
		collect(child, name, out)
	}
}

// findFirst returns the text of the first child element matching any
// candidate name, in candidate priority order.
func findFirst(elem *node, candidates []string) (string, bool) {
	for _, name := range candidates {
		for i := range elem.Children {
			child := &elem.Children[i]
			if strings.EqualFold(child.XMLName.Local, name) {
				return strings.TrimSpace(child.Text), true
			}
		}
	}
	return "", false
}

// dateFormats are tried in order against the cleaned date string
var dateFormats = []struct {
	name   string
	layout string
}{
	{"DD/MM/YYYY", "02/01/2006"},
	{"YYYY-MM-DD", "2006-01-02"},
	{"YYYYMMDD", "20060102"},
}

// parseDate detects which of the supported date forms the string uses
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, f := range dateFormats {
		if t, err := time.Parse(f.layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q (expected DD/MM/YYYY, YYYY-MM-DD or YYYYMMDD)", s)
}

// parseAmount parses a decimal amount tolerating a comma decimal separator
func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ",") && !strings.Contains(s, ".") {
		s = strings.ReplaceAll(s, ",", ".")
	}
	return decimal.NewFromString(s)
}
