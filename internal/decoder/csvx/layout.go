package csvx

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed layout.yaml
var embeddedLayout []byte

// Layout describes the column contract of a delimited statement export. The
// exact contract is owned by the caller's format convention; the default
// layout ships embedded and custom layouts load from YAML.
//
// Columns are zero-based. TypeColumn and DocumentColumn may be -1 when the
// export carries no such column; with no type column the sign of the amount
// decides the direction.
type Layout struct {
	Delimiter         string   `yaml:"delimiter"`
	SkipHeader        bool     `yaml:"skip_header"`
	DateColumn        int      `yaml:"date_column"`
	DateFormat        string   `yaml:"date_format"` // Go reference layout, e.g. "02/01/2006"
	DescriptionColumn int      `yaml:"description_column"`
	AmountColumn      int      `yaml:"amount_column"`
	TypeColumn        int      `yaml:"type_column"`
	DocumentColumn    int      `yaml:"document_column"`
	CreditMarkers     []string `yaml:"credit_markers"`
	DebitMarkers      []string `yaml:"debit_markers"`
}

// Validate checks layout invariants before the layout is used for decoding
func (l *Layout) Validate() error {
	if l.Delimiter == "" {
		return fmt.Errorf("delimiter cannot be empty")
	}
	if len([]rune(l.Delimiter)) != 1 {
		return fmt.Errorf("delimiter must be a single character, got %q", l.Delimiter)
	}
	if l.DateFormat == "" {
		return fmt.Errorf("date_format cannot be empty")
	}
	if l.DateColumn < 0 {
		return fmt.Errorf("date_column must be >= 0, got %d", l.DateColumn)
	}
	if l.DescriptionColumn < 0 {
		return fmt.Errorf("description_column must be >= 0, got %d", l.DescriptionColumn)
	}
	if l.AmountColumn < 0 {
		return fmt.Errorf("amount_column must be >= 0, got %d", l.AmountColumn)
	}
	if l.TypeColumn < -1 {
		return fmt.Errorf("type_column must be -1 (absent) or >= 0, got %d", l.TypeColumn)
	}
	if l.DocumentColumn < -1 {
		return fmt.Errorf("document_column must be -1 (absent) or >= 0, got %d", l.DocumentColumn)
	}
	return nil
}

// minColumns returns how many fields a data row must carry to satisfy the
// layout. Optional columns count only when present.
func (l *Layout) minColumns() int {
	min := l.DateColumn
	for _, c := range []int{l.DescriptionColumn, l.AmountColumn, l.TypeColumn, l.DocumentColumn} {
		if c > min {
			min = c
		}
	}
	return min + 1
}

// isCreditMarker reports whether the type column value names a credit
func (l *Layout) isCreditMarker(v string) bool {
	return containsFold(l.CreditMarkers, v)
}

// isDebitMarker reports whether the type column value names a debit
func (l *Layout) isDebitMarker(v string) bool {
	return containsFold(l.DebitMarkers, v)
}

func containsFold(markers []string, v string) bool {
	for _, m := range markers {
		if strings.EqualFold(strings.TrimSpace(m), v) {
			return true
		}
	}
	return false
}

// newBaseLayout returns a layout with optional columns defaulted to absent,
// so YAML files may omit them.
func newBaseLayout() Layout {
	return Layout{
		Delimiter:      ",",
		TypeColumn:     -1,
		DocumentColumn: -1,
	}
}

// parseLayout unmarshals and validates YAML layout data
func parseLayout(data []byte) (*Layout, error) {
	layout := newBaseLayout()
	if err := yaml.Unmarshal(data, &layout); err != nil {
		return nil, fmt.Errorf("failed to parse YAML layout (check syntax, indentation, and field names): %w", err)
	}
	if err := layout.Validate(); err != nil {
		return nil, fmt.Errorf("invalid layout: %w", err)
	}
	return &layout, nil
}

// DefaultLayout returns the embedded column layout
func DefaultLayout() (*Layout, error) {
	layout, err := parseLayout(embeddedLayout)
	if err != nil {
		return nil, fmt.Errorf("failed to load embedded layout (possible binary corruption): %w", err)
	}
	return layout, nil
}

// LoadLayout loads a column layout from a filesystem path
func LoadLayout(path string) (*Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read layout file: %w", err)
	}
	layout, err := parseLayout(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load layout from %q: %w", path, err)
	}
	return layout, nil
}
