package csvx

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultLayout(t *testing.T) {
	layout, err := DefaultLayout()
	if err != nil {
		t.Fatalf("DefaultLayout() error = %v", err)
	}

	if layout.Delimiter != "," {
		t.Errorf("Delimiter = %q, want %q", layout.Delimiter, ",")
	}
	if !layout.SkipHeader {
		t.Error("SkipHeader = false, want true")
	}
	if layout.DateFormat != "02/01/2006" {
		t.Errorf("DateFormat = %q, want %q", layout.DateFormat, "02/01/2006")
	}
	if layout.DocumentColumn != -1 {
		t.Errorf("DocumentColumn = %d, want -1 (absent)", layout.DocumentColumn)
	}
	if !layout.isCreditMarker("credito") {
		t.Error("isCreditMarker(\"credito\") = false, want true (case-insensitive)")
	}
	if !layout.isDebitMarker("D") {
		t.Error("isDebitMarker(\"D\") = false, want true")
	}
}

func TestLayoutValidate(t *testing.T) {
	valid := Layout{
		Delimiter:         ",",
		DateColumn:        0,
		DateFormat:        "02/01/2006",
		DescriptionColumn: 1,
		AmountColumn:      2,
		TypeColumn:        -1,
		DocumentColumn:    -1,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() on valid layout: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Layout)
	}{
		{"empty delimiter", func(l *Layout) { l.Delimiter = "" }},
		{"multi-char delimiter", func(l *Layout) { l.Delimiter = ",," }},
		{"empty date format", func(l *Layout) { l.DateFormat = "" }},
		{"negative date column", func(l *Layout) { l.DateColumn = -1 }},
		{"negative amount column", func(l *Layout) { l.AmountColumn = -1 }},
		{"type column below -1", func(l *Layout) { l.TypeColumn = -2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			layout := valid
			tt.mutate(&layout)
			if err := layout.Validate(); err == nil {
				t.Errorf("Validate() expected error for %s", tt.name)
			}
		})
	}
}

func TestLoadLayout(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "layout.yaml")
	content := `delimiter: ";"
skip_header: false
date_column: 1
date_format: "2006-01-02"
description_column: 0
amount_column: 2
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write layout file: %v", err)
	}

	layout, err := LoadLayout(path)
	if err != nil {
		t.Fatalf("LoadLayout() error = %v", err)
	}
	if layout.Delimiter != ";" {
		t.Errorf("Delimiter = %q, want %q", layout.Delimiter, ";")
	}
	// Omitted optional columns default to absent
	if layout.TypeColumn != -1 {
		t.Errorf("TypeColumn = %d, want -1", layout.TypeColumn)
	}
	if layout.DocumentColumn != -1 {
		t.Errorf("DocumentColumn = %d, want -1", layout.DocumentColumn)
	}
}

func TestLoadLayout_Invalid(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
	}{
		{"broken yaml", "delimiter: [unclosed"},
		{"fails validation", "delimiter: \"\"\ndate_format: \"02/01/2006\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatalf("failed to write layout file: %v", err)
			}
			if _, err := LoadLayout(path); err == nil {
				t.Error("LoadLayout() expected error")
			}
		})
	}
}

func TestLoadLayout_MissingFile(t *testing.T) {
	if _, err := LoadLayout(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("LoadLayout() expected error for missing file")
	}
}
