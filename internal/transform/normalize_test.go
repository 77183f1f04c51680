package transform

import "testing"

func TestNormalizeDescription(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "lowercases",
			input:    "PIX TRANSFER",
			expected: "pix transfer",
		},
		{
			name:     "strips accents",
			input:    "TRANSFERÊNCIA Recebida",
			expected: "transferencia recebida",
		},
		{
			name:     "collapses inner whitespace",
			input:    "  Pagamento   de \t boleto ",
			expected: "pagamento de boleto",
		},
		{
			name:     "cedilla and tilde",
			input:    "Aplicação Poupança",
			expected: "aplicacao poupanca",
		},
		{
			name:     "empty stays empty",
			input:    "",
			expected: "",
		},
		{
			name:     "already normalized",
			input:    "netflix",
			expected: "netflix",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeDescription(tt.input); got != tt.expected {
				t.Errorf("NormalizeDescription(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
