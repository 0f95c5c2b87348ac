package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTaxField(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantKind  TaxFieldKind
		wantCST   string
		wantValue string
	}{
		{"structured cst value", "060:1.234,56", TaxFieldStructured, "060", "1.234,56"},
		{"structured short cst", "0:100", TaxFieldStructured, "0", "100"},
		{"structured trims value", "41: isento ", TaxFieldStructured, "41", "isento"},
		{"raw free text", "isento", TaxFieldRaw, "", "isento"},
		{"raw trims", "  isento  ", TaxFieldRaw, "", "isento"},
		{"raw cst too long", "1234:100", TaxFieldRaw, "", "1234:100"},
		{"raw non-numeric cst", "abc:100", TaxFieldRaw, "", "abc:100"},
		{"raw empty value", "060:", TaxFieldRaw, "", "060:"},
		{"raw missing cst", ":100", TaxFieldRaw, "", ":100"},
		{"raw plain amount", "1.234,56", TaxFieldRaw, "", "1.234,56"},
		{"empty", "", TaxFieldRaw, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := ParseTaxField(tt.input)
			assert.Equal(t, tt.wantKind, f.Kind)
			assert.Equal(t, tt.wantCST, f.CST)
			assert.Equal(t, tt.wantValue, f.Value)
		})
	}
}

func TestTaxField_Canonical(t *testing.T) {
	assert.Equal(t, "060/1.234,56", ParseTaxField("060:1.234,56").Canonical())
	assert.Equal(t, "isento", ParseTaxField("isento").Canonical())

	// Canonicalisation is idempotent: the canonical shape parses raw.
	canon := ParseTaxField("060:1.234,56").Canonical()
	assert.Equal(t, canon, ParseTaxField(canon).Canonical())
}
