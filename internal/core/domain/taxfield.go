package domain

import "strings"

// TaxFieldKind discriminates the TaxField variant.
type TaxFieldKind int

const (
	// TaxFieldRaw is an unstructured value as extracted from the
	// document (free text, a bare amount, an OCR artefact).
	TaxFieldRaw TaxFieldKind = iota

	// TaxFieldStructured is a parsed CST/value pair.
	TaxFieldStructured
)

// TaxField is a tagged variant for loosely-typed fiscal metadata.
// Upstream extractors emit tax attributes either as structured
// cst/value pairs or as raw strings; ingestion normalises both shapes
// here so the core never branches on runtime type.
type TaxField struct {
	Kind TaxFieldKind

	// CST is the tax situation code. Set only for structured fields.
	CST string

	// Value is the field value. Always set.
	Value string
}

// ParseTaxField normalises a raw metadata value into a TaxField.
// Values of the form "cst:value" (the extractor's structured encoding)
// become structured fields; everything else stays raw.
func ParseTaxField(v string) TaxField {
	cst, rest, ok := strings.Cut(v, ":")
	if ok && cst != "" && rest != "" && len(cst) <= 3 && isDigits(cst) {
		return TaxField{Kind: TaxFieldStructured, CST: cst, Value: strings.TrimSpace(rest)}
	}
	return TaxField{Kind: TaxFieldRaw, Value: strings.TrimSpace(v)}
}

// Canonical returns the single canonical string shape persisted in
// chunk metadata: "cst/value" for structured fields, the trimmed value
// otherwise.
func (f TaxField) Canonical() string {
	if f.Kind == TaxFieldStructured {
		return f.CST + "/" + f.Value
	}
	return f.Value
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
