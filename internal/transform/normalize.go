package transform

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

var nonDigits = regexp.MustCompile(`\D`)

// NormalizeTaxID strips formatting from a CPF/CNPJ and left-pads it to the
// canonical length: 11 digits for individuals, 14 for organizations. Anything
// longer than 14 digits is unusable and comes back nil.
func NormalizeTaxID(raw string) *string {
	digits := nonDigits.ReplaceAllString(strings.TrimSpace(raw), "")
	if digits == "" {
		return nil
	}
	switch {
	case len(digits) <= 11:
		return strPtr(padLeft(digits, 11))
	case len(digits) <= 14:
		return strPtr(padLeft(digits, 14))
	default:
		return nil
	}
}

// PersonTypeFor keeps an already-valid declared type and otherwise derives it
// from the normalized document length: 11 digits is F, 14 is J.
func PersonTypeFor(declared string, taxID *string) *string {
	if declared == "F" || declared == "J" {
		return strPtr(declared)
	}
	if taxID == nil {
		return nil
	}
	switch len(*taxID) {
	case 11:
		return strPtr("F")
	case 14:
		return strPtr("J")
	}
	return nil
}

// FormatPostalCode renders an 8-digit CEP as NN.NNN-NNN. Anything that does
// not reduce to exactly 8 digits comes back nil.
func FormatPostalCode(raw string) *string {
	digits := nonDigits.ReplaceAllString(strings.TrimSpace(raw), "")
	if len(digits) != 8 {
		return nil
	}
	return strPtr(fmt.Sprintf("%s.%s-%s", digits[:2], digits[2:5], digits[5:]))
}

// FormatPhone renders an 11-digit mobile number as (NN) NNNNN-NNNN and a
// 10-digit landline as (NN) NNNN-NNNN. Other lengths come back nil.
func FormatPhone(raw string) *string {
	digits := nonDigits.ReplaceAllString(strings.TrimSpace(raw), "")
	switch len(digits) {
	case 11:
		return strPtr(fmt.Sprintf("(%s) %s-%s", digits[:2], digits[2:7], digits[7:]))
	case 10:
		return strPtr(fmt.Sprintf("(%s) %s-%s", digits[:2], digits[2:6], digits[6:]))
	}
	return nil
}

func padLeft(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}

func strPtr(s string) *string { return &s }

func intPtr(n int) *int { return &n }

// strOrNil treats blank strings as absent values.
func strOrNil(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }

func strPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
