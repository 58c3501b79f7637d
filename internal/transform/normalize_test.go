package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTaxID(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want *string
	}{
		{"formatted cpf", "123.456.789-01", strPtr("12345678901")},
		{"short cpf padded", "1234567", strPtr("00001234567")},
		{"formatted cnpj", "12.345.678/0001-90", strPtr("12345678000190")},
		{"twelve digits padded to cnpj", "123456789012", strPtr("00123456789012")},
		{"empty", "", nil},
		{"only punctuation", "..-/", nil},
		{"too long", "123456789012345", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeTaxID(tt.in))
		})
	}
}

func TestPersonTypeFor(t *testing.T) {
	assert.Equal(t, strPtr("F"), PersonTypeFor("F", nil), "declared type wins")
	assert.Equal(t, strPtr("J"), PersonTypeFor("J", strPtr("12345678901")))
	assert.Equal(t, strPtr("F"), PersonTypeFor("", strPtr("12345678901")))
	assert.Equal(t, strPtr("J"), PersonTypeFor("", strPtr("12345678000190")))
	assert.Nil(t, PersonTypeFor("", nil))
	assert.Nil(t, PersonTypeFor("X", nil), "unknown declared type is not kept")
}

func TestFormatPostalCode(t *testing.T) {
	assert.Equal(t, strPtr("01.310-100"), FormatPostalCode("01310-100"))
	assert.Equal(t, strPtr("01.310-100"), FormatPostalCode("01310100"))
	assert.Nil(t, FormatPostalCode("1310100"), "seven digits is invalid")
	assert.Nil(t, FormatPostalCode(""))
}

func TestFormatPhone(t *testing.T) {
	assert.Equal(t, strPtr("(11) 98765-4321"), FormatPhone("11987654321"))
	assert.Equal(t, strPtr("(11) 98765-4321"), FormatPhone("(11) 9 8765-4321"))
	assert.Equal(t, strPtr("(11) 3456-7890"), FormatPhone("1134567890"))
	assert.Nil(t, FormatPhone("987654321"), "nine digits is invalid")
	assert.Nil(t, FormatPhone(""))
}
