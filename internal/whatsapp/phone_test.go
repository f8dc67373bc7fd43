package whatsapp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPhoneNormalizer_Normalize(t *testing.T) {
	n := PhoneNormalizer{CountryCode: "91", LocalLength: 10}

	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"local number gets country code", "9876543210", "919876543210"},
		{"already prefixed is unchanged", "919876543210", "919876543210"},
		{"formatting characters stripped", "+91 98765-43210", "919876543210"},
		{"parentheses and dots stripped", "(987) 654.3210", "919876543210"},
		{"short number left as digits", "12345", "12345"},
		{"long unprefixed number left as digits", "4915112345678", "4915112345678"},
		{"empty input", "", ""},
		{"non digits only", "abc-+()", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, n.Normalize(tc.input))
		})
	}
}

func TestPhoneNormalizer_NormalizeIsIdempotent(t *testing.T) {
	n := PhoneNormalizer{CountryCode: "91", LocalLength: 10}

	once := n.Normalize("98765-43210")
	twice := n.Normalize(once)
	assert.Equal(t, once, twice)
}

func TestPhoneNormalizer_OtherCountryCode(t *testing.T) {
	n := PhoneNormalizer{CountryCode: "49", LocalLength: 11}

	assert.Equal(t, "4915112345678", n.Normalize("15112345678"))
	assert.Equal(t, "4915112345678", n.Normalize("+49 151 12345678"))
}
