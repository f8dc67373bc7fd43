package whatsapp

import "strings"

// PhoneNormalizer converts raw phone strings into the bare digit form the
// Cloud API expects. Configured once at startup from the platform config.
type PhoneNormalizer struct {
	CountryCode string // prepended to bare local numbers, e.g. "91"
	LocalLength int    // digit count of a local number without country code
}

// Normalize strips every non-digit character, then prepends the country code
// when the remainder looks like a bare local number. Anything else passes
// through unchanged; malformed numbers are left for the provider to reject.
func (n PhoneNormalizer) Normalize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	if !strings.HasPrefix(digits, n.CountryCode) && len(digits) == n.LocalLength {
		return n.CountryCode + digits
	}
	return digits
}
