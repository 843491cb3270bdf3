package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPhone(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected string
	}{
		{"empty", "", ""},
		{"whitespace only", "   ", ""},
		{"ten digits", "5551234567", "+15551234567"},
		{"eleven digits leading one", "15551234567", "+15551234567"},
		{"already e164", "+15551234567", "+15551234567"},
		{"formatted us number", "(555) 123-4567", "+15551234567"},
		{"formatted with country code", "1-555-123-4567", "+15551234567"},
		{"international length kept", "445551234567", "+445551234567"},
		{"short fragment still prefixed", "12345", "+12345"},
		{"no digits", "ext.", ""},
		{"plus prefix returned unchanged", "+44 7911 123456", "+44 7911 123456"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Phone(tt.raw))
		})
	}
}

func TestPhone_Deterministic(t *testing.T) {
	inputs := []string{"5551234567", "+15551234567", "15551234567", "garbage"}
	for _, in := range inputs {
		assert.Equal(t, Phone(in), Phone(in))
	}
}

func TestPhone_EquivalentFormsCollapse(t *testing.T) {
	// The whole point: raw variants of the same number compare equal after
	// normalization on both ledgers.
	assert.Equal(t, Phone("15551234567"), Phone("+15551234567"))
	assert.Equal(t, "+15551234567", Phone("15551234567"))
	assert.Equal(t, Phone("(555) 123-4567"), Phone("555.123.4567"))
}
