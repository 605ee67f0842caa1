package authorkey

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKey(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain name lowercased",
			input:    "John Smith",
			expected: "john smith",
		},
		{
			name:     "honorific stripped",
			input:    "Dr. John Smith",
			expected: "john smith",
		},
		{
			name:     "credential stripped",
			input:    "John Smith, PhD",
			expected: "john smith",
		},
		{
			name:     "honorific and credential together",
			input:    "Prof. Jane Doe M.D.",
			expected: "jane doe",
		},
		{
			name:     "generational suffix kept",
			input:    "Martin Luther King Jr.",
			expected: "martin luther king jr.",
		},
		{
			name:     "whitespace collapsed",
			input:    "  John   Smith  ",
			expected: "john smith",
		},
		{
			name:     "japanese name unchanged",
			input:    "村上春樹",
			expected: "村上春樹",
		},
		{
			name:     "empty name",
			input:    "",
			expected: Unknown,
		},
		{
			name:     "whitespace only",
			input:    "   ",
			expected: Unknown,
		},
		{
			name:     "single honorific keeps last word",
			input:    "Sir",
			expected: "sir",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Key(tt.input))
		})
	}
}

func TestKeyMergesSpellings(t *testing.T) {
	assert.Equal(t, Key("Dr. John Smith"), Key("john smith"))
	assert.Equal(t, Key("Jane Doe, PhD"), Key("JANE DOE"))
}
