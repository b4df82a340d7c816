package strutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxLen   int
		expected string
	}{
		{"empty string", "", 10, ""},
		{"short string", "hello", 10, "hello"},
		{"exact length", "hello", 5, "hello"},
		{"needs truncation", "hello world", 5, "hello..."},
		{"zero maxLen", "hello", 0, ""},
		{"negative maxLen", "hello", -1, ""},
		{"multi-byte", "héllo wörld", 7, "héllo w..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Truncate(tt.input, tt.maxLen))
		})
	}
}

func TestPrefix(t *testing.T) {
	assert.Equal(t, "", Prefix("abc", 0))
	assert.Equal(t, "abc", Prefix("abc", 10))
	assert.Equal(t, "ab", Prefix("abc", 2))

	long := strings.Repeat("ü", 150)
	got := Prefix(long, 100)
	assert.Equal(t, 100, len([]rune(got)))
}

func TestContainsAnyFold(t *testing.T) {
	w, ok := ContainsAnyFold("Can you RECOMMEND a therapist?", []string{"hotline", "recommend"})
	assert.True(t, ok)
	assert.Equal(t, "recommend", w)

	_, ok = ContainsAnyFold("just venting", []string{"hotline"})
	assert.False(t, ok)
}
