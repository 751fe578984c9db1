package handlers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateEventCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code, err := generateEventCode()
		require.NoError(t, err)
		assert.Len(t, code, 6)
		for _, ch := range code {
			assert.True(t, strings.ContainsRune(codeAlphabet, ch),
				"unexpected character %q in code %s", ch, code)
		}
		seen[code] = true
	}
	// 36^6 codes; 100 draws colliding would point at a broken generator.
	assert.Greater(t, len(seen), 95)
}
