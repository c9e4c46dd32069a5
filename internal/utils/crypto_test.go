// internal/utils/crypto_test.go
package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateShareKey(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		key, err := GenerateShareKey()
		require.NoError(t, err)
		assert.Len(t, key, 12)
		assert.False(t, seen[key], "share keys must not repeat")
		seen[key] = true
	}
}

func TestGenerateRandomString(t *testing.T) {
	s, err := GenerateRandomString(32)
	require.NoError(t, err)
	assert.Len(t, s, 32)

	for _, r := range s {
		assert.True(t,
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'),
			"unexpected character %q", r)
	}
}

func TestHashString(t *testing.T) {
	a := HashString("hello")
	b := HashString("hello")
	c := HashString("world")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64) // hex-encoded sha256
}
