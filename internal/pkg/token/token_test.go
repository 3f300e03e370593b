package token

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewVerificationToken_ShapeAndUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		tok, err := NewVerificationToken()
		require.NoError(t, err)
		assert.True(t, IsWellFormed(tok))
		assert.False(t, seen[tok], "duplicate token generated")
		seen[tok] = true
	}
}

func TestNewRefreshToken_Shape(t *testing.T) {
	tok, err := NewRefreshToken()
	require.NoError(t, err)
	assert.Len(t, tok, 64)
}

func TestIsWellFormed(t *testing.T) {
	valid := strings.Repeat("0af9", 16)
	assert.True(t, IsWellFormed(valid))
	assert.False(t, IsWellFormed(""))
	assert.False(t, IsWellFormed(valid[:63]))
	assert.False(t, IsWellFormed(valid+"a"))
	assert.False(t, IsWellFormed(strings.ToUpper(valid)))
	assert.False(t, IsWellFormed(strings.Repeat("0afg", 16)))
}
