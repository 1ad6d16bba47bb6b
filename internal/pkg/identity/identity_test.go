package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "alice", Normalize("  Alice "))
	assert.Equal(t, "alice", Normalize("ALICE"))
	assert.Equal(t, "", Normalize("   "))
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(" Alice", "alice "))
	assert.True(t, Equal("BOB", "bob"))
	assert.False(t, Equal("alice", "bob"))
}

func TestIsValid(t *testing.T) {
	assert.True(t, IsValid("alice"))
	assert.True(t, IsValid(" a "))
	assert.False(t, IsValid(""))
	assert.False(t, IsValid("   "))
}
