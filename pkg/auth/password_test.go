package auth_test

import (
	"strings"
	"testing"

	"github.com/dhartley/toolshed/pkg/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword_RoundTrip(t *testing.T) {
	hash, err := auth.HashPassword("correct horse battery staple")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse battery staple", hash)

	assert.NoError(t, auth.ComparePassword(hash, "correct horse battery staple"))
	assert.Error(t, auth.ComparePassword(hash, "wrong password"))
}

func TestHashPassword_RejectsEmpty(t *testing.T) {
	_, err := auth.HashPassword("")
	assert.Error(t, err)
}

func TestValidatePassword_LengthBounds(t *testing.T) {
	assert.Error(t, auth.ValidatePassword("short"))
	assert.Error(t, auth.ValidatePassword(strings.Repeat("x", auth.MaxPasswordLen+1)))
	assert.NoError(t, auth.ValidatePassword("long enough password"))
}
