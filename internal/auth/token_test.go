package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestGenerateTokenFormat(t *testing.T) {
	token, hash, err := GenerateToken()
	require.NoError(t, err)

	assert.True(t, ValidTokenFormat(token))
	assert.Equal(t, HashToken(token), hash)

	// Two tokens never collide.
	other, _, err := GenerateToken()
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}

func TestValidTokenFormat(t *testing.T) {
	token, _, err := GenerateToken()
	require.NoError(t, err)

	assert.True(t, ValidTokenFormat(token))
	assert.False(t, ValidTokenFormat(""))
	assert.False(t, ValidTokenFormat("rio_short"))
	assert.False(t, ValidTokenFormat("xyz_"+token[len("rio_"):]))
}

func TestValidateAgainstAllowList(t *testing.T) {
	token, _, err := GenerateToken()
	require.NoError(t, err)

	svc := NewTokenService([]string{token}, zap.NewNop())
	assert.True(t, svc.Enabled())
	assert.True(t, svc.Validate(token))
	assert.False(t, svc.Validate("rio_bogus"))
	assert.False(t, svc.Validate(""))
}

func TestDisabledServiceAcceptsEverything(t *testing.T) {
	svc := NewTokenService(nil, zap.NewNop())
	assert.False(t, svc.Enabled())
	assert.True(t, svc.Validate("anything"))
	assert.True(t, svc.Validate(""))

	// Empty strings in the list do not count as tokens.
	svc = NewTokenService([]string{""}, zap.NewNop())
	assert.False(t, svc.Enabled())
}
