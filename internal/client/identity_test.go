package client

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genba-dispatch/dispatch/backend/internal/presence"
)

func TestIdentity(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		Name:             "王伟",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "emp-1"},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	editor, err := Identity(token)
	require.NoError(t, err)
	assert.Equal(t, presence.Editor{UserID: "emp-1", Name: "王伟"}, editor)

	anonymous, err := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{Name: "王伟"}).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = Identity(anonymous)
	assert.Error(t, err)

	_, err = Identity("not-a-token")
	assert.Error(t, err)
}
