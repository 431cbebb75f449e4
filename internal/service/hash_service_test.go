package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArgon2HashService_HashAndVerify(t *testing.T) {
	svc := NewArgon2HashService()

	hash, err := svc.Hash("admin-service-token")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$"))

	ok, err := svc.Verify("admin-service-token", hash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestArgon2HashService_WrongSecret(t *testing.T) {
	svc := NewArgon2HashService()

	hash, err := svc.Hash("admin-service-token")
	require.NoError(t, err)

	ok, err := svc.Verify("wrong-token", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestArgon2HashService_UniqueSalt(t *testing.T) {
	svc := NewArgon2HashService()

	h1, err := svc.Hash("same-token")
	require.NoError(t, err)
	h2, err := svc.Hash("same-token")
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2, "salt must differ per hash")
}

func TestArgon2HashService_MalformedHash(t *testing.T) {
	svc := NewArgon2HashService()

	_, err := svc.Verify("token", "not-an-argon2-hash")
	assert.Error(t, err)

	_, err = svc.Verify("token", "$argon2id$v=19$missing-parts")
	assert.Error(t, err)
}
