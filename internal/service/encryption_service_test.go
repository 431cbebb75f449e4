package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 32 bytes hex-encoded = 64 chars
const testAESKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func TestAESEncryptionService_RoundTrip(t *testing.T) {
	svc, err := NewAESEncryptionService(testAESKey)
	require.NoError(t, err)

	plaintext := "9704123456781234"
	ciphertext, err := svc.Encrypt(plaintext)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, ciphertext)

	decrypted, err := svc.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestAESEncryptionService_UniqueNonce(t *testing.T) {
	svc, err := NewAESEncryptionService(testAESKey)
	require.NoError(t, err)

	c1, err := svc.Encrypt("same account number")
	require.NoError(t, err)
	c2, err := svc.Encrypt("same account number")
	require.NoError(t, err)
	assert.NotEqual(t, c1, c2, "GCM nonce must differ per encryption")
}

func TestAESEncryptionService_InvalidKey(t *testing.T) {
	_, err := NewAESEncryptionService("tooshort")
	assert.Error(t, err)

	_, err = NewAESEncryptionService(strings.Repeat("z", 64))
	assert.Error(t, err, "non-hex key must be rejected")
}

func TestAESEncryptionService_TamperedCiphertext(t *testing.T) {
	svc, err := NewAESEncryptionService(testAESKey)
	require.NoError(t, err)

	ciphertext, err := svc.Encrypt("9704123456781234")
	require.NoError(t, err)

	tampered := ciphertext[:len(ciphertext)-2] + "00"
	if tampered == ciphertext {
		tampered = ciphertext[:len(ciphertext)-2] + "11"
	}
	_, err = svc.Decrypt(tampered)
	assert.Error(t, err, "GCM authentication must catch tampering")
}

func TestAESEncryptionService_InvalidCiphertext(t *testing.T) {
	svc, err := NewAESEncryptionService(testAESKey)
	require.NoError(t, err)

	_, err = svc.Decrypt("not-hex")
	assert.Error(t, err)

	_, err = svc.Decrypt("abcd")
	assert.Error(t, err, "ciphertext shorter than the nonce must be rejected")
}
