package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHMACSignatureService_SignAndVerify(t *testing.T) {
	svc := NewHMACSignatureService()

	payload := `{"account_id":"abc","amount":150000}`
	sig := svc.Sign("secret-key", payload)
	assert.NotEmpty(t, sig)
	assert.True(t, svc.Verify("secret-key", payload, sig))
}

func TestHMACSignatureService_WrongSecret(t *testing.T) {
	svc := NewHMACSignatureService()

	sig := svc.Sign("secret-key", "payload")
	assert.False(t, svc.Verify("other-secret", "payload", sig))
}

func TestHMACSignatureService_TamperedPayload(t *testing.T) {
	svc := NewHMACSignatureService()

	sig := svc.Sign("secret-key", `{"amount":150000}`)
	assert.False(t, svc.Verify("secret-key", `{"amount":999999}`, sig))
}

func TestHMACSignatureService_InvalidSignature(t *testing.T) {
	svc := NewHMACSignatureService()

	assert.False(t, svc.Verify("secret-key", "payload", "not-a-signature"))
	assert.False(t, svc.Verify("secret-key", "payload", ""))
}

func TestHMACSignatureService_BuildCanonicalString(t *testing.T) {
	svc := NewHMACSignatureService()

	canonical := svc.BuildCanonicalString("POST", "/api/v1/settlements", 1717000000, "nonce-123", `{"a":1}`)
	assert.Equal(t, "POST|/api/v1/settlements|1717000000|nonce-123|{\"a\":1}", canonical)
}

func TestHMACSignatureService_Deterministic(t *testing.T) {
	svc := NewHMACSignatureService()

	s1 := svc.Sign("k", "p")
	s2 := svc.Sign("k", "p")
	assert.Equal(t, s1, s2)
}
