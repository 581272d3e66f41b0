package auth

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signedToken(t *testing.T, secret, scope string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   "worker-1",
		"scope": scope,
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestVerifyRequestValidToken(t *testing.T) {
	verifier := NewVerifier(testSecret, false, "")
	req := httptest.NewRequest("POST", "/nurture/sweep", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, testSecret, "abm:read abm:write"))
	assert.NoError(t, verifier.VerifyRequest(req))
}

func TestVerifyRequestMissingScope(t *testing.T) {
	verifier := NewVerifier(testSecret, false, "")
	req := httptest.NewRequest("POST", "/nurture/sweep", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, testSecret, "abm:read"))
	assert.ErrorIs(t, verifier.VerifyRequest(req), ErrMissingScope)
}

func TestVerifyRequestWrongSecret(t *testing.T) {
	verifier := NewVerifier(testSecret, false, "")
	req := httptest.NewRequest("POST", "/nurture/sweep", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, "other-secret", "abm:write"))
	assert.Error(t, verifier.VerifyRequest(req))
}

func TestVerifyRequestNoCredentials(t *testing.T) {
	verifier := NewVerifier(testSecret, false, "")
	req := httptest.NewRequest("POST", "/nurture/sweep", nil)
	assert.ErrorIs(t, verifier.VerifyRequest(req), ErrMissingCredentials)
}

func TestVerifyRequestDebugToken(t *testing.T) {
	verifier := NewVerifier(testSecret, true, "letmein")

	req := httptest.NewRequest("POST", "/nurture/sweep", nil)
	req.Header.Set("X-Debug-Token", "letmein")
	assert.NoError(t, verifier.VerifyRequest(req))

	req.Header.Set("X-Debug-Token", "wrong")
	assert.Error(t, verifier.VerifyRequest(req))

	// Debug tokens are ignored when the escape hatch is off.
	disabled := NewVerifier(testSecret, false, "letmein")
	req.Header.Set("X-Debug-Token", "letmein")
	assert.Error(t, disabled.VerifyRequest(req))
}
