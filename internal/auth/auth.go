package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// WriteScope is required on every mutating endpoint.
const WriteScope = "abm:write"

var (
	ErrMissingCredentials = errors.New("authentication required")
	ErrMissingScope       = errors.New("missing required scope")
)

// Verifier authenticates write requests. Tokens are HS256 JWTs carrying a
// space-separated "scope" claim. A debug token header can bypass JWT
// verification in non-production deployments.
type Verifier struct {
	secret          []byte
	allowDebugToken bool
	debugToken      string
}

func NewVerifier(secret string, allowDebugToken bool, debugToken string) *Verifier {
	return &Verifier{
		secret:          []byte(secret),
		allowDebugToken: allowDebugToken,
		debugToken:      debugToken,
	}
}

// VerifyRequest checks the request's credentials and required scope.
func (v *Verifier) VerifyRequest(r *http.Request) error {
	if v.allowDebugToken {
		if token := r.Header.Get("X-Debug-Token"); token != "" && token == v.debugToken {
			return nil
		}
	}

	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return ErrMissingCredentials
	}
	return v.verifyToken(strings.TrimPrefix(authHeader, "Bearer "))
}

func (v *Verifier) verifyToken(tokenStr string) error {
	if len(v.secret) == 0 {
		return errors.New("no auth secret configured")
	}

	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return fmt.Errorf("token parse error: %w", err)
	}
	if !token.Valid {
		return errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return errors.New("invalid claims")
	}
	scope, _ := claims["scope"].(string)
	for _, s := range strings.Fields(scope) {
		if s == WriteScope {
			return nil
		}
	}
	return ErrMissingScope
}
