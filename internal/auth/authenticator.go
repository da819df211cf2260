package auth

import (
	"errors"
	"strings"
)

var (
	ErrMissingToken    = errors.New("missing authorization header")
	ErrMalformedHeader = errors.New("invalid authorization header format")
	ErrInvalidToken    = errors.New("invalid or expired token")
	ErrNotConfigured   = errors.New("authentication not configured")
)

// Identity is the authenticated caller.
type Identity struct {
	UserID    string
	Email     string
	Name      string
	PartnerID string
}

// Authenticator verifies bearer tokens with JWKS first and falls back to
// legacy HMAC tokens when a secret is configured.
type Authenticator struct {
	verifier  TokenVerifier
	jwtSecret string
}

// NewAuthenticator accepts a nil verifier or an empty secret, but not both
// for a useful result.
func NewAuthenticator(verifier TokenVerifier, jwtSecret string) *Authenticator {
	return &Authenticator{verifier: verifier, jwtSecret: jwtSecret}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrMissingToken
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", ErrMalformedHeader
	}
	return parts[1], nil
}

// Authenticate resolves the Authorization header value to an identity.
func (a *Authenticator) Authenticate(header string) (*Identity, error) {
	token, err := BearerToken(header)
	if err != nil {
		return nil, err
	}

	if a.verifier != nil {
		claims, err := a.verifier.Validate(token)
		if err == nil {
			return claims.Identity(), nil
		}
		if a.jwtSecret == "" {
			return nil, ErrInvalidToken
		}
	}

	if a.jwtSecret != "" {
		claims, err := ValidateLegacyToken(token, a.jwtSecret)
		if err != nil {
			return nil, ErrInvalidToken
		}
		return claims.Identity(), nil
	}

	return nil, ErrNotConfigured
}
