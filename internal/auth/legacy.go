package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const legacyIssuer = "lessonforge-api"

// LegacyClaims are carried by HMAC-signed tokens issued by this service.
type LegacyClaims struct {
	UserID    string `json:"userId"`
	Email     string `json:"email"`
	PartnerID string `json:"partnerId,omitempty"`
	jwt.RegisteredClaims
}

func (c *LegacyClaims) Identity() *Identity {
	return &Identity{UserID: c.UserID, Email: c.Email, PartnerID: c.PartnerID}
}

// ValidateLegacyToken validates a token using HMAC signing
func ValidateLegacyToken(tokenString, secret string) (*LegacyClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &LegacyClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*LegacyClaims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// IssueLegacyToken signs an HMAC token for id. A zero ttl issues a token
// without expiry.
func IssueLegacyToken(secret string, id Identity, ttl time.Duration) (string, error) {
	claims := LegacyClaims{
		UserID:    id.UserID,
		Email:     id.Email,
		PartnerID: id.PartnerID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   legacyIssuer,
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	}
	if ttl != 0 {
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
