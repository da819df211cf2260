package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"github.com/lessonforge/api/internal/config"
)

const discoveryTimeout = 15 * time.Second

// TokenVerifier validates tokens issued by an external identity provider.
type TokenVerifier interface {
	Validate(tokenString string) (*Claims, error)
	Close() error
}

// Claims are the Zitadel claims the service reads. The resource owner is the
// organization, used as the partner a user generates videos for.
type Claims struct {
	UserID         string `json:"sub"`
	Email          string `json:"email,omitempty"`
	Name           string `json:"name,omitempty"`
	OrganizationID string `json:"urn:zitadel:iam:user:resourceowner:id,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) Identity() *Identity {
	return &Identity{UserID: c.UserID, Email: c.Email, Name: c.Name, PartnerID: c.OrganizationID}
}

// JWKSVerifier checks RS/ES signed tokens against the issuer's published key
// set, which keyfunc refreshes in the background until Close.
type JWKSVerifier struct {
	jwks    keyfunc.Keyfunc
	options []jwt.ParserOption
	cancel  context.CancelFunc
}

// NewJWKSVerifier discovers the key set of cfg.Issuer through its OpenID
// configuration.
func NewJWKSVerifier(cfg *config.ZitadelConfig) (*JWKSVerifier, error) {
	if cfg.Issuer == "" {
		return nil, errors.New("zitadel issuer is required")
	}
	issuer := strings.TrimSuffix(cfg.Issuer, "/")

	discoverCtx, cancelDiscover := context.WithTimeout(context.Background(), discoveryTimeout)
	defer cancelDiscover()
	jwksURL, err := discoverJWKSURL(discoverCtx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover JWKS URL: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	jwks, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create JWKS keyfunc: %w", err)
	}

	options := []jwt.ParserOption{
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	}
	if cfg.ClientID != "" {
		options = append(options, jwt.WithAudience(cfg.ClientID))
	}

	return &JWKSVerifier{jwks: jwks, options: options, cancel: cancel}, nil
}

func discoverJWKSURL(ctx context.Context, issuer string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, issuer+"/.well-known/openid-configuration", nil)
	if err != nil {
		return "", fmt.Errorf("failed to create discovery request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch discovery document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("discovery endpoint returned status %d", resp.StatusCode)
	}

	var doc struct {
		Issuer  string `json:"issuer"`
		JWKSURI string `json:"jwks_uri"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return "", fmt.Errorf("failed to decode discovery document: %w", err)
	}
	if doc.Issuer != "" && strings.TrimSuffix(doc.Issuer, "/") != issuer {
		return "", fmt.Errorf("discovery document is for issuer %q", doc.Issuer)
	}
	if doc.JWKSURI == "" {
		return "", errors.New("jwks_uri not found in discovery document")
	}
	return doc.JWKSURI, nil
}

// Validate verifies signature, issuer, expiry and, when configured, audience.
func (v *JWKSVerifier) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, v.jwks.Keyfunc, v.options...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Close stops the background key refresh.
func (v *JWKSVerifier) Close() error {
	v.cancel()
	return nil
}
