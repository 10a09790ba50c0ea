// Package auth issues the settings nonce the admin app sends with every AJAX
// call and checks the admin key that opens a session.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// NonceAction scopes a nonce to the settings endpoints.
const NonceAction = "pixelflow_settings_nonce"

// CapManageOptions is the capability every settings action requires.
const CapManageOptions = "manage_options"

// NonceTTL matches the lifetime of a WordPress nonce tick pair.
const NonceTTL = 12 * time.Hour

const issuer = "pixelflow-proxy"

var (
	ErrInvalidNonce = errors.New("invalid nonce")
	ErrExpiredNonce = errors.New("nonce expired")
	ErrInvalidKey   = errors.New("invalid admin key")
)

// Claims carried by a settings nonce.
type Claims struct {
	Action       string   `json:"action"`
	Capabilities []string `json:"caps,omitempty"`
	jwt.RegisteredClaims
}

// Can reports whether the nonce grants capability.
func (c *Claims) Can(capability string) bool {
	return slices.Contains(c.Capabilities, capability)
}

// Nonces signs and verifies settings nonces for one site.
type Nonces struct {
	secret []byte
	site   string
	ttl    time.Duration
	now    func() time.Time
}

// NewNonces returns a signer using an HS256 secret. The site id is the audience.
func NewNonces(secret, site string) *Nonces {
	return &Nonces{secret: []byte(secret), site: site, ttl: NonceTTL, now: time.Now}
}

// Issue signs a nonce for subject holding caps.
func (n *Nonces) Issue(subject string, caps ...string) (string, error) {
	if len(n.secret) == 0 {
		return "", errors.New("nonce secret not configured")
	}
	now := n.now()
	claims := Claims{
		Action:       NonceAction,
		Capabilities: caps,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings{n.site},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(n.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(n.secret)
	if err != nil {
		return "", fmt.Errorf("sign nonce: %w", err)
	}
	return signed, nil
}

// Verify checks signature, expiry, audience and action.
func (n *Nonces) Verify(token string) (*Claims, error) {
	if token == "" || len(n.secret) == 0 {
		return nil, ErrInvalidNonce
	}
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return n.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithAudience(n.site),
		jwt.WithTimeFunc(n.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredNonce
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidNonce, err)
	}
	if claims.Action != NonceAction {
		return nil, ErrInvalidNonce
	}
	return &claims, nil
}

// AdminKey checks presented keys against a bcrypt hash. An empty hash
// rejects every key.
type AdminKey struct {
	hash []byte
}

// NewAdminKey wraps a bcrypt hash from configuration.
func NewAdminKey(hash string) *AdminKey {
	return &AdminKey{hash: []byte(strings.TrimSpace(hash))}
}

// Check returns ErrInvalidKey unless key matches the hash.
func (k *AdminKey) Check(key string) error {
	if len(k.hash) == 0 || key == "" {
		return ErrInvalidKey
	}
	if err := bcrypt.CompareHashAndPassword(k.hash, []byte(key)); err != nil {
		return ErrInvalidKey
	}
	return nil
}

// HashKey produces the hash to configure for key.
func HashKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash admin key: %w", err)
	}
	return string(hash), nil
}

// BearerToken extracts the token from an Authorization: Bearer header.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}
