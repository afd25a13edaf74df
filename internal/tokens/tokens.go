// Package tokens issues and validates the HS256 bearer tokens that
// authenticate calling principals (subjects and requesters) at the HTTP edge.
package tokens

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "scorepass/pkg/domain"
)

const issuer = "scorepass"

// Claims carries the principal identity inside a signed token.
type Claims struct {
	Principal string `json:"prn"`
	jwt.RegisteredClaims
}

// Manager signs and validates principal tokens.
type Manager struct {
	signingKey []byte
	ttl        time.Duration
}

// New creates a token manager. ttl bounds the token lifetime.
func New(signingKey string, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Manager{signingKey: []byte(signingKey), ttl: ttl}
}

// Issue signs a token for the given principal.
func (m *Manager) Issue(principal id.Principal, now time.Time) (string, error) {
	if principal.IsNil() {
		return "", fmt.Errorf("principal is required")
	}
	claims := Claims{
		Principal: string(principal),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   string(principal),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			ID:        uuid.New().String(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Validate parses a token and returns the calling principal.
func (m *Manager) Validate(tokenString string) (id.Principal, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.signingKey, nil
	}, jwt.WithIssuer(issuer), jwt.WithExpirationRequired())
	if err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid || claims.Principal == "" {
		return "", fmt.Errorf("invalid token")
	}
	return id.Principal(claims.Principal), nil
}
