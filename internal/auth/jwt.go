package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"storefront-core/internal/domain"
)

// Claims are the JWT claims issued by the identity service.
type Claims struct {
	jwt.RegisteredClaims
	Email string   `json:"email,omitempty"`
	Roles []string `json:"roles,omitempty"`
}

// JWTValidator checks HS256 bearer tokens against a shared secret.
type JWTValidator struct {
	secret []byte
	leeway time.Duration
}

func NewJWTValidator(secret string) *JWTValidator {
	if secret == "" {
		return nil
	}
	return &JWTValidator{secret: []byte(secret), leeway: 30 * time.Second}
}

// Validate parses tokenStr and returns the caller it identifies. Every failure wraps domain.ErrUnauthorized.
func (v *JWTValidator) Validate(tokenStr string) (domain.Principal, error) {
	if v == nil {
		return domain.Principal{}, fmt.Errorf("%w: authentication not configured", domain.ErrUnauthorized)
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithLeeway(v.leeway))
	if err != nil {
		return domain.Principal{}, fmt.Errorf("%w: %w", domain.ErrUnauthorized, err)
	}
	if !token.Valid {
		return domain.Principal{}, fmt.Errorf("%w: invalid token", domain.ErrUnauthorized)
	}
	if claims.Subject == "" {
		return domain.Principal{}, fmt.Errorf("%w: token subject is required", domain.ErrUnauthorized)
	}
	return domain.Principal{UserID: claims.Subject, Email: claims.Email, Roles: claims.Roles}, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", fmt.Errorf("%w: expected 'Bearer <token>'", domain.ErrUnauthorized)
	}
	return strings.TrimSpace(token), nil
}
