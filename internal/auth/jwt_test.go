package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-core/internal/domain"
)

func sign(t *testing.T, secret string, method jwt.SigningMethod, claims Claims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return tok
}

func TestJWTValidator_Validate(t *testing.T) {
	v := NewJWTValidator("s3cret")
	tok := sign(t, "s3cret", jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u-42",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Email: "a@b.c",
		Roles: []string{domain.RoleAdmin},
	})

	p, err := v.Validate(tok)
	require.NoError(t, err)
	assert.Equal(t, "u-42", p.UserID)
	assert.Equal(t, "a@b.c", p.Email)
	assert.True(t, p.IsAdmin())
}

func TestJWTValidator_Rejects(t *testing.T) {
	v := NewJWTValidator("s3cret")
	future := jwt.NewNumericDate(time.Now().Add(time.Hour))

	cases := map[string]string{
		"wrong secret": sign(t, "other", jwt.SigningMethodHS256, Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u", ExpiresAt: future}}),
		"wrong alg":    sign(t, "s3cret", jwt.SigningMethodHS512, Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u", ExpiresAt: future}}),
		"expired": sign(t, "s3cret", jwt.SigningMethodHS256, Claims{RegisteredClaims: jwt.RegisteredClaims{
			Subject: "u", ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		}}),
		"no subject": sign(t, "s3cret", jwt.SigningMethodHS256, Claims{RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: future}}),
		"garbage":    "not-a-token",
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := v.Validate(tok)
			assert.ErrorIs(t, err, domain.ErrUnauthorized)
		})
	}

	var unconfigured *JWTValidator
	_, err := unconfigured.Validate("x")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestBearerToken(t *testing.T) {
	tok, err := BearerToken("Bearer abc.def")
	require.NoError(t, err)
	assert.Equal(t, "abc.def", tok)

	_, err = BearerToken("Basic abc")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = BearerToken("Bearer ")
	assert.Error(t, err)
}
