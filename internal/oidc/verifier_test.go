package oidc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func sign(t *testing.T, secret string, claims Claims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return tok
}

func validClaims(sub string, roles ...string) Claims {
	return Claims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			Issuer:    "https://idp.example",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func TestVerifier_Verify(t *testing.T) {
	v, err := NewVerifier(Config{Secret: testSecret, Issuer: "https://idp.example"})
	require.NoError(t, err)

	id, err := v.Verify(sign(t, testSecret, validClaims("u1", "ADMIN")))
	require.NoError(t, err)
	assert.Equal(t, "u1", id.UserID)
	assert.True(t, id.HasRole("ADMIN"))
	assert.False(t, id.HasRole("PUBLIC"))
}

func TestVerifier_Rejects(t *testing.T) {
	v, err := NewVerifier(Config{Secret: testSecret, Issuer: "https://idp.example"})
	require.NoError(t, err)

	expired := validClaims("u1")
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))

	wrongIssuer := validClaims("u1")
	wrongIssuer.Issuer = "https://elsewhere"

	noExp := validClaims("u1")
	noExp.ExpiresAt = nil

	cases := map[string]string{
		"bad signature": sign(t, "other-secret", validClaims("u1")),
		"expired":       sign(t, testSecret, expired),
		"wrong issuer":  sign(t, testSecret, wrongIssuer),
		"no expiry":     sign(t, testSecret, noExp),
		"no subject":    sign(t, testSecret, validClaims("")),
		"garbage":       "abc.def.ghi",
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(tok)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestVerifier_FromRequest(t *testing.T) {
	v, err := NewVerifier(Config{Secret: testSecret})
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodPost, "/", nil)
	_, err = v.FromRequest(r)
	assert.ErrorIs(t, err, ErrMissingToken)

	r.Header.Set("Authorization", "Bearer "+sign(t, testSecret, validClaims("u9")))
	id, err := v.FromRequest(r)
	require.NoError(t, err)
	assert.Equal(t, "u9", id.UserID)
}

func TestNewVerifier_RequiresSecret(t *testing.T) {
	_, err := NewVerifier(Config{})
	assert.Error(t, err)
}

func TestIdentityContext(t *testing.T) {
	_, ok := IdentityFrom(context.Background())
	assert.False(t, ok)

	ctx := WithIdentity(context.Background(), Identity{UserID: "u1"})
	id, ok := IdentityFrom(ctx)
	require.True(t, ok)
	assert.Equal(t, "u1", id.UserID)
}
