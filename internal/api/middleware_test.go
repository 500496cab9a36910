package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valuelens/screener/internal/access"
	"github.com/valuelens/screener/internal/api/handlers"
	"github.com/valuelens/screener/pkg/logger"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims jwt.MapClaims, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func captureEntitlement(t *testing.T, authHeader string) access.Entitlement {
	t.Helper()

	var got access.Entitlement
	probe := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = handlers.Entitlement(r)
	})

	req := httptest.NewRequest("GET", "/api/screener/sp500", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}

	authMiddleware(testSecret, logger.Nop())(probe).ServeHTTP(httptest.NewRecorder(), req)
	return got
}

func TestAuthMiddlewareResolvesClaims(t *testing.T) {
	token := signToken(t, jwt.MapClaims{
		"sub":           "u1",
		"tier":          "pro",
		"allowOverride": true,
	}, testSecret)

	ent := captureEntitlement(t, "Bearer "+token)
	assert.Equal(t, "u1", ent.UserID)
	assert.Equal(t, "pro", ent.Tier)
	assert.True(t, ent.AllowOverride)
}

func TestAuthMiddlewareMissingTokenIsAnonymousFree(t *testing.T) {
	ent := captureEntitlement(t, "")
	assert.Empty(t, ent.UserID)
	assert.Equal(t, "free", ent.Tier)
	assert.False(t, ent.AllowOverride)
}

func TestAuthMiddlewareBadSignatureIsAnonymousFree(t *testing.T) {
	token := signToken(t, jwt.MapClaims{"sub": "u1", "tier": "pro"}, "wrong-secret")

	ent := captureEntitlement(t, "Bearer "+token)
	assert.Empty(t, ent.UserID)
	assert.Equal(t, "free", ent.Tier)
}

func TestAuthMiddlewarePartialClaims(t *testing.T) {
	token := signToken(t, jwt.MapClaims{"sub": "u2"}, testSecret)

	ent := captureEntitlement(t, "Bearer "+token)
	assert.Equal(t, "u2", ent.UserID)
	assert.Equal(t, "free", ent.Tier)
}
