package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodius/graphsync/logger"
)

func signToken(t *testing.T, secret string, claims Claims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestValidateAcceptsWellSignedToken(t *testing.T) {
	h := New(true, "s3cret", logger.Nop())
	tok := signToken(t, "s3cret", Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		UserID:           "u1",
	})
	claims, err := h.Validate(tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	h := New(true, "s3cret", logger.Nop())
	tok := signToken(t, "wrong", Claims{UserID: "u1"})
	_, err := h.Validate(tok)
	assert.Error(t, err)
}

func TestMiddlewarePassesThroughWhenDisabled(t *testing.T) {
	h := New(false, "s3cret", logger.Nop())
	called := false
	wrapped := h.Middleware(func(w http.ResponseWriter, r *http.Request) { called = true })
	wrapped(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, called)
}

func TestMiddlewareRejectsMissingToken(t *testing.T) {
	h := New(true, "s3cret", logger.Nop())
	wrapped := h.Middleware(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	})
	rec := httptest.NewRecorder()
	wrapped(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
