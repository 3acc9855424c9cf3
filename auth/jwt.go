// Package auth is the collab backbone's authentication boundary: a single
// bearer-JWT check in front of the WebSocket upgrade endpoint. Grounded on
// the teacher's server/auth.Handler shape (constructor + Middleware
// wrapper + RegisterRoutes) narrowed from WebAuthn ceremonies to a JWT
// AuthProvider, since spec.md frames auth as an injected collaborator
// rather than a full identity system.
package auth

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/nodius/graphsync/errors"
)

// Claims is the minimal claim set this backbone trusts: a subject (the
// collaborative-session userId) and the standard registered claims for
// expiry/issuer checks.
type Claims struct {
	jwt.RegisteredClaims
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

// Handler validates bearer JWTs signed with a shared secret. Enabled
// toggles whether Middleware actually enforces anything, so a
// single-process/dev deployment can run with Auth.Enabled=false.
type Handler struct {
	enabled bool
	secret  []byte
	log     *zap.SugaredLogger
}

// New constructs a Handler. secret is the HMAC signing key from
// config.AuthConfig.JWTSecret.
func New(enabled bool, secret string, log *zap.SugaredLogger) *Handler {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Handler{enabled: enabled, secret: []byte(secret), log: log}
}

// Validate parses and verifies a bearer token, returning its claims.
func (h *Handler) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Wrapf(errors.ErrUnauthorized, "unexpected signing method %v", t.Header["alg"])
		}
		return h.secret, nil
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrUnauthorized, err.Error())
	}
	if !token.Valid {
		return nil, errors.ErrUnauthorized
	}
	return claims, nil
}

// Middleware enforces a valid bearer token on the wrapped handler when
// auth is enabled; it is a no-op pass-through otherwise, so a single-node
// dev deployment doesn't need to mint tokens.
func (h *Handler) Middleware(next http.HandlerFunc) http.HandlerFunc {
	if !h.enabled {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		tokenString := bearerToken(r)
		if tokenString == "" {
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}
		claims, err := h.Validate(tokenString)
		if err != nil {
			h.log.Debugw("rejected request with invalid token", "error", err)
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		r.Header.Set("X-Collab-User-Id", claims.UserID)
		next(w, r)
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(h, "Bearer ")
}
