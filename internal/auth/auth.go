// Package auth resolves the request's user identity. Account registration,
// login and session issuance live in a separate service; this side only
// verifies the bearer tokens that service mints.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"card-offers-api/internal/models"
)

type contextKey string

const userIDKey contextKey = "auth.user_id"

// Claims is the token payload shared with the auth service.
type Claims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

// Verifier validates bearer tokens and stamps the user id onto the request
// context.
type Verifier struct {
	secret []byte
	// allowDebugHeader accepts X-Debug-User in place of a token. Local
	// development only; never enable in a deployed config.
	allowDebugHeader bool
}

// NewVerifier creates a verifier for HS256 tokens signed with secret.
func NewVerifier(secret string, allowDebugHeader bool) *Verifier {
	return &Verifier{
		secret:           []byte(secret),
		allowDebugHeader: allowDebugHeader,
	}
}

// SignToken mints a token for userID. Used by the collector CLI and tests;
// the real auth service signs with the same shared secret.
func (v *Verifier) SignToken(userID string, ttl time.Duration) (string, error) {
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(v.secret)
}

// ParseToken verifies a token string and returns its claims.
func (v *Verifier) ParseToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if c, ok := token.Claims.(*Claims); ok && token.Valid && c.UserID != "" {
		return c, nil
	}
	return nil, errors.New("invalid token")
}

// Middleware authenticates the request and rejects it with 401 when no valid
// identity is present.
func (v *Verifier) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := v.resolve(r)
			if userID == "" {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(models.ErrorResponse{Error: "authentication required"})
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

func (v *Verifier) resolve(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		tokenStr := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
		if claims, err := v.ParseToken(tokenStr); err == nil {
			return claims.UserID
		}
	}

	if v.allowDebugHeader {
		if u := strings.TrimSpace(r.Header.Get("X-Debug-User")); u != "" {
			return u
		}
	}

	return ""
}

// WithUserID returns a context carrying the authenticated user id.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserID extracts the authenticated user id from the context.
func UserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey).(string)
	return userID, ok && userID != ""
}
