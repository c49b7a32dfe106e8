package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/quillhq/quill/internal/log"
)

// Claims is the JWT payload issued by the auth frontend.
type Claims struct {
	UserID string `json:"uid"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

type authUserKey struct{}

// authUser is the identity attached to authenticated requests.
type authUser struct {
	ID    uuid.UUID
	Email string
}

// userFromContext retrieves the authenticated user.
func userFromContext(ctx context.Context) (authUser, bool) {
	u, ok := ctx.Value(authUserKey{}).(authUser)
	return u, ok
}

// parseToken validates a bearer token and extracts the user identity.
// Only HMAC signatures are accepted; anything else is an algorithm
// confusion attempt.
func parseToken(tokenString string, secret []byte) (authUser, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return authUser{}, fmt.Errorf("parsing token: %w", err)
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return authUser{}, fmt.Errorf("parsing user ID claim: %w", err)
	}
	return authUser{ID: userID, Email: claims.Email}, nil
}

// authMiddleware requires a valid bearer token and injects the user
// into the request context.
func authMiddleware(secret []byte, logger log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			tokenString, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || tokenString == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token", logger)
				return
			}

			user, err := parseToken(tokenString, secret)
			if err != nil {
				logger.Debug("token rejected", "error", err)
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token", logger)
				return
			}

			ctx := context.WithValue(r.Context(), authUserKey{}, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
