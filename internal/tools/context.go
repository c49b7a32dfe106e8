package tools

import (
	"context"

	"github.com/google/uuid"
)

type userIDKey struct{}

// ContextWithUserID stores the authenticated user's ID in context. The
// API layer injects it; document tools read it so created documents and
// suggestions belong to the requesting user.
func ContextWithUserID(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserIDFromContext retrieves the user ID from context. The bool is
// false when no user is bound.
func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(userIDKey{}).(uuid.UUID)
	return id, ok
}
