package auth

import (
	"context"

	"github.com/google/uuid"
)

type callerKey struct{}

// ContextWithUserID records the authenticated caller on the context.
func ContextWithUserID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, callerKey{}, id)
}

// UserIDFromContext returns the authenticated caller's id, if any.
func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(callerKey{}).(uuid.UUID)
	return id, ok
}
