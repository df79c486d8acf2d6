package contextkeys

import (
	"context"

	"github.com/vjpiles/backend/internal/domain"
)

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey string

const (
	// UserID is the context key for the authenticated user's ID.
	UserID contextKey = "userID"
	// UserEmail is the context key for the authenticated user's email.
	UserEmail contextKey = "userEmail"
	// UserRole is the context key for the authenticated user's role.
	UserRole contextKey = "userRole"
)

// WithIdentity stores identity in ctx.
func WithIdentity(ctx context.Context, identity *domain.Identity) context.Context {
	ctx = context.WithValue(ctx, UserID, identity.UserID)
	ctx = context.WithValue(ctx, UserEmail, identity.Email)
	return context.WithValue(ctx, UserRole, identity.Role)
}

// Identity reads the identity stored by WithIdentity.
func Identity(ctx context.Context) (*domain.Identity, error) {
	userID, _ := ctx.Value(UserID).(string)
	if userID == "" {
		return nil, domain.ErrUnauthorized("not authenticated")
	}
	email, _ := ctx.Value(UserEmail).(string)
	role, _ := ctx.Value(UserRole).(string)
	return &domain.Identity{UserID: userID, Email: email, Role: role}, nil
}
