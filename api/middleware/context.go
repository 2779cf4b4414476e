package middleware

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	ctxAccountID contextKey = "account_id"
	ctxRoles     contextKey = "roles"
)

// AccountIDFromContext returns the authenticated account, if any.
func AccountIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	if ctx == nil {
		return uuid.Nil, false
	}
	id, ok := ctx.Value(ctxAccountID).(uuid.UUID)
	return id, ok && id != uuid.Nil
}

func RolesFromContext(ctx context.Context) []string {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxRoles).([]string); ok {
		return v
	}
	return nil
}

// HasRole reports whether the authenticated caller holds role.
func HasRole(ctx context.Context, role string) bool {
	for _, granted := range RolesFromContext(ctx) {
		if granted == role {
			return true
		}
	}
	return false
}

// WithAccount seeds the caller identity, as Auth does after token checks.
func WithAccount(ctx context.Context, accountID uuid.UUID, roles ...string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxAccountID, accountID)
	return context.WithValue(ctx, ctxRoles, roles)
}
