package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/marketplace-ledger/api/responses"
	pkgerrors "github.com/angelmondragon/marketplace-ledger/pkg/errors"
	"github.com/angelmondragon/marketplace-ledger/pkg/logger"
)

// RequireRole admits callers whose token carries role.
func RequireRole(role string, logg *logger.Logger) func(http.Handler) http.Handler {
	return RequireAnyRole(logg, role)
}

// RequireAnyRole admits callers holding at least one of roles and tags the
// request log with the matching role.
func RequireAnyRole(logg *logger.Logger, roles ...string) func(http.Handler) http.Handler {
	denied := strings.Join(roles, " or ") + " role required"
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, role := range roles {
				if !HasRole(r.Context(), role) {
					continue
				}
				ctx := r.Context()
				if logg != nil {
					ctx = logg.WithActorRole(ctx, role)
				}
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, denied))
		})
	}
}
