package auth

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-ledger/pkg/enums"
)

// RoleAdmin grants the operator endpoints.
const RoleAdmin = "admin"

// AccessTokenClaims is the bearer token minted by the external auth service.
// Roles lists the wallet roles the account may act as, plus "admin" for
// operators.
type AccessTokenClaims struct {
	AccountID uuid.UUID `json:"account_id"`
	Roles     []string  `json:"roles"`
	jwt.RegisteredClaims
}

// HasRole reports whether the token grants role.
func (c *AccessTokenClaims) HasRole(role string) bool {
	if c == nil {
		return false
	}
	for _, granted := range c.Roles {
		if granted == role {
			return true
		}
	}
	return false
}

// NormalizeRoles lowercases and dedupes roles, dropping anything that is
// neither admin nor a payee wallet role. The platform wallet is never an
// actor role.
func NormalizeRoles(roles []string) []string {
	out := make([]string, 0, len(roles))
	seen := make(map[string]struct{}, len(roles))
	for _, raw := range roles {
		role := strings.ToLower(strings.TrimSpace(raw))
		if !actorRole(role) {
			continue
		}
		if _, dup := seen[role]; dup {
			continue
		}
		seen[role] = struct{}{}
		out = append(out, role)
	}
	return out
}

func actorRole(role string) bool {
	if role == RoleAdmin {
		return true
	}
	wr := enums.WalletRole(role)
	return wr.IsValid() && wr != enums.WalletRolePlatform
}
