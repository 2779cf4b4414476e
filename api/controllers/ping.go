package controllers

import (
	"net/http"

	"github.com/angelmondragon/marketplace-ledger/api/middleware"
	"github.com/angelmondragon/marketplace-ledger/api/responses"
)

func PublicPing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]string{"scope": "public", "status": "ok"})
	}
}

// PrivatePing echoes the authenticated account and its roles.
func PrivatePing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]any{"scope": "private", "status": "ok"}
		if accountID, ok := middleware.AccountIDFromContext(r.Context()); ok {
			payload["account_id"] = accountID.String()
			payload["roles"] = middleware.RolesFromContext(r.Context())
		}
		responses.WriteSuccess(w, payload)
	}
}
