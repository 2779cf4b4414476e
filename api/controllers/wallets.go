package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-ledger/api/middleware"
	"github.com/angelmondragon/marketplace-ledger/api/responses"
	"github.com/angelmondragon/marketplace-ledger/api/validators"
	"github.com/angelmondragon/marketplace-ledger/internal/ledger"
	"github.com/angelmondragon/marketplace-ledger/pkg/db/models"
	"github.com/angelmondragon/marketplace-ledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketplace-ledger/pkg/errors"
	"github.com/angelmondragon/marketplace-ledger/pkg/logger"
	"github.com/angelmondragon/marketplace-ledger/pkg/pagination"
)

type walletReader interface {
	ListWallets(ctx context.Context, accountID uuid.UUID) ([]models.Wallet, error)
}

type transactionReader interface {
	ListByAccount(ctx context.Context, accountID uuid.UUID, role enums.WalletRole, params pagination.Params) (*ledger.Page, error)
}

// ListWallets returns every wallet held by the caller.
func ListWallets(svc walletReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallet service unavailable"))
			return
		}
		accountID, ok := middleware.AccountIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing account"))
			return
		}

		rows, err := svc.ListWallets(r.Context(), accountID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]walletResponse, 0, len(rows))
		for _, row := range rows {
			out = append(out, newWalletResponse(row))
		}
		responses.WriteSuccess(w, out)
	}
}

type transactionPage struct {
	Transactions []transactionResponse `json:"transactions"`
	NextCursor   string                `json:"next_cursor,omitempty"`
}

// ListWalletTransactions pages through the caller's ledger for one wallet role.
func ListWalletTransactions(svc transactionReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}
		accountID, ok := middleware.AccountIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing account"))
			return
		}
		role, err := enums.ParseWalletRole(chi.URLParam(r, "role"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid wallet role"))
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListByAccount(r.Context(), accountID, role, pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, transactionPage{
			Transactions: newTransactionResponses(page.Transactions),
			NextCursor:   page.NextCursor,
		})
	}
}
