package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-ledger/api/middleware"
	"github.com/angelmondragon/marketplace-ledger/api/responses"
	"github.com/angelmondragon/marketplace-ledger/api/validators"
	"github.com/angelmondragon/marketplace-ledger/internal/withdrawals"
	"github.com/angelmondragon/marketplace-ledger/pkg/db/models"
	"github.com/angelmondragon/marketplace-ledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketplace-ledger/pkg/errors"
	"github.com/angelmondragon/marketplace-ledger/pkg/logger"
	"github.com/angelmondragon/marketplace-ledger/pkg/types"
)

type withdrawalRequester interface {
	RequestWithdrawal(ctx context.Context, input withdrawals.RequestInput) (*models.Withdrawal, error)
	GetWithdrawal(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error)
	ListWithdrawals(ctx context.Context, accountID uuid.UUID, limit int) ([]models.Withdrawal, error)
}

type requestWithdrawalBody struct {
	Role        string            `json:"role" validate:"required,payout_role"`
	AmountCents int64             `json:"amount_cents" validate:"gt=0"`
	BankDetails types.BankDetails `json:"bank_details"`
}

// RequestWithdrawal reserves funds from one of the caller's wallets.
func RequestWithdrawal(svc withdrawalRequester, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "withdrawal service unavailable"))
			return
		}
		accountID, ok := middleware.AccountIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing account"))
			return
		}

		var body requestWithdrawalBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		role, _ := enums.ParseWalletRole(body.Role)
		if !middleware.HasRole(r.Context(), string(role)) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "caller does not hold the "+string(role)+" role"))
			return
		}

		withdrawal, err := svc.RequestWithdrawal(r.Context(), withdrawals.RequestInput{
			AccountID:   accountID,
			Role:        role,
			AmountCents: body.AmountCents,
			BankDetails: body.BankDetails,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, newWithdrawalResponse(withdrawal))
	}
}

// GetWithdrawal returns one of the caller's withdrawals. Other accounts'
// withdrawals read as not found.
func GetWithdrawal(svc withdrawalRequester, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "withdrawal service unavailable"))
			return
		}
		accountID, ok := middleware.AccountIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing account"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "withdrawalId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		withdrawal, err := svc.GetWithdrawal(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if withdrawal.AccountID != accountID {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "withdrawal not found"))
			return
		}
		responses.WriteSuccess(w, newWithdrawalResponse(withdrawal))
	}
}

// ListWithdrawals returns the caller's most recent withdrawals.
func ListWithdrawals(svc withdrawalRequester, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "withdrawal service unavailable"))
			return
		}
		accountID, ok := middleware.AccountIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing account"))
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 25, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.ListWithdrawals(r.Context(), accountID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]withdrawalResponse, 0, len(rows))
		for i := range rows {
			out = append(out, newWithdrawalResponse(&rows[i]))
		}
		responses.WriteSuccess(w, out)
	}
}
