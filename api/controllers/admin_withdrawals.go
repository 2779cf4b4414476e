package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-ledger/api/responses"
	"github.com/angelmondragon/marketplace-ledger/api/validators"
	"github.com/angelmondragon/marketplace-ledger/pkg/db/models"
	pkgerrors "github.com/angelmondragon/marketplace-ledger/pkg/errors"
	"github.com/angelmondragon/marketplace-ledger/pkg/logger"
)

const maxReasonLength = 500

type withdrawalLifecycle interface {
	MarkProcessing(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error)
	Approve(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error)
	Complete(ctx context.Context, id uuid.UUID, payoutReference string) (*models.Withdrawal, error)
	Reject(ctx context.Context, id uuid.UUID, reason string) (*models.Withdrawal, error)
	Fail(ctx context.Context, id uuid.UUID, reason string) (*models.Withdrawal, error)
}

type completeWithdrawalBody struct {
	PayoutReference string `json:"payout_reference" validate:"required,max=255"`
}

type reverseWithdrawalBody struct {
	Reason string `json:"reason" validate:"required"`
}

// AdminMarkWithdrawalProcessing moves a pending withdrawal into payout processing.
func AdminMarkWithdrawalProcessing(svc withdrawalLifecycle, logg *logger.Logger) http.HandlerFunc {
	return withdrawalTransition(svc, logg, func(r *http.Request, id uuid.UUID) (*models.Withdrawal, error) {
		return svc.MarkProcessing(r.Context(), id)
	})
}

// AdminApproveWithdrawal approves a pending or processing withdrawal.
func AdminApproveWithdrawal(svc withdrawalLifecycle, logg *logger.Logger) http.HandlerFunc {
	return withdrawalTransition(svc, logg, func(r *http.Request, id uuid.UUID) (*models.Withdrawal, error) {
		return svc.Approve(r.Context(), id)
	})
}

// AdminCompleteWithdrawal records the payout reference and finalizes the reserved funds.
func AdminCompleteWithdrawal(svc withdrawalLifecycle, logg *logger.Logger) http.HandlerFunc {
	return withdrawalTransition(svc, logg, func(r *http.Request, id uuid.UUID) (*models.Withdrawal, error) {
		var body completeWithdrawalBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return nil, err
		}
		return svc.Complete(r.Context(), id, strings.TrimSpace(body.PayoutReference))
	})
}

// AdminRejectWithdrawal releases the reserved funds back to the wallet balance.
func AdminRejectWithdrawal(svc withdrawalLifecycle, logg *logger.Logger) http.HandlerFunc {
	return withdrawalTransition(svc, logg, func(r *http.Request, id uuid.UUID) (*models.Withdrawal, error) {
		var body reverseWithdrawalBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return nil, err
		}
		return svc.Reject(r.Context(), id, validators.SanitizeString(body.Reason, maxReasonLength))
	})
}

// AdminFailWithdrawal marks a payout as failed and releases the reserved funds.
func AdminFailWithdrawal(svc withdrawalLifecycle, logg *logger.Logger) http.HandlerFunc {
	return withdrawalTransition(svc, logg, func(r *http.Request, id uuid.UUID) (*models.Withdrawal, error) {
		var body reverseWithdrawalBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return nil, err
		}
		return svc.Fail(r.Context(), id, validators.SanitizeString(body.Reason, maxReasonLength))
	})
}

func withdrawalTransition(svc withdrawalLifecycle, logg *logger.Logger, run func(r *http.Request, id uuid.UUID) (*models.Withdrawal, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "withdrawal service unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "withdrawalId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		withdrawal, err := run(r, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newWithdrawalResponse(withdrawal))
	}
}
