package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-ledger/api/responses"
	"github.com/angelmondragon/marketplace-ledger/api/validators"
	"github.com/angelmondragon/marketplace-ledger/internal/settlement"
	pkgerrors "github.com/angelmondragon/marketplace-ledger/pkg/errors"
	"github.com/angelmondragon/marketplace-ledger/pkg/logger"
)

type settlementOperator interface {
	SettlePayment(ctx context.Context, input settlement.SettlePaymentInput) (*settlement.Result, error)
	GetSettlement(ctx context.Context, orderID uuid.UUID) (*settlement.Summary, error)
}

type settleOrderBody struct {
	ExternalReference string `json:"external_reference" validate:"required,max=255"`
	AmountCents       int64  `json:"amount_cents" validate:"min=0"`
}

// AdminOrderSettlement returns an order's split and every ledger entry it produced.
func AdminOrderSettlement(svc settlementOperator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settlement service unavailable"))
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		summary, err := svc.GetSettlement(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSettlementResponse(summary))
	}
}

// AdminSettleOrder replays a payment confirmation for an order. Settled child
// orders are skipped so the replay only finishes what is left.
func AdminSettleOrder(svc settlementOperator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settlement service unavailable"))
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body settleOrderBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.SettlePayment(r.Context(), settlement.SettlePaymentInput{
			OrderID:           orderID,
			ExternalReference: strings.TrimSpace(body.ExternalReference),
			AmountCents:       body.AmountCents,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSettleResponse(result))
	}
}
