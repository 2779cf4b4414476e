package controllers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/marketplace-ledger/internal/settlement"
	"github.com/angelmondragon/marketplace-ledger/pkg/db/models"
	"github.com/angelmondragon/marketplace-ledger/pkg/enums"
)

type stubSettlementOperator struct {
	input   settlement.SettlePaymentInput
	summary *settlement.Summary
}

func (s *stubSettlementOperator) SettlePayment(_ context.Context, input settlement.SettlePaymentInput) (*settlement.Result, error) {
	s.input = input
	return &settlement.Result{
		OrderID: input.OrderID,
		Outcome: settlement.OutcomeResumed,
		Children: []settlement.ChildResult{{
			ChildOrderID:      uuid.New(),
			Outcome:           "SETTLED",
			CommissionRate:    "0.1000",
			CommissionCents:   100,
			VendorAmountCents: 900,
		}},
	}, nil
}

func (s *stubSettlementOperator) GetSettlement(_ context.Context, orderID uuid.UUID) (*settlement.Summary, error) {
	if s.summary == nil || s.summary.Order.ID != orderID {
		return nil, errors.New("unexpected order")
	}
	return s.summary, nil
}

func TestAdminOrderSettlement(t *testing.T) {
	orderID := uuid.New()
	svc := &stubSettlementOperator{summary: &settlement.Summary{
		Order: &models.Order{
			ID:               orderID,
			TotalAmountCents: 1000,
			PaymentState:     enums.PaymentStatePaid,
			ChildOrders: []models.ChildOrder{{
				ID:                uuid.New(),
				VendorRole:        enums.VendorRoleChef,
				SubtotalCents:     1000,
				CommissionRate:    decimal.NewNullDecimal(decimal.RequireFromString("0.1")),
				CommissionCents:   100,
				VendorAmountCents: 900,
				Status:            enums.ChildOrderStatusPaid,
			}},
		},
		Transactions: []models.Transaction{{ID: uuid.New(), AmountCents: 900}, {ID: uuid.New(), AmountCents: 100}},
	}}

	req := withURLParams(newRequest(http.MethodGet, "/", nil, uuid.New(), "admin"), map[string]string{"orderId": orderID.String()})
	rec := httptest.NewRecorder()
	AdminOrderSettlement(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", rec.Code, rec.Body.String())
	}
	body := decodeEnvelope[settlementResponse](t, rec)
	if len(body.Data.ChildOrders) != 1 || len(body.Data.Transactions) != 2 {
		t.Fatalf("unexpected settlement view %+v", body.Data)
	}
	if rate := body.Data.ChildOrders[0].CommissionRate; rate == nil || *rate != "0.1000" {
		t.Fatalf("expected frozen rate 0.1000, got %v", rate)
	}
}

func TestAdminSettleOrderReplaysConfirmation(t *testing.T) {
	orderID := uuid.New()
	svc := &stubSettlementOperator{}

	req := newRequest(http.MethodPost, "/", strings.NewReader(`{"external_reference":"pay_1","amount_cents":1000}`), uuid.New(), "admin")
	req = withURLParams(req, map[string]string{"orderId": orderID.String()})
	rec := httptest.NewRecorder()
	AdminSettleOrder(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.input.OrderID != orderID || svc.input.ExternalReference != "pay_1" || svc.input.AmountCents != 1000 {
		t.Fatalf("unexpected settle input %+v", svc.input)
	}
	body := decodeEnvelope[settleResponse](t, rec)
	if body.Data.Outcome != settlement.OutcomeResumed || len(body.Data.Children) != 1 || body.Data.Children[0].VendorAmountCents != 900 {
		t.Fatalf("unexpected result %+v", body.Data)
	}
}

func TestAdminSettleOrderRequiresReference(t *testing.T) {
	req := withURLParams(newRequest(http.MethodPost, "/", strings.NewReader(`{}`), uuid.New()), map[string]string{"orderId": uuid.NewString()})
	rec := httptest.NewRecorder()
	AdminSettleOrder(&stubSettlementOperator{}, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}
