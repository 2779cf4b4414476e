package controllers

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-ledger/internal/settlement"
	"github.com/angelmondragon/marketplace-ledger/pkg/db/models"
	"github.com/angelmondragon/marketplace-ledger/pkg/enums"
	"github.com/angelmondragon/marketplace-ledger/pkg/types"
)

type walletResponse struct {
	AccountID           uuid.UUID        `json:"account_id"`
	Role                enums.WalletRole `json:"role"`
	BalanceCents        int64            `json:"balance_cents"`
	PendingBalanceCents int64            `json:"pending_balance_cents"`
	TotalEarnedCents    int64            `json:"total_earned_cents"`
	TotalWithdrawnCents int64            `json:"total_withdrawn_cents"`
	UpdatedAt           time.Time        `json:"updated_at"`
}

func newWalletResponse(w models.Wallet) walletResponse {
	return walletResponse{
		AccountID:           w.AccountID,
		Role:                w.Role,
		BalanceCents:        w.BalanceCents,
		PendingBalanceCents: w.PendingBalanceCents,
		TotalEarnedCents:    w.TotalEarnedCents,
		TotalWithdrawnCents: w.TotalWithdrawnCents,
		UpdatedAt:           w.UpdatedAt,
	}
}

type transactionResponse struct {
	ID                uuid.UUID               `json:"id"`
	Type              enums.TransactionType   `json:"type"`
	Source            enums.TransactionSource `json:"source"`
	Status            enums.TransactionStatus `json:"status"`
	AmountCents       int64                   `json:"amount_cents"`
	AccountID         uuid.UUID               `json:"account_id"`
	Role              enums.WalletRole        `json:"role"`
	OrderID           *uuid.UUID              `json:"order_id,omitempty"`
	ChildOrderID      *uuid.UUID              `json:"child_order_id,omitempty"`
	WithdrawalID      *uuid.UUID              `json:"withdrawal_id,omitempty"`
	ExternalReference *string                 `json:"external_reference,omitempty"`
	Description       *string                 `json:"description,omitempty"`
	SettledAt         *time.Time              `json:"settled_at,omitempty"`
	CreatedAt         time.Time               `json:"created_at"`
}

func newTransactionResponses(rows []models.Transaction) []transactionResponse {
	out := make([]transactionResponse, 0, len(rows))
	for _, t := range rows {
		out = append(out, transactionResponse{
			ID:                t.ID,
			Type:              t.Type,
			Source:            t.Source,
			Status:            t.Status,
			AmountCents:       t.AmountCents,
			AccountID:         t.AccountID,
			Role:              t.Role,
			OrderID:           t.OrderID,
			ChildOrderID:      t.ChildOrderID,
			WithdrawalID:      t.WithdrawalID,
			ExternalReference: t.ExternalReference,
			Description:       t.Description,
			SettledAt:         t.SettledAt,
			CreatedAt:         t.CreatedAt,
		})
	}
	return out
}

type withdrawalResponse struct {
	ID              uuid.UUID              `json:"id"`
	AccountID       uuid.UUID              `json:"account_id"`
	Role            enums.WalletRole       `json:"role"`
	AmountCents     int64                  `json:"amount_cents"`
	FeeCents        int64                  `json:"fee_cents"`
	NetAmountCents  int64                  `json:"net_amount_cents"`
	Status          enums.WithdrawalStatus `json:"status"`
	BankDetails     types.BankDetails      `json:"bank_details"`
	PayoutReference *string                `json:"payout_reference,omitempty"`
	FailureReason   *string                `json:"failure_reason,omitempty"`
	ProcessedAt     *time.Time             `json:"processed_at,omitempty"`
	CompletedAt     *time.Time             `json:"completed_at,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
}

// newWithdrawalResponse masks the account number before it leaves the service.
func newWithdrawalResponse(w *models.Withdrawal) withdrawalResponse {
	return withdrawalResponse{
		ID:              w.ID,
		AccountID:       w.AccountID,
		Role:            w.Role,
		AmountCents:     w.AmountCents,
		FeeCents:        w.FeeCents,
		NetAmountCents:  w.NetAmountCents,
		Status:          w.Status,
		BankDetails:     w.BankDetails.Masked(),
		PayoutReference: w.PayoutReference,
		FailureReason:   w.FailureReason,
		ProcessedAt:     w.ProcessedAt,
		CompletedAt:     w.CompletedAt,
		CreatedAt:       w.CreatedAt,
	}
}

type childOrderResponse struct {
	ID                uuid.UUID              `json:"id"`
	VendorID          uuid.UUID              `json:"vendor_id"`
	VendorRole        enums.VendorRole       `json:"vendor_role"`
	SubtotalCents     int64                  `json:"subtotal_cents"`
	CommissionRate    *string                `json:"commission_rate,omitempty"`
	CommissionCents   int64                  `json:"commission_cents"`
	VendorAmountCents int64                  `json:"vendor_amount_cents"`
	Status            enums.ChildOrderStatus `json:"status"`
	PaidAt            *time.Time             `json:"paid_at,omitempty"`
}

type settlementResponse struct {
	OrderID          uuid.UUID             `json:"order_id"`
	TotalAmountCents int64                 `json:"total_amount_cents"`
	PaymentState     enums.PaymentState    `json:"payment_state"`
	PaymentReference *string               `json:"payment_reference,omitempty"`
	PaidAt           *time.Time            `json:"paid_at,omitempty"`
	ChildOrders      []childOrderResponse  `json:"child_orders"`
	Transactions     []transactionResponse `json:"transactions"`
}

func newSettlementResponse(summary *settlement.Summary) settlementResponse {
	order := summary.Order
	out := settlementResponse{
		OrderID:          order.ID,
		TotalAmountCents: order.TotalAmountCents,
		PaymentState:     order.PaymentState,
		PaymentReference: order.PaymentReference,
		PaidAt:           order.PaidAt,
		ChildOrders:      make([]childOrderResponse, 0, len(order.ChildOrders)),
		Transactions:     newTransactionResponses(summary.Transactions),
	}
	for _, child := range order.ChildOrders {
		view := childOrderResponse{
			ID:                child.ID,
			VendorID:          child.VendorID,
			VendorRole:        child.VendorRole,
			SubtotalCents:     child.SubtotalCents,
			CommissionCents:   child.CommissionCents,
			VendorAmountCents: child.VendorAmountCents,
			Status:            child.Status,
			PaidAt:            child.PaidAt,
		}
		if child.CommissionRate.Valid {
			rate := child.CommissionRate.Decimal.StringFixed(4)
			view.CommissionRate = &rate
		}
		out.ChildOrders = append(out.ChildOrders, view)
	}
	return out
}

type childSettleResponse struct {
	ChildOrderID      uuid.UUID        `json:"child_order_id"`
	VendorID          uuid.UUID        `json:"vendor_id"`
	VendorRole        enums.VendorRole `json:"vendor_role"`
	Outcome           string           `json:"outcome"`
	CommissionRate    string           `json:"commission_rate,omitempty"`
	CommissionCents   int64            `json:"commission_cents"`
	VendorAmountCents int64            `json:"vendor_amount_cents"`
}

type settleResponse struct {
	OrderID           uuid.UUID             `json:"order_id"`
	Outcome           settlement.Outcome    `json:"outcome"`
	Transitioned      bool                  `json:"transitioned"`
	ReferenceMismatch bool                  `json:"reference_mismatch,omitempty"`
	Children          []childSettleResponse `json:"children"`
}

func newSettleResponse(result *settlement.Result) settleResponse {
	out := settleResponse{
		OrderID:           result.OrderID,
		Outcome:           result.Outcome,
		Transitioned:      result.Transitioned,
		ReferenceMismatch: result.ReferenceMismatch,
		Children:          make([]childSettleResponse, 0, len(result.Children)),
	}
	for _, child := range result.Children {
		out.Children = append(out.Children, childSettleResponse(child))
	}
	return out
}
