package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-ledger/pkg/enums"
)

// OrderPaidEvent is emitted by the caller that wins the order payment transition.
type OrderPaidEvent struct {
	OrderID          uuid.UUID `json:"order_id"`
	PaymentReference string    `json:"payment_reference"`
	TotalAmountCents int64     `json:"total_amount_cents"`
	ChildOrderCount  int       `json:"child_order_count"`
	PaidAt           time.Time `json:"paid_at"`
}

// PaymentSettledEvent is emitted once per child order when its vendor is credited.
type PaymentSettledEvent struct {
	OrderID           uuid.UUID        `json:"order_id"`
	ChildOrderID      uuid.UUID        `json:"child_order_id"`
	VendorID          uuid.UUID        `json:"vendor_id"`
	VendorRole        enums.VendorRole `json:"vendor_role"`
	SubtotalCents     int64            `json:"subtotal_cents"`
	CommissionRate    string           `json:"commission_rate"`
	CommissionCents   int64            `json:"commission_cents"`
	VendorAmountCents int64            `json:"vendor_amount_cents"`
	SettledAt         time.Time        `json:"settled_at"`
}

// PaymentFailedEvent is emitted when a pending order payment fails at the gateway.
type PaymentFailedEvent struct {
	OrderID          uuid.UUID `json:"order_id"`
	PaymentReference string    `json:"payment_reference,omitempty"`
	Reason           string    `json:"reason,omitempty"`
}

// WithdrawalRequestedEvent announces funds reserved for payout.
type WithdrawalRequestedEvent struct {
	WithdrawalID   uuid.UUID        `json:"withdrawal_id"`
	AccountID      uuid.UUID        `json:"account_id"`
	Role           enums.WalletRole `json:"role"`
	AmountCents    int64            `json:"amount_cents"`
	FeeCents       int64            `json:"fee_cents"`
	NetAmountCents int64            `json:"net_amount_cents"`
}

// WithdrawalCompletedEvent announces a finalized payout.
type WithdrawalCompletedEvent struct {
	WithdrawalID    uuid.UUID        `json:"withdrawal_id"`
	AccountID       uuid.UUID        `json:"account_id"`
	Role            enums.WalletRole `json:"role"`
	AmountCents     int64            `json:"amount_cents"`
	PayoutReference string           `json:"payout_reference,omitempty"`
	CompletedAt     time.Time        `json:"completed_at"`
}

// WithdrawalReversedEvent announces reserved funds returned to the balance.
type WithdrawalReversedEvent struct {
	WithdrawalID uuid.UUID              `json:"withdrawal_id"`
	AccountID    uuid.UUID              `json:"account_id"`
	Role         enums.WalletRole       `json:"role"`
	AmountCents  int64                  `json:"amount_cents"`
	Status       enums.WithdrawalStatus `json:"status"`
	Reason       string                 `json:"reason,omitempty"`
}
