package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-ledger/pkg/enums"
)

// Order is the parent order a customer pays for once; vendor groups live in ChildOrders.
type Order struct {
	ID                   uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID           uuid.UUID          `gorm:"column:customer_id;type:uuid;not null"`
	SubtotalCents        int64              `gorm:"column:subtotal_cents;not null"`
	DeliveryFeeCents     int64              `gorm:"column:delivery_fee_cents;not null;default:0"`
	PlatformFeeCents     int64              `gorm:"column:platform_fee_cents;not null;default:0"`
	TotalAmountCents     int64              `gorm:"column:total_amount_cents;not null"`
	PaymentState         enums.PaymentState `gorm:"column:payment_state;type:payment_state_enum;not null;default:'PENDING'"`
	PaymentReference     *string            `gorm:"column:payment_reference"`
	PaymentFailureReason *string            `gorm:"column:payment_failure_reason"`
	PaidAt               *time.Time         `gorm:"column:paid_at"`
	ArchivedAt           *time.Time         `gorm:"column:archived_at"`
	ChildOrders          []ChildOrder       `gorm:"foreignKey:OrderID"`
	CreatedAt            time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
