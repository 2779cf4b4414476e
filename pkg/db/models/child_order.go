package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/marketplace-ledger/pkg/enums"
	"github.com/angelmondragon/marketplace-ledger/pkg/types"
)

// ChildOrder is one vendor's settlement record within a parent order.
// Commission fields stay empty until the child order is settled.
type ChildOrder struct {
	ID                uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID           uuid.UUID              `gorm:"column:order_id;type:uuid;not null"`
	VendorID          uuid.UUID              `gorm:"column:vendor_id;type:uuid;not null"`
	VendorRole        enums.VendorRole       `gorm:"column:vendor_role;type:vendor_role_enum;not null"`
	LineItems         types.LineItems        `gorm:"column:line_items;type:jsonb;serializer:json"`
	SubtotalCents     int64                  `gorm:"column:subtotal_cents;not null"`
	CommissionRate    decimal.NullDecimal    `gorm:"column:commission_rate;type:numeric(5,4)"`
	CommissionCents   int64                  `gorm:"column:commission_cents;not null;default:0"`
	VendorAmountCents int64                  `gorm:"column:vendor_amount_cents;not null;default:0"`
	Status            enums.ChildOrderStatus `gorm:"column:status;type:child_order_status_enum;not null;default:'PENDING'"`
	PaidAt            *time.Time             `gorm:"column:paid_at"`
	CreatedAt         time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
