package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-ledger/pkg/enums"
)

// Transaction is one append-only ledger entry. Only its status moves, and only
// out of PENDING.
type Transaction struct {
	ID                uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Type              enums.TransactionType   `gorm:"column:type;type:transaction_type_enum;not null"`
	Source            enums.TransactionSource `gorm:"column:source;type:transaction_source_enum;not null"`
	AmountCents       int64                   `gorm:"column:amount_cents;not null"`
	AccountID         uuid.UUID               `gorm:"column:account_id;type:uuid;not null"`
	Role              enums.WalletRole        `gorm:"column:role;type:text;not null"`
	OrderID           *uuid.UUID              `gorm:"column:order_id;type:uuid"`
	ChildOrderID      *uuid.UUID              `gorm:"column:child_order_id;type:uuid"`
	WithdrawalID      *uuid.UUID              `gorm:"column:withdrawal_id;type:uuid"`
	Status            enums.TransactionStatus `gorm:"column:status;type:transaction_status_enum;not null"`
	ExternalReference *string                 `gorm:"column:external_reference"`
	Description       *string                 `gorm:"column:description"`
	SettledAt         *time.Time              `gorm:"column:settled_at"`
	CreatedAt         time.Time               `gorm:"column:created_at;autoCreateTime"`
}
