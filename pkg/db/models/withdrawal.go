package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-ledger/pkg/enums"
	"github.com/angelmondragon/marketplace-ledger/pkg/types"
)

// Withdrawal is a payout request whose gross amount is reserved in the wallet's
// pending balance until the payout completes or is reversed.
type Withdrawal struct {
	ID              uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AccountID       uuid.UUID              `gorm:"column:account_id;type:uuid;not null"`
	Role            enums.WalletRole       `gorm:"column:role;type:text;not null"`
	AmountCents     int64                  `gorm:"column:amount_cents;not null"`
	FeeCents        int64                  `gorm:"column:fee_cents;not null;default:0"`
	NetAmountCents  int64                  `gorm:"column:net_amount_cents;not null"`
	Status          enums.WithdrawalStatus `gorm:"column:status;type:withdrawal_status_enum;not null;default:'PENDING'"`
	BankDetails     types.BankDetails      `gorm:"column:bank_details;type:jsonb;serializer:json"`
	PayoutReference *string                `gorm:"column:payout_reference"`
	FailureReason   *string                `gorm:"column:failure_reason"`
	ProcessedAt     *time.Time             `gorm:"column:processed_at"`
	CompletedAt     *time.Time             `gorm:"column:completed_at"`
	CreatedAt       time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
