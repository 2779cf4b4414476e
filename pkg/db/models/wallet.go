package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-ledger/pkg/enums"
)

// Wallet is the running balance of one (account, role) pair.
// Balances only move through single-statement increments in the wallets repository.
type Wallet struct {
	ID                  uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AccountID           uuid.UUID        `gorm:"column:account_id;type:uuid;not null"`
	Role                enums.WalletRole `gorm:"column:role;type:text;not null"`
	BalanceCents        int64            `gorm:"column:balance_cents;not null;default:0"`
	PendingBalanceCents int64            `gorm:"column:pending_balance_cents;not null;default:0"`
	TotalEarnedCents    int64            `gorm:"column:total_earned_cents;not null;default:0"`
	TotalWithdrawnCents int64            `gorm:"column:total_withdrawn_cents;not null;default:0"`
	CreatedAt           time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// Reconciles reports whether the lifetime totals match the held funds.
func (w Wallet) Reconciles() bool {
	return w.TotalEarnedCents-w.TotalWithdrawnCents == w.BalanceCents+w.PendingBalanceCents
}
