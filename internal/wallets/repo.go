package wallets

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/marketplace-ledger/pkg/db/models"
	"github.com/angelmondragon/marketplace-ledger/pkg/enums"
)

// Repository moves wallet balances. Every mutation is one SQL statement whose
// WHERE clause carries its precondition, so concurrent writers never lose an
// update and balances cannot go negative.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Credit(ctx context.Context, accountID uuid.UUID, role enums.WalletRole, amountCents int64) error
	Reserve(ctx context.Context, accountID uuid.UUID, role enums.WalletRole, amountCents int64) (bool, error)
	Release(ctx context.Context, accountID uuid.UUID, role enums.WalletRole, amountCents int64) (bool, error)
	Finalize(ctx context.Context, accountID uuid.UUID, role enums.WalletRole, amountCents int64) (bool, error)
	Find(ctx context.Context, accountID uuid.UUID, role enums.WalletRole) (*models.Wallet, error)
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]models.Wallet, error)
	ListAll(ctx context.Context, afterID uuid.UUID, limit int) ([]models.Wallet, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a wallets repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Credit adds to balance and lifetime earnings, creating the wallet on first use.
func (r *repository) Credit(ctx context.Context, accountID uuid.UUID, role enums.WalletRole, amountCents int64) error {
	now := time.Now().UTC()
	wallet := models.Wallet{
		ID:               uuid.New(),
		AccountID:        accountID,
		Role:             role,
		BalanceCents:     amountCents,
		TotalEarnedCents: amountCents,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "account_id"}, {Name: "role"}},
			DoUpdates: clause.Assignments(map[string]any{
				"balance_cents":      gorm.Expr("wallets.balance_cents + ?", amountCents),
				"total_earned_cents": gorm.Expr("wallets.total_earned_cents + ?", amountCents),
				"updated_at":         now,
			}),
		}).
		Create(&wallet).Error
}

// Reserve moves amount from balance into pending. It matches nothing when the
// balance is short.
func (r *repository) Reserve(ctx context.Context, accountID uuid.UUID, role enums.WalletRole, amountCents int64) (bool, error) {
	return r.move(ctx, accountID, role, "balance_cents >= ?", amountCents, map[string]any{
		"balance_cents":         gorm.Expr("balance_cents - ?", amountCents),
		"pending_balance_cents": gorm.Expr("pending_balance_cents + ?", amountCents),
	})
}

// Release returns a reservation from pending to balance.
func (r *repository) Release(ctx context.Context, accountID uuid.UUID, role enums.WalletRole, amountCents int64) (bool, error) {
	return r.move(ctx, accountID, role, "pending_balance_cents >= ?", amountCents, map[string]any{
		"pending_balance_cents": gorm.Expr("pending_balance_cents - ?", amountCents),
		"balance_cents":         gorm.Expr("balance_cents + ?", amountCents),
	})
}

// Finalize consumes a reservation once the payout has left the platform.
func (r *repository) Finalize(ctx context.Context, accountID uuid.UUID, role enums.WalletRole, amountCents int64) (bool, error) {
	return r.move(ctx, accountID, role, "pending_balance_cents >= ?", amountCents, map[string]any{
		"pending_balance_cents": gorm.Expr("pending_balance_cents - ?", amountCents),
		"total_withdrawn_cents": gorm.Expr("total_withdrawn_cents + ?", amountCents),
	})
}

func (r *repository) move(ctx context.Context, accountID uuid.UUID, role enums.WalletRole, guard string, amountCents int64, updates map[string]any) (bool, error) {
	updates["updated_at"] = time.Now().UTC()
	result := r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("account_id = ? AND role = ?", accountID, role).
		Where(guard, amountCents).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) Find(ctx context.Context, accountID uuid.UUID, role enums.WalletRole) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.db.WithContext(ctx).
		Where("account_id = ? AND role = ?", accountID, role).
		First(&wallet).Error
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]models.Wallet, error) {
	var rows []models.Wallet
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("role ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListAll pages through every wallet by id for the reconcile job.
func (r *repository) ListAll(ctx context.Context, afterID uuid.UUID, limit int) ([]models.Wallet, error) {
	if limit <= 0 {
		limit = 500
	}
	query := r.db.WithContext(ctx).Order("id ASC").Limit(limit)
	if afterID != uuid.Nil {
		query = query.Where("id > ?", afterID)
	}
	var rows []models.Wallet
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
