package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-ledger/pkg/db"
	"github.com/angelmondragon/marketplace-ledger/pkg/db/models"
	"github.com/angelmondragon/marketplace-ledger/pkg/enums"
	"github.com/angelmondragon/marketplace-ledger/pkg/pagination"
)

// Postgres reports the index name, sqlite the column.
var externalReferenceConstraints = []string{
	"ux_transactions_external_reference",
	"transactions.external_reference",
}

// ErrDuplicateReference is returned by Append when a transaction with the same
// external reference already exists.
var ErrDuplicateReference = errors.New("duplicate transaction reference")

// Totals aggregates an account's ledger for reconciliation.
type Totals struct {
	CompletedCreditsCents int64
	CompletedDebitsCents  int64
	PendingDebitsCents    int64
}

// Held is what the ledger says the wallet holds across balance and pending.
func (t Totals) Held() int64 {
	return t.CompletedCreditsCents - t.CompletedDebitsCents
}

// Available is what the ledger says the wallet can spend.
func (t Totals) Available() int64 {
	return t.Held() - t.PendingDebitsCents
}

// Repository manages persistence for ledger transactions. Rows are never
// deleted and only PENDING rows change status.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Append(ctx context.Context, txn *models.Transaction) error
	Complete(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	Fail(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	SettleWithdrawal(ctx context.Context, withdrawalID uuid.UUID, status enums.TransactionStatus, at time.Time) (int64, error)
	FindByExternalReference(ctx context.Context, reference string) (*models.Transaction, error)
	ListByAccount(ctx context.Context, accountID uuid.UUID, role enums.WalletRole, params pagination.Params) ([]models.Transaction, string, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Transaction, error)
	ListByWithdrawal(ctx context.Context, withdrawalID uuid.UUID) ([]models.Transaction, error)
	NetByAccount(ctx context.Context, accountID uuid.UUID, role enums.WalletRole) (Totals, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Append(ctx context.Context, txn *models.Transaction) error {
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(txn).Error; err != nil {
		if db.IsUniqueViolationAny(err, externalReferenceConstraints...) {
			return ErrDuplicateReference
		}
		return err
	}
	return nil
}

func (r *repository) Complete(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	return r.transition(ctx, id, enums.TransactionStatusCompleted, at)
}

func (r *repository) Fail(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	return r.transition(ctx, id, enums.TransactionStatusFailed, at)
}

func (r *repository) transition(ctx context.Context, id uuid.UUID, status enums.TransactionStatus, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ? AND status = ?", id, enums.TransactionStatusPending).
		Updates(map[string]any{
			"status":     status,
			"settled_at": at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// SettleWithdrawal moves every PENDING leg of a withdrawal to status and
// returns how many rows moved.
func (r *repository) SettleWithdrawal(ctx context.Context, withdrawalID uuid.UUID, status enums.TransactionStatus, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("withdrawal_id = ? AND status = ?", withdrawalID, enums.TransactionStatusPending).
		Updates(map[string]any{
			"status":     status,
			"settled_at": at,
		})
	return result.RowsAffected, result.Error
}

func (r *repository) FindByExternalReference(ctx context.Context, reference string) (*models.Transaction, error) {
	var txn models.Transaction
	if err := r.db.WithContext(ctx).Where("external_reference = ?", reference).First(&txn).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

// ListByAccount returns the newest transactions first using the shared cursor
// format. The second result is the cursor for the next page, empty on the last.
func (r *repository) ListByAccount(ctx context.Context, accountID uuid.UUID, role enums.WalletRole, params pagination.Params) ([]models.Transaction, string, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", err
	}
	limit := pagination.NormalizeLimit(params.Limit)

	query := r.db.WithContext(ctx).
		Where("account_id = ? AND role = ?", accountID, role)
	if cursor != nil {
		clause, args := cursor.Predicate()
		query = query.Where(clause, args...)
	}

	var rows []models.Transaction
	if err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(limit)).
		Find(&rows).Error; err != nil {
		return nil, "", err
	}

	rows, next := pagination.Trim(rows, limit, func(t models.Transaction) pagination.Cursor {
		return pagination.Cursor{CreatedAt: t.CreatedAt, ID: t.ID}
	})
	return rows, next, nil
}

func (r *repository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Transaction, error) {
	var rows []models.Transaction
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListByWithdrawal(ctx context.Context, withdrawalID uuid.UUID) ([]models.Transaction, error) {
	var rows []models.Transaction
	if err := r.db.WithContext(ctx).
		Where("withdrawal_id = ?", withdrawalID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) NetByAccount(ctx context.Context, accountID uuid.UUID, role enums.WalletRole) (Totals, error) {
	var totals Totals
	err := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Select(
			"COALESCE(SUM(CASE WHEN type = ? AND status = ? THEN amount_cents ELSE 0 END), 0) AS completed_credits_cents, "+
				"COALESCE(SUM(CASE WHEN type = ? AND status = ? THEN amount_cents ELSE 0 END), 0) AS completed_debits_cents, "+
				"COALESCE(SUM(CASE WHEN type = ? AND status = ? THEN amount_cents ELSE 0 END), 0) AS pending_debits_cents",
			enums.TransactionTypeCredit, enums.TransactionStatusCompleted,
			enums.TransactionTypeDebit, enums.TransactionStatusCompleted,
			enums.TransactionTypeDebit, enums.TransactionStatusPending,
		).
		Where("account_id = ? AND role = ?", accountID, role).
		Scan(&totals).Error
	return totals, err
}
