package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-ledger/pkg/db/models"
	"github.com/angelmondragon/marketplace-ledger/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("ChildOrders", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, id ASC")
		}).
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindChildOrder(ctx context.Context, childOrderID uuid.UUID) (*models.ChildOrder, error) {
	var child models.ChildOrder
	if err := r.db.WithContext(ctx).Where("id = ?", childOrderID).First(&child).Error; err != nil {
		return nil, err
	}
	return &child, nil
}

func (r *repository) ListChildOrders(ctx context.Context, orderID uuid.UUID) ([]models.ChildOrder, error) {
	var children []models.ChildOrder
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC, id ASC").
		Find(&children).Error
	if err != nil {
		return nil, err
	}
	return children, nil
}

// MarkOrderPaid is the order-level idempotency fence: PAID is never left, so at
// most one caller ever sees a matched row.
func (r *repository) MarkOrderPaid(ctx context.Context, orderID uuid.UUID, reference string, paidAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND payment_state <> ?", orderID, enums.PaymentStatePaid).
		Updates(map[string]any{
			"payment_state":     enums.PaymentStatePaid,
			"payment_reference": reference,
			"paid_at":           paidAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) MarkOrderFailed(ctx context.Context, orderID uuid.UUID, reason string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND payment_state = ?", orderID, enums.PaymentStatePending).
		Updates(map[string]any{
			"payment_state":          enums.PaymentStateFailed,
			"payment_failure_reason": reason,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// MarkChildOrderPaid is the per-vendor fence. Only PENDING child orders move, so
// a replayed or concurrent delivery cannot settle the same vendor twice.
func (r *repository) MarkChildOrderPaid(ctx context.Context, childOrderID uuid.UUID, settlement ChildSettlement, paidAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.ChildOrder{}).
		Where("id = ? AND status = ?", childOrderID, enums.ChildOrderStatusPending).
		Updates(map[string]any{
			"status":              enums.ChildOrderStatusPaid,
			"commission_rate":     decimal.NullDecimal{Decimal: settlement.Rate, Valid: true},
			"commission_cents":    settlement.CommissionCents,
			"vendor_amount_cents": settlement.VendorAmountCents,
			"paid_at":             paidAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) ListPaidOrdersWithUnsettledChildren(ctx context.Context, paidBefore time.Time, limit int) ([]models.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Where("payment_state = ? AND archived_at IS NULL AND paid_at < ?", enums.PaymentStatePaid, paidBefore).
		Where("EXISTS (SELECT 1 FROM child_orders co WHERE co.order_id = orders.id AND co.status = ?)", enums.ChildOrderStatusPending).
		Order("paid_at ASC, id ASC").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) Archive(ctx context.Context, orderID uuid.UUID, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND archived_at IS NULL", orderID).
		UpdateColumn("archived_at", at)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
