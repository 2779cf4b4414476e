package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-ledger/pkg/db/models"
)

// Repository defines persistence operations for orders and their child orders.
// State transitions are conditional updates; the bool result is true only for
// the caller whose update matched.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindChildOrder(ctx context.Context, childOrderID uuid.UUID) (*models.ChildOrder, error)
	ListChildOrders(ctx context.Context, orderID uuid.UUID) ([]models.ChildOrder, error)
	MarkOrderPaid(ctx context.Context, orderID uuid.UUID, reference string, paidAt time.Time) (bool, error)
	MarkOrderFailed(ctx context.Context, orderID uuid.UUID, reason string) (bool, error)
	MarkChildOrderPaid(ctx context.Context, childOrderID uuid.UUID, settlement ChildSettlement, paidAt time.Time) (bool, error)
	ListPaidOrdersWithUnsettledChildren(ctx context.Context, paidBefore time.Time, limit int) ([]models.Order, error)
	Archive(ctx context.Context, orderID uuid.UUID, at time.Time) (bool, error)
}

// ChildSettlement is the commission split frozen onto a child order when it is paid.
type ChildSettlement struct {
	Rate              decimal.Decimal
	CommissionCents   int64
	VendorAmountCents int64
}
