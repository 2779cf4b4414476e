package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-ledger/pkg/db/models"
	"github.com/angelmondragon/marketplace-ledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketplace-ledger/pkg/errors"
	"github.com/angelmondragon/marketplace-ledger/pkg/types"
)

// VendorGroupInput is one vendor's share of a checkout.
type VendorGroupInput struct {
	VendorID      uuid.UUID
	VendorRole    enums.VendorRole
	LineItems     types.LineItems
	SubtotalCents int64
}

// CreateOrderInput is produced by checkout once totals are known.
type CreateOrderInput struct {
	CustomerID       uuid.UUID
	DeliveryFeeCents int64
	PlatformFeeCents int64
	VendorGroups     []VendorGroupInput
}

// Service exposes order operations that need validation beyond the repository.
type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error)
	GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	ArchiveOrder(ctx context.Context, orderID uuid.UUID) error
}

type service struct {
	repo Repository
	now  func() time.Time
}

// NewService wires the order service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

// CreateOrder persists a PENDING order with one PENDING child order per vendor.
// The order subtotal is the sum of vendor subtotals.
func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	if len(input.VendorGroups) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one vendor group is required")
	}
	if input.DeliveryFeeCents < 0 || input.PlatformFeeCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "fees must be non-negative")
	}

	orderID := uuid.New()
	seen := make(map[uuid.UUID]struct{}, len(input.VendorGroups))
	children := make([]models.ChildOrder, 0, len(input.VendorGroups))
	var subtotal int64
	for i, group := range input.VendorGroups {
		if group.VendorID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("vendor group %d: vendor id is required", i))
		}
		if !group.VendorRole.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("vendor group %d: invalid vendor role %q", i, group.VendorRole))
		}
		if group.SubtotalCents < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("vendor group %d: subtotal must be non-negative", i))
		}
		if len(group.LineItems) > 0 && group.LineItems.TotalCents() != group.SubtotalCents {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("vendor group %d: line items do not sum to subtotal", i))
		}
		if _, dup := seen[group.VendorID]; dup {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("vendor %s appears in more than one group", group.VendorID))
		}
		seen[group.VendorID] = struct{}{}
		subtotal += group.SubtotalCents

		children = append(children, models.ChildOrder{
			ID:            uuid.New(),
			OrderID:       orderID,
			VendorID:      group.VendorID,
			VendorRole:    group.VendorRole,
			LineItems:     group.LineItems,
			SubtotalCents: group.SubtotalCents,
			Status:        enums.ChildOrderStatusPending,
		})
	}

	order := &models.Order{
		ID:               orderID,
		CustomerID:       input.CustomerID,
		SubtotalCents:    subtotal,
		DeliveryFeeCents: input.DeliveryFeeCents,
		PlatformFeeCents: input.PlatformFeeCents,
		TotalAmountCents: subtotal + input.DeliveryFeeCents + input.PlatformFeeCents,
		PaymentState:     enums.PaymentStatePending,
		ChildOrders:      children,
	}
	created, err := s.repo.CreateOrder(ctx, order)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}
	return created, nil
}

func (s *service) GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

// ArchiveOrder hides an order from sweeps and listings. Orders are never deleted.
func (s *service) ArchiveOrder(ctx context.Context, orderID uuid.UUID) error {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.ArchivedAt != nil {
		return nil
	}
	if _, err := s.repo.Archive(ctx, orderID, s.now().UTC()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "archive order")
	}
	return nil
}
