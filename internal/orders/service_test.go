package orders

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/marketplace-ledger/pkg/db/dbtest"
	"github.com/angelmondragon/marketplace-ledger/pkg/db/models"
	"github.com/angelmondragon/marketplace-ledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketplace-ledger/pkg/errors"
	"github.com/angelmondragon/marketplace-ledger/pkg/types"
)

func TestService_CreateOrderComputesTotals(t *testing.T) {
	db := dbtest.Open(t)
	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)

	chef, vendor := uuid.New(), uuid.New()
	order, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		CustomerID:       uuid.New(),
		DeliveryFeeCents: 500,
		PlatformFeeCents: 100,
		VendorGroups: []VendorGroupInput{
			{VendorID: chef, VendorRole: enums.VendorRoleChef, SubtotalCents: 10000,
				LineItems: types.LineItems{{Name: "suya", Quantity: 2, UnitPriceCents: 5000, TotalCents: 10000}}},
			{VendorID: vendor, VendorRole: enums.VendorRoleVendor, SubtotalCents: 10000},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(20000), order.SubtotalCents)
	assert.Equal(t, int64(20600), order.TotalAmountCents)

	loaded, err := svc.GetOrder(context.Background(), order.ID)
	require.NoError(t, err)
	require.Len(t, loaded.ChildOrders, 2)
	for _, child := range loaded.ChildOrders {
		assert.Equal(t, enums.ChildOrderStatusPending, child.Status)
		assert.Equal(t, order.ID, child.OrderID)
	}
}

func TestService_CreateOrderValidation(t *testing.T) {
	svc, err := NewService(NewRepository(dbtest.Open(t)))
	require.NoError(t, err)
	vendor := uuid.New()

	cases := map[string]CreateOrderInput{
		"missing customer": {VendorGroups: []VendorGroupInput{{VendorID: vendor, VendorRole: enums.VendorRoleChef}}},
		"no groups":        {CustomerID: uuid.New()},
		"bad role":         {CustomerID: uuid.New(), VendorGroups: []VendorGroupInput{{VendorID: vendor, VendorRole: "baker"}}},
		"negative":         {CustomerID: uuid.New(), VendorGroups: []VendorGroupInput{{VendorID: vendor, VendorRole: enums.VendorRoleChef, SubtotalCents: -1}}},
		"duplicate vendor": {CustomerID: uuid.New(), VendorGroups: []VendorGroupInput{
			{VendorID: vendor, VendorRole: enums.VendorRoleChef},
			{VendorID: vendor, VendorRole: enums.VendorRoleRider},
		}},
		"line items mismatch": {CustomerID: uuid.New(), VendorGroups: []VendorGroupInput{
			{VendorID: vendor, VendorRole: enums.VendorRoleChef, SubtotalCents: 100, LineItems: types.LineItems{{TotalCents: 90}}},
		}},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.CreateOrder(context.Background(), input)
			require.Error(t, err)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
		})
	}
}

func TestService_GetOrderNotFound(t *testing.T) {
	svc, err := NewService(NewRepository(dbtest.Open(t)))
	require.NoError(t, err)
	_, err = svc.GetOrder(context.Background(), uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestService_ArchiveOrderIsIdempotent(t *testing.T) {
	db := dbtest.Open(t)
	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)
	order := seedOrder(t, db, 100)

	require.NoError(t, svc.ArchiveOrder(context.Background(), order.ID))
	require.NoError(t, svc.ArchiveOrder(context.Background(), order.ID))

	loaded, err := svc.GetOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.NotNil(t, loaded.ArchivedAt)
}

type failingRepo struct {
	Repository
}

func (failingRepo) FindOrder(context.Context, uuid.UUID) (*models.Order, error) {
	return nil, errors.New("db down")
}

func TestService_GetOrderDependencyFailure(t *testing.T) {
	svc, err := NewService(failingRepo{})
	require.NoError(t, err)
	_, err = svc.GetOrder(context.Background(), uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	assert.True(t, pkgerrors.Retryable(err))
}

func TestNewServiceRequiresRepository(t *testing.T) {
	_, err := NewService(nil)
	assert.Error(t, err)
}
