package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-ledger/pkg/db/dbtest"
	"github.com/angelmondragon/marketplace-ledger/pkg/db/models"
	"github.com/angelmondragon/marketplace-ledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketplace-ledger/pkg/errors"
	"github.com/angelmondragon/marketplace-ledger/pkg/pagination"
)

type failingRepository struct {
	Repository
	appendErr error
}

func (f *failingRepository) WithTx(tx *gorm.DB) Repository {
	return f
}

func (f *failingRepository) Append(ctx context.Context, txn *models.Transaction) error {
	return f.appendErr
}

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	db := dbtest.Open(t)
	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)
	return svc, db
}

func creditInput(accountID uuid.UUID, amount int64, ref string) RecordInput {
	return RecordInput{
		Type:              enums.TransactionTypeCredit,
		Source:            enums.TransactionSourceOrderPayment,
		Status:            enums.TransactionStatusCompleted,
		AmountCents:       amount,
		AccountID:         accountID,
		Role:              enums.WalletRoleChef,
		ExternalReference: ref,
	}
}

func TestServiceRecordCompletedStampsSettledAt(t *testing.T) {
	svc, _ := newTestService(t)
	child := uuid.New()

	txn, err := svc.Record(context.Background(), nil, creditInput(uuid.New(), 8500, OrderPaymentReference(child)))
	require.NoError(t, err)
	require.NotNil(t, txn.SettledAt)
	require.NotNil(t, txn.ExternalReference)
	assert.Equal(t, "order_payment:"+child.String(), *txn.ExternalReference)
	assert.Nil(t, txn.Description)
}

func TestServiceRecordDuplicateReference(t *testing.T) {
	svc, _ := newTestService(t)
	account := uuid.New()
	ref := CommissionReference(uuid.New())

	_, err := svc.Record(context.Background(), nil, creditInput(account, 1500, ref))
	require.NoError(t, err)

	_, err = svc.Record(context.Background(), nil, creditInput(account, 1500, ref))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateReference))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	totals, err := svc.Totals(context.Background(), account, enums.WalletRoleChef)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), totals.CompletedCreditsCents)
}

func TestServiceRecordAllowsManyUnreferencedRows(t *testing.T) {
	svc, _ := newTestService(t)
	account := uuid.New()
	for i := 0; i < 3; i++ {
		_, err := svc.Record(context.Background(), nil, creditInput(account, 100, ""))
		require.NoError(t, err)
	}
	totals, err := svc.Totals(context.Background(), account, enums.WalletRoleChef)
	require.NoError(t, err)
	assert.Equal(t, int64(300), totals.CompletedCreditsCents)
}

func TestServiceRecordValidation(t *testing.T) {
	svc, _ := newTestService(t)
	base := creditInput(uuid.New(), 100, "")

	cases := map[string]func(in *RecordInput){
		"zero amount":     func(in *RecordInput) { in.AmountCents = 0 },
		"negative amount": func(in *RecordInput) { in.AmountCents = -5 },
		"bad type":        func(in *RecordInput) { in.Type = "REVERSAL" },
		"bad source":      func(in *RecordInput) { in.Source = "GIFT" },
		"bad status":      func(in *RecordInput) { in.Status = "SETTLED" },
		"missing account": func(in *RecordInput) { in.AccountID = uuid.Nil },
		"bad role":        func(in *RecordInput) { in.Role = "admin" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := base
			mutate(&in)
			_, err := svc.Record(context.Background(), nil, in)
			require.Error(t, err)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
		})
	}
}

func TestServiceRecordDependencyFailure(t *testing.T) {
	svc, err := NewService(&failingRepository{appendErr: errors.New("connection reset")})
	require.NoError(t, err)

	_, err = svc.Record(context.Background(), nil, creditInput(uuid.New(), 100, ""))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	assert.True(t, pkgerrors.Retryable(err))
}

func TestServiceSettleWithdrawalMovesOnlyPendingLegs(t *testing.T) {
	svc, db := newTestService(t)
	account := uuid.New()
	withdrawalID := uuid.New()

	for _, in := range []RecordInput{
		{Type: enums.TransactionTypeDebit, Source: enums.TransactionSourceWithdrawal, Status: enums.TransactionStatusPending, AmountCents: 450, AccountID: account, Role: enums.WalletRoleVendor, WithdrawalID: &withdrawalID, ExternalReference: WithdrawalReference(withdrawalID)},
		{Type: enums.TransactionTypeDebit, Source: enums.TransactionSourceWithdrawalFee, Status: enums.TransactionStatusPending, AmountCents: 50, AccountID: account, Role: enums.WalletRoleVendor, WithdrawalID: &withdrawalID, ExternalReference: WithdrawalFeeReference(withdrawalID)},
	} {
		_, err := svc.Record(context.Background(), db, in)
		require.NoError(t, err)
	}

	totals, err := svc.Totals(context.Background(), account, enums.WalletRoleVendor)
	require.NoError(t, err)
	assert.Equal(t, int64(500), totals.PendingDebitsCents)

	moved, err := svc.SettleWithdrawal(context.Background(), nil, withdrawalID, enums.TransactionStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, int64(2), moved)

	moved, err = svc.SettleWithdrawal(context.Background(), nil, withdrawalID, enums.TransactionStatusFailed)
	require.NoError(t, err)
	assert.Zero(t, moved, "completed legs never change again")

	totals, err = svc.Totals(context.Background(), account, enums.WalletRoleVendor)
	require.NoError(t, err)
	assert.Equal(t, int64(500), totals.CompletedDebitsCents)
	assert.Zero(t, totals.PendingDebitsCents)

	_, err = svc.SettleWithdrawal(context.Background(), nil, withdrawalID, enums.TransactionStatusPending)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestServiceListByAccountPaginates(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	svc, err := NewService(repo)
	require.NoError(t, err)
	account := uuid.New()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Append(context.Background(), &models.Transaction{
			Type:        enums.TransactionTypeCredit,
			Source:      enums.TransactionSourceOrderPayment,
			AmountCents: int64(100 * (i + 1)),
			AccountID:   account,
			Role:        enums.WalletRoleRider,
			Status:      enums.TransactionStatusCompleted,
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}))
	}
	// other role, same account
	require.NoError(t, repo.Append(context.Background(), &models.Transaction{
		Type: enums.TransactionTypeCredit, Source: enums.TransactionSourceTopUp, AmountCents: 1,
		AccountID: account, Role: enums.WalletRoleChef, Status: enums.TransactionStatusCompleted, CreatedAt: base,
	}))

	first, err := svc.ListByAccount(context.Background(), account, enums.WalletRoleRider, pagination.Params{Limit: 3})
	require.NoError(t, err)
	require.Len(t, first.Transactions, 3)
	assert.Equal(t, int64(500), first.Transactions[0].AmountCents)
	require.NotEmpty(t, first.NextCursor)

	second, err := svc.ListByAccount(context.Background(), account, enums.WalletRoleRider, pagination.Params{Limit: 3, Cursor: first.NextCursor})
	require.NoError(t, err)
	require.Len(t, second.Transactions, 2)
	assert.Equal(t, int64(200), second.Transactions[0].AmountCents)
	assert.Equal(t, int64(100), second.Transactions[1].AmountCents)
	assert.Empty(t, second.NextCursor)

	_, err = svc.ListByAccount(context.Background(), account, enums.WalletRoleRider, pagination.Params{Cursor: "%%%"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestRepositoryCompleteIsCompareAndSet(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	account := uuid.New()
	txn := &models.Transaction{
		Type: enums.TransactionTypeDebit, Source: enums.TransactionSourceRefund, AmountCents: 10,
		AccountID: account, Role: enums.WalletRoleVendor, Status: enums.TransactionStatusPending,
	}
	require.NoError(t, repo.Append(context.Background(), txn))

	ok, err := repo.Complete(context.Background(), txn.ID, time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Fail(context.Background(), txn.ID, time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.Complete(context.Background(), txn.ID, time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRepositoryFindAndListByOrder(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	svc, err := NewService(repo)
	require.NoError(t, err)

	orderID := uuid.New()
	childID := uuid.New()
	in := creditInput(uuid.New(), 8500, OrderPaymentReference(childID))
	in.OrderID = &orderID
	in.ChildOrderID = &childID
	_, err = svc.Record(context.Background(), nil, in)
	require.NoError(t, err)

	found, err := repo.FindByExternalReference(context.Background(), OrderPaymentReference(childID))
	require.NoError(t, err)
	assert.Equal(t, int64(8500), found.AmountCents)

	_, err = repo.FindByExternalReference(context.Background(), "missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	rows, err := svc.ListByOrder(context.Background(), orderID)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestNewServiceRequiresRepository(t *testing.T) {
	_, err := NewService(nil)
	assert.Error(t, err)
}
