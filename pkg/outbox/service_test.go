package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-ledger/pkg/db/dbtest"
	"github.com/angelmondragon/marketplace-ledger/pkg/db/models"
	"github.com/angelmondragon/marketplace-ledger/pkg/enums"
)

func TestServiceEmitWritesEnvelope(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	svc := NewService(repo, nil)
	orderID := uuid.New()

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Data:          map[string]any{"order_id": orderID.String()},
		})
	}))

	rows, err := repo.FetchUnpublished(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, orderID, rows[0].AggregateID)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &envelope))
	assert.Equal(t, 1, envelope.Version)
	assert.NotEmpty(t, envelope.EventID)
	assert.JSONEq(t, `{"order_id":"`+orderID.String()+`"}`, string(envelope.Data))
}

func TestServiceEmitRollsBackWithTransaction(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	svc := NewService(repo, nil)

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventWithdrawalRequested,
			AggregateType: enums.AggregateWithdrawal,
			AggregateID:   uuid.New(),
			Data:          struct{}{},
		}); err != nil {
			return err
		}
		return gorm.ErrInvalidData
	})
	require.Error(t, err)

	rows, err := repo.FetchUnpublished(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestServiceEmitValidates(t *testing.T) {
	db := dbtest.Open(t)
	svc := NewService(NewRepository(db), nil)

	assert.Error(t, svc.Emit(context.Background(), nil, DomainEvent{}))
	assert.Error(t, svc.Emit(context.Background(), db, DomainEvent{EventType: "nope", AggregateType: enums.AggregateOrder}))
	assert.Error(t, svc.Emit(context.Background(), db, DomainEvent{EventType: enums.EventOrderPaid, AggregateType: "nope"}))
	assert.Error(t, svc.Emit(context.Background(), db, DomainEvent{EventType: enums.EventPaymentSettled, AggregateType: enums.AggregateOrder}))
	assert.Error(t, svc.Emit(context.Background(), db, DomainEvent{EventType: enums.EventOrderPaid, Data: func() {}}))
}

func TestServiceEmitDefaultsAggregateType(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	svc := NewService(repo, nil)
	childID := uuid.New()

	require.NoError(t, svc.Emit(context.Background(), db, DomainEvent{
		EventType:   enums.EventPaymentSettled,
		AggregateID: childID,
		Data:        map[string]int64{"vendor_amount_cents": 850},
	}))

	rows, err := repo.FetchUnpublished(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.AggregateChildOrder, rows[0].AggregateType)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &envelope))
	require.NoError(t, envelope.Validate())
}

func TestPayloadEnvelopeValidate(t *testing.T) {
	valid := PayloadEnvelope{Version: SchemaVersion, EventID: uuid.NewString(), OccurredAt: time.Now()}
	require.NoError(t, valid.Validate())

	future := valid
	future.Version = SchemaVersion + 1
	assert.Error(t, future.Validate())

	noID := valid
	noID.EventID = "evt"
	assert.Error(t, noID.Validate())

	noTime := valid
	noTime.OccurredAt = time.Time{}
	assert.Error(t, noTime.Validate())
}

func TestRepositoryPublishLifecycle(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	ctx := context.Background()

	old := models.OutboxEvent{ID: uuid.New(), EventType: enums.EventOrderPaid, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`)}
	fresh := models.OutboxEvent{ID: uuid.New(), EventType: enums.EventOrderPaid, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`)}
	require.NoError(t, repo.Insert(ctx, db, old))
	require.NoError(t, repo.Insert(ctx, db, fresh))

	require.NoError(t, repo.MarkFailed(ctx, fresh.ID, assert.AnError))
	require.NoError(t, repo.MarkPublished(ctx, old.ID))

	rows, err := repo.FetchUnpublished(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, fresh.ID, rows[0].ID)
	assert.Equal(t, 1, rows[0].AttemptCount)
	require.NotNil(t, rows[0].LastError)

	deleted, err := repo.DeletePublishedBefore(ctx, time.Now().UTC().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	deleted, err = repo.DeletePublishedBefore(ctx, time.Now().UTC().Add(time.Minute))
	require.NoError(t, err)
	assert.Zero(t, deleted, "unpublished rows are retained")
}

func TestRepositoryPublisherTransitions(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	ctx := context.Background()

	newRow := func() models.OutboxEvent {
		return models.OutboxEvent{ID: uuid.New(), EventType: enums.EventWithdrawalRequested, AggregateType: enums.AggregateWithdrawal, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`)}
	}
	published, retried, parked := newRow(), newRow(), newRow()
	for _, row := range []models.OutboxEvent{published, retried, parked} {
		require.NoError(t, repo.Insert(ctx, db, row))
	}

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		rows, err := repo.FetchUnpublishedForPublish(tx, 10, 3)
		require.NoError(t, err)
		require.Len(t, rows, 3)
		require.NoError(t, repo.MarkPublishedTx(tx, published.ID))
		require.NoError(t, repo.MarkFailedTx(tx, retried.ID, assert.AnError))
		return repo.MarkTerminalTx(tx, parked.ID, assert.AnError, 3)
	}))

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		rows, err := repo.FetchUnpublishedForPublish(tx, 10, 3)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, retried.ID, rows[0].ID)
		assert.Equal(t, 1, rows[0].AttemptCount)
		return nil
	}))

	assert.Error(t, repo.MarkPublishedTx(nil, published.ID))
}

func TestDLQRepositoryTruncatesErrors(t *testing.T) {
	db := dbtest.Open(t)
	dlq := NewDLQRepository(db)
	event := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventPaymentSettled,
		AggregateType: enums.AggregateChildOrder,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
		AttemptCount:  10,
	}
	cause := errors.New(strings.Repeat("x", maxDLQErrorLen-1) + "é and more")

	require.NoError(t, dlq.InsertTx(db, NewDLQEntry(event, enums.OutboxDLQReasonMaxAttempts, cause)))

	stored, err := dlq.FindByEventID(context.Background(), event.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, maxDLQErrorLen-1, len(*stored.ErrorMessage))
	assert.True(t, utf8.ValidString(*stored.ErrorMessage))
	assert.Equal(t, 10, stored.AttemptCount)

	missing, err := dlq.FindByEventID(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestDLQRepositoryIgnoresDuplicateEvent(t *testing.T) {
	db := dbtest.Open(t)
	dlq := NewDLQRepository(db)
	event := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventWithdrawalRequested,
		AggregateType: enums.AggregateWithdrawal,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
	}

	require.NoError(t, dlq.InsertTx(db, NewDLQEntry(event, enums.OutboxDLQReasonNonRetryable, errors.New("no topic"))))
	require.NoError(t, dlq.InsertTx(db, NewDLQEntry(event, enums.OutboxDLQReasonMaxAttempts, errors.New("again"))))
	assert.Error(t, dlq.InsertTx(db, NewDLQEntry(event, "bogus", nil)))
	assert.Error(t, dlq.InsertTx(nil, NewDLQEntry(event, enums.OutboxDLQReasonMaxAttempts, nil)))

	rows, err := dlq.List(context.Background(), DLQFilter{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.OutboxDLQReasonNonRetryable, rows[0].ErrorReason)

	filtered, err := dlq.List(context.Background(), DLQFilter{Reason: enums.OutboxDLQReasonMaxAttempts})
	require.NoError(t, err)
	assert.Empty(t, filtered)
}
