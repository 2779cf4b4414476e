package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-ledger/pkg/db/models"
	"github.com/angelmondragon/marketplace-ledger/pkg/enums"
	"github.com/angelmondragon/marketplace-ledger/pkg/outbox"
)

type stubDLQ struct {
	filter outbox.DLQFilter
	rows   []models.OutboxDLQ
}

func (s *stubDLQ) List(_ context.Context, filter outbox.DLQFilter) ([]models.OutboxDLQ, error) {
	s.filter = filter
	return s.rows, nil
}

func TestAdminListOutboxDLQAppliesFilter(t *testing.T) {
	msg := "max publish attempts reached: deadline exceeded"
	stub := &stubDLQ{rows: []models.OutboxDLQ{{
		EventID:       uuid.New(),
		EventType:     enums.EventPaymentSettled,
		AggregateType: enums.AggregateChildOrder,
		AggregateID:   uuid.New(),
		ErrorReason:   enums.OutboxDLQReasonMaxAttempts,
		ErrorMessage:  &msg,
		AttemptCount:  10,
		FailedAt:      time.Now().UTC(),
		Payload:       json.RawMessage(`{"version":1}`),
	}}}

	rec := httptest.NewRecorder()
	req := newRequest(http.MethodGet, "/api/v1/admin/outbox/dlq?reason=max_attempts&event_type=payment_settled&limit=5", nil, uuid.New(), "admin")
	AdminListOutboxDLQ(stub, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if stub.filter.Reason != enums.OutboxDLQReasonMaxAttempts || stub.filter.EventType != enums.EventPaymentSettled || stub.filter.Limit != 5 {
		t.Fatalf("unexpected filter %+v", stub.filter)
	}
	out := decodeEnvelope[struct {
		Entries []dlqEntryResponse `json:"entries"`
	}](t, rec)
	if len(out.Data.Entries) != 1 || !out.Data.Entries[0].Retriable || out.Data.Entries[0].AttemptCount != 10 {
		t.Fatalf("unexpected entries %+v", out.Data.Entries)
	}
}

func TestAdminListOutboxDLQRejectsUnknownReason(t *testing.T) {
	rec := httptest.NewRecorder()
	req := newRequest(http.MethodGet, "/api/v1/admin/outbox/dlq?reason=lost", nil, uuid.New(), "admin")
	AdminListOutboxDLQ(&stubDLQ{}, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}
