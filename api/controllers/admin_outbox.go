package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/marketplace-ledger/api/responses"
	"github.com/angelmondragon/marketplace-ledger/api/validators"
	"github.com/angelmondragon/marketplace-ledger/pkg/db/models"
	"github.com/angelmondragon/marketplace-ledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketplace-ledger/pkg/errors"
	"github.com/angelmondragon/marketplace-ledger/pkg/logger"
	"github.com/angelmondragon/marketplace-ledger/pkg/outbox"
)

type dlqLister interface {
	List(ctx context.Context, filter outbox.DLQFilter) ([]models.OutboxDLQ, error)
}

type dlqEntryResponse struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	ErrorReason   string          `json:"error_reason"`
	ErrorMessage  *string         `json:"error_message,omitempty"`
	Retriable     bool            `json:"retriable"`
	AttemptCount  int             `json:"attempt_count"`
	FailedAt      time.Time       `json:"failed_at"`
	Payload       json.RawMessage `json:"payload"`
}

// AdminListOutboxDLQ lists dead lettered events, newest first. reason and
// event_type narrow the result.
func AdminListOutboxDLQ(svc dlqLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dlq repository unavailable"))
			return
		}
		filter, err := dlqFilterFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := svc.List(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list dlq"))
			return
		}
		out := make([]dlqEntryResponse, 0, len(rows))
		for _, row := range rows {
			out = append(out, dlqEntryResponse{
				EventID:       row.EventID.String(),
				EventType:     string(row.EventType),
				AggregateType: string(row.AggregateType),
				AggregateID:   row.AggregateID.String(),
				ErrorReason:   string(row.ErrorReason),
				ErrorMessage:  row.ErrorMessage,
				Retriable:     row.ErrorReason.Retriable(),
				AttemptCount:  row.AttemptCount,
				FailedAt:      row.FailedAt,
				Payload:       row.Payload,
			})
		}
		responses.WriteSuccess(w, map[string]any{"entries": out})
	}
}

func dlqFilterFrom(r *http.Request) (outbox.DLQFilter, error) {
	limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
	if err != nil {
		return outbox.DLQFilter{}, err
	}
	filter := outbox.DLQFilter{Limit: limit}
	query := r.URL.Query()
	if raw := strings.TrimSpace(query.Get("reason")); raw != "" {
		if filter.Reason, err = enums.ParseOutboxDLQErrorReason(raw); err != nil {
			return outbox.DLQFilter{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid reason")
		}
	}
	if raw := strings.TrimSpace(query.Get("event_type")); raw != "" {
		if filter.EventType, err = enums.ParseOutboxEventType(raw); err != nil {
			return outbox.DLQFilter{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid event_type")
		}
	}
	return filter, nil
}
