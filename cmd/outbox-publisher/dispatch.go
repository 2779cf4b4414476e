package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-ledger/pkg/db/models"
	"github.com/angelmondragon/marketplace-ledger/pkg/enums"
	"github.com/angelmondragon/marketplace-ledger/pkg/metrics"
	"github.com/angelmondragon/marketplace-ledger/pkg/outbox"
	"github.com/angelmondragon/marketplace-ledger/pkg/outbox/registry"
)

var errUnroutable = errors.New("no publisher configured for topic")

// dispatch publishes one row and records its new state inside tx. The
// returned error is only set when the row state itself could not be written.
func (s *Service) dispatch(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) (string, error) {
	resolved, err := s.registry.Resolve(event)
	if err != nil {
		return metrics.OutboxDeadLettered, s.deadLetter(ctx, tx, event, enums.OutboxDLQReasonNonRetryable, err, nil)
	}

	fields := s.eventFields(event, resolved.Envelope, resolved.Descriptor.Topic)
	err = s.publish(ctx, event, resolved)
	if err == nil {
		if markErr := s.repo.MarkPublishedTx(tx, event.ID); markErr != nil {
			return "", fmt.Errorf("mark published %s: %w", event.ID, markErr)
		}
		s.logg.Info(s.logg.WithFields(ctx, fields), "outbox event published")
		return metrics.OutboxPublished, nil
	}

	attempt := event.AttemptCount + 1
	fields["attempt_count"] = attempt
	if reason, terminal := s.classify(err, attempt); terminal {
		if reason == enums.OutboxDLQReasonMaxAttempts {
			err = fmt.Errorf("max publish attempts reached: %w", err)
		}
		return metrics.OutboxDeadLettered, s.deadLetter(ctx, tx, event, reason, err, fields)
	}

	s.logg.Warn(s.logg.WithField(s.logg.WithFields(ctx, fields), "error", err.Error()), "outbox publish failed, will retry")
	if markErr := s.repo.MarkFailedTx(tx, event.ID, err); markErr != nil {
		return "", fmt.Errorf("mark failure %s: %w", event.ID, markErr)
	}
	return metrics.OutboxRetried, nil
}

// classify picks the DLQ reason for a failed publish, or reports the row as
// retryable.
func (s *Service) classify(err error, attempt int) (enums.OutboxDLQErrorReason, bool) {
	var nonRetry registry.NonRetryableError
	switch {
	case errors.Is(err, errUnroutable):
		return enums.OutboxDLQReasonUnroutable, true
	case errors.As(err, &nonRetry):
		return enums.OutboxDLQReasonNonRetryable, true
	case attempt >= s.maxAttempts:
		return enums.OutboxDLQReasonMaxAttempts, true
	default:
		return "", false
	}
}

// deadLetter copies the row into the DLQ and parks it so it is never fetched again.
func (s *Service) deadLetter(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, err error, fields map[string]any) error {
	if fields == nil {
		fields = s.eventFields(event, outbox.PayloadEnvelope{}, "")
	}
	fields["error_reason"] = reason
	s.logg.Warn(s.logg.WithField(s.logg.WithFields(ctx, fields), "error", err.Error()), "outbox event dead lettered")

	if dlqErr := s.dlq.InsertTx(tx, outbox.NewDLQEntry(event, reason, err)); dlqErr != nil {
		return fmt.Errorf("insert dlq %s: %w", event.ID, dlqErr)
	}
	if markErr := s.repo.MarkTerminalTx(tx, event.ID, err, s.maxAttempts); markErr != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, markErr)
	}
	return nil
}

func (s *Service) publish(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Descriptor.Topic
	pub := s.publishers.get(topic, s.publisherFactory)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("%w: %s", errUnroutable, topic))
	}

	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	result := pub.Publish(publishCtx, &gcppubsub.Message{
		Data:       event.Payload,
		Attributes: messageAttributes(event, resolved.Envelope),
	})
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher returned nil for topic %s", topic))
	}
	_, err := result.Get(publishCtx)
	return err
}

// messageAttributes lets subscribers route and dedupe without decoding Data.
func messageAttributes(event models.OutboxEvent, envelope outbox.PayloadEnvelope) map[string]string {
	return map[string]string{
		"event_id":       envelope.EventID,
		"event_type":     string(event.EventType),
		"aggregate_type": string(event.AggregateType),
		"aggregate_id":   event.AggregateID.String(),
		"schema_version": strconv.Itoa(envelope.Version),
		"occurred_at":    envelope.OccurredAt.UTC().Format(time.RFC3339Nano),
	}
}

func (s *Service) eventFields(event models.OutboxEvent, envelope outbox.PayloadEnvelope, topic string) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"batch_size":     s.batchSize,
		"attempt_count":  event.AttemptCount,
	}
	if envelope.EventID != "" {
		fields["event_id"] = envelope.EventID
		fields["occurred_at"] = envelope.OccurredAt.Format(time.RFC3339Nano)
	}
	if topic != "" {
		fields["topic"] = topic
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return fields
}
