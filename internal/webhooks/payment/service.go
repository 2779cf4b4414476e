package paymentwebhook

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-ledger/internal/settlement"
	pkgerrors "github.com/angelmondragon/marketplace-ledger/pkg/errors"
	"github.com/angelmondragon/marketplace-ledger/pkg/logger"
)

const (
	EventPaymentSucceeded = "payment.succeeded"
	EventPaymentFailed    = "payment.failed"
)

// Event is the payment gateway notification body.
type Event struct {
	EventID string    `json:"event_id"`
	Type    string    `json:"type"`
	Data    EventData `json:"data"`
}

type EventData struct {
	OrderID           string `json:"order_id"`
	ExternalReference string `json:"external_reference"`
	AmountCents       int64  `json:"amount_cents"`
	FailureReason     string `json:"failure_reason,omitempty"`
}

// Ack tells the gateway what happened to a delivery.
type Ack struct {
	EventID   string `json:"event_id"`
	Duplicate bool   `json:"duplicate"`
	Ignored   bool   `json:"ignored,omitempty"`
	Outcome   string `json:"outcome,omitempty"`
}

type eventGuard interface {
	Processed(ctx context.Context, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, eventID string) error
}

type ServiceParams struct {
	Settlement settlement.Service
	Guard      eventGuard
	Logger     *logger.Logger
}

// Service turns verified gateway notifications into settlement calls. The
// redis guard only saves work; replays that slip past it are absorbed by the
// settlement fences.
type Service struct {
	settlement settlement.Service
	guard      eventGuard
	logg       *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Settlement == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "settlement service required")
	}
	if params.Guard == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard required")
	}
	return &Service{
		settlement: params.Settlement,
		guard:      params.Guard,
		logg:       params.Logger,
	}, nil
}

// HandleEvent processes one payment notification. Unknown event types are
// acknowledged and ignored.
func (s *Service) HandleEvent(ctx context.Context, event *Event) (*Ack, error) {
	if event == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment event required")
	}
	eventID := strings.TrimSpace(event.EventID)
	if eventID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event_id is required")
	}
	ack := &Ack{EventID: eventID}

	eventType := strings.ToLower(strings.TrimSpace(event.Type))
	if eventType != EventPaymentSucceeded && eventType != EventPaymentFailed {
		ack.Ignored = true
		return ack, nil
	}
	orderID, err := uuid.Parse(strings.TrimSpace(event.Data.OrderID))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "data.order_id must be a uuid")
	}
	if s.logg != nil {
		ctx = s.logg.WithFields(ctx, map[string]any{
			"event_id":   eventID,
			"event_type": eventType,
			"order_id":   orderID.String(),
		})
	}

	seen, err := s.guard.Processed(ctx, eventID)
	if err != nil {
		// redis is an optimisation; fall through to the database fences
		s.warn(ctx, "payment webhook idempotency check failed: "+err.Error())
	} else if seen {
		ack.Duplicate = true
		return ack, nil
	}

	outcome, err := s.dispatch(ctx, eventType, orderID, event.Data)
	if err != nil {
		return nil, err
	}
	if err := s.guard.MarkProcessed(ctx, eventID); err != nil {
		s.warn(ctx, "payment webhook idempotency mark failed: "+err.Error())
	}
	ack.Outcome = outcome
	return ack, nil
}

func (s *Service) warn(ctx context.Context, msg string) {
	if s.logg != nil {
		s.logg.Warn(ctx, msg)
	}
}

func (s *Service) dispatch(ctx context.Context, eventType string, orderID uuid.UUID, data EventData) (string, error) {
	switch eventType {
	case EventPaymentSucceeded:
		result, err := s.settlement.SettlePayment(ctx, settlement.SettlePaymentInput{
			OrderID:           orderID,
			ExternalReference: data.ExternalReference,
			AmountCents:       data.AmountCents,
		})
		if err != nil {
			return "", err
		}
		return string(result.Outcome), nil
	default:
		result, err := s.settlement.FailPayment(ctx, settlement.FailPaymentInput{
			OrderID:           orderID,
			ExternalReference: data.ExternalReference,
			Reason:            data.FailureReason,
		})
		if err != nil {
			return "", err
		}
		return string(result.PaymentState), nil
	}
}
