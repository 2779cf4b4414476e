package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-ledger/pkg/config"
	"github.com/angelmondragon/marketplace-ledger/pkg/db/models"
	"github.com/angelmondragon/marketplace-ledger/pkg/enums"
	"github.com/angelmondragon/marketplace-ledger/pkg/logger"
	"github.com/angelmondragon/marketplace-ledger/pkg/metrics"
	"github.com/angelmondragon/marketplace-ledger/pkg/outbox"
	"github.com/angelmondragon/marketplace-ledger/pkg/outbox/payloads"
	"github.com/angelmondragon/marketplace-ledger/pkg/outbox/registry"
)

const settlementTopic = "settlement-events"

// harness wires a Service to in-memory collaborators.
type harness struct {
	svc  *Service
	rows *memoryOutbox
	dlq  *memoryDLQ
	pub  *scriptedPublisher
}

type harnessOption func(*harnessConfig)

type harnessConfig struct {
	outbox   config.OutboxConfig
	resolver registryResolver
}

func withMaxAttempts(n int) harnessOption {
	return func(c *harnessConfig) { c.outbox.MaxAttempts = n }
}

func withResolver(r registryResolver) harnessOption {
	return func(c *harnessConfig) { c.resolver = r }
}

func newHarness(t *testing.T, rows []models.OutboxEvent, results []error, opts ...harnessOption) *harness {
	t.Helper()
	hc := harnessConfig{
		outbox:   config.OutboxConfig{BatchSize: 2, PollIntervalMS: 100, MaxAttempts: 5},
		resolver: settlementResolver{},
	}
	for _, opt := range opts {
		opt(&hc)
	}

	h := &harness{
		rows: &memoryOutbox{rows: rows},
		dlq:  &memoryDLQ{},
		pub:  &scriptedPublisher{results: results},
	}
	svc, err := NewService(ServiceParams{
		Config:           &config.Config{Outbox: hc.outbox},
		Logger:           logger.New(logger.Options{ServiceName: "outbox-publisher-test", Output: io.Discard}),
		DB:               inlineTx{},
		PubSub:           nopPubSub{},
		Repository:       h.rows,
		Registry:         hc.resolver,
		PublisherFactory: func(string) publisher { return h.pub },
		DLQRepository:    h.dlq,
		Metrics:          metrics.NewOutboxMetrics(prometheus.NewRegistry()),
	})
	require.NoError(t, err)
	h.svc = svc
	return h
}

func settledRow(t *testing.T) models.OutboxEvent {
	t.Helper()
	payload, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    outbox.SchemaVersion,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       json.RawMessage(`{}`),
	})
	require.NoError(t, err)
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventPaymentSettled,
		AggregateType: enums.AggregateChildOrder,
		AggregateID:   uuid.New(),
		Payload:       payload,
	}
}

var errTransient = errors.New("deadline exceeded")

func TestProcessBatchRetriesOnlyTheFailedRow(t *testing.T) {
	first, second := settledRow(t), settledRow(t)
	h := newHarness(t, []models.OutboxEvent{first, second}, []error{errTransient, nil})

	processed, err := h.svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)
	assert.Equal(t, []uuid.UUID{first.ID}, h.rows.failed)
	assert.Equal(t, []uuid.UUID{second.ID}, h.rows.published)
	assert.Empty(t, h.rows.terminal, "transient failure must not dead letter")
}

func TestProcessBatchEmptyReportsIdle(t *testing.T) {
	h := newHarness(t, nil, nil)

	processed, err := h.svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestPublishCarriesEnvelopeAndRoutingAttributes(t *testing.T) {
	row := settledRow(t)
	h := newHarness(t, []models.OutboxEvent{row}, []error{nil})

	var topics []string
	h.svc.publisherFactory = func(topic string) publisher {
		topics = append(topics, topic)
		return h.pub
	}

	_, err := h.svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{settlementTopic}, topics)
	require.Len(t, h.pub.sent, 1)

	msg := h.pub.sent[0]
	assert.JSONEq(t, string(row.Payload), string(msg.Data))
	assert.Equal(t, row.ID.String(), msg.Attributes["event_id"])
	assert.Equal(t, string(enums.EventPaymentSettled), msg.Attributes["event_type"])
	assert.Equal(t, string(enums.AggregateChildOrder), msg.Attributes["aggregate_type"])
	assert.Equal(t, row.AggregateID.String(), msg.Attributes["aggregate_id"])
	assert.Equal(t, "1", msg.Attributes["schema_version"])
}

func TestPublisherReusedPerTopicAndStoppedOnClose(t *testing.T) {
	h := newHarness(t, []models.OutboxEvent{settledRow(t), settledRow(t)}, []error{nil, nil})
	created := 0
	h.svc.publisherFactory = func(string) publisher {
		created++
		return h.pub
	}

	_, err := h.svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	h.svc.Close()
	assert.True(t, h.pub.stopped)
}

func TestUnresolvableRowIsDeadLettered(t *testing.T) {
	row := settledRow(t)
	h := newHarness(t, []models.OutboxEvent{row}, nil,
		withResolver(failingResolver{err: registry.NewNonRetryableError(errors.New("invalid payload"))}))

	processed, err := h.svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)

	require.Len(t, h.dlq.entries, 1)
	entry := h.dlq.entries[0]
	assert.Equal(t, row.ID, entry.EventID)
	assert.JSONEq(t, string(row.Payload), string(entry.Payload))
	assert.Equal(t, enums.OutboxDLQReasonNonRetryable, entry.ErrorReason)
	assert.Equal(t, []uuid.UUID{row.ID}, h.rows.terminal)
}

func TestMissingPublisherIsUnroutable(t *testing.T) {
	h := newHarness(t, []models.OutboxEvent{settledRow(t)}, nil)
	h.svc.publisherFactory = func(string) publisher { return nil }

	_, err := h.svc.processBatch(context.Background())
	require.NoError(t, err)
	require.Len(t, h.dlq.entries, 1)
	assert.Equal(t, enums.OutboxDLQReasonUnroutable, h.dlq.entries[0].ErrorReason)
}

func TestExhaustedRetriesAreDeadLettered(t *testing.T) {
	row := settledRow(t)
	row.AttemptCount = 1
	h := newHarness(t, []models.OutboxEvent{row}, []error{errTransient}, withMaxAttempts(2))

	_, err := h.svc.processBatch(context.Background())
	require.NoError(t, err)
	require.Len(t, h.dlq.entries, 1)
	assert.Equal(t, enums.OutboxDLQReasonMaxAttempts, h.dlq.entries[0].ErrorReason)
	require.NotNil(t, h.dlq.entries[0].ErrorMessage)
	assert.Contains(t, *h.dlq.entries[0].ErrorMessage, "max publish attempts reached")
	assert.Empty(t, h.rows.failed, "terminal row must not also be marked failed")
}

func TestClassifyPublishFailure(t *testing.T) {
	h := newHarness(t, nil, nil)
	cases := []struct {
		name     string
		err      error
		attempt  int
		reason   enums.OutboxDLQErrorReason
		terminal bool
	}{
		{"transient", errTransient, 1, "", false},
		{"unroutable", registry.NewNonRetryableError(fmt.Errorf("%w: x", errUnroutable)), 1, enums.OutboxDLQReasonUnroutable, true},
		{"non retryable", registry.NewNonRetryableError(errors.New("bad")), 1, enums.OutboxDLQReasonNonRetryable, true},
		{"exhausted", errTransient, 5, enums.OutboxDLQReasonMaxAttempts, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reason, terminal := h.svc.classify(tc.err, tc.attempt)
			assert.Equal(t, tc.reason, reason)
			assert.Equal(t, tc.terminal, terminal)
		})
	}
}

func TestSettingsFromAppliesDefaults(t *testing.T) {
	assert.Equal(t, settings{defaultBatchSize, defaultMaxAttempts, defaultPollInterval}, settingsFrom(config.OutboxConfig{}))
	assert.Equal(t, settings{7, 3, 250 * time.Millisecond}, settingsFrom(config.OutboxConfig{BatchSize: 7, MaxAttempts: 3, PollIntervalMS: 250}))
}

func TestNextBackoffCapsAtMax(t *testing.T) {
	base := 100 * time.Millisecond
	assert.Equal(t, 2*base, nextBackoff(0, base, time.Second))
	assert.Equal(t, time.Second, nextBackoff(800*time.Millisecond, base, time.Second))
}

func TestRunStopsOnCanceledContext(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, h.svc.Run(ctx), context.Canceled)
}

func TestNewServiceNamesMissingDependency(t *testing.T) {
	_, err := NewService(ServiceParams{Config: &config.Config{}})
	assert.EqualError(t, err, "logger is required")
}

type memoryOutbox struct {
	rows      []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
	terminal  []uuid.UUID
}

func (m *memoryOutbox) FetchUnpublishedForPublish(*gorm.DB, int, int) ([]models.OutboxEvent, error) {
	return m.rows, nil
}

func (m *memoryOutbox) MarkPublishedTx(_ *gorm.DB, id uuid.UUID) error {
	m.published = append(m.published, id)
	return nil
}

func (m *memoryOutbox) MarkFailedTx(_ *gorm.DB, id uuid.UUID, _ error) error {
	m.failed = append(m.failed, id)
	return nil
}

func (m *memoryOutbox) MarkTerminalTx(_ *gorm.DB, id uuid.UUID, _ error, _ int) error {
	m.terminal = append(m.terminal, id)
	return nil
}

type memoryDLQ struct {
	entries []models.OutboxDLQ
}

func (m *memoryDLQ) InsertTx(_ *gorm.DB, entry models.OutboxDLQ) error {
	m.entries = append(m.entries, entry)
	return nil
}

type inlineTx struct{}

func (inlineTx) Ping(context.Context) error { return nil }

func (inlineTx) WithTx(_ context.Context, fn func(*gorm.DB) error) error { return fn(nil) }

type nopPubSub struct{}

func (nopPubSub) Ping(context.Context) error { return nil }

func (nopPubSub) Publisher(string) *gcppubsub.Publisher { return nil }

// scriptedPublisher answers each Publish with the next scripted error.
type scriptedPublisher struct {
	results []error
	sent    []*gcppubsub.Message
	stopped bool
}

func (p *scriptedPublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	p.sent = append(p.sent, msg)
	if len(p.results) == 0 {
		return nil
	}
	err := p.results[0]
	p.results = p.results[1:]
	return resultOf{err}
}

func (p *scriptedPublisher) Stop() { p.stopped = true }

type resultOf struct{ err error }

func (r resultOf) Get(context.Context) (string, error) { return "server-id", r.err }

// settlementResolver routes every row to the settlement topic and echoes the
// row id as the envelope event id.
type settlementResolver struct{}

func (settlementResolver) Resolve(event models.OutboxEvent) (*registry.ResolvedEvent, error) {
	return &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{
			EventType:     event.EventType,
			AggregateType: event.AggregateType,
			Topic:         settlementTopic,
		},
		Envelope: outbox.PayloadEnvelope{
			Version:    outbox.SchemaVersion,
			EventID:    event.ID.String(),
			OccurredAt: time.Now(),
		},
		Payload: &payloads.PaymentSettledEvent{},
	}, nil
}

type failingResolver struct{ err error }

func (f failingResolver) Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error) {
	return nil, f.err
}
