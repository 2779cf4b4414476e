package paymentwebhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	pkgredis "github.com/angelmondragon/marketplace-ledger/pkg/redis"
)

const processedMark = "processed"

// IdempotencyGuard remembers gateway event ids that were fully processed so
// replays of the same delivery short-circuit before touching the database.
// An id is only marked after its work committed; a delivery that failed or
// never finished stays unmarked and the retry runs again.
type IdempotencyGuard struct {
	store pkgredis.IdempotencyStore
	ttl   time.Duration
	scope string
}

func NewIdempotencyGuard(store pkgredis.IdempotencyStore, ttl time.Duration, scope string) (*IdempotencyGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	return &IdempotencyGuard{store: store, ttl: ttl, scope: scope}, nil
}

// Processed reports whether eventID was marked by a completed delivery.
func (g *IdempotencyGuard) Processed(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, errors.New("event id is required")
	}
	value, err := g.store.Get(ctx, g.key(eventID))
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get idempotency key: %w", err)
	}
	return value != "", nil
}

// MarkProcessed records eventID once its delivery succeeded. Marking an id
// twice is harmless.
func (g *IdempotencyGuard) MarkProcessed(ctx context.Context, eventID string) error {
	if eventID == "" {
		return errors.New("event id is required")
	}
	if _, err := g.store.SetNX(ctx, g.key(eventID), processedMark, g.ttl); err != nil {
		return fmt.Errorf("set idempotency key: %w", err)
	}
	return nil
}

func (g *IdempotencyGuard) key(eventID string) string {
	return g.store.IdempotencyKey(g.scope, eventID)
}
