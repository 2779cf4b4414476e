package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/marketplace-ledger/api/responses"
	pkgerrors "github.com/angelmondragon/marketplace-ledger/pkg/errors"
	"github.com/angelmondragon/marketplace-ledger/pkg/logger"
	pkgredis "github.com/angelmondragon/marketplace-ledger/pkg/redis"
)

const (
	idempotencyHeader      = "Idempotency-Key"
	replayedHeader         = "Idempotent-Replayed"
	defaultIdempotencyTTL  = 24 * time.Hour
	inFlightTTL            = 30 * time.Second
	inFlightSuffix         = ":inflight"
	maxIdempotencyKeyBytes = 128
)

// storedResponse is the replayable copy of a completed request.
type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body"`
	RequestHash string `json:"request_hash"`
}

type idempotentCall struct {
	store pkgredis.IdempotencyStore
	logg  *logger.Logger
	ttl   time.Duration
	key   string
	hash  string
}

// Idempotency replays the stored response for a repeated Idempotency-Key on
// the wrapped route. Reusing a key with a different body is rejected, and so
// is a duplicate that arrives while the first request is still running.
// Server errors are not stored so the client can retry them.
func Idempotency(store pkgredis.IdempotencyStore, ttl time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			call, err := newIdempotentCall(r, store, ttl, logg)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}

			replay, err := call.lookup(ctx)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			if replay != nil {
				w.Header().Set(replayedHeader, "true")
				replay.writeTo(w)
				return
			}

			acquired, err := store.SetNX(ctx, call.key+inFlightSuffix, call.hash, inFlightTTL)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve idempotency key"))
				return
			}
			if !acquired {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "a request with this idempotency key is still in progress"))
				return
			}
			defer call.release(ctx)

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)
			call.remember(ctx, capture)
		})
	}
}

func newIdempotentCall(r *http.Request, store pkgredis.IdempotencyStore, ttl time.Duration, logg *logger.Logger) (*idempotentCall, error) {
	id := strings.TrimSpace(r.Header.Get(idempotencyHeader))
	switch {
	case id == "":
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required")
	case len(id) > maxIdempotencyKeyBytes:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key too long")
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request")
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	sum := sha256.Sum256(body)
	return &idempotentCall{
		store: store,
		logg:  logg,
		ttl:   ttl,
		key:   store.IdempotencyKey(idempotencyScope(r), id),
		hash:  base64.StdEncoding.EncodeToString(sum[:]),
	}, nil
}

// lookup returns the stored response for a finished request with the same
// body, nil when the key is unused.
func (c *idempotentCall) lookup(ctx context.Context) (*storedResponse, error) {
	raw, err := c.store.Get(ctx, c.key)
	if errors.Is(err, redis.Nil) || (err == nil && raw == "") {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency")
	}
	var stored storedResponse
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record")
	}
	if stored.RequestHash != c.hash {
		return nil, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body")
	}
	return &stored, nil
}

func (c *idempotentCall) remember(ctx context.Context, capture *responseCapture) {
	status := capture.statusCode()
	if status >= http.StatusInternalServerError {
		return
	}
	payload, err := json.Marshal(storedResponse{
		Status:      status,
		ContentType: capture.Header().Get("Content-Type"),
		Body:        capture.body.Bytes(),
		RequestHash: c.hash,
	})
	if err != nil {
		c.logError(ctx, "marshal idempotency record", err)
		return
	}
	if _, err := c.store.SetNX(ctx, c.key, string(payload), c.ttl); err != nil {
		c.logError(ctx, "persist idempotency record", err)
	}
}

func (c *idempotentCall) release(ctx context.Context) {
	if err := c.store.Del(context.WithoutCancel(ctx), c.key+inFlightSuffix); err != nil {
		c.logError(ctx, "release idempotency key", err)
	}
}

func (c *idempotentCall) logError(ctx context.Context, msg string, err error) {
	if c.logg != nil {
		c.logg.Error(ctx, msg, err)
	}
}

func (s *storedResponse) writeTo(w http.ResponseWriter) {
	if s.ContentType != "" {
		w.Header().Set("Content-Type", s.ContentType)
	}
	w.WriteHeader(s.Status)
	_, _ = w.Write(s.Body)
}

// idempotencyScope keys are per account, method and path so one client's key
// never collides with another's.
func idempotencyScope(r *http.Request) string {
	account := "anonymous"
	if id, ok := AccountIDFromContext(r.Context()); ok {
		account = id.String()
	}
	return account + "|" + r.Method + "|" + r.URL.Path
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (r *responseCapture) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseCapture) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *responseCapture) statusCode() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}
