package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/marketplace-ledger/api/controllers"
	webhookcontrollers "github.com/angelmondragon/marketplace-ledger/api/controllers/webhooks"
	"github.com/angelmondragon/marketplace-ledger/api/middleware"
	"github.com/angelmondragon/marketplace-ledger/internal/ledger"
	"github.com/angelmondragon/marketplace-ledger/internal/settlement"
	"github.com/angelmondragon/marketplace-ledger/internal/wallets"
	"github.com/angelmondragon/marketplace-ledger/internal/withdrawals"
	"github.com/angelmondragon/marketplace-ledger/pkg/auth"
	"github.com/angelmondragon/marketplace-ledger/pkg/config"
	"github.com/angelmondragon/marketplace-ledger/pkg/db"
	"github.com/angelmondragon/marketplace-ledger/pkg/db/models"
	"github.com/angelmondragon/marketplace-ledger/pkg/enums"
	"github.com/angelmondragon/marketplace-ledger/pkg/logger"
	"github.com/angelmondragon/marketplace-ledger/pkg/outbox"
	"github.com/angelmondragon/marketplace-ledger/pkg/redis"
)

type rateLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

type dlqLister interface {
	List(ctx context.Context, filter outbox.DLQFilter) ([]models.OutboxDLQ, error)
}

// redisStore is the slice of the redis client the HTTP surface needs.
type redisStore interface {
	redis.IdempotencyStore
	rateLimiter
	Ping(ctx context.Context) error
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient redisStore,
	metricsHandler http.Handler,
	walletService wallets.Service,
	ledgerService ledger.Service,
	withdrawalService withdrawals.Service,
	settlementService settlement.Service,
	paymentWebhookService webhookcontrollers.PaymentWebhookService,
	dlq dlqLister,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.API.CORSOrigins),
	)

	var (
		idempotencyStore redis.IdempotencyStore
		rateLimitBackend rateLimiter
		readiness        = map[string]controllers.Pinger{}
	)
	if dbP != nil {
		readiness["db"] = dbP
	}
	if redisClient != nil {
		idempotencyStore = redisClient
		rateLimitBackend = redisClient
		readiness["redis"] = redisClient
	}
	apiRateLimit := middleware.RateLimit("api", rateLimitBackend, cfg.API.RateLimitRequests, cfg.API.RateLimitWindow, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, readiness, logg))
	})
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Use(middleware.RateLimit("webhooks", rateLimitBackend, cfg.API.RateLimitRequests, cfg.API.RateLimitWindow, logg))
		r.Post("/payments", webhookcontrollers.PaymentWebhook(paymentWebhookService, cfg.Webhook.PaymentSigningSecret, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(apiRateLimit)

		r.Get("/ping", controllers.PrivatePing())

		r.Route("/wallets", func(r chi.Router) {
			r.Get("/", controllers.ListWallets(walletService, logg))
			r.Get("/{role}/transactions", controllers.ListWalletTransactions(ledgerService, logg))
		})

		r.Route("/withdrawals", func(r chi.Router) {
			r.Use(middleware.RequireAnyRole(logg, payeeRoles()...))
			r.Get("/", controllers.ListWithdrawals(withdrawalService, logg))
			r.With(middleware.Idempotency(idempotencyStore, cfg.API.WithdrawalKeyTTL, logg)).
				Post("/", controllers.RequestWithdrawal(withdrawalService, logg))
			r.Get("/{withdrawalId}", controllers.GetWithdrawal(withdrawalService, logg))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(auth.RoleAdmin, logg))

			r.Route("/withdrawals/{withdrawalId}", func(r chi.Router) {
				r.Post("/processing", controllers.AdminMarkWithdrawalProcessing(withdrawalService, logg))
				r.Post("/approve", controllers.AdminApproveWithdrawal(withdrawalService, logg))
				r.Post("/complete", controllers.AdminCompleteWithdrawal(withdrawalService, logg))
				r.Post("/reject", controllers.AdminRejectWithdrawal(withdrawalService, logg))
				r.Post("/fail", controllers.AdminFailWithdrawal(withdrawalService, logg))
			})

			r.Get("/outbox/dlq", controllers.AdminListOutboxDLQ(dlq, logg))

			r.Route("/orders/{orderId}", func(r chi.Router) {
				r.Get("/settlement", controllers.AdminOrderSettlement(settlementService, logg))
				r.Post("/settle", controllers.AdminSettleOrder(settlementService, logg))
			})
		})
	})

	return r
}

func payeeRoles() []string {
	roles := enums.PayeeRoles()
	out := make([]string, len(roles))
	for i, role := range roles {
		out[i] = string(role)
	}
	return out
}
