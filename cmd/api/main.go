package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/marketplace-ledger/api/routes"
	"github.com/angelmondragon/marketplace-ledger/internal/commission"
	"github.com/angelmondragon/marketplace-ledger/internal/ledger"
	"github.com/angelmondragon/marketplace-ledger/internal/orders"
	"github.com/angelmondragon/marketplace-ledger/internal/settlement"
	"github.com/angelmondragon/marketplace-ledger/internal/wallets"
	paymentwebhook "github.com/angelmondragon/marketplace-ledger/internal/webhooks/payment"
	"github.com/angelmondragon/marketplace-ledger/internal/withdrawals"
	"github.com/angelmondragon/marketplace-ledger/pkg/config"
	"github.com/angelmondragon/marketplace-ledger/pkg/db"
	"github.com/angelmondragon/marketplace-ledger/pkg/logger"
	"github.com/angelmondragon/marketplace-ledger/pkg/metrics"
	"github.com/angelmondragon/marketplace-ledger/pkg/migrate"
	"github.com/angelmondragon/marketplace-ledger/pkg/outbox"
	"github.com/angelmondragon/marketplace-ledger/pkg/redis"
)

const (
	paymentWebhookScope = "payment-webhook"
	shutdownTimeout     = 15 * time.Second
	readHeaderTimeout   = 10 * time.Second
)

type services struct {
	wallets        wallets.Service
	ledger         ledger.Service
	withdrawals    withdrawals.Service
	settlement     settlement.Service
	paymentWebhook *paymentwebhook.Service
}

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	ledgerMetrics := metrics.NewLedgerMetrics(reg)

	svcs, err := buildServices(cfg, logg, dbClient, redisClient, ledgerMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to wire services", err)
		os.Exit(1)
	}

	addr := ":" + cfg.App.Port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})

	server := &http.Server{
		Addr:              addr,
		ReadHeaderTimeout: readHeaderTimeout,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			svcs.wallets,
			svcs.ledger,
			svcs.withdrawals,
			svcs.settlement,
			svcs.paymentWebhook,
			outbox.NewDLQRepository(dbClient.DB()),
		),
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}

	logg.Info(ctx, "api server shutting down gracefully")
}

func buildServices(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client, ledgerMetrics *metrics.LedgerMetrics) (*services, error) {
	platformID, err := uuid.Parse(cfg.Settlement.PlatformAccountID)
	if err != nil {
		return nil, err
	}

	policy, err := commission.NewPolicyFromConfig(cfg.Settlement.CommissionRates, cfg.Settlement.DefaultRate)
	if err != nil {
		return nil, err
	}
	fees, err := withdrawals.NewFeeSchedule(cfg.Withdrawal.FlatFeeCents, cfg.Withdrawal.FeeRate)
	if err != nil {
		return nil, err
	}

	outboxSvc := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(dbClient.DB()))
	if err != nil {
		return nil, err
	}
	walletRepo := wallets.NewRepository(dbClient.DB())
	walletSvc, err := wallets.NewService(dbClient, walletRepo, ledgerSvc, logg)
	if err != nil {
		return nil, err
	}

	settlementSvc, err := settlement.NewService(
		dbClient,
		orders.NewRepository(dbClient.DB()),
		walletSvc,
		ledgerSvc,
		policy,
		outboxSvc,
		ledgerMetrics,
		logg,
		platformID,
	)
	if err != nil {
		return nil, err
	}

	withdrawalSvc, err := withdrawals.NewService(
		dbClient,
		withdrawals.NewRepository(dbClient.DB()),
		walletRepo,
		walletSvc,
		ledgerSvc,
		outboxSvc,
		ledgerMetrics,
		logg,
		platformID,
		withdrawals.Options{
			MinimumCents: cfg.Withdrawal.MinimumCents,
			Fees:         fees,
		},
	)
	if err != nil {
		return nil, err
	}

	guard, err := paymentwebhook.NewIdempotencyGuard(redisClient, cfg.Eventing.WebhookIdempotencyTTL, paymentWebhookScope)
	if err != nil {
		return nil, err
	}
	webhookSvc, err := paymentwebhook.NewService(paymentwebhook.ServiceParams{
		Settlement: settlementSvc,
		Guard:      guard,
		Logger:     logg,
	})
	if err != nil {
		return nil, err
	}

	return &services{
		wallets:        walletSvc,
		ledger:         ledgerSvc,
		withdrawals:    withdrawalSvc,
		settlement:     settlementSvc,
		paymentWebhook: webhookSvc,
	}, nil
}
