package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/marketplace-ledger/internal/commission"
	"github.com/angelmondragon/marketplace-ledger/internal/cron"
	"github.com/angelmondragon/marketplace-ledger/internal/ledger"
	"github.com/angelmondragon/marketplace-ledger/internal/orders"
	"github.com/angelmondragon/marketplace-ledger/internal/settlement"
	"github.com/angelmondragon/marketplace-ledger/internal/wallets"
	"github.com/angelmondragon/marketplace-ledger/pkg/config"
	"github.com/angelmondragon/marketplace-ledger/pkg/db"
	"github.com/angelmondragon/marketplace-ledger/pkg/logger"
	"github.com/angelmondragon/marketplace-ledger/pkg/metrics"
	"github.com/angelmondragon/marketplace-ledger/pkg/migrate"
	"github.com/angelmondragon/marketplace-ledger/pkg/outbox"
	"github.com/angelmondragon/marketplace-ledger/pkg/redis"
)

const lockName = "cron-worker"

func main() {
	once := flag.Bool("once", false, "run a single cycle and exit")
	only := flag.String("jobs", "", "comma separated job names to run; empty runs all")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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
	reg.MustRegister(collectors.NewGoCollector())
	ledgerMetrics := metrics.NewLedgerMetrics(reg)
	cronMetrics := metrics.NewCronJobMetrics(reg)

	registry, err := buildJobs(cfg, logg, dbClient, ledgerMetrics)
	if err == nil {
		registry, err = registry.Only(strings.Split(*only, ",")...)
	}
	if err != nil {
		logg.Error(context.Background(), "failed to register cron jobs", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(lockName), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:     logg,
		Registry:   registry,
		Lock:       lock,
		Metrics:    cronMetrics,
		Interval:   cfg.Cron.Interval,
		JobTimeout: cfg.Cron.JobTimeout,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"jobs":        strings.Join(registry.Names(), ","),
	})
	if *once {
		if err := service.RunOnce(ctx); err != nil {
			logg.Error(ctx, "cron cycle failed", err)
			os.Exit(1)
		}
		return
	}

	go func() {
		if err := metrics.Serve(ctx, cfg.Service.MetricsAddr, reg, logg); err != nil {
			logg.Error(ctx, "metrics listener failed", err)
		}
	}()
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildJobs(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, ledgerMetrics *metrics.LedgerMetrics) (*cron.Registry, error) {
	platformID, err := uuid.Parse(cfg.Settlement.PlatformAccountID)
	if err != nil {
		return nil, err
	}
	policy, err := commission.NewPolicyFromConfig(cfg.Settlement.CommissionRates, cfg.Settlement.DefaultRate)
	if err != nil {
		return nil, err
	}

	outboxRepo := outbox.NewRepository(dbClient.DB())
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
		outbox.NewService(outboxRepo, logg),
		ledgerMetrics,
		logg,
		platformID,
	)
	if err != nil {
		return nil, err
	}

	sweep, err := cron.NewSettlementSweepJob(cron.SettlementSweepJobParams{
		Logger:     logg,
		Settlement: settlementSvc,
		BatchSize:  cfg.Settlement.SweepBatchSize,
	})
	if err != nil {
		return nil, err
	}
	reconcile, err := cron.NewWalletReconcileJob(cron.WalletReconcileJobParams{
		Logger:  logg,
		Wallets: walletRepo,
		Ledger:  ledgerSvc,
		Metrics: ledgerMetrics,
	})
	if err != nil {
		return nil, err
	}
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		Repository: outboxRepo,
		Retention:  cfg.Outbox.Retention,
	})
	if err != nil {
		return nil, err
	}

	registry := cron.NewRegistry()
	for _, job := range []cron.Job{sweep, reconcile, retention} {
		if err := registry.Register(job); err != nil {
			return nil, err
		}
	}
	return registry, nil
}
