package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	API          APIConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Settlement   SettlementConfig
	Withdrawal   WithdrawalConfig
	Webhook      WebhookConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"MARKETPLACE_APP_ENV" required:"true"`
	Port         string `envconfig:"MARKETPLACE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"MARKETPLACE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"MARKETPLACE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

// APIConfig tunes the HTTP surface.
type APIConfig struct {
	CORSOrigins       []string      `envconfig:"MARKETPLACE_CORS_ORIGINS" default:"http://localhost:3000"`
	RateLimitRequests int64         `envconfig:"MARKETPLACE_RATE_LIMIT_REQUESTS" default:"120"`
	RateLimitWindow   time.Duration `envconfig:"MARKETPLACE_RATE_LIMIT_WINDOW" default:"1m"`
	WithdrawalKeyTTL  time.Duration `envconfig:"MARKETPLACE_WITHDRAWAL_IDEMPOTENCY_TTL" default:"168h"`
}

// ServiceConfig identifies the running binary. Workers expose /metrics on
// MetricsAddr; empty disables the listener.
type ServiceConfig struct {
	Kind        string `envconfig:"MARKETPLACE_SERVICE_KIND" default:"api"`
	MetricsAddr string `envconfig:"MARKETPLACE_METRICS_ADDR" default:":9090"`
}

type DBConfig struct {
	DSN    string `envconfig:"MARKETPLACE_DB_DSN"`
	Driver string `envconfig:"MARKETPLACE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"MARKETPLACE_DB_HOST"`
	LegacyPort     int    `envconfig:"MARKETPLACE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"MARKETPLACE_DB_USER"`
	LegacyPassword string `envconfig:"MARKETPLACE_DB_PASSWORD"`
	LegacyName     string `envconfig:"MARKETPLACE_DB_NAME"`
	LegacySSLMode  string `envconfig:"MARKETPLACE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MARKETPLACE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MARKETPLACE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MARKETPLACE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MARKETPLACE_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	// SlowQueryThreshold logs statements slower than this at warn; zero
	// silences the gorm logger.
	SlowQueryThreshold time.Duration `envconfig:"MARKETPLACE_DB_SLOW_QUERY_THRESHOLD" default:"250ms"`
}

// IsSQLite reports whether the configured driver targets sqlite (local dev only).
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), "sqlite")
}

type RedisConfig struct {
	URL          string        `envconfig:"MARKETPLACE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"MARKETPLACE_REDIS_ADDR"`
	Password     string        `envconfig:"MARKETPLACE_REDIS_PASSWORD"`
	DB           int           `envconfig:"MARKETPLACE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MARKETPLACE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MARKETPLACE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MARKETPLACE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MARKETPLACE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MARKETPLACE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig validates bearer tokens minted by the external auth service.
type JWTConfig struct {
	Secret string `envconfig:"MARKETPLACE_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"MARKETPLACE_JWT_ISSUER" required:"true"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"MARKETPLACE_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	WebhookIdempotencyTTL time.Duration `envconfig:"MARKETPLACE_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"MARKETPLACE_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"MARKETPLACE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"MARKETPLACE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	SettlementTopic        string `envconfig:"MARKETPLACE_PUBSUB_SETTLEMENT_TOPIC" default:"settlement-events"`
	SettlementSubscription string `envconfig:"MARKETPLACE_PUBSUB_SETTLEMENT_SUBSCRIPTION"`
	WithdrawalTopic        string `envconfig:"MARKETPLACE_PUBSUB_WITHDRAWAL_TOPIC" default:"withdrawal-events"`
	WithdrawalSubscription string `envconfig:"MARKETPLACE_PUBSUB_WITHDRAWAL_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"MARKETPLACE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"MARKETPLACE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"MARKETPLACE_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Retention      time.Duration `envconfig:"MARKETPLACE_OUTBOX_RETENTION" default:"720h"`
}

// SettlementConfig carries the commission policy and the platform account that
// receives commission credits.
type SettlementConfig struct {
	PlatformAccountID string            `envconfig:"MARKETPLACE_PLATFORM_ACCOUNT_ID" required:"true"`
	CommissionRates   map[string]string `envconfig:"MARKETPLACE_COMMISSION_RATES"`
	DefaultRate       string            `envconfig:"MARKETPLACE_COMMISSION_DEFAULT_RATE" default:"0.10"`
	SweepBatchSize    int               `envconfig:"MARKETPLACE_SETTLEMENT_SWEEP_BATCH_SIZE" default:"100"`
}

type WithdrawalConfig struct {
	MinimumCents int64  `envconfig:"MARKETPLACE_WITHDRAWAL_MINIMUM_CENTS" default:"1000"`
	FlatFeeCents int64  `envconfig:"MARKETPLACE_WITHDRAWAL_FLAT_FEE_CENTS" default:"0"`
	FeeRate      string `envconfig:"MARKETPLACE_WITHDRAWAL_FEE_RATE" default:"0"`
}

type WebhookConfig struct {
	PaymentSigningSecret string `envconfig:"MARKETPLACE_PAYMENT_WEBHOOK_SECRET" required:"true"`
}

type CronConfig struct {
	Interval   time.Duration `envconfig:"MARKETPLACE_CRON_INTERVAL" default:"5m"`
	LockTTL    time.Duration `envconfig:"MARKETPLACE_CRON_LOCK_TTL" default:"10m"`
	JobTimeout time.Duration `envconfig:"MARKETPLACE_CRON_JOB_TIMEOUT" default:"4m"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
