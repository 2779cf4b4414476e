package config

// EnvPrefix scopes envconfig lookups; every field also declares its full key.
const EnvPrefix = "MARKETPLACE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv = "MARKETPLACE_APP_ENV"
	EnvPort   = "MARKETPLACE_APP_PORT"

	EnvDBDSN  = "MARKETPLACE_DB_DSN"
	EnvDBHost = "MARKETPLACE_DB_HOST"
	EnvDBUser = "MARKETPLACE_DB_USER"
	EnvDBName = "MARKETPLACE_DB_NAME"

	EnvRedisURL = "MARKETPLACE_REDIS_URL"

	EnvJWTSecret = "MARKETPLACE_JWT_SECRET"
	EnvJWTIssuer = "MARKETPLACE_JWT_ISSUER"

	EnvPlatformAccountID     = "MARKETPLACE_PLATFORM_ACCOUNT_ID"
	EnvCommissionRates       = "MARKETPLACE_COMMISSION_RATES"
	EnvCommissionDefaultRate = "MARKETPLACE_COMMISSION_DEFAULT_RATE"

	EnvWithdrawalMinimum = "MARKETPLACE_WITHDRAWAL_MINIMUM_CENTS"
	EnvWithdrawalFlatFee = "MARKETPLACE_WITHDRAWAL_FLAT_FEE_CENTS"
	EnvWithdrawalFeeRate = "MARKETPLACE_WITHDRAWAL_FEE_RATE"

	EnvPaymentWebhookSecret = "MARKETPLACE_PAYMENT_WEBHOOK_SECRET"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
