package config

const EnvPrefix = "SMOKESHOP"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv                 = "SMOKESHOP_APP_ENV"
	EnvPort                   = "SMOKESHOP_APP_PORT"
	EnvDBDSN                  = "SMOKESHOP_DB_DSN"
	EnvDBHost                 = "SMOKESHOP_DB_HOST"
	EnvDBUser                 = "SMOKESHOP_DB_USER"
	EnvDBName                 = "SMOKESHOP_DB_NAME"
	EnvRedisURL               = "SMOKESHOP_REDIS_URL"
	EnvJWTSecret              = "SMOKESHOP_JWT_SECRET"
	EnvJWTIssuer              = "SMOKESHOP_JWT_ISSUER"
	EnvJWTExpMins             = "SMOKESHOP_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "SMOKESHOP_REFRESH_TOKEN_TTL_MINUTES"
	EnvGCPProjectID           = "SMOKESHOP_GCP_PROJECT_ID"
	EnvPubSubOrdersTopic      = "SMOKESHOP_PUBSUB_ORDERS_TOPIC"
	EnvCheckoutPendingTimeout = "SMOKESHOP_CHECKOUT_PENDING_TIMEOUT"
	EnvPasswordResetTTL       = "SMOKESHOP_PASSWORD_RESET_TTL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
