package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Eventing      EventingConfig
	GoogleMaps    GoogleMapsConfig
	GoogleAuth    GoogleAuthConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	BigQuery      BigQueryConfig
	Square        SquareConfig
	Shippo        ShippoConfig
	Sendgrid      SendgridConfig
	Outbox        OutboxConfig
	Checkout      CheckoutConfig
	PasswordReset PasswordResetConfig
	Cron          CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SMOKESHOP_APP_ENV" required:"true"`
	Port         string `envconfig:"SMOKESHOP_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SMOKESHOP_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SMOKESHOP_LOG_WARN_STACK" default:"false"`
	PublicURL    string `envconfig:"SMOKESHOP_PUBLIC_URL" default:"http://localhost:3000"`
	StoreName    string `envconfig:"SMOKESHOP_STORE_NAME" default:"Smoke Shop"`
	CORSOrigins  string `envconfig:"SMOKESHOP_CORS_ORIGINS" default:"*"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// BaseURL returns the public storefront URL without a trailing slash.
func (a AppConfig) BaseURL() string {
	return strings.TrimRight(strings.TrimSpace(a.PublicURL), "/")
}

// AllowedOrigins splits the configured CORS origin list.
func (a AppConfig) AllowedOrigins() []string {
	parts := strings.Split(a.CORSOrigins, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

type ServiceConfig struct {
	Kind string `envconfig:"SMOKESHOP_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"SMOKESHOP_DB_DSN"`
	Driver string `envconfig:"SMOKESHOP_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SMOKESHOP_DB_HOST"`
	LegacyPort     int    `envconfig:"SMOKESHOP_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SMOKESHOP_DB_USER"`
	LegacyPassword string `envconfig:"SMOKESHOP_DB_PASSWORD"`
	LegacyName     string `envconfig:"SMOKESHOP_DB_NAME"`
	LegacySSLMode  string `envconfig:"SMOKESHOP_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SMOKESHOP_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SMOKESHOP_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SMOKESHOP_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SMOKESHOP_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SMOKESHOP_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SMOKESHOP_REDIS_ADDR"`
	Password     string        `envconfig:"SMOKESHOP_REDIS_PASSWORD"`
	DB           int           `envconfig:"SMOKESHOP_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SMOKESHOP_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SMOKESHOP_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SMOKESHOP_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SMOKESHOP_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SMOKESHOP_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"SMOKESHOP_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"SMOKESHOP_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"SMOKESHOP_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"SMOKESHOP_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"SMOKESHOP_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"SMOKESHOP_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"SMOKESHOP_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"SMOKESHOP_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"SMOKESHOP_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"SMOKESHOP_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"SMOKESHOP_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"SMOKESHOP_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"SMOKESHOP_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"SMOKESHOP_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"SMOKESHOP_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
	ForgotWindow       time.Duration `envconfig:"SMOKESHOP_AUTH_RATE_LIMIT_FORGOT_WINDOW" default:"15m"`
	ForgotEmailLimit   int           `envconfig:"SMOKESHOP_AUTH_RATE_LIMIT_FORGOT_EMAIL_LIMIT" default:"3"`
	ForgotIPLimit      int           `envconfig:"SMOKESHOP_AUTH_RATE_LIMIT_FORGOT_IP_LIMIT" default:"10"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"SMOKESHOP_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"SMOKESHOP_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GoogleMapsConfig struct {
	APIKey      string   `envconfig:"SMOKESHOP_GOOGLE_MAPS_API_KEY"`
	RegionCodes []string `envconfig:"SMOKESHOP_GOOGLE_MAPS_REGION_CODES" default:"US"`
}

type GoogleAuthConfig struct {
	ClientID string `envconfig:"SMOKESHOP_GOOGLE_CLIENT_ID"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"SMOKESHOP_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"SMOKESHOP_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"SMOKESHOP_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic              string `envconfig:"SMOKESHOP_PUBSUB_ORDERS_TOPIC" default:"ss-order-events"`
	FulfillmentSubscription  string `envconfig:"SMOKESHOP_PUBSUB_FULFILLMENT_SUBSCRIPTION" default:"ss-order-fulfillment"`
	AnalyticsSubscription    string `envconfig:"SMOKESHOP_PUBSUB_ANALYTICS_SUBSCRIPTION" default:"ss-order-analytics"`
	NotificationTopic        string `envconfig:"SMOKESHOP_PUBSUB_NOTIFICATION_TOPIC" default:"ss-notification-events"`
	NotificationSubscription string `envconfig:"SMOKESHOP_PUBSUB_NOTIFICATION_SUBSCRIPTION" default:"ss-notification-email"`
}

type BigQueryConfig struct {
	Dataset     string `envconfig:"SMOKESHOP_BIGQUERY_DATASET" default:"smokeshop"`
	OrdersTable string `envconfig:"SMOKESHOP_BIGQUERY_ORDERS_TABLE" default:"order_events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"SMOKESHOP_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"SMOKESHOP_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"SMOKESHOP_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type SquareConfig struct {
	AccessToken     string `envconfig:"SMOKESHOP_SQUARE_ACCESS_TOKEN"`
	Env             string `envconfig:"SMOKESHOP_SQUARE_ENV" default:"sandbox"`
	LocationID      string `envconfig:"SMOKESHOP_SQUARE_LOCATION_ID"`
	Currency        string `envconfig:"SMOKESHOP_SQUARE_CURRENCY" default:"USD"`
	WebhookKey      string `envconfig:"SMOKESHOP_SQUARE_WEBHOOK_SIGNATURE_KEY"`
	NotificationURL string `envconfig:"SMOKESHOP_SQUARE_WEBHOOK_NOTIFICATION_URL"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type ShippoConfig struct {
	APIToken     string        `envconfig:"SMOKESHOP_SHIPPO_API_TOKEN"`
	BaseURL      string        `envconfig:"SMOKESHOP_SHIPPO_BASE_URL" default:"https://api.goshippo.com"`
	WebhookToken string        `envconfig:"SMOKESHOP_SHIPPO_WEBHOOK_TOKEN"`
	RateCacheTTL time.Duration `envconfig:"SMOKESHOP_SHIPPO_RATE_CACHE_TTL" default:"1h"`
	RequestsPerS float64       `envconfig:"SMOKESHOP_SHIPPO_REQUESTS_PER_SECOND" default:"5"`

	ParcelLength       string `envconfig:"SMOKESHOP_SHIPPO_PARCEL_LENGTH" default:"6"`
	ParcelWidth        string `envconfig:"SMOKESHOP_SHIPPO_PARCEL_WIDTH" default:"4"`
	ParcelHeight       string `envconfig:"SMOKESHOP_SHIPPO_PARCEL_HEIGHT" default:"3"`
	ParcelDistanceUnit string `envconfig:"SMOKESHOP_SHIPPO_PARCEL_DISTANCE_UNIT" default:"in"`
	ItemWeightOz       string `envconfig:"SMOKESHOP_SHIPPO_ITEM_WEIGHT_OZ" default:"2"`

	FromName    string `envconfig:"SMOKESHOP_SHIPPO_FROM_NAME"`
	FromStreet1 string `envconfig:"SMOKESHOP_SHIPPO_FROM_STREET1"`
	FromCity    string `envconfig:"SMOKESHOP_SHIPPO_FROM_CITY"`
	FromState   string `envconfig:"SMOKESHOP_SHIPPO_FROM_STATE"`
	FromZip     string `envconfig:"SMOKESHOP_SHIPPO_FROM_ZIP"`
	FromCountry string `envconfig:"SMOKESHOP_SHIPPO_FROM_COUNTRY" default:"US"`
	FromPhone   string `envconfig:"SMOKESHOP_SHIPPO_FROM_PHONE"`
	FromEmail   string `envconfig:"SMOKESHOP_SHIPPO_FROM_EMAIL"`
}

type SendgridConfig struct {
	APIKey      string `envconfig:"SMOKESHOP_SENDGRID_API_KEY"`
	DefaultFrom string `envconfig:"SMOKESHOP_SENDGRID_FROM_EMAIL"`
	FromName    string `envconfig:"SMOKESHOP_SENDGRID_FROM_NAME"`
}

type CheckoutConfig struct {
	PendingTimeout  time.Duration `envconfig:"SMOKESHOP_CHECKOUT_PENDING_TIMEOUT" default:"15m"`
	MaxReconcileAge time.Duration `envconfig:"SMOKESHOP_CHECKOUT_MAX_RECONCILE_AGE" default:"72h"`
	ReconcileBatch  int           `envconfig:"SMOKESHOP_CHECKOUT_RECONCILE_BATCH" default:"100"`
}

type PasswordResetConfig struct {
	TokenTTL  time.Duration `envconfig:"SMOKESHOP_PASSWORD_RESET_TTL" default:"1h"`
	ResetPath string        `envconfig:"SMOKESHOP_PASSWORD_RESET_PATH" default:"/reset-password"`
}

type CronConfig struct {
	Interval              time.Duration `envconfig:"SMOKESHOP_CRON_INTERVAL" default:"5m"`
	LockTTL               time.Duration `envconfig:"SMOKESHOP_CRON_LOCK_TTL" default:"4m"`
	GuestCartRetention    time.Duration `envconfig:"SMOKESHOP_CRON_GUEST_CART_RETENTION" default:"720h"`
	GuestCartCleanupEvery time.Duration `envconfig:"SMOKESHOP_CRON_GUEST_CART_CLEANUP_EVERY" default:"1h"`
	OutboxRetention       time.Duration `envconfig:"SMOKESHOP_CRON_OUTBOX_RETENTION" default:"720h"`
	OutboxRetentionEvery  time.Duration `envconfig:"SMOKESHOP_CRON_OUTBOX_RETENTION_EVERY" default:"24h"`
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
