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
	DB           DBConfig
	Redis        RedisConfig
	Mongo        MongoConfig
	JWT          JWTConfig
	Checkout     CheckoutConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Checkout.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"TOPUP_APP_ENV" required:"true"`
	Port         string   `envconfig:"TOPUP_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"TOPUP_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"TOPUP_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"TOPUP_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"TOPUP_DB_DSN"`

	LegacyHost     string `envconfig:"TOPUP_DB_HOST"`
	LegacyPort     int    `envconfig:"TOPUP_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TOPUP_DB_USER"`
	LegacyPassword string `envconfig:"TOPUP_DB_PASSWORD"`
	LegacyName     string `envconfig:"TOPUP_DB_NAME"`
	LegacySSLMode  string `envconfig:"TOPUP_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TOPUP_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TOPUP_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TOPUP_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TOPUP_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TOPUP_REDIS_URL" required:"true"`
	Address      string        `envconfig:"TOPUP_REDIS_ADDR"`
	Password     string        `envconfig:"TOPUP_REDIS_PASSWORD"`
	DB           int           `envconfig:"TOPUP_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TOPUP_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TOPUP_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TOPUP_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TOPUP_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TOPUP_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// MongoConfig points at the remote document store holding orders and carts.
type MongoConfig struct {
	URI              string        `envconfig:"TOPUP_MONGO_URI" required:"true"`
	Database         string        `envconfig:"TOPUP_MONGO_DATABASE" default:"topupstore"`
	OrdersCollection string        `envconfig:"TOPUP_MONGO_ORDERS_COLLECTION" default:"orders"`
	CartsCollection  string        `envconfig:"TOPUP_MONGO_CARTS_COLLECTION" default:"carts"`
	ConnectTimeout   time.Duration `envconfig:"TOPUP_MONGO_CONNECT_TIMEOUT" default:"10s"`
	MaxPoolSize      uint64        `envconfig:"TOPUP_MONGO_MAX_POOL_SIZE" default:"100"`
	MinPoolSize      uint64        `envconfig:"TOPUP_MONGO_MIN_POOL_SIZE" default:"10"`
}

type JWTConfig struct {
	Secret            string `envconfig:"TOPUP_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"TOPUP_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"TOPUP_JWT_EXPIRATION_MINUTES" default:"60"`
}

// CheckoutConfig tunes basket resolution and session retention.
type CheckoutConfig struct {
	ResolveGrace        time.Duration `envconfig:"TOPUP_CHECKOUT_RESOLVE_GRACE" default:"1500ms"`
	ResolvePollInterval time.Duration `envconfig:"TOPUP_CHECKOUT_RESOLVE_POLL_INTERVAL" default:"250ms"`
	SessionTTL          time.Duration `envconfig:"TOPUP_CHECKOUT_SESSION_TTL" default:"2h"`
	DraftTTL            time.Duration `envconfig:"TOPUP_CHECKOUT_DRAFT_TTL" default:"72h"`
}

func (c CheckoutConfig) validate() error {
	if c.ResolveGrace < 0 || c.ResolveGrace > maxResolveGrace {
		return fmt.Errorf("%s must be between 0 and %s", EnvCheckoutResolveGrace, maxResolveGrace)
	}
	if c.ResolvePollInterval <= 0 {
		return fmt.Errorf("%s must be positive", EnvCheckoutResolvePoll)
	}
	return nil
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"TOPUP_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"TOPUP_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"TOPUP_GCP_PROJECT_ID"`
}

// PubSubConfig is optional; order-placed events are only published when OrdersTopic is set.
type PubSubConfig struct {
	OrdersTopic string `envconfig:"TOPUP_PUBSUB_ORDERS_TOPIC"`
}

// Enabled reports whether order events should be published.
func (p PubSubConfig) Enabled() bool {
	return strings.TrimSpace(p.OrdersTopic) != ""
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
