package config

import "time"

const (
	EnvPrefix = "TOPUP"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "TOPUP_APP_ENV"
	EnvPort     = "TOPUP_APP_PORT"
	EnvLogLevel = "TOPUP_LOG_LEVEL"

	EnvDBDSN  = "TOPUP_DB_DSN"
	EnvDBHost = "TOPUP_DB_HOST"
	EnvDBUser = "TOPUP_DB_USER"
	EnvDBName = "TOPUP_DB_NAME"

	EnvRedisURL = "TOPUP_REDIS_URL"
	EnvMongoURI = "TOPUP_MONGO_URI"

	EnvJWTSecret = "TOPUP_JWT_SECRET"
	EnvJWTIssuer = "TOPUP_JWT_ISSUER"

	EnvCheckoutResolveGrace = "TOPUP_CHECKOUT_RESOLVE_GRACE"
	EnvCheckoutResolvePoll  = "TOPUP_CHECKOUT_RESOLVE_POLL_INTERVAL"
	EnvCheckoutSessionTTL   = "TOPUP_CHECKOUT_SESSION_TTL"

	EnvPubSubOrdersTopic = "TOPUP_PUBSUB_ORDERS_TOPIC"
)

// maxResolveGrace keeps the "no session" signal short enough for an interactive page load.
const maxResolveGrace = 10 * time.Second

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
