package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/topupstore-backend/api/controllers"
	"github.com/angelmondragon/topupstore-backend/api/routes"
	"github.com/angelmondragon/topupstore-backend/internal/cart"
	"github.com/angelmondragon/topupstore-backend/internal/checkout"
	"github.com/angelmondragon/topupstore-backend/internal/fulfillment"
	"github.com/angelmondragon/topupstore-backend/internal/orders"
	"github.com/angelmondragon/topupstore-backend/internal/users"
	"github.com/angelmondragon/topupstore-backend/pkg/config"
	"github.com/angelmondragon/topupstore-backend/pkg/db"
	"github.com/angelmondragon/topupstore-backend/pkg/logger"
	"github.com/angelmondragon/topupstore-backend/pkg/metrics"
	"github.com/angelmondragon/topupstore-backend/pkg/migrate"
	pkgmongo "github.com/angelmondragon/topupstore-backend/pkg/mongo"
	pkgpubsub "github.com/angelmondragon/topupstore-backend/pkg/pubsub"
	"github.com/angelmondragon/topupstore-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

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

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, redisClient.Close()) }()

	mongoClient, err := pkgmongo.New(ctx, cfg.Mongo, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, mongoClient.Close(context.Background())) }()

	readiness := map[string]controllers.Pinger{
		"postgres": dbClient,
		"redis":    redisClient,
		"mongo":    mongoClient,
	}

	var notifier checkout.OrderNotifier
	if cfg.PubSub.Enabled() {
		var pubsubClient *pkgpubsub.Client
		pubsubClient, err = pkgpubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			return err
		}
		defer func() { err = multierr.Append(err, pubsubClient.Close()) }()

		var ordersNotifier *fulfillment.Notifier
		ordersNotifier, err = fulfillment.NewNotifier(pubsubClient.OrdersPublisher(), logg)
		if err != nil {
			return err
		}
		notifier = ordersNotifier
		readiness["pubsub"] = pubsubClient
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)

	usersService, err := users.NewService(users.NewRepository(dbClient.DB()))
	if err != nil {
		return err
	}
	sharedCart := cart.NewRepository(mongoClient.Carts())

	sessions, err := checkout.NewRedisSessionStore(redisClient, cfg.Checkout.SessionTTL)
	if err != nil {
		return err
	}
	drafts, err := checkout.NewRedisDraftStore(redisClient, cfg.Checkout.DraftTTL)
	if err != nil {
		return err
	}
	resolver, err := checkout.NewResolver(drafts, sharedCart, logg, cfg.Checkout.ResolveGrace, cfg.Checkout.ResolvePollInterval)
	if err != nil {
		return err
	}
	orchestrator, err := checkout.NewOrchestrator(orders.NewRepository(mongoClient.Orders()), checkoutMetrics, logg)
	if err != nil {
		return err
	}
	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Sessions:     sessions,
		Drafts:       drafts,
		Cart:         sharedCart,
		Users:        usersService,
		Profiles:     usersService,
		Resolver:     resolver,
		Orchestrator: orchestrator,
		Notifier:     notifier,
		Logger:       logg,
	})
	if err != nil {
		return err
	}

	addr := ":" + cfg.App.Port
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":    cfg.App.Env,
		"addr":   addr,
		"pubsub": cfg.PubSub.Enabled(),
	})
	logg.Info(logCtx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Dependencies{
			Checkout:    checkoutService,
			Idempotency: redisClient,
			Readiness:   readiness,
			Metrics:     metrics.Handler(registry),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logg.Info(logCtx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
