package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/topupstore-backend/api/controllers"
	"github.com/angelmondragon/topupstore-backend/api/middleware"
	checkoutsvc "github.com/angelmondragon/topupstore-backend/internal/checkout"
	"github.com/angelmondragon/topupstore-backend/pkg/config"
	"github.com/angelmondragon/topupstore-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/topupstore-backend/pkg/redis"
)

// Dependencies groups what the HTTP surface needs from cmd/api.
type Dependencies struct {
	Checkout    checkoutsvc.Service
	Idempotency pkgredis.IdempotencyStore
	Readiness   map[string]controllers.Pinger
	Metrics     http.Handler
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Readiness))
	})
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Route("/api/v1/checkout", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(deps.Idempotency, logg))

		svc := deps.Checkout
		r.Route("/session", func(r chi.Router) {
			r.Post("/", controllers.CheckoutStart(svc, logg))
			r.Get("/", controllers.CheckoutGet(svc, logg))
			r.Delete("/", controllers.CheckoutDismiss(svc, logg))

			r.Route("/items/{index}", func(r chi.Router) {
				r.Patch("/", controllers.CheckoutSetQuantity(svc, logg))
				r.Delete("/", controllers.CheckoutRemoveItem(svc, logg))
				r.Post("/increment", controllers.CheckoutIncrement(svc, logg))
				r.Post("/decrement", controllers.CheckoutDecrement(svc, logg))
			})

			r.Put("/game", controllers.CheckoutUpdateGame(svc, logg))

			r.Route("/delivery", func(r chi.Router) {
				r.Post("/", controllers.CheckoutChooseDelivery(svc, logg))
				r.Delete("/", controllers.CheckoutResetDelivery(svc, logg))
				r.Put("/contact", controllers.CheckoutEditContact(svc, logg))
				r.Post("/confirm", controllers.CheckoutConfirmDelivery(svc, logg))
			})

			r.Post("/submit", controllers.CheckoutSubmit(svc, logg))
			r.Post("/retry", controllers.CheckoutRetry(svc, logg))
			r.Post("/abandon", controllers.CheckoutAbandon(svc, logg))
		})
		r.Put("/cart/visibility", controllers.CartVisibility(svc, logg))
	})

	return r
}
