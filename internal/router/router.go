package router

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tailorbook/api/internal/config"
	"github.com/tailorbook/api/internal/handler"
	mw "github.com/tailorbook/api/internal/middleware"
	"github.com/tailorbook/api/internal/order"
	"github.com/tailorbook/api/internal/payment"
	"github.com/tailorbook/api/internal/store"
	"github.com/tailorbook/api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
// Applies authentication and shop scoping as needed.
func New(cfg *config.Config, pool *pgxpool.Pool, hub *ws.Hub, reg *handler.Registry) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Location"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	queries := store.New(pool)
	repo := store.NewPostgres(pool)

	loc, err := time.LoadLocation(cfg.ShopTimezone)
	if err != nil {
		log.Printf("WARN: unknown SHOP_TIMEZONE %q, using UTC: %v", cfg.ShopTimezone, err)
		loc = time.UTC
	}
	deps := order.Deps{
		Presets:    repo,
		Customers:  repo,
		History:    repo,
		Reconciler: payment.NewReconciler(loc, nil),
	}

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/shops/{sid}/events", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		r.Route("/shops/{sid}", func(r chi.Router) {
			r.Use(mw.RequireShop)

			presetHandler := handler.NewPresetHandler(repo, hub)
			r.Route("/presets", presetHandler.RegisterRoutes)

			customerHandler := handler.NewCustomerHandler(repo)
			r.Route("/customers", customerHandler.RegisterRoutes)

			orderHandler := handler.NewOrderHandler(repo, hub)
			r.Route("/orders", orderHandler.RegisterRoutes)

			intakeHandler := handler.NewIntakeHandler(deps, reg, hub)
			r.Route("/intake", intakeHandler.RegisterRoutes)
		})
	})

	log.Println("Router initialized with all handlers")
	return r
}
