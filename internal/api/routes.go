package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"broker-ledger/config"
)

// NewRouter creates and configures a Chi router with all routes
func NewRouter(h *Handler, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(CORSMiddleware(cfg.HTTP.CORSAllowedOrigins))
	r.Use(MetricsMiddleware)

	// Metrics endpoint for Prometheus
	r.Handle("/metrics", promhttp.Handler())

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Health check
		r.Get("/health", h.HandleHealth)

		// Orders
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.HandleListOrders)
			r.Post("/buy", h.HandleSubmitBuy)
			r.Post("/sell", h.HandleSubmitSell)
			r.Get("/{id}", h.HandleGetOrder)
			r.Post("/{id}/execute", h.HandleExecuteOrder)
			r.Post("/{id}/cancel", h.HandleCancelOrder)
		})

		// Bank accounts
		r.Route("/accounts/{id}", func(r chi.Router) {
			r.Get("/balance", h.HandleGetBalance)
			r.Post("/deposit", h.HandleDeposit)
			r.Post("/withdraw", h.HandleWithdraw)
		})

		// Positions
		r.Get("/positions/{accountID}/{securityID}", h.HandleGetPosition)
	})

	return r
}

// CORSMiddleware returns CORS middleware with the specified allowed origins
func CORSMiddleware(allowedOrigins string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", allowedOrigins)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
