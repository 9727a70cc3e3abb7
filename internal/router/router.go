// internal/router/router.go
package router

import (
	"net/http"
	"strconv"
	"time"

	"custody-service/internal/handler"
	"custody-service/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Handlers struct {
	Wallet  *handler.WalletHandler
	Balance *handler.BalanceHandler
	Intent  *handler.IntentHandler
}

func New(h Handlers, allowedOrigins []string, logger *zap.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(requestID)
	r.Use(observe(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		handler.JSON(w, http.StatusOK, "ok", nil)
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/transactions/{chain}/{txHash}", h.Balance.TransactionStatus)

		r.Route("/accounts/{accountID}", func(r chi.Router) {
			r.Post("/wallet", h.Wallet.Create)
			r.Post("/wallet/import", h.Wallet.Import)
			r.Get("/wallet", h.Wallet.Get)
			r.Delete("/wallet/{address}", h.Wallet.Delete)

			r.Get("/balances", h.Balance.Balances)

			r.Post("/intents/buy", h.Intent.QuoteBuy)
			r.Post("/intents/send", h.Intent.QuoteSend)
			r.Post("/intents/confirm", h.Intent.Confirm)
			r.Post("/intents/cancel", h.Intent.Cancel)
			r.Get("/intents/{intentID}", h.Intent.Get)
		})
	})

	return r
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

// observe records request latency labelled by route pattern.
func observe(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route, strconv.Itoa(status)).
				Observe(time.Since(start).Seconds())

			logger.Debug("HTTP request",
				zap.String("method", r.Method),
				zap.String("route", route),
				zap.Int("status", status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", w.Header().Get("X-Request-ID")))
		})
	}
}
