// Package web provides the HTTP API for quota checks, usage recording,
// account provisioning, promotion redemption, and payment webhooks.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/buildsage/buildsage/app"
	"github.com/buildsage/buildsage/ports"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Handler provides the public API endpoints.
type Handler struct {
	entitlements *app.EntitlementService
	signup       *app.SignupService
	promos       *app.PromotionService
	billing      *app.BillingService
	webhooks     ports.WebhookParser
	store        Pinger
	gatherer     prometheus.Gatherer
	logger       zerolog.Logger
}

// Deps contains dependencies for the API handler.
type Deps struct {
	Entitlements *app.EntitlementService
	Signup       *app.SignupService
	Promotions   *app.PromotionService
	Billing      *app.BillingService
	Webhooks     ports.WebhookParser
	Store        Pinger
	Gatherer     prometheus.Gatherer
	Logger       zerolog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(deps Deps) *Handler {
	return &Handler{
		entitlements: deps.Entitlements,
		signup:       deps.Signup,
		promos:       deps.Promotions,
		billing:      deps.Billing,
		webhooks:     deps.Webhooks,
		store:        deps.Store,
		gatherer:     deps.Gatherer,
		logger:       deps.Logger,
	}
}

// Router returns the API router.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/quota/check", h.QuotaCheck)
		r.Post("/usage/record", h.UsageRecord)
		r.Post("/accounts/ensure", h.AccountsEnsure)
		r.Post("/promotions/redeem", h.PromotionsRedeem)
	})

	if h.webhooks != nil {
		r.Post("/webhooks/payment", h.PaymentWebhook)
	}

	r.Get("/healthz", h.Health)
	if h.gatherer != nil {
		r.Method(http.MethodGet, "/metrics",
			promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}

	return r
}

// requestLogger logs one line per request after it completes.
func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		h.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}

// Health reports liveness and store reachability.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.store.PingContext(ctx); err != nil {
			h.logger.Error().Err(err).Msg("health check: store unreachable")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "degraded",
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
