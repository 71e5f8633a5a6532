package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"saas-billing/internal/domain/ports/repository"
	"saas-billing/internal/infra/gateway"
	"saas-billing/internal/infra/redis"
	"saas-billing/internal/usecase"
)

// RateLimiter is the webhook throttle. Satisfied by redis.RateLimiter.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

func webhookRateKey(host string) string { return redis.WebhookSourceKey(host) }

type Server struct {
	normalizer *gateway.Normalizer
	events     repository.WebhookEventRepository
	recUC      usecase.ReconcileUseCase
	checkoutUC usecase.CheckoutUseCase
	accountUC  usecase.AccountUseCase
	planUC     usecase.PlanUseCase
	invoiceUC  usecase.InvoiceUseCase
	auditUC    usecase.AuditUseCase
	auth       *AuthManager
	limiter    RateLimiter

	webhookRate   int
	webhookWindow time.Duration

	log *zerolog.Logger
}

func NewServer(
	normalizer *gateway.Normalizer,
	events repository.WebhookEventRepository,
	recUC usecase.ReconcileUseCase,
	checkoutUC usecase.CheckoutUseCase,
	accountUC usecase.AccountUseCase,
	planUC usecase.PlanUseCase,
	invoiceUC usecase.InvoiceUseCase,
	auditUC usecase.AuditUseCase,
	auth *AuthManager,
	limiter RateLimiter,
	logger *zerolog.Logger,
) *Server {
	webLog := logger.With().Str("component", "WebServer").Logger()
	return &Server{
		normalizer:    normalizer,
		events:        events,
		recUC:         recUC,
		checkoutUC:    checkoutUC,
		accountUC:     accountUC,
		planUC:        planUC,
		invoiceUC:     invoiceUC,
		auditUC:       auditUC,
		auth:          auth,
		limiter:       limiter,
		webhookRate:   120,
		webhookWindow: time.Minute,
		log:           &webLog,
	}
}

// Router builds the full route tree.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/payments/webhook", s.webhookHandler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/accounts", registerHandler(s.accountUC, s.auth))
		r.Get("/plans", plansListHandler(s.planUC))

		r.Group(func(r chi.Router) {
			r.Use(s.auth.Middleware)
			r.Get("/accounts/me", accountGetHandler(s.accountUC))
			r.Post("/subscriptions/checkout", checkoutHandler(s.checkoutUC))
			r.Get("/payments/status/{orderID}", paymentStatusHandler(s.recUC))
			r.Get("/invoices", invoicesListHandler(s.invoiceUC))
			r.Get("/billing/audit", auditHandler(s.auditUC))
		})
	})

	return r
}

// Listen serves the router until the listener fails or is closed.
func (s *Server) Listen(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.log.Info().Str("addr", addr).Msg("HTTP server listening")
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return srv.ListenAndServe()
}
