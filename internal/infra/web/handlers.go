package web

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"saas-billing/internal/domain"
	"saas-billing/internal/domain/model"
	"saas-billing/internal/infra/metrics"
	"saas-billing/internal/usecase"
)

const maxWebhookBody = 64 << 10

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// webhookHandler is the gateway-facing ingestion point. Replies acknowledge
// receipt, not business outcome: duplicates, stale events and unknown orders
// all get 200 so the gateway stops redelivering. Only a store failure earns a
// retryable status.
func (s *Server) webhookHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if !s.allowWebhook(r) {
			metrics.IncWebhookRequest("rate_limited")
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}

		raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
		if err != nil {
			metrics.IncWebhookRequest("malformed")
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		ev, err := s.normalizer.Normalize(raw, r.Header)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrInvalidSignature):
				// Rejected for good. Keep the receipt, acknowledge the
				// delivery so the gateway does not hammer us with retries.
				metrics.IncWebhookRequest("rejected_signature")
				s.recordEvent(r, "", raw, false)
				writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
			default:
				metrics.IncWebhookRequest("malformed")
				http.Error(w, "Invalid request body", http.StatusBadRequest)
			}
			return
		}

		s.recordEvent(r, ev.OrderID, raw, !ev.Unverified)

		if err := s.recUC.ApplyPaymentEvent(ctx, ev); err != nil {
			metrics.IncWebhookRequest("store_error")
			s.log.Error().Err(err).Str("order_id", ev.OrderID).Msg("applying payment event failed")
			http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
			return
		}

		metrics.IncWebhookRequest("ok")
		writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
	}
}

func (s *Server) recordEvent(r *http.Request, orderID string, raw []byte, verified bool) {
	if s.events == nil {
		return
	}
	if err := s.events.Record(r.Context(), nil, uuid.NewString(), orderID, raw, verified); err != nil {
		s.log.Error().Err(err).Msg("recording webhook event failed")
	}
}

func (s *Server) allowWebhook(r *http.Request) bool {
	if s.limiter == nil {
		return true
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	ok, err := s.limiter.Allow(r.Context(), webhookRateKey(host), s.webhookRate, s.webhookWindow)
	if err != nil {
		// fail open: a limiter outage must not drop payment confirmations
		s.log.Warn().Err(err).Msg("rate limiter unavailable")
		return true
	}
	return ok
}

type checkoutRequest struct {
	PlanID string `json:"plan_id"`
	Cycle  string `json:"cycle"`
}

func checkoutHandler(checkoutUC usecase.CheckoutUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req checkoutRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		res, err := checkoutUC.Checkout(ctx, AccountID(ctx), req.PlanID, model.BillingCycle(req.Cycle))
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrInvalidArgument):
				http.Error(w, err.Error(), http.StatusBadRequest)
			case errors.Is(err, domain.ErrNotFound):
				http.NotFound(w, r)
			case errors.Is(err, domain.ErrPlanInactive):
				http.Error(w, "Plan is not available", http.StatusConflict)
			default:
				http.Error(w, "Checkout failed", http.StatusInternalServerError)
			}
			return
		}

		writeJSON(w, http.StatusCreated, res)
	}
}

type paymentStatusResponse struct {
	OrderID     string `json:"order_id"`
	Status      string `json:"status"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	TxnID       string `json:"txn_id,omitempty"`
	InvoiceID   string `json:"invoice_id,omitempty"`
	CompletedAt string `json:"completed_at,omitempty"`
}

// paymentStatusHandler answers from the local record for terminal payments
// and polls the gateway for pending ones.
func paymentStatusHandler(recUC usecase.ReconcileUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		orderID := chi.URLParam(r, "orderID")
		if orderID == "" {
			http.Error(w, "Order ID is required", http.StatusBadRequest)
			return
		}

		p, err := recUC.PollOrderStatus(ctx, orderID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrUnknownOrder) {
				http.NotFound(w, r)
				return
			}
			http.Error(w, "Failed to get payment status", http.StatusInternalServerError)
			return
		}

		resp := paymentStatusResponse{
			OrderID:  p.OrderID,
			Status:   string(p.Status),
			Amount:   p.Amount,
			Currency: p.Currency,
			TxnID:    p.TxnID,
		}
		if p.InvoiceID != nil {
			resp.InvoiceID = *p.InvoiceID
		}
		if p.CompletedAt != nil {
			resp.CompletedAt = p.CompletedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

type registerRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func registerHandler(accountUC usecase.AccountUseCase, auth *AuthManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req registerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		acc, err := accountUC.Register(ctx, req.Name, req.Email)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrInvalidArgument):
				http.Error(w, err.Error(), http.StatusBadRequest)
			case errors.Is(err, domain.ErrAlreadyExists):
				http.Error(w, "Account already exists", http.StatusConflict)
			default:
				http.Error(w, "Failed to register account", http.StatusInternalServerError)
			}
			return
		}

		token, err := auth.Mint(acc.ID)
		if err != nil {
			http.Error(w, "Failed to issue token", http.StatusInternalServerError)
			return
		}

		response := struct {
			Account *model.Account `json:"account"`
			Token   string         `json:"token"`
		}{Account: acc, Token: token}
		writeJSON(w, http.StatusCreated, response)
	}
}

func accountGetHandler(accountUC usecase.AccountUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		acc, err := accountUC.Get(ctx, AccountID(ctx))
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				http.NotFound(w, r)
				return
			}
			http.Error(w, "Failed to get account", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, acc)
	}
}

func plansListHandler(planUC usecase.PlanUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		plans, err := planUC.ListActive(ctx)
		if err != nil {
			http.Error(w, "Failed to list plans", http.StatusInternalServerError)
			return
		}

		response := struct {
			Data []*model.PricingPlan `json:"data"`
		}{Data: plans}
		writeJSON(w, http.StatusOK, response)
	}
}

func invoicesListHandler(invoiceUC usecase.InvoiceUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		if limit <= 0 {
			limit = 50
		}
		if offset < 0 {
			offset = 0
		}

		invoices, err := invoiceUC.ListByAccount(ctx, AccountID(ctx), offset, limit)
		if err != nil {
			http.Error(w, "Failed to list invoices", http.StatusInternalServerError)
			return
		}

		response := struct {
			Data   []*model.Invoice `json:"data"`
			Limit  int              `json:"limit"`
			Offset int              `json:"offset"`
		}{Data: invoices, Limit: limit, Offset: offset}
		writeJSON(w, http.StatusOK, response)
	}
}

func auditHandler(auditUC usecase.AuditUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		report, err := auditUC.Run(ctx)
		if err != nil {
			http.Error(w, "Audit run failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}
