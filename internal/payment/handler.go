package payment

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"kayo/internal/auth"
	"kayo/internal/payment/mpesa"
	"kayo/internal/platform/middleware"
	id "kayo/pkg/domain"
	"kayo/pkg/platform/httputil"
)

// Handler serves payment endpoints plus the public Daraja callback.
type Handler struct {
	logger       *slog.Logger
	service      *Service
	jwtValidator middleware.JWTValidator
}

func NewHandler(service *Service, jwtValidator middleware.JWTValidator, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, service: service, jwtValidator: jwtValidator}
}

func (h *Handler) Register(r chi.Router) {
	// Daraja calls back without credentials.
	r.Post("/payments/mpesa/callback", h.handleCallback)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.jwtValidator, h.logger))

		r.Post("/payments/initiate", h.handleInitiate)
		r.Post("/payments/manual", h.handleManual)
		r.Get("/payments", h.handleList)
		r.Get("/payments/totals", h.handleTotals)
		r.Get("/payments/{paymentID}", h.handleGet)
		r.Post("/payments/{paymentID}/confirm", h.handleConfirm)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(h.logger, auth.RoleFinance, auth.RoleAdmin))

			r.Post("/payments/{paymentID}/review", h.handleReview)
			r.Post("/payments/poll", h.handlePoll)
			r.Get("/payments/discrepancies", h.handleDiscrepancies)
			r.Post("/payments/discrepancies/{discrepancyID}/resolve", h.handleResolveDiscrepancy)
		})
	})
}

func (h *Handler) handleInitiate(w http.ResponseWriter, r *http.Request) {
	var req InitiateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	p, err := h.service.Initiate(r.Context(), req)
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to initiate payment", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, p)
}

func (h *Handler) handleManual(w http.ResponseWriter, r *http.Request) {
	var req ManualRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	p, err := h.service.RecordManual(r.Context(), req)
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to record payment", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, p)
}

// handleCallback always acknowledges with ResultCode 0 once the body
// parses; Daraja retries anything else.
func (h *Handler) handleCallback(w http.ResponseWriter, r *http.Request) {
	var cb mpesa.Callback
	if err := httputil.DecodeJSON(r, &cb); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.HandleCallback(r.Context(), cb); err != nil {
		h.logger.ErrorContext(r.Context(), "mpesa callback processing failed",
			slog.String("error", err.Error()))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"ResultCode": 0, "ResultDesc": "Accepted"})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := Filter{Status: q.Get("status"), FinanceStatus: q.Get("finance_status")}
	if raw := q.Get("event_id"); raw != "" {
		if eventID, err := id.ParseEventID(raw); err == nil {
			filter.EventID = eventID
		}
	}
	payments, err := h.service.List(r.Context(), filter)
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to list payments", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"payments": payments, "count": len(payments)})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	paymentID, err := id.ParsePaymentID(chi.URLParam(r, "paymentID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	p, err := h.service.Get(r.Context(), paymentID)
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to load payment", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	paymentID, err := id.ParsePaymentID(chi.URLParam(r, "paymentID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	p, err := h.service.ConfirmByChair(r.Context(), paymentID)
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to confirm payment", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) handleReview(w http.ResponseWriter, r *http.Request) {
	paymentID, err := id.ParsePaymentID(chi.URLParam(r, "paymentID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req ReviewRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	p, err := h.service.ReviewByFinance(r.Context(), paymentID, req)
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to review payment", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) handlePoll(w http.ResponseWriter, r *http.Request) {
	settled, err := h.service.PollPending(r.Context())
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to poll pending payments", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int{"settled": settled})
}

func (h *Handler) handleTotals(w http.ResponseWriter, r *http.Request) {
	totals, err := h.service.Totals(r.Context())
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to compute totals", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, totals)
}

func (h *Handler) handleDiscrepancies(w http.ResponseWriter, r *http.Request) {
	discrepancies, err := h.service.Discrepancies(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to list discrepancies", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"discrepancies": discrepancies, "count": len(discrepancies)})
}

func (h *Handler) handleResolveDiscrepancy(w http.ResponseWriter, r *http.Request) {
	discrepancyID, err := id.ParseDiscrepancyID(chi.URLParam(r, "discrepancyID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req ResolveDiscrepancyRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	d, err := h.service.ResolveDiscrepancy(r.Context(), discrepancyID, req)
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to resolve discrepancy", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, d)
}
