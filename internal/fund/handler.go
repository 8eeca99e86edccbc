package fund

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"kayo/internal/auth"
	"kayo/internal/platform/middleware"
	id "kayo/pkg/domain"
	"kayo/pkg/platform/httputil"
)

// Handler serves pledge, schedule and transfer endpoints.
type Handler struct {
	logger       *slog.Logger
	service      *Service
	jwtValidator middleware.JWTValidator
}

func NewHandler(service *Service, jwtValidator middleware.JWTValidator, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, service: service, jwtValidator: jwtValidator}
}

func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.jwtValidator, h.logger))

		r.Post("/pledges", h.handleCreatePledge)
		r.Get("/pledges", h.handleListPledges)
		r.Get("/pledges/stats", h.handlePledgeStats)
		r.Get("/pledges/{pledgeID}", h.handleGetPledge)
		r.Post("/pledges/{pledgeID}/payments", h.handleRecordPledgePayment)
		r.Post("/pledges/{pledgeID}/cancel", h.handleCancelPledge)

		r.Post("/transfers", h.handleCreateTransfer)
		r.Get("/transfers", h.handleListTransfers)
		r.Get("/transfers/stats", h.handleTransferStats)
		r.Get("/transfers/{transferID}", h.handleGetTransfer)
		r.Post("/transfers/{transferID}/approve", h.handleApproveTransfer)
		r.Post("/transfers/{transferID}/complete", h.handleCompleteTransfer)
		r.Post("/transfers/{transferID}/reject", h.handleRejectTransfer)

		r.Get("/funds/dashboard", h.handleDashboard)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(h.logger, auth.RoleFinance, auth.RoleAdmin))

			r.Post("/pledges/payments/{pledgePaymentID}/review", h.handleReviewPledgePayment)

			r.Post("/schedules", h.handleCreateSchedule)
			r.Get("/schedules", h.handleListSchedules)
			r.Get("/schedules/{scheduleID}", h.handleGetSchedule)
			r.Post("/schedules/{scheduleID}/cancel", h.handleCancelSchedule)
			r.Post("/schedules/installments/{installmentID}/pay", h.handlePayInstallment)
		})
	})
}

func (h *Handler) handleCreatePledge(w http.ResponseWriter, r *http.Request) {
	var req CreatePledgeRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	p, err := h.service.CreatePledge(r.Context(), req)
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to create pledge", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, p)
}

func (h *Handler) handleListPledges(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := PledgeFilter{Status: q.Get("status"), SourceType: q.Get("source_type")}
	if raw := q.Get("event_id"); raw != "" {
		if eventID, err := id.ParseEventID(raw); err == nil {
			filter.EventID = eventID
		}
	}
	pledges, err := h.service.ListPledges(r.Context(), filter)
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to list pledges", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"pledges": pledges, "count": len(pledges)})
}

func (h *Handler) handlePledgeStats(w http.ResponseWriter, r *http.Request) {
	var eventID id.EventID
	if raw := r.URL.Query().Get("event_id"); raw != "" {
		parsed, err := id.ParseEventID(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		eventID = parsed
	}
	stats, err := h.service.PledgeOverview(r.Context(), eventID)
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to load pledge stats", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleGetPledge(w http.ResponseWriter, r *http.Request) {
	pledgeID, err := id.ParsePledgeID(chi.URLParam(r, "pledgeID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	detail, err := h.service.GetPledge(r.Context(), pledgeID)
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to load pledge", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, detail)
}

func (h *Handler) handleRecordPledgePayment(w http.ResponseWriter, r *http.Request) {
	pledgeID, err := id.ParsePledgeID(chi.URLParam(r, "pledgeID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req RecordPledgePaymentRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	pp, err := h.service.RecordPledgePayment(r.Context(), pledgeID, req)
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to record pledge payment", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, pp)
}

func (h *Handler) handleReviewPledgePayment(w http.ResponseWriter, r *http.Request) {
	paymentID, err := id.ParsePledgePaymentID(chi.URLParam(r, "pledgePaymentID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req struct {
		Approve bool   `json:"approve"`
		Notes   string `json:"notes"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	pp, err := h.service.ConfirmPledgePayment(r.Context(), paymentID, req.Approve, req.Notes)
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to review pledge payment", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, pp)
}

func (h *Handler) handleCancelPledge(w http.ResponseWriter, r *http.Request) {
	pledgeID, err := id.ParsePledgeID(chi.URLParam(r, "pledgeID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	p, err := h.service.CancelPledge(r.Context(), pledgeID)
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to cancel pledge", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req CreateScheduleRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	sp, err := h.service.CreateSchedule(r.Context(), req)
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to create schedule", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, sp)
}

func (h *Handler) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	schedules, err := h.service.ListSchedules(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to list schedules", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"schedules": schedules, "count": len(schedules)})
}

func (h *Handler) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	scheduleID, err := id.ParseScheduleID(chi.URLParam(r, "scheduleID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	detail, err := h.service.GetSchedule(r.Context(), scheduleID)
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to load schedule", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, detail)
}

func (h *Handler) handleCancelSchedule(w http.ResponseWriter, r *http.Request) {
	scheduleID, err := id.ParseScheduleID(chi.URLParam(r, "scheduleID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	sp, err := h.service.CancelSchedule(r.Context(), scheduleID)
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to cancel schedule", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sp)
}

func (h *Handler) handlePayInstallment(w http.ResponseWriter, r *http.Request) {
	installmentID, err := id.ParseInstallmentID(chi.URLParam(r, "installmentID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req PayInstallmentRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	in, err := h.service.PayInstallment(r.Context(), installmentID, req)
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to pay installment", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, in)
}

func (h *Handler) handleCreateTransfer(w http.ResponseWriter, r *http.Request) {
	var req CreateTransferRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	t, err := h.service.CreateTransfer(r.Context(), req)
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to create transfer", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, t)
}

func (h *Handler) handleListTransfers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := TransferFilter{Status: q.Get("status"), Stage: q.Get("stage")}
	if raw := q.Get("event_id"); raw != "" {
		if eventID, err := id.ParseEventID(raw); err == nil {
			filter.EventID = eventID
		}
	}
	transfers, err := h.service.ListTransfers(r.Context(), filter)
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to list transfers", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"transfers": transfers, "count": len(transfers)})
}

func (h *Handler) handleTransferStats(w http.ResponseWriter, r *http.Request) {
	var eventID id.EventID
	if raw := r.URL.Query().Get("event_id"); raw != "" {
		parsed, err := id.ParseEventID(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		eventID = parsed
	}
	stats, err := h.service.TransferOverview(r.Context(), eventID)
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to load transfer stats", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleGetTransfer(w http.ResponseWriter, r *http.Request) {
	transferID, err := id.ParseTransferID(chi.URLParam(r, "transferID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	detail, err := h.service.GetTransfer(r.Context(), transferID)
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to load transfer", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, detail)
}

func (h *Handler) transferAction(w http.ResponseWriter, r *http.Request, act func(id.TransferID, string) (Transfer, error), msg string) {
	transferID, err := id.ParseTransferID(chi.URLParam(r, "transferID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req TransferActionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	t, err := act(transferID, req.Notes)
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, msg, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, t)
}

func (h *Handler) handleApproveTransfer(w http.ResponseWriter, r *http.Request) {
	h.transferAction(w, r, func(transferID id.TransferID, notes string) (Transfer, error) {
		return h.service.ApproveTransfer(r.Context(), transferID, notes)
	}, "failed to approve transfer")
}

func (h *Handler) handleCompleteTransfer(w http.ResponseWriter, r *http.Request) {
	h.transferAction(w, r, func(transferID id.TransferID, notes string) (Transfer, error) {
		return h.service.CompleteTransfer(r.Context(), transferID, notes)
	}, "failed to complete transfer")
}

func (h *Handler) handleRejectTransfer(w http.ResponseWriter, r *http.Request) {
	h.transferAction(w, r, func(transferID id.TransferID, notes string) (Transfer, error) {
		return h.service.RejectTransfer(r.Context(), transferID, notes)
	}, "failed to reject transfer")
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	var eventID id.EventID
	if raw := r.URL.Query().Get("event_id"); raw != "" {
		if parsed, err := id.ParseEventID(raw); err == nil {
			eventID = parsed
		}
	}
	dash, err := h.service.RoleDashboard(r.Context(), eventID)
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to load dashboard", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, dash)
}
