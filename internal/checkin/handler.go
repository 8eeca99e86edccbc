package checkin

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"kayo/internal/platform/middleware"
	id "kayo/pkg/domain"
	dErrors "kayo/pkg/domain-errors"
	"kayo/pkg/platform/httputil"
	"kayo/pkg/requestcontext"
)

// Handler serves badge issuing and attendance endpoints.
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

		r.Get("/checkin/badge/{delegateID}", h.handleIssueBadge)
		r.Post("/checkin/scan", h.handleScan)
		r.Post("/checkin/manual", h.handleManual)
		r.Post("/checkin/bulk", h.handleBulk)
		r.Get("/checkin/daily", h.handleDaily)
		r.Get("/checkin/history/{delegateID}", h.handleHistory)
		r.Get("/checkin/stats", h.handleStats)
	})
}

func (h *Handler) handleIssueBadge(w http.ResponseWriter, r *http.Request) {
	delegateID, err := id.ParseDelegateID(chi.URLParam(r, "delegateID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	badge, err := h.service.IssueBadge(r.Context(), delegateID)
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to issue badge", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, badge)
}

func (h *Handler) handleScan(w http.ResponseWriter, r *http.Request) {
	var req ScanRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	result, err := h.service.Scan(r.Context(), req)
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to process scan", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleManual(w http.ResponseWriter, r *http.Request) {
	var req ManualRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	result, err := h.service.CheckInManual(r.Context(), req)
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to check in delegate", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleBulk(w http.ResponseWriter, r *http.Request) {
	var req BulkRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	report, err := h.service.BulkCheckIn(r.Context(), req)
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to bulk check in", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

func (h *Handler) handleDaily(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	eventID, err := id.ParseEventID(q.Get("event_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	day := dateOnly(requestcontext.Now(r.Context()))
	if raw := q.Get("date"); raw != "" {
		parsed, err := time.Parse(dateLayout, raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "date must be YYYY-MM-DD"))
			return
		}
		day = parsed
	}
	summary, err := h.service.Daily(r.Context(), eventID, day, q.Get("session"))
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to load daily arrivals", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, summary)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	delegateID, err := id.ParseDelegateID(chi.URLParam(r, "delegateID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	records, err := h.service.History(r.Context(), delegateID)
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to load attendance history", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"records": records, "count": len(records)})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	eventID, err := id.ParseEventID(r.URL.Query().Get("event_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	stats, err := h.service.Stats(r.Context(), eventID)
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to load check-in stats", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}
