package comms

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"kayo/internal/auth"
	"kayo/internal/platform/middleware"
	id "kayo/pkg/domain"
	"kayo/pkg/platform/httputil"
)

// Handler serves announcement and bulk SMS endpoints.
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
		r.Use(middleware.RequireRole(h.logger, auth.RoleAdmin, auth.RoleSuperAdmin))

		r.Post("/announcements", h.handleCreate)
		r.Get("/announcements", h.handleList)
		r.Get("/announcements/recipients", h.handlePreviewRecipients)
		r.Post("/announcements/sms", h.handleBulkSMS)
		r.Get("/announcements/{announcementID}", h.handleGet)
		r.Delete("/announcements/{announcementID}", h.handleDelete)
		r.Post("/announcements/{announcementID}/send", h.handleSend)
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	a, err := h.service.Create(r.Context(), req)
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to create announcement", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, a)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filter := Filter{Status: r.URL.Query().Get("status")}
	if raw := r.URL.Query().Get("event_id"); raw != "" {
		eventID, err := id.ParseEventID(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		filter.EventID = eventID
	}
	announcements, err := h.service.List(r.Context(), filter)
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to list announcements", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"announcements": announcements,
		"count":         len(announcements),
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	announcementID, err := id.ParseAnnouncementID(chi.URLParam(r, "announcementID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	detail, err := h.service.Get(r.Context(), announcementID)
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to load announcement", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, detail)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	announcementID, err := id.ParseAnnouncementID(chi.URLParam(r, "announcementID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), announcementID); err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to delete announcement", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	announcementID, err := id.ParseAnnouncementID(chi.URLParam(r, "announcementID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	a, err := h.service.Send(r.Context(), announcementID)
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to send announcement", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, a)
}

func (h *Handler) handleBulkSMS(w http.ResponseWriter, r *http.Request) {
	var req BulkSMSRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	a, err := h.service.BulkSMS(r.Context(), req)
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to send bulk sms", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, a)
}

func (h *Handler) handlePreviewRecipients(w http.ResponseWriter, r *http.Request) {
	preview, err := h.service.PreviewRecipients(r.Context(), r.URL.Query().Get("event_id"))
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to preview recipients", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, preview)
}
