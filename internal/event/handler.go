package event

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"kayo/internal/auth"
	"kayo/internal/platform/middleware"
	id "kayo/pkg/domain"
	"kayo/pkg/platform/httputil"
)

// Handler serves event and pricing endpoints.
type Handler struct {
	logger       *slog.Logger
	service      *Service
	jwtValidator middleware.JWTValidator
}

func NewHandler(service *Service, jwtValidator middleware.JWTValidator, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, service: service, jwtValidator: jwtValidator}
}

func (h *Handler) Register(r chi.Router) {
	// Published events are public: self-registration links resolve slugs
	// before any login.
	r.Get("/events/slug/{slug}", h.handleGetBySlug)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.jwtValidator, h.logger))

		r.Get("/events", h.handleList)
		r.Get("/events/{eventID}", h.handleGet)
		r.Get("/events/{eventID}/tiers", h.handleListTiers)
		r.Get("/events/{eventID}/quote", h.handleQuote)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(h.logger, auth.RoleAdmin, auth.RoleYouthMinister))

			r.Post("/events", h.handleCreate)
			r.Patch("/events/{eventID}", h.handleUpdate)
			r.Post("/events/{eventID}/tiers", h.handleAddTier)
		})
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateEventRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	event, err := h.service.Create(r.Context(), req)
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to create event", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, event)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	eventID, err := id.ParseEventID(chi.URLParam(r, "eventID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	event, err := h.service.Get(r.Context(), eventID)
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to load event", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, event)
}

func (h *Handler) handleGetBySlug(w http.ResponseWriter, r *http.Request) {
	event, err := h.service.GetBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to load event", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, event)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	events, err := h.service.List(r.Context(), activeOnly)
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to list events", err)
		return
	}
	if events == nil {
		events = []Event{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	eventID, err := id.ParseEventID(chi.URLParam(r, "eventID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req UpdateEventRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	event, err := h.service.Update(r.Context(), eventID, req)
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to update event", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, event)
}

func (h *Handler) handleAddTier(w http.ResponseWriter, r *http.Request) {
	eventID, err := id.ParseEventID(chi.URLParam(r, "eventID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req CreateTierRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	tier, err := h.service.AddTier(r.Context(), eventID, req)
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to add pricing tier", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, tier)
}

func (h *Handler) handleListTiers(w http.ResponseWriter, r *http.Request) {
	eventID, err := id.ParseEventID(chi.URLParam(r, "eventID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	tiers, err := h.service.Tiers(r.Context(), eventID)
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to list pricing tiers", err)
		return
	}
	if tiers == nil {
		tiers = []PricingTier{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"tiers": tiers})
}

func (h *Handler) handleQuote(w http.ResponseWriter, r *http.Request) {
	eventID, err := id.ParseEventID(chi.URLParam(r, "eventID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	count := 1
	if v := r.URL.Query().Get("count"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			count = n
		}
	}
	quote, err := h.service.QuoteFee(r.Context(), eventID, count)
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to quote fee", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, quote)
}
