package delegate

import (
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"kayo/internal/platform/middleware"
	id "kayo/pkg/domain"
	"kayo/pkg/platform/httputil"
)

// Handler serves delegate registration endpoints, including the public
// self-registration flow.
type Handler struct {
	logger       *slog.Logger
	service      *Service
	jwtValidator middleware.JWTValidator
}

func NewHandler(service *Service, jwtValidator middleware.JWTValidator, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, service: service, jwtValidator: jwtValidator}
}

func (h *Handler) Register(r chi.Router) {
	// Self-registration is public: delegates without accounts submit and
	// track their registration by token.
	r.Post("/public/registrations", h.handleSelfRegister)
	r.Get("/public/registrations/{token}", h.handleTrackSelfRegistration)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.jwtValidator, h.logger))

		r.Post("/delegates", h.handleRegister)
		r.Get("/delegates", h.handleList)
		r.Get("/delegates/stats", h.handleStats)
		r.Post("/delegates/bulk-upload", h.handleBulkUpload)
		r.Get("/delegates/upload-template", h.handleUploadTemplate)
		r.Get("/delegates/pending", h.handlePending)
		r.Post("/delegates/pending/{pendingID}/review", h.handleReview)
		r.Get("/delegates/{delegateID}", h.handleGet)
		r.Patch("/delegates/{delegateID}", h.handleUpdate)
		r.Delete("/delegates/{delegateID}", h.handleDelete)
	})
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	d, err := h.service.Register(r.Context(), req)
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to register delegate", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, d)
}

func filterFromQuery(r *http.Request) Filter {
	q := r.URL.Query()
	filter := Filter{
		Archdeaconry: q.Get("archdeaconry"),
		Parish:       q.Get("parish"),
		Search:       q.Get("search"),
	}
	if raw := q.Get("event_id"); raw != "" {
		if eventID, err := id.ParseEventID(raw); err == nil {
			filter.EventID = eventID
		}
	}
	if raw := q.Get("is_paid"); raw != "" {
		if paid, err := strconv.ParseBool(raw); err == nil {
			filter.IsPaid = &paid
		}
	}
	return filter
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	delegates, err := h.service.List(r.Context(), filterFromQuery(r))
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to list delegates", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"delegates": delegates, "count": len(delegates)})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context(), filterFromQuery(r))
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to compute stats", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	delegateID, err := id.ParseDelegateID(chi.URLParam(r, "delegateID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	d, err := h.service.Get(r.Context(), delegateID)
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to load delegate", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, d)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	delegateID, err := id.ParseDelegateID(chi.URLParam(r, "delegateID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req UpdateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	d, err := h.service.Update(r.Context(), delegateID, req)
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to update delegate", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, d)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	delegateID, err := id.ParseDelegateID(chi.URLParam(r, "delegateID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), delegateID); err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to delete delegate", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleBulkUpload accepts either a multipart form with a "file" field
// or a raw text/csv body.
func (h *Handler) handleBulkUpload(w http.ResponseWriter, r *http.Request) {
	var src io.Reader = r.Body
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if strings.HasPrefix(mediaType, "multipart/") {
		file, _, err := r.FormFile("file")
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		defer file.Close()
		src = file
	}

	report, err := h.service.BulkUpload(r.Context(), r.URL.Query().Get("event_id"), src)
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to process bulk upload", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

func (h *Handler) handleUploadTemplate(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=delegates-template.csv")
	if err := h.service.UploadTemplate(w); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to write upload template", "error", err)
	}
}

func (h *Handler) handleSelfRegister(w http.ResponseWriter, r *http.Request) {
	var req SelfRegisterRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	p, err := h.service.SubmitSelfRegistration(r.Context(), req)
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to submit registration", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, p)
}

func (h *Handler) handleTrackSelfRegistration(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.TrackSelfRegistration(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to load registration", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) handlePending(w http.ResponseWriter, r *http.Request) {
	pending, err := h.service.PendingRegistrations(r.Context())
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to list pending registrations", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"pending": pending, "count": len(pending)})
}

func (h *Handler) handleReview(w http.ResponseWriter, r *http.Request) {
	pendingID, err := id.ParsePendingDelegateID(chi.URLParam(r, "pendingID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req ReviewRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	p, err := h.service.ReviewSelfRegistration(r.Context(), pendingID, req)
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to review registration", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}
