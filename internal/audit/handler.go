package audit

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"kayo/internal/platform/middleware"
	dErrors "kayo/pkg/domain-errors"
	"kayo/pkg/platform/httputil"
	"kayo/pkg/requestcontext"
)

// Lister is the read side the admin endpoint needs.
type Lister interface {
	List(ctx context.Context, filter Filter) ([]Entry, error)
}

// Handler serves the admin audit-log endpoint.
type Handler struct {
	logger *slog.Logger
	audit  Lister
}

func NewHandler(audit Lister, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, audit: audit}
}

// Register mounts the audit routes. The caller's router already carries
// the platform middleware chain and RequireAuth.
func (h *Handler) Register(r chi.Router) {
	r.Route("/admin/audit-logs", func(r chi.Router) {
		r.Use(middleware.RequireRole(h.logger, "admin", "super_admin"))
		r.Get("/", h.handleList)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	filter := Filter{
		Action:       q.Get("action"),
		ResourceType: q.Get("resource_type"),
		ResourceID:   q.Get("resource_id"),
		UserEmail:    q.Get("user_email"),
	}
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "from must be RFC3339"))
			return
		}
		filter.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "to must be RFC3339"))
			return
		}
		filter.To = t
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	entries, err := h.audit.List(ctx, filter)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list audit logs",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to list audit logs"))
		return
	}
	if entries == nil {
		entries = []Entry{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"audit_logs": entries})
}
