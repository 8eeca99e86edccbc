package church

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	dErrors "kayo/pkg/domain-errors"
	"kayo/pkg/platform/httputil"
)

// Handler serves the hierarchy lookups used by registration forms.
type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

// Register mounts the public hierarchy routes. No auth: self-registration
// forms need these before login.
func (h *Handler) Register(r chi.Router) {
	r.Get("/church/archdeaconries", h.handleArchdeaconries)
	r.Get("/church/archdeaconries/{archdeaconry}/parishes", h.handleParishes)
	r.Get("/church/parishes", h.handleAllParishes)
}

func (h *Handler) handleArchdeaconries(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"archdeaconries": Archdeaconries()})
}

func (h *Handler) handleParishes(w http.ResponseWriter, r *http.Request) {
	archdeaconry := chi.URLParam(r, "archdeaconry")
	parishes := Parishes(archdeaconry)
	if parishes == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "unknown archdeaconry"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"parishes": parishes})
}

func (h *Handler) handleAllParishes(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"parishes": AllParishes()})
}
