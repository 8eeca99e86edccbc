package budget

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"kayo/internal/auth"
	"kayo/internal/platform/middleware"
	id "kayo/pkg/domain"
	"kayo/pkg/platform/httputil"
)

// Handler serves budget planning and expenditure tracking endpoints.
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
		r.Use(middleware.RequireRole(h.logger, auth.RoleFinance, auth.RoleAdmin, auth.RoleSuperAdmin))

		r.Post("/budgets", h.handleCreateBudget)
		r.Get("/budgets", h.handleListBudgets)
		r.Post("/budgets/import", h.handleImportBudget)
		r.Get("/budgets/{budgetID}", h.handleGetBudget)
		r.Put("/budgets/{budgetID}", h.handleUpdateBudget)
		r.Delete("/budgets/{budgetID}", h.handleDeleteBudget)
		r.Post("/budgets/{budgetID}/activate", h.handleActivateBudget)
		r.Post("/budgets/{budgetID}/close", h.handleCloseBudget)
		r.Get("/budgets/{budgetID}/report", h.handleBudgetReport)
		r.Post("/budgets/{budgetID}/items", h.handleAddItem)

		r.Get("/budgets/items/{itemID}", h.handleGetItem)
		r.Post("/budgets/items/{itemID}/status", h.handleUpdateItemStatus)
		r.Delete("/budgets/items/{itemID}", h.handleDeleteItem)
		r.Post("/budgets/items/{itemID}/expenditures", h.handleRecordExpenditure)

		r.Post("/budgets/expenditures/{expenditureID}/approve", h.handleApproveExpenditure)
		r.Post("/budgets/expenditures/{expenditureID}/reject", h.handleRejectExpenditure)
	})
}

func (h *Handler) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	var req CreateBudgetRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	b, err := h.service.CreateBudget(r.Context(), req)
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to create budget", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, b)
}

func (h *Handler) handleImportBudget(w http.ResponseWriter, r *http.Request) {
	var req ImportBudgetRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	detail, err := h.service.ImportBudget(r.Context(), req)
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to import budget", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, detail)
}

func (h *Handler) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := Filter{Status: q.Get("status")}
	if raw := q.Get("event_id"); raw != "" {
		if eventID, err := id.ParseEventID(raw); err == nil {
			filter.EventID = eventID
		}
	}
	budgets, err := h.service.ListBudgets(r.Context(), filter)
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to list budgets", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"budgets": budgets, "count": len(budgets)})
}

func (h *Handler) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	budgetID, err := id.ParseBudgetID(chi.URLParam(r, "budgetID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	detail, err := h.service.GetBudget(r.Context(), budgetID)
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to load budget", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, detail)
}

func (h *Handler) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	budgetID, err := id.ParseBudgetID(chi.URLParam(r, "budgetID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req UpdateBudgetRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	b, err := h.service.UpdateBudget(r.Context(), budgetID, req)
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to update budget", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, b)
}

func (h *Handler) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	budgetID, err := id.ParseBudgetID(chi.URLParam(r, "budgetID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.DeleteBudget(r.Context(), budgetID); err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to delete budget", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (h *Handler) handleActivateBudget(w http.ResponseWriter, r *http.Request) {
	h.budgetAction(w, r, h.service.ActivateBudget, "failed to activate budget")
}

func (h *Handler) handleCloseBudget(w http.ResponseWriter, r *http.Request) {
	h.budgetAction(w, r, h.service.CloseBudget, "failed to close budget")
}

func (h *Handler) budgetAction(w http.ResponseWriter, r *http.Request, act func(ctx context.Context, budgetID id.BudgetID) (Budget, error), msg string) {
	budgetID, err := id.ParseBudgetID(chi.URLParam(r, "budgetID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	b, err := act(r.Context(), budgetID)
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, msg, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, b)
}

func (h *Handler) handleBudgetReport(w http.ResponseWriter, r *http.Request) {
	budgetID, err := id.ParseBudgetID(chi.URLParam(r, "budgetID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	report, err := h.service.BudgetReport(r.Context(), budgetID)
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to build budget report", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

func (h *Handler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	budgetID, err := id.ParseBudgetID(chi.URLParam(r, "budgetID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req ItemRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	item, err := h.service.AddItem(r.Context(), budgetID, req)
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to add budget item", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, item)
}

func (h *Handler) handleGetItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := id.ParseBudgetItemID(chi.URLParam(r, "itemID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	detail, err := h.service.GetItem(r.Context(), itemID)
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to load budget item", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, detail)
}

func (h *Handler) handleUpdateItemStatus(w http.ResponseWriter, r *http.Request) {
	itemID, err := id.ParseBudgetItemID(chi.URLParam(r, "itemID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req UpdateItemStatusRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	item, err := h.service.UpdateItemStatus(r.Context(), itemID, req.Status)
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to update item status", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, item)
}

func (h *Handler) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := id.ParseBudgetItemID(chi.URLParam(r, "itemID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.DeleteItem(r.Context(), itemID); err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to delete budget item", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (h *Handler) handleRecordExpenditure(w http.ResponseWriter, r *http.Request) {
	itemID, err := id.ParseBudgetItemID(chi.URLParam(r, "itemID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req RecordExpenditureRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	e, err := h.service.RecordExpenditure(r.Context(), itemID, req)
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to record expenditure", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, e)
}

func (h *Handler) handleApproveExpenditure(w http.ResponseWriter, r *http.Request) {
	expenditureID, err := id.ParseExpenditureID(chi.URLParam(r, "expenditureID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	e, err := h.service.ApproveExpenditure(r.Context(), expenditureID)
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to approve expenditure", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, e)
}

func (h *Handler) handleRejectExpenditure(w http.ResponseWriter, r *http.Request) {
	expenditureID, err := id.ParseExpenditureID(chi.URLParam(r, "expenditureID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req RejectExpenditureRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	e, err := h.service.RejectExpenditure(r.Context(), expenditureID, req.Reason)
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to reject expenditure", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, e)
}
