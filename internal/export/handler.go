package export

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"kayo/internal/auth"
	"kayo/internal/delegate"
	"kayo/internal/ledger"
	"kayo/internal/payment"
	"kayo/internal/platform/middleware"
	id "kayo/pkg/domain"
	"kayo/pkg/platform/httputil"
	"kayo/pkg/requestcontext"
)

// Handler serves the CSV download endpoints.
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

		// Scoping happens in the delegate service, so every role may
		// download its own slice.
		r.Get("/exports/delegates", h.handleDelegates)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(h.logger, auth.RoleFinance, auth.RoleAdmin, auth.RoleSuperAdmin))

			r.Get("/exports/payments", h.handlePayments)
			r.Get("/exports/accounts", h.handleAccounts)
			r.Get("/exports/journal-entries", h.handleJournalEntries)
			r.Get("/exports/vouchers", h.handleVouchers)
			r.Get("/exports/budgets/{budgetID}/items", h.handleBudgetItems)
		})
	})
}

// beginCSV sets the download headers. Anything written after this point
// streams to the client, so source errors must surface first.
func beginCSV(w http.ResponseWriter, r *http.Request, name string) {
	date := requestcontext.Now(r.Context()).Format(dateLayout)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s-%s.csv", name, date))
}

func (h *Handler) handleDelegates(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := delegate.Filter{
		Archdeaconry: query.Get("archdeaconry"),
		Parish:       query.Get("parish"),
	}
	if raw := query.Get("event_id"); raw != "" {
		eventID, err := id.ParseEventID(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		filter.EventID = eventID
	}
	beginCSV(w, r, "delegates")
	if _, err := h.service.Delegates(r.Context(), w, filter); err != nil {
		h.logger.ErrorContext(r.Context(), "delegate export failed", "error", err)
	}
}

func (h *Handler) handlePayments(w http.ResponseWriter, r *http.Request) {
	filter := payment.Filter{
		Status:        r.URL.Query().Get("status"),
		FinanceStatus: r.URL.Query().Get("finance_status"),
	}
	beginCSV(w, r, "payments")
	if _, err := h.service.Payments(r.Context(), w, filter); err != nil {
		h.logger.ErrorContext(r.Context(), "payment export failed", "error", err)
	}
}

func (h *Handler) handleAccounts(w http.ResponseWriter, r *http.Request) {
	beginCSV(w, r, "accounts")
	if _, err := h.service.Accounts(r.Context(), w); err != nil {
		h.logger.ErrorContext(r.Context(), "account export failed", "error", err)
	}
}

func (h *Handler) handleJournalEntries(w http.ResponseWriter, r *http.Request) {
	filter := ledger.JournalFilter{
		Status:    r.URL.Query().Get("status"),
		EntryType: r.URL.Query().Get("entry_type"),
	}
	beginCSV(w, r, "journal-entries")
	if _, err := h.service.JournalEntries(r.Context(), w, filter); err != nil {
		h.logger.ErrorContext(r.Context(), "journal export failed", "error", err)
	}
}

func (h *Handler) handleVouchers(w http.ResponseWriter, r *http.Request) {
	filter := ledger.VoucherFilter{
		Status:      r.URL.Query().Get("status"),
		VoucherType: r.URL.Query().Get("type"),
	}
	beginCSV(w, r, "vouchers")
	if _, err := h.service.Vouchers(r.Context(), w, filter); err != nil {
		h.logger.ErrorContext(r.Context(), "voucher export failed", "error", err)
	}
}

func (h *Handler) handleBudgetItems(w http.ResponseWriter, r *http.Request) {
	budgetID, err := id.ParseBudgetID(chi.URLParam(r, "budgetID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	beginCSV(w, r, "budget-items")
	if _, err := h.service.BudgetItems(r.Context(), w, budgetID); err != nil {
		h.logger.ErrorContext(r.Context(), "budget export failed", "error", err)
	}
}
