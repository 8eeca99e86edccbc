package ledger

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

// Handler serves the accounting endpoints. Everything is gated to the
// finance team and admins.
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

		r.Post("/ledger/accounts", h.handleCreateAccount)
		r.Get("/ledger/accounts", h.handleListAccounts)
		r.Get("/ledger/accounts/categories", h.handleListCategories)
		r.Get("/ledger/accounts/{accountID}", h.handleGetAccount)
		r.Post("/ledger/accounts/{accountID}/deactivate", h.handleDeactivateAccount)
		r.Get("/ledger/accounts/{accountID}/ledger", h.handleAccountLedger)

		r.Post("/ledger/entries", h.handleCreateEntry)
		r.Get("/ledger/entries", h.handleListEntries)
		r.Get("/ledger/entries/{entryID}", h.handleGetEntry)
		r.Post("/ledger/entries/{entryID}/post", h.handlePostEntry)
		r.Post("/ledger/entries/{entryID}/void", h.handleVoidEntry)

		r.Post("/vouchers", h.handleCreateVoucher)
		r.Get("/vouchers", h.handleListVouchers)
		r.Get("/vouchers/{voucherID}", h.handleGetVoucher)
		r.Post("/vouchers/{voucherID}/submit", h.handleSubmitVoucher)
		r.Post("/vouchers/{voucherID}/approve", h.handleApproveVoucher)
		r.Post("/vouchers/{voucherID}/pay", h.handlePayVoucher)
		r.Post("/vouchers/{voucherID}/cancel", h.handleCancelVoucher)

		r.Get("/ledger/reports/trial-balance", h.handleTrialBalance)
		r.Get("/ledger/reports/income-statement", h.handleIncomeStatement)
		r.Get("/ledger/reports/balance-sheet", h.handleBalanceSheet)
	})
}

func (h *Handler) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	a, err := h.service.CreateAccount(r.Context(), req)
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to create account", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, a)
}

func (h *Handler) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	accounts, err := h.service.ListAccounts(r.Context(), activeOnly)
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to list accounts", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"accounts": accounts, "count": len(accounts)})
}

func (h *Handler) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.ListCategories(r.Context())
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to list categories", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"categories": categories})
}

func (h *Handler) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	accountID, err := id.ParseAccountID(chi.URLParam(r, "accountID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	a, err := h.service.GetAccount(r.Context(), accountID)
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to load account", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, a)
}

func (h *Handler) handleDeactivateAccount(w http.ResponseWriter, r *http.Request) {
	accountID, err := id.ParseAccountID(chi.URLParam(r, "accountID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	a, err := h.service.DeactivateAccount(r.Context(), accountID)
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to deactivate account", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, a)
}

func (h *Handler) handleAccountLedger(w http.ResponseWriter, r *http.Request) {
	accountID, err := id.ParseAccountID(chi.URLParam(r, "accountID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	ledger, err := h.service.AccountLedgerReport(r.Context(), accountID)
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to load account ledger", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ledger)
}

func (h *Handler) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	var req CreateEntryRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	e, err := h.service.CreateEntry(r.Context(), req)
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to create entry", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, e)
}

func (h *Handler) handleListEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	entries, err := h.service.ListEntries(r.Context(), JournalFilter{
		Status:    q.Get("status"),
		EntryType: q.Get("entry_type"),
	})
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to list entries", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"entries": entries, "count": len(entries)})
}

func (h *Handler) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	entryID, err := id.ParseEntryID(chi.URLParam(r, "entryID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	e, err := h.service.GetEntry(r.Context(), entryID)
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to load entry", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, e)
}

func (h *Handler) handlePostEntry(w http.ResponseWriter, r *http.Request) {
	entryID, err := id.ParseEntryID(chi.URLParam(r, "entryID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	e, err := h.service.PostEntry(r.Context(), entryID)
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to post entry", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, e)
}

func (h *Handler) handleVoidEntry(w http.ResponseWriter, r *http.Request) {
	entryID, err := id.ParseEntryID(chi.URLParam(r, "entryID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	e, err := h.service.VoidEntry(r.Context(), entryID, req.Reason)
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to void entry", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, e)
}

func (h *Handler) handleCreateVoucher(w http.ResponseWriter, r *http.Request) {
	var req CreateVoucherRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	v, err := h.service.CreateVoucher(r.Context(), req)
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to create voucher", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, v)
}

func (h *Handler) handleListVouchers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	vouchers, err := h.service.ListVouchers(r.Context(), VoucherFilter{
		Status:      q.Get("status"),
		VoucherType: q.Get("type"),
	})
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to list vouchers", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"vouchers": vouchers, "count": len(vouchers)})
}

func (h *Handler) handleGetVoucher(w http.ResponseWriter, r *http.Request) {
	h.voucherAction(w, r, h.service.GetVoucher, "failed to load voucher")
}

func (h *Handler) handleSubmitVoucher(w http.ResponseWriter, r *http.Request) {
	h.voucherAction(w, r, h.service.SubmitVoucher, "failed to submit voucher")
}

func (h *Handler) handleApproveVoucher(w http.ResponseWriter, r *http.Request) {
	h.voucherAction(w, r, h.service.ApproveVoucher, "failed to approve voucher")
}

func (h *Handler) handlePayVoucher(w http.ResponseWriter, r *http.Request) {
	h.voucherAction(w, r, h.service.PayVoucher, "failed to pay voucher")
}

func (h *Handler) handleCancelVoucher(w http.ResponseWriter, r *http.Request) {
	h.voucherAction(w, r, h.service.CancelVoucher, "failed to cancel voucher")
}

func (h *Handler) voucherAction(w http.ResponseWriter, r *http.Request, act func(ctx context.Context, voucherID id.VoucherID) (Voucher, error), msg string) {
	voucherID, err := id.ParseVoucherID(chi.URLParam(r, "voucherID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	v, err := act(r.Context(), voucherID)
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, msg, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, v)
}

func (h *Handler) handleTrialBalance(w http.ResponseWriter, r *http.Request) {
	tb, err := h.service.TrialBalanceReport(r.Context())
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to build trial balance", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tb)
}

func (h *Handler) handleIncomeStatement(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	st, err := h.service.IncomeStatementReport(r.Context(), q.Get("from"), q.Get("to"))
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to build income statement", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, st)
}

func (h *Handler) handleBalanceSheet(w http.ResponseWriter, r *http.Request) {
	bs, err := h.service.BalanceSheetReport(r.Context())
	if err != nil {
		httputil.WriteServiceError(r.Context(), w, h.logger, "failed to build balance sheet", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, bs)
}
