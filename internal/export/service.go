// Package export streams CSV snapshots of the operational data:
// delegates, payments, the ledger and budget lines. Rows come from the
// owning services so role scoping stays in one place.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"kayo/internal/audit"
	"kayo/internal/budget"
	"kayo/internal/delegate"
	"kayo/internal/ledger"
	"kayo/internal/payment"
	id "kayo/pkg/domain"
	dErrors "kayo/pkg/domain-errors"
)

const dateLayout = "2006-01-02"

// DelegateSource lists delegates scoped to the caller.
type DelegateSource interface {
	List(ctx context.Context, filter delegate.Filter) ([]delegate.Delegate, error)
}

// PaymentSource lists payments scoped to the caller.
type PaymentSource interface {
	List(ctx context.Context, filter payment.Filter) ([]payment.Payment, error)
}

// LedgerSource reads the chart, journal and vouchers.
type LedgerSource interface {
	ListAccounts(ctx context.Context, activeOnly bool) ([]ledger.Account, error)
	ListEntries(ctx context.Context, filter ledger.JournalFilter) ([]ledger.JournalEntry, error)
	GetEntry(ctx context.Context, entryID id.EntryID) (ledger.JournalEntry, error)
	ListVouchers(ctx context.Context, filter ledger.VoucherFilter) ([]ledger.Voucher, error)
}

// BudgetSource reads one budget with its items.
type BudgetSource interface {
	GetBudget(ctx context.Context, budgetID id.BudgetID) (budget.BudgetDetail, error)
}

type Service struct {
	delegates DelegateSource
	payments  PaymentSource
	ledger    LedgerSource
	budgets   BudgetSource
	logger    *slog.Logger
	audit     audit.Recorder
}

func NewService(delegates DelegateSource, payments PaymentSource, ledgerSource LedgerSource, budgets BudgetSource, logger *slog.Logger, recorder audit.Recorder) *Service {
	if recorder == nil {
		recorder = audit.NopRecorder{}
	}
	return &Service{
		delegates: delegates,
		payments:  payments,
		ledger:    ledgerSource,
		budgets:   budgets,
		logger:    logger,
		audit:     recorder,
	}
}

// money renders cents as shillings with two decimals.
func money(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

func timestamp(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

func (s *Service) logExport(ctx context.Context, name string, rows int) {
	s.audit.Record(ctx, audit.FromContext(ctx, audit.Entry{
		Action:       audit.ActionExport,
		ResourceType: "export",
		ResourceID:   name,
		Description:  fmt.Sprintf("%d rows", rows),
	}))
}

func (s *Service) Delegates(ctx context.Context, w io.Writer, filter delegate.Filter) (int, error) {
	delegates, err := s.delegates.List(ctx, filter)
	if err != nil {
		return 0, err
	}
	cw := csv.NewWriter(w)
	header := []string{"name", "local_church", "parish", "archdeaconry", "phone_number",
		"gender", "age_bracket", "category", "paid", "fee_exempt", "checked_in", "registered_at"}
	if err := cw.Write(header); err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "write csv")
	}
	for _, d := range delegates {
		row := []string{
			d.Name, d.LocalChurch, d.Parish, d.Archdeaconry, d.PhoneNumber,
			d.Gender, d.AgeBracket, d.Category,
			strconv.FormatBool(d.IsPaid), strconv.FormatBool(d.FeeExempt),
			strconv.FormatBool(d.CheckedIn), d.RegisteredAt.Format(time.RFC3339),
		}
		if err := cw.Write(row); err != nil {
			return 0, dErrors.Wrap(err, dErrors.CodeInternal, "write csv")
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "write csv")
	}
	s.logExport(ctx, "delegates", len(delegates))
	return len(delegates), nil
}

func (s *Service) Payments(ctx context.Context, w io.Writer, filter payment.Filter) (int, error) {
	payments, err := s.payments.List(ctx, filter)
	if err != nil {
		return 0, err
	}
	cw := csv.NewWriter(w)
	header := []string{"created_at", "amount", "payment_mode", "status", "finance_status",
		"mpesa_receipt", "transaction_id", "phone_number", "delegates", "completed_at"}
	if err := cw.Write(header); err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "write csv")
	}
	for _, p := range payments {
		row := []string{
			p.CreatedAt.Format(time.RFC3339), money(p.AmountCents), p.Mode,
			p.Status, p.FinanceStatus, p.MpesaReceipt, p.TransactionID,
			p.PhoneNumber, strconv.Itoa(p.DelegatesCount), timestamp(p.CompletedAt),
		}
		if err := cw.Write(row); err != nil {
			return 0, dErrors.Wrap(err, dErrors.CodeInternal, "write csv")
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "write csv")
	}
	s.logExport(ctx, "payments", len(payments))
	return len(payments), nil
}

func (s *Service) Accounts(ctx context.Context, w io.Writer) (int, error) {
	accounts, err := s.ledger.ListAccounts(ctx, false)
	if err != nil {
		return 0, err
	}
	cw := csv.NewWriter(w)
	header := []string{"code", "name", "account_type", "normal_balance", "active",
		"opening_balance", "current_balance"}
	if err := cw.Write(header); err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "write csv")
	}
	for _, a := range accounts {
		row := []string{
			a.Code, a.Name, a.AccountType, a.NormalBalance,
			strconv.FormatBool(a.IsActive),
			money(a.OpeningBalanceCents), money(a.CurrentBalanceCents),
		}
		if err := cw.Write(row); err != nil {
			return 0, dErrors.Wrap(err, dErrors.CodeInternal, "write csv")
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "write csv")
	}
	s.logExport(ctx, "accounts", len(accounts))
	return len(accounts), nil
}

// JournalEntries writes one row per journal line with its entry's header
// fields alongside, the shape accountants expect to pivot on.
func (s *Service) JournalEntries(ctx context.Context, w io.Writer, filter ledger.JournalFilter) (int, error) {
	entries, err := s.ledger.ListEntries(ctx, filter)
	if err != nil {
		return 0, err
	}
	accounts, err := s.ledger.ListAccounts(ctx, false)
	if err != nil {
		return 0, err
	}
	names := make(map[id.AccountID]ledger.Account, len(accounts))
	for _, a := range accounts {
		names[a.ID] = a
	}

	cw := csv.NewWriter(w)
	header := []string{"entry_number", "entry_date", "entry_type", "status", "description",
		"reference", "account_code", "account_name", "line_description", "debit", "credit"}
	if err := cw.Write(header); err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "write csv")
	}
	var rows int
	for _, e := range entries {
		// Listings carry no lines; the detail fetch does.
		detail, err := s.ledger.GetEntry(ctx, e.ID)
		if err != nil {
			return 0, err
		}
		for _, line := range detail.Lines {
			account := names[line.AccountID]
			row := []string{
				e.EntryNumber, e.EntryDate.Format(dateLayout), e.EntryType, e.Status,
				e.Description, e.Reference, account.Code, account.Name,
				line.Description, money(line.DebitCents), money(line.CreditCents),
			}
			if err := cw.Write(row); err != nil {
				return 0, dErrors.Wrap(err, dErrors.CodeInternal, "write csv")
			}
			rows++
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "write csv")
	}
	s.logExport(ctx, "journal_entries", rows)
	return rows, nil
}

func (s *Service) Vouchers(ctx context.Context, w io.Writer, filter ledger.VoucherFilter) (int, error) {
	vouchers, err := s.ledger.ListVouchers(ctx, filter)
	if err != nil {
		return 0, err
	}
	cw := csv.NewWriter(w)
	header := []string{"voucher_number", "voucher_type", "voucher_date", "payee", "amount",
		"method", "reference", "narration", "category", "status"}
	if err := cw.Write(header); err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "write csv")
	}
	for _, v := range vouchers {
		row := []string{
			v.VoucherNumber, v.VoucherType, v.VoucherDate.Format(dateLayout),
			v.PayeeName, money(v.AmountCents), v.Method, v.Reference,
			v.Narration, v.Category, v.Status,
		}
		if err := cw.Write(row); err != nil {
			return 0, dErrors.Wrap(err, dErrors.CodeInternal, "write csv")
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "write csv")
	}
	s.logExport(ctx, "vouchers", len(vouchers))
	return len(vouchers), nil
}

func (s *Service) BudgetItems(ctx context.Context, w io.Writer, budgetID id.BudgetID) (int, error) {
	detail, err := s.budgets.GetBudget(ctx, budgetID)
	if err != nil {
		return 0, err
	}
	cw := csv.NewWriter(w)
	header := []string{"item_number", "category", "name", "description", "quantity", "unit",
		"unit_cost", "budgeted", "actual_spent", "variance", "status"}
	if err := cw.Write(header); err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "write csv")
	}
	for _, item := range detail.Items {
		row := []string{
			strconv.Itoa(item.ItemNumber), item.Category, item.Name, item.Description,
			strconv.FormatFloat(item.Quantity, 'f', -1, 64), item.Unit,
			money(item.UnitCostCents), money(item.BudgetedCents),
			money(item.ActualSpentCents), money(item.VarianceCents()), item.Status,
		}
		if err := cw.Write(row); err != nil {
			return 0, dErrors.Wrap(err, dErrors.CodeInternal, "write csv")
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "write csv")
	}
	s.logExport(ctx, "budget_items", len(detail.Items))
	return len(detail.Items), nil
}
