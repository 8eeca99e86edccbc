package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"kayo/internal/audit"
	"kayo/internal/platform/metrics"
	id "kayo/pkg/domain"
	dErrors "kayo/pkg/domain-errors"
	"kayo/pkg/requestcontext"
)

const dateLayout = "2006-01-02"

// System account codes. Automatic postings land on these; seeding
// guarantees they exist.
const (
	CodeCashInHand    = "1000"
	CodeMpesaAccount  = "1010"
	CodeBankAccount   = "1020"
	CodeRegistration  = "4000"
	CodeContributions = "4100"
	CodeGeneralExp    = "5000"
)

// Service keeps the double-entry books: the chart of accounts, journal
// entries, vouchers and the derived reports.
type Service struct {
	accounts AccountStore
	journal  JournalStore
	vouchers VoucherStore
	logger   *slog.Logger
	metrics  *metrics.Metrics
	audit    audit.Recorder
}

func NewService(accounts AccountStore, journal JournalStore, vouchers VoucherStore, logger *slog.Logger, m *metrics.Metrics, recorder audit.Recorder) *Service {
	if recorder == nil {
		recorder = audit.NopRecorder{}
	}
	return &Service{
		accounts: accounts,
		journal:  journal,
		vouchers: vouchers,
		logger:   logger,
		metrics:  m,
		audit:    recorder,
	}
}

type seedAccount struct {
	code        string
	name        string
	accountType string
	category    string
}

var defaultChart = []seedAccount{
	{CodeCashInHand, "Cash In Hand", TypeAsset, "Current Assets"},
	{CodeMpesaAccount, "M-Pesa Account", TypeAsset, "Current Assets"},
	{CodeBankAccount, "Bank Account", TypeAsset, "Current Assets"},
	{"2000", "Accounts Payable", TypeLiability, "Current Liabilities"},
	{"3000", "Accumulated Fund", TypeEquity, "Equity"},
	{CodeRegistration, "Registration Fees", TypeIncome, "Income"},
	{CodeContributions, "Pledges & Contributions", TypeIncome, "Income"},
	{"4200", "Fundraising Income", TypeIncome, "Income"},
	{CodeGeneralExp, "General Expenses", TypeExpense, "Expenses"},
	{"5100", "Venue & Equipment", TypeExpense, "Expenses"},
	{"5200", "Catering", TypeExpense, "Expenses"},
	{"5300", "Transport", TypeExpense, "Expenses"},
}

// SeedChart installs the default chart of accounts on an empty book.
// It is a no-op when any account already exists.
func (s *Service) SeedChart(ctx context.Context) error {
	count, err := s.accounts.Count(ctx)
	if err != nil {
		return fmt.Errorf("seed chart: %w", err)
	}
	if count > 0 {
		return nil
	}

	now := requestcontext.Now(ctx)
	categories := map[string]uuid.UUID{}
	categoryTypes := map[string]string{
		"Current Assets":      TypeAsset,
		"Current Liabilities": TypeLiability,
		"Equity":              TypeEquity,
		"Income":              TypeIncome,
		"Expenses":            TypeExpense,
	}
	code := 100
	for _, sa := range defaultChart {
		if _, ok := categories[sa.category]; ok {
			continue
		}
		c := AccountCategory{
			ID:        uuid.New(),
			Name:      sa.category,
			Code:      fmt.Sprintf("C%d", code),
			Type:      categoryTypes[sa.category],
			CreatedAt: now,
		}
		code += 100
		if err := s.accounts.InsertCategory(ctx, c); err != nil {
			return fmt.Errorf("seed category %s: %w", sa.category, err)
		}
		categories[sa.category] = c.ID
	}
	for _, sa := range defaultChart {
		a := Account{
			ID:            id.NewAccountID(),
			Code:          sa.code,
			Name:          sa.name,
			CategoryID:    categories[sa.category],
			AccountType:   sa.accountType,
			NormalBalance: NormalBalanceFor(sa.accountType),
			IsActive:      true,
			IsSystem:      true,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.accounts.Insert(ctx, a); err != nil {
			return fmt.Errorf("seed account %s: %w", sa.code, err)
		}
	}
	s.logger.InfoContext(ctx, "default chart of accounts seeded",
		slog.Int("accounts", len(defaultChart)))
	return nil
}

func (s *Service) CreateAccount(ctx context.Context, req CreateAccountRequest) (Account, error) {
	if strings.TrimSpace(req.Code) == "" || strings.TrimSpace(req.Name) == "" {
		return Account{}, dErrors.New(dErrors.CodeValidation, "code and name are required")
	}
	if !ValidAccountType(req.AccountType) {
		return Account{}, dErrors.Newf(dErrors.CodeValidation, "unknown account type %q", req.AccountType)
	}
	if _, err := s.accounts.FindByCode(ctx, req.Code); err == nil {
		return Account{}, dErrors.Newf(dErrors.CodeConflict, "account code %s is taken", req.Code)
	}

	now := requestcontext.Now(ctx)
	a := Account{
		ID:                  id.NewAccountID(),
		Code:                strings.TrimSpace(req.Code),
		Name:                strings.TrimSpace(req.Name),
		AccountType:         req.AccountType,
		NormalBalance:       NormalBalanceFor(req.AccountType),
		Description:         strings.TrimSpace(req.Description),
		IsActive:            true,
		OpeningBalanceCents: req.OpeningBalanceCents,
		CurrentBalanceCents: req.OpeningBalanceCents,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if req.CategoryID != "" {
		categoryID, err := uuid.Parse(req.CategoryID)
		if err != nil {
			return Account{}, dErrors.New(dErrors.CodeValidation, "invalid category id")
		}
		a.CategoryID = categoryID
	}
	if err := s.accounts.Insert(ctx, a); err != nil {
		return Account{}, fmt.Errorf("create account: %w", err)
	}
	s.audit.Record(ctx, audit.Entry{
		Action:       audit.ActionCreate,
		ResourceType: "account",
		ResourceID:   a.ID.String(),
		Description:  fmt.Sprintf("account %s %s", a.Code, a.Name),
	})
	return a, nil
}

// DeactivateAccount retires an account. System accounts stay active
// because automatic postings depend on them.
func (s *Service) DeactivateAccount(ctx context.Context, accountID id.AccountID) (Account, error) {
	a, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return Account{}, err
	}
	if a.IsSystem {
		return Account{}, dErrors.New(dErrors.CodeConflict, "system accounts cannot be deactivated")
	}
	a.IsActive = false
	a.UpdatedAt = requestcontext.Now(ctx)
	return a, s.accounts.Update(ctx, a)
}

func (s *Service) ListAccounts(ctx context.Context, activeOnly bool) ([]Account, error) {
	return s.accounts.List(ctx, activeOnly)
}

func (s *Service) GetAccount(ctx context.Context, accountID id.AccountID) (Account, error) {
	return s.accounts.FindByID(ctx, accountID)
}

func (s *Service) ListCategories(ctx context.Context) ([]AccountCategory, error) {
	return s.accounts.ListCategories(ctx)
}

// nextEntryNumber numbers entries JE-YYYYMM-NNNN, sequential within the
// month.
func (s *Service) nextEntryNumber(ctx context.Context, date time.Time) (string, error) {
	prefix := "JE-" + date.Format("200601") + "-"
	seq, err := s.journal.SequenceInMonth(ctx, prefix)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%04d", prefix, seq), nil
}

func (s *Service) buildLines(ctx context.Context, entryID id.EntryID, reqs []EntryLineRequest) ([]JournalLine, error) {
	if len(reqs) < 2 {
		return nil, dErrors.New(dErrors.CodeValidation, "an entry needs at least two lines")
	}
	lines := make([]JournalLine, 0, len(reqs))
	for i, lr := range reqs {
		if (lr.DebitCents > 0) == (lr.CreditCents > 0) {
			return nil, dErrors.Newf(dErrors.CodeValidation, "line %d must carry exactly one of debit and credit", i+1)
		}
		if lr.DebitCents < 0 || lr.CreditCents < 0 {
			return nil, dErrors.Newf(dErrors.CodeValidation, "line %d has a negative amount", i+1)
		}
		accountID, err := id.ParseAccountID(lr.AccountID)
		if err != nil {
			return nil, dErrors.Newf(dErrors.CodeValidation, "line %d has an invalid account id", i+1)
		}
		account, err := s.accounts.FindByID(ctx, accountID)
		if err != nil {
			return nil, dErrors.Newf(dErrors.CodeValidation, "line %d references an unknown account", i+1)
		}
		if !account.IsActive {
			return nil, dErrors.Newf(dErrors.CodeValidation, "account %s is inactive", account.Code)
		}
		lines = append(lines, JournalLine{
			ID:          uuid.New(),
			EntryID:     entryID,
			AccountID:   accountID,
			Description: strings.TrimSpace(lr.Description),
			DebitCents:  lr.DebitCents,
			CreditCents: lr.CreditCents,
		})
	}
	return lines, nil
}

// CreateEntry drafts a journal entry. Drafts touch no balances until
// posted.
func (s *Service) CreateEntry(ctx context.Context, req CreateEntryRequest) (JournalEntry, error) {
	if strings.TrimSpace(req.Description) == "" {
		return JournalEntry{}, dErrors.New(dErrors.CodeValidation, "description is required")
	}
	entryDate, err := time.Parse(dateLayout, req.EntryDate)
	if err != nil {
		return JournalEntry{}, dErrors.New(dErrors.CodeValidation, "entry date must be YYYY-MM-DD")
	}

	entryID := id.NewEntryID()
	lines, err := s.buildLines(ctx, entryID, req.Lines)
	if err != nil {
		return JournalEntry{}, err
	}
	number, err := s.nextEntryNumber(ctx, entryDate)
	if err != nil {
		return JournalEntry{}, err
	}

	e := JournalEntry{
		ID:          entryID,
		EntryNumber: number,
		EntryDate:   entryDate,
		Description: strings.TrimSpace(req.Description),
		Reference:   strings.TrimSpace(req.Reference),
		EntryType:   EntryGeneral,
		Status:      EntryDraft,
		CreatedBy:   requestcontext.UserID(ctx),
		Lines:       lines,
		CreatedAt:   requestcontext.Now(ctx),
	}
	if err := s.journal.Insert(ctx, e); err != nil {
		return JournalEntry{}, fmt.Errorf("create entry: %w", err)
	}
	return e, nil
}

// applyEntry shifts every line's account balance. sign is +1 on post
// and -1 on void.
func (s *Service) applyEntry(ctx context.Context, e JournalEntry, sign int64) error {
	for _, line := range e.Lines {
		account, err := s.accounts.FindByID(ctx, line.AccountID)
		if err != nil {
			return err
		}
		delta := line.DebitCents - line.CreditCents
		if account.NormalBalance == BalanceCredit {
			delta = -delta
		}
		if err := s.accounts.ApplyDelta(ctx, line.AccountID, sign*delta); err != nil {
			return err
		}
	}
	return nil
}

// PostEntry applies a draft entry to the books. Debits must equal
// credits to the cent.
func (s *Service) PostEntry(ctx context.Context, entryID id.EntryID) (JournalEntry, error) {
	e, err := s.journal.FindByID(ctx, entryID)
	if err != nil {
		return JournalEntry{}, err
	}
	if e.Status != EntryDraft {
		return JournalEntry{}, dErrors.Newf(dErrors.CodeConflict, "entry is %s", e.Status)
	}
	debits, credits := e.TotalDebits(), e.TotalCredits()
	if debits == 0 || debits != credits {
		return JournalEntry{}, dErrors.Newf(dErrors.CodeValidation,
			"entry does not balance: %d debit vs %d credit", debits, credits)
	}

	now := requestcontext.Now(ctx)
	e.Status = EntryPosted
	e.PostedBy = requestcontext.UserID(ctx)
	e.PostedAt = &now
	if err := s.journal.Update(ctx, e); err != nil {
		return JournalEntry{}, err
	}
	if err := s.applyEntry(ctx, e, 1); err != nil {
		return JournalEntry{}, fmt.Errorf("apply entry %s: %w", e.EntryNumber, err)
	}
	if s.metrics != nil {
		s.metrics.JournalEntriesPosted.Inc()
	}
	s.audit.Record(ctx, audit.Entry{
		Action:       "post",
		ResourceType: "journal_entry",
		ResourceID:   e.ID.String(),
		Description:  e.EntryNumber,
	})
	return e, nil
}

// VoidEntry reverses a posted entry. The lines stay on record; only the
// balances move back.
func (s *Service) VoidEntry(ctx context.Context, entryID id.EntryID, reason string) (JournalEntry, error) {
	if strings.TrimSpace(reason) == "" {
		return JournalEntry{}, dErrors.New(dErrors.CodeValidation, "voiding needs a reason")
	}
	e, err := s.journal.FindByID(ctx, entryID)
	if err != nil {
		return JournalEntry{}, err
	}
	if e.Status != EntryPosted {
		return JournalEntry{}, dErrors.Newf(dErrors.CodeConflict, "entry is %s", e.Status)
	}

	now := requestcontext.Now(ctx)
	e.Status = EntryVoided
	e.VoidReason = reason
	e.VoidedAt = &now
	if err := s.journal.Update(ctx, e); err != nil {
		return JournalEntry{}, err
	}
	if err := s.applyEntry(ctx, e, -1); err != nil {
		return JournalEntry{}, fmt.Errorf("reverse entry %s: %w", e.EntryNumber, err)
	}
	s.audit.Record(ctx, audit.Entry{
		Action:       "void",
		ResourceType: "journal_entry",
		ResourceID:   e.ID.String(),
		Description:  reason,
	})
	return e, nil
}

func (s *Service) GetEntry(ctx context.Context, entryID id.EntryID) (JournalEntry, error) {
	return s.journal.FindByID(ctx, entryID)
}

func (s *Service) ListEntries(ctx context.Context, filter JournalFilter) ([]JournalEntry, error) {
	return s.journal.List(ctx, filter)
}

// autoPost creates and immediately posts a two-line entry between two
// system accounts.
func (s *Service) autoPost(ctx context.Context, entryType, debitCode, creditCode string, amountCents int64, memo, reference string, voucherID id.VoucherID, paymentID id.PaymentID) (JournalEntry, error) {
	debit, err := s.accounts.FindByCode(ctx, debitCode)
	if err != nil {
		return JournalEntry{}, fmt.Errorf("system account %s: %w", debitCode, err)
	}
	credit, err := s.accounts.FindByCode(ctx, creditCode)
	if err != nil {
		return JournalEntry{}, fmt.Errorf("system account %s: %w", creditCode, err)
	}

	now := requestcontext.Now(ctx)
	number, err := s.nextEntryNumber(ctx, now)
	if err != nil {
		return JournalEntry{}, err
	}
	entryID := id.NewEntryID()
	e := JournalEntry{
		ID:          entryID,
		EntryNumber: number,
		EntryDate:   now,
		Description: memo,
		Reference:   reference,
		EntryType:   entryType,
		Status:      EntryPosted,
		CreatedBy:   requestcontext.UserID(ctx),
		PostedBy:    requestcontext.UserID(ctx),
		VoucherID:   voucherID,
		PaymentID:   paymentID,
		Lines: []JournalLine{
			{ID: uuid.New(), EntryID: entryID, AccountID: debit.ID, DebitCents: amountCents},
			{ID: uuid.New(), EntryID: entryID, AccountID: credit.ID, CreditCents: amountCents},
		},
		CreatedAt: now,
		PostedAt:  &now,
	}
	if err := s.journal.Insert(ctx, e); err != nil {
		return JournalEntry{}, fmt.Errorf("auto post: %w", err)
	}
	if err := s.applyEntry(ctx, e, 1); err != nil {
		return JournalEntry{}, fmt.Errorf("apply auto post %s: %w", e.EntryNumber, err)
	}
	if s.metrics != nil {
		s.metrics.JournalEntriesPosted.Inc()
	}
	return e, nil
}

// PostPaymentReceipt books a completed delegate-fee collection: the
// M-Pesa account grows against registration income.
func (s *Service) PostPaymentReceipt(ctx context.Context, paymentID id.PaymentID, amountCents int64, memo string) error {
	_, err := s.autoPost(ctx, EntryPayment, CodeMpesaAccount, CodeRegistration,
		amountCents, memo, paymentID.String(), id.VoucherID{}, paymentID)
	return err
}

// PostTransferReceipt books funds handed over to the treasury: cash in
// hand grows against contribution income.
func (s *Service) PostTransferReceipt(ctx context.Context, transferID id.TransferID, amountCents int64, memo string) error {
	_, err := s.autoPost(ctx, EntryTransfer, CodeCashInHand, CodeContributions,
		amountCents, memo, transferID.String(), id.VoucherID{}, id.PaymentID{})
	return err
}

func (s *Service) CreateVoucher(ctx context.Context, req CreateVoucherRequest) (Voucher, error) {
	if !ValidVoucherType(req.VoucherType) {
		return Voucher{}, dErrors.Newf(dErrors.CodeValidation, "unknown voucher type %q", req.VoucherType)
	}
	if strings.TrimSpace(req.Narration) == "" {
		return Voucher{}, dErrors.New(dErrors.CodeValidation, "narration is required")
	}
	voucherDate, err := time.Parse(dateLayout, req.VoucherDate)
	if err != nil {
		return Voucher{}, dErrors.New(dErrors.CodeValidation, "voucher date must be YYYY-MM-DD")
	}
	if len(req.Items) == 0 {
		return Voucher{}, dErrors.New(dErrors.CodeValidation, "a voucher needs at least one item")
	}

	voucherID := id.NewVoucherID()
	var total int64
	items := make([]VoucherItem, 0, len(req.Items))
	for i, ir := range req.Items {
		if strings.TrimSpace(ir.Description) == "" {
			return Voucher{}, dErrors.Newf(dErrors.CodeValidation, "item %d needs a description", i+1)
		}
		quantity := ir.Quantity
		if quantity <= 0 {
			quantity = 1
		}
		amount := int64(quantity) * ir.UnitCostCents
		if amount <= 0 {
			return Voucher{}, dErrors.Newf(dErrors.CodeValidation, "item %d needs a positive amount", i+1)
		}
		item := VoucherItem{
			ID:            uuid.New(),
			VoucherID:     voucherID,
			Description:   strings.TrimSpace(ir.Description),
			Quantity:      quantity,
			UnitCostCents: ir.UnitCostCents,
			AmountCents:   amount,
		}
		if ir.AccountID != "" {
			accountID, err := id.ParseAccountID(ir.AccountID)
			if err != nil {
				return Voucher{}, dErrors.Newf(dErrors.CodeValidation, "item %d has an invalid account id", i+1)
			}
			item.AccountID = accountID
		}
		total += amount
		items = append(items, item)
	}

	prefix := req.VoucherType + "-" + voucherDate.Format("200601") + "-"
	seq, err := s.vouchers.SequenceInMonth(ctx, prefix)
	if err != nil {
		return Voucher{}, err
	}

	v := Voucher{
		ID:            voucherID,
		VoucherNumber: fmt.Sprintf("%s%04d", prefix, seq),
		VoucherType:   req.VoucherType,
		VoucherDate:   voucherDate,
		PayeeName:     strings.TrimSpace(req.PayeeName),
		PayeeType:     strings.TrimSpace(req.PayeeType),
		AmountCents:   total,
		Method:        strings.TrimSpace(req.Method),
		Reference:     strings.TrimSpace(req.Reference),
		Narration:     strings.TrimSpace(req.Narration),
		Category:      strings.TrimSpace(req.Category),
		Status:        VoucherDraft,
		PreparedBy:    requestcontext.UserID(ctx),
		Notes:         strings.TrimSpace(req.Notes),
		Items:         items,
		CreatedAt:     requestcontext.Now(ctx),
	}
	if err := s.vouchers.Insert(ctx, v); err != nil {
		return Voucher{}, fmt.Errorf("create voucher: %w", err)
	}
	s.audit.Record(ctx, audit.Entry{
		Action:       audit.ActionCreate,
		ResourceType: "voucher",
		ResourceID:   v.ID.String(),
		Description:  v.VoucherNumber,
	})
	return v, nil
}

// SubmitVoucher sends a draft for approval. The submitter is recorded
// as the checker.
func (s *Service) SubmitVoucher(ctx context.Context, voucherID id.VoucherID) (Voucher, error) {
	v, err := s.vouchers.FindByID(ctx, voucherID)
	if err != nil {
		return Voucher{}, err
	}
	if v.Status != VoucherDraft {
		return Voucher{}, dErrors.Newf(dErrors.CodeConflict, "voucher is %s", v.Status)
	}
	now := requestcontext.Now(ctx)
	v.Status = VoucherPendingApproval
	v.CheckedBy = requestcontext.UserID(ctx)
	v.CheckedAt = &now
	return v, s.vouchers.Update(ctx, v)
}

// ApproveVoucher authorizes a pending voucher. Receipt vouchers take
// financial effect here, so approval posts them.
func (s *Service) ApproveVoucher(ctx context.Context, voucherID id.VoucherID) (Voucher, error) {
	v, err := s.vouchers.FindByID(ctx, voucherID)
	if err != nil {
		return Voucher{}, err
	}
	if v.Status != VoucherPendingApproval {
		return Voucher{}, dErrors.Newf(dErrors.CodeConflict, "voucher is %s", v.Status)
	}

	now := requestcontext.Now(ctx)
	v.Status = VoucherApproved
	v.ApprovedBy = requestcontext.UserID(ctx)
	v.ApprovedAt = &now
	if err := s.vouchers.Update(ctx, v); err != nil {
		return Voucher{}, err
	}
	if v.VoucherType == VoucherReceipt {
		memo := fmt.Sprintf("Receipt voucher %s: %s", v.VoucherNumber, v.Narration)
		if _, err := s.autoPost(ctx, EntryVoucher, CodeCashInHand, CodeContributions,
			v.AmountCents, memo, v.VoucherNumber, v.ID, id.PaymentID{}); err != nil {
			s.logger.ErrorContext(ctx, "receipt voucher posting failed",
				slog.String("voucher", v.VoucherNumber), slog.Any("error", err))
		}
	}
	s.audit.Record(ctx, audit.Entry{
		Action:       audit.ActionApprove,
		ResourceType: "voucher",
		ResourceID:   v.ID.String(),
		Description:  v.VoucherNumber,
	})
	return v, nil
}

// PayVoucher settles an approved payment voucher, posting the expense
// against cash.
func (s *Service) PayVoucher(ctx context.Context, voucherID id.VoucherID) (Voucher, error) {
	v, err := s.vouchers.FindByID(ctx, voucherID)
	if err != nil {
		return Voucher{}, err
	}
	if v.VoucherType != VoucherPayment {
		return Voucher{}, dErrors.New(dErrors.CodeConflict, "only payment vouchers are paid out")
	}
	if v.Status != VoucherApproved {
		return Voucher{}, dErrors.Newf(dErrors.CodeConflict, "voucher is %s, approve it first", v.Status)
	}

	now := requestcontext.Now(ctx)
	v.Status = VoucherPaid
	v.PaidAt = &now
	if err := s.vouchers.Update(ctx, v); err != nil {
		return Voucher{}, err
	}
	memo := fmt.Sprintf("Payment voucher %s: %s", v.VoucherNumber, v.Narration)
	if _, err := s.autoPost(ctx, EntryVoucher, CodeGeneralExp, CodeCashInHand,
		v.AmountCents, memo, v.VoucherNumber, v.ID, id.PaymentID{}); err != nil {
		s.logger.ErrorContext(ctx, "payment voucher posting failed",
			slog.String("voucher", v.VoucherNumber), slog.Any("error", err))
	}
	s.audit.Record(ctx, audit.Entry{
		Action:       audit.ActionUpdate,
		ResourceType: "voucher",
		ResourceID:   v.ID.String(),
		Description:  v.VoucherNumber + " paid",
	})
	return v, nil
}

// CancelVoucher withdraws a voucher that has not taken financial
// effect.
func (s *Service) CancelVoucher(ctx context.Context, voucherID id.VoucherID) (Voucher, error) {
	v, err := s.vouchers.FindByID(ctx, voucherID)
	if err != nil {
		return Voucher{}, err
	}
	if v.Status != VoucherDraft && v.Status != VoucherPendingApproval {
		return Voucher{}, dErrors.Newf(dErrors.CodeConflict, "voucher is %s", v.Status)
	}
	v.Status = VoucherCancelled
	return v, s.vouchers.Update(ctx, v)
}

func (s *Service) GetVoucher(ctx context.Context, voucherID id.VoucherID) (Voucher, error) {
	return s.vouchers.FindByID(ctx, voucherID)
}

func (s *Service) ListVouchers(ctx context.Context, filter VoucherFilter) ([]Voucher, error) {
	return s.vouchers.List(ctx, filter)
}

// TrialBalanceReport lists each active account's balance on its normal
// side.
func (s *Service) TrialBalanceReport(ctx context.Context) (TrialBalance, error) {
	accounts, err := s.accounts.List(ctx, true)
	if err != nil {
		return TrialBalance{}, err
	}
	tb := TrialBalance{Rows: []TrialBalanceRow{}}
	for _, a := range accounts {
		row := TrialBalanceRow{
			AccountID:   a.ID,
			Code:        a.Code,
			Name:        a.Name,
			AccountType: a.AccountType,
		}
		if a.NormalBalance == BalanceDebit {
			row.DebitCents = a.CurrentBalanceCents
		} else {
			row.CreditCents = a.CurrentBalanceCents
		}
		tb.TotalDebitCents += row.DebitCents
		tb.TotalCreditCents += row.CreditCents
		tb.Rows = append(tb.Rows, row)
	}
	return tb, nil
}

// IncomeStatementReport sets income against expenses over the period.
// Empty bounds leave that side open; with neither bound set the report
// reads straight off the account balances.
func (s *Service) IncomeStatementReport(ctx context.Context, fromRaw, toRaw string) (IncomeStatement, error) {
	var from, to time.Time
	var err error
	if fromRaw != "" {
		if from, err = time.Parse(dateLayout, fromRaw); err != nil {
			return IncomeStatement{}, dErrors.New(dErrors.CodeValidation, "from must be YYYY-MM-DD")
		}
	}
	if toRaw != "" {
		if to, err = time.Parse(dateLayout, toRaw); err != nil {
			return IncomeStatement{}, dErrors.New(dErrors.CodeValidation, "to must be YYYY-MM-DD")
		}
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return IncomeStatement{}, dErrors.New(dErrors.CodeValidation, "to must not precede from")
	}

	accounts, err := s.accounts.List(ctx, true)
	if err != nil {
		return IncomeStatement{}, err
	}

	ranged := !from.IsZero() || !to.IsZero()
	var activity map[id.AccountID]AccountActivity
	if ranged {
		if activity, err = s.journal.ActivityInRange(ctx, from, to); err != nil {
			return IncomeStatement{}, err
		}
	}

	st := IncomeStatement{Income: []StatementLine{}, Expenses: []StatementLine{}}
	for _, a := range accounts {
		line := StatementLine{Code: a.Code, Name: a.Name}
		switch a.AccountType {
		case TypeIncome:
			line.AmountCents = a.CurrentBalanceCents
			if ranged {
				act := activity[a.ID]
				line.AmountCents = act.CreditCents - act.DebitCents
			}
			st.Income = append(st.Income, line)
			st.TotalIncomeCents += line.AmountCents
		case TypeExpense:
			line.AmountCents = a.CurrentBalanceCents
			if ranged {
				act := activity[a.ID]
				line.AmountCents = act.DebitCents - act.CreditCents
			}
			st.Expenses = append(st.Expenses, line)
			st.TotalExpenseCents += line.AmountCents
		}
	}
	st.NetCents = st.TotalIncomeCents - st.TotalExpenseCents
	return st, nil
}

// BalanceSheetReport states the financial position, with net income
// folded into equity.
func (s *Service) BalanceSheetReport(ctx context.Context) (BalanceSheet, error) {
	accounts, err := s.accounts.List(ctx, true)
	if err != nil {
		return BalanceSheet{}, err
	}
	bs := BalanceSheet{Assets: []StatementLine{}, Liabilities: []StatementLine{}, Equity: []StatementLine{}}
	var income, expense int64
	for _, a := range accounts {
		line := StatementLine{Code: a.Code, Name: a.Name, AmountCents: a.CurrentBalanceCents}
		switch a.AccountType {
		case TypeAsset:
			bs.Assets = append(bs.Assets, line)
			bs.TotalAssetCents += line.AmountCents
		case TypeLiability:
			bs.Liabilities = append(bs.Liabilities, line)
			bs.TotalLiabilityCents += line.AmountCents
		case TypeEquity:
			bs.Equity = append(bs.Equity, line)
			bs.TotalEquityCents += line.AmountCents
		case TypeIncome:
			income += a.CurrentBalanceCents
		case TypeExpense:
			expense += a.CurrentBalanceCents
		}
	}
	bs.NetIncomeCents = income - expense
	bs.TotalEquityCents += bs.NetIncomeCents
	return bs, nil
}

// AccountLedgerReport is the movement history of one account with
// running balances.
func (s *Service) AccountLedgerReport(ctx context.Context, accountID id.AccountID) (AccountLedger, error) {
	a, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return AccountLedger{}, err
	}
	lines, err := s.journal.LinesForAccount(ctx, accountID)
	if err != nil {
		return AccountLedger{}, err
	}

	balance := a.OpeningBalanceCents
	for i := range lines {
		delta := lines[i].DebitCents - lines[i].CreditCents
		if a.NormalBalance == BalanceCredit {
			delta = -delta
		}
		balance += delta
		lines[i].BalanceCents = balance
	}
	return AccountLedger{Account: a, Lines: lines}, nil
}
