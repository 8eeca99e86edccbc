package ledger

import (
	"time"

	"github.com/google/uuid"

	id "kayo/pkg/domain"
)

// Account types and normal balances. An account grows on its normal
// side and shrinks on the other.
const (
	TypeAsset     = "asset"
	TypeLiability = "liability"
	TypeEquity    = "equity"
	TypeIncome    = "income"
	TypeExpense   = "expense"

	BalanceDebit  = "debit"
	BalanceCredit = "credit"
)

func ValidAccountType(t string) bool {
	switch t {
	case TypeAsset, TypeLiability, TypeEquity, TypeIncome, TypeExpense:
		return true
	}
	return false
}

// NormalBalanceFor returns the side an account of the given type grows on.
func NormalBalanceFor(accountType string) string {
	switch accountType {
	case TypeAsset, TypeExpense:
		return BalanceDebit
	default:
		return BalanceCredit
	}
}

// AccountCategory groups accounts in the chart.
type AccountCategory struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Code        string    `json:"code"`
	Type        string    `json:"type"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Account is one ledger account. System accounts back automatic
// postings and cannot be deactivated.
type Account struct {
	ID                  id.AccountID `json:"id"`
	Code                string       `json:"code"`
	Name                string       `json:"name"`
	CategoryID          uuid.UUID    `json:"category_id,omitempty"`
	AccountType         string       `json:"account_type"`
	NormalBalance       string       `json:"normal_balance"`
	Description         string       `json:"description,omitempty"`
	IsActive            bool         `json:"is_active"`
	IsSystem            bool         `json:"is_system"`
	OpeningBalanceCents int64        `json:"opening_balance_cents"`
	CurrentBalanceCents int64        `json:"current_balance_cents"`
	CreatedAt           time.Time    `json:"created_at"`
	UpdatedAt           time.Time    `json:"updated_at"`
}

// Journal entry statuses. Draft entries touch no balances; posting
// applies them; voiding reverses a posted entry.
const (
	EntryDraft  = "draft"
	EntryPosted = "posted"
	EntryVoided = "voided"
)

// Entry types tie automatic postings back to their source.
const (
	EntryGeneral  = "general"
	EntryPayment  = "payment"
	EntryTransfer = "transfer"
	EntryVoucher  = "voucher"
)

// JournalEntry is a double-entry record. Lines must balance exactly
// before it can post.
type JournalEntry struct {
	ID          id.EntryID    `json:"id"`
	EntryNumber string        `json:"entry_number"`
	EntryDate   time.Time     `json:"entry_date"`
	Description string        `json:"description"`
	Reference   string        `json:"reference,omitempty"`
	EntryType   string        `json:"entry_type"`
	Status      string        `json:"status"`
	CreatedBy   id.UserID     `json:"created_by"`
	PostedBy    id.UserID     `json:"posted_by,omitempty"`
	VoucherID   id.VoucherID  `json:"voucher_id,omitempty"`
	PaymentID   id.PaymentID  `json:"payment_id,omitempty"`
	VoidReason  string        `json:"void_reason,omitempty"`
	Lines       []JournalLine `json:"lines,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	PostedAt    *time.Time    `json:"posted_at,omitempty"`
	VoidedAt    *time.Time    `json:"voided_at,omitempty"`
}

// TotalDebits sums the debit side of the entry.
func (e JournalEntry) TotalDebits() int64 {
	var total int64
	for _, line := range e.Lines {
		total += line.DebitCents
	}
	return total
}

// TotalCredits sums the credit side of the entry.
func (e JournalEntry) TotalCredits() int64 {
	var total int64
	for _, line := range e.Lines {
		total += line.CreditCents
	}
	return total
}

// JournalLine is one side of a journal entry. Exactly one of debit and
// credit is positive.
type JournalLine struct {
	ID          uuid.UUID    `json:"id"`
	EntryID     id.EntryID   `json:"entry_id"`
	AccountID   id.AccountID `json:"account_id"`
	Description string       `json:"description,omitempty"`
	DebitCents  int64        `json:"debit_cents"`
	CreditCents int64        `json:"credit_cents"`
}

// Voucher types. Payment vouchers move money out, receipt vouchers in,
// journal vouchers adjust.
const (
	VoucherPayment = "PV"
	VoucherReceipt = "RV"
	VoucherJournal = "JV"
)

func ValidVoucherType(t string) bool {
	switch t {
	case VoucherPayment, VoucherReceipt, VoucherJournal:
		return true
	}
	return false
}

// Voucher statuses.
const (
	VoucherDraft           = "draft"
	VoucherPendingApproval = "pending_approval"
	VoucherApproved        = "approved"
	VoucherPaid            = "paid"
	VoucherCancelled       = "cancelled"
)

// Voucher is an authorization document for money in or out. It posts to
// the journal when it takes financial effect.
type Voucher struct {
	ID            id.VoucherID  `json:"id"`
	VoucherNumber string        `json:"voucher_number"`
	VoucherType   string        `json:"voucher_type"`
	VoucherDate   time.Time     `json:"voucher_date"`
	PayeeName     string        `json:"payee_name,omitempty"`
	PayeeType     string        `json:"payee_type,omitempty"`
	AmountCents   int64         `json:"amount_cents"`
	Method        string        `json:"method,omitempty"`
	Reference     string        `json:"reference,omitempty"`
	Narration     string        `json:"narration"`
	Category      string        `json:"category,omitempty"`
	Status        string        `json:"status"`
	PreparedBy    id.UserID     `json:"prepared_by"`
	CheckedBy     id.UserID     `json:"checked_by,omitempty"`
	ApprovedBy    id.UserID     `json:"approved_by,omitempty"`
	Notes         string        `json:"notes,omitempty"`
	Items         []VoucherItem `json:"items,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	CheckedAt     *time.Time    `json:"checked_at,omitempty"`
	ApprovedAt    *time.Time    `json:"approved_at,omitempty"`
	PaidAt        *time.Time    `json:"paid_at,omitempty"`
}

// VoucherItem is one line of a voucher.
type VoucherItem struct {
	ID            uuid.UUID    `json:"id"`
	VoucherID     id.VoucherID `json:"voucher_id"`
	Description   string       `json:"description"`
	Quantity      int          `json:"quantity"`
	UnitCostCents int64        `json:"unit_cost_cents"`
	AmountCents   int64        `json:"amount_cents"`
	AccountID     id.AccountID `json:"account_id,omitempty"`
}

// CreateAccountRequest adds an account to the chart.
type CreateAccountRequest struct {
	Code                string `json:"code"`
	Name                string `json:"name"`
	CategoryID          string `json:"category_id"`
	AccountType         string `json:"account_type"`
	Description         string `json:"description"`
	OpeningBalanceCents int64  `json:"opening_balance_cents"`
}

// EntryLineRequest is one line of a new journal entry.
type EntryLineRequest struct {
	AccountID   string `json:"account_id"`
	Description string `json:"description"`
	DebitCents  int64  `json:"debit_cents"`
	CreditCents int64  `json:"credit_cents"`
}

// CreateEntryRequest drafts a journal entry.
type CreateEntryRequest struct {
	EntryDate   string             `json:"entry_date"`
	Description string             `json:"description"`
	Reference   string             `json:"reference"`
	Lines       []EntryLineRequest `json:"lines"`
}

// VoucherItemRequest is one line of a new voucher.
type VoucherItemRequest struct {
	Description   string `json:"description"`
	Quantity      int    `json:"quantity"`
	UnitCostCents int64  `json:"unit_cost_cents"`
	AccountID     string `json:"account_id"`
}

// CreateVoucherRequest drafts a voucher.
type CreateVoucherRequest struct {
	VoucherType string               `json:"voucher_type"`
	VoucherDate string               `json:"voucher_date"`
	PayeeName   string               `json:"payee_name"`
	PayeeType   string               `json:"payee_type"`
	Method      string               `json:"method"`
	Reference   string               `json:"reference"`
	Narration   string               `json:"narration"`
	Category    string               `json:"category"`
	Notes       string               `json:"notes"`
	Items       []VoucherItemRequest `json:"items"`
}

// TrialBalanceRow is one account on the trial balance.
type TrialBalanceRow struct {
	AccountID   id.AccountID `json:"account_id"`
	Code        string       `json:"code"`
	Name        string       `json:"name"`
	AccountType string       `json:"account_type"`
	DebitCents  int64        `json:"debit_cents"`
	CreditCents int64        `json:"credit_cents"`
}

// TrialBalance lists every active account with its balance on its
// normal side. Debits equal credits when the books are consistent.
type TrialBalance struct {
	Rows             []TrialBalanceRow `json:"rows"`
	TotalDebitCents  int64             `json:"total_debit_cents"`
	TotalCreditCents int64             `json:"total_credit_cents"`
}

// AccountActivity is the summed posted movement on one account over a
// period.
type AccountActivity struct {
	DebitCents  int64
	CreditCents int64
}

// StatementLine is one account on a financial statement.
type StatementLine struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	AmountCents int64  `json:"amount_cents"`
}

// IncomeStatement sets income against expenses.
type IncomeStatement struct {
	Income            []StatementLine `json:"income"`
	Expenses          []StatementLine `json:"expenses"`
	TotalIncomeCents  int64           `json:"total_income_cents"`
	TotalExpenseCents int64           `json:"total_expense_cents"`
	NetCents          int64           `json:"net_cents"`
}

// BalanceSheet states the financial position. Net income rolls into
// equity so the sheet balances.
type BalanceSheet struct {
	Assets              []StatementLine `json:"assets"`
	Liabilities         []StatementLine `json:"liabilities"`
	Equity              []StatementLine `json:"equity"`
	NetIncomeCents      int64           `json:"net_income_cents"`
	TotalAssetCents     int64           `json:"total_asset_cents"`
	TotalLiabilityCents int64           `json:"total_liability_cents"`
	TotalEquityCents    int64           `json:"total_equity_cents"`
}

// AccountLedgerLine is one posted movement on an account, with the
// balance after it.
type AccountLedgerLine struct {
	EntryNumber  string    `json:"entry_number"`
	EntryDate    time.Time `json:"entry_date"`
	Description  string    `json:"description"`
	DebitCents   int64     `json:"debit_cents"`
	CreditCents  int64     `json:"credit_cents"`
	BalanceCents int64     `json:"balance_cents"`
}

// AccountLedger is the movement history of one account.
type AccountLedger struct {
	Account Account             `json:"account"`
	Lines   []AccountLedgerLine `json:"lines"`
}
