package ledger

import (
	"context"
	"time"

	id "kayo/pkg/domain"
	dErrors "kayo/pkg/domain-errors"
)

// ErrNotFound indicates the requested ledger record does not exist.
var ErrNotFound = dErrors.New(dErrors.CodeNotFound, "record not found")

// AccountStore persists the chart of accounts.
type AccountStore interface {
	InsertCategory(ctx context.Context, c AccountCategory) error
	ListCategories(ctx context.Context) ([]AccountCategory, error)

	Insert(ctx context.Context, a Account) error
	Update(ctx context.Context, a Account) error
	FindByID(ctx context.Context, accountID id.AccountID) (Account, error)
	FindByCode(ctx context.Context, code string) (Account, error)
	List(ctx context.Context, activeOnly bool) ([]Account, error)
	Count(ctx context.Context) (int, error)
	// ApplyDelta shifts the account's running balance.
	ApplyDelta(ctx context.Context, accountID id.AccountID, deltaCents int64) error
}

// JournalFilter narrows entry listings.
type JournalFilter struct {
	Status    string
	EntryType string
}

// JournalStore persists journal entries with their lines.
type JournalStore interface {
	Insert(ctx context.Context, e JournalEntry) error
	// Update writes the entry's lifecycle fields. Lines are immutable
	// once inserted.
	Update(ctx context.Context, e JournalEntry) error
	FindByID(ctx context.Context, entryID id.EntryID) (JournalEntry, error)
	List(ctx context.Context, filter JournalFilter) ([]JournalEntry, error)
	// SequenceInMonth counts entries whose number starts with the
	// prefix, for sequential numbering within a month.
	SequenceInMonth(ctx context.Context, prefix string) (int, error)
	// LinesForAccount returns the account's posted movements in entry
	// date order. Running balances are the caller's job.
	LinesForAccount(ctx context.Context, accountID id.AccountID) ([]AccountLedgerLine, error)
	// ActivityInRange sums posted debits and credits per account over
	// [from, to] by entry date. Zero bounds leave that side open.
	ActivityInRange(ctx context.Context, from, to time.Time) (map[id.AccountID]AccountActivity, error)
}

// VoucherFilter narrows voucher listings.
type VoucherFilter struct {
	Status      string
	VoucherType string
}

// VoucherStore persists vouchers with their items.
type VoucherStore interface {
	Insert(ctx context.Context, v Voucher) error
	Update(ctx context.Context, v Voucher) error
	FindByID(ctx context.Context, voucherID id.VoucherID) (Voucher, error)
	List(ctx context.Context, filter VoucherFilter) ([]Voucher, error)
	SequenceInMonth(ctx context.Context, prefix string) (int, error)
}
