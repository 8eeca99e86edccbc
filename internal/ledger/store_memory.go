package ledger

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	id "kayo/pkg/domain"
)

// MemoryAccountStore is an in-memory AccountStore for tests.
type MemoryAccountStore struct {
	mu         sync.RWMutex
	categories []AccountCategory
	accounts   map[id.AccountID]Account
}

func NewMemoryAccountStore() *MemoryAccountStore {
	return &MemoryAccountStore{accounts: make(map[id.AccountID]Account)}
}

func (s *MemoryAccountStore) InsertCategory(_ context.Context, c AccountCategory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories = append(s.categories, c)
	return nil
}

func (s *MemoryAccountStore) ListCategories(_ context.Context) ([]AccountCategory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]AccountCategory, len(s.categories))
	copy(out, s.categories)
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *MemoryAccountStore) Insert(_ context.Context, a Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.ID] = a
	return nil
}

func (s *MemoryAccountStore) Update(_ context.Context, a Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.accounts[a.ID]
	if !ok {
		return ErrNotFound
	}
	// Balance moves only through ApplyDelta.
	a.CurrentBalanceCents = stored.CurrentBalanceCents
	s.accounts[a.ID] = a
	return nil
}

func (s *MemoryAccountStore) FindByID(_ context.Context, accountID id.AccountID) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return Account{}, ErrNotFound
	}
	return a, nil
}

func (s *MemoryAccountStore) FindByCode(_ context.Context, code string) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.accounts {
		if a.Code == code {
			return a, nil
		}
	}
	return Account{}, ErrNotFound
}

func (s *MemoryAccountStore) List(_ context.Context, activeOnly bool) ([]Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var accounts []Account
	for _, a := range s.accounts {
		if activeOnly && !a.IsActive {
			continue
		}
		accounts = append(accounts, a)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Code < accounts[j].Code })
	return accounts, nil
}

func (s *MemoryAccountStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts), nil
}

func (s *MemoryAccountStore) ApplyDelta(_ context.Context, accountID id.AccountID, deltaCents int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return ErrNotFound
	}
	a.CurrentBalanceCents += deltaCents
	s.accounts[accountID] = a
	return nil
}

// MemoryJournalStore is an in-memory JournalStore for tests.
type MemoryJournalStore struct {
	mu      sync.RWMutex
	entries map[id.EntryID]JournalEntry
}

func NewMemoryJournalStore() *MemoryJournalStore {
	return &MemoryJournalStore{entries: make(map[id.EntryID]JournalEntry)}
}

func (s *MemoryJournalStore) Insert(_ context.Context, e JournalEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[e.ID] = e
	return nil
}

func (s *MemoryJournalStore) Update(_ context.Context, e JournalEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.entries[e.ID]
	if !ok {
		return ErrNotFound
	}
	e.Lines = stored.Lines
	s.entries[e.ID] = e
	return nil
}

func (s *MemoryJournalStore) FindByID(_ context.Context, entryID id.EntryID) (JournalEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[entryID]
	if !ok {
		return JournalEntry{}, ErrNotFound
	}
	return e, nil
}

func (s *MemoryJournalStore) List(_ context.Context, filter JournalFilter) ([]JournalEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var entries []JournalEntry
	for _, e := range s.entries {
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		if filter.EntryType != "" && e.EntryType != filter.EntryType {
			continue
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].EntryNumber > entries[j].EntryNumber })
	return entries, nil
}

func (s *MemoryJournalStore) SequenceInMonth(_ context.Context, prefix string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, e := range s.entries {
		if strings.HasPrefix(e.EntryNumber, prefix) {
			count++
		}
	}
	return count + 1, nil
}

func (s *MemoryJournalStore) LinesForAccount(_ context.Context, accountID id.AccountID) ([]AccountLedgerLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var lines []AccountLedgerLine
	for _, e := range s.entries {
		if e.Status != EntryPosted {
			continue
		}
		for _, line := range e.Lines {
			if line.AccountID != accountID {
				continue
			}
			description := line.Description
			if description == "" {
				description = e.Description
			}
			lines = append(lines, AccountLedgerLine{
				EntryNumber: e.EntryNumber,
				EntryDate:   e.EntryDate,
				Description: description,
				DebitCents:  line.DebitCents,
				CreditCents: line.CreditCents,
			})
		}
	}
	sort.Slice(lines, func(i, j int) bool {
		if lines[i].EntryDate.Equal(lines[j].EntryDate) {
			return lines[i].EntryNumber < lines[j].EntryNumber
		}
		return lines[i].EntryDate.Before(lines[j].EntryDate)
	})
	return lines, nil
}

func (s *MemoryJournalStore) ActivityInRange(_ context.Context, from, to time.Time) (map[id.AccountID]AccountActivity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	activity := make(map[id.AccountID]AccountActivity)
	for _, e := range s.entries {
		if e.Status != EntryPosted {
			continue
		}
		// Bounds are calendar dates, matching the DATE column in Postgres.
		y, m, d := e.EntryDate.Date()
		day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		if !from.IsZero() && day.Before(from) {
			continue
		}
		if !to.IsZero() && day.After(to) {
			continue
		}
		for _, line := range e.Lines {
			act := activity[line.AccountID]
			act.DebitCents += line.DebitCents
			act.CreditCents += line.CreditCents
			activity[line.AccountID] = act
		}
	}
	return activity, nil
}

// MemoryVoucherStore is an in-memory VoucherStore for tests.
type MemoryVoucherStore struct {
	mu       sync.RWMutex
	vouchers map[id.VoucherID]Voucher
}

func NewMemoryVoucherStore() *MemoryVoucherStore {
	return &MemoryVoucherStore{vouchers: make(map[id.VoucherID]Voucher)}
}

func (s *MemoryVoucherStore) Insert(_ context.Context, v Voucher) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vouchers[v.ID] = v
	return nil
}

func (s *MemoryVoucherStore) Update(_ context.Context, v Voucher) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.vouchers[v.ID]
	if !ok {
		return ErrNotFound
	}
	v.Items = stored.Items
	s.vouchers[v.ID] = v
	return nil
}

func (s *MemoryVoucherStore) FindByID(_ context.Context, voucherID id.VoucherID) (Voucher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vouchers[voucherID]
	if !ok {
		return Voucher{}, ErrNotFound
	}
	return v, nil
}

func (s *MemoryVoucherStore) List(_ context.Context, filter VoucherFilter) ([]Voucher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var vouchers []Voucher
	for _, v := range s.vouchers {
		if filter.Status != "" && v.Status != filter.Status {
			continue
		}
		if filter.VoucherType != "" && v.VoucherType != filter.VoucherType {
			continue
		}
		vouchers = append(vouchers, v)
	}
	sort.Slice(vouchers, func(i, j int) bool { return vouchers[i].VoucherNumber > vouchers[j].VoucherNumber })
	return vouchers, nil
}

func (s *MemoryVoucherStore) SequenceInMonth(_ context.Context, prefix string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, v := range s.vouchers {
		if strings.HasPrefix(v.VoucherNumber, prefix) {
			count++
		}
	}
	return count + 1, nil
}
