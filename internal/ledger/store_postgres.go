package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	id "kayo/pkg/domain"
)

func optDate(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func optUUID[T ~[16]byte](v T) *uuid.UUID {
	u := uuid.UUID(v)
	if u == uuid.Nil {
		return nil
	}
	return &u
}

type PostgresAccountStore struct {
	pool *pgxpool.Pool
}

func NewPostgresAccountStore(pool *pgxpool.Pool) *PostgresAccountStore {
	return &PostgresAccountStore{pool: pool}
}

func (s *PostgresAccountStore) InsertCategory(ctx context.Context, c AccountCategory) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO account_categories (id, name, code, type, description, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)
	`, c.ID, c.Name, c.Code, c.Type, c.Description, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert account category: %w", err)
	}
	return nil
}

func (s *PostgresAccountStore) ListCategories(ctx context.Context) ([]AccountCategory, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, code, type, COALESCE(description, ''), created_at
		FROM account_categories ORDER BY code ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list account categories: %w", err)
	}
	defer rows.Close()

	var categories []AccountCategory
	for rows.Next() {
		var c AccountCategory
		if err := rows.Scan(&c.ID, &c.Name, &c.Code, &c.Type, &c.Description, &c.CreatedAt); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

const accountColumns = `id, code, name, category_id, account_type, normal_balance, COALESCE(description, ''), is_active, is_system, opening_balance_cents, current_balance_cents, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var (
		a          Account
		aid        uuid.UUID
		categoryID *uuid.UUID
	)
	err := row.Scan(&aid, &a.Code, &a.Name, &categoryID, &a.AccountType, &a.NormalBalance,
		&a.Description, &a.IsActive, &a.IsSystem, &a.OpeningBalanceCents, &a.CurrentBalanceCents,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, err
	}
	a.ID = id.AccountID(aid)
	if categoryID != nil {
		a.CategoryID = *categoryID
	}
	return a, nil
}

func (s *PostgresAccountStore) Insert(ctx context.Context, a Account) error {
	var categoryID *uuid.UUID
	if a.CategoryID != uuid.Nil {
		categoryID = &a.CategoryID
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO accounts (id, code, name, category_id, account_type, normal_balance, description, is_active, is_system, opening_balance_cents, current_balance_cents, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9, $10, $11, $12, $13)
	`, uuid.UUID(a.ID), a.Code, a.Name, categoryID, a.AccountType, a.NormalBalance,
		a.Description, a.IsActive, a.IsSystem, a.OpeningBalanceCents, a.CurrentBalanceCents,
		a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (s *PostgresAccountStore) Update(ctx context.Context, a Account) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE accounts SET name = $2, description = NULLIF($3, ''), is_active = $4, updated_at = $5
		WHERE id = $1
	`, uuid.UUID(a.ID), a.Name, a.Description, a.IsActive, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresAccountStore) FindByID(ctx context.Context, accountID id.AccountID) (Account, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, uuid.UUID(accountID))
	return scanAccount(row)
}

func (s *PostgresAccountStore) FindByCode(ctx context.Context, code string) (Account, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE code = $1`, code)
	return scanAccount(row)
}

func (s *PostgresAccountStore) List(ctx context.Context, activeOnly bool) ([]Account, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+accountColumns+` FROM accounts
		WHERE NOT $1 OR is_active
		ORDER BY code ASC
	`, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (s *PostgresAccountStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count accounts: %w", err)
	}
	return count, nil
}

func (s *PostgresAccountStore) ApplyDelta(ctx context.Context, accountID id.AccountID, deltaCents int64) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE accounts SET current_balance_cents = current_balance_cents + $2, updated_at = now()
		WHERE id = $1
	`, uuid.UUID(accountID), deltaCents)
	if err != nil {
		return fmt.Errorf("apply account delta: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type PostgresJournalStore struct {
	pool *pgxpool.Pool
}

func NewPostgresJournalStore(pool *pgxpool.Pool) *PostgresJournalStore {
	return &PostgresJournalStore{pool: pool}
}

const entryColumns = `id, entry_number, entry_date, description, COALESCE(reference, ''), entry_type, status, created_by, posted_by, voucher_id, payment_id, COALESCE(void_reason, ''), created_at, posted_at, voided_at`

func scanEntry(row pgx.Row) (JournalEntry, error) {
	var (
		e         JournalEntry
		eid       uuid.UUID
		createdBy uuid.UUID
		postedBy  *uuid.UUID
		voucherID *uuid.UUID
		paymentID *uuid.UUID
	)
	err := row.Scan(&eid, &e.EntryNumber, &e.EntryDate, &e.Description, &e.Reference,
		&e.EntryType, &e.Status, &createdBy, &postedBy, &voucherID, &paymentID,
		&e.VoidReason, &e.CreatedAt, &e.PostedAt, &e.VoidedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, ErrNotFound
		}
		return JournalEntry{}, err
	}
	e.ID = id.EntryID(eid)
	e.CreatedBy = id.UserID(createdBy)
	if postedBy != nil {
		e.PostedBy = id.UserID(*postedBy)
	}
	if voucherID != nil {
		e.VoucherID = id.VoucherID(*voucherID)
	}
	if paymentID != nil {
		e.PaymentID = id.PaymentID(*paymentID)
	}
	return e, nil
}

// Insert writes the entry and its lines in one transaction.
func (s *PostgresJournalStore) Insert(ctx context.Context, e JournalEntry) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin insert entry: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO journal_entries (id, entry_number, entry_date, description, reference, entry_type, status, created_by, posted_by, voucher_id, payment_id, created_at, posted_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9, $10, $11, $12, $13)
	`, uuid.UUID(e.ID), e.EntryNumber, e.EntryDate, e.Description, e.Reference, e.EntryType,
		e.Status, uuid.UUID(e.CreatedBy), optUUID(e.PostedBy), optUUID(e.VoucherID),
		optUUID(e.PaymentID), e.CreatedAt, e.PostedAt)
	if err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	for _, line := range e.Lines {
		_, err = tx.Exec(ctx, `
			INSERT INTO journal_lines (id, entry_id, account_id, description, debit_cents, credit_cents)
			VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6)
		`, line.ID, uuid.UUID(e.ID), uuid.UUID(line.AccountID), line.Description,
			line.DebitCents, line.CreditCents)
		if err != nil {
			return fmt.Errorf("insert entry line: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (s *PostgresJournalStore) Update(ctx context.Context, e JournalEntry) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE journal_entries SET status = $2, posted_by = $3, posted_at = $4, void_reason = NULLIF($5, ''), voided_at = $6
		WHERE id = $1
	`, uuid.UUID(e.ID), e.Status, optUUID(e.PostedBy), e.PostedAt, e.VoidReason, e.VoidedAt)
	if err != nil {
		return fmt.Errorf("update entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresJournalStore) FindByID(ctx context.Context, entryID id.EntryID) (JournalEntry, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+entryColumns+` FROM journal_entries WHERE id = $1`, uuid.UUID(entryID))
	e, err := scanEntry(row)
	if err != nil {
		return JournalEntry{}, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, entry_id, account_id, COALESCE(description, ''), debit_cents, credit_cents
		FROM journal_lines WHERE entry_id = $1 ORDER BY debit_cents DESC, credit_cents DESC
	`, uuid.UUID(entryID))
	if err != nil {
		return JournalEntry{}, fmt.Errorf("entry lines: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			line      JournalLine
			lineEntry uuid.UUID
			accountID uuid.UUID
		)
		if err := rows.Scan(&line.ID, &lineEntry, &accountID, &line.Description,
			&line.DebitCents, &line.CreditCents); err != nil {
			return JournalEntry{}, err
		}
		line.EntryID = id.EntryID(lineEntry)
		line.AccountID = id.AccountID(accountID)
		e.Lines = append(e.Lines, line)
	}
	return e, rows.Err()
}

func (s *PostgresJournalStore) List(ctx context.Context, filter JournalFilter) ([]JournalEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+entryColumns+` FROM journal_entries
		WHERE ($1 = '' OR status = $1)
		  AND ($2 = '' OR entry_type = $2)
		ORDER BY entry_number DESC
	`, filter.Status, filter.EntryType)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []JournalEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *PostgresJournalStore) SequenceInMonth(ctx context.Context, prefix string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM journal_entries WHERE entry_number LIKE $1 || '%'`, prefix).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("entry sequence: %w", err)
	}
	return count + 1, nil
}

func (s *PostgresJournalStore) LinesForAccount(ctx context.Context, accountID id.AccountID) ([]AccountLedgerLine, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT e.entry_number, e.entry_date, COALESCE(l.description, e.description), l.debit_cents, l.credit_cents
		FROM journal_lines l
		JOIN journal_entries e ON e.id = l.entry_id
		WHERE l.account_id = $1 AND e.status = 'posted'
		ORDER BY e.entry_date ASC, e.entry_number ASC
	`, uuid.UUID(accountID))
	if err != nil {
		return nil, fmt.Errorf("account lines: %w", err)
	}
	defer rows.Close()

	var lines []AccountLedgerLine
	for rows.Next() {
		var line AccountLedgerLine
		if err := rows.Scan(&line.EntryNumber, &line.EntryDate, &line.Description,
			&line.DebitCents, &line.CreditCents); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (s *PostgresJournalStore) ActivityInRange(ctx context.Context, from, to time.Time) (map[id.AccountID]AccountActivity, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT l.account_id, COALESCE(SUM(l.debit_cents), 0), COALESCE(SUM(l.credit_cents), 0)
		FROM journal_lines l
		JOIN journal_entries e ON e.id = l.entry_id
		WHERE e.status = 'posted'
		  AND ($1::date IS NULL OR e.entry_date >= $1)
		  AND ($2::date IS NULL OR e.entry_date <= $2)
		GROUP BY l.account_id
	`, optDate(from), optDate(to))
	if err != nil {
		return nil, fmt.Errorf("account activity: %w", err)
	}
	defer rows.Close()

	activity := make(map[id.AccountID]AccountActivity)
	for rows.Next() {
		var accountID uuid.UUID
		var act AccountActivity
		if err := rows.Scan(&accountID, &act.DebitCents, &act.CreditCents); err != nil {
			return nil, err
		}
		activity[id.AccountID(accountID)] = act
	}
	return activity, rows.Err()
}

type PostgresVoucherStore struct {
	pool *pgxpool.Pool
}

func NewPostgresVoucherStore(pool *pgxpool.Pool) *PostgresVoucherStore {
	return &PostgresVoucherStore{pool: pool}
}

const voucherColumns = `id, voucher_number, voucher_type, voucher_date, COALESCE(payee_name, ''), COALESCE(payee_type, ''), amount_cents, COALESCE(method, ''), COALESCE(reference, ''), narration, COALESCE(category, ''), status, prepared_by, checked_by, approved_by, COALESCE(notes, ''), created_at, checked_at, approved_at, paid_at`

func scanVoucher(row pgx.Row) (Voucher, error) {
	var (
		v          Voucher
		vid        uuid.UUID
		preparedBy uuid.UUID
		checkedBy  *uuid.UUID
		approvedBy *uuid.UUID
	)
	err := row.Scan(&vid, &v.VoucherNumber, &v.VoucherType, &v.VoucherDate, &v.PayeeName,
		&v.PayeeType, &v.AmountCents, &v.Method, &v.Reference, &v.Narration, &v.Category,
		&v.Status, &preparedBy, &checkedBy, &approvedBy, &v.Notes, &v.CreatedAt,
		&v.CheckedAt, &v.ApprovedAt, &v.PaidAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Voucher{}, ErrNotFound
		}
		return Voucher{}, err
	}
	v.ID = id.VoucherID(vid)
	v.PreparedBy = id.UserID(preparedBy)
	if checkedBy != nil {
		v.CheckedBy = id.UserID(*checkedBy)
	}
	if approvedBy != nil {
		v.ApprovedBy = id.UserID(*approvedBy)
	}
	return v, nil
}

// Insert writes the voucher and its items in one transaction.
func (s *PostgresVoucherStore) Insert(ctx context.Context, v Voucher) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin insert voucher: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO vouchers (id, voucher_number, voucher_type, voucher_date, payee_name, payee_type, amount_cents, method, reference, narration, category, status, prepared_by, notes, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7, NULLIF($8, ''), NULLIF($9, ''), $10, NULLIF($11, ''), $12, $13, NULLIF($14, ''), $15)
	`, uuid.UUID(v.ID), v.VoucherNumber, v.VoucherType, v.VoucherDate, v.PayeeName, v.PayeeType,
		v.AmountCents, v.Method, v.Reference, v.Narration, v.Category, v.Status,
		uuid.UUID(v.PreparedBy), v.Notes, v.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert voucher: %w", err)
	}
	for _, item := range v.Items {
		_, err = tx.Exec(ctx, `
			INSERT INTO voucher_items (id, voucher_id, description, quantity, unit_cost_cents, amount_cents, account_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, item.ID, uuid.UUID(v.ID), item.Description, item.Quantity, item.UnitCostCents,
			item.AmountCents, optUUID(item.AccountID))
		if err != nil {
			return fmt.Errorf("insert voucher item: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (s *PostgresVoucherStore) Update(ctx context.Context, v Voucher) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE vouchers SET status = $2, checked_by = $3, checked_at = $4, approved_by = $5, approved_at = $6, paid_at = $7, notes = NULLIF($8, '')
		WHERE id = $1
	`, uuid.UUID(v.ID), v.Status, optUUID(v.CheckedBy), v.CheckedAt, optUUID(v.ApprovedBy),
		v.ApprovedAt, v.PaidAt, v.Notes)
	if err != nil {
		return fmt.Errorf("update voucher: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresVoucherStore) FindByID(ctx context.Context, voucherID id.VoucherID) (Voucher, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+voucherColumns+` FROM vouchers WHERE id = $1`, uuid.UUID(voucherID))
	v, err := scanVoucher(row)
	if err != nil {
		return Voucher{}, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, voucher_id, description, quantity, unit_cost_cents, amount_cents, account_id
		FROM voucher_items WHERE voucher_id = $1
	`, uuid.UUID(voucherID))
	if err != nil {
		return Voucher{}, fmt.Errorf("voucher items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			item      VoucherItem
			itemV     uuid.UUID
			accountID *uuid.UUID
		)
		if err := rows.Scan(&item.ID, &itemV, &item.Description, &item.Quantity,
			&item.UnitCostCents, &item.AmountCents, &accountID); err != nil {
			return Voucher{}, err
		}
		item.VoucherID = id.VoucherID(itemV)
		if accountID != nil {
			item.AccountID = id.AccountID(*accountID)
		}
		v.Items = append(v.Items, item)
	}
	return v, rows.Err()
}

func (s *PostgresVoucherStore) List(ctx context.Context, filter VoucherFilter) ([]Voucher, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+voucherColumns+` FROM vouchers
		WHERE ($1 = '' OR status = $1)
		  AND ($2 = '' OR voucher_type = $2)
		ORDER BY voucher_number DESC
	`, filter.Status, filter.VoucherType)
	if err != nil {
		return nil, fmt.Errorf("list vouchers: %w", err)
	}
	defer rows.Close()

	var vouchers []Voucher
	for rows.Next() {
		v, err := scanVoucher(rows)
		if err != nil {
			return nil, err
		}
		vouchers = append(vouchers, v)
	}
	return vouchers, rows.Err()
}

func (s *PostgresVoucherStore) SequenceInMonth(ctx context.Context, prefix string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM vouchers WHERE voucher_number LIKE $1 || '%'`, prefix).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("voucher sequence: %w", err)
	}
	return count + 1, nil
}
