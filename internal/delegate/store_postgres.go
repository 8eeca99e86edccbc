package delegate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	id "kayo/pkg/domain"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const delegateColumns = `id, name, local_church, parish, archdeaconry, COALESCE(phone_number, ''), gender, COALESCE(age_bracket, ''), category, event_id, registered_by, registered_at, is_paid, fee_exempt, payment_id, checked_in`

func scanDelegate(row pgx.Row) (Delegate, error) {
	var (
		d         Delegate
		did       uuid.UUID
		eventID   *uuid.UUID
		regBy     uuid.UUID
		paymentID *uuid.UUID
	)
	err := row.Scan(&did, &d.Name, &d.LocalChurch, &d.Parish, &d.Archdeaconry, &d.PhoneNumber, &d.Gender,
		&d.AgeBracket, &d.Category, &eventID, &regBy, &d.RegisteredAt, &d.IsPaid, &d.FeeExempt, &paymentID, &d.CheckedIn)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Delegate{}, ErrNotFound
		}
		return Delegate{}, err
	}
	d.ID = id.DelegateID(did)
	d.RegisteredBy = id.UserID(regBy)
	if eventID != nil {
		d.EventID = id.EventID(*eventID)
	}
	if paymentID != nil {
		d.PaymentID = id.PaymentID(*paymentID)
	}
	return d, nil
}

func (s *PostgresStore) Insert(ctx context.Context, d Delegate) error {
	var eventID, paymentID *uuid.UUID
	if !d.EventID.IsZero() {
		u := uuid.UUID(d.EventID)
		eventID = &u
	}
	if !d.PaymentID.IsZero() {
		u := uuid.UUID(d.PaymentID)
		paymentID = &u
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO delegates (id, name, local_church, parish, archdeaconry, phone_number, gender, age_bracket, category, event_id, registered_by, registered_at, is_paid, fee_exempt, payment_id, checked_in)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, NULLIF($8, ''), $9, $10, $11, $12, $13, $14, $15, $16)
	`, uuid.UUID(d.ID), d.Name, d.LocalChurch, d.Parish, d.Archdeaconry, d.PhoneNumber, d.Gender, d.AgeBracket,
		d.Category, eventID, uuid.UUID(d.RegisteredBy), d.RegisteredAt, d.IsPaid, d.FeeExempt, paymentID, d.CheckedIn)
	if err != nil {
		return fmt.Errorf("insert delegate: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, d Delegate) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE delegates SET name = $2, phone_number = NULLIF($3, ''), gender = $4, age_bracket = NULLIF($5, ''), category = $6, fee_exempt = $7
		WHERE id = $1
	`, uuid.UUID(d.ID), d.Name, d.PhoneNumber, d.Gender, d.AgeBracket, d.Category, d.FeeExempt)
	if err != nil {
		return fmt.Errorf("update delegate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, delegateID id.DelegateID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM delegates WHERE id = $1`, uuid.UUID(delegateID))
	if err != nil {
		return fmt.Errorf("delete delegate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, delegateID id.DelegateID) (Delegate, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+delegateColumns+` FROM delegates WHERE id = $1`, uuid.UUID(delegateID))
	d, err := scanDelegate(row)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Delegate{}, fmt.Errorf("find delegate: %w", err)
	}
	return d, err
}

func filterClause(filter Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, strings.Replace(cond, "?", "$"+strconv.Itoa(len(args)), 1))
	}
	if !filter.RegisteredBy.IsZero() {
		add("registered_by = ?", uuid.UUID(filter.RegisteredBy))
	}
	if !filter.EventID.IsZero() {
		add("event_id = ?", uuid.UUID(filter.EventID))
	}
	if filter.Archdeaconry != "" {
		add("lower(archdeaconry) = lower(?)", filter.Archdeaconry)
	}
	if filter.Parish != "" {
		add("lower(parish) = lower(?)", filter.Parish)
	}
	if filter.IsPaid != nil {
		add("is_paid = ?", *filter.IsPaid)
	}
	if filter.Search != "" {
		add("name ILIKE ?", "%"+filter.Search+"%")
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (s *PostgresStore) List(ctx context.Context, filter Filter) ([]Delegate, error) {
	where, args := filterClause(filter)
	rows, err := s.pool.Query(ctx, `SELECT `+delegateColumns+` FROM delegates`+where+` ORDER BY registered_at DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list delegates: %w", err)
	}
	defer rows.Close()

	var delegates []Delegate
	for rows.Next() {
		d, err := scanDelegate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan delegate: %w", err)
		}
		delegates = append(delegates, d)
	}
	return delegates, rows.Err()
}

func (s *PostgresStore) Count(ctx context.Context, filter Filter) (int, error) {
	where, args := filterClause(filter)
	var count int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM delegates`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count delegates: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) Stats(ctx context.Context, filter Filter) (Stats, error) {
	where, args := filterClause(filter)

	stats := Stats{ByGender: make(map[string]int)}
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE is_paid),
			COUNT(*) FILTER (WHERE NOT is_paid),
			COUNT(*) FILTER (WHERE checked_in)
		FROM delegates`+where, args...).Scan(&stats.Total, &stats.Paid, &stats.Unpaid, &stats.CheckedIn)
	if err != nil {
		return Stats{}, fmt.Errorf("delegate totals: %w", err)
	}

	genderRows, err := s.pool.Query(ctx, `SELECT gender, COUNT(*) FROM delegates`+where+` GROUP BY gender`, args...)
	if err != nil {
		return Stats{}, fmt.Errorf("gender stats: %w", err)
	}
	defer genderRows.Close()
	for genderRows.Next() {
		var (
			gender string
			count  int
		)
		if err := genderRows.Scan(&gender, &count); err != nil {
			return Stats{}, fmt.Errorf("scan gender stats: %w", err)
		}
		stats.ByGender[gender] = count
	}
	if err := genderRows.Err(); err != nil {
		return Stats{}, err
	}

	archRows, err := s.pool.Query(ctx, `
		SELECT archdeaconry, COUNT(*),
			COUNT(*) FILTER (WHERE is_paid),
			COUNT(*) FILTER (WHERE NOT is_paid)
		FROM delegates`+where+` GROUP BY archdeaconry ORDER BY archdeaconry`, args...)
	if err != nil {
		return Stats{}, fmt.Errorf("archdeaconry stats: %w", err)
	}
	defer archRows.Close()
	for archRows.Next() {
		var row ArchdeaconryStats
		if err := archRows.Scan(&row.Archdeaconry, &row.Total, &row.Paid, &row.Unpaid); err != nil {
			return Stats{}, fmt.Errorf("scan archdeaconry stats: %w", err)
		}
		stats.ByArchdeaconry = append(stats.ByArchdeaconry, row)
	}
	return stats, archRows.Err()
}

// ClaimForPayment locks the delegate rows in a stable order before
// checking their state, so two concurrent claims against overlapping
// delegates serialize instead of double-charging.
func (s *PostgresStore) ClaimForPayment(ctx context.Context, delegateIDs []id.DelegateID, paymentID id.PaymentID) error {
	ids := make([]uuid.UUID, len(delegateIDs))
	for i, d := range delegateIDs {
		ids[i] = uuid.UUID(d)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin claim: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT id, is_paid, payment_id, fee_exempt FROM delegates
		WHERE id = ANY($1) ORDER BY id FOR UPDATE
	`, ids)
	if err != nil {
		return fmt.Errorf("lock delegates: %w", err)
	}
	locked := 0
	for rows.Next() {
		var (
			did       uuid.UUID
			isPaid    bool
			payID     *uuid.UUID
			feeExempt bool
		)
		if err := rows.Scan(&did, &isPaid, &payID, &feeExempt); err != nil {
			rows.Close()
			return fmt.Errorf("scan locked delegate: %w", err)
		}
		if isPaid || payID != nil || feeExempt {
			rows.Close()
			return ErrAlreadyClaimed
		}
		locked++
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if locked != len(ids) {
		return ErrNotFound
	}

	if _, err := tx.Exec(ctx, `UPDATE delegates SET payment_id = $2 WHERE id = ANY($1)`, ids, uuid.UUID(paymentID)); err != nil {
		return fmt.Errorf("attach payment: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) MarkPaid(ctx context.Context, paymentID id.PaymentID) (int, error) {
	tag, err := s.pool.Exec(ctx, `UPDATE delegates SET is_paid = TRUE WHERE payment_id = $1`, uuid.UUID(paymentID))
	if err != nil {
		return 0, fmt.Errorf("mark delegates paid: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) ReleasePayment(ctx context.Context, paymentID id.PaymentID) error {
	_, err := s.pool.Exec(ctx, `UPDATE delegates SET payment_id = NULL WHERE payment_id = $1 AND NOT is_paid`, uuid.UUID(paymentID))
	if err != nil {
		return fmt.Errorf("release payment: %w", err)
	}
	return nil
}

func (s *PostgresStore) SetCheckedIn(ctx context.Context, delegateID id.DelegateID, checkedIn bool) error {
	tag, err := s.pool.Exec(ctx, `UPDATE delegates SET checked_in = $2 WHERE id = $1`, uuid.UUID(delegateID), checkedIn)
	if err != nil {
		return fmt.Errorf("set checked in: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// PostgresPendingStore persists self-registrations.
type PostgresPendingStore struct {
	pool *pgxpool.Pool
}

func NewPostgresPendingStore(pool *pgxpool.Pool) *PostgresPendingStore {
	return &PostgresPendingStore{pool: pool}
}

const pendingColumns = `id, registration_token, name, local_church, parish, archdeaconry, COALESCE(phone_number, ''), COALESCE(email, ''), gender, COALESCE(age_bracket, ''), category, event_id, status, submitted_at, reviewed_at, reviewed_by, COALESCE(reviewer_notes, ''), COALESCE(rejection_reason, ''), delegate_id`

func scanPending(row pgx.Row) (PendingDelegate, error) {
	var (
		p          PendingDelegate
		pid        uuid.UUID
		eventID    *uuid.UUID
		reviewedBy *uuid.UUID
		delegateID *uuid.UUID
	)
	err := row.Scan(&pid, &p.RegistrationToken, &p.Name, &p.LocalChurch, &p.Parish, &p.Archdeaconry,
		&p.PhoneNumber, &p.Email, &p.Gender, &p.AgeBracket, &p.Category, &eventID, &p.Status,
		&p.SubmittedAt, &p.ReviewedAt, &reviewedBy, &p.ReviewerNotes, &p.RejectionReason, &delegateID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PendingDelegate{}, ErrNotFound
		}
		return PendingDelegate{}, err
	}
	p.ID = id.PendingDelegateID(pid)
	if eventID != nil {
		p.EventID = id.EventID(*eventID)
	}
	if reviewedBy != nil {
		p.ReviewedBy = id.UserID(*reviewedBy)
	}
	if delegateID != nil {
		p.DelegateID = id.DelegateID(*delegateID)
	}
	return p, nil
}

func (s *PostgresPendingStore) Insert(ctx context.Context, p PendingDelegate) error {
	var eventID *uuid.UUID
	if !p.EventID.IsZero() {
		u := uuid.UUID(p.EventID)
		eventID = &u
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pending_delegates (id, registration_token, name, local_church, parish, archdeaconry, phone_number, email, gender, age_bracket, category, event_id, status, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), $9, NULLIF($10, ''), $11, $12, $13, $14)
	`, uuid.UUID(p.ID), p.RegistrationToken, p.Name, p.LocalChurch, p.Parish, p.Archdeaconry, p.PhoneNumber,
		p.Email, p.Gender, p.AgeBracket, p.Category, eventID, p.Status, p.SubmittedAt)
	if err != nil {
		return fmt.Errorf("insert pending delegate: %w", err)
	}
	return nil
}

func (s *PostgresPendingStore) Update(ctx context.Context, p PendingDelegate) error {
	var reviewedBy, delegateID *uuid.UUID
	if !p.ReviewedBy.IsZero() {
		u := uuid.UUID(p.ReviewedBy)
		reviewedBy = &u
	}
	if !p.DelegateID.IsZero() {
		u := uuid.UUID(p.DelegateID)
		delegateID = &u
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE pending_delegates SET status = $2, reviewed_at = $3, reviewed_by = $4, reviewer_notes = NULLIF($5, ''), rejection_reason = NULLIF($6, ''), delegate_id = $7
		WHERE id = $1
	`, uuid.UUID(p.ID), p.Status, p.ReviewedAt, reviewedBy, p.ReviewerNotes, p.RejectionReason, delegateID)
	if err != nil {
		return fmt.Errorf("update pending delegate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresPendingStore) FindByID(ctx context.Context, pendingID id.PendingDelegateID) (PendingDelegate, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+pendingColumns+` FROM pending_delegates WHERE id = $1`, uuid.UUID(pendingID))
	p, err := scanPending(row)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return PendingDelegate{}, fmt.Errorf("find pending delegate: %w", err)
	}
	return p, err
}

func (s *PostgresPendingStore) FindByToken(ctx context.Context, token string) (PendingDelegate, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+pendingColumns+` FROM pending_delegates WHERE registration_token = $1`, token)
	p, err := scanPending(row)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return PendingDelegate{}, fmt.Errorf("find pending delegate by token: %w", err)
	}
	return p, err
}

func (s *PostgresPendingStore) ListPending(ctx context.Context) ([]PendingDelegate, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+pendingColumns+` FROM pending_delegates WHERE status = $1 ORDER BY submitted_at ASC`, PendingStatusPending)
	if err != nil {
		return nil, fmt.Errorf("list pending delegates: %w", err)
	}
	defer rows.Close()

	var pendings []PendingDelegate
	for rows.Next() {
		p, err := scanPending(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pending delegate: %w", err)
		}
		pendings = append(pendings, p)
	}
	return pendings, rows.Err()
}
