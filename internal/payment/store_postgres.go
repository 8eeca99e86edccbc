package payment

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

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const paymentColumns = `id, user_id, event_id, tier_id, amount_cents, payment_mode, COALESCE(transaction_id, ''), COALESCE(mpesa_receipt, ''), COALESCE(checkout_request_id, ''), COALESCE(merchant_request_id, ''), COALESCE(phone_number, ''), status, COALESCE(result_code, ''), COALESCE(result_desc, ''), finance_status, confirmed_by_chair, chair_confirmed_at, approved_by_finance, finance_approved_at, COALESCE(finance_notes, ''), COALESCE(rejection_reason, ''), delegates_count, created_at, completed_at`

func scanPayment(row pgx.Row) (Payment, error) {
	var (
		p         Payment
		pid       uuid.UUID
		userID    uuid.UUID
		eventID   *uuid.UUID
		tierID    *uuid.UUID
		chairID   *uuid.UUID
		financeID *uuid.UUID
	)
	err := row.Scan(&pid, &userID, &eventID, &tierID, &p.AmountCents, &p.Mode, &p.TransactionID, &p.MpesaReceipt,
		&p.CheckoutRequestID, &p.MerchantRequestID, &p.PhoneNumber, &p.Status, &p.ResultCode, &p.ResultDesc,
		&p.FinanceStatus, &chairID, &p.ChairConfirmedAt, &financeID, &p.FinanceApprovedAt, &p.FinanceNotes,
		&p.RejectionReason, &p.DelegatesCount, &p.CreatedAt, &p.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Payment{}, ErrNotFound
		}
		return Payment{}, err
	}
	p.ID = id.PaymentID(pid)
	p.UserID = id.UserID(userID)
	if eventID != nil {
		p.EventID = id.EventID(*eventID)
	}
	if tierID != nil {
		p.TierID = id.TierID(*tierID)
	}
	if chairID != nil {
		p.ConfirmedByChair = id.UserID(*chairID)
	}
	if financeID != nil {
		p.ApprovedByFinance = id.UserID(*financeID)
	}
	return p, nil
}

func optUUID[T ~[16]byte](v T) *uuid.UUID {
	u := uuid.UUID(v)
	if u == uuid.Nil {
		return nil
	}
	return &u
}

func (s *PostgresStore) Insert(ctx context.Context, p Payment) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO payments (id, user_id, event_id, tier_id, amount_cents, payment_mode, transaction_id, mpesa_receipt, checkout_request_id, merchant_request_id, phone_number, status, result_code, result_desc, finance_status, delegates_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), NULLIF($9, ''), NULLIF($10, ''), NULLIF($11, ''), $12, NULLIF($13, ''), NULLIF($14, ''), $15, $16, $17)
	`, uuid.UUID(p.ID), uuid.UUID(p.UserID), optUUID(p.EventID), optUUID(p.TierID), p.AmountCents, p.Mode, p.TransactionID,
		p.MpesaReceipt, p.CheckoutRequestID, p.MerchantRequestID, p.PhoneNumber, p.Status, p.ResultCode,
		p.ResultDesc, p.FinanceStatus, p.DelegatesCount, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, p Payment) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE payments SET
			transaction_id = NULLIF($2, ''),
			mpesa_receipt = NULLIF($3, ''),
			checkout_request_id = NULLIF($4, ''),
			merchant_request_id = NULLIF($5, ''),
			status = $6,
			result_code = NULLIF($7, ''),
			result_desc = NULLIF($8, ''),
			finance_status = $9,
			confirmed_by_chair = $10,
			chair_confirmed_at = $11,
			approved_by_finance = $12,
			finance_approved_at = $13,
			finance_notes = NULLIF($14, ''),
			rejection_reason = NULLIF($15, ''),
			completed_at = $16
		WHERE id = $1
	`, uuid.UUID(p.ID), p.TransactionID, p.MpesaReceipt, p.CheckoutRequestID, p.MerchantRequestID,
		p.Status, p.ResultCode, p.ResultDesc, p.FinanceStatus, optUUID(p.ConfirmedByChair), p.ChairConfirmedAt,
		optUUID(p.ApprovedByFinance), p.FinanceApprovedAt, p.FinanceNotes, p.RejectionReason, p.CompletedAt)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, paymentID id.PaymentID) (Payment, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, uuid.UUID(paymentID))
	p, err := scanPayment(row)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Payment{}, fmt.Errorf("find payment: %w", err)
	}
	return p, err
}

func (s *PostgresStore) FindByCheckoutID(ctx context.Context, checkoutRequestID string) (Payment, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE checkout_request_id = $1`, checkoutRequestID)
	p, err := scanPayment(row)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Payment{}, fmt.Errorf("find payment by checkout id: %w", err)
	}
	return p, err
}

func (s *PostgresStore) List(ctx context.Context, filter Filter) ([]Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE ($1::uuid IS NULL OR user_id = $1)
		AND ($2::uuid IS NULL OR event_id = $2)
		AND ($3 = '' OR status = $3)
		AND ($4 = '' OR finance_status = $4)
		ORDER BY created_at DESC`
	rows, err := s.pool.Query(ctx, query, optUUID(filter.UserID), optUUID(filter.EventID), filter.Status, filter.FinanceStatus)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()
	return collectPayments(rows)
}

func (s *PostgresStore) PendingPushes(ctx context.Context, olderThan time.Time) ([]Payment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE status = $1 AND checkout_request_id IS NOT NULL AND created_at < $2
		ORDER BY created_at ASC
	`, StatusPending, olderThan)
	if err != nil {
		return nil, fmt.Errorf("list pending pushes: %w", err)
	}
	defer rows.Close()
	return collectPayments(rows)
}

func collectPayments(rows pgx.Rows) ([]Payment, error) {
	var payments []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (s *PostgresStore) Totals(ctx context.Context) (Totals, error) {
	var t Totals
	err := s.pool.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(amount_cents) FILTER (WHERE status = $1), 0),
			COALESCE(SUM(amount_cents) FILTER (WHERE status = $2 AND finance_status = $3), 0),
			COUNT(*) FILTER (WHERE status = $2),
			COUNT(*) FILTER (WHERE status = $1),
			COUNT(*) FILTER (WHERE status = $4)
		FROM payments
	`, StatusCompleted, StatusPending, FinancePendingApproval, StatusFailed).
		Scan(&t.CollectedCents, &t.PendingApprovalCents, &t.Pending, &t.Completed, &t.Failed)
	if err != nil {
		return Totals{}, fmt.Errorf("payment totals: %w", err)
	}
	return t, nil
}

// PostgresDiscrepancyStore persists amount discrepancies.
type PostgresDiscrepancyStore struct {
	pool *pgxpool.Pool
}

func NewPostgresDiscrepancyStore(pool *pgxpool.Pool) *PostgresDiscrepancyStore {
	return &PostgresDiscrepancyStore{pool: pool}
}

const discrepancyColumns = `id, payment_id, expected_cents, actual_cents, difference_cents, discrepancy_type, status, COALESCE(resolution_notes, ''), resolved_by, resolved_at, created_at`

func scanDiscrepancy(row pgx.Row) (Discrepancy, error) {
	var (
		d          Discrepancy
		did        uuid.UUID
		paymentID  uuid.UUID
		resolvedBy *uuid.UUID
	)
	err := row.Scan(&did, &paymentID, &d.ExpectedCents, &d.ActualCents, &d.DifferenceCents, &d.Type,
		&d.Status, &d.ResolutionNotes, &resolvedBy, &d.ResolvedAt, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Discrepancy{}, ErrNotFound
		}
		return Discrepancy{}, err
	}
	d.ID = id.DiscrepancyID(did)
	d.PaymentID = id.PaymentID(paymentID)
	if resolvedBy != nil {
		d.ResolvedBy = id.UserID(*resolvedBy)
	}
	return d, nil
}

func (s *PostgresDiscrepancyStore) Insert(ctx context.Context, d Discrepancy) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO payment_discrepancies (id, payment_id, expected_cents, actual_cents, difference_cents, discrepancy_type, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, uuid.UUID(d.ID), uuid.UUID(d.PaymentID), d.ExpectedCents, d.ActualCents, d.DifferenceCents, d.Type, d.Status, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert discrepancy: %w", err)
	}
	return nil
}

func (s *PostgresDiscrepancyStore) Update(ctx context.Context, d Discrepancy) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE payment_discrepancies SET status = $2, resolution_notes = NULLIF($3, ''), resolved_by = $4, resolved_at = $5
		WHERE id = $1
	`, uuid.UUID(d.ID), d.Status, d.ResolutionNotes, optUUID(d.ResolvedBy), d.ResolvedAt)
	if err != nil {
		return fmt.Errorf("update discrepancy: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresDiscrepancyStore) FindByID(ctx context.Context, discrepancyID id.DiscrepancyID) (Discrepancy, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+discrepancyColumns+` FROM payment_discrepancies WHERE id = $1`, uuid.UUID(discrepancyID))
	d, err := scanDiscrepancy(row)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Discrepancy{}, fmt.Errorf("find discrepancy: %w", err)
	}
	return d, err
}

func (s *PostgresDiscrepancyStore) List(ctx context.Context, status string) ([]Discrepancy, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+discrepancyColumns+` FROM payment_discrepancies
		WHERE ($1 = '' OR status = $1) ORDER BY created_at DESC
	`, status)
	if err != nil {
		return nil, fmt.Errorf("list discrepancies: %w", err)
	}
	defer rows.Close()

	var out []Discrepancy
	for rows.Next() {
		d, err := scanDiscrepancy(rows)
		if err != nil {
			return nil, fmt.Errorf("scan discrepancy: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// PostgresReminderStore persists reminder sends.
type PostgresReminderStore struct {
	pool *pgxpool.Pool
}

func NewPostgresReminderStore(pool *pgxpool.Pool) *PostgresReminderStore {
	return &PostgresReminderStore{pool: pool}
}

func (s *PostgresReminderStore) Insert(ctx context.Context, r Reminder) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO payment_reminders (id, delegate_id, reminder_number, channel, message, status, sent_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)
	`, uuid.UUID(r.ID), uuid.UUID(r.DelegateID), r.ReminderNumber, r.Channel, r.Message, r.Status, r.SentAt)
	if err != nil {
		return fmt.Errorf("insert reminder: %w", err)
	}
	return nil
}

func (s *PostgresReminderStore) ForDelegate(ctx context.Context, delegateID id.DelegateID) ([]Reminder, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, delegate_id, reminder_number, channel, COALESCE(message, ''), status, sent_at
		FROM payment_reminders WHERE delegate_id = $1 ORDER BY sent_at DESC
	`, uuid.UUID(delegateID))
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	defer rows.Close()

	var reminders []Reminder
	for rows.Next() {
		var (
			r   Reminder
			rid uuid.UUID
			did uuid.UUID
		)
		if err := rows.Scan(&rid, &did, &r.ReminderNumber, &r.Channel, &r.Message, &r.Status, &r.SentAt); err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		r.ID = id.ReminderID(rid)
		r.DelegateID = id.DelegateID(did)
		reminders = append(reminders, r)
	}
	return reminders, rows.Err()
}
