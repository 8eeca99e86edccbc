package fund

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

func optUUID[T ~[16]byte](v T) *uuid.UUID {
	u := uuid.UUID(v)
	if u == uuid.Nil {
		return nil
	}
	return &u
}

type PostgresPledgeStore struct {
	pool *pgxpool.Pool
}

func NewPostgresPledgeStore(pool *pgxpool.Pool) *PostgresPledgeStore {
	return &PostgresPledgeStore{pool: pool}
}

const pledgeColumns = `id, source_type, source_name, COALESCE(source_phone, ''), COALESCE(source_email, ''), delegate_id, amount_pledged_cents, amount_paid_cents, status, event_id, recorded_by, COALESCE(local_church, ''), COALESCE(parish, ''), COALESCE(archdeaconry, ''), COALESCE(description, ''), due_date, created_at, updated_at`

func scanPledge(row pgx.Row) (Pledge, error) {
	var (
		p          Pledge
		pid        uuid.UUID
		delegateID *uuid.UUID
		eventID    *uuid.UUID
		recordedBy uuid.UUID
	)
	err := row.Scan(&pid, &p.SourceType, &p.SourceName, &p.SourcePhone, &p.SourceEmail, &delegateID,
		&p.AmountPledgedCents, &p.AmountPaidCents, &p.Status, &eventID, &recordedBy, &p.LocalChurch,
		&p.Parish, &p.Archdeaconry, &p.Description, &p.DueDate, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Pledge{}, ErrNotFound
		}
		return Pledge{}, err
	}
	p.ID = id.PledgeID(pid)
	p.RecordedBy = id.UserID(recordedBy)
	if delegateID != nil {
		p.DelegateID = id.DelegateID(*delegateID)
	}
	if eventID != nil {
		p.EventID = id.EventID(*eventID)
	}
	return p, nil
}

func (s *PostgresPledgeStore) Insert(ctx context.Context, p Pledge) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pledges (id, source_type, source_name, source_phone, source_email, delegate_id, amount_pledged_cents, amount_paid_cents, status, event_id, recorded_by, local_church, parish, archdeaconry, description, due_date, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7, $8, $9, $10, $11, NULLIF($12, ''), NULLIF($13, ''), NULLIF($14, ''), NULLIF($15, ''), $16, $17, $18)
	`, uuid.UUID(p.ID), p.SourceType, p.SourceName, p.SourcePhone, p.SourceEmail, optUUID(p.DelegateID),
		p.AmountPledgedCents, p.AmountPaidCents, p.Status, optUUID(p.EventID), uuid.UUID(p.RecordedBy),
		p.LocalChurch, p.Parish, p.Archdeaconry, p.Description, p.DueDate, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert pledge: %w", err)
	}
	return nil
}

func (s *PostgresPledgeStore) Update(ctx context.Context, p Pledge) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE pledges SET
			source_name = $2, source_phone = NULLIF($3, ''), source_email = NULLIF($4, ''),
			amount_pledged_cents = $5, amount_paid_cents = $6, status = $7,
			description = NULLIF($8, ''), due_date = $9, updated_at = $10
		WHERE id = $1
	`, uuid.UUID(p.ID), p.SourceName, p.SourcePhone, p.SourceEmail, p.AmountPledgedCents,
		p.AmountPaidCents, p.Status, p.Description, p.DueDate, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update pledge: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresPledgeStore) FindByID(ctx context.Context, pledgeID id.PledgeID) (Pledge, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pledgeColumns+` FROM pledges WHERE id = $1`, uuid.UUID(pledgeID))
	return scanPledge(row)
}

func (s *PostgresPledgeStore) List(ctx context.Context, filter PledgeFilter) ([]Pledge, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+pledgeColumns+` FROM pledges
		WHERE ($1::uuid IS NULL OR event_id = $1)
		  AND ($2::uuid IS NULL OR recorded_by = $2)
		  AND ($3 = '' OR status = $3)
		  AND ($4 = '' OR source_type = $4)
		ORDER BY created_at DESC
	`, optUUID(filter.EventID), optUUID(filter.RecordedBy), filter.Status, filter.SourceType)
	if err != nil {
		return nil, fmt.Errorf("list pledges: %w", err)
	}
	defer rows.Close()

	var pledges []Pledge
	for rows.Next() {
		p, err := scanPledge(rows)
		if err != nil {
			return nil, err
		}
		pledges = append(pledges, p)
	}
	return pledges, rows.Err()
}

func (s *PostgresPledgeStore) Stats(ctx context.Context, eventID id.EventID) (PledgeStats, error) {
	var stats PledgeStats
	err := s.pool.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(amount_pledged_cents) FILTER (WHERE status <> 'cancelled'), 0),
			COALESCE(SUM(amount_paid_cents) FILTER (WHERE status <> 'cancelled'), 0),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'partial'),
			COUNT(*) FILTER (WHERE status = 'fulfilled')
		FROM pledges
		WHERE ($1::uuid IS NULL OR event_id = $1)
	`, optUUID(eventID)).Scan(&stats.TotalPledgedCents, &stats.TotalPaidCents,
		&stats.Pending, &stats.Partial, &stats.Fulfilled)
	if err != nil {
		return PledgeStats{}, fmt.Errorf("pledge stats: %w", err)
	}
	return stats, nil
}

const pledgePaymentColumns = `id, pledge_id, amount_cents, method, COALESCE(reference, ''), COALESCE(notes, ''), status, confirmed_by, confirmed_at, created_at`

func scanPledgePayment(row pgx.Row) (PledgePayment, error) {
	var (
		pp          PledgePayment
		pid         uuid.UUID
		pledgeID    uuid.UUID
		confirmedBy *uuid.UUID
	)
	err := row.Scan(&pid, &pledgeID, &pp.AmountCents, &pp.Method, &pp.Reference, &pp.Notes,
		&pp.Status, &confirmedBy, &pp.ConfirmedAt, &pp.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PledgePayment{}, ErrNotFound
		}
		return PledgePayment{}, err
	}
	pp.ID = id.PledgePaymentID(pid)
	pp.PledgeID = id.PledgeID(pledgeID)
	if confirmedBy != nil {
		pp.ConfirmedBy = id.UserID(*confirmedBy)
	}
	return pp, nil
}

func (s *PostgresPledgeStore) InsertPayment(ctx context.Context, pp PledgePayment) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pledge_payments (id, pledge_id, amount_cents, method, reference, notes, status, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7, $8)
	`, uuid.UUID(pp.ID), uuid.UUID(pp.PledgeID), pp.AmountCents, pp.Method, pp.Reference,
		pp.Notes, pp.Status, pp.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert pledge payment: %w", err)
	}
	return nil
}

func (s *PostgresPledgeStore) UpdatePayment(ctx context.Context, pp PledgePayment) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE pledge_payments SET status = $2, confirmed_by = $3, confirmed_at = $4, notes = NULLIF($5, '')
		WHERE id = $1
	`, uuid.UUID(pp.ID), pp.Status, optUUID(pp.ConfirmedBy), pp.ConfirmedAt, pp.Notes)
	if err != nil {
		return fmt.Errorf("update pledge payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresPledgeStore) FindPayment(ctx context.Context, paymentID id.PledgePaymentID) (PledgePayment, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pledgePaymentColumns+` FROM pledge_payments WHERE id = $1`, uuid.UUID(paymentID))
	return scanPledgePayment(row)
}

func (s *PostgresPledgeStore) PaymentsFor(ctx context.Context, pledgeID id.PledgeID) ([]PledgePayment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pledgePaymentColumns+` FROM pledge_payments WHERE pledge_id = $1 ORDER BY created_at DESC`,
		uuid.UUID(pledgeID))
	if err != nil {
		return nil, fmt.Errorf("list pledge payments: %w", err)
	}
	defer rows.Close()

	var payments []PledgePayment
	for rows.Next() {
		pp, err := scanPledgePayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, pp)
	}
	return payments, rows.Err()
}

type PostgresScheduleStore struct {
	pool *pgxpool.Pool
}

func NewPostgresScheduleStore(pool *pgxpool.Pool) *PostgresScheduleStore {
	return &PostgresScheduleStore{pool: pool}
}

const scheduleColumns = `id, source_type, source_name, COALESCE(source_phone, ''), delegate_id, amount_cents, frequency, start_date, end_date, next_payment_date, total_expected_cents, total_collected_cents, status, event_id, recorded_by, COALESCE(description, ''), created_at, updated_at`

func scanSchedule(row pgx.Row) (ScheduledPayment, error) {
	var (
		sp         ScheduledPayment
		sid        uuid.UUID
		delegateID *uuid.UUID
		eventID    *uuid.UUID
		recordedBy uuid.UUID
	)
	err := row.Scan(&sid, &sp.SourceType, &sp.SourceName, &sp.SourcePhone, &delegateID,
		&sp.AmountCents, &sp.Frequency, &sp.StartDate, &sp.EndDate, &sp.NextPaymentDate,
		&sp.TotalExpectedCents, &sp.TotalCollectedCents, &sp.Status, &eventID, &recordedBy,
		&sp.Description, &sp.CreatedAt, &sp.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ScheduledPayment{}, ErrNotFound
		}
		return ScheduledPayment{}, err
	}
	sp.ID = id.ScheduleID(sid)
	sp.RecordedBy = id.UserID(recordedBy)
	if delegateID != nil {
		sp.DelegateID = id.DelegateID(*delegateID)
	}
	if eventID != nil {
		sp.EventID = id.EventID(*eventID)
	}
	return sp, nil
}

func (s *PostgresScheduleStore) Insert(ctx context.Context, sp ScheduledPayment) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO scheduled_payments (id, source_type, source_name, source_phone, delegate_id, amount_cents, frequency, start_date, end_date, next_payment_date, total_expected_cents, total_collected_cents, status, event_id, recorded_by, description, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NULLIF($16, ''), $17, $18)
	`, uuid.UUID(sp.ID), sp.SourceType, sp.SourceName, sp.SourcePhone, optUUID(sp.DelegateID),
		sp.AmountCents, sp.Frequency, sp.StartDate, sp.EndDate, sp.NextPaymentDate,
		sp.TotalExpectedCents, sp.TotalCollectedCents, sp.Status, optUUID(sp.EventID),
		uuid.UUID(sp.RecordedBy), sp.Description, sp.CreatedAt, sp.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert schedule: %w", err)
	}
	return nil
}

func (s *PostgresScheduleStore) Update(ctx context.Context, sp ScheduledPayment) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE scheduled_payments SET
			next_payment_date = $2, total_collected_cents = $3, status = $4, updated_at = $5
		WHERE id = $1
	`, uuid.UUID(sp.ID), sp.NextPaymentDate, sp.TotalCollectedCents, sp.Status, sp.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresScheduleStore) FindByID(ctx context.Context, scheduleID id.ScheduleID) (ScheduledPayment, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+scheduleColumns+` FROM scheduled_payments WHERE id = $1`, uuid.UUID(scheduleID))
	return scanSchedule(row)
}

func (s *PostgresScheduleStore) List(ctx context.Context, status string) ([]ScheduledPayment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+scheduleColumns+` FROM scheduled_payments
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
	`, status)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()
	return collectSchedules(rows)
}

func (s *PostgresScheduleStore) Due(ctx context.Context, on time.Time) ([]ScheduledPayment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+scheduleColumns+` FROM scheduled_payments
		WHERE status = 'active' AND next_payment_date IS NOT NULL AND next_payment_date <= $1
		ORDER BY next_payment_date ASC
	`, on)
	if err != nil {
		return nil, fmt.Errorf("due schedules: %w", err)
	}
	defer rows.Close()
	return collectSchedules(rows)
}

func collectSchedules(rows pgx.Rows) ([]ScheduledPayment, error) {
	var schedules []ScheduledPayment
	for rows.Next() {
		sp, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, sp)
	}
	return schedules, rows.Err()
}

const installmentColumns = `id, schedule_id, due_date, amount_due_cents, amount_paid_cents, COALESCE(method, ''), COALESCE(reference, ''), status, confirmed_by, confirmed_at, created_at, paid_at`

func scanInstallment(row pgx.Row) (Installment, error) {
	var (
		in          Installment
		iid         uuid.UUID
		scheduleID  uuid.UUID
		confirmedBy *uuid.UUID
	)
	err := row.Scan(&iid, &scheduleID, &in.DueDate, &in.AmountDueCents, &in.AmountPaidCents,
		&in.Method, &in.Reference, &in.Status, &confirmedBy, &in.ConfirmedAt, &in.CreatedAt, &in.PaidAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Installment{}, ErrNotFound
		}
		return Installment{}, err
	}
	in.ID = id.InstallmentID(iid)
	in.ScheduleID = id.ScheduleID(scheduleID)
	if confirmedBy != nil {
		in.ConfirmedBy = id.UserID(*confirmedBy)
	}
	return in, nil
}

func (s *PostgresScheduleStore) InsertInstallment(ctx context.Context, in Installment) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO scheduled_installments (id, schedule_id, due_date, amount_due_cents, amount_paid_cents, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, uuid.UUID(in.ID), uuid.UUID(in.ScheduleID), in.DueDate, in.AmountDueCents,
		in.AmountPaidCents, in.Status, in.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert installment: %w", err)
	}
	return nil
}

func (s *PostgresScheduleStore) UpdateInstallment(ctx context.Context, in Installment) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE scheduled_installments SET
			amount_paid_cents = $2, method = NULLIF($3, ''), reference = NULLIF($4, ''),
			status = $5, confirmed_by = $6, confirmed_at = $7, paid_at = $8
		WHERE id = $1
	`, uuid.UUID(in.ID), in.AmountPaidCents, in.Method, in.Reference, in.Status,
		optUUID(in.ConfirmedBy), in.ConfirmedAt, in.PaidAt)
	if err != nil {
		return fmt.Errorf("update installment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresScheduleStore) FindInstallment(ctx context.Context, installmentID id.InstallmentID) (Installment, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+installmentColumns+` FROM scheduled_installments WHERE id = $1`, uuid.UUID(installmentID))
	return scanInstallment(row)
}

func (s *PostgresScheduleStore) InstallmentsFor(ctx context.Context, scheduleID id.ScheduleID) ([]Installment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+installmentColumns+` FROM scheduled_installments WHERE schedule_id = $1 ORDER BY due_date ASC`,
		uuid.UUID(scheduleID))
	if err != nil {
		return nil, fmt.Errorf("list installments: %w", err)
	}
	defer rows.Close()

	var installments []Installment
	for rows.Next() {
		in, err := scanInstallment(rows)
		if err != nil {
			return nil, err
		}
		installments = append(installments, in)
	}
	return installments, rows.Err()
}

type PostgresTransferStore struct {
	pool *pgxpool.Pool
}

func NewPostgresTransferStore(pool *pgxpool.Pool) *PostgresTransferStore {
	return &PostgresTransferStore{pool: pool}
}

const transferColumns = `id, reference, amount_cents, from_user_id, from_role, to_user_id, to_role, stage, status, COALESCE(local_church, ''), COALESCE(parish, ''), COALESCE(archdeaconry, ''), event_id, COALESCE(description, ''), attachments, created_at, approved_at, completed_at`

func scanTransfer(row pgx.Row) (Transfer, error) {
	var (
		t        Transfer
		tid      uuid.UUID
		fromUser uuid.UUID
		toUser   uuid.UUID
		eventID  *uuid.UUID
	)
	err := row.Scan(&tid, &t.Reference, &t.AmountCents, &fromUser, &t.FromRole, &toUser,
		&t.ToRole, &t.Stage, &t.Status, &t.LocalChurch, &t.Parish, &t.Archdeaconry, &eventID,
		&t.Description, &t.Attachments, &t.CreatedAt, &t.ApprovedAt, &t.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transfer{}, ErrNotFound
		}
		return Transfer{}, err
	}
	t.ID = id.TransferID(tid)
	t.FromUserID = id.UserID(fromUser)
	t.ToUserID = id.UserID(toUser)
	if eventID != nil {
		t.EventID = id.EventID(*eventID)
	}
	if t.Attachments == nil {
		t.Attachments = []string{}
	}
	return t, nil
}

func (s *PostgresTransferStore) Insert(ctx context.Context, t Transfer) error {
	attachments := t.Attachments
	if attachments == nil {
		attachments = []string{}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO fund_transfers (id, reference, amount_cents, from_user_id, from_role, to_user_id, to_role, stage, status, local_church, parish, archdeaconry, event_id, description, attachments, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''), NULLIF($11, ''), NULLIF($12, ''), $13, NULLIF($14, ''), $15, $16)
	`, uuid.UUID(t.ID), t.Reference, t.AmountCents, uuid.UUID(t.FromUserID), t.FromRole,
		uuid.UUID(t.ToUserID), t.ToRole, t.Stage, t.Status, t.LocalChurch, t.Parish,
		t.Archdeaconry, optUUID(t.EventID), t.Description, attachments, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert transfer: %w", err)
	}
	return nil
}

func (s *PostgresTransferStore) Update(ctx context.Context, t Transfer) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE fund_transfers SET status = $2, approved_at = $3, completed_at = $4
		WHERE id = $1
	`, uuid.UUID(t.ID), t.Status, t.ApprovedAt, t.CompletedAt)
	if err != nil {
		return fmt.Errorf("update transfer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresTransferStore) FindByID(ctx context.Context, transferID id.TransferID) (Transfer, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+transferColumns+` FROM fund_transfers WHERE id = $1`, uuid.UUID(transferID))
	return scanTransfer(row)
}

func (s *PostgresTransferStore) List(ctx context.Context, filter TransferFilter) ([]Transfer, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+transferColumns+` FROM fund_transfers
		WHERE ($1::uuid IS NULL OR from_user_id = $1 OR to_user_id = $1)
		  AND ($2::uuid IS NULL OR to_user_id = $2)
		  AND ($3 = '' OR status = $3)
		  AND ($4 = '' OR stage = $4)
		  AND ($5::uuid IS NULL OR event_id = $5)
		ORDER BY created_at DESC
	`, optUUID(filter.ParticipantID), optUUID(filter.ToUserID), filter.Status, filter.Stage,
		optUUID(filter.EventID))
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	defer rows.Close()

	var transfers []Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		transfers = append(transfers, t)
	}
	return transfers, rows.Err()
}

func (s *PostgresTransferStore) Stats(ctx context.Context, filter TransferFilter) (TransferStats, error) {
	var stats TransferStats
	err := s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending'),
			COALESCE(SUM(amount_cents) FILTER (WHERE status = 'pending'), 0),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COALESCE(SUM(amount_cents) FILTER (WHERE status = 'completed'), 0),
			COUNT(*) FILTER (WHERE status = 'rejected')
		FROM fund_transfers
		WHERE ($1::uuid IS NULL OR from_user_id = $1 OR to_user_id = $1)
		  AND ($2::uuid IS NULL OR event_id = $2)
	`, optUUID(filter.ParticipantID), optUUID(filter.EventID)).Scan(&stats.PendingCount,
		&stats.PendingCents, &stats.CompletedCount, &stats.CompletedCents, &stats.RejectedCount)
	if err != nil {
		return TransferStats{}, fmt.Errorf("transfer stats: %w", err)
	}
	return stats, nil
}

func (s *PostgresTransferStore) AppendApproval(ctx context.Context, a TransferApproval) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO fund_transfer_approvals (id, transfer_id, actor_id, action, notes, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)
	`, a.ID, uuid.UUID(a.TransferID), uuid.UUID(a.ActorID), a.Action, a.Notes, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("append transfer approval: %w", err)
	}
	return nil
}

func (s *PostgresTransferStore) ApprovalsFor(ctx context.Context, transferID id.TransferID) ([]TransferApproval, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, transfer_id, actor_id, action, COALESCE(notes, ''), created_at
		FROM fund_transfer_approvals WHERE transfer_id = $1 ORDER BY created_at ASC
	`, uuid.UUID(transferID))
	if err != nil {
		return nil, fmt.Errorf("list transfer approvals: %w", err)
	}
	defer rows.Close()

	var approvals []TransferApproval
	for rows.Next() {
		var (
			a          TransferApproval
			transferID uuid.UUID
			actorID    uuid.UUID
		)
		if err := rows.Scan(&a.ID, &transferID, &actorID, &a.Action, &a.Notes, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.TransferID = id.TransferID(transferID)
		a.ActorID = id.UserID(actorID)
		approvals = append(approvals, a)
	}
	return approvals, rows.Err()
}
