package checkin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	id "kayo/pkg/domain"
)

// PostgresStore persists check-in records in PostgreSQL. The table's
// unique constraint is the duplicate gate, so concurrent scans of the
// same badge cannot double-record.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const recordColumns = `id, delegate_id, event_id, check_in_date, check_in_time, checked_in_by, session_name, method`

func scanRecord(row pgx.Row) (Record, error) {
	var (
		r           Record
		rid         uuid.UUID
		delegateID  uuid.UUID
		eventID     uuid.UUID
		checkedInBy *uuid.UUID
	)
	err := row.Scan(&rid, &delegateID, &eventID, &r.CheckInDate, &r.CheckInTime,
		&checkedInBy, &r.SessionName, &r.Method)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	r.ID = id.CheckInID(rid)
	r.DelegateID = id.DelegateID(delegateID)
	r.EventID = id.EventID(eventID)
	if checkedInBy != nil {
		r.CheckedInBy = id.UserID(*checkedInBy)
	}
	return r, nil
}

func (s *PostgresStore) Insert(ctx context.Context, r Record) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO check_in_records (id, delegate_id, event_id, check_in_date, check_in_time, checked_in_by, session_name, method)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, uuid.UUID(r.ID), uuid.UUID(r.DelegateID), uuid.UUID(r.EventID), r.CheckInDate,
		r.CheckInTime, optUserID(r.CheckedInBy), r.SessionName, r.Method)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicate
		}
		return fmt.Errorf("insert check-in: %w", err)
	}
	return nil
}

func optUserID(userID id.UserID) *uuid.UUID {
	u := uuid.UUID(userID)
	if u == uuid.Nil {
		return nil
	}
	return &u
}

func (s *PostgresStore) Find(ctx context.Context, delegateID id.DelegateID, eventID id.EventID, day time.Time, session string) (Record, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+recordColumns+` FROM check_in_records
		WHERE delegate_id = $1 AND event_id = $2 AND check_in_date = $3 AND session_name = $4
	`, uuid.UUID(delegateID), uuid.UUID(eventID), day, session)
	return scanRecord(row)
}

func (s *PostgresStore) ListByDate(ctx context.Context, eventID id.EventID, day time.Time, session string) ([]Record, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+recordColumns+` FROM check_in_records
		WHERE event_id = $1 AND check_in_date = $2
		  AND ($3 = '' OR session_name = $3)
		ORDER BY check_in_time DESC
	`, uuid.UUID(eventID), day, session)
	if err != nil {
		return nil, fmt.Errorf("list check-ins: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

func (s *PostgresStore) HistoryFor(ctx context.Context, delegateID id.DelegateID) ([]Record, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+recordColumns+` FROM check_in_records
		WHERE delegate_id = $1
		ORDER BY check_in_time
	`, uuid.UUID(delegateID))
	if err != nil {
		return nil, fmt.Errorf("check-in history: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

func collectRecords(rows pgx.Rows) ([]Record, error) {
	var records []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *PostgresStore) Stats(ctx context.Context, eventID id.EventID) (EventStats, error) {
	stats := EventStats{
		SessionCounts: make(map[string]int),
		DailyCounts:   make(map[string]int),
	}
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT delegate_id)
		FROM check_in_records
		WHERE event_id = $1
	`, uuid.UUID(eventID)).Scan(&stats.TotalCheckIns, &stats.UniqueDelegates)
	if err != nil {
		return EventStats{}, fmt.Errorf("check-in stats: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT session_name, check_in_date, COUNT(*)
		FROM check_in_records
		WHERE event_id = $1
		GROUP BY session_name, check_in_date
	`, uuid.UUID(eventID))
	if err != nil {
		return EventStats{}, fmt.Errorf("check-in stats breakdown: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			session string
			day     time.Time
			count   int
		)
		if err := rows.Scan(&session, &day, &count); err != nil {
			return EventStats{}, err
		}
		if session == "" {
			session = "general"
		}
		stats.SessionCounts[session] += count
		stats.DailyCounts[day.Format("2006-01-02")] += count
	}
	return stats, rows.Err()
}
