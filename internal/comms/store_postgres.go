package comms

import (
	"context"
	"errors"
	"fmt"

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

// PostgresStore persists announcements and their delivery logs in
// PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const announcementColumns = `id, event_id, title, message, message_type, send_sms, send_email, audience, archdeaconries, status, recipients_count, delivered_count, failed_count, scheduled_for, sent_at, created_by, created_at`

func scanAnnouncement(row pgx.Row) (Announcement, error) {
	var (
		a         Announcement
		aid       uuid.UUID
		eventID   *uuid.UUID
		createdBy uuid.UUID
	)
	err := row.Scan(&aid, &eventID, &a.Title, &a.Message, &a.MessageType, &a.SendSMS,
		&a.SendEmail, &a.Audience, &a.Archdeaconries, &a.Status, &a.RecipientsCount,
		&a.DeliveredCount, &a.FailedCount, &a.ScheduledFor, &a.SentAt, &createdBy,
		&a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Announcement{}, ErrNotFound
		}
		return Announcement{}, err
	}
	a.ID = id.AnnouncementID(aid)
	a.CreatedBy = id.UserID(createdBy)
	if eventID != nil {
		a.EventID = id.EventID(*eventID)
	}
	if a.Archdeaconries == nil {
		a.Archdeaconries = []string{}
	}
	return a, nil
}

func (s *PostgresStore) Insert(ctx context.Context, a Announcement) error {
	archdeaconries := a.Archdeaconries
	if archdeaconries == nil {
		archdeaconries = []string{}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO announcements (id, event_id, title, message, message_type, send_sms, send_email, audience, archdeaconries, status, recipients_count, delivered_count, failed_count, scheduled_for, sent_at, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`, uuid.UUID(a.ID), optUUID(a.EventID), a.Title, a.Message, a.MessageType,
		a.SendSMS, a.SendEmail, a.Audience, archdeaconries, a.Status,
		a.RecipientsCount, a.DeliveredCount, a.FailedCount, a.ScheduledFor, a.SentAt,
		uuid.UUID(a.CreatedBy), a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert announcement: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, a Announcement) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE announcements SET
			status = $2, recipients_count = $3, delivered_count = $4,
			failed_count = $5, sent_at = $6
		WHERE id = $1
	`, uuid.UUID(a.ID), a.Status, a.RecipientsCount, a.DeliveredCount,
		a.FailedCount, a.SentAt)
	if err != nil {
		return fmt.Errorf("update announcement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, announcementID id.AnnouncementID) (Announcement, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+announcementColumns+` FROM announcements WHERE id = $1`,
		uuid.UUID(announcementID))
	return scanAnnouncement(row)
}

func (s *PostgresStore) List(ctx context.Context, filter Filter) ([]Announcement, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+announcementColumns+` FROM announcements
		WHERE ($1 = '' OR status = $1)
		  AND ($2::uuid IS NULL OR event_id = $2)
		ORDER BY created_at DESC
	`, filter.Status, optUUID(filter.EventID))
	if err != nil {
		return nil, fmt.Errorf("list announcements: %w", err)
	}
	defer rows.Close()

	var announcements []Announcement
	for rows.Next() {
		a, err := scanAnnouncement(rows)
		if err != nil {
			return nil, err
		}
		announcements = append(announcements, a)
	}
	return announcements, rows.Err()
}

func (s *PostgresStore) Delete(ctx context.Context, announcementID id.AnnouncementID) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM announcements WHERE id = $1`, uuid.UUID(announcementID))
	if err != nil {
		return fmt.Errorf("delete announcement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) InsertMessages(ctx context.Context, messages []Message) error {
	if len(messages) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, m := range messages {
		batch.Queue(`
			INSERT INTO announcement_messages (announcement_id, channel, recipient, status, error, created_at)
			VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)
		`, uuid.UUID(m.AnnouncementID), m.Channel, m.Recipient, m.Status, m.Error, m.CreatedAt)
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert announcement messages: %w", err)
	}
	return nil
}

func (s *PostgresStore) MessagesFor(ctx context.Context, announcementID id.AnnouncementID) ([]Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, announcement_id, channel, recipient, status, COALESCE(error, ''), created_at
		FROM announcement_messages
		WHERE announcement_id = $1
		ORDER BY id
	`, uuid.UUID(announcementID))
	if err != nil {
		return nil, fmt.Errorf("list announcement messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var (
			m   Message
			aid uuid.UUID
		)
		if err := rows.Scan(&m.ID, &aid, &m.Channel, &m.Recipient, &m.Status, &m.Error, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.AnnouncementID = id.AnnouncementID(aid)
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
