package event

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	id "kayo/pkg/domain"
)

type PostgresEventStore struct {
	pool *pgxpool.Pool
}

func NewPostgresEventStore(pool *pgxpool.Pool) *PostgresEventStore {
	return &PostgresEventStore{pool: pool}
}

const eventColumns = `id, name, slug, COALESCE(description, ''), start_date, end_date, registration_deadline, COALESCE(venue, ''), COALESCE(max_delegates, 0), is_active, is_published, created_by, created_at, updated_at`

func scanEvent(row pgx.Row) (Event, error) {
	var (
		e         Event
		eid       uuid.UUID
		createdBy *uuid.UUID
	)
	err := row.Scan(&eid, &e.Name, &e.Slug, &e.Description, &e.StartDate, &e.EndDate, &e.RegistrationDeadline,
		&e.Venue, &e.MaxDelegates, &e.IsActive, &e.IsPublished, &createdBy, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Event{}, ErrNotFound
		}
		return Event{}, err
	}
	e.ID = id.EventID(eid)
	if createdBy != nil {
		e.CreatedBy = id.UserID(*createdBy)
	}
	return e, nil
}

func (s *PostgresEventStore) Insert(ctx context.Context, event Event) error {
	var createdBy *uuid.UUID
	if !event.CreatedBy.IsZero() {
		u := uuid.UUID(event.CreatedBy)
		createdBy = &u
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO events (id, name, slug, description, start_date, end_date, registration_deadline, venue, max_delegates, is_active, is_published, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, NULLIF($8, ''), NULLIF($9, 0), $10, $11, $12, $13, $14)
	`, uuid.UUID(event.ID), event.Name, event.Slug, event.Description, event.StartDate, event.EndDate,
		event.RegistrationDeadline, event.Venue, event.MaxDelegates, event.IsActive, event.IsPublished,
		createdBy, event.CreatedAt, event.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (s *PostgresEventStore) Update(ctx context.Context, event Event) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE events SET name = $2, description = NULLIF($3, ''), start_date = $4, end_date = $5,
			registration_deadline = $6, venue = NULLIF($7, ''), max_delegates = NULLIF($8, 0),
			is_active = $9, is_published = $10, updated_at = $11
		WHERE id = $1
	`, uuid.UUID(event.ID), event.Name, event.Description, event.StartDate, event.EndDate,
		event.RegistrationDeadline, event.Venue, event.MaxDelegates, event.IsActive, event.IsPublished, event.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresEventStore) FindByID(ctx context.Context, eventID id.EventID) (Event, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, uuid.UUID(eventID))
	event, err := scanEvent(row)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Event{}, fmt.Errorf("find event: %w", err)
	}
	return event, err
}

func (s *PostgresEventStore) FindBySlug(ctx context.Context, slug string) (Event, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE slug = $1`, slug)
	event, err := scanEvent(row)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Event{}, fmt.Errorf("find event by slug: %w", err)
	}
	return event, err
}

func (s *PostgresEventStore) List(ctx context.Context, activeOnly bool) ([]Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY start_date DESC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

type PostgresTierStore struct {
	pool *pgxpool.Pool
}

func NewPostgresTierStore(pool *pgxpool.Pool) *PostgresTierStore {
	return &PostgresTierStore{pool: pool}
}

const tierColumns = `id, event_id, name, COALESCE(description, ''), price_cents, valid_from, valid_until, COALESCE(max_tickets, 0), tickets_sold, COALESCE(group_min_size, 0), COALESCE(group_discount_percent, 0), is_active`

func scanTier(row pgx.Row) (PricingTier, error) {
	var (
		t   PricingTier
		tid uuid.UUID
		eid uuid.UUID
	)
	err := row.Scan(&tid, &eid, &t.Name, &t.Description, &t.PriceCents, &t.ValidFrom, &t.ValidUntil,
		&t.MaxTickets, &t.TicketsSold, &t.GroupMinSize, &t.GroupDiscountPercent, &t.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PricingTier{}, ErrNotFound
		}
		return PricingTier{}, err
	}
	t.ID = id.TierID(tid)
	t.EventID = id.EventID(eid)
	return t, nil
}

func (s *PostgresTierStore) Insert(ctx context.Context, tier PricingTier) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pricing_tiers (id, event_id, name, description, price_cents, valid_from, valid_until, max_tickets, tickets_sold, group_min_size, group_discount_percent, is_active)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, NULLIF($8, 0), $9, NULLIF($10, 0), NULLIF($11, 0), $12)
	`, uuid.UUID(tier.ID), uuid.UUID(tier.EventID), tier.Name, tier.Description, tier.PriceCents,
		tier.ValidFrom, tier.ValidUntil, tier.MaxTickets, tier.TicketsSold, tier.GroupMinSize,
		tier.GroupDiscountPercent, tier.IsActive)
	if err != nil {
		return fmt.Errorf("insert pricing tier: %w", err)
	}
	return nil
}

func (s *PostgresTierStore) Update(ctx context.Context, tier PricingTier) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE pricing_tiers SET name = $2, description = NULLIF($3, ''), price_cents = $4,
			valid_from = $5, valid_until = $6, max_tickets = NULLIF($7, 0),
			group_min_size = NULLIF($8, 0), group_discount_percent = NULLIF($9, 0), is_active = $10
		WHERE id = $1
	`, uuid.UUID(tier.ID), tier.Name, tier.Description, tier.PriceCents, tier.ValidFrom, tier.ValidUntil,
		tier.MaxTickets, tier.GroupMinSize, tier.GroupDiscountPercent, tier.IsActive)
	if err != nil {
		return fmt.Errorf("update pricing tier: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresTierStore) FindByID(ctx context.Context, tierID id.TierID) (PricingTier, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+tierColumns+` FROM pricing_tiers WHERE id = $1`, uuid.UUID(tierID))
	tier, err := scanTier(row)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return PricingTier{}, fmt.Errorf("find pricing tier: %w", err)
	}
	return tier, err
}

func (s *PostgresTierStore) ListByEvent(ctx context.Context, eventID id.EventID) ([]PricingTier, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+tierColumns+` FROM pricing_tiers WHERE event_id = $1 ORDER BY price_cents ASC`, uuid.UUID(eventID))
	if err != nil {
		return nil, fmt.Errorf("list pricing tiers: %w", err)
	}
	defer rows.Close()

	var tiers []PricingTier
	for rows.Next() {
		tier, err := scanTier(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pricing tier: %w", err)
		}
		tiers = append(tiers, tier)
	}
	return tiers, rows.Err()
}

func (s *PostgresTierStore) IncrementSold(ctx context.Context, tierID id.TierID, n int) error {
	tag, err := s.pool.Exec(ctx, `UPDATE pricing_tiers SET tickets_sold = tickets_sold + $2 WHERE id = $1`, uuid.UUID(tierID), n)
	if err != nil {
		return fmt.Errorf("increment tickets sold: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
