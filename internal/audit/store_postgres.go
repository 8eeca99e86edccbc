package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	id "kayo/pkg/domain"
)

// PostgresStore writes audit entries to the audit_logs table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Insert(ctx context.Context, entry Entry) error {
	oldValues, err := marshalValues(entry.OldValues)
	if err != nil {
		return fmt.Errorf("marshal old values: %w", err)
	}
	newValues, err := marshalValues(entry.NewValues)
	if err != nil {
		return fmt.Errorf("marshal new values: %w", err)
	}

	var userID *uuid.UUID
	if !entry.UserID.IsZero() {
		u := uuid.UUID(entry.UserID)
		userID = &u
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO audit_logs (user_id, user_email, action, resource_type, resource_id, description, old_values, new_values, ip_address, user_agent, request_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, userID, entry.UserEmail, entry.Action, entry.ResourceType, entry.ResourceID, entry.Description,
		oldValues, newValues, entry.IPAddress, entry.UserAgent, entry.RequestID, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, filter Filter) ([]Entry, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, cond+"$"+strconv.Itoa(len(args)))
	}
	if filter.Action != "" {
		add("action = ", filter.Action)
	}
	if filter.ResourceType != "" {
		add("resource_type = ", filter.ResourceType)
	}
	if filter.ResourceID != "" {
		add("resource_id = ", filter.ResourceID)
	}
	if filter.UserEmail != "" {
		add("user_email = ", filter.UserEmail)
	}
	if !filter.From.IsZero() {
		add("created_at >= ", filter.From)
	}
	if !filter.To.IsZero() {
		add("created_at < ", filter.To)
	}

	query := `SELECT id, user_id, user_email, action, resource_type, resource_id, description, old_values, new_values, ip_address, user_agent, request_id, created_at FROM audit_logs`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	args = append(args, limit)
	query += " LIMIT $" + strconv.Itoa(len(args))
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += " OFFSET $" + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e          Entry
			userID     *uuid.UUID
			oldValues  []byte
			newValues  []byte
		)
		if err := rows.Scan(&e.ID, &userID, &e.UserEmail, &e.Action, &e.ResourceType, &e.ResourceID, &e.Description,
			&oldValues, &newValues, &e.IPAddress, &e.UserAgent, &e.RequestID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		if userID != nil {
			e.UserID = id.UserID(*userID)
		}
		if len(oldValues) > 0 {
			if err := json.Unmarshal(oldValues, &e.OldValues); err != nil {
				return nil, fmt.Errorf("decode old values: %w", err)
			}
		}
		if len(newValues) > 0 {
			if err := json.Unmarshal(newValues, &e.NewValues); err != nil {
				return nil, fmt.Errorf("decode new values: %w", err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func marshalValues(values map[string]any) ([]byte, error) {
	if values == nil {
		return nil, nil
	}
	return json.Marshal(values)
}
