package auth

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

// PostgresUserStore persists users in the users table.
type PostgresUserStore struct {
	pool *pgxpool.Pool
}

func NewPostgresUserStore(pool *pgxpool.Pool) *PostgresUserStore {
	return &PostgresUserStore{pool: pool}
}

const userColumns = `id, name, email, COALESCE(phone, ''), role, password_hash, COALESCE(local_church, ''), COALESCE(parish, ''), COALESCE(archdeaconry, ''), is_active, created_at`

func scanUser(row pgx.Row) (User, error) {
	var (
		u   User
		uid uuid.UUID
	)
	err := row.Scan(&uid, &u.Name, &u.Email, &u.Phone, &u.Role, &u.PasswordHash, &u.LocalChurch, &u.Parish, &u.Archdeaconry, &u.IsActive, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	u.ID = id.UserID(uid)
	return u, nil
}

func (s *PostgresUserStore) Insert(ctx context.Context, user User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, name, email, phone, role, password_hash, local_church, parish, archdeaconry, is_active, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, NULLIF($7, ''), NULLIF($8, ''), NULLIF($9, ''), $10, $11)
	`, uuid.UUID(user.ID), user.Name, user.Email, user.Phone, user.Role, user.PasswordHash,
		user.LocalChurch, user.Parish, user.Archdeaconry, user.IsActive, user.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresUserStore) Update(ctx context.Context, user User) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET name = $2, phone = NULLIF($3, ''), role = $4, password_hash = $5,
			local_church = NULLIF($6, ''), parish = NULLIF($7, ''), archdeaconry = NULLIF($8, ''), is_active = $9
		WHERE id = $1
	`, uuid.UUID(user.ID), user.Name, user.Phone, user.Role, user.PasswordHash,
		user.LocalChurch, user.Parish, user.Archdeaconry, user.IsActive)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresUserStore) FindByID(ctx context.Context, userID id.UserID) (User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, uuid.UUID(userID))
	user, err := scanUser(row)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return User{}, fmt.Errorf("find user: %w", err)
	}
	return user, err
}

func (s *PostgresUserStore) FindByEmail(ctx context.Context, email string) (User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
	user, err := scanUser(row)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return User{}, fmt.Errorf("find user by email: %w", err)
	}
	return user, err
}

func (s *PostgresUserStore) List(ctx context.Context) ([]User, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// PostgresSessionStore persists login sessions.
type PostgresSessionStore struct {
	pool *pgxpool.Pool
}

func NewPostgresSessionStore(pool *pgxpool.Pool) *PostgresSessionStore {
	return &PostgresSessionStore{pool: pool}
}

const sessionColumns = `id, user_id, token_hash, COALESCE(device, ''), COALESCE(browser, ''), COALESCE(os, ''), COALESCE(ip_address, ''), is_active, created_at, last_activity, COALESCE(expires_at, 'epoch'::timestamptz)`

func scanSession(row pgx.Row) (Session, error) {
	var (
		sess Session
		sid  uuid.UUID
		uid  uuid.UUID
	)
	err := row.Scan(&sid, &uid, &sess.TokenHash, &sess.Device, &sess.Browser, &sess.OS, &sess.IPAddress, &sess.IsActive, &sess.CreatedAt, &sess.LastActivity, &sess.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, ErrNotFound
		}
		return Session{}, err
	}
	sess.ID = id.SessionID(sid)
	sess.UserID = id.UserID(uid)
	return sess, nil
}

func (s *PostgresSessionStore) Insert(ctx context.Context, session Session) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sessions (id, user_id, token_hash, device, browser, os, ip_address, is_active, created_at, last_activity, expires_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), $8, $9, $10, $11)
	`, uuid.UUID(session.ID), uuid.UUID(session.UserID), session.TokenHash, session.Device, session.Browser,
		session.OS, session.IPAddress, session.IsActive, session.CreatedAt, session.LastActivity, session.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *PostgresSessionStore) FindByTokenHash(ctx context.Context, tokenHash string) (Session, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE token_hash = $1`, tokenHash)
	sess, err := scanSession(row)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Session{}, fmt.Errorf("find session: %w", err)
	}
	return sess, err
}

func (s *PostgresSessionStore) ListByUser(ctx context.Context, userID id.UserID) ([]Session, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE user_id = $1 ORDER BY last_activity DESC`, uuid.UUID(userID))
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func (s *PostgresSessionStore) Touch(ctx context.Context, sessionID id.SessionID, at time.Time) error {
	_, err := s.pool.Exec(ctx, `UPDATE sessions SET last_activity = $2 WHERE id = $1`, uuid.UUID(sessionID), at)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

func (s *PostgresSessionStore) Deactivate(ctx context.Context, sessionID id.SessionID) error {
	tag, err := s.pool.Exec(ctx, `UPDATE sessions SET is_active = FALSE WHERE id = $1`, uuid.UUID(sessionID))
	if err != nil {
		return fmt.Errorf("deactivate session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresSessionStore) DeactivateAllForUser(ctx context.Context, userID id.UserID) error {
	_, err := s.pool.Exec(ctx, `UPDATE sessions SET is_active = FALSE WHERE user_id = $1`, uuid.UUID(userID))
	if err != nil {
		return fmt.Errorf("deactivate sessions: %w", err)
	}
	return nil
}

// PostgresPermissionRequestStore persists permission requests.
type PostgresPermissionRequestStore struct {
	pool *pgxpool.Pool
}

func NewPostgresPermissionRequestStore(pool *pgxpool.Pool) *PostgresPermissionRequestStore {
	return &PostgresPermissionRequestStore{pool: pool}
}

const permissionColumns = `id, user_id, permission_type, COALESCE(reason, ''), COALESCE(scope, ''), COALESCE(scope_value, ''), status, requested_at, reviewed_at, expires_at, reviewed_by, COALESCE(reviewer_notes, '')`

func scanPermissionRequest(row pgx.Row) (PermissionRequest, error) {
	var (
		pr         PermissionRequest
		rid        uuid.UUID
		uid        uuid.UUID
		reviewedBy *uuid.UUID
	)
	err := row.Scan(&rid, &uid, &pr.PermissionType, &pr.Reason, &pr.Scope, &pr.ScopeValue, &pr.Status,
		&pr.RequestedAt, &pr.ReviewedAt, &pr.ExpiresAt, &reviewedBy, &pr.ReviewerNotes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PermissionRequest{}, ErrNotFound
		}
		return PermissionRequest{}, err
	}
	pr.ID = id.RequestID(rid)
	pr.UserID = id.UserID(uid)
	if reviewedBy != nil {
		pr.ReviewedBy = id.UserID(*reviewedBy)
	}
	return pr, nil
}

func (s *PostgresPermissionRequestStore) Insert(ctx context.Context, request PermissionRequest) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO permission_requests (id, user_id, permission_type, reason, scope, scope_value, status, requested_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), $7, $8)
	`, uuid.UUID(request.ID), uuid.UUID(request.UserID), request.PermissionType, request.Reason,
		request.Scope, request.ScopeValue, request.Status, request.RequestedAt)
	if err != nil {
		return fmt.Errorf("insert permission request: %w", err)
	}
	return nil
}

func (s *PostgresPermissionRequestStore) Update(ctx context.Context, request PermissionRequest) error {
	var reviewedBy *uuid.UUID
	if !request.ReviewedBy.IsZero() {
		u := uuid.UUID(request.ReviewedBy)
		reviewedBy = &u
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE permission_requests SET status = $2, reviewed_at = $3, expires_at = $4, reviewed_by = $5, reviewer_notes = NULLIF($6, '')
		WHERE id = $1
	`, uuid.UUID(request.ID), request.Status, request.ReviewedAt, request.ExpiresAt, reviewedBy, request.ReviewerNotes)
	if err != nil {
		return fmt.Errorf("update permission request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresPermissionRequestStore) FindByID(ctx context.Context, requestID id.RequestID) (PermissionRequest, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+permissionColumns+` FROM permission_requests WHERE id = $1`, uuid.UUID(requestID))
	pr, err := scanPermissionRequest(row)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return PermissionRequest{}, fmt.Errorf("find permission request: %w", err)
	}
	return pr, err
}

func (s *PostgresPermissionRequestStore) ListByUser(ctx context.Context, userID id.UserID) ([]PermissionRequest, error) {
	return s.list(ctx, `SELECT `+permissionColumns+` FROM permission_requests WHERE user_id = $1 ORDER BY requested_at DESC`, uuid.UUID(userID))
}

func (s *PostgresPermissionRequestStore) ListByStatus(ctx context.Context, status string) ([]PermissionRequest, error) {
	return s.list(ctx, `SELECT `+permissionColumns+` FROM permission_requests WHERE status = $1 ORDER BY requested_at DESC`, status)
}

func (s *PostgresPermissionRequestStore) list(ctx context.Context, query string, arg any) ([]PermissionRequest, error) {
	rows, err := s.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list permission requests: %w", err)
	}
	defer rows.Close()

	var requests []PermissionRequest
	for rows.Next() {
		pr, err := scanPermissionRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan permission request: %w", err)
		}
		requests = append(requests, pr)
	}
	return requests, rows.Err()
}

func (s *PostgresPermissionRequestStore) FindActive(ctx context.Context, userID id.UserID, permissionType string, now time.Time) (PermissionRequest, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+permissionColumns+` FROM permission_requests
		WHERE user_id = $1 AND permission_type = $2 AND status = $3 AND (expires_at IS NULL OR expires_at > $4)
		ORDER BY requested_at DESC LIMIT 1
	`, uuid.UUID(userID), permissionType, PermissionStatusApproved, now)
	pr, err := scanPermissionRequest(row)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return PermissionRequest{}, fmt.Errorf("find active permission: %w", err)
	}
	return pr, err
}
