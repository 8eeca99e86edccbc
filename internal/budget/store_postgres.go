package budget

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

// PostgresStore persists budgets in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const budgetColumns = `id, name, COALESCE(description, ''), event_id, total_budgeted_cents, total_spent_cents, status, created_by, approved_by, approved_at, created_at, updated_at`

func scanBudget(row pgx.Row) (Budget, error) {
	var (
		b          Budget
		bid        uuid.UUID
		eventID    *uuid.UUID
		createdBy  uuid.UUID
		approvedBy *uuid.UUID
	)
	err := row.Scan(&bid, &b.Name, &b.Description, &eventID, &b.TotalBudgetedCents,
		&b.TotalSpentCents, &b.Status, &createdBy, &approvedBy, &b.ApprovedAt,
		&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Budget{}, ErrNotFound
		}
		return Budget{}, err
	}
	b.ID = id.BudgetID(bid)
	b.CreatedBy = id.UserID(createdBy)
	if eventID != nil {
		b.EventID = id.EventID(*eventID)
	}
	if approvedBy != nil {
		b.ApprovedBy = id.UserID(*approvedBy)
	}
	return b, nil
}

func (s *PostgresStore) Insert(ctx context.Context, b Budget) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO budgets (id, name, description, event_id, total_budgeted_cents, total_spent_cents, status, created_by, approved_by, approved_at, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, uuid.UUID(b.ID), b.Name, b.Description, optUUID(b.EventID), b.TotalBudgetedCents,
		b.TotalSpentCents, b.Status, uuid.UUID(b.CreatedBy), optUUID(b.ApprovedBy),
		b.ApprovedAt, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert budget: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, b Budget) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE budgets SET
			name = $2, description = NULLIF($3, ''), event_id = $4,
			total_budgeted_cents = $5, total_spent_cents = $6, status = $7,
			approved_by = $8, approved_at = $9, updated_at = $10
		WHERE id = $1
	`, uuid.UUID(b.ID), b.Name, b.Description, optUUID(b.EventID), b.TotalBudgetedCents,
		b.TotalSpentCents, b.Status, optUUID(b.ApprovedBy), b.ApprovedAt, b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update budget: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, budgetID id.BudgetID) (Budget, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE id = $1`, uuid.UUID(budgetID))
	return scanBudget(row)
}

func (s *PostgresStore) List(ctx context.Context, filter Filter) ([]Budget, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+budgetColumns+` FROM budgets
		WHERE ($1::uuid IS NULL OR event_id = $1)
		  AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
	`, optUUID(filter.EventID), filter.Status)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var budgets []Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, err
		}
		budgets = append(budgets, b)
	}
	return budgets, rows.Err()
}

func (s *PostgresStore) Delete(ctx context.Context, budgetID id.BudgetID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM budgets WHERE id = $1`, uuid.UUID(budgetID))
	if err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const itemColumns = `id, budget_id, item_number, category, name, COALESCE(description, ''), quantity, COALESCE(unit, ''), unit_cost_cents, budgeted_cents, actual_spent_cents, status, COALESCE(notes, ''), created_at, updated_at`

func scanItem(row pgx.Row) (Item, error) {
	var (
		item     Item
		itemID   uuid.UUID
		budgetID uuid.UUID
	)
	err := row.Scan(&itemID, &budgetID, &item.ItemNumber, &item.Category, &item.Name,
		&item.Description, &item.Quantity, &item.Unit, &item.UnitCostCents,
		&item.BudgetedCents, &item.ActualSpentCents, &item.Status, &item.Notes,
		&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrNotFound
		}
		return Item{}, err
	}
	item.ID = id.BudgetItemID(itemID)
	item.BudgetID = id.BudgetID(budgetID)
	return item, nil
}

func (s *PostgresStore) InsertItem(ctx context.Context, item Item) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO budget_items (id, budget_id, item_number, category, name, description, quantity, unit, unit_cost_cents, budgeted_cents, actual_spent_cents, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, NULLIF($8, ''), $9, $10, $11, $12, NULLIF($13, ''), $14, $15)
	`, uuid.UUID(item.ID), uuid.UUID(item.BudgetID), item.ItemNumber, item.Category,
		item.Name, item.Description, item.Quantity, item.Unit, item.UnitCostCents,
		item.BudgetedCents, item.ActualSpentCents, item.Status, item.Notes,
		item.CreatedAt, item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert budget item: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateItem(ctx context.Context, item Item) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE budget_items SET
			category = $2, name = $3, description = NULLIF($4, ''), quantity = $5,
			unit = NULLIF($6, ''), unit_cost_cents = $7, budgeted_cents = $8,
			actual_spent_cents = $9, status = $10, notes = NULLIF($11, ''), updated_at = $12
		WHERE id = $1
	`, uuid.UUID(item.ID), item.Category, item.Name, item.Description, item.Quantity,
		item.Unit, item.UnitCostCents, item.BudgetedCents, item.ActualSpentCents,
		item.Status, item.Notes, item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update budget item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindItem(ctx context.Context, itemID id.BudgetItemID) (Item, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+itemColumns+` FROM budget_items WHERE id = $1`, uuid.UUID(itemID))
	return scanItem(row)
}

func (s *PostgresStore) ItemsFor(ctx context.Context, budgetID id.BudgetID) ([]Item, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+itemColumns+` FROM budget_items
		WHERE budget_id = $1
		ORDER BY category, item_number
	`, uuid.UUID(budgetID))
	if err != nil {
		return nil, fmt.Errorf("list budget items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *PostgresStore) DeleteItem(ctx context.Context, itemID id.BudgetItemID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM budget_items WHERE id = $1`, uuid.UUID(itemID))
	if err != nil {
		return fmt.Errorf("delete budget item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const expenditureColumns = `id, item_id, spent_on, description, amount_cents, COALESCE(method, ''), COALESCE(reference, ''), COALESCE(vendor, ''), status, approved_by, approved_at, COALESCE(rejection_reason, ''), recorded_by, created_at`

func scanExpenditure(row pgx.Row) (Expenditure, error) {
	var (
		e          Expenditure
		eid        uuid.UUID
		itemID     uuid.UUID
		approvedBy *uuid.UUID
		recordedBy uuid.UUID
	)
	err := row.Scan(&eid, &itemID, &e.SpentOn, &e.Description, &e.AmountCents, &e.Method,
		&e.Reference, &e.Vendor, &e.Status, &approvedBy, &e.ApprovedAt,
		&e.RejectionReason, &recordedBy, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Expenditure{}, ErrNotFound
		}
		return Expenditure{}, err
	}
	e.ID = id.ExpenditureID(eid)
	e.ItemID = id.BudgetItemID(itemID)
	e.RecordedBy = id.UserID(recordedBy)
	if approvedBy != nil {
		e.ApprovedBy = id.UserID(*approvedBy)
	}
	return e, nil
}

func (s *PostgresStore) InsertExpenditure(ctx context.Context, e Expenditure) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO budget_expenditures (id, item_id, spent_on, description, amount_cents, method, reference, vendor, status, approved_by, approved_at, rejection_reason, recorded_by, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''), $9, $10, $11, NULLIF($12, ''), $13, $14)
	`, uuid.UUID(e.ID), uuid.UUID(e.ItemID), e.SpentOn, e.Description, e.AmountCents,
		e.Method, e.Reference, e.Vendor, e.Status, optUUID(e.ApprovedBy), e.ApprovedAt,
		e.RejectionReason, uuid.UUID(e.RecordedBy), e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert expenditure: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateExpenditure(ctx context.Context, e Expenditure) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE budget_expenditures SET
			status = $2, approved_by = $3, approved_at = $4, rejection_reason = NULLIF($5, '')
		WHERE id = $1
	`, uuid.UUID(e.ID), e.Status, optUUID(e.ApprovedBy), e.ApprovedAt, e.RejectionReason)
	if err != nil {
		return fmt.Errorf("update expenditure: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindExpenditure(ctx context.Context, expenditureID id.ExpenditureID) (Expenditure, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+expenditureColumns+` FROM budget_expenditures WHERE id = $1`, uuid.UUID(expenditureID))
	return scanExpenditure(row)
}

func (s *PostgresStore) ExpendituresFor(ctx context.Context, itemID id.BudgetItemID) ([]Expenditure, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+expenditureColumns+` FROM budget_expenditures
		WHERE item_id = $1
		ORDER BY spent_on, created_at
	`, uuid.UUID(itemID))
	if err != nil {
		return nil, fmt.Errorf("list expenditures: %w", err)
	}
	defer rows.Close()

	var expenditures []Expenditure
	for rows.Next() {
		e, err := scanExpenditure(rows)
		if err != nil {
			return nil, err
		}
		expenditures = append(expenditures, e)
	}
	return expenditures, rows.Err()
}
