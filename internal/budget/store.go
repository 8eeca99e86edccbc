package budget

import (
	"context"

	id "kayo/pkg/domain"
	dErrors "kayo/pkg/domain-errors"
)

var ErrNotFound = dErrors.New(dErrors.CodeNotFound, "record not found")

// Filter narrows budget listings.
type Filter struct {
	EventID id.EventID
	Status  string
}

// Store persists budgets, their line items and expenditures.
type Store interface {
	Insert(ctx context.Context, b Budget) error
	Update(ctx context.Context, b Budget) error
	FindByID(ctx context.Context, budgetID id.BudgetID) (Budget, error)
	List(ctx context.Context, filter Filter) ([]Budget, error)
	Delete(ctx context.Context, budgetID id.BudgetID) error

	InsertItem(ctx context.Context, item Item) error
	UpdateItem(ctx context.Context, item Item) error
	FindItem(ctx context.Context, itemID id.BudgetItemID) (Item, error)
	ItemsFor(ctx context.Context, budgetID id.BudgetID) ([]Item, error)
	DeleteItem(ctx context.Context, itemID id.BudgetItemID) error

	InsertExpenditure(ctx context.Context, e Expenditure) error
	UpdateExpenditure(ctx context.Context, e Expenditure) error
	FindExpenditure(ctx context.Context, expenditureID id.ExpenditureID) (Expenditure, error)
	ExpendituresFor(ctx context.Context, itemID id.BudgetItemID) ([]Expenditure, error)
}
