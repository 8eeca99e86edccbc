package budget

import (
	"context"
	"sort"
	"sync"

	id "kayo/pkg/domain"
)

// MemoryStore is an in-memory Store for tests.
type MemoryStore struct {
	mu           sync.RWMutex
	budgets      map[id.BudgetID]Budget
	items        map[id.BudgetItemID]Item
	expenditures map[id.ExpenditureID]Expenditure
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		budgets:      make(map[id.BudgetID]Budget),
		items:        make(map[id.BudgetItemID]Item),
		expenditures: make(map[id.ExpenditureID]Expenditure),
	}
}

func (s *MemoryStore) Insert(ctx context.Context, b Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.budgets[b.ID] = b
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, b Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.budgets[b.ID]; !ok {
		return ErrNotFound
	}
	s.budgets[b.ID] = b
	return nil
}

func (s *MemoryStore) FindByID(ctx context.Context, budgetID id.BudgetID) (Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.budgets[budgetID]
	if !ok {
		return Budget{}, ErrNotFound
	}
	return b, nil
}

func (s *MemoryStore) List(ctx context.Context, filter Filter) ([]Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var budgets []Budget
	for _, b := range s.budgets {
		if !filter.EventID.IsZero() && b.EventID != filter.EventID {
			continue
		}
		if filter.Status != "" && b.Status != filter.Status {
			continue
		}
		budgets = append(budgets, b)
	}
	sort.Slice(budgets, func(i, j int) bool {
		return budgets[i].CreatedAt.After(budgets[j].CreatedAt)
	})
	return budgets, nil
}

func (s *MemoryStore) Delete(ctx context.Context, budgetID id.BudgetID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.budgets[budgetID]; !ok {
		return ErrNotFound
	}
	delete(s.budgets, budgetID)
	for itemID, item := range s.items {
		if item.BudgetID != budgetID {
			continue
		}
		delete(s.items, itemID)
		for eid, e := range s.expenditures {
			if e.ItemID == itemID {
				delete(s.expenditures, eid)
			}
		}
	}
	return nil
}

func (s *MemoryStore) InsertItem(ctx context.Context, item Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.ID] = item
	return nil
}

func (s *MemoryStore) UpdateItem(ctx context.Context, item Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[item.ID]; !ok {
		return ErrNotFound
	}
	s.items[item.ID] = item
	return nil
}

func (s *MemoryStore) FindItem(ctx context.Context, itemID id.BudgetItemID) (Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[itemID]
	if !ok {
		return Item{}, ErrNotFound
	}
	return item, nil
}

func (s *MemoryStore) ItemsFor(ctx context.Context, budgetID id.BudgetID) ([]Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var items []Item
	for _, item := range s.items {
		if item.BudgetID == budgetID {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Category != items[j].Category {
			return items[i].Category < items[j].Category
		}
		return items[i].ItemNumber < items[j].ItemNumber
	})
	return items, nil
}

func (s *MemoryStore) DeleteItem(ctx context.Context, itemID id.BudgetItemID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[itemID]; !ok {
		return ErrNotFound
	}
	delete(s.items, itemID)
	for eid, e := range s.expenditures {
		if e.ItemID == itemID {
			delete(s.expenditures, eid)
		}
	}
	return nil
}

func (s *MemoryStore) InsertExpenditure(ctx context.Context, e Expenditure) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expenditures[e.ID] = e
	return nil
}

func (s *MemoryStore) UpdateExpenditure(ctx context.Context, e Expenditure) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.expenditures[e.ID]
	if !ok {
		return ErrNotFound
	}
	existing.Status = e.Status
	existing.ApprovedBy = e.ApprovedBy
	existing.ApprovedAt = e.ApprovedAt
	existing.RejectionReason = e.RejectionReason
	s.expenditures[e.ID] = existing
	return nil
}

func (s *MemoryStore) FindExpenditure(ctx context.Context, expenditureID id.ExpenditureID) (Expenditure, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.expenditures[expenditureID]
	if !ok {
		return Expenditure{}, ErrNotFound
	}
	return e, nil
}

func (s *MemoryStore) ExpendituresFor(ctx context.Context, itemID id.BudgetItemID) ([]Expenditure, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var expenditures []Expenditure
	for _, e := range s.expenditures {
		if e.ItemID == itemID {
			expenditures = append(expenditures, e)
		}
	}
	sort.Slice(expenditures, func(i, j int) bool {
		if !expenditures[i].SpentOn.Equal(expenditures[j].SpentOn) {
			return expenditures[i].SpentOn.Before(expenditures[j].SpentOn)
		}
		return expenditures[i].CreatedAt.Before(expenditures[j].CreatedAt)
	})
	return expenditures, nil
}
