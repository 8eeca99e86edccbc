package budget

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"kayo/internal/audit"
	"kayo/internal/auth"
	"kayo/internal/platform/metrics"
	id "kayo/pkg/domain"
	dErrors "kayo/pkg/domain-errors"
	"kayo/pkg/requestcontext"
)

const dateLayout = "2006-01-02"

// Service manages event budgets, their line items and the expenditure
// approval flow.
type Service struct {
	store   Store
	logger  *slog.Logger
	metrics *metrics.Metrics
	audit   audit.Recorder
}

func NewService(store Store, logger *slog.Logger, m *metrics.Metrics, recorder audit.Recorder) *Service {
	if recorder == nil {
		recorder = audit.NopRecorder{}
	}
	return &Service{store: store, logger: logger, metrics: m, audit: recorder}
}

func (s *Service) CreateBudget(ctx context.Context, req CreateBudgetRequest) (Budget, error) {
	b, err := s.newBudget(ctx, req.Name, req.Description, req.EventID)
	if err != nil {
		return Budget{}, err
	}
	if err := s.store.Insert(ctx, b); err != nil {
		return Budget{}, fmt.Errorf("create budget: %w", err)
	}
	s.audit.Record(ctx, audit.Entry{
		Action:       audit.ActionCreate,
		ResourceType: "budget",
		ResourceID:   b.ID.String(),
		Description:  "budget " + b.Name,
	})
	return b, nil
}

// ImportBudget parses a CSV document into line items and creates the
// budget in one shot. Items land pre-categorized from header keywords
// so treasurers only review rather than retype.
func (s *Service) ImportBudget(ctx context.Context, req ImportBudgetRequest) (BudgetDetail, error) {
	b, err := s.newBudget(ctx, req.Name, req.Description, req.EventID)
	if err != nil {
		return BudgetDetail{}, err
	}

	parsed, err := ParseCSV(strings.NewReader(req.CSV))
	if err != nil {
		return BudgetDetail{}, err
	}
	if len(parsed) == 0 {
		return BudgetDetail{}, dErrors.New(dErrors.CodeValidation, "no budget items could be extracted from the file")
	}

	now := requestcontext.Now(ctx)
	items := make([]Item, 0, len(parsed))
	for _, p := range parsed {
		item := Item{
			ID:            id.NewBudgetItemID(),
			BudgetID:      b.ID,
			ItemNumber:    p.ItemNumber,
			Category:      p.Category,
			Name:          p.Name,
			Description:   p.Description,
			Quantity:      p.Quantity,
			Unit:          p.Unit,
			UnitCostCents: p.UnitCostCents,
			BudgetedCents: p.BudgetedCents,
			Status:        ItemPending,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		b.TotalBudgetedCents += item.BudgetedCents
		items = append(items, item)
	}

	if err := s.store.Insert(ctx, b); err != nil {
		return BudgetDetail{}, fmt.Errorf("create budget: %w", err)
	}
	for _, item := range items {
		if err := s.store.InsertItem(ctx, item); err != nil {
			return BudgetDetail{}, fmt.Errorf("insert imported item: %w", err)
		}
	}
	s.audit.Record(ctx, audit.Entry{
		Action:       audit.ActionCreate,
		ResourceType: "budget",
		ResourceID:   b.ID.String(),
		Description:  fmt.Sprintf("budget %s imported with %d items", b.Name, len(items)),
	})
	return BudgetDetail{Budget: b, Items: items}, nil
}

func (s *Service) newBudget(ctx context.Context, name, description, rawEventID string) (Budget, error) {
	if strings.TrimSpace(name) == "" {
		return Budget{}, dErrors.New(dErrors.CodeValidation, "budget name is required")
	}
	b := Budget{
		ID:          id.NewBudgetID(),
		Name:        strings.TrimSpace(name),
		Description: strings.TrimSpace(description),
		Status:      BudgetDraft,
		CreatedBy:   requestcontext.UserID(ctx),
		CreatedAt:   requestcontext.Now(ctx),
		UpdatedAt:   requestcontext.Now(ctx),
	}
	if rawEventID != "" {
		eventID, err := id.ParseEventID(rawEventID)
		if err != nil {
			return Budget{}, err
		}
		b.EventID = eventID
	}
	return b, nil
}

func (s *Service) ListBudgets(ctx context.Context, filter Filter) ([]Budget, error) {
	return s.store.List(ctx, filter)
}

func (s *Service) GetBudget(ctx context.Context, budgetID id.BudgetID) (BudgetDetail, error) {
	b, err := s.store.FindByID(ctx, budgetID)
	if err != nil {
		return BudgetDetail{}, err
	}
	items, err := s.store.ItemsFor(ctx, budgetID)
	if err != nil {
		return BudgetDetail{}, err
	}
	return BudgetDetail{Budget: b, Items: items}, nil
}

func (s *Service) UpdateBudget(ctx context.Context, budgetID id.BudgetID, req UpdateBudgetRequest) (Budget, error) {
	b, err := s.store.FindByID(ctx, budgetID)
	if err != nil {
		return Budget{}, err
	}
	if strings.TrimSpace(req.Name) != "" {
		b.Name = strings.TrimSpace(req.Name)
	}
	b.Description = strings.TrimSpace(req.Description)
	if req.EventID != "" {
		eventID, err := id.ParseEventID(req.EventID)
		if err != nil {
			return Budget{}, err
		}
		b.EventID = eventID
	}
	b.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.Update(ctx, b); err != nil {
		return Budget{}, err
	}
	s.audit.Record(ctx, audit.Entry{
		Action:       audit.ActionUpdate,
		ResourceType: "budget",
		ResourceID:   b.ID.String(),
	})
	return b, nil
}

func (s *Service) DeleteBudget(ctx context.Context, budgetID id.BudgetID) error {
	b, err := s.store.FindByID(ctx, budgetID)
	if err != nil {
		return err
	}
	if b.Status == BudgetActive && b.TotalSpentCents > 0 {
		return dErrors.New(dErrors.CodeConflict, "cannot delete an active budget with recorded expenditures")
	}
	if err := s.store.Delete(ctx, budgetID); err != nil {
		return err
	}
	s.audit.Record(ctx, audit.Entry{
		Action:       audit.ActionDelete,
		ResourceType: "budget",
		ResourceID:   budgetID.String(),
		Description:  "budget " + b.Name,
	})
	return nil
}

// ActivateBudget approves the plan and opens it for expenditure
// recording.
func (s *Service) ActivateBudget(ctx context.Context, budgetID id.BudgetID) (Budget, error) {
	b, err := s.store.FindByID(ctx, budgetID)
	if err != nil {
		return Budget{}, err
	}
	if b.Status != BudgetDraft {
		return Budget{}, dErrors.Newf(dErrors.CodeConflict, "budget is %s", b.Status)
	}
	items, err := s.store.ItemsFor(ctx, budgetID)
	if err != nil {
		return Budget{}, err
	}
	if len(items) == 0 {
		return Budget{}, dErrors.New(dErrors.CodeValidation, "cannot activate a budget with no items")
	}

	now := requestcontext.Now(ctx)
	b.Status = BudgetActive
	b.ApprovedBy = requestcontext.UserID(ctx)
	b.ApprovedAt = &now
	b.UpdatedAt = now
	if err := s.store.Update(ctx, b); err != nil {
		return Budget{}, err
	}
	s.audit.Record(ctx, audit.Entry{
		Action:       audit.ActionApprove,
		ResourceType: "budget",
		ResourceID:   b.ID.String(),
		Description:  "budget " + b.Name + " activated",
	})
	return b, nil
}

func (s *Service) CloseBudget(ctx context.Context, budgetID id.BudgetID) (Budget, error) {
	b, err := s.store.FindByID(ctx, budgetID)
	if err != nil {
		return Budget{}, err
	}
	if b.Status != BudgetActive {
		return Budget{}, dErrors.Newf(dErrors.CodeConflict, "budget is %s", b.Status)
	}
	b.Status = BudgetClosed
	b.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.Update(ctx, b); err != nil {
		return Budget{}, err
	}
	s.audit.Record(ctx, audit.Entry{
		Action:       audit.ActionUpdate,
		ResourceType: "budget",
		ResourceID:   b.ID.String(),
		Description:  "budget " + b.Name + " closed",
	})
	return b, nil
}

func (s *Service) AddItem(ctx context.Context, budgetID id.BudgetID, req ItemRequest) (Item, error) {
	b, err := s.store.FindByID(ctx, budgetID)
	if err != nil {
		return Item{}, err
	}
	if b.Status == BudgetClosed {
		return Item{}, dErrors.New(dErrors.CodeConflict, "budget is closed")
	}
	if strings.TrimSpace(req.Name) == "" {
		return Item{}, dErrors.New(dErrors.CodeValidation, "item name is required")
	}

	quantity := req.Quantity
	if quantity <= 0 {
		quantity = 1
	}
	budgeted := req.BudgetedCents
	if budgeted == 0 && req.UnitCostCents > 0 {
		budgeted = int64(math.Round(quantity * float64(req.UnitCostCents)))
	}
	if budgeted <= 0 {
		return Item{}, dErrors.New(dErrors.CodeValidation, "item needs a positive budgeted amount")
	}
	category := strings.ToLower(strings.TrimSpace(req.Category))
	if !ValidCategory(category) {
		category = Categorize(req.Name, req.Description)
	}

	existing, err := s.store.ItemsFor(ctx, budgetID)
	if err != nil {
		return Item{}, err
	}

	now := requestcontext.Now(ctx)
	item := Item{
		ID:            id.NewBudgetItemID(),
		BudgetID:      budgetID,
		ItemNumber:    len(existing) + 1,
		Category:      category,
		Name:          strings.TrimSpace(req.Name),
		Description:   strings.TrimSpace(req.Description),
		Quantity:      quantity,
		Unit:          strings.TrimSpace(req.Unit),
		UnitCostCents: req.UnitCostCents,
		BudgetedCents: budgeted,
		Status:        ItemPending,
		Notes:         strings.TrimSpace(req.Notes),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.InsertItem(ctx, item); err != nil {
		return Item{}, fmt.Errorf("add budget item: %w", err)
	}
	if err := s.refreshBudgetTotals(ctx, budgetID); err != nil {
		return Item{}, err
	}
	return item, nil
}

func (s *Service) GetItem(ctx context.Context, itemID id.BudgetItemID) (ItemDetail, error) {
	item, err := s.store.FindItem(ctx, itemID)
	if err != nil {
		return ItemDetail{}, err
	}
	expenditures, err := s.store.ExpendituresFor(ctx, itemID)
	if err != nil {
		return ItemDetail{}, err
	}
	return ItemDetail{Item: item, Expenditures: expenditures}, nil
}

func (s *Service) UpdateItemStatus(ctx context.Context, itemID id.BudgetItemID, status string) (Item, error) {
	switch status {
	case ItemPending, ItemInProgress, ItemCompleted, ItemCancelled:
	default:
		return Item{}, dErrors.Newf(dErrors.CodeValidation, "unknown item status %q", status)
	}
	item, err := s.store.FindItem(ctx, itemID)
	if err != nil {
		return Item{}, err
	}
	item.Status = status
	item.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.UpdateItem(ctx, item); err != nil {
		return Item{}, err
	}
	return item, nil
}

func (s *Service) DeleteItem(ctx context.Context, itemID id.BudgetItemID) error {
	item, err := s.store.FindItem(ctx, itemID)
	if err != nil {
		return err
	}
	if item.ActualSpentCents > 0 {
		return dErrors.New(dErrors.CodeConflict, "cannot delete an item with recorded expenditures")
	}
	if err := s.store.DeleteItem(ctx, itemID); err != nil {
		return err
	}
	return s.refreshBudgetTotals(ctx, item.BudgetID)
}

// RecordExpenditure books spending against an item. Admins record
// pre-approved; everyone else waits for review.
func (s *Service) RecordExpenditure(ctx context.Context, itemID id.BudgetItemID, req RecordExpenditureRequest) (Expenditure, error) {
	item, err := s.store.FindItem(ctx, itemID)
	if err != nil {
		return Expenditure{}, err
	}
	b, err := s.store.FindByID(ctx, item.BudgetID)
	if err != nil {
		return Expenditure{}, err
	}
	if b.Status != BudgetActive {
		return Expenditure{}, dErrors.New(dErrors.CodeConflict, "cannot record expenditures on an inactive budget")
	}
	if req.AmountCents <= 0 {
		return Expenditure{}, dErrors.New(dErrors.CodeValidation, "amount must be positive")
	}
	if strings.TrimSpace(req.Description) == "" {
		return Expenditure{}, dErrors.New(dErrors.CodeValidation, "description is required")
	}
	spentOn, err := time.Parse(dateLayout, req.SpentOn)
	if err != nil {
		return Expenditure{}, dErrors.New(dErrors.CodeValidation, "spent_on must be YYYY-MM-DD")
	}

	now := requestcontext.Now(ctx)
	e := Expenditure{
		ID:          id.NewExpenditureID(),
		ItemID:      itemID,
		SpentOn:     spentOn,
		Description: strings.TrimSpace(req.Description),
		AmountCents: req.AmountCents,
		Method:      strings.TrimSpace(req.Method),
		Reference:   strings.TrimSpace(req.Reference),
		Vendor:      strings.TrimSpace(req.Vendor),
		Status:      ExpenditurePending,
		RecordedBy:  requestcontext.UserID(ctx),
		CreatedAt:   now,
	}
	switch requestcontext.Role(ctx) {
	case auth.RoleAdmin, auth.RoleSuperAdmin:
		e.Status = ExpenditureApproved
		e.ApprovedBy = e.RecordedBy
		e.ApprovedAt = &now
	}

	if err := s.store.InsertExpenditure(ctx, e); err != nil {
		return Expenditure{}, fmt.Errorf("record expenditure: %w", err)
	}
	if item.Status == ItemPending {
		item.Status = ItemInProgress
		item.UpdatedAt = now
		if err := s.store.UpdateItem(ctx, item); err != nil {
			return Expenditure{}, err
		}
	}
	if err := s.refreshItemSpend(ctx, itemID); err != nil {
		return Expenditure{}, err
	}
	if s.metrics != nil {
		s.metrics.ExpendituresRecorded.Inc()
	}
	s.audit.Record(ctx, audit.Entry{
		Action:       audit.ActionCreate,
		ResourceType: "expenditure",
		ResourceID:   e.ID.String(),
		Description:  fmt.Sprintf("%d cents against %s", e.AmountCents, item.Name),
	})
	return e, nil
}

func (s *Service) ApproveExpenditure(ctx context.Context, expenditureID id.ExpenditureID) (Expenditure, error) {
	e, err := s.store.FindExpenditure(ctx, expenditureID)
	if err != nil {
		return Expenditure{}, err
	}
	if e.Status != ExpenditurePending {
		return Expenditure{}, dErrors.Newf(dErrors.CodeConflict, "expenditure is %s", e.Status)
	}
	now := requestcontext.Now(ctx)
	e.Status = ExpenditureApproved
	e.ApprovedBy = requestcontext.UserID(ctx)
	e.ApprovedAt = &now
	if err := s.store.UpdateExpenditure(ctx, e); err != nil {
		return Expenditure{}, err
	}
	if err := s.refreshItemSpend(ctx, e.ItemID); err != nil {
		return Expenditure{}, err
	}
	s.audit.Record(ctx, audit.Entry{
		Action:       audit.ActionApprove,
		ResourceType: "expenditure",
		ResourceID:   e.ID.String(),
	})
	return e, nil
}

func (s *Service) RejectExpenditure(ctx context.Context, expenditureID id.ExpenditureID, reason string) (Expenditure, error) {
	if strings.TrimSpace(reason) == "" {
		return Expenditure{}, dErrors.New(dErrors.CodeValidation, "a rejection reason is required")
	}
	e, err := s.store.FindExpenditure(ctx, expenditureID)
	if err != nil {
		return Expenditure{}, err
	}
	if e.Status != ExpenditurePending {
		return Expenditure{}, dErrors.Newf(dErrors.CodeConflict, "expenditure is %s", e.Status)
	}
	e.Status = ExpenditureRejected
	e.RejectionReason = strings.TrimSpace(reason)
	if err := s.store.UpdateExpenditure(ctx, e); err != nil {
		return Expenditure{}, err
	}
	if err := s.refreshItemSpend(ctx, e.ItemID); err != nil {
		return Expenditure{}, err
	}
	s.audit.Record(ctx, audit.Entry{
		Action:       audit.ActionReject,
		ResourceType: "expenditure",
		ResourceID:   e.ID.String(),
		Description:  e.RejectionReason,
	})
	return e, nil
}

// BudgetReport summarizes implementation progress with a per-category
// breakdown.
func (s *Service) BudgetReport(ctx context.Context, budgetID id.BudgetID) (Report, error) {
	b, err := s.store.FindByID(ctx, budgetID)
	if err != nil {
		return Report{}, err
	}
	items, err := s.store.ItemsFor(ctx, budgetID)
	if err != nil {
		return Report{}, err
	}

	report := Report{
		Budget:             b,
		TotalItems:         len(items),
		RemainingCents:     b.RemainingCents(),
		UtilizationPercent: b.UtilizationPercent(),
	}
	byCategory := make(map[string]*CategoryBreakdown)
	for _, item := range items {
		switch item.Status {
		case ItemPending:
			report.PendingItems++
		case ItemInProgress:
			report.InProgressItems++
		case ItemCompleted:
			report.CompletedItems++
		}
		cb, ok := byCategory[item.Category]
		if !ok {
			cb = &CategoryBreakdown{Category: item.Category}
			byCategory[item.Category] = cb
		}
		cb.Items++
		cb.BudgetedCents += item.BudgetedCents
		cb.SpentCents += item.ActualSpentCents
	}
	for _, category := range Categories {
		if cb, ok := byCategory[category]; ok {
			report.Categories = append(report.Categories, *cb)
		}
	}
	return report, nil
}

// refreshItemSpend recomputes an item's approved spend and cascades
// into the budget totals.
func (s *Service) refreshItemSpend(ctx context.Context, itemID id.BudgetItemID) error {
	item, err := s.store.FindItem(ctx, itemID)
	if err != nil {
		return err
	}
	expenditures, err := s.store.ExpendituresFor(ctx, itemID)
	if err != nil {
		return err
	}
	var spent int64
	for _, e := range expenditures {
		if e.Status == ExpenditureApproved {
			spent += e.AmountCents
		}
	}
	item.ActualSpentCents = spent
	item.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.UpdateItem(ctx, item); err != nil {
		return err
	}
	return s.refreshBudgetTotals(ctx, item.BudgetID)
}

func (s *Service) refreshBudgetTotals(ctx context.Context, budgetID id.BudgetID) error {
	b, err := s.store.FindByID(ctx, budgetID)
	if err != nil {
		return err
	}
	items, err := s.store.ItemsFor(ctx, budgetID)
	if err != nil {
		return err
	}
	b.TotalBudgetedCents = 0
	b.TotalSpentCents = 0
	for _, item := range items {
		b.TotalBudgetedCents += item.BudgetedCents
		b.TotalSpentCents += item.ActualSpentCents
	}
	b.UpdatedAt = requestcontext.Now(ctx)
	return s.store.Update(ctx, b)
}
