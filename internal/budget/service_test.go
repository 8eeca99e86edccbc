package budget

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"kayo/internal/audit"
	"kayo/internal/auth"
	id "kayo/pkg/domain"
	dErrors "kayo/pkg/domain-errors"
	"kayo/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite

	store   *MemoryStore
	service *Service
	now     time.Time

	finance auth.User
	admin   auth.User
}

func (s *ServiceSuite) SetupTest() {
	s.store = NewMemoryStore()
	s.now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	s.finance = auth.User{ID: id.NewUserID(), Name: "Esther", Role: auth.RoleFinance}
	s.admin = auth.User{ID: id.NewUserID(), Name: "Otieno", Role: auth.RoleAdmin}
	s.service = NewService(s.store, slog.Default(), nil, audit.NopRecorder{})
}

func (s *ServiceSuite) ctxAs(u auth.User) context.Context {
	ctx := requestcontext.WithTime(context.Background(), s.now)
	ctx = requestcontext.WithUserID(ctx, u.ID)
	return requestcontext.WithRole(ctx, u.Role)
}

func (s *ServiceSuite) activeBudget() Budget {
	ctx := s.ctxAs(s.finance)
	b, err := s.service.CreateBudget(ctx, CreateBudgetRequest{Name: "Annual Conference 2026"})
	s.Require().NoError(err)
	_, err = s.service.AddItem(ctx, b.ID, ItemRequest{
		Name: "Conference hall hire", Quantity: 3, Unit: "days", UnitCostCents: 2000000,
	})
	s.Require().NoError(err)
	activated, err := s.service.ActivateBudget(ctx, b.ID)
	s.Require().NoError(err)
	return activated
}

func (s *ServiceSuite) firstItem(budgetID id.BudgetID) Item {
	items, err := s.store.ItemsFor(context.Background(), budgetID)
	s.Require().NoError(err)
	s.Require().NotEmpty(items)
	return items[0]
}

func (s *ServiceSuite) TestCreateBudgetRequiresName() {
	_, err := s.service.CreateBudget(s.ctxAs(s.finance), CreateBudgetRequest{Name: "  "})
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestAddItemComputesAmount() {
	ctx := s.ctxAs(s.finance)
	b, err := s.service.CreateBudget(ctx, CreateBudgetRequest{Name: "Camp"})
	s.Require().NoError(err)

	item, err := s.service.AddItem(ctx, b.ID, ItemRequest{
		Name: "Tents for the venue", Quantity: 10, UnitCostCents: 150000,
	})
	s.Require().NoError(err)
	s.Equal(int64(1500000), item.BudgetedCents)
	s.Equal("venue", item.Category)
	s.Equal(1, item.ItemNumber)

	updated, err := s.store.FindByID(ctx, b.ID)
	s.Require().NoError(err)
	s.Equal(int64(1500000), updated.TotalBudgetedCents)
}

func (s *ServiceSuite) TestActivateRequiresItems() {
	ctx := s.ctxAs(s.finance)
	b, err := s.service.CreateBudget(ctx, CreateBudgetRequest{Name: "Empty"})
	s.Require().NoError(err)

	_, err = s.service.ActivateBudget(ctx, b.ID)
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestActivateSetsApprover() {
	b := s.activeBudget()
	s.Equal(BudgetActive, b.Status)
	s.Equal(s.finance.ID, b.ApprovedBy)
	s.Require().NotNil(b.ApprovedAt)

	// Second activation is a conflict.
	_, err := s.service.ActivateBudget(s.ctxAs(s.finance), b.ID)
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeConflict))
}

func (s *ServiceSuite) TestImportBudgetFromCSV() {
	csv := strings.Join([]string{
		"Item,Description,Qty,Unit,Rate,Total",
		"Conference hall hire,Main venue,3,days,\"20,000\",\"60,000\"",
		"Bus transport,To and from Busia,2,trips,15000,",
		"Lunch and tea,All delegates,200,persons,350,70000",
		",,1,,500,500",
		"Banners and badges,,100,pieces,,0",
	}, "\n")

	detail, err := s.service.ImportBudget(s.ctxAs(s.finance), ImportBudgetRequest{
		Name: "Conference 2026", CSV: csv,
	})
	s.Require().NoError(err)
	// Rows without a name or amount are dropped.
	s.Require().Len(detail.Items, 3)

	hall := detail.Items[0]
	s.Equal("Conference hall hire", hall.Name)
	s.Equal("venue", hall.Category)
	s.Equal(int64(6000000), hall.BudgetedCents)

	// Amount falls back to quantity times rate.
	bus := detail.Items[1]
	s.Equal("transport", bus.Category)
	s.Equal(int64(3000000), bus.BudgetedCents)

	lunch := detail.Items[2]
	s.Equal("catering", lunch.Category)
	s.Equal(int64(7000000), lunch.BudgetedCents)

	s.Equal(int64(16000000), detail.Budget.TotalBudgetedCents)
}

func (s *ServiceSuite) TestImportRejectsEmptyFile() {
	_, err := s.service.ImportBudget(s.ctxAs(s.finance), ImportBudgetRequest{
		Name: "Nothing", CSV: "Item,Amount\n",
	})
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestExpenditureApprovalFlow() {
	b := s.activeBudget()
	item := s.firstItem(b.ID)
	financeCtx := s.ctxAs(s.finance)

	e, err := s.service.RecordExpenditure(financeCtx, item.ID, RecordExpenditureRequest{
		SpentOn: "2026-06-02", Description: "Hall deposit", AmountCents: 1000000, Method: "mpesa",
	})
	s.Require().NoError(err)
	s.Equal(ExpenditurePending, e.Status)

	// Pending spend does not count.
	item = s.firstItem(b.ID)
	s.Zero(item.ActualSpentCents)
	s.Equal(ItemInProgress, item.Status)

	approved, err := s.service.ApproveExpenditure(s.ctxAs(s.admin), e.ID)
	s.Require().NoError(err)
	s.Equal(ExpenditureApproved, approved.Status)
	s.Equal(s.admin.ID, approved.ApprovedBy)

	item = s.firstItem(b.ID)
	s.Equal(int64(1000000), item.ActualSpentCents)
	updated, err := s.store.FindByID(financeCtx, b.ID)
	s.Require().NoError(err)
	s.Equal(int64(1000000), updated.TotalSpentCents)

	_, err = s.service.ApproveExpenditure(s.ctxAs(s.admin), e.ID)
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeConflict))
}

func (s *ServiceSuite) TestAdminExpenditureAutoApproves() {
	b := s.activeBudget()
	item := s.firstItem(b.ID)

	e, err := s.service.RecordExpenditure(s.ctxAs(s.admin), item.ID, RecordExpenditureRequest{
		SpentOn: "2026-06-03", Description: "Balance payment", AmountCents: 500000,
	})
	s.Require().NoError(err)
	s.Equal(ExpenditureApproved, e.Status)
	s.Equal(s.admin.ID, e.ApprovedBy)

	item = s.firstItem(b.ID)
	s.Equal(int64(500000), item.ActualSpentCents)
}

func (s *ServiceSuite) TestRejectExpenditure() {
	b := s.activeBudget()
	item := s.firstItem(b.ID)

	e, err := s.service.RecordExpenditure(s.ctxAs(s.finance), item.ID, RecordExpenditureRequest{
		SpentOn: "2026-06-02", Description: "Duplicate receipt", AmountCents: 200000,
	})
	s.Require().NoError(err)

	_, err = s.service.RejectExpenditure(s.ctxAs(s.admin), e.ID, "")
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeValidation))

	rejected, err := s.service.RejectExpenditure(s.ctxAs(s.admin), e.ID, "receipt already booked")
	s.Require().NoError(err)
	s.Equal(ExpenditureRejected, rejected.Status)

	item = s.firstItem(b.ID)
	s.Zero(item.ActualSpentCents)
}

func (s *ServiceSuite) TestExpenditureNeedsActiveBudget() {
	ctx := s.ctxAs(s.finance)
	b, err := s.service.CreateBudget(ctx, CreateBudgetRequest{Name: "Draft plan"})
	s.Require().NoError(err)
	item, err := s.service.AddItem(ctx, b.ID, ItemRequest{Name: "Posters", BudgetedCents: 50000})
	s.Require().NoError(err)

	_, err = s.service.RecordExpenditure(ctx, item.ID, RecordExpenditureRequest{
		SpentOn: "2026-06-02", Description: "Print run", AmountCents: 40000,
	})
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeConflict))
}

func (s *ServiceSuite) TestDeleteGuards() {
	b := s.activeBudget()
	item := s.firstItem(b.ID)
	adminCtx := s.ctxAs(s.admin)

	_, err := s.service.RecordExpenditure(adminCtx, item.ID, RecordExpenditureRequest{
		SpentOn: "2026-06-02", Description: "Deposit", AmountCents: 100000,
	})
	s.Require().NoError(err)

	err = s.service.DeleteItem(adminCtx, item.ID)
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeConflict))

	err = s.service.DeleteBudget(adminCtx, b.ID)
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeConflict))
}

func (s *ServiceSuite) TestBudgetReport() {
	b := s.activeBudget()
	ctx := s.ctxAs(s.finance)
	hall := s.firstItem(b.ID)
	_, err := s.service.AddItem(ctx, b.ID, ItemRequest{
		Name: "Bus hire for delegates", Quantity: 2, UnitCostCents: 1000000,
	})
	s.Require().NoError(err)

	_, err = s.service.RecordExpenditure(s.ctxAs(s.admin), hall.ID, RecordExpenditureRequest{
		SpentOn: "2026-06-02", Description: "Hall deposit", AmountCents: 3000000,
	})
	s.Require().NoError(err)

	report, err := s.service.BudgetReport(ctx, b.ID)
	s.Require().NoError(err)
	s.Equal(2, report.TotalItems)
	s.Equal(1, report.PendingItems)
	s.Equal(1, report.InProgressItems)
	s.Equal(int64(8000000), report.Budget.TotalBudgetedCents)
	s.Equal(int64(3000000), report.Budget.TotalSpentCents)
	s.Equal(int64(5000000), report.RemainingCents)
	s.InDelta(37.5, report.UtilizationPercent, 0.01)

	s.Require().Len(report.Categories, 2)
	s.Equal("transport", report.Categories[0].Category)
	s.Equal("venue", report.Categories[1].Category)
	s.Equal(int64(6000000), report.Categories[1].BudgetedCents)
	s.Equal(int64(3000000), report.Categories[1].SpentCents)
}

func (s *ServiceSuite) TestCategorize() {
	s.Equal("catering", Categorize("Lunch for delegates", ""))
	s.Equal("equipment", Categorize("Sound system", "PA and speakers"))
	s.Equal("other", Categorize("Gifts", ""))
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}
