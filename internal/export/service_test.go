package export

import (
	"context"
	"encoding/csv"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"kayo/internal/audit"
	"kayo/internal/budget"
	"kayo/internal/delegate"
	"kayo/internal/ledger"
	"kayo/internal/payment"
	id "kayo/pkg/domain"
)

type delegateStub struct {
	delegates []delegate.Delegate
}

func (s delegateStub) List(context.Context, delegate.Filter) ([]delegate.Delegate, error) {
	return s.delegates, nil
}

type paymentStub struct {
	payments []payment.Payment
}

func (s paymentStub) List(context.Context, payment.Filter) ([]payment.Payment, error) {
	return s.payments, nil
}

type ledgerStub struct {
	accounts []ledger.Account
	entries  []ledger.JournalEntry
	vouchers []ledger.Voucher
}

func (s ledgerStub) ListAccounts(context.Context, bool) ([]ledger.Account, error) {
	return s.accounts, nil
}

func (s ledgerStub) ListEntries(context.Context, ledger.JournalFilter) ([]ledger.JournalEntry, error) {
	return s.entries, nil
}

func (s ledgerStub) GetEntry(_ context.Context, entryID id.EntryID) (ledger.JournalEntry, error) {
	for _, e := range s.entries {
		if e.ID == entryID {
			return e, nil
		}
	}
	return ledger.JournalEntry{}, ledger.ErrNotFound
}

func (s ledgerStub) ListVouchers(context.Context, ledger.VoucherFilter) ([]ledger.Voucher, error) {
	return s.vouchers, nil
}

type budgetStub struct {
	detail budget.BudgetDetail
}

func (s budgetStub) GetBudget(context.Context, id.BudgetID) (budget.BudgetDetail, error) {
	return s.detail, nil
}

type ServiceSuite struct {
	suite.Suite

	now time.Time
}

func (s *ServiceSuite) SetupTest() {
	s.now = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
}

func (s *ServiceSuite) render(service *Service, write func(*Service, *strings.Builder) (int, error)) (int, [][]string) {
	var out strings.Builder
	rows, err := write(service, &out)
	s.Require().NoError(err)
	records, err := csv.NewReader(strings.NewReader(out.String())).ReadAll()
	s.Require().NoError(err)
	return rows, records
}

func (s *ServiceSuite) TestDelegates() {
	delegates := delegateStub{delegates: []delegate.Delegate{
		{
			Name: "Achieng Odhiambo", LocalChurch: "St. Peter's", Parish: "Nambale",
			Archdeaconry: "Nambale", PhoneNumber: "+254712345678", Gender: "female",
			Category: delegate.CategoryDelegate, IsPaid: true, RegisteredAt: s.now,
		},
		{Name: "Wafula Simiyu", Archdeaconry: "Butula", Category: delegate.CategoryDelegate, RegisteredAt: s.now},
	}}
	service := NewService(delegates, nil, nil, nil, slog.Default(), audit.NopRecorder{})

	rows, records := s.render(service, func(svc *Service, w *strings.Builder) (int, error) {
		return svc.Delegates(context.Background(), w, delegate.Filter{})
	})
	s.Equal(2, rows)
	s.Require().Len(records, 3)
	s.Equal("name", records[0][0])
	s.Equal("Achieng Odhiambo", records[1][0])
	s.Equal("true", records[1][8])
	s.Equal("false", records[2][8])
}

func (s *ServiceSuite) TestPaymentsMoneyFormat() {
	completed := s.now.Add(time.Minute)
	payments := paymentStub{payments: []payment.Payment{{
		AmountCents: 150050, Mode: "mpesa", Status: "completed",
		FinanceStatus: "approved", MpesaReceipt: "SFI12XYZ", DelegatesCount: 3,
		CreatedAt: s.now, CompletedAt: &completed,
	}}}
	service := NewService(nil, payments, nil, nil, slog.Default(), audit.NopRecorder{})

	rows, records := s.render(service, func(svc *Service, w *strings.Builder) (int, error) {
		return svc.Payments(context.Background(), w, payment.Filter{})
	})
	s.Equal(1, rows)
	s.Require().Len(records, 2)
	s.Equal("1500.50", records[1][1])
	s.Equal("SFI12XYZ", records[1][5])
	s.Equal("3", records[1][8])
	s.Equal(completed.Format(time.RFC3339), records[1][9])
}

func (s *ServiceSuite) TestJournalEntriesExpandLines() {
	cash := ledger.Account{ID: id.NewAccountID(), Code: "1000", Name: "Cash on Hand"}
	income := ledger.Account{ID: id.NewAccountID(), Code: "4000", Name: "Registration Fees"}
	entry := ledger.JournalEntry{
		ID: id.NewEntryID(), EntryNumber: "JE-202606-0001", EntryDate: s.now,
		EntryType: ledger.EntryGeneral, Status: ledger.EntryPosted,
		Description: "Gate collections",
		Lines: []ledger.JournalLine{
			{AccountID: cash.ID, DebitCents: 250000},
			{AccountID: income.ID, CreditCents: 250000},
		},
	}
	source := ledgerStub{accounts: []ledger.Account{cash, income}, entries: []ledger.JournalEntry{entry}}
	service := NewService(nil, nil, source, nil, slog.Default(), audit.NopRecorder{})

	rows, records := s.render(service, func(svc *Service, w *strings.Builder) (int, error) {
		return svc.JournalEntries(context.Background(), w, ledger.JournalFilter{})
	})
	s.Equal(2, rows)
	s.Require().Len(records, 3)
	s.Equal("JE-202606-0001", records[1][0])
	s.Equal("1000", records[1][6])
	s.Equal("Cash on Hand", records[1][7])
	s.Equal("2500.00", records[1][9])
	s.Equal("0.00", records[1][10])
	s.Equal("2500.00", records[2][10])
}

func (s *ServiceSuite) TestBudgetItemsVariance() {
	detail := budget.BudgetDetail{Items: []budget.Item{{
		ItemNumber: 1, Category: "venue", Name: "Conference hall hire",
		Quantity: 2, Unit: "days", UnitCostCents: 500000,
		BudgetedCents: 1000000, ActualSpentCents: 1250000,
		Status: budget.ItemCompleted,
	}}}
	service := NewService(nil, nil, nil, budgetStub{detail: detail}, slog.Default(), audit.NopRecorder{})

	rows, records := s.render(service, func(svc *Service, w *strings.Builder) (int, error) {
		return svc.BudgetItems(context.Background(), w, id.NewBudgetID())
	})
	s.Equal(1, rows)
	s.Require().Len(records, 2)
	s.Equal("2", records[1][4])
	s.Equal("10000.00", records[1][7])
	s.Equal("-2500.00", records[1][9])
}

func (s *ServiceSuite) TestVouchers() {
	source := ledgerStub{vouchers: []ledger.Voucher{{
		VoucherNumber: "PV-202606-0001", VoucherType: ledger.VoucherPayment,
		VoucherDate: s.now, PayeeName: "Busia Sound Ltd", AmountCents: 1200000,
		Narration: "PA system hire", Status: "paid",
	}}}
	service := NewService(nil, nil, source, nil, slog.Default(), audit.NopRecorder{})

	rows, records := s.render(service, func(svc *Service, w *strings.Builder) (int, error) {
		return svc.Vouchers(context.Background(), w, ledger.VoucherFilter{})
	})
	s.Equal(1, rows)
	s.Require().Len(records, 2)
	s.Equal("PV-202606-0001", records[1][0])
	s.Equal("2026-06-01", records[1][2])
	s.Equal("12000.00", records[1][4])
}

func (s *ServiceSuite) TestMoney() {
	s.Equal("0.05", money(5))
	s.Equal("-0.05", money(-5))
	s.Equal("10.00", money(1000))
	s.Equal("1234.56", money(123456))
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}
