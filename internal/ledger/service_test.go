package ledger

import (
	"context"
	"log/slog"
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

	accounts *MemoryAccountStore
	journal  *MemoryJournalStore
	vouchers *MemoryVoucherStore
	service  *Service
	now      time.Time

	finance auth.User
	ctx     context.Context
}

func (s *ServiceSuite) SetupTest() {
	s.accounts = NewMemoryAccountStore()
	s.journal = NewMemoryJournalStore()
	s.vouchers = NewMemoryVoucherStore()
	s.now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	s.finance = auth.User{ID: id.NewUserID(), Name: "Esther", Role: auth.RoleFinance}

	s.service = NewService(s.accounts, s.journal, s.vouchers, slog.Default(), nil, audit.NopRecorder{})

	ctx := requestcontext.WithTime(context.Background(), s.now)
	ctx = requestcontext.WithUserID(ctx, s.finance.ID)
	s.ctx = requestcontext.WithRole(ctx, s.finance.Role)

	s.Require().NoError(s.service.SeedChart(s.ctx))
}

func (s *ServiceSuite) account(code string) Account {
	a, err := s.accounts.FindByCode(context.Background(), code)
	s.Require().NoError(err)
	return a
}

func (s *ServiceSuite) TestSeedIsIdempotent() {
	before, err := s.accounts.Count(context.Background())
	s.Require().NoError(err)
	s.Require().NoError(s.service.SeedChart(s.ctx))
	after, err := s.accounts.Count(context.Background())
	s.Require().NoError(err)
	s.Equal(before, after)

	cash := s.account(CodeCashInHand)
	s.True(cash.IsSystem)
	s.Equal(BalanceDebit, cash.NormalBalance)
	income := s.account(CodeRegistration)
	s.Equal(BalanceCredit, income.NormalBalance)
}

func (s *ServiceSuite) TestCreateAccountDuplicateCode() {
	_, err := s.service.CreateAccount(s.ctx, CreateAccountRequest{
		Code: CodeCashInHand, Name: "Another Cash", AccountType: TypeAsset,
	})
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeConflict))
}

func (s *ServiceSuite) TestSystemAccountStaysActive() {
	cash := s.account(CodeCashInHand)
	_, err := s.service.DeactivateAccount(s.ctx, cash.ID)
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeConflict))
}

func (s *ServiceSuite) entryFor(debitCode, creditCode string, amount int64) CreateEntryRequest {
	return CreateEntryRequest{
		EntryDate:   "2026-06-01",
		Description: "Manual adjustment",
		Lines: []EntryLineRequest{
			{AccountID: s.account(debitCode).ID.String(), DebitCents: amount},
			{AccountID: s.account(creditCode).ID.String(), CreditCents: amount},
		},
	}
}

func (s *ServiceSuite) TestEntryLifecycle() {
	e, err := s.service.CreateEntry(s.ctx, s.entryFor(CodeCashInHand, CodeContributions, 150000))
	s.Require().NoError(err)
	s.Equal(EntryDraft, e.Status)
	s.Equal("JE-202606-0001", e.EntryNumber)

	// Drafts touch no balances.
	s.Zero(s.account(CodeCashInHand).CurrentBalanceCents)

	posted, err := s.service.PostEntry(s.ctx, e.ID)
	s.Require().NoError(err)
	s.Equal(EntryPosted, posted.Status)
	s.Equal(s.finance.ID, posted.PostedBy)
	s.Equal(int64(150000), s.account(CodeCashInHand).CurrentBalanceCents)
	s.Equal(int64(150000), s.account(CodeContributions).CurrentBalanceCents)

	_, err = s.service.PostEntry(s.ctx, e.ID)
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeConflict))

	// Sequential numbering within the month.
	e2, err := s.service.CreateEntry(s.ctx, s.entryFor(CodeMpesaAccount, CodeRegistration, 5000))
	s.Require().NoError(err)
	s.Equal("JE-202606-0002", e2.EntryNumber)
}

func (s *ServiceSuite) TestUnbalancedEntryWillNotPost() {
	req := s.entryFor(CodeCashInHand, CodeContributions, 100000)
	req.Lines[1].CreditCents = 90000
	e, err := s.service.CreateEntry(s.ctx, req)
	s.Require().NoError(err)

	_, err = s.service.PostEntry(s.ctx, e.ID)
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeValidation))
	s.Zero(s.account(CodeCashInHand).CurrentBalanceCents)
}

func (s *ServiceSuite) TestEntryLineValidation() {
	req := s.entryFor(CodeCashInHand, CodeContributions, 1000)
	req.Lines[0].CreditCents = 1000 // both sides on one line
	_, err := s.service.CreateEntry(s.ctx, req)
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeValidation))

	req = s.entryFor(CodeCashInHand, CodeContributions, 1000)
	req.Lines = req.Lines[:1]
	_, err = s.service.CreateEntry(s.ctx, req)
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestVoidReversesBalances() {
	e, err := s.service.CreateEntry(s.ctx, s.entryFor(CodeCashInHand, CodeContributions, 80000))
	s.Require().NoError(err)
	_, err = s.service.PostEntry(s.ctx, e.ID)
	s.Require().NoError(err)

	_, err = s.service.VoidEntry(s.ctx, e.ID, "")
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeValidation))

	voided, err := s.service.VoidEntry(s.ctx, e.ID, "booked twice")
	s.Require().NoError(err)
	s.Equal(EntryVoided, voided.Status)
	s.Zero(s.account(CodeCashInHand).CurrentBalanceCents)
	s.Zero(s.account(CodeContributions).CurrentBalanceCents)
}

func (s *ServiceSuite) TestPostPaymentReceipt() {
	paymentID := id.NewPaymentID()
	s.Require().NoError(s.service.PostPaymentReceipt(s.ctx, paymentID, 300000, "Fees for 2 delegates"))

	s.Equal(int64(300000), s.account(CodeMpesaAccount).CurrentBalanceCents)
	s.Equal(int64(300000), s.account(CodeRegistration).CurrentBalanceCents)

	entries, err := s.service.ListEntries(s.ctx, JournalFilter{EntryType: EntryPayment})
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal(EntryPosted, entries[0].Status)
	s.Equal(paymentID, entries[0].PaymentID)
}

func (s *ServiceSuite) TestPostTransferReceipt() {
	s.Require().NoError(s.service.PostTransferReceipt(s.ctx, id.NewTransferID(), 2500000, "Fund transfer FT-2026-AB12CD34 received"))
	s.Equal(int64(2500000), s.account(CodeCashInHand).CurrentBalanceCents)
	s.Equal(int64(2500000), s.account(CodeContributions).CurrentBalanceCents)
}

func validVoucher() CreateVoucherRequest {
	return CreateVoucherRequest{
		VoucherType: VoucherPayment,
		VoucherDate: "2026-06-01",
		PayeeName:   "Busia Sound Hire",
		Narration:   "PA system for the conference",
		Items: []VoucherItemRequest{
			{Description: "Speakers", Quantity: 2, UnitCostCents: 500000},
			{Description: "Microphones", Quantity: 4, UnitCostCents: 50000},
		},
	}
}

func (s *ServiceSuite) TestVoucherChain() {
	v, err := s.service.CreateVoucher(s.ctx, validVoucher())
	s.Require().NoError(err)
	s.Equal("PV-202606-0001", v.VoucherNumber)
	s.Equal(VoucherDraft, v.Status)
	s.Equal(int64(1200000), v.AmountCents)
	s.Len(v.Items, 2)

	// Paying out of order fails.
	_, err = s.service.PayVoucher(s.ctx, v.ID)
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeConflict))

	submitted, err := s.service.SubmitVoucher(s.ctx, v.ID)
	s.Require().NoError(err)
	s.Equal(VoucherPendingApproval, submitted.Status)

	approved, err := s.service.ApproveVoucher(s.ctx, v.ID)
	s.Require().NoError(err)
	s.Equal(VoucherApproved, approved.Status)
	// Payment vouchers post on payout, not approval.
	s.Zero(s.account(CodeGeneralExp).CurrentBalanceCents)

	paid, err := s.service.PayVoucher(s.ctx, v.ID)
	s.Require().NoError(err)
	s.Equal(VoucherPaid, paid.Status)
	s.Equal(int64(1200000), s.account(CodeGeneralExp).CurrentBalanceCents)
	s.Equal(int64(-1200000), s.account(CodeCashInHand).CurrentBalanceCents)
}

func (s *ServiceSuite) TestReceiptVoucherPostsOnApproval() {
	req := validVoucher()
	req.VoucherType = VoucherReceipt
	req.Narration = "Harambee proceeds"
	v, err := s.service.CreateVoucher(s.ctx, req)
	s.Require().NoError(err)
	s.Equal("RV-202606-0001", v.VoucherNumber)

	_, err = s.service.SubmitVoucher(s.ctx, v.ID)
	s.Require().NoError(err)
	_, err = s.service.ApproveVoucher(s.ctx, v.ID)
	s.Require().NoError(err)

	s.Equal(int64(1200000), s.account(CodeCashInHand).CurrentBalanceCents)
	s.Equal(int64(1200000), s.account(CodeContributions).CurrentBalanceCents)
}

func (s *ServiceSuite) TestCancelVoucher() {
	v, err := s.service.CreateVoucher(s.ctx, validVoucher())
	s.Require().NoError(err)

	cancelled, err := s.service.CancelVoucher(s.ctx, v.ID)
	s.Require().NoError(err)
	s.Equal(VoucherCancelled, cancelled.Status)

	_, err = s.service.SubmitVoucher(s.ctx, v.ID)
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeConflict))
}

func (s *ServiceSuite) TestTrialBalanceBalances() {
	s.Require().NoError(s.service.PostPaymentReceipt(s.ctx, id.NewPaymentID(), 400000, "fees"))
	s.Require().NoError(s.service.PostTransferReceipt(s.ctx, id.NewTransferID(), 100000, "transfer"))

	tb, err := s.service.TrialBalanceReport(s.ctx)
	s.Require().NoError(err)
	s.Equal(tb.TotalDebitCents, tb.TotalCreditCents)
	s.Equal(int64(500000), tb.TotalDebitCents)
}

func (s *ServiceSuite) TestIncomeStatementAndBalanceSheet() {
	s.Require().NoError(s.service.PostPaymentReceipt(s.ctx, id.NewPaymentID(), 400000, "fees"))

	v, err := s.service.CreateVoucher(s.ctx, CreateVoucherRequest{
		VoucherType: VoucherPayment,
		VoucherDate: "2026-06-02",
		Narration:   "Venue deposit",
		Items:       []VoucherItemRequest{{Description: "Deposit", UnitCostCents: 150000}},
	})
	s.Require().NoError(err)
	_, err = s.service.SubmitVoucher(s.ctx, v.ID)
	s.Require().NoError(err)
	_, err = s.service.ApproveVoucher(s.ctx, v.ID)
	s.Require().NoError(err)
	_, err = s.service.PayVoucher(s.ctx, v.ID)
	s.Require().NoError(err)

	st, err := s.service.IncomeStatementReport(s.ctx, "", "")
	s.Require().NoError(err)
	s.Equal(int64(400000), st.TotalIncomeCents)
	s.Equal(int64(150000), st.TotalExpenseCents)
	s.Equal(int64(250000), st.NetCents)

	bs, err := s.service.BalanceSheetReport(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(250000), bs.NetIncomeCents)
	// Assets: 400000 in M-Pesa minus 150000 cash paid out.
	s.Equal(int64(250000), bs.TotalAssetCents)
	s.Equal(bs.TotalAssetCents, bs.TotalLiabilityCents+bs.TotalEquityCents)
}

func (s *ServiceSuite) TestIncomeStatementDateRange() {
	s.Require().NoError(s.service.PostPaymentReceipt(s.ctx, id.NewPaymentID(), 400000, "june fees"))

	julyCtx := requestcontext.WithTime(s.ctx, s.now.AddDate(0, 1, 0))
	s.Require().NoError(s.service.PostPaymentReceipt(julyCtx, id.NewPaymentID(), 300000, "july fees"))

	all, err := s.service.IncomeStatementReport(s.ctx, "", "")
	s.Require().NoError(err)
	s.Equal(int64(700000), all.TotalIncomeCents)

	june, err := s.service.IncomeStatementReport(s.ctx, "2026-06-01", "2026-06-30")
	s.Require().NoError(err)
	s.Equal(int64(400000), june.TotalIncomeCents)

	july, err := s.service.IncomeStatementReport(s.ctx, "2026-07-01", "")
	s.Require().NoError(err)
	s.Equal(int64(300000), july.TotalIncomeCents)

	empty, err := s.service.IncomeStatementReport(s.ctx, "2026-08-01", "")
	s.Require().NoError(err)
	s.Equal(int64(0), empty.TotalIncomeCents)
	s.Equal(int64(0), empty.NetCents)
}

func (s *ServiceSuite) TestIncomeStatementBadRange() {
	_, err := s.service.IncomeStatementReport(s.ctx, "06/01/2026", "")
	s.True(dErrors.Is(err, dErrors.CodeValidation))

	_, err = s.service.IncomeStatementReport(s.ctx, "2026-06-30", "2026-06-01")
	s.True(dErrors.Is(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestAccountLedgerRunningBalance() {
	s.Require().NoError(s.service.PostTransferReceipt(s.ctx, id.NewTransferID(), 300000, "first transfer"))
	s.Require().NoError(s.service.PostTransferReceipt(s.ctx, id.NewTransferID(), 200000, "second transfer"))

	cash := s.account(CodeCashInHand)
	ledger, err := s.service.AccountLedgerReport(s.ctx, cash.ID)
	s.Require().NoError(err)
	s.Require().Len(ledger.Lines, 2)
	s.Equal(int64(300000), ledger.Lines[0].BalanceCents)
	s.Equal(int64(500000), ledger.Lines[1].BalanceCents)
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}
