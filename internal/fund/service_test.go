package fund

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

type fakeUsers struct {
	users map[id.UserID]auth.User
}

func (f *fakeUsers) GetUser(_ context.Context, userID id.UserID) (auth.User, error) {
	user, ok := f.users[userID]
	if !ok {
		return auth.User{}, auth.ErrNotFound
	}
	return user, nil
}

type fakeLedger struct {
	postings []int64
}

func (f *fakeLedger) PostTransferReceipt(_ context.Context, _ id.TransferID, amountCents int64, _ string) error {
	f.postings = append(f.postings, amountCents)
	return nil
}

type ServiceSuite struct {
	suite.Suite

	pledges   *MemoryPledgeStore
	schedules *MemoryScheduleStore
	transfers *MemoryTransferStore
	ledger    *fakeLedger
	service   *Service
	now       time.Time

	chair   auth.User
	ym      auth.User
	finance auth.User
	admin   auth.User
}

func (s *ServiceSuite) SetupTest() {
	s.pledges = NewMemoryPledgeStore()
	s.schedules = NewMemoryScheduleStore()
	s.transfers = NewMemoryTransferStore()
	s.ledger = &fakeLedger{}
	s.now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	s.chair = auth.User{ID: id.NewUserID(), Name: "Grace", Role: auth.RoleChair, Parish: "Nasira Parish", Archdeaconry: "Nambale Archdeaconry", IsActive: true}
	s.ym = auth.User{ID: id.NewUserID(), Name: "Mercy", Role: auth.RoleYouthMinister, Archdeaconry: "Nambale Archdeaconry", IsActive: true}
	s.finance = auth.User{ID: id.NewUserID(), Name: "Esther", Role: auth.RoleFinance, IsActive: true}
	s.admin = auth.User{ID: id.NewUserID(), Name: "Root", Role: auth.RoleAdmin, IsActive: true}

	users := &fakeUsers{users: map[id.UserID]auth.User{
		s.chair.ID:   s.chair,
		s.ym.ID:      s.ym,
		s.finance.ID: s.finance,
		s.admin.ID:   s.admin,
	}}

	s.service = NewService(s.pledges, s.schedules, s.transfers, users, s.ledger, slog.Default(), nil, audit.NopRecorder{})
}

func (s *ServiceSuite) ctxAs(user auth.User) context.Context {
	ctx := requestcontext.WithTime(context.Background(), s.now)
	ctx = requestcontext.WithUserID(ctx, user.ID)
	return requestcontext.WithRole(ctx, user.Role)
}

func validPledge() CreatePledgeRequest {
	return CreatePledgeRequest{
		SourceType:         SourceWellWisher,
		SourceName:         "Hon. Makokha",
		SourcePhone:        "0712345678",
		AmountPledgedCents: 500000,
	}
}

func (s *ServiceSuite) TestCreatePledge() {
	p, err := s.service.CreatePledge(s.ctxAs(s.chair), validPledge())
	s.Require().NoError(err)
	s.Equal(PledgePending, p.Status)
	s.Equal(s.chair.ID, p.RecordedBy)
	s.Equal(int64(500000), p.AmountPledgedCents)
	s.Zero(p.AmountPaidCents)
}

func (s *ServiceSuite) TestCreatePledgeValidation() {
	cases := []struct {
		name   string
		mutate func(*CreatePledgeRequest)
	}{
		{"unknown source", func(r *CreatePledgeRequest) { r.SourceType = "friend" }},
		{"empty name", func(r *CreatePledgeRequest) { r.SourceName = " " }},
		{"zero amount", func(r *CreatePledgeRequest) { r.AmountPledgedCents = 0 }},
		{"delegate source without id", func(r *CreatePledgeRequest) { r.SourceType = SourceDelegate }},
		{"bad due date", func(r *CreatePledgeRequest) { r.DueDate = "June 1st" }},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			req := validPledge()
			tc.mutate(&req)
			_, err := s.service.CreatePledge(s.ctxAs(s.chair), req)
			s.Require().Error(err)
			s.True(dErrors.Is(err, dErrors.CodeValidation))
		})
	}
}

func (s *ServiceSuite) TestPledgePaymentLifecycle() {
	p, err := s.service.CreatePledge(s.ctxAs(s.chair), validPledge())
	s.Require().NoError(err)

	pp, err := s.service.RecordPledgePayment(s.ctxAs(s.chair), p.ID, RecordPledgePaymentRequest{
		AmountCents: 200000, Method: MethodMpesa, Reference: "NLJ7RT61SV",
	})
	s.Require().NoError(err)
	s.Equal(PaymentPending, pp.Status)

	// Unconfirmed payments do not move the pledge.
	stored, err := s.pledges.FindByID(context.Background(), p.ID)
	s.Require().NoError(err)
	s.Zero(stored.AmountPaidCents)
	s.Equal(PledgePending, stored.Status)

	confirmed, err := s.service.ConfirmPledgePayment(s.ctxAs(s.finance), pp.ID, true, "")
	s.Require().NoError(err)
	s.Equal(PaymentConfirmed, confirmed.Status)
	s.Equal(s.finance.ID, confirmed.ConfirmedBy)

	stored, err = s.pledges.FindByID(context.Background(), p.ID)
	s.Require().NoError(err)
	s.Equal(int64(200000), stored.AmountPaidCents)
	s.Equal(PledgePartial, stored.Status)

	// Settling the balance fulfils the pledge.
	pp2, err := s.service.RecordPledgePayment(s.ctxAs(s.chair), p.ID, RecordPledgePaymentRequest{
		AmountCents: 300000, Method: MethodCash,
	})
	s.Require().NoError(err)
	_, err = s.service.ConfirmPledgePayment(s.ctxAs(s.finance), pp2.ID, true, "")
	s.Require().NoError(err)

	stored, err = s.pledges.FindByID(context.Background(), p.ID)
	s.Require().NoError(err)
	s.Equal(PledgeFulfilled, stored.Status)

	_, err = s.service.ConfirmPledgePayment(s.ctxAs(s.finance), pp.ID, true, "")
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeConflict))
}

func (s *ServiceSuite) TestRejectedPledgePayment() {
	p, err := s.service.CreatePledge(s.ctxAs(s.chair), validPledge())
	s.Require().NoError(err)
	pp, err := s.service.RecordPledgePayment(s.ctxAs(s.chair), p.ID, RecordPledgePaymentRequest{
		AmountCents: 100000, Method: MethodBank, Reference: "CHQ-0042",
	})
	s.Require().NoError(err)

	rejected, err := s.service.ConfirmPledgePayment(s.ctxAs(s.finance), pp.ID, false, "cheque bounced")
	s.Require().NoError(err)
	s.Equal(PaymentRejected, rejected.Status)

	stored, err := s.pledges.FindByID(context.Background(), p.ID)
	s.Require().NoError(err)
	s.Zero(stored.AmountPaidCents)
	s.Equal(PledgePending, stored.Status)
}

func (s *ServiceSuite) TestCancelPledge() {
	p, err := s.service.CreatePledge(s.ctxAs(s.chair), validPledge())
	s.Require().NoError(err)

	cancelled, err := s.service.CancelPledge(s.ctxAs(s.chair), p.ID)
	s.Require().NoError(err)
	s.Equal(PledgeCancelled, cancelled.Status)

	_, err = s.service.RecordPledgePayment(s.ctxAs(s.chair), p.ID, RecordPledgePaymentRequest{
		AmountCents: 1000, Method: MethodCash,
	})
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeConflict))
}

func (s *ServiceSuite) TestPledgeScopingForChairs() {
	_, err := s.service.CreatePledge(s.ctxAs(s.chair), validPledge())
	s.Require().NoError(err)
	_, err = s.service.CreatePledge(s.ctxAs(s.finance), validPledge())
	s.Require().NoError(err)

	mine, err := s.service.ListPledges(s.ctxAs(s.chair), PledgeFilter{})
	s.Require().NoError(err)
	s.Len(mine, 1)

	all, err := s.service.ListPledges(s.ctxAs(s.finance), PledgeFilter{})
	s.Require().NoError(err)
	s.Len(all, 2)
}

func validSchedule() CreateScheduleRequest {
	return CreateScheduleRequest{
		SourceType:  SourceWellWisher,
		SourceName:  "Mama Atieno",
		AmountCents: 50000,
		Frequency:   FrequencyWeekly,
		StartDate:   "2026-06-05",
		EndDate:     "2026-06-26",
	}
}

func (s *ServiceSuite) TestCreateSchedule() {
	sp, err := s.service.CreateSchedule(s.ctxAs(s.finance), validSchedule())
	s.Require().NoError(err)
	s.Equal(ScheduleActive, sp.Status)
	s.Require().NotNil(sp.NextPaymentDate)
	s.Equal("2026-06-05", sp.NextPaymentDate.Format(dateLayout))
	// Four weekly collections between June 5 and June 26 inclusive.
	s.Equal(int64(200000), sp.TotalExpectedCents)
}

func (s *ServiceSuite) TestCreateScheduleValidation() {
	req := validSchedule()
	req.Frequency = "daily"
	_, err := s.service.CreateSchedule(s.ctxAs(s.finance), req)
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeValidation))

	req = validSchedule()
	req.EndDate = "2026-06-01"
	_, err = s.service.CreateSchedule(s.ctxAs(s.finance), req)
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestInstallmentGeneration() {
	sp, err := s.service.CreateSchedule(s.ctxAs(s.finance), validSchedule())
	s.Require().NoError(err)

	// Nothing is due before the start date.
	created, err := s.service.GenerateDueInstallments(s.ctxAs(s.finance))
	s.Require().NoError(err)
	s.Zero(created)

	s.now = time.Date(2026, 6, 5, 8, 0, 0, 0, time.UTC)
	created, err = s.service.GenerateDueInstallments(s.ctxAs(s.finance))
	s.Require().NoError(err)
	s.Equal(1, created)

	detail, err := s.service.GetSchedule(s.ctxAs(s.finance), sp.ID)
	s.Require().NoError(err)
	s.Require().Len(detail.Installments, 1)
	s.Equal(InstallmentPending, detail.Installments[0].Status)
	s.Require().NotNil(detail.Schedule.NextPaymentDate)
	s.Equal("2026-06-12", detail.Schedule.NextPaymentDate.Format(dateLayout))

	// Re-running the same day creates nothing new.
	created, err = s.service.GenerateDueInstallments(s.ctxAs(s.finance))
	s.Require().NoError(err)
	s.Zero(created)
}

func (s *ServiceSuite) TestPayInstallmentCompletesSchedule() {
	req := validSchedule()
	req.Frequency = FrequencyOnce
	req.EndDate = ""
	sp, err := s.service.CreateSchedule(s.ctxAs(s.finance), req)
	s.Require().NoError(err)
	s.Equal(int64(50000), sp.TotalExpectedCents)

	s.now = time.Date(2026, 6, 5, 8, 0, 0, 0, time.UTC)
	_, err = s.service.GenerateDueInstallments(s.ctxAs(s.finance))
	s.Require().NoError(err)

	detail, err := s.service.GetSchedule(s.ctxAs(s.finance), sp.ID)
	s.Require().NoError(err)
	s.Require().Len(detail.Installments, 1)

	in, err := s.service.PayInstallment(s.ctxAs(s.finance), detail.Installments[0].ID, PayInstallmentRequest{
		AmountCents: 50000, Method: MethodMpesa, Reference: "RCPT-1",
	})
	s.Require().NoError(err)
	s.Equal(InstallmentPaid, in.Status)

	updated, err := s.schedules.FindByID(context.Background(), sp.ID)
	s.Require().NoError(err)
	s.Equal(int64(50000), updated.TotalCollectedCents)
	s.Equal(ScheduleCompleted, updated.Status)

	_, err = s.service.PayInstallment(s.ctxAs(s.finance), in.ID, PayInstallmentRequest{
		AmountCents: 50000, Method: MethodCash,
	})
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeConflict))
}

func (s *ServiceSuite) TestTransferChain() {
	t, err := s.service.CreateTransfer(s.ctxAs(s.chair), CreateTransferRequest{
		AmountCents: 1200000,
		ToUserID:    s.ym.ID.String(),
		Description: "June collections",
	})
	s.Require().NoError(err)
	s.Equal(StageChairToYM, t.Stage)
	s.Equal(TransferPending, t.Status)
	s.True(strings.HasPrefix(t.Reference, "FT-2026-"))
	s.Len(t.Reference, len("FT-2026-")+8)
	s.Equal(s.chair.Parish, t.Parish)

	// Only the addressed recipient may act on it.
	_, err = s.service.ApproveTransfer(s.ctxAs(s.admin), t.ID, "")
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeForbidden))

	approved, err := s.service.ApproveTransfer(s.ctxAs(s.ym), t.ID, "counted and confirmed")
	s.Require().NoError(err)
	s.Equal(TransferApproved, approved.Status)
	s.Require().NotNil(approved.ApprovedAt)

	completed, err := s.service.CompleteTransfer(s.ctxAs(s.ym), t.ID, "")
	s.Require().NoError(err)
	s.Equal(TransferCompleted, completed.Status)
	// Chair to YM hand-overs stay out of the ledger.
	s.Empty(s.ledger.postings)

	detail, err := s.service.GetTransfer(s.ctxAs(s.ym), t.ID)
	s.Require().NoError(err)
	s.Require().Len(detail.Approvals, 3)
	s.Equal("created", detail.Approvals[0].Action)
	s.Equal("approved", detail.Approvals[1].Action)
	s.Equal("completed", detail.Approvals[2].Action)
}

func (s *ServiceSuite) TestTransferToFinancePostsLedger() {
	t, err := s.service.CreateTransfer(s.ctxAs(s.ym), CreateTransferRequest{
		AmountCents: 2500000,
		ToUserID:    s.finance.ID.String(),
	})
	s.Require().NoError(err)
	s.Equal(StageYMToFinance, t.Stage)

	_, err = s.service.ApproveTransfer(s.ctxAs(s.finance), t.ID, "")
	s.Require().NoError(err)
	_, err = s.service.CompleteTransfer(s.ctxAs(s.finance), t.ID, "")
	s.Require().NoError(err)

	s.Require().Len(s.ledger.postings, 1)
	s.Equal(int64(2500000), s.ledger.postings[0])
}

func (s *ServiceSuite) TestTransferRouting() {
	// A chair cannot hand over straight to finance.
	_, err := s.service.CreateTransfer(s.ctxAs(s.chair), CreateTransferRequest{
		AmountCents: 1000,
		ToUserID:    s.finance.ID.String(),
	})
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeValidation))

	// Finance never initiates transfers.
	_, err = s.service.CreateTransfer(s.ctxAs(s.finance), CreateTransferRequest{
		AmountCents: 1000,
		ToUserID:    s.ym.ID.String(),
	})
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeForbidden))
}

func (s *ServiceSuite) TestRejectTransfer() {
	t, err := s.service.CreateTransfer(s.ctxAs(s.chair), CreateTransferRequest{
		AmountCents: 800000,
		ToUserID:    s.ym.ID.String(),
	})
	s.Require().NoError(err)

	_, err = s.service.RejectTransfer(s.ctxAs(s.ym), t.ID, "")
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeValidation))

	rejected, err := s.service.RejectTransfer(s.ctxAs(s.ym), t.ID, "amount does not match the records")
	s.Require().NoError(err)
	s.Equal(TransferRejected, rejected.Status)

	// Terminal: approval after rejection fails.
	_, err = s.service.ApproveTransfer(s.ctxAs(s.ym), t.ID, "")
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeConflict))
}

func (s *ServiceSuite) TestCompleteRequiresApproval() {
	t, err := s.service.CreateTransfer(s.ctxAs(s.chair), CreateTransferRequest{
		AmountCents: 800000,
		ToUserID:    s.ym.ID.String(),
	})
	s.Require().NoError(err)

	_, err = s.service.CompleteTransfer(s.ctxAs(s.ym), t.ID, "")
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeConflict))
}

func (s *ServiceSuite) TestTransferVisibility() {
	t, err := s.service.CreateTransfer(s.ctxAs(s.chair), CreateTransferRequest{
		AmountCents: 500000,
		ToUserID:    s.ym.ID.String(),
	})
	s.Require().NoError(err)

	otherChair := auth.User{ID: id.NewUserID(), Role: auth.RoleChair}
	_, err = s.service.GetTransfer(s.ctxAs(otherChair), t.ID)
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeForbidden))

	// Finance sees every transfer.
	_, err = s.service.GetTransfer(s.ctxAs(s.finance), t.ID)
	s.Require().NoError(err)

	mine, err := s.service.ListTransfers(s.ctxAs(s.chair), TransferFilter{})
	s.Require().NoError(err)
	s.Len(mine, 1)

	none, err := s.service.ListTransfers(s.ctxAs(otherChair), TransferFilter{})
	s.Require().NoError(err)
	s.Empty(none)
}

func (s *ServiceSuite) TestScopedListingMatchesEitherSide() {
	t, err := s.service.CreateTransfer(s.ctxAs(s.chair), CreateTransferRequest{
		AmountCents: 500000,
		ToUserID:    s.ym.ID.String(),
	})
	s.Require().NoError(err)

	// A scoped listing covers transfers the caller received, not just
	// the ones they sent.
	received, err := s.service.ListTransfers(s.ctxAs(s.ym), TransferFilter{})
	s.Require().NoError(err)
	s.Require().Len(received, 1)
	s.Equal(t.ID, received[0].ID)

	stats, err := s.service.TransferOverview(s.ctxAs(s.ym), id.EventID{})
	s.Require().NoError(err)
	s.Equal(1, stats.PendingCount)

	direct, err := s.transfers.List(context.Background(), TransferFilter{ParticipantID: s.ym.ID})
	s.Require().NoError(err)
	s.Len(direct, 1)
}

func (s *ServiceSuite) TestDashboard() {
	_, err := s.service.CreatePledge(s.ctxAs(s.chair), validPledge())
	s.Require().NoError(err)
	t, err := s.service.CreateTransfer(s.ctxAs(s.chair), CreateTransferRequest{
		AmountCents: 300000,
		ToUserID:    s.ym.ID.String(),
	})
	s.Require().NoError(err)
	_, err = s.service.ApproveTransfer(s.ctxAs(s.ym), t.ID, "")
	s.Require().NoError(err)
	_, err = s.service.CompleteTransfer(s.ctxAs(s.ym), t.ID, "")
	s.Require().NoError(err)

	dash, err := s.service.RoleDashboard(s.ctxAs(s.chair), id.EventID{})
	s.Require().NoError(err)
	s.Equal(1, dash.Transfers.CompletedCount)
	s.Equal(int64(300000), dash.Transfers.CompletedCents)
	s.Equal(int64(500000), dash.Pledges.TotalPledgedCents)
	s.Equal(1, dash.Pledges.Pending)
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}
