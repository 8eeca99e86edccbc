package payment

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"kayo/internal/auth"
	"kayo/internal/delegate"
	"kayo/internal/event"
	"kayo/internal/payment/mpesa"
	id "kayo/pkg/domain"
	dErrors "kayo/pkg/domain-errors"
	"kayo/pkg/requestcontext"
)

type fakeGateway struct {
	pushes   []mpesa.STKPushRequest
	failPush bool
	statuses map[string]mpesa.StatusResponse
	seq      int
}

func (g *fakeGateway) Configured() bool { return true }

func (g *fakeGateway) STKPush(_ context.Context, req mpesa.STKPushRequest) (mpesa.STKPushResponse, error) {
	if g.failPush {
		return mpesa.STKPushResponse{}, dErrors.New(dErrors.CodeUnavailable, "stk push rejected: insufficient funds")
	}
	g.pushes = append(g.pushes, req)
	g.seq++
	return mpesa.STKPushResponse{
		MerchantRequestID: "merchant-1",
		CheckoutRequestID: "checkout-" + string(rune('0'+g.seq)),
		ResponseCode:      "0",
	}, nil
}

func (g *fakeGateway) QueryStatus(_ context.Context, checkoutRequestID string) (mpesa.StatusResponse, error) {
	return g.statuses[checkoutRequestID], nil
}

// registry adapts the in-memory delegate store to the registry surface.
type registry struct {
	store *delegate.MemoryStore
}

func (r *registry) Get(ctx context.Context, delegateID id.DelegateID) (delegate.Delegate, error) {
	return r.store.FindByID(ctx, delegateID)
}

func (r *registry) List(ctx context.Context, filter delegate.Filter) ([]delegate.Delegate, error) {
	return r.store.List(ctx, filter)
}

func (r *registry) ClaimForPayment(ctx context.Context, ids []id.DelegateID, paymentID id.PaymentID) error {
	return r.store.ClaimForPayment(ctx, ids, paymentID)
}

func (r *registry) MarkPaid(ctx context.Context, paymentID id.PaymentID) (int, error) {
	return r.store.MarkPaid(ctx, paymentID)
}

func (r *registry) ReleasePayment(ctx context.Context, paymentID id.PaymentID) error {
	return r.store.ReleasePayment(ctx, paymentID)
}

type fakeQuoter struct {
	unitCents int64
	sales     map[id.TierID]int
}

func (q *fakeQuoter) QuoteFee(_ context.Context, _ id.EventID, count int) (event.Quote, error) {
	return event.Quote{TierName: "standard", Count: count, UnitCents: q.unitCents, TotalCents: q.unitCents * int64(count)}, nil
}

func (q *fakeQuoter) RecordSale(_ context.Context, tierID id.TierID, count int) {
	if q.sales == nil {
		q.sales = map[id.TierID]int{}
	}
	q.sales[tierID] += count
}

type fakePermissions struct {
	granted map[string]bool
}

func (p *fakePermissions) HasActivePermission(_ context.Context, _ id.UserID, permissionType string) (bool, error) {
	return p.granted[permissionType], nil
}

type fakeSMS struct {
	sent []string
	fail bool
}

func (f *fakeSMS) SendSMS(_ context.Context, phone, _ string) error {
	if f.fail {
		return dErrors.New(dErrors.CodeUnavailable, "gateway down")
	}
	f.sent = append(f.sent, phone)
	return nil
}

type ServiceSuite struct {
	suite.Suite

	store         *MemoryStore
	discrepancies *MemoryDiscrepancyStore
	reminders     *MemoryReminderStore
	delegates     *delegate.MemoryStore
	gateway       *fakeGateway
	quoter        *fakeQuoter
	permissions   *fakePermissions
	sms           *fakeSMS
	service       *Service
	now           time.Time

	chairID   id.UserID
	financeID id.UserID
}

func (s *ServiceSuite) SetupTest() {
	s.store = NewMemoryStore()
	s.discrepancies = NewMemoryDiscrepancyStore()
	s.reminders = NewMemoryReminderStore()
	s.delegates = delegate.NewMemoryStore()
	s.gateway = &fakeGateway{statuses: map[string]mpesa.StatusResponse{}}
	s.quoter = &fakeQuoter{unitCents: 150000}
	s.permissions = &fakePermissions{granted: map[string]bool{}}
	s.sms = &fakeSMS{}
	s.now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	s.chairID = id.NewUserID()
	s.financeID = id.NewUserID()

	s.service = NewService(s.store, s.discrepancies, s.reminders, &registry{store: s.delegates}, s.quoter,
		slog.Default(), Options{
			Gateway:     s.gateway,
			Permissions: s.permissions,
			SMS:         s.sms,
		})
}

func (s *ServiceSuite) ctxAs(userID id.UserID, role string) context.Context {
	ctx := requestcontext.WithTime(context.Background(), s.now)
	ctx = requestcontext.WithUserID(ctx, userID)
	return requestcontext.WithRole(ctx, role)
}

func (s *ServiceSuite) seedDelegate(name string) delegate.Delegate {
	d := delegate.Delegate{
		ID:           id.NewDelegateID(),
		Name:         name,
		LocalChurch:  "St Peters",
		Parish:       "Nasira Parish",
		Archdeaconry: "Nambale Archdeaconry",
		PhoneNumber:  "254712345678",
		Gender:       "male",
		Category:     "delegate",
		RegisteredBy: s.chairID,
		RegisteredAt: s.now,
	}
	s.Require().NoError(s.delegates.Insert(context.Background(), d))
	return d
}

func (s *ServiceSuite) TestInitiate() {
	d1 := s.seedDelegate("John Wanjala")
	d2 := s.seedDelegate("Mary Nekesa")
	ctx := s.ctxAs(s.chairID, auth.RoleChair)

	p, err := s.service.Initiate(ctx, InitiateRequest{
		DelegateIDs: []string{d1.ID.String(), d2.ID.String()},
		PhoneNumber: "0712345678",
	})
	s.Require().NoError(err)
	s.Equal(StatusPending, p.Status)
	s.Equal(int64(300000), p.AmountCents)
	s.Equal(2, p.DelegatesCount)
	s.NotEmpty(p.CheckoutRequestID)

	s.Require().Len(s.gateway.pushes, 1)
	s.Equal("254712345678", s.gateway.pushes[0].Phone)
	s.Equal(int64(3000), s.gateway.pushes[0].Amount) // whole shillings

	claimed, err := s.delegates.FindByID(ctx, d1.ID)
	s.Require().NoError(err)
	s.Equal(p.ID, claimed.PaymentID)
	s.False(claimed.IsPaid)
}

func (s *ServiceSuite) TestInitiateValidation() {
	ctx := s.ctxAs(s.chairID, auth.RoleChair)

	_, err := s.service.Initiate(ctx, InitiateRequest{PhoneNumber: "0712345678"})
	s.True(dErrors.Is(err, dErrors.CodeValidation))

	d := s.seedDelegate("John Wanjala")
	_, err = s.service.Initiate(ctx, InitiateRequest{DelegateIDs: []string{d.ID.String()}, PhoneNumber: "bogus"})
	s.True(dErrors.Is(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestInitiatePushFailureReleases() {
	d := s.seedDelegate("John Wanjala")
	s.gateway.failPush = true
	ctx := s.ctxAs(s.chairID, auth.RoleChair)

	_, err := s.service.Initiate(ctx, InitiateRequest{DelegateIDs: []string{d.ID.String()}, PhoneNumber: "0712345678"})
	s.Require().Error(err)

	released, err := s.delegates.FindByID(ctx, d.ID)
	s.Require().NoError(err)
	s.True(released.PaymentID.IsZero())

	payments, err := s.store.List(ctx, Filter{Status: StatusFailed})
	s.Require().NoError(err)
	s.Len(payments, 1)
}

func (s *ServiceSuite) TestInitiateDoubleClaim() {
	d := s.seedDelegate("John Wanjala")
	ctx := s.ctxAs(s.chairID, auth.RoleChair)

	_, err := s.service.Initiate(ctx, InitiateRequest{DelegateIDs: []string{d.ID.String()}, PhoneNumber: "0712345678"})
	s.Require().NoError(err)

	_, err = s.service.Initiate(ctx, InitiateRequest{DelegateIDs: []string{d.ID.String()}, PhoneNumber: "0712345678"})
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeConflict))
}

func callbackFor(checkoutID string, resultCode int, amountShillings float64, receipt string) mpesa.Callback {
	var cb mpesa.Callback
	cb.Body.STKCallback.CheckoutRequestID = checkoutID
	cb.Body.STKCallback.ResultCode = resultCode
	if resultCode == 0 {
		cb.Body.STKCallback.CallbackMetadata.Item = []struct {
			Name  string `json:"Name"`
			Value any    `json:"Value"`
		}{
			{Name: "Amount", Value: amountShillings},
			{Name: "MpesaReceiptNumber", Value: receipt},
		}
	}
	return cb
}

func (s *ServiceSuite) TestCallbackSuccess() {
	d := s.seedDelegate("John Wanjala")
	ctx := s.ctxAs(s.chairID, auth.RoleChair)
	p, err := s.service.Initiate(ctx, InitiateRequest{DelegateIDs: []string{d.ID.String()}, PhoneNumber: "0712345678"})
	s.Require().NoError(err)

	cbCtx := requestcontext.WithTime(context.Background(), s.now.Add(time.Minute))
	err = s.service.HandleCallback(cbCtx, callbackFor(p.CheckoutRequestID, 0, 1500, "NLJ7RT61SV"))
	s.Require().NoError(err)

	settled, err := s.store.FindByID(cbCtx, p.ID)
	s.Require().NoError(err)
	s.Equal(StatusCompleted, settled.Status)
	s.Equal("NLJ7RT61SV", settled.MpesaReceipt)
	s.NotNil(settled.CompletedAt)

	paid, err := s.delegates.FindByID(cbCtx, d.ID)
	s.Require().NoError(err)
	s.True(paid.IsPaid)

	// A replayed callback is a no-op once the payment settled.
	s.Require().NoError(s.service.HandleCallback(cbCtx, callbackFor(p.CheckoutRequestID, 0, 1500, "NLJ7RT61SV")))
}

func (s *ServiceSuite) TestCallbackFailureReleases() {
	d := s.seedDelegate("John Wanjala")
	ctx := s.ctxAs(s.chairID, auth.RoleChair)
	p, err := s.service.Initiate(ctx, InitiateRequest{DelegateIDs: []string{d.ID.String()}, PhoneNumber: "0712345678"})
	s.Require().NoError(err)

	cbCtx := requestcontext.WithTime(context.Background(), s.now.Add(time.Minute))
	s.Require().NoError(s.service.HandleCallback(cbCtx, callbackFor(p.CheckoutRequestID, 1032, 0, "")))

	failed, err := s.store.FindByID(cbCtx, p.ID)
	s.Require().NoError(err)
	s.Equal(StatusFailed, failed.Status)

	released, err := s.delegates.FindByID(cbCtx, d.ID)
	s.Require().NoError(err)
	s.True(released.PaymentID.IsZero())
	s.False(released.IsPaid)
}

func (s *ServiceSuite) TestCallbackAmountDiscrepancy() {
	d := s.seedDelegate("John Wanjala")
	ctx := s.ctxAs(s.chairID, auth.RoleChair)
	p, err := s.service.Initiate(ctx, InitiateRequest{DelegateIDs: []string{d.ID.String()}, PhoneNumber: "0712345678"})
	s.Require().NoError(err)

	// Paid 1000 KES against an expected 1500.
	cbCtx := requestcontext.WithTime(context.Background(), s.now.Add(time.Minute))
	s.Require().NoError(s.service.HandleCallback(cbCtx, callbackFor(p.CheckoutRequestID, 0, 1000, "NLJ7RT61SV")))

	open, err := s.discrepancies.List(cbCtx, DiscrepancyPending)
	s.Require().NoError(err)
	s.Require().Len(open, 1)
	s.Equal(DiscrepancyUnderpayment, open[0].Type)
	s.Equal(int64(-50000), open[0].DifferenceCents)

	resolved, err := s.service.ResolveDiscrepancy(s.ctxAs(s.financeID, auth.RoleFinance), open[0].ID,
		ResolveDiscrepancyRequest{Status: DiscrepancyWaived, Notes: "group rate honored"})
	s.Require().NoError(err)
	s.Equal(DiscrepancyWaived, resolved.Status)
	s.Equal(s.financeID, resolved.ResolvedBy)
}

func (s *ServiceSuite) TestManualChain() {
	d := s.seedDelegate("John Wanjala")
	chairCtx := s.ctxAs(s.chairID, auth.RoleChair)
	s.permissions.granted[auth.PermissionPaymentConfirmation] = true

	p, err := s.service.RecordManual(chairCtx, ManualRequest{
		DelegateIDs: []string{d.ID.String()},
		AmountCents: 150000,
		Mode:        ModeCash,
	})
	s.Require().NoError(err)
	s.Equal(StatusPending, p.Status)

	// Finance cannot approve before the chair confirms.
	finCtx := s.ctxAs(s.financeID, auth.RoleFinance)
	_, err = s.service.ReviewByFinance(finCtx, p.ID, ReviewRequest{Approve: true})
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeConflict))

	confirmed, err := s.service.ConfirmByChair(chairCtx, p.ID)
	s.Require().NoError(err)
	s.Equal(s.chairID, confirmed.ConfirmedByChair)

	approved, err := s.service.ReviewByFinance(finCtx, p.ID, ReviewRequest{Approve: true, Notes: "bank slip verified"})
	s.Require().NoError(err)
	s.Equal(StatusCompleted, approved.Status)
	s.Equal(FinanceApproved, approved.FinanceStatus)

	paid, err := s.delegates.FindByID(finCtx, d.ID)
	s.Require().NoError(err)
	s.True(paid.IsPaid)
}

func (s *ServiceSuite) TestManualRejection() {
	d := s.seedDelegate("John Wanjala")
	ymCtx := s.ctxAs(id.NewUserID(), auth.RoleYouthMinister)

	p, err := s.service.RecordManual(ymCtx, ManualRequest{
		DelegateIDs: []string{d.ID.String()},
		AmountCents: 150000,
		Mode:        ModeBank,
	})
	s.Require().NoError(err)

	// Non-chair roles confirm without a permission grant.
	_, err = s.service.ConfirmByChair(ymCtx, p.ID)
	s.Require().NoError(err)

	finCtx := s.ctxAs(s.financeID, auth.RoleFinance)
	_, err = s.service.ReviewByFinance(finCtx, p.ID, ReviewRequest{Approve: false})
	s.True(dErrors.Is(err, dErrors.CodeValidation))

	rejected, err := s.service.ReviewByFinance(finCtx, p.ID, ReviewRequest{Approve: false, RejectionReason: "no deposit slip"})
	s.Require().NoError(err)
	s.Equal(FinanceRejected, rejected.FinanceStatus)
	s.Equal(StatusFailed, rejected.Status)

	released, err := s.delegates.FindByID(finCtx, d.ID)
	s.Require().NoError(err)
	s.True(released.PaymentID.IsZero())
}

func (s *ServiceSuite) TestChairConfirmNeedsPermission() {
	d := s.seedDelegate("John Wanjala")
	chairCtx := s.ctxAs(s.chairID, auth.RoleChair)

	p, err := s.service.RecordManual(chairCtx, ManualRequest{
		DelegateIDs: []string{d.ID.String()},
		AmountCents: 150000,
		Mode:        ModeCash,
	})
	s.Require().NoError(err)

	_, err = s.service.ConfirmByChair(chairCtx, p.ID)
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeForbidden))
}

func (s *ServiceSuite) TestPollPendingSettles() {
	d := s.seedDelegate("John Wanjala")
	ctx := s.ctxAs(s.chairID, auth.RoleChair)
	p, err := s.service.Initiate(ctx, InitiateRequest{DelegateIDs: []string{d.ID.String()}, PhoneNumber: "0712345678"})
	s.Require().NoError(err)
	s.gateway.statuses[p.CheckoutRequestID] = mpesa.StatusResponse{ResultCode: "0"}

	pollCtx := requestcontext.WithTime(context.Background(), s.now.Add(10*time.Minute))
	settled, err := s.service.PollPending(pollCtx)
	s.Require().NoError(err)
	s.Equal(1, settled)

	done, err := s.store.FindByID(pollCtx, p.ID)
	s.Require().NoError(err)
	s.Equal(StatusCompleted, done.Status)
}

func (s *ServiceSuite) TestReminders() {
	d := s.seedDelegate("John Wanjala")
	exempt := s.seedDelegate("Clergy Guest")
	exempt.FeeExempt = true
	s.Require().NoError(s.delegates.Insert(context.Background(), exempt))

	ctx := requestcontext.WithTime(context.Background(), s.now)
	sent, err := s.service.SendReminders(ctx)
	s.Require().NoError(err)
	s.Equal(1, sent)
	s.Equal([]string{"254712345678"}, s.sms.sent)

	// Within 24h nothing more goes out.
	sent, err = s.service.SendReminders(requestcontext.WithTime(context.Background(), s.now.Add(2*time.Hour)))
	s.Require().NoError(err)
	s.Zero(sent)

	// After the interval the second and third go out, then the cap holds.
	for i := 1; i <= 2; i++ {
		later := requestcontext.WithTime(context.Background(), s.now.Add(time.Duration(i)*25*time.Hour))
		sent, err = s.service.SendReminders(later)
		s.Require().NoError(err)
		s.Equal(1, sent)
	}
	final := requestcontext.WithTime(context.Background(), s.now.Add(100*time.Hour))
	sent, err = s.service.SendReminders(final)
	s.Require().NoError(err)
	s.Zero(sent)

	history, err := s.reminders.ForDelegate(context.Background(), d.ID)
	s.Require().NoError(err)
	s.Len(history, 3)
	s.Equal(3, history[0].ReminderNumber)
}

func (s *ServiceSuite) TestTotals() {
	d1 := s.seedDelegate("John Wanjala")
	d2 := s.seedDelegate("Mary Nekesa")
	ctx := s.ctxAs(s.chairID, auth.RoleChair)

	p1, err := s.service.Initiate(ctx, InitiateRequest{DelegateIDs: []string{d1.ID.String()}, PhoneNumber: "0712345678"})
	s.Require().NoError(err)
	cbCtx := requestcontext.WithTime(context.Background(), s.now.Add(time.Minute))
	s.Require().NoError(s.service.HandleCallback(cbCtx, callbackFor(p1.CheckoutRequestID, 0, 1500, "RCPT1")))

	_, err = s.service.Initiate(ctx, InitiateRequest{DelegateIDs: []string{d2.ID.String()}, PhoneNumber: "0712345678"})
	s.Require().NoError(err)

	totals, err := s.service.Totals(ctx)
	s.Require().NoError(err)
	s.Equal(int64(150000), totals.CollectedCents)
	s.Equal(1, totals.Completed)
	s.Equal(1, totals.Pending)
	s.Equal(int64(150000), totals.PendingApprovalCents)
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}
