package checkin

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"kayo/internal/audit"
	"kayo/internal/auth"
	"kayo/internal/delegate"
	id "kayo/pkg/domain"
	dErrors "kayo/pkg/domain-errors"
	"kayo/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite

	store     *MemoryStore
	delegates *delegate.MemoryStore
	badges    *BadgeIssuer
	service   *Service
	now       time.Time

	staff   auth.User
	admin   auth.User
	eventID id.EventID
	paid    delegate.Delegate
	unpaid  delegate.Delegate
}

func (s *ServiceSuite) SetupTest() {
	s.store = NewMemoryStore()
	s.delegates = delegate.NewMemoryStore()
	s.badges = NewBadgeIssuer("test-signing-key", 30*24*time.Hour)
	s.now = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	s.staff = auth.User{ID: id.NewUserID(), Name: "Esther", Role: auth.RoleFinance}
	s.admin = auth.User{ID: id.NewUserID(), Name: "Otieno", Role: auth.RoleAdmin}
	s.eventID = id.NewEventID()

	s.paid = delegate.Delegate{
		ID: id.NewDelegateID(), Name: "Achieng", EventID: s.eventID,
		Category: delegate.CategoryDelegate, IsPaid: true,
	}
	s.unpaid = delegate.Delegate{
		ID: id.NewDelegateID(), Name: "Wafula", EventID: s.eventID,
		Category: delegate.CategoryDelegate,
	}
	s.Require().NoError(s.delegates.Insert(context.Background(), s.paid))
	s.Require().NoError(s.delegates.Insert(context.Background(), s.unpaid))

	s.service = NewService(s.store, s.delegates, s.badges, slog.Default(), nil, audit.NopRecorder{})
}

func (s *ServiceSuite) ctxAs(u auth.User) context.Context {
	ctx := requestcontext.WithTime(context.Background(), s.now)
	ctx = requestcontext.WithUserID(ctx, u.ID)
	return requestcontext.WithRole(ctx, u.Role)
}

func (s *ServiceSuite) badgeFor(d delegate.Delegate) string {
	badge, err := s.service.IssueBadge(s.ctxAs(s.staff), d.ID)
	s.Require().NoError(err)
	return badge.Token
}

func (s *ServiceSuite) TestScanChecksIn() {
	ctx := s.ctxAs(s.staff)
	result, err := s.service.Scan(ctx, ScanRequest{Token: s.badgeFor(s.paid), SessionName: "morning"})
	s.Require().NoError(err)
	s.Equal(StatusCheckedIn, result.Status)
	s.Require().NotNil(result.Record)
	s.Equal(MethodQRScan, result.Record.Method)
	s.Equal(s.eventID, result.Record.EventID)
	s.Equal(s.staff.ID, result.Record.CheckedInBy)

	// The first-attendance flag follows the record.
	d, err := s.delegates.FindByID(ctx, s.paid.ID)
	s.Require().NoError(err)
	s.True(d.CheckedIn)
}

func (s *ServiceSuite) TestScanRejectsTamperedToken() {
	other := NewBadgeIssuer("different-key", time.Hour)
	token, _, err := other.Issue(s.paid.ID, s.now)
	s.Require().NoError(err)

	_, err = s.service.Scan(s.ctxAs(s.staff), ScanRequest{Token: token})
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeInvalidInput))
}

func (s *ServiceSuite) TestScanWarnsOnUnpaid() {
	result, err := s.service.Scan(s.ctxAs(s.staff), ScanRequest{Token: s.badgeFor(s.unpaid)})
	s.Require().NoError(err)
	s.Equal(StatusUnpaid, result.Status)
	s.Nil(result.Record)

	history, err := s.store.HistoryFor(context.Background(), s.unpaid.ID)
	s.Require().NoError(err)
	s.Empty(history)
}

func (s *ServiceSuite) TestDuplicateScanReportsExisting() {
	ctx := s.ctxAs(s.staff)
	token := s.badgeFor(s.paid)
	first, err := s.service.Scan(ctx, ScanRequest{Token: token, SessionName: "morning"})
	s.Require().NoError(err)

	again, err := s.service.Scan(ctx, ScanRequest{Token: token, SessionName: "morning"})
	s.Require().NoError(err)
	s.Equal(StatusAlreadyCheckedIn, again.Status)
	s.Require().NotNil(again.Record)
	s.Equal(first.Record.ID, again.Record.ID)

	// A different session the same day is a fresh check-in.
	afternoon, err := s.service.Scan(ctx, ScanRequest{Token: token, SessionName: "afternoon"})
	s.Require().NoError(err)
	s.Equal(StatusCheckedIn, afternoon.Status)
}

func (s *ServiceSuite) TestManualUnpaidNeedsAdmin() {
	req := ManualRequest{DelegateID: s.unpaid.ID.String()}

	result, err := s.service.CheckInManual(s.ctxAs(s.staff), req)
	s.Require().NoError(err)
	s.Equal(StatusUnpaid, result.Status)

	result, err = s.service.CheckInManual(s.ctxAs(s.admin), req)
	s.Require().NoError(err)
	s.Equal(StatusCheckedIn, result.Status)
	s.Equal(MethodManual, result.Record.Method)
}

func (s *ServiceSuite) TestBulkCheckIn() {
	ctx := s.ctxAs(s.admin)
	report, err := s.service.BulkCheckIn(ctx, BulkRequest{
		DelegateIDs: []string{s.paid.ID.String(), s.unpaid.ID.String(), "not-a-uuid"},
	})
	s.Require().NoError(err)
	s.Equal(2, report.CheckedIn)
	s.Zero(report.Skipped)
	s.Require().Len(report.Errors, 1)

	// Re-running skips the duplicates.
	report, err = s.service.BulkCheckIn(ctx, BulkRequest{
		DelegateIDs: []string{s.paid.ID.String(), s.unpaid.ID.String()},
	})
	s.Require().NoError(err)
	s.Zero(report.CheckedIn)
	s.Equal(2, report.Skipped)
}

func (s *ServiceSuite) TestDailySummary() {
	ctx := s.ctxAs(s.staff)
	_, err := s.service.Scan(ctx, ScanRequest{Token: s.badgeFor(s.paid), SessionName: "morning"})
	s.Require().NoError(err)
	_, err = s.service.Scan(ctx, ScanRequest{Token: s.badgeFor(s.paid), SessionName: "afternoon"})
	s.Require().NoError(err)

	summary, err := s.service.Daily(ctx, s.eventID, dateOnly(s.now), "")
	s.Require().NoError(err)
	s.Equal(2, summary.TotalCheckIns)
	s.Equal(1, summary.UniqueDelegates)
	s.Equal(1, summary.SessionCounts["morning"])
	s.Equal(1, summary.SessionCounts["afternoon"])

	morning, err := s.service.Daily(ctx, s.eventID, dateOnly(s.now), "morning")
	s.Require().NoError(err)
	s.Equal(1, morning.TotalCheckIns)
}

func (s *ServiceSuite) TestHistoryAndStats() {
	adminCtx := s.ctxAs(s.admin)
	_, err := s.service.CheckInManual(adminCtx, ManualRequest{DelegateID: s.paid.ID.String()})
	s.Require().NoError(err)

	s.now = s.now.Add(24 * time.Hour)
	_, err = s.service.CheckInManual(s.ctxAs(s.admin), ManualRequest{DelegateID: s.paid.ID.String()})
	s.Require().NoError(err)

	history, err := s.service.History(adminCtx, s.paid.ID)
	s.Require().NoError(err)
	s.Require().Len(history, 2)
	s.True(history[0].CheckInTime.Before(history[1].CheckInTime))

	stats, err := s.service.Stats(adminCtx, s.eventID)
	s.Require().NoError(err)
	s.Equal(2, stats.TotalRegistered)
	s.Equal(2, stats.TotalCheckIns)
	s.Equal(1, stats.UniqueDelegates)
	s.Equal(2, stats.SessionCounts["general"])
	s.Equal(1, stats.DailyCounts["2026-06-01"])
	s.Equal(1, stats.DailyCounts["2026-06-02"])
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}
