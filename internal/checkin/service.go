package checkin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"kayo/internal/audit"
	"kayo/internal/auth"
	"kayo/internal/delegate"
	"kayo/internal/platform/metrics"
	id "kayo/pkg/domain"
	dErrors "kayo/pkg/domain-errors"
	"kayo/pkg/requestcontext"
)

const dateLayout = "2006-01-02"

// DelegateStore is the slice of the delegate store the gate needs:
// unscoped lookup plus the checked-in flag.
type DelegateStore interface {
	FindByID(ctx context.Context, delegateID id.DelegateID) (delegate.Delegate, error)
	SetCheckedIn(ctx context.Context, delegateID id.DelegateID, checkedIn bool) error
	Count(ctx context.Context, filter delegate.Filter) (int, error)
}

// Service records event attendance from badge scans, manual lookups and
// bulk lists.
type Service struct {
	store     Store
	delegates DelegateStore
	badges    *BadgeIssuer
	logger    *slog.Logger
	metrics   *metrics.Metrics
	audit     audit.Recorder
}

func NewService(store Store, delegates DelegateStore, badges *BadgeIssuer, logger *slog.Logger, m *metrics.Metrics, recorder audit.Recorder) *Service {
	if recorder == nil {
		recorder = audit.NopRecorder{}
	}
	return &Service{
		store:     store,
		delegates: delegates,
		badges:    badges,
		logger:    logger,
		metrics:   m,
		audit:     recorder,
	}
}

// IssueBadge signs a QR payload for the delegate's event badge.
func (s *Service) IssueBadge(ctx context.Context, delegateID id.DelegateID) (Badge, error) {
	if _, err := s.delegates.FindByID(ctx, delegateID); err != nil {
		return Badge{}, err
	}
	token, expiresAt, err := s.badges.Issue(delegateID, requestcontext.Now(ctx))
	if err != nil {
		return Badge{}, err
	}
	return Badge{DelegateID: delegateID, Token: token, ExpiresAt: expiresAt}, nil
}

// Scan verifies a badge payload and checks the delegate in. Unpaid
// delegates come back as a warning without a record; the gate falls
// back to a manual check-in by an admin for those.
func (s *Service) Scan(ctx context.Context, req ScanRequest) (ScanResult, error) {
	delegateID, err := s.badges.Verify(req.Token)
	if err != nil {
		return ScanResult{}, err
	}
	d, err := s.delegates.FindByID(ctx, delegateID)
	if err != nil {
		return ScanResult{}, err
	}
	if !d.IsPaid && !d.FeeExempt {
		return ScanResult{Status: StatusUnpaid, Delegate: d}, nil
	}
	return s.checkIn(ctx, d, req.EventID, req.SessionName, MethodQRScan)
}

// CheckInManual records attendance from a delegate lookup. Admins may
// wave through unpaid delegates; everyone else gets the unpaid warning.
func (s *Service) CheckInManual(ctx context.Context, req ManualRequest) (ScanResult, error) {
	delegateID, err := id.ParseDelegateID(req.DelegateID)
	if err != nil {
		return ScanResult{}, err
	}
	d, err := s.delegates.FindByID(ctx, delegateID)
	if err != nil {
		return ScanResult{}, err
	}
	if !d.IsPaid && !d.FeeExempt && !isAdmin(requestcontext.Role(ctx)) {
		return ScanResult{Status: StatusUnpaid, Delegate: d}, nil
	}
	return s.checkIn(ctx, d, req.EventID, req.SessionName, MethodManual)
}

// BulkCheckIn records a list of delegates in one call, skipping
// duplicates instead of failing the batch.
func (s *Service) BulkCheckIn(ctx context.Context, req BulkRequest) (BulkReport, error) {
	if len(req.DelegateIDs) == 0 {
		return BulkReport{}, dErrors.New(dErrors.CodeValidation, "no delegates given")
	}
	var report BulkReport
	for _, raw := range req.DelegateIDs {
		delegateID, err := id.ParseDelegateID(raw)
		if err != nil {
			report.Errors = append(report.Errors, raw+": invalid id")
			continue
		}
		d, err := s.delegates.FindByID(ctx, delegateID)
		if err != nil {
			report.Errors = append(report.Errors, raw+": not found")
			continue
		}
		result, err := s.checkIn(ctx, d, req.EventID, req.SessionName, MethodBulk)
		if err != nil {
			report.Errors = append(report.Errors, raw+": "+err.Error())
			continue
		}
		if result.Status == StatusCheckedIn {
			report.CheckedIn++
		} else {
			report.Skipped++
		}
	}
	return report, nil
}

func (s *Service) checkIn(ctx context.Context, d delegate.Delegate, rawEventID, session, method string) (ScanResult, error) {
	eventID := d.EventID
	if rawEventID != "" {
		parsed, err := id.ParseEventID(rawEventID)
		if err != nil {
			return ScanResult{}, err
		}
		eventID = parsed
	}
	if eventID.IsZero() {
		return ScanResult{}, dErrors.New(dErrors.CodeValidation, "delegate has no event and none was given")
	}

	now := requestcontext.Now(ctx)
	day := dateOnly(now)
	r := Record{
		ID:          id.NewCheckInID(),
		DelegateID:  d.ID,
		EventID:     eventID,
		CheckInDate: day,
		CheckInTime: now,
		CheckedInBy: requestcontext.UserID(ctx),
		SessionName: session,
		Method:      method,
	}
	if err := s.store.Insert(ctx, r); err != nil {
		if errors.Is(err, ErrDuplicate) {
			existing, findErr := s.store.Find(ctx, d.ID, eventID, day, session)
			if findErr != nil {
				return ScanResult{}, findErr
			}
			return ScanResult{Status: StatusAlreadyCheckedIn, Delegate: d, Record: &existing}, nil
		}
		return ScanResult{}, fmt.Errorf("record check-in: %w", err)
	}

	if err := s.delegates.SetCheckedIn(ctx, d.ID, true); err != nil {
		s.logger.ErrorContext(ctx, "failed to flag delegate as checked in",
			"delegate_id", d.ID, "error", err)
	}
	if s.metrics != nil {
		s.metrics.CheckInsRecorded.Inc()
	}
	s.audit.Record(ctx, audit.Entry{
		Action:       audit.ActionCreate,
		ResourceType: "check_in",
		ResourceID:   r.ID.String(),
		Description:  fmt.Sprintf("%s checked in via %s", d.Name, method),
	})
	d.CheckedIn = true
	return ScanResult{Status: StatusCheckedIn, Delegate: d, Record: &r}, nil
}

func isAdmin(role string) bool {
	return role == auth.RoleAdmin || role == auth.RoleSuperAdmin
}

func dateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Daily lists one day's arrivals with delegate detail.
func (s *Service) Daily(ctx context.Context, eventID id.EventID, day time.Time, session string) (DailySummary, error) {
	records, err := s.store.ListByDate(ctx, eventID, day, session)
	if err != nil {
		return DailySummary{}, err
	}
	summary := DailySummary{
		Date:          day,
		TotalCheckIns: len(records),
		SessionCounts: make(map[string]int),
	}
	seen := make(map[id.DelegateID]bool)
	for _, r := range records {
		d, err := s.delegates.FindByID(ctx, r.DelegateID)
		if err != nil {
			s.logger.WarnContext(ctx, "check-in references missing delegate",
				"delegate_id", r.DelegateID, "error", err)
			continue
		}
		summary.Arrivals = append(summary.Arrivals, Arrival{Record: r, Delegate: d})
		if !seen[r.DelegateID] {
			seen[r.DelegateID] = true
			summary.UniqueDelegates++
		}
		name := r.SessionName
		if name == "" {
			name = "general"
		}
		summary.SessionCounts[name]++
	}
	return summary, nil
}

// History lists every check-in for one delegate, oldest first.
func (s *Service) History(ctx context.Context, delegateID id.DelegateID) ([]Record, error) {
	if _, err := s.delegates.FindByID(ctx, delegateID); err != nil {
		return nil, err
	}
	return s.store.HistoryFor(ctx, delegateID)
}

// Stats aggregates attendance over the whole event.
func (s *Service) Stats(ctx context.Context, eventID id.EventID) (EventStats, error) {
	stats, err := s.store.Stats(ctx, eventID)
	if err != nil {
		return EventStats{}, err
	}
	registered, err := s.delegates.Count(ctx, delegate.Filter{EventID: eventID})
	if err != nil {
		return EventStats{}, err
	}
	stats.TotalRegistered = registered
	return stats, nil
}
