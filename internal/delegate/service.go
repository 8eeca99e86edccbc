package delegate

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"kayo/internal/audit"
	"kayo/internal/auth"
	"kayo/internal/church"
	"kayo/internal/event"
	"kayo/internal/platform/metrics"
	id "kayo/pkg/domain"
	dErrors "kayo/pkg/domain-errors"
	"kayo/pkg/requestcontext"
)

// UserDirectory resolves the acting user for scope checks and elevated
// permission lookups.
type UserDirectory interface {
	GetUser(ctx context.Context, userID id.UserID) (auth.User, error)
	HasActivePermission(ctx context.Context, userID id.UserID, permissionType string) (bool, error)
}

// EventDirectory resolves events for registration checks.
type EventDirectory interface {
	Get(ctx context.Context, eventID id.EventID) (event.Event, error)
	GetBySlug(ctx context.Context, slug string) (event.Event, error)
}

// Service manages delegate registrations, self-registration review, and
// the payment attachment lifecycle.
type Service struct {
	store   Store
	pending PendingStore
	users   UserDirectory
	events  EventDirectory
	logger  *slog.Logger
	metrics *metrics.Metrics
	audit   audit.Recorder
}

func NewService(store Store, pending PendingStore, users UserDirectory, events EventDirectory, logger *slog.Logger, m *metrics.Metrics, recorder audit.Recorder) *Service {
	if recorder == nil {
		recorder = audit.NopRecorder{}
	}
	return &Service{
		store:   store,
		pending: pending,
		users:   users,
		events:  events,
		logger:  logger,
		metrics: m,
		audit:   recorder,
	}
}

func validateRegistration(name, localChurch, parish, archdeaconry, gender, category string) error {
	if strings.TrimSpace(name) == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if strings.TrimSpace(localChurch) == "" {
		return dErrors.New(dErrors.CodeValidation, "local church is required")
	}
	if !church.ValidArchdeaconry(archdeaconry) {
		return dErrors.Newf(dErrors.CodeValidation, "unknown archdeaconry %q", archdeaconry)
	}
	if !church.ValidParish(archdeaconry, parish) {
		return dErrors.Newf(dErrors.CodeValidation, "parish %q is not in archdeaconry %q", parish, archdeaconry)
	}
	if gender != GenderMale && gender != GenderFemale {
		return dErrors.New(dErrors.CodeValidation, "gender must be male or female")
	}
	if !ValidCategory(category) {
		return dErrors.Newf(dErrors.CodeValidation, "unknown category %q", category)
	}
	return nil
}

// openEvent loads the event and verifies registration is still open,
// including the capacity cap.
func (s *Service) openEvent(ctx context.Context, eventID id.EventID, joining int) (event.Event, error) {
	ev, err := s.events.Get(ctx, eventID)
	if err != nil {
		return event.Event{}, err
	}
	if !ev.RegistrationOpen(requestcontext.Now(ctx)) {
		return event.Event{}, dErrors.New(dErrors.CodeConflict, "registration is closed for this event")
	}
	if ev.MaxDelegates > 0 {
		count, err := s.store.Count(ctx, Filter{EventID: ev.ID})
		if err != nil {
			return event.Event{}, dErrors.Wrap(err, dErrors.CodeInternal, "count event delegates")
		}
		if count+joining > ev.MaxDelegates {
			return event.Event{}, dErrors.New(dErrors.CodeConflict, "event is at capacity")
		}
	}
	return ev, nil
}

// Register records one delegate on behalf of the authenticated user.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (Delegate, error) {
	if req.Category == "" {
		req.Category = CategoryDelegate
	}
	if err := validateRegistration(req.Name, req.LocalChurch, req.Parish, req.Archdeaconry, req.Gender, req.Category); err != nil {
		return Delegate{}, err
	}

	var eventID id.EventID
	if req.EventID != "" {
		parsed, err := id.ParseEventID(req.EventID)
		if err != nil {
			return Delegate{}, err
		}
		if _, err := s.openEvent(ctx, parsed, 1); err != nil {
			return Delegate{}, err
		}
		eventID = parsed
	}

	d := Delegate{
		ID:           id.NewDelegateID(),
		Name:         strings.TrimSpace(req.Name),
		LocalChurch:  strings.TrimSpace(req.LocalChurch),
		Parish:       req.Parish,
		Archdeaconry: req.Archdeaconry,
		PhoneNumber:  strings.TrimSpace(req.PhoneNumber),
		Gender:       req.Gender,
		AgeBracket:   req.AgeBracket,
		Category:     req.Category,
		EventID:      eventID,
		RegisteredBy: requestcontext.UserID(ctx),
		RegisteredAt: requestcontext.Now(ctx),
		FeeExempt:    req.FeeExempt,
	}
	if err := s.store.Insert(ctx, d); err != nil {
		return Delegate{}, dErrors.Wrap(err, dErrors.CodeInternal, "insert delegate")
	}

	if s.metrics != nil {
		s.metrics.DelegatesRegistered.Inc()
	}
	s.audit.Record(ctx, audit.FromContext(ctx, audit.Entry{
		Action:       audit.ActionCreate,
		ResourceType: "delegate",
		ResourceID:   d.ID.String(),
		NewValues:    map[string]any{"name": d.Name, "parish": d.Parish, "archdeaconry": d.Archdeaconry},
	}))
	return d, nil
}

// scope restricts a filter to what the acting user may see. Chairs see
// their own registrations, youth ministers their archdeaconry, finance
// and admins everything.
func (s *Service) scope(ctx context.Context, filter Filter) (Filter, error) {
	switch requestcontext.Role(ctx) {
	case auth.RoleChair:
		filter.RegisteredBy = requestcontext.UserID(ctx)
	case auth.RoleYouthMinister:
		user, err := s.users.GetUser(ctx, requestcontext.UserID(ctx))
		if err != nil {
			return Filter{}, err
		}
		filter.Archdeaconry = user.Archdeaconry
	}
	return filter, nil
}

func (s *Service) canAccess(ctx context.Context, d Delegate) (bool, error) {
	switch requestcontext.Role(ctx) {
	case auth.RoleChair:
		return d.RegisteredBy == requestcontext.UserID(ctx), nil
	case auth.RoleYouthMinister:
		user, err := s.users.GetUser(ctx, requestcontext.UserID(ctx))
		if err != nil {
			return false, err
		}
		return strings.EqualFold(d.Archdeaconry, user.Archdeaconry), nil
	default:
		return true, nil
	}
}

func (s *Service) Get(ctx context.Context, delegateID id.DelegateID) (Delegate, error) {
	d, err := s.store.FindByID(ctx, delegateID)
	if err != nil {
		return Delegate{}, err
	}
	ok, err := s.canAccess(ctx, d)
	if err != nil {
		return Delegate{}, err
	}
	if !ok {
		return Delegate{}, ErrNotFound
	}
	return d, nil
}

func (s *Service) List(ctx context.Context, filter Filter) ([]Delegate, error) {
	scoped, err := s.scope(ctx, filter)
	if err != nil {
		return nil, err
	}
	return s.store.List(ctx, scoped)
}

func (s *Service) Stats(ctx context.Context, filter Filter) (Stats, error) {
	scoped, err := s.scope(ctx, filter)
	if err != nil {
		return Stats{}, err
	}
	return s.store.Stats(ctx, scoped)
}

// Update edits a delegate record. Paid delegates are locked for
// everyone below admin so payment records stay consistent.
func (s *Service) Update(ctx context.Context, delegateID id.DelegateID, req UpdateRequest) (Delegate, error) {
	d, err := s.Get(ctx, delegateID)
	if err != nil {
		return Delegate{}, err
	}

	role := requestcontext.Role(ctx)
	if d.IsPaid && role != auth.RoleAdmin && role != auth.RoleSuperAdmin {
		return Delegate{}, dErrors.New(dErrors.CodeConflict, "paid delegate records are locked")
	}

	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return Delegate{}, dErrors.New(dErrors.CodeValidation, "name cannot be empty")
		}
		d.Name = strings.TrimSpace(*req.Name)
	}
	if req.PhoneNumber != nil {
		d.PhoneNumber = strings.TrimSpace(*req.PhoneNumber)
	}
	if req.Gender != nil {
		if *req.Gender != GenderMale && *req.Gender != GenderFemale {
			return Delegate{}, dErrors.New(dErrors.CodeValidation, "gender must be male or female")
		}
		d.Gender = *req.Gender
	}
	if req.AgeBracket != nil {
		d.AgeBracket = *req.AgeBracket
	}
	if req.Category != nil {
		if !ValidCategory(*req.Category) {
			return Delegate{}, dErrors.Newf(dErrors.CodeValidation, "unknown category %q", *req.Category)
		}
		d.Category = *req.Category
	}
	if req.FeeExempt != nil {
		// Exempting a delegate who is mid-payment would desync the claim.
		if *req.FeeExempt && !d.PaymentID.IsZero() && !d.IsPaid {
			return Delegate{}, dErrors.New(dErrors.CodeConflict, "delegate has a payment in progress")
		}
		d.FeeExempt = *req.FeeExempt
	}

	if err := s.store.Update(ctx, d); err != nil {
		return Delegate{}, dErrors.Wrap(err, dErrors.CodeInternal, "update delegate")
	}
	s.audit.Record(ctx, audit.FromContext(ctx, audit.Entry{
		Action:       audit.ActionUpdate,
		ResourceType: "delegate",
		ResourceID:   d.ID.String(),
		NewValues:    map[string]any{"name": d.Name, "category": d.Category, "fee_exempt": d.FeeExempt},
	}))
	return d, nil
}

// Delete removes an unpaid delegate. Paid delegates cannot be deleted,
// only corrected by admins, because their fee is already in the ledger.
func (s *Service) Delete(ctx context.Context, delegateID id.DelegateID) error {
	d, err := s.Get(ctx, delegateID)
	if err != nil {
		return err
	}
	if d.IsPaid {
		return dErrors.New(dErrors.CodeConflict, "paid delegates cannot be deleted")
	}
	if !d.PaymentID.IsZero() {
		return dErrors.New(dErrors.CodeConflict, "delegate has a payment in progress")
	}
	if err := s.store.Delete(ctx, delegateID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "delete delegate")
	}
	s.audit.Record(ctx, audit.FromContext(ctx, audit.Entry{
		Action:       audit.ActionDelete,
		ResourceType: "delegate",
		ResourceID:   d.ID.String(),
		OldValues:    map[string]any{"name": d.Name, "parish": d.Parish},
	}))
	return nil
}

// bulkHeader is the required CSV column order for bulk uploads.
var bulkHeader = []string{"name", "local_church", "parish", "archdeaconry", "phone_number", "gender", "age_bracket", "category"}

// UploadTemplate writes the bulk upload CSV template: the required
// header row plus one example row.
func (s *Service) UploadTemplate(w io.Writer) error {
	cw := csv.NewWriter(w)
	rows := [][]string{
		bulkHeader,
		{"Jane Wanjiku", "St Peters", "Nasira Parish", "Nambale Archdeaconry", "0712345678", GenderFemale, "18-25", CategoryDelegate},
	}
	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "write template")
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "write template")
	}
	return nil
}

// BulkUpload registers delegates from a CSV stream. Chairs need an
// approved bulk_upload permission; youth ministers and above do not.
func (s *Service) BulkUpload(ctx context.Context, eventIDRaw string, r io.Reader) (BulkUploadReport, error) {
	if requestcontext.Role(ctx) == auth.RoleChair {
		allowed, err := s.users.HasActivePermission(ctx, requestcontext.UserID(ctx), auth.PermissionBulkUpload)
		if err != nil {
			return BulkUploadReport{}, dErrors.Wrap(err, dErrors.CodeInternal, "check bulk upload permission")
		}
		if !allowed {
			return BulkUploadReport{}, dErrors.New(dErrors.CodeForbidden, "bulk upload requires an approved permission request")
		}
	}

	if eventIDRaw != "" {
		if _, err := id.ParseEventID(eventIDRaw); err != nil {
			return BulkUploadReport{}, err
		}
	}

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return BulkUploadReport{}, dErrors.Wrap(err, dErrors.CodeValidation, "read csv header")
	}
	for i, want := range bulkHeader {
		if i >= len(header) || !strings.EqualFold(strings.TrimSpace(header[i]), want) {
			return BulkUploadReport{}, dErrors.Newf(dErrors.CodeValidation, "csv header must be %s", strings.Join(bulkHeader, ","))
		}
	}

	var report BulkUploadReport
	row := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		row++
		if err != nil {
			report.Rejected++
			report.Errors = append(report.Errors, BulkRowError{Row: row, Reason: "malformed row"})
			continue
		}
		for len(record) < len(bulkHeader) {
			record = append(record, "")
		}
		category := strings.TrimSpace(record[7])
		if category == "" {
			category = CategoryDelegate
		}
		req := RegisterRequest{
			Name:         strings.TrimSpace(record[0]),
			LocalChurch:  strings.TrimSpace(record[1]),
			Parish:       strings.TrimSpace(record[2]),
			Archdeaconry: strings.TrimSpace(record[3]),
			PhoneNumber:  strings.TrimSpace(record[4]),
			Gender:       strings.ToLower(strings.TrimSpace(record[5])),
			AgeBracket:   strings.TrimSpace(record[6]),
			Category:     category,
			EventID:      eventIDRaw,
		}
		if _, err := s.Register(ctx, req); err != nil {
			report.Rejected++
			report.Errors = append(report.Errors, BulkRowError{Row: row, Reason: err.Error()})
			continue
		}
		report.Registered++
	}

	s.logger.InfoContext(ctx, "bulk upload processed",
		slog.Int("registered", report.Registered),
		slog.Int("rejected", report.Rejected))
	return report, nil
}

func newRegistrationToken() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("registration token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// SubmitSelfRegistration accepts a public registration and parks it for
// a chair's review. The returned token lets the delegate track their
// status without an account.
func (s *Service) SubmitSelfRegistration(ctx context.Context, req SelfRegisterRequest) (PendingDelegate, error) {
	category := req.Category
	if category == "" {
		category = CategoryDelegate
	}
	if err := validateRegistration(req.Name, req.LocalChurch, req.Parish, req.Archdeaconry, req.Gender, category); err != nil {
		return PendingDelegate{}, err
	}

	var eventID id.EventID
	if req.EventSlug != "" {
		ev, err := s.events.GetBySlug(ctx, req.EventSlug)
		if err != nil {
			return PendingDelegate{}, err
		}
		if !ev.RegistrationOpen(requestcontext.Now(ctx)) {
			return PendingDelegate{}, dErrors.New(dErrors.CodeConflict, "registration is closed for this event")
		}
		eventID = ev.ID
	}

	token, err := newRegistrationToken()
	if err != nil {
		return PendingDelegate{}, dErrors.Wrap(err, dErrors.CodeInternal, "generate token")
	}

	p := PendingDelegate{
		ID:                id.NewPendingDelegateID(),
		RegistrationToken: token,
		Name:              strings.TrimSpace(req.Name),
		LocalChurch:       strings.TrimSpace(req.LocalChurch),
		Parish:            req.Parish,
		Archdeaconry:      req.Archdeaconry,
		PhoneNumber:       strings.TrimSpace(req.PhoneNumber),
		Email:             strings.TrimSpace(req.Email),
		Gender:            req.Gender,
		AgeBracket:        req.AgeBracket,
		Category:          category,
		EventID:           eventID,
		Status:            PendingStatusPending,
		SubmittedAt:       requestcontext.Now(ctx),
	}
	if err := s.pending.Insert(ctx, p); err != nil {
		return PendingDelegate{}, dErrors.Wrap(err, dErrors.CodeInternal, "insert pending delegate")
	}
	return p, nil
}

// TrackSelfRegistration returns the status of a self-registration by
// its tracking token.
func (s *Service) TrackSelfRegistration(ctx context.Context, token string) (PendingDelegate, error) {
	if token == "" {
		return PendingDelegate{}, dErrors.New(dErrors.CodeValidation, "token is required")
	}
	return s.pending.FindByToken(ctx, token)
}

// PendingRegistrations lists self-registrations awaiting review, scoped
// to the reviewer's parish for chairs and archdeaconry for youth
// ministers.
func (s *Service) PendingRegistrations(ctx context.Context) ([]PendingDelegate, error) {
	all, err := s.pending.ListPending(ctx)
	if err != nil {
		return nil, err
	}

	switch requestcontext.Role(ctx) {
	case auth.RoleChair, auth.RoleYouthMinister:
		user, err := s.users.GetUser(ctx, requestcontext.UserID(ctx))
		if err != nil {
			return nil, err
		}
		var scoped []PendingDelegate
		for _, p := range all {
			if s.inReviewerScope(user, p) {
				scoped = append(scoped, p)
			}
		}
		return scoped, nil
	default:
		return all, nil
	}
}

// inReviewerScope matches a pending registration to a reviewer, falling
// back from parish to archdeaconry when the reviewer's profile does not
// record a parish.
func (s *Service) inReviewerScope(user auth.User, p PendingDelegate) bool {
	if user.Role == auth.RoleChair && user.Parish != "" {
		return strings.EqualFold(p.Parish, user.Parish)
	}
	if user.Archdeaconry != "" {
		return strings.EqualFold(p.Archdeaconry, user.Archdeaconry)
	}
	return false
}

// ReviewSelfRegistration approves or rejects a pending registration.
// Approval creates the delegate record under the reviewer's name.
func (s *Service) ReviewSelfRegistration(ctx context.Context, pendingID id.PendingDelegateID, req ReviewRequest) (PendingDelegate, error) {
	p, err := s.pending.FindByID(ctx, pendingID)
	if err != nil {
		return PendingDelegate{}, err
	}
	if p.Status != PendingStatusPending {
		return PendingDelegate{}, dErrors.New(dErrors.CodeConflict, "registration has already been reviewed")
	}

	user, err := s.users.GetUser(ctx, requestcontext.UserID(ctx))
	if err != nil {
		return PendingDelegate{}, err
	}
	if (user.Role == auth.RoleChair || user.Role == auth.RoleYouthMinister) && !s.inReviewerScope(user, p) {
		return PendingDelegate{}, ErrNotFound
	}

	now := requestcontext.Now(ctx)
	p.ReviewedAt = &now
	p.ReviewedBy = user.ID
	p.ReviewerNotes = req.Notes

	if !req.Approve {
		if strings.TrimSpace(req.RejectionReason) == "" {
			return PendingDelegate{}, dErrors.New(dErrors.CodeValidation, "rejection reason is required")
		}
		p.Status = PendingStatusRejected
		p.RejectionReason = req.RejectionReason
		if err := s.pending.Update(ctx, p); err != nil {
			return PendingDelegate{}, dErrors.Wrap(err, dErrors.CodeInternal, "update pending delegate")
		}
		s.audit.Record(ctx, audit.FromContext(ctx, audit.Entry{
			Action:       audit.ActionReject,
			ResourceType: "pending_delegate",
			ResourceID:   p.ID.String(),
			NewValues:    map[string]any{"reason": p.RejectionReason},
		}))
		return p, nil
	}

	if !p.EventID.IsZero() {
		if _, err := s.openEvent(ctx, p.EventID, 1); err != nil {
			return PendingDelegate{}, err
		}
	}

	d := Delegate{
		ID:           id.NewDelegateID(),
		Name:         p.Name,
		LocalChurch:  p.LocalChurch,
		Parish:       p.Parish,
		Archdeaconry: p.Archdeaconry,
		PhoneNumber:  p.PhoneNumber,
		Gender:       p.Gender,
		AgeBracket:   p.AgeBracket,
		Category:     p.Category,
		EventID:      p.EventID,
		RegisteredBy: user.ID,
		RegisteredAt: now,
	}
	if err := s.store.Insert(ctx, d); err != nil {
		return PendingDelegate{}, dErrors.Wrap(err, dErrors.CodeInternal, "insert delegate")
	}

	p.Status = PendingStatusApproved
	p.DelegateID = d.ID
	if err := s.pending.Update(ctx, p); err != nil {
		return PendingDelegate{}, dErrors.Wrap(err, dErrors.CodeInternal, "update pending delegate")
	}

	if s.metrics != nil {
		s.metrics.DelegatesRegistered.Inc()
	}
	s.audit.Record(ctx, audit.FromContext(ctx, audit.Entry{
		Action:       audit.ActionApprove,
		ResourceType: "pending_delegate",
		ResourceID:   p.ID.String(),
		NewValues:    map[string]any{"delegate_id": d.ID.String()},
	}))
	return p, nil
}

// ClaimForPayment reserves the delegates for a payment attempt. The
// payment service calls this before initiating an STK push.
func (s *Service) ClaimForPayment(ctx context.Context, delegateIDs []id.DelegateID, paymentID id.PaymentID) error {
	if len(delegateIDs) == 0 {
		return dErrors.New(dErrors.CodeValidation, "at least one delegate is required")
	}
	seen := make(map[id.DelegateID]struct{}, len(delegateIDs))
	for _, delegateID := range delegateIDs {
		if _, dup := seen[delegateID]; dup {
			return dErrors.New(dErrors.CodeValidation, "duplicate delegate in payment")
		}
		seen[delegateID] = struct{}{}
	}
	return s.store.ClaimForPayment(ctx, delegateIDs, paymentID)
}

// MarkPaid flips the paid flag on every delegate covered by a completed
// payment and returns how many were updated.
func (s *Service) MarkPaid(ctx context.Context, paymentID id.PaymentID) (int, error) {
	return s.store.MarkPaid(ctx, paymentID)
}

// ReleasePayment frees delegates from a failed or cancelled payment so
// they can be claimed again.
func (s *Service) ReleasePayment(ctx context.Context, paymentID id.PaymentID) error {
	return s.store.ReleasePayment(ctx, paymentID)
}

// SetCheckedIn records whether a delegate has been checked in at least
// once. The check-in service keeps the per-session records.
func (s *Service) SetCheckedIn(ctx context.Context, delegateID id.DelegateID, checkedIn bool) error {
	return s.store.SetCheckedIn(ctx, delegateID, checkedIn)
}
