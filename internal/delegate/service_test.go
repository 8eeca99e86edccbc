package delegate

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"kayo/internal/audit"
	"kayo/internal/auth"
	"kayo/internal/event"
	id "kayo/pkg/domain"
	dErrors "kayo/pkg/domain-errors"
	"kayo/pkg/requestcontext"
)

type fakeUsers struct {
	users       map[id.UserID]auth.User
	permissions map[id.UserID]map[string]bool
}

func (f *fakeUsers) GetUser(_ context.Context, userID id.UserID) (auth.User, error) {
	user, ok := f.users[userID]
	if !ok {
		return auth.User{}, auth.ErrNotFound
	}
	return user, nil
}

func (f *fakeUsers) HasActivePermission(_ context.Context, userID id.UserID, permissionType string) (bool, error) {
	return f.permissions[userID][permissionType], nil
}

type fakeEvents struct {
	events map[id.EventID]event.Event
}

func (f *fakeEvents) Get(_ context.Context, eventID id.EventID) (event.Event, error) {
	ev, ok := f.events[eventID]
	if !ok {
		return event.Event{}, event.ErrNotFound
	}
	return ev, nil
}

func (f *fakeEvents) GetBySlug(_ context.Context, slug string) (event.Event, error) {
	for _, ev := range f.events {
		if ev.Slug == slug {
			return ev, nil
		}
	}
	return event.Event{}, event.ErrNotFound
}

type ServiceSuite struct {
	suite.Suite

	store   *MemoryStore
	pending *MemoryPendingStore
	users   *fakeUsers
	events  *fakeEvents
	service *Service
	now     time.Time

	chair   auth.User
	chair2  auth.User
	ym      auth.User
	admin   auth.User
	eventID id.EventID
}

func (s *ServiceSuite) SetupTest() {
	s.store = NewMemoryStore()
	s.pending = NewMemoryPendingStore()
	s.now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	s.chair = auth.User{ID: id.NewUserID(), Name: "Grace", Role: auth.RoleChair, Parish: "Nasira Parish", Archdeaconry: "Nambale Archdeaconry"}
	s.chair2 = auth.User{ID: id.NewUserID(), Name: "Peter", Role: auth.RoleChair, Parish: "Khasoko Parish", Archdeaconry: "Khasoko Archdeaconry"}
	s.ym = auth.User{ID: id.NewUserID(), Name: "Mercy", Role: auth.RoleYouthMinister, Archdeaconry: "Nambale Archdeaconry"}
	s.admin = auth.User{ID: id.NewUserID(), Name: "Root", Role: auth.RoleAdmin}

	s.users = &fakeUsers{
		users: map[id.UserID]auth.User{
			s.chair.ID:  s.chair,
			s.chair2.ID: s.chair2,
			s.ym.ID:     s.ym,
			s.admin.ID:  s.admin,
		},
		permissions: map[id.UserID]map[string]bool{},
	}

	s.eventID = id.NewEventID()
	s.events = &fakeEvents{events: map[id.EventID]event.Event{
		s.eventID: {
			ID:          s.eventID,
			Name:        "Annual Youth Conference",
			Slug:        "ayc-2026",
			StartDate:   time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC),
			EndDate:     time.Date(2026, 8, 14, 0, 0, 0, 0, time.UTC),
			IsActive:    true,
			IsPublished: true,
		},
	}}

	s.service = NewService(s.store, s.pending, s.users, s.events, slog.Default(), nil, audit.NopRecorder{})
}

func (s *ServiceSuite) ctxAs(user auth.User) context.Context {
	ctx := requestcontext.WithTime(context.Background(), s.now)
	ctx = requestcontext.WithUserID(ctx, user.ID)
	return requestcontext.WithRole(ctx, user.Role)
}

func validRequest() RegisterRequest {
	return RegisterRequest{
		Name:         "John Wanjala",
		LocalChurch:  "St Peters",
		Parish:       "Nasira Parish",
		Archdeaconry: "Nambale Archdeaconry",
		PhoneNumber:  "0712345678",
		Gender:       GenderMale,
	}
}

func (s *ServiceSuite) TestRegister() {
	d, err := s.service.Register(s.ctxAs(s.chair), validRequest())
	s.Require().NoError(err)
	s.Equal(s.chair.ID, d.RegisteredBy)
	s.Equal(CategoryDelegate, d.Category)
	s.False(d.IsPaid)

	stored, err := s.store.FindByID(context.Background(), d.ID)
	s.Require().NoError(err)
	s.Equal("John Wanjala", stored.Name)
	s.Equal(s.now, stored.RegisteredAt)
}

func (s *ServiceSuite) TestRegisterValidation() {
	cases := []struct {
		name   string
		mutate func(*RegisterRequest)
	}{
		{"empty name", func(r *RegisterRequest) { r.Name = " " }},
		{"unknown archdeaconry", func(r *RegisterRequest) { r.Archdeaconry = "Nowhere Archdeaconry" }},
		{"parish outside archdeaconry", func(r *RegisterRequest) { r.Parish = "Khasoko Parish" }},
		{"bad gender", func(r *RegisterRequest) { r.Gender = "other" }},
		{"bad category", func(r *RegisterRequest) { r.Category = "vip" }},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			req := validRequest()
			tc.mutate(&req)
			_, err := s.service.Register(s.ctxAs(s.chair), req)
			s.Require().Error(err)
			s.True(dErrors.Is(err, dErrors.CodeValidation))
		})
	}
}

func (s *ServiceSuite) TestRegisterClosedEvent() {
	ev := s.events.events[s.eventID]
	ev.IsPublished = false
	s.events.events[s.eventID] = ev

	req := validRequest()
	req.EventID = s.eventID.String()
	_, err := s.service.Register(s.ctxAs(s.chair), req)
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeConflict))
}

func (s *ServiceSuite) TestRegisterCapacity() {
	ev := s.events.events[s.eventID]
	ev.MaxDelegates = 2
	s.events.events[s.eventID] = ev

	for _, name := range []string{"First Delegate", "Second Delegate"} {
		req := validRequest()
		req.Name = name
		req.EventID = s.eventID.String()
		_, err := s.service.Register(s.ctxAs(s.chair), req)
		s.Require().NoError(err)
	}

	req := validRequest()
	req.Name = "Third Delegate"
	req.EventID = s.eventID.String()
	_, err := s.service.Register(s.ctxAs(s.chair), req)
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeConflict))
}

func (s *ServiceSuite) TestListScoping() {
	_, err := s.service.Register(s.ctxAs(s.chair), validRequest())
	s.Require().NoError(err)

	other := RegisterRequest{
		Name: "Jane Auma", LocalChurch: "St Marks", Parish: "Khasoko Parish",
		Archdeaconry: "Khasoko Archdeaconry", Gender: GenderFemale,
	}
	_, err = s.service.Register(s.ctxAs(s.chair2), other)
	s.Require().NoError(err)

	mine, err := s.service.List(s.ctxAs(s.chair), Filter{})
	s.Require().NoError(err)
	s.Len(mine, 1)
	s.Equal("John Wanjala", mine[0].Name)

	byArch, err := s.service.List(s.ctxAs(s.ym), Filter{})
	s.Require().NoError(err)
	s.Len(byArch, 1)
	s.Equal("Nambale Archdeaconry", byArch[0].Archdeaconry)

	all, err := s.service.List(s.ctxAs(s.admin), Filter{})
	s.Require().NoError(err)
	s.Len(all, 2)
}

func (s *ServiceSuite) TestGetOutOfScope() {
	d, err := s.service.Register(s.ctxAs(s.chair), validRequest())
	s.Require().NoError(err)

	_, err = s.service.Get(s.ctxAs(s.chair2), d.ID)
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestUpdatePaidLocked() {
	d, err := s.service.Register(s.ctxAs(s.chair), validRequest())
	s.Require().NoError(err)

	paymentID := id.NewPaymentID()
	s.Require().NoError(s.store.ClaimForPayment(context.Background(), []id.DelegateID{d.ID}, paymentID))
	changed, err := s.store.MarkPaid(context.Background(), paymentID)
	s.Require().NoError(err)
	s.Equal(1, changed)

	name := "New Name"
	_, err = s.service.Update(s.ctxAs(s.chair), d.ID, UpdateRequest{Name: &name})
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeConflict))

	updated, err := s.service.Update(s.ctxAs(s.admin), d.ID, UpdateRequest{Name: &name})
	s.Require().NoError(err)
	s.Equal("New Name", updated.Name)
}

func (s *ServiceSuite) TestDeletePaid() {
	d, err := s.service.Register(s.ctxAs(s.chair), validRequest())
	s.Require().NoError(err)

	paymentID := id.NewPaymentID()
	s.Require().NoError(s.store.ClaimForPayment(context.Background(), []id.DelegateID{d.ID}, paymentID))
	_, err = s.store.MarkPaid(context.Background(), paymentID)
	s.Require().NoError(err)

	err = s.service.Delete(s.ctxAs(s.admin), d.ID)
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeConflict))
}

func (s *ServiceSuite) TestClaimLifecycle() {
	ctx := s.ctxAs(s.chair)
	first, err := s.service.Register(ctx, validRequest())
	s.Require().NoError(err)
	second := validRequest()
	second.Name = "Mary Nekesa"
	second.Gender = GenderFemale
	other, err := s.service.Register(ctx, second)
	s.Require().NoError(err)

	paymentID := id.NewPaymentID()
	err = s.service.ClaimForPayment(ctx, []id.DelegateID{first.ID, other.ID}, paymentID)
	s.Require().NoError(err)

	// A second payment cannot claim delegates already attached.
	err = s.service.ClaimForPayment(ctx, []id.DelegateID{first.ID}, id.NewPaymentID())
	s.Require().ErrorIs(err, ErrAlreadyClaimed)

	// Failure path releases the claim and the delegates become claimable.
	s.Require().NoError(s.service.ReleasePayment(ctx, paymentID))
	err = s.service.ClaimForPayment(ctx, []id.DelegateID{first.ID}, id.NewPaymentID())
	s.Require().NoError(err)
}

func (s *ServiceSuite) TestClaimValidation() {
	ctx := s.ctxAs(s.chair)
	d, err := s.service.Register(ctx, validRequest())
	s.Require().NoError(err)

	err = s.service.ClaimForPayment(ctx, nil, id.NewPaymentID())
	s.True(dErrors.Is(err, dErrors.CodeValidation))

	err = s.service.ClaimForPayment(ctx, []id.DelegateID{d.ID, d.ID}, id.NewPaymentID())
	s.True(dErrors.Is(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestBulkUploadPermission() {
	csvBody := strings.NewReader("name,local_church,parish,archdeaconry,phone_number,gender,age_bracket,category\n")
	_, err := s.service.BulkUpload(s.ctxAs(s.chair), "", csvBody)
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeForbidden))
}

func (s *ServiceSuite) TestBulkUpload() {
	s.users.permissions[s.chair.ID] = map[string]bool{auth.PermissionBulkUpload: true}

	body := strings.Join([]string{
		"name,local_church,parish,archdeaconry,phone_number,gender,age_bracket,category",
		"John Wanjala,St Peters,Nasira Parish,Nambale Archdeaconry,0712345678,male,18-25,",
		"Mary Nekesa,St Marks,Nasira Parish,Nambale Archdeaconry,,female,26-35,leader",
		"Bad Row,St Lukes,Nowhere Parish,Nambale Archdeaconry,,male,,",
	}, "\n")

	report, err := s.service.BulkUpload(s.ctxAs(s.chair), "", strings.NewReader(body))
	s.Require().NoError(err)
	s.Equal(2, report.Registered)
	s.Equal(1, report.Rejected)
	s.Require().Len(report.Errors, 1)
	s.Equal(4, report.Errors[0].Row)

	count, err := s.store.Count(context.Background(), Filter{})
	s.Require().NoError(err)
	s.Equal(2, count)
}

func (s *ServiceSuite) TestUploadTemplateRoundTrips() {
	var buf bytes.Buffer
	s.Require().NoError(s.service.UploadTemplate(&buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	s.Require().Len(lines, 2)
	s.Equal(strings.Join(bulkHeader, ","), lines[0])

	// The template, example row included, must pass bulk upload as-is.
	s.users.permissions[s.chair.ID] = map[string]bool{auth.PermissionBulkUpload: true}
	report, err := s.service.BulkUpload(s.ctxAs(s.chair), "", strings.NewReader(buf.String()))
	s.Require().NoError(err)
	s.Equal(1, report.Registered)
	s.Equal(0, report.Rejected)
}

func (s *ServiceSuite) TestBulkUploadBadHeader() {
	s.users.permissions[s.chair.ID] = map[string]bool{auth.PermissionBulkUpload: true}
	_, err := s.service.BulkUpload(s.ctxAs(s.chair), "", strings.NewReader("full_name,church\nJohn,St Peters"))
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeValidation))
}

func selfRequest() SelfRegisterRequest {
	return SelfRegisterRequest{
		Name:         "Paul Ouma",
		LocalChurch:  "St Andrews",
		Parish:       "Nasira Parish",
		Archdeaconry: "Nambale Archdeaconry",
		PhoneNumber:  "0722000111",
		Email:        "paul@example.com",
		Gender:       GenderMale,
	}
}

func (s *ServiceSuite) TestSelfRegistrationFlow() {
	ctx := requestcontext.WithTime(context.Background(), s.now)

	p, err := s.service.SubmitSelfRegistration(ctx, selfRequest())
	s.Require().NoError(err)
	s.NotEmpty(p.RegistrationToken)
	s.Equal(PendingStatusPending, p.Status)

	tracked, err := s.service.TrackSelfRegistration(ctx, p.RegistrationToken)
	s.Require().NoError(err)
	s.Equal(p.ID, tracked.ID)

	// The submission lands in the parish chair's queue, not other chairs'.
	mine, err := s.service.PendingRegistrations(s.ctxAs(s.chair))
	s.Require().NoError(err)
	s.Len(mine, 1)
	theirs, err := s.service.PendingRegistrations(s.ctxAs(s.chair2))
	s.Require().NoError(err)
	s.Empty(theirs)

	reviewed, err := s.service.ReviewSelfRegistration(s.ctxAs(s.chair), p.ID, ReviewRequest{Approve: true, Notes: "verified"})
	s.Require().NoError(err)
	s.Equal(PendingStatusApproved, reviewed.Status)
	s.False(reviewed.DelegateID.IsZero())

	d, err := s.store.FindByID(ctx, reviewed.DelegateID)
	s.Require().NoError(err)
	s.Equal("Paul Ouma", d.Name)
	s.Equal(s.chair.ID, d.RegisteredBy)

	// Re-reviewing is a conflict.
	_, err = s.service.ReviewSelfRegistration(s.ctxAs(s.chair), p.ID, ReviewRequest{Approve: true})
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeConflict))
}

func (s *ServiceSuite) TestRejectRequiresReason() {
	ctx := requestcontext.WithTime(context.Background(), s.now)
	p, err := s.service.SubmitSelfRegistration(ctx, selfRequest())
	s.Require().NoError(err)

	_, err = s.service.ReviewSelfRegistration(s.ctxAs(s.chair), p.ID, ReviewRequest{Approve: false})
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeValidation))

	rejected, err := s.service.ReviewSelfRegistration(s.ctxAs(s.chair), p.ID, ReviewRequest{Approve: false, RejectionReason: "duplicate entry"})
	s.Require().NoError(err)
	s.Equal(PendingStatusRejected, rejected.Status)
	s.Equal("duplicate entry", rejected.RejectionReason)
}

func (s *ServiceSuite) TestStats() {
	ctx := s.ctxAs(s.chair)
	_, err := s.service.Register(ctx, validRequest())
	s.Require().NoError(err)
	second := validRequest()
	second.Name = "Mary Nekesa"
	second.Gender = GenderFemale
	d, err := s.service.Register(ctx, second)
	s.Require().NoError(err)

	paymentID := id.NewPaymentID()
	s.Require().NoError(s.store.ClaimForPayment(context.Background(), []id.DelegateID{d.ID}, paymentID))
	_, err = s.store.MarkPaid(context.Background(), paymentID)
	s.Require().NoError(err)

	stats, err := s.service.Stats(s.ctxAs(s.admin), Filter{})
	s.Require().NoError(err)
	s.Equal(2, stats.Total)
	s.Equal(1, stats.Paid)
	s.Equal(1, stats.Unpaid)
	s.Equal(1, stats.ByGender[GenderFemale])
	s.Require().Len(stats.ByArchdeaconry, 1)
	s.Equal("Nambale Archdeaconry", stats.ByArchdeaconry[0].Archdeaconry)
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}
