package comms

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/stretchr/testify/suite"

	"kayo/internal/audit"
	"kayo/internal/auth"
	"kayo/internal/delegate"
	id "kayo/pkg/domain"
	dErrors "kayo/pkg/domain-errors"
	"kayo/pkg/requestcontext"
)

type smsCall struct {
	phone   string
	message string
}

type fakeSMS struct {
	mu         sync.Mutex
	calls      []smsCall
	failPhones map[string]bool
}

func (f *fakeSMS) SendSMS(_ context.Context, phone, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPhones[phone] {
		return errors.New("gateway timeout")
	}
	f.calls = append(f.calls, smsCall{phone: phone, message: message})
	return nil
}

type mailCall struct {
	to      string
	subject string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []mailCall
}

func (f *fakeMailer) Send(_ context.Context, to, subject, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, mailCall{to: to, subject: subject})
	return nil
}

type fakeJobs struct {
	inserted []river.JobArgs
}

func (f *fakeJobs) Insert(_ context.Context, args river.JobArgs, _ *river.InsertOpts) (*rivertype.JobInsertResult, error) {
	f.inserted = append(f.inserted, args)
	return &rivertype.JobInsertResult{}, nil
}

type userDirStub struct {
	users []auth.User
}

func (u userDirStub) List(context.Context) ([]auth.User, error) {
	return u.users, nil
}

type ServiceSuite struct {
	suite.Suite

	store     *MemoryStore
	delegates *delegate.MemoryStore
	sms       *fakeSMS
	mail      *fakeMailer
	service   *Service
	now       time.Time

	admin   auth.User
	achieng delegate.Delegate
	wafula  delegate.Delegate
	noPhone delegate.Delegate
}

func (s *ServiceSuite) SetupTest() {
	s.store = NewMemoryStore()
	s.delegates = delegate.NewMemoryStore()
	s.sms = &fakeSMS{failPhones: map[string]bool{}}
	s.mail = &fakeMailer{}
	s.now = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	s.admin = auth.User{ID: id.NewUserID(), Name: "Otieno", Role: auth.RoleAdmin}

	s.achieng = delegate.Delegate{
		ID: id.NewDelegateID(), Name: "Achieng Odhiambo", PhoneNumber: "0712345678",
		Archdeaconry: "Nambale", Category: delegate.CategoryDelegate,
		IsPaid: true, CheckedIn: true,
	}
	s.wafula = delegate.Delegate{
		ID: id.NewDelegateID(), Name: "Wafula Simiyu", PhoneNumber: "0723456789",
		Archdeaconry: "Butula", Category: delegate.CategoryDelegate,
	}
	s.noPhone = delegate.Delegate{
		ID: id.NewDelegateID(), Name: "Baraka Juma",
		Archdeaconry: "Nambale", Category: delegate.CategoryDelegate, IsPaid: true,
	}
	for _, d := range []delegate.Delegate{s.achieng, s.wafula, s.noPhone} {
		s.Require().NoError(s.delegates.Insert(context.Background(), d))
	}

	s.service = NewService(s.store, s.delegates, slog.Default(), Options{
		SMS:           s.sms,
		Email:         s.mail,
		AuditRecorder: audit.NopRecorder{},
	})
}

func (s *ServiceSuite) ctx() context.Context {
	ctx := requestcontext.WithTime(context.Background(), s.now)
	ctx = requestcontext.WithUserID(ctx, s.admin.ID)
	return requestcontext.WithRole(ctx, s.admin.Role)
}

func (s *ServiceSuite) draft(req CreateRequest) Announcement {
	a, err := s.service.Create(s.ctx(), req)
	s.Require().NoError(err)
	return a
}

func (s *ServiceSuite) TestCreateValidations() {
	_, err := s.service.Create(s.ctx(), CreateRequest{Message: "hello", SendSMS: true})
	s.True(dErrors.Is(err, dErrors.CodeValidation))

	_, err = s.service.Create(s.ctx(), CreateRequest{Title: "Update", Message: "hello"})
	s.True(dErrors.Is(err, dErrors.CodeValidation))

	_, err = s.service.Create(s.ctx(), CreateRequest{
		Title: "Update", Message: "hello", SendSMS: true, Audience: "everyone",
	})
	s.True(dErrors.Is(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestSendDeliversAndPersonalizes() {
	a := s.draft(CreateRequest{
		Title: "Karibu", Message: "Karibu {first_name}, see you at the venue.",
		SendSMS: true,
	})
	s.Equal(StatusDraft, a.Status)

	sent, err := s.service.Send(s.ctx(), a.ID)
	s.Require().NoError(err)
	s.Equal(StatusSent, sent.Status)
	s.Equal(3, sent.RecipientsCount)
	// The delegate without a phone number is skipped, not failed.
	s.Equal(2, sent.DeliveredCount)
	s.Equal(0, sent.FailedCount)
	s.Require().NotNil(sent.SentAt)
	s.Equal(s.now, *sent.SentAt)

	s.Require().Len(s.sms.calls, 2)
	for _, call := range s.sms.calls {
		if call.phone == s.achieng.PhoneNumber {
			s.Equal("Karibu Achieng, see you at the venue.", call.message)
		}
	}

	detail, err := s.service.Get(s.ctx(), a.ID)
	s.Require().NoError(err)
	s.Len(detail.Messages, 2)
	for _, m := range detail.Messages {
		s.Equal(ChannelSMS, m.Channel)
		s.Equal(DeliverySent, m.Status)
	}
}

func (s *ServiceSuite) TestAudienceFilters() {
	paid := s.draft(CreateRequest{
		Title: "Receipts", Message: "Thank you for paying.", SendSMS: true,
		Audience: AudiencePaid,
	})
	sent, err := s.service.Send(s.ctx(), paid.ID)
	s.Require().NoError(err)
	s.Equal(2, sent.RecipientsCount)
	s.Require().Len(s.sms.calls, 1)
	s.Equal(s.achieng.PhoneNumber, s.sms.calls[0].phone)

	s.sms.calls = nil
	checkedIn := s.draft(CreateRequest{
		Title: "Session", Message: "The afternoon session starts at 2pm.", SendSMS: true,
		Audience: AudienceCheckedIn,
	})
	sent, err = s.service.Send(s.ctx(), checkedIn.ID)
	s.Require().NoError(err)
	s.Equal(1, sent.RecipientsCount)

	s.sms.calls = nil
	scoped := s.draft(CreateRequest{
		Title: "Butula", Message: "Bus leaves at 7am.", SendSMS: true,
		Archdeaconries: []string{"butula"},
	})
	sent, err = s.service.Send(s.ctx(), scoped.ID)
	s.Require().NoError(err)
	s.Equal(1, sent.RecipientsCount)
	s.Require().Len(s.sms.calls, 1)
	s.Equal(s.wafula.PhoneNumber, s.sms.calls[0].phone)
}

func (s *ServiceSuite) TestFailedDeliveriesAreCounted() {
	s.sms.failPhones[s.wafula.PhoneNumber] = true

	a := s.draft(CreateRequest{Title: "Update", Message: "hello", SendSMS: true})
	sent, err := s.service.Send(s.ctx(), a.ID)
	s.Require().NoError(err)
	s.Equal(1, sent.DeliveredCount)
	s.Equal(1, sent.FailedCount)

	detail, err := s.service.Get(s.ctx(), a.ID)
	s.Require().NoError(err)
	var failed int
	for _, m := range detail.Messages {
		if m.Status == DeliveryFailed {
			failed++
			s.Equal(s.wafula.PhoneNumber, m.Recipient)
			s.Equal("gateway timeout", m.Error)
		}
	}
	s.Equal(1, failed)
}

func (s *ServiceSuite) TestSendTwiceConflicts() {
	a := s.draft(CreateRequest{Title: "Update", Message: "hello", SendSMS: true})
	_, err := s.service.Send(s.ctx(), a.ID)
	s.Require().NoError(err)

	_, err = s.service.Send(s.ctx(), a.ID)
	s.True(dErrors.Is(err, dErrors.CodeConflict))
}

func (s *ServiceSuite) TestQueuedDelivery() {
	jobs := &fakeJobs{}
	service := NewService(s.store, s.delegates, slog.Default(), Options{
		SMS:           s.sms,
		Jobs:          jobs,
		AuditRecorder: audit.NopRecorder{},
	})

	a, err := service.Create(s.ctx(), CreateRequest{Title: "Update", Message: "hello", SendSMS: true})
	s.Require().NoError(err)
	queued, err := service.Send(s.ctx(), a.ID)
	s.Require().NoError(err)
	s.Equal(StatusQueued, queued.Status)
	s.Require().Len(jobs.inserted, 1)
	s.Equal(SendArgs{AnnouncementID: a.ID}, jobs.inserted[0])
	s.Empty(s.sms.calls)

	// Queued announcements cannot be deleted out from under the worker.
	err = service.Delete(s.ctx(), a.ID)
	s.True(dErrors.Is(err, dErrors.CodeConflict))

	s.Require().NoError(service.Deliver(s.ctx(), a.ID))
	s.Len(s.sms.calls, 2)

	// A redelivered job is a no-op.
	s.Require().NoError(service.Deliver(s.ctx(), a.ID))
	s.Len(s.sms.calls, 2)
}

func (s *ServiceSuite) TestEmailGoesToActiveStaff() {
	users := []auth.User{
		{ID: id.NewUserID(), Name: "Esther", Email: "esther@kayo.or.ke", IsActive: true},
		{ID: id.NewUserID(), Name: "Former", Email: "former@kayo.or.ke", IsActive: false},
		{ID: id.NewUserID(), Name: "NoMail", IsActive: true},
	}
	service := NewService(s.store, s.delegates, slog.Default(), Options{
		Users:         userDirStub{users: users},
		Email:         s.mail,
		AuditRecorder: audit.NopRecorder{},
	})

	a, err := service.Create(s.ctx(), CreateRequest{Title: "Board Notice", Message: "AGM moved.", SendEmail: true})
	s.Require().NoError(err)
	sent, err := service.Send(s.ctx(), a.ID)
	s.Require().NoError(err)
	s.Equal(1, sent.DeliveredCount)
	s.Require().Len(s.mail.sent, 1)
	s.Equal("esther@kayo.or.ke", s.mail.sent[0].to)
	s.Equal("Board Notice", s.mail.sent[0].subject)
}

func (s *ServiceSuite) TestBulkSMS() {
	_, err := s.service.BulkSMS(s.ctx(), BulkSMSRequest{Audience: AudienceUnpaid})
	s.True(dErrors.Is(err, dErrors.CodeValidation))

	a, err := s.service.BulkSMS(s.ctx(), BulkSMSRequest{
		Message:  "Kindly clear your balance of KSh 500.",
		Audience: AudienceUnpaid,
	})
	s.Require().NoError(err)
	s.Equal(StatusSent, a.Status)
	s.True(a.SendSMS)
	s.Equal(1, a.RecipientsCount)
	s.Require().Len(s.sms.calls, 1)
	s.Equal(s.wafula.PhoneNumber, s.sms.calls[0].phone)
}

func (s *ServiceSuite) TestSendWithNoRecipients() {
	a := s.draft(CreateRequest{
		Title: "Ghost", Message: "hello", SendSMS: true,
		EventID: id.NewEventID().String(),
	})
	_, err := s.service.Send(s.ctx(), a.ID)
	s.True(dErrors.Is(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestPreviewRecipients() {
	preview, err := s.service.PreviewRecipients(s.ctx(), "")
	s.Require().NoError(err)
	s.Equal(3, preview.All)
	s.Equal(2, preview.Paid)
	s.Equal(1, preview.Unpaid)
	s.Equal(1, preview.CheckedIn)
	s.Equal(2, preview.NotCheckedIn)
}

func (s *ServiceSuite) TestFormatPhone() {
	cases := map[string]string{
		"0712345678":    "+254712345678",
		"0712 345-678":  "+254712345678",
		"254712345678":  "+254712345678",
		"+254712345678": "+254712345678",
		"712345678":     "+254712345678",
		"not-a-number":  "notanumber",
	}
	for input, want := range cases {
		s.Equal(want, FormatPhone(input), input)
	}
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}
