package comms

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"golang.org/x/sync/errgroup"

	"kayo/internal/audit"
	"kayo/internal/auth"
	"kayo/internal/delegate"
	"kayo/internal/platform/metrics"
	id "kayo/pkg/domain"
	dErrors "kayo/pkg/domain-errors"
	strutil "kayo/pkg/platform/strings"
	"kayo/pkg/requestcontext"
)

// sendWorkers bounds the delivery fan-out so a large audience cannot
// exhaust gateway connections.
const sendWorkers = 8

// DelegateDirectory resolves announcement audiences.
type DelegateDirectory interface {
	List(ctx context.Context, filter delegate.Filter) ([]delegate.Delegate, error)
}

// UserDirectory lists staff accounts. Email announcements go to active
// users because delegates register with a phone number only.
type UserDirectory interface {
	List(ctx context.Context) ([]auth.User, error)
}

// SMSSender delivers one text message.
type SMSSender interface {
	SendSMS(ctx context.Context, phone, message string) error
}

// EmailSender delivers one plain-text mail.
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Enqueuer queues delivery jobs. The river client satisfies it; a nil
// Enqueuer makes Send deliver inline, which tests and queue-less
// deployments rely on.
type Enqueuer interface {
	Insert(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error)
}

// Service manages the announcement lifecycle: drafts, audience
// resolution, queued delivery and the per-recipient message log.
type Service struct {
	store     Store
	delegates DelegateDirectory
	users     UserDirectory
	sms       SMSSender
	email     EmailSender
	jobs      Enqueuer
	logger    *slog.Logger
	metrics   *metrics.Metrics
	audit     audit.Recorder
}

type Options struct {
	Users         UserDirectory
	SMS           SMSSender
	Email         EmailSender
	Jobs          Enqueuer
	Metrics       *metrics.Metrics
	AuditRecorder audit.Recorder
}

func NewService(store Store, delegates DelegateDirectory, logger *slog.Logger, opts Options) *Service {
	recorder := opts.AuditRecorder
	if recorder == nil {
		recorder = audit.NopRecorder{}
	}
	return &Service{
		store:     store,
		delegates: delegates,
		users:     opts.Users,
		sms:       opts.SMS,
		email:     opts.Email,
		jobs:      opts.Jobs,
		logger:    logger,
		metrics:   opts.Metrics,
		audit:     recorder,
	}
}

// SetJobs wires the delivery queue. It runs after construction because
// the queue's workers need the service first.
func (s *Service) SetJobs(jobs Enqueuer) {
	s.jobs = jobs
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (Announcement, error) {
	a, err := s.newAnnouncement(ctx, req)
	if err != nil {
		return Announcement{}, err
	}
	if err := s.store.Insert(ctx, a); err != nil {
		return Announcement{}, dErrors.Wrap(err, dErrors.CodeInternal, "store announcement")
	}
	s.audit.Record(ctx, audit.FromContext(ctx, audit.Entry{
		Action:       audit.ActionCreate,
		ResourceType: "announcement",
		ResourceID:   a.ID.String(),
		Description:  a.Title,
	}))
	return a, nil
}

func (s *Service) newAnnouncement(ctx context.Context, req CreateRequest) (Announcement, error) {
	title := strings.TrimSpace(req.Title)
	message := strings.TrimSpace(req.Message)
	if title == "" || message == "" {
		return Announcement{}, dErrors.New(dErrors.CodeValidation, "title and message are required")
	}
	if !req.SendSMS && !req.SendEmail {
		return Announcement{}, dErrors.New(dErrors.CodeValidation, "select at least one delivery channel")
	}
	audience := req.Audience
	if audience == "" {
		audience = AudienceAll
	}
	if !ValidAudience(audience) {
		return Announcement{}, dErrors.Newf(dErrors.CodeValidation, "unknown audience %q", req.Audience)
	}
	messageType := req.MessageType
	if messageType == "" {
		messageType = TypeGeneral
	}

	a := Announcement{
		ID:             id.NewAnnouncementID(),
		Title:          title,
		Message:        message,
		MessageType:    messageType,
		SendSMS:        req.SendSMS,
		SendEmail:      req.SendEmail,
		Audience:       audience,
		Archdeaconries: cleanArchdeaconries(req.Archdeaconries),
		Status:         StatusDraft,
		CreatedBy:      requestcontext.UserID(ctx),
		CreatedAt:      requestcontext.Now(ctx),
	}
	if req.EventID != "" {
		eventID, err := id.ParseEventID(req.EventID)
		if err != nil {
			return Announcement{}, err
		}
		a.EventID = eventID
	}
	if req.ScheduledFor != "" {
		at, err := time.Parse(time.RFC3339, req.ScheduledFor)
		if err != nil {
			return Announcement{}, dErrors.New(dErrors.CodeValidation, "scheduled_for must be an RFC 3339 timestamp")
		}
		a.ScheduledFor = &at
	}
	return a, nil
}

func cleanArchdeaconries(raw []string) []string {
	cleaned := strutil.DedupeAndTrim(raw)
	if cleaned == nil {
		cleaned = []string{}
	}
	return cleaned
}

func (s *Service) List(ctx context.Context, filter Filter) ([]Announcement, error) {
	return s.store.List(ctx, filter)
}

func (s *Service) Get(ctx context.Context, announcementID id.AnnouncementID) (AnnouncementDetail, error) {
	a, err := s.store.FindByID(ctx, announcementID)
	if err != nil {
		return AnnouncementDetail{}, err
	}
	messages, err := s.store.MessagesFor(ctx, announcementID)
	if err != nil {
		return AnnouncementDetail{}, dErrors.Wrap(err, dErrors.CodeInternal, "load message log")
	}
	if messages == nil {
		messages = []Message{}
	}
	return AnnouncementDetail{Announcement: a, Messages: messages}, nil
}

func (s *Service) Delete(ctx context.Context, announcementID id.AnnouncementID) error {
	a, err := s.store.FindByID(ctx, announcementID)
	if err != nil {
		return err
	}
	if a.Status == StatusQueued {
		return dErrors.New(dErrors.CodeConflict, "announcement is queued for delivery")
	}
	if err := s.store.Delete(ctx, announcementID); err != nil {
		return err
	}
	s.audit.Record(ctx, audit.FromContext(ctx, audit.Entry{
		Action:       audit.ActionDelete,
		ResourceType: "announcement",
		ResourceID:   announcementID.String(),
		Description:  a.Title,
	}))
	return nil
}

// Send resolves the audience, marks the announcement queued and hands it
// to the delivery worker.
func (s *Service) Send(ctx context.Context, announcementID id.AnnouncementID) (Announcement, error) {
	a, err := s.store.FindByID(ctx, announcementID)
	if err != nil {
		return Announcement{}, err
	}
	switch a.Status {
	case StatusQueued:
		return Announcement{}, dErrors.New(dErrors.CodeConflict, "announcement is already queued")
	case StatusSent:
		return Announcement{}, dErrors.New(dErrors.CodeConflict, "announcement was already sent")
	}

	recipients, err := s.resolveAudience(ctx, a)
	if err != nil {
		return Announcement{}, err
	}
	if len(recipients) == 0 {
		return Announcement{}, dErrors.New(dErrors.CodeValidation, "no delegates match the selected audience")
	}

	a.RecipientsCount = len(recipients)
	a.Status = StatusQueued
	if err := s.store.Update(ctx, a); err != nil {
		return Announcement{}, dErrors.Wrap(err, dErrors.CodeInternal, "update announcement")
	}

	if s.jobs != nil {
		if _, err := s.jobs.Insert(ctx, SendArgs{AnnouncementID: a.ID}, nil); err != nil {
			return Announcement{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "queue announcement delivery")
		}
	} else {
		if err := s.Deliver(ctx, a.ID); err != nil {
			return Announcement{}, err
		}
		if a, err = s.store.FindByID(ctx, a.ID); err != nil {
			return Announcement{}, err
		}
	}

	s.audit.Record(ctx, audit.FromContext(ctx, audit.Entry{
		Action:       audit.ActionSend,
		ResourceType: "announcement",
		ResourceID:   a.ID.String(),
		Description:  a.Title,
		NewValues:    map[string]any{"recipients": a.RecipientsCount},
	}))
	return a, nil
}

// BulkSMS creates an SMS-only announcement and queues it in one step.
func (s *Service) BulkSMS(ctx context.Context, req BulkSMSRequest) (Announcement, error) {
	if strings.TrimSpace(req.Message) == "" {
		return Announcement{}, dErrors.New(dErrors.CodeValidation, "message is required")
	}
	a, err := s.Create(ctx, CreateRequest{
		Title:          "Bulk SMS",
		Message:        req.Message,
		MessageType:    TypeGeneral,
		SendSMS:        true,
		Audience:       req.Audience,
		Archdeaconries: req.Archdeaconries,
		EventID:        req.EventID,
	})
	if err != nil {
		return Announcement{}, err
	}
	return s.Send(ctx, a.ID)
}

// Deliver fans the announcement out to its audience and records the
// outcome. Retries of an already delivered announcement are no-ops.
func (s *Service) Deliver(ctx context.Context, announcementID id.AnnouncementID) error {
	a, err := s.store.FindByID(ctx, announcementID)
	if err != nil {
		return err
	}
	if a.Status != StatusQueued {
		return nil
	}
	recipients, err := s.resolveAudience(ctx, a)
	if err != nil {
		return err
	}
	now := requestcontext.Now(ctx)

	var (
		mu        sync.Mutex
		log       []Message
		delivered int
		failed    int
	)
	record := func(channel, recipient string, sendErr error) {
		m := Message{
			AnnouncementID: a.ID,
			Channel:        channel,
			Recipient:      recipient,
			Status:         DeliverySent,
			CreatedAt:      now,
		}
		if sendErr != nil {
			m.Status = DeliveryFailed
			m.Error = sendErr.Error()
		}
		mu.Lock()
		defer mu.Unlock()
		log = append(log, m)
		if sendErr != nil {
			failed++
		} else {
			delivered++
		}
	}

	var g errgroup.Group
	g.SetLimit(sendWorkers)

	if a.SendSMS {
		if s.sms == nil {
			s.logger.WarnContext(ctx, "sms channel requested but no sender is configured",
				"announcement_id", a.ID)
		} else {
			for _, d := range recipients {
				if d.PhoneNumber == "" {
					continue
				}
				g.Go(func() error {
					err := s.sms.SendSMS(ctx, d.PhoneNumber, personalize(a.Message, d))
					record(ChannelSMS, d.PhoneNumber, err)
					if s.metrics != nil {
						if err != nil {
							s.metrics.SMSMessagesFailed.Inc()
						} else {
							s.metrics.SMSMessagesSent.Inc()
						}
					}
					return nil
				})
			}
		}
	}
	if a.SendEmail && s.email != nil && s.users != nil {
		users, err := s.users.List(ctx)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "list mail recipients")
		}
		for _, u := range users {
			if !u.IsActive || u.Email == "" {
				continue
			}
			g.Go(func() error {
				err := s.email.Send(ctx, u.Email, a.Title, a.Message)
				record(ChannelEmail, u.Email, err)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if err := s.store.InsertMessages(ctx, log); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "store message log")
	}
	a.DeliveredCount = delivered
	a.FailedCount = failed
	a.SentAt = &now
	a.Status = StatusSent
	if err := s.store.Update(ctx, a); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "update announcement")
	}
	if s.metrics != nil {
		s.metrics.AnnouncementsSent.Inc()
	}
	s.logger.InfoContext(ctx, "announcement delivered",
		"announcement_id", a.ID, "delivered", delivered, "failed", failed)
	return nil
}

// PreviewRecipients counts the delegates each audience selector would
// reach for the event.
func (s *Service) PreviewRecipients(ctx context.Context, rawEventID string) (RecipientPreview, error) {
	filter := delegate.Filter{}
	if rawEventID != "" {
		eventID, err := id.ParseEventID(rawEventID)
		if err != nil {
			return RecipientPreview{}, err
		}
		filter.EventID = eventID
	}
	delegates, err := s.delegates.List(ctx, filter)
	if err != nil {
		return RecipientPreview{}, dErrors.Wrap(err, dErrors.CodeInternal, "list delegates")
	}

	var preview RecipientPreview
	preview.All = len(delegates)
	for _, d := range delegates {
		if d.IsPaid {
			preview.Paid++
		} else {
			preview.Unpaid++
		}
		if d.CheckedIn {
			preview.CheckedIn++
		} else {
			preview.NotCheckedIn++
		}
	}
	return preview, nil
}

func (s *Service) resolveAudience(ctx context.Context, a Announcement) ([]delegate.Delegate, error) {
	filter := delegate.Filter{EventID: a.EventID}
	switch a.Audience {
	case AudiencePaid:
		paid := true
		filter.IsPaid = &paid
	case AudienceUnpaid:
		paid := false
		filter.IsPaid = &paid
	}
	delegates, err := s.delegates.List(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list delegates")
	}

	matched := delegates[:0]
	for _, d := range delegates {
		if a.Audience == AudienceCheckedIn && !d.CheckedIn {
			continue
		}
		if a.Audience == AudienceNotCheckedIn && d.CheckedIn {
			continue
		}
		if len(a.Archdeaconries) > 0 && !containsFold(a.Archdeaconries, d.Archdeaconry) {
			continue
		}
		matched = append(matched, d)
	}
	return matched, nil
}

func containsFold(names []string, name string) bool {
	for _, n := range names {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	return false
}

// personalize fills the {name} and {first_name} placeholders senders may
// use in message templates.
func personalize(template string, d delegate.Delegate) string {
	first, _, _ := strings.Cut(d.Name, " ")
	replacer := strings.NewReplacer("{name}", d.Name, "{first_name}", first)
	return replacer.Replace(template)
}
