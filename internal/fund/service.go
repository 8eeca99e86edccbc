package fund

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"kayo/internal/audit"
	"kayo/internal/auth"
	"kayo/internal/platform/metrics"
	id "kayo/pkg/domain"
	dErrors "kayo/pkg/domain-errors"
	"kayo/pkg/requestcontext"
)

const dateLayout = "2006-01-02"

// UserDirectory resolves users for transfer routing and scope checks.
type UserDirectory interface {
	GetUser(ctx context.Context, userID id.UserID) (auth.User, error)
}

// JournalPoster records a completed hand-over to the treasury in the
// ledger. Nil is allowed; posting is skipped.
type JournalPoster interface {
	PostTransferReceipt(ctx context.Context, transferID id.TransferID, amountCents int64, memo string) error
}

// Service manages pledges, recurring collection schedules and the fund
// transfer chain up the custody hierarchy.
type Service struct {
	pledges   PledgeStore
	schedules ScheduleStore
	transfers TransferStore
	users     UserDirectory
	ledger    JournalPoster
	logger    *slog.Logger
	metrics   *metrics.Metrics
	audit     audit.Recorder
}

func NewService(pledges PledgeStore, schedules ScheduleStore, transfers TransferStore, users UserDirectory, ledger JournalPoster, logger *slog.Logger, m *metrics.Metrics, recorder audit.Recorder) *Service {
	if recorder == nil {
		recorder = audit.NopRecorder{}
	}
	return &Service{
		pledges:   pledges,
		schedules: schedules,
		transfers: transfers,
		users:     users,
		ledger:    ledger,
		logger:    logger,
		metrics:   m,
		audit:     recorder,
	}
}

// PledgeDetail is a pledge with its payment history.
type PledgeDetail struct {
	Pledge   Pledge          `json:"pledge"`
	Payments []PledgePayment `json:"payments"`
}

func (s *Service) CreatePledge(ctx context.Context, req CreatePledgeRequest) (Pledge, error) {
	if !ValidSource(req.SourceType) {
		return Pledge{}, dErrors.Newf(dErrors.CodeValidation, "unknown pledge source %q", req.SourceType)
	}
	if strings.TrimSpace(req.SourceName) == "" {
		return Pledge{}, dErrors.New(dErrors.CodeValidation, "source name is required")
	}
	if req.AmountPledgedCents <= 0 {
		return Pledge{}, dErrors.New(dErrors.CodeValidation, "pledged amount must be positive")
	}

	now := requestcontext.Now(ctx)
	p := Pledge{
		ID:                 id.NewPledgeID(),
		SourceType:         req.SourceType,
		SourceName:         strings.TrimSpace(req.SourceName),
		SourcePhone:        strings.TrimSpace(req.SourcePhone),
		SourceEmail:        strings.TrimSpace(req.SourceEmail),
		AmountPledgedCents: req.AmountPledgedCents,
		Status:             PledgePending,
		RecordedBy:         requestcontext.UserID(ctx),
		LocalChurch:        strings.TrimSpace(req.LocalChurch),
		Parish:             strings.TrimSpace(req.Parish),
		Archdeaconry:       strings.TrimSpace(req.Archdeaconry),
		Description:        strings.TrimSpace(req.Description),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if req.DelegateID != "" {
		delegateID, err := id.ParseDelegateID(req.DelegateID)
		if err != nil {
			return Pledge{}, dErrors.New(dErrors.CodeValidation, "invalid delegate id")
		}
		p.DelegateID = delegateID
	} else if req.SourceType == SourceDelegate {
		return Pledge{}, dErrors.New(dErrors.CodeValidation, "delegate pledges need a delegate id")
	}
	if req.EventID != "" {
		eventID, err := id.ParseEventID(req.EventID)
		if err != nil {
			return Pledge{}, dErrors.New(dErrors.CodeValidation, "invalid event id")
		}
		p.EventID = eventID
	}
	if req.DueDate != "" {
		due, err := time.Parse(dateLayout, req.DueDate)
		if err != nil {
			return Pledge{}, dErrors.New(dErrors.CodeValidation, "due date must be YYYY-MM-DD")
		}
		p.DueDate = &due
	}

	if err := s.pledges.Insert(ctx, p); err != nil {
		return Pledge{}, fmt.Errorf("create pledge: %w", err)
	}
	if s.metrics != nil {
		s.metrics.PledgesRecorded.Inc()
	}
	s.audit.Record(ctx, audit.Entry{
		Action:       audit.ActionCreate,
		ResourceType: "pledge",
		ResourceID:   p.ID.String(),
		Description:  fmt.Sprintf("pledge of %d cents by %s", p.AmountPledgedCents, p.SourceName),
	})
	return p, nil
}

func (s *Service) ListPledges(ctx context.Context, filter PledgeFilter) ([]Pledge, error) {
	if requestcontext.Role(ctx) == auth.RoleChair {
		filter.RecordedBy = requestcontext.UserID(ctx)
	}
	return s.pledges.List(ctx, filter)
}

func (s *Service) GetPledge(ctx context.Context, pledgeID id.PledgeID) (PledgeDetail, error) {
	p, err := s.pledges.FindByID(ctx, pledgeID)
	if err != nil {
		return PledgeDetail{}, err
	}
	payments, err := s.pledges.PaymentsFor(ctx, pledgeID)
	if err != nil {
		return PledgeDetail{}, err
	}
	return PledgeDetail{Pledge: p, Payments: payments}, nil
}

// RecordPledgePayment files an amount received against a pledge. It does
// not count toward the pledge until confirmed.
func (s *Service) RecordPledgePayment(ctx context.Context, pledgeID id.PledgeID, req RecordPledgePaymentRequest) (PledgePayment, error) {
	if req.AmountCents <= 0 {
		return PledgePayment{}, dErrors.New(dErrors.CodeValidation, "amount must be positive")
	}
	if !ValidMethod(req.Method) {
		return PledgePayment{}, dErrors.Newf(dErrors.CodeValidation, "unknown payment method %q", req.Method)
	}
	p, err := s.pledges.FindByID(ctx, pledgeID)
	if err != nil {
		return PledgePayment{}, err
	}
	if p.Status == PledgeCancelled {
		return PledgePayment{}, dErrors.New(dErrors.CodeConflict, "pledge is cancelled")
	}

	pp := PledgePayment{
		ID:          id.NewPledgePaymentID(),
		PledgeID:    pledgeID,
		AmountCents: req.AmountCents,
		Method:      req.Method,
		Reference:   strings.TrimSpace(req.Reference),
		Notes:       strings.TrimSpace(req.Notes),
		Status:      PaymentPending,
		CreatedAt:   requestcontext.Now(ctx),
	}
	if err := s.pledges.InsertPayment(ctx, pp); err != nil {
		return PledgePayment{}, fmt.Errorf("record pledge payment: %w", err)
	}
	return pp, nil
}

// ConfirmPledgePayment settles a pending pledge payment. Confirming adds
// the amount to the pledge and re-derives its status.
func (s *Service) ConfirmPledgePayment(ctx context.Context, paymentID id.PledgePaymentID, approve bool, notes string) (PledgePayment, error) {
	pp, err := s.pledges.FindPayment(ctx, paymentID)
	if err != nil {
		return PledgePayment{}, err
	}
	if pp.Status != PaymentPending {
		return PledgePayment{}, dErrors.New(dErrors.CodeConflict, "payment already settled")
	}

	now := requestcontext.Now(ctx)
	pp.ConfirmedBy = requestcontext.UserID(ctx)
	pp.ConfirmedAt = &now
	if notes != "" {
		pp.Notes = notes
	}

	if !approve {
		pp.Status = PaymentRejected
		if err := s.pledges.UpdatePayment(ctx, pp); err != nil {
			return PledgePayment{}, err
		}
		s.audit.Record(ctx, audit.Entry{
			Action:       audit.ActionReject,
			ResourceType: "pledge_payment",
			ResourceID:   pp.ID.String(),
		})
		return pp, nil
	}

	pp.Status = PaymentConfirmed
	if err := s.pledges.UpdatePayment(ctx, pp); err != nil {
		return PledgePayment{}, err
	}

	p, err := s.pledges.FindByID(ctx, pp.PledgeID)
	if err != nil {
		return PledgePayment{}, err
	}
	p.AmountPaidCents += pp.AmountCents
	p.Status = p.DeriveStatus()
	p.UpdatedAt = now
	if err := s.pledges.Update(ctx, p); err != nil {
		return PledgePayment{}, fmt.Errorf("apply pledge payment: %w", err)
	}
	s.audit.Record(ctx, audit.Entry{
		Action:       audit.ActionApprove,
		ResourceType: "pledge_payment",
		ResourceID:   pp.ID.String(),
		Description:  fmt.Sprintf("confirmed %d cents toward pledge %s", pp.AmountCents, p.ID),
	})
	return pp, nil
}

func (s *Service) CancelPledge(ctx context.Context, pledgeID id.PledgeID) (Pledge, error) {
	p, err := s.pledges.FindByID(ctx, pledgeID)
	if err != nil {
		return Pledge{}, err
	}
	switch p.Status {
	case PledgeFulfilled:
		return Pledge{}, dErrors.New(dErrors.CodeConflict, "fulfilled pledges cannot be cancelled")
	case PledgeCancelled:
		return Pledge{}, dErrors.New(dErrors.CodeConflict, "pledge is already cancelled")
	}
	role := requestcontext.Role(ctx)
	if role == auth.RoleChair && p.RecordedBy != requestcontext.UserID(ctx) {
		return Pledge{}, dErrors.New(dErrors.CodeForbidden, "pledge was recorded by someone else")
	}

	p.Status = PledgeCancelled
	p.UpdatedAt = requestcontext.Now(ctx)
	if err := s.pledges.Update(ctx, p); err != nil {
		return Pledge{}, err
	}
	s.audit.Record(ctx, audit.Entry{
		Action:       audit.ActionUpdate,
		ResourceType: "pledge",
		ResourceID:   p.ID.String(),
		Description:  "pledge cancelled",
	})
	return p, nil
}

func (s *Service) PledgeOverview(ctx context.Context, eventID id.EventID) (PledgeStats, error) {
	return s.pledges.Stats(ctx, eventID)
}

// ScheduleDetail is a schedule with its installment history.
type ScheduleDetail struct {
	Schedule     ScheduledPayment `json:"schedule"`
	Installments []Installment    `json:"installments"`
}

func (s *Service) CreateSchedule(ctx context.Context, req CreateScheduleRequest) (ScheduledPayment, error) {
	if !ValidSource(req.SourceType) {
		return ScheduledPayment{}, dErrors.Newf(dErrors.CodeValidation, "unknown source %q", req.SourceType)
	}
	if strings.TrimSpace(req.SourceName) == "" {
		return ScheduledPayment{}, dErrors.New(dErrors.CodeValidation, "source name is required")
	}
	if req.AmountCents <= 0 {
		return ScheduledPayment{}, dErrors.New(dErrors.CodeValidation, "amount must be positive")
	}
	if !ValidFrequency(req.Frequency) {
		return ScheduledPayment{}, dErrors.Newf(dErrors.CodeValidation, "unknown frequency %q", req.Frequency)
	}
	start, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		return ScheduledPayment{}, dErrors.New(dErrors.CodeValidation, "start date must be YYYY-MM-DD")
	}

	now := requestcontext.Now(ctx)
	sp := ScheduledPayment{
		ID:          id.NewScheduleID(),
		SourceType:  req.SourceType,
		SourceName:  strings.TrimSpace(req.SourceName),
		SourcePhone: strings.TrimSpace(req.SourcePhone),
		AmountCents: req.AmountCents,
		Frequency:   req.Frequency,
		StartDate:   start,
		Status:      ScheduleActive,
		RecordedBy:  requestcontext.UserID(ctx),
		Description: strings.TrimSpace(req.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	sp.NextPaymentDate = &start
	if req.DelegateID != "" {
		delegateID, err := id.ParseDelegateID(req.DelegateID)
		if err != nil {
			return ScheduledPayment{}, dErrors.New(dErrors.CodeValidation, "invalid delegate id")
		}
		sp.DelegateID = delegateID
	}
	if req.EventID != "" {
		eventID, err := id.ParseEventID(req.EventID)
		if err != nil {
			return ScheduledPayment{}, dErrors.New(dErrors.CodeValidation, "invalid event id")
		}
		sp.EventID = eventID
	}
	if req.EndDate != "" {
		end, err := time.Parse(dateLayout, req.EndDate)
		if err != nil {
			return ScheduledPayment{}, dErrors.New(dErrors.CodeValidation, "end date must be YYYY-MM-DD")
		}
		if end.Before(start) {
			return ScheduledPayment{}, dErrors.New(dErrors.CodeValidation, "end date precedes start date")
		}
		sp.EndDate = &end
	}
	sp.TotalExpectedCents = expectedTotal(sp)

	if err := s.schedules.Insert(ctx, sp); err != nil {
		return ScheduledPayment{}, fmt.Errorf("create schedule: %w", err)
	}
	s.audit.Record(ctx, audit.Entry{
		Action:       audit.ActionCreate,
		ResourceType: "scheduled_payment",
		ResourceID:   sp.ID.String(),
	})
	return sp, nil
}

// expectedTotal sums the installments the schedule will generate. Open
// ended weekly and monthly plans have no fixed expectation.
func expectedTotal(sp ScheduledPayment) int64 {
	if sp.Frequency == FrequencyOnce {
		return sp.AmountCents
	}
	if sp.EndDate == nil {
		return 0
	}
	var total int64
	for d := sp.StartDate; !d.After(*sp.EndDate); {
		total += sp.AmountCents
		switch sp.Frequency {
		case FrequencyWeekly:
			d = d.AddDate(0, 0, 7)
		case FrequencyMonthly:
			d = d.AddDate(0, 1, 0)
		}
	}
	return total
}

func (s *Service) ListSchedules(ctx context.Context, status string) ([]ScheduledPayment, error) {
	return s.schedules.List(ctx, status)
}

func (s *Service) GetSchedule(ctx context.Context, scheduleID id.ScheduleID) (ScheduleDetail, error) {
	sp, err := s.schedules.FindByID(ctx, scheduleID)
	if err != nil {
		return ScheduleDetail{}, err
	}
	installments, err := s.schedules.InstallmentsFor(ctx, scheduleID)
	if err != nil {
		return ScheduleDetail{}, err
	}
	return ScheduleDetail{Schedule: sp, Installments: installments}, nil
}

// GenerateDueInstallments creates pending installments for every active
// schedule whose next payment date has arrived, then advances the date.
// It returns how many installments were created.
func (s *Service) GenerateDueInstallments(ctx context.Context) (int, error) {
	now := requestcontext.Now(ctx)
	due, err := s.schedules.Due(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("due schedules: %w", err)
	}

	created := 0
	for _, sp := range due {
		in := Installment{
			ID:             id.NewInstallmentID(),
			ScheduleID:     sp.ID,
			DueDate:        *sp.NextPaymentDate,
			AmountDueCents: sp.AmountCents,
			Status:         InstallmentPending,
			CreatedAt:      now,
		}
		if err := s.schedules.InsertInstallment(ctx, in); err != nil {
			s.logger.Error("installment generation failed",
				slog.String("schedule_id", sp.ID.String()), slog.Any("error", err))
			continue
		}
		created++

		next := sp.NextAfter(*sp.NextPaymentDate)
		if next.IsZero() {
			sp.NextPaymentDate = nil
		} else {
			sp.NextPaymentDate = &next
		}
		sp.UpdatedAt = now
		if err := s.schedules.Update(ctx, sp); err != nil {
			return created, fmt.Errorf("advance schedule %s: %w", sp.ID, err)
		}
	}
	return created, nil
}

// PayInstallment settles one pending installment and rolls the amount
// into the schedule's collected total.
func (s *Service) PayInstallment(ctx context.Context, installmentID id.InstallmentID, req PayInstallmentRequest) (Installment, error) {
	if req.AmountCents <= 0 {
		return Installment{}, dErrors.New(dErrors.CodeValidation, "amount must be positive")
	}
	if !ValidMethod(req.Method) {
		return Installment{}, dErrors.Newf(dErrors.CodeValidation, "unknown payment method %q", req.Method)
	}
	in, err := s.schedules.FindInstallment(ctx, installmentID)
	if err != nil {
		return Installment{}, err
	}
	if in.Status == InstallmentPaid {
		return Installment{}, dErrors.New(dErrors.CodeConflict, "installment already paid")
	}

	now := requestcontext.Now(ctx)
	in.AmountPaidCents = req.AmountCents
	in.Method = req.Method
	in.Reference = strings.TrimSpace(req.Reference)
	in.Status = InstallmentPaid
	in.ConfirmedBy = requestcontext.UserID(ctx)
	in.ConfirmedAt = &now
	in.PaidAt = &now
	if err := s.schedules.UpdateInstallment(ctx, in); err != nil {
		return Installment{}, err
	}

	sp, err := s.schedules.FindByID(ctx, in.ScheduleID)
	if err != nil {
		return Installment{}, err
	}
	sp.TotalCollectedCents += req.AmountCents
	if sp.NextPaymentDate == nil && sp.TotalExpectedCents > 0 && sp.TotalCollectedCents >= sp.TotalExpectedCents {
		sp.Status = ScheduleCompleted
	}
	sp.UpdatedAt = now
	if err := s.schedules.Update(ctx, sp); err != nil {
		return Installment{}, fmt.Errorf("apply installment: %w", err)
	}
	return in, nil
}

func (s *Service) CancelSchedule(ctx context.Context, scheduleID id.ScheduleID) (ScheduledPayment, error) {
	sp, err := s.schedules.FindByID(ctx, scheduleID)
	if err != nil {
		return ScheduledPayment{}, err
	}
	if sp.Status != ScheduleActive {
		return ScheduledPayment{}, dErrors.Newf(dErrors.CodeConflict, "schedule is %s", sp.Status)
	}
	sp.Status = ScheduleCancelled
	sp.NextPaymentDate = nil
	sp.UpdatedAt = requestcontext.Now(ctx)
	return sp, s.schedules.Update(ctx, sp)
}

// TransferDetail is a transfer with its full action history.
type TransferDetail struct {
	Transfer  Transfer           `json:"transfer"`
	Approvals []TransferApproval `json:"approvals"`
}

// newTransferReference builds a reference like FT-2026-9F3A01BC.
func newTransferReference(year int) (string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("transfer reference: %w", err)
	}
	return fmt.Sprintf("FT-%d-%s", year, strings.ToUpper(hex.EncodeToString(buf))), nil
}

// CreateTransfer opens a hand-over to the next custodian. Chairs hand
// over to a youth minister, youth ministers to the finance team.
func (s *Service) CreateTransfer(ctx context.Context, req CreateTransferRequest) (Transfer, error) {
	if req.AmountCents <= 0 {
		return Transfer{}, dErrors.New(dErrors.CodeValidation, "amount must be positive")
	}
	toUserID, err := id.ParseUserID(req.ToUserID)
	if err != nil {
		return Transfer{}, dErrors.New(dErrors.CodeValidation, "invalid recipient id")
	}

	sender, err := s.users.GetUser(ctx, requestcontext.UserID(ctx))
	if err != nil {
		return Transfer{}, fmt.Errorf("resolve sender: %w", err)
	}
	recipient, err := s.users.GetUser(ctx, toUserID)
	if err != nil {
		return Transfer{}, dErrors.New(dErrors.CodeValidation, "unknown recipient")
	}
	if !recipient.IsActive {
		return Transfer{}, dErrors.New(dErrors.CodeValidation, "recipient account is inactive")
	}

	var stage string
	switch sender.Role {
	case auth.RoleChair:
		if recipient.Role != auth.RoleYouthMinister {
			return Transfer{}, dErrors.New(dErrors.CodeValidation, "chairs hand over to a youth minister")
		}
		stage = StageChairToYM
	case auth.RoleYouthMinister:
		if recipient.Role != auth.RoleFinance {
			return Transfer{}, dErrors.New(dErrors.CodeValidation, "youth ministers hand over to finance")
		}
		stage = StageYMToFinance
	default:
		return Transfer{}, dErrors.New(dErrors.CodeForbidden, "only chairs and youth ministers initiate transfers")
	}

	now := requestcontext.Now(ctx)
	reference, err := newTransferReference(now.Year())
	if err != nil {
		return Transfer{}, err
	}
	t := Transfer{
		ID:           id.NewTransferID(),
		Reference:    reference,
		AmountCents:  req.AmountCents,
		FromUserID:   sender.ID,
		FromRole:     sender.Role,
		ToUserID:     recipient.ID,
		ToRole:       recipient.Role,
		Stage:        stage,
		Status:       TransferPending,
		LocalChurch:  sender.LocalChurch,
		Parish:       sender.Parish,
		Archdeaconry: sender.Archdeaconry,
		Description:  strings.TrimSpace(req.Description),
		Attachments:  req.Attachments,
		CreatedAt:    now,
	}
	if req.EventID != "" {
		eventID, err := id.ParseEventID(req.EventID)
		if err != nil {
			return Transfer{}, dErrors.New(dErrors.CodeValidation, "invalid event id")
		}
		t.EventID = eventID
	}

	if err := s.transfers.Insert(ctx, t); err != nil {
		return Transfer{}, fmt.Errorf("create transfer: %w", err)
	}
	s.appendHistory(ctx, t.ID, sender.ID, "created", "")
	s.audit.Record(ctx, audit.Entry{
		Action:       audit.ActionCreate,
		ResourceType: "fund_transfer",
		ResourceID:   t.ID.String(),
		Description:  fmt.Sprintf("%s of %d cents to %s", t.Reference, t.AmountCents, recipient.Name),
	})
	return t, nil
}

func (s *Service) appendHistory(ctx context.Context, transferID id.TransferID, actorID id.UserID, action, notes string) {
	err := s.transfers.AppendApproval(ctx, TransferApproval{
		ID:         uuid.New(),
		TransferID: transferID,
		ActorID:    actorID,
		Action:     action,
		Notes:      notes,
		CreatedAt:  requestcontext.Now(ctx),
	})
	if err != nil {
		s.logger.Error("transfer history append failed",
			slog.String("transfer_id", transferID.String()), slog.Any("error", err))
	}
}

// recipientOnly loads the transfer and verifies the caller is the user
// it is addressed to. No other role may act on it, admins included.
func (s *Service) recipientOnly(ctx context.Context, transferID id.TransferID) (Transfer, error) {
	t, err := s.transfers.FindByID(ctx, transferID)
	if err != nil {
		return Transfer{}, err
	}
	if t.ToUserID != requestcontext.UserID(ctx) {
		return Transfer{}, dErrors.New(dErrors.CodeForbidden, "transfer is addressed to another user")
	}
	return t, nil
}

func (s *Service) ApproveTransfer(ctx context.Context, transferID id.TransferID, notes string) (Transfer, error) {
	t, err := s.recipientOnly(ctx, transferID)
	if err != nil {
		return Transfer{}, err
	}
	if t.Status != TransferPending {
		return Transfer{}, dErrors.Newf(dErrors.CodeConflict, "transfer is %s", t.Status)
	}

	now := requestcontext.Now(ctx)
	t.Status = TransferApproved
	t.ApprovedAt = &now
	if err := s.transfers.Update(ctx, t); err != nil {
		return Transfer{}, err
	}
	s.appendHistory(ctx, t.ID, t.ToUserID, "approved", notes)
	s.audit.Record(ctx, audit.Entry{
		Action:       audit.ActionApprove,
		ResourceType: "fund_transfer",
		ResourceID:   t.ID.String(),
	})
	return t, nil
}

// CompleteTransfer confirms the funds physically changed hands. A
// completed hand-over to finance is posted to the ledger.
func (s *Service) CompleteTransfer(ctx context.Context, transferID id.TransferID, notes string) (Transfer, error) {
	t, err := s.recipientOnly(ctx, transferID)
	if err != nil {
		return Transfer{}, err
	}
	if t.Status != TransferApproved {
		return Transfer{}, dErrors.Newf(dErrors.CodeConflict, "transfer is %s, approve it first", t.Status)
	}

	now := requestcontext.Now(ctx)
	t.Status = TransferCompleted
	t.CompletedAt = &now
	if err := s.transfers.Update(ctx, t); err != nil {
		return Transfer{}, err
	}
	s.appendHistory(ctx, t.ID, t.ToUserID, "completed", notes)

	if t.Stage == StageYMToFinance && s.ledger != nil {
		memo := fmt.Sprintf("Fund transfer %s received", t.Reference)
		if err := s.ledger.PostTransferReceipt(ctx, t.ID, t.AmountCents, memo); err != nil {
			s.logger.Error("transfer ledger posting failed",
				slog.String("transfer_id", t.ID.String()), slog.Any("error", err))
		}
	}
	if s.metrics != nil {
		s.metrics.TransfersCompleted.Inc()
	}
	s.audit.Record(ctx, audit.Entry{
		Action:       audit.ActionUpdate,
		ResourceType: "fund_transfer",
		ResourceID:   t.ID.String(),
		Description:  "transfer completed",
	})
	return t, nil
}

func (s *Service) RejectTransfer(ctx context.Context, transferID id.TransferID, notes string) (Transfer, error) {
	if strings.TrimSpace(notes) == "" {
		return Transfer{}, dErrors.New(dErrors.CodeValidation, "rejection needs a reason")
	}
	t, err := s.recipientOnly(ctx, transferID)
	if err != nil {
		return Transfer{}, err
	}
	if t.Status != TransferPending {
		return Transfer{}, dErrors.Newf(dErrors.CodeConflict, "transfer is %s", t.Status)
	}

	t.Status = TransferRejected
	if err := s.transfers.Update(ctx, t); err != nil {
		return Transfer{}, err
	}
	s.appendHistory(ctx, t.ID, t.ToUserID, "rejected", notes)
	s.audit.Record(ctx, audit.Entry{
		Action:       audit.ActionReject,
		ResourceType: "fund_transfer",
		ResourceID:   t.ID.String(),
		Description:  notes,
	})
	return t, nil
}

func (s *Service) GetTransfer(ctx context.Context, transferID id.TransferID) (TransferDetail, error) {
	t, err := s.transfers.FindByID(ctx, transferID)
	if err != nil {
		return TransferDetail{}, err
	}
	if !s.transferVisible(ctx, t) {
		return TransferDetail{}, dErrors.New(dErrors.CodeForbidden, "transfer involves other users")
	}
	approvals, err := s.transfers.ApprovalsFor(ctx, transferID)
	if err != nil {
		return TransferDetail{}, err
	}
	return TransferDetail{Transfer: t, Approvals: approvals}, nil
}

func (s *Service) transferVisible(ctx context.Context, t Transfer) bool {
	switch requestcontext.Role(ctx) {
	case auth.RoleFinance, auth.RoleAdmin, auth.RoleSuperAdmin:
		return true
	}
	userID := requestcontext.UserID(ctx)
	return t.FromUserID == userID || t.ToUserID == userID
}

func (s *Service) ListTransfers(ctx context.Context, filter TransferFilter) ([]Transfer, error) {
	if scoped := s.scopeTransfers(ctx); !scoped.IsZero() {
		filter.ParticipantID = scoped
	}
	return s.transfers.List(ctx, filter)
}

func (s *Service) TransferOverview(ctx context.Context, eventID id.EventID) (TransferStats, error) {
	filter := TransferFilter{EventID: eventID}
	if scoped := s.scopeTransfers(ctx); !scoped.IsZero() {
		filter.ParticipantID = scoped
	}
	return s.transfers.Stats(ctx, filter)
}

// scopeTransfers returns the user a listing must be limited to, or zero
// when the caller sees everything.
func (s *Service) scopeTransfers(ctx context.Context) id.UserID {
	switch requestcontext.Role(ctx) {
	case auth.RoleChair, auth.RoleYouthMinister:
		return requestcontext.UserID(ctx)
	}
	return id.UserID{}
}

// Dashboard is the fund summary for the caller's role.
type Dashboard struct {
	Transfers TransferStats `json:"transfers"`
	Pledges   PledgeStats   `json:"pledges"`
}

func (s *Service) RoleDashboard(ctx context.Context, eventID id.EventID) (Dashboard, error) {
	transfers, err := s.TransferOverview(ctx, eventID)
	if err != nil {
		return Dashboard{}, err
	}
	pledges, err := s.pledges.Stats(ctx, eventID)
	if err != nil {
		return Dashboard{}, err
	}
	return Dashboard{Transfers: transfers, Pledges: pledges}, nil
}
