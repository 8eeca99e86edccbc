package payment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"kayo/internal/audit"
	"kayo/internal/auth"
	"kayo/internal/delegate"
	"kayo/internal/event"
	"kayo/internal/payment/mpesa"
	"kayo/internal/platform/metrics"
	id "kayo/pkg/domain"
	dErrors "kayo/pkg/domain-errors"
	"kayo/pkg/requestcontext"
)

const (
	// callbackDedupeTTL keeps processed callback IDs long enough to
	// absorb Daraja retries.
	callbackDedupeTTL = 48 * time.Hour

	// pollGracePeriod leaves fresh pushes alone so the customer has
	// time to enter their PIN before we start querying.
	pollGracePeriod = 2 * time.Minute

	maxReminders     = 3
	reminderInterval = 24 * time.Hour
)

// Gateway is the Daraja surface the service needs.
type Gateway interface {
	Configured() bool
	STKPush(ctx context.Context, req mpesa.STKPushRequest) (mpesa.STKPushResponse, error)
	QueryStatus(ctx context.Context, checkoutRequestID string) (mpesa.StatusResponse, error)
}

// DelegateRegistry is the delegate surface the payment flow drives.
type DelegateRegistry interface {
	Get(ctx context.Context, delegateID id.DelegateID) (delegate.Delegate, error)
	List(ctx context.Context, filter delegate.Filter) ([]delegate.Delegate, error)
	ClaimForPayment(ctx context.Context, delegateIDs []id.DelegateID, paymentID id.PaymentID) error
	MarkPaid(ctx context.Context, paymentID id.PaymentID) (int, error)
	ReleasePayment(ctx context.Context, paymentID id.PaymentID) error
}

// FeeQuoter prices a batch of delegates for an event.
type FeeQuoter interface {
	QuoteFee(ctx context.Context, eventID id.EventID, count int) (event.Quote, error)
	RecordSale(ctx context.Context, tierID id.TierID, count int)
}

// PermissionChecker answers elevated-permission lookups for chairs.
type PermissionChecker interface {
	HasActivePermission(ctx context.Context, userID id.UserID, permissionType string) (bool, error)
}

// ReceiptPoster records a completed collection in the ledger. Nil is
// allowed; posting is then skipped.
type ReceiptPoster interface {
	PostPaymentReceipt(ctx context.Context, paymentID id.PaymentID, amountCents int64, memo string) error
}

// SMSSender delivers reminder messages.
type SMSSender interface {
	SendSMS(ctx context.Context, phone, message string) error
}

// Service runs the fee collection flow: STK pushes, callbacks, manual
// payments with the confirmation chain, discrepancies and reminders.
type Service struct {
	store         Store
	discrepancies DiscrepancyStore
	reminders     ReminderStore
	delegates     DelegateRegistry
	quoter        FeeQuoter
	gateway       Gateway
	permissions   PermissionChecker
	ledger        ReceiptPoster
	sms           SMSSender
	redis         *redis.Client
	logger        *slog.Logger
	metrics       *metrics.Metrics
	audit         audit.Recorder
}

type Options struct {
	Gateway       Gateway
	Permissions   PermissionChecker
	Ledger        ReceiptPoster
	SMS           SMSSender
	Redis         *redis.Client
	Metrics       *metrics.Metrics
	AuditRecorder audit.Recorder
}

func NewService(store Store, discrepancies DiscrepancyStore, reminders ReminderStore, delegates DelegateRegistry, quoter FeeQuoter, logger *slog.Logger, opts Options) *Service {
	recorder := opts.AuditRecorder
	if recorder == nil {
		recorder = audit.NopRecorder{}
	}
	return &Service{
		store:         store,
		discrepancies: discrepancies,
		reminders:     reminders,
		delegates:     delegates,
		quoter:        quoter,
		gateway:       opts.Gateway,
		permissions:   opts.Permissions,
		ledger:        opts.Ledger,
		sms:           opts.SMS,
		redis:         opts.Redis,
		logger:        logger,
		metrics:       opts.Metrics,
		audit:         recorder,
	}
}

// collectDelegates loads and validates the batch a payment will cover.
// Every delegate must be visible to the caller, unpaid, not fee exempt
// and share one event.
func (s *Service) collectDelegates(ctx context.Context, rawIDs []string) ([]id.DelegateID, id.EventID, error) {
	if len(rawIDs) == 0 {
		return nil, id.EventID{}, dErrors.New(dErrors.CodeValidation, "at least one delegate is required")
	}
	var (
		delegateIDs []id.DelegateID
		eventID     id.EventID
	)
	for i, raw := range rawIDs {
		delegateID, err := id.ParseDelegateID(raw)
		if err != nil {
			return nil, id.EventID{}, err
		}
		d, err := s.delegates.Get(ctx, delegateID)
		if err != nil {
			return nil, id.EventID{}, err
		}
		if d.FeeExempt {
			return nil, id.EventID{}, dErrors.Newf(dErrors.CodeConflict, "delegate %s is fee exempt", d.Name)
		}
		if d.IsPaid {
			return nil, id.EventID{}, dErrors.Newf(dErrors.CodeConflict, "delegate %s is already paid", d.Name)
		}
		if i == 0 {
			eventID = d.EventID
		} else if d.EventID != eventID {
			return nil, id.EventID{}, dErrors.New(dErrors.CodeValidation, "delegates must belong to the same event")
		}
		delegateIDs = append(delegateIDs, delegateID)
	}
	return delegateIDs, eventID, nil
}

// Initiate claims the delegates for a new payment and fires an STK push
// to the payer's phone.
func (s *Service) Initiate(ctx context.Context, req InitiateRequest) (Payment, error) {
	if s.gateway == nil || !s.gateway.Configured() {
		return Payment{}, dErrors.New(dErrors.CodeUnavailable, "mobile money is not configured")
	}
	phone, err := mpesa.NormalizePhone(req.PhoneNumber)
	if err != nil {
		return Payment{}, err
	}
	delegateIDs, eventID, err := s.collectDelegates(ctx, req.DelegateIDs)
	if err != nil {
		return Payment{}, err
	}

	quote, err := s.quoter.QuoteFee(ctx, eventID, len(delegateIDs))
	if err != nil {
		return Payment{}, err
	}

	now := requestcontext.Now(ctx)
	p := Payment{
		ID:             id.NewPaymentID(),
		UserID:         requestcontext.UserID(ctx),
		EventID:        eventID,
		TierID:         quote.TierID,
		AmountCents:    quote.TotalCents,
		Mode:           ModeMpesaPaybill,
		PhoneNumber:    phone,
		Status:         StatusPending,
		FinanceStatus:  FinancePendingApproval,
		DelegatesCount: len(delegateIDs),
		CreatedAt:      now,
	}
	if err := s.store.Insert(ctx, p); err != nil {
		return Payment{}, dErrors.Wrap(err, dErrors.CodeInternal, "insert payment")
	}
	if err := s.delegates.ClaimForPayment(ctx, delegateIDs, p.ID); err != nil {
		return Payment{}, err
	}

	push, err := s.gateway.STKPush(ctx, mpesa.STKPushRequest{
		Phone:            phone,
		Amount:           toShillings(p.AmountCents),
		AccountReference: "KAYO-" + p.ID.String()[:8],
		Description:      fmt.Sprintf("Delegate fees x%d", len(delegateIDs)),
	})
	if err != nil {
		s.failPayment(ctx, p, "", "stk push failed")
		return Payment{}, err
	}

	p.CheckoutRequestID = push.CheckoutRequestID
	p.MerchantRequestID = push.MerchantRequestID
	if err := s.store.Update(ctx, p); err != nil {
		return Payment{}, dErrors.Wrap(err, dErrors.CodeInternal, "update payment")
	}

	if s.metrics != nil {
		s.metrics.PaymentsInitiated.Inc()
	}
	s.audit.Record(ctx, audit.FromContext(ctx, audit.Entry{
		Action:       audit.ActionCreate,
		ResourceType: "payment",
		ResourceID:   p.ID.String(),
		NewValues:    map[string]any{"amount_cents": p.AmountCents, "delegates": len(delegateIDs), "mode": p.Mode},
	}))
	return p, nil
}

// toShillings rounds cents up to whole shillings for Daraja.
func toShillings(cents int64) int64 { return (cents + 99) / 100 }

// HandleCallback processes a Daraja STK callback. Idempotent: repeated
// deliveries of the same CheckoutRequestID are ignored.
func (s *Service) HandleCallback(ctx context.Context, cb mpesa.Callback) error {
	stk := cb.Body.STKCallback
	if stk.CheckoutRequestID == "" {
		return dErrors.New(dErrors.CodeValidation, "callback missing CheckoutRequestID")
	}

	if s.redis != nil {
		fresh, err := s.redis.SetNX(ctx, "mpesa:callback:"+stk.CheckoutRequestID, "1", callbackDedupeTTL).Result()
		if err != nil {
			s.logger.WarnContext(ctx, "callback dedupe check failed", slog.String("error", err.Error()))
		} else if !fresh {
			s.logger.InfoContext(ctx, "duplicate mpesa callback ignored",
				slog.String("checkout_request_id", stk.CheckoutRequestID))
			return nil
		}
	}

	p, err := s.store.FindByCheckoutID(ctx, stk.CheckoutRequestID)
	if err != nil {
		// Acknowledge unknown callbacks so Daraja stops retrying, but
		// keep a trace for reconciliation.
		s.logger.WarnContext(ctx, "callback for unknown payment",
			slog.String("checkout_request_id", stk.CheckoutRequestID))
		return nil
	}
	if p.Status != StatusPending {
		return nil
	}

	if stk.ResultCode == 0 {
		return s.completePayment(ctx, p, fmt.Sprintf("%d", stk.ResultCode), stk.ResultDesc, cb.Receipt(), cb.AmountCents())
	}
	s.failPayment(ctx, p, fmt.Sprintf("%d", stk.ResultCode), stk.ResultDesc)
	return nil
}

func (s *Service) completePayment(ctx context.Context, p Payment, resultCode, resultDesc, receipt string, actualCents int64) error {
	now := requestcontext.Now(ctx)
	p.Status = StatusCompleted
	p.ResultCode = resultCode
	p.ResultDesc = resultDesc
	p.MpesaReceipt = receipt
	p.TransactionID = receipt
	p.CompletedAt = &now
	if err := s.store.Update(ctx, p); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "update payment")
	}

	marked, err := s.delegates.MarkPaid(ctx, p.ID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "mark delegates paid")
	}
	s.quoter.RecordSale(ctx, p.TierID, p.DelegatesCount)

	if actualCents > 0 && actualCents != p.AmountCents {
		s.recordDiscrepancy(ctx, p, actualCents)
	}
	if s.ledger != nil {
		memo := fmt.Sprintf("Delegate fees, %d delegate(s), receipt %s", p.DelegatesCount, receipt)
		if err := s.ledger.PostPaymentReceipt(ctx, p.ID, p.AmountCents, memo); err != nil {
			s.logger.ErrorContext(ctx, "failed to post payment receipt",
				slog.String("payment_id", p.ID.String()),
				slog.String("error", err.Error()))
		}
	}

	if s.metrics != nil {
		s.metrics.PaymentsCompleted.Inc()
	}
	s.logger.InfoContext(ctx, "payment completed",
		slog.String("payment_id", p.ID.String()),
		slog.String("receipt", receipt),
		slog.Int("delegates_paid", marked))
	s.audit.Record(ctx, audit.FromContext(ctx, audit.Entry{
		Action:       audit.ActionUpdate,
		ResourceType: "payment",
		ResourceID:   p.ID.String(),
		NewValues:    map[string]any{"status": StatusCompleted, "receipt": receipt},
	}))
	return nil
}

func (s *Service) failPayment(ctx context.Context, p Payment, resultCode, resultDesc string) {
	p.Status = StatusFailed
	p.ResultCode = resultCode
	p.ResultDesc = resultDesc
	if err := s.store.Update(ctx, p); err != nil {
		s.logger.ErrorContext(ctx, "failed to mark payment failed",
			slog.String("payment_id", p.ID.String()),
			slog.String("error", err.Error()))
		return
	}
	if err := s.delegates.ReleasePayment(ctx, p.ID); err != nil {
		s.logger.ErrorContext(ctx, "failed to release delegates",
			slog.String("payment_id", p.ID.String()),
			slog.String("error", err.Error()))
	}
	if s.metrics != nil {
		s.metrics.PaymentsFailed.Inc()
	}
}

func (s *Service) recordDiscrepancy(ctx context.Context, p Payment, actualCents int64) {
	kind := DiscrepancyOverpayment
	if actualCents < p.AmountCents {
		kind = DiscrepancyUnderpayment
	}
	d := Discrepancy{
		ID:              id.NewDiscrepancyID(),
		PaymentID:       p.ID,
		ExpectedCents:   p.AmountCents,
		ActualCents:     actualCents,
		DifferenceCents: actualCents - p.AmountCents,
		Type:            kind,
		Status:          DiscrepancyPending,
		CreatedAt:       requestcontext.Now(ctx),
	}
	if err := s.discrepancies.Insert(ctx, d); err != nil {
		s.logger.ErrorContext(ctx, "failed to record discrepancy",
			slog.String("payment_id", p.ID.String()),
			slog.String("error", err.Error()))
	}
}

// PollPending re-queries Daraja for pushes that never called back and
// settles them. Returns how many payments were settled.
func (s *Service) PollPending(ctx context.Context) (int, error) {
	if s.gateway == nil || !s.gateway.Configured() {
		return 0, nil
	}
	pending, err := s.store.PendingPushes(ctx, requestcontext.Now(ctx).Add(-pollGracePeriod))
	if err != nil {
		return 0, err
	}

	settled := 0
	for _, p := range pending {
		status, err := s.gateway.QueryStatus(ctx, p.CheckoutRequestID)
		if err != nil {
			s.logger.WarnContext(ctx, "status query failed",
				slog.String("payment_id", p.ID.String()),
				slog.String("error", err.Error()))
			continue
		}
		switch {
		case status.Succeeded():
			if err := s.completePayment(ctx, p, status.ResultCode, status.ResultDesc, "", 0); err != nil {
				return settled, err
			}
			settled++
		case status.Pending():
			// still waiting on the customer
		default:
			s.failPayment(ctx, p, status.ResultCode, status.ResultDesc)
			settled++
		}
	}
	return settled, nil
}

// RecordManual captures an offline payment (cash, bank deposit, manual
// M-Pesa) which then goes through chair confirmation and finance
// approval before counting.
func (s *Service) RecordManual(ctx context.Context, req ManualRequest) (Payment, error) {
	if !ValidManualMode(req.Mode) {
		return Payment{}, dErrors.Newf(dErrors.CodeValidation, "unknown payment mode %q", req.Mode)
	}
	if req.AmountCents <= 0 {
		return Payment{}, dErrors.New(dErrors.CodeValidation, "amount must be positive")
	}
	delegateIDs, eventID, err := s.collectDelegates(ctx, req.DelegateIDs)
	if err != nil {
		return Payment{}, err
	}

	p := Payment{
		ID:             id.NewPaymentID(),
		UserID:         requestcontext.UserID(ctx),
		EventID:        eventID,
		AmountCents:    req.AmountCents,
		Mode:           req.Mode,
		TransactionID:  req.TransactionID,
		PhoneNumber:    req.PhoneNumber,
		Status:         StatusPending,
		FinanceStatus:  FinancePendingApproval,
		DelegatesCount: len(delegateIDs),
		CreatedAt:      requestcontext.Now(ctx),
	}
	if err := s.store.Insert(ctx, p); err != nil {
		return Payment{}, dErrors.Wrap(err, dErrors.CodeInternal, "insert payment")
	}
	if err := s.delegates.ClaimForPayment(ctx, delegateIDs, p.ID); err != nil {
		return Payment{}, err
	}

	if s.metrics != nil {
		s.metrics.PaymentsInitiated.Inc()
	}
	s.audit.Record(ctx, audit.FromContext(ctx, audit.Entry{
		Action:       audit.ActionCreate,
		ResourceType: "payment",
		ResourceID:   p.ID.String(),
		NewValues:    map[string]any{"amount_cents": p.AmountCents, "mode": p.Mode},
	}))
	return p, nil
}

// ConfirmByChair is the first link of the manual payment chain. Chairs
// need an approved payment_confirmation permission.
func (s *Service) ConfirmByChair(ctx context.Context, paymentID id.PaymentID) (Payment, error) {
	if requestcontext.Role(ctx) == auth.RoleChair && s.permissions != nil {
		allowed, err := s.permissions.HasActivePermission(ctx, requestcontext.UserID(ctx), auth.PermissionPaymentConfirmation)
		if err != nil {
			return Payment{}, dErrors.Wrap(err, dErrors.CodeInternal, "check confirmation permission")
		}
		if !allowed {
			return Payment{}, dErrors.New(dErrors.CodeForbidden, "payment confirmation requires an approved permission request")
		}
	}

	p, err := s.store.FindByID(ctx, paymentID)
	if err != nil {
		return Payment{}, err
	}
	if p.Mode == ModeMpesaPaybill {
		return Payment{}, dErrors.New(dErrors.CodeConflict, "push payments are confirmed by the gateway")
	}
	if p.Status != StatusPending {
		return Payment{}, dErrors.New(dErrors.CodeConflict, "payment is not pending")
	}
	if !p.ConfirmedByChair.IsZero() {
		return Payment{}, dErrors.New(dErrors.CodeConflict, "payment is already confirmed")
	}

	now := requestcontext.Now(ctx)
	p.ConfirmedByChair = requestcontext.UserID(ctx)
	p.ChairConfirmedAt = &now
	if err := s.store.Update(ctx, p); err != nil {
		return Payment{}, dErrors.Wrap(err, dErrors.CodeInternal, "update payment")
	}
	s.audit.Record(ctx, audit.FromContext(ctx, audit.Entry{
		Action:       audit.ActionApprove,
		ResourceType: "payment",
		ResourceID:   p.ID.String(),
		Description:  "chair confirmation",
	}))
	return p, nil
}

// ReviewByFinance settles a chair-confirmed manual payment. Approval
// completes it and marks the delegates paid; rejection releases them.
func (s *Service) ReviewByFinance(ctx context.Context, paymentID id.PaymentID, req ReviewRequest) (Payment, error) {
	p, err := s.store.FindByID(ctx, paymentID)
	if err != nil {
		return Payment{}, err
	}
	if p.Mode == ModeMpesaPaybill {
		return Payment{}, dErrors.New(dErrors.CodeConflict, "push payments are settled by the gateway")
	}
	if p.Status != StatusPending || p.FinanceStatus != FinancePendingApproval {
		return Payment{}, dErrors.New(dErrors.CodeConflict, "payment is not awaiting approval")
	}
	if p.ConfirmedByChair.IsZero() {
		return Payment{}, dErrors.New(dErrors.CodeConflict, "payment is not yet confirmed by a chair")
	}

	now := requestcontext.Now(ctx)
	p.ApprovedByFinance = requestcontext.UserID(ctx)
	p.FinanceApprovedAt = &now
	p.FinanceNotes = req.Notes

	if !req.Approve {
		if req.RejectionReason == "" {
			return Payment{}, dErrors.New(dErrors.CodeValidation, "rejection reason is required")
		}
		p.FinanceStatus = FinanceRejected
		p.RejectionReason = req.RejectionReason
		s.failPayment(ctx, p, "", "rejected by finance")
		s.audit.Record(ctx, audit.FromContext(ctx, audit.Entry{
			Action:       audit.ActionReject,
			ResourceType: "payment",
			ResourceID:   p.ID.String(),
			NewValues:    map[string]any{"reason": req.RejectionReason},
		}))
		return s.store.FindByID(ctx, paymentID)
	}

	p.FinanceStatus = FinanceApproved
	if err := s.completePayment(ctx, p, "", "approved by finance", p.TransactionID, 0); err != nil {
		return Payment{}, err
	}
	return s.store.FindByID(ctx, paymentID)
}

func (s *Service) Get(ctx context.Context, paymentID id.PaymentID) (Payment, error) {
	p, err := s.store.FindByID(ctx, paymentID)
	if err != nil {
		return Payment{}, err
	}
	if requestcontext.Role(ctx) == auth.RoleChair && p.UserID != requestcontext.UserID(ctx) {
		return Payment{}, ErrNotFound
	}
	return p, nil
}

func (s *Service) List(ctx context.Context, filter Filter) ([]Payment, error) {
	if requestcontext.Role(ctx) == auth.RoleChair {
		filter.UserID = requestcontext.UserID(ctx)
	}
	return s.store.List(ctx, filter)
}

func (s *Service) Totals(ctx context.Context) (Totals, error) {
	return s.store.Totals(ctx)
}

func (s *Service) Discrepancies(ctx context.Context, status string) ([]Discrepancy, error) {
	return s.discrepancies.List(ctx, status)
}

// ResolveDiscrepancy closes an over/underpayment investigation.
func (s *Service) ResolveDiscrepancy(ctx context.Context, discrepancyID id.DiscrepancyID, req ResolveDiscrepancyRequest) (Discrepancy, error) {
	switch req.Status {
	case DiscrepancyResolved, DiscrepancyRefunded, DiscrepancyWaived:
	default:
		return Discrepancy{}, dErrors.Newf(dErrors.CodeValidation, "unknown resolution status %q", req.Status)
	}

	d, err := s.discrepancies.FindByID(ctx, discrepancyID)
	if err != nil {
		return Discrepancy{}, err
	}
	if d.Status != DiscrepancyPending {
		return Discrepancy{}, dErrors.New(dErrors.CodeConflict, "discrepancy is already resolved")
	}

	now := requestcontext.Now(ctx)
	d.Status = req.Status
	d.ResolutionNotes = req.Notes
	d.ResolvedBy = requestcontext.UserID(ctx)
	d.ResolvedAt = &now
	if err := s.discrepancies.Update(ctx, d); err != nil {
		return Discrepancy{}, dErrors.Wrap(err, dErrors.CodeInternal, "update discrepancy")
	}
	s.audit.Record(ctx, audit.FromContext(ctx, audit.Entry{
		Action:       audit.ActionUpdate,
		ResourceType: "payment_discrepancy",
		ResourceID:   d.ID.String(),
		NewValues:    map[string]any{"status": d.Status},
	}))
	return d, nil
}

// SendReminders nudges unpaid delegates over SMS. Each delegate gets at
// most maxReminders, spaced at least reminderInterval apart. Returns how
// many were sent.
func (s *Service) SendReminders(ctx context.Context) (int, error) {
	if s.sms == nil {
		return 0, nil
	}
	unpaid := false
	delegates, err := s.delegates.List(ctx, delegate.Filter{IsPaid: &unpaid})
	if err != nil {
		return 0, err
	}

	now := requestcontext.Now(ctx)
	sent := 0
	for _, d := range delegates {
		if d.PhoneNumber == "" || d.FeeExempt {
			continue
		}
		history, err := s.reminders.ForDelegate(ctx, d.ID)
		if err != nil {
			return sent, err
		}
		if len(history) >= maxReminders {
			continue
		}
		if len(history) > 0 && now.Sub(history[0].SentAt) < reminderInterval {
			continue
		}

		message := fmt.Sprintf("Dear %s, your delegate registration fee is still unpaid. Kindly complete payment to confirm your place.", d.Name)
		status := "sent"
		if err := s.sms.SendSMS(ctx, d.PhoneNumber, message); err != nil {
			status = "failed"
			s.logger.WarnContext(ctx, "reminder sms failed",
				slog.String("delegate_id", d.ID.String()),
				slog.String("error", err.Error()))
		}

		r := Reminder{
			ID:             id.NewReminderID(),
			DelegateID:     d.ID,
			ReminderNumber: len(history) + 1,
			Channel:        "sms",
			Message:        message,
			Status:         status,
			SentAt:         now,
		}
		if err := s.reminders.Insert(ctx, r); err != nil {
			return sent, dErrors.Wrap(err, dErrors.CodeInternal, "insert reminder")
		}
		if status == "sent" {
			sent++
			if s.metrics != nil {
				s.metrics.RemindersSent.Inc()
			}
		}
	}
	return sent, nil
}
