package delegate

import (
	"context"

	id "kayo/pkg/domain"
	dErrors "kayo/pkg/domain-errors"
)

var (
	ErrNotFound = dErrors.New(dErrors.CodeNotFound, "record not found")

	// ErrAlreadyClaimed reports that a delegate in a payment claim is
	// already paid or attached to another payment.
	ErrAlreadyClaimed = dErrors.New(dErrors.CodeConflict, "delegate already covered by a payment")
)

type Store interface {
	Insert(ctx context.Context, delegate Delegate) error
	Update(ctx context.Context, delegate Delegate) error
	Delete(ctx context.Context, delegateID id.DelegateID) error
	FindByID(ctx context.Context, delegateID id.DelegateID) (Delegate, error)
	List(ctx context.Context, filter Filter) ([]Delegate, error)
	Count(ctx context.Context, filter Filter) (int, error)
	Stats(ctx context.Context, filter Filter) (Stats, error)

	// ClaimForPayment atomically attaches the payment to every listed
	// delegate. It fails with ErrAlreadyClaimed unless all of them are
	// unpaid and unattached; partial claims never persist.
	ClaimForPayment(ctx context.Context, delegateIDs []id.DelegateID, paymentID id.PaymentID) error
	// MarkPaid flips is_paid for every delegate attached to the payment
	// and returns how many rows changed.
	MarkPaid(ctx context.Context, paymentID id.PaymentID) (int, error)
	// ReleasePayment detaches a failed payment from its delegates.
	ReleasePayment(ctx context.Context, paymentID id.PaymentID) error
	// SetCheckedIn records the first-day check-in flag.
	SetCheckedIn(ctx context.Context, delegateID id.DelegateID, checkedIn bool) error
}

type PendingStore interface {
	Insert(ctx context.Context, pending PendingDelegate) error
	Update(ctx context.Context, pending PendingDelegate) error
	FindByID(ctx context.Context, pendingID id.PendingDelegateID) (PendingDelegate, error)
	FindByToken(ctx context.Context, token string) (PendingDelegate, error)
	ListPending(ctx context.Context) ([]PendingDelegate, error)
}
