package checkin

import (
	"context"
	"time"

	id "kayo/pkg/domain"
	dErrors "kayo/pkg/domain-errors"
)

var (
	ErrNotFound = dErrors.New(dErrors.CodeNotFound, "record not found")

	// ErrDuplicate reports a second check-in for the same delegate,
	// event, day and session.
	ErrDuplicate = dErrors.New(dErrors.CodeConflict, "already checked in")
)

// Store persists check-in records.
type Store interface {
	// Insert fails with ErrDuplicate when a record already exists for
	// the same delegate, event, day and session.
	Insert(ctx context.Context, r Record) error
	Find(ctx context.Context, delegateID id.DelegateID, eventID id.EventID, day time.Time, session string) (Record, error)
	ListByDate(ctx context.Context, eventID id.EventID, day time.Time, session string) ([]Record, error)
	HistoryFor(ctx context.Context, delegateID id.DelegateID) ([]Record, error)
	Stats(ctx context.Context, eventID id.EventID) (EventStats, error)
}
