package comms

import (
	"context"

	id "kayo/pkg/domain"
	dErrors "kayo/pkg/domain-errors"
)

var ErrNotFound = dErrors.New(dErrors.CodeNotFound, "record not found")

// Filter narrows announcement listings. Zero values mean "any".
type Filter struct {
	Status  string
	EventID id.EventID
}

type Store interface {
	Insert(ctx context.Context, a Announcement) error
	Update(ctx context.Context, a Announcement) error
	FindByID(ctx context.Context, announcementID id.AnnouncementID) (Announcement, error)
	List(ctx context.Context, filter Filter) ([]Announcement, error)
	Delete(ctx context.Context, announcementID id.AnnouncementID) error

	// InsertMessages appends the delivery log for one announcement.
	InsertMessages(ctx context.Context, messages []Message) error
	MessagesFor(ctx context.Context, announcementID id.AnnouncementID) ([]Message, error)
}
