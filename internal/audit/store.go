package audit

import (
	"context"
	"time"
)

// Filter narrows List results. Zero values mean "any".
type Filter struct {
	Action       string
	ResourceType string
	ResourceID   string
	UserEmail    string
	From         time.Time
	To           time.Time
	Limit        int
	Offset       int
}

// Store persists audit entries.
type Store interface {
	Insert(ctx context.Context, entry Entry) error
	List(ctx context.Context, filter Filter) ([]Entry, error)
}
