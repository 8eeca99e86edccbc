// Package audit records who did what to which resource. Entries are
// buffered in memory and written by a background worker so request latency
// never depends on the audit sink.
package audit

import (
	"context"
	"time"

	id "kayo/pkg/domain"
	"kayo/pkg/requestcontext"
)

// Common actions. Free-form actions are allowed; these exist so callers
// and queries agree on spelling.
const (
	ActionCreate  = "create"
	ActionUpdate  = "update"
	ActionDelete  = "delete"
	ActionLogin   = "login"
	ActionLogout  = "logout"
	ActionApprove = "approve"
	ActionReject  = "reject"
	ActionSend    = "send"
	ActionExport  = "export"
)

// Entry is one audit record.
type Entry struct {
	ID           int64          `json:"id,omitempty"`
	UserID       id.UserID      `json:"user_id,omitempty"`
	UserEmail    string         `json:"user_email,omitempty"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceID   string         `json:"resource_id,omitempty"`
	Description  string         `json:"description,omitempty"`
	OldValues    map[string]any `json:"old_values,omitempty"`
	NewValues    map[string]any `json:"new_values,omitempty"`
	IPAddress    string         `json:"ip_address,omitempty"`
	UserAgent    string         `json:"user_agent,omitempty"`
	RequestID    string         `json:"request_id,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Recorder accepts audit entries. Implementations must not block the
// caller.
type Recorder interface {
	Record(ctx context.Context, entry Entry)
}

// NopRecorder discards every entry. Used in tests and wherever auditing is
// not wired.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, Entry) {}

// FromContext fills the request-scoped fields of an entry: actor, client
// metadata and correlation ID. The action fields stay the caller's job.
func FromContext(ctx context.Context, entry Entry) Entry {
	if entry.UserID.IsZero() {
		entry.UserID = requestcontext.UserID(ctx)
	}
	entry.IPAddress = requestcontext.ClientIP(ctx)
	entry.UserAgent = requestcontext.UserAgent(ctx)
	entry.RequestID = requestcontext.RequestID(ctx)
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = requestcontext.Now(ctx)
	}
	return entry
}
