// Package comms sends announcements and bulk SMS to delegates over the
// Africa's Talking gateway and SMTP. Delivery runs on a background job so
// the request only queues the work.
package comms

import (
	"time"

	id "kayo/pkg/domain"
)

// Announcement lifecycle. Draft announcements can be edited and deleted;
// queued ones are waiting for the delivery worker; sent is terminal.
const (
	StatusDraft  = "draft"
	StatusQueued = "queued"
	StatusSent   = "sent"
)

// Audience selectors. Paid/unpaid look at the fee flag, the check-in pair
// at whether the delegate has arrived.
const (
	AudienceAll          = "all"
	AudiencePaid         = "paid"
	AudienceUnpaid       = "unpaid"
	AudienceCheckedIn    = "checked_in"
	AudienceNotCheckedIn = "not_checked_in"
)

func ValidAudience(audience string) bool {
	switch audience {
	case AudienceAll, AudiencePaid, AudienceUnpaid, AudienceCheckedIn, AudienceNotCheckedIn:
		return true
	}
	return false
}

// Message types are informational labels, not behavior.
const (
	TypeGeneral  = "general"
	TypeUrgent   = "urgent"
	TypeReminder = "reminder"
	TypeThankYou = "thank_you"
)

// Delivery channels and per-recipient outcomes.
const (
	ChannelSMS   = "sms"
	ChannelEmail = "email"

	DeliverySent   = "sent"
	DeliveryFailed = "failed"
)

// Announcement is one broadcast to an audience. Counts are filled by the
// delivery worker.
type Announcement struct {
	ID              id.AnnouncementID `json:"id"`
	EventID         id.EventID        `json:"event_id,omitempty"`
	Title           string            `json:"title"`
	Message         string            `json:"message"`
	MessageType     string            `json:"message_type"`
	SendSMS         bool              `json:"send_sms"`
	SendEmail       bool              `json:"send_email"`
	Audience        string            `json:"audience"`
	Archdeaconries  []string          `json:"archdeaconries"`
	Status          string            `json:"status"`
	RecipientsCount int               `json:"recipients_count"`
	DeliveredCount  int               `json:"delivered_count"`
	FailedCount     int               `json:"failed_count"`
	ScheduledFor    *time.Time        `json:"scheduled_for,omitempty"`
	SentAt          *time.Time        `json:"sent_at,omitempty"`
	CreatedBy       id.UserID         `json:"created_by"`
	CreatedAt       time.Time         `json:"created_at"`
}

// Message is one delivery attempt in the announcement's message log.
type Message struct {
	ID             int64             `json:"id"`
	AnnouncementID id.AnnouncementID `json:"announcement_id"`
	Channel        string            `json:"channel"`
	Recipient      string            `json:"recipient"`
	Status         string            `json:"status"`
	Error          string            `json:"error,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

type CreateRequest struct {
	Title          string   `json:"title"`
	Message        string   `json:"message"`
	MessageType    string   `json:"message_type"`
	SendSMS        bool     `json:"send_sms"`
	SendEmail      bool     `json:"send_email"`
	Audience       string   `json:"audience"`
	Archdeaconries []string `json:"archdeaconries"`
	EventID        string   `json:"event_id"`
	ScheduledFor   string   `json:"scheduled_for"`
}

// BulkSMSRequest is the one-shot path: it creates and immediately queues
// an SMS-only announcement.
type BulkSMSRequest struct {
	Message        string   `json:"message"`
	Audience       string   `json:"audience"`
	Archdeaconries []string `json:"archdeaconries"`
	EventID        string   `json:"event_id"`
}

type AnnouncementDetail struct {
	Announcement
	Messages []Message `json:"messages"`
}

// RecipientPreview is the audience-size breakdown shown before sending.
type RecipientPreview struct {
	All          int `json:"all"`
	Paid         int `json:"paid"`
	Unpaid       int `json:"unpaid"`
	CheckedIn    int `json:"checked_in"`
	NotCheckedIn int `json:"not_checked_in"`
}
