package checkin

import (
	"time"

	"kayo/internal/delegate"
	id "kayo/pkg/domain"
)

// Check-in methods.
const (
	MethodQRScan = "qr_scan"
	MethodManual = "manual"
	MethodBulk   = "bulk"
)

// Scan outcomes.
const (
	StatusCheckedIn        = "checked_in"
	StatusAlreadyCheckedIn = "already_checked_in"
	StatusUnpaid           = "unpaid"
)

// Record is one check-in. At most one exists per delegate, event, day
// and session; the empty session name covers general attendance.
type Record struct {
	ID          id.CheckInID  `json:"id"`
	DelegateID  id.DelegateID `json:"delegate_id"`
	EventID     id.EventID    `json:"event_id"`
	CheckInDate time.Time     `json:"check_in_date"`
	CheckInTime time.Time     `json:"check_in_time"`
	CheckedInBy id.UserID     `json:"checked_in_by,omitempty"`
	SessionName string        `json:"session_name,omitempty"`
	Method      string        `json:"method"`
}

type ScanRequest struct {
	Token       string `json:"token"`
	EventID     string `json:"event_id"`
	SessionName string `json:"session_name"`
}

type ManualRequest struct {
	DelegateID  string `json:"delegate_id"`
	EventID     string `json:"event_id"`
	SessionName string `json:"session_name"`
}

type BulkRequest struct {
	DelegateIDs []string `json:"delegate_ids"`
	EventID     string   `json:"event_id"`
	SessionName string   `json:"session_name"`
}

// ScanResult reports what a scan or manual check-in did. Warning
// outcomes (unpaid, already checked in) carry the delegate so the gate
// staff can decide what to do next.
type ScanResult struct {
	Status   string            `json:"status"`
	Delegate delegate.Delegate `json:"delegate"`
	Record   *Record           `json:"record,omitempty"`
}

// Badge is a signed QR payload for a delegate's event badge.
type Badge struct {
	DelegateID id.DelegateID `json:"delegate_id"`
	Token      string        `json:"token"`
	ExpiresAt  time.Time     `json:"expires_at"`
}

// BulkReport summarizes a bulk check-in.
type BulkReport struct {
	CheckedIn int      `json:"checked_in"`
	Skipped   int      `json:"skipped"`
	Errors    []string `json:"errors,omitempty"`
}

// Arrival is a check-in joined with delegate detail for the dashboard.
type Arrival struct {
	Record   Record            `json:"record"`
	Delegate delegate.Delegate `json:"delegate"`
}

// DailySummary is one day's attendance for an event.
type DailySummary struct {
	Date            time.Time      `json:"date"`
	Arrivals        []Arrival      `json:"arrivals"`
	TotalCheckIns   int            `json:"total_check_ins"`
	UniqueDelegates int            `json:"unique_delegates"`
	SessionCounts   map[string]int `json:"session_counts"`
}

// EventStats aggregates attendance over the whole event.
type EventStats struct {
	TotalRegistered int            `json:"total_registered"`
	TotalCheckIns   int            `json:"total_check_ins"`
	UniqueDelegates int            `json:"unique_delegates"`
	SessionCounts   map[string]int `json:"session_counts"`
	DailyCounts     map[string]int `json:"daily_counts"`
}
