// Package domain defines the typed identifiers shared across features.
//
// Every entity gets its own UUID-backed ID type so the compiler stops a
// DelegateID from being passed where a PaymentID is expected. Parse
// functions enforce the invariant that IDs are valid, non-nil UUIDs at
// trust boundaries (HTTP handlers, store scans).
package domain

import (
	"github.com/google/uuid"

	dErrors "kayo/pkg/domain-errors"
)

type (
	// UserID identifies a registered user (chair, youth minister, finance, admin).
	UserID uuid.UUID
	// SessionID identifies a login session.
	SessionID uuid.UUID
	// DelegateID identifies a delegate registered for an event.
	DelegateID uuid.UUID
	// PendingDelegateID identifies a self-registration awaiting review.
	PendingDelegateID uuid.UUID
	// EventID identifies a conference event.
	EventID uuid.UUID
	// TierID identifies a pricing tier within an event.
	TierID uuid.UUID
	// PaymentID identifies a delegate-fee payment.
	PaymentID uuid.UUID
	// PledgeID identifies a fundraising pledge.
	PledgeID uuid.UUID
	// ScheduleID identifies a scheduled (recurring) payment plan.
	ScheduleID uuid.UUID
	// TransferID identifies a fund transfer between custodians.
	TransferID uuid.UUID
	// AccountID identifies a ledger account.
	AccountID uuid.UUID
	// EntryID identifies a journal entry.
	EntryID uuid.UUID
	// VoucherID identifies a payment/receipt voucher.
	VoucherID uuid.UUID
	// BudgetID identifies an event budget.
	BudgetID uuid.UUID
	// BudgetItemID identifies a budget line item.
	BudgetItemID uuid.UUID
	// ExpenditureID identifies spending recorded against a budget item.
	ExpenditureID uuid.UUID
	// CheckInID identifies one delegate check-in record.
	CheckInID uuid.UUID
	// AnnouncementID identifies a bulk announcement.
	AnnouncementID uuid.UUID
	// RequestID identifies a permission request.
	RequestID uuid.UUID
	// DiscrepancyID identifies a payment amount discrepancy.
	DiscrepancyID uuid.UUID
	// ReminderID identifies a payment reminder message.
	ReminderID uuid.UUID
	// PledgePaymentID identifies one payment against a pledge.
	PledgePaymentID uuid.UUID
	// InstallmentID identifies one installment of a scheduled payment.
	InstallmentID uuid.UUID
)

func parse(kind, raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id is required")
	}
	u, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind+" id")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id must not be nil")
	}
	return u, nil
}

func NewUserID() UserID                     { return UserID(uuid.New()) }
func NewSessionID() SessionID               { return SessionID(uuid.New()) }
func NewDelegateID() DelegateID             { return DelegateID(uuid.New()) }
func NewPendingDelegateID() PendingDelegateID { return PendingDelegateID(uuid.New()) }
func NewEventID() EventID                   { return EventID(uuid.New()) }
func NewTierID() TierID                     { return TierID(uuid.New()) }
func NewPaymentID() PaymentID               { return PaymentID(uuid.New()) }
func NewPledgeID() PledgeID                 { return PledgeID(uuid.New()) }
func NewScheduleID() ScheduleID             { return ScheduleID(uuid.New()) }
func NewTransferID() TransferID             { return TransferID(uuid.New()) }
func NewAccountID() AccountID               { return AccountID(uuid.New()) }
func NewEntryID() EntryID                   { return EntryID(uuid.New()) }
func NewVoucherID() VoucherID               { return VoucherID(uuid.New()) }
func NewBudgetID() BudgetID                 { return BudgetID(uuid.New()) }
func NewBudgetItemID() BudgetItemID         { return BudgetItemID(uuid.New()) }
func NewExpenditureID() ExpenditureID       { return ExpenditureID(uuid.New()) }
func NewCheckInID() CheckInID               { return CheckInID(uuid.New()) }
func NewAnnouncementID() AnnouncementID     { return AnnouncementID(uuid.New()) }
func NewRequestID() RequestID               { return RequestID(uuid.New()) }
func NewDiscrepancyID() DiscrepancyID       { return DiscrepancyID(uuid.New()) }
func NewReminderID() ReminderID             { return ReminderID(uuid.New()) }
func NewPledgePaymentID() PledgePaymentID   { return PledgePaymentID(uuid.New()) }
func NewInstallmentID() InstallmentID       { return InstallmentID(uuid.New()) }

func ParseUserID(raw string) (UserID, error) {
	u, err := parse("user", raw)
	return UserID(u), err
}

func ParseSessionID(raw string) (SessionID, error) {
	u, err := parse("session", raw)
	return SessionID(u), err
}

func ParseDelegateID(raw string) (DelegateID, error) {
	u, err := parse("delegate", raw)
	return DelegateID(u), err
}

func ParsePendingDelegateID(raw string) (PendingDelegateID, error) {
	u, err := parse("pending delegate", raw)
	return PendingDelegateID(u), err
}

func ParseEventID(raw string) (EventID, error) {
	u, err := parse("event", raw)
	return EventID(u), err
}

func ParseTierID(raw string) (TierID, error) {
	u, err := parse("pricing tier", raw)
	return TierID(u), err
}

func ParsePaymentID(raw string) (PaymentID, error) {
	u, err := parse("payment", raw)
	return PaymentID(u), err
}

func ParsePledgeID(raw string) (PledgeID, error) {
	u, err := parse("pledge", raw)
	return PledgeID(u), err
}

func ParseScheduleID(raw string) (ScheduleID, error) {
	u, err := parse("schedule", raw)
	return ScheduleID(u), err
}

func ParseTransferID(raw string) (TransferID, error) {
	u, err := parse("transfer", raw)
	return TransferID(u), err
}

func ParseAccountID(raw string) (AccountID, error) {
	u, err := parse("account", raw)
	return AccountID(u), err
}

func ParseEntryID(raw string) (EntryID, error) {
	u, err := parse("journal entry", raw)
	return EntryID(u), err
}

func ParseVoucherID(raw string) (VoucherID, error) {
	u, err := parse("voucher", raw)
	return VoucherID(u), err
}

func ParseBudgetID(raw string) (BudgetID, error) {
	u, err := parse("budget", raw)
	return BudgetID(u), err
}

func ParseBudgetItemID(raw string) (BudgetItemID, error) {
	u, err := parse("budget item", raw)
	return BudgetItemID(u), err
}

func ParseExpenditureID(raw string) (ExpenditureID, error) {
	u, err := parse("expenditure", raw)
	return ExpenditureID(u), err
}

func ParseCheckInID(raw string) (CheckInID, error) {
	u, err := parse("check-in", raw)
	return CheckInID(u), err
}

func ParseAnnouncementID(raw string) (AnnouncementID, error) {
	u, err := parse("announcement", raw)
	return AnnouncementID(u), err
}

func ParseRequestID(raw string) (RequestID, error) {
	u, err := parse("permission request", raw)
	return RequestID(u), err
}

func ParseDiscrepancyID(raw string) (DiscrepancyID, error) {
	u, err := parse("discrepancy", raw)
	return DiscrepancyID(u), err
}

func ParseReminderID(raw string) (ReminderID, error) {
	u, err := parse("reminder", raw)
	return ReminderID(u), err
}

func ParsePledgePaymentID(raw string) (PledgePaymentID, error) {
	u, err := parse("pledge payment", raw)
	return PledgePaymentID(u), err
}

func ParseInstallmentID(raw string) (InstallmentID, error) {
	u, err := parse("installment", raw)
	return InstallmentID(u), err
}

func (id UserID) String() string            { return uuid.UUID(id).String() }
func (id SessionID) String() string         { return uuid.UUID(id).String() }
func (id DelegateID) String() string        { return uuid.UUID(id).String() }
func (id PendingDelegateID) String() string { return uuid.UUID(id).String() }
func (id EventID) String() string           { return uuid.UUID(id).String() }
func (id TierID) String() string            { return uuid.UUID(id).String() }
func (id PaymentID) String() string         { return uuid.UUID(id).String() }
func (id PledgeID) String() string          { return uuid.UUID(id).String() }
func (id ScheduleID) String() string        { return uuid.UUID(id).String() }
func (id TransferID) String() string        { return uuid.UUID(id).String() }
func (id AccountID) String() string         { return uuid.UUID(id).String() }
func (id EntryID) String() string           { return uuid.UUID(id).String() }
func (id VoucherID) String() string         { return uuid.UUID(id).String() }
func (id BudgetID) String() string          { return uuid.UUID(id).String() }
func (id BudgetItemID) String() string      { return uuid.UUID(id).String() }
func (id ExpenditureID) String() string     { return uuid.UUID(id).String() }
func (id CheckInID) String() string         { return uuid.UUID(id).String() }
func (id AnnouncementID) String() string    { return uuid.UUID(id).String() }
func (id RequestID) String() string         { return uuid.UUID(id).String() }
func (id DiscrepancyID) String() string     { return uuid.UUID(id).String() }
func (id ReminderID) String() string        { return uuid.UUID(id).String() }
func (id PledgePaymentID) String() string   { return uuid.UUID(id).String() }
func (id InstallmentID) String() string     { return uuid.UUID(id).String() }

func (id UserID) IsZero() bool            { return uuid.UUID(id) == uuid.Nil }
func (id SessionID) IsZero() bool         { return uuid.UUID(id) == uuid.Nil }
func (id DelegateID) IsZero() bool        { return uuid.UUID(id) == uuid.Nil }
func (id PendingDelegateID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }
func (id EventID) IsZero() bool           { return uuid.UUID(id) == uuid.Nil }
func (id TierID) IsZero() bool            { return uuid.UUID(id) == uuid.Nil }
func (id PaymentID) IsZero() bool         { return uuid.UUID(id) == uuid.Nil }
func (id PledgeID) IsZero() bool          { return uuid.UUID(id) == uuid.Nil }
func (id ScheduleID) IsZero() bool        { return uuid.UUID(id) == uuid.Nil }
func (id TransferID) IsZero() bool        { return uuid.UUID(id) == uuid.Nil }
func (id AccountID) IsZero() bool         { return uuid.UUID(id) == uuid.Nil }
func (id EntryID) IsZero() bool           { return uuid.UUID(id) == uuid.Nil }
func (id VoucherID) IsZero() bool         { return uuid.UUID(id) == uuid.Nil }
func (id BudgetID) IsZero() bool          { return uuid.UUID(id) == uuid.Nil }
func (id BudgetItemID) IsZero() bool      { return uuid.UUID(id) == uuid.Nil }
func (id ExpenditureID) IsZero() bool     { return uuid.UUID(id) == uuid.Nil }
func (id CheckInID) IsZero() bool         { return uuid.UUID(id) == uuid.Nil }
func (id AnnouncementID) IsZero() bool    { return uuid.UUID(id) == uuid.Nil }
func (id RequestID) IsZero() bool         { return uuid.UUID(id) == uuid.Nil }
func (id DiscrepancyID) IsZero() bool     { return uuid.UUID(id) == uuid.Nil }
func (id ReminderID) IsZero() bool        { return uuid.UUID(id) == uuid.Nil }
func (id PledgePaymentID) IsZero() bool   { return uuid.UUID(id) == uuid.Nil }
func (id InstallmentID) IsZero() bool     { return uuid.UUID(id) == uuid.Nil }

// Text marshaling keeps the IDs as canonical UUID strings in JSON bodies
// and map keys.

func (id UserID) MarshalText() ([]byte, error)            { return []byte(id.String()), nil }
func (id SessionID) MarshalText() ([]byte, error)         { return []byte(id.String()), nil }
func (id DelegateID) MarshalText() ([]byte, error)        { return []byte(id.String()), nil }
func (id PendingDelegateID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id EventID) MarshalText() ([]byte, error)           { return []byte(id.String()), nil }
func (id TierID) MarshalText() ([]byte, error)            { return []byte(id.String()), nil }
func (id PaymentID) MarshalText() ([]byte, error)         { return []byte(id.String()), nil }
func (id PledgeID) MarshalText() ([]byte, error)          { return []byte(id.String()), nil }
func (id ScheduleID) MarshalText() ([]byte, error)        { return []byte(id.String()), nil }
func (id TransferID) MarshalText() ([]byte, error)        { return []byte(id.String()), nil }
func (id AccountID) MarshalText() ([]byte, error)         { return []byte(id.String()), nil }
func (id EntryID) MarshalText() ([]byte, error)           { return []byte(id.String()), nil }
func (id VoucherID) MarshalText() ([]byte, error)         { return []byte(id.String()), nil }
func (id BudgetID) MarshalText() ([]byte, error)          { return []byte(id.String()), nil }
func (id BudgetItemID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }
func (id ExpenditureID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }
func (id CheckInID) MarshalText() ([]byte, error)         { return []byte(id.String()), nil }
func (id AnnouncementID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }
func (id RequestID) MarshalText() ([]byte, error)         { return []byte(id.String()), nil }
func (id DiscrepancyID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }
func (id ReminderID) MarshalText() ([]byte, error)        { return []byte(id.String()), nil }
func (id PledgePaymentID) MarshalText() ([]byte, error)   { return []byte(id.String()), nil }
func (id InstallmentID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }

func unmarshalText(dst *uuid.UUID, text []byte) error {
	u, err := uuid.Parse(string(text))
	if err != nil {
		return err
	}
	*dst = u
	return nil
}

func (id *UserID) UnmarshalText(text []byte) error { return unmarshalText((*uuid.UUID)(id), text) }
func (id *SessionID) UnmarshalText(text []byte) error {
	return unmarshalText((*uuid.UUID)(id), text)
}
func (id *DelegateID) UnmarshalText(text []byte) error {
	return unmarshalText((*uuid.UUID)(id), text)
}
func (id *PendingDelegateID) UnmarshalText(text []byte) error {
	return unmarshalText((*uuid.UUID)(id), text)
}
func (id *EventID) UnmarshalText(text []byte) error { return unmarshalText((*uuid.UUID)(id), text) }
func (id *TierID) UnmarshalText(text []byte) error  { return unmarshalText((*uuid.UUID)(id), text) }
func (id *PaymentID) UnmarshalText(text []byte) error {
	return unmarshalText((*uuid.UUID)(id), text)
}
func (id *PledgeID) UnmarshalText(text []byte) error { return unmarshalText((*uuid.UUID)(id), text) }
func (id *ScheduleID) UnmarshalText(text []byte) error {
	return unmarshalText((*uuid.UUID)(id), text)
}
func (id *TransferID) UnmarshalText(text []byte) error {
	return unmarshalText((*uuid.UUID)(id), text)
}
func (id *AccountID) UnmarshalText(text []byte) error {
	return unmarshalText((*uuid.UUID)(id), text)
}
func (id *EntryID) UnmarshalText(text []byte) error { return unmarshalText((*uuid.UUID)(id), text) }
func (id *VoucherID) UnmarshalText(text []byte) error {
	return unmarshalText((*uuid.UUID)(id), text)
}
func (id *BudgetID) UnmarshalText(text []byte) error { return unmarshalText((*uuid.UUID)(id), text) }
func (id *BudgetItemID) UnmarshalText(text []byte) error {
	return unmarshalText((*uuid.UUID)(id), text)
}
func (id *ExpenditureID) UnmarshalText(text []byte) error {
	return unmarshalText((*uuid.UUID)(id), text)
}
func (id *CheckInID) UnmarshalText(text []byte) error {
	return unmarshalText((*uuid.UUID)(id), text)
}
func (id *AnnouncementID) UnmarshalText(text []byte) error {
	return unmarshalText((*uuid.UUID)(id), text)
}
func (id *RequestID) UnmarshalText(text []byte) error {
	return unmarshalText((*uuid.UUID)(id), text)
}
func (id *DiscrepancyID) UnmarshalText(text []byte) error {
	return unmarshalText((*uuid.UUID)(id), text)
}
func (id *ReminderID) UnmarshalText(text []byte) error {
	return unmarshalText((*uuid.UUID)(id), text)
}
func (id *PledgePaymentID) UnmarshalText(text []byte) error {
	return unmarshalText((*uuid.UUID)(id), text)
}
func (id *InstallmentID) UnmarshalText(text []byte) error {
	return unmarshalText((*uuid.UUID)(id), text)
}
