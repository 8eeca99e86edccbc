package budget

import (
	"strings"
	"time"

	id "kayo/pkg/domain"
)

// Budget statuses.
const (
	BudgetDraft  = "draft"
	BudgetActive = "active"
	BudgetClosed = "closed"
)

// Item statuses.
const (
	ItemPending    = "pending"
	ItemInProgress = "in_progress"
	ItemCompleted  = "completed"
	ItemCancelled  = "cancelled"
)

// Expenditure statuses.
const (
	ExpenditurePending  = "pending"
	ExpenditureApproved = "approved"
	ExpenditureRejected = "rejected"
)

const CategoryOther = "other"

// Categories lists the recognised budget item categories.
var Categories = []string{
	"venue",
	"transport",
	"catering",
	"accommodation",
	"materials",
	"equipment",
	"personnel",
	"publicity",
	"administration",
	"contingency",
	CategoryOther,
}

func ValidCategory(c string) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// categoryKeywords drives auto-categorization of imported items.
var categoryKeywords = map[string][]string{
	"venue":          {"venue", "hall", "grounds", "space", "facility", "room", "tent", "chairs", "tables", "decoration"},
	"transport":      {"transport", "fuel", "vehicle", "bus", "travel", "logistics", "driver", "car hire"},
	"catering":       {"food", "catering", "meals", "lunch", "breakfast", "dinner", "tea", "water", "refreshments", "snacks"},
	"accommodation":  {"accommodation", "hotel", "lodging", "boarding", "guest house"},
	"materials":      {"materials", "supplies", "stationery", "printing", "badges", "certificates", "banners", "posters", "t-shirts"},
	"equipment":      {"equipment", "sound", "pa", "projector", "screen", "generator", "lighting", "rental"},
	"personnel":      {"honoraria", "allowance", "speaker", "facilitator", "volunteer", "staff", "security", "personnel"},
	"publicity":      {"publicity", "marketing", "advertising", "social media", "promotion", "media"},
	"administration": {"administration", "admin", "communication", "airtime", "internet", "coordination"},
	"contingency":    {"contingency", "miscellaneous", "emergency", "unforeseen"},
}

// Categorize guesses a category for an item from its name and
// description. Falls back to "other" when no keyword matches.
func Categorize(name, description string) string {
	text := strings.ToLower(name + " " + description)
	for _, category := range Categories {
		for _, keyword := range categoryKeywords[category] {
			if strings.Contains(text, keyword) {
				return category
			}
		}
	}
	return CategoryOther
}

// Budget is a spending plan, usually tied to an event. Items carry the
// line detail; totals are denormalized sums over the items.
type Budget struct {
	ID                 id.BudgetID `json:"id"`
	Name               string      `json:"name"`
	Description        string      `json:"description,omitempty"`
	EventID            id.EventID  `json:"event_id,omitempty"`
	TotalBudgetedCents int64       `json:"total_budgeted_cents"`
	TotalSpentCents    int64       `json:"total_spent_cents"`
	Status             string      `json:"status"`
	CreatedBy          id.UserID   `json:"created_by"`
	ApprovedBy         id.UserID   `json:"approved_by,omitempty"`
	ApprovedAt         *time.Time  `json:"approved_at,omitempty"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

// RemainingCents is the unspent portion of the plan.
func (b Budget) RemainingCents() int64 {
	return b.TotalBudgetedCents - b.TotalSpentCents
}

// UtilizationPercent reports spend against plan, 0 when nothing is
// budgeted.
func (b Budget) UtilizationPercent() float64 {
	if b.TotalBudgetedCents == 0 {
		return 0
	}
	return float64(b.TotalSpentCents) / float64(b.TotalBudgetedCents) * 100
}

// Item is one budget line. ActualSpentCents tracks approved
// expenditures only.
type Item struct {
	ID               id.BudgetItemID `json:"id"`
	BudgetID         id.BudgetID     `json:"budget_id"`
	ItemNumber       int             `json:"item_number"`
	Category         string          `json:"category"`
	Name             string          `json:"name"`
	Description      string          `json:"description,omitempty"`
	Quantity         float64         `json:"quantity"`
	Unit             string          `json:"unit,omitempty"`
	UnitCostCents    int64           `json:"unit_cost_cents"`
	BudgetedCents    int64           `json:"budgeted_cents"`
	ActualSpentCents int64           `json:"actual_spent_cents"`
	Status           string          `json:"status"`
	Notes            string          `json:"notes,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func (i Item) VarianceCents() int64 {
	return i.BudgetedCents - i.ActualSpentCents
}

func (i Item) UtilizationPercent() float64 {
	if i.BudgetedCents == 0 {
		return 0
	}
	return float64(i.ActualSpentCents) / float64(i.BudgetedCents) * 100
}

// Expenditure records money spent against a budget item. Only approved
// expenditures count toward item and budget totals.
type Expenditure struct {
	ID              id.ExpenditureID `json:"id"`
	ItemID          id.BudgetItemID  `json:"item_id"`
	SpentOn         time.Time        `json:"spent_on"`
	Description     string           `json:"description"`
	AmountCents     int64            `json:"amount_cents"`
	Method          string           `json:"method,omitempty"`
	Reference       string           `json:"reference,omitempty"`
	Vendor          string           `json:"vendor,omitempty"`
	Status          string           `json:"status"`
	ApprovedBy      id.UserID        `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time       `json:"approved_at,omitempty"`
	RejectionReason string           `json:"rejection_reason,omitempty"`
	RecordedBy      id.UserID        `json:"recorded_by"`
	CreatedAt       time.Time        `json:"created_at"`
}

type CreateBudgetRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	EventID     string `json:"event_id"`
}

type UpdateBudgetRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	EventID     string `json:"event_id"`
}

// ImportBudgetRequest carries a CSV document to parse into line items.
type ImportBudgetRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	EventID     string `json:"event_id"`
	CSV         string `json:"csv"`
}

type ItemRequest struct {
	Category      string  `json:"category"`
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	Quantity      float64 `json:"quantity"`
	Unit          string  `json:"unit"`
	UnitCostCents int64   `json:"unit_cost_cents"`
	BudgetedCents int64   `json:"budgeted_cents"`
	Notes         string  `json:"notes"`
}

type UpdateItemStatusRequest struct {
	Status string `json:"status"`
}

type RecordExpenditureRequest struct {
	SpentOn     string `json:"spent_on"`
	Description string `json:"description"`
	AmountCents int64  `json:"amount_cents"`
	Method      string `json:"method"`
	Reference   string `json:"reference"`
	Vendor      string `json:"vendor"`
}

type RejectExpenditureRequest struct {
	Reason string `json:"reason"`
}

// BudgetDetail is a budget with its line items.
type BudgetDetail struct {
	Budget Budget `json:"budget"`
	Items  []Item `json:"items"`
}

// ItemDetail is an item with its expenditure history.
type ItemDetail struct {
	Item         Item          `json:"item"`
	Expenditures []Expenditure `json:"expenditures"`
}

// CategoryBreakdown aggregates items of one category.
type CategoryBreakdown struct {
	Category      string `json:"category"`
	Items         int    `json:"items"`
	BudgetedCents int64  `json:"budgeted_cents"`
	SpentCents    int64  `json:"spent_cents"`
}

// Report summarizes budget implementation progress.
type Report struct {
	Budget             Budget              `json:"budget"`
	TotalItems         int                 `json:"total_items"`
	PendingItems       int                 `json:"pending_items"`
	InProgressItems    int                 `json:"in_progress_items"`
	CompletedItems     int                 `json:"completed_items"`
	RemainingCents     int64               `json:"remaining_cents"`
	UtilizationPercent float64             `json:"utilization_percent"`
	Categories         []CategoryBreakdown `json:"categories"`
}
