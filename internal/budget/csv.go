package budget

import (
	"encoding/csv"
	"io"
	"math"
	"strconv"
	"strings"

	dErrors "kayo/pkg/domain-errors"
)

// ParsedItem is one line item extracted from an uploaded budget
// document, before it is attached to a budget.
type ParsedItem struct {
	ItemNumber    int
	Category      string
	Name          string
	Description   string
	Quantity      float64
	Unit          string
	UnitCostCents int64
	BudgetedCents int64
}

// ParseCSV extracts budget line items from a CSV document. The first
// row is treated as headers and columns are matched by keyword, so
// treasurer spreadsheets with arbitrary column orders still import.
// Rows without a name or a positive amount are skipped.
func ParseCSV(r io.Reader) ([]ParsedItem, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "malformed csv")
	}
	if len(rows) < 2 {
		return nil, dErrors.New(dErrors.CodeValidation, "csv has no data rows")
	}

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.ToLower(strings.TrimSpace(h))
	}

	var items []ParsedItem
	for rowNum, row := range rows[1:] {
		if item, ok := parseRow(row, headers, rowNum+1); ok {
			items = append(items, item)
		}
	}
	return items, nil
}

func parseRow(row, headers []string, rowNum int) (ParsedItem, bool) {
	item := ParsedItem{ItemNumber: rowNum, Quantity: 1, Category: CategoryOther}

	for i, header := range headers {
		if i >= len(row) {
			break
		}
		value := strings.TrimSpace(row[i])
		if value == "" {
			continue
		}

		switch {
		case headerMatches(header, "item", "name", "description", "particular", "activity"):
			if item.Name == "" {
				item.Name = value
			} else {
				item.Description = value
			}
		case headerMatches(header, "qty", "quantity", "no", "number", "count"):
			if q, err := strconv.ParseFloat(value, 64); err == nil {
				item.Quantity = q
			}
		case headerMatches(header, "unit", "uom"):
			item.Unit = value
		case headerMatches(header, "rate", "unit cost", "unit price", "price", "cost per"):
			if cents, ok := parseMoney(value); ok {
				item.UnitCostCents = cents
			}
		case headerMatches(header, "total", "amount", "budget", "cost", "value"):
			if cents, ok := parseMoney(value); ok {
				item.BudgetedCents = cents
			}
		case headerMatches(header, "category", "type", "class"):
			item.Category = strings.ToLower(value)
		}
	}

	if item.BudgetedCents == 0 && item.Quantity > 0 && item.UnitCostCents > 0 {
		item.BudgetedCents = int64(math.Round(item.Quantity * float64(item.UnitCostCents)))
	}
	if !ValidCategory(item.Category) {
		item.Category = CategoryOther
	}
	if item.Category == CategoryOther {
		item.Category = Categorize(item.Name, item.Description)
	}

	if item.Name == "" || item.BudgetedCents <= 0 {
		return ParsedItem{}, false
	}
	return item, true
}

func headerMatches(header string, keywords ...string) bool {
	for _, k := range keywords {
		if strings.Contains(header, k) {
			return true
		}
	}
	return false
}

// parseMoney reads a shilling amount from spreadsheet text, tolerating
// thousands separators and a currency prefix, and converts it to cents.
func parseMoney(raw string) (int64, bool) {
	cleaned := strings.NewReplacer(",", "", "KSh", "", "Ksh", "", "KES", "").Replace(raw)
	v, err := strconv.ParseFloat(strings.TrimSpace(cleaned), 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return int64(math.Round(v * 100)), true
}
