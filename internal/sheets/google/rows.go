package google

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"ledgerly/internal/core"

	"google.golang.org/api/googleapi"
	gsheet "google.golang.org/api/sheets/v4"
)

// Column layout of a ledger sheet, A through H.
var header = []any{"ID", "Date", "Kind", "Description", "Amount", "Category", "Payment method", "User"}

const lastColumn = "H"

// rowFor renders a transaction as one sheet row. Rows are written RAW, so
// the amount goes out as a number and every other column as plain text.
func rowFor(tx core.Transaction) []any {
	kind := string(tx.Kind)
	if kind == "" {
		kind = string(core.KindExpense)
	}
	return []any{
		tx.ID,
		tx.Date,
		kind,
		tx.Description,
		tx.Amount.Round(2).InexactFloat64(),
		core.DisplayName(core.NormalizeCategory(tx.Category)),
		tx.PaymentMethod,
		tx.UserID,
	}
}

// findRow returns the 1-based row holding id in a column-A read, or 0.
func findRow(colA [][]any, id string) int {
	for i, row := range colA {
		if len(row) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[0])) == id {
			return i + 1
		}
	}
	return 0
}

// nextRow is the first row after the used range. An empty sheet gets the
// header on row 1, so data starts on row 2.
func nextRow(colA [][]any) int {
	if len(colA) == 0 {
		return 2
	}
	return len(colA) + 1
}

// sheetForDate picks the yearly sheet for a transaction date, falling back
// to the given year when the date does not parse.
func sheetForDate(base, date string, fallbackYear int) string {
	year := fallbackYear
	if d, err := core.ParseDate(date); err == nil {
		year = d.Year()
	}
	return yearPrefixedName(base, year)
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}

func rowRange(sheet string, row int) string {
	return fmt.Sprintf("'%s'!A%d:%s%d", sheet, row, lastColumn, row)
}

func sheetTitles(ss *gsheet.Spreadsheet) []string {
	if ss == nil {
		return nil
	}
	titles := make([]string, 0, len(ss.Sheets))
	for _, sh := range ss.Sheets {
		if sh != nil && sh.Properties != nil {
			titles = append(titles, sh.Properties.Title)
		}
	}
	return titles
}

func addSheetRequest(title string) *gsheet.BatchUpdateSpreadsheetRequest {
	return &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{
				Properties: &gsheet.SheetProperties{Title: title},
			},
		}},
	}
}

// alreadyExists reports the error Sheets returns when another writer added
// the same sheet first.
func alreadyExists(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) &&
		apiErr.Code == http.StatusBadRequest &&
		strings.Contains(strings.ToLower(apiErr.Message), "already exists")
}
