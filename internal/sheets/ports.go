package sheets

import (
	"context"

	"expensetracker/internal/core"
)

// Ports for outbound adapters.
type (
	// RowAppender appends rows after the last filled row of its sheet and
	// returns the written range.
	RowAppender interface {
		AppendRows(ctx context.Context, rows [][]any) (rowRef string, err error)
	}
)

// Header is the column layout written by ExpenseRow.
var Header = []any{"Date", "Amount", "Category", "Description", "ID"}

// ExpenseRow lays an expense out as a spreadsheet row.
func ExpenseRow(e core.Expense) []any {
	return []any{e.Date.String(), e.Amount.Float64(), string(e.Category), e.Description, e.ID}
}
