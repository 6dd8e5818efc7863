package export

import (
	"bytes"
	"strings"
	"time"

	"expensetracker/internal/core"
)

var (
	csvHeader         = []string{"Date", "Amount", "Category", "Description"}
	csvMetadataHeader = []string{"ID", "Created At", "Updated At"}
)

// renderCSV quotes every text field, which encoding/csv cannot be told to do.
// Dates and amounts are written bare.
func renderCSV(expenses []core.Expense, includeMetadata bool) []byte {
	var b bytes.Buffer
	header := csvHeader
	if includeMetadata {
		header = append(append([]string{}, csvHeader...), csvMetadataHeader...)
	}
	b.WriteString(strings.Join(header, ","))

	for _, e := range expenses {
		b.WriteByte('\n')
		fields := []string{
			e.Date.String(),
			e.Amount.String(),
			quoteCSV(string(e.Category)),
			quoteCSV(e.Description),
		}
		if includeMetadata {
			fields = append(fields,
				quoteCSV(e.ID),
				e.CreatedAt.UTC().Format(time.RFC3339),
				e.UpdatedAt.UTC().Format(time.RFC3339),
			)
		}
		b.WriteString(strings.Join(fields, ","))
	}
	return b.Bytes()
}

func quoteCSV(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
