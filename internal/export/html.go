package export

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"expensetracker/internal/core"
)

var htmlReport = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Expense Report</title>
<style>
body { font-family: Arial, sans-serif; margin: 20px; }
table { width: 100%; border-collapse: collapse; margin-top: 20px; }
th, td { border: 1px solid #ddd; padding: 8px; text-align: left; }
th { background-color: #f2f2f2; }
.amount { text-align: right; }
</style>
</head>
<body>
<h1>Expense Report</h1>
<p>Generated on {{.Generated}}</p>
<p>Total records: {{len .Rows}} &middot; Total amount: {{.Total}}</p>
<table>
<thead>
<tr><th>Date</th><th>Amount</th><th>Category</th><th>Description</th>{{if .Metadata}}<th>ID</th><th>Created At</th><th>Updated At</th>{{end}}</tr>
</thead>
<tbody>
{{- range .Rows}}
<tr><td>{{.Date}}</td><td class="amount">{{.Amount}}</td><td>{{.Category}}</td><td>{{.Description}}</td>{{if $.Metadata}}<td>{{.ID}}</td><td>{{.CreatedAt}}</td><td>{{.UpdatedAt}}</td>{{end}}</tr>
{{- end}}
</tbody>
</table>
</body>
</html>
`))

type htmlRow struct {
	Date        string
	Amount      string
	Category    string
	Description string
	ID          string
	CreatedAt   string
	UpdatedAt   string
}

// renderHTML writes a printable table. Generated is the latest UpdatedAt so
// the same input always renders the same bytes.
func renderHTML(expenses []core.Expense, includeMetadata bool) ([]byte, error) {
	var (
		total  core.Money
		latest time.Time
	)
	rows := make([]htmlRow, 0, len(expenses))
	for _, e := range expenses {
		total = total.Add(e.Amount)
		if e.UpdatedAt.After(latest) {
			latest = e.UpdatedAt
		}
		rows = append(rows, htmlRow{
			Date:        e.Date.String(),
			Amount:      e.Amount.Currency(),
			Category:    string(e.Category),
			Description: e.Description,
			ID:          e.ID,
			CreatedAt:   e.CreatedAt.UTC().Format(time.RFC3339),
			UpdatedAt:   e.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	generated := "-"
	if !latest.IsZero() {
		generated = latest.UTC().Format("Jan 2, 2006")
	}

	var b bytes.Buffer
	err := htmlReport.Execute(&b, struct {
		Generated string
		Total     string
		Metadata  bool
		Rows      []htmlRow
	}{generated, total.Currency(), includeMetadata, rows})
	if err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	return b.Bytes(), nil
}
