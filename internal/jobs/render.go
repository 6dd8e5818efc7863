package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"expensetracker/internal/core"
	"expensetracker/internal/export"
)

// Source supplies the current expense collection.
type Source interface {
	List(ctx context.Context) []core.Expense
}

// render builds the job's payload from the live collection. Template jobs are
// always JSON.
func render(j Job, expenses []core.Expense, now time.Time) (export.Payload, error) {
	if j.Template == "" {
		return export.FilteredExport(expenses, j.Options, now)
	}
	data, err := export.TemplateExport(j.Template, export.Filter(expenses, j.Options), now)
	if err != nil {
		return export.Payload{}, err
	}
	body, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return export.Payload{}, fmt.Errorf("encode template %s: %w", j.Template, err)
	}
	opts := export.Options{Filename: j.Options.Filename, Format: export.JSON}
	if opts.Filename == "" {
		opts.Filename = j.Template + "-" + now.Format("2006-01-02")
	}
	return export.Payload{
		Filename:    export.Filename(opts, now),
		ContentType: export.JSON.ContentType(),
		Body:        body,
	}, nil
}
