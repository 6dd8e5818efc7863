package jobs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"expensetracker/internal/core"
	"expensetracker/internal/export"
	"expensetracker/internal/sheets"
)

const (
	DestinationFile   = "file"
	DestinationSheets = "sheets"
)

// Delivery is what a destination receives: the rendered payload and the
// working set it was rendered from.
type Delivery struct {
	Job      Job
	Payload  export.Payload
	Expenses []core.Expense
}

// Destination stores a finished export and returns a reference to it.
type Destination interface {
	Deliver(ctx context.Context, d Delivery) (artifact string, err error)
}

// DefaultDestination is used when a request names none.
func DefaultDestination(m Method) string {
	if m == MethodCloudSync {
		return DestinationSheets
	}
	return DestinationFile
}

// FileDestination writes payloads under Dir as <job id>-<filename>.
type FileDestination struct {
	Dir string
}

func (d FileDestination) Deliver(_ context.Context, in Delivery) (string, error) {
	if err := os.MkdirAll(d.Dir, 0755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}
	path := filepath.Join(d.Dir, in.Job.ID+"-"+in.Payload.Filename)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, in.Payload.Body, 0644); err != nil {
		return "", fmt.Errorf("write export file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("move export file: %w", err)
	}
	return path, nil
}

// SheetsDestination appends one row per expense to a spreadsheet.
type SheetsDestination struct {
	Rows sheets.RowAppender
}

func (d SheetsDestination) Deliver(ctx context.Context, in Delivery) (string, error) {
	if d.Rows == nil {
		return "", errors.New("sheets client not configured")
	}
	rows := make([][]any, 0, len(in.Expenses))
	for _, e := range in.Expenses {
		rows = append(rows, sheets.ExpenseRow(e))
	}
	ref, err := d.Rows.AppendRows(ctx, rows)
	if err != nil {
		return "", fmt.Errorf("append rows: %w", err)
	}
	return ref, nil
}
