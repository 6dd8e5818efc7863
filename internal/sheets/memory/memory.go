package memory

import (
	"context"
	"fmt"
	"sync"

	ports "expensetracker/internal/sheets"
)

// Sheet is an in-process spreadsheet. It stands in for Google Sheets when no
// spreadsheet is configured.
type Sheet struct {
	mu     sync.Mutex
	name   string
	header []any
	rows   [][]any
}

var _ ports.RowAppender = (*Sheet)(nil)

func New(name string) *Sheet {
	if name == "" {
		name = "Expenses"
	}
	return &Sheet{name: name, header: append([]any(nil), ports.Header...)}
}

// AppendRows stores copies of rows and returns an A1 reference to them.
func (s *Sheet) AppendRows(_ context.Context, rows [][]any) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(rows) == 0 {
		return fmt.Sprintf("%s!A%d", s.name, len(s.rows)+2), nil
	}
	first := len(s.rows) + 2 // row 1 is the header
	for _, r := range rows {
		s.rows = append(s.rows, append([]any(nil), r...))
	}
	last := len(s.rows) + 1
	return fmt.Sprintf("%s!A%d:%s%d", s.name, first, lastColumn(rows), last), nil
}

// Rows returns the header followed by every appended row.
func (s *Sheet) Rows() [][]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]any, 0, len(s.rows)+1)
	out = append(out, append([]any(nil), s.header...))
	for _, r := range s.rows {
		out = append(out, append([]any(nil), r...))
	}
	return out
}

func lastColumn(rows [][]any) string {
	width := 1
	for _, r := range rows {
		if len(r) > width {
			width = len(r)
		}
	}
	if width > 26 {
		width = 26
	}
	return string(rune('A' + width - 1))
}
