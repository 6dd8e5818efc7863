// Package export renders a filtered expense list as a downloadable payload.
//
// Supported formats are CSV, JSON, an HTML table standing in for "pdf", and an
// XLSX workbook. The working set is selected by an optional inclusive date
// range and an any-of category list; the same selection backs Summary so a
// summary and its payload always agree.
package export

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"expensetracker/internal/core"
)

type Format string

const (
	CSV  Format = "csv"
	JSON Format = "json"
	PDF  Format = "pdf" // printable HTML document, not a PDF binary
	XLSX Format = "xlsx"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported export format")
	ErrUnknownTemplate   = errors.New("unknown export template")
)

// UnsupportedFormatError names the rejected format.
type UnsupportedFormatError struct {
	Format string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("%s: %q", ErrUnsupportedFormat, e.Format)
}

func (e *UnsupportedFormatError) Is(target error) bool {
	return target == ErrUnsupportedFormat
}

// Formats lists the formats in the order they are offered to users.
func Formats() []Format {
	return []Format{CSV, JSON, PDF, XLSX}
}

// ParseFormat is case-insensitive. An empty string selects CSV.
func ParseFormat(s string) (Format, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return CSV, nil
	}
	for _, f := range Formats() {
		if string(f) == s {
			return f, nil
		}
	}
	return "", &UnsupportedFormatError{Format: s}
}

// Extension includes the leading dot.
func (f Format) Extension() string {
	switch f {
	case CSV:
		return ".csv"
	case JSON:
		return ".json"
	case PDF:
		return ".html"
	case XLSX:
		return ".xlsx"
	}
	return ""
}

func (f Format) ContentType() string {
	switch f {
	case CSV:
		return "text/csv; charset=utf-8"
	case JSON:
		return "application/json"
	case PDF:
		return "text/html; charset=utf-8"
	case XLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "application/octet-stream"
}

type (
	// DateRange bounds are inclusive; nil means unbounded.
	DateRange struct {
		Start *core.Date `json:"startDate"`
		End   *core.Date `json:"endDate"`
	}

	// Options selects and shapes an export. Categories is any-of; empty
	// selects every category.
	Options struct {
		Format          Format          `json:"format"`
		Filename        string          `json:"filename,omitempty"`
		DateRange       DateRange       `json:"dateRange"`
		Categories      []core.Category `json:"categories,omitempty"`
		IncludeMetadata bool            `json:"includeMetadata"`
	}

	Payload struct {
		Filename    string
		ContentType string
		Body        []byte
	}
)

// Filter selects the working set for opts in input order.
func Filter(expenses []core.Expense, opts Options) []core.Expense {
	out := make([]core.Expense, 0, len(expenses))
	for _, e := range expenses {
		if opts.DateRange.Start != nil && e.Date.Before(*opts.DateRange.Start) {
			continue
		}
		if opts.DateRange.End != nil && e.Date.After(*opts.DateRange.End) {
			continue
		}
		if len(opts.Categories) > 0 && !containsCategory(opts.Categories, e.Category) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func containsCategory(cats []core.Category, c core.Category) bool {
	for _, v := range cats {
		if v == c {
			return true
		}
	}
	return false
}

// Filename returns the caller's name, or expenses-YYYY-MM-DD, with the
// extension of the chosen format. Any known export extension the caller
// typed is replaced.
func Filename(opts Options, now time.Time) string {
	name := strings.TrimSpace(opts.Filename)
	name = strings.NewReplacer("/", "-", "\\", "-").Replace(name)
	ext := strings.ToLower(filepath.Ext(name))
	for _, f := range Formats() {
		if ext == f.Extension() || ext == "."+string(f) {
			name = strings.TrimSuffix(name, filepath.Ext(name))
			break
		}
	}
	if name == "" {
		name = "expenses-" + now.Format("2006-01-02")
	}
	return name + opts.Format.Extension()
}

// Render serialises expenses as-is, without filtering.
func Render(expenses []core.Expense, format Format, includeMetadata bool) ([]byte, error) {
	switch format {
	case CSV:
		return renderCSV(expenses, includeMetadata), nil
	case JSON:
		return renderJSON(expenses, includeMetadata)
	case PDF:
		return renderHTML(expenses, includeMetadata)
	case XLSX:
		return renderXLSX(expenses, includeMetadata)
	}
	return nil, &UnsupportedFormatError{Format: string(format)}
}

// FilteredExport filters expenses by opts and renders the result.
func FilteredExport(expenses []core.Expense, opts Options, now time.Time) (Payload, error) {
	if opts.Format == "" {
		opts.Format = CSV
	}
	body, err := Render(Filter(expenses, opts), opts.Format, opts.IncludeMetadata)
	if err != nil {
		return Payload{}, err
	}
	return Payload{
		Filename:    Filename(opts, now),
		ContentType: opts.Format.ContentType(),
		Body:        body,
	}, nil
}
