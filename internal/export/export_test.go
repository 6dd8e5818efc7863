package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"expensetracker/internal/core"
)

var created = time.Date(2025, 1, 2, 9, 30, 0, 0, time.UTC)

func expenses() []core.Expense {
	mk := func(id string, m, d int, cents int64, c core.Category, desc string) core.Expense {
		return core.Expense{
			ID:          id,
			Date:        core.NewDate(2025, m, d),
			Amount:      core.Money{Cents: cents},
			Category:    c,
			Description: desc,
			CreatedAt:   created,
			UpdatedAt:   created,
		}
	}
	return []core.Expense{
		mk("a", 1, 1, 4599, core.Food, `Lunch, "the good one"`),
		mk("b", 1, 31, 1250, core.Transportation, "Bus pass"),
		mk("c", 2, 1, 10000, core.Bills, "Internet <fiber>"),
	}
}

func january() Options {
	start, end := core.NewDate(2025, 1, 1), core.NewDate(2025, 1, 31)
	return Options{DateRange: DateRange{Start: &start, End: &end}}
}

func TestParseFormat(t *testing.T) {
	cases := []struct {
		in   string
		want Format
		ok   bool
	}{
		{"csv", CSV, true},
		{"JSON", JSON, true},
		{" pdf ", PDF, true},
		{"xlsx", XLSX, true},
		{"", CSV, true},
		{"xml", "", false},
	}
	for _, tc := range cases {
		got, err := ParseFormat(tc.in)
		if tc.ok && (err != nil || got != tc.want) {
			t.Fatalf("ParseFormat(%q) = %q, %v", tc.in, got, err)
		}
		if !tc.ok && !errors.Is(err, ErrUnsupportedFormat) {
			t.Fatalf("ParseFormat(%q) expected ErrUnsupportedFormat, got %v", tc.in, err)
		}
	}
}

func TestFilteredExportUnsupportedFormat(t *testing.T) {
	_, err := FilteredExport(expenses(), Options{Format: "xml"}, created)
	var uerr *UnsupportedFormatError
	if !errors.As(err, &uerr) || uerr.Format != "xml" {
		t.Fatalf("expected UnsupportedFormatError naming xml, got %v", err)
	}
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected errors.Is ErrUnsupportedFormat")
	}
	if !strings.Contains(err.Error(), `"xml"`) {
		t.Fatalf("error should name the format: %v", err)
	}
}

func TestFilter(t *testing.T) {
	got := Filter(expenses(), january())
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("january range should exclude Feb 1: %+v", got)
	}

	opts := Options{Categories: []core.Category{core.Bills, core.Food}}
	got = Filter(expenses(), opts)
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "c" {
		t.Fatalf("any-of categories: %+v", got)
	}
}

func TestCSV(t *testing.T) {
	opts := january()
	opts.Format = CSV
	p, err := FilteredExport(expenses(), opts, created)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	lines := strings.Split(string(p.Body), "\n")
	if lines[0] != "Date,Amount,Category,Description" {
		t.Fatalf("header = %q", lines[0])
	}
	if lines[1] != `2025-01-01,45.99,"Food","Lunch, ""the good one"""` {
		t.Fatalf("row = %q", lines[1])
	}
	if lines[2] != `2025-01-31,12.5,"Transportation","Bus pass"` {
		t.Fatalf("row = %q", lines[2])
	}

	// round trip through a standard CSV reader
	recs, err := csv.NewReader(bytes.NewReader(p.Body)).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	src := Filter(expenses(), opts)
	if len(recs) != len(src)+1 {
		t.Fatalf("rows = %d", len(recs))
	}
	for i, e := range src {
		r := recs[i+1]
		d, err := core.ParseDate(r[0])
		if err != nil || d != e.Date {
			t.Fatalf("row %d date %q", i, r[0])
		}
		cents, err := core.ParseDecimalToCents(r[1])
		if err != nil || cents != e.Amount.Cents {
			t.Fatalf("row %d amount %q", i, r[1])
		}
		if r[2] != string(e.Category) || r[3] != e.Description {
			t.Fatalf("row %d text fields %v", i, r)
		}
	}
}

func TestCSVMetadata(t *testing.T) {
	body, err := Render(expenses()[:1], CSV, true)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	recs, err := csv.NewReader(bytes.NewReader(body)).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if strings.Join(recs[0], ",") != "Date,Amount,Category,Description,ID,Created At,Updated At" {
		t.Fatalf("header = %v", recs[0])
	}
	if recs[1][4] != "a" || recs[1][5] != "2025-01-02T09:30:00Z" {
		t.Fatalf("metadata = %v", recs[1])
	}
}

func TestJSONMetadata(t *testing.T) {
	body, err := Render(expenses(), JSON, false)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	var rows []map[string]any
	if err := json.Unmarshal(body, &rows); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, r := range rows {
		for _, k := range []string{"id", "createdAt", "updatedAt"} {
			if _, ok := r[k]; ok {
				t.Fatalf("metadata key %q present without metadata", k)
			}
		}
	}
	if rows[0]["date"] != "2025-01-01" || rows[0]["amount"] != 45.99 {
		t.Fatalf("unexpected first row %v", rows[0])
	}

	body, err = Render(expenses(), JSON, true)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	var full []core.Expense
	if err := json.Unmarshal(body, &full); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := expenses()
	for i := range want {
		if full[i].ID != want[i].ID || full[i].Amount != want[i].Amount || !full[i].CreatedAt.Equal(want[i].CreatedAt) {
			t.Fatalf("round trip mismatch at %d: %+v", i, full[i])
		}
	}
}

func TestHTML(t *testing.T) {
	body, err := Render(expenses(), PDF, false)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	s := string(body)
	if !strings.HasPrefix(s, "<!DOCTYPE html>") {
		t.Fatalf("expected an html document")
	}
	if n := strings.Count(s, "<tr>"); n != 4 {
		t.Fatalf("expected header plus 3 rows, got %d", n)
	}
	if strings.Contains(s, "<fiber>") || !strings.Contains(s, "&lt;fiber&gt;") {
		t.Fatalf("description must be escaped")
	}
	if strings.Contains(s, "<th>ID</th>") {
		t.Fatalf("metadata columns without metadata")
	}

	body, _ = Render(expenses(), PDF, true)
	if !strings.Contains(string(body), "<th>ID</th>") {
		t.Fatalf("metadata columns missing")
	}
}

func TestXLSX(t *testing.T) {
	body, err := Render(expenses(), XLSX, true)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(body))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows("Expenses")
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(rows))
	}
	if rows[0][0] != "Date" || rows[0][4] != "ID" {
		t.Fatalf("header = %v", rows[0])
	}
	if rows[1][2] != "Food" || rows[1][4] != "a" {
		t.Fatalf("row = %v", rows[1])
	}
}

func TestFilename(t *testing.T) {
	now := time.Date(2025, 3, 9, 15, 0, 0, 0, time.UTC)
	cases := []struct {
		name   string
		format Format
		want   string
	}{
		{"", CSV, "expenses-2025-03-09.csv"},
		{"", PDF, "expenses-2025-03-09.html"},
		{"report", JSON, "report.json"},
		{"report.csv", JSON, "report.json"},
		{"report.pdf", PDF, "report.html"},
		{"q1.final", XLSX, "q1.final.xlsx"},
		{"../etc/passwd", CSV, "..-etc-passwd.csv"},
	}
	for _, tc := range cases {
		got := Filename(Options{Filename: tc.name, Format: tc.format}, now)
		if got != tc.want {
			t.Fatalf("Filename(%q, %s) = %q, want %q", tc.name, tc.format, got, tc.want)
		}
	}
}

func TestSummaryMatchesExport(t *testing.T) {
	opts := january()
	s := Summary(expenses(), opts)
	if s.RecordCount != 2 || s.TotalAmount.Cents != 5849 {
		t.Fatalf("summary = %+v", s)
	}
	if len(s.CategoryBreakdown) != len(core.Categories()) {
		t.Fatalf("breakdown should list every category: %v", s.CategoryBreakdown)
	}
	if s.CategoryBreakdown[core.Food].Cents != 4599 || s.CategoryBreakdown[core.Bills].Cents != 0 {
		t.Fatalf("breakdown = %v", s.CategoryBreakdown)
	}
	if s.DateRange.Start == nil || *s.DateRange.Start != core.NewDate(2025, 1, 1) {
		t.Fatalf("date range not echoed")
	}

	opts.Format = JSON
	p, _ := FilteredExport(expenses(), opts, created)
	var rows []map[string]any
	_ = json.Unmarshal(p.Body, &rows)
	if len(rows) != s.RecordCount {
		t.Fatalf("payload has %d rows, summary says %d", len(rows), s.RecordCount)
	}
}
