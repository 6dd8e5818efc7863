package export

import "expensetracker/internal/core"

// ExportSummary describes what FilteredExport would produce for the same
// options.
type ExportSummary struct {
	RecordCount       int                          `json:"recordCount"`
	TotalAmount       core.Money                   `json:"totalAmount"`
	DateRange         DateRange                    `json:"dateRange"`
	CategoryBreakdown map[core.Category]core.Money `json:"categoryBreakdown"`
}

// Summary lists every category in the breakdown, zero when absent from the
// working set.
func Summary(expenses []core.Expense, opts Options) ExportSummary {
	set := Filter(expenses, opts)
	s := ExportSummary{
		RecordCount:       len(set),
		DateRange:         opts.DateRange,
		CategoryBreakdown: make(map[core.Category]core.Money, len(core.Categories())),
	}
	for _, c := range core.Categories() {
		s.CategoryBreakdown[c] = core.Money{}
	}
	for _, e := range set {
		s.TotalAmount = s.TotalAmount.Add(e.Amount)
		s.CategoryBreakdown[e.Category] = s.CategoryBreakdown[e.Category].Add(e.Amount)
	}
	return s
}
