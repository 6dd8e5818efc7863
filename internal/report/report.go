// Package report computes dashboard statistics, category breakdowns and
// monthly trends from a list of expenses.
//
// Every function is pure: inputs are never mutated and results are freshly
// allocated slices.
package report

import (
	"sort"
	"time"

	"expensetracker/internal/core"
)

const (
	// DefaultTrendMonths is used when the caller does not ask for a window.
	DefaultTrendMonths = 6
	// RecentLimit caps Dashboard.RecentExpenses.
	RecentLimit = 5

	monthLabelLayout = "Jan 2006"
)

type (
	CategoryTotal struct {
		Category   core.Category `json:"category"`
		Amount     core.Money    `json:"amount"`
		Count      int           `json:"count"`
		Percentage float64       `json:"percentage"`
	}

	MonthTotal struct {
		Month       string     `json:"month"`
		Year        int        `json:"year"`
		MonthNumber int        `json:"monthNumber"`
		Amount      core.Money `json:"amount"`
	}

	DashboardStats struct {
		TotalExpenses   core.Money      `json:"totalExpenses"`
		MonthlyExpenses core.Money      `json:"monthlyExpenses"`
		CategorySummary []CategoryTotal `json:"categorySummary"`
		RecentExpenses  []core.Expense  `json:"recentExpenses"`
	}
)

// TotalAmount sums every amount in cents.
func TotalAmount(expenses []core.Expense) core.Money {
	var total core.Money
	for _, e := range expenses {
		total = total.Add(e.Amount)
	}
	return total
}

// MonthlyExpenses keeps the expenses dated in ref's calendar month.
func MonthlyExpenses(expenses []core.Expense, ref time.Time) []core.Expense {
	y, m, _ := ref.Date()
	out := make([]core.Expense, 0, len(expenses))
	for _, e := range expenses {
		if e.Date.Year() == y && e.Date.Month() == m {
			out = append(out, e)
		}
	}
	return out
}

// CategorySummary groups by category, largest amount first. Categories with
// no expenses are omitted.
func CategorySummary(expenses []core.Expense) []CategoryTotal {
	total := TotalAmount(expenses)
	byCat := make(map[core.Category]*CategoryTotal)
	for _, e := range expenses {
		ct, ok := byCat[e.Category]
		if !ok {
			ct = &CategoryTotal{Category: e.Category}
			byCat[e.Category] = ct
		}
		ct.Amount = ct.Amount.Add(e.Amount)
		ct.Count++
	}

	out := make([]CategoryTotal, 0, len(byCat))
	for _, ct := range byCat {
		if total.Cents > 0 {
			ct.Percentage = float64(ct.Amount.Cents) / float64(total.Cents) * 100
		}
		out = append(out, *ct)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount.Cents != out[j].Amount.Cents {
			return out[i].Amount.Cents > out[j].Amount.Cents
		}
		return out[i].Category.Rank() < out[j].Category.Rank()
	})
	return out
}

// MonthlyTrend returns one entry per calendar month, oldest first, ending with
// now's month. Months without expenses are present with a zero amount.
func MonthlyTrend(expenses []core.Expense, months int, now time.Time) []MonthTotal {
	if months <= 0 {
		return []MonthTotal{}
	}
	y, m, _ := now.Date()
	out := make([]MonthTotal, 0, months)
	for i := months - 1; i >= 0; i-- {
		first := time.Date(y, m-time.Month(i), 1, 0, 0, 0, 0, time.UTC)
		out = append(out, MonthTotal{
			Month:       first.Format(monthLabelLayout),
			Year:        first.Year(),
			MonthNumber: int(first.Month()),
			Amount:      TotalAmount(MonthlyExpenses(expenses, first)),
		})
	}
	return out
}

// Dashboard assembles the overview shown on the landing page.
func Dashboard(expenses []core.Expense, now time.Time) DashboardStats {
	return DashboardStats{
		TotalExpenses:   TotalAmount(expenses),
		MonthlyExpenses: TotalAmount(MonthlyExpenses(expenses, now)),
		CategorySummary: CategorySummary(expenses),
		RecentExpenses:  Recent(expenses, RecentLimit),
	}
}

// Recent returns up to n expenses, latest date first. Expenses on the same
// day keep their input order.
func Recent(expenses []core.Expense, n int) []core.Expense {
	sorted := make([]core.Expense, len(expenses))
	copy(sorted, expenses)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.After(sorted[j].Date)
	})
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
