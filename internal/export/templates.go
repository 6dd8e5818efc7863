package export

import (
	"fmt"
	"sort"
	"time"

	"expensetracker/internal/core"
	"expensetracker/internal/report"
)

type TemplateID string

const (
	MonthlySummary   TemplateID = "monthly-summary"
	CategoryAnalysis TemplateID = "category-analysis"
	BudgetTracker    TemplateID = "budget-tracker"
	ExpenseDetail    TemplateID = "expense-detail"
	TaxReport        TemplateID = "tax-report"
)

type Template struct {
	ID          TemplateID `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
}

var templates = []Template{
	{MonthlySummary, "Monthly Summary", "Totals, transaction counts and top category per month"},
	{CategoryAnalysis, "Category Analysis", "Spending and average transaction per category"},
	{BudgetTracker, "Budget Tracker", "Spending against the monthly budget of each category"},
	{ExpenseDetail, "Expense Detail", "Every record with its metadata"},
	{TaxReport, "Tax Report", "Records tagged with a tax category"},
}

// Monthly budgets used by the budget tracker template.
var categoryBudgets = map[core.Category]core.Money{
	core.Food:           {Cents: 50000},
	core.Transportation: {Cents: 20000},
	core.Entertainment:  {Cents: 15000},
	core.Shopping:       {Cents: 30000},
	core.Bills:          {Cents: 80000},
	core.Other:          {Cents: 10000},
}

var taxCategories = map[core.Category]string{
	core.Food:           "Meals & Entertainment",
	core.Transportation: "Travel & Transportation",
	core.Entertainment:  "Meals & Entertainment",
	core.Shopping:       "Office Supplies",
	core.Bills:          "Utilities",
	core.Other:          "Miscellaneous",
}

type (
	MonthSummaryRow struct {
		Month            string        `json:"month"`
		TotalSpent       core.Money    `json:"totalSpent"`
		TransactionCount int           `json:"transactionCount"`
		TopCategory      core.Category `json:"topCategory"`
	}

	CategoryAnalysisRow struct {
		Category           core.Category `json:"category"`
		TotalSpent         core.Money    `json:"totalSpent"`
		AverageTransaction core.Money    `json:"averageTransaction"`
		TransactionCount   int           `json:"transactionCount"`
		Percentage         float64       `json:"percentage"`
	}

	BudgetRow struct {
		Category         core.Category `json:"category"`
		BudgetAmount     core.Money    `json:"budgetAmount"`
		SpentAmount      core.Money    `json:"spentAmount"`
		RemainingBudget  core.Money    `json:"remainingBudget"`
		PercentageUsed   float64       `json:"percentageUsed"`
		DaysLeftInPeriod int           `json:"daysLeftInPeriod"`
		IsOverBudget     bool          `json:"isOverBudget"`
	}

	TaxRow struct {
		core.Expense
		TaxCategory string `json:"taxCategory"`
	}
)

// Templates lists the available report templates.
func Templates() []Template {
	out := make([]Template, len(templates))
	copy(out, templates)
	return out
}

// LookupTemplate returns ErrUnknownTemplate for ids not in Templates.
func LookupTemplate(id string) (Template, error) {
	for _, t := range templates {
		if string(t.ID) == id {
			return t, nil
		}
	}
	return Template{}, fmt.Errorf("%w: %q", ErrUnknownTemplate, id)
}

// TemplateExport builds the JSON-ready rows of a template. The budget
// tracker looks at now's month only.
func TemplateExport(id string, expenses []core.Expense, now time.Time) (any, error) {
	t, err := LookupTemplate(id)
	if err != nil {
		return nil, err
	}
	switch t.ID {
	case MonthlySummary:
		return monthlySummary(expenses), nil
	case CategoryAnalysis:
		return categoryAnalysis(expenses), nil
	case BudgetTracker:
		return budgetTracker(report.MonthlyExpenses(expenses, now), now), nil
	case ExpenseDetail:
		out := make([]core.Expense, len(expenses))
		copy(out, expenses)
		return out, nil
	case TaxReport:
		out := make([]TaxRow, 0, len(expenses))
		for _, e := range expenses {
			out = append(out, TaxRow{Expense: e, TaxCategory: taxCategories[e.Category]})
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownTemplate, id)
}

func monthlySummary(expenses []core.Expense) []MonthSummaryRow {
	byMonth := make(map[string][]core.Expense)
	for _, e := range expenses {
		k := e.Date.Format("2006-01")
		byMonth[k] = append(byMonth[k], e)
	}
	out := make([]MonthSummaryRow, 0, len(byMonth))
	for month, es := range byMonth {
		row := MonthSummaryRow{
			Month:            month,
			TotalSpent:       report.TotalAmount(es),
			TransactionCount: len(es),
		}
		if cats := report.CategorySummary(es); len(cats) > 0 {
			row.TopCategory = cats[0].Category
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

func categoryAnalysis(expenses []core.Expense) []CategoryAnalysisRow {
	cats := report.CategorySummary(expenses)
	out := make([]CategoryAnalysisRow, 0, len(cats))
	for _, c := range cats {
		out = append(out, CategoryAnalysisRow{
			Category:           c.Category,
			TotalSpent:         c.Amount,
			AverageTransaction: core.FromFloat(c.Amount.Float64() / float64(c.Count)),
			TransactionCount:   c.Count,
			Percentage:         c.Percentage,
		})
	}
	return out
}

func budgetTracker(month []core.Expense, now time.Time) []BudgetRow {
	spent := make(map[core.Category]core.Money)
	for _, e := range month {
		spent[e.Category] = spent[e.Category].Add(e.Amount)
	}
	y, m, d := now.Date()
	lastDay := time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC).Day()

	out := make([]BudgetRow, 0, len(categoryBudgets))
	for _, c := range core.Categories() {
		budget := categoryBudgets[c]
		s := spent[c]
		out = append(out, BudgetRow{
			Category:         c,
			BudgetAmount:     budget,
			SpentAmount:      s,
			RemainingBudget:  core.Money{Cents: budget.Cents - s.Cents},
			PercentageUsed:   float64(s.Cents) / float64(budget.Cents) * 100,
			DaysLeftInPeriod: lastDay - d,
			IsOverBudget:     s.Cents > budget.Cents,
		})
	}
	return out
}
