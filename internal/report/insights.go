package report

import (
	"fmt"
	"math"
	"time"

	"expensetracker/internal/core"
)

// Thresholds that trigger the spending tips.
const (
	tipMonthlyIncreasePct = 10
	tipTopCategoryPct     = 50
	tipAverageAmount      = 100
	tipFrequencyPct       = 80
)

// Insights compares this month with the previous one and derives spending
// habits over the whole history.
type Insights struct {
	CurrentMonth         core.Money    `json:"currentMonth"`
	PreviousMonth        core.Money    `json:"previousMonth"`
	MonthlyChangePct     float64       `json:"monthlyChangePct"`
	AverageTransaction   core.Money    `json:"averageTransaction"`
	TransactionCount     int           `json:"transactionCount"`
	Highest              *core.Expense `json:"highest,omitempty"`
	DaysWithExpenses     int           `json:"daysWithExpenses"`
	TotalDays            int           `json:"totalDays"`
	SpendingFrequencyPct float64       `json:"spendingFrequencyPct"`
	Tips                 []string      `json:"tips"`
}

func ComputeInsights(expenses []core.Expense, now time.Time) Insights {
	y, m, _ := now.Date()
	prev := time.Date(y, m-1, 1, 0, 0, 0, 0, time.UTC)

	in := Insights{
		CurrentMonth:     TotalAmount(MonthlyExpenses(expenses, now)),
		PreviousMonth:    TotalAmount(MonthlyExpenses(expenses, prev)),
		TransactionCount: len(expenses),
	}
	if in.PreviousMonth.Cents > 0 {
		in.MonthlyChangePct = float64(in.CurrentMonth.Cents-in.PreviousMonth.Cents) / float64(in.PreviousMonth.Cents) * 100
	}

	in.TotalDays = 1
	if len(expenses) > 0 {
		total := TotalAmount(expenses)
		in.AverageTransaction = core.FromFloat(total.Float64() / float64(len(expenses)))

		days := make(map[core.Date]struct{})
		earliest := expenses[0].Date
		highest := expenses[0]
		for _, e := range expenses {
			days[e.Date] = struct{}{}
			if e.Date.Before(earliest) {
				earliest = e.Date
			}
			if e.Amount.Cents > highest.Amount.Cents {
				highest = e
			}
		}
		in.Highest = &highest
		in.DaysWithExpenses = len(days)

		span := math.Ceil(now.Sub(earliest.Time).Hours() / 24)
		if span > 1 {
			in.TotalDays = int(span)
		}
		in.SpendingFrequencyPct = float64(in.DaysWithExpenses) / float64(in.TotalDays) * 100
	}

	in.Tips = tips(in, CategorySummary(expenses))
	return in
}

func tips(in Insights, summary []CategoryTotal) []string {
	out := []string{}
	if in.MonthlyChangePct > tipMonthlyIncreasePct {
		out = append(out, fmt.Sprintf("Your spending increased by %.1f%% this month. Consider reviewing your largest expense categories.", in.MonthlyChangePct))
	}
	if len(summary) > 0 && summary[0].Percentage > tipTopCategoryPct {
		out = append(out, fmt.Sprintf("%s accounts for %.1f%% of your spending. Consider setting a budget for this category.", summary[0].Category, summary[0].Percentage))
	}
	if in.AverageTransaction.Float64() > tipAverageAmount {
		out = append(out, fmt.Sprintf("Your average transaction is $%.0f. Look for opportunities to reduce larger purchases.", in.AverageTransaction.Float64()))
	}
	if in.SpendingFrequencyPct > tipFrequencyPct {
		out = append(out, "You're tracking expenses consistently! Keep up the good habit of recording your spending.")
	}
	return out
}
