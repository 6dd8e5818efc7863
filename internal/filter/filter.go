// Package filter narrows an expense list by category, date range and a
// free-text search over descriptions.
package filter

import (
	"fmt"
	"net/url"
	"strings"

	"expensetracker/internal/core"
)

// Criteria combines with AND semantics. Zero values match everything.
type Criteria struct {
	Category   core.Category `json:"category,omitempty"`
	DateFrom   core.Date     `json:"dateFrom,omitempty"`
	DateTo     core.Date     `json:"dateTo,omitempty"`
	SearchTerm string        `json:"searchTerm,omitempty"`
}

// Apply returns the matching expenses in input order. SearchTerm is matched
// as given; ParseCriteria trims it at the HTTP edge.
func Apply(expenses []core.Expense, c Criteria) []core.Expense {
	term := strings.ToLower(c.SearchTerm)
	out := make([]core.Expense, 0, len(expenses))
	for _, e := range expenses {
		if c.Category != "" && c.Category != core.CategoryAll && e.Category != c.Category {
			continue
		}
		if !c.DateFrom.IsZero() && e.Date.Before(c.DateFrom) {
			continue
		}
		if !c.DateTo.IsZero() && e.Date.After(c.DateTo) {
			continue
		}
		if term != "" && !strings.Contains(strings.ToLower(e.Description), term) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// ParseCriteria reads category, from, to and q from query parameters.
func ParseCriteria(q url.Values) (Criteria, error) {
	var c Criteria
	if v := strings.TrimSpace(q.Get("category")); v != "" && !strings.EqualFold(v, string(core.CategoryAll)) {
		cat, err := core.ParseCategory(v)
		if err != nil {
			return Criteria{}, err
		}
		c.Category = cat
	}
	if v := strings.TrimSpace(q.Get("from")); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return Criteria{}, fmt.Errorf("from: %w", err)
		}
		c.DateFrom = d
	}
	if v := strings.TrimSpace(q.Get("to")); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return Criteria{}, fmt.Errorf("to: %w", err)
		}
		c.DateTo = d
	}
	c.SearchTerm = strings.TrimSpace(q.Get("q"))
	return c, nil
}
