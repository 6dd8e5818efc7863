package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"expensetracker/internal/cache"
	"expensetracker/internal/core"
	"expensetracker/internal/export"
	"expensetracker/internal/filter"
	"expensetracker/internal/metrics"
	"expensetracker/internal/report"
)

var (
	ErrNotFound     = errors.New("expense not found")
	ErrWriteFailed  = errors.New("expense could not be saved")
	ErrInvalidMonth = errors.New("months must be between 1 and 60")
)

const maxTrendMonths = 60

// Repository is the expense store the service reads and mutates.
type Repository interface {
	List(ctx context.Context) []core.Expense
	ListChecked(ctx context.Context) ([]core.Expense, error)
	Get(ctx context.Context, id string) (core.Expense, bool)
	Add(ctx context.Context, d core.Draft) (core.Expense, error)
	UpdateChecked(ctx context.Context, id string, p core.Patch) (bool, error)
	DeleteChecked(ctx context.Context, id string) (bool, error)
	Clear(ctx context.Context) error
	SeedSampleData(ctx context.Context) (int, error)
	Version() uint64
}

// ExpenseService joins the repository with the read models and exports the
// HTTP layer serves. Dashboards and trends are cached per data version.
type ExpenseService struct {
	repo    Repository
	metrics *metrics.Metrics

	dashboards *cache.LRUCache[report.DashboardStats]
	trends     *cache.LRUCache[[]report.MonthTotal]

	Clock func() time.Time
}

func NewExpenseService(repo Repository, m *metrics.Metrics) *ExpenseService {
	return &ExpenseService{
		repo:       repo,
		metrics:    m,
		dashboards: cache.NewLRUCache[report.DashboardStats](16, 5*time.Minute),
		trends:     cache.NewLRUCache[[]report.MonthTotal](64, 5*time.Minute),
		Clock:      time.Now,
	}
}

// Caches returns the caches owned by the service for periodic cleanup.
func (s *ExpenseService) Caches() []cache.Cleaner {
	return []cache.Cleaner{s.dashboards, s.trends}
}

// List returns the expenses matching c in insertion order.
func (s *ExpenseService) List(ctx context.Context, c filter.Criteria) []core.Expense {
	return filter.Apply(s.repo.List(ctx), c)
}

func (s *ExpenseService) Get(ctx context.Context, id string) (core.Expense, error) {
	e, ok := s.repo.Get(ctx, id)
	if !ok {
		return core.Expense{}, ErrNotFound
	}
	return e, nil
}

func (s *ExpenseService) Create(ctx context.Context, d core.Draft) (core.Expense, error) {
	e, err := s.repo.Add(ctx, d)
	if err != nil {
		var ve *core.ValidationError
		if errors.As(err, &ve) {
			return core.Expense{}, err
		}
		return core.Expense{}, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return e, nil
}

// Update applies p and returns the stored record.
func (s *ExpenseService) Update(ctx context.Context, id string, p core.Patch) (core.Expense, error) {
	if err := p.Validate(); err != nil {
		return core.Expense{}, err
	}
	ok, err := s.repo.UpdateChecked(ctx, id, p)
	if err != nil {
		return core.Expense{}, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	if !ok {
		return core.Expense{}, ErrNotFound
	}
	return s.Get(ctx, id)
}

func (s *ExpenseService) Delete(ctx context.Context, id string) error {
	ok, err := s.repo.DeleteChecked(ctx, id)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (s *ExpenseService) Clear(ctx context.Context) error {
	return s.repo.Clear(ctx)
}

func (s *ExpenseService) SeedSampleData(ctx context.Context) (int, error) {
	return s.repo.SeedSampleData(ctx)
}

func (s *ExpenseService) cacheKey(parts ...string) string {
	now := s.Clock()
	key := strconv.FormatUint(s.repo.Version(), 10) + "|" + now.Format("2006-01-02")
	for _, p := range parts {
		key += "|" + p
	}
	return key
}

// Dashboard returns totals, this month's spending, the category split and
// the latest expenses.
// A read that failed against the store is served empty and not cached.
func (s *ExpenseService) Dashboard(ctx context.Context) report.DashboardStats {
	stats, _ := s.dashboards.GetOrLoad(s.cacheKey(), func() (report.DashboardStats, error) {
		expenses, err := s.listForReport(ctx)
		return report.Dashboard(expenses, s.Clock()), err
	})
	return stats
}

// listForReport reads the full collection for a cached read model. On a
// store failure it returns an empty collection with the error.
func (s *ExpenseService) listForReport(ctx context.Context) ([]core.Expense, error) {
	expenses, err := s.repo.ListChecked(ctx)
	if err != nil {
		return []core.Expense{}, err
	}
	return expenses, nil
}

// Trend returns monthly totals for the last months months, oldest first.
func (s *ExpenseService) Trend(ctx context.Context, months int) ([]report.MonthTotal, error) {
	if months < 1 || months > maxTrendMonths {
		return nil, ErrInvalidMonth
	}
	trend, _ := s.trends.GetOrLoad(s.cacheKey(strconv.Itoa(months)), func() ([]report.MonthTotal, error) {
		expenses, err := s.listForReport(ctx)
		return report.MonthlyTrend(expenses, months, s.Clock()), err
	})
	out := make([]report.MonthTotal, len(trend))
	copy(out, trend)
	return out, nil
}

func (s *ExpenseService) Insights(ctx context.Context) report.Insights {
	return report.ComputeInsights(s.repo.List(ctx), s.Clock())
}

// Export renders the filtered export described by opts.
func (s *ExpenseService) Export(ctx context.Context, opts export.Options) (export.Payload, error) {
	p, err := export.FilteredExport(s.repo.List(ctx), opts, s.Clock())
	if err != nil {
		return export.Payload{}, err
	}
	s.metrics.Export(string(opts.Format))
	return p, nil
}

func (s *ExpenseService) ExportSummary(ctx context.Context, opts export.Options) export.ExportSummary {
	return export.Summary(s.repo.List(ctx), opts)
}

// Template builds the named report template from every expense.
func (s *ExpenseService) Template(ctx context.Context, id string) (any, error) {
	v, err := export.TemplateExport(id, s.repo.List(ctx), s.Clock())
	if err != nil {
		return nil, err
	}
	s.metrics.Export("template:" + id)
	return v, nil
}
