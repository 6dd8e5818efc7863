package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"expensetracker/internal/core"
	"expensetracker/internal/export"
	"expensetracker/internal/filter"
	"expensetracker/internal/repository"
	"expensetracker/internal/storage"
)

var testNow = time.Date(2024, 12, 20, 9, 30, 0, 0, time.UTC)

func newTestService(t *testing.T) (*ExpenseService, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	repo := repository.New(store, nil)
	repo.Clock = func() time.Time { return testNow }
	n := 0
	repo.NewID = func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	s := NewExpenseService(repo, nil)
	s.Clock = func() time.Time { return testNow }
	return s, store
}

func draft(cents int64, cat core.Category, date core.Date, desc string) core.Draft {
	return core.Draft{Date: date, Amount: core.Money{Cents: cents}, Category: cat, Description: desc}
}

func mustCreate(t *testing.T, s *ExpenseService, d core.Draft) core.Expense {
	t.Helper()
	e, err := s.Create(context.Background(), d)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return e
}

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService(t)

	e := mustCreate(t, s, draft(1250, core.Food, core.NewDate(2024, 12, 14), "  Lunch  "))
	if e.Description != "Lunch" {
		t.Errorf("Description = %q, want trimmed", e.Description)
	}

	got, err := s.Get(ctx, e.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.ID != e.ID || got.Amount.Cents != 1250 {
		t.Errorf("Get() = %+v", got)
	}

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}
}

func TestCreateValidation(t *testing.T) {
	s, store := newTestService(t)

	_, err := s.Create(context.Background(), draft(0, core.Food, core.NewDate(2024, 12, 14), "Lunch"))
	var ve *core.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("Create() error = %v, want ValidationError", err)
	}
	if ve.Field != "amount" {
		t.Errorf("Field = %q, want amount", ve.Field)
	}
	if store.Writes() != 0 {
		t.Errorf("Writes() = %d, want 0", store.Writes())
	}
}

func TestCreateStoreFailure(t *testing.T) {
	s, store := newTestService(t)
	store.Fail(errors.New("disk full"))

	_, err := s.Create(context.Background(), draft(100, core.Food, core.NewDate(2024, 12, 14), "Lunch"))
	if !errors.Is(err, ErrWriteFailed) {
		t.Errorf("Create() error = %v, want ErrWriteFailed", err)
	}
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService(t)
	e := mustCreate(t, s, draft(1250, core.Food, core.NewDate(2024, 12, 14), "Lunch"))

	amount := core.Money{Cents: 2000}
	got, err := s.Update(ctx, e.ID, core.Patch{Amount: &amount})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if got.Amount.Cents != 2000 || got.Description != "Lunch" {
		t.Errorf("Update() = %+v", got)
	}

	bad := core.Category("Travel")
	var ve *core.ValidationError
	if _, err := s.Update(ctx, e.ID, core.Patch{Category: &bad}); !errors.As(err, &ve) {
		t.Errorf("Update(bad category) error = %v, want ValidationError", err)
	}
	if _, err := s.Update(ctx, "missing", core.Patch{Amount: &amount}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update(missing) error = %v, want ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService(t)
	e := mustCreate(t, s, draft(1250, core.Food, core.NewDate(2024, 12, 14), "Lunch"))

	if err := s.Delete(ctx, e.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := s.Delete(ctx, e.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func TestMutationsDuringOutage(t *testing.T) {
	ctx := context.Background()
	s, store := newTestService(t)
	e := mustCreate(t, s, draft(1250, core.Food, core.NewDate(2024, 12, 14), "Lunch"))
	store.Fail(errors.New("offline"))

	amount := core.Money{Cents: 2000}
	if _, err := s.Update(ctx, e.ID, core.Patch{Amount: &amount}); !errors.Is(err, ErrWriteFailed) || errors.Is(err, ErrNotFound) {
		t.Errorf("Update() error = %v, want ErrWriteFailed", err)
	}
	if err := s.Delete(ctx, e.ID); !errors.Is(err, ErrWriteFailed) || errors.Is(err, ErrNotFound) {
		t.Errorf("Delete() error = %v, want ErrWriteFailed", err)
	}

	store.Fail(nil)
	if _, err := s.Get(ctx, e.ID); err != nil {
		t.Errorf("expense lost after outage: %v", err)
	}
}

func TestReadModelsRecoverAfterOutage(t *testing.T) {
	ctx := context.Background()
	s, store := newTestService(t)
	mustCreate(t, s, draft(4599, core.Food, core.NewDate(2024, 12, 15), "Groceries"))

	store.Fail(errors.New("offline"))
	if got := s.Dashboard(ctx); got.TotalExpenses.Cents != 0 || len(got.RecentExpenses) != 0 {
		t.Fatalf("dashboard during outage = %+v, want empty", got)
	}
	if trend, _ := s.Trend(ctx, 1); trend[0].Amount.Cents != 0 {
		t.Fatalf("trend during outage = %+v, want zero", trend)
	}

	store.Fail(nil)
	got := s.Dashboard(ctx)
	if got.TotalExpenses.Cents != 4599 || len(got.RecentExpenses) != 1 {
		t.Errorf("dashboard after recovery: total=%d recent=%d, want 4599 and 1",
			got.TotalExpenses.Cents, len(got.RecentExpenses))
	}
	if trend, _ := s.Trend(ctx, 1); trend[0].Amount.Cents != 4599 {
		t.Errorf("trend after recovery = %d cents, want 4599", trend[0].Amount.Cents)
	}
}

func TestListFilters(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService(t)
	mustCreate(t, s, draft(1250, core.Food, core.NewDate(2024, 12, 14), "Lunch"))
	mustCreate(t, s, draft(4000, core.Bills, core.NewDate(2024, 12, 1), "Power bill"))
	mustCreate(t, s, draft(900, core.Food, core.NewDate(2024, 11, 2), "Coffee beans"))

	tests := []struct {
		name string
		c    filter.Criteria
		want int
	}{
		{"no criteria", filter.Criteria{}, 3},
		{"category", filter.Criteria{Category: core.Food}, 2},
		{"date from", filter.Criteria{DateFrom: core.NewDate(2024, 12, 1)}, 2},
		{"search", filter.Criteria{SearchTerm: "BILL"}, 1},
		{"combined", filter.Criteria{Category: core.Food, DateTo: core.NewDate(2024, 11, 30)}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.List(ctx, tt.c); len(got) != tt.want {
				t.Errorf("List() returned %d expenses, want %d", len(got), tt.want)
			}
		})
	}
}

func TestDashboardFollowsMutations(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService(t)

	if got := s.Dashboard(ctx); got.TotalExpenses.Cents != 0 {
		t.Fatalf("empty TotalExpenses = %d, want 0", got.TotalExpenses.Cents)
	}

	mustCreate(t, s, draft(1250, core.Food, core.NewDate(2024, 12, 14), "Lunch"))
	mustCreate(t, s, draft(4000, core.Bills, core.NewDate(2024, 11, 1), "Power bill"))

	got := s.Dashboard(ctx)
	if got.TotalExpenses.Cents != 5250 {
		t.Errorf("TotalExpenses = %d, want 5250", got.TotalExpenses.Cents)
	}
	if got.MonthlyExpenses.Cents != 1250 {
		t.Errorf("MonthlyExpenses = %d, want 1250", got.MonthlyExpenses.Cents)
	}
	if len(got.RecentExpenses) != 2 {
		t.Errorf("RecentExpenses has %d entries, want 2", len(got.RecentExpenses))
	}
}

func TestTrend(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService(t)
	mustCreate(t, s, draft(1250, core.Food, core.NewDate(2024, 12, 14), "Lunch"))
	mustCreate(t, s, draft(4000, core.Bills, core.NewDate(2024, 10, 1), "Power bill"))

	trend, err := s.Trend(ctx, 3)
	if err != nil {
		t.Fatalf("Trend() error = %v", err)
	}
	want := []int64{4000, 0, 1250}
	if len(trend) != len(want) {
		t.Fatalf("Trend() has %d months, want %d", len(trend), len(want))
	}
	for i, w := range want {
		if trend[i].Amount.Cents != w {
			t.Errorf("trend[%d] = %d, want %d", i, trend[i].Amount.Cents, w)
		}
	}

	for _, months := range []int{0, -1, 61} {
		if _, err := s.Trend(ctx, months); !errors.Is(err, ErrInvalidMonth) {
			t.Errorf("Trend(%d) error = %v, want ErrInvalidMonth", months, err)
		}
	}
}

func TestSeedSampleData(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService(t)

	n, err := s.SeedSampleData(ctx)
	if err != nil {
		t.Fatalf("SeedSampleData() error = %v", err)
	}
	if n != 15 || len(s.List(ctx, filter.Criteria{})) != 15 {
		t.Errorf("seeded %d expenses, want 15", n)
	}
	if n, _ := s.SeedSampleData(ctx); n != 0 {
		t.Errorf("second SeedSampleData() = %d, want 0", n)
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if got := s.List(ctx, filter.Criteria{}); len(got) != 0 {
		t.Errorf("List() after Clear has %d expenses", len(got))
	}
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService(t)
	mustCreate(t, s, draft(1250, core.Food, core.NewDate(2024, 12, 14), "Lunch"))
	mustCreate(t, s, draft(4000, core.Bills, core.NewDate(2024, 12, 1), "Power bill"))

	p, err := s.Export(ctx, export.Options{Format: export.CSV, Categories: []core.Category{core.Food}})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if p.Filename == "" || len(p.Body) == 0 {
		t.Errorf("Export() = %+v", p)
	}

	sum := s.ExportSummary(ctx, export.Options{Categories: []core.Category{core.Food}})
	if sum.RecordCount != 1 || sum.TotalAmount.Cents != 1250 {
		t.Errorf("ExportSummary() = %+v", sum)
	}

	if _, err := s.Template(ctx, "no-such-template"); err == nil {
		t.Error("Template(unknown) error = nil")
	}
}
