// Package repository keeps the expense collection as one versioned blob in a
// storage.BlobStore. Read paths never fail: an unreachable store or a corrupt
// payload is logged, counted and read as an empty collection.
package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"expensetracker/internal/core"
	"expensetracker/internal/log"
	"expensetracker/internal/metrics"
	"expensetracker/internal/storage"
)

type Repository struct {
	mu      sync.Mutex
	store   storage.BlobStore
	metrics *metrics.Metrics
	logger  *log.Logger
	version atomic.Uint64

	Clock func() time.Time
	NewID func() string
}

// New returns a repository on store. m may be nil.
func New(store storage.BlobStore, m *metrics.Metrics) *Repository {
	return &Repository{
		store:   store,
		metrics: m,
		logger:  log.FromContext(context.Background()).WithComponent(log.ComponentExpense),
		Clock:   time.Now,
		NewID:   uuid.NewString,
	}
}

// Version increases on every successful mutation.
func (r *Repository) Version() uint64 {
	return r.version.Load()
}

// List returns every expense in insertion order.
func (r *Repository) List(ctx context.Context) []core.Expense {
	expenses, err := r.ListChecked(ctx)
	if err != nil {
		return []core.Expense{}
	}
	return expenses
}

// ListChecked is List that also reports an unreachable store, so callers can
// tell a degraded empty read from an empty collection.
func (r *Repository) ListChecked(ctx context.Context) ([]core.Expense, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load(ctx)
}

func (r *Repository) Get(ctx context.Context, id string) (core.Expense, bool) {
	for _, e := range r.List(ctx) {
		if e.ID == id {
			return e, true
		}
	}
	return core.Expense{}, false
}

// Add stores a new expense built from d. The error is non-nil when d is
// invalid or the collection could not be read or written.
func (r *Repository) Add(ctx context.Context, d core.Draft) (core.Expense, error) {
	d = d.Normalize()
	if err := d.Validate(); err != nil {
		return core.Expense{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	expenses, err := r.load(ctx)
	if err != nil {
		r.metrics.Mutation(log.OpCreate, false)
		return core.Expense{}, err
	}

	e := r.newExpense(d)
	if err := r.save(ctx, log.OpCreate, append(expenses, e)); err != nil {
		return core.Expense{}, err
	}
	r.logger.InfoContext(ctx, "Expense created",
		log.NewFields().WithExpense(e.ID, e.Amount.Cents, string(e.Category)).WithOperation(log.OpCreate).ToSlice()...)
	return e, nil
}

func (r *Repository) newExpense(d core.Draft) core.Expense {
	now := r.Clock().UTC()
	return core.Expense{
		ID:          r.NewID(),
		Date:        d.Date,
		Amount:      d.Amount,
		Category:    d.Category,
		Description: d.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Update merges p into the expense with id. It reports false, without
// writing, when the id is unknown, p is invalid or the store fails.
func (r *Repository) Update(ctx context.Context, id string, p core.Patch) bool {
	ok, _ := r.UpdateChecked(ctx, id, p)
	return ok
}

// UpdateChecked is Update with the cause. An unknown id gives false and a
// nil error; an invalid patch or a store failure gives the error.
func (r *Repository) UpdateChecked(ctx context.Context, id string, p core.Patch) (bool, error) {
	if err := p.Validate(); err != nil {
		r.logger.WarnContext(ctx, "Rejected invalid expense update", log.FieldExpenseID, id, log.FieldError, err)
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	expenses, err := r.load(ctx)
	if err != nil {
		r.metrics.Mutation(log.OpUpdate, false)
		return false, err
	}
	i := indexOf(expenses, id)
	if i < 0 {
		return false, nil
	}

	next := make([]core.Expense, len(expenses))
	copy(next, expenses)
	e := p.Apply(next[i])
	e.UpdatedAt = r.Clock().UTC()
	if e.UpdatedAt.Before(e.CreatedAt) {
		e.UpdatedAt = e.CreatedAt
	}
	next[i] = e

	if err := r.save(ctx, log.OpUpdate, next); err != nil {
		return false, err
	}
	r.logger.InfoContext(ctx, "Expense updated", log.FieldExpenseID, id)
	return true, nil
}

// Delete removes the expense with id and reports whether it was there.
func (r *Repository) Delete(ctx context.Context, id string) bool {
	ok, _ := r.DeleteChecked(ctx, id)
	return ok
}

// DeleteChecked is Delete with the cause of a failed read or write.
func (r *Repository) DeleteChecked(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	expenses, err := r.load(ctx)
	if err != nil {
		r.metrics.Mutation(log.OpDelete, false)
		return false, err
	}
	i := indexOf(expenses, id)
	if i < 0 {
		return false, nil
	}

	next := make([]core.Expense, 0, len(expenses)-1)
	next = append(next, expenses[:i]...)
	next = append(next, expenses[i+1:]...)
	if err := r.save(ctx, log.OpDelete, next); err != nil {
		return false, err
	}
	r.logger.InfoContext(ctx, "Expense deleted", log.FieldExpenseID, id)
	return true, nil
}

// Clear removes the stored collection entirely.
func (r *Repository) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.store.Delete(ctx, StorageKey); err != nil {
		r.persistFailed(ctx, log.OpClear, err)
		return fmt.Errorf("clear expenses: %w", err)
	}
	r.version.Add(1)
	r.metrics.Mutation(log.OpClear, true)
	r.logger.InfoContext(ctx, "All expenses cleared", log.FieldOperation, log.OpClear)
	return nil
}

// SeedSampleData adds the sample expenses when the collection is empty and
// returns how many were added.
func (r *Repository) SeedSampleData(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	expenses, err := r.load(ctx)
	if err != nil {
		return 0, err
	}
	if len(expenses) > 0 {
		r.logger.InfoContext(ctx, "Sample data not added, expenses already exist", log.FieldCount, len(expenses))
		return 0, nil
	}

	drafts := SampleDrafts()
	seeded := make([]core.Expense, 0, len(drafts))
	for _, d := range drafts {
		seeded = append(seeded, r.newExpense(d))
	}
	if err := r.save(ctx, log.OpSeed, seeded); err != nil {
		return 0, err
	}
	r.logger.InfoContext(ctx, "Sample expenses added", log.FieldCount, len(seeded))
	return len(seeded), nil
}

// load must be called with mu held. A missing key or a corrupt payload reads
// as an empty collection; only an unreachable store is an error.
func (r *Repository) load(ctx context.Context) ([]core.Expense, error) {
	data, err := r.store.Get(ctx, StorageKey)
	if errors.Is(err, storage.ErrNotFound) {
		return []core.Expense{}, nil
	}
	if err != nil {
		r.metrics.PersistenceError("unavailable")
		r.logger.ErrorContext(ctx, "Failed to read expenses", log.FieldError, err)
		return nil, fmt.Errorf("read expenses: %w", err)
	}

	d, err := decode(data)
	if err != nil {
		r.metrics.PersistenceError("corrupt")
		r.logger.WarnContext(ctx, "Stored expenses are corrupt, reading as empty", log.FieldError, err)
		return []core.Expense{}, nil
	}
	for _, id := range d.Coerced {
		r.logger.WarnContext(ctx, "Unknown stored category coerced to Other", log.FieldExpenseID, id)
	}
	return d.Expenses, nil
}

// save writes the whole collection with a single Put.
func (r *Repository) save(ctx context.Context, op string, expenses []core.Expense) error {
	data, err := encode(expenses)
	if err != nil {
		r.persistFailed(ctx, op, err)
		return err
	}
	if err := r.store.Put(ctx, StorageKey, data); err != nil {
		r.persistFailed(ctx, op, err)
		return fmt.Errorf("write expenses: %w", err)
	}
	r.version.Add(1)
	r.metrics.Mutation(op, true)
	return nil
}

func (r *Repository) persistFailed(ctx context.Context, op string, err error) {
	r.metrics.Mutation(op, false)
	r.metrics.PersistenceError("unavailable")
	r.logger.ErrorContext(ctx, "Failed to persist expenses", log.FieldOperation, op, log.FieldError, err)
}

func indexOf(expenses []core.Expense, id string) int {
	for i, e := range expenses {
		if e.ID == id {
			return i
		}
	}
	return -1
}
