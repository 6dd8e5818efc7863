package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"expensetracker/internal/export"
	"expensetracker/internal/log"
)

// Runner executes queued jobs. It is shared by the in-process queue and the
// AMQP worker.
type Runner struct {
	store        Store
	source       Source
	hub          *Hub
	destinations map[string]Destination
	Clock        func() time.Time

	// StaleAfter is how long a processing job may go without an update
	// before another runner may claim it.
	StaleAfter time.Duration
}

// DefaultStaleAfter matches the age at which the worker recovers jobs.
const DefaultStaleAfter = time.Minute

func NewRunner(store Store, source Source, hub *Hub, destinations map[string]Destination) *Runner {
	if destinations == nil {
		destinations = map[string]Destination{}
	}
	return &Runner{
		store:        store,
		source:       source,
		hub:          hub,
		destinations: destinations,
		Clock:        time.Now,
		StaleAfter:   DefaultStaleAfter,
	}
}

// Run processes one job. Export and delivery failures are recorded on the job
// and not returned; only store failures are, so a message broker can retry.
// Jobs already in a terminal state are skipped, and so is a job another
// runner has claimed.
func (r *Runner) Run(ctx context.Context, id string) error {
	j, err := r.store.GetJob(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			logger(ctx).WarnContext(ctx, "Export job not found, skipping", log.FieldJobID, id)
			return nil
		}
		return fmt.Errorf("get job: %w", err)
	}
	if j.Status.Terminal() {
		logger(ctx).InfoContext(ctx, "Export job already finished, skipping", log.FieldJobID, id, log.FieldStatus, j.Status)
		return nil
	}

	if j.Status == StatusProcessing && j.UpdatedAt.After(r.Clock().Add(-r.StaleAfter)) {
		logger(ctx).InfoContext(ctx, "Export job is being processed, skipping", log.FieldJobID, id)
		return nil
	}

	j, err = r.claim(ctx, j)
	if errors.Is(err, ErrClaimed) {
		logger(ctx).InfoContext(ctx, "Export job claimed by another runner, skipping", log.FieldJobID, id)
		return nil
	}
	if err != nil {
		return err
	}

	artifact, runErr := r.execute(ctx, j)
	if runErr != nil {
		logger(ctx).ErrorContext(ctx, "Export job failed", log.FieldJobID, id, log.FieldError, runErr)
		_, err = r.transition(ctx, j, StatusFailed, Update{Error: runErr.Error()})
		return err
	}
	_, err = r.transition(ctx, j, StatusCompleted, Update{Artifact: artifact})
	return err
}

func (r *Runner) execute(ctx context.Context, j Job) (string, error) {
	name := j.Destination
	if name == "" {
		name = DefaultDestination(j.Method)
	}
	dest, ok := r.destinations[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownDestination, name)
	}

	now := r.Clock()
	expenses := r.source.List(ctx)
	payload, err := render(j, expenses, now)
	if err != nil {
		return "", fmt.Errorf("render export: %w", err)
	}
	artifact, err := dest.Deliver(ctx, Delivery{
		Job:      j,
		Payload:  payload,
		Expenses: export.Filter(expenses, j.Options),
	})
	if err != nil {
		return "", fmt.Errorf("deliver to %s: %w", name, err)
	}
	return artifact, nil
}

func (r *Runner) claim(ctx context.Context, j Job) (Job, error) {
	at := r.Clock()
	next, err := r.store.ClaimJob(ctx, j, at)
	if err != nil {
		if errors.Is(err, ErrClaimed) {
			return j, err
		}
		return j, fmt.Errorf("claim job %s: %w", j.ID, err)
	}
	logger(ctx).InfoContext(ctx, "Export job status changed",
		log.FieldJobID, next.ID,
		log.FieldStatus, next.Status,
		"method", next.Method)
	r.hub.Publish(Event{JobID: next.ID, Method: next.Method, Status: next.Status, At: at})
	return next, nil
}

func (r *Runner) transition(ctx context.Context, j Job, to Status, u Update) (Job, error) {
	return transition(ctx, r.store, r.hub, j, to, u, r.Clock())
}

func transition(ctx context.Context, store Store, hub *Hub, j Job, to Status, u Update, at time.Time) (Job, error) {
	next, err := store.TransitionJob(ctx, j.ID, to, u, at)
	if err != nil {
		return j, fmt.Errorf("transition job %s to %s: %w", j.ID, to, err)
	}
	logger(ctx).InfoContext(ctx, "Export job status changed",
		log.FieldJobID, next.ID,
		log.FieldStatus, next.Status,
		"method", next.Method)
	hub.Publish(Event{JobID: next.ID, Method: next.Method, Status: next.Status, At: at})
	return next, nil
}

func logger(ctx context.Context) *log.Logger {
	return log.FromContext(ctx).WithComponent(log.ComponentExport)
}
