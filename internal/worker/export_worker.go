// Package worker runs export jobs handed over by the message broker and
// recovers jobs whose message was lost.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"expensetracker/internal/amqp"
	"expensetracker/internal/jobs"
	"expensetracker/internal/log"
)

// Runner executes one export job by id.
type Runner interface {
	Run(ctx context.Context, id string) error
}

// ExportWorker consumes export job messages.
type ExportWorker struct {
	runner Runner
	store  jobs.Store
	logger *log.Logger

	// Clock and StaleAfter decide which unfinished jobs Recover picks up.
	Clock      func() time.Time
	StaleAfter time.Duration
}

func NewExportWorker(runner Runner, store jobs.Store) *ExportWorker {
	return &ExportWorker{
		runner:     runner,
		store:      store,
		logger:     log.FromContext(context.Background()).WithComponent(log.ComponentWorker),
		Clock:      time.Now,
		StaleAfter: jobs.DefaultStaleAfter,
	}
}

// HandleExportJob runs the job named by msg. A returned error asks the
// broker to redeliver.
func (w *ExportWorker) HandleExportJob(ctx context.Context, msg *amqp.ExportJobMessage) error {
	w.logger.InfoContext(ctx, "Processing export job message",
		log.FieldJobID, msg.ID,
		"queued_at", msg.Timestamp)

	if err := w.runner.Run(ctx, msg.ID); err != nil {
		return fmt.Errorf("run export job %s: %w", msg.ID, err)
	}
	return nil
}

// Recover runs every unfinished job last touched more than StaleAfter ago.
// It returns how many jobs were run.
func (w *ExportWorker) Recover(ctx context.Context) (int, error) {
	list, err := w.store.ListJobs(ctx, 0)
	if err != nil {
		return 0, fmt.Errorf("list export jobs: %w", err)
	}

	cutoff := w.Clock().Add(-w.StaleAfter)
	run, failed := 0, 0
	var errs []error
	// oldest first
	for i := len(list) - 1; i >= 0; i-- {
		j := list[i]
		if j.Status.Terminal() || j.UpdatedAt.After(cutoff) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return run, err
		}
		if err := w.runner.Run(ctx, j.ID); err != nil {
			w.logger.ErrorContext(ctx, "Failed to recover export job", log.FieldJobID, j.ID, log.FieldError, err)
			errs = append(errs, err)
			failed++
			continue
		}
		run++
	}

	if run > 0 || failed > 0 {
		w.logger.InfoContext(ctx, "Export job recovery completed",
			"recovered", run,
			"errors", failed)
	}
	return run, errors.Join(errs...)
}

// RunRecovery calls Recover once immediately and then every interval until
// ctx is cancelled.
func (w *ExportWorker) RunRecovery(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := w.Recover(ctx); err != nil && ctx.Err() == nil {
			w.logger.WarnContext(ctx, "Export job recovery failed", log.FieldError, err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
