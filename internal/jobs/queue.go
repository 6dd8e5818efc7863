package jobs

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"expensetracker/internal/log"
)

var ErrQueueFull = errors.New("export queue is full")

// Queue hands a submitted job id to whatever will run it.
type Queue interface {
	Enqueue(ctx context.Context, id string) error
}

// QueueFunc adapts a function, such as an AMQP publisher, to Queue.
type QueueFunc func(ctx context.Context, id string) error

func (f QueueFunc) Enqueue(ctx context.Context, id string) error {
	return f(ctx, id)
}

// LocalQueue runs jobs on a fixed number of in-process workers.
type LocalQueue struct {
	runner  *Runner
	workers int
	ids     chan string
}

func NewLocalQueue(runner *Runner, workers, buffer int) *LocalQueue {
	if workers < 1 {
		workers = 1
	}
	if buffer < 1 {
		buffer = 64
	}
	return &LocalQueue{runner: runner, workers: workers, ids: make(chan string, buffer)}
}

// Enqueue never blocks; a full buffer is reported as ErrQueueFull.
func (q *LocalQueue) Enqueue(_ context.Context, id string) error {
	select {
	case q.ids <- id:
		return nil
	default:
		return ErrQueueFull
	}
}

// Start blocks until ctx is cancelled. Jobs still buffered at that point stay
// pending in the store.
func (q *LocalQueue) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < q.workers; i++ {
		worker := i
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case id := <-q.ids:
					if err := q.runner.Run(ctx, id); err != nil {
						logger(ctx).ErrorContext(ctx, "Export worker failed to run job",
							"worker", worker, log.FieldJobID, id, log.FieldError, err)
					}
				}
			}
		})
	}
	logger(ctx).InfoContext(ctx, "Export workers started", "workers", q.workers)
	return g.Wait()
}
