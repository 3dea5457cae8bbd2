package worker

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// InlineQueue runs enqueued tasks in-process through an asynq handler. It
// backs the memory storage backend where no redis is available.
type InlineQueue struct {
	handler asynq.Handler
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewInlineQueue(handler asynq.Handler) *InlineQueue {
	ctx, cancel := context.WithCancel(context.Background())
	return &InlineQueue{handler: handler, ctx: ctx, cancel: cancel}
}

// EnqueueContext starts the task right away. Options are ignored.
func (q *InlineQueue) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if err := q.ctx.Err(); err != nil {
		return nil, err
	}

	id := uuid.New().String()
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		if err := q.handler.ProcessTask(q.ctx, task); err != nil {
			slog.Warn("inline task failed", "id", id, "type", task.Type(), "error", err)
		}
	}()

	return &asynq.TaskInfo{
		ID:      id,
		Queue:   "inline",
		Type:    task.Type(),
		Payload: task.Payload(),
		State:   asynq.TaskStateActive,
	}, nil
}

// Shutdown cancels running tasks and waits for them to return.
func (q *InlineQueue) Shutdown() {
	q.cancel()
	q.wg.Wait()
}
