package task

import (
	"context"
	"errors"
	"fmt"

	"creator-ledger/pkg/metrics"

	"github.com/hibiken/asynq"
)

var ErrNoEnqueuer = errors.New("task queue not configured")

type Enqueuer interface {
	Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type enqueuer struct {
	client *asynq.Client
}

func NewEnqueuer(client *asynq.Client) Enqueuer {
	return &enqueuer{client: client}
}

func (e *enqueuer) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	info, err := e.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", task.Type(), err)
	}
	return info, nil
}

// Offload hands the task built by build to the queue. It returns nil only
// when the task was queued; any error means the caller should run the work
// inline. A nil Enqueuer yields ErrNoEnqueuer.
func Offload(ctx context.Context, e Enqueuer, taskType string, build func() (*asynq.Task, error), opts ...asynq.Option) error {
	err := offload(ctx, e, build, opts...)
	result := "queued"
	if err != nil {
		result = "inline"
	}
	metrics.TasksEnqueued.WithLabelValues(taskType, result).Inc()
	return err
}

func offload(ctx context.Context, e Enqueuer, build func() (*asynq.Task, error), opts ...asynq.Option) error {
	if e == nil {
		return ErrNoEnqueuer
	}
	t, err := build()
	if err != nil {
		return err
	}
	_, err = e.Enqueue(ctx, t, opts...)
	return err
}
