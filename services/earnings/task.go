package earnings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"creator-ledger/pkg/config"
	"creator-ledger/pkg/errutil"
	"creator-ledger/pkg/metrics"
	"creator-ledger/pkg/task"
	"creator-ledger/pkg/taskname"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

func NewViewTask(e ViewEvent) (*asynq.Task, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskname.EarningsView, payload, asynq.MaxRetry(5)), nil
}

// HandleViewTask accrues a queued view event. Invalid events are dropped
// without retry; store failures are retried by asynq.
func (s *Service) HandleViewTask(ctx context.Context, t *asynq.Task) error {
	var e ViewEvent
	if err := json.Unmarshal(t.Payload(), &e); err != nil {
		return fmt.Errorf("invalid payload: %v: %w", err, asynq.SkipRetry)
	}

	zapLog := zap.L().With(
		zap.String("task_type", t.Type()),
		zap.String("creator_id", e.CreatorID),
		zap.String("content_id", e.ContentID),
	)

	_, err := s.Accrue(ctx, AccrueParams{
		CreatorID:   e.CreatorID,
		ContentID:   e.ContentID,
		ContentType: e.ContentType,
		ViewDelta:   e.Views,
	})
	if err == nil {
		return nil
	}

	metrics.AccrualFailures.WithLabelValues("task").Inc()
	var be errutil.BaseError
	if errors.As(err, &be) && be.Code != errutil.StatusInternal {
		zapLog.Warn("dropping invalid view event", zap.Error(err))
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	zapLog.Error("failed to accrue view event", zap.Error(err))
	return err
}

func (s *Service) HandleReconcileTask(ctx context.Context, t *asynq.Task) error {
	report, err := s.Reconcile(ctx)
	if err != nil {
		return err
	}
	zap.L().Info("balance reconcile finished",
		zap.Int("checked", report.Checked),
		zap.Int("drifts", len(report.Drifts)),
	)
	return nil
}

func registerTaskHandlers(mux *asynq.ServeMux, s *Service) {
	mux.HandleFunc(taskname.EarningsView, s.HandleViewTask)
	mux.HandleFunc(taskname.EarningsReconcile, s.HandleReconcileTask)
}

func reconcilePeriodic(cfg *config.Config) task.Periodic {
	return task.Periodic{
		Cronspec: cfg.Ledger.ReconcileSchedule,
		Task:     asynq.NewTask(taskname.EarningsReconcile, nil),
		Opts:     []asynq.Option{asynq.Queue("low"), asynq.Unique(time.Hour)},
	}
}
