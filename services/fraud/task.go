package fraud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"creator-ledger/pkg/errutil"
	"creator-ledger/pkg/middleware"
	"creator-ledger/pkg/taskname"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

type ipLogPayload struct {
	CreatorID string `json:"creator_id"`
	IP        string `json:"ip"`
	Action    string `json:"action"`
	UserAgent string `json:"user_agent"`
}

func NewIPLogTask(a middleware.Activity) (*asynq.Task, error) {
	payload, err := json.Marshal(ipLogPayload{
		CreatorID: a.CreatorID,
		IP:        a.IP,
		Action:    a.Action,
		UserAgent: a.UserAgent,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskname.FraudIPLog, payload, asynq.Queue("low"), asynq.MaxRetry(3)), nil
}

func (a *Auditor) HandleIPLogTask(ctx context.Context, t *asynq.Task) error {
	var p ipLogPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("invalid payload: %v: %w", err, asynq.SkipRetry)
	}

	_, err := a.RecordIP(ctx, middleware.Activity{
		CreatorID: p.CreatorID,
		IP:        p.IP,
		Action:    p.Action,
		UserAgent: p.UserAgent,
	})
	if err == nil {
		return nil
	}

	var be errutil.BaseError
	if errors.As(err, &be) && be.Code != errutil.StatusInternal {
		zap.L().Warn("dropping invalid ip log", zap.String("task_type", t.Type()), zap.Error(err))
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return err
}

func registerTaskHandlers(mux *asynq.ServeMux, a *Auditor) {
	mux.HandleFunc(taskname.FraudIPLog, a.HandleIPLogTask)
}
