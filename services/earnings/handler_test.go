package earnings

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"creator-ledger/pkg/taskname"
	"creator-ledger/services/testutil"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

type enqueuerMock struct {
	tasks []*asynq.Task
	err   error
}

func (m *enqueuerMock) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.tasks = append(m.tasks, task)
	return &asynq.TaskInfo{Type: task.Type()}, nil
}

func TestRecordViewsQueuesEvent(t *testing.T) {
	f := newFixture(t)
	q := &enqueuerMock{}
	r := testutil.NewRouter(t, NewHandler(HandlerParams{Service: f.svc, Enqueuer: q}))

	w := testutil.Do(t, r, testutil.Request{
		Method: http.MethodPost,
		Path:   "/internal/views",
		Body:   ViewEvent{CreatorID: "creator-1", ContentID: "video-1", Views: 100},
	})
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, q.tasks, 1)
	require.Equal(t, taskname.EarningsView, q.tasks[0].Type())
	require.Empty(t, f.records(t, "creator-1"))

	// The worker side of the same task.
	require.NoError(t, f.svc.HandleViewTask(context.Background(), q.tasks[0]))
	require.Len(t, f.records(t, "creator-1"), 1)
}

func TestRecordViewsFallsBackInline(t *testing.T) {
	f := newFixture(t)
	q := &enqueuerMock{err: errors.New("redis down")}
	r := testutil.NewRouter(t, NewHandler(HandlerParams{Service: f.svc, Enqueuer: q}))

	w := testutil.Do(t, r, testutil.Request{
		Method: http.MethodPost,
		Path:   "/internal/views",
		Body:   ViewEvent{CreatorID: "creator-1", ContentID: "video-1", Views: 10_000},
	})
	require.Equal(t, http.StatusAccepted, w.Code)
	requireDecimal(t, "8", f.unpaid(t, "creator-1"))

	// Accrual failures never reach the content service.
	w = testutil.Do(t, r, testutil.Request{
		Method: http.MethodPost,
		Path:   "/internal/views",
		Body:   ViewEvent{CreatorID: "creator-1", Views: 10},
	})
	require.Equal(t, http.StatusAccepted, w.Code)
}

func TestHandleViewTaskSkipsInvalidEvents(t *testing.T) {
	f := newFixture(t)

	err := f.svc.HandleViewTask(context.Background(), asynq.NewTask(taskname.EarningsView, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	task, err := NewViewTask(ViewEvent{ContentID: "video-1", Views: 1})
	require.NoError(t, err)
	err = f.svc.HandleViewTask(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestBalanceEndpoints(t *testing.T) {
	f := newFixture(t)
	f.accrue(t, "creator-1", "video-1", 10_000)
	r := testutil.NewRouter(t, NewHandler(HandlerParams{Service: f.svc}))

	w := testutil.Do(t, r, testutil.Request{Method: http.MethodGet, Path: "/v1/balance"})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = testutil.Do(t, r, testutil.Request{Method: http.MethodGet, Path: "/v1/balance", CreatorID: "creator-1"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"unpaid_earnings":"8"`)

	w = testutil.Do(t, r, testutil.Request{Method: http.MethodGet, Path: "/v1/earnings?limit=1", CreatorID: "creator-1"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"video-1"`)
}

func TestCreateBonusRequiresAdminRole(t *testing.T) {
	f := newFixture(t)
	r := testutil.NewRouter(t, NewHandler(HandlerParams{Service: f.svc}))

	body := map[string]any{"multiplier": "2", "ends_at": "2026-10-20T00:00:00Z"}

	w := testutil.Do(t, r, testutil.Request{Method: http.MethodPost, Path: "/admin/creators/creator-1/bonuses", Body: body, AdminID: "admin-1", Role: "support"})
	require.Equal(t, http.StatusForbidden, w.Code)

	w = testutil.Do(t, r, testutil.Request{Method: http.MethodPost, Path: "/admin/creators/creator-1/bonuses", Body: body, AdminID: "admin-1", Role: "admin"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = testutil.Do(t, r, testutil.Request{Method: http.MethodPost, Path: "/admin/creators/creator-1/bonuses", Body: map[string]any{"multiplier": "0.5", "ends_at": "2026-10-20T00:00:00Z"}, AdminID: "admin-1", Role: "admin"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "INVALID_MULTIPLIER", testutil.ErrorReason(t, w))
}
