package fraud

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"creator-ledger/pkg/middleware"
	"creator-ledger/pkg/taskname"
	"creator-ledger/services/testutil"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

type enqueuerMock struct {
	tasks []*asynq.Task
	err   error
}

func (m *enqueuerMock) Enqueue(_ context.Context, t *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.tasks = append(m.tasks, t)
	return &asynq.TaskInfo{ID: "task-1", Type: t.Type()}, nil
}

func TestRecordActivityQueuesOrFallsBack(t *testing.T) {
	a, _ := newAuditor(t, "", nil)
	ctx := context.Background()
	act := middleware.Activity{CreatorID: "creator-1", IP: "203.0.113.9", Action: "withdrawal.submit"}

	q := &enqueuerMock{}
	a.enqueuer = q
	a.RecordActivity(ctx, act)
	require.Len(t, q.tasks, 1)
	require.Equal(t, taskname.FraudIPLog, q.tasks[0].Type())

	logs, err := a.ListIPLogs(ctx, ListIPLogsParams{CreatorID: "creator-1"})
	require.NoError(t, err)
	require.Empty(t, logs)

	require.NoError(t, a.HandleIPLogTask(ctx, q.tasks[0]))
	logs, err = a.ListIPLogs(ctx, ListIPLogsParams{CreatorID: "creator-1"})
	require.NoError(t, err)
	require.Len(t, logs, 1)

	a.enqueuer = &enqueuerMock{err: errors.New("redis down")}
	a.RecordActivity(ctx, act)
	logs, err = a.ListIPLogs(ctx, ListIPLogsParams{CreatorID: "creator-1"})
	require.NoError(t, err)
	require.Len(t, logs, 2)
}

func TestHandleIPLogTaskSkipsInvalidPayloads(t *testing.T) {
	a, _ := newAuditor(t, "", nil)

	err := a.HandleIPLogTask(context.Background(), asynq.NewTask(taskname.FraudIPLog, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	err = a.HandleIPLogTask(context.Background(), asynq.NewTask(taskname.FraudIPLog, []byte(`{"creator_id":"creator-1"}`)))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestChargebackEndpoints(t *testing.T) {
	f := newFixture(t)
	req := f.completedPayout(t, "creator-1", "40")
	a, _ := newAuditor(t, "", nil)
	r := testutil.NewRouter(t, NewHandler(HandlerParams{Service: f.svc, Auditor: a}))

	body := map[string]any{"creator_id": "creator-1", "payout_request_id": req.ID, "amount_usd": "40", "reason": "bank reversal"}

	w := testutil.Do(t, r, testutil.Request{Method: http.MethodPost, Path: "/admin/chargebacks", Body: body, AdminID: "support-1", Role: "support"})
	require.Equal(t, http.StatusForbidden, w.Code)

	w = testutil.Do(t, r, testutil.Request{Method: http.MethodPost, Path: "/admin/chargebacks", Body: body, AdminID: "admin-1", Role: "admin"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.Contains(t, w.Body.String(), `"status":"completed"`)

	w = testutil.Do(t, r, testutil.Request{Method: http.MethodPost, Path: "/admin/chargebacks", Body: body, AdminID: "admin-1", Role: "admin"})
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, "PAYOUT_NOT_COMPLETED", testutil.ErrorReason(t, w))

	w = testutil.Do(t, r, testutil.Request{Method: http.MethodGet, Path: "/admin/chargebacks?creator_id=creator-1", AdminID: "support-1", Role: "support"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), req.ID)
}

func TestFraudFlagEndpoints(t *testing.T) {
	f := newFixture(t)
	a, _ := newAuditor(t, "", nil)
	r := testutil.NewRouter(t, NewHandler(HandlerParams{Service: f.svc, Auditor: a}))

	w := testutil.Do(t, r, testutil.Request{Method: http.MethodPost, Path: "/admin/fraud-flags", Body: map[string]any{"creator_id": "creator-1", "flag_type": "view_farm", "severity": "HIGH"}, AdminID: "admin-1", Role: "admin"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	flags, err := f.svc.ListFraudFlags(context.Background(), ListFlagsParams{CreatorID: "creator-1"})
	require.NoError(t, err)
	require.Len(t, flags, 1)
	id := flags[0].ID

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "screenshot.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("png"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	hr := httptest.NewRequest(http.MethodPost, "/admin/fraud-flags/"+id+"/evidence", &buf)
	hr.Header.Set("Content-Type", mw.FormDataContentType())
	hr.Header.Set(middleware.HeaderAdminID, "admin-1")
	hr.Header.Set(middleware.HeaderRole, "admin")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, hr)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, f.store.objects, 1)

	w = testutil.Do(t, r, testutil.Request{Method: http.MethodPatch, Path: "/admin/fraud-flags/" + id, Body: map[string]any{"status": "resolved", "action_taken": "none"}, AdminID: "admin-1", Role: "admin"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"status":"resolved"`)

	w = testutil.Do(t, r, testutil.Request{Method: http.MethodGet, Path: "/admin/fraud-flags?status=resolved", AdminID: "support-1", Role: "support"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), id)

	w = testutil.Do(t, r, testutil.Request{Method: http.MethodGet, Path: "/admin/ip-logs?suspicious=maybe", AdminID: "support-1", Role: "support"})
	require.Equal(t, http.StatusBadRequest, w.Code)
}
