package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipstream/mediabridge/internal/scheduler"
)

func newTestHandler(t *testing.T) (*echo.Echo, chan struct{}) {
	t.Helper()

	sched, err := scheduler.New(zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = sched.Stop() })

	ran := make(chan struct{}, 1)
	require.NoError(t, sched.RegisterTask(scheduler.TaskConfig{
		ID:   "cache-prune",
		Name: "Cache Prune",
		Cron: "*/5 * * * *",
		Func: func(context.Context) error {
			ran <- struct{}{}
			return nil
		},
	}))

	e := echo.New()
	NewSchedulerHandler(sched).RegisterRoutes(e.Group("/scheduler/tasks"))
	return e, ran
}

func TestSchedulerHandler_ListTasks(t *testing.T) {
	e, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/scheduler/tasks", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var tasks []scheduler.TaskInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tasks))
	require.Len(t, tasks, 1)
	assert.Equal(t, "cache-prune", tasks[0].ID)
}

func TestSchedulerHandler_GetTaskNotFound(t *testing.T) {
	e, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/scheduler/tasks/unknown", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSchedulerHandler_RunTask(t *testing.T) {
	e, ran := newTestHandler(t)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/scheduler/tasks/cache-prune/run", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)
	<-ran

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/scheduler/tasks/unknown/run", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type stubRunner struct {
	runErr error
}

func (stubRunner) ListTasks() []scheduler.TaskInfo { return nil }

func (stubRunner) GetTask(string) (*scheduler.TaskInfo, error) {
	return &scheduler.TaskInfo{ID: "cache-prune"}, nil
}

func (s stubRunner) RunNow(string) error { return s.runErr }

func TestSchedulerHandler_RunTaskErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"already running", fmt.Errorf("%w: %q", scheduler.ErrTaskRunning, "cache-prune"), http.StatusConflict},
		{"unknown", fmt.Errorf("%w: %q", scheduler.ErrTaskNotFound, "cache-prune"), http.StatusNotFound},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			NewSchedulerHandler(stubRunner{runErr: tt.err}).RegisterRoutes(e.Group("/scheduler/tasks"))

			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/scheduler/tasks/cache-prune/run", nil))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
