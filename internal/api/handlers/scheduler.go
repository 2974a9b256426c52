package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/slipstream/mediabridge/internal/scheduler"
)

// TaskRunner is the part of the scheduler the maintenance routes use.
type TaskRunner interface {
	ListTasks() []scheduler.TaskInfo
	GetTask(taskID string) (*scheduler.TaskInfo, error)
	RunNow(taskID string) error
}

// SchedulerHandler serves the maintenance task routes.
type SchedulerHandler struct {
	tasks TaskRunner
}

func NewSchedulerHandler(tasks TaskRunner) *SchedulerHandler {
	return &SchedulerHandler{tasks: tasks}
}

// RegisterRoutes registers task routes on the given group.
func (h *SchedulerHandler) RegisterRoutes(g *echo.Group) {
	g.GET("", h.ListTasks)
	g.GET("/:id", h.GetTask)
	g.POST("/:id/run", h.RunTask)
}

// ListTasks returns every registered task ordered by id.
// GET /scheduler/tasks
func (h *SchedulerHandler) ListTasks(c echo.Context) error {
	return c.JSON(http.StatusOK, h.tasks.ListTasks())
}

// GetTask returns one task's schedule and last outcome.
// GET /scheduler/tasks/:id
func (h *SchedulerHandler) GetTask(c echo.Context) error {
	task, err := h.tasks.GetTask(c.Param("id"))
	if err != nil {
		return taskError(err)
	}
	return c.JSON(http.StatusOK, task)
}

// RunTask starts a task outside its schedule.
// POST /scheduler/tasks/:id/run
func (h *SchedulerHandler) RunTask(c echo.Context) error {
	id := c.Param("id")
	if err := h.tasks.RunNow(id); err != nil {
		return taskError(err)
	}
	return c.JSON(http.StatusAccepted, map[string]string{"taskId": id, "status": "started"})
}

func taskError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, scheduler.ErrTaskNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, scheduler.ErrTaskRunning):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error()).SetInternal(err)
	}
}
