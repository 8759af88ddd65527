package jobs

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/notifier/internal/handler"
	"github.com/jwalitptl/notifier/internal/jobs"
	apperrors "github.com/jwalitptl/notifier/pkg/errors"
)

type Runner interface {
	RunNow(ctx context.Context, name string) (interface{}, error)
}

type Handler struct {
	runner Runner
}

func NewHandler(runner Runner) *Handler {
	return &Handler{runner: runner}
}

func (h *Handler) RegisterRoutes(operate *gin.RouterGroup) {
	operate.POST("/jobs/:name/run", h.RunJob)
}

// RunJob runs a job synchronously. Disconnecting interrupts the run between
// units of work.
func (h *Handler) RunJob(c *gin.Context) {
	name := c.Param("name")
	if name != jobs.JobEvaluate && name != jobs.JobDispatch {
		_ = c.Error(apperrors.NotFound("job "+name, nil))
		return
	}

	result, err := h.runner.RunNow(c.Request.Context(), name)
	if errors.Is(err, jobs.ErrLocked) {
		_ = c.Error(apperrors.Conflict("job "+name+" is already running", err))
		return
	}
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(result))
}
