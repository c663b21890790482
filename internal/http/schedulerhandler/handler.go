package schedulerhandler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"shopauctions/internal/scheduler"
)

// Handler exposes the scheduler's status and start/stop controls. The
// base context outlives individual requests, so restarted loops are
// tied to process shutdown rather than to the request that started
// them.
type Handler struct {
	sched   *scheduler.Scheduler
	baseCtx context.Context
}

func New(baseCtx context.Context, sched *scheduler.Scheduler) *Handler {
	return &Handler{sched: sched, baseCtx: baseCtx}
}

func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/scheduler", h.status)
	r.POST("/scheduler/start", h.start)
	r.POST("/scheduler/stop", h.stop)
	r.POST("/scheduler/tasks/:name/run", h.run)
}

// @Summary		Scheduler status
// @Description	Reports whether the periodic tasks are scheduled and which are executing right now.
// @Tags			Scheduler
// @Success		200	{object}	scheduler.Status
// @Router			/scheduler [get]
func (h *Handler) status(ginCtx *gin.Context) {
	ginCtx.JSON(http.StatusOK, h.sched.Status())
}

// @Summary		Start the scheduler
// @Tags			Scheduler
// @Success		202
// @Router			/scheduler/start [post]
func (h *Handler) start(ginCtx *gin.Context) {
	h.sched.Start(h.baseCtx)
	ginCtx.Status(http.StatusAccepted)
}

// @Summary		Stop the scheduler
// @Tags			Scheduler
// @Success		202
// @Router			/scheduler/stop [post]
func (h *Handler) stop(ginCtx *gin.Context) {
	h.sched.Stop()
	ginCtx.Status(http.StatusAccepted)
}

// @Summary		Run a task now
// @Description	Runs one periodic task out of schedule. A task that is unknown or already executing is reported as a conflict.
// @Tags			Scheduler
// @Param			name	path	string	true	"Task name"
// @Success		202
// @Failure		409
// @Router			/scheduler/tasks/{name}/run [post]
func (h *Handler) run(ginCtx *gin.Context) {
	if !h.sched.Trigger(ginCtx.Request.Context(), ginCtx.Param("name")) {
		ginCtx.Status(http.StatusConflict)
		return
	}
	ginCtx.Status(http.StatusAccepted)
}
