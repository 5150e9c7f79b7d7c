package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	stockapp "github.com/shopcore/stockengine/internal/application/stock"
	"github.com/shopcore/stockengine/internal/infrastructure/scheduler"
	"github.com/shopcore/stockengine/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// ExpirySweeper runs one expiry sweep
type ExpirySweeper interface {
	Sweep(ctx context.Context) (*stockapp.SweepStats, error)
}

// OverdueReleaser releases reservations past their TTL
type OverdueReleaser interface {
	ReleaseOverdue(ctx context.Context) (*stockapp.ExpiredReservationStats, error)
}

// JobInspector exposes the last run of scheduled tasks
type JobInspector interface {
	LastRun(task string) (scheduler.JobRun, bool)
}

// AdminHandler lets operators run background passes on demand
type AdminHandler struct {
	BaseHandler
	sweeper   ExpirySweeper
	releaser  OverdueReleaser
	jobs      JobInspector
	sweepObs  scheduler.SweepObserver
	expiryObs scheduler.ReservationExpiryObserver
	logger    *zap.Logger
}

// AdminOption configures an AdminHandler
type AdminOption func(*AdminHandler)

// WithJobInspector exposes scheduler runs. Without it /admin/jobs answers 404.
func WithJobInspector(jobs JobInspector) AdminOption {
	return func(h *AdminHandler) { h.jobs = jobs }
}

// WithRunObservers records manual runs the same way scheduled ones are
func WithRunObservers(sweep scheduler.SweepObserver, expiry scheduler.ReservationExpiryObserver) AdminOption {
	return func(h *AdminHandler) {
		h.sweepObs = sweep
		h.expiryObs = expiry
	}
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(base BaseHandler, sweeper ExpirySweeper, releaser OverdueReleaser, logger *zap.Logger, opts ...AdminOption) *AdminHandler {
	h := &AdminHandler{
		BaseHandler: base,
		sweeper:     sweeper,
		releaser:    releaser,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RunExpirySweep godoc
// @ID           runExpirySweep
// @Summary      Run an expiry sweep now
// @Tags         admin
// @Produce      json
// @Success      200 {object} APIResponse[stockapp.SweepStats]
// @Failure      401 {object} ErrorResponse
// @Failure      403 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /admin/expiry-sweeps [post]
func (h *AdminHandler) RunExpirySweep(c *gin.Context) {
	ctx := c.Request.Context()
	stats, err := h.sweeper.Sweep(ctx)
	if err != nil {
		h.HandleError(c, "expiry_sweep", err)
		return
	}
	if h.sweepObs != nil {
		h.sweepObs.RecordSweep(ctx, stats.Expired, stats.ExpiredUnits, stats.Failed)
	}
	h.logger.Info("Manual expiry sweep finished",
		zap.String("actor_id", actorOf(c)),
		zap.Int("expired", stats.Expired),
		zap.Int64("expired_units", stats.ExpiredUnits),
	)
	h.Success(c, stats)
}

// RunReservationExpiry godoc
// @ID           runReservationExpiry
// @Summary      Release overdue reservations now
// @Tags         admin
// @Produce      json
// @Success      200 {object} APIResponse[stockapp.ExpiredReservationStats]
// @Security     BearerAuth
// @Router       /admin/reservation-expiry [post]
func (h *AdminHandler) RunReservationExpiry(c *gin.Context) {
	ctx := c.Request.Context()
	stats, err := h.releaser.ReleaseOverdue(ctx)
	if err != nil {
		h.HandleError(c, "reservation_expiry", err)
		return
	}
	if h.expiryObs != nil {
		h.expiryObs.RecordReservationExpiry(ctx, stats.SuccessReleased, stats.FailedReleases)
	}
	h.Success(c, stats)
}

// LastJobRun returns the last scheduled run of a task
// @ID           getLastJobRun
// @Tags         admin
// @Produce      json
// @Param        task path string true "expiry-sweep, reservation-expiry or stock-gauges"
// @Success      200 {object} APIResponse[scheduler.JobRun]
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /admin/jobs/{task} [get]
func (h *AdminHandler) LastJobRun(c *gin.Context) {
	if h.jobs == nil {
		h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, "Scheduler is not running")
		return
	}
	run, ok := h.jobs.LastRun(c.Param("task"))
	if !ok {
		h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, "No finished run for task")
		return
	}
	h.Success(c, run)
}
