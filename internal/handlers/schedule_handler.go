package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "finpanel/internal/errors"
	"finpanel/internal/notify"
	"finpanel/internal/services"
)

// ScheduleHandler exposes a manual trigger for the scheduled payment runner.
type ScheduleHandler struct {
	schedulerService services.SchedulerServicer
	notifier         notify.Notifier
	now              func() time.Time
}

// NewScheduleHandler creates a new ScheduleHandler.
func NewScheduleHandler(schedulerService services.SchedulerServicer, notifier notify.Notifier) *ScheduleHandler {
	if notifier == nil {
		notifier = notify.NoopNotifier{}
	}
	return &ScheduleHandler{schedulerService: schedulerService, notifier: notifier, now: time.Now}
}

// RunSchedule executes the scheduled transactions due on the given day
// @Summary     Run scheduled payments
// @Description Execute every scheduled transaction dated on the given day (default today, future days are rejected). Failed candidates stay scheduled and are listed in the report.
// @Tags        schedule
// @Produce     json
// @Security    BearerAuth
// @Param       date query string false "Day to run (YYYY-MM-DD, default today)"
// @Success     200 {object} services.ScheduleReport "Run report"
// @Failure     400 {object} ErrorResponse "Invalid or future date"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /schedule/run [post]
func (h *ScheduleHandler) RunSchedule(c *gin.Context) {
	ctx, err := requireActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	now := h.now()
	if v := c.Query("date"); v != "" {
		day, err := time.ParseInLocation(time.DateOnly, v, now.Location())
		if err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid date format, use YYYY-MM-DD"))
			return
		}
		y, m, d := now.Date()
		if day.After(time.Date(y, m, d, 0, 0, 0, 0, now.Location())) {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "cannot run scheduled payments for a future date"))
			return
		}
		now = day
	}

	report, err := h.schedulerService.RunDue(ctx, now)
	if err != nil {
		respondWithError(c, err)
		return
	}

	if report.ShouldNotify {
		NotifyScheduleReport(ctx, h.notifier, report)
	}

	c.JSON(http.StatusOK, report)
}

// NotifyScheduleReport sends the outcome of a scheduled run. It is shared by
// the HTTP trigger and the scheduler worker.
func NotifyScheduleReport(ctx context.Context, n notify.Notifier, report *services.ScheduleReport) {
	body := fmt.Sprintf("%d of %d scheduled transactions executed on %s", report.Executed, report.Total, report.Date)
	for _, f := range report.Failures {
		body += "\n" + f.Message
	}
	dispatch(ctx, n, notify.Message{
		Kind:    notify.KindScheduledRun,
		Success: report.Succeeded(),
		Title:   "Scheduled payments",
		Body:    body,
		Data:    report,
	})
}
