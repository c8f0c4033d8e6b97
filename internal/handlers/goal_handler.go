package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "finpanel/internal/errors"
	"finpanel/internal/models"
	"finpanel/internal/money"
	"finpanel/internal/notify"
	"finpanel/internal/pagination"
	"finpanel/internal/services"
)

// GoalHandler handles payment goals and fund allocation.
type GoalHandler struct {
	goalService services.GoalServicer
	notifier    notify.Notifier
}

// NewGoalHandler creates a new GoalHandler.
func NewGoalHandler(goalService services.GoalServicer, notifier notify.Notifier) *GoalHandler {
	if notifier == nil {
		notifier = notify.NoopNotifier{}
	}
	return &GoalHandler{goalService: goalService, notifier: notifier}
}

// CreateGoalRequest represents the request payload for creating a payment goal
type CreateGoalRequest struct {
	Name         string  `json:"name" binding:"required,min=1,max=200"`
	Description  string  `json:"description" binding:"max=1000"`
	TargetAmount int64   `json:"target_amount" binding:"required,gt=0"`
	TargetDate   *string `json:"target_date"`
}

// UpdateGoalRequest represents the request payload for updating a payment goal.
// The contributed amount is not editable; see Allocate.
type UpdateGoalRequest struct {
	Name         *string `json:"name" binding:"omitempty,min=1,max=200"`
	Description  *string `json:"description" binding:"omitempty,max=1000"`
	TargetAmount *int64  `json:"target_amount" binding:"omitempty,gt=0"`
	TargetDate   *string `json:"target_date"`
}

// AllocateRequest moves funds from an account into a goal.
type AllocateRequest struct {
	AccountID string `json:"account_id" binding:"required"`
	Amount    int64  `json:"amount"`
}

// CreateGoal handles the creation of a payment goal
// @Summary     Create a payment goal
// @Tags        goals
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateGoalRequest true "Goal details"
// @Success     201 {object} models.PaymentGoal "Goal created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Router      /goals [post]
func (h *GoalHandler) CreateGoal(c *gin.Context) {
	ctx, err := requireActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateGoalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	targetDate, err := parseOptionalTime(req.TargetDate)
	if err != nil {
		respondWithError(c, err)
		return
	}

	goal, err := h.goalService.CreateGoal(ctx, req.Name, req.Description, req.TargetAmount, targetDate)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"goal": goal})
}

// GetGoals handles listing payment goals
// @Summary     List payment goals
// @Tags        goals
// @Produce     json
// @Security    BearerAuth
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Param       status    query string false "ongoing, overdue or completed"
// @Success     200 {object} pagination.PageResponse[models.PaymentGoal] "Paginated goals"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Router      /goals [get]
func (h *GoalHandler) GetGoals(c *gin.Context) {
	ctx, err := requireActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	var status *models.GoalStatus
	if v := c.Query("status"); v != "" {
		s := models.GoalStatus(v)
		switch s {
		case models.GoalStatusOngoing, models.GoalStatusOverdue, models.GoalStatusCompleted:
			status = &s
		default:
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid status, must be ongoing, overdue, or completed"))
			return
		}
	}

	result, err := h.goalService.GetGoals(ctx, page, status)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetGoalByID handles the retrieval of a payment goal
// @Summary     Get payment goal by ID
// @Tags        goals
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Goal ID"
// @Success     200 {object} models.PaymentGoal "Goal details"
// @Failure     404 {object} ErrorResponse "Goal not found"
// @Router      /goals/{id} [get]
func (h *GoalHandler) GetGoalByID(c *gin.Context) {
	ctx, err := requireActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	id, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	goal, err := h.goalService.GetGoalByID(ctx, id)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"goal": goal})
}

// UpdateGoal handles editing a payment goal's descriptive fields
// @Summary     Update payment goal
// @Tags        goals
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string            true "Goal ID"
// @Param       request body UpdateGoalRequest true "Fields to update"
// @Success     200 {object} models.PaymentGoal "Updated goal"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Goal not found"
// @Router      /goals/{id} [put]
func (h *GoalHandler) UpdateGoal(c *gin.Context) {
	ctx, err := requireActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	id, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateGoalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	targetDate, err := parseOptionalTime(req.TargetDate)
	if err != nil {
		respondWithError(c, err)
		return
	}

	goal, err := h.goalService.UpdateGoal(ctx, id, services.GoalUpdateFields{
		Name:         req.Name,
		Description:  req.Description,
		TargetAmount: req.TargetAmount,
		TargetDate:   targetDate,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"goal": goal})
}

// DeleteGoal handles soft-deleting a payment goal
// @Summary     Delete payment goal
// @Tags        goals
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Goal ID"
// @Success     200 {object} MessageResponse "Goal deleted"
// @Failure     404 {object} ErrorResponse "Goal not found"
// @Router      /goals/{id} [delete]
func (h *GoalHandler) DeleteGoal(c *gin.Context) {
	ctx, err := requireActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	id, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.goalService.DeleteGoal(ctx, id); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Goal deleted successfully"})
}

// RestoreGoal handles restoring a soft-deleted payment goal
// @Summary     Restore payment goal
// @Tags        goals
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Goal ID"
// @Success     200 {object} models.PaymentGoal "Restored goal"
// @Failure     404 {object} ErrorResponse "Goal not found"
// @Failure     409 {object} ErrorResponse "Goal is not deleted"
// @Router      /goals/{id}/restore [post]
func (h *GoalHandler) RestoreGoal(c *gin.Context) {
	ctx, err := requireActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	id, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	goal, err := h.goalService.RestoreGoal(ctx, id)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"goal": goal})
}

// Allocate handles moving funds from an account into a goal
// @Summary     Allocate funds to a goal
// @Description Debit an account with an expense and credit the goal's contributed amount in one database transaction
// @Tags        goals
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string          true "Goal ID"
// @Param       request body AllocateRequest true "Source account and amount"
// @Success     200 {object} services.AllocationResult "Updated goal and the expense transaction"
// @Failure     400 {object} ErrorResponse "Invalid amount, exceeds remaining or insufficient funds"
// @Failure     404 {object} ErrorResponse "Goal or account not found"
// @Failure     409 {object} ErrorResponse "Goal already complete"
// @Failure     500 {object} ErrorResponse "Allocation rolled back"
// @Router      /goals/{id}/allocate [post]
func (h *GoalHandler) Allocate(c *gin.Context) {
	ctx, err := requireActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	id, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req AllocateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.goalService.Allocate(ctx, id, req.AccountID, req.Amount)
	if err != nil {
		respondWithError(c, err)
		return
	}

	if result.ShouldNotify {
		g := result.Goal
		dispatch(ctx, h.notifier, notify.Message{
			Kind:      notify.KindAllocation,
			Success:   true,
			Title:     "Funds allocated",
			Body:      fmt.Sprintf("%s added to %s (%.2f%%)", money.Format(req.Amount), g.Name, g.ProgressPercent),
			SubjectID: g.ID,
			Data:      result,
		})
	}

	c.JSON(http.StatusOK, result)
}
