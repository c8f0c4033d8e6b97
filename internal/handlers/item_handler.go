package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "finpanel/internal/errors"
	"finpanel/internal/models"
	"finpanel/internal/pagination"
	"finpanel/internal/services"
)

// ItemHandler handles the item catalog and transaction line items.
type ItemHandler struct {
	itemService services.ItemServicer
}

// NewItemHandler creates a new ItemHandler.
func NewItemHandler(itemService services.ItemServicer) *ItemHandler {
	return &ItemHandler{itemService: itemService}
}

// CreateItemRequest represents the request payload for a catalog item
type CreateItemRequest struct {
	Name  string          `json:"name" binding:"required,min=1,max=200"`
	Type  models.ItemType `json:"type" binding:"required,item_type"`
	Price int64           `json:"price" binding:"gte=0"`
}

// AttachItemRequest attaches a catalog item, or creates one when ItemID is empty.
type AttachItemRequest struct {
	ItemID   string          `json:"item_id"`
	Name     string          `json:"name" binding:"required_without=ItemID,max=200"`
	Type     models.ItemType `json:"type" binding:"required_without=ItemID"`
	Price    int64           `json:"price" binding:"gte=0"`
	Quantity int             `json:"quantity" binding:"required,gte=1"`
}

// UpdateAttachedItemRequest changes the price and quantity of a line item.
type UpdateAttachedItemRequest struct {
	Price    int64 `json:"price" binding:"gte=0"`
	Quantity int   `json:"quantity" binding:"required,gte=1"`
}

// CreateItem handles the creation of a catalog item
// @Summary     Create an item
// @Tags        items
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateItemRequest true "Item details"
// @Success     201 {object} models.Item "Item created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Router      /items [post]
func (h *ItemHandler) CreateItem(c *gin.Context) {
	ctx, err := requireActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	item, err := h.itemService.CreateItem(ctx, req.Name, req.Type, req.Price)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"item": item})
}

// GetItems handles listing the item catalog
// @Summary     List items
// @Tags        items
// @Produce     json
// @Security    BearerAuth
// @Param       page      query int false "Page number (default 1)"
// @Param       page_size query int false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.Item] "Paginated items"
// @Router      /items [get]
func (h *ItemHandler) GetItems(c *gin.Context) {
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

	result, err := h.itemService.GetItems(ctx, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetItemByID handles the retrieval of a catalog item
// @Summary     Get item by ID
// @Tags        items
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Item ID"
// @Success     200 {object} models.Item "Item details"
// @Failure     404 {object} ErrorResponse "Item not found"
// @Router      /items/{id} [get]
func (h *ItemHandler) GetItemByID(c *gin.Context) {
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

	item, err := h.itemService.GetItemByID(ctx, id)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"item": item})
}

// GetAttachedItems handles listing a transaction's line items
// @Summary     List line items
// @Tags        items
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Transaction ID"
// @Success     200 {array} models.TransactionItem "Line items"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Router      /transactions/{id}/items [get]
func (h *ItemHandler) GetAttachedItems(c *gin.Context) {
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

	items, err := h.itemService.GetAttachedItems(ctx, id)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

// AttachItem handles attaching a line item to a transaction
// @Summary     Attach line item
// @Description Attach a catalog item (item_id) or create and attach a new one (name, type). The transaction amount grows by price × quantity.
// @Tags        items
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string            true "Transaction ID"
// @Param       request body AttachItemRequest true "Line item"
// @Success     201 {object} models.TransactionItem "Attached line item"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Transaction or item not found"
// @Failure     409 {object} ErrorResponse "Item already attached"
// @Router      /transactions/{id}/items [post]
func (h *ItemHandler) AttachItem(c *gin.Context) {
	ctx, err := requireActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	transactionID, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req AttachItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	var line *models.TransactionItem
	if req.ItemID != "" {
		line, err = h.itemService.AttachItem(ctx, transactionID, req.ItemID, req.Price, req.Quantity)
	} else {
		line, err = h.itemService.AttachNewItem(ctx, transactionID, req.Name, req.Type, req.Price, req.Quantity)
	}
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"item": line})
}

// UpdateAttachedItem handles repricing a line item
// @Summary     Update line item
// @Tags        items
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string                    true "Transaction ID"
// @Param       item_id path string                    true "Item ID"
// @Param       request body UpdateAttachedItemRequest true "New price and quantity"
// @Success     200 {object} models.TransactionItem "Updated line item"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Item not attached"
// @Router      /transactions/{id}/items/{item_id} [put]
func (h *ItemHandler) UpdateAttachedItem(c *gin.Context) {
	ctx, err := requireActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	transactionID, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}
	itemID, err := pathID(c, "item_id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateAttachedItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	line, err := h.itemService.UpdateAttachedItem(ctx, transactionID, itemID, req.Price, req.Quantity)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"item": line})
}

// DetachItem handles removing a line item from a transaction
// @Summary     Detach line item
// @Tags        items
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string true "Transaction ID"
// @Param       item_id path string true "Item ID"
// @Success     200 {object} MessageResponse "Line item detached"
// @Failure     404 {object} ErrorResponse "Item not attached"
// @Router      /transactions/{id}/items/{item_id} [delete]
func (h *ItemHandler) DetachItem(c *gin.Context) {
	ctx, err := requireActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	transactionID, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}
	itemID, err := pathID(c, "item_id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.itemService.DetachItem(ctx, transactionID, itemID); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Item detached successfully"})
}
