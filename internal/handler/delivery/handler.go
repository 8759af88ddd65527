package delivery

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/notifier/internal/handler"
	"github.com/jwalitptl/notifier/internal/model"
	"github.com/jwalitptl/notifier/internal/repository"
	deliveryService "github.com/jwalitptl/notifier/internal/service/delivery"
	apperrors "github.com/jwalitptl/notifier/pkg/errors"
)

const defaultLimit = 50

// Queue is the part of the delivery queue exposed to operators.
type Queue interface {
	List(ctx context.Context, filter repository.DeliveryFilter) ([]*model.DeliveryItem, error)
	Get(ctx context.Context, id uuid.UUID) (*model.DeliveryItem, error)
	Reset(ctx context.Context, id uuid.UUID) (*model.DeliveryItem, error)
	Publish(ctx context.Context, b deliveryService.Bulletin) (*model.DeliveryItem, error)
}

type Handler struct {
	queue Queue
}

func NewHandler(queue Queue) *Handler {
	return &Handler{queue: queue}
}

// RegisterRoutes mounts the read endpoints on r and the state-changing ones
// on operate.
func (h *Handler) RegisterRoutes(r, operate *gin.RouterGroup) {
	deliveries := r.Group("/deliveries")
	{
		deliveries.GET("", h.ListDeliveries)
		deliveries.GET("/:id", h.GetDelivery)
	}
	operate.POST("/deliveries/:id/reset", h.ResetDelivery)
	operate.POST("/bulletins", h.PublishBulletin)
}

func (h *Handler) ListDeliveries(c *gin.Context) {
	var filter repository.DeliveryFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		_ = c.Error(apperrors.BadRequest("invalid query parameters", err))
		return
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}

	items, err := h.queue.List(c.Request.Context(), filter)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(handler.ListResponse{
		Items:  items,
		Count:  len(items),
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}))
}

func (h *Handler) GetDelivery(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	item, err := h.queue.Get(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(item))
}

// ResetDelivery returns a failed or stuck item to the queue.
func (h *Handler) ResetDelivery(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	item, err := h.queue.Reset(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(item))
}

func (h *Handler) PublishBulletin(c *gin.Context) {
	var req deliveryService.Bulletin
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.BadRequest("invalid bulletin", err))
		return
	}

	item, err := h.queue.Publish(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(item))
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		_ = c.Error(apperrors.BadRequest("invalid delivery item ID", err))
		return uuid.Nil, false
	}
	return id, true
}
