package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"atelier/internal/errclass"
	"atelier/internal/models"
	"atelier/internal/orders"
)

// WorkNotifier wakes the worker pool after new work is enqueued.
type WorkNotifier interface {
	Poke()
}

// OrderHandler exposes order placement and inspection.
type OrderHandler struct {
	orders   *orders.Service
	notifier WorkNotifier
	logger   *zap.Logger
}

func NewOrderHandler(orderSvc *orders.Service, notifier WorkNotifier, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{orders: orderSvc, notifier: notifier, logger: logger}
}

// Create handles POST /api/orders.
func (h *OrderHandler) Create(c echo.Context) error {
	var in orders.PlaceInput
	if err := c.Bind(&in); err != nil {
		return errorResponse(c, http.StatusBadRequest, "Invalid request body")
	}

	order, err := h.orders.Place(in)
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, err.Error())
	}

	if h.notifier != nil {
		h.notifier.Poke()
	}
	return successResponse(c, http.StatusCreated, "Order placed", orderView(order))
}

// List handles GET /api/orders. It returns active orders only; finished
// orders are fetched individually by id or reference.
func (h *OrderHandler) List(c echo.Context) error {
	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return errorResponse(c, http.StatusBadRequest, "Invalid limit")
		}
		limit = n
	}

	active, err := h.orders.ListActive(limit)
	if err != nil {
		h.logger.Error("Failed to list orders", zap.Error(err))
		return errorResponse(c, http.StatusInternalServerError, "Failed to list orders")
	}

	views := make([]orderSummary, 0, len(active))
	for i := range active {
		views = append(views, summarize(&active[i]))
	}
	return successResponse(c, http.StatusOK, "Successful", views)
}

// Get handles GET /api/orders/:id. The path segment may be the order id
// or its reference.
func (h *OrderHandler) Get(c echo.Context) error {
	order, err := h.orders.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errorResponse(c, http.StatusNotFound, "Order not found")
		}
		h.logger.Error("Failed to load order", zap.String("order_id", c.Param("id")), zap.Error(err))
		return errorResponse(c, http.StatusInternalServerError, "Failed to retrieve order")
	}
	return successResponse(c, http.StatusOK, "Successful", orderView(order))
}

// Cancel handles POST /api/orders/:id/cancel.
func (h *OrderHandler) Cancel(c echo.Context) error {
	if err := h.orders.Cancel(c.Param("id")); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errorResponse(c, http.StatusNotFound, "Order not found")
		}
		h.logger.Error("Failed to cancel order", zap.String("order_id", c.Param("id")), zap.Error(err))
		return errorResponse(c, http.StatusInternalServerError, "Failed to cancel order")
	}
	return successResponse(c, http.StatusOK, "Order cancelled", nil)
}

type orderSummary struct {
	ID        string             `json:"id"`
	Reference string             `json:"reference"`
	Provider  string             `json:"provider"`
	Model     string             `json:"model"`
	Status    models.OrderStatus `json:"status"`
	CreatedAt time.Time          `json:"created_at"`
}

func summarize(order *models.Order) orderSummary {
	return orderSummary{
		ID:        order.ID,
		Reference: order.Reference,
		Provider:  order.Provider,
		Model:     order.ModelName,
		Status:    order.Status,
		CreatedAt: order.CreatedAt,
	}
}

type itemView struct {
	ID          uint                  `json:"id"`
	Prompt      string                `json:"prompt"`
	Status      models.ItemStatus     `json:"status"`
	RetryCount  int                   `json:"retry_count"`
	Artifacts   []models.Artifact     `json:"artifacts,omitempty"`
	Error       *errclass.UserMessage `json:"error,omitempty"`
	CompletedAt *time.Time            `json:"completed_at,omitempty"`
}

type orderViewBody struct {
	ID          string             `json:"id"`
	Reference   string             `json:"reference"`
	Provider    string             `json:"provider"`
	Model       string             `json:"model"`
	Status      models.OrderStatus `json:"status"`
	Items       []itemView         `json:"items"`
	CreatedAt   time.Time          `json:"created_at"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
}

// orderView renders an order for API consumers. Raw provider error text
// never leaves the system; failed items carry the user-facing message for
// their category instead.
func orderView(order *models.Order) orderViewBody {
	view := orderViewBody{
		ID:          order.ID,
		Reference:   order.Reference,
		Provider:    order.Provider,
		Model:       order.ModelName,
		Status:      order.Status,
		Items:       make([]itemView, 0, len(order.Items)),
		CreatedAt:   order.CreatedAt,
		CompletedAt: order.CompletedAt,
	}
	for _, item := range order.Items {
		iv := itemView{
			ID:          item.ID,
			Prompt:      item.Prompt,
			Status:      item.Status,
			RetryCount:  item.RetryCount,
			Artifacts:   item.Artifacts,
			CompletedAt: item.CompletedAt,
		}
		if item.Status == models.ItemFailed || item.Status == models.ItemExhausted {
			msg := errclass.ForUser(errclass.Category(item.ErrorCategory))
			iv.Error = &msg
		}
		view.Items = append(view.Items, iv)
	}
	return view
}
