package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"atelier/internal/models"
	"atelier/internal/repository"
)

// WorkerHandler exposes the live worker registry and queue counts.
type WorkerHandler struct {
	workRepo       *repository.WorkerRepository
	itemRepo       *repository.OrderItemRepository
	stallThreshold time.Duration
	logger         *zap.Logger
}

func NewWorkerHandler(
	workRepo *repository.WorkerRepository,
	itemRepo *repository.OrderItemRepository,
	stallThreshold time.Duration,
	logger *zap.Logger,
) *WorkerHandler {
	return &WorkerHandler{
		workRepo:       workRepo,
		itemRepo:       itemRepo,
		stallThreshold: stallThreshold,
		logger:         logger,
	}
}

// List handles GET /api/workers.
func (h *WorkerHandler) List(c echo.Context) error {
	workers, err := h.workRepo.FindAll()
	if err != nil {
		h.logger.Error("Failed to list workers", zap.Error(err))
		return errorResponse(c, http.StatusInternalServerError, "Failed to retrieve workers")
	}

	counts, err := h.itemRepo.CountByStatus(
		models.ItemPending, models.ItemAssigned, models.ItemProcessing,
	)
	if err != nil {
		h.logger.Error("Failed to count queue", zap.Error(err))
		return errorResponse(c, http.StatusInternalServerError, "Failed to retrieve queue counts")
	}

	now := time.Now()
	views := make([]map[string]interface{}, 0, len(workers))
	for _, w := range workers {
		views = append(views, map[string]interface{}{
			"id":              w.ID,
			"name":            w.Name,
			"pid":             w.ProcessID,
			"status":          w.Status,
			"items_processed": w.ItemsProcessed,
			"items_failed":    w.ItemsFailed,
			"last_heartbeat":  w.LastHeartbeat,
			"stalled":         w.Stalled(h.stallThreshold, now),
		})
	}

	return successResponse(c, http.StatusOK, "Successful", map[string]interface{}{
		"workers": views,
		"queue": map[string]int64{
			"pending":    counts[models.ItemPending],
			"assigned":   counts[models.ItemAssigned],
			"processing": counts[models.ItemProcessing],
		},
	})
}
