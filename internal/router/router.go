package router

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"atelier/internal/config"
	"atelier/internal/handler/api"
	"atelier/internal/middleware"
	"atelier/internal/orders"
	"atelier/internal/repository"
)

// Setup configures all routes for the Echo server.
func Setup(
	e *echo.Echo,
	db *gorm.DB,
	cfg *config.Config,
	orderSvc *orders.Service,
	notifier api.WorkNotifier,
	deduper middleware.Deduper,
	logger *zap.Logger,
) {
	// Global middleware
	e.Use(echomw.Recover())
	e.Use(middleware.CORS())

	orderHandler := api.NewOrderHandler(orderSvc, notifier, logger)
	workerHandler := api.NewWorkerHandler(
		repository.NewWorkerRepository(db),
		repository.NewOrderItemRepository(db),
		cfg.Foreman.StallThreshold,
		logger,
	)

	// API group with auth
	apiGroup := e.Group("/api")
	apiGroup.Use(middleware.APIAuth(cfg.API.Key))

	apiGroup.POST("/orders", orderHandler.Create, middleware.Idempotency(deduper))
	apiGroup.GET("/orders", orderHandler.List)
	apiGroup.GET("/orders/:id", orderHandler.Get)
	apiGroup.POST("/orders/:id/cancel", orderHandler.Cancel)
	apiGroup.GET("/workers", workerHandler.List)

	// Health check
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
}
