package orders

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"atelier/internal/models"
	"atelier/internal/provider"
	"atelier/internal/repository"
)

// ItemInput is one requested generation within a new order.
type ItemInput struct {
	Prompt         string                 `json:"prompt"`
	NegativePrompt string                 `json:"negative_prompt"`
	Parameters     map[string]interface{} `json:"parameters"`
	BatchSize      int                    `json:"batch_size"`
	Quantity       int                    `json:"quantity"`
}

// PlaceInput is a request to create a new order.
type PlaceInput struct {
	Reference         string                 `json:"reference"`
	Provider          string                 `json:"provider"`
	ModelName         string                 `json:"model"`
	DefaultParameters map[string]interface{} `json:"default_parameters"`
	Items             []ItemInput            `json:"items"`
}

// Service creates orders and keeps their aggregate status current.
type Service struct {
	orderRepo *repository.OrderRepository
	itemRepo  *repository.OrderItemRepository
	logger    *zap.Logger
}

func NewService(orderRepo *repository.OrderRepository, itemRepo *repository.OrderItemRepository, logger *zap.Logger) *Service {
	return &Service{
		orderRepo: orderRepo,
		itemRepo:  itemRepo,
		logger:    logger,
	}
}

// Place validates and creates an order with its items. The provider is
// resolved once here and stored on the order; nothing downstream ever
// dispatches on a raw string again.
func (s *Service) Place(in PlaceInput) (*models.Order, error) {
	name, err := provider.ParseName(in.Provider)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.ModelName) == "" {
		return nil, errors.New("model is required")
	}
	if len(in.Items) == 0 {
		return nil, errors.New("order needs at least one item")
	}

	reference := strings.TrimSpace(in.Reference)
	if reference == "" {
		reference = "ord-" + uuid.New().String()[:8]
	}

	defaults, err := marshalParams(in.DefaultParameters)
	if err != nil {
		return nil, fmt.Errorf("invalid default_parameters: %w", err)
	}

	order := &models.Order{
		Reference:         reference,
		Provider:          string(name),
		ModelName:         in.ModelName,
		DefaultParameters: defaults,
		Status:            models.OrderPending,
	}

	items := make([]models.OrderItem, 0, len(in.Items))
	for i, it := range in.Items {
		if strings.TrimSpace(it.Prompt) == "" {
			return nil, fmt.Errorf("item %d: prompt is required", i)
		}
		params, err := marshalParams(it.Parameters)
		if err != nil {
			return nil, fmt.Errorf("item %d: invalid parameters: %w", i, err)
		}
		items = append(items, models.OrderItem{
			Prompt:         it.Prompt,
			NegativePrompt: it.NegativePrompt,
			Parameters:     params,
			Status:         models.ItemPending,
			MaxRetries:     models.DefaultMaxRetries,
			BatchSize:      it.BatchSize,
			TotalQuantity:  it.Quantity,
		})
	}

	if err := s.orderRepo.CreateWithItems(order, items); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	s.logger.Info("Order placed",
		zap.String("event_type", "order_placed"),
		zap.String("order_id", order.ID),
		zap.String("provider", order.Provider),
		zap.String("model", order.ModelName),
		zap.Int("items", len(items)),
	)
	return order, nil
}

// Get loads an order with items and artifacts. The key may be either the
// order ID or its human-facing reference.
func (s *Service) Get(key string) (*models.Order, error) {
	order, err := s.orderRepo.FindByID(key)
	if err == nil {
		return order, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	byRef, refErr := s.orderRepo.FindByReference(key)
	if refErr != nil {
		return nil, err
	}
	return s.orderRepo.FindByID(byRef.ID)
}

// ListActive returns orders still waiting on work, oldest first.
func (s *Service) ListActive(limit int) ([]models.Order, error) {
	return s.orderRepo.FindActive(limit)
}

// Cancel cancels an order and its still-pending work.
func (s *Service) Cancel(orderID string) error {
	if err := s.orderRepo.Cancel(orderID); err != nil {
		return err
	}
	s.logger.Info("Order cancelled",
		zap.String("event_type", "order_cancelled"),
		zap.String("order_id", orderID),
	)
	return nil
}

// Refresh re-derives the aggregate status of an order from its items and
// persists it when it changed. Deriving is idempotent; calling Refresh
// twice with unchanged items writes the same status both times.
// Cancelled orders are left alone.
func (s *Service) Refresh(orderID string) error {
	order, err := s.orderRepo.FindByID(orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if order.Status == models.OrderCancelled {
		return nil
	}

	status, ok := DeriveStatus(order.Items)
	if !ok || status == order.Status {
		return nil
	}

	if err := s.orderRepo.UpdateStatus(order.ID, status); err != nil {
		return err
	}

	s.logger.Info("Order status changed",
		zap.String("event_type", "order_status_changed"),
		zap.String("order_id", order.ID),
		zap.String("from", string(order.Status)),
		zap.String("to", string(status)),
	)
	return nil
}

func marshalParams(params map[string]interface{}) (string, error) {
	if len(params) == 0 {
		return "{}", nil
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
