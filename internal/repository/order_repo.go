package repository

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"atelier/internal/models"
)

// OrderRepository handles order rows and order-with-items creation.
type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// CreateWithItems inserts an order and its items in one transaction.
func (r *OrderRepository) CreateWithItems(order *models.Order, items []models.OrderItem) error {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	if order.Status == "" {
		order.Status = models.OrderPending
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(order).Error; err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}
		for i := range items {
			items[i].OrderID = order.ID
			if items[i].Status == "" {
				items[i].Status = models.ItemPending
			}
			if items[i].MaxRetries <= 0 {
				items[i].MaxRetries = models.DefaultMaxRetries
			}
			if items[i].BatchSize <= 0 {
				items[i].BatchSize = 1
			}
			if items[i].TotalQuantity <= 0 {
				items[i].TotalQuantity = items[i].BatchSize
			}
		}
		return tx.Create(&items).Error
	})
}

// FindByID loads an order with its items and artifacts.
func (r *OrderRepository) FindByID(orderID string) (*models.Order, error) {
	var order models.Order
	err := r.db.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("order_items.id ASC")
	}).Preload("Items.Artifacts").
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FindByReference loads an order by its human-facing reference.
func (r *OrderRepository) FindByReference(reference string) (*models.Order, error) {
	var order models.Order
	if err := r.db.Where("reference = ?", reference).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdateStatus writes a derived aggregate status. completedAt is only
// stamped when the order enters a terminal state and has none yet.
func (r *OrderRepository) UpdateStatus(orderID string, status models.OrderStatus) error {
	updates := map[string]interface{}{"status": status}
	if status.Terminal() {
		updates["completed_at"] = time.Now()
		return r.db.Model(&models.Order{}).
			Where("id = ? AND completed_at IS NULL", orderID).
			Updates(updates).Error
	}
	return r.db.Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(updates).Error
}

// Cancel marks the order and all its non-terminal items cancelled.
// Completed, exhausted and permanently failed items keep their state.
func (r *OrderRepository) Cancel(orderID string) error {
	now := time.Now()
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.OrderItem{}).
			Where("order_id = ? AND status IN ?", orderID, []models.ItemStatus{
				models.ItemPending, models.ItemAssigned, models.ItemQueued,
				models.ItemProcessing, models.ItemFailed, models.ItemStalled,
			}).
			Updates(map[string]interface{}{
				"status":             models.ItemCancelled,
				"assigned_worker_id": nil,
			}).Error; err != nil {
			return err
		}

		return tx.Model(&models.Order{}).
			Where("id = ?", orderID).
			Updates(map[string]interface{}{
				"status":       models.OrderCancelled,
				"completed_at": now,
			}).Error
	})
}

// FindActive returns orders that are not yet in a terminal state.
func (r *OrderRepository) FindActive(limit int) ([]models.Order, error) {
	var orders []models.Order
	q := r.db.Where("status IN ?", []models.OrderStatus{models.OrderPending, models.OrderProcessing}).
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&orders).Error
	return orders, err
}
