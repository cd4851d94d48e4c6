package repository

import (
	"time"

	"gorm.io/gorm"

	"atelier/internal/errclass"
	"atelier/internal/models"
)

// OrderItemRepository owns the work-queue side of the order_items table:
// atomic claiming, the item state machine and the recovery resets used by
// the foreman.
type OrderItemRepository struct {
	db *gorm.DB
}

func NewOrderItemRepository(db *gorm.DB) *OrderItemRepository {
	return &OrderItemRepository{db: db}
}

// ClaimBatch atomically claims up to limit eligible items for a worker.
//
// Eligible work is fresh pending items (oldest first) followed by failed
// items that are retry-eligible: a retryable error category, retries
// left, and past their backoff deadline (oldest retry first). Each
// candidate is claimed with a guarded update so that two workers racing
// on the same row can never both win.
func (r *OrderItemRepository) ClaimBatch(workerID uint, limit int) ([]models.OrderItem, error) {
	if limit <= 0 {
		return nil, nil
	}

	var claimed []models.OrderItem
	now := time.Now()

	err := r.db.Transaction(func(tx *gorm.DB) error {
		var candidates []models.OrderItem
		if err := tx.Where("status = ?", models.ItemPending).
			Order("created_at ASC").
			Limit(limit).
			Find(&candidates).Error; err != nil {
			return err
		}

		if remaining := limit - len(candidates); remaining > 0 {
			var retries []models.OrderItem
			err := tx.Where(
				"status = ? AND retry_count < max_retries AND error_category IN ? AND (next_retry_at IS NULL OR next_retry_at <= ?)",
				models.ItemFailed, errclass.RetryableCategories(), now,
			).
				Order("last_retry_at ASC").
				Limit(remaining).
				Find(&retries).Error
			if err != nil {
				return err
			}
			candidates = append(candidates, retries...)
		}

		for _, item := range candidates {
			res := tx.Model(&models.OrderItem{}).
				Where("id = ? AND status = ? AND assigned_worker_id IS NULL", item.ID, item.Status).
				Updates(map[string]interface{}{
					"status":             models.ItemAssigned,
					"assigned_worker_id": workerID,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				// Lost the race to another worker.
				continue
			}

			item.Status = models.ItemAssigned
			item.AssignedWorkerID = &workerID
			claimed = append(claimed, item)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// MarkProcessing moves a claimed item from assigned to processing.
func (r *OrderItemRepository) MarkProcessing(itemID, workerID uint) error {
	now := time.Now()
	return r.db.Model(&models.OrderItem{}).
		Where("id = ? AND status = ? AND assigned_worker_id = ?", itemID, models.ItemAssigned, workerID).
		Updates(map[string]interface{}{
			"status":     models.ItemProcessing,
			"started_at": now,
		}).Error
}

// MarkCompleted finishes a processed item and records its artifacts in
// one transaction.
func (r *OrderItemRepository) MarkCompleted(itemID, workerID uint, artifacts []models.Artifact) error {
	now := time.Now()
	return r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.OrderItem{}).
			Where("id = ? AND status = ? AND assigned_worker_id = ?", itemID, models.ItemProcessing, workerID).
			Updates(map[string]interface{}{
				"status":             models.ItemCompleted,
				"assigned_worker_id": nil,
				"completed_at":       now,
				"batches_completed":  gorm.Expr("batches_completed + 1"),
				"error_message":      "",
				"error_category":     "",
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		for i := range artifacts {
			artifacts[i].OrderItemID = itemID
		}
		if len(artifacts) == 0 {
			return nil
		}
		return tx.Create(&artifacts).Error
	})
}

// MarkFailed records a permanent, non-retryable failure. The item stays
// failed and is never claimed again.
func (r *OrderItemRepository) MarkFailed(itemID, workerID uint, message string, category errclass.Category) error {
	return r.db.Model(&models.OrderItem{}).
		Where("id = ? AND status IN ? AND assigned_worker_id = ?",
			itemID, []models.ItemStatus{models.ItemAssigned, models.ItemProcessing}, workerID).
		Updates(map[string]interface{}{
			"status":             models.ItemFailed,
			"assigned_worker_id": nil,
			"error_message":      message,
			"error_category":     string(category),
		}).Error
}

// MarkExhausted records a failure on an item that is out of retries.
// Exhausted is terminal.
func (r *OrderItemRepository) MarkExhausted(itemID, workerID uint, message string, category errclass.Category) error {
	return r.db.Model(&models.OrderItem{}).
		Where("id = ? AND status IN ? AND assigned_worker_id = ?",
			itemID, []models.ItemStatus{models.ItemAssigned, models.ItemProcessing}, workerID).
		Updates(map[string]interface{}{
			"status":             models.ItemExhausted,
			"assigned_worker_id": nil,
			"error_message":      message,
			"error_category":     string(category),
		}).Error
}

// ResetForRetry records a retryable failure and makes the item claimable
// again once nextRetryAt passes. The retry counter advances, the worker
// link and provider request id are cleared, and the failure text is kept
// for audit.
func (r *OrderItemRepository) ResetForRetry(itemID, workerID uint, message string, category errclass.Category, nextRetryAt time.Time) error {
	now := time.Now()
	return r.db.Model(&models.OrderItem{}).
		Where("id = ? AND status IN ? AND assigned_worker_id = ?",
			itemID, []models.ItemStatus{models.ItemAssigned, models.ItemProcessing}, workerID).
		Updates(map[string]interface{}{
			"status":              models.ItemFailed,
			"assigned_worker_id":  nil,
			"retry_count":         gorm.Expr("retry_count + 1"),
			"last_retry_at":       now,
			"next_retry_at":       nextRetryAt,
			"provider_request_id": "",
			"error_message":       message,
			"error_category":      string(category),
		}).Error
}

// SetProviderRequestID stores the provider-side id for an in-flight call.
func (r *OrderItemRepository) SetProviderRequestID(itemID uint, requestID string) error {
	return r.db.Model(&models.OrderItem{}).
		Where("id = ?", itemID).
		Update("provider_request_id", requestID).Error
}

// ReleaseWorkerItems pushes every assigned/processing item held by a
// worker back to pending. Used by a worker's own crash cleanup and by
// the foreman when it reclaims a stalled worker.
func (r *OrderItemRepository) ReleaseWorkerItems(workerID uint) (int64, error) {
	res := r.db.Model(&models.OrderItem{}).
		Where("assigned_worker_id = ? AND status IN ?",
			workerID, []models.ItemStatus{models.ItemAssigned, models.ItemProcessing}).
		Updates(map[string]interface{}{
			"status":             models.ItemPending,
			"assigned_worker_id": nil,
		})
	return res.RowsAffected, res.Error
}

// ResetOrphans resets items that are assigned but have no worker — the
// leftover of a crash between claiming and processing.
func (r *OrderItemRepository) ResetOrphans() (int64, error) {
	res := r.db.Model(&models.OrderItem{}).
		Where("status = ? AND assigned_worker_id IS NULL", models.ItemAssigned).
		Update("status", models.ItemPending)
	return res.RowsAffected, res.Error
}

// FindByOrder returns all items of an order, oldest first.
func (r *OrderItemRepository) FindByOrder(orderID string) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := r.db.Where("order_id = ?", orderID).Order("id ASC").Find(&items).Error
	return items, err
}

// FindByID returns a single item.
func (r *OrderItemRepository) FindByID(itemID uint) (*models.OrderItem, error) {
	var item models.OrderItem
	if err := r.db.First(&item, itemID).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// CountByStatus returns the number of items in each of the given states.
func (r *OrderItemRepository) CountByStatus(statuses ...models.ItemStatus) (map[models.ItemStatus]int64, error) {
	counts := make(map[models.ItemStatus]int64, len(statuses))
	for _, status := range statuses {
		var n int64
		if err := r.db.Model(&models.OrderItem{}).Where("status = ?", status).Count(&n).Error; err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, nil
}

// HasClaimableWork reports whether any item could be claimed right now.
func (r *OrderItemRepository) HasClaimableWork() (bool, error) {
	var n int64
	now := time.Now()
	err := r.db.Model(&models.OrderItem{}).
		Where(
			"status = ? OR (status = ? AND retry_count < max_retries AND error_category IN ? AND (next_retry_at IS NULL OR next_retry_at <= ?))",
			models.ItemPending, models.ItemFailed, errclass.RetryableCategories(), now,
		).
		Count(&n).Error
	return n > 0, err
}
