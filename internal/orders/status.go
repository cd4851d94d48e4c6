// Package orders owns order placement and the aggregate order status
// derived from item states.
package orders

import (
	"atelier/internal/errclass"
	"atelier/internal/models"
)

// DeriveStatus computes the aggregate status of an order from its items.
//
// The second return value is false when no status can be derived (an
// order with no items keeps whatever status it has).
//
// An order is still processing while any item can still make progress:
// pending, assigned, queued or processing items, and failed items that
// will be retried. Once every item is terminal, the outcome is completed
// (all items completed), partially_completed (some completed, some not)
// or failed (none completed). Partial success is always reported as
// partially_completed, never completed.
func DeriveStatus(items []models.OrderItem) (models.OrderStatus, bool) {
	if len(items) == 0 {
		return "", false
	}

	completed := 0
	active := false

	for _, item := range items {
		switch item.Status {
		case models.ItemCompleted:
			completed++
		case models.ItemPending, models.ItemAssigned, models.ItemQueued, models.ItemProcessing:
			active = true
		case models.ItemFailed:
			if retryEligible(item) {
				active = true
			}
		case models.ItemStalled:
			active = true
		}
	}

	if active {
		return models.OrderProcessing, true
	}
	if completed == len(items) {
		return models.OrderCompleted, true
	}
	if completed > 0 {
		return models.OrderPartiallyCompleted, true
	}
	return models.OrderFailed, true
}

func retryEligible(item models.OrderItem) bool {
	if item.RetryCount >= item.MaxRetries {
		return false
	}
	return errclass.Category(item.ErrorCategory).Retryable()
}
