package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"atelier/internal/errclass"
	"atelier/internal/models"
)

func item(status models.ItemStatus) models.OrderItem {
	return models.OrderItem{Status: status, MaxRetries: models.DefaultMaxRetries}
}

func failedItem(category errclass.Category, retryCount int) models.OrderItem {
	return models.OrderItem{
		Status:        models.ItemFailed,
		ErrorCategory: string(category),
		RetryCount:    retryCount,
		MaxRetries:    models.DefaultMaxRetries,
	}
}

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		name   string
		items  []models.OrderItem
		want   models.OrderStatus
		wantOK bool
	}{
		{
			name:   "no items leaves order untouched",
			items:  nil,
			wantOK: false,
		},
		{
			name:   "all completed",
			items:  []models.OrderItem{item(models.ItemCompleted), item(models.ItemCompleted)},
			want:   models.OrderCompleted,
			wantOK: true,
		},
		{
			name:   "pending item keeps order processing",
			items:  []models.OrderItem{item(models.ItemCompleted), item(models.ItemPending)},
			want:   models.OrderProcessing,
			wantOK: true,
		},
		{
			name:   "assigned item keeps order processing",
			items:  []models.OrderItem{item(models.ItemAssigned)},
			want:   models.OrderProcessing,
			wantOK: true,
		},
		{
			name:   "retryable failure keeps order processing",
			items:  []models.OrderItem{item(models.ItemCompleted), failedItem(errclass.CategoryNetwork, 1)},
			want:   models.OrderProcessing,
			wantOK: true,
		},
		{
			name:   "retryable failure outranks finished items",
			items:  []models.OrderItem{item(models.ItemCompleted), item(models.ItemCompleted), failedItem(errclass.CategoryRateLimited, 0)},
			want:   models.OrderProcessing,
			wantOK: true,
		},
		{
			name:   "partial success",
			items:  []models.OrderItem{item(models.ItemCompleted), failedItem(errclass.CategoryValidation, 0)},
			want:   models.OrderPartiallyCompleted,
			wantOK: true,
		},
		{
			name: "partial batch outcome, two completed two permanently failed",
			items: []models.OrderItem{
				item(models.ItemCompleted), item(models.ItemCompleted),
				failedItem(errclass.CategoryValidation, 0), failedItem(errclass.CategoryContentPolicy, 0),
			},
			want:   models.OrderPartiallyCompleted,
			wantOK: true,
		},
		{
			name:   "exhausted with one success is partial",
			items:  []models.OrderItem{item(models.ItemCompleted), item(models.ItemExhausted)},
			want:   models.OrderPartiallyCompleted,
			wantOK: true,
		},
		{
			name:   "all failures",
			items:  []models.OrderItem{failedItem(errclass.CategoryAuthentication, 0), item(models.ItemExhausted)},
			want:   models.OrderFailed,
			wantOK: true,
		},
		{
			name:   "retries exhausted failure is terminal",
			items:  []models.OrderItem{failedItem(errclass.CategoryNetwork, models.DefaultMaxRetries)},
			want:   models.OrderFailed,
			wantOK: true,
		},
		{
			name:   "cancelled items with one success is partial",
			items:  []models.OrderItem{item(models.ItemCompleted), item(models.ItemCancelled)},
			want:   models.OrderPartiallyCompleted,
			wantOK: true,
		},
		{
			name:   "stalled item keeps order processing",
			items:  []models.OrderItem{item(models.ItemStalled)},
			want:   models.OrderProcessing,
			wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DeriveStatus(tt.items)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestDeriveStatusIsIdempotent(t *testing.T) {
	items := []models.OrderItem{
		item(models.ItemCompleted),
		failedItem(errclass.CategoryValidation, 0),
	}

	first, ok1 := DeriveStatus(items)
	second, ok2 := DeriveStatus(items)
	assert.Equal(t, ok1, ok2)
	assert.Equal(t, first, second)
}
