package models

import "time"

// OrderStatus is the aggregate status of an order. It is derived from the
// statuses of the order's items and never written directly, except at
// creation (pending) and cancellation.
type OrderStatus string

const (
	OrderPending            OrderStatus = "pending"
	OrderProcessing         OrderStatus = "processing"
	OrderCompleted          OrderStatus = "completed"
	OrderFailed             OrderStatus = "failed"
	OrderPartiallyCompleted OrderStatus = "partially_completed"
	OrderCancelled          OrderStatus = "cancelled"
)

// Order maps to the `orders` table. An order owns one or more generation
// items and records which provider was chosen for it at creation time.
type Order struct {
	ID                string      `gorm:"column:id;primaryKey;size:36" json:"id"`
	Reference         string      `gorm:"column:reference;size:64;uniqueIndex:idx_orders_reference" json:"reference"`
	Provider          string      `gorm:"column:provider;size:32" json:"provider"`
	ModelName         string      `gorm:"column:model_name;size:255" json:"model_name"`
	DefaultParameters string      `gorm:"column:default_parameters;type:text" json:"default_parameters"`
	Status            OrderStatus `gorm:"column:status;size:30;index:idx_orders_status" json:"status"`
	CreatedAt         time.Time   `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time   `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
	CompletedAt       *time.Time  `gorm:"column:completed_at" json:"completed_at,omitempty"`

	Items []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

func (Order) TableName() string {
	return "orders"
}

// Terminal reports whether the order has reached a final aggregate state.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderCompleted, OrderFailed, OrderPartiallyCompleted, OrderCancelled:
		return true
	}
	return false
}
