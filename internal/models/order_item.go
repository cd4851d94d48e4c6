package models

import "time"

// ItemStatus is the state of a single generation task.
//
// Lifecycle: pending -> assigned -> processing -> completed | failed.
// A failed item with a retryable error category and retries left is reset
// and re-claimed; once retries are exhausted it becomes exhausted
// (terminal). assigned/processing items whose worker stalls are pushed
// back to pending by the foreman.
type ItemStatus string

const (
	ItemPending    ItemStatus = "pending"
	ItemAssigned   ItemStatus = "assigned"
	ItemQueued     ItemStatus = "queued"
	ItemProcessing ItemStatus = "processing"
	ItemCompleted  ItemStatus = "completed"
	ItemFailed     ItemStatus = "failed"
	ItemExhausted  ItemStatus = "exhausted"
	ItemStalled    ItemStatus = "stalled"
	ItemCancelled  ItemStatus = "cancelled"
)

// DefaultMaxRetries bounds automatic retries per item.
const DefaultMaxRetries = 3

// OrderItem maps to the `order_items` table. One row is one generation
// call against a provider, possibly yielding a batch of artifacts.
//
// Invariant: AssignedWorkerID is non-null exactly when the status is
// assigned or processing.
type OrderItem struct {
	ID             uint       `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	OrderID        string     `gorm:"column:order_id;size:36;index:idx_order_items_order" json:"order_id"`
	Prompt         string     `gorm:"column:prompt;type:text" json:"prompt"`
	NegativePrompt string     `gorm:"column:negative_prompt;type:text" json:"negative_prompt"`
	Parameters     string     `gorm:"column:parameters;type:text" json:"parameters"`
	Status         ItemStatus `gorm:"column:status;size:30;index:idx_order_items_status" json:"status"`

	AssignedWorkerID *uint `gorm:"column:assigned_worker_id;index:idx_order_items_worker" json:"assigned_worker_id,omitempty"`

	RetryCount    int    `gorm:"column:retry_count;default:0" json:"retry_count"`
	MaxRetries    int    `gorm:"column:max_retries;default:3" json:"max_retries"`
	ErrorMessage  string `gorm:"column:error_message;type:text" json:"error_message"`
	ErrorCategory string `gorm:"column:error_category;size:40" json:"error_category"`

	ProviderRequestID string `gorm:"column:provider_request_id;size:255" json:"provider_request_id"`

	BatchSize        int `gorm:"column:batch_size;default:1" json:"batch_size"`
	TotalQuantity    int `gorm:"column:total_quantity;default:1" json:"total_quantity"`
	BatchesCompleted int `gorm:"column:batches_completed;default:0" json:"batches_completed"`

	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
	StartedAt   *time.Time `gorm:"column:started_at" json:"started_at,omitempty"`
	CompletedAt *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
	LastRetryAt *time.Time `gorm:"column:last_retry_at" json:"last_retry_at,omitempty"`
	NextRetryAt *time.Time `gorm:"column:next_retry_at;index:idx_order_items_next_retry" json:"next_retry_at,omitempty"`

	Artifacts []Artifact `gorm:"foreignKey:OrderItemID;constraint:OnDelete:CASCADE" json:"artifacts,omitempty"`
}

func (OrderItem) TableName() string {
	return "order_items"
}

// Terminal reports whether the item can no longer change state on its own.
// A failed item only counts as terminal when it is out of retries or its
// error category is not retryable; callers that need that distinction use
// the repository's retry-eligibility query instead.
func (s ItemStatus) Terminal() bool {
	switch s {
	case ItemCompleted, ItemExhausted, ItemCancelled:
		return true
	}
	return false
}

// Artifact maps to the `artifacts` table: one generated output linked to
// the item that produced it. Only the provider URL and metadata are kept;
// byte storage lives elsewhere.
type Artifact struct {
	ID          uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	OrderItemID uint      `gorm:"column:order_item_id;index:idx_artifacts_item" json:"order_item_id"`
	URL         string    `gorm:"column:url;size:2048" json:"url"`
	Width       int       `gorm:"column:width;default:0" json:"width"`
	Height      int       `gorm:"column:height;default:0" json:"height"`
	Seed        int64     `gorm:"column:seed;default:0" json:"seed"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Artifact) TableName() string {
	return "artifacts"
}
