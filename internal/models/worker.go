package models

import "time"

// WorkerStatus is the lifecycle state of a polling worker process.
type WorkerStatus string

const (
	WorkerStarting WorkerStatus = "starting"
	WorkerWorking  WorkerStatus = "working"
	WorkerExiting  WorkerStatus = "exiting"
)

// Worker maps to the `workers` table: the ephemeral registration of a live
// polling process. The row is created at process start, refreshed every
// poll cycle and deleted on exit; a row whose heartbeat goes stale marks a
// crashed worker for the foreman to reclaim.
//
// Items reference workers through OrderItem.AssignedWorkerID. Deleting a
// worker must release its items, never cascade-delete them.
type Worker struct {
	ID             uint         `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Name           string       `gorm:"column:name;size:64;uniqueIndex:idx_workers_name" json:"name"`
	ProcessID      int          `gorm:"column:process_id;uniqueIndex:idx_workers_pid" json:"process_id"`
	Status         WorkerStatus `gorm:"column:status;size:20" json:"status"`
	MaxBatchSize   int          `gorm:"column:max_batch_size;default:5" json:"max_batch_size"`
	ItemsProcessed int          `gorm:"column:items_processed;default:0" json:"items_processed"`
	ItemsFailed    int          `gorm:"column:items_failed;default:0" json:"items_failed"`
	SpawnedAt      time.Time    `gorm:"column:spawned_at;autoCreateTime" json:"spawned_at"`
	LastHeartbeat  time.Time    `gorm:"column:last_heartbeat" json:"last_heartbeat"`
}

func (Worker) TableName() string {
	return "workers"
}

// Stalled reports whether the worker's heartbeat is older than threshold.
func (w *Worker) Stalled(threshold time.Duration, now time.Time) bool {
	return now.Sub(w.LastHeartbeat) > threshold
}
