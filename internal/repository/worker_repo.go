package repository

import (
	"time"

	"gorm.io/gorm"

	"atelier/internal/models"
)

// WorkerRepository handles the ephemeral worker registry.
type WorkerRepository struct {
	db *gorm.DB
}

func NewWorkerRepository(db *gorm.DB) *WorkerRepository {
	return &WorkerRepository{db: db}
}

// Register inserts a new worker row in the starting state.
func (r *WorkerRepository) Register(worker *models.Worker) error {
	if worker.Status == "" {
		worker.Status = models.WorkerStarting
	}
	worker.LastHeartbeat = time.Now()
	return r.db.Create(worker).Error
}

// UpdateHeartbeat refreshes the liveness timestamp.
func (r *WorkerRepository) UpdateHeartbeat(workerID uint) error {
	return r.db.Model(&models.Worker{}).
		Where("id = ?", workerID).
		Update("last_heartbeat", time.Now()).Error
}

// SetStatus moves the worker through its lifecycle states.
func (r *WorkerRepository) SetStatus(workerID uint, status models.WorkerStatus) error {
	return r.db.Model(&models.Worker{}).
		Where("id = ?", workerID).
		Update("status", status).Error
}

// RecordResults bumps the processed/failed counters after a batch.
func (r *WorkerRepository) RecordResults(workerID uint, processed, failed int) error {
	if processed == 0 && failed == 0 {
		return nil
	}
	return r.db.Model(&models.Worker{}).
		Where("id = ?", workerID).
		Updates(map[string]interface{}{
			"items_processed": gorm.Expr("items_processed + ?", processed),
			"items_failed":    gorm.Expr("items_failed + ?", failed),
		}).Error
}

// Delete removes a worker row. Items are released separately; deleting
// the registration must never touch order_items.
func (r *WorkerRepository) Delete(workerID uint) error {
	return r.db.Delete(&models.Worker{}, workerID).Error
}

// FindByID returns a single worker row.
func (r *WorkerRepository) FindByID(workerID uint) (*models.Worker, error) {
	var worker models.Worker
	if err := r.db.First(&worker, workerID).Error; err != nil {
		return nil, err
	}
	return &worker, nil
}

// FindAll lists all registered workers.
func (r *WorkerRepository) FindAll() ([]models.Worker, error) {
	var workers []models.Worker
	err := r.db.Order("id ASC").Find(&workers).Error
	return workers, err
}

// FindStalled returns workers whose heartbeat is older than threshold.
func (r *WorkerRepository) FindStalled(threshold time.Duration) ([]models.Worker, error) {
	var workers []models.Worker
	cutoff := time.Now().Add(-threshold)
	err := r.db.Where("last_heartbeat < ?", cutoff).Find(&workers).Error
	return workers, err
}

// CountAlive returns the number of workers with a fresh heartbeat.
func (r *WorkerRepository) CountAlive(threshold time.Duration) (int64, error) {
	var n int64
	cutoff := time.Now().Add(-threshold)
	err := r.db.Model(&models.Worker{}).
		Where("last_heartbeat >= ? AND status IN ?", cutoff,
			[]models.WorkerStatus{models.WorkerStarting, models.WorkerWorking}).
		Count(&n).Error
	return n, err
}
