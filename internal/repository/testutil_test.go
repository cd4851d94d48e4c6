package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"atelier/internal/bootstrap"
	"atelier/internal/models"
)

// openTestDB gives each test its own in-memory database. The shared-cache
// name keeps all connections in the pool on the same store.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	db.Exec("PRAGMA busy_timeout=5000;")
	require.NoError(t, bootstrap.Migrate(db))
	return db
}

// seedOrder creates an order with n pending items and returns it reloaded
// with items.
func seedOrder(t *testing.T, db *gorm.DB, n int) *models.Order {
	t.Helper()

	orders := NewOrderRepository(db)
	order := &models.Order{
		Provider:  "fal.ai",
		ModelName: "fal-ai/flux/dev",
	}
	items := make([]models.OrderItem, n)
	for i := range items {
		items[i] = models.OrderItem{
			Prompt: fmt.Sprintf("prompt %d", i),
		}
	}
	require.NoError(t, orders.CreateWithItems(order, items))

	loaded, err := orders.FindByID(order.ID)
	require.NoError(t, err)
	return loaded
}

// seedWorker registers a live worker row.
func seedWorker(t *testing.T, db *gorm.DB, name string, pid int) *models.Worker {
	t.Helper()

	workers := NewWorkerRepository(db)
	w := &models.Worker{
		Name:         name,
		ProcessID:    pid,
		Status:       models.WorkerStarting,
		MaxBatchSize: 5,
		SpawnedAt:    time.Now(),
	}
	require.NoError(t, workers.Register(w))
	return w
}
