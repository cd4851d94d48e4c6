package worker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"atelier/internal/config"
	"atelier/internal/models"
)

func newTestSpawner(env *testEnv, maxWorkers int) (*Spawner, *int) {
	cfg := config.WorkerConfig{
		MaxBatchSize:  5,
		SpawnInterval: time.Minute,
		MaxWorkers:    maxWorkers,
	}
	s := NewSpawner(cfg, 3*time.Minute, env.itemRepo, env.workRepo, zap.NewNop())

	launches := 0
	s.launch = func() error {
		launches++
		return nil
	}
	return s, &launches
}

func TestSpawnerStartsWorkerForPendingWork(t *testing.T) {
	env := newTestEnv(t)
	s, launches := newTestSpawner(env, 4)

	env.placeOrder(t, "a cat")
	s.check()
	assert.Equal(t, 1, *launches)
}

func TestSpawnerIdleWithoutWork(t *testing.T) {
	env := newTestEnv(t)
	s, launches := newTestSpawner(env, 4)

	s.check()
	assert.Zero(t, *launches)
}

func TestSpawnerRespectsWorkerCeiling(t *testing.T) {
	env := newTestEnv(t)
	s, launches := newTestSpawner(env, 1)

	env.placeOrder(t, "a cat")
	require.NoError(t, env.workRepo.Register(&models.Worker{
		Name:         "busy",
		ProcessID:    999,
		Status:       models.WorkerWorking,
		MaxBatchSize: 5,
		SpawnedAt:    time.Now(),
	}))

	s.check()
	assert.Zero(t, *launches)
}

func TestSpawnerIgnoresStaleWorkers(t *testing.T) {
	env := newTestEnv(t)
	s, launches := newTestSpawner(env, 1)

	env.placeOrder(t, "a cat")
	w := &models.Worker{
		Name:         "stale",
		ProcessID:    998,
		Status:       models.WorkerWorking,
		MaxBatchSize: 5,
		SpawnedAt:    time.Now().Add(-time.Hour),
	}
	require.NoError(t, env.workRepo.Register(w))
	require.NoError(t, env.db.Model(&models.Worker{}).
		Where("id = ?", w.ID).
		Update("last_heartbeat", time.Now().Add(-time.Hour)).Error)

	// A stale registration does not count toward the pool size.
	s.check()
	assert.Equal(t, 1, *launches)
}
