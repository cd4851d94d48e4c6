package worker

import (
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"atelier/internal/config"
	"atelier/internal/repository"
)

// Spawner launches worker processes on demand. It periodically checks for
// claimable work and starts `<self> --worker` children until the alive
// count reaches the configured ceiling. Workers delete their own rows when
// they run dry, so the pool shrinks to zero between bursts.
type Spawner struct {
	cfg            config.WorkerConfig
	stallThreshold time.Duration
	itemRepo       *repository.OrderItemRepository
	workRepo       *repository.WorkerRepository
	logger         *zap.Logger
	cron           *cron.Cron
	poke           chan struct{}
	done           chan struct{}

	// launch starts one worker child; swapped out in tests.
	launch func() error
}

// NewSpawner builds a spawner. stallThreshold bounds how old a heartbeat
// may be before a registered worker stops counting toward the pool size.
func NewSpawner(
	cfg config.WorkerConfig,
	stallThreshold time.Duration,
	itemRepo *repository.OrderItemRepository,
	workRepo *repository.WorkerRepository,
	logger *zap.Logger,
) *Spawner {
	s := &Spawner{
		cfg:            cfg,
		stallThreshold: stallThreshold,
		itemRepo:       itemRepo,
		workRepo:       workRepo,
		logger:         logger,
		cron:           cron.New(),
		poke:           make(chan struct{}, 1),
		done:           make(chan struct{}),
	}
	s.launch = s.launchWorkerProcess
	return s
}

// Start begins the periodic spawn check and the poke listener.
func (s *Spawner) Start() error {
	spec := fmt.Sprintf("@every %s", s.cfg.SpawnInterval)
	if _, err := s.cron.AddFunc(spec, s.check); err != nil {
		return fmt.Errorf("spawner schedule: %w", err)
	}
	s.cron.Start()

	go func() {
		for {
			select {
			case <-s.done:
				return
			case <-s.poke:
				s.check()
			}
		}
	}()

	s.logger.Info("worker spawner started",
		zap.Duration("interval", s.cfg.SpawnInterval),
		zap.Int("max_workers", s.cfg.MaxWorkers),
	)
	return nil
}

// Stop halts the schedule. Already-running worker children are unaffected;
// they exit on their own when the queue drains.
func (s *Spawner) Stop() {
	close(s.done)
	<-s.cron.Stop().Done()
}

// Poke requests an immediate spawn check, used right after new work is
// enqueued so the first worker does not wait for the next tick.
func (s *Spawner) Poke() {
	select {
	case s.poke <- struct{}{}:
	default:
	}
}

func (s *Spawner) check() {
	claimable, err := s.itemRepo.HasClaimableWork()
	if err != nil {
		s.logger.Error("spawner queue check failed", zap.Error(err))
		return
	}
	if !claimable {
		return
	}

	alive, err := s.workRepo.CountAlive(s.stallThreshold)
	if err != nil {
		s.logger.Error("spawner worker count failed", zap.Error(err))
		return
	}
	if alive >= int64(s.cfg.MaxWorkers) {
		return
	}

	if err := s.launch(); err != nil {
		s.logger.Error("worker spawn failed", zap.Error(err))
		return
	}
	s.logger.Info("worker spawned",
		zap.String("event_type", "worker_spawned"),
		zap.Int64("alive_before", alive),
	)
}

func (s *Spawner) launchWorkerProcess() error {
	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}
	cmd := exec.Command(self, "--worker")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start worker process: %w", err)
	}
	// Reap the child when it exits so it never lingers as a zombie.
	go func() { _ = cmd.Wait() }()
	return nil
}
