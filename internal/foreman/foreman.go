package foreman

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"atelier/internal/alert"
	"atelier/internal/config"
	"atelier/internal/models"
	"atelier/internal/repository"
)

// Foreman supervises the worker pool. Each cycle it recovers stalled
// workers, reassigns orphaned items, and logs queue health. It is built
// and started explicitly by the composition root; there is no package
// global.
type Foreman struct {
	cfg      config.ForemanConfig
	itemRepo *repository.OrderItemRepository
	workRepo *repository.WorkerRepository
	procs    ProcessController
	notifier *alert.Notifier
	logger   *zap.Logger
	cron     *cron.Cron
}

func New(
	cfg config.ForemanConfig,
	itemRepo *repository.OrderItemRepository,
	workRepo *repository.WorkerRepository,
	procs ProcessController,
	notifier *alert.Notifier,
	logger *zap.Logger,
) *Foreman {
	return &Foreman{
		cfg:      cfg,
		itemRepo: itemRepo,
		workRepo: workRepo,
		procs:    procs,
		notifier: notifier,
		logger:   logger,
		cron:     cron.New(),
	}
}

// Start schedules the monitor loop.
func (f *Foreman) Start() error {
	spec := fmt.Sprintf("@every %s", f.cfg.CheckInterval)
	if _, err := f.cron.AddFunc(spec, f.Cycle); err != nil {
		return fmt.Errorf("foreman schedule: %w", err)
	}
	f.cron.Start()
	f.logger.Info("foreman started",
		zap.Duration("check_interval", f.cfg.CheckInterval),
		zap.Duration("stall_threshold", f.cfg.StallThreshold),
	)
	return nil
}

// Stop halts the schedule and waits for an in-flight cycle to finish.
func (f *Foreman) Stop() {
	<-f.cron.Stop().Done()
	f.logger.Info("foreman stopped")
}

// Cycle runs one monitor pass. A failure in any check is logged and the
// remaining checks still run; one bad cycle never stops the loop.
func (f *Foreman) Cycle() {
	defer func() {
		if rec := recover(); rec != nil {
			f.logger.Error("foreman cycle panic",
				zap.String("event_type", "foreman_cycle_panic"),
				zap.Any("panic", rec),
			)
		}
	}()

	if err := f.recoverStalledWorkers(); err != nil {
		f.logger.Error("stalled worker check failed", zap.Error(err))
	}
	if err := f.reassignOrphans(); err != nil {
		f.logger.Error("orphan check failed", zap.Error(err))
	}
	if err := f.logHealth(); err != nil {
		f.logger.Error("health check failed", zap.Error(err))
	}
}

// recoverStalledWorkers finds workers whose heartbeat went stale, signals
// their processes, releases their items back to pending, and removes their
// rows. Dead or permission-denied processes are tolerated; the row cleanup
// proceeds regardless.
func (f *Foreman) recoverStalledWorkers() error {
	stalled, err := f.workRepo.FindStalled(f.cfg.StallThreshold)
	if err != nil {
		return fmt.Errorf("find stalled workers: %w", err)
	}

	for _, w := range stalled {
		f.logger.Warn("stalled worker detected",
			zap.String("event_type", "worker_stalled"),
			zap.Uint("worker_id", w.ID),
			zap.String("worker_name", w.Name),
			zap.Int("pid", w.ProcessID),
			zap.Time("last_heartbeat", w.LastHeartbeat),
		)

		if f.procs.Exists(w.ProcessID) {
			if err := f.procs.Terminate(w.ProcessID); err != nil {
				f.logger.Error("stalled worker termination failed",
					zap.Uint("worker_id", w.ID),
					zap.Int("pid", w.ProcessID),
					zap.Error(err),
				)
			} else {
				f.logger.Info("stalled worker terminated",
					zap.String("event_type", "worker_terminated"),
					zap.Uint("worker_id", w.ID),
					zap.Int("pid", w.ProcessID),
				)
			}
		}

		released, err := f.itemRepo.ReleaseWorkerItems(w.ID)
		if err != nil {
			f.logger.Error("stalled worker item release failed",
				zap.Uint("worker_id", w.ID),
				zap.Error(err),
			)
			continue
		}
		if released > 0 {
			f.logger.Info("stalled worker items released",
				zap.String("event_type", "items_released"),
				zap.Uint("worker_id", w.ID),
				zap.Int64("count", released),
			)
		}

		if err := f.workRepo.Delete(w.ID); err != nil {
			f.logger.Error("stalled worker row delete failed",
				zap.Uint("worker_id", w.ID),
				zap.Error(err),
			)
			continue
		}
		f.logger.Info("stalled worker removed",
			zap.String("event_type", "worker_removed"),
			zap.Uint("worker_id", w.ID),
			zap.String("worker_name", w.Name),
		)
	}
	return nil
}

// reassignOrphans resets assigned items whose worker reference is gone.
func (f *Foreman) reassignOrphans() error {
	reset, err := f.itemRepo.ResetOrphans()
	if err != nil {
		return fmt.Errorf("reset orphans: %w", err)
	}
	if reset > 0 {
		f.logger.Warn("orphaned items reassigned",
			zap.String("event_type", "orphans_reassigned"),
			zap.Int64("count", reset),
		)
	}
	return nil
}

// logHealth records queue and pool counts, and raises an alert when work
// is waiting but no worker is alive to take it.
func (f *Foreman) logHealth() error {
	counts, err := f.itemRepo.CountByStatus(
		models.ItemPending, models.ItemAssigned, models.ItemProcessing,
	)
	if err != nil {
		return fmt.Errorf("count items: %w", err)
	}

	alive, err := f.workRepo.CountAlive(f.cfg.StallThreshold)
	if err != nil {
		return fmt.Errorf("count workers: %w", err)
	}

	pending := counts[models.ItemPending]
	f.logger.Info("queue health",
		zap.String("event_type", "queue_health"),
		zap.Int64("workers_alive", alive),
		zap.Int64("items_pending", pending),
		zap.Int64("items_assigned", counts[models.ItemAssigned]),
		zap.Int64("items_processing", counts[models.ItemProcessing]),
	)

	if pending > 0 && alive == 0 {
		f.logger.Warn("pending work with no active workers",
			zap.String("event_type", "no_active_workers"),
			zap.Int64("items_pending", pending),
		)
		f.notifier.Send("queue alert: %d pending items and no active workers", pending)
	}
	return nil
}
