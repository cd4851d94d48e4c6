package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"atelier/internal/config"
	"atelier/internal/errclass"
	"atelier/internal/models"
	"atelier/internal/orders"
	"atelier/internal/provider"
	"atelier/internal/repository"
)

// ClientFactory builds the provider client for a stored provider name.
// Injected so tests can substitute a fake without real HTTP calls.
type ClientFactory func(name provider.Name) (provider.Client, error)

// Runner is one ephemeral worker process. It registers itself, claims
// batches of items from the queue, calls the generation provider for each,
// and exits on its own when no claimable work remains.
type Runner struct {
	cfg      config.WorkerConfig
	itemRepo *repository.OrderItemRepository
	workRepo *repository.WorkerRepository
	ordRepo  *repository.OrderRepository
	orders   *orders.Service
	factory  ClientFactory
	logger   *zap.Logger
	clock    func() time.Time

	id      uint
	name    string
	clients map[provider.Name]provider.Client
}

func NewRunner(
	cfg config.WorkerConfig,
	itemRepo *repository.OrderItemRepository,
	workRepo *repository.WorkerRepository,
	ordRepo *repository.OrderRepository,
	orderSvc *orders.Service,
	factory ClientFactory,
	logger *zap.Logger,
) *Runner {
	return &Runner{
		cfg:      cfg,
		itemRepo: itemRepo,
		workRepo: workRepo,
		ordRepo:  ordRepo,
		orders:   orderSvc,
		factory:  factory,
		logger:   logger,
		clock:    time.Now,
		clients:  make(map[provider.Name]provider.Client),
	}
}

// DefaultFactory wires the real provider clients from configuration.
func DefaultFactory(cfg config.ProvidersConfig) ClientFactory {
	return func(name provider.Name) (provider.Client, error) {
		return provider.Factory(name, cfg)
	}
}

// Run executes the worker loop until no work remains or ctx is cancelled.
// Any error escaping the loop body goes through errorExit so claimed items
// are never left stuck on a dead worker row.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.register(); err != nil {
		return fmt.Errorf("worker register: %w", err)
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.errorExit(fmt.Sprintf("panic: %v", rec))
			panic(rec)
		}
	}()

	for {
		if err := r.workRepo.UpdateHeartbeat(r.id); err != nil {
			r.errorExit("heartbeat update failed: " + err.Error())
			return err
		}

		items, err := r.itemRepo.ClaimBatch(r.id, r.cfg.MaxBatchSize)
		if err != nil {
			r.errorExit("claim failed: " + err.Error())
			return err
		}
		if len(items) == 0 {
			r.gracefulExit("no claimable work")
			return nil
		}

		if err := r.workRepo.SetStatus(r.id, models.WorkerWorking); err != nil {
			r.errorExit("status update failed: " + err.Error())
			return err
		}

		r.logger.Info("work batch claimed",
			zap.String("event_type", "batch_claimed"),
			zap.Uint("worker_id", r.id),
			zap.Int("count", len(items)),
		)

		r.processBatch(ctx, items)

		select {
		case <-ctx.Done():
			r.gracefulExit("shutdown requested")
			return ctx.Err()
		case <-time.After(r.cfg.PollInterval):
		}
	}
}

func (r *Runner) register() error {
	w := &models.Worker{
		Name:         "worker-" + uuid.NewString()[:8],
		ProcessID:    os.Getpid(),
		Status:       models.WorkerStarting,
		MaxBatchSize: r.cfg.MaxBatchSize,
		SpawnedAt:    r.clock(),
	}
	if err := r.workRepo.Register(w); err != nil {
		return err
	}
	r.id = w.ID
	r.name = w.Name

	r.logger.Info("worker registered",
		zap.String("event_type", "worker_started"),
		zap.Uint("worker_id", r.id),
		zap.String("worker_name", r.name),
		zap.Int("pid", w.ProcessID),
	)
	return nil
}

// processBatch handles claimed items sequentially. Provider failures never
// escape this method; they become item state transitions.
func (r *Runner) processBatch(ctx context.Context, items []models.OrderItem) {
	orderCache := make(map[string]*models.Order)
	processed, failed := 0, 0

	for i := range items {
		item := &items[i]

		order, ok := orderCache[item.OrderID]
		if !ok {
			var err error
			order, err = r.ordRepo.FindByID(item.OrderID)
			if err != nil {
				r.handleItemFailure(item, "", "order lookup failed: "+err.Error())
				failed++
				continue
			}
			orderCache[item.OrderID] = order
		}

		if err := r.processItem(ctx, item, order); err != nil {
			r.handleItemFailure(item, order.Provider, err.Error())
			failed++
		} else {
			processed++
		}

		if err := r.orders.Refresh(item.OrderID); err != nil {
			r.logger.Error("order status refresh failed",
				zap.String("event_type", "order_refresh_failed"),
				zap.String("order_id", item.OrderID),
				zap.Error(err),
			)
		}
	}

	if err := r.workRepo.RecordResults(r.id, processed, failed); err != nil {
		r.logger.Error("worker counters update failed",
			zap.Uint("worker_id", r.id),
			zap.Error(err),
		)
	}
}

func (r *Runner) processItem(ctx context.Context, item *models.OrderItem, order *models.Order) error {
	if err := r.itemRepo.MarkProcessing(item.ID, r.id); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}

	name, err := provider.ParseName(order.Provider)
	if err != nil {
		return err
	}
	client, err := r.client(name)
	if err != nil {
		return err
	}

	params, err := mergeParameters(order.DefaultParameters, item)
	if err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, r.cfg.GenerateTimeout)
	generated, err := client.Generate(callCtx, order.ModelName, params)
	cancel()
	if err != nil {
		return err
	}
	if len(generated) == 0 {
		return fmt.Errorf("no images returned")
	}

	artifacts := make([]models.Artifact, 0, len(generated))
	for _, a := range generated {
		artifacts = append(artifacts, models.Artifact{
			OrderItemID: item.ID,
			URL:         a.URL,
			Width:       a.Width,
			Height:      a.Height,
			Seed:        a.Seed,
		})
	}

	if err := r.itemRepo.MarkCompleted(item.ID, r.id, artifacts); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}

	r.logger.Info("item completed",
		zap.String("event_type", "item_completed"),
		zap.Uint("worker_id", r.id),
		zap.Uint("item_id", item.ID),
		zap.String("order_id", item.OrderID),
		zap.Int("artifacts", len(artifacts)),
	)
	return nil
}

// handleItemFailure classifies the failure and picks the next state:
// retry-eligible items are reset with a backoff stamp, items out of
// retries become exhausted, non-retryable categories stay failed.
func (r *Runner) handleItemFailure(item *models.OrderItem, providerName, message string) {
	cls := errclass.Classify(message, providerName)

	switch {
	case cls.Retryable && item.RetryCount < item.MaxRetries:
		delay := errclass.RetryDelay(cls.Category, cls.BaseDelay, item.RetryCount)
		nextRetry := r.clock().Add(delay)
		if err := r.itemRepo.ResetForRetry(item.ID, r.id, message, cls.Category, nextRetry); err != nil {
			r.logger.Error("retry reset failed",
				zap.Uint("item_id", item.ID),
				zap.Error(err),
			)
			return
		}
		r.logger.Info("item retry scheduled",
			zap.String("event_type", "item_retry_scheduled"),
			zap.Uint("worker_id", r.id),
			zap.Uint("item_id", item.ID),
			zap.String("order_id", item.OrderID),
			zap.String("category", string(cls.Category)),
			zap.Int("retry_count", item.RetryCount+1),
			zap.Duration("delay", delay),
		)

	case cls.Retryable:
		if err := r.itemRepo.MarkExhausted(item.ID, r.id, message, cls.Category); err != nil {
			r.logger.Error("exhausted transition failed",
				zap.Uint("item_id", item.ID),
				zap.Error(err),
			)
			return
		}
		r.logger.Error("item retries exhausted",
			zap.String("event_type", "item_exhausted"),
			zap.Uint("worker_id", r.id),
			zap.Uint("item_id", item.ID),
			zap.String("order_id", item.OrderID),
			zap.String("category", string(cls.Category)),
			zap.String("error", message),
		)

	default:
		if err := r.itemRepo.MarkFailed(item.ID, r.id, message, cls.Category); err != nil {
			r.logger.Error("failed transition failed",
				zap.Uint("item_id", item.ID),
				zap.Error(err),
			)
			return
		}
		r.logger.Error("item failed",
			zap.String("event_type", "item_failed"),
			zap.Uint("worker_id", r.id),
			zap.Uint("item_id", item.ID),
			zap.String("order_id", item.OrderID),
			zap.String("category", string(cls.Category)),
			zap.String("error", message),
		)
	}
}

func (r *Runner) client(name provider.Name) (provider.Client, error) {
	if c, ok := r.clients[name]; ok {
		return c, nil
	}
	c, err := r.factory(name)
	if err != nil {
		return nil, err
	}
	r.clients[name] = c
	return c, nil
}

// gracefulExit removes the worker's own registration. Workers are spawned
// on demand and self-terminate instead of idle-polling.
func (r *Runner) gracefulExit(reason string) {
	_ = r.workRepo.SetStatus(r.id, models.WorkerExiting)
	if err := r.workRepo.Delete(r.id); err != nil {
		r.logger.Error("worker deregistration failed",
			zap.Uint("worker_id", r.id),
			zap.Error(err),
		)
	}
	r.logger.Info("worker exiting",
		zap.String("event_type", "worker_stopped"),
		zap.Uint("worker_id", r.id),
		zap.String("reason", reason),
	)
}

// errorExit releases any items still held by this worker before removing
// its registration, so work is never stuck even without the foreman.
func (r *Runner) errorExit(message string) {
	released, err := r.itemRepo.ReleaseWorkerItems(r.id)
	if err != nil {
		r.logger.Error("item release failed",
			zap.Uint("worker_id", r.id),
			zap.Error(err),
		)
	}
	if err := r.workRepo.Delete(r.id); err != nil {
		r.logger.Error("worker deregistration failed",
			zap.Uint("worker_id", r.id),
			zap.Error(err),
		)
	}
	r.logger.Error("worker exiting on error",
		zap.String("event_type", "worker_error_exit"),
		zap.Uint("worker_id", r.id),
		zap.Int64("released_items", released),
		zap.String("error", message),
	)
}

// mergeParameters builds the provider payload: order-level defaults
// overridden by per-item parameters, with prompt and negative_prompt laid
// on top.
func mergeParameters(defaults string, item *models.OrderItem) (map[string]interface{}, error) {
	merged := make(map[string]interface{})

	if defaults != "" {
		if err := json.Unmarshal([]byte(defaults), &merged); err != nil {
			return nil, fmt.Errorf("order default parameters decode: %w", err)
		}
	}
	if item.Parameters != "" {
		var itemParams map[string]interface{}
		if err := json.Unmarshal([]byte(item.Parameters), &itemParams); err != nil {
			return nil, fmt.Errorf("item parameters decode: %w", err)
		}
		for k, v := range itemParams {
			merged[k] = v
		}
	}

	merged["prompt"] = item.Prompt
	if item.NegativePrompt != "" {
		merged["negative_prompt"] = item.NegativePrompt
	}
	if item.BatchSize > 1 {
		merged["num_images"] = item.BatchSize
	}
	return merged, nil
}
