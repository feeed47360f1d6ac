package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Synapse/internal/domain"
	"github.com/shaiso/Synapse/internal/mq"
	"github.com/shaiso/Synapse/internal/orchestrator"
)

// Default configuration values.
const (
	defaultPollInterval = 10 * time.Second
	defaultBatchSize    = 10
	defaultPrefetch     = 1
	persistTimeout      = 10 * time.Second
)

// RunStore — хранилище runs. Реализуется *repo.RunRepo.
type RunStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error)
	ListPending(ctx context.Context, limit int) ([]domain.Run, error)
	MarkRunning(ctx context.Context, id uuid.UUID, startedAt time.Time) error
	Update(ctx context.Context, run *domain.Run) error
}

// FlowStore — хранилище flows. Реализуется *repo.FlowRepo.
type FlowStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Flow, error)
}

// EventPublisher публикует прогресс и итог run. Реализуется *mq.Publisher.
type EventPublisher interface {
	PublishRunProgress(ctx context.Context, runID uuid.UUID, ev domain.ProgressEvent) error
	PublishRunFinished(ctx context.Context, payload mq.RunFinishedPayload) error
}

// Worker выполняет runs, сохранённые через API.
//
// Worker — stateless компонент системы, который:
//   - Получает runs из очереди RabbitMQ (event-driven)
//   - Периодически проверяет PENDING runs в БД (polling fallback)
//   - Атомарно забирает run (PENDING → RUNNING)
//   - Выполняет flow через Orchestrator
//   - Публикует события прогресса в synapse.events
//   - Сохраняет итог и карту результатов
//
// Workers масштабируются горизонтально: run забирает тот,
// кто первым перевёл его в RUNNING.
type Worker struct {
	// Repositories
	runs  RunStore
	flows FlowStore

	// MQ
	publisher EventPublisher
	conn      *mq.Connection

	// Execution
	orchestrator *orchestrator.Orchestrator
	runTimeout   time.Duration

	// Consumer
	consumer *mq.Consumer

	// Configuration
	pollInterval time.Duration
	batchSize    int

	// Выполняющиеся runs
	activeRuns   map[uuid.UUID]*orchestrator.RunState
	activeRunsMu sync.RWMutex

	// Lifecycle
	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// Config — конфигурация Worker.
type Config struct {
	// Repositories
	RunRepo  RunStore
	FlowRepo FlowStore

	// MQ. Если Conn == nil, worker работает только через polling.
	Publisher EventPublisher
	Conn      *mq.Connection

	// Orchestrator — исполнитель flow. Обязателен.
	Orchestrator *orchestrator.Orchestrator

	// RunTimeout — ограничение на один run (default: без ограничения).
	RunTimeout time.Duration

	// Polling configuration
	PollInterval time.Duration // интервал polling (default: 10s)
	BatchSize    int           // количество runs за один poll (default: 10)

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Worker.
func New(cfg Config) *Worker {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Worker{
		runs:         cfg.RunRepo,
		flows:        cfg.FlowRepo,
		publisher:    cfg.Publisher,
		conn:         cfg.Conn,
		orchestrator: cfg.Orchestrator,
		runTimeout:   cfg.RunTimeout,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		activeRuns:   make(map[uuid.UUID]*orchestrator.RunState),
		logger:       logger,
	}
}

// Start запускает Worker.
//
// Запускает:
//   - Consumer для runs.pending (если есть соединение с RabbitMQ)
//   - Polling горутину для fallback
func (w *Worker) Start(ctx context.Context) error {
	if w.orchestrator == nil {
		return ErrNoOrchestrator
	}

	ctx, cancel := context.WithCancel(ctx)
	w.cancelFunc = cancel

	w.logger.Info("starting worker",
		"poll_interval", w.pollInterval,
		"batch_size", w.batchSize,
		"run_timeout", w.runTimeout,
	)

	if w.conn != nil {
		w.consumer = mq.NewConsumer(w.conn, w.logger, mq.ConsumerConfig{
			Queue:    string(mq.QueueRunsPending),
			Handler:  w.handleRunPending,
			Prefetch: defaultPrefetch,
		})

		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			if err := w.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				w.logger.Error("run consumer error", "error", err)
			}
		}()
	} else {
		w.logger.Warn("RabbitMQ not configured, running in polling-only mode")
	}

	// Запускаем polling
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.pollLoop(ctx)
	}()

	w.logger.Info("worker started")
	return nil
}

// Stop останавливает Worker и ждёт выполняющиеся runs.
// Прерванные runs сохраняются как CANCELLED.
func (w *Worker) Stop() {
	w.stoppedMu.Lock()
	w.stopped = true
	w.stoppedMu.Unlock()

	w.logger.Info("stopping worker...")

	if w.cancelFunc != nil {
		w.cancelFunc()
	}

	if w.consumer != nil {
		w.consumer.Stop()
	}

	// Ждём завершения горутин
	w.wg.Wait()

	w.logger.Info("worker stopped")
}

// IsStopped проверяет, остановлен ли Worker.
func (w *Worker) IsStopped() bool {
	w.stoppedMu.RLock()
	defer w.stoppedMu.RUnlock()
	return w.stopped
}

// ActiveRuns возвращает статистику выполняющихся runs.
func (w *Worker) ActiveRuns() map[uuid.UUID]orchestrator.RunStats {
	w.activeRunsMu.RLock()
	defer w.activeRunsMu.RUnlock()

	stats := make(map[uuid.UUID]orchestrator.RunStats, len(w.activeRuns))
	for id, state := range w.activeRuns {
		stats[id] = state.Stats()
	}
	return stats
}

func (w *Worker) trackRun(id uuid.UUID, state *orchestrator.RunState) {
	w.activeRunsMu.Lock()
	w.activeRuns[id] = state
	w.activeRunsMu.Unlock()
}

func (w *Worker) untrackRun(id uuid.UUID) {
	w.activeRunsMu.Lock()
	delete(w.activeRuns, id)
	w.activeRunsMu.Unlock()
}

// pollLoop — цикл polling для fallback.
func (w *Worker) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	// Первый poll сразу при старте (подхватываем runs, созданные пока были выключены)
	w.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

// poll выполняет один цикл polling.
func (w *Worker) poll(ctx context.Context) {
	runs, err := w.runs.ListPending(ctx, w.batchSize)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Error("failed to list pending runs", "error", err)
		}
		return
	}

	if len(runs) == 0 {
		return
	}

	w.logger.Debug("poll found pending runs", "count", len(runs))

	for i := range runs {
		if ctx.Err() != nil {
			return
		}
		if err := w.processRun(ctx, runs[i].ID); err != nil && !isSkippable(err) {
			w.logger.Error("failed to process run from poll",
				"run_id", runs[i].ID,
				"error", err,
			)
		}
	}
}
