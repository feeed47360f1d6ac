package recovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/Synapse/internal/domain"
	"github.com/shaiso/Synapse/internal/mq"
	"github.com/shaiso/Synapse/internal/repo"
)

// LockKey — ключ advisory-блокировки лидера recovery.
const LockKey int64 = 424242

// AbandonedError — текст ошибки, которую получает брошенный run.
const AbandonedError = "run abandoned: worker stopped before finishing"

// DefaultStaleAfter — сколько run может быть RUNNING, прежде чем его сочтут брошенным.
const DefaultStaleAfter = 30 * time.Minute

// Значения по умолчанию.
const (
	defaultInterval  = time.Minute
	defaultBatchSize = 100
)

// RunStore — хранилище runs. Реализуется *repo.RunRepo.
type RunStore interface {
	ListStale(ctx context.Context, startedBefore time.Time, limit int) ([]domain.Run, error)
	MarkAbandoned(ctx context.Context, run *domain.Run) error
}

// Leader — блокировка, которую держит единственный активный Reaper.
// Реализуется *repo.AdvisoryLock.
type Leader interface {
	TryAcquire(ctx context.Context) (bool, error)
	Release(ctx context.Context)
}

// FinishedPublisher сообщает подписчикам об итоге run. Реализуется *mq.Publisher.
type FinishedPublisher interface {
	PublishRunFinished(ctx context.Context, payload mq.RunFinishedPayload) error
}

// Reaper завершает runs, зависшие в RUNNING.
//
// Run остаётся в RUNNING, если worker упал посреди выполнения:
// сообщение уже подтверждено, а polling берёт только PENDING.
// Reaper переводит такие runs в FAILED, чтобы их можно было повторить
// через retry и чтобы подписчики на события получили финал.
type Reaper struct {
	runs       RunStore
	leader     Leader
	publisher  FinishedPublisher
	logger     *slog.Logger
	interval   time.Duration
	staleAfter time.Duration
	batchSize  int
	now        func() time.Time
}

// Config — конфигурация Reaper.
type Config struct {
	RunRepo RunStore

	// Leader — выбор единственного активного Reaper среди workers.
	// Если nil, Reaper работает всегда.
	Leader Leader

	// Publisher — необязателен.
	Publisher FinishedPublisher

	Logger *slog.Logger

	Interval   time.Duration // период проверки (default: 1m)
	StaleAfter time.Duration // сколько run может быть RUNNING (default: 30m)
	BatchSize  int           // runs за один тик (default: 100)
}

// New создаёт новый Reaper.
func New(cfg Config) *Reaper {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultInterval
	}

	staleAfter := cfg.StaleAfter
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Reaper{
		runs:       cfg.RunRepo,
		leader:     cfg.Leader,
		publisher:  cfg.Publisher,
		logger:     logger.With("component", "recovery"),
		interval:   interval,
		staleAfter: staleAfter,
		batchSize:  batchSize,
		now:        time.Now,
	}
}

// Run вызывает Tick каждые Interval, пока ctx не отменён.
// Тик выполняется, только если удалось захватить Leader.
func (r *Reaper) Run(ctx context.Context) {
	tk := time.NewTicker(r.interval)
	defer tk.Stop()

	if r.leader != nil {
		defer r.leader.Release(context.Background())
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-tk.C:
			if !r.isLeader(ctx) {
				continue
			}
			if err := r.Tick(ctx); err != nil && ctx.Err() == nil {
				r.logger.Error("recovery tick failed", "error", err)
			}
		}
	}
}

func (r *Reaper) isLeader(ctx context.Context) bool {
	if r.leader == nil {
		return true
	}
	ok, err := r.leader.TryAcquire(ctx)
	if err != nil {
		r.logger.Warn("leader lock failed", "error", err)
		return false
	}
	return ok
}

// Tick выполняет один проход.
//
// 1. Находит runs, которые в RUNNING дольше StaleAfter
// 2. Переводит каждый в FAILED (если он всё ещё RUNNING)
// 3. Публикует run.finished
//
// Ошибка одного run не блокирует обработку остальных.
func (r *Reaper) Tick(ctx context.Context) error {
	now := r.now()

	// 1. Находим зависшие runs
	stale, err := r.runs.ListStale(ctx, now.Add(-r.staleAfter), r.batchSize)
	if err != nil {
		return fmt.Errorf("list stale runs: %w", err)
	}

	if len(stale) == 0 {
		return nil
	}

	r.logger.Debug("found stale runs", "count", len(stale))

	// 2. Обрабатываем каждый run
	var reaped int
	for i := range stale {
		run := &stale[i]

		ok, err := r.reap(ctx, run, now)
		if err != nil {
			r.logger.Error("failed to reap run", "run_id", run.ID, "error", err)
			continue
		}
		if ok {
			reaped++
		}
	}

	r.logger.Info("recovery tick completed",
		"stale", len(stale),
		"reaped", reaped,
	)

	return nil
}

// reap завершает один run. Возвращает false, если run успел завершиться сам.
func (r *Reaper) reap(ctx context.Context, run *domain.Run, now time.Time) (bool, error) {
	finishedAt := now
	run.Status = domain.RunStatusFailed
	run.FinishedAt = &finishedAt
	run.Error = AbandonedError

	if err := r.runs.MarkAbandoned(ctx, run); err != nil {
		if errors.Is(err, repo.ErrInvalidState) {
			r.logger.Debug("run finished concurrently, skipping", "run_id", run.ID)
			return false, nil
		}
		return false, err
	}

	r.logger.Warn("run abandoned by worker, marked failed",
		"run_id", run.ID,
		"flow_id", run.FlowID,
		"started_at", run.StartedAt,
	)

	// 3. Публикуем итог (если publisher настроен)
	if r.publisher != nil {
		payload := mq.RunFinishedPayload{
			RunID:  run.ID,
			Status: run.Status,
			Error:  run.Error,
		}
		if err := r.publisher.PublishRunFinished(ctx, payload); err != nil {
			// Не фатально: подписчики событий сверяются с БД
			r.logger.Warn("failed to publish run.finished", "run_id", run.ID, "error", err)
		}
	}

	return true, nil
}
