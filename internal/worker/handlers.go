package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Synapse/internal/domain"
	"github.com/shaiso/Synapse/internal/mq"
	"github.com/shaiso/Synapse/internal/orchestrator"
	"github.com/shaiso/Synapse/internal/repo"
	"github.com/shaiso/Synapse/internal/telemetry"
)

const publishTimeout = 5 * time.Second

// handleRunPending обрабатывает событие о новом run из очереди runs.pending.
func (w *Worker) handleRunPending(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.RunPendingPayload](&delivery.Message)
	if err != nil {
		w.logger.Error("failed to parse run.pending payload", "error", err)
		return err
	}

	w.logger.Debug("received run.pending event", "run_id", payload.RunID)

	if err := w.processRun(ctx, payload.RunID); err != nil {
		// Ожидаемые ситуации — не возвращаем ошибку (ack)
		if isSkippable(err) {
			w.logger.Debug("run not processed", "run_id", payload.RunID, "reason", err)
			return nil
		}
		w.logger.Error("failed to process run", "run_id", payload.RunID, "error", err)
		return err
	}

	return nil
}

// processRun забирает run, выполняет flow и сохраняет итог.
func (w *Worker) processRun(ctx context.Context, runID uuid.UUID) error {
	// 1. Загружаем run из БД
	run, err := w.runs.GetByID(ctx, runID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return fmt.Errorf("get run: %w", err)
	}

	// 2. Проверяем статус
	if run.Status != domain.RunStatusPending {
		return ErrRunNotPending
	}

	// 3. Забираем run. Проигравший worker получает ErrInvalidState.
	// Точность timestamptz — микросекунды; Update сравнивает started_at
	startedAt := time.Now().UTC().Truncate(time.Microsecond)
	if err := w.runs.MarkRunning(ctx, run.ID, startedAt); err != nil {
		if errors.Is(err, repo.ErrInvalidState) {
			return ErrRunNotPending
		}
		return fmt.Errorf("mark run running: %w", err)
	}
	run.Status = domain.RunStatusRunning
	run.StartedAt = &startedAt

	logger := telemetry.WithFlowID(telemetry.WithRunID(w.logger, run.ID.String()), run.FlowID.String())
	logger.Info("run started",
		"start_node_id", run.StartNodeID,
		"stop_after_node_id", run.StopAfterNodeID,
	)

	// 4. Загружаем flow
	flow, err := w.flows.GetByID(ctx, run.FlowID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			err = fmt.Errorf("%w: %s", ErrFlowNotFound, run.FlowID)
		}
		return w.finish(ctx, logger, run, nil, err)
	}

	// 5. Готовим состояние (валидация графа и диапазон)
	state := orchestrator.NewRunState(flow.Nodes, flow.Edges, orchestrator.Options{
		StartNodeID:     run.StartNodeID,
		StopAfterNodeID: run.StopAfterNodeID,
		InitialResults:  run.InitialResults,
	})
	if err := state.Initialize(); err != nil {
		return w.finish(ctx, logger, run, nil, err)
	}

	// 6. Выполняем
	runCtx := telemetry.WithLogger(ctx, logger)
	if w.runTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, w.runTimeout)
		defer cancel()
	}

	w.trackRun(run.ID, state)
	results, execErr := w.orchestrator.Execute(runCtx, state, w.progressObserver(ctx, logger, run.ID))
	w.untrackRun(run.ID)

	// 7. Сохраняем итог
	return w.finish(ctx, logger, run, results, execErr)
}

// finish переводит run в терминальный статус, сохраняет его и публикует run.finished.
// Сохранение идёт даже после отмены ctx.
func (w *Worker) finish(ctx context.Context, logger *slog.Logger, run *domain.Run, results map[string]domain.Payload, execErr error) error {
	var nodeErr *orchestrator.NodeError
	nodeID := ""
	if errors.As(execErr, &nodeErr) {
		nodeID = nodeErr.NodeID
	}

	switch {
	case execErr == nil:
		run.MarkSucceeded(results)
	case errors.Is(execErr, context.Canceled):
		run.MarkCancelled(results)
		run.FailedNodeID = nodeID
		run.Error = execErr.Error()
	default:
		run.MarkFailed(nodeID, execErr.Error(), results)
	}

	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if err := w.runs.Update(persistCtx, run); err != nil {
		if errors.Is(err, repo.ErrInvalidState) {
			// run уже завершён другим участником, итог не наш
			logger.Warn("run finalized elsewhere, result discarded",
				"status", run.Status,
				"duration", run.Duration(),
			)
			return nil
		}
		return fmt.Errorf("update run: %w", err)
	}

	if execErr != nil {
		logger.Warn("run finished",
			"status", run.Status,
			"failed_node_id", run.FailedNodeID,
			"duration", run.Duration(),
			"error", run.Error,
		)
	} else {
		logger.Info("run finished",
			"status", run.Status,
			"duration", run.Duration(),
			"results", len(run.Results),
		)
	}

	w.publishFinished(persistCtx, logger, run)
	return nil
}

// progressObserver публикует события узлов в synapse.events.
func (w *Worker) progressObserver(ctx context.Context, logger *slog.Logger, runID uuid.UUID) orchestrator.Observer {
	if w.publisher == nil {
		return orchestrator.ObserverFuncs{}
	}

	return orchestrator.ObserverFuncs{
		OnProgress: func(ev domain.ProgressEvent) {
			// Событие cancelled должно уйти и после отмены run
			pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
			defer cancel()

			if err := w.publisher.PublishRunProgress(pubCtx, runID, ev); err != nil {
				logger.Debug("failed to publish run.progress",
					"node_id", ev.NodeID,
					"status", ev.Status,
					"error", err,
				)
			}
		},
	}
}

// publishFinished публикует событие run.finished.
func (w *Worker) publishFinished(ctx context.Context, logger *slog.Logger, run *domain.Run) {
	if w.publisher == nil {
		logger.Debug("publisher not available, skipping run.finished publish")
		return
	}

	payload := mq.RunFinishedPayload{
		RunID:        run.ID,
		Status:       run.Status,
		FailedNodeID: run.FailedNodeID,
		Error:        run.Error,
	}

	if err := w.publisher.PublishRunFinished(ctx, payload); err != nil {
		// Не возвращаем ошибку: run уже сохранён в БД
		logger.Warn("failed to publish run.finished", "error", err)
	}
}
