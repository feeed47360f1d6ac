package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shaiso/Synapse/internal/domain"
	"github.com/shaiso/Synapse/internal/engine"
	"github.com/shaiso/Synapse/internal/steps"
	"github.com/shaiso/Synapse/internal/telemetry"
)

// Dispatcher выполняет один узел. Реализуется *steps.Dispatcher.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *steps.Request) (domain.Payload, error)
}

// Orchestrator выполняет flow узел за узлом.
//
// Orchestrator:
//   - Валидирует граф и вычисляет порядок выполнения
//   - Вырезает диапазон частичного run и засевает карту результатов
//   - Для каждого узла подставляет {{Name}} и вызывает диспетчер
//   - Публикует события прогресса running → streaming* → completed | error
//   - Останавливается на первой ошибке
//
// Узлы выполняются строго последовательно, даже если граф допускает
// параллельные ветки: backend держит одну сессию за раз.
type Orchestrator struct {
	dispatcher Dispatcher
	stepDelay  time.Duration
	logger     *slog.Logger
}

// Config — конфигурация Orchestrator.
type Config struct {
	// Dispatcher — исполнитель узлов. Обязателен.
	Dispatcher Dispatcher

	// StepDelay — пауза между успешно завершёнными узлами (default: 0).
	StepDelay time.Duration

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Orchestrator.
func New(cfg Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	stepDelay := cfg.StepDelay
	if stepDelay < 0 {
		stepDelay = 0
	}

	return &Orchestrator{
		dispatcher: cfg.Dispatcher,
		stepDelay:  stepDelay,
		logger:     logger,
	}
}

// Run выполняет flow и возвращает карту результатов.
//
// Observer получает события прогресса, затем ровно один вызов
// Complete или Error. При ошибке узла возвращаются результаты узлов,
// успевших завершиться, вместе с *NodeError. Ошибки валидации
// и диапазона возвращаются до выполнения первого узла, карта при этом nil.
func (o *Orchestrator) Run(ctx context.Context, nodes []domain.Node, edges []domain.Edge, opts Options, obs Observer) (map[string]domain.Payload, error) {
	if obs == nil {
		obs = ObserverFuncs{}
	}

	state := NewRunState(nodes, edges, opts)
	if err := state.Initialize(); err != nil {
		o.logger.Warn("run rejected", "error", err)
		obs.Error(err)
		return nil, err
	}

	results, err := o.Execute(ctx, state, obs)
	if err != nil {
		obs.Error(err)
		return results, err
	}

	obs.Complete(results)
	return results, nil
}

// Execute выполняет узлы уже инициализированного RunState.
// В отличие от Run, не вызывает Complete/Error у observer.
func (o *Orchestrator) Execute(ctx context.Context, state *RunState, obs Observer) (map[string]domain.Payload, error) {
	if o.dispatcher == nil {
		return nil, ErrNilDispatcher
	}
	if obs == nil {
		obs = ObserverFuncs{}
	}

	pending := state.Pending()
	logger := o.loggerFor(ctx)

	logger.Info("run started",
		"nodes", len(pending),
		"start_node_id", state.options.StartNodeID,
		"stop_after_node_id", state.options.StopAfterNodeID,
	)
	if missing := state.MissingSeeds(); len(missing) > 0 {
		logger.Warn("upstream results missing for partial run, placeholders stay unresolved",
			"missing", missing,
		)
	}

	telemetry.RunsInFlight.Inc()
	defer telemetry.RunsInFlight.Dec()

	for i, id := range pending {
		if err := ctx.Err(); err != nil {
			telemetry.RunsTotal.WithLabelValues(string(runStatus(ctx, err))).Inc()
			return state.Snapshot(), err
		}

		node := state.Graph.Node(id)
		if err := o.executeNode(ctx, logger, state, node, obs); err != nil {
			telemetry.RunsTotal.WithLabelValues(string(runStatus(ctx, err))).Inc()
			return state.Snapshot(), err
		}

		// Пауза между узлами, кроме последнего
		if o.stepDelay > 0 && i < len(pending)-1 {
			select {
			case <-ctx.Done():
				telemetry.RunsTotal.WithLabelValues(string(runStatus(ctx, ctx.Err()))).Inc()
				return state.Snapshot(), ctx.Err()
			case <-time.After(o.stepDelay):
			}
		}
	}

	telemetry.RunsTotal.WithLabelValues(string(domain.RunStatusSucceeded)).Inc()
	logger.Info("run completed", "nodes", len(pending))

	return state.Snapshot(), nil
}

// executeNode выполняет один узел и публикует его события.
func (o *Orchestrator) executeNode(ctx context.Context, runLogger *slog.Logger, state *RunState, node *domain.Node, obs Observer) error {
	logger := telemetry.WithNodeID(runLogger, node.ID, node.Name)
	nodeType := string(node.Type)

	obs.Progress(domain.ProgressEvent{
		NodeID:   node.ID,
		NodeName: node.Name,
		Status:   domain.NodeStatusRunning,
	})
	state.MarkNodeRunning(node.ID)

	view := state.View()
	req := &steps.Request{
		Node:    node,
		Input:   engine.ResolveInput(node, view),
		Results: view,
		OnChunk: func(partial domain.Payload) {
			telemetry.StreamChunks.WithLabelValues(nodeType).Inc()
			p := partial.Normalize()
			obs.Progress(domain.ProgressEvent{
				NodeID:   node.ID,
				NodeName: node.Name,
				Status:   domain.NodeStatusStreaming,
				Result:   &p,
			})
		},
	}

	logger.Debug("node started", "node_type", node.Type)
	start := time.Now()

	out, err := o.dispatcher.Dispatch(ctx, req)
	telemetry.NodeDuration.WithLabelValues(nodeType).Observe(time.Since(start).Seconds())

	if err != nil {
		state.MarkNodeFailed(node.ID)

		status := domain.NodeStatusError
		if isCancellation(ctx, err) {
			status = domain.NodeStatusCancelled
		}
		telemetry.NodeExecutions.WithLabelValues(nodeType, string(status)).Inc()

		obs.Progress(domain.ProgressEvent{
			NodeID:   node.ID,
			NodeName: node.Name,
			Status:   status,
			Error:    err.Error(),
		})

		logger.Warn("node failed", "status", status, "error", err)
		return &NodeError{NodeID: node.ID, NodeName: node.Name, Err: err}
	}

	out = out.Normalize()
	state.MarkNodeCompleted(node, out)
	telemetry.NodeExecutions.WithLabelValues(nodeType, string(domain.NodeStatusCompleted)).Inc()

	obs.Progress(domain.ProgressEvent{
		NodeID:   node.ID,
		NodeName: node.Name,
		Status:   domain.NodeStatusCompleted,
		Result:   &out,
	})

	logger.Debug("node completed",
		"duration", time.Since(start),
		"text_len", len(out.Text),
		"attachments", len(out.Attachments),
	)
	return nil
}

// loggerFor предпочитает логгер из контекста (с run_id от worker).
func (o *Orchestrator) loggerFor(ctx context.Context) *slog.Logger {
	if ctx.Value(telemetry.CtxLogger) != nil {
		return telemetry.FromContext(ctx)
	}
	return o.logger
}

// isCancellation отличает отмену run от ошибки backend.
// Истёкший дедлайн run — ошибка, а не отмена.
func isCancellation(ctx context.Context, err error) bool {
	return errors.Is(ctx.Err(), context.Canceled) && errors.Is(err, context.Canceled)
}

// runStatus — итоговый статус run для метрик.
func runStatus(ctx context.Context, err error) domain.RunStatus {
	if isCancellation(ctx, err) {
		return domain.RunStatusCancelled
	}
	return domain.RunStatusFailed
}
