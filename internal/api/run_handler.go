package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Synapse/internal/domain"
	"github.com/shaiso/Synapse/internal/mq"
	"github.com/shaiso/Synapse/internal/orchestrator"
	"github.com/shaiso/Synapse/internal/repo"
)

const (
	defaultRunsLimit = 50
	maxRunsLimit     = 500
)

// runEventsPollInterval — как часто /runs/{id}/events сверяется с БД,
// чтобы не пропустить завершение, случившееся до подписки.
var runEventsPollInterval = 2 * time.Second

// ListRuns возвращает список runs с фильтрацией.
// GET /api/v1/runs?flow_id=...&status=...&limit=...&offset=...
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repo.RunFilter{Limit: defaultRunsLimit}

	if flowIDStr := q.Get("flow_id"); flowIDStr != "" {
		flowID, err := uuid.Parse(flowIDStr)
		if err != nil {
			BadRequest(w, "invalid flow_id")
			return
		}
		filter.FlowID = &flowID
	}

	if status := q.Get("status"); status != "" {
		filter.Status = domain.RunStatus(status)
		if !filter.Status.IsValid() {
			BadRequest(w, "invalid status")
			return
		}
	}

	if limitStr := q.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit <= 0 {
			BadRequest(w, "invalid limit")
			return
		}
		filter.Limit = min(limit, maxRunsLimit)
	}

	if offsetStr := q.Get("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			BadRequest(w, "invalid offset")
			return
		}
		filter.Offset = offset
	}

	runs, err := h.runs.List(r.Context(), filter)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]RunResponse, len(runs))
	for i, run := range runs {
		result[i] = RunFromDomain(run)
	}

	List(w, result, len(result))
}

// CreateRun создаёт PENDING run для flow и уведомляет workers.
// Диапазон и граф проверяются сразу, чтобы не ставить в очередь заведомо упавший run.
// POST /api/v1/flows/{id}/runs
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeExecuteRequest(w, r)
	if !ok {
		return
	}

	flow, ok := h.loadFlow(w, r)
	if !ok {
		return
	}

	if err := orchestrator.NewRunState(flow.Nodes, flow.Edges, req.Options()).Initialize(); err != nil {
		HandleRunError(w, h.logger, err)
		return
	}

	run := &domain.Run{
		ID:              uuid.New(),
		FlowID:          flow.ID,
		Status:          domain.RunStatusPending,
		StartNodeID:     req.StartNodeID,
		StopAfterNodeID: req.StopAfterNodeID,
		InitialResults:  req.InitialResults,
		CreatedAt:       time.Now().UTC(),
	}

	h.enqueueRun(w, r, run)
}

// GetRun возвращает run по ID.
// GET /api/v1/runs/{id}
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}

	Success(w, RunFromDomain(*run))
}

// RetryRun создаёт новый run, который продолжает упавший с узла ошибки.
// Результаты upstream узлов берутся из упавшего run. Если узел ошибки
// неизвестен, повторяется исходный диапазон с исходными результатами.
// POST /api/v1/runs/{id}/retry
func (h *Handler) RetryRun(w http.ResponseWriter, r *http.Request) {
	parent, ok := h.loadRun(w, r)
	if !ok {
		return
	}

	if parent.Status != domain.RunStatusFailed && parent.Status != domain.RunStatusCancelled {
		InvalidState(w, "only failed or cancelled runs can be retried")
		return
	}

	flow, err := h.flows.GetByID(r.Context(), parent.FlowID)
	if HandleRepoError(w, h.logger, err, "flow not found") {
		return
	}

	// Run, брошенный worker'ом, не знает узла ошибки: повторяем его диапазон целиком
	startNodeID := parent.StartNodeID
	seed := parent.InitialResults
	if parent.FailedNodeID != "" {
		startNodeID = parent.FailedNodeID
		seed, err = orchestrator.SeedResults(flow.Nodes, flow.Edges, parent.FailedNodeID, parent.Results)
		if err != nil {
			// Граф изменился после падения
			HandleRunError(w, h.logger, err)
			return
		}
	}

	parentID := parent.ID
	run := &domain.Run{
		ID:              uuid.New(),
		FlowID:          flow.ID,
		Status:          domain.RunStatusPending,
		StartNodeID:     startNodeID,
		StopAfterNodeID: parent.StopAfterNodeID,
		InitialResults:  seed,
		ParentRunID:     &parentID,
		CreatedAt:       time.Now().UTC(),
	}

	if err := orchestrator.NewRunState(flow.Nodes, flow.Edges, orchestrator.Options{
		StartNodeID:     run.StartNodeID,
		StopAfterNodeID: run.StopAfterNodeID,
	}).Initialize(); err != nil {
		HandleRunError(w, h.logger, err)
		return
	}

	h.enqueueRun(w, r, run)
}

// RunEvents стримит события async run до его завершения (NDJSON).
// Для завершённого run сразу отдаётся итоговая строка.
// GET /api/v1/runs/{id}/events
func (h *Handler) RunEvents(w http.ResponseWriter, r *http.Request) {
	if h.watch == nil {
		Unavailable(w, "event streaming is not configured")
		return
	}

	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}

	stream := newNDJSONStream(w)
	if run.IsFinished() {
		stream.Send(finishedLine(run.Status, run.FailedNodeID, run.Error))
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var finished bool
	watcher := mq.RunWatcher{
		OnProgress: func(ev domain.ProgressEvent) error {
			return stream.Send(StreamLine{Type: StreamProgress, Event: &ev})
		},
		OnFinished: func(p mq.RunFinishedPayload) error {
			finished = true
			return stream.Send(finishedLine(p.Status, p.FailedNodeID, p.Error))
		},
	}

	go h.cancelWhenFinished(ctx, run.ID, cancel)

	err := h.watch(ctx, run.ID, watcher)
	if finished || r.Context().Err() != nil {
		return
	}

	// Завершение пришло раньше подписки или брокер недоступен: берём итог из БД
	latest, getErr := h.runs.GetByID(context.WithoutCancel(r.Context()), run.ID)
	if getErr == nil && latest.IsFinished() {
		stream.Send(finishedLine(latest.Status, latest.FailedNodeID, latest.Error))
		return
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		h.logger.Warn("run events watch failed", "run_id", run.ID, "error", err)
		stream.Send(StreamLine{Type: StreamError, Error: "event stream interrupted"})
	}
}

// cancelWhenFinished отменяет ctx, когда run становится терминальным в БД.
func (h *Handler) cancelWhenFinished(ctx context.Context, runID uuid.UUID, cancel context.CancelFunc) {
	ticker := time.NewTicker(runEventsPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run, err := h.runs.GetByID(ctx, runID)
			if err == nil && run.IsFinished() {
				cancel()
				return
			}
		}
	}
}

// enqueueRun сохраняет run и публикует run.pending.
// Если публикация не удалась, run подхватит polling worker'а.
func (h *Handler) enqueueRun(w http.ResponseWriter, r *http.Request, run *domain.Run) {
	if err := h.runs.Create(r.Context(), run); err != nil {
		HandleRepoError(w, h.logger, err, "flow not found")
		return
	}

	if h.publisher != nil {
		if err := h.publisher.PublishRunPending(r.Context(), run.ID); err != nil {
			h.logger.Warn("failed to publish run.pending", "run_id", run.ID, "error", err)
		}
	}

	Created(w, RunFromDomain(*run))
}

// loadRun разбирает {id} и загружает run. При ошибке ответ уже отправлен.
func (h *Handler) loadRun(w http.ResponseWriter, r *http.Request) (*domain.Run, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return nil, false
	}

	run, err := h.runs.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "run not found") {
		return nil, false
	}
	return run, true
}

func finishedLine(status domain.RunStatus, failedNodeID, errMsg string) StreamLine {
	line := StreamLine{Type: StreamComplete, Status: status}
	if status != domain.RunStatusSucceeded {
		line.Type = StreamError
		line.Error = errMsg
		line.FailedNodeID = failedNodeID
	}
	return line
}
