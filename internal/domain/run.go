package domain

import (
	"time"

	"github.com/google/uuid"
)

// Run — запись о выполнении flow (полном или частичном).
//
// Run создаётся, когда пользователь запускает flow через API/CLI
// или повторяет упавший run с места ошибки.
// Results хранит карту результатов на момент завершения — в том числе
// после ошибки, чтобы retry мог продолжить без пересчёта upstream узлов.
type Run struct {
	// ID — уникальный идентификатор run.
	ID uuid.UUID `json:"id"`

	// FlowID — ссылка на выполняемый flow.
	FlowID uuid.UUID `json:"flow_id"`

	// Status — текущий статус выполнения.
	Status RunStatus `json:"status"`

	// StartNodeID — узел, с которого начинается частичный run (пусто — с начала).
	StartNodeID string `json:"start_node_id,omitempty"`

	// StopAfterNodeID — последний выполняемый узел (включительно).
	StopAfterNodeID string `json:"stop_after_node_id,omitempty"`

	// InitialResults — результаты узлов до StartNodeID, переданные при запуске.
	InitialResults map[string]Payload `json:"initial_results,omitempty"`

	// Results — карта результатов (ключ — имя узла).
	Results map[string]Payload `json:"results,omitempty"`

	// FailedNodeID — узел, на котором run упал.
	FailedNodeID string `json:"failed_node_id,omitempty"`

	// ParentRunID — run, который повторяет этот (для retry).
	ParentRunID *uuid.UUID `json:"parent_run_id,omitempty"`

	// StartedAt — время перехода в RUNNING.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время завершения.
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// Error — текст ошибки для FAILED/CANCELLED.
	Error string `json:"error,omitempty"`

	// CreatedAt — время создания run.
	CreatedAt time.Time `json:"created_at"`
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если run ещё не завершён.
func (r *Run) Duration() time.Duration {
	if r.StartedAt == nil || r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(*r.StartedAt)
}

// IsFinished возвращает true, если run завершён (в любом статусе).
func (r *Run) IsFinished() bool {
	return r.Status.IsTerminal()
}

// MarkRunning переводит run в статус RUNNING.
func (r *Run) MarkRunning() {
	now := time.Now()
	r.Status = RunStatusRunning
	r.StartedAt = &now
}

// MarkSucceeded переводит run в статус SUCCEEDED и сохраняет результаты.
func (r *Run) MarkSucceeded(results map[string]Payload) {
	now := time.Now()
	r.Status = RunStatusSucceeded
	r.FinishedAt = &now
	r.Results = results
}

// MarkFailed переводит run в статус FAILED.
// results — результаты узлов, успевших завершиться до ошибки.
func (r *Run) MarkFailed(nodeID, errMsg string, results map[string]Payload) {
	now := time.Now()
	r.Status = RunStatusFailed
	r.FinishedAt = &now
	r.FailedNodeID = nodeID
	r.Error = errMsg
	r.Results = results
}

// MarkCancelled переводит run в статус CANCELLED.
func (r *Run) MarkCancelled(results map[string]Payload) {
	now := time.Now()
	r.Status = RunStatusCancelled
	r.FinishedAt = &now
	r.Results = results
}
