package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Synapse/internal/domain"
	"github.com/shaiso/Synapse/internal/orchestrator"
)

// Flow DTOs

// FlowRequest — запрос на создание или замену flow.
type FlowRequest struct {
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Nodes       []domain.Node `json:"nodes"`
	Edges       []domain.Edge `json:"edges"`
}

// FlowResponse — ответ с flow.
type FlowResponse struct {
	ID          uuid.UUID     `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Nodes       []domain.Node `json:"nodes"`
	Edges       []domain.Edge `json:"edges"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// FlowFromDomain конвертирует domain.Flow в FlowResponse.
func FlowFromDomain(f domain.Flow) FlowResponse {
	return FlowResponse{
		ID:          f.ID,
		Name:        f.Name,
		Description: f.Description,
		Nodes:       f.Nodes,
		Edges:       f.Edges,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// ValidateRequest — граф для проверки без сохранения.
type ValidateRequest struct {
	Nodes []domain.Node `json:"nodes"`
	Edges []domain.Edge `json:"edges"`
}

// OrderedNode — узел в порядке выполнения.
type OrderedNode struct {
	Position int             `json:"position"`
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Type     domain.NodeType `json:"type"`
}

// Execution DTOs

// ExecuteRequest — параметры запуска (полного или частичного).
type ExecuteRequest struct {
	StartNodeID     string                    `json:"start_node_id,omitempty"`
	StopAfterNodeID string                    `json:"stop_after_node_id,omitempty"`
	InitialResults  map[string]domain.Payload `json:"initial_results,omitempty"`
}

// Options конвертирует запрос в параметры orchestrator.
func (r ExecuteRequest) Options() orchestrator.Options {
	return orchestrator.Options{
		StartNodeID:     r.StartNodeID,
		StopAfterNodeID: r.StopAfterNodeID,
		InitialResults:  r.InitialResults,
	}
}

// Типы строк NDJSON-потока.
const (
	StreamProgress = "progress"
	StreamComplete = "complete"
	StreamError    = "error"
)

// StreamLine — одна строка NDJSON-потока выполнения.
type StreamLine struct {
	Type string `json:"type"`

	// progress
	Event *domain.ProgressEvent `json:"event,omitempty"`

	// complete
	Results map[string]domain.Payload `json:"results,omitempty"`

	// error
	Error        string `json:"error,omitempty"`
	FailedNodeID string `json:"failed_node_id,omitempty"`

	// run.finished (для /runs/{id}/events)
	Status domain.RunStatus `json:"status,omitempty"`
}

// Run DTOs

// CreateRunRequest — запрос на создание async run.
type CreateRunRequest = ExecuteRequest

// RunResponse — ответ с run.
type RunResponse struct {
	ID              uuid.UUID                 `json:"id"`
	FlowID          uuid.UUID                 `json:"flow_id"`
	Status          string                    `json:"status"`
	StartNodeID     string                    `json:"start_node_id,omitempty"`
	StopAfterNodeID string                    `json:"stop_after_node_id,omitempty"`
	InitialResults  map[string]domain.Payload `json:"initial_results,omitempty"`
	Results         map[string]domain.Payload `json:"results,omitempty"`
	FailedNodeID    string                    `json:"failed_node_id,omitempty"`
	ParentRunID     *uuid.UUID                `json:"parent_run_id,omitempty"`
	StartedAt       *time.Time                `json:"started_at,omitempty"`
	FinishedAt      *time.Time                `json:"finished_at,omitempty"`
	DurationMs      int64                     `json:"duration_ms,omitempty"`
	Error           string                    `json:"error,omitempty"`
	CreatedAt       time.Time                 `json:"created_at"`
}

// RunFromDomain конвертирует domain.Run в RunResponse.
func RunFromDomain(r domain.Run) RunResponse {
	return RunResponse{
		ID:              r.ID,
		FlowID:          r.FlowID,
		Status:          string(r.Status),
		StartNodeID:     r.StartNodeID,
		StopAfterNodeID: r.StopAfterNodeID,
		InitialResults:  r.InitialResults,
		Results:         r.Results,
		FailedNodeID:    r.FailedNodeID,
		ParentRunID:     r.ParentRunID,
		StartedAt:       r.StartedAt,
		FinishedAt:      r.FinishedAt,
		DurationMs:      r.Duration().Milliseconds(),
		Error:           r.Error,
		CreatedAt:       r.CreatedAt,
	}
}
