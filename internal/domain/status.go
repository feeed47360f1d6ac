package domain

// RunStatus — статус выполнения run.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → SUCCEEDED
//	                  ↘ FAILED
//	          (или) → CANCELLED (из PENDING или RUNNING)
type RunStatus string

const (
	// RunStatusPending — run создан, но ещё не начал выполняться.
	RunStatusPending RunStatus = "PENDING"

	// RunStatusRunning — run в процессе выполнения.
	RunStatusRunning RunStatus = "RUNNING"

	// RunStatusSucceeded — все узлы диапазона выполнены.
	RunStatusSucceeded RunStatus = "SUCCEEDED"

	// RunStatusFailed — один из узлов упал, выполнение остановлено.
	RunStatusFailed RunStatus = "FAILED"

	// RunStatusCancelled — run прерван через context.
	RunStatusCancelled RunStatus = "CANCELLED"
)

// IsTerminal возвращает true, если статус финальный (run завершён).
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusSucceeded, RunStatusFailed, RunStatusCancelled:
		return true
	default:
		return false
	}
}

// IsValid проверяет, что статус из известного набора.
func (s RunStatus) IsValid() bool {
	return s == RunStatusPending || s == RunStatusRunning || s.IsTerminal()
}

// NodeStatus — статус узла в событии прогресса.
//
// Порядок событий для одного узла:
//
//	running → streaming* → completed | error | cancelled
type NodeStatus string

const (
	NodeStatusRunning   NodeStatus = "running"
	NodeStatusStreaming NodeStatus = "streaming"
	NodeStatusCompleted NodeStatus = "completed"
	NodeStatusError     NodeStatus = "error"
	NodeStatusCancelled NodeStatus = "cancelled"
)

// IsTerminal возвращает true для финальных статусов узла.
func (s NodeStatus) IsTerminal() bool {
	switch s {
	case NodeStatusCompleted, NodeStatusError, NodeStatusCancelled:
		return true
	default:
		return false
	}
}

// ProgressEvent — событие прогресса выполнения узла.
type ProgressEvent struct {
	NodeID   string     `json:"nodeId"`
	NodeName string     `json:"nodeName"`
	Status   NodeStatus `json:"status"`

	// Result — накопленный результат (streaming) или итоговый (completed).
	Result *Payload `json:"result,omitempty"`

	// Error — сообщение об ошибке (error, cancelled).
	Error string `json:"error,omitempty"`
}
