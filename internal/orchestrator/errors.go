package orchestrator

import "errors"

// Ошибки диапазона частичного run.
var (
	// ErrInvalidRange — общий предок ошибок диапазона.
	ErrInvalidRange = errors.New("invalid run range")

	// ErrStartNodeNotFound — startNodeId нет в порядке выполнения.
	ErrStartNodeNotFound = &rangeError{msg: "Start node not found in workflow"}

	// ErrStopNodeNotFound — stopAfterNodeId нет в порядке выполнения.
	ErrStopNodeNotFound = &rangeError{msg: "Stop node not found in workflow"}

	// ErrStopBeforeStart — stopAfterNodeId стоит раньше startNodeId.
	ErrStopBeforeStart = &rangeError{msg: "Stop node must be after the start node."}
)

// ErrNilDispatcher — Orchestrator создан без диспетчера.
var ErrNilDispatcher = errors.New("orchestrator: dispatcher is not configured")

type rangeError struct {
	msg string
}

func (e *rangeError) Error() string { return e.msg }

func (e *rangeError) Unwrap() error { return ErrInvalidRange }

// OrderingError — неверный диапазон частичного run.
// Возвращается до выполнения первого узла.
type OrderingError struct {
	// NodeID — узел из запроса, который не удалось расположить.
	NodeID string

	Err error
}

// Error реализует интерфейс error.
func (e *OrderingError) Error() string {
	return e.Err.Error()
}

// Unwrap позволяет проверять errors.Is(err, ErrStartNodeNotFound) и ErrInvalidRange.
func (e *OrderingError) Unwrap() error {
	return e.Err
}

// NodeError — ошибка выполнения конкретного узла.
//
// Error() имеет вид: Failed to execute node "<name>": <сообщение>.
type NodeError struct {
	NodeID   string
	NodeName string
	Err      error
}

// Error реализует интерфейс error.
func (e *NodeError) Error() string {
	return `Failed to execute node "` + e.NodeName + `": ` + e.Err.Error()
}

// Unwrap возвращает исходную ошибку диспетчера.
func (e *NodeError) Unwrap() error {
	return e.Err
}
