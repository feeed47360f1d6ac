package engine

import "errors"

// Ошибки структуры графа.
var (
	// ErrCyclicDependency — граф содержит цикл (в том числе self-loop).
	ErrCyclicDependency = errors.New("circular dependency detected in workflow")

	// ErrUnknownNode — ребро ссылается на несуществующий узел.
	ErrUnknownNode = errors.New("edge references unknown node")

	// ErrDuplicateNodeID — несколько узлов с одинаковым ID.
	ErrDuplicateNodeID = errors.New("duplicate node ID")

	// ErrUnknownNodeType — тип узла вне закрытого набора.
	ErrUnknownNodeType = errors.New("unknown node type")
)

// GraphError — структурная ошибка графа с указанием узла или ребра.
type GraphError struct {
	NodeID  string // ID узла, где обнаружена проблема
	Message string // описание ошибки
	Err     error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *GraphError) Error() string {
	if e.NodeID != "" {
		return "node " + e.NodeID + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *GraphError) Unwrap() error {
	return e.Err
}

// NewGraphError создаёт новую ошибку графа.
func NewGraphError(nodeID, message string, err error) *GraphError {
	return &GraphError{
		NodeID:  nodeID,
		Message: message,
		Err:     err,
	}
}
