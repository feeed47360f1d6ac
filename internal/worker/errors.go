package worker

import "errors"

// Ошибки воркера.
var (
	// ErrRunNotFound — run не найден в БД.
	ErrRunNotFound = errors.New("run not found")

	// ErrRunNotPending — run уже забрал другой worker или он завершён.
	ErrRunNotPending = errors.New("run is not in PENDING status")

	// ErrFlowNotFound — flow, на который ссылается run, удалён.
	ErrFlowNotFound = errors.New("flow not found")

	// ErrNoOrchestrator — Worker создан без Orchestrator.
	ErrNoOrchestrator = errors.New("worker: orchestrator is not configured")
)

// isSkippable — ожидаемые ситуации, после которых сообщение подтверждается.
func isSkippable(err error) bool {
	return errors.Is(err, ErrRunNotFound) || errors.Is(err, ErrRunNotPending)
}
