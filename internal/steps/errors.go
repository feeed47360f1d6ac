package steps

import (
	"errors"

	"github.com/shaiso/Synapse/internal/capability"
)

// Ошибки диспетчера.
var (
	// ErrStepNotFound — для типа узла нет шага.
	ErrStepNotFound = errors.New("step type not found")

	// ErrUnknownNodeType — тип узла вне закрытого набора.
	ErrUnknownNodeType = errors.New("unknown node type")

	// ErrCapabilityUnavailable — backend сообщил, что модель недоступна.
	ErrCapabilityUnavailable = errors.New("capability unavailable")

	// ErrNoProvider — для capability не зарегистрирован backend.
	ErrNoProvider = capability.ErrNoProvider
)

// CapabilityError — ошибка выполнения узла backend'ом.
//
// Error() повторяет формат "<Label> failed: <сообщение backend>".
type CapabilityError struct {
	NodeID   string
	NodeName string

	// Label — имя backend для сообщения: Writer, Prompt API, Translator...
	Label string

	Err error
}

// Error реализует интерфейс error.
func (e *CapabilityError) Error() string {
	if e.Label == "" {
		return e.Err.Error()
	}
	return e.Label + " failed: " + e.Err.Error()
}

// Unwrap возвращает исходную ошибку.
func (e *CapabilityError) Unwrap() error {
	return e.Err
}

// UnavailableError — capability недоступна в текущем состоянии.
type UnavailableError struct {
	Kind    capability.Kind
	Status  capability.Availability
	Message string
}

// Error реализует интерфейс error.
func (e *UnavailableError) Error() string {
	return e.Message
}

// Unwrap позволяет проверять errors.Is(err, ErrCapabilityUnavailable).
func (e *UnavailableError) Unwrap() error {
	return ErrCapabilityUnavailable
}
