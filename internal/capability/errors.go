package capability

import "errors"

var (
	// ErrNoProvider — для capability не зарегистрирован backend.
	ErrNoProvider = errors.New("capability provider not registered")

	// ErrSessionClosed — вызов на закрытой сессии.
	ErrSessionClosed = errors.New("capability session closed")
)
