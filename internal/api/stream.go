package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
)

// ndjsonStream пишет объекты построчно и сбрасывает буфер после каждой строки.
// После первой ошибки записи остальные строки молча отбрасываются.
type ndjsonStream struct {
	mu  sync.Mutex
	enc *json.Encoder
	rc  *http.ResponseController
	err error
}

// newNDJSONStream отправляет заголовки 200 и открывает поток.
func newNDJSONStream(w http.ResponseWriter) *ndjsonStream {
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)

	return &ndjsonStream{
		enc: json.NewEncoder(w),
		rc:  http.NewResponseController(w),
	}
}

// Send записывает одну строку.
func (s *ndjsonStream) Send(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}
	if err := s.enc.Encode(v); err != nil {
		s.err = err
		return err
	}
	if err := s.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		s.err = err
	}
	return s.err
}

// Err возвращает первую ошибку записи (клиент отключился).
func (s *ndjsonStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
