package httpbackend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"sync/atomic"

	"github.com/shaiso/Synapse/internal/capability"
)

// Provider — capability.Provider поверх шлюза.
type Provider struct {
	client *Client
	kind   capability.Kind
}

var _ capability.Provider = (*Provider)(nil)

// Kind возвращает capability, которую обслуживает provider.
func (p *Provider) Kind() capability.Kind {
	return p.kind
}

// Availability проверяет состояние модели.
func (p *Provider) Availability(ctx context.Context, opts capability.Options) (capability.Availability, error) {
	resp, err := p.client.do(ctx, http.MethodPost, "/v1/"+string(p.kind)+"/availability", opts)
	if err != nil {
		return capability.Unavailable, err
	}

	var body struct {
		Availability string `json:"availability"`
	}
	if err := decodeJSON(resp, &body); err != nil {
		return capability.Unavailable, err
	}

	return capability.ParseAvailability(body.Availability), nil
}

// sessionEvent — строка ответа на создание сессии.
type sessionEvent struct {
	Progress  *float64   `json:"progress,omitempty"`
	SessionID string     `json:"session_id,omitempty"`
	Error     *errorBody `json:"error,omitempty"`
}

// CreateSession создаёт сессию.
//
// Пока модель загружается, шлюз шлёт строки {"progress": x};
// каждая передаётся в opts.Monitor.
func (p *Provider) CreateSession(ctx context.Context, opts capability.Options) (capability.Session, error) {
	resp, err := p.client.do(ctx, http.MethodPost, "/v1/"+string(p.kind)+"/sessions", opts)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	dec := json.NewDecoder(resp.Body)
	for {
		var ev sessionEvent
		if err := dec.Decode(&ev); err != nil {
			if isEOF(err) {
				return nil, fmt.Errorf("capability gateway closed stream without session id")
			}
			return nil, fmt.Errorf("failed to decode session event: %w", err)
		}

		switch {
		case ev.Error != nil:
			return nil, &APIError{StatusCode: resp.StatusCode, Code: ev.Error.Code, Message: ev.Error.Message}
		case ev.Progress != nil:
			if opts.Monitor != nil {
				opts.Monitor(*ev.Progress)
			}
		case ev.SessionID != "":
			p.client.logger.Debug("session created",
				"capability", p.kind,
				"session_id", ev.SessionID,
			)
			return &Session{client: p.client, id: ev.SessionID}, nil
		}
	}
}

// Session — сессия шлюза.
type Session struct {
	client *Client
	id     string
	closed atomic.Bool
}

var _ capability.Session = (*Session)(nil)

// ID возвращает идентификатор сессии на шлюзе.
func (s *Session) ID() string {
	return s.id
}

func (s *Session) generatePath(stream bool) string {
	path := "/v1/sessions/" + url.PathEscape(s.id) + "/generate"
	if stream {
		path += "?stream=true"
	}
	return path
}

// Generate выполняет one-shot генерацию.
func (s *Session) Generate(ctx context.Context, in capability.Input) (string, error) {
	if s.closed.Load() {
		return "", capability.ErrSessionClosed
	}

	resp, err := s.client.do(ctx, http.MethodPost, s.generatePath(false), in)
	if err != nil {
		return "", err
	}

	var body struct {
		Text string `json:"text"`
	}
	if err := decodeJSON(resp, &body); err != nil {
		return "", err
	}
	return body.Text, nil
}

// streamEvent — строка NDJSON потока генерации.
type streamEvent struct {
	Chunk string     `json:"chunk,omitempty"`
	Done  bool       `json:"done,omitempty"`
	Error *errorBody `json:"error,omitempty"`
}

// GenerateStreaming возвращает поток текстовых дельт.
// Следующая строка читается только после того, как потребитель обработал текущую.
func (s *Session) GenerateStreaming(ctx context.Context, in capability.Input) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if s.closed.Load() {
			yield("", capability.ErrSessionClosed)
			return
		}

		resp, err := s.client.do(ctx, http.MethodPost, s.generatePath(true), in)
		if err != nil {
			yield("", err)
			return
		}
		defer resp.Body.Close()

		dec := json.NewDecoder(resp.Body)
		for {
			var ev streamEvent
			if err := dec.Decode(&ev); err != nil {
				if isEOF(err) {
					yield("", ErrStreamTruncated)
					return
				}
				if ctx.Err() != nil {
					yield("", ctx.Err())
					return
				}
				yield("", fmt.Errorf("failed to decode stream event: %w", err))
				return
			}

			if ev.Error != nil {
				yield("", &APIError{StatusCode: resp.StatusCode, Code: ev.Error.Code, Message: ev.Error.Message})
				return
			}
			if ev.Chunk != "" {
				if !yield(ev.Chunk, nil) {
					return
				}
			}
			if ev.Done {
				return
			}
		}
	}
}

// Close удаляет сессию на шлюзе. Повторный вызов ничего не делает.
func (s *Session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	// Сессию нужно освободить, даже если контекст узла уже отменён
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	resp, err := s.client.do(ctx, http.MethodDelete, "/v1/sessions/"+url.PathEscape(s.id), nil)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil
		}
		return err
	}
	resp.Body.Close()
	return nil
}
