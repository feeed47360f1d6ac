package httpbackend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shaiso/Synapse/internal/capability"
)

const (
	// defaultTimeout — сколько ждать заголовков ответа шлюза.
	defaultTimeout = 2 * time.Minute

	// closeTimeout — таймаут удаления сессии.
	closeTimeout = 10 * time.Second

	maxErrorBody = 64 * 1024
)

// Config — настройки клиента шлюза.
type Config struct {
	// BaseURL — адрес шлюза, например http://localhost:9090.
	BaseURL string

	// Token — bearer токен (необязателен).
	Token string

	// Timeout — ожидание заголовков ответа. По умолчанию 2 минуты.
	// Чтение тела (поток генерации, загрузка модели) ограничено только ctx.
	Timeout time.Duration

	// HTTPClient — свой http.Client (для тестов).
	HTTPClient *http.Client

	Logger *slog.Logger
}

// Client — клиент HTTP шлюза к AI моделям.
//
// Протокол:
//
//	POST   /v1/{capability}/availability      → {"availability": "..."}
//	POST   /v1/{capability}/sessions          → {"progress": 0.4}* {"session_id": "..."}
//	POST   /v1/sessions/{id}/generate         → {"text": "..."}
//	POST   /v1/sessions/{id}/generate?stream=true → {"chunk": "..."}* {"done": true}
//	DELETE /v1/sessions/{id}
//
// Ошибки приходят в конверте {"error": {"code": "...", "message": "..."}}.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// New создаёт клиент шлюза.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Transport: newTransport(cfg.Timeout)}
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		httpClient: httpClient,
		logger:     cfg.Logger.With("component", "capability-http"),
	}
}

// newTransport ограничивает подключение и ожидание заголовков, но не тело ответа.
func newTransport(headerTimeout time.Duration) *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.ResponseHeaderTimeout = headerTimeout
	return t
}

// Provider возвращает capability.Provider для указанной capability.
func (c *Client) Provider(kind capability.Kind) *Provider {
	return &Provider{client: c, kind: kind}
}

// Register регистрирует provider для каждой capability в реестре.
func (c *Client) Register(reg *capability.Registry) {
	for _, kind := range capability.Kinds() {
		reg.Register(kind, c.Provider(kind))
	}
}

// ErrStreamTruncated — поток генерации оборвался без {"done": true}.
var ErrStreamTruncated = errors.New("capability gateway closed stream before completion")

// APIError — ошибка, которую вернул шлюз.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

// Error реализует интерфейс error.
func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("capability gateway returned HTTP %d", e.StatusCode)
}

// errorBody — конверт ошибки шлюза.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error *errorBody `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json, application/x-ndjson")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("capability gateway request failed: %w", err)
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}

	return resp, nil
}

// decodeError читает конверт ошибки из ответа.
func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var env errorEnvelope
	if err := json.Unmarshal(data, &env); err == nil && env.Error != nil {
		apiErr.Code = env.Error.Code
		apiErr.Message = env.Error.Message
	} else if text := strings.TrimSpace(string(data)); text != "" {
		apiErr.Message = text
	}

	return apiErr
}

// decodeJSON декодирует одиночный JSON ответ.
func decodeJSON(resp *http.Response, v any) error {
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// isEOF — поток закончился штатно.
func isEOF(err error) bool {
	return errors.Is(err, io.EOF)
}
