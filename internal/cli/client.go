package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shaiso/Synapse/internal/domain"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// FlowResponse — flow из API.
type FlowResponse struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Nodes       []domain.Node `json:"nodes"`
	Edges       []domain.Edge `json:"edges"`
	CreatedAt   string        `json:"created_at"`
	UpdatedAt   string        `json:"updated_at"`
}

// ValidationResponse — результат проверки графа.
type ValidationResponse struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// OrderedNode — узел в порядке выполнения.
type OrderedNode struct {
	Position int    `json:"position"`
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
}

// RunResponse — run из API.
type RunResponse struct {
	ID              string                    `json:"id"`
	FlowID          string                    `json:"flow_id"`
	Status          string                    `json:"status"`
	StartNodeID     string                    `json:"start_node_id,omitempty"`
	StopAfterNodeID string                    `json:"stop_after_node_id,omitempty"`
	Results         map[string]domain.Payload `json:"results,omitempty"`
	FailedNodeID    string                    `json:"failed_node_id,omitempty"`
	ParentRunID     string                    `json:"parent_run_id,omitempty"`
	StartedAt       string                    `json:"started_at,omitempty"`
	FinishedAt      string                    `json:"finished_at,omitempty"`
	DurationMs      int64                     `json:"duration_ms,omitempty"`
	Error           string                    `json:"error,omitempty"`
	CreatedAt       string                    `json:"created_at"`
}

// StreamLine — строка NDJSON-потока выполнения.
type StreamLine struct {
	Type         string                    `json:"type"`
	Event        *domain.ProgressEvent     `json:"event,omitempty"`
	Results      map[string]domain.Payload `json:"results,omitempty"`
	Error        string                    `json:"error,omitempty"`
	FailedNodeID string                    `json:"failed_node_id,omitempty"`
	Status       string                    `json:"status,omitempty"`
}

// Типы строк потока.
const (
	LineProgress = "progress"
	LineComplete = "complete"
	LineError    = "error"
)

// --- Request types ---

// FlowRequest — создание или замена flow.
type FlowRequest struct {
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Nodes       []domain.Node `json:"nodes"`
	Edges       []domain.Edge `json:"edges"`
}

// FlowRequestFrom собирает запрос из определения flow.
func FlowRequestFrom(flow *domain.Flow) FlowRequest {
	return FlowRequest{
		Name:        flow.Name,
		Description: flow.Description,
		Nodes:       flow.Nodes,
		Edges:       flow.Edges,
	}
}

// ExecuteRequest — параметры запуска (полного или частичного).
type ExecuteRequest struct {
	StartNodeID     string                    `json:"start_node_id,omitempty"`
	StopAfterNodeID string                    `json:"stop_after_node_id,omitempty"`
	InitialResults  map[string]domain.Payload `json:"initial_results,omitempty"`
}

// ListRunsOpts — параметры фильтрации runs.
type ListRunsOpts struct {
	FlowID string
	Status string
	Limit  int
}

// LineFunc получает строки потока по мере поступления.
// Ошибка прерывает чтение потока.
type LineFunc func(StreamLine) error

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для Synapse API.
type Client struct {
	baseURL    string
	httpClient *http.Client

	// streamClient без таймаута: выполнение flow может идти минутами,
	// поток обрывается через context.
	streamClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		streamClient: &http.Client{},
	}
}

// --- Flows ---

// ListFlows возвращает все flows.
func (c *Client) ListFlows() ([]FlowResponse, error) {
	var flows []FlowResponse
	err := c.list("/api/v1/flows", nil, &flows)
	return flows, err
}

// CreateFlow создаёт новый flow.
func (c *Client) CreateFlow(req FlowRequest) (*FlowResponse, error) {
	var flow FlowResponse
	err := c.post("/api/v1/flows", req, &flow)
	return &flow, err
}

// GetFlow возвращает flow по ID.
func (c *Client) GetFlow(id string) (*FlowResponse, error) {
	var flow FlowResponse
	err := c.get("/api/v1/flows/"+id, &flow)
	return &flow, err
}

// UpdateFlow заменяет имя, описание и граф flow.
func (c *Client) UpdateFlow(id string, req FlowRequest) (*FlowResponse, error) {
	var flow FlowResponse
	err := c.put("/api/v1/flows/"+id, req, &flow)
	return &flow, err
}

// DeleteFlow удаляет flow.
func (c *Client) DeleteFlow(id string) error {
	return c.delete("/api/v1/flows/" + id)
}

// ValidateFlow проверяет сохранённый flow.
func (c *Client) ValidateFlow(id string) (*ValidationResponse, error) {
	var report ValidationResponse
	err := c.get("/api/v1/flows/"+id+"/validate", &report)
	return &report, err
}

// FlowOrder возвращает порядок выполнения узлов flow.
func (c *Client) FlowOrder(id string) ([]OrderedNode, error) {
	var order []OrderedNode
	err := c.list("/api/v1/flows/"+id+"/order", nil, &order)
	return order, err
}

// Execute выполняет flow синхронно и передаёт строки потока в fn.
func (c *Client) Execute(ctx context.Context, flowID string, req ExecuteRequest, fn LineFunc) error {
	return c.stream(ctx, http.MethodPost, "/api/v1/flows/"+flowID+"/execute", req, fn)
}

// --- Runs ---

// ListRuns возвращает список runs с фильтрацией.
func (c *Client) ListRuns(opts ListRunsOpts) ([]RunResponse, error) {
	params := url.Values{}
	if opts.FlowID != "" {
		params.Set("flow_id", opts.FlowID)
	}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}

	var runs []RunResponse
	err := c.list("/api/v1/runs", params, &runs)
	return runs, err
}

// CreateRun ставит run в очередь.
func (c *Client) CreateRun(flowID string, req ExecuteRequest) (*RunResponse, error) {
	var run RunResponse
	err := c.post("/api/v1/flows/"+flowID+"/runs", req, &run)
	return &run, err
}

// GetRun возвращает run по ID.
func (c *Client) GetRun(id string) (*RunResponse, error) {
	var run RunResponse
	err := c.get("/api/v1/runs/"+id, &run)
	return &run, err
}

// RetryRun перезапускает упавший run с узла, на котором он остановился.
func (c *Client) RetryRun(id string) (*RunResponse, error) {
	var run RunResponse
	err := c.post("/api/v1/runs/"+id+"/retry", nil, &run)
	return &run, err
}

// RunEvents читает события run до его завершения.
func (c *Client) RunEvents(ctx context.Context, id string, fn LineFunc) error {
	return c.stream(ctx, http.MethodGet, "/api/v1/runs/"+id+"/events", nil, fn)
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) put(path string, body any, result any) error {
	return c.doData(http.MethodPut, path, body, result)
}

func (c *Client) delete(path string) error {
	resp, err := c.do(http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.checkError(resp)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

// stream выполняет запрос и читает NDJSON-ответ построчно.
func (c *Client) stream(ctx context.Context, method, path string, body any, fn LineFunc) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/x-ndjson")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	scanner := bufio.NewScanner(resp.Body)
	// Результаты узлов могут быть большими
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		var line StreamLine
		if err := json.Unmarshal(raw, &line); err != nil {
			return fmt.Errorf("failed to decode stream line: %w", err)
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	req, err := c.newRequest(context.Background(), method, path, body)
	if err != nil {
		return nil, err
	}
	return c.httpClient.Do(req)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
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
	return req, nil
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
