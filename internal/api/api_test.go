package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shaiso/Synapse/internal/capability"
	"github.com/shaiso/Synapse/internal/capability/capabilitytest"
	"github.com/shaiso/Synapse/internal/domain"
	"github.com/shaiso/Synapse/internal/mq"
	"github.com/shaiso/Synapse/internal/orchestrator"
	"github.com/shaiso/Synapse/internal/repo"
	"github.com/shaiso/Synapse/internal/steps"
)

// --- Fakes ---

type memFlows struct {
	mu    sync.Mutex
	flows map[uuid.UUID]domain.Flow
}

func (m *memFlows) Create(_ context.Context, f *domain.Flow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flows[f.ID] = *f
	return nil
}

func (m *memFlows) GetByID(_ context.Context, id uuid.UUID) (*domain.Flow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.flows[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &f, nil
}

func (m *memFlows) List(_ context.Context) ([]domain.Flow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Flow, 0, len(m.flows))
	for _, f := range m.flows {
		out = append(out, f)
	}
	return out, nil
}

func (m *memFlows) Update(_ context.Context, f *domain.Flow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.flows[f.ID]; !ok {
		return repo.ErrNotFound
	}
	m.flows[f.ID] = *f
	return nil
}

func (m *memFlows) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.flows[id]; !ok {
		return repo.ErrNotFound
	}
	delete(m.flows, id)
	return nil
}

type memRuns struct {
	mu   sync.Mutex
	runs map[uuid.UUID]domain.Run
}

func (m *memRuns) Create(_ context.Context, r *domain.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[r.ID] = *r
	return nil
}

func (m *memRuns) GetByID(_ context.Context, id uuid.UUID) (*domain.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &r, nil
}

func (m *memRuns) List(_ context.Context, filter repo.RunFilter) ([]domain.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Run
	for _, r := range m.runs {
		if filter.FlowID != nil && r.FlowID != *filter.FlowID {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

type fakePublisher struct {
	pending []uuid.UUID
	err     error
}

func (p *fakePublisher) PublishRunPending(_ context.Context, runID uuid.UUID) error {
	p.pending = append(p.pending, runID)
	return p.err
}

// --- Helpers ---

type testAPI struct {
	mux       *http.ServeMux
	flows     *memFlows
	runs      *memRuns
	publisher *fakePublisher
	writer    *capabilitytest.Provider
}

func newTestAPI(t *testing.T, watch WatchFunc) *testAPI {
	t.Helper()

	writer := capabilitytest.New().Reply("Hi", "!")
	caps := capability.NewRegistry()
	caps.Register(capability.KindWriter, writer)

	api := &testAPI{
		mux:       http.NewServeMux(),
		flows:     &memFlows{flows: make(map[uuid.UUID]domain.Flow)},
		runs:      &memRuns{runs: make(map[uuid.UUID]domain.Run)},
		publisher: &fakePublisher{},
		writer:    writer,
	}

	h := NewHandler(Config{
		FlowRepo:  api.flows,
		RunRepo:   api.runs,
		Publisher: api.publisher,
		Orchestrator: orchestrator.New(orchestrator.Config{
			Dispatcher: steps.NewDispatcher(steps.DispatcherConfig{Registry: steps.DefaultRegistry(caps)}),
		}),
		Watch:  watch,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	h.RegisterRoutes(api.mux)
	return api
}

func (a *testAPI) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	a.mux.ServeHTTP(rec, req)
	return rec
}

// seedFlow сохраняет flow A(textInput) → B(writer).
func (a *testAPI) seedFlow() domain.Flow {
	flow := domain.Flow{
		ID:   uuid.New(),
		Name: "greeting",
		Nodes: []domain.Node{
			{ID: "a", Type: domain.NodeTypeTextInput, Name: "A", Config: domain.NodeConfig{Text: "Hello"}},
			{ID: "b", Type: domain.NodeTypeWriter, Name: "B", Config: domain.NodeConfig{Context: "{{A}} world"}},
		},
		Edges: []domain.Edge{{Source: "a", Target: "b"}},
	}
	a.flows.flows[flow.ID] = flow
	return flow
}

func decodeData[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var resp struct {
		Data T `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return resp.Data
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorDetail {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error %q: %v", rec.Body.String(), err)
	}
	return resp.Error
}

func readLines(t *testing.T, rec *httptest.ResponseRecorder) []StreamLine {
	t.Helper()
	var lines []StreamLine
	sc := bufio.NewScanner(rec.Body)
	for sc.Scan() {
		var line StreamLine
		if err := json.Unmarshal(sc.Bytes(), &line); err != nil {
			t.Fatalf("decode line %q: %v", sc.Text(), err)
		}
		lines = append(lines, line)
	}
	return lines
}

// --- Flow Tests ---

func TestCreateAndGetFlow(t *testing.T) {
	api := newTestAPI(t, nil)

	rec := api.do(http.MethodPost, "/api/v1/flows", FlowRequest{
		Name:  "  ",
		Nodes: []domain.Node{{ID: "n1", Type: "inputNode", Name: "Input", Config: domain.NodeConfig{Text: "x"}}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	created := decodeData[FlowResponse](t, rec)
	if created.Name != domain.DefaultFlowName {
		t.Errorf("expected default name, got %q", created.Name)
	}
	if created.Nodes[0].Type != domain.NodeTypeTextInput {
		t.Errorf("inputNode alias should become textInput, got %q", created.Nodes[0].Type)
	}
	if created.Edges == nil {
		t.Error("edges should be an empty list, not null")
	}

	rec = api.do(http.MethodGet, "/api/v1/flows/"+created.ID.String(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := decodeData[FlowResponse](t, rec); got.ID != created.ID {
		t.Errorf("expected flow %s, got %s", created.ID, got.ID)
	}
}

func TestUpdateFlow_SyncsAttachmentSelections(t *testing.T) {
	api := newTestAPI(t, nil)
	flow := api.seedFlow()

	rec := api.do(http.MethodPut, "/api/v1/flows/"+flow.ID.String(), FlowRequest{
		Name: "vision",
		Nodes: []domain.Node{
			{ID: "img", Type: domain.NodeTypeImageInput, Name: "Photo"},
			{ID: "p", Type: domain.NodeTypePrompt, Name: "Ask", Config: domain.NodeConfig{
				SelectedAttachments:  []string{"Deleted"},
				ImageAttachmentLimit: 1,
			}},
		},
		Edges: []domain.Edge{{Source: "img", Target: "p"}},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	// Устаревший выбор заменён подключённым узлом
	got := decodeData[FlowResponse](t, rec)
	if sel := got.Nodes[1].Config.SelectedAttachments; len(sel) != 1 || sel[0] != "Photo" {
		t.Errorf("expected selection [Photo], got %v", sel)
	}
	if saved := api.flows.flows[flow.ID]; saved.Nodes[1].Config.SelectedAttachments[0] != "Photo" {
		t.Errorf("stored flow should keep synced selection, got %v", saved.Nodes[1].Config.SelectedAttachments)
	}
}

func TestGetFlow_Errors(t *testing.T) {
	api := newTestAPI(t, nil)

	rec := api.do(http.MethodGet, "/api/v1/flows/not-a-uuid", nil)
	if rec.Code != http.StatusBadRequest || decodeError(t, rec).Code != ErrCodeBadRequest {
		t.Errorf("expected 400 BAD_REQUEST, got %d %s", rec.Code, rec.Body.String())
	}

	rec = api.do(http.MethodGet, "/api/v1/flows/"+uuid.NewString(), nil)
	if rec.Code != http.StatusNotFound || decodeError(t, rec).Message != "flow not found" {
		t.Errorf("expected 404 flow not found, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestUpdateAndDeleteFlow(t *testing.T) {
	api := newTestAPI(t, nil)
	flow := api.seedFlow()

	rec := api.do(http.MethodPut, "/api/v1/flows/"+flow.ID.String(), FlowRequest{
		Name:  "renamed",
		Nodes: flow.Nodes[:1],
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	updated := decodeData[FlowResponse](t, rec)
	if updated.Name != "renamed" || len(updated.Nodes) != 1 || len(updated.Edges) != 0 {
		t.Errorf("unexpected updated flow: %+v", updated)
	}

	rec = api.do(http.MethodDelete, "/api/v1/flows/"+flow.ID.String(), nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	rec = api.do(http.MethodDelete, "/api/v1/flows/"+flow.ID.String(), nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 on second delete, got %d", rec.Code)
	}
}

func TestValidateGraph(t *testing.T) {
	api := newTestAPI(t, nil)

	rec := api.do(http.MethodPost, "/api/v1/validate", ValidateRequest{})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	report := decodeData[struct {
		Valid  bool     `json:"valid"`
		Errors []string `json:"errors"`
	}](t, rec)
	if report.Valid || len(report.Errors) != 1 || !strings.HasPrefix(report.Errors[0], "Workflow is empty") {
		t.Errorf("unexpected report: %+v", report)
	}

	flow := api.seedFlow()
	rec = api.do(http.MethodGet, "/api/v1/flows/"+flow.ID.String()+"/validate", nil)
	if !decodeData[struct {
		Valid bool `json:"valid"`
	}](t, rec).Valid {
		t.Errorf("seeded flow should be valid: %s", rec.Body.String())
	}
}

func TestFlowOrder(t *testing.T) {
	api := newTestAPI(t, nil)
	flow := api.seedFlow()

	rec := api.do(http.MethodGet, "/api/v1/flows/"+flow.ID.String()+"/order", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	order := decodeData[[]OrderedNode](t, rec)
	if len(order) != 2 || order[0].ID != "a" || order[1].ID != "b" || order[1].Position != 1 {
		t.Errorf("unexpected order: %+v", order)
	}

	// Цикл → 422
	flow.Edges = append(flow.Edges, domain.Edge{Source: "b", Target: "a"})
	api.flows.flows[flow.ID] = flow
	rec = api.do(http.MethodGet, "/api/v1/flows/"+flow.ID.String()+"/order", nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for cycle, got %d", rec.Code)
	}
}

// --- Execute Tests ---

func TestExecuteFlow_Stream(t *testing.T) {
	api := newTestAPI(t, nil)
	flow := api.seedFlow()

	rec := api.do(http.MethodPost, "/api/v1/flows/"+flow.ID.String()+"/execute", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/x-ndjson" {
		t.Errorf("expected ndjson content type, got %q", ct)
	}

	lines := readLines(t, rec)
	var trace []string
	for _, l := range lines[:len(lines)-1] {
		if l.Type != StreamProgress || l.Event == nil {
			t.Fatalf("expected progress line, got %+v", l)
		}
		trace = append(trace, l.Event.NodeName+":"+string(l.Event.Status))
	}
	expected := "A:running A:completed B:running B:streaming B:streaming B:completed"
	if strings.Join(trace, " ") != expected {
		t.Errorf("expected %q, got %q", expected, strings.Join(trace, " "))
	}

	last := lines[len(lines)-1]
	if last.Type != StreamComplete || last.Results["B"].Text != "Hi!" {
		t.Errorf("unexpected final line: %+v", last)
	}
}

func TestExecuteFlow_NodeError(t *testing.T) {
	api := newTestAPI(t, nil)
	api.writer.Fail(errors.New("quota exceeded"))
	flow := api.seedFlow()

	rec := api.do(http.MethodPost, "/api/v1/flows/"+flow.ID.String()+"/execute", nil)
	lines := readLines(t, rec)
	last := lines[len(lines)-1]

	if last.Type != StreamError || last.FailedNodeID != "b" {
		t.Fatalf("unexpected final line: %+v", last)
	}
	if !strings.HasPrefix(last.Error, `Failed to execute node "B": `) || !strings.HasSuffix(last.Error, "quota exceeded") {
		t.Errorf("unexpected error: %q", last.Error)
	}
	if last.Results["A"].Text != "Hello" {
		t.Errorf("completed results should be included, got %+v", last.Results)
	}
}

func TestExecuteFlow_RangeError(t *testing.T) {
	api := newTestAPI(t, nil)
	flow := api.seedFlow()

	rec := api.do(http.MethodPost, "/api/v1/flows/"+flow.ID.String()+"/execute", ExecuteRequest{StartNodeID: "zzz"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if msg := decodeError(t, rec).Message; msg != "Start node not found in workflow" {
		t.Errorf("unexpected message %q", msg)
	}
	if len(api.writer.Calls()) != 0 {
		t.Error("no node should run")
	}
}

func TestExecuteFlow_Partial(t *testing.T) {
	api := newTestAPI(t, nil)
	flow := api.seedFlow()

	rec := api.do(http.MethodPost, "/api/v1/flows/"+flow.ID.String()+"/execute", ExecuteRequest{
		StartNodeID:    "b",
		InitialResults: map[string]domain.Payload{"A": {Text: "Hey"}},
	})
	lines := readLines(t, rec)
	if lines[0].Event == nil || lines[0].Event.NodeID != "b" {
		t.Errorf("partial run should start at b, got %+v", lines[0])
	}
	if calls := api.writer.Calls(); len(calls) != 1 || calls[0].Input.Text != "Hey world" {
		t.Errorf("writer should see seeded input, got %+v", calls)
	}
}

// --- Run Tests ---

func TestCreateRun(t *testing.T) {
	api := newTestAPI(t, nil)
	flow := api.seedFlow()

	rec := api.do(http.MethodPost, "/api/v1/flows/"+flow.ID.String()+"/runs", CreateRunRequest{StopAfterNodeID: "a"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	run := decodeData[RunResponse](t, rec)
	if run.Status != string(domain.RunStatusPending) || run.StopAfterNodeID != "a" {
		t.Errorf("unexpected run: %+v", run)
	}
	if len(api.publisher.pending) != 1 || api.publisher.pending[0] != run.ID {
		t.Errorf("run.pending should be published, got %v", api.publisher.pending)
	}
	if _, ok := api.runs.runs[run.ID]; !ok {
		t.Error("run should be stored")
	}
}

func TestCreateRun_PublishFailureStillCreates(t *testing.T) {
	api := newTestAPI(t, nil)
	api.publisher.err = errors.New("broker down")
	flow := api.seedFlow()

	rec := api.do(http.MethodPost, "/api/v1/flows/"+flow.ID.String()+"/runs", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
}

func TestCreateRun_InvalidRange(t *testing.T) {
	api := newTestAPI(t, nil)
	flow := api.seedFlow()

	rec := api.do(http.MethodPost, "/api/v1/flows/"+flow.ID.String()+"/runs", CreateRunRequest{StartNodeID: "b", StopAfterNodeID: "a"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if msg := decodeError(t, rec).Message; msg != "Stop node must be after the start node." {
		t.Errorf("unexpected message %q", msg)
	}
	if len(api.runs.runs) != 0 {
		t.Error("run should not be stored")
	}
}

func TestRetryRun(t *testing.T) {
	api := newTestAPI(t, nil)
	flow := api.seedFlow()

	failed := domain.Run{
		ID:           uuid.New(),
		FlowID:       flow.ID,
		Status:       domain.RunStatusFailed,
		FailedNodeID: "b",
		Results:      map[string]domain.Payload{"A": {Text: "Hello"}},
		Error:        `Failed to execute node "B": Writer failed: boom`,
	}
	api.runs.runs[failed.ID] = failed

	rec := api.do(http.MethodPost, "/api/v1/runs/"+failed.ID.String()+"/retry", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	retry := decodeData[RunResponse](t, rec)
	if retry.StartNodeID != "b" {
		t.Errorf("retry should start at failed node, got %q", retry.StartNodeID)
	}
	if retry.ParentRunID == nil || *retry.ParentRunID != failed.ID {
		t.Errorf("expected parent run %s, got %v", failed.ID, retry.ParentRunID)
	}
	if retry.InitialResults["A"].Text != "Hello" {
		t.Errorf("expected seeded results, got %+v", retry.InitialResults)
	}
}

func TestRetryRun_NotFailed(t *testing.T) {
	api := newTestAPI(t, nil)
	flow := api.seedFlow()

	ok := domain.Run{ID: uuid.New(), FlowID: flow.ID, Status: domain.RunStatusSucceeded}
	api.runs.runs[ok.ID] = ok

	rec := api.do(http.MethodPost, "/api/v1/runs/"+ok.ID.String()+"/retry", nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", rec.Code)
	}
}

func TestListRuns(t *testing.T) {
	api := newTestAPI(t, nil)
	flow := api.seedFlow()
	other := uuid.New()

	for _, r := range []domain.Run{
		{ID: uuid.New(), FlowID: flow.ID, Status: domain.RunStatusPending},
		{ID: uuid.New(), FlowID: flow.ID, Status: domain.RunStatusFailed},
		{ID: uuid.New(), FlowID: other, Status: domain.RunStatusFailed},
	} {
		api.runs.runs[r.ID] = r
	}

	rec := api.do(http.MethodGet, "/api/v1/runs?flow_id="+flow.ID.String()+"&status=FAILED", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if runs := decodeData[[]RunResponse](t, rec); len(runs) != 1 {
		t.Errorf("expected 1 run, got %d", len(runs))
	}

	tests := []string{"limit=abc", "limit=0", "offset=-1", "status=UNKNOWN", "flow_id=bad"}
	for _, q := range tests {
		rec := api.do(http.MethodGet, "/api/v1/runs?"+q, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", q, rec.Code)
		}
	}
}

// --- Events Tests ---

func TestRunEvents_NotConfigured(t *testing.T) {
	api := newTestAPI(t, nil)
	rec := api.do(http.MethodGet, "/api/v1/runs/"+uuid.NewString()+"/events", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

func TestRunEvents_FinishedRun(t *testing.T) {
	watch := func(context.Context, uuid.UUID, mq.RunWatcher) error {
		t.Error("finished run should not be watched")
		return nil
	}
	api := newTestAPI(t, watch)

	run := domain.Run{ID: uuid.New(), Status: domain.RunStatusSucceeded}
	api.runs.runs[run.ID] = run

	lines := readLines(t, api.do(http.MethodGet, "/api/v1/runs/"+run.ID.String()+"/events", nil))
	if len(lines) != 1 || lines[0].Type != StreamComplete || lines[0].Status != domain.RunStatusSucceeded {
		t.Errorf("unexpected lines: %+v", lines)
	}
}

func TestRunEvents_Live(t *testing.T) {
	var watched uuid.UUID
	watch := func(_ context.Context, runID uuid.UUID, w mq.RunWatcher) error {
		watched = runID
		if err := w.OnProgress(domain.ProgressEvent{NodeID: "b", NodeName: "B", Status: domain.NodeStatusRunning}); err != nil {
			return err
		}
		return w.OnFinished(mq.RunFinishedPayload{RunID: runID, Status: domain.RunStatusFailed, FailedNodeID: "b", Error: "boom"})
	}
	api := newTestAPI(t, watch)

	run := domain.Run{ID: uuid.New(), Status: domain.RunStatusRunning}
	api.runs.runs[run.ID] = run

	lines := readLines(t, api.do(http.MethodGet, "/api/v1/runs/"+run.ID.String()+"/events", nil))
	if watched != run.ID {
		t.Errorf("expected watch for %s, got %s", run.ID, watched)
	}

	var types []string
	for _, l := range lines {
		types = append(types, l.Type)
	}
	sort.Strings(types)
	if strings.Join(types, ",") != "error,progress" {
		t.Fatalf("unexpected lines: %+v", lines)
	}
	if last := lines[len(lines)-1]; last.FailedNodeID != "b" || last.Error != "boom" {
		t.Errorf("unexpected final line: %+v", last)
	}
}

func TestRetryRun_Abandoned(t *testing.T) {
	api := newTestAPI(t, nil)
	flow := api.seedFlow()

	// Брошенный run: без узла ошибки, с исходным диапазоном
	abandoned := domain.Run{
		ID:             uuid.New(),
		FlowID:         flow.ID,
		Status:         domain.RunStatusFailed,
		StartNodeID:    "b",
		InitialResults: map[string]domain.Payload{"A": {Text: "Seeded"}},
		Error:          "run abandoned: worker stopped before finishing",
	}
	api.runs.runs[abandoned.ID] = abandoned

	rec := api.do(http.MethodPost, "/api/v1/runs/"+abandoned.ID.String()+"/retry", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	retry := decodeData[RunResponse](t, rec)
	if retry.StartNodeID != "b" {
		t.Errorf("retry should repeat the original range, got start %q", retry.StartNodeID)
	}
	if retry.InitialResults["A"].Text != "Seeded" {
		t.Errorf("retry should keep original seeds, got %+v", retry.InitialResults)
	}
}
