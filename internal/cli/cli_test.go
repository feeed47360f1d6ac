package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/shaiso/Synapse/internal/domain"
)

// testOutput возвращает Output, пишущий в буферы.
func testOutput(jsonMode bool) (*Output, *bytes.Buffer, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer
	return &Output{jsonMode: jsonMode, w: &stdout, errW: &stderr}, &stdout, &stderr
}

func runCmd(t *testing.T, cmd *cobra.Command, args ...string) error {
	t.Helper()
	cmd.SetArgs(args)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	return cmd.Execute()
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	return path
}

func TestClient_ListFlows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/v1/flows" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.Write([]byte(`{"data":[{"id":"f1","name":"Demo","nodes":[{"id":"a","type":"inputNode","name":"A","config":{}}],"edges":[]}],"total":1}`))
	}))
	defer srv.Close()

	flows, err := NewClient(srv.URL).ListFlows()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(flows) != 1 || flows[0].Name != "Demo" || len(flows[0].Nodes) != 1 {
		t.Fatalf("unexpected flows: %+v", flows)
	}
}

func TestClient_ErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"code":"NOT_FOUND","message":"flow not found"}}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).GetFlow("missing")
	if err == nil || err.Error() != "NOT_FOUND: flow not found" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestClient_CreateRun(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/flows/f1/runs" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}

		var req ExecuteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}
		if req.StartNodeID != "b" || req.InitialResults["A"].Text != "seed" {
			t.Errorf("unexpected request %+v", req)
		}

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"data":{"id":"r1","flow_id":"f1","status":"PENDING","created_at":"now"}}`))
	}))
	defer srv.Close()

	run, err := NewClient(srv.URL).CreateRun("f1", ExecuteRequest{
		StartNodeID:    "b",
		InitialResults: map[string]domain.Payload{"A": domain.TextPayload("seed")},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.ID != "r1" || run.Status != "PENDING" {
		t.Errorf("unexpected run %+v", run)
	}
}

func TestClient_ExecuteStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		io.WriteString(w, `{"type":"progress","event":{"nodeId":"a","nodeName":"A","status":"running"}}`+"\n")
		io.WriteString(w, "\n")
		io.WriteString(w, `{"type":"complete","results":{"A":{"text":"Hi","attachments":[]}}}`+"\n")
	}))
	defer srv.Close()

	var lines []StreamLine
	err := NewClient(srv.URL).Execute(t.Context(), "f1", ExecuteRequest{}, func(l StreamLine) error {
		lines = append(lines, l)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0].Event == nil || lines[0].Event.Status != domain.NodeStatusRunning {
		t.Errorf("unexpected first line %+v", lines[0])
	}
	if lines[1].Type != LineComplete || lines[1].Results["A"].Text != "Hi" {
		t.Errorf("unexpected last line %+v", lines[1])
	}
}

func TestClient_StreamHandlerStops(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"type":"progress"}`+"\n"+`{"type":"progress"}`+"\n")
	}))
	defer srv.Close()

	stop := errors.New("stop")
	calls := 0
	err := NewClient(srv.URL).RunEvents(t.Context(), "r1", func(StreamLine) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) || calls != 1 {
		t.Errorf("expected stop after first line, got err=%v calls=%d", err, calls)
	}
}

func TestParseSeeds(t *testing.T) {
	seeds, err := parseSeeds([]string{"Source text=a=b", " B =", "C=plain"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seeds["Source text"].Text != "a=b" {
		t.Errorf("value should split on first '=', got %q", seeds["Source text"].Text)
	}
	if p, ok := seeds["B"]; !ok || p.Text != "" {
		t.Errorf("empty text should be allowed, got %+v", p)
	}

	for _, bad := range []string{"novalue", "=text"} {
		if _, err := parseSeeds([]string{bad}); err == nil {
			t.Errorf("%q: expected error", bad)
		}
	}

	if seeds, _ := parseSeeds(nil); seeds != nil {
		t.Error("no seeds should give nil map")
	}
}

func TestValidateCmd(t *testing.T) {
	valid := writeFile(t, "ok.yaml", `
name: Demo
nodes:
  - {id: a, type: textInput, name: A, config: {text: hi}}
  - {id: b, type: writer, name: B, config: {context: "{{A}}"}}
edges:
  - {source: a, target: b}
`)
	out, _, stderr := testOutput(false)
	if err := runCmd(t, NewValidateCmd(func() *Output { return out }), valid); err != nil {
		t.Fatalf("valid flow: unexpected error: %v", err)
	}
	if !strings.Contains(stderr.String(), "Flow is valid") {
		t.Errorf("unexpected output %q", stderr.String())
	}

	invalid := writeFile(t, "bad.json", `{"nodes":[{"id":"b","type":"writer","name":"B","config":{}}],"edges":[]}`)
	out, stdout, _ := testOutput(true)
	err := runCmd(t, NewValidateCmd(func() *Output { return out }), invalid)

	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError, got %v", err)
	}

	var report ValidationResponse
	if err := json.Unmarshal(stdout.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.Valid || len(report.Errors) == 0 {
		t.Errorf("expected invalid report, got %+v", report)
	}
}

func TestOrderCmd(t *testing.T) {
	path := writeFile(t, "flow.json", `{
		"nodes":[
			{"id":"b","type":"writer","name":"B","config":{}},
			{"id":"a","type":"textInput","name":"A","config":{}}
		],
		"edges":[{"source":"a","target":"b"}]
	}`)

	out, stdout, _ := testOutput(true)
	if err := runCmd(t, NewOrderCmd(func() *Output { return out }), path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var order []OrderedNode
	if err := json.Unmarshal(stdout.Bytes(), &order); err != nil {
		t.Fatalf("decode order: %v", err)
	}
	if len(order) != 2 || order[0].ID != "a" || order[1].ID != "b" {
		t.Errorf("unexpected order %+v", order)
	}

	cyclic := writeFile(t, "cycle.json", `{
		"nodes":[{"id":"a","type":"writer","name":"A","config":{}},{"id":"b","type":"writer","name":"B","config":{}}],
		"edges":[{"source":"a","target":"b"},{"source":"b","target":"a"}]
	}`)
	if err := runCmd(t, NewOrderCmd(func() *Output { return out }), cyclic); err == nil {
		t.Error("expected cycle error")
	}
}

func TestExecCmd_InputOnly(t *testing.T) {
	path := writeFile(t, "flow.yaml", `
nodes:
  - {id: a, type: textInput, name: Greeting, config: {text: Hello}}
edges: []
`)

	out, stdout, stderr := testOutput(false)
	cmd := NewExecCmd(func() *Output { return out })
	if err := runCmd(t, cmd, path, "--capability-url", "http://127.0.0.1:1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(stderr.String(), "> Greeting") {
		t.Errorf("expected progress line, got %q", stderr.String())
	}
	if !strings.Contains(stdout.String(), "Hello") {
		t.Errorf("expected results table, got %q", stdout.String())
	}
}

func TestExecCmd_GatewayDown(t *testing.T) {
	path := writeFile(t, "flow.yaml", `
nodes:
  - {id: a, type: textInput, name: A, config: {text: Hello}}
  - {id: b, type: writer, name: B, config: {context: "{{A}}"}}
edges:
  - {source: a, target: b}
`)

	// Закрытый сервер: соединение сразу отклоняется
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	out, stdout, _ := testOutput(true)
	err := runCmd(t, NewExecCmd(func() *Output { return out }), path, "--capability-url", srv.URL)

	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError, got %v", err)
	}
	if !strings.Contains(err.Error(), `Failed to execute node "B"`) {
		t.Errorf("unexpected error: %v", err)
	}

	// Последняя NDJSON-строка — ошибка с ID узла
	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	var last StreamLine
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &last); err != nil {
		t.Fatalf("decode line: %v", err)
	}
	if last.Type != LineError || last.FailedNodeID != "b" {
		t.Errorf("unexpected last line %+v", last)
	}
}

func TestExecCmd_InvalidRange(t *testing.T) {
	path := writeFile(t, "flow.json", `{"nodes":[{"id":"a","type":"textInput","name":"A","config":{"text":"x"}}],"edges":[]}`)

	out, _, stderr := testOutput(false)
	err := runCmd(t, NewExecCmd(func() *Output { return out }), path, "--start", "ghost")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(stderr.String(), "Start node not found in workflow") {
		t.Errorf("unexpected stderr %q", stderr.String())
	}
}

func TestOutput_Line(t *testing.T) {
	out, stdout, stderr := testOutput(false)

	result := domain.TextPayload("partial")
	out.Line(StreamLine{Type: LineProgress, Event: &domain.ProgressEvent{NodeName: "A", Status: domain.NodeStatusStreaming, Result: &result}})
	if stderr.Len() != 0 {
		t.Errorf("streaming events should be skipped in text mode, got %q", stderr.String())
	}

	out.Line(StreamLine{Type: LineError, Error: "Writer failed: boom"})
	if !strings.Contains(stderr.String(), "Error: Writer failed: boom") {
		t.Errorf("unexpected stderr %q", stderr.String())
	}
	if stdout.Len() != 0 {
		t.Errorf("nothing should go to stdout, got %q", stdout.String())
	}
}
