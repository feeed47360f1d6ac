package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/shaiso/Synapse/internal/domain"
	"github.com/shaiso/Synapse/internal/orchestrator"
)

// ExecuteFlow выполняет flow в процессе API и стримит события.
//
// Ответ — application/x-ndjson: строка {"type":"progress","event":{...}}
// на каждое событие узла, затем одна итоговая строка
// {"type":"complete","results":{...}} или {"type":"error","error":"..."}.
// Ошибки графа и диапазона возвращаются обычным JSON до начала потока.
// Отключение клиента отменяет выполнение.
// POST /api/v1/flows/{id}/execute
func (h *Handler) ExecuteFlow(w http.ResponseWriter, r *http.Request) {
	if h.orchestrator == nil {
		Unavailable(w, "execution is not configured")
		return
	}

	req, ok := decodeExecuteRequest(w, r)
	if !ok {
		return
	}

	flow, ok := h.loadFlow(w, r)
	if !ok {
		return
	}

	state := orchestrator.NewRunState(flow.Nodes, flow.Edges, req.Options())
	if err := state.Initialize(); err != nil {
		HandleRunError(w, h.logger, err)
		return
	}

	stream := newNDJSONStream(w)
	obs := orchestrator.ObserverFuncs{
		OnProgress: func(ev domain.ProgressEvent) {
			stream.Send(StreamLine{Type: StreamProgress, Event: &ev})
		},
	}

	results, err := h.orchestrator.Execute(r.Context(), state, obs)
	if err != nil {
		line := StreamLine{Type: StreamError, Error: err.Error(), Results: results}
		var nodeErr *orchestrator.NodeError
		if errors.As(err, &nodeErr) {
			line.FailedNodeID = nodeErr.NodeID
		}
		stream.Send(line)
		return
	}

	stream.Send(StreamLine{Type: StreamComplete, Results: results})

	if err := stream.Err(); err != nil {
		h.logger.Debug("execute stream closed by client", "flow_id", flow.ID, "error", err)
	}
}

// decodeExecuteRequest читает параметры запуска. Пустое тело — полный run.
func decodeExecuteRequest(w http.ResponseWriter, r *http.Request) (ExecuteRequest, bool) {
	var req ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		BadRequest(w, "invalid request body")
		return req, false
	}
	return req, true
}
