package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Synapse/internal/domain"
	"github.com/shaiso/Synapse/internal/engine"
)

// ListFlows возвращает список всех flows.
// GET /api/v1/flows
func (h *Handler) ListFlows(w http.ResponseWriter, r *http.Request) {
	flows, err := h.flows.List(r.Context())
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]FlowResponse, len(flows))
	for i, f := range flows {
		result[i] = FlowFromDomain(f)
	}

	List(w, result, len(result))
}

// CreateFlow создаёт новый flow. Граф сохраняется даже невалидным:
// редактор хранит черновики, проверка — через /validate.
// POST /api/v1/flows
func (h *Handler) CreateFlow(w http.ResponseWriter, r *http.Request) {
	var req FlowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	now := time.Now().UTC()
	flow := &domain.Flow{
		ID:          uuid.New(),
		Name:        req.Name,
		Description: req.Description,
		Nodes:       req.Nodes,
		Edges:       req.Edges,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	prepareFlow(flow)

	if err := h.flows.Create(r.Context(), flow); err != nil {
		HandleRepoError(w, h.logger, err, "")
		return
	}

	Created(w, FlowFromDomain(*flow))
}

// GetFlow возвращает flow по ID.
// GET /api/v1/flows/{id}
func (h *Handler) GetFlow(w http.ResponseWriter, r *http.Request) {
	flow, ok := h.loadFlow(w, r)
	if !ok {
		return
	}

	Success(w, FlowFromDomain(*flow))
}

// UpdateFlow заменяет имя, описание и граф flow.
// PUT /api/v1/flows/{id}
func (h *Handler) UpdateFlow(w http.ResponseWriter, r *http.Request) {
	var req FlowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	flow, ok := h.loadFlow(w, r)
	if !ok {
		return
	}

	flow.Name = req.Name
	flow.Description = req.Description
	flow.Nodes = req.Nodes
	flow.Edges = req.Edges
	flow.UpdatedAt = time.Now().UTC()
	prepareFlow(flow)

	if err := h.flows.Update(r.Context(), flow); err != nil {
		HandleRepoError(w, h.logger, err, "flow not found")
		return
	}

	Success(w, FlowFromDomain(*flow))
}

// DeleteFlow удаляет flow.
// DELETE /api/v1/flows/{id}
func (h *Handler) DeleteFlow(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid flow id")
		return
	}

	if err := h.flows.Delete(r.Context(), id); err != nil {
		HandleRepoError(w, h.logger, err, "flow not found")
		return
	}

	NoContent(w)
}

// ValidateGraph проверяет граф из тела запроса.
// POST /api/v1/validate
func (h *Handler) ValidateGraph(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	nodes := normalizeNodes(req.Nodes)
	Success(w, engine.Validate(nodes, req.Edges))
}

// ValidateFlow проверяет сохранённый flow.
// GET /api/v1/flows/{id}/validate
func (h *Handler) ValidateFlow(w http.ResponseWriter, r *http.Request) {
	flow, ok := h.loadFlow(w, r)
	if !ok {
		return
	}

	Success(w, engine.Validate(flow.Nodes, flow.Edges))
}

// FlowOrder возвращает порядок выполнения узлов.
// Граф с циклом или висячим ребром → 422.
// GET /api/v1/flows/{id}/order
func (h *Handler) FlowOrder(w http.ResponseWriter, r *http.Request) {
	flow, ok := h.loadFlow(w, r)
	if !ok {
		return
	}

	graph, err := engine.BuildGraph(flow.Nodes, flow.Edges)
	if err != nil {
		InvalidState(w, err.Error())
		return
	}

	order := graph.Order()
	result := make([]OrderedNode, len(order))
	for i, id := range order {
		node := graph.Node(id)
		result[i] = OrderedNode{Position: i, ID: node.ID, Name: node.Name, Type: node.Type}
	}

	List(w, result, len(result))
}

// loadFlow разбирает {id} и загружает flow. При ошибке ответ уже отправлен.
func (h *Handler) loadFlow(w http.ResponseWriter, r *http.Request) (*domain.Flow, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid flow id")
		return nil, false
	}

	flow, err := h.flows.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "flow not found") {
		return nil, false
	}
	return flow, true
}

// prepareFlow нормализует flow перед сохранением и согласует
// выбор вложений prompt-узлов с текущими рёбрами.
func prepareFlow(f *domain.Flow) {
	f.Normalize()
	f.Nodes = engine.SyncAttachmentSelections(f.Nodes, f.Edges)
}

// normalizeNodes приводит алиасы типов узлов к каноническим.
func normalizeNodes(nodes []domain.Node) []domain.Node {
	f := domain.Flow{Nodes: nodes}
	f.Normalize()
	return f.Nodes
}
