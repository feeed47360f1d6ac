package orchestrator

import (
	"fmt"
	"slices"
	"sync"

	"github.com/shaiso/Synapse/internal/domain"
	"github.com/shaiso/Synapse/internal/engine"
)

// Options — параметры частичного run.
type Options struct {
	// StartNodeID — первый выполняемый узел. Пусто — полный run.
	StartNodeID string

	// StopAfterNodeID — последний выполняемый узел (включительно).
	StopAfterNodeID string

	// InitialResults — результаты узлов до StartNodeID (ключ — имя узла).
	// При полном run игнорируются.
	InitialResults map[string]domain.Payload
}

// IsPartial возвращает true, если run начинается не с начала графа.
func (o Options) IsPartial() bool {
	return o.StartNodeID != ""
}

// RunState — состояние выполнения одного run в памяти.
//
// RunState создаётся перед выполнением и живёт до его окончания.
// Содержит:
//   - Построенный граф и порядок выполнения
//   - Диапазон узлов, которые нужно выполнить
//   - Карту результатов (ключ — имя узла)
//   - Статус каждого узла диапазона
type RunState struct {
	nodes   []domain.Node
	edges   []domain.Edge
	options Options

	// Graph — граф зависимостей узлов.
	Graph *engine.Graph

	// results — карта результатов. Пишет только Orchestrator.
	results *engine.Results

	// toRun — ID узлов диапазона в порядке выполнения.
	toRun []string

	// completed — завершённые узлы (nodeID → true).
	completed map[string]bool

	// running — выполняющийся узел (пусто, если такого нет).
	running string

	// failed — упавший или прерванный узел.
	failed string

	// mu — мьютекс для чтения состояния из других горутин.
	mu sync.RWMutex
}

// NewRunState создаёт новый RunState.
// Выбор вложений prompt-узлов согласуется с рёбрами; входной граф не меняется.
func NewRunState(nodes []domain.Node, edges []domain.Edge, opts Options) *RunState {
	return &RunState{
		nodes:     engine.SyncAttachmentSelections(nodes, edges),
		edges:     edges,
		options:   opts,
		completed: make(map[string]bool),
	}
}

// Initialize валидирует граф, вычисляет диапазон и готовит карту результатов.
//
// Ошибки валидации возвращаются как *engine.ValidationError,
// ошибки диапазона — как *OrderingError.
func (s *RunState) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// 1. Валидация графа
	if err := engine.Validate(s.nodes, s.edges).Err(); err != nil {
		return err
	}

	// 2. Построение графа и порядка
	graph, err := engine.BuildGraph(s.nodes, s.edges)
	if err != nil {
		return fmt.Errorf("build graph: %w", err)
	}
	s.Graph = graph

	// 3. Диапазон
	order := graph.Order()
	from, to, err := resolveRange(order, s.options)
	if err != nil {
		return err
	}
	s.toRun = order[from : to+1]

	// 4. Карта результатов
	s.results = engine.NewResults(nil)
	if !s.options.IsPartial() {
		return nil
	}

	known := make(map[string]bool, len(s.nodes))
	for i := range s.nodes {
		known[s.nodes[i].Name] = true
	}
	for name, payload := range s.options.InitialResults {
		if known[name] {
			s.results.Set(name, payload)
		}
	}

	// Устаревшие результаты узлов диапазона не должны просочиться
	for _, id := range s.toRun {
		s.results.Delete(graph.Node(id).Name)
	}

	return nil
}

// resolveRange находит индексы первого и последнего узла диапазона.
func resolveRange(order []string, opts Options) (from, to int, err error) {
	from, to = 0, len(order)-1

	if opts.StartNodeID != "" {
		from = indexOf(order, opts.StartNodeID)
		if from < 0 {
			return 0, 0, &OrderingError{NodeID: opts.StartNodeID, Err: ErrStartNodeNotFound}
		}
	}

	if opts.StopAfterNodeID != "" {
		stop := indexOf(order, opts.StopAfterNodeID)
		switch {
		case stop < 0:
			return 0, 0, &OrderingError{NodeID: opts.StopAfterNodeID, Err: ErrStopNodeNotFound}
		case stop < from:
			return 0, 0, &OrderingError{NodeID: opts.StopAfterNodeID, Err: ErrStopBeforeStart}
		}
		to = stop
	}

	return from, to, nil
}

func indexOf(order []string, id string) int {
	for i, v := range order {
		if v == id {
			return i
		}
	}
	return -1
}

// Pending возвращает ID узлов диапазона в порядке выполнения.
func (s *RunState) Pending() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, len(s.toRun))
	copy(out, s.toRun)
	return out
}

// View возвращает карту результатов только для чтения.
// Используется резолвером и диспетчером в горутине выполнения.
func (s *RunState) View() engine.ResultView {
	return s.results
}

// MissingSeeds возвращает имена upstream узлов вне диапазона, на которые
// ссылается диапазон ({{Name}} или выбранные вложения), но для которых
// нет результата. Такие плейсхолдеры останутся как есть.
func (s *RunState) MissingSeeds() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inRange := make(map[string]bool, len(s.toRun))
	for _, id := range s.toRun {
		inRange[id] = true
	}

	seen := make(map[string]bool)
	var missing []string
	for _, id := range s.toRun {
		node := s.Graph.Node(id)
		referenced := make(map[string]bool)
		for _, name := range engine.Placeholders(engine.InputField(node)) {
			referenced[name] = true
		}
		for _, name := range node.Config.SelectedAttachments {
			referenced[name] = true
		}

		for anc := range s.Graph.Ancestors(id) {
			name := s.Graph.Node(anc).Name
			if inRange[anc] || seen[anc] || !referenced[name] {
				continue
			}
			seen[anc] = true
			if _, ok := s.results.Lookup(name); !ok {
				missing = append(missing, name)
			}
		}
	}
	slices.Sort(missing)
	return missing
}

// MarkNodeRunning помечает узел как выполняющийся.
func (s *RunState) MarkNodeRunning(nodeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = nodeID
}

// MarkNodeCompleted сохраняет результат узла.
func (s *RunState) MarkNodeCompleted(node *domain.Node, payload domain.Payload) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.running = ""
	s.completed[node.ID] = true
	s.results.Set(node.Name, payload)
}

// MarkNodeFailed помечает узел как упавший. Результат не сохраняется.
func (s *RunState) MarkNodeFailed(nodeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.running = ""
	s.failed = nodeID
}

// Snapshot возвращает копию карты результатов.
func (s *RunState) Snapshot() map[string]domain.Payload {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.results == nil {
		return map[string]domain.Payload{}
	}
	return s.results.Snapshot()
}

// Stats возвращает статистику выполнения.
func (s *RunState) Stats() RunStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := len(s.toRun)
	stats := RunStats{
		TotalNodes:     total,
		CompletedNodes: len(s.completed),
	}
	if s.running != "" {
		stats.RunningNodes = 1
	}
	if s.failed != "" {
		stats.FailedNodes = 1
	}
	stats.PendingNodes = total - stats.CompletedNodes - stats.RunningNodes - stats.FailedNodes
	return stats
}

// RunStats — статистика выполнения run.
type RunStats struct {
	TotalNodes     int `json:"total_nodes"`
	CompletedNodes int `json:"completed_nodes"`
	RunningNodes   int `json:"running_nodes"`
	FailedNodes    int `json:"failed_nodes"`
	PendingNodes   int `json:"pending_nodes"`
}

// SeedResults строит initialResults для запуска с узла startNodeID:
// результаты из previous для узлов строго до startNodeID в порядке выполнения.
func SeedResults(nodes []domain.Node, edges []domain.Edge, startNodeID string, previous map[string]domain.Payload) (map[string]domain.Payload, error) {
	graph, err := engine.BuildGraph(nodes, edges)
	if err != nil {
		return nil, err
	}

	start := graph.IndexOf(startNodeID)
	if start < 0 {
		return nil, &OrderingError{NodeID: startNodeID, Err: ErrStartNodeNotFound}
	}

	seed := make(map[string]domain.Payload)
	for _, id := range graph.Order()[:start] {
		name := graph.Node(id).Name
		if payload, ok := previous[name]; ok {
			seed[name] = payload
		}
	}
	return seed, nil
}
