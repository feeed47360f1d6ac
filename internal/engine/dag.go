package engine

import (
	"fmt"

	"github.com/shaiso/Synapse/internal/domain"
)

// Graph — индекс узлов и рёбер flow с вычисленным порядком выполнения.
//
// Graph неизменяем после BuildGraph и безопасен для конкурентного чтения.
type Graph struct {
	nodes        map[string]*domain.Node
	position     map[string]int // позиция узла во входном списке
	successors   map[string][]string
	predecessors map[string][]string
	order        []string
}

// BuildGraph индексирует узлы и рёбра и строит топологический порядок.
//
// Возвращает ErrUnknownNode, если ребро ссылается на отсутствующий узел,
// и ErrCyclicDependency, если граф содержит цикл.
func BuildGraph(nodes []domain.Node, edges []domain.Edge) (*Graph, error) {
	g := &Graph{
		nodes:        make(map[string]*domain.Node, len(nodes)),
		position:     make(map[string]int, len(nodes)),
		successors:   make(map[string][]string, len(nodes)),
		predecessors: make(map[string][]string, len(nodes)),
	}

	for i := range nodes {
		node := &nodes[i]
		if _, exists := g.nodes[node.ID]; exists {
			return nil, NewGraphError(node.ID,
				fmt.Sprintf("duplicate node ID: %s", node.ID), ErrDuplicateNodeID)
		}
		g.nodes[node.ID] = node
		g.position[node.ID] = i
		g.successors[node.ID] = nil
		g.predecessors[node.ID] = nil
	}

	for _, edge := range edges {
		if _, ok := g.nodes[edge.Source]; !ok {
			return nil, NewGraphError(edge.Target,
				fmt.Sprintf("edge source %q does not exist", edge.Source), ErrUnknownNode)
		}
		if _, ok := g.nodes[edge.Target]; !ok {
			return nil, NewGraphError(edge.Source,
				fmt.Sprintf("edge target %q does not exist", edge.Target), ErrUnknownNode)
		}
		g.addEdge(edge.Source, edge.Target)
	}

	order, err := g.topologicalSort(nodes)
	if err != nil {
		return nil, err
	}
	g.order = order

	return g, nil
}

// ComputeOrder возвращает ID узлов в порядке выполнения.
// Чистая функция: повторные и конкурентные вызовы безопасны.
func ComputeOrder(nodes []domain.Node, edges []domain.Edge) ([]string, error) {
	g, err := BuildGraph(nodes, edges)
	if err != nil {
		return nil, err
	}
	return g.Order(), nil
}

// addEdge добавляет ребро, пропуская дубликаты,
// чтобы не считать одну зависимость дважды.
func (g *Graph) addEdge(from, to string) {
	for _, existing := range g.predecessors[to] {
		if existing == from {
			return
		}
	}
	g.successors[from] = append(g.successors[from], to)
	g.predecessors[to] = append(g.predecessors[to], from)
}

// topologicalSort — алгоритм Кана.
//
// Очередь FIFO засевается узлами с нулевой входящей степенью
// в порядке входного списка; результат детерминирован.
func (g *Graph) topologicalSort(nodes []domain.Node) ([]string, error) {
	inDegree := make(map[string]int, len(nodes))
	queue := make([]string, 0, len(nodes))

	for i := range nodes {
		id := nodes[i].ID
		inDegree[id] = len(g.predecessors[id])
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	order := make([]string, 0, len(nodes))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)

		for _, next := range g.successors[id] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	// Не все узлы вышли из очереди — остался цикл
	if len(order) != len(nodes) {
		return nil, ErrCyclicDependency
	}

	return order, nil
}

// Order возвращает копию порядка выполнения.
func (g *Graph) Order() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Node возвращает узел по ID или nil.
func (g *Graph) Node(id string) *domain.Node {
	return g.nodes[id]
}

// IndexOf возвращает позицию узла в порядке выполнения или -1.
func (g *Graph) IndexOf(id string) int {
	for i, nodeID := range g.order {
		if nodeID == id {
			return i
		}
	}
	return -1
}

// Ancestors возвращает все транзитивные зависимости узла.
func (g *Graph) Ancestors(id string) map[string]bool {
	seen := make(map[string]bool)
	stack := append([]string(nil), g.predecessors[id]...)
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		stack = append(stack, g.predecessors[cur]...)
	}
	return seen
}
