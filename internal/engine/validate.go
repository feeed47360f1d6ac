package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shaiso/Synapse/internal/domain"
)

// Report — результат статической проверки графа.
type Report struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// Err возвращает отчёт в виде ошибки или nil, если граф валиден.
func (r Report) Err() error {
	if r.Valid {
		return nil
	}
	return &ValidationError{Problems: r.Errors}
}

// ValidationError — набор проблем графа, найденных валидатором.
type ValidationError struct {
	Problems []string
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	return "invalid workflow: " + strings.Join(e.Problems, "; ")
}

// Unwrap позволяет проверять errors.Is(err, ErrInvalidWorkflow).
func (e *ValidationError) Unwrap() error {
	return ErrInvalidWorkflow
}

// ErrInvalidWorkflow — граф не прошёл валидацию.
var ErrInvalidWorkflow = errors.New("invalid workflow")

// Validate выполняет все статические проверки графа.
//
// Проверки не прерываются на первой ошибке (кроме пустого графа):
//   - граф не пустой
//   - имена узлов уникальны
//   - есть хотя бы один input-узел
//   - нет узлов без рёбер (кроме input-узлов)
//   - типы узлов известны, рёбра ссылаются на существующие узлы
//   - нет циклов
//   - input-узлы заполнены
func Validate(nodes []domain.Node, edges []domain.Edge) Report {
	if len(nodes) == 0 {
		return Report{
			Valid:  false,
			Errors: []string{"Workflow is empty. Add at least one node to get started."},
		}
	}

	var problems []string

	if dups := duplicateNames(nodes); len(dups) > 0 {
		problems = append(problems, fmt.Sprintf(
			"Duplicate node names detected: %s. Each node must have a unique name.",
			strings.Join(dups, ", ")))
	}

	if !hasInputNode(nodes) {
		problems = append(problems,
			"No Input or PDF Input node found. Add at least one input node to start your workflow.")
	}

	if names := disconnectedNames(nodes, edges); len(names) > 0 {
		problems = append(problems, fmt.Sprintf(
			"Disconnected nodes found: %s. Connect them to the workflow or remove them.",
			strings.Join(names, ", ")))
	}

	for i := range nodes {
		if !nodes[i].Type.IsKnown() {
			problems = append(problems, fmt.Sprintf(
				"Node %q has unknown type %q.", nodes[i].Name, nodes[i].Type))
		}
	}

	if _, err := BuildGraph(nodes, edges); err != nil {
		if errors.Is(err, ErrCyclicDependency) {
			problems = append(problems,
				"Circular dependency detected. Remove loops from your workflow to enable execution.")
		} else {
			problems = append(problems, err.Error())
		}
	}

	for i := range nodes {
		problems = append(problems, contentProblems(&nodes[i])...)
	}

	return Report{
		Valid:  len(problems) == 0,
		Errors: nonNil(problems),
	}
}

// duplicateNames возвращает повторяющиеся имена в порядке первого повтора.
func duplicateNames(nodes []domain.Node) []string {
	seen := make(map[string]bool, len(nodes))
	reported := make(map[string]bool)
	var dups []string

	for i := range nodes {
		name := nodes[i].Name
		if seen[name] && !reported[name] {
			reported[name] = true
			dups = append(dups, name)
		}
		seen[name] = true
	}
	return dups
}

func hasInputNode(nodes []domain.Node) bool {
	for i := range nodes {
		if nodes[i].Type.IsInput() {
			return true
		}
	}
	return false
}

// disconnectedNames — имена узлов без рёбер. Input-узлы могут стоять отдельно.
func disconnectedNames(nodes []domain.Node, edges []domain.Edge) []string {
	connected := make(map[string]bool, len(edges)*2)
	for _, e := range edges {
		connected[e.Source] = true
		connected[e.Target] = true
	}

	var names []string
	for i := range nodes {
		if connected[nodes[i].ID] || nodes[i].Type.IsInput() {
			continue
		}
		names = append(names, nodes[i].Name)
	}
	return names
}

// contentProblems проверяет, что input-узел заполнен.
func contentProblems(node *domain.Node) []string {
	cfg := &node.Config

	switch node.Type {
	case domain.NodeTypeTextInput:
		if strings.TrimSpace(cfg.Text) == "" {
			return []string{fmt.Sprintf(
				"Input node %q is empty. Provide some text to process.", node.Name)}
		}

	case domain.NodeTypePDFInput:
		var problems []string
		if len(cfg.Files) == 0 {
			problems = append(problems, fmt.Sprintf(
				"PDF Input node %q has no files selected.", node.Name))
		}
		if strings.TrimSpace(cfg.Text) == "" {
			problems = append(problems, fmt.Sprintf(
				"PDF Input node %q has no extracted text.", node.Name))
		}
		return problems

	case domain.NodeTypeImageInput:
		if !cfg.Attachment.HasFile() {
			return []string{fmt.Sprintf(
				"Image Input node %q has no image selected.", node.Name)}
		}

	case domain.NodeTypeAudioInput:
		if !cfg.Attachment.HasFile() {
			return []string{fmt.Sprintf(
				"Audio Input node %q has no audio selected.", node.Name)}
		}
	}

	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
