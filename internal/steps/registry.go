package steps

import (
	"fmt"
	"sort"
	"sync"

	"github.com/shaiso/Synapse/internal/capability"
	"github.com/shaiso/Synapse/internal/domain"
)

// Registry — реестр шагов по типу узла.
//
// Позволяет регистрировать и получать реализации Step по типу.
// Потокобезопасен.
type Registry struct {
	mu    sync.RWMutex
	steps map[domain.NodeType]Step
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{
		steps: make(map[domain.NodeType]Step),
	}
}

// DefaultRegistry создаёт реестр со всеми типами узлов.
// Transform-узлы обращаются к backend через caps.
func DefaultRegistry(caps *capability.Registry) *Registry {
	r := NewRegistry()

	// Input-узлы
	r.Register(NewTextInputStep())
	r.Register(NewPDFInputStep())
	r.Register(NewAttachmentInputStep(domain.NodeTypeImageInput))
	r.Register(NewAttachmentInputStep(domain.NodeTypeAudioInput))

	// Transform-узлы
	r.Register(NewWriterStep(caps))
	r.Register(NewRewriterStep(caps))
	r.Register(NewSummarizerStep(caps))
	r.Register(NewPromptStep(caps))
	r.Register(NewProofreaderStep(caps))
	r.Register(NewTranslatorStep(caps))

	return r
}

// Register регистрирует шаг в реестре.
// Если шаг с таким типом уже существует, он будет перезаписан.
func (r *Registry) Register(step Step) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps[step.Type()] = step
}

// Get возвращает шаг по типу.
// Возвращает ErrStepNotFound, если шаг не найден.
func (r *Registry) Get(nodeType domain.NodeType) (Step, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	step, exists := r.steps[nodeType]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrStepNotFound, nodeType)
	}

	return step, nil
}

// Has проверяет, зарегистрирован ли шаг.
func (r *Registry) Has(nodeType domain.NodeType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.steps[nodeType]
	return exists
}

// Types возвращает список всех зарегистрированных типов.
func (r *Registry) Types() []domain.NodeType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]domain.NodeType, 0, len(r.steps))
	for t := range r.steps {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Count возвращает количество зарегистрированных шагов.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.steps)
}

// Unregister удаляет шаг из реестра.
func (r *Registry) Unregister(nodeType domain.NodeType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.steps, nodeType)
}
