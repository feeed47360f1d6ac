package capability

import (
	"fmt"
	"sort"
	"sync"
)

// Registry — реестр capability backend.
//
// Связывает Kind с Provider. Собирается один раз при старте
// и передаётся диспетчеру. Потокобезопасен.
type Registry struct {
	mu        sync.RWMutex
	providers map[Kind]Provider
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[Kind]Provider),
	}
}

// Register регистрирует provider для capability.
// Если provider уже есть, он будет перезаписан.
func (r *Registry) Register(kind Kind, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[kind] = p
}

// Get возвращает provider по capability.
// Возвращает ErrNoProvider, если provider не зарегистрирован.
func (r *Registry) Get(kind Kind) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, exists := r.providers[kind]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNoProvider, kind)
	}
	return p, nil
}

// Has проверяет, зарегистрирован ли provider.
func (r *Registry) Has(kind Kind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.providers[kind]
	return exists
}

// Kinds возвращает зарегистрированные capability.
func (r *Registry) Kinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]Kind, 0, len(r.providers))
	for k := range r.providers {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
