package engine

import "github.com/shaiso/Synapse/internal/domain"

// ResultView — доступ к результатам узлов только на чтение.
//
// Резолвер и диспетчер получают ResultView; писать в карту
// результатов может только оркестратор через *Results.
type ResultView interface {
	Lookup(name string) (domain.Payload, bool)
}

// Results — карта результатов одного run, ключ — имя узла.
//
// Не потокобезопасна: ей владеет одна горутина оркестратора.
type Results struct {
	values map[string]domain.Payload
}

// NewResults создаёт карту, засеянную нормализованными payload.
func NewResults(seed map[string]domain.Payload) *Results {
	r := &Results{values: make(map[string]domain.Payload, len(seed))}
	for name, payload := range seed {
		r.values[name] = payload.Normalize()
	}
	return r
}

// Lookup возвращает результат узла по имени.
func (r *Results) Lookup(name string) (domain.Payload, bool) {
	p, ok := r.values[name]
	return p, ok
}

// Set сохраняет нормализованный результат узла.
func (r *Results) Set(name string, payload domain.Payload) {
	r.values[name] = payload.Normalize()
}

// Delete удаляет результат узла.
func (r *Results) Delete(name string) {
	delete(r.values, name)
}

// Snapshot возвращает копию карты результатов.
func (r *Results) Snapshot() map[string]domain.Payload {
	out := make(map[string]domain.Payload, len(r.values))
	for name, payload := range r.values {
		attachments := make([]domain.Attachment, len(payload.Attachments))
		copy(attachments, payload.Attachments)
		out[name] = domain.Payload{Text: payload.Text, Attachments: attachments}
	}
	return out
}

// MapView оборачивает обычную map в ResultView.
type MapView map[string]domain.Payload

// Lookup реализует ResultView.
func (m MapView) Lookup(name string) (domain.Payload, bool) {
	p, ok := m[name]
	return p, ok
}
