package orchestrator

import "github.com/shaiso/Synapse/internal/domain"

// Observer получает события выполнения run.
//
// Progress вызывается для каждого события узла в порядке выполнения.
// Complete и Error взаимоисключающие, за run вызывается ровно один из них.
// Все вызовы идут из горутины выполнения.
type Observer interface {
	Progress(ev domain.ProgressEvent)
	Complete(results map[string]domain.Payload)
	Error(err error)
}

// ObserverFuncs — Observer из отдельных функций. Nil-поля игнорируются.
type ObserverFuncs struct {
	OnProgress func(ev domain.ProgressEvent)
	OnComplete func(results map[string]domain.Payload)
	OnError    func(err error)
}

var _ Observer = ObserverFuncs{}

// Progress реализует Observer.
func (f ObserverFuncs) Progress(ev domain.ProgressEvent) {
	if f.OnProgress != nil {
		f.OnProgress(ev)
	}
}

// Complete реализует Observer.
func (f ObserverFuncs) Complete(results map[string]domain.Payload) {
	if f.OnComplete != nil {
		f.OnComplete(results)
	}
}

// Error реализует Observer.
func (f ObserverFuncs) Error(err error) {
	if f.OnError != nil {
		f.OnError(err)
	}
}
