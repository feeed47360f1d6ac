package steps

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shaiso/Synapse/internal/domain"
)

// DispatcherConfig — конфигурация диспетчера.
type DispatcherConfig struct {
	// Registry — шаги по типам узлов. Обязателен.
	Registry *Registry

	Logger *slog.Logger
}

// Dispatcher выбирает шаг по типу узла и выполняет его.
//
// Диспетчер не делает повторов: первая ошибка backend возвращается
// вызывающему как CapabilityError.
type Dispatcher struct {
	registry *Registry
	logger   *slog.Logger
}

// NewDispatcher создаёт диспетчер.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.Registry == nil {
		cfg.Registry = NewRegistry()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Dispatcher{
		registry: cfg.Registry,
		logger:   cfg.Logger,
	}
}

// Dispatch выполняет узел и возвращает нормализованный результат.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request) (domain.Payload, error) {
	node := req.Node

	if !node.Type.IsKnown() {
		return domain.Payload{}, &CapabilityError{
			NodeID:   node.ID,
			NodeName: node.Name,
			Err:      fmt.Errorf("%w: %s", ErrUnknownNodeType, node.Type),
		}
	}

	step, err := d.registry.Get(node.Type)
	if err != nil {
		return domain.Payload{}, &CapabilityError{NodeID: node.ID, NodeName: node.Name, Err: err}
	}

	d.logger.Debug("dispatching node",
		"node_id", node.ID,
		"node_name", node.Name,
		"node_type", node.Type,
		"input_len", len(req.Input),
	)

	out, err := step.Execute(ctx, req)
	if err != nil {
		var capErr *CapabilityError
		if !errors.As(err, &capErr) {
			err = &CapabilityError{NodeID: node.ID, NodeName: node.Name, Err: err}
		}
		return domain.Payload{}, err
	}

	return out.Normalize(), nil
}
