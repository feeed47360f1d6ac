package api

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shaiso/Synapse/internal/domain"
	"github.com/shaiso/Synapse/internal/mq"
	"github.com/shaiso/Synapse/internal/orchestrator"
	"github.com/shaiso/Synapse/internal/repo"
)

// FlowStore — хранилище flows. Реализуется *repo.FlowRepo.
type FlowStore interface {
	Create(ctx context.Context, flow *domain.Flow) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Flow, error)
	List(ctx context.Context) ([]domain.Flow, error)
	Update(ctx context.Context, flow *domain.Flow) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// RunStore — хранилище runs. Реализуется *repo.RunRepo.
type RunStore interface {
	Create(ctx context.Context, run *domain.Run) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error)
	List(ctx context.Context, filter repo.RunFilter) ([]domain.Run, error)
}

// RunPublisher уведомляет workers о новом run. Реализуется *mq.Publisher.
type RunPublisher interface {
	PublishRunPending(ctx context.Context, runID uuid.UUID) error
}

// WatchFunc подписывается на события run и блокируется до его завершения.
type WatchFunc func(ctx context.Context, runID uuid.UUID, w mq.RunWatcher) error

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	flows        FlowStore
	runs         RunStore
	publisher    RunPublisher
	orchestrator *orchestrator.Orchestrator
	watch        WatchFunc
	logger       *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	FlowRepo  FlowStore
	RunRepo   RunStore
	Publisher RunPublisher

	// Orchestrator выполняет flow в процессе API (POST /flows/{id}/execute).
	// Если nil, endpoint отвечает 503.
	Orchestrator *orchestrator.Orchestrator

	// Watch — подписка на события async run (GET /runs/{id}/events).
	// Если nil, endpoint отвечает 503.
	Watch WatchFunc

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		flows:        cfg.FlowRepo,
		runs:         cfg.RunRepo,
		publisher:    cfg.Publisher,
		orchestrator: cfg.Orchestrator,
		watch:        cfg.Watch,
		logger:       logger,
	}
}
