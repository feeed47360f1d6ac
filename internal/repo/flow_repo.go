package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Synapse/internal/domain"
)

// FlowRepo — репозиторий для работы с flows.
// Узлы и рёбра хранятся как JSONB в той же строке.
type FlowRepo struct {
	pool *pgxpool.Pool
}

// NewFlowRepo создаёт новый FlowRepo.
func NewFlowRepo(pool *pgxpool.Pool) *FlowRepo {
	return &FlowRepo{pool: pool}
}

const flowColumns = `id, name, description, nodes, edges, created_at, updated_at`

// Create создаёт новый flow.
func (r *FlowRepo) Create(ctx context.Context, flow *domain.Flow) error {
	nodesJSON, edgesJSON, err := marshalGraph(flow)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO flows (id, name, description, nodes, edges, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = r.pool.Exec(ctx, query,
		flow.ID,
		flow.Name,
		flow.Description,
		nodesJSON,
		edgesJSON,
		flow.CreatedAt,
		flow.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert flow: %w", translatePgError(err))
	}
	return nil
}

// GetByID возвращает flow по ID.
func (r *FlowRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Flow, error) {
	query := `SELECT ` + flowColumns + ` FROM flows WHERE id = $1`

	flow, err := scanFlow(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get flow by id: %w", err)
	}
	return flow, nil
}

// List возвращает список всех flows, новые первыми.
func (r *FlowRepo) List(ctx context.Context) ([]domain.Flow, error) {
	query := `SELECT ` + flowColumns + ` FROM flows ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list flows: %w", err)
	}
	defer rows.Close()

	var flows []domain.Flow
	for rows.Next() {
		flow, err := scanFlow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan flow: %w", err)
		}
		flows = append(flows, *flow)
	}
	return flows, rows.Err()
}

// Update перезаписывает имя, описание и граф flow.
func (r *FlowRepo) Update(ctx context.Context, flow *domain.Flow) error {
	nodesJSON, edgesJSON, err := marshalGraph(flow)
	if err != nil {
		return err
	}

	query := `
		UPDATE flows
		SET name = $2, description = $3, nodes = $4, edges = $5, updated_at = $6
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		flow.ID,
		flow.Name,
		flow.Description,
		nodesJSON,
		edgesJSON,
		flow.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update flow: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete удаляет flow (каскадно удалит runs).
func (r *FlowRepo) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM flows WHERE id = $1`
	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete flow: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Helpers ---

func marshalGraph(flow *domain.Flow) (nodes, edges []byte, err error) {
	nodes, err = json.Marshal(flow.Nodes)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal nodes: %w", err)
	}
	edges, err = json.Marshal(flow.Edges)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal edges: %w", err)
	}
	return nodes, edges, nil
}

// scanFlow сканирует строку (pgx.Row или pgx.Rows) в Flow.
func scanFlow(row pgx.Row) (*domain.Flow, error) {
	var flow domain.Flow
	var nodesJSON, edgesJSON []byte

	err := row.Scan(
		&flow.ID,
		&flow.Name,
		&flow.Description,
		&nodesJSON,
		&edgesJSON,
		&flow.CreatedAt,
		&flow.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(nodesJSON, &flow.Nodes); err != nil {
		return nil, fmt.Errorf("unmarshal nodes: %w", err)
	}
	if err := json.Unmarshal(edgesJSON, &flow.Edges); err != nil {
		return nil, fmt.Errorf("unmarshal edges: %w", err)
	}
	flow.Normalize()

	return &flow, nil
}
