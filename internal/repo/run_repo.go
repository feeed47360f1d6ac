package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Synapse/internal/domain"
)

// RunRepo — репозиторий для работы с runs.
type RunRepo struct {
	pool *pgxpool.Pool
}

// NewRunRepo создаёт новый RunRepo.
func NewRunRepo(pool *pgxpool.Pool) *RunRepo {
	return &RunRepo{pool: pool}
}

const runColumns = `id, flow_id, status, start_node_id, stop_after_node_id, initial_results,
       results, failed_node_id, parent_run_id, started_at, finished_at, error, created_at`

// Create создаёт новый run.
func (r *RunRepo) Create(ctx context.Context, run *domain.Run) error {
	initialJSON, err := marshalResults(run.InitialResults)
	if err != nil {
		return fmt.Errorf("marshal initial results: %w", err)
	}

	query := `
		INSERT INTO runs (id, flow_id, status, start_node_id, stop_after_node_id,
		                  initial_results, parent_run_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = r.pool.Exec(ctx, query,
		run.ID,
		run.FlowID,
		run.Status,
		nullString(run.StartNodeID),
		nullString(run.StopAfterNodeID),
		initialJSON,
		run.ParentRunID,
		run.CreatedAt,
	)
	if err != nil {
		// flow удалён между проверкой и вставкой → ErrNotFound
		return fmt.Errorf("insert run: %w", translatePgError(err))
	}
	return nil
}

// GetByID возвращает run по ID.
func (r *RunRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = $1`

	run, err := scanRun(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// List возвращает список runs с фильтрацией.
func (r *RunRepo) List(ctx context.Context, filter RunFilter) ([]domain.Run, error) {
	query := `
		SELECT ` + runColumns + `
		FROM runs
		WHERE ($1::uuid IS NULL OR flow_id = $1)
		  AND ($2::text IS NULL OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.pool.Query(ctx, query,
		nullUUID(filter.FlowID),
		nullString(string(filter.Status)),
		filter.Limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	return collectRuns(rows)
}

// ListPending возвращает runs в статусе PENDING, старые первыми.
func (r *RunRepo) ListPending(ctx context.Context, limit int) ([]domain.Run, error) {
	query := `
		SELECT ` + runColumns + `
		FROM runs
		WHERE status = 'PENDING'
		ORDER BY created_at ASC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending runs: %w", err)
	}
	defer rows.Close()

	return collectRuns(rows)
}

// MarkRunning атомарно переводит run из PENDING в RUNNING.
// Возвращает ErrInvalidState, если run уже забрал другой worker.
func (r *RunRepo) MarkRunning(ctx context.Context, id uuid.UUID, startedAt time.Time) error {
	query := `
		UPDATE runs
		SET status = 'RUNNING', started_at = $2
		WHERE id = $1 AND status = 'PENDING'
	`
	result, err := r.pool.Exec(ctx, query, id, startedAt)
	if err != nil {
		return fmt.Errorf("mark run running: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrInvalidState
	}
	return nil
}

// ListStale возвращает runs, которые висят в RUNNING с момента до startedBefore.
func (r *RunRepo) ListStale(ctx context.Context, startedBefore time.Time, limit int) ([]domain.Run, error) {
	query := `
		SELECT ` + runColumns + `
		FROM runs
		WHERE status = 'RUNNING' AND started_at < $1
		ORDER BY started_at ASC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, startedBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale runs: %w", err)
	}
	defer rows.Close()

	return collectRuns(rows)
}

// MarkAbandoned переводит зависший run в FAILED, если он всё ещё RUNNING
// и не был перезапущен (started_at не изменился).
// Возвращает ErrInvalidState, если run тем временем завершился.
func (r *RunRepo) MarkAbandoned(ctx context.Context, run *domain.Run) error {
	query := `
		UPDATE runs
		SET status = 'FAILED', finished_at = $3, error = $4
		WHERE id = $1 AND status = 'RUNNING' AND started_at = $2
	`
	result, err := r.pool.Exec(ctx, query, run.ID, run.StartedAt, run.FinishedAt, nullString(run.Error))
	if err != nil {
		return fmt.Errorf("mark run abandoned: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrInvalidState
	}
	return nil
}

// Update сохраняет итог run, который всё ещё RUNNING с тем же started_at.
// Возвращает ErrInvalidState, если run тем временем завершили
// (например, recovery пометил его брошенным).
func (r *RunRepo) Update(ctx context.Context, run *domain.Run) error {
	resultsJSON, err := marshalResults(run.Results)
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}

	query := `
		UPDATE runs
		SET status = $2, results = $3, failed_node_id = $4,
		    finished_at = $6, error = $7
		WHERE id = $1 AND status = 'RUNNING' AND started_at = $5
	`
	result, err := r.pool.Exec(ctx, query,
		run.ID,
		run.Status,
		resultsJSON,
		nullString(run.FailedNodeID),
		run.StartedAt,
		run.FinishedAt,
		nullString(run.Error),
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrInvalidState
	}
	return nil
}

// --- Helpers ---

// RunFilter — параметры фильтрации runs.
type RunFilter struct {
	FlowID *uuid.UUID
	Status domain.RunStatus
	Limit  int
	Offset int
}

func collectRuns(rows pgx.Rows) ([]domain.Run, error) {
	var runs []domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// scanRun сканирует строку (pgx.Row или pgx.Rows) в Run.
// pgx.ErrNoRows возвращается без обёртки.
func scanRun(row pgx.Row) (*domain.Run, error) {
	var run domain.Run
	var initialJSON, resultsJSON []byte
	var startNodeID, stopAfterNodeID, failedNodeID, runError *string

	err := row.Scan(
		&run.ID,
		&run.FlowID,
		&run.Status,
		&startNodeID,
		&stopAfterNodeID,
		&initialJSON,
		&resultsJSON,
		&failedNodeID,
		&run.ParentRunID,
		&run.StartedAt,
		&run.FinishedAt,
		&runError,
		&run.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}

	if initialJSON != nil {
		if err := json.Unmarshal(initialJSON, &run.InitialResults); err != nil {
			return nil, fmt.Errorf("unmarshal initial results: %w", err)
		}
	}
	if resultsJSON != nil {
		if err := json.Unmarshal(resultsJSON, &run.Results); err != nil {
			return nil, fmt.Errorf("unmarshal results: %w", err)
		}
	}

	run.StartNodeID = deref(startNodeID)
	run.StopAfterNodeID = deref(stopAfterNodeID)
	run.FailedNodeID = deref(failedNodeID)
	run.Error = deref(runError)

	return &run, nil
}

// marshalResults возвращает nil для пустой карты (для NULL в БД).
func marshalResults(results map[string]domain.Payload) ([]byte, error) {
	if results == nil {
		return nil, nil
	}
	return json.Marshal(results)
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// nullUUID возвращает nil для пустого UUID.
func nullUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil || *id == uuid.Nil {
		return nil
	}
	return id
}
