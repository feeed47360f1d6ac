package recovery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Synapse/internal/domain"
	"github.com/shaiso/Synapse/internal/mq"
	"github.com/shaiso/Synapse/internal/repo"
)

// --- Fakes ---

type fakeRuns struct {
	mu       sync.Mutex
	stale    []domain.Run
	before   time.Time
	marked   []domain.Run
	finished map[uuid.UUID]bool // runs, завершившиеся до MarkAbandoned
	listErr  error
}

func (f *fakeRuns) ListStale(ctx context.Context, startedBefore time.Time, limit int) ([]domain.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.before = startedBefore
	if f.listErr != nil {
		return nil, f.listErr
	}
	if len(f.stale) > limit {
		return append([]domain.Run(nil), f.stale[:limit]...), nil
	}
	return append([]domain.Run(nil), f.stale...), nil
}

func (f *fakeRuns) MarkAbandoned(ctx context.Context, run *domain.Run) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.finished[run.ID] {
		return repo.ErrInvalidState
	}
	f.marked = append(f.marked, *run)
	return nil
}

type fakePublisher struct {
	mu       sync.Mutex
	finished []mq.RunFinishedPayload
	err      error
}

func (p *fakePublisher) PublishRunFinished(ctx context.Context, payload mq.RunFinishedPayload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finished = append(p.finished, payload)
	return p.err
}

type fakeLeader struct {
	mu       sync.Mutex
	grant    bool
	attempts int
	released bool
}

func (l *fakeLeader) TryAcquire(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.attempts++
	return l.grant, nil
}

func (l *fakeLeader) Release(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.released = true
}

func staleRun(startedAt time.Time) domain.Run {
	return domain.Run{
		ID:        uuid.New(),
		FlowID:    uuid.New(),
		Status:    domain.RunStatusRunning,
		StartedAt: &startedAt,
	}
}

// --- Tests ---

func TestNew_Defaults(t *testing.T) {
	r := New(Config{})

	if r.interval != defaultInterval {
		t.Errorf("expected interval %v, got %v", defaultInterval, r.interval)
	}
	if r.staleAfter != DefaultStaleAfter {
		t.Errorf("expected staleAfter %v, got %v", DefaultStaleAfter, r.staleAfter)
	}
	if r.batchSize != defaultBatchSize {
		t.Errorf("expected batchSize %d, got %d", defaultBatchSize, r.batchSize)
	}
}

func TestTick_ReapsStaleRuns(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	runs := &fakeRuns{stale: []domain.Run{
		staleRun(now.Add(-2 * time.Hour)),
		staleRun(now.Add(-90 * time.Minute)),
	}}
	pub := &fakePublisher{}

	r := New(Config{RunRepo: runs, Publisher: pub, StaleAfter: time.Hour})
	r.now = func() time.Time { return now }

	if err := r.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !runs.before.Equal(now.Add(-time.Hour)) {
		t.Errorf("expected threshold %v, got %v", now.Add(-time.Hour), runs.before)
	}
	if len(runs.marked) != 2 {
		t.Fatalf("expected 2 marked runs, got %d", len(runs.marked))
	}

	for _, run := range runs.marked {
		if run.Status != domain.RunStatusFailed || run.Error != AbandonedError {
			t.Errorf("unexpected marked run %+v", run)
		}
		if run.FinishedAt == nil || !run.FinishedAt.Equal(now) {
			t.Errorf("expected finished_at %v, got %v", now, run.FinishedAt)
		}
		if run.FailedNodeID != "" {
			t.Errorf("abandoned run has no failed node, got %q", run.FailedNodeID)
		}
	}

	if len(pub.finished) != 2 || pub.finished[0].Status != domain.RunStatusFailed {
		t.Errorf("expected 2 run.finished events, got %+v", pub.finished)
	}
}

func TestTick_SkipsRunsFinishedConcurrently(t *testing.T) {
	done := staleRun(time.Now().Add(-time.Hour))
	hung := staleRun(time.Now().Add(-time.Hour))
	runs := &fakeRuns{
		stale:    []domain.Run{done, hung},
		finished: map[uuid.UUID]bool{done.ID: true},
	}
	pub := &fakePublisher{}

	r := New(Config{RunRepo: runs, Publisher: pub, StaleAfter: time.Minute})
	if err := r.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(runs.marked) != 1 || runs.marked[0].ID != hung.ID {
		t.Errorf("expected only the hung run to be marked, got %+v", runs.marked)
	}
	if len(pub.finished) != 1 || pub.finished[0].RunID != hung.ID {
		t.Errorf("expected one run.finished for the hung run, got %+v", pub.finished)
	}
}

func TestTick_PublishFailureIsNotFatal(t *testing.T) {
	runs := &fakeRuns{stale: []domain.Run{staleRun(time.Now().Add(-time.Hour))}}
	pub := &fakePublisher{err: errors.New("broker down")}

	r := New(Config{RunRepo: runs, Publisher: pub, StaleAfter: time.Minute})
	if err := r.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runs.marked) != 1 {
		t.Errorf("run should be marked even if publish fails")
	}
}

func TestTick_ListError(t *testing.T) {
	runs := &fakeRuns{listErr: errors.New("db down")}

	r := New(Config{RunRepo: runs})
	if err := r.Tick(context.Background()); err == nil {
		t.Error("expected error")
	}
}

func TestTick_BatchSize(t *testing.T) {
	runs := &fakeRuns{}
	for range 5 {
		runs.stale = append(runs.stale, staleRun(time.Now().Add(-time.Hour)))
	}

	r := New(Config{RunRepo: runs, BatchSize: 2, StaleAfter: time.Minute})
	if err := r.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runs.marked) != 2 {
		t.Errorf("expected 2 runs per tick, got %d", len(runs.marked))
	}
}

func TestRun_FollowerSkipsTicks(t *testing.T) {
	runs := &fakeRuns{stale: []domain.Run{staleRun(time.Now().Add(-time.Hour))}}
	leader := &fakeLeader{grant: false}

	r := New(Config{RunRepo: runs, Leader: leader, Interval: 10 * time.Millisecond, StaleAfter: time.Minute})

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()
	r.Run(ctx)

	leader.mu.Lock()
	defer leader.mu.Unlock()
	if leader.attempts == 0 {
		t.Error("expected lock attempts")
	}
	if !leader.released {
		t.Error("lock should be released on exit")
	}
	if len(runs.marked) != 0 {
		t.Errorf("follower must not reap runs, got %d", len(runs.marked))
	}
}

func TestRun_LeaderReaps(t *testing.T) {
	runs := &fakeRuns{stale: []domain.Run{staleRun(time.Now().Add(-time.Hour))}}
	leader := &fakeLeader{grant: true}

	r := New(Config{RunRepo: runs, Leader: leader, Interval: 10 * time.Millisecond, StaleAfter: time.Minute})

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()
	r.Run(ctx)

	runs.mu.Lock()
	defer runs.mu.Unlock()
	if len(runs.marked) == 0 {
		t.Error("leader should reap stale runs")
	}
}
