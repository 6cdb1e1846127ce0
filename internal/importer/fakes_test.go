package importer

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/meltforce/allworkouts/internal/extract"
	"github.com/meltforce/allworkouts/internal/models"
	"github.com/meltforce/allworkouts/internal/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeExtractor struct {
	plan  *extract.ExtractedPlan
	err   error
	hook  func()
	calls int
}

func (f *fakeExtractor) Extract(ctx context.Context, raw string) (*extract.ExtractedPlan, error) {
	f.calls++
	if f.hook != nil {
		f.hook()
	}
	return f.plan, f.err
}

type staticCatalog []models.Exercise

func (c staticCatalog) ListAll(ctx context.Context) ([]models.Exercise, error) {
	return c, nil
}

// memStore is an in-memory audit store and transaction runner. Transactions
// are serialized, mirroring the row lock taken on the audit record.
type memStore struct {
	mu        sync.Mutex
	txMu      sync.Mutex
	logs      map[uuid.UUID]models.ImportLog
	order     []uuid.UUID
	exercises map[uuid.UUID]models.Exercise
	plans     map[uuid.UUID]models.Plan
	insertErr error

	// loseRace makes ConsumeImportLog report that another plan won.
	loseRace bool
}

func newMemStore(catalog []models.Exercise) *memStore {
	s := &memStore{
		logs:      map[uuid.UUID]models.ImportLog{},
		exercises: map[uuid.UUID]models.Exercise{},
		plans:     map[uuid.UUID]models.Plan{},
	}
	for _, e := range catalog {
		s.exercises[e.ID] = e
	}
	return s
}

func (s *memStore) InsertImportLog(ctx context.Context, log models.ImportLog) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs[log.ID] = log
	s.order = append(s.order, log.ID)
	return nil
}

func (s *memStore) records() []models.ImportLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ImportLog, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.logs[id])
	}
	return out
}

func (s *memStore) InTx(ctx context.Context, fn func(storage.PlanTx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx := &memTx{s: s, consumed: map[uuid.UUID]uuid.UUID{}}
	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range tx.plans {
		s.plans[p.ID] = p
	}
	for logID, planID := range tx.consumed {
		l := s.logs[logID]
		pid := planID
		l.PlanID = &pid
		s.logs[logID] = l
	}
	return nil
}

type memTx struct {
	s        *memStore
	plans    []models.Plan
	consumed map[uuid.UUID]uuid.UUID
}

func (t *memTx) LockImportLog(ctx context.Context, id uuid.UUID, userID int) (models.ImportLog, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	l, ok := t.s.logs[id]
	if !ok || l.UserID != userID {
		return models.ImportLog{}, storage.ErrNotFound
	}
	return l, nil
}

func (t *memTx) ExercisesByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Exercise, error) {
	out := map[uuid.UUID]models.Exercise{}
	for _, id := range ids {
		if e, ok := t.s.exercises[id]; ok {
			out[id] = e
		}
	}
	return out, nil
}

func (t *memTx) InsertPlan(ctx context.Context, plan models.Plan) error {
	t.plans = append(t.plans, plan)
	return nil
}

func (t *memTx) ConsumeImportLog(ctx context.Context, id, planID uuid.UUID) (bool, error) {
	if t.s.loseRace {
		return false, nil
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.s.logs[id].PlanID != nil {
		return false, nil
	}
	if _, ok := t.consumed[id]; ok {
		return false, nil
	}
	t.consumed[id] = planID
	return true, nil
}
