package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/meltforce/allworkouts/internal/apperr"
	"github.com/meltforce/allworkouts/internal/extract"
	"github.com/meltforce/allworkouts/internal/metrics"
	"github.com/meltforce/allworkouts/internal/models"
	"github.com/meltforce/allworkouts/internal/storage"
)

// Field bounds for materialized plans.
const (
	MaxPlanNameLength = 200
	MaxSets           = extract.MaxSets
	MaxReps           = extract.MaxReps
	MaxRestSeconds    = extract.MaxRestSeconds
)

// TxRunner runs plan materialization inside a transaction.
type TxRunner interface {
	InTx(ctx context.Context, fn func(storage.PlanTx) error) error
}

// PlanExerciseInput is one reviewed exercise submitted for materialization.
type PlanExerciseInput struct {
	ExerciseID      uuid.UUID `json:"exercise_id"`
	Sequence        int       `json:"sequence"`
	Sets            int       `json:"sets"`
	RepsMin         int       `json:"reps_min"`
	RepsMax         int       `json:"reps_max"`
	RestSeconds     *int      `json:"rest_time_seconds"`
	ConfidenceLevel string    `json:"confidence_level"`
}

// MaterializeRequest turns a reviewed import into a plan.
type MaterializeRequest struct {
	ImportLogID uuid.UUID           `json:"import_log_id"`
	Name        string              `json:"name"`
	Description *string             `json:"description"`
	Exercises   []PlanExerciseInput `json:"exercises"`
}

// PlanRef identifies a newly created plan.
type PlanRef struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Materializer creates plans from audit records, at most once per record.
type Materializer struct {
	db      TxRunner
	metrics *metrics.Metrics
	log     *slog.Logger
	now     func() time.Time
}

// NewMaterializer creates a Materializer.
func NewMaterializer(db TxRunner, met *metrics.Metrics, log *slog.Logger) *Materializer {
	return &Materializer{db: db, metrics: met, log: log, now: time.Now}
}

// Materialize creates a plan from a reviewed import in one transaction.
// Preconditions are checked in order and the first failure is returned:
// the audit record must exist for this user (NotFound), must not be
// consumed (Conflict), every exercise id must exist (Validation naming the
// missing ids) and the exercise list must be non-empty (Validation). Field
// bounds are checked last. Rest times left empty take the catalog default.
func (m *Materializer) Materialize(ctx context.Context, userID int, req MaterializeRequest) (*PlanRef, error) {
	var ref *PlanRef
	err := m.db.InTx(ctx, func(tx storage.PlanTx) error {
		rec, err := tx.LockImportLog(ctx, req.ImportLogID, userID)
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.NotFound(apperr.CodeImportLogNotFound, "import log not found")
		}
		if err != nil {
			return err
		}
		if rec.Consumed() {
			return apperr.Conflict(apperr.CodeImportLogUsed, "import log has already been used to create a plan")
		}

		ids := uniqueExerciseIDs(req.Exercises)
		known, err := tx.ExercisesByID(ctx, ids)
		if err != nil {
			return err
		}
		var missing []string
		for _, id := range ids {
			if _, ok := known[id]; !ok {
				missing = append(missing, id.String())
			}
		}
		if len(missing) > 0 {
			return apperr.Validation("exercises not found: %s", strings.Join(missing, ", ")).
				WithDetail("missing_exercise_ids", missing)
		}
		if len(req.Exercises) == 0 {
			return apperr.Validation("plan must contain at least one exercise")
		}

		plan, err := m.buildPlan(userID, req, known)
		if err != nil {
			return err
		}
		if err := tx.InsertPlan(ctx, plan); err != nil {
			return err
		}

		ok, err := tx.ConsumeImportLog(ctx, rec.ID, plan.ID)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Conflict(apperr.CodeImportLogUsed, "import log has already been used to create a plan")
		}

		ref = &PlanRef{ID: plan.ID, Name: plan.Name, CreatedAt: plan.CreatedAt}
		return nil
	})
	if err != nil {
		m.metrics.ObserveMaterialization(string(apperr.KindOf(err)))
		if apperr.KindOf(err) == apperr.KindInternal {
			return nil, fmt.Errorf("materializing plan: %w", err)
		}
		return nil, err
	}

	m.metrics.ObserveMaterialization(metrics.OutcomeSuccess)
	m.log.Info("plan materialized",
		"user_id", userID,
		"plan_id", ref.ID,
		"import_log_id", req.ImportLogID,
		"exercises", len(req.Exercises))
	return ref, nil
}

func (m *Materializer) buildPlan(userID int, req MaterializeRequest, known map[uuid.UUID]models.Exercise) (models.Plan, error) {
	name := strings.TrimSpace(req.Name)
	if n := utf8.RuneCountInString(name); n < 1 || n > MaxPlanNameLength {
		return models.Plan{}, apperr.Validation("name must be between 1 and %d characters", MaxPlanNameLength)
	}
	var desc *string
	if req.Description != nil {
		if d := strings.TrimSpace(*req.Description); d != "" {
			desc = &d
		}
	}

	importLogID := req.ImportLogID
	plan := models.Plan{
		ID:          uuid.New(),
		UserID:      userID,
		Name:        name,
		Description: desc,
		ImportLogID: &importLogID,
		CreatedAt:   m.now().UTC(),
		Exercises:   make([]models.PlanExercise, 0, len(req.Exercises)),
	}

	for i, in := range req.Exercises {
		if err := validateInput(i, in); err != nil {
			return models.Plan{}, err
		}
		level, err := models.ParseConfidenceLevel(in.ConfidenceLevel)
		if err != nil {
			return models.Plan{}, apperr.Validation("exercises[%d]: %v", i, err)
		}
		rest := in.RestSeconds
		if rest == nil {
			rest = known[in.ExerciseID].DefaultRestTimeSeconds
		}
		plan.Exercises = append(plan.Exercises, models.PlanExercise{
			ID:              uuid.New(),
			PlanID:          plan.ID,
			ExerciseID:      in.ExerciseID,
			ExerciseName:    known[in.ExerciseID].Name,
			Sequence:        in.Sequence,
			Sets:            in.Sets,
			RepsMin:         in.RepsMin,
			RepsMax:         in.RepsMax,
			RestSeconds:     rest,
			ConfidenceLevel: level,
		})
	}
	return plan, nil
}

func validateInput(i int, in PlanExerciseInput) error {
	switch {
	case in.Sequence < 0:
		return apperr.Validation("exercises[%d]: sequence must be >= 0", i)
	case in.Sets < 1 || in.Sets > MaxSets:
		return apperr.Validation("exercises[%d]: sets must be between 1 and %d", i, MaxSets)
	case in.RepsMin < 1 || in.RepsMin > MaxReps || in.RepsMax < 1 || in.RepsMax > MaxReps:
		return apperr.Validation("exercises[%d]: reps must be between 1 and %d", i, MaxReps)
	case in.RepsMin > in.RepsMax:
		return apperr.Validation("exercises[%d]: reps_min must not exceed reps_max", i)
	case in.RestSeconds != nil && (*in.RestSeconds < 0 || *in.RestSeconds > MaxRestSeconds):
		return apperr.Validation("exercises[%d]: rest time must be between 0 and %d seconds", i, MaxRestSeconds)
	}
	return nil
}

// uniqueExerciseIDs returns the distinct ids in submission order.
func uniqueExerciseIDs(in []PlanExerciseInput) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(in))
	ids := make([]uuid.UUID, 0, len(in))
	for _, e := range in {
		if !seen[e.ExerciseID] {
			seen[e.ExerciseID] = true
			ids = append(ids, e.ExerciseID)
		}
	}
	return ids
}
