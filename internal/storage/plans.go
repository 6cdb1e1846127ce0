package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/meltforce/allworkouts/internal/models"
)

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PlanTx is the set of operations plan materialization performs inside one
// transaction.
type PlanTx interface {
	// LockImportLog reads the user's audit record and locks it until the
	// transaction ends. Returns ErrNotFound for missing or foreign records.
	LockImportLog(ctx context.Context, id uuid.UUID, userID int) (models.ImportLog, error)
	// ExercisesByID returns the catalog entries among ids that exist.
	ExercisesByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Exercise, error)
	// InsertPlan inserts the plan and its exercise rows.
	InsertPlan(ctx context.Context, plan models.Plan) error
	// ConsumeImportLog links the audit record to planID if it is still
	// unlinked. Returns false when another plan already claimed it.
	ConsumeImportLog(ctx context.Context, id, planID uuid.UUID) (bool, error)
}

type pgPlanTx struct {
	tx pgx.Tx
}

var _ PlanTx = (*pgPlanTx)(nil)

func (t *pgPlanTx) LockImportLog(ctx context.Context, id uuid.UUID, userID int) (models.ImportLog, error) {
	l, err := scanImportLog(t.tx.QueryRow(ctx,
		`SELECT `+importLogColumns+` FROM workout_import_logs
		 WHERE id = $1 AND user_id = $2
		 FOR UPDATE`,
		id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ImportLog{}, ErrNotFound
	}
	if err != nil {
		return models.ImportLog{}, fmt.Errorf("locking import log %s: %w", id, err)
	}
	return l, nil
}

func (t *pgPlanTx) ExercisesByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Exercise, error) {
	return exercisesByID(ctx, t.tx, ids)
}

func (t *pgPlanTx) InsertPlan(ctx context.Context, plan models.Plan) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO workout_plans (id, user_id, name, description, import_log_id, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6)`,
		plan.ID, plan.UserID, plan.Name, plan.Description, plan.ImportLogID, plan.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting plan: %w", err)
	}
	if len(plan.Exercises) == 0 {
		return nil
	}

	query := `INSERT INTO workout_plan_exercises (id, plan_id, exercise_id, sequence, sets, reps_min, reps_max, rest_time_seconds, confidence_level) VALUES `
	args := make([]any, 0, len(plan.Exercises)*9)
	valueStrings := make([]string, 0, len(plan.Exercises))

	for i, e := range plan.Exercises {
		base := i * 9
		valueStrings = append(valueStrings, fmt.Sprintf(
			"($%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9,
		))
		args = append(args, e.ID, plan.ID, e.ExerciseID, e.Sequence, e.Sets,
			e.RepsMin, e.RepsMax, e.RestSeconds, string(e.ConfidenceLevel))
	}

	if _, err := t.tx.Exec(ctx, query+strings.Join(valueStrings, ","), args...); err != nil {
		return fmt.Errorf("inserting plan exercises: %w", err)
	}
	return nil
}

func (t *pgPlanTx) ConsumeImportLog(ctx context.Context, id, planID uuid.UUID) (bool, error) {
	tag, err := t.tx.Exec(ctx,
		`UPDATE workout_import_logs SET plan_id = $1 WHERE id = $2 AND plan_id IS NULL`,
		planID, id)
	if err != nil {
		return false, fmt.Errorf("linking import log %s: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetPlan returns one of the user's plans with its exercises in sequence order.
func (db *DB) GetPlan(ctx context.Context, id uuid.UUID, userID int) (models.Plan, error) {
	var p models.Plan
	err := db.Pool.QueryRow(ctx,
		`SELECT id, user_id, name, description, import_log_id, created_at
		 FROM workout_plans WHERE id = $1 AND user_id = $2`,
		id, userID).Scan(&p.ID, &p.UserID, &p.Name, &p.Description, &p.ImportLogID, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Plan{}, ErrNotFound
	}
	if err != nil {
		return models.Plan{}, fmt.Errorf("querying plan %s: %w", id, err)
	}

	rows, err := db.Pool.Query(ctx,
		`SELECT pe.id, pe.plan_id, pe.exercise_id, e.name, pe.sequence, pe.sets,
		        pe.reps_min, pe.reps_max, pe.rest_time_seconds, pe.confidence_level
		 FROM workout_plan_exercises pe
		 JOIN exercises e ON e.id = pe.exercise_id
		 WHERE pe.plan_id = $1
		 ORDER BY pe.sequence, pe.id`,
		id)
	if err != nil {
		return models.Plan{}, fmt.Errorf("querying plan exercises: %w", err)
	}
	defer rows.Close()

	p.Exercises = []models.PlanExercise{}
	for rows.Next() {
		var e models.PlanExercise
		var level string
		if err := rows.Scan(&e.ID, &e.PlanID, &e.ExerciseID, &e.ExerciseName, &e.Sequence, &e.Sets,
			&e.RepsMin, &e.RepsMax, &e.RestSeconds, &level); err != nil {
			return models.Plan{}, fmt.Errorf("scanning plan exercise: %w", err)
		}
		e.ConfidenceLevel = models.ConfidenceLevel(level)
		p.Exercises = append(p.Exercises, e)
	}
	return p, rows.Err()
}
