package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/meltforce/allworkouts/internal/models"
)

const exerciseColumns = `id, name, primary_muscle_groups, secondary_muscle_groups,
	default_weight, default_reps, default_rest_time_seconds`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExercise(row rowScanner) (models.Exercise, error) {
	var e models.Exercise
	err := row.Scan(&e.ID, &e.Name, &e.PrimaryMuscleGroups, &e.SecondaryMuscleGroups,
		&e.DefaultWeight, &e.DefaultReps, &e.DefaultRestTimeSeconds)
	if e.SecondaryMuscleGroups == nil {
		e.SecondaryMuscleGroups = []string{}
	}
	return e, err
}

// ListAll returns every exercise catalog entry ordered by name.
func (db *DB) ListAll(ctx context.Context) ([]models.Exercise, error) {
	rows, err := db.Pool.Query(ctx, `SELECT `+exerciseColumns+` FROM exercises ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("querying exercises: %w", err)
	}
	defer rows.Close()

	result := []models.Exercise{}
	for rows.Next() {
		e, err := scanExercise(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning exercise: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// exercisesByID loads the catalog entries among ids that exist.
func exercisesByID(ctx context.Context, q querier, ids []uuid.UUID) (map[uuid.UUID]models.Exercise, error) {
	found := make(map[uuid.UUID]models.Exercise, len(ids))
	if len(ids) == 0 {
		return found, nil
	}
	rows, err := q.Query(ctx, `SELECT `+exerciseColumns+` FROM exercises WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("querying exercises by id: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		e, err := scanExercise(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning exercise: %w", err)
		}
		found[e.ID] = e
	}
	return found, rows.Err()
}
