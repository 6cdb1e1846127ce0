package storage

import (
	"context"
	"fmt"
	"time"
)

// ImportStats holds aggregate statistics about a user's imports.
type ImportStats struct {
	TotalImports    int64      `json:"total_imports"`
	ConsumedImports int64      `json:"consumed_imports"`
	TotalPlans      int64      `json:"total_plans"`
	TotalExercises  int64      `json:"total_exercises"`
	High            int64      `json:"high_confidence"`
	Medium          int64      `json:"medium_confidence"`
	Low             int64      `json:"low_confidence"`
	Unmatched       int64      `json:"unmatched"`
	FirstImport     *time.Time `json:"first_import"`
	LatestImport    *time.Time `json:"latest_import"`
}

// GetImportStats returns aggregate statistics for a user's import history.
// Tier totals are summed from each audit record's confidence_scores.
func (db *DB) GetImportStats(ctx context.Context, userID int) (*ImportStats, error) {
	stats := &ImportStats{}

	err := db.Pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(plan_id),
		       COALESCE(SUM((confidence_scores->>'high_confidence')::int), 0),
		       COALESCE(SUM((confidence_scores->>'medium_confidence')::int), 0),
		       COALESCE(SUM((confidence_scores->>'low_confidence')::int), 0),
		       COALESCE(SUM((confidence_scores->>'unmatched')::int), 0),
		       MIN(created_at),
		       MAX(created_at)
		FROM workout_import_logs
		WHERE user_id = $1
	`, userID).Scan(
		&stats.TotalImports, &stats.ConsumedImports,
		&stats.High, &stats.Medium, &stats.Low, &stats.Unmatched,
		&stats.FirstImport, &stats.LatestImport,
	)
	if err != nil {
		return nil, fmt.Errorf("aggregating import logs: %w", err)
	}
	stats.TotalExercises = stats.High + stats.Medium + stats.Low + stats.Unmatched

	err = db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM workout_plans WHERE user_id = $1`, userID,
	).Scan(&stats.TotalPlans)
	if err != nil {
		return nil, fmt.Errorf("counting plans: %w", err)
	}

	return stats, nil
}
