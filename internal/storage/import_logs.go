package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/meltforce/allworkouts/internal/models"
)

const importLogColumns = `id, user_id, raw_text, parsed_exercises, confidence_scores, plan_id, created_at`

func scanImportLog(row rowScanner) (models.ImportLog, error) {
	var l models.ImportLog
	err := row.Scan(&l.ID, &l.UserID, &l.RawText, &l.ParsedExercises, &l.ConfidenceScores, &l.PlanID, &l.CreatedAt)
	return l, err
}

// InsertImportLog appends an audit record. Records are never updated except
// to set plan_id once, and never deleted.
func (db *DB) InsertImportLog(ctx context.Context, log models.ImportLog) error {
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO workout_import_logs (id, user_id, raw_text, parsed_exercises, confidence_scores, plan_id, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		log.ID, log.UserID, log.RawText, log.ParsedExercises, log.ConfidenceScores, log.PlanID, log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting import log: %w", err)
	}
	return nil
}

// GetImportLog returns one of the user's audit records. Records owned by other
// users are reported as ErrNotFound.
func (db *DB) GetImportLog(ctx context.Context, id uuid.UUID, userID int) (models.ImportLog, error) {
	l, err := scanImportLog(db.Pool.QueryRow(ctx,
		`SELECT `+importLogColumns+` FROM workout_import_logs WHERE id = $1 AND user_id = $2`,
		id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ImportLog{}, ErrNotFound
	}
	if err != nil {
		return models.ImportLog{}, fmt.Errorf("querying import log %s: %w", id, err)
	}
	return l, nil
}

// QueryImportLogs returns the most recent audit records for a user.
func (db *DB) QueryImportLogs(ctx context.Context, userID, limit int) ([]models.ImportLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Pool.Query(ctx,
		`SELECT `+importLogColumns+`
		 FROM workout_import_logs
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying import logs: %w", err)
	}
	defer rows.Close()

	result := []models.ImportLog{}
	for rows.Next() {
		l, err := scanImportLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning import log: %w", err)
		}
		result = append(result, l)
	}
	return result, rows.Err()
}
