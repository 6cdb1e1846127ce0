package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ImportLog is a row of the workout_import_logs audit table. It is written
// once per successful extraction and updated at most once to set PlanID.
type ImportLog struct {
	ID               uuid.UUID        `json:"id"`
	UserID           int              `json:"user_id"`
	RawText          string           `json:"raw_text"`
	ParsedExercises  json.RawMessage  `json:"parsed_exercises"`
	ConfidenceScores ConfidenceCounts `json:"confidence_scores"`
	PlanID           *uuid.UUID       `json:"plan_id"`
	CreatedAt        time.Time        `json:"created_at"`
}

// Consumed reports whether a plan has already been materialized from the log.
func (l ImportLog) Consumed() bool {
	return l.PlanID != nil
}

// Plan is a row of the workout_plans table.
type Plan struct {
	ID          uuid.UUID      `json:"id"`
	UserID      int            `json:"user_id"`
	Name        string         `json:"name"`
	Description *string        `json:"description"`
	ImportLogID *uuid.UUID     `json:"import_log_id"`
	CreatedAt   time.Time      `json:"created_at"`
	Exercises   []PlanExercise `json:"exercises"`
}

// PlanExercise is a row of the workout_plan_exercises table.
type PlanExercise struct {
	ID              uuid.UUID       `json:"id"`
	PlanID          uuid.UUID       `json:"plan_id"`
	ExerciseID      uuid.UUID       `json:"exercise_id"`
	ExerciseName    string          `json:"exercise_name,omitempty"`
	Sequence        int             `json:"sequence"`
	Sets            int             `json:"sets"`
	RepsMin         int             `json:"reps_min"`
	RepsMax         int             `json:"reps_max"`
	RestSeconds     *int            `json:"rest_time_seconds"`
	ConfidenceLevel ConfidenceLevel `json:"confidence_level"`
}
