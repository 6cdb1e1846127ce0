package models

import "github.com/google/uuid"

// Exercise is a canonical exercise catalog entry.
type Exercise struct {
	ID                     uuid.UUID `json:"id"`
	Name                   string    `json:"name"`
	PrimaryMuscleGroups    []string  `json:"primary_muscle_groups"`
	SecondaryMuscleGroups  []string  `json:"secondary_muscle_groups"`
	DefaultWeight          *float64  `json:"default_weight"`
	DefaultReps            *int      `json:"default_reps"`
	DefaultRestTimeSeconds *int      `json:"default_rest_time_seconds"`
}

// TargetsMuscle reports whether group is one of the exercise's primary or
// secondary muscle groups. group is normalized before comparison.
func (e Exercise) TargetsMuscle(group string) bool {
	want, _ := NormalizeMuscleGroup(group)
	for _, g := range e.PrimaryMuscleGroups {
		if g == want {
			return true
		}
	}
	for _, g := range e.SecondaryMuscleGroups {
		if g == want {
			return true
		}
	}
	return false
}
