package importer

import (
	"github.com/google/uuid"
	"github.com/meltforce/allworkouts/internal/matcher"
)

// ParsedPlan is the reviewable form of an import run.
type ParsedPlan struct {
	Name        string               `json:"name"`
	Description *string              `json:"description"`
	RawText     string               `json:"raw_text"`
	ImportLogID uuid.UUID            `json:"import_log_id"`
	Exercises   []ParsedExerciseItem `json:"exercises"`
}

// ParseResponse is returned to clients after a successful import run.
type ParseResponse struct {
	ParsedPlan            ParsedPlan `json:"parsed_plan"`
	TotalExercises        int        `json:"total_exercises"`
	HighConfidenceCount   int        `json:"high_confidence_count"`
	MediumConfidenceCount int        `json:"medium_confidence_count"`
	LowConfidenceCount    int        `json:"low_confidence_count"`
	UnmatchedCount        int        `json:"unmatched_count"`
}

// NewParseResponse flattens an import result and its tier counts.
func NewParseResponse(res *Result) *ParseResponse {
	exercises := res.Exercises
	if exercises == nil {
		exercises = []ParsedExerciseItem{}
	}
	return &ParseResponse{
		ParsedPlan: ParsedPlan{
			Name:        res.Name,
			Description: res.Description,
			RawText:     res.RawText,
			ImportLogID: res.ImportLogID,
			Exercises:   exercises,
		},
		TotalExercises:        res.Counts.Total(),
		HighConfidenceCount:   res.Counts.High,
		MediumConfidenceCount: res.Counts.Medium,
		LowConfidenceCount:    res.Counts.Low,
		UnmatchedCount:        res.Counts.Unmatched,
	}
}

// MatchResponse is the candidate list for a single free-text query.
type MatchResponse struct {
	Query        string            `json:"query"`
	Best         *MatchedExercise  `json:"best"`
	Alternatives []MatchedExercise `json:"alternatives"`
}

// NewMatchResponse converts matcher output for manual re-matching.
func NewMatchResponse(query string, res matcher.Result) *MatchResponse {
	out := &MatchResponse{
		Query:        query,
		Alternatives: make([]MatchedExercise, 0, len(res.Alternatives)),
	}
	if res.Best != nil {
		best := toMatched(query, *res.Best)
		out.Best = &best
	}
	for _, c := range res.Alternatives {
		out.Alternatives = append(out.Alternatives, toMatched(query, c))
	}
	return out
}
