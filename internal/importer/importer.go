// Package importer runs the plan text import pipeline and materializes
// reviewed imports into durable workout plans.
package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/meltforce/allworkouts/internal/apperr"
	"github.com/meltforce/allworkouts/internal/catalog"
	"github.com/meltforce/allworkouts/internal/extract"
	"github.com/meltforce/allworkouts/internal/matcher"
	"github.com/meltforce/allworkouts/internal/metrics"
	"github.com/meltforce/allworkouts/internal/models"
	"golang.org/x/sync/errgroup"
)

// Extractor turns raw plan text into a structured plan.
type Extractor interface {
	Extract(ctx context.Context, raw string) (*extract.ExtractedPlan, error)
}

// ImportLogStore persists audit records.
type ImportLogStore interface {
	InsertImportLog(ctx context.Context, log models.ImportLog) error
}

// Options tune the import pipeline.
type Options struct {
	TopN             int
	MatchConcurrency int
	FinalizeTimeout  time.Duration
}

// MatchedExercise is a catalog entry proposed for an extracted line.
type MatchedExercise struct {
	ExerciseID            uuid.UUID              `json:"exercise_id"`
	ExerciseName          string                 `json:"exercise_name"`
	OriginalText          string                 `json:"original_text"`
	Confidence            float64                `json:"confidence"`
	ConfidenceLevel       models.ConfidenceLevel `json:"confidence_level"`
	PrimaryMuscleGroups   []string               `json:"primary_muscle_groups"`
	SecondaryMuscleGroups []string               `json:"secondary_muscle_groups"`
}

// ParsedExerciseItem is one extracted line with its match results, ready for review.
type ParsedExerciseItem struct {
	MatchedExercise *MatchedExercise  `json:"matched_exercise"`
	OriginalText    string            `json:"original_text"`
	Sets            int               `json:"sets"`
	RepsMin         int               `json:"reps_min"`
	RepsMax         int               `json:"reps_max"`
	RestSeconds     *int              `json:"rest_seconds"`
	Notes           *string           `json:"notes"`
	Sequence        int               `json:"sequence"`
	Alternatives    []MatchedExercise `json:"alternatives"`
}

// Tier returns the tier of the matched exercise, or nil when unmatched.
func (it ParsedExerciseItem) Tier() *models.ConfidenceLevel {
	if it.MatchedExercise == nil {
		return nil
	}
	level := it.MatchedExercise.ConfidenceLevel
	return &level
}

// Result is the outcome of one import run.
type Result struct {
	ImportLogID uuid.UUID
	Name        string
	Description *string
	RawText     string
	Exercises   []ParsedExerciseItem
	Counts      models.ConfidenceCounts
}

// Importer orchestrates extraction, matching and the audit write.
type Importer struct {
	extractor Extractor
	catalog   catalog.Accessor
	matcher   *matcher.Matcher
	logs      ImportLogStore
	metrics   *metrics.Metrics
	log       *slog.Logger
	opts      Options
	now       func() time.Time
}

// New creates a new Importer.
func New(ext Extractor, cat catalog.Accessor, m *matcher.Matcher, logs ImportLogStore,
	met *metrics.Metrics, log *slog.Logger, opts Options) *Importer {
	if opts.TopN <= 0 {
		opts.TopN = matcher.DefaultTopN
	}
	if opts.MatchConcurrency <= 0 {
		opts.MatchConcurrency = 4
	}
	if opts.FinalizeTimeout <= 0 {
		opts.FinalizeTimeout = 10 * time.Second
	}
	return &Importer{
		extractor: ext,
		catalog:   cat,
		matcher:   m,
		logs:      logs,
		metrics:   met,
		log:       log,
		opts:      opts,
		now:       time.Now,
	}
}

// Run extracts raw, matches every extracted line against one catalog
// snapshot and writes exactly one audit record. Extraction errors are
// returned unchanged and leave no record behind. Once extraction succeeds
// the remaining work ignores caller cancellation and is bounded by
// Options.FinalizeTimeout instead.
func (imp *Importer) Run(ctx context.Context, userID int, raw string) (*Result, error) {
	start := time.Now()
	plan, err := imp.extractor.Extract(ctx, raw)
	imp.metrics.ObserveExtraction(time.Since(start))
	if err != nil {
		imp.metrics.ObserveImport(outcomeFor(err))
		return nil, err
	}

	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), imp.opts.FinalizeTimeout)
	defer cancel()

	res, err := imp.finalize(fctx, userID, raw, plan)
	if err != nil {
		imp.metrics.ObserveImport(metrics.OutcomeError)
		return nil, err
	}

	imp.metrics.ObserveImport(metrics.OutcomeSuccess)
	imp.metrics.ObserveTiers(res.Counts.High, res.Counts.Medium, res.Counts.Low, res.Counts.Unmatched)
	imp.log.Info("plan imported",
		"user_id", userID,
		"import_log_id", res.ImportLogID,
		"exercises", res.Counts.Total(),
		"high", res.Counts.High,
		"medium", res.Counts.Medium,
		"low", res.Counts.Low,
		"unmatched", res.Counts.Unmatched)
	return res, nil
}

func (imp *Importer) finalize(ctx context.Context, userID int, raw string, plan *extract.ExtractedPlan) (*Result, error) {
	snap, err := catalog.Load(ctx, imp.catalog)
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}

	imp.log.Debug("matching against catalog", "catalog_size", snap.Len(), "exercises", len(plan.Exercises))

	items := make([]ParsedExerciseItem, len(plan.Exercises))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(imp.opts.MatchConcurrency)
	for i, ex := range plan.Exercises {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			items[i] = newItem(ex, imp.matcher.MatchIn(snap, ex.OriginalText, imp.opts.TopN))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("matching exercises: %w", err)
	}

	var counts models.ConfidenceCounts
	for _, it := range items {
		counts.Add(it.Tier())
	}

	payload, err := json.Marshal(plan)
	if err != nil {
		return nil, fmt.Errorf("encoding extraction result: %w", err)
	}

	rec := models.ImportLog{
		ID:               uuid.New(),
		UserID:           userID,
		RawText:          raw,
		ParsedExercises:  payload,
		ConfidenceScores: counts,
		CreatedAt:        imp.now().UTC(),
	}
	if err := imp.logs.InsertImportLog(ctx, rec); err != nil {
		return nil, fmt.Errorf("recording import: %w", err)
	}

	return &Result{
		ImportLogID: rec.ID,
		Name:        plan.Name,
		Description: plan.Description,
		RawText:     raw,
		Exercises:   items,
		Counts:      counts,
	}, nil
}

func newItem(ex extract.ExtractedExercise, res matcher.Result) ParsedExerciseItem {
	it := ParsedExerciseItem{
		OriginalText: ex.OriginalText,
		Sets:         ex.Sets,
		RepsMin:      ex.RepsMin,
		RepsMax:      ex.RepsMax,
		RestSeconds:  ex.RestSeconds,
		Notes:        ex.Notes,
		Sequence:     ex.Sequence,
		Alternatives: make([]MatchedExercise, 0, len(res.Alternatives)),
	}
	if res.Best != nil {
		best := toMatched(ex.OriginalText, *res.Best)
		it.MatchedExercise = &best
	}
	for _, c := range res.Alternatives {
		it.Alternatives = append(it.Alternatives, toMatched(ex.OriginalText, c))
	}
	return it
}

func toMatched(original string, c matcher.Candidate) MatchedExercise {
	return MatchedExercise{
		ExerciseID:            c.Exercise.ID,
		ExerciseName:          c.Exercise.Name,
		OriginalText:          original,
		Confidence:            c.Score,
		ConfidenceLevel:       c.Tier,
		PrimaryMuscleGroups:   nonNil(c.Exercise.PrimaryMuscleGroups),
		SecondaryMuscleGroups: nonNil(c.Exercise.SecondaryMuscleGroups),
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func outcomeFor(err error) string {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return metrics.OutcomeRejected
	case apperr.KindLLMService:
		return metrics.OutcomeLLMError
	}
	return metrics.OutcomeError
}
