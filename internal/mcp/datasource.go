package mcp

import (
	"context"

	"github.com/meltforce/allworkouts/internal/catalog"
	"github.com/meltforce/allworkouts/internal/importer"
	"github.com/meltforce/allworkouts/internal/matcher"
	"github.com/meltforce/allworkouts/internal/models"
)

// DataSource abstracts the import pipeline for MCP tools. Both LocalSource
// (in-process) and HTTPClient (remote via REST API) satisfy this interface.
type DataSource interface {
	ParsePlan(ctx context.Context, userID int, text string) (*importer.ParseResponse, error)
	MatchExercise(ctx context.Context, query string, topN int) (*importer.MatchResponse, error)
	QueryImportLogs(ctx context.Context, userID, limit int) ([]models.ImportLog, error)
	ListExercises(ctx context.Context) ([]models.Exercise, error)
}

// PlanImporter runs the text import pipeline.
type PlanImporter interface {
	Run(ctx context.Context, userID int, raw string) (*importer.Result, error)
}

// ImportLogQuerier lists a user's audit records.
type ImportLogQuerier interface {
	QueryImportLogs(ctx context.Context, userID, limit int) ([]models.ImportLog, error)
}

// LocalSource serves MCP tools from the in-process pipeline.
type LocalSource struct {
	importer PlanImporter
	matcher  *matcher.Matcher
	logs     ImportLogQuerier
	catalog  catalog.Accessor
}

// Compile-time check: LocalSource satisfies DataSource.
var _ DataSource = (*LocalSource)(nil)

// NewLocalSource creates a LocalSource.
func NewLocalSource(imp PlanImporter, m *matcher.Matcher, logs ImportLogQuerier, cat catalog.Accessor) *LocalSource {
	return &LocalSource{importer: imp, matcher: m, logs: logs, catalog: cat}
}

func (l *LocalSource) ParsePlan(ctx context.Context, userID int, text string) (*importer.ParseResponse, error) {
	res, err := l.importer.Run(ctx, userID, text)
	if err != nil {
		return nil, err
	}
	return importer.NewParseResponse(res), nil
}

func (l *LocalSource) MatchExercise(ctx context.Context, query string, topN int) (*importer.MatchResponse, error) {
	res, err := l.matcher.Match(ctx, query, topN)
	if err != nil {
		return nil, err
	}
	return importer.NewMatchResponse(query, res), nil
}

func (l *LocalSource) QueryImportLogs(ctx context.Context, userID, limit int) ([]models.ImportLog, error) {
	return l.logs.QueryImportLogs(ctx, userID, limit)
}

func (l *LocalSource) ListExercises(ctx context.Context) ([]models.Exercise, error) {
	snap, err := catalog.Load(ctx, l.catalog)
	if err != nil {
		return nil, err
	}
	return snap.Entries(), nil
}
