package mcp

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/meltforce/allworkouts/internal/apperr"
	"github.com/meltforce/allworkouts/internal/matcher"
	"github.com/meltforce/allworkouts/internal/models"
)

const (
	defaultImportLimit = 20
	maxImportLimit     = 100
	maxTopN            = 20
	previewRunes       = 80
)

// importSummary is the compact audit record returned to assistants.
type importSummary struct {
	ID               uuid.UUID               `json:"id"`
	CreatedAt        time.Time               `json:"created_at"`
	PlanID           *uuid.UUID              `json:"plan_id"`
	Consumed         bool                    `json:"consumed"`
	ConfidenceScores models.ConfidenceCounts `json:"confidence_scores"`
	Preview          string                  `json:"preview"`
}

func summarizeImports(logs []models.ImportLog) []importSummary {
	out := make([]importSummary, 0, len(logs))
	for _, l := range logs {
		out = append(out, importSummary{
			ID:               l.ID,
			CreatedAt:        l.CreatedAt,
			PlanID:           l.PlanID,
			Consumed:         l.Consumed(),
			ConfidenceScores: l.ConfidenceScores,
			Preview:          preview(l.RawText),
		})
	}
	return out
}

func preview(s string) string {
	if utf8.RuneCountInString(s) <= previewRunes {
		return s
	}
	return string([]rune(s)[:previewRunes]) + "…"
}

// toolError renders a pipeline failure. Classified errors carry a message
// meant for the caller; anything else is reported generically.
func toolError(prefix string, err error) *mcp.CallToolResult {
	if ae, ok := apperr.As(err); ok {
		return mcp.NewToolResultError(prefix + ": " + ae.Message)
	}
	return mcp.NewToolResultError(prefix + ": internal error")
}

// --- Tool definitions ---

var toolParseWorkoutPlan = mcp.NewTool("parse_workout_plan",
	mcp.WithDescription("Parse free-form workout plan text into exercises matched against the catalog. Each line gets a confidence tier (high/medium/low) or is left unmatched, with alternatives. Records an import that can later be turned into a plan."),
	mcp.WithString("text", mcp.Required(), mcp.Description("Plan text, 10 to 50000 characters (e.g. 'Bench Press 3x8-12, 90s rest')")),
)

var toolMatchExercise = mcp.NewTool("match_exercise",
	mcp.WithDescription("Fuzzy-match a single exercise name against the catalog. Returns the best match above the lowest confidence threshold and ranked alternatives."),
	mcp.WithString("query", mcp.Required(), mcp.Description("Exercise name as written (e.g. 'DB incline press')")),
	mcp.WithNumber("top_n", mcp.Description("Maximum number of candidates. Defaults to 5.")),
)

var toolListImportLogs = mcp.NewTool("list_import_logs",
	mcp.WithDescription("List recent plan imports, newest first, with confidence summaries and whether a plan was created from them."),
	mcp.WithNumber("limit", mcp.Description("Maximum number of imports. Defaults to 20.")),
)

// --- Tool handlers ---

func (h *handlers) parseWorkoutPlan(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError("text parameter is required"), nil
	}

	uid := UserIDFromContext(ctx)
	resp, err := h.ds.ParsePlan(ctx, uid, text)
	if err != nil {
		h.log.Error("mcp parse_workout_plan", "error", err)
		return toolError("parse failed", err), nil
	}

	result, err := mcp.NewToolResultJSON(resp)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) matchExercise(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query parameter is required"), nil
	}

	topN := req.GetInt("top_n", matcher.DefaultTopN)
	if topN <= 0 {
		return mcp.NewToolResultError("top_n must be positive"), nil
	}
	topN = min(topN, maxTopN)

	resp, err := h.ds.MatchExercise(ctx, query, topN)
	if err != nil {
		h.log.Error("mcp match_exercise", "error", err)
		return toolError("match failed", err), nil
	}

	result, err := mcp.NewToolResultJSON(resp)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) listImportLogs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", defaultImportLimit)
	if limit <= 0 {
		limit = defaultImportLimit
	}
	limit = min(limit, maxImportLimit)

	uid := UserIDFromContext(ctx)
	logs, err := h.ds.QueryImportLogs(ctx, uid, limit)
	if err != nil {
		h.log.Error("mcp list_import_logs", "error", err)
		return toolError("query failed", err), nil
	}

	result, err := mcp.NewToolResultJSON(summarizeImports(logs))
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}
