package mcp

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type contextKey int

const userIDKey contextKey = iota

// UserIDFromContext extracts the user ID injected by the transport layer.
func UserIDFromContext(ctx context.Context) int {
	if id, ok := ctx.Value(userIDKey).(int); ok {
		return id
	}
	return 1
}

// WithUserID returns a context with the given user ID.
func WithUserID(ctx context.Context, userID int) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// New creates an MCP server with all tools and resources registered.
func New(ds DataSource, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("AllWorkouts", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("AllWorkouts plan importer. Parse free-form workout plan text into catalog exercises, look up exercise matches, and review past imports. All data is scoped to the authenticated user."),
	)

	h := &handlers{ds: ds, log: log}

	s.AddTools(
		server.ServerTool{Tool: toolParseWorkoutPlan, Handler: h.parseWorkoutPlan},
		server.ServerTool{Tool: toolMatchExercise, Handler: h.matchExercise},
		server.ServerTool{Tool: toolListImportLogs, Handler: h.listImportLogs},
	)

	s.AddResources(
		server.ServerResource{Resource: resExerciseCatalog, Handler: h.exerciseCatalog},
		server.ServerResource{Resource: resRecentImports, Handler: h.recentImports},
	)

	return s
}

// NewHTTPHandler serves s over streamable HTTP. userID resolves the caller
// from the request after the host's identity middleware has run.
func NewHTTPHandler(s *server.MCPServer, userID func(*http.Request) int) http.Handler {
	return server.NewStreamableHTTPServer(s,
		server.WithStateLess(true),
		server.WithHTTPContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			return WithUserID(ctx, userID(r))
		}),
	)
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	ds  DataSource
	log *slog.Logger
}

// --- Resource definitions ---

var resExerciseCatalog = mcp.NewResource(
	"allworkouts://exercise_catalog",
	"Exercise Catalog",
	mcp.WithResourceDescription("All catalog exercises with muscle groups and default sets, reps and rest"),
	mcp.WithMIMEType("application/json"),
)

var resRecentImports = mcp.NewResource(
	"allworkouts://recent_imports",
	"Recent Imports",
	mcp.WithResourceDescription("The ten most recent plan imports with their confidence summaries"),
	mcp.WithMIMEType("application/json"),
)
