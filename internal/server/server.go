package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/meltforce/allworkouts/internal/catalog"
	"github.com/meltforce/allworkouts/internal/importer"
	"github.com/meltforce/allworkouts/internal/matcher"
	"github.com/meltforce/allworkouts/internal/metrics"
	"github.com/meltforce/allworkouts/internal/models"
	"github.com/meltforce/allworkouts/internal/storage"
)

// Store is the read side of persistence used by the handlers.
type Store interface {
	UserResolver
	Ping(ctx context.Context) error
	GetImportLog(ctx context.Context, id uuid.UUID, userID int) (models.ImportLog, error)
	QueryImportLogs(ctx context.Context, userID, limit int) ([]models.ImportLog, error)
	GetPlan(ctx context.Context, id uuid.UUID, userID int) (models.Plan, error)
	GetImportStats(ctx context.Context, userID int) (*storage.ImportStats, error)
}

// PlanImporter runs the text import pipeline.
type PlanImporter interface {
	Run(ctx context.Context, userID int, raw string) (*importer.Result, error)
}

// PlanMaterializer turns reviewed imports into plans.
type PlanMaterializer interface {
	Materialize(ctx context.Context, userID int, req importer.MaterializeRequest) (*importer.PlanRef, error)
}

// Deps are the collaborators a Server is built from. Metrics, MCP and WhoIs
// are optional.
type Deps struct {
	Store        Store
	Catalog      catalog.Accessor
	Matcher      *matcher.Matcher
	Importer     PlanImporter
	Materializer PlanMaterializer
	Metrics      *metrics.Metrics
	MCP          http.Handler
	WhoIs        WhoIsClient
	APIKey       string
	TopN         int
	Log          *slog.Logger
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	store        Store
	catalog      catalog.Accessor
	matcher      *matcher.Matcher
	importer     PlanImporter
	materializer PlanMaterializer
	metrics      *metrics.Metrics
	mcp          http.Handler
	whois        WhoIsClient
	apiKey       string
	topN         int
	log          *slog.Logger
	router       chi.Router
}

// New creates a new Server with all routes configured.
func New(d Deps) *Server {
	topN := d.TopN
	if topN <= 0 {
		topN = matcher.DefaultTopN
	}
	s := &Server{
		store:        d.Store,
		catalog:      d.Catalog,
		matcher:      d.Matcher,
		importer:     d.Importer,
		materializer: d.Materializer,
		metrics:      d.Metrics,
		mcp:          d.MCP,
		whois:        d.WhoIs,
		apiKey:       d.APIKey,
		topN:         topN,
		log:          d.Log,
		router:       chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log, s.metrics))
	s.router.Use(CORS)

	s.router.Get("/healthz", s.handleHealthz)
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler())
	}

	s.router.Group(func(r chi.Router) {
		// Tailscale identity when running on the tailnet, otherwise the dev
		// user guarded by the API key.
		if s.whois != nil {
			r.Use(TailscaleIdentity(s.whois, s.store, s.log))
		} else {
			r.Use(DevIdentity)
			if s.apiKey != "" {
				r.Use(APIKeyAuth(s.apiKey))
			}
		}

		r.Route("/api/v1", func(r chi.Router) {
			r.Get("/me", s.handleMe)
			r.Get("/stats", s.handleStats)

			r.Post("/workout-plans/parse", s.handleParse)
			r.Post("/workout-plans/from-parsed", s.handleFromParsed)
			r.Get("/workout-plans/imports", s.handleImportLogs)
			r.Get("/workout-plans/imports/{id}", s.handleGetImportLog)
			r.Get("/workout-plans/{id}", s.handleGetPlan)

			r.Get("/exercises", s.handleExercises)
			r.Get("/exercises/match", s.handleMatchExercise)
			r.Get("/exercises/{id}", s.handleGetExercise)
		})

		if s.mcp != nil {
			r.Mount("/mcp", s.mcp)
		}
	})
}
