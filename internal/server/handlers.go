package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/meltforce/allworkouts/internal/apperr"
	"github.com/meltforce/allworkouts/internal/catalog"
	"github.com/meltforce/allworkouts/internal/importer"
	"github.com/meltforce/allworkouts/internal/storage"
)

// maxBodyBytes bounds request bodies; plan text itself is capped lower.
const maxBodyBytes = 1 << 20

const (
	defaultImportLogLimit = 50
	maxImportLogLimit     = 200
	maxMatchTopN          = 20
)

type parseRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	var req parseRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err, http.StatusUnprocessableEntity)
		return
	}

	res, err := s.importer.Run(r.Context(), userIDFromContext(r), req.Text)
	if err != nil {
		s.writeError(w, r, err, http.StatusUnprocessableEntity)
		return
	}
	writeSuccess(w, http.StatusOK, importer.NewParseResponse(res))
}

func (s *Server) handleFromParsed(w http.ResponseWriter, r *http.Request) {
	var req importer.MaterializeRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err, http.StatusBadRequest)
		return
	}

	ref, err := s.materializer.Materialize(r.Context(), userIDFromContext(r), req)
	if err != nil {
		s.writeError(w, r, err, http.StatusBadRequest)
		return
	}
	writeSuccess(w, http.StatusCreated, ref)
}

func (s *Server) handleImportLogs(w http.ResponseWriter, r *http.Request) {
	limit := defaultImportLogLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = min(parsed, maxImportLogLimit)
		}
	}

	logs, err := s.store.QueryImportLogs(r.Context(), userIDFromContext(r), limit)
	if err != nil {
		s.writeError(w, r, err, http.StatusBadRequest)
		return
	}
	writeSuccess(w, http.StatusOK, logs)
}

func (s *Server) handleGetImportLog(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, apperr.Validation("invalid import log ID"), http.StatusBadRequest)
		return
	}

	rec, err := s.store.GetImportLog(r.Context(), id, userIDFromContext(r))
	if errors.Is(err, storage.ErrNotFound) {
		err = apperr.NotFound(apperr.CodeImportLogNotFound, "import log not found")
	}
	if err != nil {
		s.writeError(w, r, err, http.StatusBadRequest)
		return
	}
	writeSuccess(w, http.StatusOK, rec)
}

func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, apperr.Validation("invalid plan ID"), http.StatusBadRequest)
		return
	}

	plan, err := s.store.GetPlan(r.Context(), id, userIDFromContext(r))
	if errors.Is(err, storage.ErrNotFound) {
		err = apperr.NotFound(apperr.CodePlanNotFound, "workout plan not found")
	}
	if err != nil {
		s.writeError(w, r, err, http.StatusBadRequest)
		return
	}
	writeSuccess(w, http.StatusOK, plan)
}

func (s *Server) handleExercises(w http.ResponseWriter, r *http.Request) {
	snap, err := catalog.Load(r.Context(), s.catalog)
	if err != nil {
		s.writeError(w, r, err, http.StatusBadRequest)
		return
	}

	if muscle := r.URL.Query().Get("muscle"); muscle != "" {
		writeSuccess(w, http.StatusOK, snap.FilterMuscle(muscle))
		return
	}
	writeSuccess(w, http.StatusOK, snap.Entries())
}

func (s *Server) handleGetExercise(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, apperr.Validation("invalid exercise ID"), http.StatusBadRequest)
		return
	}

	snap, err := catalog.Load(r.Context(), s.catalog)
	if err != nil {
		s.writeError(w, r, err, http.StatusBadRequest)
		return
	}
	e, ok := snap.ByID(id)
	if !ok {
		s.writeError(w, r, apperr.NotFound(apperr.CodeExerciseNotFound, "exercise not found"), http.StatusBadRequest)
		return
	}
	writeSuccess(w, http.StatusOK, e)
}

func (s *Server) handleMatchExercise(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		s.writeError(w, r, apperr.Validation("q parameter required"), http.StatusBadRequest)
		return
	}
	topN := s.topN
	if v := r.URL.Query().Get("top_n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			s.writeError(w, r, apperr.Validation("top_n must be a positive integer"), http.StatusBadRequest)
			return
		}
		topN = min(parsed, maxMatchTopN)
	}

	res, err := s.matcher.Match(r.Context(), q, topN)
	if err != nil {
		s.writeError(w, r, err, http.StatusBadRequest)
		return
	}
	writeSuccess(w, http.StatusOK, importer.NewMatchResponse(q, res))
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, userInfoFromContext(r))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetImportStats(r.Context(), userIDFromContext(r))
	if err != nil {
		s.writeError(w, r, err, http.StatusBadRequest)
		return
	}
	writeSuccess(w, http.StatusOK, stats)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.log.Warn("health check failed", "error", err)
		writeFailure(w, http.StatusServiceUnavailable, "UNAVAILABLE", "database unreachable")
		return
	}
	writeSuccess(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decodeBody reads a JSON request body into v, reporting malformed input as
// a validation error.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.Validation("invalid JSON: %v", err)
	}
	return nil
}
