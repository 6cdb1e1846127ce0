package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/meltforce/allworkouts/internal/apperr"
	"github.com/meltforce/allworkouts/internal/importer"
	"github.com/meltforce/allworkouts/internal/matcher"
	"github.com/meltforce/allworkouts/internal/metrics"
	"github.com/meltforce/allworkouts/internal/models"
	"github.com/meltforce/allworkouts/internal/storage"
)

const testAPIKey = "test-key"

type staticCatalog []models.Exercise

func (c staticCatalog) ListAll(ctx context.Context) ([]models.Exercise, error) {
	return c, nil
}

func testCatalog() staticCatalog {
	return staticCatalog{
		{ID: uuid.New(), Name: "Barbell Bench Press", PrimaryMuscleGroups: []string{models.MuscleChest}},
		{ID: uuid.New(), Name: "Barbell Squat", PrimaryMuscleGroups: []string{models.MuscleQuadriceps}},
		{ID: uuid.New(), Name: "Lat Pulldown", PrimaryMuscleGroups: []string{models.MuscleBack}},
	}
}

type fakeStore struct {
	logs    map[uuid.UUID]models.ImportLog
	plans   map[uuid.UUID]models.Plan
	pingErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{logs: map[uuid.UUID]models.ImportLog{}, plans: map[uuid.UUID]models.Plan{}}
}

func (f *fakeStore) GetOrCreateUser(ctx context.Context, login, displayName string) (int, error) {
	return 1, nil
}

func (f *fakeStore) Ping(ctx context.Context) error { return f.pingErr }

func (f *fakeStore) GetImportLog(ctx context.Context, id uuid.UUID, userID int) (models.ImportLog, error) {
	rec, ok := f.logs[id]
	if !ok || rec.UserID != userID {
		return models.ImportLog{}, storage.ErrNotFound
	}
	return rec, nil
}

func (f *fakeStore) QueryImportLogs(ctx context.Context, userID, limit int) ([]models.ImportLog, error) {
	out := []models.ImportLog{}
	for _, rec := range f.logs {
		if rec.UserID == userID && len(out) < limit {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeStore) GetImportStats(ctx context.Context, userID int) (*storage.ImportStats, error) {
	stats := &storage.ImportStats{}
	for _, rec := range f.logs {
		if rec.UserID != userID {
			continue
		}
		stats.TotalImports++
		if rec.PlanID != nil {
			stats.ConsumedImports++
		}
	}
	return stats, nil
}

func (f *fakeStore) GetPlan(ctx context.Context, id uuid.UUID, userID int) (models.Plan, error) {
	p, ok := f.plans[id]
	if !ok || p.UserID != userID {
		return models.Plan{}, storage.ErrNotFound
	}
	return p, nil
}

type fakeImporter struct {
	res     *importer.Result
	err     error
	gotUser int
	gotText string
}

func (f *fakeImporter) Run(ctx context.Context, userID int, raw string) (*importer.Result, error) {
	f.gotUser, f.gotText = userID, raw
	return f.res, f.err
}

type fakeMaterializer struct {
	ref *importer.PlanRef
	err error
	got importer.MaterializeRequest
}

func (f *fakeMaterializer) Materialize(ctx context.Context, userID int, req importer.MaterializeRequest) (*importer.PlanRef, error) {
	f.got = req
	return f.ref, f.err
}

type testEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *errorBody      `json:"error"`
}

type fixture struct {
	store *fakeStore
	imp   *fakeImporter
	mat   *fakeMaterializer
	srv   *Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cat := testCatalog()
	met, err := metrics.New()
	if err != nil {
		t.Fatal(err)
	}
	f := &fixture{store: newFakeStore(), imp: &fakeImporter{}, mat: &fakeMaterializer{}}
	f.srv = New(Deps{
		Store:        f.store,
		Catalog:      cat,
		Matcher:      matcher.New(cat, matcher.DefaultThresholds()),
		Importer:     f.imp,
		Materializer: f.mat,
		Metrics:      met,
		APIKey:       testAPIKey,
		Log:          discardLogger(),
	})
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, testEnvelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("X-API-Key", testAPIKey)
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)

	var env testEnvelope
	if rec.Header().Get("Content-Type") == "application/json" {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode envelope: %v (%s)", err, rec.Body.String())
		}
	}
	return rec, env
}

// TestHandleMeDefault verifies the /api/v1/me endpoint returns the dev user
// identity when no Tailscale middleware is active.
func TestHandleMeDefault(t *testing.T) {
	f := newFixture(t)
	rec, env := f.do(t, http.MethodGet, "/api/v1/me", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var info UserInfo
	if err := json.Unmarshal(env.Data, &info); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if info.Login != "local" {
		t.Errorf("login = %q, want %q", info.Login, "local")
	}
	if info.DisplayName != "Local Dev User" {
		t.Errorf("display_name = %q, want %q", info.DisplayName, "Local Dev User")
	}
}

// TestRequiresAPIKey verifies API routes reject requests without a key.
func TestRequiresAPIKey(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/exercises", nil)
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

// TestParseSuccess verifies the parse response shape and tier counts.
func TestParseSuccess(t *testing.T) {
	f := newFixture(t)
	level := models.ConfidenceHigh
	f.imp.res = &importer.Result{
		ImportLogID: uuid.New(),
		Name:        "Push Day",
		RawText:     "Bench Press 3x8",
		Exercises: []importer.ParsedExerciseItem{{
			MatchedExercise: &importer.MatchedExercise{ExerciseName: "Barbell Bench Press", ConfidenceLevel: level},
			OriginalText:    "Bench Press",
			Sets:            3, RepsMin: 8, RepsMax: 8,
			Alternatives: []importer.MatchedExercise{},
		}},
		Counts: models.ConfidenceCounts{High: 1},
	}

	rec, env := f.do(t, http.MethodPost, "/api/v1/workout-plans/parse", map[string]string{"text": "Bench Press 3x8"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", rec.Code, rec.Body.String())
	}
	if !env.Success || env.Error != nil {
		t.Fatalf("envelope = %+v, want success", env)
	}
	var resp importer.ParseResponse
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatal(err)
	}
	if resp.TotalExercises != 1 || resp.HighConfidenceCount != 1 {
		t.Errorf("counts = %+v, want 1 high of 1", resp)
	}
	if resp.ParsedPlan.ImportLogID != f.imp.res.ImportLogID {
		t.Errorf("import_log_id = %s, want %s", resp.ParsedPlan.ImportLogID, f.imp.res.ImportLogID)
	}
	if f.imp.gotText != "Bench Press 3x8" || f.imp.gotUser != 1 {
		t.Errorf("importer got (%d, %q)", f.imp.gotUser, f.imp.gotText)
	}
}

// TestParseErrorStatus verifies each failure kind maps to its status and code.
func TestParseErrorStatus(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", apperr.Validation("text too short"), http.StatusUnprocessableEntity, apperr.CodeValidation},
		{"llm", apperr.LLMService(errors.New("502"), "AI service unavailable, try again"), http.StatusInternalServerError, apperr.CodeLLMService},
		{"timeout", apperr.LLMTimeout(context.DeadlineExceeded, "AI service timed out"), http.StatusInternalServerError, apperr.CodeLLMTimeout},
		{"internal", errors.New("pool closed"), http.StatusInternalServerError, apperr.CodeInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.imp.err = tc.err

			rec, env := f.do(t, http.MethodPost, "/api/v1/workout-plans/parse", map[string]string{"text": "whatever"})
			if rec.Code != tc.status {
				t.Errorf("status = %d, want %d", rec.Code, tc.status)
			}
			if env.Success || env.Error == nil {
				t.Fatalf("envelope = %+v, want failure", env)
			}
			if env.Error.Code != tc.code {
				t.Errorf("code = %q, want %q", env.Error.Code, tc.code)
			}
		})
	}
}

// TestParseHidesInternalErrors verifies unclassified error text stays server-side.
func TestParseHidesInternalErrors(t *testing.T) {
	f := newFixture(t)
	f.imp.err = errors.New("dial tcp 10.0.0.5:5432: connection refused")

	_, env := f.do(t, http.MethodPost, "/api/v1/workout-plans/parse", map[string]string{"text": "whatever"})
	if env.Error == nil || env.Error.Message != "internal server error" {
		t.Errorf("error = %+v, want generic message", env.Error)
	}
}

// TestParseInvalidJSON verifies malformed bodies are a 422 validation error.
func TestParseInvalidJSON(t *testing.T) {
	f := newFixture(t)
	rec, env := f.do(t, http.MethodPost, "/api/v1/workout-plans/parse", "{not json")

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
	if env.Error == nil || env.Error.Code != apperr.CodeValidation {
		t.Errorf("error = %+v, want VALIDATION_ERROR", env.Error)
	}
}

// TestFromParsedCreated verifies a successful materialization returns 201.
func TestFromParsedCreated(t *testing.T) {
	f := newFixture(t)
	f.mat.ref = &importer.PlanRef{ID: uuid.New(), Name: "Push Day", CreatedAt: time.Now().UTC()}
	logID := uuid.New()

	rec, env := f.do(t, http.MethodPost, "/api/v1/workout-plans/from-parsed", importer.MaterializeRequest{
		ImportLogID: logID,
		Name:        "Push Day",
		Exercises:   []importer.PlanExerciseInput{{ExerciseID: uuid.New(), Sets: 3, RepsMin: 8, RepsMax: 8}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (%s)", rec.Code, rec.Body.String())
	}
	var ref importer.PlanRef
	if err := json.Unmarshal(env.Data, &ref); err != nil {
		t.Fatal(err)
	}
	if ref.ID != f.mat.ref.ID {
		t.Errorf("id = %s, want %s", ref.ID, f.mat.ref.ID)
	}
	if f.mat.got.ImportLogID != logID {
		t.Errorf("materializer got import_log_id %s, want %s", f.mat.got.ImportLogID, logID)
	}
}

// TestFromParsedErrorStatus verifies precondition failures map to 404, 409 and 400.
func TestFromParsedErrorStatus(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", apperr.NotFound(apperr.CodeImportLogNotFound, "import log not found"), http.StatusNotFound, apperr.CodeImportLogNotFound},
		{"consumed", apperr.Conflict(apperr.CodeImportLogUsed, "import log already used"), http.StatusConflict, apperr.CodeImportLogUsed},
		{"validation", apperr.Validation("unknown exercise ids").WithDetail("missing_exercise_ids", []string{"x"}), http.StatusBadRequest, apperr.CodeValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.mat.err = tc.err

			rec, env := f.do(t, http.MethodPost, "/api/v1/workout-plans/from-parsed", importer.MaterializeRequest{ImportLogID: uuid.New()})
			if rec.Code != tc.status {
				t.Errorf("status = %d, want %d", rec.Code, tc.status)
			}
			if env.Error == nil || env.Error.Code != tc.code {
				t.Fatalf("error = %+v, want code %s", env.Error, tc.code)
			}
		})
	}
}

// TestFromParsedValidationDetails verifies the unknown ids reach the client.
func TestFromParsedValidationDetails(t *testing.T) {
	f := newFixture(t)
	f.mat.err = apperr.Validation("unknown exercise ids").WithDetail("missing_exercise_ids", []string{"abc"})

	_, env := f.do(t, http.MethodPost, "/api/v1/workout-plans/from-parsed", importer.MaterializeRequest{ImportLogID: uuid.New()})
	if env.Error == nil {
		t.Fatal("expected error body")
	}
	ids, ok := env.Error.Details["missing_exercise_ids"].([]any)
	if !ok || len(ids) != 1 || ids[0] != "abc" {
		t.Errorf("details = %v, want [abc]", env.Error.Details)
	}
}

// TestGetImportLogScopedToUser verifies another user's record reads as missing.
func TestGetImportLogScopedToUser(t *testing.T) {
	f := newFixture(t)
	mine := models.ImportLog{ID: uuid.New(), UserID: 1, RawText: "Squat 3x5", ParsedExercises: json.RawMessage(`{}`)}
	theirs := models.ImportLog{ID: uuid.New(), UserID: 2, RawText: "Row 3x8", ParsedExercises: json.RawMessage(`{}`)}
	f.store.logs[mine.ID] = mine
	f.store.logs[theirs.ID] = theirs

	rec, _ := f.do(t, http.MethodGet, "/api/v1/workout-plans/imports/"+mine.ID.String(), nil)
	if rec.Code != http.StatusOK {
		t.Errorf("own record status = %d, want 200", rec.Code)
	}

	rec, env := f.do(t, http.MethodGet, "/api/v1/workout-plans/imports/"+theirs.ID.String(), nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("foreign record status = %d, want 404", rec.Code)
	}
	if env.Error == nil || env.Error.Code != apperr.CodeImportLogNotFound {
		t.Errorf("error = %+v, want IMPORT_LOG_NOT_FOUND", env.Error)
	}

	rec, _ = f.do(t, http.MethodGet, "/api/v1/workout-plans/imports/not-a-uuid", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid id status = %d, want 400", rec.Code)
	}
}

// TestListImportLogs verifies only the caller's records are listed.
func TestListImportLogs(t *testing.T) {
	f := newFixture(t)
	for i := range 3 {
		rec := models.ImportLog{ID: uuid.New(), UserID: 1 + i%2, ParsedExercises: json.RawMessage(`{}`)}
		f.store.logs[rec.ID] = rec
	}

	rec, env := f.do(t, http.MethodGet, "/api/v1/workout-plans/imports?limit=10", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var logs []models.ImportLog
	if err := json.Unmarshal(env.Data, &logs); err != nil {
		t.Fatal(err)
	}
	if len(logs) != 2 {
		t.Errorf("got %d records, want 2", len(logs))
	}
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	planID := uuid.New()
	consumed := models.ImportLog{ID: uuid.New(), UserID: 1, PlanID: &planID}
	pending := models.ImportLog{ID: uuid.New(), UserID: 1}
	other := models.ImportLog{ID: uuid.New(), UserID: 2}
	for _, rec := range []models.ImportLog{consumed, pending, other} {
		f.store.logs[rec.ID] = rec
	}

	rec, env := f.do(t, http.MethodGet, "/api/v1/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var stats storage.ImportStats
	if err := json.Unmarshal(env.Data, &stats); err != nil {
		t.Fatal(err)
	}
	if stats.TotalImports != 2 || stats.ConsumedImports != 1 {
		t.Errorf("stats = %+v, want 2 imports with 1 consumed", stats)
	}
}

// TestGetPlanNotFound verifies a missing plan maps to PLAN_NOT_FOUND.
func TestGetPlanNotFound(t *testing.T) {
	f := newFixture(t)
	rec, env := f.do(t, http.MethodGet, "/api/v1/workout-plans/"+uuid.New().String(), nil)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if env.Error == nil || env.Error.Code != apperr.CodePlanNotFound {
		t.Errorf("error = %+v, want PLAN_NOT_FOUND", env.Error)
	}
}

// TestExercisesMuscleFilter verifies the catalog listing and its muscle filter.
func TestExercisesMuscleFilter(t *testing.T) {
	f := newFixture(t)

	_, env := f.do(t, http.MethodGet, "/api/v1/exercises", nil)
	var all []models.Exercise
	if err := json.Unmarshal(env.Data, &all); err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("got %d exercises, want 3", len(all))
	}

	_, env = f.do(t, http.MethodGet, "/api/v1/exercises?muscle=pecs", nil)
	var chest []models.Exercise
	if err := json.Unmarshal(env.Data, &chest); err != nil {
		t.Fatal(err)
	}
	if len(chest) != 1 || chest[0].Name != "Barbell Bench Press" {
		t.Errorf("chest filter = %v, want bench press only", chest)
	}
}

// TestGetExercise verifies lookup of a single catalog entry by id.
func TestGetExercise(t *testing.T) {
	f := newFixture(t)
	squat := testCatalog()[1]
	f.srv = New(Deps{
		Store:    f.store,
		Catalog:  staticCatalog{squat},
		Matcher:  matcher.New(staticCatalog{squat}, matcher.DefaultThresholds()),
		Importer: f.imp,
		APIKey:   testAPIKey,
		Log:      discardLogger(),
	})

	rec, env := f.do(t, http.MethodGet, "/api/v1/exercises/"+squat.ID.String(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got models.Exercise
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatal(err)
	}
	if got.ID != squat.ID || got.Name != "Barbell Squat" {
		t.Errorf("exercise = %+v", got)
	}

	rec, env = f.do(t, http.MethodGet, "/api/v1/exercises/"+uuid.New().String(), nil)
	if rec.Code != http.StatusNotFound || env.Error == nil || env.Error.Code != apperr.CodeExerciseNotFound {
		t.Errorf("missing exercise: status %d, error %+v", rec.Code, env.Error)
	}

	rec, _ = f.do(t, http.MethodGet, "/api/v1/exercises/not-a-uuid", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid id status = %d, want 400", rec.Code)
	}
}

// TestMatchExercise verifies the matcher endpoint and its query validation.
func TestMatchExercise(t *testing.T) {
	f := newFixture(t)

	rec, env := f.do(t, http.MethodGet, "/api/v1/exercises/match?q=bench+press&top_n=2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp importer.MatchResponse
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Best == nil || resp.Best.ExerciseName != "Barbell Bench Press" {
		t.Errorf("best = %+v, want Barbell Bench Press", resp.Best)
	}

	for _, path := range []string{"/api/v1/exercises/match", "/api/v1/exercises/match?q=row&top_n=0"} {
		rec, _ := f.do(t, http.MethodGet, path, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s status = %d, want 400", path, rec.Code)
		}
	}
}

// TestHealthz verifies the health check reflects database reachability.
func TestHealthz(t *testing.T) {
	f := newFixture(t)
	rec, _ := f.do(t, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}

	f.store.pingErr = errors.New("down")
	rec, _ = f.do(t, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

// TestMetricsEndpoint verifies request counters are exposed.
func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodGet, "/api/v1/exercises", nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte(`route="/api/v1/exercises"`)) {
		t.Errorf("metrics missing exercises route:\n%s", rec.Body.String())
	}
}
