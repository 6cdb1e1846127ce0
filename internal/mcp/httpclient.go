package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/meltforce/allworkouts/internal/apperr"
	"github.com/meltforce/allworkouts/internal/importer"
	"github.com/meltforce/allworkouts/internal/models"
)

// HTTPClient implements DataSource by calling the AllWorkouts REST API.
// Used for remote MCP mode where the binary runs locally (stdio) but the
// pipeline runs on the remote server (accessed over Tailscale).
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Compile-time check: HTTPClient satisfies DataSource.
var _ DataSource = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient targeting the given base URL. apiKey
// may be empty when the server resolves identity from the tailnet.
func NewHTTPClient(baseURL, apiKey string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		// Parsing waits on the completion provider.
		httpClient: &http.Client{Timeout: 90 * time.Second},
	}
}

// envelope mirrors the server's response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *HTTPClient) do(ctx context.Context, method, path string, params url.Values, body any, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("httpclient: encode request: %w", err)
		}
		rdr = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return fmt.Errorf("httpclient: create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("httpclient: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("httpclient: read body: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("httpclient: %s returned %d: %s", path, resp.StatusCode, raw)
	}
	if !env.Success {
		if env.Error == nil {
			return fmt.Errorf("httpclient: %s returned %d", path, resp.StatusCode)
		}
		return remoteError(resp.StatusCode, env.Error.Code, env.Error.Message)
	}

	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("httpclient: decode %s: %w", path, err)
	}
	return nil
}

// remoteError rebuilds a classified error from an API failure.
func remoteError(status int, code, message string) error {
	kind := apperr.KindInternal
	switch {
	case status == http.StatusNotFound:
		kind = apperr.KindNotFound
	case status == http.StatusConflict:
		kind = apperr.KindConflict
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		kind = apperr.KindValidation
	case code == apperr.CodeLLMService, code == apperr.CodeLLMTimeout:
		kind = apperr.KindLLMService
	}
	return &apperr.Error{Kind: kind, Code: code, Message: message, Timeout: code == apperr.CodeLLMTimeout}
}

func (c *HTTPClient) ParsePlan(ctx context.Context, _ int, text string) (*importer.ParseResponse, error) {
	var resp importer.ParseResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/workout-plans/parse", nil, map[string]string{"text": text}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) MatchExercise(ctx context.Context, query string, topN int) (*importer.MatchResponse, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("top_n", strconv.Itoa(topN))

	var resp importer.MatchResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/exercises/match", params, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) QueryImportLogs(ctx context.Context, _ int, limit int) ([]models.ImportLog, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))

	var logs []models.ImportLog
	if err := c.do(ctx, http.MethodGet, "/api/v1/workout-plans/imports", params, nil, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}

func (c *HTTPClient) ListExercises(ctx context.Context) ([]models.Exercise, error) {
	var exercises []models.Exercise
	if err := c.do(ctx, http.MethodGet, "/api/v1/exercises", nil, nil, &exercises); err != nil {
		return nil, err
	}
	return exercises, nil
}
