package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ParseSummary mirrors the parse response fields the uploader reports on,
// without importing the server-side packages.
type ParseSummary struct {
	ParsedPlan struct {
		Name        string `json:"name"`
		ImportLogID string `json:"import_log_id"`
	} `json:"parsed_plan"`
	TotalExercises        int `json:"total_exercises"`
	HighConfidenceCount   int `json:"high_confidence_count"`
	MediumConfidenceCount int `json:"medium_confidence_count"`
	LowConfidenceCount    int `json:"low_confidence_count"`
	UnmatchedCount        int `json:"unmatched_count"`
}

// RejectedError is returned when the server refuses a plan as invalid input.
// Rejected files are not retried.
type RejectedError struct {
	Code    string
	Message string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("rejected (%s): %s", e.Code, e.Message)
}

// Client sends plan text to the AllWorkouts server over HTTP.
type Client struct {
	serverURL  string
	apiKey     string
	httpClient *http.Client
	backoff    time.Duration
}

// NewClient creates a new HTTP client for the AllWorkouts server.
func NewClient(serverURL, apiKey string) *Client {
	return &Client{
		serverURL: serverURL,
		apiKey:    apiKey,
		httpClient: &http.Client{
			Timeout: 90 * time.Second,
		},
		backoff: time.Second,
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// SubmitPlan POSTs plan text to the parse endpoint. Transport failures and
// gateway errors are retried up to 3 times with exponential backoff; any
// response from the API itself is final, since each accepted request
// records an import.
func (c *Client) SubmitPlan(ctx context.Context, text string) (*ParseSummary, error) {
	data, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	var lastErr error
	for attempt := range 3 {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.backoff * time.Duration(1<<uint(attempt-1))):
			}
		}

		summary, retry, err := c.post(ctx, data)
		if err == nil {
			return summary, nil
		}
		if !retry {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("after 3 attempts: %w", lastErr)
}

func (c *Client) post(ctx context.Context, data []byte) (*ParseSummary, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.serverURL+"/api/v1/workout-plans/parse", bytes.NewReader(data))
	if err != nil {
		return nil, false, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, !errors.Is(err, context.Canceled), err
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return nil, true, fmt.Errorf("parse failed (status %d): %s", resp.StatusCode, body)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, false, fmt.Errorf("parse failed (status %d): %s", resp.StatusCode, body)
	}
	if !env.Success {
		code, msg := "", string(body)
		if env.Error != nil {
			code, msg = env.Error.Code, env.Error.Message
		}
		if resp.StatusCode == http.StatusUnprocessableEntity {
			return nil, false, &RejectedError{Code: code, Message: msg}
		}
		return nil, false, fmt.Errorf("parse failed (status %d, %s): %s", resp.StatusCode, code, msg)
	}

	var summary ParseSummary
	if err := json.Unmarshal(env.Data, &summary); err != nil {
		return nil, false, fmt.Errorf("decoding parse response: %w", err)
	}
	return &summary, false, nil
}
