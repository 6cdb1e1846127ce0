// Package extract turns free-form workout plan text into a structured plan
// using a text-completion model under a strict JSON contract.
package extract

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/meltforce/allworkouts/internal/apperr"
	"github.com/meltforce/allworkouts/internal/llm"
)

// Bounds on the accepted plan text, counted in characters.
const (
	MinTextLength = 10
	MaxTextLength = 50000
)

//go:embed prompt.md
var systemPrompt string

// ExtractedPlan is the structured result of one extraction.
type ExtractedPlan struct {
	Name        string              `json:"name"`
	Description *string             `json:"description"`
	Exercises   []ExtractedExercise `json:"exercises"`
}

// ExtractedExercise is one exercise line as understood by the model, with
// defaults applied.
type ExtractedExercise struct {
	OriginalText string  `json:"original_text"`
	Sets         int     `json:"sets"`
	RepsMin      int     `json:"reps_min"`
	RepsMax      int     `json:"reps_max"`
	RestSeconds  *int    `json:"rest_seconds"`
	Notes        *string `json:"notes"`
	Sequence     int     `json:"sequence"`
}

// Config holds the completion settings used for every extraction.
type Config struct {
	Provider    string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// Client extracts plans through a Completer.
type Client struct {
	completer llm.Completer
	cfg       Config
	log       *slog.Logger
}

// New creates an extraction client.
func New(c llm.Completer, cfg Config, log *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Client{completer: c, cfg: cfg, log: log}
}

// ValidateText checks the plan text bounds: at least MinTextLength characters
// after trimming and at most MaxTextLength characters as given.
func ValidateText(raw string) error {
	if n := utf8.RuneCountInString(strings.TrimSpace(raw)); n < MinTextLength {
		return apperr.Validation("text must be at least %d characters, got %d", MinTextLength, n)
	}
	if n := utf8.RuneCountInString(raw); n > MaxTextLength {
		return apperr.Validation("text must be at most %d characters, got %d", MaxTextLength, n)
	}
	return nil
}

// Extract validates raw, asks the model for a structured plan and parses
// the answer. The completion call is bounded by the configured timeout and
// is never retried.
func (c *Client) Extract(ctx context.Context, raw string) (*ExtractedPlan, error) {
	if err := ValidateText(raw); err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	start := time.Now()
	content, err := c.completer.Complete(callCtx, systemPrompt, userPrompt(raw), llm.Options{
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
		JSON:        true,
	})
	elapsed := time.Since(start)

	if err != nil {
		c.log.Error("plan extraction failed",
			"provider", c.cfg.Provider, "model", c.cfg.Model,
			"duration_ms", elapsed.Milliseconds(), "error", err)
		if ctx.Err() != nil {
			return nil, fmt.Errorf("extraction cancelled: %w", ctx.Err())
		}
		if isTimeout(err) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return nil, apperr.LLMTimeout(err, "AI service timed out after %s", c.cfg.Timeout)
		}
		return nil, apperr.LLMService(err, "AI service unavailable, try again")
	}

	plan, err := Parse(content)
	if err != nil {
		c.log.Error("plan extraction returned invalid output",
			"provider", c.cfg.Provider, "model", c.cfg.Model,
			"duration_ms", elapsed.Milliseconds(), "error", err)
		return nil, err
	}

	c.log.Info("plan extracted",
		"provider", c.cfg.Provider, "model", c.cfg.Model,
		"duration_ms", elapsed.Milliseconds(), "exercises", len(plan.Exercises))
	return plan, nil
}

func userPrompt(raw string) string {
	return "Parse this workout plan:\n\n" + raw
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
