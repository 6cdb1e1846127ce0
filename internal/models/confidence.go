package models

import (
	"fmt"
	"strings"
)

// ConfidenceLevel is the tier assigned to a fuzzy match.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

// ParseConfidenceLevel parses a tier name case-insensitively. An empty string
// yields ConfidenceMedium.
func ParseConfidenceLevel(s string) (ConfidenceLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return ConfidenceMedium, nil
	case "high":
		return ConfidenceHigh, nil
	case "medium":
		return ConfidenceMedium, nil
	case "low":
		return ConfidenceLow, nil
	}
	return "", fmt.Errorf("invalid confidence level %q", s)
}

// ConfidenceCounts tallies the tiers of one import. It is persisted as the
// audit record's confidence_scores JSON.
type ConfidenceCounts struct {
	High      int `json:"high_confidence"`
	Medium    int `json:"medium_confidence"`
	Low       int `json:"low_confidence"`
	Unmatched int `json:"unmatched"`
}

// Add increments the counter for level. A nil level counts as unmatched.
func (c *ConfidenceCounts) Add(level *ConfidenceLevel) {
	if level == nil {
		c.Unmatched++
		return
	}
	switch *level {
	case ConfidenceHigh:
		c.High++
	case ConfidenceMedium:
		c.Medium++
	case ConfidenceLow:
		c.Low++
	}
}

// Total returns the number of items counted.
func (c ConfidenceCounts) Total() int {
	return c.High + c.Medium + c.Low + c.Unmatched
}
