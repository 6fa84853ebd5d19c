package services

import (
	"errors"
	"fmt"
	"strings"
)

// Confidence is the tier a similarity score falls into.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

const (
	HighConfidenceThreshold   = 0.85
	MediumConfidenceThreshold = 0.75
	LowConfidenceThreshold    = 0.65
)

var ErrInvalidConfidence = errors.New("confidence must be low, medium or high")

// TierFor buckets a similarity score. ok is false below the low floor.
func TierFor(score float64) (Confidence, bool) {
	switch {
	case score >= HighConfidenceThreshold:
		return ConfidenceHigh, true
	case score >= MediumConfidenceThreshold:
		return ConfidenceMedium, true
	case score >= LowConfidenceThreshold:
		return ConfidenceLow, true
	}
	return "", false
}

// ParseConfidence reads a tier name, case-insensitively.
func ParseConfidence(s string) (Confidence, error) {
	c := Confidence(strings.ToLower(strings.TrimSpace(s)))
	if c.rank() == 0 {
		return "", fmt.Errorf("%w: got %q", ErrInvalidConfidence, s)
	}
	return c, nil
}

func (c Confidence) rank() int {
	switch c {
	case ConfidenceLow:
		return 1
	case ConfidenceMedium:
		return 2
	case ConfidenceHigh:
		return 3
	}
	return 0
}

// Accepts reports whether a match of the given tier passes c used as a
// minimum: low takes every tier, medium takes medium and high, high only high.
func (c Confidence) Accepts(tier Confidence) bool {
	return tier.rank() > 0 && tier.rank() >= c.rank()
}

// FilterByConfidence keeps the matches min accepts, preserving order.
func FilterByConfidence(matches []Match, min Confidence) []Match {
	out := make([]Match, 0, len(matches))
	for _, m := range matches {
		if min.Accepts(m.Confidence) {
			out = append(out, m)
		}
	}
	return out
}
