package analyzer

import (
	"context"
	"log/slog"
)

// Source identifies which path produced an analysis.
type Source string

const (
	// SourceAssist means the AI-assisted path succeeded and its (merged)
	// result was returned.
	SourceAssist Source = "assist"

	// SourceFallback means the deterministic path's result was returned
	// unchanged, either because no assist is configured or because the
	// external call failed.
	SourceFallback Source = "fallback"
)

// Cascade composes the two analysis paths: try the AI-assisted analyzer
// once, and return the deterministic result unchanged when the attempt
// fails. The external call's failure is logged, never surfaced — a caller
// holding valid input always receives a complete analysis.
//
// Cascade is safe for concurrent use.
type Cascade struct {
	assist   *Assist // nil disables the AI path entirely
	fallback Fallback
}

// NewCascade creates a [Cascade]. assist may be nil, in which case every
// analysis runs the deterministic path only.
func NewCascade(assist *Assist) *Cascade {
	return &Cascade{assist: assist}
}

// Analyze validates the input and produces a complete analysis. The only
// error conditions are [ErrEmptyTranscript] and [ErrInvalidDuration]; once
// input passes validation, Analyze cannot fail.
func (c *Cascade) Analyze(ctx context.Context, transcript string, durationSeconds float64) (*Analysis, Source, error) {
	if err := ValidateInput(transcript, durationSeconds); err != nil {
		return nil, "", err
	}

	base := c.fallback.Analyze(transcript, durationSeconds)
	if c.assist == nil {
		return base, SourceFallback, nil
	}

	merged, err := c.assist.Try(ctx, transcript, durationSeconds, base)
	if err != nil {
		slog.Warn("ai analysis unavailable, using deterministic result",
			"model", c.assist.provider.ModelID(), "error", err)
		return base, SourceFallback, nil
	}
	return merged, SourceAssist, nil
}
