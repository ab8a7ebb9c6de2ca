// Package analyzer produces the per-session coaching analysis: a structured
// transcript, delivery metrics, filler breakdown, notable highlights,
// recommendations, and an overall 0-100 score.
//
// Two analyzers exist. [Fallback] is fully deterministic and always succeeds
// using only lexical metrics. [Assist] delegates to an LLM provider for
// richer output and merges the reply field by field over the deterministic
// result, so a partially valid reply degrades per field rather than per
// request. [Cascade] composes the two: the caller always receives a complete
// analysis no matter what the external call does.
package analyzer

import (
	"errors"
	"strings"
)

// Input validation errors. These are the only errors the analysis pipeline
// surfaces to callers; everything downstream of validation recovers locally.
var (
	// ErrEmptyTranscript is returned for an empty or whitespace-only transcript.
	ErrEmptyTranscript = errors.New("analyzer: transcript is empty")

	// ErrInvalidDuration is returned for a non-positive session duration.
	ErrInvalidDuration = errors.New("analyzer: duration must be positive")
)

// Token kinds.
const (
	TokenWord   = "word"
	TokenFiller = "filler"
	TokenPause  = "pause"
)

// Highlight kinds.
const (
	HighlightFiller    = "filler"
	HighlightLongPause = "long_pause"
)

// Token is a single transcript token with its time span.
type Token struct {
	Text    string `json:"text"`
	Kind    string `json:"kind"`
	StartMs int    `json:"start_ms"`
	EndMs   int    `json:"end_ms"`
}

// Segment is a contiguous span of the transcript. Within a segment, tokens
// are time-ordered and non-overlapping; segment boundaries are non-decreasing
// across the sequence.
type Segment struct {
	StartMs int     `json:"start_ms"`
	EndMs   int     `json:"end_ms"`
	Text    string  `json:"text"`
	Tokens  []Token `json:"tokens"`
}

// Metrics is the fixed delivery-metrics record for one session.
//
// AvgPauseMs, EnergyMean, and PitchMedianHz are audio-signal quantities; this
// engine never computes them from a waveform. They are accepted from the AI
// path when valid, or filled with documented defaults otherwise.
type Metrics struct {
	TotalWords        int     `json:"total_words"`
	WordsPerMinute    int     `json:"words_per_minute"`
	TotalFillers      int     `json:"total_fillers"`
	FillersPerMinute  float64 `json:"fillers_per_minute"`
	AvgPauseMs        float64 `json:"avg_pause_ms"`
	EnergyMean        float64 `json:"energy_mean"`
	PitchMedianHz     float64 `json:"pitch_median_hz"`
	ClarityScore      float64 `json:"clarity_score"`     // in [0, 1]
	Confidence        float64 `json:"confidence"`        // in [0, 1]
	PaceScore         int     `json:"pace_score"`        // in [0, 100]
	FillerImprovement int     `json:"filler_improvement"` // in [0, 100]
}

// Highlight marks a notable transcript span for UI annotation. Purely
// derived and non-authoritative.
type Highlight struct {
	Kind       string `json:"kind"`
	StartMs    int    `json:"start_ms"`
	EndMs      int    `json:"end_ms"`
	Text       string `json:"text,omitempty"`
	DurationMs int    `json:"duration_ms,omitempty"`
}

// Recommendation is a single piece of coaching advice. ID is a stable slug
// so the UI can deduplicate and localise.
type Recommendation struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	Description string `json:"description"`
}

// Analysis is the complete result of analysing one practice session.
// Produced once per session and immutable thereafter.
type Analysis struct {
	Segments        []Segment        `json:"segments"`
	Metrics         Metrics          `json:"metrics"`
	FillerBreakdown map[string]int   `json:"fillerBreakdown"`
	Highlights      []Highlight      `json:"highlights"`
	Recommendations []Recommendation `json:"recommendations"`
	Score           int              `json:"score"` // in [0, 100]
}

// ValidateInput checks the analyzer input contract: a transcript that is
// non-empty after trimming and a positive duration. It returns
// [ErrEmptyTranscript] or [ErrInvalidDuration], joined when both fail.
func ValidateInput(transcript string, durationSeconds float64) error {
	var errs []error
	if strings.TrimSpace(transcript) == "" {
		errs = append(errs, ErrEmptyTranscript)
	}
	if durationSeconds <= 0 {
		errs = append(errs, ErrInvalidDuration)
	}
	return errors.Join(errs...)
}
