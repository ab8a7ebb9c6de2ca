package analyzer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/orato-app/orato/pkg/provider/llm"
)

// systemPrompt is the fixed instruction contract for the analysis call. It
// pins the exact JSON shape; anything the model omits or malforms is filled
// from the deterministic analysis during merge.
const systemPrompt = `You are a speech-delivery coach. Analyse the practice transcript the user provides and respond with exactly one JSON object and nothing else — no prose, no markdown fences.

The object must have this shape:
{
  "segments": [{"start_ms": int, "end_ms": int, "text": string,
                "tokens": [{"text": string, "kind": "word"|"filler"|"pause", "start_ms": int, "end_ms": int}]}],
  "metrics": {"total_words": int >= 0, "words_per_minute": int >= 0,
              "total_fillers": int >= 0, "fillers_per_minute": number >= 0,
              "avg_pause_ms": number, "energy_mean": number, "pitch_median_hz": number,
              "clarity_score": number in [0,1], "confidence": number in [0,1],
              "pace_score": int in [0,100], "filler_improvement": int in [0,100]},
  "fillerBreakdown": {"um": int, "uh": int, "like": int, "you know": int, "so": int},
  "highlights": [{"kind": "filler"|"long_pause", "start_ms": int, "end_ms": int,
                  "text": string (optional), "duration_ms": int (optional)}],
  "recommendations": [{"id": slug, "text": string, "description": string}],
  "score": int in [0,100]
}

Within a segment, tokens must be time-ordered and non-overlapping; segment boundaries must be non-decreasing. Recommendations should be specific to this transcript.`

// DefaultTimeout bounds the external analysis call. The pipeline proceeds
// with the deterministic result once it elapses; there are no retries.
const DefaultTimeout = 20 * time.Second

// AssistConfig configures an [Assist].
type AssistConfig struct {
	// Timeout bounds the external call. Zero means [DefaultTimeout].
	Timeout time.Duration

	// Temperature for the completion. Zero means the provider default;
	// analysis calls generally want a low value.
	Temperature float64

	// MaxTokens caps the completion length. Zero means the provider default.
	MaxTokens int
}

// Assist is the AI-assisted analyzer. It performs a single structured
// completion against the configured LLM provider and merges the reply field
// by field over a deterministic base analysis: every absent or invalid field
// keeps the deterministic value, every valid field is taken from the model.
//
// Assist is safe for concurrent use.
type Assist struct {
	provider llm.Provider
	cfg      AssistConfig
}

// NewAssist creates an [Assist] backed by the given provider.
func NewAssist(provider llm.Provider, cfg AssistConfig) (*Assist, error) {
	if provider == nil {
		return nil, fmt.Errorf("analyzer: assist requires a provider")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Assist{provider: provider, cfg: cfg}, nil
}

// Try performs the external analysis call and merges the result over base.
// base is never mutated. On any failure — transport error, timeout, or a
// payload that is not a JSON object — Try returns a nil analysis and the
// error; the caller falls back to base unchanged.
func (a *Assist) Try(ctx context.Context, transcript string, durationSeconds float64, base *Analysis) (*Analysis, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	req := llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		Messages: []llm.Message{{
			Role:    "user",
			Content: userPrompt(transcript, durationSeconds),
		}},
		Temperature: a.cfg.Temperature,
		MaxTokens:   a.cfg.MaxTokens,
		JSONOnly:    true,
	}

	resp, err := a.provider.Complete(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("analyzer: assist call: %w", err)
	}

	p, err := decodePayload(resp.Content)
	if err != nil {
		return nil, fmt.Errorf("analyzer: assist payload: %w", err)
	}

	return mergePayload(p, base), nil
}

// userPrompt embeds the transcript and duration into the analysis request.
func userPrompt(transcript string, durationSeconds float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session duration: %.1f seconds.\n\nTranscript:\n%s\n", durationSeconds, transcript)
	return b.String()
}
