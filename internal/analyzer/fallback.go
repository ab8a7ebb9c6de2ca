package analyzer

import (
	"math"
	"strings"

	"github.com/orato-app/orato/internal/lexical"
	"github.com/orato-app/orato/internal/scoring"
)

// Defaults for the signal-only metrics fields. No audio waveform reaches
// this engine, so the deterministic path reports plausible neutral values
// rather than zeroes that a UI would render as anomalies.
const (
	defaultAvgPauseMs    = 400.0
	defaultEnergyMean    = -18.0
	defaultPitchMedianHz = 180.0
	defaultConfidence    = 0.85
)

// tokenSlotMs is the synthetic duration assigned to each token by the
// deterministic path. Token timings are an approximation derived from word
// order alone, not from real audio timing.
const tokenSlotMs = 500

// Fallback is the deterministic analyzer. It builds a complete [Analysis]
// from lexical metrics only — no external calls, no clock, no randomness —
// so the same (transcript, duration) input always yields an identical
// result. It backs the AI-assisted path both as a whole-result fallback and
// as the per-field donor during merge.
//
// The zero value is ready to use.
type Fallback struct{}

// Analyze builds the full deterministic analysis for the given transcript
// and duration. Callers must validate the input first (see [ValidateInput]);
// Analyze itself never fails.
func (Fallback) Analyze(transcript string, durationSeconds float64) *Analysis {
	tokens := syntheticTokens(transcript)

	segment := Segment{
		StartMs: 0,
		EndMs:   int(math.Round(durationSeconds * 1000)),
		Text:    transcript,
		Tokens:  tokens,
	}

	return &Analysis{
		Segments:        []Segment{segment},
		Metrics:         deterministicMetrics(transcript, durationSeconds),
		FillerBreakdown: lexical.FillerBreakdown(transcript),
		Highlights:      fillerHighlights(tokens),
		Recommendations: deriveRecommendations(transcript, durationSeconds),
		Score:           scoring.OverallScore(transcript, durationSeconds),
	}
}

// syntheticTokens splits the transcript on whitespace and assigns each token
// a fixed 500ms slot. Timings are synthetic: the i-th token spans
// [i*500, (i+1)*500) regardless of how the words were actually spoken.
func syntheticTokens(transcript string) []Token {
	fields := strings.Fields(transcript)
	tokens := make([]Token, len(fields))
	for i, f := range fields {
		kind := TokenWord
		if lexical.IsFillerToken(f) {
			kind = TokenFiller
		}
		tokens[i] = Token{
			Text:    f,
			Kind:    kind,
			StartMs: i * tokenSlotMs,
			EndMs:   (i + 1) * tokenSlotMs,
		}
	}
	return tokens
}

func deterministicMetrics(transcript string, durationSeconds float64) Metrics {
	fillers := lexical.CountFillers(transcript)
	return Metrics{
		TotalWords:        lexical.CountWords(transcript),
		WordsPerMinute:    lexical.WordsPerMinute(transcript, durationSeconds),
		TotalFillers:      fillers,
		FillersPerMinute:  float64(fillers) / durationSeconds * 60,
		AvgPauseMs:        defaultAvgPauseMs,
		EnergyMean:        defaultEnergyMean,
		PitchMedianHz:     defaultPitchMedianHz,
		ClarityScore:      lexical.ClarityScore(transcript),
		Confidence:        defaultConfidence,
		PaceScore:         lexical.PaceScore(lexical.WordsPerMinute(transcript, durationSeconds)),
		FillerImprovement: scoring.FillerImprovement(transcript),
	}
}

// fillerHighlights marks every filler token as a highlight span. The
// deterministic path has no pause timing, so no long_pause highlights are
// produced here; the AI path may supply them.
func fillerHighlights(tokens []Token) []Highlight {
	highlights := []Highlight{}
	for _, t := range tokens {
		if t.Kind != TokenFiller {
			continue
		}
		highlights = append(highlights, Highlight{
			Kind:    HighlightFiller,
			StartMs: t.StartMs,
			EndMs:   t.EndMs,
			Text:    t.Text,
		})
	}
	return highlights
}

// deriveRecommendations maps lexical metrics to advice with stable slugs.
// Thresholds are coaching heuristics, not tunables exposed to config.
func deriveRecommendations(transcript string, durationSeconds float64) []Recommendation {
	var recs []Recommendation

	wpm := lexical.WordsPerMinute(transcript, durationSeconds)
	fillers := lexical.CountFillers(transcript)
	words := lexical.CountWords(transcript)

	if words > 0 && float64(fillers)/float64(words) > 0.08 {
		recs = append(recs, Recommendation{
			ID:          "reduce-fillers",
			Text:        "Reduce filler words",
			Description: "Pause silently instead of saying \"um\" or \"uh\". A short silence reads as confidence; a filler reads as hesitation.",
		})
	}
	switch {
	case wpm > 160:
		recs = append(recs, Recommendation{
			ID:          "slow-down",
			Text:        "Slow your pace",
			Description: "You are speaking faster than 160 words per minute. Aim for 110-140 so listeners can follow your argument.",
		})
	case wpm < 90:
		recs = append(recs, Recommendation{
			ID:          "pick-up-pace",
			Text:        "Pick up the pace",
			Description: "You are speaking slower than 90 words per minute. A slightly brisker delivery keeps the audience engaged.",
		})
	}
	if durationSeconds < 30 {
		recs = append(recs, Recommendation{
			ID:          "longer-sessions",
			Text:        "Practice longer",
			Description: "Sessions under 30 seconds are too short to build endurance. Aim for at least two minutes of continuous speaking.",
		})
	}
	if len(recs) == 0 {
		recs = append(recs, Recommendation{
			ID:          "keep-practicing",
			Text:        "Keep practicing",
			Description: "Your delivery is on track. Regular practice is what turns a good session into a habit.",
		})
	}
	return recs
}
