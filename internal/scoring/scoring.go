// Package scoring implements the overall delivery score.
//
// The score is a sequential blend, not a single weighted sum: every step
// operates on the already-blended running score from the previous step, so
// the order of operations is part of the contract and must not be refactored
// into one closed-form expression.
package scoring

import (
	"math"

	"github.com/orato-app/orato/internal/lexical"
)

// OverallScore maps a transcript and its duration to an integer delivery
// score in [0, 100].
//
// Pipeline, in order:
//  1. start at 100
//  2. subtract a filler penalty capped at 30 points
//  3. blend in the pace score at 20% weight
//  4. blend in the clarity score at 20% weight
//  5. +5 for sessions of at least two minutes, -10 for sessions under 30s
//  6. clamp to [0, 100] and round
//
// Callers must reject empty transcripts and non-positive durations before
// scoring; the filler-ratio step assumes at least one word.
func OverallScore(text string, durationSeconds float64) int {
	score := 100.0

	words := lexical.CountWords(text)
	fillers := lexical.CountFillers(text)
	if words > 0 {
		penalty := math.Min(30, float64(fillers)/float64(words)*100*0.3)
		score -= penalty
	}

	pace := lexical.PaceScore(lexical.WordsPerMinute(text, durationSeconds))
	score = score*0.8 + float64(pace)*0.2

	clarity := lexical.ClarityScore(text)
	score = score*0.8 + clarity*100*0.2

	if durationSeconds >= 120 {
		score += 5
	} else if durationSeconds < 30 {
		score -= 10
	}

	return int(math.Round(math.Min(math.Max(score, 0), 100)))
}

// FillerImprovement converts filler density into a 0-100 control score used
// by the rolling progress averages. A filler-free transcript scores 100 and
// the score falls off at twice the filler ratio, mirroring the clarity
// formula's slope.
func FillerImprovement(text string) int {
	words := lexical.CountWords(text)
	if words == 0 {
		return 100
	}
	ratio := float64(lexical.CountFillers(text)) / float64(words)
	return int(math.Round(math.Min(math.Max(100-ratio*200, 0), 100)))
}
