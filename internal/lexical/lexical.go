// Package lexical provides the pure text-derived delivery metrics used by the
// analyzers and the scoring engine: word counts, speaking pace, filler-word
// detection, and a clarity estimate.
//
// All functions are deterministic and allocation-light; they operate only on
// the transcript text and the session duration, never on audio.
package lexical

import (
	"math"
	"strings"
)

// FillerVocabulary is the full set of disfluencies counted against the
// speaker. Multi-word entries ("you know") are matched with their spaces
// removed against individual whitespace-split tokens.
var FillerVocabulary = []string{
	"um", "uh", "like", "you know", "so", "basically", "actually", "literally",
}

// BreakdownVocabulary is the subset of fillers reported individually in the
// per-filler breakdown surfaced to the user.
var BreakdownVocabulary = []string{"um", "uh", "like", "you know", "so"}

// CountWords splits text on whitespace and returns the number of non-empty
// tokens.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// WordsPerMinute returns the speaking pace rounded to the nearest integer.
// A non-positive duration yields 0; callers are expected to reject such
// sessions before analysis.
func WordsPerMinute(text string, durationSeconds float64) int {
	if durationSeconds <= 0 {
		return 0
	}
	words := float64(CountWords(text))
	return int(math.Round(words / durationSeconds * 60))
}

// CountFillers returns the number of whitespace-split tokens in text that
// contain any entry of [FillerVocabulary] as a substring (spaces removed from
// the vocabulary entry, text lower-cased first). A token counts at most once
// no matter how many vocabulary entries it contains.
//
// The containment match deliberately over-matches: "solid" contains "so" and
// is counted as a filler. This mirrors the scoring behaviour users have been
// calibrated against; do not tighten it to whole-word matching.
func CountFillers(text string) int {
	count := 0
	for _, token := range strings.Fields(strings.ToLower(text)) {
		if containsAnyFiller(token, FillerVocabulary) {
			count++
		}
	}
	return count
}

// FillerBreakdown returns per-filler occurrence counts restricted to
// [BreakdownVocabulary], using the same containment rule as [CountFillers].
// Counts are not mutually exclusive: a single token may increment several
// keys when it contains several vocabulary entries.
func FillerBreakdown(text string) map[string]int {
	breakdown := make(map[string]int, len(BreakdownVocabulary))
	for _, filler := range BreakdownVocabulary {
		breakdown[filler] = 0
	}
	for _, token := range strings.Fields(strings.ToLower(text)) {
		for _, filler := range BreakdownVocabulary {
			if strings.Contains(token, squash(filler)) {
				breakdown[filler]++
			}
		}
	}
	return breakdown
}

// ClarityScore estimates delivery clarity from filler density:
// clamp(1 - 2*(fillers/words), 0.3, 1.0). An empty transcript has a filler
// ratio of zero and therefore scores 1.0.
func ClarityScore(text string) float64 {
	words := CountWords(text)
	ratio := 0.0
	if words > 0 {
		ratio = float64(CountFillers(text)) / float64(words)
	}
	return clamp(1-2*ratio, 0.3, 1.0)
}

// PaceScore maps words-per-minute to a discrete pace score. Bands are
// evaluated in order, first match wins:
//
//	[110,140]  → 100 (conversational sweet spot)
//	[90,160]   → 80
//	[70,180]   → 60
//	otherwise  → 40
func PaceScore(wpm int) int {
	switch {
	case wpm >= 110 && wpm <= 140:
		return 100
	case wpm >= 90 && wpm <= 160:
		return 80
	case wpm >= 70 && wpm <= 180:
		return 60
	default:
		return 40
	}
}

// IsFillerToken reports whether a single already-lower-cased token matches
// the filler containment rule. Used by the fallback analyzer to classify
// synthetic transcript tokens.
func IsFillerToken(token string) bool {
	return containsAnyFiller(strings.ToLower(token), FillerVocabulary)
}

func containsAnyFiller(token string, vocabulary []string) bool {
	for _, filler := range vocabulary {
		if strings.Contains(token, squash(filler)) {
			return true
		}
	}
	return false
}

// squash removes spaces so multi-word fillers can be matched against single
// tokens ("you know" → "youknow").
func squash(filler string) string {
	return strings.ReplaceAll(filler, " ", "")
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
