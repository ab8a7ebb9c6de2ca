package analyzer

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// payload is the loosely-typed decode target for the model's reply. Every
// field is optional; validation happens during merge, not during decode, so
// one malformed field never discards the rest of the reply.
type payload struct {
	Segments        []Segment               `json:"segments"`
	Metrics         *metricsPayload         `json:"metrics"`
	FillerBreakdown map[string]int          `json:"fillerBreakdown"`
	Highlights      []Highlight             `json:"highlights"`
	Recommendations []recommendationPayload `json:"recommendations"`
	Score           *float64                `json:"score"`
}

// metricsPayload mirrors [Metrics] with every field optional. Numeric fields
// are float64 because models frequently emit "62.0" where an int is asked
// for; rounding happens on merge.
type metricsPayload struct {
	TotalWords        *float64 `json:"total_words"`
	WordsPerMinute    *float64 `json:"words_per_minute"`
	TotalFillers      *float64 `json:"total_fillers"`
	FillersPerMinute  *float64 `json:"fillers_per_minute"`
	AvgPauseMs        *float64 `json:"avg_pause_ms"`
	EnergyMean        *float64 `json:"energy_mean"`
	PitchMedianHz     *float64 `json:"pitch_median_hz"`
	ClarityScore      *float64 `json:"clarity_score"`
	Confidence        *float64 `json:"confidence"`
	PaceScore         *float64 `json:"pace_score"`
	FillerImprovement *float64 `json:"filler_improvement"`
}

type recommendationPayload struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	Description string `json:"description"`
}

// decodePayload parses the model reply into a [payload]. Markdown code
// fences are tolerated even though the contract forbids them — models add
// them anyway often enough that rejecting would waste valid replies.
func decodePayload(content string) (*payload, error) {
	trimmed := strings.TrimSpace(content)
	if after, ok := strings.CutPrefix(trimmed, "```"); ok {
		if _, rest, found := strings.Cut(after, "\n"); found {
			after = rest
		}
		after = strings.TrimSuffix(strings.TrimSpace(after), "```")
		trimmed = strings.TrimSpace(after)
	}

	p := &payload{}
	if err := json.Unmarshal([]byte(trimmed), p); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	return p, nil
}

// mergePayload applies every valid field of p over a deep copy of base.
// Fields are independent: an invalid segments list does not stop a valid
// score from being taken, and vice versa. base is never mutated.
func mergePayload(p *payload, base *Analysis) *Analysis {
	out := cloneAnalysis(base)

	if validSegments(p.Segments) {
		out.Segments = p.Segments
	}
	if p.Metrics != nil {
		mergeMetrics(p.Metrics, &out.Metrics)
	}
	if validBreakdown(p.FillerBreakdown) {
		out.FillerBreakdown = p.FillerBreakdown
	}
	if validHighlights(p.Highlights) {
		out.Highlights = p.Highlights
	}
	if recs, ok := convertRecommendations(p.Recommendations); ok {
		out.Recommendations = recs
	}
	if p.Score != nil && *p.Score >= 0 && *p.Score <= 100 {
		out.Score = int(math.Round(*p.Score))
	}

	return out
}

// mergeMetrics copies each valid subfield of p into m, leaving the
// deterministic value in place for anything absent or out of range.
func mergeMetrics(p *metricsPayload, m *Metrics) {
	if v := p.TotalWords; v != nil && *v >= 0 {
		m.TotalWords = int(math.Round(*v))
	}
	if v := p.WordsPerMinute; v != nil && *v >= 0 {
		m.WordsPerMinute = int(math.Round(*v))
	}
	if v := p.TotalFillers; v != nil && *v >= 0 {
		m.TotalFillers = int(math.Round(*v))
	}
	if v := p.FillersPerMinute; v != nil && *v >= 0 {
		m.FillersPerMinute = *v
	}
	if v := p.AvgPauseMs; v != nil && *v >= 0 {
		m.AvgPauseMs = *v
	}
	if v := p.EnergyMean; v != nil {
		m.EnergyMean = *v
	}
	if v := p.PitchMedianHz; v != nil && *v > 0 {
		m.PitchMedianHz = *v
	}
	if v := p.ClarityScore; v != nil && *v >= 0 && *v <= 1 {
		m.ClarityScore = *v
	}
	if v := p.Confidence; v != nil && *v >= 0 && *v <= 1 {
		m.Confidence = *v
	}
	if v := p.PaceScore; v != nil && *v >= 0 && *v <= 100 {
		m.PaceScore = int(math.Round(*v))
	}
	if v := p.FillerImprovement; v != nil && *v >= 0 && *v <= 100 {
		m.FillerImprovement = int(math.Round(*v))
	}
}

// validSegments checks the transcript invariants: a non-empty segment list,
// non-decreasing segment boundaries, and per segment time-ordered,
// non-overlapping tokens with recognised kinds.
func validSegments(segments []Segment) bool {
	if len(segments) == 0 {
		return false
	}
	prevStart := 0
	for _, seg := range segments {
		if seg.StartMs < prevStart || seg.EndMs < seg.StartMs {
			return false
		}
		prevStart = seg.StartMs

		prevEnd := math.MinInt
		for _, tok := range seg.Tokens {
			switch tok.Kind {
			case TokenWord, TokenFiller, TokenPause:
			default:
				return false
			}
			if tok.StartMs < 0 || tok.EndMs < tok.StartMs || tok.StartMs < prevEnd {
				return false
			}
			prevEnd = tok.EndMs
		}
	}
	return true
}

func validBreakdown(breakdown map[string]int) bool {
	if breakdown == nil {
		return false
	}
	for _, n := range breakdown {
		if n < 0 {
			return false
		}
	}
	return true
}

func validHighlights(highlights []Highlight) bool {
	if highlights == nil {
		return false
	}
	for _, h := range highlights {
		if h.Kind == "" || h.StartMs < 0 || h.EndMs < h.StartMs || h.DurationMs < 0 {
			return false
		}
	}
	return true
}

func convertRecommendations(recs []recommendationPayload) ([]Recommendation, bool) {
	if len(recs) == 0 {
		return nil, false
	}
	out := make([]Recommendation, 0, len(recs))
	for _, r := range recs {
		if r.ID == "" || r.Text == "" {
			return nil, false
		}
		out = append(out, Recommendation(r))
	}
	return out, true
}

// cloneAnalysis returns a deep copy so merge never aliases or mutates the
// deterministic base.
func cloneAnalysis(a *Analysis) *Analysis {
	out := &Analysis{
		Metrics: a.Metrics,
		Score:   a.Score,
	}

	out.Segments = make([]Segment, len(a.Segments))
	for i, seg := range a.Segments {
		copySeg := seg
		copySeg.Tokens = append([]Token(nil), seg.Tokens...)
		out.Segments[i] = copySeg
	}

	if a.FillerBreakdown != nil {
		out.FillerBreakdown = make(map[string]int, len(a.FillerBreakdown))
		for k, v := range a.FillerBreakdown {
			out.FillerBreakdown[k] = v
		}
	}

	out.Highlights = append([]Highlight(nil), a.Highlights...)
	out.Recommendations = append([]Recommendation(nil), a.Recommendations...)
	return out
}
