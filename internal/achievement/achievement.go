// Package achievement evaluates unlock rules against a newly completed
// session and emits achievements that have not been unlocked before.
package achievement

import (
	"time"

	"github.com/orato-app/orato/internal/store"
)

// Achievement types.
const (
	TypeStreak7    = "streak_7"
	TypeScore80    = "score_80"
	TypeTimeMaster = "time_master"
)

// rule is one unlock condition with its fixed presentation fields.
type rule struct {
	typ         string
	title       string
	description string
	icon        string
	unlocked    func(in Input) bool
}

// Input carries everything the rules look at for one session.
type Input struct {
	// CurrentStreak is the user's streak after the progress update for
	// this session.
	CurrentStreak int
	// Score is the session's overall score.
	Score int
	// DurationMs is the session length in milliseconds.
	DurationMs int64
}

// rules are evaluated independently per session; more than one may fire.
var rules = []rule{
	{
		typ:         TypeStreak7,
		title:       "Week Warrior",
		description: "Practiced seven days in a row",
		icon:        "🔥",
		unlocked:    func(in Input) bool { return in.CurrentStreak >= 7 },
	},
	{
		typ:         TypeScore80,
		title:       "High Scorer",
		description: "Reached a session score of 80 or higher",
		icon:        "🎯",
		unlocked:    func(in Input) bool { return in.Score >= 80 },
	},
	{
		typ:         TypeTimeMaster,
		title:       "Time Master",
		description: "Completed a practice session of five minutes or longer",
		icon:        "⏱️",
		unlocked:    func(in Input) bool { return in.DurationMs >= 5*60*1000 },
	},
}

// Engine evaluates the unlock rule table. It is stateless; the caller
// supplies the user's already-unlocked types and persists the result.
type Engine struct {
	now func() time.Time
}

// NewEngine creates an Engine using the real clock.
func NewEngine() *Engine {
	return &Engine{now: func() time.Time { return time.Now().UTC() }}
}

// Evaluate returns the achievements newly unlocked by in for userID.
// Types listed in unlockedTypes are never emitted again, so calling
// Evaluate twice with an updated unlocked set yields nothing the second
// time.
func (e *Engine) Evaluate(userID string, in Input, unlockedTypes []string) []store.Achievement {
	have := make(map[string]bool, len(unlockedTypes))
	for _, t := range unlockedTypes {
		have[t] = true
	}

	var out []store.Achievement
	for _, r := range rules {
		if have[r.typ] || !r.unlocked(in) {
			continue
		}
		out = append(out, store.Achievement{
			UserID:      userID,
			Type:        r.typ,
			Title:       r.title,
			Description: r.description,
			Icon:        r.icon,
			UnlockedAt:  e.now(),
		})
	}
	return out
}

// UnlockedTypes extracts the type set from stored achievements, for use as
// the idempotence guard in [Engine.Evaluate].
func UnlockedTypes(achievements []store.Achievement) []string {
	types := make([]string, len(achievements))
	for i, a := range achievements {
		types[i] = a.Type
	}
	return types
}
