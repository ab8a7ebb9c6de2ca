// Package progress computes per-user longitudinal progress from completed
// practice sessions: daily streaks, rolling metric averages, best score, and
// weekly goal completion.
package progress

import (
	"time"

	"github.com/orato-app/orato/internal/store"
)

// rollingWindow is the number of most recent sessions (including the new
// one) considered for streak day checks and rolling averages.
const rollingWindow = 5

// Tracker derives the next [store.UserProgress] state from a newly created
// session. It is stateless; all inputs are passed per call.
type Tracker struct {
	loc *time.Location
}

// NewTracker creates a Tracker that evaluates calendar days in loc. A nil
// loc means UTC.
func NewTracker(loc *time.Location) *Tracker {
	if loc == nil {
		loc = time.UTC
	}
	return &Tracker{loc: loc}
}

// Next computes the full replacement update for a user's progress record
// after session has been persisted.
//
// prior is the user's progress before this session. recent holds the user's
// most recent sessions newest first and must include the new session; only
// the first rollingWindow entries are considered. Every field of the
// returned update is set, so the record is overwritten as one unit.
func (t *Tracker) Next(prior *store.UserProgress, session *store.Session, recent []store.Session) store.ProgressUpdate {
	if len(recent) > rollingWindow {
		recent = recent[:rollingWindow]
	}

	today := t.dayOf(session.CreatedAt)
	yesterday := today.AddDate(0, 0, -1)

	var hasToday, hasYesterday bool
	for _, s := range recent {
		switch t.dayOf(s.CreatedAt) {
		case today:
			hasToday = true
		case yesterday:
			hasYesterday = true
		}
	}

	// Ordered decision list; the first applicable branch wins. The final
	// fall-through keeps the prior streak rather than guessing.
	streak := prior.CurrentStreak
	switch {
	case hasToday && prior.LastSessionAt.IsZero():
		streak = 1
	case hasToday && hasYesterday:
		streak = prior.CurrentStreak + 1
	case !hasYesterday:
		streak = 1
	}

	var fillerSum, paceSum float64
	for _, s := range recent {
		fillerSum += float64(s.Analysis.Metrics.FillerImprovement)
		paceSum += float64(s.Analysis.Metrics.PaceScore)
	}
	avgFiller, avgPace := 0.0, 0.0
	if n := len(recent); n > 0 {
		avgFiller = fillerSum / float64(n)
		avgPace = paceSum / float64(n)
	}

	best := prior.BestScore
	if session.Score > best {
		best = session.Score
	}

	total := prior.TotalSessions + 1
	weekly := t.nextWeeklyCompleted(prior, session.CreatedAt)
	lastAt := session.CreatedAt

	return store.ProgressUpdate{
		TotalSessions:      &total,
		CurrentStreak:      &streak,
		BestScore:          &best,
		AvgFillerReduction: &avgFiller,
		AvgPaceControl:     &avgPace,
		WeeklyCompleted:    &weekly,
		LastSessionAt:      &lastAt,
	}
}

// nextWeeklyCompleted increments the weekly counter while the new session
// falls in the same ISO week as the previous one, otherwise restarts at 1.
func (t *Tracker) nextWeeklyCompleted(prior *store.UserProgress, createdAt time.Time) int {
	if prior.LastSessionAt.IsZero() {
		return 1
	}
	prevYear, prevWeek := prior.LastSessionAt.In(t.loc).ISOWeek()
	curYear, curWeek := createdAt.In(t.loc).ISOWeek()
	if prevYear == curYear && prevWeek == curWeek {
		return prior.WeeklyCompleted + 1
	}
	return 1
}

// dayOf truncates ts to midnight of its calendar day in the tracker's
// location.
func (t *Tracker) dayOf(ts time.Time) time.Time {
	local := ts.In(t.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, t.loc)
}
