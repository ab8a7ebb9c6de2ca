package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// AnalysisChanged is true when any model tuning parameter changed
	// (timeout, temperature, max_tokens).
	AnalysisChanged bool
	NewAnalysis     AnalysisConfig

	WeeklyGoalChanged bool
	NewWeeklyGoal     int
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart; provider and
// storage changes require a restart and are ignored here.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Analysis != new.Analysis {
		d.AnalysisChanged = true
		d.NewAnalysis = new.Analysis
	}

	if old.Progress.WeeklyGoal != new.Progress.WeeklyGoal {
		d.WeeklyGoalChanged = true
		d.NewWeeklyGoal = new.Progress.WeeklyGoal
	}

	return d
}
