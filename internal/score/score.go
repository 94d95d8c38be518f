// Package score is the profile aggregator: it turns a user's raw
// contribution counters into the metric tuple the leaderboard orders on.
//
// Everything here is a pure function of the supplied user record — no I/O,
// no clock, no stored state — so the same inputs always produce the same
// metrics regardless of where or when they are computed.
package score

import "github.com/dsampson94/community-recruit/internal/model"

// Weights configures the contribution of each metric to the total. The
// launch policy weighs all three equally; operators can tilt the board
// toward commits or hours without touching the ranking algorithm.
type Weights struct {
	Commit  float64
	Hours   float64
	Breadth float64
}

// DefaultWeights is the equally-weighted additive formula.
var DefaultWeights = Weights{Commit: 1, Hours: 1, Breadth: 1}

// Metrics is the derived tuple for one user.
type Metrics struct {
	CommitScore float64 `json:"commitScore"`
	HoursScore  float64 `json:"hoursScore"`
	Breadth     int     `json:"breadth"`
	Total       float64 `json:"total"`
}

// Aggregate computes a user's metrics under the given weights.
//
// CommitScore and HoursScore are the raw counters (contribution counts are
// normalized upstream); Breadth counts distinct references across skills,
// projects and events attended.
func Aggregate(u *model.User, w Weights) Metrics {
	return FromCounters(u.GitContributions, u.HoursWorked, u.Breadth(), w)
}

// FromCounters computes metrics from bare counters. The repository's
// snapshot query uses this directly so ranking does not need to materialize
// full user records.
func FromCounters(commits int, hours float64, breadth int, w Weights) Metrics {
	m := Metrics{
		CommitScore: float64(commits),
		HoursScore:  hours,
		Breadth:     breadth,
	}
	m.Total = w.Commit*m.CommitScore + w.Hours*m.HoursScore + w.Breadth*float64(m.Breadth)
	return m
}

// Scored reports whether the metrics carry at least one contribution signal.
// Users with nothing scored stay off the leaderboard entirely.
func (m Metrics) Scored() bool {
	return m.CommitScore > 0 || m.HoursScore > 0 || m.Breadth > 0
}
