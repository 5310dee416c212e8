package compute

import (
	"math"

	"github.com/tallyhq/tally/pkg/types"
)

// Thresholds that map a score to a health status.
const (
	ThresholdHealthy = 75.0
	ThresholdWatch   = 45.0
)

// Penalties subtracted from a perfect score.
const (
	overduePenalty      = 100.0 // scaled by overdue/active
	dueSoonPenalty      = 20.0  // scaled by dueSoon/active
	noCompletionPenalty = 5.0
	stalePenalty        = 15.0
)

// HealthInput holds the per-project signals the score is derived from.
type HealthInput struct {
	ActiveCount       int
	OverdueCount      int
	DueSoonCount      int
	CompletedThisWeek int
	Stale             bool
}

// ScoreFunc turns a project's signals into a score in [0, 100].
type ScoreFunc func(HealthInput) float64

// Score is the default scoring policy.
//
//	score = 100
//	      - overdue/active * 100
//	      - dueSoon/active * 20
//	      - 5  if nothing was completed this week
//	      - 15 if the project is stale
//
// clamped to [0, 100]. A project without active tasks always scores 100.
func Score(in HealthInput) float64 {
	if in.ActiveCount <= 0 {
		return 100
	}
	active := float64(in.ActiveCount)

	score := 100.0
	score -= float64(in.OverdueCount) * overduePenalty / active
	score -= float64(in.DueSoonCount) * dueSoonPenalty / active
	if in.CompletedThisWeek == 0 {
		score -= noCompletionPenalty
	}
	if in.Stale {
		score -= stalePenalty
	}
	return clamp(score, 0, 100)
}

// Status classifies a score. activeCount and completedThisWeek decide the
// done/idle split for projects with nothing left to do.
func Status(score float64, activeCount, completedThisWeek int) types.HealthStatus {
	if activeCount <= 0 {
		if completedThisWeek > 0 {
			return types.StatusDone
		}
		return types.StatusIdle
	}
	switch {
	case score < ThresholdWatch:
		return types.StatusCritical
	case score < ThresholdHealthy:
		return types.StatusWatch
	default:
		return types.StatusHealthy
	}
}

// clamp bounds v to [lo, hi]. NaN maps to lo.
func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
