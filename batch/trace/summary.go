package trace

import "time"

// Summary aggregates statistics from a RunTrace.
type Summary struct {
	Batches         int
	Scheduled       int
	Succeeded       int
	Failed          int
	FailuresByStage map[Stage]int
	MeanElapsed     time.Duration
	MaxElapsed      time.Duration
}

// Summarize computes aggregate statistics from a RunTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(rt *RunTrace) *Summary {
	summary := &Summary{
		FailuresByStage: make(map[Stage]int),
	}
	if rt == nil {
		return summary
	}

	summary.Batches = len(rt.Batches)
	summary.Scheduled = len(rt.Units)

	var total time.Duration
	for _, u := range rt.Units {
		if u.OK {
			summary.Succeeded++
		} else {
			summary.Failed++
			summary.FailuresByStage[u.Stage]++
		}
		total += u.Elapsed
		if u.Elapsed > summary.MaxElapsed {
			summary.MaxElapsed = u.Elapsed
		}
	}
	if len(rt.Units) > 0 {
		summary.MeanElapsed = total / time.Duration(len(rt.Units))
	}

	return summary
}
