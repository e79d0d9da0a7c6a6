package l6objects

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/thermal.tracker/internal/thermal/l5tracks"
)

// RunStatistics summarises the track population of one clip run.
type RunStatistics struct {
	TrackCount     int `json:"track_count"`
	SurvivorCount  int `json:"survivor_count"`
	RejectedShort  int `json:"rejected_short"`
	RejectedStatic int `json:"rejected_static"`
	RejectedExcess int `json:"rejected_excess"`

	AvgScore       float64 `json:"avg_score"`
	AvgDuration    float64 `json:"avg_duration_secs"`
	AvgMass        float64 `json:"avg_mass"`
	MedianMovement float64 `json:"median_movement"`
	MaxScore       float64 `json:"max_score"`
}

// ComputeRunStatistics calculates aggregate statistics for a scored run.
// Averages are taken over the surviving tracks.
func ComputeRunStatistics(all []*l5tracks.Track, res ScoreResult) *RunStatistics {
	stats := &RunStatistics{
		TrackCount:    len(all),
		SurvivorCount: len(res.Tracks),
	}
	for _, reason := range res.Rejected {
		switch reason {
		case RejectTooShort:
			stats.RejectedShort++
		case RejectNotMoving:
			stats.RejectedStatic++
		case RejectOverMaximum:
			stats.RejectedExcess++
		}
	}
	if len(res.Tracks) == 0 {
		return stats
	}

	scores := make([]float64, len(res.Tracks))
	durations := make([]float64, len(res.Tracks))
	masses := make([]float64, len(res.Tracks))
	movements := make([]float64, len(res.Tracks))
	for i, t := range res.Tracks {
		scores[i] = t.Score
		durations[i] = t.Duration
		masses[i] = t.AverageMass
		movements[i] = t.Movement
	}
	sort.Float64s(movements)

	stats.AvgScore = stat.Mean(scores, nil)
	stats.AvgDuration = stat.Mean(durations, nil)
	stats.AvgMass = stat.Mean(masses, nil)
	stats.MedianMovement = stat.Quantile(0.5, stat.Empirical, movements, nil)
	stats.MaxScore = res.Tracks[0].Score
	return stats
}
