package l5tracks

import "github.com/banshee-data/thermal.tracker/internal/thermal/l4perception"

// DebugCollector is the interface for collecting per-frame association
// data. Implementations are not shared between concurrent trackers.
type DebugCollector interface {
	IsEnabled() bool
	BeginFrame(frameNumber int)
	RecordPrediction(trackID int, predicted l4perception.Box, vx, vy float64)
	RecordAssociation(trackID, regionIndex int, overlapFraction, areaDifference float64, similar bool)
	RecordTransition(trackID int, from, to TrackState)
	RecordSpawn(trackID, regionIndex int)
}
