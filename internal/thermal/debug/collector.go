// Package debug provides instrumentation for thermal tracking.
// The DebugCollector captures association internals (predicted boxes,
// overlap scores, state transitions, spawned tracks) for inspection and
// tuning.
package debug

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/banshee-data/thermal.tracker/internal/thermal/l4perception"
	"github.com/banshee-data/thermal.tracker/internal/thermal/l5tracks"
)

// Pre-allocation capacities for debug frame slices.
const (
	defaultAssociationCapacity = 16
	defaultPredictionCapacity  = 8
)

// DebugCollector accumulates debug artefacts frame by frame. Call
// BeginFrame at the start of every frame; the previous frame is retained
// and returned by Frames.
type DebugCollector struct {
	enabled bool
	current *DebugFrame
	frames  []*DebugFrame
}

// DebugFrame contains all debug artefacts for a single frame.
type DebugFrame struct {
	FrameNumber int `json:"frame_number"`

	Predictions  []PredictionRecord  `json:"predictions"`
	Associations []AssociationRecord `json:"associations"`
	Transitions  []TransitionRecord  `json:"transitions,omitempty"`
	Spawns       []SpawnRecord       `json:"spawns,omitempty"`
}

// PredictionRecord is a track's predicted box before association.
type PredictionRecord struct {
	TrackID   int              `json:"track_id"`
	Predicted l4perception.Box `json:"predicted"`
	VX        float64          `json:"vx"`
	VY        float64          `json:"vy"`
}

// AssociationRecord captures one track-region pairing evaluation.
type AssociationRecord struct {
	TrackID         int     `json:"track_id"`
	RegionIndex     int     `json:"region_index"`
	OverlapFraction float64 `json:"overlap_fraction"`
	AreaDifference  float64 `json:"area_difference"`
	Similar         bool    `json:"similar"`
}

// TransitionRecord is a track state change.
type TransitionRecord struct {
	TrackID int                 `json:"track_id"`
	From    l5tracks.TrackState `json:"from"`
	To      l5tracks.TrackState `json:"to"`
}

// SpawnRecord is a track created from an unconsumed region.
type SpawnRecord struct {
	TrackID     int `json:"track_id"`
	RegionIndex int `json:"region_index"`
}

var _ l5tracks.DebugCollector = (*DebugCollector)(nil)

// NewDebugCollector creates a collector that's initially disabled.
func NewDebugCollector() *DebugCollector {
	return &DebugCollector{}
}

// SetEnabled controls whether the collector records artefacts.
func (c *DebugCollector) SetEnabled(enabled bool) {
	c.enabled = enabled
}

// IsEnabled returns true if the collector is actively recording.
func (c *DebugCollector) IsEnabled() bool {
	return c.enabled
}

// BeginFrame starts collection for a new frame, retaining the previous one.
func (c *DebugCollector) BeginFrame(frameNumber int) {
	if !c.enabled {
		return
	}
	c.flush()
	c.current = &DebugFrame{
		FrameNumber:  frameNumber,
		Predictions:  make([]PredictionRecord, 0, defaultPredictionCapacity),
		Associations: make([]AssociationRecord, 0, defaultAssociationCapacity),
	}
}

// RecordPrediction captures a track's predicted box.
func (c *DebugCollector) RecordPrediction(trackID int, predicted l4perception.Box, vx, vy float64) {
	if !c.enabled || c.current == nil {
		return
	}
	c.current.Predictions = append(c.current.Predictions, PredictionRecord{
		TrackID: trackID, Predicted: predicted, VX: vx, VY: vy,
	})
}

// RecordAssociation captures a track-region evaluation.
func (c *DebugCollector) RecordAssociation(trackID, regionIndex int, overlapFraction, areaDifference float64, similar bool) {
	if !c.enabled || c.current == nil {
		return
	}
	c.current.Associations = append(c.current.Associations, AssociationRecord{
		TrackID:         trackID,
		RegionIndex:     regionIndex,
		OverlapFraction: overlapFraction,
		AreaDifference:  areaDifference,
		Similar:         similar,
	})
}

// RecordTransition captures a state change.
func (c *DebugCollector) RecordTransition(trackID int, from, to l5tracks.TrackState) {
	if !c.enabled || c.current == nil {
		return
	}
	c.current.Transitions = append(c.current.Transitions, TransitionRecord{TrackID: trackID, From: from, To: to})
}

// RecordSpawn captures a newly created track.
func (c *DebugCollector) RecordSpawn(trackID, regionIndex int) {
	if !c.enabled || c.current == nil {
		return
	}
	c.current.Spawns = append(c.current.Spawns, SpawnRecord{TrackID: trackID, RegionIndex: regionIndex})
}

// Emit returns the frame in progress and clears it without retaining it.
// Returns nil if collection is disabled or no frame was begun.
func (c *DebugCollector) Emit() *DebugFrame {
	if !c.enabled || c.current == nil {
		return nil
	}
	frame := c.current
	c.current = nil
	return frame
}

// Frames returns every collected frame, including the one in progress.
func (c *DebugCollector) Frames() []*DebugFrame {
	c.flush()
	return c.frames
}

// Reset clears all collected artefacts.
func (c *DebugCollector) Reset() {
	c.current = nil
	c.frames = nil
}

func (c *DebugCollector) flush() {
	if c.current != nil {
		c.frames = append(c.frames, c.current)
		c.current = nil
	}
}

// WriteJSON writes every collected frame as an indented JSON array.
func (c *DebugCollector) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	frames := c.Frames()
	if frames == nil {
		frames = []*DebugFrame{}
	}
	if err := enc.Encode(frames); err != nil {
		return fmt.Errorf("encode debug frames: %w", err)
	}
	return nil
}
